package geoimage

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"github.com/beetlebugorg/cogtiles/pkg/raster"
)

// asciiHeader is the header of an ESRI ASCII grid.
type asciiHeader struct {
	ncols, nrows int
	xll, yll     float64
	center       bool // xllcenter/yllcenter instead of corners
	cellSize     float64
	noData       float64
	hasNoData    bool
}

// transform returns the pixel-centre transform described by the header.
func (h asciiHeader) transform() geoTransform {
	c, f := h.xll, h.yll+float64(h.nrows-1)*h.cellSize
	if !h.center {
		c += h.cellSize / 2
		f += h.cellSize / 2
	}
	return geoTransform{a: h.cellSize, e: -h.cellSize, c: c, f: f}
}

// asciiGridHandle is an ESRI ASCII grid. Values are loaded on first sample.
type asciiGridHandle struct {
	path   string
	crs    raster.CRS
	header asciiHeader
	gt     geoTransform
	bounds orb.Bound

	once   sync.Once
	values []float64
	err    error
	closed atomic.Bool
}

func openASCIIGrid(path string, crs raster.CRS) (*asciiGridHandle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	header, _, err := parseASCIIGrid(f, true)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	gt := header.transform()
	return &asciiGridHandle{
		path:   path,
		crs:    crs,
		header: header,
		gt:     gt,
		bounds: gt.extent(header.ncols, header.nrows),
	}, nil
}

func (h *asciiGridHandle) Path() string { return h.path }
func (h *asciiGridHandle) Bounds() orb.Bound { return h.bounds }
func (h *asciiGridHandle) CRS() raster.CRS { return h.crs }
func (h *asciiGridHandle) ConcurrentSafe() bool { return true }

func (h *asciiGridHandle) Close() error {
	h.closed.Store(true)
	return nil
}

func (h *asciiGridHandle) ReadTile(maptile.Tile, int) (*raster.Tile, error) {
	return nil, fmt.Errorf("read tile %s: %w", h.path, raster.ErrNotRenderable)
}

func (h *asciiGridHandle) Sample(p orb.Point) (float64, error) {
	if h.closed.Load() {
		return math.NaN(), ErrClosed
	}
	h.once.Do(func() {
		f, err := os.Open(h.path)
		if err != nil {
			h.err = fmt.Errorf("open %s: %w", h.path, err)
			return
		}
		defer f.Close()
		_, h.values, h.err = parseASCIIGrid(f, false)
		if h.err != nil {
			h.err = fmt.Errorf("parse %s: %w", h.path, h.err)
		}
	})
	if h.err != nil {
		return math.NaN(), h.err
	}

	col, row, ok := h.gt.toPixel(p)
	if !ok || col < 0 || row < 0 || col >= h.header.ncols || row >= h.header.nrows {
		return math.NaN(), nil
	}
	v := h.values[row*h.header.ncols+col]
	if h.header.hasNoData && v == h.header.noData {
		return math.NaN(), nil
	}
	return v, nil
}

// parseASCIIGrid reads the header and, unless headerOnly, the values in row
// major order starting at the top row.
func parseASCIIGrid(r io.Reader, headerOnly bool) (asciiHeader, []float64, error) {
	var h asciiHeader
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	scanner.Split(bufio.ScanWords)

	var first string
	seen := map[string]bool{}
	for scanner.Scan() {
		key := strings.ToLower(scanner.Text())
		if key == "" || !isHeaderKey(key) {
			first = scanner.Text()
			break
		}
		if !scanner.Scan() {
			return h, nil, fmt.Errorf("missing value for %s", key)
		}
		val := scanner.Text()
		seen[key] = true

		var err error
		switch key {
		case "ncols":
			h.ncols, err = strconv.Atoi(val)
		case "nrows":
			h.nrows, err = strconv.Atoi(val)
		case "xllcorner", "xllcenter":
			h.xll, err = strconv.ParseFloat(val, 64)
			h.center = key == "xllcenter"
		case "yllcorner", "yllcenter":
			h.yll, err = strconv.ParseFloat(val, 64)
		case "cellsize":
			h.cellSize, err = strconv.ParseFloat(val, 64)
		case "nodata_value":
			h.noData, err = strconv.ParseFloat(val, 64)
			h.hasNoData = true
		}
		if err != nil {
			return h, nil, fmt.Errorf("header %s: %w", key, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return h, nil, err
	}

	for _, k := range []string{"ncols", "nrows", "cellsize"} {
		if !seen[k] {
			return h, nil, fmt.Errorf("missing header %s", k)
		}
	}
	if h.ncols <= 0 || h.nrows <= 0 || h.cellSize <= 0 {
		return h, nil, fmt.Errorf("invalid grid size %dx%d cell %v", h.ncols, h.nrows, h.cellSize)
	}
	if headerOnly {
		return h, nil, nil
	}

	n := h.ncols * h.nrows
	values := make([]float64, 0, n)
	tok := first
	for len(values) < n {
		if tok == "" {
			if !scanner.Scan() {
				break
			}
			tok = scanner.Text()
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return h, nil, fmt.Errorf("value %d: %w", len(values), err)
		}
		values = append(values, v)
		tok = ""
	}
	if len(values) != n {
		return h, nil, fmt.Errorf("expected %d values, got %d", n, len(values))
	}
	return h, values, nil
}

func isHeaderKey(s string) bool {
	switch s {
	case "ncols", "nrows", "xllcorner", "xllcenter", "yllcorner", "yllcenter", "cellsize", "nodata_value":
		return true
	}
	return false
}
