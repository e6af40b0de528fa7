package cogtiles

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/require"

	"github.com/beetlebugorg/cogtiles/pkg/raster"
)

var (
	opaqueRed   = color.NRGBA{R: 255, A: 255}
	opaqueBlue  = color.NRGBA{B: 255, A: 255}
	transparent = color.NRGBA{}
)

// fakeRaster describes what a fake handle reports.
type fakeRaster struct {
	bounds   orb.Bound
	crs      raster.CRS
	fill     color.NRGBA
	value    float64
	readErr  error
	closeErr error
}

// fakeOpener serves fake handles registered by path and records every
// handle it opens.
type fakeOpener struct {
	mu      sync.Mutex
	rasters map[string]fakeRaster
	handles []*fakeHandle
	openErr map[string]error
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{
		rasters: make(map[string]fakeRaster),
		openErr: make(map[string]error),
	}
}

func (o *fakeOpener) add(path string, r fakeRaster) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if r.crs == "" {
		r.crs = raster.WGS84
	}
	o.rasters[path] = r
}

func (o *fakeOpener) failOpen(path string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.openErr[path] = err
}

func (o *fakeOpener) Open(path string) (raster.Handle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err, ok := o.openErr[path]; ok {
		return nil, err
	}
	r, ok := o.rasters[path]
	if !ok {
		return nil, fmt.Errorf("no raster at %s", path)
	}
	h := &fakeHandle{path: path, r: r}
	o.handles = append(o.handles, h)
	return h, nil
}

// opens counts handles opened for path.
func (o *fakeOpener) opens(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, h := range o.handles {
		if h.path == path {
			n++
		}
	}
	return n
}

// openHandles returns the paths of handles not closed yet.
func (o *fakeOpener) openHandles() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	var paths []string
	for _, h := range o.handles {
		if !h.closed.Load() {
			paths = append(paths, h.path)
		}
	}
	return paths
}

// closedCount counts closed handles for path.
func (o *fakeOpener) closedCount(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, h := range o.handles {
		if h.path == path && h.closed.Load() {
			n++
		}
	}
	return n
}

type fakeHandle struct {
	path    string
	r       fakeRaster
	closed  atomic.Bool
	reading atomic.Int32
}

func (h *fakeHandle) Path() string      { return h.path }
func (h *fakeHandle) Bounds() orb.Bound { return h.r.bounds }
func (h *fakeHandle) CRS() raster.CRS   { return h.r.crs }

func (h *fakeHandle) ReadTile(_ maptile.Tile, size int) (*raster.Tile, error) {
	if h.reading.Add(1) > 1 {
		panic("concurrent read on a handle that is not concurrent-safe")
	}
	defer h.reading.Add(-1)

	if h.closed.Load() {
		return nil, fmt.Errorf("%s: read after close", h.path)
	}
	if h.r.readErr != nil {
		return nil, h.r.readErr
	}
	return filledTile(size, h.r.fill, h.r.bounds), nil
}

func (h *fakeHandle) Sample(orb.Point) (float64, error) {
	if h.closed.Load() {
		return 0, fmt.Errorf("%s: read after close", h.path)
	}
	return h.r.value, nil
}

func (h *fakeHandle) Close() error {
	h.closed.Store(true)
	return h.r.closeErr
}

func filledTile(size int, c color.NRGBA, bounds orb.Bound) *raster.Tile {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return &raster.Tile{Image: img, CRS: raster.WGS84, Bounds: bounds}
}

func box(w, s, e, n float64) orb.Bound {
	return orb.Bound{Min: orb.Point{w, s}, Max: orb.Point{e, n}}
}

// touch creates empty files under dir.
func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
}

// bufferLogger returns a debug logger writing text to the returned buffer.
func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
