package geoimage

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"sync"
	"sync/atomic"

	"github.com/disintegration/imaging"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/project"

	"github.com/beetlebugorg/cogtiles/pkg/raster"
)

// imageHandle is an image file georeferenced by a world file.
type imageHandle struct {
	path   string
	crs    raster.CRS
	gt     geoTransform
	width  int
	height int
	bounds orb.Bound

	// Exactly one of values and pixels is set after decode. values keeps
	// gray and paletted images as decoded so samples see the stored value.
	once   sync.Once
	values image.Image
	pixels *image.NRGBA
	err    error
	closed atomic.Bool
}

// openImage reads the image header and world file. Pixels are decoded on
// first use.
func openImage(path string, crs raster.CRS) (*imageHandle, error) {
	wf, ok := findWorldFile(path)
	if !ok {
		return nil, fmt.Errorf("open %s: no world file", path)
	}
	gt, err := readWorldFile(wf)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	return &imageHandle{
		path:   path,
		crs:    crs,
		gt:     gt,
		width:  cfg.Width,
		height: cfg.Height,
		bounds: gt.extent(cfg.Width, cfg.Height),
	}, nil
}

func (h *imageHandle) Path() string { return h.path }
func (h *imageHandle) Bounds() orb.Bound { return h.bounds }
func (h *imageHandle) CRS() raster.CRS { return h.crs }
func (h *imageHandle) ConcurrentSafe() bool { return true }

func (h *imageHandle) Close() error {
	h.closed.Store(true)
	return nil
}

// decode loads the pixels once.
func (h *imageHandle) decode() error {
	if h.closed.Load() {
		return ErrClosed
	}
	h.once.Do(func() {
		f, err := os.Open(h.path)
		if err != nil {
			h.err = fmt.Errorf("open %s: %w", h.path, err)
			return
		}
		defer f.Close()

		img, _, err := image.Decode(f)
		if err != nil {
			h.err = fmt.Errorf("decode %s: %w", h.path, err)
			return
		}
		switch img.(type) {
		case *image.Gray, *image.Gray16, *image.Paletted:
			h.values = img
		default:
			h.pixels = imaging.Clone(img)
		}
	})
	return h.err
}

// ReadTile renders the tile by nearest neighbour resampling of the mercator
// pixel centres.
func (h *imageHandle) ReadTile(t maptile.Tile, size int) (*raster.Tile, error) {
	if size <= 0 {
		size = raster.DefaultTileSize
	}
	geo := t.Bound()
	merc := orb.Bound{
		Min: project.WGS84.ToMercator(geo.Min),
		Max: project.WGS84.ToMercator(geo.Max),
	}
	out := &raster.Tile{
		Image:  image.NewNRGBA(image.Rect(0, 0, size, size)),
		CRS:    raster.WebMercator,
		Bounds: merc,
	}

	native, err := raster.ReprojectBounds(merc, raster.WebMercator, h.crs)
	if err != nil {
		return nil, fmt.Errorf("read tile %s: %w", h.path, err)
	}
	if !native.Intersects(h.bounds) {
		return out, nil
	}

	if err := h.decode(); err != nil {
		return nil, err
	}
	toNative, err := raster.Transform(raster.WebMercator, h.crs)
	if err != nil {
		return nil, err
	}

	px := (merc.Max[0] - merc.Min[0]) / float64(size)
	py := (merc.Max[1] - merc.Min[1]) / float64(size)
	dst := out.Image.Pix
	for j := 0; j < size; j++ {
		y := merc.Max[1] - (float64(j)+0.5)*py
		for i := 0; i < size; i++ {
			x := merc.Min[0] + (float64(i)+0.5)*px
			col, row, ok := h.gt.toPixel(toNative(orb.Point{x, y}))
			if !ok || col < 0 || row < 0 || col >= h.width || row >= h.height {
				continue
			}
			d := j*out.Image.Stride + i*4
			if h.pixels != nil {
				s := row*h.pixels.Stride + col*4
				copy(dst[d:d+4], h.pixels.Pix[s:s+4])
				continue
			}
			c := h.valueColor(col, row)
			dst[d], dst[d+1], dst[d+2], dst[d+3] = c.R, c.G, c.B, c.A
		}
	}
	return out, nil
}

// Sample returns the first band of the pixel nearest to p. Gray and paletted
// images report the stored value; other images report the red channel.
// Transparent pixels are no data.
func (h *imageHandle) Sample(p orb.Point) (float64, error) {
	if err := h.decode(); err != nil {
		return math.NaN(), err
	}
	col, row, ok := h.gt.toPixel(p)
	if !ok || col < 0 || row < 0 || col >= h.width || row >= h.height {
		return math.NaN(), nil
	}

	if h.values != nil {
		o := h.values.Bounds().Min
		x, y := o.X+col, o.Y+row
		switch img := h.values.(type) {
		case *image.Gray:
			return float64(img.GrayAt(x, y).Y), nil
		case *image.Gray16:
			return float64(img.Gray16At(x, y).Y), nil
		case *image.Paletted:
			return float64(img.ColorIndexAt(x, y)), nil
		}
	}

	c := h.pixels.NRGBAAt(col, row)
	if c.A == 0 {
		return math.NaN(), nil
	}
	return float64(c.R), nil
}

// valueColor returns the colour of a gray or paletted pixel.
func (h *imageHandle) valueColor(col, row int) color.NRGBA {
	o := h.values.Bounds().Min
	return color.NRGBAModel.Convert(h.values.At(o.X+col, o.Y+row)).(color.NRGBA)
}
