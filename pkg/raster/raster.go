// Package raster defines the contract between the tile engine and the library
// that actually reads geo-referenced raster files.
//
// The engine never decodes pixels itself. It asks an Opener for a Handle,
// reads the handle's native bounds and coordinate reference system, and asks
// the handle to render a tile window or sample a single pixel. Any raster
// library can be plugged in by implementing Opener and Handle.
package raster

import (
	"errors"
	"image"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// DefaultTileSize is the edge length in pixels of a rendered tile.
const DefaultTileSize = 256

// ErrNotRenderable is returned by Handle.ReadTile for rasters that hold raw
// values only (for example a depth grid) and cannot be drawn as RGBA.
var ErrNotRenderable = errors.New("raster holds values only and cannot be rendered")

// Handle is an open raster file.
//
// A handle is expensive to create (the file is opened and its metadata parsed)
// and cheap to reuse. Callers must Close it to release the underlying file.
type Handle interface {
	// Path returns the file the handle was opened from.
	Path() string

	// Bounds returns the raster extent in its native CRS.
	Bounds() orb.Bound

	// CRS returns the native coordinate reference system.
	CRS() CRS

	// ReadTile renders the WebMercatorQuad tile t into a size x size RGBA
	// buffer. The alpha channel is the data mask: 0 where the raster has no
	// data, non-zero elsewhere.
	ReadTile(t maptile.Tile, size int) (*Tile, error)

	// Sample returns the value of the pixel nearest to p, given in the native
	// CRS. NaN means no data (outside the raster or a nodata pixel).
	Sample(p orb.Point) (float64, error)

	// Close releases the file.
	Close() error
}

// ConcurrentSafe is implemented by handles that document whether ReadTile and
// Sample may be called from several goroutines at once. Handles that do not
// implement it are treated as unsafe.
type ConcurrentSafe interface {
	ConcurrentSafe() bool
}

// IsConcurrentSafe reports whether h tolerates concurrent reads.
func IsConcurrentSafe(h Handle) bool {
	cs, ok := h.(ConcurrentSafe)
	return ok && cs.ConcurrentSafe()
}

// Opener opens raster files.
type Opener interface {
	Open(path string) (Handle, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(path string) (Handle, error)

// Open calls f(path).
func (f OpenerFunc) Open(path string) (Handle, error) {
	return f(path)
}

// Tile is a decoded tile window: a fixed-size 4 channel pixel buffer tagged
// with the CRS and bounds it was rendered for.
type Tile struct {
	Image  *image.NRGBA
	CRS    CRS
	Bounds orb.Bound
}

// Size returns the width and height of the tile in pixels.
func (t *Tile) Size() (int, int) {
	b := t.Image.Bounds()
	return b.Dx(), b.Dy()
}

// Clone returns a deep copy of the tile.
func (t *Tile) Clone() *Tile {
	img := image.NewNRGBA(t.Image.Rect)
	copy(img.Pix, t.Image.Pix)
	return &Tile{Image: img, CRS: t.CRS, Bounds: t.Bounds}
}

// OpaquePixels counts pixels whose mask is non-zero.
func (t *Tile) OpaquePixels() int {
	n := 0
	pix := t.Image.Pix
	for i := 3; i < len(pix); i += 4 {
		if pix[i] != 0 {
			n++
		}
	}
	return n
}
