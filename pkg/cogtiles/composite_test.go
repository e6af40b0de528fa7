package cogtiles

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beetlebugorg/cogtiles/pkg/raster"
)

func assertFilled(t *testing.T, tile *raster.Tile, c color.NRGBA) {
	t.Helper()
	w, h := tile.Size()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if got := tile.Image.NRGBAAt(x, y); got != c {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got, c)
			}
		}
	}
}

func TestCompositeFirstOpaqueWins(t *testing.T) {
	first := filledTile(16, opaqueRed, box(0, 0, 1, 1))
	second := filledTile(16, opaqueBlue, box(0.5, 0.5, 1.5, 1.5))

	out, err := Composite([]*raster.Tile{first, second})
	require.NoError(t, err)
	assertFilled(t, out, opaqueRed)
	assert.Equal(t, box(0, 0, 1, 1), out.Bounds)

	out, err = Composite([]*raster.Tile{second, first})
	require.NoError(t, err)
	assertFilled(t, out, opaqueBlue)
	assert.Equal(t, box(0.5, 0.5, 1.5, 1.5), out.Bounds)
}

func TestCompositeTransparentFirst(t *testing.T) {
	first := filledTile(16, transparent, box(0, 0, 1, 1))
	second := filledTile(16, opaqueBlue, box(2, 2, 3, 3))

	out, err := Composite([]*raster.Tile{first, second})
	require.NoError(t, err)
	assert.Equal(t, second.Image.Pix, out.Image.Pix)
	assert.Equal(t, first.Bounds, out.Bounds)
	assert.Equal(t, first.CRS, out.CRS)
}

func TestCompositeFillsGaps(t *testing.T) {
	first := filledTile(4, opaqueRed, box(0, 0, 1, 1))
	for y := 0; y < 4; y++ {
		for x := 2; x < 4; x++ {
			first.Image.SetNRGBA(x, y, transparent)
		}
	}
	second := filledTile(4, color.NRGBA{G: 200, A: 128}, box(0, 0, 1, 1))
	third := filledTile(4, opaqueBlue, box(0, 0, 1, 1))

	out, err := Composite([]*raster.Tile{first, second, third})
	require.NoError(t, err)
	for y := 0; y < 4; y++ {
		assert.Equal(t, opaqueRed, out.Image.NRGBAAt(0, y))
		assert.Equal(t, opaqueRed, out.Image.NRGBAAt(1, y))
		assert.Equal(t, color.NRGBA{G: 200, A: 128}, out.Image.NRGBAAt(2, y), "no blending")
		assert.Equal(t, color.NRGBA{G: 200, A: 128}, out.Image.NRGBAAt(3, y))
	}

	// Inputs are left untouched.
	assert.Equal(t, transparent, first.Image.NRGBAAt(3, 0))
}

func TestCompositeSingleTile(t *testing.T) {
	only := filledTile(8, opaqueRed, box(0, 0, 1, 1))
	out, err := Composite([]*raster.Tile{only})
	require.NoError(t, err)
	assert.Same(t, only, out)
}

func TestCompositeErrors(t *testing.T) {
	_, err := Composite(nil)
	require.Error(t, err)

	_, err = Composite([]*raster.Tile{
		filledTile(8, opaqueRed, box(0, 0, 1, 1)),
		filledTile(16, opaqueBlue, box(0, 0, 1, 1)),
	})
	require.Error(t, err)
}
