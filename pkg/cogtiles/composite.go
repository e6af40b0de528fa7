package cogtiles

import (
	"errors"
	"fmt"

	"github.com/beetlebugorg/cogtiles/pkg/raster"
)

// Composite merges tiles in order, first writer wins: each pixel takes its
// colour and mask from the first tile whose mask is non-zero there. Pixels
// are copied, never blended.
//
// The result carries the CRS and bounds of the first tile. A single tile is
// returned unchanged. All tiles must have the same size.
func Composite(tiles []*raster.Tile) (*raster.Tile, error) {
	if len(tiles) == 0 {
		return nil, errors.New("composite: no tiles")
	}
	if len(tiles) == 1 {
		return tiles[0], nil
	}

	w, h := tiles[0].Size()
	for i, t := range tiles[1:] {
		if tw, th := t.Size(); tw != w || th != h {
			return nil, fmt.Errorf("composite: tile %d is %dx%d, want %dx%d", i+1, tw, th, w, h)
		}
	}

	out := tiles[0].Clone()
	dst := out.Image
	for _, t := range tiles[1:] {
		src := t.Image
		for y := 0; y < h; y++ {
			drow := dst.Pix[y*dst.Stride : y*dst.Stride+w*4]
			srow := src.Pix[y*src.Stride : y*src.Stride+w*4]
			for x := 3; x < len(drow); x += 4 {
				if drow[x] == 0 {
					copy(drow[x-3:x+1], srow[x-3:x+1])
				}
			}
		}
	}
	return out, nil
}
