package cogtiles

import (
	"path/filepath"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
)

// minExtent is the size given to degenerate boxes in the R-tree, which
// rejects zero-length sides. Query results are filtered on the exact boxes.
const minExtent = 1e-9

// Asset is one raster file of a partition.
type Asset struct {
	Path      string    // Identity, unique within a partition
	GeoBounds orb.Bound // Extent in EPSG:4326, Min is west/south
	Companion string    // Data raster paired with this colour raster, if any
}

// Name returns the file name of the asset.
func (a Asset) Name() string {
	return filepath.Base(a.Path)
}

// Bounds implements rtreego.Spatial.
func (a Asset) Bounds() rtreego.Rect {
	return toRect(a.GeoBounds)
}

func toRect(b orb.Bound) rtreego.Rect {
	point := rtreego.Point{b.Min[0], b.Min[1]}
	lengths := []float64{
		max(b.Max[0]-b.Min[0], minExtent),
		max(b.Max[1]-b.Min[1], minExtent),
	}
	rect, _ := rtreego.NewRect(point, lengths)
	return rect
}

// SortByPath sorts assets in place by path and returns them.
func SortByPath(assets []Asset) []Asset {
	sort.Slice(assets, func(i, j int) bool {
		return assets[i].Path < assets[j].Path
	})
	return assets
}
