package cogtiles

import (
	"errors"
	"fmt"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"

	"github.com/beetlebugorg/cogtiles/pkg/raster"
)

// SpatialIndex answers box intersection queries over the assets of one
// partition.
//
// The index is built once and never modified, so queries need no locking.
type SpatialIndex struct {
	assets   []Asset
	envelope orb.Bound
	rtree    *rtreego.Rtree
}

// BuildIndex opens every raster, reprojects its bounds to EPSG:4326 and
// indexes it. companions maps colour rasters to their data rasters and may be
// nil.
//
// Rasters are opened by a pool of opts.Workers goroutines (NumCPU when
// zero) and closed again once their bounds are read; no handle outlives the
// build. Rasters in EPSG:3857 are reprojected with densified edges, so the
// indexed box covers the whole footprint.
//
// Any raster that cannot be opened fails the build unless opts.SkipErrors is
// set. Every failure is also written to opts.ErrorLog when it is non-nil. An
// empty path list, or nothing left after skipping, is an error.
//
// Example:
//
//	cat, err := cogtiles.LoadCatalog("/data/bathy/2023", layout)
//	if err != nil {
//	    return err
//	}
//	idx, err := cogtiles.BuildIndex(cat.Paths, cat.Companions, geoimage.New(), cogtiles.LoadOptions{
//	    Workers:    8,
//	    SkipErrors: true,
//	    ErrorLog:   os.Stderr,
//	})
//	if err != nil {
//	    return err
//	}
//	hits := idx.Query(orb.Bound{Min: orb.Point{151.85, -23.47}, Max: orb.Point{151.98, -23.42}})
func BuildIndex(paths []string, companions map[string]string, opener raster.Opener, opts LoadOptions) (*SpatialIndex, error) {
	if len(paths) == 0 {
		return nil, ErrEmptyCatalog
	}

	probed, errs := probeAssets(paths, opener, opts)
	if len(errs) > 0 && !opts.SkipErrors {
		return nil, errors.Join(errs...)
	}

	assets := make([]Asset, 0, len(probed))
	for _, p := range probed {
		path := paths[p.index]
		assets = append(assets, Asset{
			Path:      path,
			GeoBounds: p.bounds,
			Companion: companions[path],
		})
	}
	if len(assets) == 0 {
		return nil, fmt.Errorf("%w: %d of %d rasters failed to open", ErrEmptyCatalog, len(errs), len(paths))
	}
	return NewSpatialIndex(assets)
}

// NewSpatialIndex indexes assets whose GeoBounds are already in EPSG:4326.
func NewSpatialIndex(assets []Asset) (*SpatialIndex, error) {
	if len(assets) == 0 {
		return nil, ErrEmptyCatalog
	}

	// 2D, min=25 children, max=50 children
	rtree := rtreego.NewTree(2, 25, 50)
	envelope := assets[0].GeoBounds
	seen := make(map[string]bool, len(assets))
	for _, a := range assets {
		if seen[a.Path] {
			return nil, fmt.Errorf("duplicate asset %s", a.Path)
		}
		seen[a.Path] = true
		envelope = envelope.Union(a.GeoBounds)
		rtree.Insert(a)
	}

	return &SpatialIndex{
		assets:   SortByPath(append([]Asset(nil), assets...)),
		envelope: envelope,
		rtree:    rtree,
	}, nil
}

// Query returns every asset whose box intersects box, edges included. A
// zero-area box is a point lookup.
//
// The order of the result is unspecified; sort it before acting on it.
func (idx *SpatialIndex) Query(box orb.Bound) []Asset {
	if !idx.envelope.Intersects(box) {
		return nil
	}

	var result []Asset
	for _, spatial := range idx.rtree.SearchIntersect(queryRect(box)) {
		asset := spatial.(Asset)
		if asset.GeoBounds.Intersects(box) {
			result = append(result, asset)
		}
	}
	return result
}

// queryRect grows box slightly so that boxes touching it are found; the
// R-tree treats touching rectangles as disjoint.
func queryRect(box orb.Bound) rtreego.Rect {
	return toRect(orb.Bound{
		Min: orb.Point{box.Min[0] - minExtent, box.Min[1] - minExtent},
		Max: orb.Point{box.Max[0] + minExtent, box.Max[1] + minExtent},
	})
}

// Envelope returns the union of all asset boxes.
func (idx *SpatialIndex) Envelope() orb.Bound {
	return idx.envelope
}

// Len returns the number of indexed assets.
func (idx *SpatialIndex) Len() int {
	return len(idx.assets)
}

// All returns every asset, sorted by path.
func (idx *SpatialIndex) All() []Asset {
	return idx.assets
}
