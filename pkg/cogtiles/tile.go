package cogtiles

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"github.com/beetlebugorg/cogtiles/pkg/raster"
)

// DefaultMarker names the assets that OrderMarkerFirst prioritises or drops.
const DefaultMarker = "ASV"

// TileRequest is a tile of the WebMercatorQuad scheme with its EPSG:4326
// bounds.
type TileRequest struct {
	Tile   maptile.Tile
	Bounds orb.Bound

	// WithASV puts marker assets first when set and drops them otherwise.
	// Only collections ordered by OrderMarkerFirst look at it.
	WithASV bool
}

// NewTileRequest returns the request for tile t.
func NewTileRequest(t maptile.Tile, withASV bool) TileRequest {
	return TileRequest{Tile: t, Bounds: t.Bound(), WithASV: withASV}
}

// OrderPolicy decides which candidates of a tile request are read, and in
// which order they are composited.
type OrderPolicy int

const (
	// OrderByPath sorts candidates by path.
	OrderByPath OrderPolicy = iota

	// OrderMarkerFirst puts candidates whose name contains the marker first
	// when the request asks for them, and drops them otherwise. Each group
	// is sorted by path.
	OrderMarkerFirst
)

func (p OrderPolicy) String() string {
	switch p {
	case OrderByPath:
		return "path"
	case OrderMarkerFirst:
		return "marker_first"
	}
	return fmt.Sprintf("OrderPolicy(%d)", int(p))
}

// Order returns the candidates to read for a request, in compositing order.
func (p OrderPolicy) Order(candidates []Asset, marker string, withMarker bool) []Asset {
	sorted := SortByPath(append([]Asset(nil), candidates...))
	if p != OrderMarkerFirst || marker == "" {
		return sorted
	}

	var marked, rest []Asset
	for _, a := range sorted {
		if strings.Contains(a.Name(), marker) {
			marked = append(marked, a)
		} else {
			rest = append(rest, a)
		}
	}
	if !withMarker {
		return rest
	}
	return append(marked, rest...)
}

// TileResolver renders tiles of one partition.
type TileResolver struct {
	index    *SpatialIndex
	cache    *ReaderCache
	order    OrderPolicy
	marker   string
	tileSize int
	skip     bool
	logger   *slog.Logger
}

// NewTileResolver creates a resolver reading assets of index through cache.
func NewTileResolver(index *SpatialIndex, cache *ReaderCache, order OrderPolicy, opts Options) *TileResolver {
	opts = opts.withDefaults()
	return &TileResolver{
		index:    index,
		cache:    cache,
		order:    order,
		marker:   opts.Marker,
		tileSize: opts.TileSize,
		skip:     opts.SkipFailedAssets,
		logger:   opts.Logger,
	}
}

// Candidates returns the assets a request would read, in compositing order.
func (r *TileResolver) Candidates(req TileRequest) []Asset {
	return r.order.Order(r.index.Query(req.Bounds), r.marker, req.WithASV)
}

// Resolve renders the tile of req. ok is false when no asset covers it.
//
// A failure to read one candidate fails the request, unless the resolver
// skips failed assets: then the failure is logged and the candidate left
// out.
func (r *TileResolver) Resolve(req TileRequest) (*raster.Tile, bool, error) {
	candidates := r.Candidates(req)
	if len(candidates) == 0 {
		return nil, false, nil
	}

	tiles := make([]*raster.Tile, 0, len(candidates))
	for _, asset := range candidates {
		tile, err := r.readTile(asset.Path, req.Tile)
		if err != nil {
			if !r.skip {
				return nil, false, fmt.Errorf("tile %d/%d/%d: %s: %w", req.Tile.Z, req.Tile.X, req.Tile.Y, asset.Path, err)
			}
			r.logger.Warn("tile_read_failed",
				"path", asset.Path,
				"z", req.Tile.Z, "x", req.Tile.X, "y", req.Tile.Y,
				"error", err)
			continue
		}
		tiles = append(tiles, tile)
	}
	if len(tiles) == 0 {
		return nil, false, nil
	}

	tile, err := Composite(tiles)
	if err != nil {
		return nil, false, err
	}
	return tile, true, nil
}

func (r *TileResolver) readTile(path string, t maptile.Tile) (*raster.Tile, error) {
	reader, err := r.cache.Get(path)
	if err != nil {
		return nil, err
	}
	defer reader.Release()

	tile, err := reader.ReadTile(t, r.tileSize)
	if err != nil {
		return nil, err
	}
	if tile == nil || tile.Image == nil {
		return nil, errors.New("raster returned an empty tile")
	}
	return tile, nil
}
