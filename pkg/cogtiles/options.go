package cogtiles

import (
	"log/slog"

	"github.com/beetlebugorg/cogtiles/internal/geoimage"
	"github.com/beetlebugorg/cogtiles/pkg/raster"
)

// Options configures partitions and collections.
type Options struct {
	// Opener opens raster files.
	// Default: the bundled world file / ASCII grid driver.
	Opener raster.Opener

	// CacheCapacity is the number of open handles kept per partition.
	// Default: 32
	CacheCapacity int

	// TileSize is the edge length of rendered tiles in pixels.
	// Default: 256
	TileSize int

	// Marker names the assets that marker-first collections prioritise when
	// a request asks for them and drop otherwise.
	// Default: "ASV"
	Marker string

	// Extensions overrides the file extensions of every layout.
	Extensions []string

	// SkipFailedAssets leaves out candidates that fail to render instead of
	// failing the tile request. Failures are logged.
	// Default: false
	SkipFailedAssets bool

	// Load controls how rasters are opened while indexes are built.
	Load LoadOptions

	// Logger receives structured logs. Default: slog.Default()
	Logger *slog.Logger

	// Metrics records cache and request metrics. Nil disables them.
	Metrics *Metrics
}

// DefaultOptions returns options with defaults.
func DefaultOptions() Options {
	return Options{
		Opener:        geoimage.New(),
		CacheCapacity: DefaultCacheCapacity,
		TileSize:      raster.DefaultTileSize,
		Marker:        DefaultMarker,
	}
}

// withDefaults fills unset fields. Marker is left alone: an empty marker
// disables marker ordering.
func (o Options) withDefaults() Options {
	if o.Opener == nil {
		o.Opener = geoimage.New()
	}
	if o.CacheCapacity <= 0 {
		o.CacheCapacity = DefaultCacheCapacity
	}
	if o.TileSize <= 0 {
		o.TileSize = raster.DefaultTileSize
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// layout applies option overrides to l.
func (o Options) layout(l Layout) Layout {
	if len(o.Extensions) > 0 {
		l.Extensions = o.Extensions
	}
	return l
}
