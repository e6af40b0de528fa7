package cogtiles

import (
	"fmt"
	"path/filepath"

	"github.com/paulmach/orb"

	"github.com/beetlebugorg/cogtiles/pkg/raster"
)

// TileSource serves tiles and point samples.
type TileSource interface {
	ResolveTile(req TileRequest) (*raster.Tile, bool, error)
	SamplePoint(lon, lat float64) (Sample, bool, error)
}

// Partition is the set of assets of one collection, year and optionally
// species. It owns the spatial index and reader cache of those assets.
type Partition struct {
	name   string
	dir    string
	layout Layout
	index  *SpatialIndex
	cache  *ReaderCache
	tiles  *TileResolver
	points *PointSampler
}

var _ TileSource = (*Partition)(nil)

// BuildPartition catalogs dir and indexes its assets. Any failure is fatal
// and returned as a *ConstructionError.
//
// Use it to serve a single directory without the collection hierarchy; the
// partition is named after the directory.
//
// Example:
//
//	layout, _ := cogtiles.LayoutFor(cogtiles.KindOrtho)
//	p, err := cogtiles.BuildPartition("/data/ortho/2023", layout, cogtiles.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	tile, ok, err := p.ResolveTile(cogtiles.NewTileRequest(maptile.New(3778, 2269, 12), true))
func BuildPartition(dir string, layout Layout, opts Options) (*Partition, error) {
	opts = opts.withDefaults()
	layout = opts.layout(layout)

	cat, err := LoadCatalog(dir, layout)
	if err != nil {
		return nil, err
	}
	return newPartition(filepath.Base(dir), cat, layout, opts)
}

// newPartition indexes the assets of cat. opts must have defaults applied.
func newPartition(name string, cat *Catalog, layout Layout, opts Options) (*Partition, error) {
	index, err := BuildIndex(cat.Paths, cat.Companions, opts.Opener, opts.Load)
	if err != nil {
		return nil, &ConstructionError{Partition: cat.Dir, Err: err}
	}

	cache := NewReaderCache(name, opts.Opener, opts.CacheCapacity, opts.Logger, opts.Metrics)
	p := &Partition{
		name:   name,
		dir:    cat.Dir,
		layout: layout,
		index:  index,
		cache:  cache,
		tiles:  NewTileResolver(index, cache, layout.Order, opts),
		points: NewPointSampler(index, opts.Opener, layout.Values, layout.Labels, opts.Logger),
	}
	opts.Logger.Info("partition_built",
		"partition", name,
		"dir", cat.Dir,
		"assets", index.Len())
	return p, nil
}

// Name returns the partition label, e.g. "ortho/2023".
func (p *Partition) Name() string { return p.name }

// Dir returns the partition directory.
func (p *Partition) Dir() string { return p.dir }

// Layout returns the partition layout.
func (p *Partition) Layout() Layout { return p.layout }

// Index returns the spatial index.
func (p *Partition) Index() *SpatialIndex { return p.index }

// Cache returns the reader cache.
func (p *Partition) Cache() *ReaderCache { return p.cache }

// ResolveTile renders a tile. ok is false when no asset covers it.
func (p *Partition) ResolveTile(req TileRequest) (*raster.Tile, bool, error) {
	return p.tiles.Resolve(req)
}

// Candidates returns the assets a tile request would read, in compositing
// order.
func (p *Partition) Candidates(req TileRequest) []Asset {
	return p.tiles.Candidates(req)
}

// SamplePoint samples the data raster at (lon, lat). Partitions without data
// rasters always report no data.
func (p *Partition) SamplePoint(lon, lat float64) (Sample, bool, error) {
	return p.points.Sample(lon, lat)
}

// PartitionStats summarises one partition.
type PartitionStats struct {
	Name     string     `json:"name"`
	Dir      string     `json:"dir"`
	Assets   int        `json:"assets"`
	Envelope orb.Bound  `json:"envelope"`
	Cache    CacheStats `json:"cache"`
}

// Stats returns a summary of the partition.
func (p *Partition) Stats() PartitionStats {
	return PartitionStats{
		Name:     p.name,
		Dir:      p.dir,
		Assets:   p.index.Len(),
		Envelope: p.index.Envelope(),
		Cache:    p.cache.Stats(),
	}
}

// Close closes every cached handle.
func (p *Partition) Close() error {
	if err := p.cache.Clear(); err != nil {
		return fmt.Errorf("close partition %s: %w", p.name, err)
	}
	return nil
}
