package cogtiles

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/beetlebugorg/cogtiles/pkg/raster"
)

// Collections is the entry point of the engine: every collection loaded from
// one data root. Build it once at startup and hand it to request handlers.
type Collections struct {
	root     string
	managers map[Kind]*CollectionManager
	metrics  *Metrics
	logger   *slog.Logger
}

// LoadCollections builds the collections of kinds stored under root.
// Each kind lives in root/<kind>, with one sub-directory per year. Kinds are
// built concurrently, and so are the years inside each kind.
//
// Construction is fatal: if any collection, year or species partition fails
// to build, nothing is returned. The error wraps a *ConstructionError, so
// errors.Is works against ErrMissingDirectory, ErrMissingCompanion and
// ErrEmptyCatalog.
//
// Example:
//
//	colls, err := cogtiles.LoadCollections("/data",
//	    []cogtiles.Kind{cogtiles.KindBathy, cogtiles.KindPredDrone},
//	    cogtiles.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer colls.Close()
//
//	s, ok, err := colls.SamplePoint(cogtiles.KindBathy, "2023", "", 151.91, -23.44)
//	if err == nil && ok {
//	    fmt.Printf("depth %.2f m\n", s.Value)
//	}
func LoadCollections(root string, kinds []Kind, opts Options) (*Collections, error) {
	opts = opts.withDefaults()
	if len(kinds) == 0 {
		return nil, errors.New("no collection kinds")
	}

	c := &Collections{
		root:     root,
		managers: make(map[Kind]*CollectionManager, len(kinds)),
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	seen := make(map[Kind]bool, len(kinds))
	for _, kind := range kinds {
		if seen[kind] {
			continue
		}
		seen[kind] = true
		g.Go(func() error {
			m, err := NewCollectionManager(root, kind, opts)
			if err != nil {
				return fmt.Errorf("load %s: %w", kind, err)
			}
			mu.Lock()
			c.managers[kind] = m
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return c, nil
}

// Root returns the data root.
func (c *Collections) Root() string { return c.root }

// Kinds lists the loaded collection kinds.
func (c *Collections) Kinds() []Kind {
	kinds := make([]Kind, 0, len(c.managers))
	for k := range c.managers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Manager returns the manager of one collection kind.
func (c *Collections) Manager(kind Kind) (*CollectionManager, bool) {
	m, ok := c.managers[kind]
	return m, ok
}

// ResolveTile renders a tile of a collection. species is only used by
// species partitioned kinds. ok is false when the kind is not loaded, the
// year or species is unknown, or no asset covers the tile.
func (c *Collections) ResolveTile(kind Kind, year, species string, req TileRequest) (tile *raster.Tile, ok bool, err error) {
	defer func(start time.Time) { c.metrics.observe(kind, "tile", start, ok, err) }(time.Now())
	m, loaded := c.managers[kind]
	if !loaded {
		c.logger.Debug("collection_not_loaded", "kind", kind.String())
		return nil, false, nil
	}
	return m.ResolveTile(year, species, req)
}

// SamplePoint samples a collection at (lon, lat).
func (c *Collections) SamplePoint(kind Kind, year, species string, lon, lat float64) (s Sample, ok bool, err error) {
	defer func(start time.Time) { c.metrics.observe(kind, "sample", start, ok, err) }(time.Now())
	m, loaded := c.managers[kind]
	if !loaded {
		c.logger.Debug("collection_not_loaded", "kind", kind.String())
		return Sample{}, false, nil
	}
	return m.SamplePoint(year, species, lon, lat)
}

// Years lists the years of a collection, sorted.
func (c *Collections) Years(kind Kind) []string {
	m, ok := c.managers[kind]
	if !ok {
		return nil
	}
	return m.Years()
}

// Species lists the species of one year of a collection, sorted.
func (c *Collections) Species(kind Kind, year string) []string {
	m, ok := c.managers[kind]
	if !ok {
		return nil
	}
	return m.Species(year)
}

// Stats summarises every partition, by kind, year and species.
func (c *Collections) Stats() []PartitionStats {
	var out []PartitionStats
	for _, kind := range c.Kinds() {
		for _, p := range c.managers[kind].Partitions() {
			out = append(out, p.Stats())
		}
	}
	return out
}

// Close closes every open raster handle.
func (c *Collections) Close() error {
	var errs []error
	for _, kind := range c.Kinds() {
		if err := c.managers[kind].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
