package cogtiles

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/beetlebugorg/cogtiles/pkg/raster"
)

// YearManager holds the partitions of one year of a collection: a single
// partition, or one per species for species partitioned kinds.
type YearManager struct {
	year      string
	partition *Partition
	species   map[string]*Partition
}

// NewYearManager builds the partitions of the year directory dir.
func NewYearManager(kind Kind, dir string, layout Layout, opts Options) (*YearManager, error) {
	opts = opts.withDefaults()
	layout = opts.layout(layout)
	year := filepath.Base(dir)
	name := kind.String() + "/" + year

	cat, err := LoadCatalog(dir, layout)
	if err != nil {
		return nil, err
	}

	ym := &YearManager{year: year}
	if !layout.BySpecies {
		ym.partition, err = newPartition(name, cat, layout, opts)
		if err != nil {
			return nil, err
		}
		return ym, nil
	}

	groups := cat.GroupBySpecies()
	if len(groups) == 0 {
		return nil, &ConstructionError{Partition: dir, Err: fmt.Errorf("%w: no file carries a species token", ErrEmptyCatalog)}
	}
	ym.species = make(map[string]*Partition, len(groups))
	for _, species := range sortedKeys(groups) {
		p, err := newPartition(name+"/"+species, groups[species], layout, opts)
		if err != nil {
			return nil, err
		}
		ym.species[species] = p
	}
	return ym, nil
}

// Year returns the year label.
func (y *YearManager) Year() string { return y.year }

// Partition returns the partition serving species. Species is ignored for
// years that are not partitioned by species.
func (y *YearManager) Partition(species string) (*Partition, bool) {
	if y.species == nil {
		return y.partition, y.partition != nil
	}
	p, ok := y.species[species]
	return p, ok
}

// Species lists the species of the year, sorted. It is empty for years that
// are not partitioned by species.
func (y *YearManager) Species() []string {
	return sortedKeys(y.species)
}

// Partitions returns every partition of the year.
func (y *YearManager) Partitions() []*Partition {
	if y.species == nil {
		return []*Partition{y.partition}
	}
	out := make([]*Partition, 0, len(y.species))
	for _, species := range y.Species() {
		out = append(out, y.species[species])
	}
	return out
}

// Close closes every partition.
func (y *YearManager) Close() error {
	var errs []error
	for _, p := range y.Partitions() {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CollectionManager serves one collection kind: one YearManager per
// sub-directory of the collection directory.
type CollectionManager struct {
	kind   Kind
	dir    string
	layout Layout
	years  map[string]*YearManager
	logger *slog.Logger
}

// NewCollectionManager builds every year of the collection stored in
// root/<kind>. Years are built concurrently; any failure is fatal.
func NewCollectionManager(root string, kind Kind, opts Options) (*CollectionManager, error) {
	opts = opts.withDefaults()
	layout, err := LayoutFor(kind)
	if err != nil {
		return nil, err
	}
	layout = opts.layout(layout)

	dir := filepath.Join(root, kind.String())
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &ConstructionError{Partition: dir, Err: ErrMissingDirectory}
		}
		return nil, &ConstructionError{Partition: dir, Err: err}
	}

	m := &CollectionManager{
		kind:   kind,
		dir:    dir,
		layout: layout,
		years:  make(map[string]*YearManager),
		logger: opts.Logger,
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		yearDir := filepath.Join(dir, entry.Name())
		g.Go(func() error {
			ym, err := NewYearManager(kind, yearDir, layout, opts)
			if err != nil {
				return err
			}
			mu.Lock()
			m.years[ym.Year()] = ym
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(m.years) == 0 {
		opts.Logger.Warn("collection_without_years", "kind", kind.String(), "dir", dir)
	}
	opts.Logger.Info("collection_loaded", "kind", kind.String(), "years", len(m.years))
	return m, nil
}

// Kind returns the collection kind.
func (m *CollectionManager) Kind() Kind { return m.kind }

// Layout returns the collection layout.
func (m *CollectionManager) Layout() Layout { return m.layout }

// Years lists the years of the collection, sorted.
func (m *CollectionManager) Years() []string {
	return sortedKeys(m.years)
}

// Year returns the manager of one year.
func (m *CollectionManager) Year(year string) (*YearManager, bool) {
	ym, ok := m.years[year]
	return ym, ok
}

// Species lists the species of one year, sorted.
func (m *CollectionManager) Species(year string) []string {
	ym, ok := m.years[year]
	if !ok {
		return nil
	}
	return ym.Species()
}

// Partition returns the partition serving year and species. Unknown years
// and species are logged and reported as missing.
func (m *CollectionManager) Partition(year, species string) (*Partition, bool) {
	ym, ok := m.years[year]
	if !ok {
		m.logger.Debug("year_not_found", "kind", m.kind.String(), "year", year)
		return nil, false
	}
	p, ok := ym.Partition(species)
	if !ok {
		m.logger.Debug("species_not_found", "kind", m.kind.String(), "year", year, "species", species)
		return nil, false
	}
	return p, true
}

// ResolveTile renders a tile of year (and species). Unknown years and species
// are no data.
func (m *CollectionManager) ResolveTile(year, species string, req TileRequest) (*raster.Tile, bool, error) {
	p, ok := m.Partition(year, species)
	if !ok {
		return nil, false, nil
	}
	return p.ResolveTile(req)
}

// SamplePoint samples year (and species) at (lon, lat). Unknown years and
// species are no data, and so is every point of a collection without data
// rasters.
func (m *CollectionManager) SamplePoint(year, species string, lon, lat float64) (Sample, bool, error) {
	if m.layout.Values == NoValues {
		m.logger.Debug("sample_without_values", "kind", m.kind.String(), "year", year)
		return Sample{}, false, nil
	}
	p, ok := m.Partition(year, species)
	if !ok {
		return Sample{}, false, nil
	}
	return p.SamplePoint(lon, lat)
}

// Partitions returns every partition of the collection, by year then species.
func (m *CollectionManager) Partitions() []*Partition {
	var out []*Partition
	for _, year := range m.Years() {
		out = append(out, m.years[year].Partitions()...)
	}
	return out
}

// Close closes every partition.
func (m *CollectionManager) Close() error {
	var errs []error
	for _, year := range m.Years() {
		if err := m.years[year].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
