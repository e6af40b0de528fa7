package cogtiles

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/paulmach/orb"

	"github.com/beetlebugorg/cogtiles/pkg/raster"
)

// ValueKind is how the companion rasters of a collection are interpreted.
type ValueKind int

const (
	// NoValues collections have no data rasters and cannot be sampled.
	NoValues ValueKind = iota

	// Continuous values are returned as is (depth in metres, for example).
	Continuous

	// Classified values are class codes mapped through a LabelTable.
	Classified
)

func (k ValueKind) String() string {
	switch k {
	case NoValues:
		return "none"
	case Continuous:
		return "continuous"
	case Classified:
		return "classified"
	}
	return fmt.Sprintf("ValueKind(%d)", int(k))
}

// LabelTable maps class codes to names.
type LabelTable map[int]string

// CoralHabitatLabels are the classes of drone habitat predictions.
var CoralHabitatLabels = LabelTable{
	1: "Acropora Branching",
	2: "Acropora Tabular",
	3: "Non-acropora Massive",
	4: "Other Corals",
	5: "Sand",
}

// Lookup returns the label of v. Non-integral and unmapped values have none.
func (t LabelTable) Lookup(v float64) (string, bool) {
	if math.IsNaN(v) || v != math.Trunc(v) {
		return "", false
	}
	label, ok := t[int(v)]
	return label, ok
}

// Codes returns the mapped codes in ascending order.
func (t LabelTable) Codes() []int {
	codes := make([]int, 0, len(t))
	for code := range t {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	return codes
}

// Sample is the value found at a point.
type Sample struct {
	Lon    float64 `json:"lon"`
	Lat    float64 `json:"lat"`
	Asset  string  `json:"asset"`           // Colour raster found at the point
	Source string  `json:"source"`          // Data raster that was sampled
	Value  float64 `json:"value"`           // Raw sampled value
	Label  string  `json:"label,omitempty"` // Class name, for classified collections
}

// PointSampler samples the companion data rasters of one partition.
//
// Point samples are rare next to tile requests, so data rasters are opened
// for each sample and closed right after instead of going through the reader
// cache.
type PointSampler struct {
	index  *SpatialIndex
	opener raster.Opener
	values ValueKind
	labels LabelTable
	logger *slog.Logger
}

// NewPointSampler creates a sampler for the assets of index.
func NewPointSampler(index *SpatialIndex, opener raster.Opener, values ValueKind, labels LabelTable, logger *slog.Logger) *PointSampler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PointSampler{
		index:  index,
		opener: opener,
		values: values,
		labels: labels,
		logger: logger,
	}
}

// Sample returns the value at (lon, lat), in EPSG:4326. ok is false when the
// layout has no data rasters, no asset covers the point, the asset has no
// data raster, or the value is nodata or has no label.
//
// When several assets cover the point, the first by path is sampled.
func (s *PointSampler) Sample(lon, lat float64) (Sample, bool, error) {
	if s.values == NoValues {
		s.logger.Debug("sample_without_values", "lon", lon, "lat", lat)
		return Sample{}, false, nil
	}

	pt := orb.Point{lon, lat}
	candidates := SortByPath(s.index.Query(orb.Bound{Min: pt, Max: pt}))
	if len(candidates) == 0 {
		return Sample{}, false, nil
	}
	asset := candidates[0]
	if asset.Companion == "" || !fileExists(asset.Companion) {
		s.logger.Debug("sample_without_companion", "path", asset.Path)
		return Sample{}, false, nil
	}

	value, err := s.read(asset.Companion, pt)
	if err != nil {
		return Sample{}, false, fmt.Errorf("sample %s: %w", asset.Companion, err)
	}
	if math.IsNaN(value) {
		return Sample{}, false, nil
	}

	out := Sample{Lon: lon, Lat: lat, Asset: asset.Path, Source: asset.Companion, Value: value}
	if s.values == Classified {
		label, ok := s.labels.Lookup(value)
		if !ok {
			return Sample{}, false, nil
		}
		out.Label = label
	}
	return out, true, nil
}

// read samples path at pt, given in EPSG:4326.
func (s *PointSampler) read(path string, pt orb.Point) (float64, error) {
	h, err := s.opener.Open(path)
	if err != nil {
		return math.NaN(), err
	}
	defer func() {
		if err := h.Close(); err != nil {
			s.logger.Warn("reader_close_failed", "path", path, "error", err)
		}
	}()

	native, err := raster.ReprojectPoint(pt, raster.WGS84, h.CRS())
	if err != nil {
		return math.NaN(), err
	}
	return h.Sample(native)
}
