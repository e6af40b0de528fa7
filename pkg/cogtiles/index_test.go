package cogtiles

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beetlebugorg/cogtiles/pkg/raster"
)

func paths(assets []Asset) []string {
	out := make([]string, len(assets))
	for i, a := range assets {
		out[i] = a.Path
	}
	return out
}

func overlappingIndex(t *testing.T) *SpatialIndex {
	t.Helper()
	idx, err := NewSpatialIndex([]Asset{
		{Path: "b.tif", GeoBounds: box(0.5, 0.5, 1.5, 1.5)},
		{Path: "a.tif", GeoBounds: box(0, 0, 1, 1)},
	})
	require.NoError(t, err)
	return idx
}

func TestSpatialIndexQuery(t *testing.T) {
	idx := overlappingIndex(t)

	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, box(0, 0, 1.5, 1.5), idx.Envelope())
	assert.Equal(t, []string{"a.tif", "b.tif"}, paths(idx.All()))

	tests := []struct {
		name  string
		query orb.Bound
		want  []string
	}{
		{"both", box(0.4, 0.4, 0.6, 0.6), []string{"a.tif", "b.tif"}},
		{"first only", box(0.1, 0.1, 0.2, 0.2), []string{"a.tif"}},
		{"second only", box(1.2, 1.2, 2, 2), []string{"b.tif"}},
		{"disjoint", box(5, 5, 6, 6), nil},
		{"disjoint inside envelope", box(1.1, 0.1, 1.4, 0.4), nil},
		{"point", box(0.2, 0.2, 0.2, 0.2), []string{"a.tif"}},
		{"point on shared edge", box(1, 1, 1, 1), []string{"a.tif", "b.tif"}},
		{"point on outer corner", box(1.5, 1.5, 1.5, 1.5), []string{"b.tif"}},
		{"touching box", box(1.5, 0, 2, 0.5), []string{"b.tif"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SortByPath(idx.Query(tt.query))
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, paths(got))
		})
	}
}

func TestSpatialIndexDegenerateAsset(t *testing.T) {
	idx, err := NewSpatialIndex([]Asset{{Path: "pin.tif", GeoBounds: box(3, 4, 3, 4)}})
	require.NoError(t, err)

	assert.Len(t, idx.Query(box(3, 4, 3, 4)), 1)
	assert.Len(t, idx.Query(box(2, 3, 5, 5)), 1)
	assert.Empty(t, idx.Query(box(3.1, 4, 3.1, 4)))
}

func TestNewSpatialIndexErrors(t *testing.T) {
	_, err := NewSpatialIndex(nil)
	require.ErrorIs(t, err, ErrEmptyCatalog)

	_, err = NewSpatialIndex([]Asset{
		{Path: "a.tif", GeoBounds: box(0, 0, 1, 1)},
		{Path: "a.tif", GeoBounds: box(2, 2, 3, 3)},
	})
	require.Error(t, err)
}

func TestBuildIndexReprojects(t *testing.T) {
	opener := newFakeOpener()
	merc := orb.Bound{
		Min: project.WGS84.ToMercator(orb.Point{146, -19}),
		Max: project.WGS84.ToMercator(orb.Point{147, -18}),
	}
	opener.add("merc.tif", fakeRaster{bounds: merc, crs: raster.WebMercator})
	opener.add("geo.tif", fakeRaster{bounds: box(150, -20, 151, -19)})

	idx, err := BuildIndex([]string{"merc.tif", "geo.tif"},
		map[string]string{"geo.tif": "geo_data.tif"},
		opener, LoadOptions{Workers: 2})
	require.NoError(t, err)

	all := idx.All()
	require.Len(t, all, 2)
	assert.Equal(t, "geo.tif", all[0].Path)
	assert.Equal(t, "geo_data.tif", all[0].Companion)
	assert.Equal(t, box(150, -20, 151, -19), all[0].GeoBounds)

	assert.Equal(t, "merc.tif", all[1].Path)
	assert.Empty(t, all[1].Companion)
	assert.InDelta(t, 146, all[1].GeoBounds.Min[0], 1e-9)
	assert.InDelta(t, -19, all[1].GeoBounds.Min[1], 1e-9)
	assert.InDelta(t, 147, all[1].GeoBounds.Max[0], 1e-9)
	assert.InDelta(t, -18, all[1].GeoBounds.Max[1], 1e-9)

	// Probing closes every handle.
	assert.Empty(t, opener.openHandles())
}

func TestBuildIndexOpenFailure(t *testing.T) {
	opener := newFakeOpener()
	opener.add("good.tif", fakeRaster{bounds: box(0, 0, 1, 1)})
	opener.failOpen("bad.tif", errors.New("corrupt header"))

	_, err := BuildIndex([]string{"good.tif", "bad.tif"}, nil, opener, LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.tif")
	assert.Contains(t, err.Error(), "corrupt header")

	var progress []int
	idx, err := BuildIndex([]string{"good.tif", "bad.tif"}, nil, opener, LoadOptions{
		Workers:    1,
		SkipErrors: true,
		Progress:   func(loaded, total int) { progress = append(progress, loaded) },
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"good.tif"}, paths(idx.All()))
	assert.Equal(t, []int{1, 2}, progress)

	_, err = BuildIndex([]string{"bad.tif"}, nil, opener, LoadOptions{SkipErrors: true})
	require.ErrorIs(t, err, ErrEmptyCatalog)

	_, err = BuildIndex(nil, nil, opener, LoadOptions{})
	require.ErrorIs(t, err, ErrEmptyCatalog)
}

func TestBuildIndexUnsupportedCRS(t *testing.T) {
	opener := newFakeOpener()
	opener.add("utm.tif", fakeRaster{bounds: box(500000, 7900000, 510000, 7910000), crs: "EPSG:32755"})

	_, err := BuildIndex([]string{"utm.tif"}, nil, opener, LoadOptions{})
	require.Error(t, err)
}
