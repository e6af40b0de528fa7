package raster

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReprojectPointRoundTrip(t *testing.T) {
	p := orb.Point{146.8, -19.2}

	merc, err := ReprojectPoint(p, WGS84, WebMercator)
	require.NoError(t, err)
	assert.InDelta(t, 16341701.248, merc[0], 1.0)

	back, err := ReprojectPoint(merc, WebMercator, WGS84)
	require.NoError(t, err)
	assert.InDelta(t, p[0], back[0], 1e-9)
	assert.InDelta(t, p[1], back[1], 1e-9)
}

func TestReprojectPointIdentity(t *testing.T) {
	p := orb.Point{500000, 7900000}
	got, err := ReprojectPoint(p, CRS("EPSG:32755"), CRS("EPSG:32755"))
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestReprojectUnsupported(t *testing.T) {
	_, err := ReprojectPoint(orb.Point{0, 0}, CRS("EPSG:32755"), WGS84)
	require.Error(t, err)

	_, err = ReprojectBounds(orb.Bound{Max: orb.Point{1, 1}}, WGS84, CRS("EPSG:2193"))
	require.Error(t, err)
}

func TestReprojectBoundsEnclosesCorners(t *testing.T) {
	b := orb.Bound{Min: orb.Point{146.0, -20.0}, Max: orb.Point{147.0, -19.0}}

	merc, err := ReprojectBounds(b, WGS84, WebMercator)
	require.NoError(t, err)

	back, err := ReprojectBounds(merc, WebMercator, WGS84)
	require.NoError(t, err)
	assert.InDelta(t, b.Min[0], back.Min[0], 1e-9)
	assert.InDelta(t, b.Min[1], back.Min[1], 1e-9)
	assert.InDelta(t, b.Max[0], back.Max[0], 1e-9)
	assert.InDelta(t, b.Max[1], back.Max[1], 1e-9)
}
