package raster

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// densifyPoints is the number of points sampled along each edge when a box is
// reprojected, so that curved edges in the target CRS are enclosed.
const densifyPoints = 21

// Transform returns the point transform from one CRS to another. Only the
// identity and EPSG:4326 <-> EPSG:3857 are supported.
func Transform(from, to CRS) (orb.Projection, error) {
	switch {
	case from == to:
		return func(p orb.Point) orb.Point { return p }, nil
	case from == WGS84 && to == WebMercator:
		return project.WGS84.ToMercator, nil
	case from == WebMercator && to == WGS84:
		return project.Mercator.ToWGS84, nil
	}
	return nil, fmt.Errorf("no transform from %s to %s", from, to)
}

// ReprojectPoint transforms p from one CRS to another.
func ReprojectPoint(p orb.Point, from, to CRS) (orb.Point, error) {
	proj, err := Transform(from, to)
	if err != nil {
		return orb.Point{}, err
	}
	return proj(p), nil
}

// ReprojectBounds transforms a box from one CRS to another and returns the
// smallest box enclosing the result. Edges are densified so the enclosing box
// stays correct when straight edges become curves.
func ReprojectBounds(b orb.Bound, from, to CRS) (orb.Bound, error) {
	proj, err := Transform(from, to)
	if err != nil {
		return orb.Bound{}, err
	}
	if from == to {
		return b, nil
	}

	out := orb.Bound{
		Min: orb.Point{math.Inf(1), math.Inf(1)},
		Max: orb.Point{math.Inf(-1), math.Inf(-1)},
	}
	dx := (b.Max[0] - b.Min[0]) / float64(densifyPoints-1)
	dy := (b.Max[1] - b.Min[1]) / float64(densifyPoints-1)
	for i := 0; i < densifyPoints; i++ {
		x := b.Min[0] + float64(i)*dx
		y := b.Min[1] + float64(i)*dy
		for _, p := range []orb.Point{
			{x, b.Min[1]}, {x, b.Max[1]},
			{b.Min[0], y}, {b.Max[0], y},
		} {
			out = out.Extend(proj(p))
		}
	}
	return out, nil
}
