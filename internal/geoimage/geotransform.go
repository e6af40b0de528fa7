package geoimage

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// geoTransform maps pixel centres to CRS coordinates:
//
//	x = a*col + b*row + c
//	y = d*col + e*row + f
//
// (col, row) = (0, 0) is the centre of the upper-left pixel, which is the
// convention of ESRI world files.
type geoTransform struct {
	a, b, c float64
	d, e, f float64
}

// toCRS returns the CRS coordinate of a (fractional) pixel position.
func (g geoTransform) toCRS(col, row float64) orb.Point {
	return orb.Point{
		g.a*col + g.b*row + g.c,
		g.d*col + g.e*row + g.f,
	}
}

// toPixel returns the nearest pixel to p. ok is false when the transform is
// degenerate.
func (g geoTransform) toPixel(p orb.Point) (col, row int, ok bool) {
	det := g.a*g.e - g.b*g.d
	if det == 0 {
		return 0, 0, false
	}
	dx, dy := p[0]-g.c, p[1]-g.f
	fc := (g.e*dx - g.b*dy) / det
	fr := (-g.d*dx + g.a*dy) / det
	return int(math.Floor(fc + 0.5)), int(math.Floor(fr + 0.5)), true
}

// extent returns the box covering a width x height grid, pixel edges included.
func (g geoTransform) extent(width, height int) orb.Bound {
	w, h := float64(width)-0.5, float64(height)-0.5
	b := orb.Bound{Min: g.toCRS(-0.5, -0.5), Max: g.toCRS(-0.5, -0.5)}
	for _, p := range []orb.Point{g.toCRS(w, -0.5), g.toCRS(-0.5, h), g.toCRS(w, h)} {
		b = b.Extend(p)
	}
	return b
}

// readWorldFile parses the six lines of an ESRI world file:
// A (x size), D (y rotation), B (x rotation), E (y size), C (x), F (y).
func readWorldFile(path string) (geoTransform, error) {
	var g geoTransform
	f, err := os.Open(path)
	if err != nil {
		return g, err
	}
	defer f.Close()

	var vals []float64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return g, fmt.Errorf("world file %s line %d: %w", path, len(vals)+1, err)
		}
		vals = append(vals, v)
	}
	if err := scanner.Err(); err != nil {
		return g, err
	}
	if len(vals) != 6 {
		return g, fmt.Errorf("world file %s: expected 6 values, got %d", path, len(vals))
	}

	g = geoTransform{a: vals[0], d: vals[1], b: vals[2], e: vals[3], c: vals[4], f: vals[5]}
	if g.a*g.e-g.b*g.d == 0 {
		return g, fmt.Errorf("world file %s: degenerate transform", path)
	}
	return g, nil
}

// worldFileCandidates lists the sidecar names tried for an image, following
// the usual conventions: first and last letter of the extension plus "w"
// (.tfw, .pgw, .jgw), the extension plus "w" (.tifw), and .wld.
func worldFileCandidates(path string) []string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	e := strings.TrimPrefix(ext, ".")

	var exts []string
	if len(e) >= 2 {
		exts = append(exts, string(e[0])+string(e[len(e)-1])+"w")
	}
	exts = append(exts, e+"w", "wld")

	var out []string
	for _, x := range exts {
		out = append(out, stem+"."+strings.ToLower(x), stem+"."+strings.ToUpper(x))
	}
	return out
}

// findWorldFile returns the first existing world file for an image.
func findWorldFile(path string) (string, bool) {
	for _, c := range worldFileCandidates(path) {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, true
		}
	}
	return "", false
}
