// Package geoimage is a pure Go raster driver.
//
// It reads two kinds of files:
//
//   - TIFF, PNG and JPEG images georeferenced by an ESRI world file sidecar
//     (.tfw, .pgw, .jgw, .tifw, .wld). These render tiles and sample the
//     first band.
//   - ESRI ASCII grids (.asc), which carry their georeferencing in the header
//     and hold floating point values. These sample only.
//
// The CRS comes from a .prj sidecar when present (authority code or WKT) and
// falls back to Driver.DefaultCRS.
//
// Handles are safe for concurrent use: pixels are decoded once, on first
// access, and are read-only afterwards.
package geoimage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/beetlebugorg/cogtiles/pkg/raster"

	// Registers the TIFF decoder with image.Decode.
	_ "golang.org/x/image/tiff"
)

// ErrClosed is returned when a closed handle is used.
var ErrClosed = errors.New("raster handle closed")

// Driver opens raster files. The zero value is ready to use and assumes
// EPSG:4326 for files without a .prj sidecar.
type Driver struct {
	// DefaultCRS is used when no .prj sidecar exists.
	DefaultCRS raster.CRS
}

// New returns a driver with default settings.
func New() *Driver {
	return &Driver{DefaultCRS: raster.WGS84}
}

// Open implements raster.Opener.
func (d *Driver) Open(path string) (raster.Handle, error) {
	crs, err := d.readCRS(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".asc":
		return openASCIIGrid(path, crs)
	case ".tif", ".tiff", ".png", ".jpg", ".jpeg":
		return openImage(path, crs)
	}
	return nil, fmt.Errorf("open %s: unsupported raster format", path)
}

// readCRS reads the .prj sidecar of path.
func (d *Driver) readCRS(path string) (raster.CRS, error) {
	prj := strings.TrimSuffix(path, filepath.Ext(path)) + ".prj"
	data, err := os.ReadFile(prj)
	if errors.Is(err, os.ErrNotExist) {
		if d.DefaultCRS == "" {
			return raster.WGS84, nil
		}
		return d.DefaultCRS, nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", prj, err)
	}
	crs, err := raster.ParseCRS(string(data))
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", prj, err)
	}
	return crs, nil
}
