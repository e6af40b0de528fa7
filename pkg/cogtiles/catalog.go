package cogtiles

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Catalog lists the raster files of one partition directory.
type Catalog struct {
	Dir        string
	Paths      []string          // Assets, sorted
	Companions map[string]string // Asset path -> companion path
}

// LoadCatalog enumerates the assets of dir according to layout.
//
// The directory is not searched recursively. When the layout pairs colour and
// data rasters, every colour raster must have its companion on disk: a
// missing companion fails the whole catalog.
func LoadCatalog(dir string, layout Layout) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &ConstructionError{Partition: dir, Err: ErrMissingDirectory}
		}
		return nil, &ConstructionError{Partition: dir, Err: err}
	}

	cat := &Catalog{Dir: dir, Companions: make(map[string]string)}
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if !hasExtension(name, layout.Extensions) {
			continue
		}
		if layout.HasCompanions() && !strings.Contains(name, layout.ColorToken) {
			continue
		}

		path := filepath.Join(dir, name)
		if layout.HasCompanions() {
			companion, ok := CompanionPath(path, layout)
			if !ok {
				return nil, &ConstructionError{Partition: dir, Path: path, Err: ErrMissingCompanion}
			}
			cat.Companions[path] = companion
		}
		cat.Paths = append(cat.Paths, path)
	}

	if len(cat.Paths) == 0 {
		return nil, &ConstructionError{Partition: dir, Err: ErrEmptyCatalog}
	}
	sort.Strings(cat.Paths)
	return cat, nil
}

// CompanionPath returns the data raster paired with a colour raster and
// whether it exists on disk.
func CompanionPath(path string, layout Layout) (string, bool) {
	dir, name := filepath.Split(path)
	companion := filepath.Join(dir, strings.ReplaceAll(name, layout.ColorToken, layout.CompanionToken))
	if fileExists(companion) {
		return companion, true
	}

	stem := strings.TrimSuffix(companion, filepath.Ext(companion))
	for _, ext := range layout.CompanionExtensions {
		if alt := stem + ext; fileExists(alt) {
			return alt, true
		}
	}
	return companion, false
}

// SpeciesToken extracts the species from a file name of the form
// <date>_<site>_<species...>_<a>_<b>_<c>.<ext>: the underscore separated
// tokens between the second and the third from last.
//
//	SpeciesToken("2023_site_Acropora_branching_asv_pred_v1.tif") // "Acropora_branching"
func SpeciesToken(name string) string {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	parts := strings.Split(stem, "_")
	if len(parts) < 6 {
		return ""
	}
	return strings.Join(parts[2:len(parts)-3], "_")
}

// GroupBySpecies splits the catalog into one catalog per species token.
// Files without a species token are left out.
func (c *Catalog) GroupBySpecies() map[string]*Catalog {
	groups := make(map[string]*Catalog)
	for _, path := range c.Paths {
		species := SpeciesToken(path)
		if species == "" {
			continue
		}
		group, ok := groups[species]
		if !ok {
			group = &Catalog{Dir: c.Dir, Companions: make(map[string]string)}
			groups[species] = group
		}
		group.Paths = append(group.Paths, path)
		if companion, ok := c.Companions[path]; ok {
			group.Companions[path] = companion
		}
	}
	return groups
}

func hasExtension(name string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := filepath.Ext(name)
	for _, e := range exts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
