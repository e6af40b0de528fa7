package main

import (
	"errors"
	"fmt"
	"log"

	"github.com/paulmach/orb/maptile"

	"github.com/beetlebugorg/cogtiles/pkg/cogtiles"
)

func loadBathy(root string) (*cogtiles.Collections, error) {
	colls, err := cogtiles.LoadCollections(root, []cogtiles.Kind{cogtiles.KindBathy}, cogtiles.DefaultOptions())
	if err != nil {
		var cerr *cogtiles.ConstructionError
		switch {
		case errors.Is(err, cogtiles.ErrMissingDirectory):
			return nil, fmt.Errorf("no bathymetry under %s", root)
		case errors.Is(err, cogtiles.ErrMissingCompanion) && errors.As(err, &cerr):
			return nil, fmt.Errorf("%s has no depth raster", cerr.Path)
		case errors.Is(err, cogtiles.ErrEmptyCatalog):
			return nil, fmt.Errorf("a bathymetry year has no rasters: %w", err)
		}
		return nil, err
	}
	return colls, nil
}

func main() {
	colls, err := loadBathy("./data")
	if err != nil {
		log.Fatal(err)
	}
	defer colls.Close()

	// Unknown years are no data, not errors
	req := cogtiles.NewTileRequest(maptile.New(0, 0, 0), false)
	_, ok, err := colls.ResolveTile(cogtiles.KindBathy, "1850", "", req)
	fmt.Printf("Year 1850: data=%v err=%v\n", ok, err)

	// Collections without data rasters have no values to sample
	_, ok, err = colls.SamplePoint(cogtiles.KindOrtho, "2023", "", 151.9, -23.4)
	fmt.Printf("Ortho sample: data=%v err=%v\n", ok, err)

	// Try a root that does not exist
	_, err = loadBathy("./nowhere")
	if err != nil {
		log.Printf("Expected error: %v", err)
	}
}
