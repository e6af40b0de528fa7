package main

import (
	"fmt"
	"log"

	"github.com/paulmach/orb/maptile"

	"github.com/beetlebugorg/cogtiles/pkg/cogtiles"
)

func main() {
	// Load bathymetry and orthomosaics from ./data/bathy and ./data/ortho
	colls, err := cogtiles.LoadCollections("./data",
		[]cogtiles.Kind{cogtiles.KindBathy, cogtiles.KindOrtho},
		cogtiles.DefaultOptions())
	if err != nil {
		log.Fatal(err)
	}
	defer colls.Close()

	for _, kind := range colls.Kinds() {
		fmt.Printf("%s: years %v\n", kind, colls.Years(kind))
	}

	// Resolve one tile, ASV imagery first
	req := cogtiles.NewTileRequest(maptile.New(3778, 2269, 12), true)
	tile, ok, err := colls.ResolveTile(cogtiles.KindOrtho, "2023", "", req)
	if err != nil {
		log.Fatal(err)
	}
	if !ok {
		fmt.Println("No data for this tile")
		return
	}

	w, h := tile.Size()
	fmt.Printf("Tile: %dx%d, %d pixels with data\n", w, h, tile.OpaquePixels())
	fmt.Printf("Bounds: [%.4f,%.4f] to [%.4f,%.4f]\n",
		tile.Bounds.Min[0], tile.Bounds.Min[1],
		tile.Bounds.Max[0], tile.Bounds.Max[1])
}
