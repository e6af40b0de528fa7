package main

import (
	"fmt"
	"log"

	"github.com/beetlebugorg/cogtiles/pkg/cogtiles"
)

func main() {
	colls, err := cogtiles.LoadCollections("./data",
		[]cogtiles.Kind{cogtiles.KindBathy, cogtiles.KindPredDrone},
		cogtiles.DefaultOptions())
	if err != nil {
		log.Fatal(err)
	}
	defer colls.Close()

	lon, lat := 151.9142, -23.4421

	// Depth from the bathymetry companion rasters
	depth, ok, err := colls.SamplePoint(cogtiles.KindBathy, "2023", "", lon, lat)
	if err != nil {
		log.Fatal(err)
	}
	if ok {
		fmt.Printf("Depth at %.4f, %.4f: %.2f m (%s)\n", lon, lat, depth.Value, depth.Source)
	} else {
		fmt.Printf("No depth at %.4f, %.4f\n", lon, lat)
	}

	// Habitat class from the drone predictions
	habitat, ok, err := colls.SamplePoint(cogtiles.KindPredDrone, "2023", "", lon, lat)
	if err != nil {
		log.Fatal(err)
	}
	if ok {
		fmt.Printf("Habitat: %s\n", habitat.Label)
	}
}
