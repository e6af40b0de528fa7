package main

import (
	"fmt"
	"log"

	"github.com/paulmach/orb"

	"github.com/beetlebugorg/cogtiles/pkg/cogtiles"
)

func main() {
	layout, err := cogtiles.LayoutFor(cogtiles.KindOrtho)
	if err != nil {
		log.Fatal(err)
	}

	// Build one partition directly
	p, err := cogtiles.BuildPartition("./data/ortho/2023", layout, cogtiles.DefaultOptions())
	if err != nil {
		log.Fatal(err)
	}
	defer p.Close()

	env := p.Index().Envelope()
	fmt.Printf("%d rasters covering [%.4f,%.4f] to [%.4f,%.4f]\n",
		p.Index().Len(), env.Min[0], env.Min[1], env.Max[0], env.Max[1])

	// Define viewport (Heron Reef area)
	viewport := orb.Bound{
		Min: orb.Point{151.85, -23.47},
		Max: orb.Point{151.98, -23.42},
	}

	// Query the R-tree, then sort: index order is unspecified
	assets := cogtiles.SortByPath(p.Index().Query(viewport))

	fmt.Printf("Visible rasters: %d\n", len(assets))
	for _, a := range assets {
		fmt.Printf("  %s\n", a.Name())
	}
}
