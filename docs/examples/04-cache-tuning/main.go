package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/paulmach/orb/maptile"

	"github.com/beetlebugorg/cogtiles/pkg/cogtiles"
)

func main() {
	opts := cogtiles.DefaultOptions()

	// Keep fewer rasters open per partition
	opts.CacheCapacity = 4

	// Skip rasters that fail to render instead of failing the tile
	opts.SkipFailedAssets = true

	// Open rasters with 8 workers while indexing
	opts.Load = cogtiles.LoadOptions{
		Workers: 8,
		Progress: func(loaded, total int) {
			fmt.Printf("\rIndexing: %d/%d", loaded, total)
		},
	}
	opts.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	colls, err := cogtiles.LoadCollections("./data", []cogtiles.Kind{cogtiles.KindOrtho}, opts)
	if err != nil {
		log.Fatal(err)
	}
	defer colls.Close()
	fmt.Println()

	// Walk a 4x4 block of tiles
	for x := uint32(3776); x < 3780; x++ {
		for y := uint32(2268); y < 2272; y++ {
			req := cogtiles.NewTileRequest(maptile.New(x, y, 12), true)
			if _, _, err := colls.ResolveTile(cogtiles.KindOrtho, "2023", "", req); err != nil {
				log.Printf("tile %d/%d: %v", x, y, err)
			}
		}
	}

	for _, s := range colls.Stats() {
		fmt.Printf("%s: %d/%d open, %d hits, %d misses, %d evictions\n",
			s.Name, s.Cache.Entries, s.Cache.Capacity,
			s.Cache.Hits, s.Cache.Misses, s.Cache.Evictions)
	}
}
