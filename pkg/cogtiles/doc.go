// Package cogtiles resolves map tiles and point samples against large,
// scattered collections of geo-referenced raster files.
//
// Rasters are grouped into partitions (one per collection kind and year, and
// optionally per species). Each partition owns a spatial index of its assets
// and a bounded LRU cache of open raster handles, so only the files a request
// actually touches are ever opened.
//
// # Quick Start
//
//	colls, err := cogtiles.LoadCollections("./data",
//	    []cogtiles.Kind{cogtiles.KindBathy, cogtiles.KindOrtho},
//	    cogtiles.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer colls.Close()
//
//	req := cogtiles.NewTileRequest(maptile.New(3778, 2269, 12), false)
//	tile, ok, err := colls.ResolveTile(cogtiles.KindOrtho, "2023", "", req)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !ok {
//	    // no data: serve a transparent placeholder
//	}
//
// # Tiles
//
// A tile request queries the partition's index with the tile bounds, orders
// the candidates deterministically (by path, or with marker assets first),
// reads the tile window from each through the reader cache and composites
// them first-writer-wins: a pixel keeps the colour of the first candidate
// that has data there.
//
// # Points
//
// A point sample queries the index with a zero-area box, picks the first
// candidate in path order, opens its companion data file directly and
// samples the nearest pixel. Classified rasters map the value through a
// label table.
//
// # No data
//
// Requests that cannot be resolved (nothing intersects, unknown year or
// species, no companion file, nodata pixel) return ok == false and a nil
// error. Errors are reserved for I/O and decode failures.
//
// # Thread Safety
//
// Collections, partitions, indexes and caches are safe for concurrent use.
// Indexes are immutable once built; each cache is guarded by its own mutex.
package cogtiles
