package cogtiles

import (
	"fmt"
	"io"
	"runtime"
	"sync"

	"github.com/paulmach/orb"

	"github.com/beetlebugorg/cogtiles/pkg/raster"
)

// LoadOptions controls how asset metadata is read while an index is built.
type LoadOptions struct {
	// Workers is the number of files opened concurrently.
	// If 0, defaults to runtime.NumCPU().
	Workers int

	// SkipErrors leaves out assets that cannot be opened instead of failing
	// the build. The build still fails if no asset remains.
	SkipErrors bool

	// Progress is an optional callback called after each file is processed,
	// successfully or not.
	Progress func(loaded, total int)

	// ErrorLog is an optional writer receiving one line per failed file.
	ErrorLog io.Writer
}

// probeResult is the metadata read from one asset.
type probeResult struct {
	index  int
	bounds orb.Bound
	err    error
}

// probeAssets opens every path, reads its bounds and reprojects them to
// EPSG:4326. Results are returned in input order; failures are returned
// separately, each wrapped with its path.
func probeAssets(paths []string, opener raster.Opener, opts LoadOptions) ([]probeResult, []error) {
	if len(paths) == 0 {
		return nil, nil
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(paths) {
		workers = len(paths)
	}

	jobs := make(chan int, len(paths))
	results := make(chan probeResult, len(paths))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range jobs {
				bounds, err := probeAsset(paths[index], opener)
				results <- probeResult{index: index, bounds: bounds, err: err}
			}
		}()
	}

	for i := range paths {
		jobs <- i
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]*probeResult, len(paths))
	loaded := 0
	for result := range results {
		loaded++
		if opts.Progress != nil {
			opts.Progress(loaded, len(paths))
		}
		result := result
		ordered[result.index] = &result
	}

	var (
		out  []probeResult
		errs []error
	)
	for i, r := range ordered {
		if r.err != nil {
			err := fmt.Errorf("%s: %w", paths[i], r.err)
			if opts.ErrorLog != nil {
				fmt.Fprintf(opts.ErrorLog, "Error opening raster: %v\n", err)
			}
			errs = append(errs, err)
			continue
		}
		out = append(out, *r)
	}
	return out, errs
}

// probeAsset reads the EPSG:4326 box of one raster.
func probeAsset(path string, opener raster.Opener) (orb.Bound, error) {
	h, err := opener.Open(path)
	if err != nil {
		return orb.Bound{}, err
	}
	defer h.Close()

	bounds, err := raster.ReprojectBounds(h.Bounds(), h.CRS(), raster.WGS84)
	if err != nil {
		return orb.Bound{}, fmt.Errorf("reproject bounds: %w", err)
	}
	return bounds, nil
}
