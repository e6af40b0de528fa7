package cogtiles

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/beetlebugorg/cogtiles/pkg/raster"
)

// DefaultCacheCapacity is the number of open handles kept per partition.
const DefaultCacheCapacity = 32

// ReaderCache keeps a bounded set of open raster handles, one per path, and
// evicts the least recently used handle when full.
//
// All bookkeeping happens under a single mutex; decoding happens on the
// handle after the mutex is released. A handle that is evicted while a
// request still holds it is closed when that request releases it.
//
// Example:
//
//	cache := cogtiles.NewReaderCache("ortho/2023", geoimage.New(), 32, nil, nil)
//	defer cache.Clear()
//
//	r, err := cache.Get("/data/ortho/2023/reef_ASV.tif")
//	if err != nil {
//	    return err
//	}
//	defer r.Release()
//	tile, err := r.ReadTile(maptile.New(3778, 2269, 12), 256)
type ReaderCache struct {
	name     string
	opener   raster.Opener
	capacity int
	logger   *slog.Logger
	metrics  *Metrics

	mu      sync.Mutex
	entries *orderedmap.OrderedMap[string, *cacheEntry] // oldest first
	stats   CacheStats
}

// cacheEntry is one open handle. leases and evicted are guarded by the
// cache mutex.
type cacheEntry struct {
	handle     raster.Handle
	concurrent bool
	decodeMu   sync.Mutex // serialises reads on handles that are not concurrent-safe
	leases     int
	evicted    bool
}

// CacheStats holds reader cache counters.
type CacheStats struct {
	Entries       int    // Handles currently cached
	Capacity      int    // Maximum number of cached handles
	Hits          uint64 // Lookups served from the cache
	Misses        uint64 // Lookups that opened a file
	Evictions     uint64 // Handles evicted to respect the capacity
	CloseFailures uint64 // Handles that failed to close
}

// NewReaderCache creates a cache opening files with opener. name labels the
// cache in logs and metrics. A capacity below 1 uses DefaultCacheCapacity.
// logger and metrics may be nil.
func NewReaderCache(name string, opener raster.Opener, capacity int, logger *slog.Logger, metrics *Metrics) *ReaderCache {
	if capacity < 1 {
		capacity = DefaultCacheCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReaderCache{
		name:     name,
		opener:   opener,
		capacity: capacity,
		logger:   logger,
		metrics:  metrics,
		entries:  orderedmap.New[string, *cacheEntry](),
	}
}

// Get returns a reader for path, opening the file on a miss. The caller must
// Release the reader when done with it.
//
// A hit marks the handle as most recently used. A miss that grows the cache
// beyond its capacity evicts the least recently used handle; a failure to
// close it is logged, not returned.
func (c *ReaderCache) Get(path string) (*Reader, error) {
	c.mu.Lock()

	if entry, ok := c.entries.Get(path); ok {
		_ = c.entries.MoveToBack(path)
		entry.leases++
		c.stats.Hits++
		c.mu.Unlock()
		c.metrics.cacheHit(c.name)
		return &Reader{cache: c, entry: entry}, nil
	}

	handle, err := c.opener.Open(path)
	if err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("open raster: %w", err)
	}
	entry := &cacheEntry{
		handle:     handle,
		concurrent: raster.IsConcurrentSafe(handle),
		leases:     1,
	}
	c.entries.Set(path, entry)
	c.stats.Misses++

	var closing []raster.Handle
	for c.entries.Len() > c.capacity {
		oldest := c.entries.Oldest()
		c.entries.Delete(oldest.Key)
		c.stats.Evictions++
		c.metrics.cacheEvict(c.name)
		oldest.Value.evicted = true
		if oldest.Value.leases == 0 {
			closing = append(closing, oldest.Value.handle)
		}
	}
	size := c.entries.Len()
	c.mu.Unlock()

	c.metrics.cacheMiss(c.name)
	c.metrics.cacheSize(c.name, size)
	for _, h := range closing {
		c.closeHandle(h)
	}
	return &Reader{cache: c, entry: entry}, nil
}

// release returns one lease on entry and closes the handle if it was
// evicted and this was the last lease.
func (c *ReaderCache) release(entry *cacheEntry) {
	c.mu.Lock()
	entry.leases--
	closeNow := entry.evicted && entry.leases == 0
	c.mu.Unlock()

	if closeNow {
		c.closeHandle(entry.handle)
	}
}

func (c *ReaderCache) closeHandle(h raster.Handle) {
	if err := h.Close(); err != nil {
		c.mu.Lock()
		c.stats.CloseFailures++
		c.mu.Unlock()
		c.metrics.closeFailure(c.name)
		c.logger.Warn("reader_close_failed",
			"partition", c.name,
			"path", h.Path(),
			"error", err)
		return
	}
	c.logger.Debug("reader_closed", "partition", c.name, "path", h.Path())
}

// Clear closes every handle and empties the cache. Handles still held by
// readers are closed when released. Close failures are logged and returned
// together.
func (c *ReaderCache) Clear() error {
	c.mu.Lock()
	var closing []raster.Handle
	for pair := c.entries.Oldest(); pair != nil; pair = pair.Next() {
		pair.Value.evicted = true
		if pair.Value.leases == 0 {
			closing = append(closing, pair.Value.handle)
		}
	}
	c.entries = orderedmap.New[string, *cacheEntry]()
	c.mu.Unlock()

	c.metrics.cacheSize(c.name, 0)

	var errs []error
	for _, h := range closing {
		if err := h.Close(); err != nil {
			c.mu.Lock()
			c.stats.CloseFailures++
			c.mu.Unlock()
			c.metrics.closeFailure(c.name)
			c.logger.Warn("reader_close_failed", "partition", c.name, "path", h.Path(), "error", err)
			errs = append(errs, fmt.Errorf("close %s: %w", h.Path(), err))
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of cached handles.
func (c *ReaderCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Contains reports whether path has a cached handle. It does not change the
// recency order.
func (c *ReaderCache) Contains(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries.Get(path)
	return ok
}

// Paths returns the cached paths, least recently used first.
func (c *ReaderCache) Paths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	paths := make([]string, 0, c.entries.Len())
	for pair := c.entries.Oldest(); pair != nil; pair = pair.Next() {
		paths = append(paths, pair.Key)
	}
	return paths
}

// Capacity returns the maximum number of cached handles.
func (c *ReaderCache) Capacity() int {
	return c.capacity
}

// Stats returns a snapshot of the cache counters.
func (c *ReaderCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Entries = c.entries.Len()
	stats.Capacity = c.capacity
	return stats
}

// Reader is a leased cache handle. Reads on handles that are not
// concurrent-safe are serialised.
type Reader struct {
	cache    *ReaderCache
	entry    *cacheEntry
	released atomic.Bool
}

// Path returns the raster path.
func (r *Reader) Path() string { return r.entry.handle.Path() }

// Bounds returns the raster extent in its native CRS.
func (r *Reader) Bounds() orb.Bound { return r.entry.handle.Bounds() }

// CRS returns the native CRS.
func (r *Reader) CRS() raster.CRS { return r.entry.handle.CRS() }

// ReadTile renders tile t into a size x size buffer.
func (r *Reader) ReadTile(t maptile.Tile, size int) (*raster.Tile, error) {
	if !r.entry.concurrent {
		r.entry.decodeMu.Lock()
		defer r.entry.decodeMu.Unlock()
	}
	return r.entry.handle.ReadTile(t, size)
}

// Sample returns the value nearest to p, in the native CRS.
func (r *Reader) Sample(p orb.Point) (float64, error) {
	if !r.entry.concurrent {
		r.entry.decodeMu.Lock()
		defer r.entry.decodeMu.Unlock()
	}
	return r.entry.handle.Sample(p)
}

// Release returns the reader to the cache. Further calls do nothing.
func (r *Reader) Release() {
	if r.released.CompareAndSwap(false, true) {
		r.cache.release(r.entry)
	}
}
