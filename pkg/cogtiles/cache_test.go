package cogtiles

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/paulmach/orb/maptile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeOpenerWith(paths ...string) *fakeOpener {
	opener := newFakeOpener()
	for _, p := range paths {
		opener.add(p, fakeRaster{bounds: box(0, 0, 1, 1), fill: opaqueRed})
	}
	return opener
}

// access gets and immediately releases path.
func access(t *testing.T, c *ReaderCache, path string) {
	t.Helper()
	r, err := c.Get(path)
	require.NoError(t, err)
	assert.Equal(t, path, r.Path())
	r.Release()
}

func TestReaderCacheEvictionOrder(t *testing.T) {
	opener := fakeOpenerWith("A", "B", "C", "D")
	cache := NewReaderCache("test", opener, 2, discardLogger(), nil)

	access(t, cache, "A")
	access(t, cache, "B")
	access(t, cache, "C")
	assert.Equal(t, []string{"B", "C"}, cache.Paths())
	assert.Equal(t, 1, opener.closedCount("A"))

	access(t, cache, "B")
	access(t, cache, "D")
	assert.Equal(t, []string{"B", "D"}, cache.Paths())
	assert.Equal(t, 1, opener.closedCount("C"))
	assert.Equal(t, 0, opener.closedCount("B"))
	assert.Equal(t, 1, opener.opens("B"), "hit must not reopen")

	stats := cache.Stats()
	assert.Equal(t, CacheStats{Entries: 2, Capacity: 2, Hits: 1, Misses: 4, Evictions: 2}, stats)
}

func TestReaderCacheCapacityBound(t *testing.T) {
	const n = 3
	opener := fakeOpenerWith("p0", "p1", "p2", "p3")
	cache := NewReaderCache("test", opener, n, discardLogger(), nil)

	for i := 0; i < n; i++ {
		access(t, cache, fmt.Sprintf("p%d", i))
	}
	assert.Equal(t, n, cache.Len())

	// Re-access refreshes recency without changing size.
	access(t, cache, "p0")
	assert.Equal(t, n, cache.Len())
	assert.Equal(t, []string{"p1", "p2", "p0"}, cache.Paths())

	access(t, cache, "p3")
	assert.Equal(t, n, cache.Len())
	assert.False(t, cache.Contains("p1"))
	assert.True(t, cache.Contains("p0"))
	assert.Equal(t, []string{"p2", "p0", "p3"}, cache.Paths())
}

func TestReaderCacheContainsKeepsOrder(t *testing.T) {
	cache := NewReaderCache("test", fakeOpenerWith("A", "B"), 2, discardLogger(), nil)
	access(t, cache, "A")
	access(t, cache, "B")

	assert.True(t, cache.Contains("A"))
	assert.Equal(t, []string{"A", "B"}, cache.Paths())
}

func TestReaderCacheDefaultCapacity(t *testing.T) {
	cache := NewReaderCache("test", newFakeOpener(), 0, nil, nil)
	assert.Equal(t, DefaultCacheCapacity, cache.Capacity())
}

func TestReaderCacheLeasedEviction(t *testing.T) {
	opener := fakeOpenerWith("A", "B")
	cache := NewReaderCache("test", opener, 1, discardLogger(), nil)

	held, err := cache.Get("A")
	require.NoError(t, err)

	access(t, cache, "B")
	assert.Equal(t, []string{"B"}, cache.Paths())
	assert.Equal(t, 0, opener.closedCount("A"), "leased handle closed early")

	_, err = held.ReadTile(maptile.New(0, 0, 0), 8)
	require.NoError(t, err)

	held.Release()
	assert.Equal(t, 1, opener.closedCount("A"))

	held.Release()
	assert.Equal(t, 1, opener.closedCount("A"))
}

func TestReaderCacheCloseFailureIsLogged(t *testing.T) {
	opener := newFakeOpener()
	opener.add("A", fakeRaster{closeErr: errors.New("disk gone")})
	opener.add("B", fakeRaster{})
	logger, buf := bufferLogger()
	cache := NewReaderCache("ortho/2023", opener, 1, logger, nil)

	access(t, cache, "A")
	access(t, cache, "B")

	assert.Equal(t, []string{"B"}, cache.Paths())
	assert.Equal(t, uint64(1), cache.Stats().CloseFailures)
	assert.Contains(t, buf.String(), "reader_close_failed")
	assert.Contains(t, buf.String(), "disk gone")
}

func TestReaderCacheOpenError(t *testing.T) {
	opener := newFakeOpener()
	opener.failOpen("bad", errors.New("permission denied"))
	cache := NewReaderCache("test", opener, 2, discardLogger(), nil)

	_, err := cache.Get("bad")
	require.Error(t, err)
	assert.Equal(t, 0, cache.Len())
	assert.Equal(t, uint64(0), cache.Stats().Misses)
}

func TestReaderCacheClear(t *testing.T) {
	opener := fakeOpenerWith("A", "B", "C")
	cache := NewReaderCache("test", opener, 3, discardLogger(), nil)
	access(t, cache, "A")
	access(t, cache, "B")
	held, err := cache.Get("C")
	require.NoError(t, err)

	require.NoError(t, cache.Clear())
	assert.Equal(t, 0, cache.Len())
	assert.Equal(t, []string{"C"}, opener.openHandles())

	held.Release()
	assert.Empty(t, opener.openHandles())
}

func TestReaderCacheClearReturnsCloseErrors(t *testing.T) {
	opener := newFakeOpener()
	opener.add("A", fakeRaster{closeErr: errors.New("disk gone")})
	cache := NewReaderCache("test", opener, 2, discardLogger(), nil)
	access(t, cache, "A")

	err := cache.Clear()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
}

func TestReaderCacheConcurrentAccess(t *testing.T) {
	const (
		capacity   = 4
		goroutines = 16
		iterations = 200
	)
	var all []string
	for i := 0; i < 10; i++ {
		all = append(all, fmt.Sprintf("asset%d.tif", i))
	}
	opener := fakeOpenerWith(all...)
	cache := NewReaderCache("test", opener, capacity, discardLogger(), nil)

	var wg sync.WaitGroup
	errs := make(chan error, goroutines)
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				r, err := cache.Get(all[(g*7+i)%len(all)])
				if err != nil {
					errs <- err
					return
				}
				if _, err := r.ReadTile(maptile.New(0, 0, 0), 4); err != nil {
					errs <- err
				}
				r.Release()
				if cache.Len() > capacity {
					errs <- fmt.Errorf("cache grew to %d", cache.Len())
				}
			}
		}(g)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	assert.LessOrEqual(t, cache.Len(), capacity)
	assert.ElementsMatch(t, cache.Paths(), opener.openHandles(),
		"every open handle must be cached, once")
}

func TestReaderCacheMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	cache := NewReaderCache("bathy/2023", fakeOpenerWith("A", "B"), 1, discardLogger(), metrics)

	access(t, cache, "A")
	access(t, cache, "A")
	access(t, cache, "B")

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheHits.WithLabelValues("bathy/2023")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.cacheMisses.WithLabelValues("bathy/2023")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheEvictions.WithLabelValues("bathy/2023")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.openReaders.WithLabelValues("bathy/2023")))
}

func TestNilMetrics(t *testing.T) {
	assert.Nil(t, NewMetrics(nil))

	var m *Metrics
	assert.NotPanics(t, func() {
		m.cacheHit("p")
		m.cacheSize("p", 3)
	})
}
