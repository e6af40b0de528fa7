package cogtiles

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Request outcomes recorded by Metrics.
const (
	outcomeData   = "data"
	outcomeNoData = "no_data"
	outcomeError  = "error"
)

// Metrics holds Prometheus metrics for reader caches and requests. All
// methods are safe on a nil *Metrics, which records nothing.
type Metrics struct {
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	cacheEvictions     *prometheus.CounterVec
	cacheCloseFailures *prometheus.CounterVec
	openReaders        *prometheus.GaugeVec

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewMetrics creates the metrics and registers them with reg. A nil reg
// returns nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cogtiles_reader_cache_hits_total",
			Help: "Reader cache lookups served by an open handle",
		}, []string{"partition"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cogtiles_reader_cache_misses_total",
			Help: "Reader cache lookups that opened a raster",
		}, []string{"partition"}),
		cacheEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cogtiles_reader_cache_evictions_total",
			Help: "Handles evicted from a reader cache",
		}, []string{"partition"}),
		cacheCloseFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cogtiles_reader_close_failures_total",
			Help: "Evicted or cleared handles that failed to close",
		}, []string{"partition"}),
		openReaders: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cogtiles_reader_cache_entries",
			Help: "Handles currently held by a reader cache",
		}, []string{"partition"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cogtiles_requests_total",
			Help: "Tile and sample requests by outcome",
		}, []string{"kind", "operation", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cogtiles_request_duration_seconds",
			Help:    "Tile and sample request duration",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"kind", "operation"}),
	}

	reg.MustRegister(
		m.cacheHits,
		m.cacheMisses,
		m.cacheEvictions,
		m.cacheCloseFailures,
		m.openReaders,
		m.requests,
		m.requestDuration,
	)
	return m
}

func (m *Metrics) cacheHit(partition string) {
	if m != nil {
		m.cacheHits.WithLabelValues(partition).Inc()
	}
}

func (m *Metrics) cacheMiss(partition string) {
	if m != nil {
		m.cacheMisses.WithLabelValues(partition).Inc()
	}
}

func (m *Metrics) cacheEvict(partition string) {
	if m != nil {
		m.cacheEvictions.WithLabelValues(partition).Inc()
	}
}

func (m *Metrics) closeFailure(partition string) {
	if m != nil {
		m.cacheCloseFailures.WithLabelValues(partition).Inc()
	}
}

func (m *Metrics) cacheSize(partition string, n int) {
	if m != nil {
		m.openReaders.WithLabelValues(partition).Set(float64(n))
	}
}

// observe records one request. ok and err are the request results.
func (m *Metrics) observe(kind Kind, operation string, start time.Time, ok bool, err error) {
	if m == nil {
		return
	}
	outcome := outcomeData
	switch {
	case err != nil:
		outcome = outcomeError
	case !ok:
		outcome = outcomeNoData
	}
	m.requests.WithLabelValues(kind.String(), operation, outcome).Inc()
	m.requestDuration.WithLabelValues(kind.String(), operation).Observe(time.Since(start).Seconds())
}
