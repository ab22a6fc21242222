package bench

import (
	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hansjm10/idle-simcore/pkg/content"
)

// Metrics holds the prometheus collectors a bench run instruments:
// per-tick latency and the content-pack validation cache's hit/miss split.
type Metrics struct {
	TickLatency prometheus.Histogram
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// NewMetrics registers a fresh collector set against reg. A nil reg
// leaves the collectors unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TickLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "simcore_bench_tick_latency_seconds",
			Help:    "Wall-clock duration of one updateForStep call against a synthetic pack.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 2, 20),
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "simcore_bench_validation_cache_hits_total",
			Help: "Validation cache lookups that found a cached result.",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "simcore_bench_validation_cache_misses_total",
			Help: "Validation cache lookups that required a fresh parse().",
		}),
	}
}

// HitRatio returns CacheHits / (CacheHits + CacheMisses), or 0 if neither
// counter has recorded anything yet.
func (m *Metrics) HitRatio() float64 {
	hits := counterValue(m.CacheHits)
	misses := counterValue(m.CacheMisses)
	total := hits + misses
	if total == 0 {
		return 0
	}
	return hits / total
}

func counterValue(c prometheus.Counter) float64 {
	var metric dto.Metric
	if err := c.Write(&metric); err != nil {
		return 0
	}
	return metric.GetCounter().GetValue()
}

// instrumentedCache wraps a content.ValidationCache, routing every Get into
// the hit/miss counter pair so a bench run's cache-hit-ratio reflects real
// Validator.Parse traffic rather than a separate synthetic counter.
type instrumentedCache struct {
	inner   content.ValidationCache
	metrics *Metrics
}

// WrapCache instruments inner's Get calls with m's hit/miss counters.
func WrapCache(inner content.ValidationCache, m *Metrics) content.ValidationCache {
	return &instrumentedCache{inner: inner, metrics: m}
}

func (c *instrumentedCache) Get(fingerprint string) (content.Result, bool) {
	result, ok := c.inner.Get(fingerprint)
	if ok {
		c.metrics.CacheHits.Inc()
	} else {
		c.metrics.CacheMisses.Inc()
	}
	return result, ok
}

func (c *instrumentedCache) Put(fingerprint string, result content.Result) {
	c.inner.Put(fingerprint, result)
}
