// Package metrics exposes Prometheus counters for batches, jobs, provider
// lookups and caches. A nil *Collector is valid and records nothing, so
// components can take one unconditionally.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ratingsync"

// Collector holds the ratingsync metrics and the registry they live in.
type Collector struct {
	registry *prometheus.Registry

	batches          *prometheus.CounterVec
	jobs             *prometheus.CounterVec
	providerRequests *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
	ratingsApplied   prometheus.Counter
	itemsSkipped     *prometheus.CounterVec
	stageDuration    *prometheus.HistogramVec
	cacheEntries     *prometheus.GaugeVec
	pendingJobs      prometheus.Gauge
	lastBatch        prometheus.Gauge
}

// NewCollector creates a collector registered on a private registry together
// with the Go runtime and process collectors.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Batches executed, by outcome.",
		}, []string{"outcome"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Library jobs run, by result code.",
		}, []string{"result"}),
		providerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "External identifier lookups, by provider and result.",
		}, []string{"provider", "result"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups, by cache and result.",
		}, []string{"cache", "result"}),
		ratingsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratings_applied_total",
			Help:      "Catalog items whose rating was written.",
		}),
		itemsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_skipped_total",
			Help:      "Catalog items left unchanged, by reason.",
		}, []string{"reason"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each job stage.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}, []string{"stage"}),
		cacheEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Entries held by each cache after the last dump.",
		}, []string{"cache"}),
		pendingJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_pending",
			Help:      "Unfinished jobs held in persisted state.",
		}),
		lastBatch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_batch_timestamp_seconds",
			Help:      "Unix time the last batch finished.",
		}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.batches,
		c.jobs,
		c.providerRequests,
		c.cacheLookups,
		c.ratingsApplied,
		c.itemsSkipped,
		c.stageDuration,
		c.cacheEntries,
		c.pendingJobs,
		c.lastBatch,
	)
	return c
}

// Registry returns the registry backing the collector.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the collector's metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordBatch counts a finished batch.
func (c *Collector) RecordBatch(outcome string) {
	if c == nil {
		return
	}
	c.batches.WithLabelValues(outcome).Inc()
	c.lastBatch.SetToCurrentTime()
}

// RecordJob counts a job result.
func (c *Collector) RecordJob(result string) {
	if c == nil {
		return
	}
	c.jobs.WithLabelValues(result).Inc()
}

// RecordProviderRequest counts an external lookup.
func (c *Collector) RecordProviderRequest(provider, result string) {
	if c == nil {
		return
	}
	c.providerRequests.WithLabelValues(provider, result).Inc()
}

// RecordCacheLookup counts a hit or miss on the named cache.
func (c *Collector) RecordCacheLookup(cache string, hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(cache, result).Inc()
}

// AddRatingsApplied counts written ratings.
func (c *Collector) AddRatingsApplied(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.ratingsApplied.Add(float64(n))
}

// AddItemsSkipped counts items left unchanged for reason.
func (c *Collector) AddItemsSkipped(reason string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.itemsSkipped.WithLabelValues(reason).Add(float64(n))
}

// ObserveStage records how long a stage took.
func (c *Collector) ObserveStage(stage string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// SetCacheEntries records the size of a cache.
func (c *Collector) SetCacheEntries(cache string, n int) {
	if c == nil {
		return
	}
	c.cacheEntries.WithLabelValues(cache).Set(float64(n))
}

// SetPendingJobs records how many unfinished jobs are persisted.
func (c *Collector) SetPendingJobs(n int) {
	if c == nil {
		return
	}
	c.pendingJobs.Set(float64(n))
}
