package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCollector(t *testing.T) {
	collector := NewCollector()

	require.NotNil(t, collector)
	assert.NotNil(t, collector.Registry(), "registry should be initialized")

	// A second collector must not collide with the first one's registrations.
	assert.NotPanics(t, func() { NewCollector() })
}

func TestRecordJobAndBatch(t *testing.T) {
	collector := NewCollector()

	collector.RecordJob("PASS")
	collector.RecordJob("PASS")
	collector.RecordJob("API_ERROR")
	collector.RecordBatch("completed")

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.jobs.WithLabelValues("PASS")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.jobs.WithLabelValues("API_ERROR")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.batches.WithLabelValues("completed")))
	assert.Greater(t, testutil.ToFloat64(collector.lastBatch), 0.0)
}

func TestRecordCacheLookup(t *testing.T) {
	collector := NewCollector()

	collector.RecordCacheLookup("tmdb", true)
	collector.RecordCacheLookup("tmdb", false)
	collector.RecordCacheLookup("tmdb", false)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.cacheLookups.WithLabelValues("tmdb", "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.cacheLookups.WithLabelValues("tmdb", "miss")))
}

func TestCountersIgnoreNonPositive(t *testing.T) {
	collector := NewCollector()

	collector.AddRatingsApplied(0)
	collector.AddRatingsApplied(-3)
	collector.AddRatingsApplied(4)
	collector.AddItemsSkipped("no_rating", 0)

	assert.Equal(t, 4.0, testutil.ToFloat64(collector.ratingsApplied))
	assert.Equal(t, 0, testutil.CollectAndCount(collector.itemsSkipped))
}

func TestNilCollectorIsNoop(t *testing.T) {
	var collector *Collector

	assert.NotPanics(t, func() {
		collector.RecordBatch("noop")
		collector.RecordJob("PASS")
		collector.RecordProviderRequest("tvdb", "found")
		collector.RecordCacheLookup("tvdb", true)
		collector.AddRatingsApplied(1)
		collector.AddItemsSkipped("unresolved", 1)
		collector.ObserveStage("RESOLVE_IDS", time.Second)
		collector.SetCacheEntries("tvdb", 3)
		collector.SetPendingJobs(2)
	})
	assert.Nil(t, collector.Registry())
}

func TestHandlerServesMetrics(t *testing.T) {
	collector := NewCollector()
	collector.RecordProviderRequest("tmdb", "found")
	collector.SetPendingJobs(2)

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `ratingsync_provider_requests_total{provider="tmdb",result="found"} 1`)
	assert.Contains(t, string(body), "ratingsync_jobs_pending 2")
}
