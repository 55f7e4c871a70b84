// package metrics bundles the Prometheus collectors for chart collection
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles Prometheus collectors for the client, fetcher and collector.
//
// Every method is safe to call on a nil *Metrics.
type Metrics struct {
	Registry           *prometheus.Registry
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	RetriesTotal       *prometheus.CounterVec
	ErrorsTotal        *prometheus.CounterVec
	RecordsTotal       prometheus.Counter
	SkippedTotal       *prometheus.CounterVec
	TicksTotal         *prometheus.CounterVec
	CheckpointsTotal   *prometheus.CounterVec
	GenreCacheHitTotal prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chartx_requests_total",
			Help: "Total Spotify API requests by endpoint and status code.",
		},
		[]string{"endpoint", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chartx_request_duration_seconds",
			Help:    "Spotify API request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
	retries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chartx_retries_total",
			Help: "Total number of retry waits scheduled by operation and reason.",
		},
		[]string{"op", "reason"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chartx_errors_total",
			Help: "Total number of failed calls by operation and error type.",
		},
		[]string{"op", "error_type"},
	)
	records := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chartx_records_total",
			Help: "Total chart records captured.",
		},
	)
	skipped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chartx_skipped_tracks_total",
			Help: "Total playlist entries dropped from a snapshot by reason.",
		},
		[]string{"reason"},
	)
	ticks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chartx_ticks_total",
			Help: "Total capture ticks by outcome.",
		},
		[]string{"outcome"},
	)
	checkpoints := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chartx_checkpoints_total",
			Help: "Total checkpoint writes by outcome.",
		},
		[]string{"outcome"},
	)
	cacheHits := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chartx_genre_cache_hits_total",
			Help: "Artist genre lookups served from the cache.",
		},
	)

	registry.MustRegister(requests, requestDuration, retries, errorsTotal, records, skipped, ticks, checkpoints, cacheHits)

	return &Metrics{
		Registry:           registry,
		RequestsTotal:      requests,
		RequestDuration:    requestDuration,
		RetriesTotal:       retries,
		ErrorsTotal:        errorsTotal,
		RecordsTotal:       records,
		SkippedTotal:       skipped,
		TicksTotal:         ticks,
		CheckpointsTotal:   checkpoints,
		GenreCacheHitTotal: cacheHits,
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one upstream request and its latency.
func (m *Metrics) ObserveRequest(endpoint, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(endpoint, status).Inc()
	m.RequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// IncRetry increments the retries counter.
func (m *Metrics) IncRetry(op, reason string) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(op, reason).Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(op, errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(op, errorType).Inc()
}

// AddRecords adds n captured records.
func (m *Metrics) AddRecords(n int) {
	if m == nil {
		return
	}
	m.RecordsTotal.Add(float64(n))
}

// IncSkipped counts a dropped playlist entry.
func (m *Metrics) IncSkipped(reason string) {
	if m == nil {
		return
	}
	m.SkippedTotal.WithLabelValues(reason).Inc()
}

// IncTick counts a finished tick; outcome is "captured" or "empty".
func (m *Metrics) IncTick(outcome string) {
	if m == nil {
		return
	}
	m.TicksTotal.WithLabelValues(outcome).Inc()
}

// IncCheckpoint counts a checkpoint attempt; outcome is "written" or "failed".
func (m *Metrics) IncCheckpoint(outcome string) {
	if m == nil {
		return
	}
	m.CheckpointsTotal.WithLabelValues(outcome).Inc()
}

// IncCacheHit counts a genre cache hit.
func (m *Metrics) IncCacheHit() {
	if m == nil {
		return
	}
	m.GenreCacheHitTotal.Inc()
}
