package observability

import (
	"time"

	"github.com/boddenberg/truck-ledger-bfa-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the ledger service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	mutations       *prometheus.CounterVec
	conflicts       *prometheus.CounterVec
	staleDiscards   prometheus.Counter
	resyncs         *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	bookVersion     prometheus.Gauge
	trips           prometheus.Gauge
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		mutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_mutations_total",
				Help: "Trip mutations by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		conflicts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_mutation_conflicts_total",
				Help: "Mutations rejected because another one on the same trip was in flight.",
			},
			[]string{"operation"},
		),
		staleDiscards: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ledger_stale_responses_total",
				Help: "List responses dropped because the book moved on while they were in flight.",
			},
		),
		resyncs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_resyncs_total",
				Help: "Full re-lists from the persistence collaborator by reason.",
			},
			[]string{"reason"},
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_notifications_total",
				Help: "User notifications emitted by severity.",
			},
			[]string{"severity"},
		),
		bookVersion: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ledger_book_version",
				Help: "Version of the in-memory trip book.",
			},
		),
		trips: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ledger_trips",
				Help: "Trips currently held in the book.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrMutation counts a mutation attempt; outcome is "success" or "error".
func (m *Metrics) IncrMutation(operation, outcome string) {
	m.mutations.WithLabelValues(operation, outcome).Inc()
}

// IncrConflict counts a mutation rejected by the per-trip guard.
func (m *Metrics) IncrConflict(operation string) {
	m.conflicts.WithLabelValues(operation).Inc()
}

// IncrStaleDiscard counts a discarded out-of-date list response.
func (m *Metrics) IncrStaleDiscard() {
	m.staleDiscards.Inc()
}

// IncrResync counts a full re-list.
func (m *Metrics) IncrResync(reason string) {
	m.resyncs.WithLabelValues(reason).Inc()
}

// IncrNotification counts a notification by severity.
func (m *Metrics) IncrNotification(severity string) {
	m.notifications.WithLabelValues(severity).Inc()
}

// SetBook publishes the current book version and size.
func (m *Metrics) SetBook(version uint64, trips int) {
	m.bookVersion.Set(float64(version))
	m.trips.Set(float64(trips))
}

var mutationOps = []string{"create", "update", "delete", "add_cost", "edit_cost", "remove_cost"}

// GetLedgerSnapshot returns a snapshot suitable for GET /v1/metrics/ledger.
func (m *Metrics) GetLedgerSnapshot() *domain.LedgerMetrics {
	var ok, failed, conflicts float64
	for _, op := range mutationOps {
		ok += getCounterValue(m.mutations, op, "success")
		failed += getCounterValue(m.mutations, op, "error")
		conflicts += getCounterValue(m.conflicts, op)
	}
	resyncs := getCounterValue(m.resyncs, "manual") +
		getCounterValue(m.resyncs, "not_found") +
		getCounterValue(m.resyncs, "startup")
	hits := getCounterValue(m.cacheHits, "summary")
	misses := getCounterValue(m.cacheMisses, "summary")

	total := ok + failed
	errorRate := float64(0)
	cacheHitRate := float64(0)
	if total > 0 {
		errorRate = failed / total
	}
	if hits+misses > 0 {
		cacheHitRate = hits / (hits + misses)
	}

	return &domain.LedgerMetrics{
		Mutations:       int64(total),
		FailedMutations: int64(failed),
		Conflicts:       int64(conflicts),
		StaleDiscards:   int64(metricValue(m.staleDiscards)),
		Resyncs:         int64(resyncs),
		ErrorRate:       errorRate,
		CacheHitRate:    cacheHitRate,
		BookVersion:     uint64(metricValue(m.bookVersion)),
		TripCount:       int(metricValue(m.trips)),
		Period:          "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for the given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	return metricValue(cv.WithLabelValues(labels...))
}

func metricValue(c prometheus.Metric) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	switch {
	case m.Counter != nil && m.Counter.Value != nil:
		return *m.Counter.Value
	case m.Gauge != nil && m.Gauge.Value != nil:
		return *m.Gauge.Value
	}
	return 0
}
