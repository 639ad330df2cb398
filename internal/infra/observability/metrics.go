package observability

import (
	"time"

	"github.com/kvasquez/receiptguard/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the verification engine.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration  *prometheus.HistogramVec
	externalErrors   *prometheus.CounterVec
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	verificationsRun *prometheus.CounterVec
	extractionErrors prometheus.Counter
	reportsBuilt     *prometheus.CounterVec
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
				Name:    "receiptguard_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "receiptguard_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "receiptguard_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "receiptguard_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		verificationsRun: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "receiptguard_verifications_total",
				Help: "Total verification runs by verdict.",
			},
			[]string{"verdict"},
		),
		extractionErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "receiptguard_extraction_errors_total",
				Help: "Total OCR extraction failures.",
			},
		),
		reportsBuilt: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "receiptguard_reports_built_total",
				Help: "Total reports computed by kind.",
			},
			[]string{"kind"},
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

// IncrVerification increments the verification counter with a verdict label
// (verified, flagged, or failed).
func (m *Metrics) IncrVerification(verdict string) {
	m.verificationsRun.WithLabelValues(verdict).Inc()
}

// IncrExtractionError increments the OCR failure counter.
func (m *Metrics) IncrExtractionError() {
	m.extractionErrors.Inc()
}

// IncrReportBuilt increments the report counter for a report kind.
func (m *Metrics) IncrReportBuilt(kind string) {
	m.reportsBuilt.WithLabelValues(kind).Inc()
}

// GetVerificationSnapshot returns a snapshot of verification metrics suitable
// for the GET /v1/metrics/verification endpoint.
func (m *Metrics) GetVerificationSnapshot() *domain.VerificationMetrics {
	// Gather current values from Prometheus counters.
	// Note: Prometheus counters expose cumulative values.
	verified := getCounterValue(m.verificationsRun, "verified")
	flagged := getCounterValue(m.verificationsRun, "flagged")
	failed := getCounterValue(m.verificationsRun, "failed")
	total := verified + flagged + failed

	flagRate := float64(0)
	if verified+flagged > 0 {
		flagRate = flagged / (verified + flagged)
	}

	extractionErrs := getSingleCounterValue(m.extractionErrors)

	return &domain.VerificationMetrics{
		TotalRuns:        int64(total),
		VerifiedCount:    int64(verified),
		FlaggedCount:     int64(flagged),
		FailedCount:      int64(failed),
		FlagRate:         flagRate,
		ExtractionErrors: int64(extractionErrs),
		Period:           "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

func getSingleCounterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
