package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the reach engine.
type Metrics struct {
	// Estimation metrics
	EstimateRequests  *prometheus.CounterVec
	EstimateLatency   *prometheus.HistogramVec
	EstimateReach     *prometheus.HistogramVec
	EstimateFallbacks prometheus.Counter

	// Validation metrics
	ValidationRequests prometheus.Counter
	ValidationIssues   *prometheus.CounterVec

	// Recommendation metrics
	Recommendations *prometheus.CounterVec

	// Source metrics
	SourceErrors *prometheus.CounterVec

	// Cache metrics
	CacheRequests *prometheus.CounterVec

	// GeoIP metrics
	GeoLookupLatency *prometheus.HistogramVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics *Metrics

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		EstimateRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "estimate_requests_total",
				Help:      "Total reach estimate requests",
			},
			[]string{"scope", "source"},
		),
		EstimateLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "estimate_latency_seconds",
				Help:      "Reach estimation latency in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"scope", "source"},
		),
		EstimateReach: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "estimate_reach_users",
				Help:      "Estimated audience sizes",
				Buckets:   []float64{1, 10, 100, 1000, 10000, 100000, 1000000},
			},
			[]string{"scope"},
		),
		EstimateFallbacks: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "estimate_fallbacks_total",
				Help:      "Estimates served by the heuristic fallback after a live source failure",
			},
		),

		ValidationRequests: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validation_requests_total",
				Help:      "Total rule validation requests",
			},
		),
		ValidationIssues: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validation_issues_total",
				Help:      "Validation feedback entries by severity",
			},
			[]string{"severity"}, // error, warning, suggestion
		),

		Recommendations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recommendations_total",
				Help:      "Targeting recommendations by adjustment kind",
			},
			[]string{"kind"},
		),

		SourceErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "source_errors_total",
				Help:      "Population/follower/profile source failures",
			},
			[]string{"source"},
		),

		CacheRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "estimate_cache_requests_total",
				Help:      "Estimate cache lookups",
			},
			[]string{"result"}, // hit, miss
		),

		GeoLookupLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "geo_lookup_latency_seconds",
				Help:      "GeoIP lookup latency",
				Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01},
			},
			[]string{"cache_hit"},
		),

		RateLimitHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Rate limit rejections",
			},
			[]string{"endpoint", "ip"},
		),
	}

	DefaultMetrics = m
	return m
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordEstimate records a completed reach estimate.
func (m *Metrics) RecordEstimate(scope, source string, reach int64, latency time.Duration) {
	m.EstimateRequests.WithLabelValues(scope, source).Inc()
	m.EstimateLatency.WithLabelValues(scope, source).Observe(latency.Seconds())
	m.EstimateReach.WithLabelValues(scope).Observe(float64(reach))
}

// RecordFallback records an estimate served by the heuristic fallback.
func (m *Metrics) RecordFallback() {
	m.EstimateFallbacks.Inc()
}

// RecordValidation records a validation request and its feedback counts.
func (m *Metrics) RecordValidation(errors, warnings, suggestions int) {
	m.ValidationRequests.Inc()
	m.ValidationIssues.WithLabelValues("error").Add(float64(errors))
	m.ValidationIssues.WithLabelValues("warning").Add(float64(warnings))
	m.ValidationIssues.WithLabelValues("suggestion").Add(float64(suggestions))
}

// RecordRecommendation records a recommendation by adjustment kind.
func (m *Metrics) RecordRecommendation(kind string) {
	m.Recommendations.WithLabelValues(kind).Inc()
}

// RecordSourceError records a source failure.
func (m *Metrics) RecordSourceError(source string) {
	m.SourceErrors.WithLabelValues(source).Inc()
}

// RecordCacheLookup records an estimate cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheRequests.WithLabelValues(result).Inc()
}

// RecordGeoLookup records a geo lookup.
func (m *Metrics) RecordGeoLookup(cacheHit bool, latency time.Duration) {
	hit := "false"
	if cacheHit {
		hit = "true"
	}
	m.GeoLookupLatency.WithLabelValues(hit).Observe(latency.Seconds())
}

// RecordRateLimitHit records a rate limit hit.
func (m *Metrics) RecordRateLimitHit(endpoint, ip string) {
	m.RateLimitHits.WithLabelValues(endpoint, ip).Inc()
}
