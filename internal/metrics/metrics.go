package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Outcome labels for completion metrics.
const (
	OutcomeOK        = "ok"
	OutcomeTransport = "transport_error"
	OutcomeParse     = "parse_error"
	OutcomeError     = "error"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Pipeline metrics
	completionsTotal   *prometheus.CounterVec
	completionDuration *prometheus.HistogramVec
	authFailures       prometheus.Counter
	tokenMapEntries    prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),

		completionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "how_completions_total",
				Help: "Total number of provider completion calls",
			},
			[]string{"provider", "outcome"},
		),

		completionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "how_completion_duration_seconds",
				Help:    "Provider completion call duration in seconds",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider"},
		),

		authFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "how_auth_failures_total",
				Help: "Total number of rejected delegation tokens",
			},
		),

		tokenMapEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "how_token_map_entries",
				Help: "Number of delegation tokens loaded at startup",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)
	reg.MustRegister(r.completionsTotal)
	reg.MustRegister(r.completionDuration)
	reg.MustRegister(r.authFailures)
	reg.MustRegister(r.tokenMapEntries)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	r.httpRequestsTotal.WithLabelValues(method, path, statusToString(status)).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordCompletion records one provider call.
func (r *Registry) RecordCompletion(provider, outcome string, duration float64) {
	r.completionsTotal.WithLabelValues(provider, outcome).Inc()
	r.completionDuration.WithLabelValues(provider).Observe(duration)
}

// RecordAuthFailure counts a rejected delegation token.
func (r *Registry) RecordAuthFailure() {
	r.authFailures.Inc()
}

// SetTokenMapSize sets the number of loaded delegation tokens.
func (r *Registry) SetTokenMapSize(size int) {
	r.tokenMapEntries.Set(float64(size))
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
