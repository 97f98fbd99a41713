package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface and the lifecycle sweeps.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	sweepDuration   *prometheus.HistogramVec
	sweepFailures   *prometheus.CounterVec
}

// NewMetricsService registers the collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "substitution_transitions_total",
		Help: "Substitution status transitions by outcome",
	}, []string{"transition"})

	sweepDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "substitution_sweep_duration_seconds",
		Help:    "Duration of activation and deactivation sweeps",
		Buckets: prometheus.DefBuckets,
	}, []string{"sweep"})

	sweepFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "substitution_sweep_failures_total",
		Help: "Per-record failures inside sweeps",
	}, []string{"sweep"})

	registry.MustRegister(requestDuration, requestTotal, transitions, sweepDuration, sweepFailures)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		transitions:     transitions,
		sweepDuration:   sweepDuration,
		sweepFailures:   sweepFailures,
	}
}

// Handler serves the /metrics endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records one served request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	s.requestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(method, path, code).Inc()
}

// CountTransition records one substitution status transition.
func (s *MetricsService) CountTransition(transition string) {
	s.transitions.WithLabelValues(transition).Inc()
}

// ObserveSweep records the duration of one sweep run.
func (s *MetricsService) ObserveSweep(sweep string, duration time.Duration) {
	s.sweepDuration.WithLabelValues(sweep).Observe(duration.Seconds())
}

// CountSweepFailure records one per-record failure inside a sweep.
func (s *MetricsService) CountSweepFailure(sweep string) {
	s.sweepFailures.WithLabelValues(sweep).Inc()
}
