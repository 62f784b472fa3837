package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a dedicated registry so tests can build as many as they like.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	extractions        *prometheus.CounterVec
	extractionDuration *prometheus.HistogramVec
	extractionsRunning prometheus.Gauge
	promptFetches      *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		extractions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "elsai_extractions_total",
				Help: "Extraction attempts by backend and outcome",
			},
			[]string{"backend", "status", "code"},
		),
		extractionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "elsai_extraction_duration_seconds",
				Help:    "Duration of extraction attempts",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"backend"},
		),
		extractionsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "elsai_extractions_in_flight",
			Help: "Extractions currently calling a backend",
		}),
		promptFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "elsai_prompt_fetches_total",
				Help: "Prompt fetches by outcome and source",
			},
			[]string{"status", "source"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "elsai_http_requests_total",
				Help: "HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "elsai_http_request_duration_seconds",
				Help: "Duration of HTTP requests",
			},
			[]string{"method", "route"},
		),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.extractions,
		m.extractionDuration,
		m.extractionsRunning,
		m.promptFetches,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveExtraction(backend, status, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(backend, status, code).Inc()
	m.extractionDuration.WithLabelValues(backend).Observe(d.Seconds())
}

// ExtractionStarted increments the in-flight gauge and returns its decrement.
func (m *Metrics) ExtractionStarted() func() {
	if m == nil {
		return func() {}
	}
	m.extractionsRunning.Inc()
	return m.extractionsRunning.Dec
}

func (m *Metrics) ObservePrompt(status, source string) {
	if m == nil {
		return
	}
	m.promptFetches.WithLabelValues(status, source).Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
