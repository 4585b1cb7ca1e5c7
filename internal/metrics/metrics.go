// Package metrics wires Prometheus instrumentation for the API and the
// OCR worker.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the service counters. A nil *Metrics is a valid
// no-op receiver so tests can pass nil.
type Metrics struct {
	registry *prometheus.Registry

	admissionsTotal   prometheus.Counter
	registrationsTotal prometheus.Counter
	scansProcessed    *prometheus.CounterVec
	ocrAutoApplied    prometheus.Counter
	jobRetries        prometheus.Counter
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		admissionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "olympiadqr_admissions_total",
			Help: "Approved admissions.",
		}),
		registrationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "olympiadqr_registrations_total",
			Help: "Created registrations.",
		}),
		scansProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "olympiadqr_scans_processed_total",
			Help: "OCR jobs finished, by outcome.",
		}, []string{"outcome"}),
		ocrAutoApplied: factory.NewCounter(prometheus.CounterOpts{
			Name: "olympiadqr_ocr_auto_applied_total",
			Help: "Scores auto-applied above the confidence threshold.",
		}),
		jobRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "olympiadqr_job_retries_total",
			Help: "Job deliveries re-queued after a failure.",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "olympiadqr_http_requests_total",
			Help: "HTTP requests, by route and status class.",
		}, []string{"route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "olympiadqr_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Handler serves the scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) AdmissionApproved() {
	if m != nil {
		m.admissionsTotal.Inc()
	}
}

func (m *Metrics) RegistrationCreated() {
	if m != nil {
		m.registrationsTotal.Inc()
	}
}

// ScanProcessed records a finished OCR job; outcome is one of
// auto_applied, scanned, unmatched, failed.
func (m *Metrics) ScanProcessed(outcome string) {
	if m != nil {
		m.scansProcessed.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) OCRAutoApplied() {
	if m != nil {
		m.ocrAutoApplied.Inc()
	}
}

func (m *Metrics) JobRetried() {
	if m != nil {
		m.jobRetries.Inc()
	}
}

func (m *Metrics) HTTPRequest(route, status string, seconds float64) {
	if m != nil {
		m.httpRequests.WithLabelValues(route, status).Inc()
		m.httpDuration.WithLabelValues(route).Observe(seconds)
	}
}
