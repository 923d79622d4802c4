// Package metrics counts the adapter's decisions: certificate errors,
// dialogs, navigations, window requests and console traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors. A nil *Metrics is valid and
// records nothing, so call sites never need to guard.
type Metrics struct {
	registry *prometheus.Registry

	CertificateErrors *prometheus.CounterVec
	Dialogs           *prometheus.CounterVec
	Navigations       *prometheus.CounterVec
	Windows           *prometheus.CounterVec
	ConsoleMessages   *prometheus.CounterVec
	PromptDuration    *prometheus.HistogramVec
}

// New builds a collector set on its own registry so tests can hold
// several without duplicate-registration panics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		CertificateErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "perch_certificate_errors_total",
				Help: "Certificate errors seen, by overridability and outcome",
			},
			[]string{"overridable", "ignored"},
		),
		Dialogs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "perch_dialogs_total",
				Help: "JavaScript dialogs handled, by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		Navigations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "perch_navigations_total",
				Help: "Navigation requests filtered, by type and verdict",
			},
			[]string{"type", "accepted"},
		),
		Windows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "perch_windows_total",
				Help: "Window open requests, by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		ConsoleMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "perch_console_messages_total",
				Help: "Page console messages received, by level",
			},
			[]string{"level"},
		),
		PromptDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "perch_prompt_duration_seconds",
				Help:    "Time spent waiting on user prompts",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"kind"},
		),
	}
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordCertificateError counts one certificate error decision.
func (m *Metrics) RecordCertificateError(overridable, ignored bool) {
	if m == nil {
		return
	}
	m.CertificateErrors.WithLabelValues(
		strconv.FormatBool(overridable), strconv.FormatBool(ignored)).Inc()
}

// RecordDialog counts one dialog by kind ("alert", "confirm", ...) and
// outcome ("accepted", "dismissed", "deferred").
func (m *Metrics) RecordDialog(kind, outcome string) {
	if m == nil {
		return
	}
	m.Dialogs.WithLabelValues(kind, outcome).Inc()
}

// RecordNavigation counts one navigation filter decision.
func (m *Metrics) RecordNavigation(navType string, accepted bool) {
	if m == nil {
		return
	}
	m.Navigations.WithLabelValues(navType, strconv.FormatBool(accepted)).Inc()
}

// RecordWindow counts one window request by kind and outcome
// ("opened", "denied", "failed").
func (m *Metrics) RecordWindow(kind, outcome string) {
	if m == nil {
		return
	}
	m.Windows.WithLabelValues(kind, outcome).Inc()
}

// RecordConsoleMessage counts one console message by level.
func (m *Metrics) RecordConsoleMessage(level string) {
	if m == nil {
		return
	}
	m.ConsoleMessages.WithLabelValues(level).Inc()
}

// PromptTimer starts timing a prompt of the given kind. Call the
// returned func when the prompt resolves.
func (m *Metrics) PromptTimer(kind string) func() {
	if m == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		m.PromptDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}
}
