// Package metrics records client instrumentation in a Prometheus registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driven"
)

// Ensure Recorder implements the interface.
var _ driven.Metrics = (*Recorder)(nil)

const namespace = "ragdesk"

// Recorder implements driven.Metrics on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	pollTicks       *prometheus.CounterVec
	activePolls     prometheus.Gauge
	terminal        *prometheus.HistogramVec
}

// New creates a Recorder with its collectors registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Backend HTTP attempts by method, route and status code.",
		}, []string{"method", "route", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Backend HTTP attempt latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		pollTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_ticks_total",
			Help:      "Document status poll ticks by mode and outcome.",
		}, []string{"mode", "outcome"}),
		activePolls: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_polls",
			Help:      "Documents currently being polled.",
		}),
		terminal: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "processing_duration_seconds",
			Help:      "Time from process request to terminal status.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"status"}),
	}

	r.registry.MustRegister(
		r.requests,
		r.requestDuration,
		r.pollTicks,
		r.activePolls,
		r.terminal,
		collectors.NewGoCollector(),
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one backend HTTP attempt. Status 0 means no response.
func (r *Recorder) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	code := "none"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	r.requests.WithLabelValues(method, route, code).Inc()
	r.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObservePollTick records one poll tick.
func (r *Recorder) ObservePollTick(mode domain.PollMode, failed bool) {
	outcome := "ok"
	if failed {
		outcome = "failed"
	}
	r.pollTicks.WithLabelValues(string(mode), outcome).Inc()
}

// SetActivePolls reports the in-flight poll count.
func (r *Recorder) SetActivePolls(n int) {
	r.activePolls.Set(float64(n))
}

// ObserveTerminal records a document reaching a terminal status.
func (r *Recorder) ObserveTerminal(status domain.DocumentStatus, elapsed time.Duration) {
	r.terminal.WithLabelValues(string(status)).Observe(elapsed.Seconds())
}
