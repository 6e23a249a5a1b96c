package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry    *prometheus.Registry
	runs        *prometheus.CounterVec // total update runs
	runDuration prometheus.Histogram   // time to run
	lastRun     prometheus.Gauge       // unix time of last finished run
	updates     *prometheus.CounterVec // per subdomain outcomes
	dnsRequests *prometheus.CounterVec // dns provider requests
	ipRequests  *prometheus.CounterVec // public ip lookups
}

// Public interface for metrics operations
func (m *Metrics) IncRun(success bool) {
	m.runs.WithLabelValues(boolToResult(success)).Inc()
	m.lastRun.SetToCurrentTime()
}

func (m *Metrics) SetRunDuration(duration time.Duration) {
	m.runDuration.Observe(duration.Seconds())
}

func (m *Metrics) IncUpdate(backend, outcome string) {
	if backend == "" || !isValidOutcome(outcome) {
		return
	}
	m.updates.WithLabelValues(backend, outcome).Inc()
}

func (m *Metrics) IncDNSRequest(backend, operation string, success bool) {
	if backend == "" || !isValidOperation(operation) {
		return
	}
	m.dnsRequests.WithLabelValues(backend, operation, boolToResult(success)).Inc()
}

func (m *Metrics) IncIPRequest(success bool) {
	m.ipRequests.WithLabelValues(boolToResult(success)).Inc()
}

// WriteTextfile writes the registry in the text exposition format, for the
// node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Validation helpers
func boolToResult(b bool) string {
	if b {
		return "success"
	}
	return "failure"
}

func isValidOperation(op string) bool {
	switch op {
	case "zone_lookup", "record_lookup", "update":
		return true
	}
	return false
}

func isValidOutcome(outcome string) bool {
	switch outcome {
	case "success", "fail", "skipped":
		return true
	}
	return false
}

func New(register bool) *Metrics {
	registry := prometheus.NewRegistry()
	namespace := "dnsupdate"

	m := &Metrics{
		registry: registry,

		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of update runs",
		}, []string{"status"}),

		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of update runs in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last finished update run",
		}),

		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Total subdomain updates by outcome",
		}, []string{"backend", "outcome"}),

		dnsRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total DNS provider requests",
		}, []string{"backend", "operation", "status"}),

		ipRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ip_requests_total",
			Help:      "Total public IP lookups",
		}, []string{"status"}),
	}

	if register {
		registry.MustRegister(
			m.runs,
			m.runDuration,
			m.lastRun,
			m.updates,
			m.dnsRequests,
			m.ipRequests,
		)
	}
	return m
}
