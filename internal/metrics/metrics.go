// Package metrics holds the Prometheus collectors shared by the report driver, HTTP API and worker.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tally"

// Run outcomes.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Delivery outcomes of the AMQP worker.
const (
	DeliveryAcked    = "acked"
	DeliveryRejected = "rejected"
	DeliveryRequeued = "requeued"
)

// Metrics is a set of collectors bound to one registry.
type Metrics struct {
	registry *prometheus.Registry

	ReportRuns       *prometheus.CounterVec
	ReportDuration   *prometheus.HistogramVec
	RecordsProcessed *prometheus.CounterVec
	LastSuccess      *prometheus.GaugeVec
	HTTPRequests     *prometheus.CounterVec
	Deliveries       *prometheus.CounterVec
}

// New creates the collectors and registers them, plus the Go and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ReportRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_runs_total",
			Help:      "Report runs by record source and outcome.",
		}, []string{"source", "status"}),
		ReportDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_run_duration_seconds",
			Help:      "Wall time of a report run, loading included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		RecordsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_processed_total",
			Help:      "Ledger records fed to the aggregation engine.",
		}, []string{"source"}),
		LastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "report_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful report run.",
		}, []string{"source"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "amqp_deliveries_total",
			Help:      "AMQP ledger deliveries by outcome.",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ReportRuns,
		m.ReportDuration,
		m.RecordsProcessed,
		m.LastSuccess,
		m.HTTPRequests,
		m.Deliveries,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
