// Package metrics provides Prometheus collectors for quotes, lead
// forwarding, the catalog and the HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nexx"

// Forwarding outcomes
const (
	OutcomeDelivered = "delivered"
	OutcomeRetried   = "retried"
	OutcomeFailed    = "failed"
	OutcomeDropped   = "dropped"
)

// Metrics holds every collector. The zero value is not usable; use New.
type Metrics struct {
	registry *prometheus.Registry

	quoteItems      *prometheus.CounterVec
	quotes          *prometheus.CounterVec
	unresolvable    *prometheus.CounterVec
	forwards        *prometheus.CounterVec
	forwardDuration *prometheus.HistogramVec
	catalogDevices  prometheus.Gauge
	catalogLoads    *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// New creates collectors on a fresh registry, including Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		quoteItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_items_total",
			Help:      "Resolved quote line items by pricing tier.",
		}, []string{"tier"}),
		quotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_total",
			Help:      "Quote requests by result.",
		}, []string{"result"}),
		unresolvable: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_unresolvable_total",
			Help:      "Defect and device type pairs no tier could price.",
		}, []string{"device_type"}),
		forwards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lead_forwards_total",
			Help:      "Lead forwarding attempts by sink and outcome.",
		}, []string{"sink", "outcome"}),
		forwardDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lead_forward_duration_seconds",
			Help:      "Time from enqueue to final outcome of a lead.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"sink"}),
		catalogDevices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_devices",
			Help:      "Devices in the loaded catalog.",
		}),
		catalogLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_loads_total",
			Help:      "Catalog load attempts by result.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.quoteItems, m.quotes, m.unresolvable,
		m.forwards, m.forwardDuration,
		m.catalogDevices, m.catalogLoads,
		m.httpRequests, m.httpDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// QuoteItem counts one resolved line item
func (m *Metrics) QuoteItem(tier string) {
	m.quoteItems.WithLabelValues(tier).Inc()
}

// Quote counts one quote request result ("ok", "unresolvable", "invalid", ...)
func (m *Metrics) Quote(result string) {
	m.quotes.WithLabelValues(result).Inc()
}

// Unresolvable counts a pair no tier could price
func (m *Metrics) Unresolvable(deviceType string) {
	if deviceType == "" {
		deviceType = "unknown"
	}
	m.unresolvable.WithLabelValues(deviceType).Inc()
}

// Forward records one forwarding event
func (m *Metrics) Forward(sink, outcome string) {
	m.forwards.WithLabelValues(sink, outcome).Inc()
}

// ForwardDone observes the total time spent on one lead
func (m *Metrics) ForwardDone(sink string, took time.Duration) {
	m.forwardDuration.WithLabelValues(sink).Observe(took.Seconds())
}

// CatalogLoaded records a successful catalog install
func (m *Metrics) CatalogLoaded(devices int) {
	m.catalogDevices.Set(float64(devices))
	m.catalogLoads.WithLabelValues("ok").Inc()
}

// CatalogFailed records a failed load attempt
func (m *Metrics) CatalogFailed() {
	m.catalogLoads.WithLabelValues("error").Inc()
}

// HTTPRequest records one served request
func (m *Metrics) HTTPRequest(route, method string, status int, took time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(took.Seconds())
}
