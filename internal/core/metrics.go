package core

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the bot's Prometheus instruments on a private registry, so
// tests can create as many instances as they need without duplicate
// registration panics.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	eventsTotal     *prometheus.CounterVec
	deliveriesTotal *prometheus.CounterVec
	paymentsTotal   *prometheus.CounterVec
}

// NewMetrics builds the instrument set, including standard Go runtime and
// process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_http_requests_total",
			Help: "Total inbound HTTP requests",
		}, []string{"method", "path", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name: "bot_http_request_duration_seconds",
			Help: "Inbound HTTP request duration in seconds",
		}, []string{"method", "path"}),
		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_events_total",
			Help: "Conversation events dispatched, by type and outcome",
		}, []string{"type", "outcome"}),
		deliveriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_deliveries_total",
			Help: "Forecast delivery attempts, by result",
		}, []string{"result"}),
		paymentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_payments_total",
			Help: "Payment confirmations, by result",
		}, []string{"result"}),
	}
}

// RecordRequest records one inbound HTTP request.
func (m *Metrics) RecordRequest(method, path, status string, duration time.Duration) {
	m.requestsTotal.WithLabelValues(method, path, status).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordEvent records one dispatched conversation event.
func (m *Metrics) RecordEvent(eventType, outcome string) {
	m.eventsTotal.WithLabelValues(eventType, outcome).Inc()
}

// RecordDelivery records one forecast delivery attempt.
func (m *Metrics) RecordDelivery(result string) {
	m.deliveriesTotal.WithLabelValues(result).Inc()
}

// RecordPayment records one payment confirmation.
func (m *Metrics) RecordPayment(result string) {
	m.paymentsTotal.WithLabelValues(result).Inc()
}

// Handler serves the registry in Prometheus exposition format, for the
// metrics listener.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
