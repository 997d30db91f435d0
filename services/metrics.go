package services

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"orchestrator-backend/core/workflow"
)

// Metrics holds the Prometheus collectors of one process. Each instance owns
// its registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	events          *prometheus.CounterVec
	ordersAdded     prometheus.Counter
	ordersDiscarded prometheus.Counter
	walletsCreated  prometheus.Counter
	tokensReleased  prometheus.Counter
	unclaimable     prometheus.Counter
	persistFailures prometheus.Counter
}

// NewMetrics registers the orchestrator collectors plus the Go runtime and
// process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orchestrator",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "orchestrator",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orchestrator",
			Name:      "events_total",
			Help:      "Committed workflow events by type.",
		}, []string{"type"}),
		ordersAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orchestrator",
			Name:      "payment_orders_added_total",
			Help:      "Payment orders queued by payment clients.",
		}),
		ordersDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orchestrator",
			Name:      "payment_orders_discarded_total",
			Help:      "Invalid payment orders discarded by the processor.",
		}),
		walletsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orchestrator",
			Name:      "streaming_wallets_created_total",
			Help:      "Vesting wallets created.",
		}),
		tokensReleased: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orchestrator",
			Name:      "tokens_released_total",
			Help:      "Base units paid out to contributors.",
		}),
		unclaimable: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orchestrator",
			Name:      "unclaimable_amount_added_total",
			Help:      "Base units moved to the unclaimable bucket after failed transfers.",
		}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orchestrator",
			Name:      "event_persist_failures_total",
			Help:      "Events that could not be written to the event store.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration, m.events,
		m.ordersAdded, m.ordersDiscarded, m.walletsCreated,
		m.tokensReleased, m.unclaimable, m.persistFailures,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveHTTP records one finished request.
func (m *Metrics) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveEvent updates the domain counters from a committed event.
func (m *Metrics) ObserveEvent(evt workflow.Event) {
	m.events.WithLabelValues(string(evt.Type)).Inc()
	switch evt.Type {
	case workflow.EventPaymentOrderAdded:
		m.ordersAdded.Inc()
	case workflow.EventPaymentOrderDiscarded:
		m.ordersDiscarded.Inc()
	case workflow.EventStreamingPaymentAdded:
		m.walletsCreated.Inc()
	case workflow.EventTokensReleased:
		m.tokensReleased.Add(float64(evt.Amount))
	case workflow.EventUnclaimableAmountAdded:
		m.unclaimable.Add(float64(evt.Amount))
	}
}

func (m *Metrics) observePersistFailure() { m.persistFailures.Inc() }
