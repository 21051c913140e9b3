package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	CheckoutTotal    *prometheus.CounterVec // outcome: created | rejected | error
	WebhookEvents    *prometheus.CounterVec // gateway, result
	StockRetries     prometheus.Counter
	StockEscalations prometheus.Counter
	HTTPDuration     *prometheus.HistogramVec
}

func New(service string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		CheckoutTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkout",
			Subsystem: service,
			Name:      "orders_total",
			Help:      "Checkout attempts by outcome.",
		}, []string{"outcome"}),
		WebhookEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkout",
			Subsystem: service,
			Name:      "webhook_events_total",
			Help:      "Gateway webhook events by verification/processing result.",
		}, []string{"gateway", "result"}),
		StockRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "checkout",
			Subsystem: service,
			Name:      "stock_retries_total",
			Help:      "Stock reconciliation attempts that had to be retried.",
		}),
		StockEscalations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "checkout",
			Subsystem: service,
			Name:      "stock_escalations_total",
			Help:      "Reconciliations that exhausted the retry budget.",
		}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "checkout",
			Subsystem: service,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"handler"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
