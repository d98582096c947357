// Package metrics exposes Prometheus counters for the purchase workflow.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Registry = prometheus.NewRegistry()

	CheckoutOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coursehaven",
		Subsystem: "checkout",
		Name:      "outcomes_total",
		Help:      "Checkout steps by outcome.",
	}, []string{"outcome"})

	WebhookEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coursehaven",
		Subsystem: "webhook",
		Name:      "events_total",
		Help:      "Payment webhook deliveries by event type and result.",
	}, []string{"type", "result"})
)

func init() {
	Registry.MustRegister(
		CheckoutOutcomes,
		WebhookEvents,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Recorder feeds checkout outcomes into the package counters.
type Recorder struct{}

func (Recorder) CheckoutOutcome(outcome string) {
	CheckoutOutcomes.WithLabelValues(outcome).Inc()
}

func (Recorder) WebhookEvent(eventType, result string) {
	WebhookEvents.WithLabelValues(eventType, result).Inc()
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
