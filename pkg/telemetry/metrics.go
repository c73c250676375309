package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stats exposes scheduler counters as a Prometheus counter vector. It
// satisfies the scheduler's StatsRegistry interface.
type Stats struct {
	registry *prometheus.Registry
	events   *prometheus.CounterVec
}

func NewStats() *Stats {
	registry := prometheus.NewRegistry()
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dispatch",
		Subsystem: "scheduler",
		Name:      "events_total",
		Help:      "Scheduler lifecycle events, labelled by event name.",
	}, []string{"event"})
	registry.MustRegister(events)

	return &Stats{registry: registry, events: events}
}

func (s *Stats) IncrementCounter(name string) {
	s.events.WithLabelValues(name).Inc()
}

// Handler serves the /metrics endpoint for this registry.
func (s *Stats) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
