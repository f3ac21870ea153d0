package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outbox publish results.
const (
	OutboxPublished    = "published"
	OutboxRetry        = "retry"
	OutboxDeadLettered = "dead_lettered"
)

// OutboxMetrics counts what the publisher did with each outbox row.
type OutboxMetrics struct {
	events *prometheus.CounterVec
}

// NewOutboxMetrics registers the publisher counters. A nil registerer
// yields a no-op recorder.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_total",
			Help:      "Outbox rows handled by the publisher by event type and result.",
		}, []string{"event_type", "result"}),
	}
	reg.MustRegister(m.events)
	return m
}

func (m *OutboxMetrics) Observe(eventType, result string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(label(eventType), label(result)).Inc()
}
