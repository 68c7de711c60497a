package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outbox publish outcomes.
const (
	OutboxPublished    = "published"
	OutboxRetried      = "retried"
	OutboxDeadLettered = "dead_lettered"
)

// OutboxMetrics counts relay attempts per event type.
type OutboxMetrics struct {
	attempts *prometheus.CounterVec
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "publish_total",
		Help:      "Outbox relay attempts by event type and outcome.",
	}, []string{"event_type", "outcome"})
	reg.MustRegister(attempts)
	return &OutboxMetrics{attempts: attempts}
}

func (m *OutboxMetrics) Inc(eventType, outcome string) {
	if m == nil || m.attempts == nil {
		return
	}
	m.attempts.WithLabelValues(eventType, outcome).Inc()
}
