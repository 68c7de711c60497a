package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Settlement outcomes.
const (
	SettlementSettled      = "settled"
	SettlementNoop         = "noop"
	SettlementFailed       = "failed"
	SettlementDeadLettered = "dead_lettered"
)

// SettlementMetrics counts settlement task executions.
type SettlementMetrics struct {
	outcomes *prometheus.CounterVec
	armed    prometheus.Counter
}

func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "settlement",
		Name:      "tasks_total",
		Help:      "Settlement task executions by outcome.",
	}, []string{"outcome"})
	armed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "settlement",
		Name:      "rearmed_total",
		Help:      "Delivered orders re-armed by the reconciler.",
	})
	reg.MustRegister(outcomes, armed)
	return &SettlementMetrics{outcomes: outcomes, armed: armed}
}

func (m *SettlementMetrics) Inc(outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(outcome).Inc()
}

func (m *SettlementMetrics) AddRearmed(n int) {
	if m == nil || m.armed == nil || n <= 0 {
		return
	}
	m.armed.Add(float64(n))
}
