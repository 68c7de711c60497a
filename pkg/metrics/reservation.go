package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Reservation outcomes.
const (
	ReservationAcquired = "acquired"
	ReservationBusy     = "busy"
	ReservationError    = "error"
)

// ReservationMetrics tracks the per-unit reservation lease.
type ReservationMetrics struct {
	wait     *prometheus.HistogramVec
	outcomes *prometheus.CounterVec
}

func NewReservationMetrics(reg prometheus.Registerer) *ReservationMetrics {
	if reg == nil {
		return &ReservationMetrics{}
	}
	wait := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "reservation",
		Name:      "acquire_wait_seconds",
		Help:      "Time spent waiting for an inventory unit lease.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"outcome"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reservation",
		Name:      "acquire_total",
		Help:      "Lease acquisition attempts by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(wait, outcomes)
	return &ReservationMetrics{wait: wait, outcomes: outcomes}
}

// Observe records one acquisition attempt and how long it waited.
func (m *ReservationMetrics) Observe(outcome string, waited time.Duration) {
	if m == nil || m.wait == nil {
		return
	}
	m.wait.WithLabelValues(outcome).Observe(waited.Seconds())
	m.outcomes.WithLabelValues(outcome).Inc()
}
