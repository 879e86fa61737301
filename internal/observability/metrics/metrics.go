package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for the booking flows.
type SchedulingMetrics struct {
	createdTotal   *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	conflictsTotal prometheus.Counter
	createLatency  prometheus.Histogram
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		createdTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "therapyportal",
			Subsystem: "scheduling",
			Name:      "sessions_created_total",
			Help:      "Total sessions booked",
		}, []string{"therapy_type"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "therapyportal",
			Subsystem: "scheduling",
			Name:      "transitions_total",
			Help:      "Total status transition attempts",
		}, []string{"action", "outcome"}),
		conflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "therapyportal",
			Subsystem: "scheduling",
			Name:      "conflicts_rejected_total",
			Help:      "Bookings rejected by the overlap check",
		}),
		createLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "therapyportal",
			Subsystem: "scheduling",
			Name:      "create_latency_seconds",
			Help:      "Latency of session creation including validation",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.createdTotal, m.transitions, m.conflictsTotal, m.createLatency)
	return m
}

func (m *SchedulingMetrics) ObserveCreated(therapyType string, seconds float64) {
	if m == nil {
		return
	}
	m.createdTotal.WithLabelValues(therapyType).Inc()
	m.createLatency.Observe(seconds)
}

func (m *SchedulingMetrics) ObserveTransition(action, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(action, outcome).Inc()
}

func (m *SchedulingMetrics) ObserveConflict() {
	if m == nil {
		return
	}
	m.conflictsTotal.Inc()
}
