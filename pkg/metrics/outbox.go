package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics covers the relay that publishes inventory events.
type OutboxMetrics struct {
	events       *prometheus.CounterVec
	passDuration prometheus.Histogram
	passFailures prometheus.Counter
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assetledger_outbox_events_total",
			Help: "Outbox rows handled by the relay, by outcome.",
		}, []string{"outcome"}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "assetledger_outbox_pass_duration_seconds",
			Help:    "Wall time of one relay pass over a locked batch.",
			Buckets: prometheus.DefBuckets,
		}),
		passFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assetledger_outbox_pass_failures_total",
			Help: "Relay passes rolled back on a bookkeeping error.",
		}),
	}
	reg.MustRegister(m.events, m.passDuration, m.passFailures)
	return m
}

// ObservePass records the outcome counts of a committed pass.
func (m *OutboxMetrics) ObservePass(published, retried, deadLettered int, took time.Duration) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues("published").Add(float64(published))
	m.events.WithLabelValues("retried").Add(float64(retried))
	m.events.WithLabelValues("dead_lettered").Add(float64(deadLettered))
	m.passDuration.Observe(took.Seconds())
}

func (m *OutboxMetrics) IncPassFailure() {
	if m == nil || m.passFailures == nil {
		return
	}
	m.passFailures.Inc()
}
