package metrics

import "github.com/prometheus/client_golang/prometheus"

// InventoryMetrics tracks lifecycle engine activity. A nil receiver is a no-op
// so services can run without a registry.
type InventoryMetrics struct {
	movements     *prometheus.CounterVec
	arrivals      *prometheus.CounterVec
	conflicts     *prometheus.CounterVec
	exhausted     *prometheus.CounterVec
	discrepancies prometheus.Gauge
}

// NewInventoryMetrics registers the inventory metrics on the provided registerer.
func NewInventoryMetrics(reg prometheus.Registerer) *InventoryMetrics {
	if reg == nil {
		return &InventoryMetrics{}
	}
	movements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "assetledger_inventory_movements_total",
		Help: "Committed inventory movements by type.",
	}, []string{"type"})
	arrivals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "assetledger_part_arrivals_total",
		Help: "Arrival entries processed by outcome code.",
	}, []string{"result"})
	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "assetledger_inventory_conflicts_total",
		Help: "Optimistic concurrency conflicts that triggered a retry.",
	}, []string{"operation"})
	exhausted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "assetledger_inventory_retries_exhausted_total",
		Help: "Operations that gave up after the retry budget.",
	}, []string{"operation"})
	discrepancies := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "assetledger_inventory_reconcile_discrepancies",
		Help: "Discrepancies found by the most recent reconciliation run.",
	})
	reg.MustRegister(movements, arrivals, conflicts, exhausted, discrepancies)
	return &InventoryMetrics{
		movements:     movements,
		arrivals:      arrivals,
		conflicts:     conflicts,
		exhausted:     exhausted,
		discrepancies: discrepancies,
	}
}

func (m *InventoryMetrics) IncMovement(movementType string) {
	if m == nil || m.movements == nil {
		return
	}
	m.movements.WithLabelValues(normalizeLabel(movementType)).Inc()
}

func (m *InventoryMetrics) IncArrival(result string) {
	if m == nil || m.arrivals == nil {
		return
	}
	m.arrivals.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *InventoryMetrics) IncConflict(operation string) {
	if m == nil || m.conflicts == nil {
		return
	}
	m.conflicts.WithLabelValues(normalizeLabel(operation)).Inc()
}

func (m *InventoryMetrics) IncRetriesExhausted(operation string) {
	if m == nil || m.exhausted == nil {
		return
	}
	m.exhausted.WithLabelValues(normalizeLabel(operation)).Inc()
}

func (m *InventoryMetrics) SetDiscrepancies(n int) {
	if m == nil || m.discrepancies == nil {
		return
	}
	m.discrepancies.Set(float64(n))
}
