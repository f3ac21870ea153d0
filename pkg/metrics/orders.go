package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics counts order engine events that matter operationally:
// settlements by outcome and abandoned cart sweeps by result.
type OrderMetrics struct {
	settlements *prometheus.CounterVec
	abandoned   *prometheus.CounterVec
	checkouts   *prometheus.CounterVec
}

func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	m := &OrderMetrics{
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "settlements_total",
			Help:      "Payment outcomes recorded against orders.",
		}, []string{"method", "status"}),
		abandoned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "abandoned_carts_total",
			Help:      "Abandoned carts processed by the sweep, by result.",
		}, []string{"result"}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "checkouts_total",
			Help:      "Checkout submissions by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.settlements, m.abandoned, m.checkouts)
	return m
}

// ObserveSettlement counts one recorded payment outcome.
func (m *OrderMetrics) ObserveSettlement(method, status string) {
	if m == nil || m.settlements == nil {
		return
	}
	m.settlements.WithLabelValues(label(method), label(status)).Inc()
}

// ObserveAbandoned adds the sweep results: deleted carts and failed deletions.
func (m *OrderMetrics) ObserveAbandoned(deleted, failed int) {
	if m == nil || m.abandoned == nil {
		return
	}
	m.abandoned.WithLabelValues("deleted").Add(float64(deleted))
	m.abandoned.WithLabelValues("failed").Add(float64(failed))
}

// ObserveCheckout counts one checkout submission; result is "submitted",
// "invalid" or "settlement_failed".
func (m *OrderMetrics) ObserveCheckout(result string) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkouts.WithLabelValues(label(result)).Inc()
}
