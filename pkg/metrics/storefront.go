package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StorefrontMetrics counts cart mutations, persistence failures, bridge traffic and
// bounded-operation timeouts.
type StorefrontMetrics struct {
	cartMutations   *prometheus.CounterVec
	persistFailures *prometheus.CounterVec
	bridgeMessages  *prometheus.CounterVec
	timeouts        *prometheus.CounterVec
}

// NewStorefrontMetrics registers the storefront counters on the provided registerer.
// A nil registerer yields a recorder whose methods are no-ops.
func NewStorefrontMetrics(reg prometheus.Registerer) *StorefrontMetrics {
	if reg == nil {
		return &StorefrontMetrics{}
	}
	cartMutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cart_mutations_total",
		Help: "Cart mutations applied, by operation.",
	}, []string{"op"})
	persistFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cart_persist_failures_total",
		Help: "Failed cart snapshot writes or reads, by tier.",
	}, []string{"tier"})
	bridgeMessages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_bridge_messages_total",
		Help: "Inbound host bridge messages, by result.",
	}, []string{"result"})
	timeouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_timeouts_total",
		Help: "Bounded operations that hit their deadline, by operation.",
	}, []string{"operation"})
	reg.MustRegister(cartMutations, persistFailures, bridgeMessages, timeouts)
	return &StorefrontMetrics{
		cartMutations:   cartMutations,
		persistFailures: persistFailures,
		bridgeMessages:  bridgeMessages,
		timeouts:        timeouts,
	}
}

func (m *StorefrontMetrics) IncCartMutation(op string) {
	if m == nil || m.cartMutations == nil {
		return
	}
	m.cartMutations.WithLabelValues(normalizeLabel(op)).Inc()
}

func (m *StorefrontMetrics) IncPersistFailure(tier string) {
	if m == nil || m.persistFailures == nil {
		return
	}
	m.persistFailures.WithLabelValues(normalizeLabel(tier)).Inc()
}

func (m *StorefrontMetrics) IncBridgeMessage(result string) {
	if m == nil || m.bridgeMessages == nil {
		return
	}
	m.bridgeMessages.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *StorefrontMetrics) IncTimeout(operation string) {
	if m == nil || m.timeouts == nil {
		return
	}
	m.timeouts.WithLabelValues(normalizeLabel(operation)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
