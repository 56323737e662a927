package stack

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the prometheus counters a Stack updates as it routes
// traffic. Register once and pass to WithMetrics; a nil Metrics
// (the default) disables collection entirely. TimerFires is registered
// but nothing in this module increments it.
type Metrics struct {
	TransactionsCreated  *prometheus.CounterVec
	TransactionsTerminated *prometheus.CounterVec
	TimerFires           *prometheus.CounterVec
	ValidatorRejections  prometheus.Counter
	StrayMessages        *prometheus.CounterVec
}

// NewMetrics builds a Metrics struct and registers every collector
// against reg. Pass prometheus.DefaultRegisterer to expose it through
// promhttp.Handler().
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TransactionsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sipkit",
			Name:      "transactions_created_total",
			Help:      "SIP transactions created, by kind (client/server) and method.",
		}, []string{"kind", "method"}),
		TransactionsTerminated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sipkit",
			Name:      "transactions_terminated_total",
			Help:      "SIP transactions terminated, by kind and terminal cause.",
		}, []string{"kind", "cause"}),
		TimerFires: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sipkit",
			Name:      "timer_fires_total",
			Help:      "RFC 3261 section 17 timer fires, by timer name.",
		}, []string{"timer"}),
		ValidatorRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sipkit",
			Name:      "validator_rejections_total",
			Help:      "Inbound messages dropped by Validate before reaching a transaction.",
		}),
		StrayMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sipkit",
			Name:      "stray_messages_total",
			Help:      "Messages that reached Core with no matching transaction, by kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		m.TransactionsCreated,
		m.TransactionsTerminated,
		m.TimerFires,
		m.ValidatorRejections,
		m.StrayMessages,
	)
	return m
}

func (m *Metrics) txCreated(kind, method string) {
	if m == nil {
		return
	}
	m.TransactionsCreated.WithLabelValues(kind, method).Inc()
}

func (m *Metrics) txTerminated(kind, cause string) {
	if m == nil {
		return
	}
	m.TransactionsTerminated.WithLabelValues(kind, cause).Inc()
}

func (m *Metrics) validatorRejection() {
	if m == nil {
		return
	}
	m.ValidatorRejections.Inc()
}

func (m *Metrics) stray(kind string) {
	if m == nil {
		return
	}
	m.StrayMessages.WithLabelValues(kind).Inc()
}
