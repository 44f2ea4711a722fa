package feed

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records engine and pager activity. A nil *Metrics records nothing.
type Metrics struct {
	mutations *prometheus.CounterVec
	pending   prometheus.Gauge
	pageLoads *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "duosync",
			Name:      "mutations_total",
			Help:      "Optimistic mutations by kind and outcome.",
		}, []string{"kind", "outcome"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "duosync",
			Name:      "pending_mutations",
			Help:      "Optimistic mutations awaiting the gateway.",
		}),
		pageLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "duosync",
			Name:      "page_loads_total",
			Help:      "Page loads by feed and outcome.",
		}, []string{"feed", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.mutations, m.pending, m.pageLoads)
	}
	return m
}

func (m *Metrics) applied() {
	if m == nil {
		return
	}
	m.pending.Inc()
}

func (m *Metrics) settled(kind MutationKind, phase Phase) {
	if m == nil {
		return
	}
	m.pending.Dec()
	m.mutations.WithLabelValues(string(kind), phase.String()).Inc()
}

func (m *Metrics) pageLoaded(feed string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.pageLoads.WithLabelValues(feed, outcome).Inc()
}
