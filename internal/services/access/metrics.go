package access

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics считает решения шлюза.
type Metrics struct {
	decisions *prometheus.CounterVec
}

// NewMetrics регистрирует счётчик formpulse_access_decisions_total в reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "formpulse",
			Name:      "access_decisions_total",
			Help:      "Access gate decisions by route, terminal state and failure kind.",
		}, []string{"route", "state", "kind"}),
	}
	reg.MustRegister(m.decisions)
	return m
}

func (m *Metrics) observe(d Decision) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(d.Route, string(d.State), d.Kind.String()).Inc()
}
