package cache

import "github.com/prometheus/client_golang/prometheus"

const (
	resultHit   = "hit"
	resultMiss  = "miss"
	resultDedup = "dedup"
)

type Metrics struct {
	lookups *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		lookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hrconsole_cache_lookups_total",
				Help: "Cache reads by outcome: hit, miss (network fetch) or dedup (joined or reused fetch)",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(m.lookups)

	return m
}

func (m *Metrics) record(result string) {
	if m == nil {
		return
	}

	m.lookups.WithLabelValues(result).Inc()
}
