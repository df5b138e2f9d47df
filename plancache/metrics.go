package plancache

import (
	stderrors "errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of one cache.
type Metrics struct {
	HitTotal   prometheus.Counter
	MissTotal  prometheus.Counter
	StoreTotal prometheus.Counter
	Entries    prometheus.Gauge
}

// NewMetrics creates the collectors of the cache called name and registers
// them with reg. Collectors already registered under the same identity are
// reused, so several compilers may share one registry. A nil reg leaves the
// collectors unregistered.
func NewMetrics(reg prometheus.Registerer, namespace, name string) *Metrics {
	labels := prometheus.Labels{"cache": name}
	m := &Metrics{
		HitTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "plan_cache_hit_total",
			Help:        "Total number of plan cache hits",
			ConstLabels: labels,
		}),
		MissTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "plan_cache_miss_total",
			Help:        "Total number of plan cache misses",
			ConstLabels: labels,
		}),
		StoreTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "plan_cache_store_total",
			Help:        "Total number of entries published to the plan cache",
			ConstLabels: labels,
		}),
		Entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "plan_cache_entries",
			Help:        "Current number of entries in the plan cache",
			ConstLabels: labels,
		}),
	}
	if reg == nil {
		return m
	}
	m.HitTotal = register(reg, m.HitTotal)
	m.MissTotal = register(reg, m.MissTotal)
	m.StoreTotal = register(reg, m.StoreTotal)
	m.Entries = register(reg, m.Entries)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if stderrors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *Metrics) hit() {
	if m != nil {
		m.HitTotal.Inc()
	}
}

func (m *Metrics) miss() {
	if m != nil {
		m.MissTotal.Inc()
	}
}

func (m *Metrics) stored(entries int) {
	if m != nil {
		m.StoreTotal.Inc()
		m.Entries.Set(float64(entries))
	}
}
