package cache

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rudrakanya/Simhasth-X8/metric"
)

// tierMetrics holds Prometheus counters for one tier. A nil receiver is a
// no-op so tier stores work without a registry in tests.
type tierMetrics struct {
	hits    prometheus.Counter
	misses  prometheus.Counter
	sets    prometheus.Counter
	deletes prometheus.Counter
}

// NewTierMetrics creates and registers counters for a tier.
func NewTierMetrics(registry *metric.Registry, tier Tier) (*tierMetrics, error) {
	labels := prometheus.Labels{"tier": string(tier)}
	m := &tierMetrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "simhasth", Subsystem: "cache", Name: "hits_total",
			ConstLabels: labels, Help: "Total number of cache hits",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "simhasth", Subsystem: "cache", Name: "misses_total",
			ConstLabels: labels, Help: "Total number of cache misses",
		}),
		sets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "simhasth", Subsystem: "cache", Name: "sets_total",
			ConstLabels: labels, Help: "Total number of cache writes",
		}),
		deletes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "simhasth", Subsystem: "cache", Name: "deletes_total",
			ConstLabels: labels, Help: "Total number of cache deletions",
		}),
	}

	component := string(tier)
	if err := registry.RegisterCounter(component, "cache_hits", m.hits); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(component, "cache_misses", m.misses); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(component, "cache_sets", m.sets); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(component, "cache_deletes", m.deletes); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *tierMetrics) recordHit() {
	if m != nil {
		m.hits.Inc()
	}
}

func (m *tierMetrics) recordMiss() {
	if m != nil {
		m.misses.Inc()
	}
}

func (m *tierMetrics) recordSet() {
	if m != nil {
		m.sets.Inc()
	}
}

func (m *tierMetrics) recordDelete() {
	if m != nil {
		m.deletes.Inc()
	}
}
