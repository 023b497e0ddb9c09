package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rudrakanya/Simhasth-X8/metric"
)

// evictDivisor implements the 20% eviction bound: one fifth of the entry
// count, rounded down.
const evictDivisor = 5

// Governor bounds the dynamic tier's storage usage. It runs on a fixed
// interval, and when usage exceeds the ceiling it evicts the oldest fifth of
// entries by insertion time. Static and heritage tiers are never touched.
//
// A scan may race an in-flight fetch; an entry written during eviction can be
// removed right after being stored. That is accepted as a non-fatal,
// occasionally suboptimal outcome.
type Governor struct {
	dynamic  *TierStore
	ceiling  int64
	interval time.Duration
	logger   *slog.Logger

	usageGauge prometheus.Gauge
	evictions  prometheus.Counter
}

// GovernorOption configures a Governor.
type GovernorOption func(*Governor)

// WithGovernorMetrics registers usage and eviction metrics.
func WithGovernorMetrics(registry *metric.Registry) GovernorOption {
	return func(g *Governor) {
		gauge := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "simhasth", Subsystem: "governor", Name: "dynamic_tier_bytes",
			Help: "Current stored size of the dynamic tier",
		})
		counter := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "simhasth", Subsystem: "governor", Name: "evictions_total",
			Help: "Total entries evicted from the dynamic tier",
		})
		if err := registry.RegisterGauge("governor", "dynamic_tier_bytes", gauge); err == nil {
			g.usageGauge = gauge
		}
		if err := registry.RegisterCounter("governor", "evictions_total", counter); err == nil {
			g.evictions = counter
		}
	}
}

// NewGovernor creates a size governor over the dynamic tier.
func NewGovernor(dynamic *TierStore, ceiling int64, interval time.Duration, logger *slog.Logger, opts ...GovernorOption) *Governor {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Governor{
		dynamic:  dynamic,
		ceiling:  ceiling,
		interval: interval,
		logger:   logger.With("component", "governor"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Run executes governance cycles on the configured interval until the
// context is cancelled. Cycle failures are logged and never interrupt
// request handling.
func (g *Governor) Run(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := g.CheckOnce(ctx); err != nil {
				g.logger.Warn("governance cycle skipped", "error", err)
			}
		}
	}
}

// CheckOnce runs a single governance cycle and returns how many entries were
// evicted.
func (g *Governor) CheckOnce(ctx context.Context) (int, error) {
	usage, err := g.dynamic.Usage(ctx)
	if err != nil {
		return 0, err
	}
	if g.usageGauge != nil {
		g.usageGauge.Set(float64(usage))
	}

	if usage <= g.ceiling {
		return 0, nil
	}

	metas, err := g.dynamic.scan(ctx)
	if err != nil {
		return 0, err
	}
	if len(metas) == 0 {
		return 0, nil
	}

	count := len(metas) / evictDivisor
	if count == 0 {
		// Over ceiling with fewer than five entries; evict one so the cycle
		// still makes progress.
		count = 1
	}

	evicted := 0
	for _, meta := range metas[:count] {
		if err := g.dynamic.deleteStoreKey(ctx, meta.StoreKey); err != nil {
			g.logger.Warn("eviction failed", "key", meta.Key, "error", err)
			continue
		}
		evicted++
		if g.evictions != nil {
			g.evictions.Inc()
		}
	}

	g.logger.Info("dynamic tier evicted",
		"usage_bytes", usage,
		"ceiling_bytes", g.ceiling,
		"entries", len(metas),
		"evicted", evicted,
	)
	return evicted, nil
}
