package service

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rudrakanya/Simhasth-X8/errors"
	"github.com/rudrakanya/Simhasth-X8/health"
	"github.com/rudrakanya/Simhasth-X8/strategy"
)

// Prober checks whether the origin is reachable.
type Prober interface {
	Probe(ctx context.Context) error
}

// OriginProber probes the origin's health endpoint through the fetcher.
type OriginProber struct {
	fetch strategy.Fetcher
	path  string
}

// NewOriginProber creates a prober for the configured probe path.
func NewOriginProber(fetch strategy.Fetcher, path string) *OriginProber {
	return &OriginProber{fetch: fetch, path: path}
}

// Probe fetches the probe path. Any network failure or 5xx answer counts as
// unreachable.
func (p *OriginProber) Probe(ctx context.Context) error {
	r, err := http.NewRequestWithContext(ctx, http.MethodGet, p.path, nil)
	if err != nil {
		return err
	}
	result, err := p.fetch.Do(ctx, r)
	if err != nil {
		return err
	}
	if result.Status >= http.StatusInternalServerError {
		return errors.WrapTransient(errors.ErrOriginUnreachable, "OriginProber", "Probe", p.path)
	}
	return nil
}

// Watcher tracks origin connectivity. The offline-to-online transition is
// the reconnect signal: it fires the registered callback, which the
// coordinator points at the queue flusher.
type Watcher struct {
	prober   Prober
	interval time.Duration
	online   atomic.Bool
	onOnline func(ctx context.Context)
	monitor  *health.Monitor
	logger   *slog.Logger
}

// NewWatcher creates a connectivity watcher. The edge starts out presumed
// online; the first failed probe flips it.
func NewWatcher(prober Prober, interval time.Duration, onOnline func(context.Context), monitor *health.Monitor, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Watcher{
		prober:   prober,
		interval: interval,
		onOnline: onOnline,
		monitor:  monitor,
		logger:   logger.With("component", "watcher"),
	}
	w.online.Store(true)
	return w
}

// Online reports the last observed connectivity state.
func (w *Watcher) Online() bool {
	return w.online.Load()
}

// Run probes on the configured interval until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.CheckOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.CheckOnce(ctx)
		}
	}
}

// CheckOnce probes the origin once and returns the resulting state. An
// offline-to-online transition fires the reconnect callback synchronously,
// so queued actions are flushed before the next probe.
func (w *Watcher) CheckOnce(ctx context.Context) bool {
	err := w.prober.Probe(ctx)
	online := err == nil
	was := w.online.Swap(online)

	switch {
	case online && !was:
		w.logger.Info("origin reachable again, flushing deferred actions")
		if w.monitor != nil {
			w.monitor.UpdateHealthy("origin", "reachable")
		}
		if w.onOnline != nil {
			w.onOnline(ctx)
		}
	case !online && was:
		w.logger.Warn("origin unreachable, entering offline mode", "error", err)
		if w.monitor != nil {
			w.monitor.UpdateDegraded("origin", "unreachable, serving from cache")
		}
	}
	return online
}
