package strategy

import (
	"context"
	"log/slog"
	"net/http"

	"golang.org/x/sync/singleflight"

	"github.com/rudrakanya/Simhasth-X8/cache"
	"github.com/rudrakanya/Simhasth-X8/classify"
)

// CacheFirst serves from its tier when a copy exists, otherwise fetches and
// persists successful responses. Static assets and heritage media both use
// this strategy, differing only in the tier they target.
type CacheFirst struct {
	name  string
	tier  *cache.TierStore
	fetch Fetcher
	// shell, when set, is served for failed page loads.
	shell  *Shell
	group  singleflight.Group
	logger *slog.Logger
}

var _ Strategy = (*CacheFirst)(nil)

// CacheFirstOption configures a CacheFirst strategy.
type CacheFirstOption func(*CacheFirst)

// WithShellFallback serves the cached app shell when a page-load request
// fails entirely.
func WithShellFallback(shell *Shell) CacheFirstOption {
	return func(cf *CacheFirst) {
		cf.shell = shell
	}
}

// NewCacheFirst builds a cache-first strategy over a tier.
func NewCacheFirst(name string, tier *cache.TierStore, fetch Fetcher, logger *slog.Logger, opts ...CacheFirstOption) *CacheFirst {
	if logger == nil {
		logger = slog.Default()
	}
	cf := &CacheFirst{
		name:   name,
		tier:   tier,
		fetch:  fetch,
		logger: logger.With("strategy", name),
	}
	for _, opt := range opts {
		opt(cf)
	}
	return cf
}

// Name returns the strategy name.
func (cf *CacheFirst) Name() string { return cf.name }

// Serve implements the cache-first flow: cached copy wins outright; a miss
// fetches (deduplicated across concurrent misses for the same key), persists
// 2xx responses, and returns the live response. On total network failure the
// tier is rechecked, then the shell fallback applies to page loads, then the
// failure propagates.
func (cf *CacheFirst) Serve(ctx context.Context, r *http.Request) (*Result, error) {
	key := cache.RequestKey(r.Method, cf.fetch.Resolve(r))

	if entry, err := cf.tier.Get(ctx, key); err == nil {
		return resultFromEntry(entry), nil
	}

	value, err, _ := cf.group.Do(key, func() (any, error) {
		result, fetchErr := cf.fetch.Do(ctx, r)
		if fetchErr != nil {
			return nil, fetchErr
		}
		if result.OK() {
			entry := cache.NewEntry(key, result.Status, result.Header, result.Body)
			if putErr := cf.tier.Put(ctx, entry); putErr != nil {
				cf.logger.Warn("cache write failed", "key", key, "error", putErr)
			}
		}
		return result, nil
	})
	if err == nil {
		return value.(*Result), nil
	}

	// Total failure: another in-flight request may have populated the tier
	// in the meantime.
	if entry, getErr := cf.tier.Get(ctx, key); getErr == nil {
		return resultFromEntry(entry), nil
	}

	if cf.shell != nil && classify.IsNavigation(r) {
		if result, shellErr := cf.shell.Get(ctx); shellErr == nil {
			return result, nil
		}
	}

	return nil, err
}
