package strategy

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/rudrakanya/Simhasth-X8/cache"
)

// Fallback selects what a network-first strategy does when both network and
// cache come up empty.
type Fallback int

const (
	// FallbackPropagate surfaces the network failure to the caller.
	FallbackPropagate Fallback = iota
	// FallbackOfflineJSON synthesizes the structured offline API error.
	FallbackOfflineJSON
	// FallbackShellPage serves the cached app shell, else the minimal
	// offline HTML document.
	FallbackShellPage
)

// NetworkFirst always attempts the network and prefers a live response.
// Successful GET responses are persisted to the tier; on network failure the
// tier is consulted, and the configured fallback decides the rest.
type NetworkFirst struct {
	name string
	// tier is nil for navigations, which are never cached.
	tier     *cache.TierStore
	fetch    Fetcher
	fallback Fallback
	shell    *Shell
	logger   *slog.Logger
}

var _ Strategy = (*NetworkFirst)(nil)

// NewNetworkFirst builds a network-first strategy. tier may be nil when
// responses should never be persisted; shell is only consulted for
// FallbackShellPage.
func NewNetworkFirst(name string, tier *cache.TierStore, fetch Fetcher, fallback Fallback, shell *Shell, logger *slog.Logger) *NetworkFirst {
	if logger == nil {
		logger = slog.Default()
	}
	return &NetworkFirst{
		name:     name,
		tier:     tier,
		fetch:    fetch,
		fallback: fallback,
		shell:    shell,
		logger:   logger.With("strategy", name),
	}
}

// Name returns the strategy name.
func (nf *NetworkFirst) Name() string { return nf.name }

// Serve implements the network-first flow.
func (nf *NetworkFirst) Serve(ctx context.Context, r *http.Request) (*Result, error) {
	key := cache.RequestKey(r.Method, nf.fetch.Resolve(r))

	result, err := nf.fetch.Do(ctx, r)
	if err == nil {
		if nf.tier != nil && r.Method == http.MethodGet && result.OK() {
			entry := cache.NewEntry(key, result.Status, result.Header, result.Body)
			if putErr := nf.tier.Put(ctx, entry); putErr != nil {
				nf.logger.Warn("cache write failed", "key", key, "error", putErr)
			}
		}
		return result, nil
	}

	if nf.tier != nil {
		if entry, getErr := nf.tier.Get(ctx, key); getErr == nil {
			return resultFromEntry(entry), nil
		}
	}

	switch nf.fallback {
	case FallbackOfflineJSON:
		return offlineJSON(), nil
	case FallbackShellPage:
		if nf.shell != nil {
			if shellResult, shellErr := nf.shell.Get(ctx); shellErr == nil {
				return shellResult, nil
			}
		}
		return offlinePage(), nil
	default:
		return nil, err
	}
}
