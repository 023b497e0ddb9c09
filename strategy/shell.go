package strategy

import (
	"context"
	"net/http"

	"github.com/rudrakanya/Simhasth-X8/cache"
)

// KeyFor computes the cache key a strategy would use for a path, resolving it
// against the fetcher's origin. The precache installer and the shell lookup
// share this so keys always line up.
func KeyFor(f Fetcher, method, path string) string {
	r, err := http.NewRequest(method, path, nil)
	if err != nil {
		return cache.RequestKey(method, path)
	}
	return cache.RequestKey(method, f.Resolve(r))
}

// Shell locates the cached application shell used as the navigation fallback.
type Shell struct {
	static *cache.TierStore
	key    string
}

// NewShell builds a shell source for the configured app-shell path.
func NewShell(static *cache.TierStore, f Fetcher, appShellPath string) *Shell {
	return &Shell{
		static: static,
		key:    KeyFor(f, http.MethodGet, appShellPath),
	}
}

// Get returns the cached shell, or an error when it was never cached.
func (s *Shell) Get(ctx context.Context) (*Result, error) {
	entry, err := s.static.Get(ctx, s.key)
	if err != nil {
		return nil, err
	}
	return resultFromEntry(entry), nil
}
