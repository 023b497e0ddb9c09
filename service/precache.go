package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/rudrakanya/Simhasth-X8/cache"
	"github.com/rudrakanya/Simhasth-X8/errors"
	"github.com/rudrakanya/Simhasth-X8/strategy"
)

// Precacher installs resources into a tier ahead of demand: the app shell
// and core assets during install, heritage site bundles on request.
type Precacher struct {
	fetch       strategy.Fetcher
	concurrency int
	logger      *slog.Logger
}

// NewPrecacher creates a precacher with bounded fetch concurrency.
func NewPrecacher(fetch strategy.Fetcher, concurrency int, logger *slog.Logger) *Precacher {
	if concurrency <= 0 {
		concurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Precacher{
		fetch:       fetch,
		concurrency: concurrency,
		logger:      logger.With("component", "precache"),
	}
}

// Install fetches every path and stores the responses in the tier. Paths are
// fetched in parallel up to the configured concurrency; the first failure
// cancels the remaining fetches and is returned, so callers can retry the
// whole set.
func (p *Precacher) Install(ctx context.Context, tier *cache.TierStore, paths []string) error {
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(p.concurrency)

	for _, path := range paths {
		path := path
		group.Go(func() error {
			return p.installOne(ctx, tier, path)
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}
	p.logger.Info("precache complete", "tier", tier.Tier(), "resources", len(paths))
	return nil
}

func (p *Precacher) installOne(ctx context.Context, tier *cache.TierStore, path string) error {
	r, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return errors.WrapInvalid(err, "Precacher", "Install", "build request for "+path)
	}

	result, err := p.fetch.Do(ctx, r)
	if err != nil {
		return errors.WrapTransient(err, "Precacher", "Install", "fetch "+path)
	}
	if !result.OK() {
		return errors.WrapTransient(
			fmt.Errorf("origin answered %d for %s", result.Status, path),
			"Precacher", "Install", "fetch "+path)
	}

	key := strategy.KeyFor(p.fetch, http.MethodGet, path)
	entry := cache.NewEntry(key, result.Status, result.Header, result.Body)
	if err := tier.Put(ctx, entry); err != nil {
		return err
	}

	p.logger.Debug("precached", "tier", tier.Tier(), "path", path, "bytes", len(result.Body))
	return nil
}
