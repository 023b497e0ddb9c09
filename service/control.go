package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rudrakanya/Simhasth-X8/cache"
	"github.com/rudrakanya/Simhasth-X8/config"
	"github.com/rudrakanya/Simhasth-X8/errors"
	"github.com/rudrakanya/Simhasth-X8/queue"
	"github.com/rudrakanya/Simhasth-X8/storage"
)

// CommandType identifies a control command.
type CommandType string

// Control commands accepted over NATS and the websocket endpoint.
const (
	// CommandCacheBundle precaches a named site bundle or an explicit URL
	// list into the heritage tier.
	CommandCacheBundle CommandType = "cache-bundle"
	// CommandClearAll empties every tier of the current build.
	CommandClearAll CommandType = "clear-all"
	// CommandReportStatus returns tier and queue statistics.
	CommandReportStatus CommandType = "report-status"
	// CommandActivateNow deletes tiers left over from previous builds
	// without waiting for a restart.
	CommandActivateNow CommandType = "activate-now"
)

// Command is one control message.
type Command struct {
	Type CommandType `json:"type"`
	// Bundle names a configured site bundle for cache-bundle.
	Bundle string `json:"bundle,omitempty"`
	// URLs lists explicit resources for cache-bundle.
	URLs []string `json:"urls,omitempty"`
}

// TierStatus summarizes one tier for report-status.
type TierStatus struct {
	Entries int   `json:"entries"`
	Bytes   int64 `json:"bytes"`
}

// StatusReport answers report-status.
type StatusReport struct {
	BuildTag string                `json:"build_tag"`
	Online   bool                  `json:"online"`
	Tiers    map[string]TierStatus `json:"tiers"`
	Queue    map[string]int        `json:"queue"`
}

// Controller executes control commands against the edge's tiers and queue.
type Controller struct {
	cfg      *config.Config
	store    storage.Store
	tiers    map[cache.Tier]*cache.TierStore
	queue    *queue.Queue
	precache *Precacher
	online   func() bool
	logger   *slog.Logger
}

// NewController wires the control surface.
func NewController(
	cfg *config.Config,
	store storage.Store,
	tiers map[cache.Tier]*cache.TierStore,
	q *queue.Queue,
	precache *Precacher,
	online func() bool,
	logger *slog.Logger,
) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		cfg:      cfg,
		store:    store,
		tiers:    tiers,
		queue:    q,
		precache: precache,
		online:   online,
		logger:   logger.With("component", "control"),
	}
}

// Handle executes one command. Only report-status produces a reply; the
// others return a nil report on success.
func (c *Controller) Handle(ctx context.Context, cmd Command) (*StatusReport, error) {
	c.logger.Info("control command", "type", cmd.Type)

	switch cmd.Type {
	case CommandCacheBundle:
		return nil, c.cacheBundle(ctx, cmd)
	case CommandClearAll:
		return nil, c.clearAll(ctx)
	case CommandReportStatus:
		return c.reportStatus(ctx)
	case CommandActivateNow:
		return nil, c.activateNow(ctx)
	default:
		return nil, errors.WrapInvalid(errors.ErrUnknownCommand, "Controller", "Handle", string(cmd.Type))
	}
}

// cacheBundle precaches a named bundle, explicit URLs, or both, into the
// heritage tier.
func (c *Controller) cacheBundle(ctx context.Context, cmd Command) error {
	paths := make([]string, 0, len(cmd.URLs))
	if cmd.Bundle != "" {
		bundle, ok := c.cfg.Precache.Bundles[cmd.Bundle]
		if !ok {
			return errors.WrapInvalid(
				fmt.Errorf("unknown bundle %q", cmd.Bundle),
				"Controller", "cacheBundle", "resolve bundle")
		}
		paths = append(paths, bundle...)
	}
	paths = append(paths, cmd.URLs...)

	if len(paths) == 0 {
		return errors.WrapInvalid(
			fmt.Errorf("cache-bundle needs a bundle name or urls"),
			"Controller", "cacheBundle", "resolve resources")
	}
	return c.precache.Install(ctx, c.tiers[cache.TierHeritage], paths)
}

func (c *Controller) clearAll(ctx context.Context) error {
	for tier, store := range c.tiers {
		if err := store.Clear(ctx); err != nil {
			return errors.WrapTransient(err, "Controller", "clearAll", "clear "+string(tier))
		}
	}
	c.logger.Info("all tiers cleared")
	return nil
}

func (c *Controller) reportStatus(ctx context.Context) (*StatusReport, error) {
	report := &StatusReport{
		BuildTag: c.cfg.BuildTag,
		Online:   c.online(),
		Tiers:    make(map[string]TierStatus, len(c.tiers)),
		Queue:    make(map[string]int),
	}

	for tier, store := range c.tiers {
		entries, err := store.Count(ctx)
		if err != nil {
			return nil, err
		}
		bytes, err := store.Usage(ctx)
		if err != nil {
			return nil, err
		}
		report.Tiers[string(tier)] = TierStatus{Entries: entries, Bytes: bytes}
	}

	for _, category := range queue.Categories() {
		length, err := c.queue.Len(ctx, category)
		if err != nil {
			return nil, err
		}
		report.Queue[string(category)] = length
	}
	return report, nil
}

func (c *Controller) activateNow(ctx context.Context) error {
	stale, err := cache.DeleteStaleTiers(ctx, c.store, c.cfg.BuildTag)
	if err != nil {
		return err
	}
	if len(stale) > 0 {
		c.logger.Info("stale tiers deleted", "tiers", stale)
	}
	return nil
}
