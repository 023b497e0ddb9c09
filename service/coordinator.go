// Package service hosts the edge lifecycle coordinator: it assembles the
// tiers, strategies, queue and governor from configuration, precaches the
// app shell on install, activates the current build by deleting stale tiers,
// and runs the background loops until shutdown.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/rudrakanya/Simhasth-X8/cache"
	"github.com/rudrakanya/Simhasth-X8/classify"
	"github.com/rudrakanya/Simhasth-X8/config"
	"github.com/rudrakanya/Simhasth-X8/errors"
	"github.com/rudrakanya/Simhasth-X8/health"
	"github.com/rudrakanya/Simhasth-X8/metric"
	"github.com/rudrakanya/Simhasth-X8/natsclient"
	"github.com/rudrakanya/Simhasth-X8/notify"
	"github.com/rudrakanya/Simhasth-X8/queue"
	"github.com/rudrakanya/Simhasth-X8/storage"
	"github.com/rudrakanya/Simhasth-X8/strategy"
)

// Coordinator owns the edge's components and their lifecycle. Initialize
// builds and precaches, Start activates and runs the background loops, Stop
// winds everything down.
type Coordinator struct {
	cfg      *config.Config
	store    storage.Store
	logger   *slog.Logger
	registry *metric.Registry
	monitor  *health.Monitor

	fetch      strategy.Fetcher
	tiers      map[cache.Tier]*cache.TierStore
	classifier *classify.Classifier
	router     *strategy.Router
	governor   *cache.Governor
	queue      *queue.Queue
	flusher    *queue.Flusher
	watcher    *Watcher
	precacher  *Precacher
	controller *Controller
	notifier   *notify.Notifier

	nats       *natsclient.Client
	notifyPubs notify.Fanout

	mu          sync.Mutex
	initialized bool
	started     bool
	cancel      context.CancelFunc
	done        chan struct{}
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRegistry enables metrics on every component that exposes them.
func WithRegistry(registry *metric.Registry) CoordinatorOption {
	return func(c *Coordinator) { c.registry = registry }
}

// WithMonitor sets the health monitor components report into.
func WithMonitor(monitor *health.Monitor) CoordinatorOption {
	return func(c *Coordinator) { c.monitor = monitor }
}

// WithNATS attaches the control-plane client. Its control subject carries
// commands, its reconnect callback doubles as a reconnect signal.
func WithNATS(client *natsclient.Client) CoordinatorOption {
	return func(c *Coordinator) { c.nats = client }
}

// WithNotifyPublisher adds a destination for parsed push notifications,
// e.g. the gateway's websocket hub.
func WithNotifyPublisher(pub notify.Publisher) CoordinatorOption {
	return func(c *Coordinator) { c.notifyPubs = append(c.notifyPubs, pub) }
}

// NewCoordinator creates a coordinator over a store. Call Initialize before
// Start.
func NewCoordinator(cfg *config.Config, store storage.Store, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		cfg:     cfg,
		store:   store,
		logger:  slog.Default(),
		monitor: health.NewMonitor(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "coordinator")
	return c
}

// Initialize builds every component and precaches the app shell and core
// assets into the static tier. It is the install phase: a failed precache
// fails initialization so a broken build never goes live.
func (c *Coordinator) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return errors.ErrAlreadyStarted
	}

	fetch, err := strategy.NewOriginFetcher(c.cfg.Origin)
	if err != nil {
		return err
	}
	c.fetch = fetch

	c.tiers = make(map[cache.Tier]*cache.TierStore, len(cache.KnownTiers()))
	for _, tier := range cache.KnownTiers() {
		opts := []cache.TierStoreOption{
			cache.WithCompressThreshold(c.cfg.Tiers.CompressThresholdBytes),
		}
		if c.registry != nil {
			if metrics, err := cache.NewTierMetrics(c.registry, tier); err == nil {
				opts = append(opts, cache.WithTierMetrics(metrics))
			}
		}
		c.tiers[tier] = cache.NewTierStore(c.store, tier, c.cfg.BuildTag, opts...)
	}

	c.classifier = classify.New(c.cfg.Classifier)
	c.buildRouter()

	var governorOpts []cache.GovernorOption
	if c.registry != nil {
		governorOpts = append(governorOpts, cache.WithGovernorMetrics(c.registry))
	}
	c.governor = cache.NewGovernor(
		c.tiers[cache.TierDynamic],
		c.cfg.Tiers.DynamicCeilingBytes,
		c.cfg.Tiers.GovernorInterval,
		c.logger,
		governorOpts...,
	)

	c.queue = queue.New(c.store)
	var flusherOpts []queue.FlusherOption
	if c.registry != nil {
		flusherOpts = append(flusherOpts, queue.WithFlusherMetrics(c.registry))
	}
	c.flusher = queue.NewFlusher(
		c.queue,
		queue.NewHTTPDeliverer(fetch),
		c.cfg.Queue.AnalyticsBatchPath,
		c.logger,
		flusherOpts...,
	)

	c.watcher = NewWatcher(
		NewOriginProber(fetch, c.cfg.Origin.ProbePath),
		c.cfg.Origin.ProbeInterval,
		func(ctx context.Context) { c.flusher.Flush(ctx) },
		c.monitor,
		c.logger,
	)

	c.precacher = NewPrecacher(fetch, c.cfg.Precache.FetchConcurrency, c.logger)
	c.controller = NewController(c.cfg, c.store, c.tiers, c.queue, c.precacher, c.watcher.Online, c.logger)

	if c.nats != nil {
		// A NATS reconnect is a reconnect signal too.
		c.nats.SetOnReconnect(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			c.flusher.Flush(ctx)
		})
		c.notifyPubs = append(c.notifyPubs, c.nats)
	}
	c.notifier = notify.NewNotifier(c.notifyPubs, c.cfg.NATS.NotifySubject, c.logger)

	if err := c.precacheShell(ctx); err != nil {
		return err
	}

	c.initialized = true
	c.monitor.UpdateHealthy("coordinator", "initialized")
	c.logger.Info("initialized", "build_tag", c.cfg.BuildTag)
	return nil
}

// buildRouter wires one strategy per request class.
func (c *Coordinator) buildRouter() {
	shell := strategy.NewShell(c.tiers[cache.TierStatic], c.fetch, c.cfg.Precache.AppShell)

	static := strategy.NewCacheFirst("static", c.tiers[cache.TierStatic], c.fetch, c.logger,
		strategy.WithShellFallback(shell))
	heritage := strategy.NewCacheFirst("heritage", c.tiers[cache.TierHeritage], c.fetch, c.logger)
	api := strategy.NewNetworkFirst("api", c.tiers[cache.TierDynamic], c.fetch,
		strategy.FallbackOfflineJSON, nil, c.logger)
	navigation := strategy.NewNetworkFirst("navigation", nil, c.fetch,
		strategy.FallbackShellPage, shell, c.logger)
	fallback := strategy.NewNetworkFirst("default", c.tiers[cache.TierDynamic], c.fetch,
		strategy.FallbackPropagate, nil, c.logger)

	var routerOpts []strategy.RouterOption
	if c.registry != nil {
		routerOpts = append(routerOpts, strategy.WithRouterMetrics(c.registry))
	}
	c.router = strategy.NewRouter(static, api, heritage, navigation, fallback, routerOpts...)
}

// precacheShell installs the app shell and core assets. The shell path is
// always included even when the asset list omits it.
func (c *Coordinator) precacheShell(ctx context.Context) error {
	paths := make([]string, 0, len(c.cfg.Precache.Assets)+1)
	seen := map[string]bool{}
	for _, path := range append([]string{c.cfg.Precache.AppShell}, c.cfg.Precache.Assets...) {
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true
		paths = append(paths, path)
	}
	if len(paths) == 0 {
		return nil
	}
	return c.precacher.Install(ctx, c.tiers[cache.TierStatic], paths)
}

// Start activates the current build and launches the background loops.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return errors.ErrNotStarted
	}
	if c.started {
		return errors.ErrAlreadyStarted
	}

	// Activation: tiers from previous build tags are deleted before any
	// traffic is served from this build.
	stale, err := cache.DeleteStaleTiers(ctx, c.store, c.cfg.BuildTag)
	if err != nil {
		return err
	}
	if len(stale) > 0 {
		c.logger.Info("activated, stale tiers deleted", "tiers", stale)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); c.governor.Run(runCtx) }()
		go func() { defer wg.Done(); c.watcher.Run(runCtx) }()
		wg.Wait()
	}()

	if c.nats != nil {
		if err := c.subscribeControl(runCtx); err != nil {
			cancel()
			<-c.done
			return err
		}
	}

	c.started = true
	c.monitor.UpdateHealthy("coordinator", "running")
	return nil
}

// subscribeControl attaches the command handler to the control subject.
// report-status replies on the request's reply subject.
func (c *Coordinator) subscribeControl(ctx context.Context) error {
	return c.nats.Subscribe(ctx, c.cfg.NATS.ControlSubject, func(msgCtx context.Context, msg *nats.Msg) {
		var cmd Command
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			c.logger.Warn("malformed control message", "error", err)
			return
		}

		report, err := c.controller.Handle(msgCtx, cmd)
		if err != nil {
			c.logger.Warn("control command failed", "type", cmd.Type, "error", err)
			return
		}
		if report != nil && msg.Reply != "" {
			data, err := json.Marshal(report)
			if err != nil {
				c.logger.Warn("status report marshal failed", "error", err)
				return
			}
			if err := msg.Respond(data); err != nil {
				c.logger.Warn("status report reply failed", "error", err)
			}
		}
	})
}

// Stop cancels the background loops and waits up to the timeout for them to
// drain, then closes the control-plane connection.
func (c *Coordinator) Stop(timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return errors.ErrNotStarted
	}

	c.cancel()
	select {
	case <-c.done:
	case <-time.After(timeout):
		c.logger.Warn("background loops did not drain in time", "timeout", timeout)
	}

	if c.nats != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := c.nats.Close(ctx); err != nil {
			c.logger.Warn("control-plane close failed", "error", err)
		}
	}

	c.started = false
	c.monitor.UpdateUnhealthy("coordinator", "stopped")
	return nil
}

// Classifier returns the request classifier.
func (c *Coordinator) Classifier() *classify.Classifier { return c.classifier }

// Router returns the strategy router.
func (c *Coordinator) Router() *strategy.Router { return c.router }

// Fetcher returns the origin fetcher.
func (c *Coordinator) Fetcher() strategy.Fetcher { return c.fetch }

// Queue returns the deferred action queue.
func (c *Coordinator) Queue() *queue.Queue { return c.queue }

// Controller returns the control command surface.
func (c *Coordinator) Controller() *Controller { return c.controller }

// Notifier returns the push notification handler.
func (c *Coordinator) Notifier() *notify.Notifier { return c.notifier }

// Watcher returns the connectivity watcher.
func (c *Coordinator) Watcher() *Watcher { return c.watcher }

// Monitor returns the health monitor.
func (c *Coordinator) Monitor() *health.Monitor { return c.monitor }
