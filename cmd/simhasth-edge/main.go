// Package main implements the entry point for the Simhasth heritage edge
// cache: an offline-first caching gateway that keeps the AR heritage
// experience usable on flaky pilgrimage-site connectivity.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/rudrakanya/Simhasth-X8/config"
	"github.com/rudrakanya/Simhasth-X8/gateway"
	"github.com/rudrakanya/Simhasth-X8/health"
	"github.com/rudrakanya/Simhasth-X8/metric"
	"github.com/rudrakanya/Simhasth-X8/natsclient"
	"github.com/rudrakanya/Simhasth-X8/service"
	"github.com/rudrakanya/Simhasth-X8/storage"
	"github.com/rudrakanya/Simhasth-X8/storage/kvstore"
	"github.com/rudrakanya/Simhasth-X8/storage/memstore"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "simhasth-edge"
)

// cacheBucket is the JetStream KV bucket backing the tiers and the queue.
const cacheBucket = "simhasth-edge-cache"

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("edge failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	cfg, err := loadConfig(cliCfg.ConfigPath)
	if err != nil {
		return err
	}
	if cliCfg.Validate {
		slog.Info("configuration is valid", "build_tag", cfg.BuildTag)
		return nil
	}

	slog.Info("starting edge cache",
		"version", Version,
		"build_tag", cfg.BuildTag,
		"origin", cfg.Origin.BaseURL,
		"nats_enabled", cfg.NATS.Enabled)

	ctx := context.Background()
	registry := metric.NewRegistry()
	monitor := health.NewMonitor()

	store, natsClient, err := setupStore(ctx, cfg, monitor, logger)
	if err != nil {
		return err
	}

	hub := gateway.NewHub(logger)
	opts := []service.CoordinatorOption{
		service.WithLogger(logger),
		service.WithRegistry(registry),
		service.WithMonitor(monitor),
		service.WithNotifyPublisher(hub),
	}
	if natsClient != nil {
		opts = append(opts, service.WithNATS(natsClient))
	}

	coord := service.NewCoordinator(cfg, store, opts...)
	if err := coord.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	if err := coord.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	edge := gateway.NewServer(cfg.Server, gateway.FromCoordinator(coord, cfg.Queue), hub, logger)
	if err := edge.Start(); err != nil {
		return fmt.Errorf("gateway: %w", err)
	}

	metrics := metric.NewServer(cfg.Server.MetricsPort, "/metrics", registry)
	if err := metrics.Start(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	healthServer := startHealthServer(cfg.Server.HealthPort, monitor, logger)

	waitForShutdown(logger)

	timeout := cliCfg.ShutdownTimeout
	if err := edge.Stop(timeout); err != nil {
		logger.Warn("gateway stop failed", "error", err)
	}
	if err := coord.Stop(timeout); err != nil {
		logger.Warn("coordinator stop failed", "error", err)
	}
	if err := metrics.Stop(timeout); err != nil {
		logger.Warn("metrics stop failed", "error", err)
	}
	if healthServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_ = healthServer.Shutdown(shutdownCtx)
	}

	logger.Info("edge stopped")
	return nil
}

// loadConfig reads the YAML config when a path is given, otherwise runs with
// the built-in defaults, which suit a kiosk on the local network.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.DefaultConfig()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return config.Load(path)
}

// setupStore picks the cache backing: JetStream KV when the NATS control
// plane is enabled, in-memory otherwise.
func setupStore(ctx context.Context, cfg *config.Config, monitor *health.Monitor, logger *slog.Logger) (storage.Store, *natsclient.Client, error) {
	if !cfg.NATS.Enabled {
		logger.Info("running with in-memory store, cache will not survive restarts")
		monitor.UpdateDegraded("storage", "in-memory store, no durability")
		return memstore.New(), nil, nil
	}

	client := natsclient.New(cfg.NATS.URL,
		natsclient.WithLogger(logger),
		natsclient.WithName(appName),
	)
	if err := client.Connect(ctx); err != nil {
		return nil, nil, fmt.Errorf("connect control plane: %w", err)
	}

	js, err := client.JetStream()
	if err != nil {
		return nil, nil, err
	}
	store, err := kvstore.Ensure(ctx, js, cacheBucket)
	if err != nil {
		return nil, nil, fmt.Errorf("ensure cache bucket: %w", err)
	}

	monitor.UpdateHealthy("storage", "JetStream KV bucket "+cacheBucket)
	return store, client, nil
}

// startHealthServer serves the health endpoint, or returns nil when disabled.
func startHealthServer(port int, monitor *health.Monitor, logger *slog.Logger) *http.Server {
	if port <= 0 {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/health", monitor.Handler(appName))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health listener failed", "error", err)
		}
	}()
	return server
}

func waitForShutdown(logger *slog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", "signal", sig.String())
}
