// Package strategy implements the tiered fetch strategies of the offline
// edge: cache-first for static and heritage content, network-first for API,
// navigation and default traffic. Every strategy degrades to cached or
// synthesized content; nothing here is fatal to the caller.
package strategy

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rudrakanya/Simhasth-X8/cache"
	"github.com/rudrakanya/Simhasth-X8/classify"
	"github.com/rudrakanya/Simhasth-X8/metric"
)

// Source records where a result came from.
type Source string

// Result sources.
const (
	SourceNetwork Source = "network"
	SourceCache   Source = "cache"
	SourceOffline Source = "offline-fallback"
)

// Result is a materialized response ready to replay to the client.
type Result struct {
	Status int
	Header http.Header
	Body   []byte
	Source Source
}

// OK reports whether the status indicates success; only such responses are
// ever persisted to cache.
func (r *Result) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Write replays the result onto an HTTP response writer.
func (r *Result) Write(w http.ResponseWriter) error {
	for name, values := range r.Header {
		for _, value := range values {
			w.Header().Add(name, value)
		}
	}
	w.Header().Set("X-Served-From", string(r.Source))
	w.WriteHeader(r.Status)
	_, err := w.Write(r.Body)
	return err
}

func resultFromEntry(entry *cache.Entry) *Result {
	return &Result{
		Status: entry.Status,
		Header: entry.Header,
		Body:   entry.Body,
		Source: SourceCache,
	}
}

// Fetcher performs upstream requests on behalf of strategies.
type Fetcher interface {
	// Do executes the request against the origin and materializes the
	// response. A returned error means network failure; HTTP error statuses
	// come back as Results.
	Do(ctx context.Context, r *http.Request) (*Result, error)

	// Resolve returns the absolute upstream URL the request targets. It is
	// also the URL half of the cache key.
	Resolve(r *http.Request) string
}

// Strategy serves a single request according to its class.
type Strategy interface {
	Serve(ctx context.Context, r *http.Request) (*Result, error)
	Name() string
}

// Router maps request classes to their strategies.
type Router struct {
	static     Strategy
	api        Strategy
	heritage   Strategy
	navigation Strategy
	fallback   Strategy
	metrics    *routerMetrics
}

// NewRouter wires one strategy per class.
func NewRouter(static, api, heritage, navigation, fallback Strategy, opts ...RouterOption) *Router {
	router := &Router{
		static:     static,
		api:        api,
		heritage:   heritage,
		navigation: navigation,
		fallback:   fallback,
	}
	for _, opt := range opts {
		opt(router)
	}
	return router
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithRouterMetrics counts served results per strategy and source.
func WithRouterMetrics(registry *metric.Registry) RouterOption {
	return func(router *Router) {
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simhasth", Subsystem: "strategy", Name: "results_total",
			Help: "Results served, labelled by strategy and source",
		}, []string{"strategy", "source"})
		errVec := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simhasth", Subsystem: "strategy", Name: "errors_total",
			Help: "Requests that propagated a failure, labelled by strategy",
		}, []string{"strategy"})
		if err := registry.RegisterCounterVec("strategy", "results_total", vec); err != nil {
			return
		}
		if err := registry.RegisterCounterVec("strategy", "errors_total", errVec); err != nil {
			return
		}
		router.metrics = &routerMetrics{results: vec, errors: errVec}
	}
}

type routerMetrics struct {
	results *prometheus.CounterVec
	errors  *prometheus.CounterVec
}

// For returns the strategy for a class. Bypass requests have no strategy and
// return nil.
func (router *Router) For(class classify.Class) Strategy {
	switch class {
	case classify.ClassStaticAsset:
		return router.static
	case classify.ClassAPI:
		return router.api
	case classify.ClassHeritageContent:
		return router.heritage
	case classify.ClassNavigation:
		return router.navigation
	case classify.ClassDefault:
		return router.fallback
	default:
		return nil
	}
}

// Serve dispatches a classified request and records metrics.
func (router *Router) Serve(ctx context.Context, class classify.Class, r *http.Request) (*Result, error) {
	strategy := router.For(class)
	if strategy == nil {
		return nil, nil
	}

	result, err := strategy.Serve(ctx, r)
	if router.metrics != nil {
		if err != nil {
			router.metrics.errors.WithLabelValues(strategy.Name()).Inc()
		} else if result != nil {
			router.metrics.results.WithLabelValues(strategy.Name(), string(result.Source)).Inc()
		}
	}
	return result, err
}
