package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rudrakanya/Simhasth-X8/errors"
	"github.com/rudrakanya/Simhasth-X8/metric"
	"github.com/rudrakanya/Simhasth-X8/strategy"
)

// Deliverer sends deferred actions to their target endpoints.
type Deliverer interface {
	// Deliver sends one action.
	Deliver(ctx context.Context, action PendingAction) error
	// DeliverBatch sends a whole category batch to one endpoint.
	DeliverBatch(ctx context.Context, endpoint string, actions []PendingAction) error
}

// HTTPDeliverer delivers actions through the origin fetcher.
type HTTPDeliverer struct {
	fetch strategy.Fetcher
}

var _ Deliverer = (*HTTPDeliverer)(nil)

// NewHTTPDeliverer wraps an origin fetcher as a Deliverer.
func NewHTTPDeliverer(fetch strategy.Fetcher) *HTTPDeliverer {
	return &HTTPDeliverer{fetch: fetch}
}

// Deliver posts a single action to its endpoint.
func (d *HTTPDeliverer) Deliver(ctx context.Context, action PendingAction) error {
	method := action.Method
	if method == "" {
		method = http.MethodPost
	}
	req, err := http.NewRequestWithContext(ctx, method, action.Endpoint, bytes.NewReader(action.Payload))
	if err != nil {
		return errors.WrapInvalid(err, "HTTPDeliverer", "Deliver", "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	result, err := d.fetch.Do(ctx, req)
	if err != nil {
		return errors.WrapTransient(errors.ErrDeliveryFailed, "HTTPDeliverer", "Deliver", action.Endpoint)
	}
	if !result.OK() {
		return errors.WrapTransient(errors.ErrDeliveryFailed, "HTTPDeliverer", "Deliver", action.Endpoint)
	}
	return nil
}

// DeliverBatch posts every payload in one request body: {"events": [...]}.
func (d *HTTPDeliverer) DeliverBatch(ctx context.Context, endpoint string, actions []PendingAction) error {
	events := make([]json.RawMessage, 0, len(actions))
	for _, action := range actions {
		events = append(events, action.Payload)
	}
	body, err := json.Marshal(map[string]any{"events": events})
	if err != nil {
		return errors.WrapInvalid(err, "HTTPDeliverer", "DeliverBatch", "marshal batch")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.WrapInvalid(err, "HTTPDeliverer", "DeliverBatch", "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	result, err := d.fetch.Do(ctx, req)
	if err != nil || !result.OK() {
		return errors.WrapTransient(errors.ErrDeliveryFailed, "HTTPDeliverer", "DeliverBatch", endpoint)
	}
	return nil
}

// Report summarizes one flush pass.
type Report struct {
	Delivered map[Category]int
	Remaining map[Category]int
}

// Flusher drains the queue when the reconnect signal fires. Heritage and
// feedback items are delivered one by one; analytics events go out as a
// single batch. A failed item stays queued for the next reconnect; it never
// aborts the rest of the pass.
type Flusher struct {
	queue         *Queue
	deliver       Deliverer
	batchEndpoint string
	logger        *slog.Logger
	delivered     *prometheus.CounterVec
	failed        *prometheus.CounterVec
}

// FlusherOption configures a Flusher.
type FlusherOption func(*Flusher)

// WithFlusherMetrics counts delivered and failed actions per category.
func WithFlusherMetrics(registry *metric.Registry) FlusherOption {
	return func(f *Flusher) {
		delivered := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simhasth", Subsystem: "queue", Name: "delivered_total",
			Help: "Deferred actions delivered, by category",
		}, []string{"category"})
		failed := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simhasth", Subsystem: "queue", Name: "failed_total",
			Help: "Deferred action delivery failures, by category",
		}, []string{"category"})
		if err := registry.RegisterCounterVec("queue", "delivered_total", delivered); err == nil {
			f.delivered = delivered
		}
		if err := registry.RegisterCounterVec("queue", "failed_total", failed); err == nil {
			f.failed = failed
		}
	}
}

// NewFlusher creates a flusher over a queue.
func NewFlusher(q *Queue, deliver Deliverer, batchEndpoint string, logger *slog.Logger, opts ...FlusherOption) *Flusher {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Flusher{
		queue:         q,
		deliver:       deliver,
		batchEndpoint: batchEndpoint,
		logger:        logger.With("component", "flusher"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Flush attempts delivery of every queued action, category by category.
func (f *Flusher) Flush(ctx context.Context) Report {
	report := Report{
		Delivered: make(map[Category]int),
		Remaining: make(map[Category]int),
	}

	for _, category := range Categories() {
		var delivered int
		if category == CategoryAnalytics {
			delivered = f.flushBatch(ctx, category)
		} else {
			delivered = f.flushItems(ctx, category)
		}
		report.Delivered[category] = delivered

		remaining, err := f.queue.Len(ctx, category)
		if err != nil {
			f.logger.Warn("queue length unavailable", "category", category, "error", err)
			continue
		}
		report.Remaining[category] = remaining
	}

	f.logger.Info("flush pass complete",
		"heritage_remaining", report.Remaining[CategoryHeritage],
		"feedback_remaining", report.Remaining[CategoryFeedback],
		"analytics_remaining", report.Remaining[CategoryAnalytics],
	)
	return report
}

// flushItems delivers one category item by item.
func (f *Flusher) flushItems(ctx context.Context, category Category) int {
	actions, err := f.queue.Pending(ctx, category)
	if err != nil {
		f.logger.Warn("pending actions unavailable", "category", category, "error", err)
		return 0
	}

	delivered := 0
	for _, action := range actions {
		if err := f.deliver.Deliver(ctx, action); err != nil {
			f.recordFailed(category)
			f.logger.Warn("delivery failed, action stays queued",
				"category", category, "id", action.ID, "endpoint", action.Endpoint, "error", err)
			continue
		}
		if err := f.queue.Remove(ctx, category, action.ID); err != nil {
			f.logger.Warn("delivered action not removed", "id", action.ID, "error", err)
			continue
		}
		f.recordDelivered(category)
		delivered++
	}
	return delivered
}

// flushBatch delivers the whole analytics backlog as one request;
// on failure the entire batch stays queued.
func (f *Flusher) flushBatch(ctx context.Context, category Category) int {
	actions, err := f.queue.Pending(ctx, category)
	if err != nil {
		f.logger.Warn("pending actions unavailable", "category", category, "error", err)
		return 0
	}
	if len(actions) == 0 {
		return 0
	}

	if err := f.deliver.DeliverBatch(ctx, f.batchEndpoint, actions); err != nil {
		f.recordFailed(category)
		f.logger.Warn("batch delivery failed, batch stays queued",
			"category", category, "size", len(actions), "error", err)
		return 0
	}

	delivered := 0
	for _, action := range actions {
		if err := f.queue.Remove(ctx, category, action.ID); err != nil {
			f.logger.Warn("delivered action not removed", "id", action.ID, "error", err)
			continue
		}
		f.recordDelivered(category)
		delivered++
	}
	return delivered
}

func (f *Flusher) recordDelivered(category Category) {
	if f.delivered != nil {
		f.delivered.WithLabelValues(string(category)).Inc()
	}
}

func (f *Flusher) recordFailed(category Category) {
	if f.failed != nil {
		f.failed.WithLabelValues(string(category)).Inc()
	}
}
