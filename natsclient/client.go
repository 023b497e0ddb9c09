// Package natsclient manages the edge's NATS connection: the control-plane
// subject, notification fan-out, and the JetStream handle backing the
// key-value cache store. Reconnects are surfaced as callbacks so the
// coordinator can treat them as a reconnect signal.
package natsclient

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/rudrakanya/Simhasth-X8/errors"
)

// ErrNotConnected is returned by operations that need a live connection.
var ErrNotConnected = errors.New("not connected to NATS")

// Client wraps a NATS connection for the edge.
type Client struct {
	url    string
	logger *slog.Logger

	name          string
	timeout       time.Duration
	reconnectWait time.Duration
	maxReconnects int
	drainTimeout  time.Duration

	onReconnect  func()
	onDisconnect func(error)

	mu     sync.RWMutex
	conn   *nats.Conn
	js     jetstream.JetStream
	subs   []*nats.Subscription
	closed atomic.Bool
}

// New creates a client for the given server URL. Connect must be called
// before use.
func New(url string, opts ...Option) *Client {
	c := &Client{
		url:           url,
		logger:        slog.Default(),
		name:          "simhasth-edge",
		timeout:       5 * time.Second,
		reconnectWait: 2 * time.Second,
		maxReconnects: -1,
		drainTimeout:  10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "natsclient")
	return c
}

// URL returns the configured server URL.
func (c *Client) URL() string { return c.url }

// SetOnReconnect replaces the reconnect callback. The coordinator registers
// its queue flush here once it exists.
func (c *Client) SetOnReconnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReconnect = fn
}

// Connected reports whether the connection is currently live.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && c.conn.IsConnected()
}

// Connect establishes the connection and initializes JetStream.
func (c *Client) Connect(ctx context.Context) error {
	opts := []nats.Option{
		nats.Name(c.name),
		nats.Timeout(c.timeout),
		nats.ReconnectWait(c.reconnectWait),
		nats.MaxReconnects(c.maxReconnects),
		nats.DrainTimeout(c.drainTimeout),
		nats.ReconnectHandler(c.handleReconnect),
		nats.DisconnectErrHandler(c.handleDisconnect),
	}
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 && remaining < c.timeout {
			opts = append(opts, nats.Timeout(remaining))
		}
	}

	conn, err := nats.Connect(c.url, opts...)
	if err != nil {
		return errors.WrapTransient(err, "Client", "Connect", "dial "+c.url)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return errors.WrapFatal(err, "Client", "Connect", "initialize JetStream")
	}

	c.mu.Lock()
	c.conn = conn
	c.js = js
	c.mu.Unlock()

	c.logger.Info("connected to NATS", "url", c.url)
	return nil
}

// JetStream returns the JetStream handle.
func (c *Client) JetStream() (jetstream.JetStream, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.js == nil {
		return nil, ErrNotConnected
	}
	return c.js, nil
}

// Publish sends a message on a subject. Satisfies notify.Publisher.
func (c *Client) Publish(subject string, data []byte) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return ErrNotConnected
	}
	if err := conn.Publish(subject, data); err != nil {
		return errors.WrapTransient(err, "Client", "Publish", subject)
	}
	return nil
}

// Subscribe registers a handler for a subject. The handler receives the raw
// message so it can reply on request/reply subjects.
func (c *Client) Subscribe(ctx context.Context, subject string, handler func(context.Context, *nats.Msg)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || !c.conn.IsConnected() {
		return ErrNotConnected
	}

	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		msgCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		handler(msgCtx, msg)
	})
	if err != nil {
		return errors.WrapTransient(err, "Client", "Subscribe", subject)
	}

	c.subs = append(c.subs, sub)
	return nil
}

// Close drains subscriptions and closes the connection. Safe to call more
// than once.
func (c *Client) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, sub := range c.subs {
		if err := sub.Unsubscribe(); err != nil {
			c.logger.Warn("unsubscribe failed", "error", err)
		}
	}
	c.subs = nil

	if c.conn == nil {
		return nil
	}

	drained := make(chan error, 1)
	go func() { drained <- c.conn.Drain() }()

	select {
	case err := <-drained:
		if err != nil {
			c.logger.Warn("drain failed, closing anyway", "error", err)
		}
	case <-ctx.Done():
		c.logger.Warn("drain cancelled, closing anyway", "error", ctx.Err())
	case <-time.After(c.drainTimeout):
		c.logger.Warn("drain timed out, closing anyway", "timeout", c.drainTimeout)
	}

	c.conn.Close()
	c.conn = nil
	c.js = nil
	return nil
}

func (c *Client) handleReconnect(conn *nats.Conn) {
	c.logger.Info("reconnected to NATS", "url", conn.ConnectedUrl())
	c.mu.RLock()
	onReconnect := c.onReconnect
	c.mu.RUnlock()
	if onReconnect != nil {
		go onReconnect()
	}
}

func (c *Client) handleDisconnect(_ *nats.Conn, err error) {
	c.logger.Warn("disconnected from NATS", "error", err)
	c.mu.RLock()
	onDisconnect := c.onDisconnect
	c.mu.RUnlock()
	if onDisconnect != nil {
		go onDisconnect(err)
	}
}
