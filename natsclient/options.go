package natsclient

import (
	"log/slog"
	"time"
)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithName sets the client name reported to the server.
func WithName(name string) Option {
	return func(c *Client) { c.name = name }
}

// WithTimeout bounds the initial dial.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.timeout = timeout }
}

// WithReconnectWait sets the delay between reconnect attempts.
func WithReconnectWait(wait time.Duration) Option {
	return func(c *Client) { c.reconnectWait = wait }
}

// WithMaxReconnects caps reconnect attempts; negative means unlimited.
func WithMaxReconnects(n int) Option {
	return func(c *Client) { c.maxReconnects = n }
}

// WithDrainTimeout bounds the drain during Close.
func WithDrainTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.drainTimeout = timeout }
}

// OnReconnect registers a callback fired after the connection is
// re-established. The coordinator uses it as a reconnect signal to flush
// the deferred action queue.
func OnReconnect(fn func()) Option {
	return func(c *Client) { c.onReconnect = fn }
}

// OnDisconnect registers a callback fired when the connection drops.
func OnDisconnect(fn func(error)) Option {
	return func(c *Client) { c.onDisconnect = fn }
}
