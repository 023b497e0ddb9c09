// Package storage provides the pluggable key-value backend interface used by
// the cache tiers and the deferred action queue.
package storage

import "context"

// Store is the pluggable key-value backend.
//
// Keys are flat strings restricted to the charset [A-Za-z0-9._=-] so that
// every implementation (including NATS JetStream KV) can store them without
// escaping. Hierarchy is expressed with "." separators; callers that need to
// key arbitrary data (URLs, payload hashes) encode it before storing.
//
// Values are opaque binary data. Operations are context-aware for
// cancellation and timeouts.
//
// Implementations:
//   - memstore.Store: in-memory map (tests, single-process deployments)
//   - kvstore.Store: NATS JetStream KV bucket (durable, production)
//
// All implementations must be safe for concurrent use. Put overwrites by key;
// Delete is idempotent.
type Store interface {
	// Put stores data at the specified key, overwriting any existing value.
	Put(ctx context.Context, key string, data []byte) error

	// Get retrieves the data for the specified key.
	// Returns errors.ErrEntryNotFound if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// List returns all keys matching the specified prefix, in lexicographic
	// order. An empty prefix lists every key. Returns an empty slice when
	// nothing matches.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data at the specified key. Deleting a missing key
	// is not an error.
	Delete(ctx context.Context, key string) error
}
