// Package kvstore provides a storage.Store backed by a NATS JetStream
// key-value bucket. It is the durable production backend: cache tiers and
// the deferred action queue survive process restarts.
package kvstore

import (
	"context"
	"sort"
	"strings"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/rudrakanya/Simhasth-X8/errors"
	"github.com/rudrakanya/Simhasth-X8/pkg/retry"
	"github.com/rudrakanya/Simhasth-X8/storage"
)

// Store persists key-value pairs in a JetStream KV bucket.
type Store struct {
	bucket jetstream.KeyValue
	retry  retry.Config
}

var _ storage.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithRetryConfig overrides the retry policy for bucket operations.
func WithRetryConfig(cfg retry.Config) Option {
	return func(s *Store) {
		s.retry = cfg
	}
}

// New creates a Store over an existing KV bucket handle.
func New(bucket jetstream.KeyValue, opts ...Option) *Store {
	s := &Store{
		bucket: bucket,
		retry:  retry.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ensure creates the named bucket if it does not exist and returns a Store
// over it.
func Ensure(ctx context.Context, js jetstream.JetStream, bucket string, opts ...Option) (*Store, error) {
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: bucket,
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "kvstore", "Ensure", "create bucket "+bucket)
	}
	return New(kv, opts...), nil
}

// Put stores data at key, overwriting any existing value.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "kvstore", "Put", "empty key")
	}

	err := retry.Do(ctx, s.retry, func() error {
		_, putErr := s.bucket.Put(ctx, key, data)
		return putErr
	})
	if err != nil {
		return errors.WrapTransient(err, "kvstore", "Put", "put "+key)
	}
	return nil
}

// Get retrieves the data for key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := retry.Do(ctx, s.retry, func() error {
		entry, getErr := s.bucket.Get(ctx, key)
		if getErr != nil {
			if errors.Is(getErr, jetstream.ErrKeyNotFound) {
				return retry.NonRetryable(errors.ErrEntryNotFound)
			}
			return getErr
		}
		data = entry.Value()
		return nil
	})
	if err != nil {
		if errors.Is(err, errors.ErrEntryNotFound) {
			return nil, errors.ErrEntryNotFound
		}
		return nil, errors.WrapTransient(err, "kvstore", "Get", "get "+key)
	}
	return data, nil
}

// List returns all keys with the given prefix in lexicographic order.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	all, err := s.bucket.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return []string{}, nil
		}
		return nil, errors.WrapTransient(err, "kvstore", "List", "list keys")
	}

	keys := make([]string, 0, len(all))
	for _, key := range all {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete removes key and its history from the bucket. Deleting a missing key
// is a no-op.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.bucket.Purge(ctx, key); err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil
		}
		return errors.WrapTransient(err, "kvstore", "Delete", "purge "+key)
	}
	return nil
}
