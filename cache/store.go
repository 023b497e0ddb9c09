package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"

	"github.com/rudrakanya/Simhasth-X8/errors"
	"github.com/rudrakanya/Simhasth-X8/storage"
)

// RequestKey builds the logical cache key for a request: method plus the
// normalized URL (lowercased scheme and host, fragment stripped, query kept).
func RequestKey(method, rawURL string) string {
	normalized := rawURL
	if parsed, err := url.Parse(rawURL); err == nil {
		parsed.Fragment = ""
		parsed.Scheme = strings.ToLower(parsed.Scheme)
		parsed.Host = strings.ToLower(parsed.Host)
		if parsed.Path == "" {
			parsed.Path = "/"
		}
		normalized = parsed.String()
	}
	return strings.ToUpper(method) + " " + normalized
}

// TierStore is one tier's view of the underlying key-value store. Logical
// keys are hashed into the store's restricted charset; the logical key
// travels inside the envelope.
type TierStore struct {
	store     storage.Store
	tier      Tier
	prefix    string
	threshold int
	metrics   *tierMetrics
}

// TierStoreOption configures a TierStore.
type TierStoreOption func(*TierStore)

// WithCompressThreshold sets the body size at which envelopes are
// gzip-compressed. Zero disables compression.
func WithCompressThreshold(threshold int) TierStoreOption {
	return func(ts *TierStore) {
		ts.threshold = threshold
	}
}

// WithTierMetrics exposes hit/miss/set/delete counters for this tier.
func WithTierMetrics(m *tierMetrics) TierStoreOption {
	return func(ts *TierStore) {
		ts.metrics = m
	}
}

// NewTierStore creates a tier-scoped store for the given build tag.
func NewTierStore(store storage.Store, tier Tier, buildTag string, opts ...TierStoreOption) *TierStore {
	ts := &TierStore{
		store:  store,
		tier:   tier,
		prefix: tier.PhysicalName(buildTag) + ".",
	}
	for _, opt := range opts {
		opt(ts)
	}
	return ts
}

// Tier returns the logical tier this store serves.
func (ts *TierStore) Tier() Tier {
	return ts.tier
}

func (ts *TierStore) storageKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return ts.prefix + hex.EncodeToString(sum[:])
}

// Get retrieves the cached entry for a logical key.
// Returns errors.ErrEntryNotFound on a miss.
func (ts *TierStore) Get(ctx context.Context, key string) (*Entry, error) {
	data, err := ts.store.Get(ctx, ts.storageKey(key))
	if err != nil {
		if errors.Is(err, errors.ErrEntryNotFound) {
			ts.metrics.recordMiss()
			return nil, errors.ErrEntryNotFound
		}
		return nil, errors.WrapTransient(err, "TierStore", "Get", "read "+key)
	}

	entry, err := DecodeEntry(data)
	if err != nil {
		// A corrupted entry behaves like a miss; the next successful fetch
		// overwrites it.
		ts.metrics.recordMiss()
		return nil, errors.ErrEntryNotFound
	}

	ts.metrics.recordHit()
	return entry, nil
}

// Put stores an entry, overwriting any previous entry for the same key.
func (ts *TierStore) Put(ctx context.Context, entry *Entry) error {
	data, err := entry.Encode(ts.threshold)
	if err != nil {
		return err
	}
	if err := ts.store.Put(ctx, ts.storageKey(entry.Key), data); err != nil {
		return errors.WrapTransient(err, "TierStore", "Put", "write "+entry.Key)
	}
	ts.metrics.recordSet()
	return nil
}

// Delete removes the entry for a logical key. Missing keys are a no-op.
func (ts *TierStore) Delete(ctx context.Context, key string) error {
	if err := ts.store.Delete(ctx, ts.storageKey(key)); err != nil {
		return errors.WrapTransient(err, "TierStore", "Delete", "delete "+key)
	}
	ts.metrics.recordDelete()
	return nil
}

// deleteStoreKey removes an entry addressed by its physical store key.
// Used by the governor, which scans at the store level.
func (ts *TierStore) deleteStoreKey(ctx context.Context, storeKey string) error {
	if err := ts.store.Delete(ctx, storeKey); err != nil {
		return errors.WrapTransient(err, "TierStore", "deleteStoreKey", "delete "+storeKey)
	}
	ts.metrics.recordDelete()
	return nil
}

// Count returns the number of entries in the tier.
func (ts *TierStore) Count(ctx context.Context) (int, error) {
	keys, err := ts.store.List(ctx, ts.prefix)
	if err != nil {
		return 0, errors.WrapTransient(err, "TierStore", "Count", "list")
	}
	return len(keys), nil
}

// Usage returns the aggregate stored size of the tier in bytes.
func (ts *TierStore) Usage(ctx context.Context) (int64, error) {
	metas, err := ts.scan(ctx)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, meta := range metas {
		total += meta.Size
	}
	return total, nil
}

// Clear removes every entry in the tier.
func (ts *TierStore) Clear(ctx context.Context) error {
	keys, err := ts.store.List(ctx, ts.prefix)
	if err != nil {
		return errors.WrapTransient(err, "TierStore", "Clear", "list")
	}
	for _, key := range keys {
		if err := ts.store.Delete(ctx, key); err != nil {
			return errors.WrapTransient(err, "TierStore", "Clear", "delete "+key)
		}
	}
	return nil
}

// scan loads entry metadata for the whole tier, oldest first. Entries that
// fail to decode are skipped; they will be overwritten or cleared later.
func (ts *TierStore) scan(ctx context.Context) ([]entryMeta, error) {
	keys, err := ts.store.List(ctx, ts.prefix)
	if err != nil {
		return nil, errors.WrapTransient(err, "TierStore", "scan", "list")
	}

	metas := make([]entryMeta, 0, len(keys))
	for _, storeKey := range keys {
		data, err := ts.store.Get(ctx, storeKey)
		if err != nil {
			continue // evicted or deleted mid-scan
		}
		meta, err := decodeMeta(storeKey, data)
		if err != nil {
			continue
		}
		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].StoredAt.Before(metas[j].StoredAt)
	})
	return metas, nil
}

// DeleteStaleTiers removes every entry belonging to a tier namespace that is
// not part of the current build. Returns the stale namespaces it cleared.
func DeleteStaleTiers(ctx context.Context, store storage.Store, buildTag string) ([]string, error) {
	known := KnownPhysicalNames(buildTag)

	keys, err := store.List(ctx, physicalPrefix)
	if err != nil {
		return nil, errors.WrapTransient(err, "cache", "DeleteStaleTiers", "list")
	}

	stale := make(map[string]bool)
	for _, key := range keys {
		namespace, ok := IsTierNamespace(key)
		if !ok || known[namespace] {
			continue
		}
		if err := store.Delete(ctx, key); err != nil {
			return nil, errors.WrapTransient(err, "cache", "DeleteStaleTiers", "delete "+key)
		}
		stale[namespace] = true
	}

	names := make([]string, 0, len(stale))
	for name := range stale {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
