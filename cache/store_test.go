package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rudrakanya/Simhasth-X8/errors"
	"github.com/rudrakanya/Simhasth-X8/storage/memstore"
)

func TestRequestKeyNormalization(t *testing.T) {
	tests := []struct {
		name   string
		method string
		url    string
		want   string
	}{
		{"lowercases host and scheme", "get", "HTTP://Origin.Example/api/sites", "GET http://origin.example/api/sites"},
		{"strips fragment", "GET", "http://origin.example/page#section", "GET http://origin.example/page"},
		{"keeps query", "GET", "http://origin.example/api/sites?lang=hi", "GET http://origin.example/api/sites?lang=hi"},
		{"adds root path", "GET", "http://origin.example", "GET http://origin.example/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RequestKey(tt.method, tt.url))
		})
	}
}

func TestTierPhysicalNames(t *testing.T) {
	assert.Equal(t, "simhasth-static-v3", TierStatic.PhysicalName("v3"))

	known := KnownPhysicalNames("v3")
	assert.True(t, known["simhasth-dynamic-v3"])
	assert.True(t, known["simhasth-heritage-v3"])
	assert.False(t, known["simhasth-dynamic-v2"])
}

func TestTierStorePutGet(t *testing.T) {
	store := memstore.New()
	ts := NewTierStore(store, TierStatic, "v1")
	ctx := context.Background()

	key := RequestKey("GET", "http://origin/styles/main.css")
	require.NoError(t, ts.Put(ctx, NewEntry(key, 200, nil, []byte("body{}"))))

	entry, err := ts.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("body{}"), entry.Body)
	assert.Equal(t, 200, entry.Status)
}

func TestTierStoreMiss(t *testing.T) {
	ts := NewTierStore(memstore.New(), TierDynamic, "v1")

	_, err := ts.Get(context.Background(), "GET http://origin/api/none")
	assert.True(t, errors.Is(err, errors.ErrEntryNotFound))
}

func TestTierStoreRefreshOverwrites(t *testing.T) {
	ts := NewTierStore(memstore.New(), TierDynamic, "v1")
	ctx := context.Background()
	key := RequestKey("GET", "http://origin/api/heritage/sites")

	require.NoError(t, ts.Put(ctx, NewEntry(key, 200, nil, []byte("old"))))
	require.NoError(t, ts.Put(ctx, NewEntry(key, 200, nil, []byte("new"))))

	entry, err := ts.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), entry.Body)

	count, err := ts.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestTierIsolation(t *testing.T) {
	store := memstore.New()
	static := NewTierStore(store, TierStatic, "v1")
	dynamic := NewTierStore(store, TierDynamic, "v1")
	ctx := context.Background()

	key := RequestKey("GET", "http://origin/shared")
	require.NoError(t, static.Put(ctx, NewEntry(key, 200, nil, []byte("static copy"))))

	_, err := dynamic.Get(ctx, key)
	assert.True(t, errors.Is(err, errors.ErrEntryNotFound))
}

func TestTierStoreClearAndUsage(t *testing.T) {
	ts := NewTierStore(memstore.New(), TierDynamic, "v1")
	ctx := context.Background()

	require.NoError(t, ts.Put(ctx, NewEntry("GET http://origin/a", 200, nil, []byte("aaaa"))))
	require.NoError(t, ts.Put(ctx, NewEntry("GET http://origin/b", 200, nil, []byte("bbbb"))))

	usage, err := ts.Usage(ctx)
	require.NoError(t, err)
	assert.Positive(t, usage)

	require.NoError(t, ts.Clear(ctx))
	count, err := ts.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCorruptedEntryBehavesAsMiss(t *testing.T) {
	store := memstore.New()
	ts := NewTierStore(store, TierDynamic, "v1")
	ctx := context.Background()

	key := "GET http://origin/api/broken"
	require.NoError(t, store.Put(ctx, ts.storageKey(key), []byte("garbage")))

	_, err := ts.Get(ctx, key)
	assert.True(t, errors.Is(err, errors.ErrEntryNotFound))
}

func TestDeleteStaleTiers(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()

	oldStatic := NewTierStore(store, TierStatic, "v1")
	oldDynamic := NewTierStore(store, TierDynamic, "v1")
	newStatic := NewTierStore(store, TierStatic, "v2")

	require.NoError(t, oldStatic.Put(ctx, NewEntry("GET http://origin/a", 200, nil, []byte("a"))))
	require.NoError(t, oldDynamic.Put(ctx, NewEntry("GET http://origin/b", 200, nil, []byte("b"))))
	require.NoError(t, newStatic.Put(ctx, NewEntry("GET http://origin/c", 200, nil, []byte("c"))))

	stale, err := DeleteStaleTiers(ctx, store, "v2")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"simhasth-static-v1", "simhasth-dynamic-v1"}, stale)

	// Current tier untouched.
	entry, err := newStatic.Get(ctx, "GET http://origin/c")
	require.NoError(t, err)
	assert.Equal(t, []byte("c"), entry.Body)

	count, err := oldStatic.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
