package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rudrakanya/Simhasth-X8/storage/memstore"
)

// fillDynamic stores n entries with strictly increasing StoredAt so the
// insertion order is unambiguous.
func fillDynamic(t *testing.T, ts *TierStore, n int, bodySize int) []string {
	t.Helper()
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	keys := make([]string, n)
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("GET http://origin/api/item/%03d", i)
		keys[i] = key
		entry := &Entry{
			Key:      key,
			Status:   200,
			Body:     make([]byte, bodySize),
			StoredAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, ts.Put(ctx, entry))
	}
	return keys
}

func TestGovernorBelowCeilingNoEviction(t *testing.T) {
	ts := NewTierStore(memstore.New(), TierDynamic, "v1")
	fillDynamic(t, ts, 10, 16)

	g := NewGovernor(ts, 1<<20, time.Minute, nil)
	evicted, err := g.CheckOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, evicted)

	count, err := ts.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, count)
}

func TestGovernorEvictsOldestFifth(t *testing.T) {
	ts := NewTierStore(memstore.New(), TierDynamic, "v1")
	keys := fillDynamic(t, ts, 10, 512)

	g := NewGovernor(ts, 1, time.Minute, nil) // ceiling of 1 byte forces eviction
	evicted, err := g.CheckOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, evicted, "10 entries -> oldest 20%% = 2")

	ctx := context.Background()
	for _, key := range keys[:2] {
		_, err := ts.Get(ctx, key)
		assert.Error(t, err, "oldest entries should be gone: %s", key)
	}
	for _, key := range keys[2:] {
		_, err := ts.Get(ctx, key)
		assert.NoError(t, err, "newer entries must survive: %s", key)
	}
}

func TestGovernorRoundsDown(t *testing.T) {
	ts := NewTierStore(memstore.New(), TierDynamic, "v1")
	fillDynamic(t, ts, 9, 512)

	g := NewGovernor(ts, 1, time.Minute, nil)
	evicted, err := g.CheckOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, evicted, "9 entries -> floor(9/5) = 1")
}

func TestGovernorMakesProgressOnTinyTier(t *testing.T) {
	ts := NewTierStore(memstore.New(), TierDynamic, "v1")
	fillDynamic(t, ts, 3, 4096)

	g := NewGovernor(ts, 1, time.Minute, nil)
	evicted, err := g.CheckOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, evicted)
}

func TestGovernorNeverTouchesOtherTiers(t *testing.T) {
	store := memstore.New()
	dynamic := NewTierStore(store, TierDynamic, "v1")
	static := NewTierStore(store, TierStatic, "v1")
	heritage := NewTierStore(store, TierHeritage, "v1")
	ctx := context.Background()

	fillDynamic(t, dynamic, 10, 512)
	require.NoError(t, static.Put(ctx, NewEntry("GET http://origin/app.js", 200, nil, []byte("js"))))
	require.NoError(t, heritage.Put(ctx, NewEntry("GET http://origin/media/models/varaha.glb", 200, nil, []byte("glb"))))

	g := NewGovernor(dynamic, 1, time.Minute, nil)
	_, err := g.CheckOnce(ctx)
	require.NoError(t, err)

	staticCount, err := static.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, staticCount)

	heritageCount, err := heritage.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, heritageCount)
}

func TestGovernorEmptyTier(t *testing.T) {
	ts := NewTierStore(memstore.New(), TierDynamic, "v1")
	g := NewGovernor(ts, 1, time.Minute, nil)

	evicted, err := g.CheckOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, evicted)
}

func TestGovernorRunStopsOnCancel(t *testing.T) {
	ts := NewTierStore(memstore.New(), TierDynamic, "v1")
	g := NewGovernor(ts, 1<<20, 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		g.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("governor did not stop after context cancellation")
	}
}
