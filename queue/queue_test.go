package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rudrakanya/Simhasth-X8/config"
	"github.com/rudrakanya/Simhasth-X8/storage/memstore"
)

func TestEnqueueAssignsID(t *testing.T) {
	q := New(memstore.New())
	ctx := context.Background()

	action := PendingAction{
		Category:  CategoryFeedback,
		Method:    "POST",
		Endpoint:  "/api/feedback",
		Payload:   []byte(`{"rating":5}`),
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, q.Enqueue(ctx, action))

	pending, err := q.Pending(ctx, CategoryFeedback)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.NotEmpty(t, pending[0].ID)
	assert.JSONEq(t, `{"rating":5}`, string(pending[0].Payload))
}

func TestEnqueueRequiresCategory(t *testing.T) {
	q := New(memstore.New())
	err := q.Enqueue(context.Background(), PendingAction{Endpoint: "/api/feedback"})
	require.Error(t, err)
}

func TestPendingIsOldestFirst(t *testing.T) {
	q := New(memstore.New())
	ctx := context.Background()
	base := time.Now().UTC()

	// Enqueue newest first to prove ordering comes from CreatedAt, not the
	// store's key order.
	for i := 2; i >= 0; i-- {
		action := NewPendingAction(CategoryHeritage, "PUT", "/api/heritage/sites/1", nil)
		action.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, q.Enqueue(ctx, action))
	}

	pending, err := q.Pending(ctx, CategoryHeritage)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.True(t, pending[0].CreatedAt.Before(pending[1].CreatedAt))
	assert.True(t, pending[1].CreatedAt.Before(pending[2].CreatedAt))
}

func TestCategoriesAreIsolated(t *testing.T) {
	q := New(memstore.New())
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, NewPendingAction(CategoryHeritage, "PUT", "/api/heritage/sites/1", nil)))
	require.NoError(t, q.Enqueue(ctx, NewPendingAction(CategoryAnalytics, "POST", "/api/analytics", nil)))

	heritage, err := q.Len(ctx, CategoryHeritage)
	require.NoError(t, err)
	assert.Equal(t, 1, heritage)

	feedback, err := q.Len(ctx, CategoryFeedback)
	require.NoError(t, err)
	assert.Zero(t, feedback)
}

func TestRemove(t *testing.T) {
	q := New(memstore.New())
	ctx := context.Background()

	action := NewPendingAction(CategoryFeedback, "POST", "/api/feedback", nil)
	require.NoError(t, q.Enqueue(ctx, action))
	require.NoError(t, q.Remove(ctx, CategoryFeedback, action.ID))
	require.NoError(t, q.Remove(ctx, CategoryFeedback, action.ID)) // idempotent

	remaining, err := q.Len(ctx, CategoryFeedback)
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

func TestQueueSurvivesStoreRoundTrip(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()

	action := NewPendingAction(CategoryHeritage, "PUT", "/api/heritage/sites/bateshwar", []byte(`{"visits":12}`))
	require.NoError(t, New(store).Enqueue(ctx, action))

	// A fresh Queue over the same store sees the action: durability is the
	// store's responsibility, not in-process state.
	pending, err := New(store).Pending(ctx, CategoryHeritage)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, action.ID, pending[0].ID)
}

func TestCorruptedRecordIsSkipped(t *testing.T) {
	store := memstore.New()
	q := New(store)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, NewPendingAction(CategoryFeedback, "POST", "/api/feedback", nil)))
	require.NoError(t, store.Put(ctx, "queue.feedback.zzz-corrupted", []byte("not json")))

	pending, err := q.Pending(ctx, CategoryFeedback)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestCategoryFor(t *testing.T) {
	cfg := config.DefaultConfig().Queue

	tests := []struct {
		path     string
		want     Category
		deferred bool
	}{
		{"/api/heritage/sites/1", CategoryHeritage, true},
		{"/api/feedback", CategoryFeedback, true},
		{"/api/analytics/events", CategoryAnalytics, true},
		{"/api/users/me", "", false},
	}
	for _, tt := range tests {
		category, ok := CategoryFor(tt.path, cfg)
		assert.Equal(t, tt.deferred, ok, tt.path)
		assert.Equal(t, tt.want, category, tt.path)
	}
}
