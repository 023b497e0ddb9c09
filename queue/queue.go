package queue

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/google/uuid"

	"github.com/rudrakanya/Simhasth-X8/errors"
	"github.com/rudrakanya/Simhasth-X8/storage"
)

const keyPrefix = "queue."

// Queue persists pending actions through a storage.Store, so with the
// JetStream backend deferred writes survive a process restart.
type Queue struct {
	store storage.Store
}

// New creates a queue over the given store.
func New(store storage.Store) *Queue {
	return &Queue{store: store}
}

func actionKey(category Category, id string) string {
	return keyPrefix + string(category) + "." + id
}

// Enqueue persists an action. Actions without an identifier get one.
func (q *Queue) Enqueue(ctx context.Context, action PendingAction) error {
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	if action.Category == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "queue", "Enqueue", "missing category")
	}

	data, err := json.Marshal(action)
	if err != nil {
		return errors.WrapInvalid(err, "queue", "Enqueue", "marshal action "+action.ID)
	}
	if err := q.store.Put(ctx, actionKey(action.Category, action.ID), data); err != nil {
		return errors.WrapTransient(err, "queue", "Enqueue", "persist action "+action.ID)
	}
	return nil
}

// Pending returns the queued actions of a category, oldest first. Corrupted
// records are skipped rather than blocking the whole category.
func (q *Queue) Pending(ctx context.Context, category Category) ([]PendingAction, error) {
	keys, err := q.store.List(ctx, keyPrefix+string(category)+".")
	if err != nil {
		return nil, errors.WrapTransient(err, "queue", "Pending", "list "+string(category))
	}

	actions := make([]PendingAction, 0, len(keys))
	for _, key := range keys {
		data, err := q.store.Get(ctx, key)
		if err != nil {
			continue // removed by a concurrent flush
		}
		var action PendingAction
		if err := json.Unmarshal(data, &action); err != nil {
			continue
		}
		actions = append(actions, action)
	}

	sort.Slice(actions, func(i, j int) bool {
		return actions[i].CreatedAt.Before(actions[j].CreatedAt)
	})
	return actions, nil
}

// Remove deletes a delivered action. Removing a missing action is a no-op.
func (q *Queue) Remove(ctx context.Context, category Category, id string) error {
	if err := q.store.Delete(ctx, actionKey(category, id)); err != nil {
		return errors.WrapTransient(err, "queue", "Remove", "delete "+id)
	}
	return nil
}

// Len returns the number of queued actions in a category.
func (q *Queue) Len(ctx context.Context, category Category) (int, error) {
	keys, err := q.store.List(ctx, keyPrefix+string(category)+".")
	if err != nil {
		return 0, errors.WrapTransient(err, "queue", "Len", "list "+string(category))
	}
	return len(keys), nil
}
