// Package queue implements the deferred action queue: writes attempted while
// the origin is unreachable are accepted optimistically, persisted, and
// flushed when connectivity returns.
package queue

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rudrakanya/Simhasth-X8/config"
)

// Category partitions deferred actions; categories are flushed independently.
type Category string

// The three deferred write categories.
const (
	CategoryHeritage  Category = "heritage"
	CategoryFeedback  Category = "feedback"
	CategoryAnalytics Category = "analytics"
)

// Categories lists every category in flush order.
func Categories() []Category {
	return []Category{CategoryHeritage, CategoryFeedback, CategoryAnalytics}
}

// PendingAction is one deferred write: created when a network write fails
// while offline, removed once successfully flushed to the origin.
type PendingAction struct {
	ID        string          `json:"id"`
	Category  Category        `json:"category"`
	Method    string          `json:"method"`
	Endpoint  string          `json:"endpoint"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewPendingAction builds an action with a fresh identifier and timestamp.
func NewPendingAction(category Category, method, endpoint string, payload []byte) PendingAction {
	return PendingAction{
		ID:        uuid.NewString(),
		Category:  category,
		Method:    method,
		Endpoint:  endpoint,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
}

// CategoryFor maps a write endpoint to its deferred category. The boolean is
// false for endpoints that are not deferrable.
func CategoryFor(path string, cfg config.QueueConfig) (Category, bool) {
	switch {
	case strings.HasPrefix(path, cfg.HeritagePrefix):
		return CategoryHeritage, true
	case strings.HasPrefix(path, cfg.FeedbackPrefix):
		return CategoryFeedback, true
	case strings.HasPrefix(path, cfg.AnalyticsPrefix):
		return CategoryAnalytics, true
	default:
		return "", false
	}
}
