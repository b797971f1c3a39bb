// Package notify publishes state-change notifications for interested
// consumers (UI refresh, monitoring). Delivery is fire-and-forget: a failed
// publish is logged and never fails the state transition that triggered it.
package notify

import (
	"context"

	"github.com/gradepipe/gradepipe/internal/domain"
)

// StateChange describes one entity status transition.
type StateChange struct {
	EntityKind domain.EntityKind `json:"entity_kind"`
	EntityID   string            `json:"entity_id"`
	From       string            `json:"from"`
	To         string            `json:"to"`
}

// Publisher broadcasts state changes to interested consumers.
type Publisher interface {
	PublishStateChange(ctx context.Context, change StateChange)
}

// NoopPublisher discards all notifications.
type NoopPublisher struct{}

// PublishStateChange implements Publisher with no-op behavior.
func (NoopPublisher) PublishStateChange(_ context.Context, _ StateChange) {}
