// Package queue abstracts the external job queue. The pipeline asks it to
// (re)schedule grading units but does not implement queueing itself.
package queue

import (
	"context"
	"time"

	"github.com/gradepipe/gradepipe/internal/domain"
)

// Ref identifies one unit of queued work.
type Ref struct {
	Kind domain.EntityKind `json:"kind"`
	ID   string            `json:"id"`
}

// Scheduler enqueues grading units for processing, optionally delayed.
// A zero delay means process as soon as a worker is free.
type Scheduler interface {
	Enqueue(ctx context.Context, ref Ref, delay time.Duration) error
}
