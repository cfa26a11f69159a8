package offline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/kseleznyov/careervault/internal/client/state"
)

// QueueStore is the durable backend for pending operations.
type QueueStore interface {
	Enqueue(op state.QueuedOp) error
	Pending() ([]state.QueuedOp, error)
	Remove(id string) error
	ClearQueue() error
}

// Queue records mutations that failed while offline.
type Queue struct {
	store QueueStore
	now   func() time.Time
}

// NewQueue constructs a queue over the durable store.
func NewQueue(store QueueStore) *Queue {
	return &Queue{store: store, now: time.Now}
}

// Record appends an operation with a generated ID and timestamp.
func (q *Queue) Record(opType string, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	id := uuid.Must(uuid.NewV4()).String()
	op := state.QueuedOp{ID: id, Type: opType, Payload: raw, QueuedAt: q.now()}
	if err := q.store.Enqueue(op); err != nil {
		return "", err
	}
	return id, nil
}

// Pending lists queued operations in FIFO order.
func (q *Queue) Pending() ([]state.QueuedOp, error) { return q.store.Pending() }

// Remove deletes one entry after a successful resync.
func (q *Queue) Remove(id string) error { return q.store.Remove(id) }

// Clear drops the whole queue.
func (q *Queue) Clear() error { return q.store.ClearQueue() }

// Drain replays queued operations in FIFO order via apply, deleting each on
// success. It stops at the first failure and returns that error, leaving
// the failed entry and everything behind it queued; conflicts surface to
// the user rather than being resolved silently. Wire it to the monitor's
// offline-to-online transition.
func (q *Queue) Drain(ctx context.Context, apply func(ctx context.Context, op state.QueuedOp) error) error {
	ops, err := q.store.Pending()
	if err != nil {
		return err
	}
	for _, op := range ops {
		if err := apply(ctx, op); err != nil {
			return err
		}
		if err := q.store.Remove(op.ID); err != nil {
			return err
		}
	}
	return nil
}
