// Package visits records how public check-in flows ended. The console
// publishes one event per finished flow; the worker stores them.
package visits

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"courseattend/internal/logger"
	"courseattend/internal/queue"
)

// MessageType tags visit events on the queue.
const MessageType = "checkin.visit"

// Visit is the outcome of one hosted check-in flow.
type Visit struct {
	ID        string    `json:"id"`
	FlowID    string    `json:"flowId"`
	Slug      string    `json:"slug"`
	State     string    `json:"state"`
	ErrorKind string    `json:"errorKind,omitempty"`
	StudentID string    `json:"studentId,omitempty"`
	Status    string    `json:"status,omitempty"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Duration is how long the visitor spent in the flow.
func (v Visit) Duration() time.Duration {
	if v.EndedAt.Before(v.StartedAt) {
		return 0
	}
	return v.EndedAt.Sub(v.StartedAt)
}

func (v Visit) validate() error {
	if v.Slug == "" || v.State == "" {
		return errors.New("visits: slug and state required")
	}
	return nil
}

// Recorder publishes visits to the queue.
type Recorder struct {
	q queue.Queue
}

func NewRecorder(q queue.Queue) *Recorder {
	return &Recorder{q: q}
}

// Record enqueues v, assigning an id and end time when missing.
func (r *Recorder) Record(ctx context.Context, v Visit) error {
	if err := v.validate(); err != nil {
		return err
	}
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.EndedAt.IsZero() {
		v.EndedAt = time.Now().UTC()
	}
	msg, err := queue.NewMessage(MessageType, v)
	if err != nil {
		return err
	}
	return r.q.Publish(ctx, msg)
}

// Sink stores visits; Repository is the Postgres implementation.
type Sink interface {
	Insert(ctx context.Context, v Visit) (bool, error)
}

// Consume stores every visit event from q until ctx ends. Malformed events
// and storage failures are logged and skipped.
func Consume(ctx context.Context, q queue.Queue, sink Sink) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	for msg := range messages {
		if msg.Type != MessageType {
			continue
		}
		var v Visit
		if err := msg.Decode(&v); err != nil {
			logger.LogWarn("visit event malformed", "error", err)
			continue
		}
		if err := v.validate(); err != nil {
			logger.LogWarn("visit event rejected", "error", err)
			continue
		}
		created, err := sink.Insert(ctx, v)
		if err != nil {
			logger.LogError("visit insert failed", err, "id", v.ID, "slug", v.Slug)
			continue
		}
		if created {
			logger.LogDebug("visit recorded", "id", v.ID, "slug", v.Slug, "state", v.State, "duration", v.Duration().String())
		}
	}
	return ctx.Err()
}
