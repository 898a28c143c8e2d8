package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Envelope is one email waiting in the outbox.
type Envelope struct {
	ID         string       `json:"id"`
	Kind       Kind         `json:"kind"`
	Input      AccountEmail `json:"input"`
	EnqueuedAt time.Time    `json:"enqueuedAt"`
	LastError  string       `json:"lastError,omitempty"`
}

type Enqueuer interface {
	Enqueue(ctx context.Context, env Envelope) error
}

// QueueNotifier hands emails to an outbox; the worker process sends them.
type QueueNotifier struct {
	queue Enqueuer
}

func NewQueueNotifier(queue Enqueuer) *QueueNotifier {
	return &QueueNotifier{queue: queue}
}

func (n *QueueNotifier) SendAccountConfirmation(ctx context.Context, input AccountEmail) error {
	return n.queue.Enqueue(ctx, NewEnvelope(KindConfirmation, input))
}

func (n *QueueNotifier) SendPasswordReset(ctx context.Context, input AccountEmail) error {
	return n.queue.Enqueue(ctx, NewEnvelope(KindPasswordReset, input))
}

func NewEnvelope(kind Kind, input AccountEmail) Envelope {
	return Envelope{
		ID:         uuid.NewString(),
		Kind:       kind,
		Input:      input,
		EnqueuedAt: time.Now().UTC(),
	}
}
