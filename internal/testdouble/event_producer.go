package testdouble

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// EventProducer is an in-memory ports.EventProducer recording every
// emitted uuid, with an optional failure to exercise the swallowed
// "failures from the event producer are logged" path of the scheduler.
type EventProducer struct {
	mu       sync.Mutex
	emitted  []uuid.UUID
	FailWith error
}

// NewEventProducer returns an EventProducer that always succeeds until FailWith is set.
func NewEventProducer() *EventProducer {
	return &EventProducer{}
}

func (e *EventProducer) EmitAnchorEvent(ctx context.Context, id uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.FailWith != nil {
		return e.FailWith
	}
	e.emitted = append(e.emitted, id)
	return nil
}

// Emitted returns every uuid passed to EmitAnchorEvent, in order.
func (e *EventProducer) Emitted() []uuid.UUID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]uuid.UUID{}, e.emitted...)
}
