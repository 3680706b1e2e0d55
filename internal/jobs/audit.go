package jobs

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/municipio/pagecms/pkg/interfaces"
)

// AuditLog lists and clears recorded events.
type AuditLog interface {
	interfaces.AuditRecorder
	List(ctx context.Context) ([]interfaces.AuditEvent, error)
	Clear(ctx context.Context) error
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// InMemoryAuditRecorder accumulates audit events in memory.
type InMemoryAuditRecorder struct {
	mu     sync.Mutex
	events []interfaces.AuditEvent
	err    error
}

var _ AuditLog = (*InMemoryAuditRecorder)(nil)

func NewInMemoryAuditRecorder() *InMemoryAuditRecorder {
	return &InMemoryAuditRecorder{}
}

// Record stores the supplied event.
func (r *InMemoryAuditRecorder) Record(_ context.Context, event interfaces.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	copied := event
	if copied.Metadata != nil {
		copied.Metadata = maps.Clone(copied.Metadata)
	}
	r.events = append(r.events, copied)
	return nil
}

// Events returns a snapshot of recorded audit entries.
func (r *InMemoryAuditRecorder) Events() []interfaces.AuditEvent {
	events, _ := r.List(context.Background())
	return events
}

// Fail configures the recorder to return the supplied error on subsequent Record calls.
func (r *InMemoryAuditRecorder) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *InMemoryAuditRecorder) List(context.Context) ([]interfaces.AuditEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]interfaces.AuditEvent, len(r.events))
	copy(out, r.events)
	return out, nil
}

// Clear removes all recorded events.
func (r *InMemoryAuditRecorder) Clear(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
	return nil
}

// DeleteBefore drops events that occurred strictly before cutoff and reports how many went.
func (r *InMemoryAuditRecorder) DeleteBefore(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.events[:0]
	for _, event := range r.events {
		if event.OccurredAt.Before(cutoff) {
			continue
		}
		kept = append(kept, event)
	}
	removed := len(r.events) - len(kept)
	clear(r.events[len(kept):])
	r.events = kept
	return removed, nil
}
