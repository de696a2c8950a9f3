package audit

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLog is an in-memory append-only Log for tests.
type MemoryLog struct {
	mu     sync.RWMutex
	events []Event
	err    error
}

// NewMemoryLog creates an empty in-memory audit log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

// Fail makes every subsequent Append and Query return err.
func (l *MemoryLog) Fail(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
}

// Append records one event.
func (l *MemoryLog) Append(_ context.Context, event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	l.events = append(l.events, event)
	return nil
}

// Query returns matching events, newest first.
func (l *MemoryLog) Query(_ context.Context, filter Filter) ([]Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.err != nil {
		return nil, l.err
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	var matched []Event
	for _, event := range l.events {
		if filter.AggregateID != "" && event.AggregateID != filter.AggregateID {
			continue
		}
		if len(filter.EventTypes) > 0 && !slices.Contains(filter.EventTypes, event.Type) {
			continue
		}
		matched = append(matched, event)
	}
	// Newest first; the slice is already in append order.
	slices.Reverse(matched)

	if filter.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[filter.Offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// Events returns a copy of everything appended so far, in append order.
// Test inspection only.
func (l *MemoryLog) Events() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.events)
}
