package audit

import (
	"context"
	"encoding/json"
	"time"
)

// Event types recorded by the reconciliation engine.
const (
	EventSweepCompleted = "reconciliation.completed"
	EventManualRun      = "reconciliation.manual"
	EventCriticalAlert  = "reconciliation.critical.alert"
	EventRunFailed      = "reconciliation.failed"
)

// SystemAggregate is the aggregate ID used for fleet-level events that are
// not tied to a single partner.
const SystemAggregate = "SYSTEM"

// Event is one immutable audit record. Payload is an opaque JSON document
// supplied by the writer.
type Event struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	AggregateID string            `json:"aggregate_id"` // partner ID, or SYSTEM for fleet-level events
	Payload     json.RawMessage   `json:"payload"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Filter narrows a Query. Zero values mean "no constraint" except Limit,
// which defaults to 50 when unset.
type Filter struct {
	AggregateID string
	EventTypes  []string
	Limit       int
	Offset      int
}

// Log is the append-only reconciliation audit trail. No update or delete is
// exposed; history is immutable once written.
type Log interface {
	Append(ctx context.Context, event Event) error
	Query(ctx context.Context, filter Filter) ([]Event, error)
}
