package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultQueryLimit = 50

// PostgresLog stores audit events in PostgreSQL. The table carries no
// UPDATE/DELETE grants; this type only ever inserts and selects.
type PostgresLog struct {
	db *pgxpool.Pool
}

// NewPostgresLog constructs a Postgres-backed audit log.
func NewPostgresLog(db *pgxpool.Pool) *PostgresLog {
	return &PostgresLog{db: db}
}

// Append inserts one event. Missing ID and CreatedAt are filled in.
func (l *PostgresLog) Append(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("encode event metadata: %w", err)
	}
	_, err = l.db.Exec(ctx, `INSERT INTO reconciliation_events (id, type, aggregate_id, payload, metadata, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.Type, event.AggregateID, []byte(event.Payload), metadata, event.CreatedAt)
	return err
}

// Query returns events matching the filter, newest first.
func (l *PostgresLog) Query(ctx context.Context, filter Filter) ([]Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	var (
		conditions []string
		args       []any
	)
	if filter.AggregateID != "" {
		args = append(args, filter.AggregateID)
		conditions = append(conditions, fmt.Sprintf("aggregate_id = $%d", len(args)))
	}
	if len(filter.EventTypes) > 0 {
		args = append(args, filter.EventTypes)
		conditions = append(conditions, fmt.Sprintf("type = ANY($%d)", len(args)))
	}

	query := `SELECT id, type, aggregate_id, payload, metadata, created_at FROM reconciliation_events`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := l.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event     Event
			payload   []byte
			metadata  []byte
			createdAt time.Time
		)
		if err := rows.Scan(&event.ID, &event.Type, &event.AggregateID, &payload, &metadata, &createdAt); err != nil {
			return nil, err
		}
		event.Payload = json.RawMessage(payload)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &event.Metadata); err != nil {
				return nil, fmt.Errorf("decode event metadata: %w", err)
			}
		}
		event.CreatedAt = createdAt.UTC()
		events = append(events, event)
	}
	return events, rows.Err()
}
