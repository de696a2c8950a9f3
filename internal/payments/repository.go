package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PaymentStore lists settled payments for reconciliation cross-checks.
type PaymentStore interface {
	ListCompleted(ctx context.Context, currency string) ([]Payment, error)
}

// RefundStore lists settled refunds for reconciliation cross-checks.
type RefundStore interface {
	ListCompleted(ctx context.Context, currency string) ([]Refund, error)
}

// PostgresPaymentStore reads payments from PostgreSQL.
type PostgresPaymentStore struct {
	db *pgxpool.Pool
}

// NewPostgresPaymentStore constructs a Postgres-backed payment store.
func NewPostgresPaymentStore(db *pgxpool.Pool) *PostgresPaymentStore {
	return &PostgresPaymentStore{db: db}
}

// ListCompleted returns completed payments in the given currency.
func (s *PostgresPaymentStore) ListCompleted(ctx context.Context, currency string) ([]Payment, error) {
	rows, err := s.db.Query(ctx, `SELECT id, currency, amount::text, status, created_at
        FROM payments WHERE currency = $1 AND status = $2 ORDER BY created_at, id`, currency, StatusCompleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		var (
			p         Payment
			amount    string
			createdAt time.Time
		)
		if err := rows.Scan(&p.ID, &p.Currency, &amount, &p.Status, &createdAt); err != nil {
			return nil, err
		}
		p.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse payment amount: %w", err)
		}
		p.CreatedAt = createdAt.UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

// PostgresRefundStore reads refunds from PostgreSQL.
type PostgresRefundStore struct {
	db *pgxpool.Pool
}

// NewPostgresRefundStore constructs a Postgres-backed refund store.
func NewPostgresRefundStore(db *pgxpool.Pool) *PostgresRefundStore {
	return &PostgresRefundStore{db: db}
}

// ListCompleted returns completed refunds in the given currency.
func (s *PostgresRefundStore) ListCompleted(ctx context.Context, currency string) ([]Refund, error) {
	rows, err := s.db.Query(ctx, `SELECT id, currency, amount::text, status, created_at
        FROM refunds WHERE currency = $1 AND status = $2 ORDER BY created_at, id`, currency, StatusCompleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Refund
	for rows.Next() {
		var (
			r         Refund
			amount    string
			createdAt time.Time
		)
		if err := rows.Scan(&r.ID, &r.Currency, &amount, &r.Status, &createdAt); err != nil {
			return nil, err
		}
		r.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse refund amount: %w", err)
		}
		r.CreatedAt = createdAt.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}
