package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresStore reads ledger entries from PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed ledger store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const transactionColumns = `id, wallet_id, type, status, amount::text, balance_after::text, COALESCE(reference_id, ''), COALESCE(reference_type, ''), created_at`

// ListByWallet returns every ledger entry for the wallet in canonical order:
// creation time ascending, entry ID as tie-breaker.
func (s *PostgresStore) ListByWallet(ctx context.Context, walletID string) ([]Transaction, error) {
	rows, err := s.db.Query(ctx, `SELECT `+transactionColumns+`
        FROM wallet_transactions WHERE wallet_id = $1 ORDER BY created_at, id`, walletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Transaction
	for rows.Next() {
		entry, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// CountByWallet returns the number of ledger entries for the wallet.
func (s *PostgresStore) CountByWallet(ctx context.Context, walletID string) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM wallet_transactions WHERE wallet_id = $1`, walletID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// FindByReference looks up the ledger entry caused by an external payment or
// refund. Returns ErrEntryNotFound when no trace exists.
func (s *PostgresStore) FindByReference(ctx context.Context, referenceID, referenceType string) (Transaction, error) {
	row := s.db.QueryRow(ctx, `SELECT `+transactionColumns+`
        FROM wallet_transactions WHERE reference_id = $1 AND reference_type = $2
        ORDER BY created_at, id LIMIT 1`, referenceID, referenceType)
	entry, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrEntryNotFound
		}
		return Transaction{}, err
	}
	return entry, nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		t            Transaction
		amount       string
		balanceAfter string
		createdAt    time.Time
	)
	if err := row.Scan(&t.ID, &t.WalletID, &t.Type, &t.Status, &amount, &balanceAfter, &t.ReferenceID, &t.ReferenceType, &createdAt); err != nil {
		return Transaction{}, err
	}
	parsedAmount, err := decimal.NewFromString(amount)
	if err != nil {
		return Transaction{}, fmt.Errorf("parse transaction amount: %w", err)
	}
	parsedBalance, err := decimal.NewFromString(balanceAfter)
	if err != nil {
		return Transaction{}, fmt.Errorf("parse balance_after: %w", err)
	}
	t.Amount = parsedAmount
	t.BalanceAfter = parsedBalance
	t.CreatedAt = createdAt.UTC()
	return t, nil
}
