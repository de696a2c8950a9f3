package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrNotFound indicates no wallet exists for the requested key.
var ErrNotFound = errors.New("wallet not found")

// Repository exposes the wallet reads the reconciliation engine needs plus
// the single metadata write it is permitted to make.
type Repository interface {
	Get(ctx context.Context, partnerID, currency string) (Wallet, error)
	List(ctx context.Context) ([]Wallet, error)
	SaveMetadata(ctx context.Context, walletID string, metadata map[string]string) error
}

// PostgresRepository stores wallets in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const walletColumns = `id, partner_id, currency, balance::text, metadata, created_at, updated_at`

// Get fetches the wallet for a (partner, currency) pair.
func (r *PostgresRepository) Get(ctx context.Context, partnerID, currency string) (Wallet, error) {
	row := r.db.QueryRow(ctx, `SELECT `+walletColumns+`
        FROM wallets WHERE partner_id = $1 AND currency = $2`, partnerID, currency)
	w, err := scanWallet(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrNotFound
		}
		return Wallet{}, err
	}
	return w, nil
}

// List returns every wallet, ordered for deterministic sweeps.
func (r *PostgresRepository) List(ctx context.Context) ([]Wallet, error) {
	rows, err := r.db.Query(ctx, `SELECT `+walletColumns+` FROM wallets ORDER BY partner_id, currency`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wallets []Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

// SaveMetadata replaces the wallet's metadata document in a single statement.
// The balance column is deliberately untouched.
func (r *PostgresRepository) SaveMetadata(ctx context.Context, walletID string, metadata map[string]string) error {
	doc, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode wallet metadata: %w", err)
	}
	tag, err := r.db.Exec(ctx, `UPDATE wallets SET metadata = $2, updated_at = NOW() WHERE id = $1`, walletID, doc)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var (
		w         Wallet
		balance   string
		metadata  []byte
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&w.ID, &w.PartnerID, &w.Currency, &balance, &metadata, &createdAt, &updatedAt); err != nil {
		return Wallet{}, err
	}
	amount, err := decimal.NewFromString(balance)
	if err != nil {
		return Wallet{}, fmt.Errorf("parse wallet balance: %w", err)
	}
	w.Balance = amount
	w.Metadata = map[string]string{}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &w.Metadata); err != nil {
			return Wallet{}, fmt.Errorf("decode wallet metadata: %w", err)
		}
	}
	w.CreatedAt = createdAt.UTC()
	w.UpdatedAt = updatedAt.UTC()
	return w, nil
}
