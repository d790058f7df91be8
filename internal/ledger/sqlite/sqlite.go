// Package sqlite is the embedded ledger.Store backend for single-node
// deployments and local development.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dvloznov/ledger-sync/internal/domain"
	"github.com/dvloznov/ledger-sync/internal/ledger"
)

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	provider_tx_id      TEXT PRIMARY KEY,
	id                  TEXT NOT NULL,
	user_id             TEXT NOT NULL,
	account_id          TEXT NOT NULL,
	amount              REAL NOT NULL,
	currency            TEXT NOT NULL,
	tx_date             TEXT NOT NULL,
	base_amount         REAL,
	base_currency       TEXT NOT NULL DEFAULT '',
	description         TEXT NOT NULL DEFAULT '',
	raw_description     TEXT NOT NULL DEFAULT '',
	merchant            TEXT NOT NULL DEFAULT '',
	category            TEXT NOT NULL DEFAULT '',
	subcategory         TEXT NOT NULL DEFAULT '',
	category_confidence REAL NOT NULL DEFAULT 0,
	category_source     TEXT NOT NULL DEFAULT '',
	notes               TEXT NOT NULL DEFAULT '',
	location            TEXT,
	pending             INTEGER NOT NULL DEFAULT 0,
	needs_review        INTEGER NOT NULL DEFAULT 0,
	local_edits         TEXT,
	quality_score       REAL NOT NULL DEFAULT 0,
	created_at          TEXT NOT NULL,
	updated_at          TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_account_date
	ON transactions (account_id, tx_date);

CREATE TABLE IF NOT EXISTS accounts (
	provider_account_id TEXT PRIMARY KEY,
	id                  TEXT NOT NULL,
	user_id             TEXT NOT NULL,
	name                TEXT NOT NULL,
	type                TEXT NOT NULL DEFAULT '',
	mask                TEXT NOT NULL DEFAULT '',
	balance             REAL NOT NULL DEFAULT 0,
	currency            TEXT NOT NULL DEFAULT '',
	last_synced         TEXT NOT NULL,
	updated_at          TEXT NOT NULL
);
`

// Store implements ledger.Store on sqlite.
type Store struct {
	db *sql.DB
}

var _ ledger.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // sqlite
	db.SetConnMaxLifetime(0)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

const txColumns = `provider_tx_id, id, user_id, account_id, amount, currency, tx_date,
	base_amount, base_currency, description, raw_description, merchant,
	category, subcategory, category_confidence, category_source, notes,
	location, pending, needs_review, local_edits, quality_score,
	created_at, updated_at`

// FindByProviderID implements ledger.Store.
func (s *Store) FindByProviderID(ctx context.Context, providerTxID string) (*domain.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE provider_tx_id = ?`, providerTxID)
	tx, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by provider id: %w", err)
	}
	return tx, nil
}

// FindWindow implements ledger.Store.
func (s *Store) FindWindow(ctx context.Context, accountID string, from, to time.Time) ([]*domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+txColumns+` FROM transactions
		 WHERE account_id = ? AND tx_date >= ? AND tx_date <= ?
		 ORDER BY tx_date`,
		accountID, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("find window: %w", err)
	}
	defer rows.Close()

	var out []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("find window scan: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// Upsert implements ledger.Store.
func (s *Store) Upsert(ctx context.Context, tx *domain.Transaction) error {
	location, err := marshalNullable(tx.Location)
	if err != nil {
		return fmt.Errorf("upsert: encode location: %w", err)
	}
	localEdits, err := marshalNullable(tx.LocalEdits)
	if err != nil {
		return fmt.Errorf("upsert: encode local edits: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO transactions (`+txColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(provider_tx_id) DO UPDATE SET
			amount = excluded.amount,
			currency = excluded.currency,
			tx_date = excluded.tx_date,
			base_amount = excluded.base_amount,
			base_currency = excluded.base_currency,
			description = excluded.description,
			raw_description = excluded.raw_description,
			merchant = excluded.merchant,
			category = excluded.category,
			subcategory = excluded.subcategory,
			category_confidence = excluded.category_confidence,
			category_source = excluded.category_source,
			notes = excluded.notes,
			location = excluded.location,
			pending = excluded.pending,
			needs_review = excluded.needs_review,
			local_edits = excluded.local_edits,
			quality_score = excluded.quality_score,
			updated_at = excluded.updated_at`,
		tx.ProviderTxID, tx.ID, tx.UserID, tx.AccountID, tx.Amount, tx.Currency,
		tx.Date.UTC().Format(time.RFC3339),
		nullableFloat(tx.BaseAmount), tx.BaseCurrency,
		tx.Description, tx.RawDescription, tx.Merchant,
		tx.Category, tx.Subcategory, tx.CategoryConfidence, tx.CategorySource,
		tx.Notes, location, tx.Pending, tx.NeedsReview, localEdits, tx.QualityScore,
		tx.CreatedAt.UTC().Format(time.RFC3339), tx.UpdatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert transaction: %w", err)
	}
	return nil
}

// UpsertAccount implements ledger.Store.
func (s *Store) UpsertAccount(ctx context.Context, acct *domain.Account) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (provider_account_id, id, user_id, name, type, mask,
			balance, currency, last_synced, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(provider_account_id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			mask = excluded.mask,
			balance = excluded.balance,
			currency = excluded.currency,
			last_synced = excluded.last_synced,
			updated_at = excluded.updated_at`,
		acct.ProviderAccountID, acct.ID, acct.UserID, acct.Name, acct.Type, acct.Mask,
		acct.Balance, acct.Currency,
		acct.LastSynced.UTC().Format(time.RFC3339), acct.UpdatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(r rowScanner) (*domain.Transaction, error) {
	var (
		tx         domain.Transaction
		txDate     string
		baseAmount sql.NullFloat64
		location   sql.NullString
		localEdits sql.NullString
		createdAt  string
		updatedAt  string
	)
	err := r.Scan(&tx.ProviderTxID, &tx.ID, &tx.UserID, &tx.AccountID,
		&tx.Amount, &tx.Currency, &txDate,
		&baseAmount, &tx.BaseCurrency,
		&tx.Description, &tx.RawDescription, &tx.Merchant,
		&tx.Category, &tx.Subcategory, &tx.CategoryConfidence, &tx.CategorySource,
		&tx.Notes, &location, &tx.Pending, &tx.NeedsReview, &localEdits,
		&tx.QualityScore, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if tx.Date, err = time.Parse(time.RFC3339, txDate); err != nil {
		return nil, fmt.Errorf("parse tx_date: %w", err)
	}
	if tx.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if tx.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if baseAmount.Valid {
		v := baseAmount.Float64
		tx.BaseAmount = &v
	}
	if location.Valid && location.String != "" {
		var loc domain.Location
		if err := json.Unmarshal([]byte(location.String), &loc); err != nil {
			return nil, fmt.Errorf("decode location: %w", err)
		}
		tx.Location = &loc
	}
	if localEdits.Valid && localEdits.String != "" {
		if err := json.Unmarshal([]byte(localEdits.String), &tx.LocalEdits); err != nil {
			return nil, fmt.Errorf("decode local edits: %w", err)
		}
	}
	return &tx, nil
}

func marshalNullable(v any) (any, error) {
	switch t := v.(type) {
	case *domain.Location:
		if t == nil {
			return nil, nil
		}
	case []string:
		if len(t) == 0 {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
