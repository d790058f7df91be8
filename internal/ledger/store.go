// Package ledger defines the persistence capability the sync engine writes
// through. The engine uses exactly four operations; everything else about
// storage (schema, consistency, replication) is the adapter's business.
package ledger

import (
	"context"
	"time"

	"github.com/dvloznov/ledger-sync/internal/domain"
)

// Store is the persistence port for normalized records.
//
// The engine performs one logical read-detect-write sequence per record and
// does not assume atomicity across that sequence; callers must ensure at most
// one active sync per (user, account) pair, which the job queue enforces.
type Store interface {
	// FindByProviderID returns the transaction with the given provider
	// transaction id, or (nil, nil) when none exists.
	FindByProviderID(ctx context.Context, providerTxID string) (*domain.Transaction, error)

	// FindWindow returns all transactions for an account dated within
	// [from, to], the candidate window for duplicate detection.
	FindWindow(ctx context.Context, accountID string, from, to time.Time) ([]*domain.Transaction, error)

	// Upsert inserts or replaces a transaction, keyed by provider
	// transaction id.
	Upsert(ctx context.Context, tx *domain.Transaction) error

	// UpsertAccount inserts or replaces an account, keyed by provider
	// account id.
	UpsertAccount(ctx context.Context, acct *domain.Account) error
}
