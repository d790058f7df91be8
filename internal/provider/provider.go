// Package provider defines the capability boundary to external financial-data
// aggregators. Concrete adapters (Plaid, Yodlee) live outside the engine and
// implement Client; the engine only ever sees raw records and the error
// taxonomy declared here.
package provider

import (
	"context"
	"time"

	"github.com/dvloznov/ledger-sync/internal/domain"
)

// RawAccount is an account exactly as the aggregator returned it, with
// provider-specific naming. It is transient and never persisted.
type RawAccount struct {
	ProviderAccountID string
	Name              string
	OfficialName      string
	Type              string
	Mask              string
	Balance           float64
	Currency          string
}

// RawTransaction is a transaction exactly as the aggregator returned it.
// Transient; the engine normalizes it before anything touches the store.
type RawTransaction struct {
	ProviderTxID      string
	ProviderAccountID string
	Amount            float64
	Currency          string
	Date              time.Time
	Description       string
	MerchantName      string
	Pending           bool
	Location          *domain.Location
}

// DateRange bounds a transaction fetch. End is inclusive.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Page is one page of a paginated transaction fetch. An empty NextCursor
// means the fetch is complete.
type Page struct {
	Transactions []RawTransaction
	NextCursor   string
}

// Client abstracts the aggregator HTTP API. Both calls may fail with a
// *RateLimitError, a *AuthError, or a transient error (see errors.go).
type Client interface {
	GetAccounts(ctx context.Context, accessToken string) ([]RawAccount, error)
	GetTransactions(ctx context.Context, accessToken string, r DateRange, accountID string, cursor string) (Page, error)
}
