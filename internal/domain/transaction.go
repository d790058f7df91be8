package domain

import (
	"time"
)

// Transaction is the canonical, normalized record the rest of the application
// consumes. Raw provider payloads are transient and never persisted; only this
// shape is written through the ledger store.
type Transaction struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	AccountID string `json:"account_id"`

	// ProviderTxID is the aggregator's transaction identifier and serves as
	// the idempotency key for re-syncs.
	ProviderTxID string `json:"provider_tx_id"`

	Amount   float64   `json:"amount"` // IN = positive, OUT = negative
	Currency string    `json:"currency"`
	Date     time.Time `json:"date"`

	// BaseAmount is the amount converted into BaseCurrency. Nil when no fresh
	// conversion rate was available; conversion is never defaulted to 1:1.
	BaseAmount   *float64 `json:"base_amount,omitempty"`
	BaseCurrency string   `json:"base_currency,omitempty"`

	Description    string `json:"description"`
	RawDescription string `json:"raw_description"`
	Merchant       string `json:"merchant,omitempty"`

	Category           string  `json:"category,omitempty"`
	Subcategory        string  `json:"subcategory,omitempty"`
	CategoryConfidence float64 `json:"category_confidence,omitempty"`
	CategorySource     string  `json:"category_source,omitempty"` // "rule:<id>", "heuristic", "fallback", "user"

	Notes    string    `json:"notes,omitempty"`
	Location *Location `json:"location,omitempty"`

	Pending     bool `json:"pending"`
	NeedsReview bool `json:"needs_review,omitempty"`

	// LocalEdits lists fields the user has explicitly modified. Conflict
	// resolution consults this to keep user intent under the merge strategy.
	LocalEdits []string `json:"local_edits,omitempty"`

	QualityScore float64 `json:"quality_score,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasLocalEdit reports whether the user explicitly modified the given field.
func (t *Transaction) HasLocalEdit(field string) bool {
	for _, f := range t.LocalEdits {
		if f == field {
			return true
		}
	}
	return false
}

// Location carries best-effort geo enrichment for a transaction.
type Location struct {
	City    string   `json:"city,omitempty"`
	Region  string   `json:"region,omitempty"`
	Country string   `json:"country,omitempty"`
	Lat     *float64 `json:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty"`
}

// Account is the normalized account record kept alongside transactions.
type Account struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	ProviderAccountID string    `json:"provider_account_id"`
	Name              string    `json:"name"`
	Type              string    `json:"type"`
	Mask              string    `json:"mask,omitempty"`
	Balance           float64   `json:"balance"`
	Currency          string    `json:"currency"`
	LastSynced        time.Time `json:"last_synced"`
	UpdatedAt         time.Time `json:"updated_at"`
}
