// Package resolve merges a local and a provider version of the same logical
// record under a chosen strategy. Pure functions, no I/O.
package resolve

import (
	"fmt"

	"github.com/dvloznov/ledger-sync/internal/domain"
)

// Strategy selects how a conflict between local and provider data is settled.
type Strategy string

const (
	// ProviderWins overwrites mutable fields with provider data, preserving
	// fields the provider payload does not carry.
	ProviderWins Strategy = "provider_wins"
	// LocalWins preserves local edits verbatim, filling only locally-absent
	// fields from the provider.
	LocalWins Strategy = "local_wins"
	// Merge keeps explicitly user-edited fields from local, adopts factual
	// enrichment from the provider, and always takes structural fields
	// (amount, date, account, currency) from the provider.
	Merge Strategy = "merge"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case ProviderWins, LocalWins, Merge:
		return true
	}
	return false
}

// Resolution is the outcome of resolving one conflict. Strategy is recorded
// for audit and UI display.
type Resolution struct {
	Record   domain.Transaction `json:"record"`
	Strategy Strategy           `json:"strategy"`
}

// Resolve merges local and provider under the given strategy. The provider
// record is the freshly normalized incoming version; local is what the store
// currently holds, possibly carrying user edits.
func Resolve(local, prov domain.Transaction, strategy Strategy) (Resolution, error) {
	switch strategy {
	case ProviderWins:
		return Resolution{Record: resolveProviderWins(local, prov), Strategy: strategy}, nil
	case LocalWins:
		return Resolution{Record: resolveLocalWins(local, prov), Strategy: strategy}, nil
	case Merge:
		return Resolution{Record: resolveMerge(local, prov), Strategy: strategy}, nil
	default:
		return Resolution{}, fmt.Errorf("resolve: unknown strategy %q", strategy)
	}
}

func resolveProviderWins(local, prov domain.Transaction) domain.Transaction {
	out := local // local-only fields (notes, edit markers, ids) survive

	out.Amount = prov.Amount
	out.Currency = prov.Currency
	out.Date = prov.Date
	out.Pending = prov.Pending

	if prov.Description != "" {
		out.Description = prov.Description
	}
	if prov.RawDescription != "" {
		out.RawDescription = prov.RawDescription
	}
	if prov.Category != "" {
		out.Category = prov.Category
		out.Subcategory = prov.Subcategory
		out.CategoryConfidence = prov.CategoryConfidence
		out.CategorySource = prov.CategorySource
	}
	if prov.Merchant != "" {
		out.Merchant = prov.Merchant
	}
	if prov.Location != nil {
		out.Location = prov.Location
	}
	return out
}

func resolveLocalWins(local, prov domain.Transaction) domain.Transaction {
	out := local

	if out.Description == "" {
		out.Description = prov.Description
	}
	if out.RawDescription == "" {
		out.RawDescription = prov.RawDescription
	}
	if out.Merchant == "" {
		out.Merchant = prov.Merchant
	}
	if out.Category == "" {
		out.Category = prov.Category
		out.Subcategory = prov.Subcategory
		out.CategoryConfidence = prov.CategoryConfidence
		out.CategorySource = prov.CategorySource
	}
	if out.Location == nil {
		out.Location = prov.Location
	}
	return out
}

func resolveMerge(local, prov domain.Transaction) domain.Transaction {
	out := local

	// The provider is the source of truth for the underlying financial fact.
	out.Amount = prov.Amount
	out.Currency = prov.Currency
	out.Date = prov.Date
	out.AccountID = prov.AccountID
	out.Pending = prov.Pending

	// User-edited fields stay local; everything else follows the provider.
	if !local.HasLocalEdit("description") && prov.Description != "" {
		out.Description = prov.Description
	}
	if prov.RawDescription != "" {
		out.RawDescription = prov.RawDescription
	}
	if !local.HasLocalEdit("category") && prov.Category != "" {
		out.Category = prov.Category
		out.Subcategory = prov.Subcategory
		out.CategoryConfidence = prov.CategoryConfidence
		out.CategorySource = prov.CategorySource
	}

	// Factual enrichment the provider uniquely supplies.
	if prov.Merchant != "" {
		out.Merchant = prov.Merchant
	}
	if prov.Location != nil {
		out.Location = prov.Location
	}

	// Notes are user data and are always preserved verbatim.
	out.Notes = local.Notes
	return out
}
