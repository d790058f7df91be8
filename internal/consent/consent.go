// Package consent is the gate the engine must clear before touching any
// financial data. The real consent bookkeeping lives in an external service;
// the engine only asks a yes/no question through Gate.
package consent

import (
	"context"
	"sync"
)

// Domain identifies a consent domain.
type Domain string

// FinancialData is the only domain the sync engine cares about.
const FinancialData Domain = "financial_data"

// Scope is a granted permission within a domain.
type Scope string

const (
	ScopeReadAccounts     Scope = "read_accounts"
	ScopeReadTransactions Scope = "read_transactions"
)

// Gate answers whether a user has granted all requested scopes. Absence of
// consent is a hard stop for a sync, never a retryable condition.
type Gate interface {
	HasConsent(ctx context.Context, userID string, domain Domain, scopes []Scope) (bool, error)
}

// StaticGate is an in-memory Gate, used for tests and single-node
// deployments where consent is managed out of band.
type StaticGate struct {
	mu     sync.RWMutex
	grants map[string]map[Scope]bool // userID -> granted scopes
}

// NewStaticGate creates an empty gate; no user has consent until Grant.
func NewStaticGate() *StaticGate {
	return &StaticGate{grants: make(map[string]map[Scope]bool)}
}

// Grant records consent for the given scopes.
func (g *StaticGate) Grant(userID string, scopes ...Scope) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.grants[userID] == nil {
		g.grants[userID] = make(map[Scope]bool)
	}
	for _, s := range scopes {
		g.grants[userID][s] = true
	}
}

// Revoke removes all consent for a user.
func (g *StaticGate) Revoke(userID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.grants, userID)
}

// HasConsent implements Gate. All requested scopes must be granted.
func (g *StaticGate) HasConsent(ctx context.Context, userID string, domain Domain, scopes []Scope) (bool, error) {
	if domain != FinancialData {
		return false, nil
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	granted := g.grants[userID]
	for _, s := range scopes {
		if !granted[s] {
			return false, nil
		}
	}
	return true, nil
}

var _ Gate = (*StaticGate)(nil)
