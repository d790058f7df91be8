package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/ledger-sync/internal/domain"
)

// MemoryStore is an in-memory Store, safe for concurrent use. Data is lost on
// restart; it backs tests and single-run tooling. For persistence use the
// sqlite or bigquery adapters.
type MemoryStore struct {
	mu       sync.RWMutex
	byTxID   map[string]*domain.Transaction // provider tx id -> record
	accounts map[string]*domain.Account     // provider account id -> record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byTxID:   make(map[string]*domain.Transaction),
		accounts: make(map[string]*domain.Account),
	}
}

// FindByProviderID implements Store.
func (s *MemoryStore) FindByProviderID(ctx context.Context, providerTxID string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.byTxID[providerTxID]
	if !ok {
		return nil, nil
	}
	cp := *tx
	return &cp, nil
}

// FindWindow implements Store.
func (s *MemoryStore) FindWindow(ctx context.Context, accountID string, from, to time.Time) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transaction
	for _, tx := range s.byTxID {
		if tx.AccountID != accountID {
			continue
		}
		if tx.Date.Before(from) || tx.Date.After(to) {
			continue
		}
		cp := *tx
		result = append(result, &cp)
	}
	return result, nil
}

// Upsert implements Store.
func (s *MemoryStore) Upsert(ctx context.Context, tx *domain.Transaction) error {
	if tx.ProviderTxID == "" {
		return fmt.Errorf("upsert: provider transaction id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *tx
	if existing, ok := s.byTxID[tx.ProviderTxID]; ok {
		cp.ID = existing.ID
		cp.CreatedAt = existing.CreatedAt
	}
	s.byTxID[tx.ProviderTxID] = &cp
	return nil
}

// UpsertAccount implements Store.
func (s *MemoryStore) UpsertAccount(ctx context.Context, acct *domain.Account) error {
	if acct.ProviderAccountID == "" {
		return fmt.Errorf("upsert account: provider account id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *acct
	s.accounts[acct.ProviderAccountID] = &cp
	return nil
}

// Len reports the number of stored transactions. Test helper.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byTxID)
}

var _ Store = (*MemoryStore)(nil)
