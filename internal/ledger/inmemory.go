package ledger

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is a concurrency-safe in-memory ledger store for tests. Its
// optional failure hook lets sweep tests simulate a broken data source.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Transaction

	// FailFor makes reads for the given wallet ID return the supplied error.
	failFor map[string]error
}

// NewMemoryStore creates an empty in-memory ledger store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{failFor: make(map[string]error)}
}

// Add appends ledger entries. Test seeding only.
func (s *MemoryStore) Add(entries ...Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entries...)
}

// FailWallet makes every ListByWallet/CountByWallet call for the wallet
// return err.
func (s *MemoryStore) FailWallet(walletID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failFor[walletID] = err
}

// ListByWallet returns the wallet's entries in canonical (created_at, id)
// order.
func (s *MemoryStore) ListByWallet(_ context.Context, walletID string) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failFor[walletID]; err != nil {
		return nil, err
	}
	var out []Transaction
	for _, entry := range s.entries {
		if entry.WalletID == walletID {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CountByWallet returns the number of entries for the wallet.
func (s *MemoryStore) CountByWallet(_ context.Context, walletID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failFor[walletID]; err != nil {
		return 0, err
	}
	n := 0
	for _, entry := range s.entries {
		if entry.WalletID == walletID {
			n++
		}
	}
	return n, nil
}

// FindByReference returns the first entry matching the reference, in
// canonical order.
func (s *MemoryStore) FindByReference(_ context.Context, referenceID, referenceType string) (Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matches []Transaction
	for _, entry := range s.entries {
		if entry.ReferenceID == referenceID && entry.ReferenceType == referenceType {
			matches = append(matches, entry)
		}
	}
	if len(matches) == 0 {
		return Transaction{}, ErrEntryNotFound
	}
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.Before(matches[j].CreatedAt)
		}
		return matches[i].ID < matches[j].ID
	})
	return matches[0], nil
}
