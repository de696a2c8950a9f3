package wallet

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository is an in-memory Repository implementation for tests. It
// adds a Put seeding helper on top of the Repository contract.
type MemoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Wallet // keyed by wallet ID
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{storage: make(map[string]Wallet)}
}

// Put inserts or replaces a wallet. Test seeding only.
func (r *MemoryRepository) Put(w Wallet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w.Metadata == nil {
		w.Metadata = map[string]string{}
	}
	r.storage[w.ID] = w
}

// Get fetches the wallet for a (partner, currency) pair.
func (r *MemoryRepository) Get(_ context.Context, partnerID, currency string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.storage {
		if w.PartnerID == partnerID && w.Currency == currency {
			return cloneWallet(w), nil
		}
	}
	return Wallet{}, ErrNotFound
}

// List returns all wallets ordered by (partner, currency).
func (r *MemoryRepository) List(_ context.Context) ([]Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wallets := make([]Wallet, 0, len(r.storage))
	for _, w := range r.storage {
		wallets = append(wallets, cloneWallet(w))
	}
	sort.Slice(wallets, func(i, j int) bool {
		if wallets[i].PartnerID != wallets[j].PartnerID {
			return wallets[i].PartnerID < wallets[j].PartnerID
		}
		return wallets[i].Currency < wallets[j].Currency
	})
	return wallets, nil
}

// SaveMetadata replaces the metadata document for the wallet.
func (r *MemoryRepository) SaveMetadata(_ context.Context, walletID string, metadata map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.storage[walletID]
	if !ok {
		return ErrNotFound
	}
	w.Metadata = make(map[string]string, len(metadata))
	for k, v := range metadata {
		w.Metadata[k] = v
	}
	r.storage[walletID] = w
	return nil
}

func cloneWallet(w Wallet) Wallet {
	meta := make(map[string]string, len(w.Metadata))
	for k, v := range w.Metadata {
		meta[k] = v
	}
	w.Metadata = meta
	return w
}
