package payments

import (
	"context"
	"sync"
)

// MemoryPaymentStore is an in-memory PaymentStore for tests.
type MemoryPaymentStore struct {
	mu       sync.RWMutex
	payments []Payment
	err      error
}

// NewMemoryPaymentStore creates an empty in-memory payment store.
func NewMemoryPaymentStore() *MemoryPaymentStore {
	return &MemoryPaymentStore{}
}

// Add appends payments. Test seeding only.
func (s *MemoryPaymentStore) Add(payments ...Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments = append(s.payments, payments...)
}

// Fail makes every subsequent read return err.
func (s *MemoryPaymentStore) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// ListCompleted returns completed payments in the given currency.
func (s *MemoryPaymentStore) ListCompleted(_ context.Context, currency string) ([]Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []Payment
	for _, p := range s.payments {
		if p.Currency == currency && p.Status == StatusCompleted {
			out = append(out, p)
		}
	}
	return out, nil
}

// MemoryRefundStore is an in-memory RefundStore for tests.
type MemoryRefundStore struct {
	mu      sync.RWMutex
	refunds []Refund
	err     error
}

// NewMemoryRefundStore creates an empty in-memory refund store.
func NewMemoryRefundStore() *MemoryRefundStore {
	return &MemoryRefundStore{}
}

// Add appends refunds. Test seeding only.
func (s *MemoryRefundStore) Add(refunds ...Refund) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refunds = append(s.refunds, refunds...)
}

// Fail makes every subsequent read return err.
func (s *MemoryRefundStore) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// ListCompleted returns completed refunds in the given currency.
func (s *MemoryRefundStore) ListCompleted(_ context.Context, currency string) ([]Refund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []Refund
	for _, r := range s.refunds {
		if r.Currency == currency && r.Status == StatusCompleted {
			out = append(out, r)
		}
	}
	return out, nil
}
