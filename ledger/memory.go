package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/caflow/caflow/recon"
)

// MemStore is an in-memory ledger for tests and demos.
// Safe for concurrent use.
type MemStore struct {
	mu       sync.RWMutex
	vouchers []Voucher
	entries  []Entry
	bank     map[uuid.UUID][]recon.BankTransaction
}

// NewMemStore creates an empty in-memory ledger.
func NewMemStore() *MemStore {
	return &MemStore{bank: make(map[uuid.UUID][]recon.BankTransaction)}
}

// CreateVoucher validates balance, assigns ids, and stores the voucher
// with its entries.
func (m *MemStore) CreateVoucher(_ context.Context, v Voucher, entries []Entry) (Voucher, error) {
	total, err := checkBalanced(entries)
	if err != nil {
		return Voucher{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	v.Amount = total
	m.vouchers = append(m.vouchers, v)

	for _, e := range entries {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		e.VoucherID = v.ID
		e.OrgID = v.OrgID
		if e.Date.IsZero() {
			e.Date = v.Date
		}
		m.entries = append(m.entries, e)
	}
	return v, nil
}

// Entries returns the organization's entries in the range, date-ordered.
func (m *MemStore) Entries(_ context.Context, orgID uuid.UUID, from, to time.Time) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Entry
	for _, e := range m.entries {
		if e.OrgID == orgID && inRange(e.Date, from, to) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// BankTransactions returns imported statement lines in the range,
// preserving statement order.
func (m *MemStore) BankTransactions(_ context.Context, orgID uuid.UUID, from, to time.Time) ([]recon.BankTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []recon.BankTransaction
	for _, t := range m.bank[orgID] {
		if inRange(t.Date, from, to) {
			out = append(out, t)
		}
	}
	return out, nil
}

// ImportBankTransactions appends statement lines for the organization.
func (m *MemStore) ImportBankTransactions(_ context.Context, orgID uuid.UUID, txns []recon.BankTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bank[orgID] = append(m.bank[orgID], txns...)
	return nil
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && t.After(to) {
		return false
	}
	return true
}
