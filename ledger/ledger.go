// Package ledger is the bookkeeping storage boundary: vouchers with
// balanced debit/credit entries, period queries, and imported bank
// statement lines.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/caflow/caflow/recon"
)

// ErrUnbalanced rejects voucher writes whose debit and credit totals
// differ by more than a paisa.
var ErrUnbalanced = errors.New("voucher entries do not balance")

// Voucher groups a set of ledger entries posted together.
type Voucher struct {
	ID        uuid.UUID `json:"id"`
	OrgID     uuid.UUID `json:"org_id"`
	Date      time.Time `json:"date"`
	Type      string    `json:"type"` // Payment, Receipt, Journal
	RefNo     string    `json:"ref_no,omitempty"`
	Narration string    `json:"narration,omitempty"`
	Source    string    `json:"source,omitempty"`
	Amount    float64   `json:"amount"`
}

// Entry is one debit or credit line of a voucher.
type Entry struct {
	ID          uuid.UUID         `json:"id"`
	OrgID       uuid.UUID         `json:"org_id"`
	VoucherID   uuid.UUID         `json:"voucher_id"`
	Date        time.Time         `json:"date"`
	AccountCode string            `json:"account_code"`
	Party       string            `json:"party,omitempty"`
	Description string            `json:"description,omitempty"`
	Debit       float64           `json:"debit"`
	Credit      float64           `json:"credit"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// Amount is the effective magnitude of the entry.
func (e Entry) Amount() float64 {
	if e.Debit >= e.Credit {
		return e.Debit - e.Credit
	}
	return e.Credit - e.Debit
}

// Store is the persistence contract consumed by the workflow steps.
type Store interface {
	// CreateVoucher atomically writes a voucher and its entries.
	// Unbalanced entry sets are rejected with ErrUnbalanced.
	CreateVoucher(ctx context.Context, v Voucher, entries []Entry) (Voucher, error)

	// Entries returns ledger entries for the organization within the
	// date range, ordered by date.
	Entries(ctx context.Context, orgID uuid.UUID, from, to time.Time) ([]Entry, error)

	// BankTransactions returns imported bank statement lines for the
	// organization within the date range, in statement order.
	BankTransactions(ctx context.Context, orgID uuid.UUID, from, to time.Time) ([]recon.BankTransaction, error)

	// ImportBankTransactions stores statement lines for later
	// reconciliation runs.
	ImportBankTransactions(ctx context.Context, orgID uuid.UUID, txns []recon.BankTransaction) error
}

// checkBalanced validates the debit/credit totals of an entry set.
func checkBalanced(entries []Entry) (total float64, err error) {
	var debit, credit float64
	for _, e := range entries {
		debit += e.Debit
		credit += e.Credit
	}
	diff := debit - credit
	if diff < 0 {
		diff = -diff
	}
	if diff > 0.01 {
		return 0, fmt.Errorf("%w: debit %.2f credit %.2f", ErrUnbalanced, debit, credit)
	}
	return debit, nil
}
