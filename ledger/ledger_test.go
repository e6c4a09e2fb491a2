package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/caflow/caflow/recon"
)

func TestMapToAccount(t *testing.T) {
	tests := []struct {
		desc        string
		amount      float64
		txnType     string
		wantAccount string
		wantDebit   float64
		wantCredit  float64
	}{
		{"salary payment", 85000, "debit", "SALARIES", 85000, 0},
		{"office rent august", 30000, "debit", "RENT", 30000, 0},
		{"client sale invoice", 118000, "credit", "SALES", 0, 118000},
		{"gst remittance", 13500, "debit", "TAX_PAYABLE", 13500, 0},
		{"software subscription", 2500, "debit", "SOFTWARE", 2500, 0},
		{"miscellaneous transfer", -450, "debit", "MISC_EXPENSE", 450, 0},
		{"unrecognized receipt", 999, "credit", "MISC_INCOME", 0, 999},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			account, debit, credit := MapToAccount(tt.desc, tt.amount, tt.txnType)
			if account != tt.wantAccount {
				t.Errorf("account = %s, want %s", account, tt.wantAccount)
			}
			if debit != tt.wantDebit || credit != tt.wantCredit {
				t.Errorf("split = %f/%f, want %f/%f", debit, credit, tt.wantDebit, tt.wantCredit)
			}
		})
	}
}

func TestVoucherType(t *testing.T) {
	tests := []struct {
		txnType string
		account string
		want    string
	}{
		{"debit", "RENT", "Journal"},
		{"credit", "SALES", "Journal"},
		{"credit", "BANK_MAIN", "Receipt"},
		{"debit", "BANK_MAIN", "Payment"},
		{"debit", "CASH", "Payment"},
	}
	for _, tt := range tests {
		if got := VoucherType(tt.txnType, tt.account); got != tt.want {
			t.Errorf("VoucherType(%s, %s) = %s, want %s", tt.txnType, tt.account, got, tt.want)
		}
	}
}

func TestMemStore_CreateVoucher(t *testing.T) {
	store := NewMemStore()
	orgID := uuid.New()
	date := time.Date(2026, time.August, 5, 0, 0, 0, 0, time.UTC)

	t.Run("balanced voucher accepted", func(t *testing.T) {
		v, err := store.CreateVoucher(context.Background(), Voucher{
			OrgID: orgID, Date: date, Type: "Journal",
		}, []Entry{
			{AccountCode: "RENT", Debit: 30000},
			{AccountCode: "BANK_MAIN", Credit: 30000},
		})
		if err != nil {
			t.Fatalf("CreateVoucher: %v", err)
		}
		if v.ID == uuid.Nil {
			t.Error("voucher id not assigned")
		}
		if v.Amount != 30000 {
			t.Errorf("voucher amount = %f, want 30000", v.Amount)
		}
	})

	t.Run("unbalanced voucher rejected", func(t *testing.T) {
		_, err := store.CreateVoucher(context.Background(), Voucher{
			OrgID: orgID, Date: date, Type: "Journal",
		}, []Entry{
			{AccountCode: "RENT", Debit: 30000},
			{AccountCode: "BANK_MAIN", Credit: 29000},
		})
		if !errors.Is(err, ErrUnbalanced) {
			t.Errorf("expected ErrUnbalanced, got %v", err)
		}
	})

	t.Run("paisa rounding tolerated", func(t *testing.T) {
		_, err := store.CreateVoucher(context.Background(), Voucher{
			OrgID: orgID, Date: date, Type: "Journal",
		}, []Entry{
			{AccountCode: "SALES", Credit: 100.005},
			{AccountCode: "BANK_MAIN", Debit: 100.0},
		})
		if err != nil {
			t.Errorf("sub-paisa difference rejected: %v", err)
		}
	})

	t.Run("entries inherit voucher org and date", func(t *testing.T) {
		entries, err := store.Entries(context.Background(), orgID, time.Time{}, time.Time{})
		if err != nil {
			t.Fatalf("Entries: %v", err)
		}
		for _, e := range entries {
			if e.OrgID != orgID {
				t.Errorf("entry org = %s, want %s", e.OrgID, orgID)
			}
			if e.Date.IsZero() {
				t.Error("entry date not defaulted from voucher")
			}
			if e.VoucherID == uuid.Nil {
				t.Error("entry not linked to voucher")
			}
		}
	})
}

func TestMemStore_EntriesRange(t *testing.T) {
	store := NewMemStore()
	orgID := uuid.New()
	other := uuid.New()

	post := func(org uuid.UUID, date time.Time) {
		_, err := store.CreateVoucher(context.Background(), Voucher{
			OrgID: org, Date: date, Type: "Journal",
		}, []Entry{
			{AccountCode: "RENT", Debit: 100},
			{AccountCode: "BANK_MAIN", Credit: 100},
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	post(orgID, time.Date(2026, time.July, 20, 0, 0, 0, 0, time.UTC))
	post(orgID, time.Date(2026, time.August, 10, 0, 0, 0, 0, time.UTC))
	post(other, time.Date(2026, time.August, 10, 0, 0, 0, 0, time.UTC))

	from := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, time.August, 31, 0, 0, 0, 0, time.UTC)
	entries, err := store.Entries(context.Background(), orgID, from, to)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("entries in august for org = %d, want 2", len(entries))
	}
	for _, e := range entries {
		if e.OrgID != orgID {
			t.Error("entries leaked across organizations")
		}
	}
}

func TestMemStore_BankTransactions(t *testing.T) {
	store := NewMemStore()
	orgID := uuid.New()

	txns := []recon.BankTransaction{
		{ID: "b1", Date: time.Date(2026, time.August, 3, 0, 0, 0, 0, time.UTC), Amount: -450, Description: "bank charges"},
		{ID: "b2", Date: time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC), Amount: 120, Description: "interest"},
	}
	if err := store.ImportBankTransactions(context.Background(), orgID, txns); err != nil {
		t.Fatalf("ImportBankTransactions: %v", err)
	}

	from := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, time.August, 31, 0, 0, 0, 0, time.UTC)
	got, err := store.BankTransactions(context.Background(), orgID, from, to)
	if err != nil {
		t.Fatalf("BankTransactions: %v", err)
	}
	if len(got) != 1 || got[0].ID != "b1" {
		t.Errorf("august transactions = %v, want only b1", got)
	}

	t.Run("unknown org is empty", func(t *testing.T) {
		got, err := store.BankTransactions(context.Background(), uuid.New(), from, to)
		if err != nil {
			t.Fatalf("BankTransactions: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected no transactions, got %v", got)
		}
	})
}
