package recon

import (
	"math"
	"testing"
	"time"
)

func day(d int) time.Time {
	return time.Date(2026, time.August, d, 0, 0, 0, 0, time.UTC)
}

func TestMatchTransactions_ExactMatch(t *testing.T) {
	bank := []BankTransaction{
		{ID: "b1", Date: day(3), Amount: -85000, Description: "salary payment august", Type: "debit"},
	}
	ledger := []LedgerEntry{
		{ID: "l1", Date: day(3), Debit: 85000, Description: "salary payment august"},
	}

	result := MatchTransactions(bank, ledger)

	if len(result.Matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(result.Matches))
	}
	m := result.Matches[0]
	if m.BankID != "b1" || m.LedgerID != "l1" {
		t.Errorf("unexpected pairing: %s -> %s", m.BankID, m.LedgerID)
	}
	if m.Type != MatchExact {
		t.Errorf("expected exact match, got %s", m.Type)
	}
	if math.Abs(m.Confidence-1.0) > 1e-9 {
		t.Errorf("expected confidence 1.0, got %f", m.Confidence)
	}
	if result.Summary.MatchRate != 1.0 {
		t.Errorf("expected match rate 1.0, got %f", result.Summary.MatchRate)
	}
}

func TestMatchTransactions_LedgerEntryClaimedOnce(t *testing.T) {
	// Two identical bank lines compete for one ledger entry; only the
	// first scanned may claim it.
	bank := []BankTransaction{
		{ID: "b1", Date: day(5), Amount: -30000, Description: "office rent august"},
		{ID: "b2", Date: day(5), Amount: -30000, Description: "office rent august"},
	}
	ledger := []LedgerEntry{
		{ID: "l1", Date: day(5), Debit: 30000, Description: "office rent august"},
	}

	result := MatchTransactions(bank, ledger)

	if len(result.Matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(result.Matches))
	}
	if result.Matches[0].BankID != "b1" {
		t.Errorf("expected first bank transaction to claim the entry, got %s", result.Matches[0].BankID)
	}
	if len(result.UnmatchedBank) != 1 || result.UnmatchedBank[0].ID != "b2" {
		t.Errorf("expected b2 unmatched, got %+v", result.UnmatchedBank)
	}
}

func TestMatchTransactions_BelowThresholdRejected(t *testing.T) {
	// Amount differs beyond 5 percent and the date is far off: the
	// combined score cannot clear the acceptance threshold.
	bank := []BankTransaction{
		{ID: "b1", Date: day(1), Amount: -10000, Description: "vendor payment"},
	}
	ledger := []LedgerEntry{
		{ID: "l1", Date: day(28), Debit: 15000, Description: "completely different narration"},
	}

	result := MatchTransactions(bank, ledger)

	if len(result.Matches) != 0 {
		t.Fatalf("expected no matches, got %d", len(result.Matches))
	}
	if result.Summary.UnmatchedBankCount != 1 || result.Summary.UnmatchedLedgerCount != 1 {
		t.Errorf("unexpected summary: %+v", result.Summary)
	}
	if result.Summary.MatchRate != 0 {
		t.Errorf("expected match rate 0, got %f", result.Summary.MatchRate)
	}
}

func TestMatchTransactions_PartialMatch(t *testing.T) {
	// Amount inside the 5 percent band, date two days off: scores
	// 0.5*0.8 + 0.3*0.8 + description similarity. With identical
	// descriptions the total is 0.84 - above accept, below exact.
	bank := []BankTransaction{
		{ID: "b1", Date: day(10), Amount: -10200, Description: "utility bill"},
	}
	ledger := []LedgerEntry{
		{ID: "l1", Date: day(12), Debit: 10000, Description: "utility bill"},
	}

	result := MatchTransactions(bank, ledger)

	if len(result.Matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(result.Matches))
	}
	m := result.Matches[0]
	if m.Type != MatchPartial {
		t.Errorf("expected partial match, got %s", m.Type)
	}
	want := 0.5*0.8 + 0.3*0.8 + 0.2*1.0
	if math.Abs(m.Confidence-want) > 1e-9 {
		t.Errorf("expected confidence %f, got %f", want, m.Confidence)
	}
}

func TestMatchTransactions_EmptyInputs(t *testing.T) {
	result := MatchTransactions(nil, nil)
	if result.Summary.MatchRate != 0 {
		t.Errorf("expected match rate 0 for empty input, got %f", result.Summary.MatchRate)
	}
	if len(result.Matches) != 0 || len(result.UnmatchedBank) != 0 || len(result.UnmatchedLedger) != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
}

func TestMatchTransactions_OrderDependence(t *testing.T) {
	// Greedy scanning is part of the contract: an earlier bank line
	// claims the shared best ledger entry even when a later line
	// would have scored higher against it.
	entry := LedgerEntry{ID: "l1", Date: day(10), Debit: 5000, Description: "consulting fee"}
	closer := BankTransaction{ID: "near", Date: day(10), Amount: -5000, Description: "consulting fee"}
	further := BankTransaction{ID: "far", Date: day(12), Amount: -5000, Description: "consulting fee"}

	result := MatchTransactions([]BankTransaction{further, closer}, []LedgerEntry{entry})

	if len(result.Matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(result.Matches))
	}
	if result.Matches[0].BankID != "far" {
		t.Errorf("expected scan-order winner far, got %s", result.Matches[0].BankID)
	}
}

func TestAmountScore(t *testing.T) {
	tests := []struct {
		name   string
		bank   float64
		debit  float64
		credit float64
		want   float64
	}{
		{"exact", -1000, 1000, 0, 1.0},
		{"within tolerance", 1000.005, 1000, 0, 1.0},
		{"within 5 percent", -1040, 1000, 0, 0.8},
		{"beyond 5 percent", -1100, 1000, 0, 0},
		{"credit side", 2500, 0, 2500, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := amountScore(
				BankTransaction{Amount: tt.bank},
				LedgerEntry{Debit: tt.debit, Credit: tt.credit},
			)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("amountScore = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestDateScore(t *testing.T) {
	tests := []struct {
		name string
		bank time.Time
		led  time.Time
		want float64
	}{
		{"same day", day(10), day(10), 1.0},
		{"two days", day(10), day(12), 0.8},
		{"week apart", day(10), day(17), 0.5},
		{"month apart", day(1), day(28), 0.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dateScore(BankTransaction{Date: tt.bank}, LedgerEntry{Date: tt.led})
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("dateScore = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestDescriptionScore(t *testing.T) {
	t.Run("identical", func(t *testing.T) {
		got := descriptionScore(
			BankTransaction{Description: "Salary Payment"},
			LedgerEntry{Description: "salary payment"},
		)
		if got != 1.0 {
			t.Errorf("expected 1.0 for case-insensitive identical, got %f", got)
		}
	})
	t.Run("either empty", func(t *testing.T) {
		got := descriptionScore(BankTransaction{}, LedgerEntry{Description: "rent"})
		if got != 0.5 {
			t.Errorf("expected 0.5 neutral score, got %f", got)
		}
	})
	t.Run("dissimilar scores low", func(t *testing.T) {
		got := descriptionScore(
			BankTransaction{Description: "abcdefghij"},
			LedgerEntry{Description: "zzzzzzzzzz"},
		)
		if got > 0.2 {
			t.Errorf("expected low similarity, got %f", got)
		}
	})
}
