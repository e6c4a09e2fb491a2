// Package recon matches bank transactions against ledger entries.
//
// The matcher is a single-pass greedy scorer: bank transactions are
// processed in input order, each claiming the best-scoring unmatched
// ledger entry above a fixed threshold. A claimed entry leaves the
// candidate pool, so results depend on bank-transaction input order.
// That order dependence is part of the contract — this is a heuristic,
// not a maximum-weight assignment.
package recon

import "time"

// MatchType classifies the strength of an accepted match.
type MatchType string

const (
	MatchExact   MatchType = "exact"
	MatchPartial MatchType = "partial"
)

// BankTransaction is one line of a bank statement. Amount is signed:
// negative for debits in statement convention; scoring uses magnitude.
type BankTransaction struct {
	ID          string    `json:"id"`
	Date        time.Time `json:"date"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description"`
	Type        string    `json:"type"`
}

// LedgerEntry is one posted ledger line. Exactly one of Debit/Credit is
// normally non-zero; the effective amount is |debit - credit|.
type LedgerEntry struct {
	ID          string    `json:"id"`
	Date        time.Time `json:"date"`
	Debit       float64   `json:"debit"`
	Credit      float64   `json:"credit"`
	Description string    `json:"description"`
}

// Match pairs one bank transaction with one ledger entry.
type Match struct {
	BankID     string    `json:"bank_transaction_id"`
	LedgerID   string    `json:"ledger_entry_id"`
	Type       MatchType `json:"match_type"`
	Confidence float64   `json:"confidence"`
}

// Summary aggregates one matching run.
type Summary struct {
	TotalBankTransactions int `json:"total_bank_transactions"`
	TotalLedgerEntries    int `json:"total_ledger_entries"`
	MatchedCount          int `json:"matched_count"`
	UnmatchedBankCount    int `json:"unmatched_bank_count"`
	UnmatchedLedgerCount  int `json:"unmatched_ledger_count"`

	// MatchRate is matched_count / total_bank_transactions,
	// defined as 0 when there are no bank transactions.
	MatchRate float64 `json:"match_rate"`
}

// Result is the full output of one matching run.
type Result struct {
	Matches         []Match           `json:"matches"`
	UnmatchedBank   []BankTransaction `json:"unmatched_bank"`
	UnmatchedLedger []LedgerEntry     `json:"unmatched_ledger"`
	Summary         Summary           `json:"summary"`
}

// Scoring weights and acceptance thresholds.
const (
	amountWeight      = 0.5
	dateWeight        = 0.3
	descriptionWeight = 0.2

	acceptThreshold = 0.7
	exactThreshold  = 0.9
)

// MatchTransactions pairs bank transactions with ledger entries.
//
// For each bank transaction, in input order, every currently unmatched
// ledger entry is scored as
//
//	0.5*amount + 0.3*date + 0.2*description
//
// and the best-scoring entry is claimed when its score exceeds 0.7.
// Scores above 0.9 are "exact" matches, the rest "partial". No ledger
// entry is matched twice within one run.
//
// The loop must stay sequential: parallelizing it would change which
// entry a transaction claims when several transactions compete for the
// same entry.
func MatchTransactions(bank []BankTransaction, ledger []LedgerEntry) Result {
	matched := make([]bool, len(ledger))
	var matches []Match
	var unmatchedBank []BankTransaction

	for _, txn := range bank {
		bestIdx := -1
		bestScore := 0.0

		for i, entry := range ledger {
			if matched[i] {
				continue
			}
			score := amountWeight*amountScore(txn, entry) +
				dateWeight*dateScore(txn, entry) +
				descriptionWeight*descriptionScore(txn, entry)
			if score > bestScore && score > acceptThreshold {
				bestScore = score
				bestIdx = i
			}
		}

		if bestIdx < 0 {
			unmatchedBank = append(unmatchedBank, txn)
			continue
		}

		matched[bestIdx] = true
		matchType := MatchPartial
		if bestScore > exactThreshold {
			matchType = MatchExact
		}
		matches = append(matches, Match{
			BankID:     txn.ID,
			LedgerID:   ledger[bestIdx].ID,
			Type:       matchType,
			Confidence: bestScore,
		})
	}

	var unmatchedLedger []LedgerEntry
	for i, entry := range ledger {
		if !matched[i] {
			unmatchedLedger = append(unmatchedLedger, entry)
		}
	}

	rate := 0.0
	if len(bank) > 0 {
		rate = float64(len(matches)) / float64(len(bank))
	}

	return Result{
		Matches:         matches,
		UnmatchedBank:   unmatchedBank,
		UnmatchedLedger: unmatchedLedger,
		Summary: Summary{
			TotalBankTransactions: len(bank),
			TotalLedgerEntries:    len(ledger),
			MatchedCount:          len(matches),
			UnmatchedBankCount:    len(unmatchedBank),
			UnmatchedLedgerCount:  len(unmatchedLedger),
			MatchRate:             rate,
		},
	}
}
