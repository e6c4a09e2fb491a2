package agent

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/caflow/caflow/ledger"
	"github.com/caflow/caflow/recon"
)

// ReconAgent matches imported bank statement lines against posted
// ledger entries for a period and proposes adjustment entries for
// recognizable unmatched statement lines. A non-empty adjustments
// list routes the workflow back to posting.
type ReconAgent struct {
	store ledger.Store
}

func NewReconAgent(store ledger.Store) *ReconAgent {
	return &ReconAgent{store: store}
}

func (a *ReconAgent) Name() string { return "reconciliation" }

func (a *ReconAgent) Execute(ctx context.Context, in Input) (Output, error) {
	orgID, err := in.OrgID()
	if err != nil {
		return nil, err
	}
	period := in.String("period")
	if period == "" {
		period = DefaultPeriod()
	}
	start, end := ParsePeriod(period)

	bank, err := a.store.BankTransactions(ctx, orgID, start, end)
	if err != nil {
		return nil, err
	}
	entries, err := a.store.Entries(ctx, orgID, start, end)
	if err != nil {
		return nil, err
	}

	result := recon.MatchTransactions(bank, toReconEntries(entries))
	adjustments := proposeAdjustments(result.UnmatchedBank)

	return Output{
		"reconciliation_id":     uuid.New().String(),
		"org_id":                orgID.String(),
		"period":                period,
		"summary":               result.Summary,
		"matches":               result.Matches,
		"matched_count":         result.Summary.MatchedCount,
		"unmatched_bank_count":  result.Summary.UnmatchedBankCount,
		"unmatched_ledger_count": result.Summary.UnmatchedLedgerCount,
		"match_rate":            result.Summary.MatchRate,
		"adjustments":           adjustments,
		"timestamp":             time.Now().Format(time.RFC3339),
	}, nil
}

func toReconEntries(entries []ledger.Entry) []recon.LedgerEntry {
	out := make([]recon.LedgerEntry, len(entries))
	for i, e := range entries {
		out[i] = recon.LedgerEntry{
			ID:          e.ID.String(),
			Date:        e.Date,
			Debit:       e.Debit,
			Credit:      e.Credit,
			Description: e.Description,
		}
	}
	return out
}

// proposeAdjustments turns recognizable unmatched statement lines into
// posting suggestions. Only lines the rules can classify produce an
// adjustment; the rest stay in the unmatched report for manual review.
func proposeAdjustments(unmatched []recon.BankTransaction) []map[string]any {
	adjustments := make([]map[string]any, 0)
	for _, txn := range unmatched {
		desc := strings.ToLower(txn.Description)
		amount := txn.Amount
		if amount < 0 {
			amount = -amount
		}
		switch {
		case strings.Contains(desc, "charge") || strings.Contains(desc, "fee"):
			adjustments = append(adjustments, map[string]any{
				"type":             "bank_charge",
				"description":      txn.Description,
				"amount":           amount,
				"date":             txn.Date,
				"account_code":     "BANK_CHARGES",
				"suggested_action": "Create expense voucher",
				"confidence":       0.7,
			})
		case strings.Contains(desc, "interest"):
			adjustments = append(adjustments, map[string]any{
				"type":             "interest_income",
				"description":      txn.Description,
				"amount":           amount,
				"date":             txn.Date,
				"account_code":     "INTEREST_INCOME",
				"suggested_action": "Create income voucher",
				"confidence":       0.8,
			})
		}
	}
	return adjustments
}
