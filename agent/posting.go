package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/caflow/caflow/ledger"
)

// PostingAgent maps extracted transactions to the chart of accounts
// and books them as vouchers. Each transaction becomes its own
// voucher; failures are collected per transaction rather than
// aborting the batch.
type PostingAgent struct {
	store ledger.Store
}

func NewPostingAgent(store ledger.Store) *PostingAgent {
	return &PostingAgent{store: store}
}

func (a *PostingAgent) Name() string { return "ledger_posting" }

func (a *PostingAgent) Execute(ctx context.Context, in Input) (Output, error) {
	orgID, err := in.OrgID()
	if err != nil {
		return nil, err
	}

	transactions := extractedTransactions(in["transactions"])
	docID := in.String("doc_id")

	posted := make([]map[string]any, 0, len(transactions))
	unmapped := make([]map[string]any, 0)

	for _, txn := range transactions {
		entry, err := a.post(ctx, orgID, txn, docID)
		if err != nil {
			unmapped = append(unmapped, map[string]any{
				"transaction": txn,
				"error":       err.Error(),
			})
			continue
		}
		posted = append(posted, entry)
	}

	return Output{
		"org_id":                orgID.String(),
		"processed_count":       len(posted),
		"unmapped_count":        len(unmapped),
		"posted_entries":        posted,
		"unmapped_transactions": unmapped,
		"timestamp":             time.Now().Format(time.RFC3339),
	}, nil
}

func (a *PostingAgent) post(ctx context.Context, orgID uuid.UUID, txn ExtractedTransaction, docID string) (map[string]any, error) {
	description := strings.ToLower(txn.Description)
	txnType := strings.ToLower(txn.Type)
	if txnType == "" {
		txnType = "debit"
	}
	date := txn.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}

	accountCode, debit, credit := ledger.MapToAccount(description, txn.Amount, txnType)
	if txn.Account != "" {
		accountCode = txn.Account
	}

	tags := map[string]string{
		"source":      "agent",
		"auto_mapped": "true",
	}
	if docID != "" {
		tags["document_reference"] = docID
	}

	// Double entry against the bank control account.
	entries := []ledger.Entry{
		{
			AccountCode: accountCode,
			Debit:       debit,
			Credit:      credit,
			Description: description,
			Party:       txn.Party,
			Tags:        tags,
		},
		{
			AccountCode: "BANK_MAIN",
			Debit:       credit,
			Credit:      debit,
			Description: description,
			Tags:        tags,
		},
	}

	voucher, err := a.store.CreateVoucher(ctx, ledger.Voucher{
		OrgID:     orgID,
		Date:      date,
		Type:      ledger.VoucherType(txnType, accountCode),
		Narration: fmt.Sprintf("Auto-posted: %s", description),
		Source:    "ledger_posting",
	}, entries)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"voucher_id":       voucher.ID.String(),
		"account_code":     accountCode,
		"debit":            debit,
		"credit":           credit,
		"transaction_date": date.Format("2006-01-02"),
	}, nil
}

// extractedTransactions tolerates the shapes the transaction list can
// arrive in: typed slices from the ingestion step, adjustment maps
// from the reconciliation cycle, or generic maps restored from a
// persisted state snapshot.
func extractedTransactions(raw any) []ExtractedTransaction {
	switch v := raw.(type) {
	case []ExtractedTransaction:
		return v
	case []map[string]any:
		out := make([]ExtractedTransaction, 0, len(v))
		for _, m := range v {
			out = append(out, transactionFromMap(m))
		}
		return out
	case []any:
		out := make([]ExtractedTransaction, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				out = append(out, transactionFromMap(m))
			}
		}
		return out
	default:
		return nil
	}
}

func transactionFromMap(m map[string]any) ExtractedTransaction {
	txn := ExtractedTransaction{
		Description: stringField(m, "description"),
		Type:        stringField(m, "type"),
		Party:       stringField(m, "party"),
		Account:     stringField(m, "account_code"),
	}
	if amt, ok := m["amount"].(float64); ok {
		txn.Amount = amt
	}
	switch d := m["date"].(type) {
	case time.Time:
		txn.Date = d
	case string:
		for _, layout := range []string{"2006-01-02", time.RFC3339} {
			if parsed, err := time.Parse(layout, d); err == nil {
				txn.Date = parsed
				break
			}
		}
	}
	return txn
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
