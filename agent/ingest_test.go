package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func sampleStatement() []ExtractedTransaction {
	date := time.Date(2026, time.August, 3, 0, 0, 0, 0, time.UTC)
	return []ExtractedTransaction{
		{Date: date, Description: "client payment received", Amount: 118000, Type: "credit", Party: "Acme Corp"},
		{Date: date.AddDate(0, 0, 2), Description: "office rent august", Amount: 30000, Type: "debit"},
	}
}

func TestDocumentAgent_Execute(t *testing.T) {
	extractor := &StatementExtractor{Documents: map[string][]ExtractedTransaction{
		"bank-statement-aug.pdf": sampleStatement(),
		"invoice-042.pdf": {
			{Description: "software subscription", Amount: 2500, Type: "debit"},
		},
	}}
	a := NewDocumentAgent(extractor)

	t.Run("bank statement", func(t *testing.T) {
		out, err := a.Execute(context.Background(), Input{
			"org_id":      uuid.New(),
			"attachments": []string{"bank-statement-aug.pdf"},
		})
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if out["transaction_count"] != 2 {
			t.Errorf("transaction_count = %v, want 2", out["transaction_count"])
		}
		if out["has_bank_transactions"] != true {
			t.Error("expected has_bank_transactions for a statement attachment")
		}
		data := out["extracted_data"].(map[string]any)
		txns := data["transactions"].([]ExtractedTransaction)
		if len(txns) != 2 || txns[0].Party != "Acme Corp" {
			t.Errorf("transactions = %v", txns)
		}
	})

	t.Run("non-statement attachment", func(t *testing.T) {
		out, err := a.Execute(context.Background(), Input{
			"org_id":      uuid.New(),
			"attachments": []string{"invoice-042.pdf"},
		})
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if out["has_bank_transactions"] != false {
			t.Error("invoice must not flag bank transactions")
		}
	})

	t.Run("unknown attachment collected as failure", func(t *testing.T) {
		out, err := a.Execute(context.Background(), Input{
			"org_id":      uuid.New(),
			"attachments": []string{"bank-statement-aug.pdf", "missing.pdf"},
		})
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		failed := out["failed_documents"].([]map[string]any)
		if len(failed) != 1 || failed[0]["attachment"] != "missing.pdf" {
			t.Errorf("failed_documents = %v", failed)
		}
		// The good attachment still goes through.
		if out["transaction_count"] != 2 {
			t.Errorf("transaction_count = %v, want 2", out["transaction_count"])
		}
	})

	t.Run("requires attachments", func(t *testing.T) {
		_, err := a.Execute(context.Background(), Input{"org_id": uuid.New()})
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Field != "attachments" {
			t.Errorf("expected attachments validation error, got %v", err)
		}
	})
}

func TestHasBankStatement(t *testing.T) {
	tests := []struct {
		ref  string
		want bool
	}{
		{"bank-statement-aug.pdf", true},
		{"HDFC_Bank_Aug.xlsx", true},
		{"statement_q1.csv", true},
		{"invoice-042.pdf", false},
	}
	for _, tt := range tests {
		if got := hasBankStatement([]string{tt.ref}); got != tt.want {
			t.Errorf("hasBankStatement(%q) = %v, want %v", tt.ref, got, tt.want)
		}
	}
}
