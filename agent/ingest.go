package agent

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ExtractedTransaction is one transaction pulled out of an uploaded
// document by the extraction collaborator.
type ExtractedTransaction struct {
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	Type        string    `json:"type"` // debit or credit
	Party       string    `json:"party,omitempty"`

	// Account, when set, pins the posting account and skips the
	// keyword mapping. Reconciliation adjustments arrive with it.
	Account string `json:"account,omitempty"`
}

// Extractor pulls structured transactions out of an attachment. The
// correctness of extraction is outside this package; results are
// treated as opaque input to posting.
type Extractor interface {
	Extract(ctx context.Context, attachmentRef string) ([]ExtractedTransaction, error)
}

// DocumentAgent runs attachment references through the extractor and
// collects the results into a single ingestion artifact.
type DocumentAgent struct {
	extractor Extractor
}

func NewDocumentAgent(extractor Extractor) *DocumentAgent {
	return &DocumentAgent{extractor: extractor}
}

func (a *DocumentAgent) Name() string { return "document_ingestion" }

func (a *DocumentAgent) Execute(ctx context.Context, in Input) (Output, error) {
	if _, err := in.OrgID(); err != nil {
		return nil, err
	}
	attachments := in.Strings("attachments")
	if len(attachments) == 0 {
		return nil, &ValidationError{Field: "attachments"}
	}
	if a.extractor == nil {
		return nil, fmt.Errorf("no document extractor configured")
	}

	var transactions []ExtractedTransaction
	processed := make([]map[string]any, 0, len(attachments))
	failed := make([]map[string]any, 0)

	for _, ref := range attachments {
		txns, err := a.extractor.Extract(ctx, ref)
		if err != nil {
			failed = append(failed, map[string]any{
				"attachment": ref,
				"error":      err.Error(),
			})
			continue
		}
		transactions = append(transactions, txns...)
		processed = append(processed, map[string]any{
			"attachment":        ref,
			"transaction_count": len(txns),
		})
	}

	return Output{
		"processed_documents": processed,
		"failed_documents":    failed,
		"extracted_data": map[string]any{
			"transactions": transactions,
		},
		"transaction_count":     len(transactions),
		"has_bank_transactions": hasBankStatement(attachments) && len(transactions) > 0,
		"timestamp":             time.Now().Format(time.RFC3339),
	}, nil
}

// hasBankStatement reports whether any attachment reference names a
// bank statement. Attachment refs are caller-assigned document names.
func hasBankStatement(attachments []string) bool {
	for _, ref := range attachments {
		lower := strings.ToLower(ref)
		if strings.Contains(lower, "bank") || strings.Contains(lower, "statement") {
			return true
		}
	}
	return false
}

// StatementExtractor is a deterministic extractor for pre-parsed
// statements handed in through the request context. It serves tests
// and local runs where no OCR collaborator is wired.
type StatementExtractor struct {
	Documents map[string][]ExtractedTransaction
}

func (e *StatementExtractor) Extract(ctx context.Context, ref string) ([]ExtractedTransaction, error) {
	txns, ok := e.Documents[ref]
	if !ok {
		return nil, fmt.Errorf("unknown attachment %q", ref)
	}
	return txns, nil
}
