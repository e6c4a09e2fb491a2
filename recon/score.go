package recon

import (
	"math"
	"strings"

	"github.com/agnivade/levenshtein"
)

// amountScore compares transaction and entry magnitudes:
// 1.0 within a paisa, 0.8 within 5% relative difference, else 0.
func amountScore(txn BankTransaction, entry LedgerEntry) float64 {
	bankAmount := math.Abs(txn.Amount)
	ledgerAmount := math.Abs(entry.Debit - entry.Credit)

	diff := math.Abs(bankAmount - ledgerAmount)
	if diff < 0.01 {
		return 1.0
	}
	larger := math.Max(bankAmount, ledgerAmount)
	if larger > 0 && diff/larger < 0.05 {
		return 0.8
	}
	return 0.0
}

// dateScore grades date proximity: same day 1.0, within 2 days 0.8,
// within 7 days 0.5, else 0.2.
func dateScore(txn BankTransaction, entry LedgerEntry) float64 {
	days := int(math.Abs(txn.Date.Sub(entry.Date).Hours()) / 24)
	switch {
	case days == 0:
		return 1.0
	case days <= 2:
		return 0.8
	case days <= 7:
		return 0.5
	default:
		return 0.2
	}
}

// descriptionScore is a normalized edit-distance similarity in [0, 1].
// Missing descriptions score a neutral 0.5.
func descriptionScore(txn BankTransaction, entry LedgerEntry) float64 {
	a := strings.ToLower(strings.TrimSpace(txn.Description))
	b := strings.ToLower(strings.TrimSpace(entry.Description))
	if a == "" || b == "" {
		return 0.5
	}
	return similarity(a, b)
}

// similarity converts Levenshtein distance to a ratio: identical
// strings score 1.0, entirely dissimilar strings approach 0.
func similarity(a, b string) float64 {
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(longest)
}
