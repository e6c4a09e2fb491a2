package ledger

import "strings"

// mappingRule maps description keywords to a chart-of-accounts code.
type mappingRule struct {
	keywords []string
	account  string
}

// Rule order matters: the first keyword hit wins.
var coaRules = []mappingRule{
	{[]string{"salary", "wage", "payroll"}, "SALARIES"},
	{[]string{"rent", "lease"}, "RENT"},
	{[]string{"electricity", "power", "utility"}, "UTILITIES"},
	{[]string{"internet", "broadband", "wifi"}, "INTERNET"},
	{[]string{"tax", "gst", "tds"}, "TAX_PAYABLE"},
	{[]string{"bank", "hdfc", "icici", "sbi"}, "BANK"},
	{[]string{"cash", "petty cash"}, "CASH"},
	{[]string{"sale", "revenue", "income"}, "SALES"},
	{[]string{"purchase", "buy", "procure"}, "PURCHASES"},
	{[]string{"travel", "conveyance", "fuel"}, "TRAVEL"},
	{[]string{"meal", "food", "restaurant"}, "MEALS"},
	{[]string{"software", "subscription", "saas"}, "SOFTWARE"},
}

// MapToAccount maps a transaction description to a chart-of-accounts
// code and splits the amount into debit/credit by transaction type.
// Unrecognized descriptions fall back to the MISC accounts.
func MapToAccount(description string, amount float64, txnType string) (accountCode string, debit, credit float64) {
	lower := strings.ToLower(description)
	for _, rule := range coaRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				accountCode = rule.account
				break
			}
		}
		if accountCode != "" {
			break
		}
	}
	if accountCode == "" {
		if txnType == "credit" {
			accountCode = "MISC_INCOME"
		} else {
			accountCode = "MISC_EXPENSE"
		}
	}

	magnitude := amount
	if magnitude < 0 {
		magnitude = -magnitude
	}
	if txnType == "credit" {
		return accountCode, 0, magnitude
	}
	return accountCode, magnitude, 0
}

// VoucherType infers the voucher type for a mapped transaction.
func VoucherType(txnType, accountCode string) string {
	cashLike := strings.HasPrefix(accountCode, "BANK") || strings.HasPrefix(accountCode, "CASH")
	if !cashLike {
		return "Journal"
	}
	if txnType == "credit" {
		return "Receipt"
	}
	return "Payment"
}
