package agent

import (
	"context"
	"math"
	"time"

	"github.com/caflow/caflow/ledger"
)

// Individual slab rates for the new regime. Upper bound of the last
// slab is open-ended.
type taxSlab struct {
	lower float64
	upper float64
	rate  float64
}

var taxSlabs = []taxSlab{
	{0, 300000, 0},
	{300001, 600000, 5},
	{600001, 900000, 10},
	{900001, 1200000, 15},
	{1200001, 1500000, 20},
	{1500001, math.Inf(1), 30},
}

const (
	standardDeduction = 50000
	cessRate          = 0.04
)

// IncomeTaxAgent computes the income tax liability for a financial
// year from the posted ledger and prepares the return payload and
// advance tax schedule. The tax_computation keys taxable_income and
// total_tax are read by downstream templating and stay stable.
type IncomeTaxAgent struct {
	store ledger.Store
}

func NewIncomeTaxAgent(store ledger.Store) *IncomeTaxAgent {
	return &IncomeTaxAgent{store: store}
}

func (a *IncomeTaxAgent) Name() string { return "tax_processing" }

func (a *IncomeTaxAgent) Execute(ctx context.Context, in Input) (Output, error) {
	orgID, err := in.OrgID()
	if err != nil {
		return nil, err
	}
	fy := in.String("fy")
	if fy == "" {
		fy = in.String("financial_year")
	}
	if fy == "" {
		fy = defaultFinancialYear()
	}
	pan := in.String("pan")
	if pan == "" {
		return nil, &ValidationError{Field: "pan"}
	}

	start, end := financialYearRange(fy)
	entries, err := a.store.Entries(ctx, orgID, start, end)
	if err != nil {
		return nil, err
	}

	pnl := profitAndLoss(entries)
	computation := computeTax(pnl["net_profit"], fy)

	return Output{
		"org_id":           orgID.String(),
		"financial_year":   fy,
		"pan":              pan,
		"itr_payload": map[string]any{
			"pan":             pan,
			"ay":              fy,
			"income_details":  pnl,
			"tax_computation": computation,
		},
		"tax_computation":  computation,
		"tax_schedule":     advanceTaxSchedule(computation["total_tax"].(float64), start),
		"compliance_notes": complianceNotes(computation),
		"timestamp":        time.Now().Format(time.RFC3339),
	}, nil
}

// profitAndLoss aggregates income and expense entries by the sign
// convention of the chart of accounts: income accounts accumulate
// credits, expense accounts debits.
func profitAndLoss(entries []ledger.Entry) map[string]float64 {
	revenue := 0.0
	expenses := 0.0
	for _, e := range entries {
		switch {
		case isIncomeAccount(e.AccountCode):
			revenue += e.Credit - e.Debit
		case isExpenseAccount(e.AccountCode):
			expenses += e.Debit - e.Credit
		}
	}
	return map[string]float64{
		"revenue":    revenue,
		"expenses":   expenses,
		"net_profit": revenue - expenses,
	}
}

// computeTax applies the slab rates to the profit after the standard
// deduction, plus the health and education cess.
func computeTax(netProfit float64, fy string) map[string]any {
	taxableIncome := netProfit - standardDeduction
	if taxableIncome < 0 {
		taxableIncome = 0
	}

	liability := 0.0
	remaining := taxableIncome
	for _, slab := range taxSlabs {
		if remaining <= 0 {
			break
		}
		slabIncome := math.Min(remaining, slab.upper-slab.lower)
		liability += slabIncome * slab.rate / 100
		remaining -= slabIncome
	}

	cess := liability * cessRate
	return map[string]any{
		"taxable_income":     taxableIncome,
		"tax_liability":      liability,
		"cess":               cess,
		"total_tax":          liability + cess,
		"standard_deduction": float64(standardDeduction),
		"financial_year":     fy,
	}
}

// advanceTaxSchedule lays out the cumulative 15/45/75/100 percent
// installments falling on 15 Jun, 15 Sep, 15 Dec and 15 Mar.
func advanceTaxSchedule(totalTax float64, fyStart time.Time) map[string]any {
	year := fyStart.Year()
	installments := []map[string]any{
		{"installment": 1, "due_date": dueDate(year, time.June), "cumulative_percent": 15, "amount": totalTax * 0.15},
		{"installment": 2, "due_date": dueDate(year, time.September), "cumulative_percent": 45, "amount": totalTax * 0.30},
		{"installment": 3, "due_date": dueDate(year, time.December), "cumulative_percent": 75, "amount": totalTax * 0.30},
		{"installment": 4, "due_date": dueDate(year+1, time.March), "cumulative_percent": 100, "amount": totalTax * 0.25},
	}
	return map[string]any{
		"advance_tax_installments": installments,
		"total_tax_liability":      totalTax,
	}
}

func dueDate(year int, month time.Month) string {
	return time.Date(year, month, 15, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
}

func complianceNotes(computation map[string]any) []string {
	var notes []string
	if computation["total_tax"].(float64) > 10000 {
		notes = append(notes, "Advance tax payments are required to avoid interest under Section 234B/C")
	}
	if computation["taxable_income"].(float64) > 500000 {
		notes = append(notes, "Tax audit may be applicable under Section 44AB")
	}
	return notes
}

// financialYearRange resolves "2024-25" into 1 Apr 2024 .. 31 Mar 2025.
func financialYearRange(fy string) (time.Time, time.Time) {
	year := 0
	if len(fy) >= 4 {
		for _, c := range fy[:4] {
			if c < '0' || c > '9' {
				year = 0
				break
			}
			year = year*10 + int(c-'0')
		}
	}
	if year == 0 {
		now := time.Now().UTC()
		year = now.Year()
		if now.Month() < time.April {
			year--
		}
	}
	start := time.Date(year, time.April, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year+1, time.April, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)
	return start, end
}

func defaultFinancialYear() string {
	start, end := financialYearRange("")
	return start.Format("2006") + "-" + end.Format("06")
}

func isIncomeAccount(code string) bool {
	switch code {
	case "SALES", "INTEREST_INCOME", "MISC_INCOME":
		return true
	}
	return false
}

func isExpenseAccount(code string) bool {
	switch code {
	case "SALARIES", "RENT", "UTILITIES", "INTERNET", "PURCHASES",
		"TRAVEL", "MEALS", "SOFTWARE", "BANK_CHARGES", "MISC_EXPENSE":
		return true
	}
	return false
}
