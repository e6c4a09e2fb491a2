package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/caflow/caflow/ledger"
)

// ReportingAgent builds financial statements for a period with a
// comparison against the preceding period of equal length.
type ReportingAgent struct {
	store ledger.Store
}

func NewReportingAgent(store ledger.Store) *ReportingAgent {
	return &ReportingAgent{store: store}
}

func (a *ReportingAgent) Name() string { return "report_generation" }

func (a *ReportingAgent) Execute(ctx context.Context, in Input) (Output, error) {
	orgID, err := in.OrgID()
	if err != nil {
		return nil, err
	}
	period := in.String("period")
	if period == "" {
		period = DefaultPeriod()
	}
	reportTypes := in.Strings("report_types")
	if len(reportTypes) == 0 {
		reportTypes = []string{"pnl", "bs", "cashflow"}
	}

	start, end := ParsePeriod(period)
	prevStart := start.AddDate(0, -1, 0)
	prevEnd := start.Add(-time.Nanosecond)

	current, err := a.store.Entries(ctx, orgID, start, end)
	if err != nil {
		return nil, err
	}
	previous, err := a.store.Entries(ctx, orgID, prevStart, prevEnd)
	if err != nil {
		return nil, err
	}

	reports := make(map[string]any)
	for _, rt := range reportTypes {
		switch rt {
		case "pnl":
			reports["profit_loss"] = profitLossReport(current, previous)
		case "bs":
			reports["balance_sheet"] = balanceSheetReport(current, previous)
		case "cashflow":
			reports["cash_flow"] = cashFlowReport(current, previous)
		}
	}

	return Output{
		"org_id":    orgID.String(),
		"period":    fmt.Sprintf("%s to %s", start.Format("2006-01-02"), end.Format("2006-01-02")),
		"reports":   reports,
		"insights":  reportInsights(reports),
		"ratios":    financialRatios(reports),
		"timestamp": time.Now().Format(time.RFC3339),
	}, nil
}

func comparison(current, previous float64) map[string]any {
	changePercent := 0.0
	if previous != 0 {
		changePercent = (current - previous) / previous * 100
	}
	return map[string]any{
		"current":        current,
		"previous":       previous,
		"change":         current - previous,
		"change_percent": changePercent,
	}
}

func profitLossReport(current, previous []ledger.Entry) map[string]any {
	cur := profitAndLoss(current)
	prev := profitAndLoss(previous)
	return map[string]any{
		"revenue":      comparison(cur["revenue"], prev["revenue"]),
		"expenses":     comparison(cur["expenses"], prev["expenses"]),
		"gross_profit": comparison(cur["net_profit"], prev["net_profit"]),
		"breakdown":    accountBreakdown(current),
	}
}

func balanceSheetReport(current, previous []ledger.Entry) map[string]any {
	curAssets, curLiabilities := balances(current)
	prevAssets, prevLiabilities := balances(previous)
	curEquity := curAssets - curLiabilities
	prevEquity := prevAssets - prevLiabilities

	return map[string]any{
		"assets":      comparison(curAssets, prevAssets),
		"liabilities": comparison(curLiabilities, prevLiabilities),
		"equity":      comparison(curEquity, prevEquity),
	}
}

func cashFlowReport(current, previous []ledger.Entry) map[string]any {
	return map[string]any{
		"net_cash_flow": comparison(netCashFlow(current), netCashFlow(previous)),
	}
}

// balances splits the trial balance into asset-like and
// liability-like totals using account code prefixes.
func balances(entries []ledger.Entry) (assets, liabilities float64) {
	for _, e := range entries {
		switch {
		case e.AccountCode == "CASH" || strings.HasPrefix(e.AccountCode, "BANK"):
			assets += e.Debit - e.Credit
		case e.AccountCode == "TAX_PAYABLE":
			liabilities += e.Credit - e.Debit
		}
	}
	return assets, liabilities
}

func netCashFlow(entries []ledger.Entry) float64 {
	flow := 0.0
	for _, e := range entries {
		if e.AccountCode == "CASH" || strings.HasPrefix(e.AccountCode, "BANK") {
			flow += e.Debit - e.Credit
		}
	}
	return flow
}

func accountBreakdown(entries []ledger.Entry) map[string]float64 {
	breakdown := make(map[string]float64)
	for _, e := range entries {
		breakdown[e.AccountCode] += e.Debit - e.Credit
	}
	return breakdown
}

func reportInsights(reports map[string]any) []map[string]any {
	insights := make([]map[string]any, 0)
	pnl, ok := reports["profit_loss"].(map[string]any)
	if !ok {
		return insights
	}

	revenue := pnl["revenue"].(map[string]any)
	if pct := revenue["change_percent"].(float64); pct > 20 {
		insights = append(insights, map[string]any{
			"type":    "positive",
			"title":   "Strong Revenue Growth",
			"message": fmt.Sprintf("Revenue increased by %.1f%% compared to previous period", pct),
			"impact":  "high",
		})
	} else if pct := revenue["change_percent"].(float64); pct < -10 {
		insights = append(insights, map[string]any{
			"type":    "warning",
			"title":   "Revenue Decline",
			"message": fmt.Sprintf("Revenue decreased by %.1f%% compared to previous period", -pct),
			"impact":  "high",
		})
	}

	profit := pnl["gross_profit"].(map[string]any)
	if profit["current"].(float64) < 0 {
		insights = append(insights, map[string]any{
			"type":    "critical",
			"title":   "Negative Profitability",
			"message": "Business is operating at a loss",
			"impact":  "very_high",
		})
	}
	return insights
}

func financialRatios(reports map[string]any) map[string]any {
	ratios := map[string]any{}

	if pnl, ok := reports["profit_loss"].(map[string]any); ok {
		revenue := pnl["revenue"].(map[string]any)["current"].(float64)
		profit := pnl["gross_profit"].(map[string]any)["current"].(float64)
		margin := 0.0
		if revenue != 0 {
			margin = profit / revenue * 100
		}
		ratios["profitability"] = map[string]any{"gross_margin": margin}
	}

	if bs, ok := reports["balance_sheet"].(map[string]any); ok {
		assets := bs["assets"].(map[string]any)["current"].(float64)
		liabilities := bs["liabilities"].(map[string]any)["current"].(float64)
		equity := bs["equity"].(map[string]any)["current"].(float64)

		currentRatio, debtToEquity := 0.0, 0.0
		if liabilities != 0 {
			currentRatio = assets / liabilities
		}
		if equity != 0 {
			debtToEquity = liabilities / equity
		}
		ratios["liquidity"] = map[string]any{"current_ratio": currentRatio}
		ratios["leverage"] = map[string]any{"debt_to_equity": debtToEquity}
	}
	return ratios
}
