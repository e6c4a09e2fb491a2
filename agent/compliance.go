package agent

import (
	"context"
	"sort"
	"time"
)

type complianceRule struct {
	name        string
	description string
	frequency   string // monthly or quarterly
	months      []time.Month
	dayOfMonth  int
}

var complianceRules = []complianceRule{
	{
		name:        "GSTR-1 Monthly Filing",
		description: "Monthly return for outward supplies",
		frequency:   "monthly",
		dayOfMonth:  11,
	},
	{
		name:        "GSTR-3B Monthly Filing",
		description: "Monthly summary return with tax payment",
		frequency:   "monthly",
		dayOfMonth:  20,
	},
	{
		name:        "TDS Quarterly Return",
		description: "Quarterly TDS return filing",
		frequency:   "quarterly",
		months:      []time.Month{time.January, time.April, time.July, time.October},
		dayOfMonth:  31,
	},
	{
		name:        "Income Tax Advance Payment",
		description: "Advance tax installment payments",
		frequency:   "quarterly",
		months:      []time.Month{time.June, time.September, time.December, time.March},
		dayOfMonth:  15,
	},
}

// ComplianceAgent generates the filing calendar for a financial year
// and lists the tasks coming due within the next thirty days.
type ComplianceAgent struct {
	now func() time.Time
}

func NewComplianceAgent() *ComplianceAgent {
	return &ComplianceAgent{now: time.Now}
}

func (a *ComplianceAgent) Name() string { return "compliance_check" }

func (a *ComplianceAgent) Execute(ctx context.Context, in Input) (Output, error) {
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
	entityType := in.String("entity_type")
	if entityType == "" {
		entityType = "company"
	}

	tasks := generateComplianceTasks(fy)
	now := a.now().UTC()
	var upcoming []map[string]any
	for _, task := range tasks {
		due := task["due_date"].(time.Time)
		if due.After(now) && due.Before(now.AddDate(0, 0, 30)) {
			upcoming = append(upcoming, task)
		}
	}

	return Output{
		"org_id":          orgID.String(),
		"financial_year":  fy,
		"entity_type":     entityType,
		"tasks_generated": len(tasks),
		"tasks":           formatTasks(tasks),
		"upcoming_tasks":  formatTasks(upcoming),
		"timestamp":       time.Now().Format(time.RFC3339),
	}, nil
}

// generateComplianceTasks expands the rule table over the financial
// year. Due dates landing on a weekend shift to the next Monday.
func generateComplianceTasks(fy string) []map[string]any {
	start, end := financialYearRange(fy)
	var tasks []map[string]any

	for _, rule := range complianceRules {
		for month := start; !month.After(end); month = month.AddDate(0, 1, 0) {
			if rule.frequency == "quarterly" && !containsMonth(rule.months, month.Month()) {
				continue
			}
			due := dueDateInMonth(month.Year(), month.Month(), rule.dayOfMonth)
			tasks = append(tasks, map[string]any{
				"name":        rule.name,
				"description": rule.description,
				"frequency":   rule.frequency,
				"due_date":    adjustWeekend(due),
			})
		}
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i]["due_date"].(time.Time).Before(tasks[j]["due_date"].(time.Time))
	})
	return tasks
}

// dueDateInMonth clamps the day to the month's length, so a rule for
// the 31st still lands in February.
func dueDateInMonth(year int, month time.Month, day int) time.Time {
	firstOfNext := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	lastDay := firstOfNext.AddDate(0, 0, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func adjustWeekend(due time.Time) time.Time {
	switch due.Weekday() {
	case time.Saturday:
		return due.AddDate(0, 0, 2)
	case time.Sunday:
		return due.AddDate(0, 0, 1)
	}
	return due
}

func containsMonth(months []time.Month, m time.Month) bool {
	for _, month := range months {
		if month == m {
			return true
		}
	}
	return false
}

func formatTasks(tasks []map[string]any) []map[string]any {
	out := make([]map[string]any, len(tasks))
	for i, task := range tasks {
		out[i] = map[string]any{
			"name":        task["name"],
			"description": task["description"],
			"frequency":   task["frequency"],
			"due_date":    task["due_date"].(time.Time).Format("2006-01-02"),
		}
	}
	return out
}
