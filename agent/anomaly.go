package agent

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/caflow/caflow/ledger"
)

const (
	zScoreThreshold = 3.0
	minSampleSize   = 10
)

// AnomalyAgent scans a period's ledger for statistical outliers and
// likely duplicate postings, then condenses the alerts into a single
// risk score.
type AnomalyAgent struct {
	store ledger.Store
}

func NewAnomalyAgent(store ledger.Store) *AnomalyAgent {
	return &AnomalyAgent{store: store}
}

func (a *AnomalyAgent) Name() string { return "anomaly_detection" }

func (a *AnomalyAgent) Execute(ctx context.Context, in Input) (Output, error) {
	orgID, err := in.OrgID()
	if err != nil {
		return nil, err
	}
	period := in.String("period")
	if period == "" {
		period = DefaultPeriod()
	}
	start, end := ParsePeriod(period)

	entries, err := a.store.Entries(ctx, orgID, start, end)
	if err != nil {
		return nil, err
	}

	var alerts []map[string]any
	alerts = append(alerts, amountOutliers(entries)...)
	alerts = append(alerts, duplicatePostings(entries)...)

	score := riskScore(alerts)
	return Output{
		"org_id":     orgID.String(),
		"period":     fmt.Sprintf("%s to %s", start.Format("2006-01-02"), end.Format("2006-01-02")),
		"alerts":     alerts,
		"risk_score": score,
		"risk_level": riskLevel(score),
		"timestamp":  time.Now().Format(time.RFC3339),
	}, nil
}

// amountOutliers flags entries whose amount sits more than three
// standard deviations from the period mean. Needs at least ten
// positive samples to say anything.
func amountOutliers(entries []ledger.Entry) []map[string]any {
	var samples []ledger.Entry
	for _, e := range entries {
		if e.Amount() > 0 {
			samples = append(samples, e)
		}
	}
	if len(samples) < minSampleSize {
		return nil
	}

	mean := 0.0
	for _, e := range samples {
		mean += e.Amount()
	}
	mean /= float64(len(samples))

	variance := 0.0
	for _, e := range samples {
		d := e.Amount() - mean
		variance += d * d
	}
	stddev := math.Sqrt(variance / float64(len(samples)))
	if stddev == 0 {
		return nil
	}

	var alerts []map[string]any
	for _, e := range samples {
		z := math.Abs(e.Amount()-mean) / stddev
		if z > zScoreThreshold {
			alerts = append(alerts, map[string]any{
				"type":        "amount_anomaly",
				"severity":    "high",
				"description": fmt.Sprintf("Unusually large transaction: %.2f", e.Amount()),
				"date":        e.Date.Format("2006-01-02"),
				"amount":      e.Amount(),
				"account":     e.AccountCode,
				"z_score":     z,
				"confidence":  0.85,
			})
		}
	}
	return alerts
}

// duplicatePostings groups entries by amount and party and flags
// groups with more than one member.
func duplicatePostings(entries []ledger.Entry) []map[string]any {
	type dupKey struct {
		amount float64
		party  string
	}
	groups := make(map[dupKey][]ledger.Entry)
	var order []dupKey
	for _, e := range entries {
		if e.Party == "" {
			continue
		}
		key := dupKey{e.Amount(), e.Party}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], e)
	}

	var alerts []map[string]any
	for _, key := range order {
		group := groups[key]
		if len(group) < 2 {
			continue
		}
		alerts = append(alerts, map[string]any{
			"type":        "duplicate_posting",
			"severity":    "high",
			"description": fmt.Sprintf("Possible duplicate postings: %.2f to %s", key.amount, key.party),
			"count":       len(group),
			"confidence":  0.9,
		})
	}
	return alerts
}

// riskScore weights alerts by severity and confidence, normalized to
// a 0-100 scale.
func riskScore(alerts []map[string]any) float64 {
	weights := map[string]float64{
		"critical": 1.0,
		"high":     0.7,
		"medium":   0.4,
		"low":      0.1,
	}
	total := 0.0
	for _, alert := range alerts {
		weight, ok := weights[alert["severity"].(string)]
		if !ok {
			weight = 0.1
		}
		confidence, _ := alert["confidence"].(float64)
		total += weight * confidence
	}
	return math.Min(total*20, 100)
}

func riskLevel(score float64) string {
	switch {
	case score >= 80:
		return "critical"
	case score >= 60:
		return "high"
	case score >= 40:
		return "medium"
	case score >= 20:
		return "low"
	default:
		return "minimal"
	}
}
