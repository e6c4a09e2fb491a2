package agent

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// Intent category names. Declaration order matters: classification
// scans categories in order and a later category only wins with a
// strictly higher score, so ties resolve to the earlier entry.
const (
	IntentUploadDocs  = "upload_docs"
	IntentPostEntries = "post_entries"
	IntentReconcile   = "reconcile"
	IntentTaxGST      = "tax_gst"
	IntentTaxIT       = "tax_it"
	IntentCompliance  = "compliance"
	IntentReport      = "report"
	IntentAdvisory    = "advisory"
	IntentAnomaly     = "anomaly"
	IntentFormat      = "format"
)

type intentCategory struct {
	name     string
	patterns []*regexp.Regexp
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, expr := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + expr)
	}
	return out
}

var intentCategories = []intentCategory{
	{IntentUploadDocs, compileAll(
		`upload`, `scan`, `process.*document`, `ingest`,
		`attach.*file`, `send.*document`,
	)},
	{IntentPostEntries, compileAll(
		`post.*entry`, `create.*voucher`, `journal.*entry`,
		`book.*transaction`, `ledger.*entry`, `accounting.*entry`,
	)},
	{IntentReconcile, compileAll(
		`reconcile`, `bank.*statement`, `match.*transaction`,
		`bank.*reco`, `statement.*matching`, `compare.*bank`,
	)},
	{IntentTaxGST, compileAll(
		`gst`, `goods.*service.*tax`, `gstr`, `gstr1`, `gstr3b`,
		`gst.*return`, `gst.*filing`, `gst.*calculation`,
	)},
	{IntentTaxIT, compileAll(
		`income.*tax`, `itr`, `tds`, `tax.*return`, `income.*tax.*return`,
		`advance.*tax`, `self.*assessment`, `tax.*calculation`,
	)},
	{IntentCompliance, compileAll(
		`compliance`, `deadline`, `due.*date`, `filing.*date`,
		`roc`, `mca`, `compliance.*calendar`, `reminder`,
	)},
	{IntentReport, compileAll(
		`report`, `financial.*statement`, `profit.*loss`,
		`balance.*sheet`, `cash.*flow`, `financial.*report`,
		`statement`, `mis`, `dashboard`,
	)},
	{IntentAdvisory, compileAll(
		`advice`, `advisory`, `consult`, `question`, `help`,
		`guidance`, `suggest`, `recommend`, `what.*should`,
		`how.*to`, `can.*i`,
	)},
	{IntentAnomaly, compileAll(
		`anomaly`, `anomalies`, `unusual.*transaction`, `suspicious`,
		`outlier`, `duplicate.*entry`, `fraud`,
	)},
	{IntentFormat, compileAll(
		`format.*report`, `export`, `download.*pdf`, `download.*excel`,
		`convert.*report`,
	)},
}

var entityPatterns = map[string]*regexp.Regexp{
	"period":         regexp.MustCompile(`(?i)(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\s*\d{4}|\d{1,2}[-/]\d{4}`),
	"financial_year": regexp.MustCompile(`(?i)fy\s*\d{2}-\d{2}|financial year\s*\d{4}-\d{2}`),
	"amount":         regexp.MustCompile(`(?i)₹\s*\d+|\d+\s*(rs|rupees|inr)`),
	"gstin":          regexp.MustCompile(`(?i)\d{2}[A-Z]{5}\d{4}[A-Z]{1}[A-Z\d]{1}[Z]{1}[A-Z\d]{1}`),
	"pan":            regexp.MustCompile(`(?i)[A-Z]{5}\d{4}[A-Z]{1}`),
	"account_number": regexp.MustCompile(`(?i)account\s*no\.?\s*[\dX-]+`),
}

var datePhrases = []struct {
	pattern *regexp.Regexp
	label   string
}{
	{regexp.MustCompile(`(?i)today|now|current`), "today|now|current"},
	{regexp.MustCompile(`(?i)yesterday`), "yesterday"},
	{regexp.MustCompile(`(?i)tomorrow`), "tomorrow"},
	{regexp.MustCompile(`(?i)this\s*month`), "this month"},
	{regexp.MustCompile(`(?i)last\s*month`), "last month"},
	{regexp.MustCompile(`(?i)next\s*month`), "next month"},
	{regexp.MustCompile(`(?i)this\s*quarter`), "this quarter"},
	{regexp.MustCompile(`(?i)last\s*quarter`), "last quarter"},
	{regexp.MustCompile(`(?i)this\s*year`), "this year"},
	{regexp.MustCompile(`(?i)last\s*year`), "last year"},
}

var suggestedActions = map[string][]string{
	IntentUploadDocs:  {"Process documents", "Extract transactions"},
	IntentPostEntries: {"Create vouchers", "Map to chart of accounts"},
	IntentReconcile:   {"Match bank transactions", "Identify exceptions"},
	IntentTaxGST:      {"Calculate GST liability", "Prepare GSTR-1"},
	IntentTaxIT:       {"Compute income tax", "Generate ITR"},
	IntentCompliance:  {"Check deadlines", "Create reminders"},
	IntentReport:      {"Generate financial statements", "Create dashboards"},
	IntentAdvisory:    {"Provide guidance", "Answer questions"},
	IntentAnomaly:     {"Scan for outliers", "Flag duplicates"},
	IntentFormat:      {"Render report", "Prepare download"},
}

// IntentAgent classifies a request into exactly one intent and
// extracts structured entities from the message. Deterministic and
// total: every input yields one of the declared intents.
type IntentAgent struct{}

func NewIntentAgent() *IntentAgent { return &IntentAgent{} }

func (a *IntentAgent) Name() string { return "intent_classification" }

func (a *IntentAgent) Execute(ctx context.Context, in Input) (Output, error) {
	message := strings.ToLower(in.String("message"))
	attachments := in.Strings("attachments")

	intent, confidence := Classify(message, attachments)
	entities := ExtractEntities(message)

	actions, ok := suggestedActions[intent]
	if !ok {
		actions = []string{"Provide assistance"}
	}

	return Output{
		"intent":            intent,
		"confidence":        confidence,
		"entities":          entities,
		"suggested_actions": actions,
		"timestamp":         time.Now().Format(time.RFC3339),
	}, nil
}

// Classify scores each category at 0.2 per matching pattern, capped
// at 1.0, and returns the first category with the strictly highest
// score. Attachments short-circuit to upload_docs; a blank message
// falls back to advisory.
func Classify(message string, attachments []string) (string, float64) {
	if len(attachments) > 0 {
		return IntentUploadDocs, 0.95
	}
	if strings.TrimSpace(message) == "" {
		return IntentAdvisory, 0.5
	}

	bestIntent := IntentAdvisory
	bestScore := 0.0
	for _, cat := range intentCategories {
		score := 0.0
		for _, p := range cat.patterns {
			if p.MatchString(message) {
				score += 0.2
			}
		}
		if score > 1.0 {
			score = 1.0
		}
		if score > bestScore {
			bestScore = score
			bestIntent = cat.name
		}
	}
	return bestIntent, bestScore
}

// ExtractEntities runs the named entity patterns over the message.
// A pattern with one match yields a scalar, multiple matches a list.
func ExtractEntities(message string) map[string]any {
	entities := make(map[string]any)
	for name, p := range entityPatterns {
		matches := p.FindAllString(message, -1)
		switch {
		case len(matches) == 1:
			entities[name] = matches[0]
		case len(matches) > 1:
			entities[name] = matches
		}
	}

	var dates []string
	for _, dp := range datePhrases {
		if dp.pattern.MatchString(message) {
			dates = append(dates, dp.label)
		}
	}
	if len(dates) > 0 {
		entities["dates"] = dates
	}
	return entities
}
