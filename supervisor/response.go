package supervisor

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/caflow/caflow/workflow"
)

// ArtifactSummary lists a produced artifact without its payload.
type ArtifactSummary struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorSummary reports a step failure without leaking internal error
// text to the caller.
type ErrorSummary struct {
	Step string `json:"step"`
	Kind string `json:"kind"`
}

// Response is the final reduction of a workflow run.
type Response struct {
	Success     bool              `json:"success"`
	Reply       string            `json:"reply"`
	SessionID   uuid.UUID         `json:"session_id"`
	OrgID       uuid.UUID         `json:"org_id"`
	Result      map[string]any    `json:"result,omitempty"`
	Artifacts   []ArtifactSummary `json:"artifacts"`
	StepRoute   []string          `json:"step_route"`
	Errors      []ErrorSummary    `json:"errors,omitempty"`
	Actions     []string          `json:"actions,omitempty"`
	DownloadURL string            `json:"download_url,omitempty"`
	CompletedAt time.Time         `json:"completed_at"`
}

// assemble reduces the final workflow state into a Response. The most
// recent artifact's payload becomes the result; earlier artifacts are
// summarized by type and timestamp only.
func assemble(st *workflow.State, originalMessage string) Response {
	resp := Response{
		Success:     !st.Failed(),
		SessionID:   st.SessionID,
		OrgID:       st.OrgID,
		Artifacts:   make([]ArtifactSummary, 0, len(st.Artifacts)),
		StepRoute:   make([]string, 0, len(st.Artifacts)),
		CompletedAt: time.Now(),
	}

	for _, a := range st.Artifacts {
		resp.Artifacts = append(resp.Artifacts, ArtifactSummary{Type: a.Type, Timestamp: a.Timestamp})
		if strings.HasSuffix(a.Type, "_result") {
			resp.StepRoute = append(resp.StepRoute, strings.TrimSuffix(a.Type, "_result"))
		}
	}
	for _, e := range st.Errors {
		resp.Errors = append(resp.Errors, ErrorSummary{Step: e.Step, Kind: e.Kind})
	}

	if intent := st.LatestArtifact(StepIntent + "_result"); intent != nil {
		if actions, ok := intent.Data["suggested_actions"].([]string); ok {
			resp.Actions = actions
		}
	}

	last := st.LastArtifact()
	if last != nil {
		resp.Result = last.Data
		if last.Type == StepFormatting+"_result" {
			if url, ok := last.Data["download_url"].(string); ok {
				resp.DownloadURL = url
			}
		}
	}

	if resp.Success {
		resp.Reply = generateReply(st, originalMessage)
	} else {
		resp.Reply = failureReply(st)
	}
	return resp
}

// generateReply builds a short natural-language summary keyed off the
// original request wording. Each topic reads the artifact of the step
// that produced its numbers, not the final artifact — a run ending in
// formatting would otherwise summarize the download stub.
func generateReply(st *workflow.State, originalMessage string) string {
	lower := strings.ToLower(originalMessage)
	switch {
	case strings.Contains(lower, "gst"):
		return gstReply(stepData(st, StepGST))
	case strings.Contains(lower, "tax") || strings.Contains(lower, "itr"):
		return taxReply(stepData(st, StepIncomeTax))
	case strings.Contains(lower, "report"):
		return "Financial reports generated. The reports include the Profit & Loss statement, Balance Sheet and Cash Flow statement. You can download them from the link provided."
	case strings.Contains(lower, "reconcile"):
		return reconciliationReply(stepData(st, StepRecon))
	case strings.Contains(lower, "upload") || strings.Contains(lower, "document"):
		return uploadReply(stepData(st, StepPosting))
	default:
		return "Request processed successfully. You can review the results and download any generated reports."
	}
}

// stepData returns the payload of the named step's most recent
// artifact, or the run's final artifact data when the step never ran.
func stepData(st *workflow.State, step string) map[string]any {
	if a := st.LatestArtifact(step + "_result"); a != nil {
		return a.Data
	}
	if last := st.LastArtifact(); last != nil {
		return last.Data
	}
	return map[string]any{}
}

func gstReply(result map[string]any) string {
	liability, _ := result["liability_summary"].(map[string]any)
	if liability == nil {
		liability = result
	}
	return fmt.Sprintf(
		"GST processing completed.\n\nPeriod: %v\nOutput Tax Liability: %.2f\nInput Tax Credit: %.2f\nNet GST Payable: %.2f\n\nGSTR-1 and GSTR-3B returns have been prepared.",
		liability["period"],
		floatField(liability, "output_tax_liability"),
		floatField(liability, "input_tax_credit"),
		floatField(liability, "net_gst_payable"),
	)
}

func taxReply(result map[string]any) string {
	computation, _ := result["tax_computation"].(map[string]any)
	if computation == nil {
		computation = result
	}
	return fmt.Sprintf(
		"Income tax computation completed.\n\nTaxable Income: %.2f\nTotal Tax Liability: %.2f\n\nReview the advance tax payment schedule before filing.",
		floatField(computation, "taxable_income"),
		floatField(computation, "total_tax"),
	)
}

func reconciliationReply(result map[string]any) string {
	matched := intField(result, "matched_count")
	unmatched := intField(result, "unmatched_bank_count")
	return fmt.Sprintf(
		"Bank reconciliation completed.\n\nMatched: %d transactions\nUnmatched: %d bank transactions\n\nReview the adjustments suggested for unmatched transactions.",
		matched, unmatched,
	)
}

func uploadReply(result map[string]any) string {
	processed := intField(result, "processed_count")
	return fmt.Sprintf(
		"Document processing completed. Successfully processed %d transactions; the entries have been posted to the ledger.",
		processed,
	)
}

// failureReply names the failed step but never echoes internal error
// text into the caller-facing reply.
func failureReply(st *workflow.State) string {
	step := "the request"
	if len(st.Errors) > 0 {
		step = "step " + st.Errors[len(st.Errors)-1].Step
	}
	return fmt.Sprintf("Processing stopped at %s. Partial results are available in the artifacts; please retry or adjust the request.", step)
}

func floatField(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}
