// Package supervisor wires the processing steps into the workflow
// graph and exposes the single entry point callers use to run a
// request end to end.
package supervisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/caflow/caflow/agent"
	"github.com/caflow/caflow/ledger"
	"github.com/caflow/caflow/model"
	"github.com/caflow/caflow/recon"
	"github.com/caflow/caflow/workflow"
	"github.com/caflow/caflow/workflow/emit"
	"github.com/caflow/caflow/workflow/store"
)

// Step names double as graph node ids and artifact type prefixes.
const (
	StepIntent     = "intent_classification"
	StepIngestion  = "document_ingestion"
	StepPosting    = "ledger_posting"
	StepRecon      = "reconciliation"
	StepGST        = "gst_processing"
	StepIncomeTax  = "tax_processing"
	StepCompliance = "compliance_check"
	StepReporting  = "report_generation"
	StepAdvisory   = "advisory"
	StepAnomaly    = "anomaly_detection"
	StepFormatting = "report_formatting"
)

// Request is one user turn handed to the workflow.
type Request struct {
	Message     string         `json:"message"`
	OrgID       uuid.UUID      `json:"org_id"`
	UserID      uuid.UUID      `json:"user_id,omitempty"`
	SessionID   uuid.UUID      `json:"session_id,omitempty"`
	Attachments []string       `json:"attachments,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
}

// Config assembles the collaborators the workflow steps depend on.
// Ledger is required; the rest degrade gracefully when absent.
type Config struct {
	Ledger    ledger.Store
	Extractor agent.Extractor
	Chat      model.ChatModel
	Artifacts agent.ArtifactSink

	Emitter emit.Emitter
	Store   store.Store[*workflow.State]
	Metrics *workflow.Metrics

	// Organization tax identifiers used when the request does not
	// carry them. Stand-ins for an org profile lookup.
	DefaultGSTIN string
	DefaultPAN   string

	MaxSteps      int
	MaxNodeVisits int
}

// Supervisor owns the compiled workflow graph and its agents.
type Supervisor struct {
	engine  *workflow.Engine
	invoker *agent.Invoker
	cfg     Config

	intent     *agent.IntentAgent
	documents  *agent.DocumentAgent
	posting    *agent.PostingAgent
	recon      *agent.ReconAgent
	gst        *agent.GSTAgent
	incomeTax  *agent.IncomeTaxAgent
	compliance *agent.ComplianceAgent
	reporting  *agent.ReportingAgent
	advisory   *agent.AdvisoryAgent
	anomaly    *agent.AnomalyAgent
	formatter  *agent.FormatterAgent
}

// New builds the supervisor and compiles the workflow graph.
func New(cfg Config) (*Supervisor, error) {
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("supervisor: ledger store is required")
	}
	if cfg.Emitter == nil {
		cfg.Emitter = emit.NewNullEmitter()
	}

	s := &Supervisor{
		invoker:    agent.NewInvoker(cfg.Emitter),
		cfg:        cfg,
		intent:     agent.NewIntentAgent(),
		documents:  agent.NewDocumentAgent(cfg.Extractor),
		posting:    agent.NewPostingAgent(cfg.Ledger),
		recon:      agent.NewReconAgent(cfg.Ledger),
		gst:        agent.NewGSTAgent(cfg.Ledger),
		incomeTax:  agent.NewIncomeTaxAgent(cfg.Ledger),
		compliance: agent.NewComplianceAgent(),
		reporting:  agent.NewReportingAgent(cfg.Ledger),
		advisory:   agent.NewAdvisoryAgent(cfg.Chat),
		anomaly:    agent.NewAnomalyAgent(cfg.Ledger),
		formatter:  agent.NewFormatterAgent(cfg.Artifacts),
	}

	opts := []workflow.Option{workflow.WithEmitter(cfg.Emitter)}
	if cfg.Store != nil {
		opts = append(opts, workflow.WithStore(cfg.Store))
	}
	if cfg.Metrics != nil {
		opts = append(opts, workflow.WithMetrics(cfg.Metrics))
	}
	if cfg.MaxSteps > 0 {
		opts = append(opts, workflow.WithMaxSteps(cfg.MaxSteps))
	}
	if cfg.MaxNodeVisits > 0 {
		opts = append(opts, workflow.WithMaxNodeVisits(cfg.MaxNodeVisits))
	}
	s.engine = workflow.New(opts...)

	if err := s.buildGraph(); err != nil {
		return nil, err
	}
	return s, nil
}

// Execute runs one request through the graph and assembles the
// response. The returned error covers engine faults (routing errors,
// loop bound exceeded); step failures surface in the response with
// Success=false instead.
func (s *Supervisor) Execute(ctx context.Context, req Request) (Response, error) {
	if req.OrgID == uuid.Nil {
		return Response{}, fmt.Errorf("supervisor: org_id is required")
	}

	st := workflow.NewState(req.OrgID, req.SessionID)
	st.UserID = req.UserID
	st.Message = req.Message
	st.Attachments = req.Attachments
	st.Context = req.Context

	final, err := s.engine.Run(ctx, st)
	if err != nil {
		return Response{}, err
	}
	return assemble(final, req.Message), nil
}

func (s *Supervisor) buildGraph() error {
	nodes := map[string]workflow.Handler{
		StepIntent:     s.runIntent,
		StepIngestion:  s.runIngestion,
		StepPosting:    s.runPosting,
		StepRecon:      s.runRecon,
		StepGST:        s.runGST,
		StepIncomeTax:  s.runIncomeTax,
		StepCompliance: s.runCompliance,
		StepReporting:  s.runReporting,
		StepAdvisory:   s.runAdvisory,
		StepAnomaly:    s.runAnomaly,
		StepFormatting: s.runFormatting,
	}
	for name, h := range nodes {
		if err := s.engine.Add(name, h); err != nil {
			return err
		}
	}
	if err := s.engine.StartAt(StepIntent); err != nil {
		return err
	}

	// Intent fans out to one node per intent; unknown intents land
	// on advisory.
	err := s.engine.Route(StepIntent, routeByIntent, map[string]string{
		agent.IntentUploadDocs:  StepIngestion,
		agent.IntentPostEntries: StepPosting,
		agent.IntentReconcile:   StepRecon,
		agent.IntentTaxGST:      StepGST,
		agent.IntentTaxIT:       StepIncomeTax,
		agent.IntentCompliance:  StepCompliance,
		agent.IntentReport:      StepReporting,
		agent.IntentAdvisory:    StepAdvisory,
		agent.IntentAnomaly:     StepAnomaly,
		agent.IntentFormat:      StepFormatting,
	}, StepAdvisory)
	if err != nil {
		return err
	}

	if err := s.engine.Connect(StepIngestion, StepPosting); err != nil {
		return err
	}

	err = s.engine.Route(StepPosting, routeAfterPosting, map[string]string{
		"reconcile": StepRecon,
		"tax":       StepGST,
		"report":    StepReporting,
		"complete":  workflow.Terminal,
	}, "")
	if err != nil {
		return err
	}

	// The only cycle in the graph: unapplied adjustments route back
	// to posting. The engine's visit bound forces termination if the
	// pair keeps feeding each other.
	err = s.engine.Route(StepRecon, routeAfterRecon, map[string]string{
		"adjust":   StepPosting,
		"complete": workflow.Terminal,
	}, "")
	if err != nil {
		return err
	}

	for _, from := range []string{StepGST, StepIncomeTax, StepReporting} {
		if err := s.engine.Connect(from, StepFormatting); err != nil {
			return err
		}
	}
	for _, from := range []string{StepFormatting, StepAdvisory, StepCompliance, StepAnomaly} {
		if err := s.engine.Connect(from, workflow.Terminal); err != nil {
			return err
		}
	}
	return nil
}

func routeByIntent(st *workflow.State) string {
	if st.Intent == "" {
		return agent.IntentAdvisory
	}
	return st.Intent
}

// routeAfterPosting decides where a completed posting run goes next:
// bank-related artifacts mean reconciliation, tax entities mean GST
// processing, a report intent means report generation, anything else
// completes the run.
func routeAfterPosting(st *workflow.State) string {
	for _, a := range st.Artifacts {
		if strings.Contains(a.Type, "bank") || a.Data["has_bank_transactions"] == true {
			return "reconcile"
		}
	}
	if hasEntity(st.Entities, "gstin") {
		return "tax"
	}
	if st.Intent == agent.IntentReport {
		return "report"
	}
	return "complete"
}

func routeAfterRecon(st *workflow.State) string {
	last := st.LastArtifact()
	if last == nil || last.Type != StepRecon+"_result" {
		return "complete"
	}
	if adjustments, ok := last.Data["adjustments"].([]map[string]any); ok && len(adjustments) > 0 {
		return "adjust"
	}
	if adjustments, ok := last.Data["adjustments"].([]any); ok && len(adjustments) > 0 {
		return "adjust"
	}
	return "complete"
}

// invoke runs an agent through the panic boundary, appends the result
// artifact on success and bubbles the error on failure.
func (s *Supervisor) invoke(ctx context.Context, st *workflow.State, a agent.Agent, in agent.Input) (agent.Output, error) {
	in["org_id"] = st.OrgID.String()
	out, err := s.invoker.Invoke(ctx, a, st.SessionID.String(), len(st.Artifacts), in)
	if err != nil {
		return nil, err
	}
	st.AddArtifact(a.Name()+"_result", out)
	return out, nil
}

func (s *Supervisor) runIntent(ctx context.Context, st *workflow.State) error {
	out, err := s.invoke(ctx, st, s.intent, agent.Input{
		"message":     st.Message,
		"attachments": st.Attachments,
	})
	if err != nil {
		return err
	}
	intent, _ := out["intent"].(string)
	entities, _ := out["entities"].(map[string]any)
	st.SetIntent(intent, entities)
	return nil
}

func (s *Supervisor) runIngestion(ctx context.Context, st *workflow.State) error {
	out, err := s.invoke(ctx, st, s.documents, agent.Input{
		"attachments": st.Attachments,
	})
	if err != nil {
		return err
	}
	// Bank statement lines feed the reconciliation step as the
	// statement side of the match.
	if out["has_bank_transactions"] == true {
		if txns := statementLines(out); len(txns) > 0 {
			if err := s.cfg.Ledger.ImportBankTransactions(ctx, st.OrgID, txns); err != nil {
				return fmt.Errorf("import bank transactions: %w", err)
			}
		}
	}
	return nil
}

// statementLines converts ingested transactions into bank statement
// lines. Statement convention: debits are negative.
func statementLines(out agent.Output) []recon.BankTransaction {
	extracted, ok := out["extracted_data"].(map[string]any)
	if !ok {
		return nil
	}
	txns, ok := extracted["transactions"].([]agent.ExtractedTransaction)
	if !ok {
		return nil
	}
	lines := make([]recon.BankTransaction, len(txns))
	for i, txn := range txns {
		amount := txn.Amount
		if strings.EqualFold(txn.Type, "debit") {
			amount = -amount
		}
		lines[i] = recon.BankTransaction{
			ID:          uuid.New().String(),
			Date:        txn.Date,
			Amount:      amount,
			Description: txn.Description,
			Type:        strings.ToLower(txn.Type),
		}
	}
	return lines
}

func (s *Supervisor) runPosting(ctx context.Context, st *workflow.State) error {
	in := agent.Input{}
	if txns := adjustmentTransactions(st); len(txns) > 0 {
		in["transactions"] = txns
	} else if doc := st.LatestArtifact(StepIngestion + "_result"); doc != nil {
		if extracted, ok := doc.Data["extracted_data"].(map[string]any); ok {
			in["transactions"] = extracted["transactions"]
		}
	}
	if len(st.Attachments) > 0 {
		in["doc_id"] = st.Attachments[0]
	}
	_, err := s.invoke(ctx, st, s.posting, in)
	return err
}

func (s *Supervisor) runRecon(ctx context.Context, st *workflow.State) error {
	_, err := s.invoke(ctx, st, s.recon, agent.Input{
		"period": entityString(st.Entities, "period"),
	})
	return err
}

func (s *Supervisor) runGST(ctx context.Context, st *workflow.State) error {
	gstin := entityString(st.Entities, "gstin")
	if gstin == "" {
		gstin = s.cfg.DefaultGSTIN
	}
	_, err := s.invoke(ctx, st, s.gst, agent.Input{
		"period": entityString(st.Entities, "period"),
		"gstin":  gstin,
	})
	return err
}

func (s *Supervisor) runIncomeTax(ctx context.Context, st *workflow.State) error {
	pan := entityString(st.Entities, "pan")
	if pan == "" {
		pan = s.cfg.DefaultPAN
	}
	_, err := s.invoke(ctx, st, s.incomeTax, agent.Input{
		"fy":  entityString(st.Entities, "financial_year"),
		"pan": pan,
	})
	return err
}

func (s *Supervisor) runCompliance(ctx context.Context, st *workflow.State) error {
	_, err := s.invoke(ctx, st, s.compliance, agent.Input{
		"fy":          entityString(st.Entities, "financial_year"),
		"entity_type": entityString(st.Entities, "entity_type"),
	})
	return err
}

func (s *Supervisor) runReporting(ctx context.Context, st *workflow.State) error {
	_, err := s.invoke(ctx, st, s.reporting, agent.Input{
		"period": entityString(st.Entities, "period"),
	})
	return err
}

func (s *Supervisor) runAdvisory(ctx context.Context, st *workflow.State) error {
	_, err := s.invoke(ctx, st, s.advisory, agent.Input{
		"question": st.Message,
	})
	return err
}

func (s *Supervisor) runAnomaly(ctx context.Context, st *workflow.State) error {
	_, err := s.invoke(ctx, st, s.anomaly, agent.Input{
		"period": entityString(st.Entities, "period"),
	})
	return err
}

func (s *Supervisor) runFormatting(ctx context.Context, st *workflow.State) error {
	format := entityString(st.Entities, "format")
	if format == "" {
		format = "json"
	}
	_, err := s.invoke(ctx, st, s.formatter, agent.Input{
		"components": reportComponents(st),
		"format":     format,
		"title":      "Financial Report",
	})
	return err
}

// reportComponents collects the formattable artifacts produced so
// far: generated reports expand into one component per statement, tax
// results become summary components.
func reportComponents(st *workflow.State) []map[string]any {
	var components []map[string]any
	for _, a := range st.Artifacts {
		switch a.Type {
		case StepReporting + "_result":
			if reports, ok := a.Data["reports"].(map[string]any); ok {
				for name, report := range reports {
					components = append(components, map[string]any{
						"type":  "table",
						"title": strings.ReplaceAll(name, "_", " "),
						"data":  report,
					})
				}
			}
		case StepGST + "_result", StepIncomeTax + "_result":
			components = append(components, map[string]any{
				"type":  "summary",
				"title": strings.TrimSuffix(a.Type, "_result") + " summary",
				"data":  a.Data,
			})
		}
	}
	return components
}

// adjustmentTransactions converts a reconciliation run's proposed
// adjustments into postable transactions. Consumed entries keep their
// statement description so a later matching pass can pair them.
func adjustmentTransactions(st *workflow.State) []map[string]any {
	last := st.LatestArtifact(StepRecon + "_result")
	if last == nil {
		return nil
	}
	var txns []map[string]any
	appendAdjustment := func(m map[string]any) {
		txnType := "debit"
		if m["type"] == "interest_income" {
			txnType = "credit"
		}
		txns = append(txns, map[string]any{
			"description":  m["description"],
			"amount":       m["amount"],
			"date":         m["date"],
			"account_code": m["account_code"],
			"type":         txnType,
		})
	}
	switch adjustments := last.Data["adjustments"].(type) {
	case []map[string]any:
		for _, m := range adjustments {
			appendAdjustment(m)
		}
	case []any:
		for _, item := range adjustments {
			if m, ok := item.(map[string]any); ok {
				appendAdjustment(m)
			}
		}
	}
	return txns
}

func entityString(entities map[string]any, key string) string {
	switch v := entities[key].(type) {
	case string:
		return v
	case []string:
		if len(v) > 0 {
			return v[0]
		}
	case []any:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return s
			}
		}
	}
	return ""
}

func hasEntity(entities map[string]any, key string) bool {
	return entityString(entities, key) != ""
}
