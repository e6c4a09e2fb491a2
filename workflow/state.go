// Package workflow provides the orchestration engine for accounting
// workflows: an accumulating state record threaded through a directed
// graph of processing steps, interpreted by a sequential execution loop.
package workflow

import (
	"time"

	"github.com/google/uuid"
)

// Status tracks a single step's progress within one run.
//
// Transitions are monotonic: pending -> in_progress -> completed, or
// pending -> in_progress -> failed. A step never moves backward.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// rank orders statuses for the monotonicity check.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusInProgress:
		return 1
	case StatusCompleted, StatusFailed:
		return 2
	default:
		return -1
	}
}

// Artifact is an immutable record of one step's output. Artifacts are
// appended in execution order and never removed or reordered.
type Artifact struct {
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
	Step      string         `json:"step"`
	Timestamp time.Time      `json:"timestamp"`
}

// ErrorRecord captures a recovered step failure. The raw cause is kept
// here for diagnostics; callers see only the redacted message and kind.
type ErrorRecord struct {
	Kind      string         `json:"kind"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
	Step      string         `json:"step"`
	Timestamp time.Time      `json:"timestamp"`
}

// State is the accumulating context for a single workflow run.
//
// Exactly one State exists per run. The engine holds exclusive mutable
// access for the run's lifetime; step handlers receive it by reference
// and must not retain it past their own invocation. State is not safe
// for concurrent use — the engine serializes access per session id.
type State struct {
	SessionID uuid.UUID `json:"session_id"`
	UserID    uuid.UUID `json:"user_id,omitempty"`
	OrgID     uuid.UUID `json:"org_id"`

	Message     string         `json:"message"`
	Attachments []string       `json:"attachments,omitempty"`
	Context     map[string]any `json:"context,omitempty"`

	Intent   string         `json:"intent,omitempty"`
	Entities map[string]any `json:"entities,omitempty"`

	CurrentStep string            `json:"current_step,omitempty"`
	StepStatus  map[string]Status `json:"step_status"`

	Artifacts []Artifact    `json:"artifacts"`
	Errors    []ErrorRecord `json:"errors"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewState creates a run state for the given organization.
// A fresh session id is generated when none is supplied.
func NewState(orgID uuid.UUID, sessionID uuid.UUID) *State {
	if sessionID == uuid.Nil {
		sessionID = uuid.New()
	}
	now := time.Now()
	return &State{
		SessionID:  sessionID,
		OrgID:      orgID,
		Entities:   make(map[string]any),
		StepStatus: make(map[string]Status),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (s *State) touch() {
	s.UpdatedAt = time.Now()
}

// SetIntent records the classified intent and extracted entities.
func (s *State) SetIntent(intent string, entities map[string]any) {
	s.Intent = intent
	if entities != nil {
		s.Entities = entities
	}
	s.touch()
}

// SetCurrentStep marks the step whose handler is executing.
func (s *State) SetCurrentStep(step string) {
	s.CurrentStep = step
	s.touch()
}

// SetStatus records a step's status. Regressions are ignored so that
// the pending -> in_progress -> completed/failed progression holds no
// matter how handlers call it.
func (s *State) SetStatus(step string, status Status) {
	if cur, ok := s.StepStatus[step]; ok && status.rank() < cur.rank() {
		return
	}
	s.StepStatus[step] = status
	s.touch()
}

// AddArtifact appends a step output tagged with the current step.
func (s *State) AddArtifact(artifactType string, data map[string]any) {
	s.Artifacts = append(s.Artifacts, Artifact{
		Type:      artifactType,
		Data:      data,
		Step:      s.CurrentStep,
		Timestamp: time.Now(),
	})
	s.touch()
}

// AddError appends an error record tagged with the current step.
func (s *State) AddError(kind, message string, errCtx map[string]any) {
	s.Errors = append(s.Errors, ErrorRecord{
		Kind:      kind,
		Message:   message,
		Context:   errCtx,
		Step:      s.CurrentStep,
		Timestamp: time.Now(),
	})
	s.touch()
}

// LatestArtifact returns the most recent artifact of the given type,
// or nil if the run has produced none.
func (s *State) LatestArtifact(artifactType string) *Artifact {
	for i := len(s.Artifacts) - 1; i >= 0; i-- {
		if s.Artifacts[i].Type == artifactType {
			return &s.Artifacts[i]
		}
	}
	return nil
}

// LastArtifact returns the newest artifact regardless of type.
func (s *State) LastArtifact() *Artifact {
	if len(s.Artifacts) == 0 {
		return nil
	}
	return &s.Artifacts[len(s.Artifacts)-1]
}

// ArtifactsByType returns all artifacts of a type in append order.
func (s *State) ArtifactsByType(artifactType string) []Artifact {
	var out []Artifact
	for _, a := range s.Artifacts {
		if a.Type == artifactType {
			out = append(out, a)
		}
	}
	return out
}

// Failed reports whether any step recorded an error.
func (s *State) Failed() bool {
	return len(s.Errors) > 0
}
