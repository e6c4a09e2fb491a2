package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/caflow/caflow/workflow/emit"
	"github.com/caflow/caflow/workflow/store"
)

// captureEmitter records events for assertions.
type captureEmitter struct {
	mu     sync.Mutex
	events []emit.Event
}

func (c *captureEmitter) Emit(e emit.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *captureEmitter) byMsg(msg string) []emit.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []emit.Event
	for _, e := range c.events {
		if e.Msg == msg {
			out = append(out, e)
		}
	}
	return out
}

// recordStep returns a handler that appends an artifact naming the step.
func recordStep(name string) Handler {
	return func(_ context.Context, st *State) error {
		st.AddArtifact(name+"_result", map[string]any{"step": name})
		return nil
	}
}

func newTestState() *State {
	return NewState(uuid.New(), uuid.Nil)
}

func TestEngine_LinearRun(t *testing.T) {
	em := &captureEmitter{}
	e := New(WithEmitter(em))

	for _, name := range []string{"first", "second", "third"} {
		if err := e.Add(name, recordStep(name)); err != nil {
			t.Fatalf("Add(%s): %v", name, err)
		}
	}
	if err := e.Connect("first", "second"); err != nil {
		t.Fatal(err)
	}
	if err := e.Connect("second", "third"); err != nil {
		t.Fatal(err)
	}
	if err := e.Connect("third", Terminal); err != nil {
		t.Fatal(err)
	}
	if err := e.StartAt("first"); err != nil {
		t.Fatal(err)
	}

	st, err := e.Run(context.Background(), newTestState())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(st.Artifacts) != 3 {
		t.Fatalf("expected 3 artifacts, got %d", len(st.Artifacts))
	}
	for i, name := range []string{"first", "second", "third"} {
		if st.Artifacts[i].Type != name+"_result" {
			t.Errorf("artifact[%d] = %s, want %s_result", i, st.Artifacts[i].Type, name)
		}
		if st.StepStatus[name] != StatusCompleted {
			t.Errorf("status[%s] = %s, want completed", name, st.StepStatus[name])
		}
	}
	if got := len(em.byMsg("node_completed")); got != 3 {
		t.Errorf("expected 3 node_completed events, got %d", got)
	}
}

func TestEngine_ConditionalRouting(t *testing.T) {
	build := func(intent string) (*Engine, *State) {
		e := New()
		e.Add("classify", func(_ context.Context, st *State) error {
			st.SetIntent(intent, nil)
			return nil
		})
		e.Add("gst", recordStep("gst"))
		e.Add("advisory", recordStep("advisory"))
		e.Route("classify", func(st *State) string { return st.Intent },
			map[string]string{"tax_gst": "gst"}, "advisory")
		e.Connect("gst", Terminal)
		e.Connect("advisory", Terminal)
		e.StartAt("classify")
		return e, newTestState()
	}

	t.Run("matched key", func(t *testing.T) {
		e, st := build("tax_gst")
		final, err := e.Run(context.Background(), st)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if final.LatestArtifact("gst_result") == nil {
			t.Error("expected gst node to run")
		}
	})

	t.Run("unmatched key falls back to default", func(t *testing.T) {
		e, st := build("something_else")
		final, err := e.Run(context.Background(), st)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if final.LatestArtifact("advisory_result") == nil {
			t.Error("expected default route to advisory")
		}
	})
}

func TestEngine_UnresolvedRouteFails(t *testing.T) {
	e := New()
	e.Add("classify", recordStep("classify"))
	e.Add("gst", recordStep("gst"))
	e.Route("classify", func(*State) string { return "nowhere" },
		map[string]string{"tax_gst": "gst"}, "")
	e.StartAt("classify")

	_, err := e.Run(context.Background(), newTestState())
	if err == nil {
		t.Fatal("expected routing error")
	}
	var ee *EngineError
	if !errors.As(err, &ee) || ee.Code != CodeRouting {
		t.Errorf("expected %s error, got %v", CodeRouting, err)
	}
}

func TestEngine_StepFailureReturnsPartialState(t *testing.T) {
	stepErr := errors.New("upstream unavailable")
	e := New()
	e.Add("first", recordStep("first"))
	e.Add("second", func(context.Context, *State) error { return stepErr })
	e.Add("third", recordStep("third"))
	e.Connect("first", "second")
	e.Connect("second", "third")
	e.Connect("third", Terminal)
	e.StartAt("first")

	st, err := e.Run(context.Background(), newTestState())
	if err != nil {
		t.Fatalf("step failure must not surface as run error, got %v", err)
	}
	if !st.Failed() {
		t.Fatal("expected failed state")
	}
	if st.StepStatus["second"] != StatusFailed {
		t.Errorf("status[second] = %s, want failed", st.StepStatus["second"])
	}
	if st.StepStatus["first"] != StatusCompleted {
		t.Errorf("status[first] = %s, want completed", st.StepStatus["first"])
	}
	// The run stops at the failure; third never executes.
	if st.LatestArtifact("third_result") != nil {
		t.Error("node after failure must not run")
	}
	rec := st.Errors[0]
	if rec.Kind != CodeStepExecution || rec.Step != "second" {
		t.Errorf("unexpected error record: %+v", rec)
	}
}

type taggedErr struct{ kind string }

func (e taggedErr) Error() string { return "tagged failure" }
func (e taggedErr) Kind() string  { return e.kind }

func TestEngine_ErrorKindFromTaggedError(t *testing.T) {
	e := New()
	e.Add("only", func(context.Context, *State) error {
		return fmt.Errorf("wrapping: %w", taggedErr{kind: CodeValidation})
	})
	e.Connect("only", Terminal)
	e.StartAt("only")

	st, err := e.Run(context.Background(), newTestState())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(st.Errors) != 1 || st.Errors[0].Kind != CodeValidation {
		t.Errorf("expected kind from wrapped tagged error, got %+v", st.Errors)
	}
}

func TestEngine_LoopBound(t *testing.T) {
	// posting and reconcile ping-pong forever; the node visit cap must
	// abort the run instead of spinning.
	e := New(WithMaxNodeVisits(3))
	e.Add("posting", recordStep("posting"))
	e.Add("reconcile", recordStep("reconcile"))
	e.Connect("posting", "reconcile")
	e.Route("reconcile", func(*State) string { return "adjust" },
		map[string]string{"adjust": "posting"}, "")
	e.StartAt("posting")

	st, err := e.Run(context.Background(), newTestState())
	if err == nil {
		t.Fatal("expected loop bound error")
	}
	if !IsLoopBound(err) {
		t.Errorf("IsLoopBound = false for %v", err)
	}
	// Partial state from the completed iterations is preserved.
	if len(st.Artifacts) == 0 {
		t.Error("expected artifacts from iterations before the abort")
	}
}

func TestEngine_MaxStepsBound(t *testing.T) {
	// A wide self-loop kept legal per-node by a generous visit cap still
	// trips the total step cap.
	e := New(WithMaxSteps(4), WithMaxNodeVisits(100))
	e.Add("spin", recordStep("spin"))
	e.Connect("spin", "spin")
	e.StartAt("spin")

	_, err := e.Run(context.Background(), newTestState())
	if !IsLoopBound(err) {
		t.Fatalf("expected loop bound error, got %v", err)
	}
}

func TestEngine_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := New()
	e.Add("first", func(context.Context, *State) error {
		cancel()
		return nil
	})
	e.Add("second", recordStep("second"))
	e.Connect("first", "second")
	e.Connect("second", Terminal)
	e.StartAt("first")

	_, err := e.Run(ctx, newTestState())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestEngine_ConfigurationErrors(t *testing.T) {
	t.Run("start not set", func(t *testing.T) {
		e := New()
		e.Add("only", recordStep("only"))
		if _, err := e.Run(context.Background(), newTestState()); err == nil {
			t.Error("expected error when start node is unset")
		}
	})

	t.Run("duplicate node", func(t *testing.T) {
		e := New()
		if err := e.Add("dup", recordStep("dup")); err != nil {
			t.Fatal(err)
		}
		if err := e.Add("dup", recordStep("dup")); err == nil {
			t.Error("expected duplicate node error")
		}
	})

	t.Run("terminal is reserved", func(t *testing.T) {
		e := New()
		if err := e.Add(Terminal, recordStep("x")); err == nil {
			t.Error("expected error registering the terminal name")
		}
	})

	t.Run("start must exist", func(t *testing.T) {
		e := New()
		if err := e.StartAt("ghost"); err == nil {
			t.Error("expected error for unknown start node")
		}
	})

	t.Run("missing edge", func(t *testing.T) {
		e := New()
		e.Add("dangling", recordStep("dangling"))
		e.StartAt("dangling")
		_, err := e.Run(context.Background(), newTestState())
		var ee *EngineError
		if !errors.As(err, &ee) || ee.Code != CodeRouting {
			t.Errorf("expected routing error for missing edge, got %v", err)
		}
	})
}

func TestEngine_SessionSerialization(t *testing.T) {
	// Two concurrent runs over the same session id must not interleave
	// state mutation. The handler detects overlap via a shared flag.
	var mu sync.Mutex
	inside := false
	overlapped := false

	e := New()
	e.Add("slow", func(context.Context, *State) error {
		mu.Lock()
		if inside {
			overlapped = true
		}
		inside = true
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		inside = false
		mu.Unlock()
		return nil
	})
	e.Connect("slow", Terminal)
	e.StartAt("slow")

	sid := uuid.New()
	org := uuid.New()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.Run(context.Background(), NewState(org, sid)); err != nil {
				t.Errorf("Run: %v", err)
			}
		}()
	}
	wg.Wait()

	if overlapped {
		t.Error("runs sharing a session id overlapped")
	}
}

func TestEngine_SessionLocksReleased(t *testing.T) {
	// The session lock table must not retain an entry per session id
	// ever seen; finished runs drop theirs.
	e := New()
	e.Add("noop", recordStep("noop"))
	e.Connect("noop", Terminal)
	e.StartAt("noop")

	org := uuid.New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.Run(context.Background(), NewState(org, uuid.New())); err != nil {
				t.Errorf("Run: %v", err)
			}
		}()
	}
	wg.Wait()

	e.sessionMu.Lock()
	remaining := len(e.sessions)
	e.sessionMu.Unlock()
	if remaining != 0 {
		t.Errorf("session locks retained = %d, want 0", remaining)
	}
}

func TestEngine_PersistsSteps(t *testing.T) {
	ms := store.NewMemStore[*State]()
	e := New(WithStore(ms))
	e.Add("first", recordStep("first"))
	e.Add("second", recordStep("second"))
	e.Connect("first", "second")
	e.Connect("second", Terminal)
	e.StartAt("first")

	st := newTestState()
	if _, err := e.Run(context.Background(), st); err != nil {
		t.Fatalf("Run: %v", err)
	}

	steps, err := ms.Steps(context.Background(), st.SessionID.String())
	if err != nil {
		t.Fatalf("Steps: %v", err)
	}
	if len(steps) != 2 {
		t.Fatalf("expected 2 persisted steps, got %d", len(steps))
	}

	latest, step, err := ms.LoadLatest(context.Background(), st.SessionID.String())
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if step != 2 {
		t.Errorf("latest step = %d, want 2", step)
	}
	if len(latest.Artifacts) != 2 {
		t.Errorf("persisted state has %d artifacts, want 2", len(latest.Artifacts))
	}
}
