package store

import (
	"context"
	"errors"
	"testing"
)

type runState struct {
	Intent string
	Count  int
}

func TestMemStore(t *testing.T) {
	ctx := context.Background()
	ms := NewMemStore[runState]()

	t.Run("empty run", func(t *testing.T) {
		_, _, err := ms.LoadLatest(ctx, "missing")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		steps, err := ms.Steps(ctx, "missing")
		if err != nil || len(steps) != 0 {
			t.Errorf("Steps = %v, %v", steps, err)
		}
	})

	t.Run("save and load latest", func(t *testing.T) {
		if err := ms.SaveStep(ctx, "run-1", 1, "intent_classification", runState{Intent: "tax_gst", Count: 1}); err != nil {
			t.Fatal(err)
		}
		if err := ms.SaveStep(ctx, "run-1", 2, "gst_processing", runState{Intent: "tax_gst", Count: 2}); err != nil {
			t.Fatal(err)
		}

		state, step, err := ms.LoadLatest(ctx, "run-1")
		if err != nil {
			t.Fatalf("LoadLatest: %v", err)
		}
		if step != 2 || state.Count != 2 {
			t.Errorf("latest = step %d state %+v", step, state)
		}
	})

	t.Run("history in save order", func(t *testing.T) {
		steps, err := ms.Steps(ctx, "run-1")
		if err != nil {
			t.Fatalf("Steps: %v", err)
		}
		if len(steps) != 2 {
			t.Fatalf("steps = %d, want 2", len(steps))
		}
		if steps[0].NodeID != "intent_classification" || steps[1].NodeID != "gst_processing" {
			t.Errorf("history order wrong: %+v", steps)
		}
	})

	t.Run("runs are isolated", func(t *testing.T) {
		if err := ms.SaveStep(ctx, "run-2", 1, "advisory", runState{Intent: "advisory"}); err != nil {
			t.Fatal(err)
		}
		state, _, err := ms.LoadLatest(ctx, "run-2")
		if err != nil {
			t.Fatalf("LoadLatest: %v", err)
		}
		if state.Intent != "advisory" {
			t.Errorf("state = %+v", state)
		}
		steps, _ := ms.Steps(ctx, "run-1")
		if len(steps) != 2 {
			t.Errorf("run-1 history changed: %d", len(steps))
		}
	})

	t.Run("out of order saves", func(t *testing.T) {
		ms := NewMemStore[runState]()
		ms.SaveStep(ctx, "run-3", 2, "b", runState{Count: 2})
		ms.SaveStep(ctx, "run-3", 1, "a", runState{Count: 1})
		_, step, err := ms.LoadLatest(ctx, "run-3")
		if err != nil || step != 2 {
			t.Errorf("latest step = %d, %v, want 2", step, err)
		}
	})
}
