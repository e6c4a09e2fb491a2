package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/caflow/caflow/workflow/emit"
)

// Invoker calls agents with a recovery boundary so a panicking step
// degrades into a failed output instead of tearing down the run.
type Invoker struct {
	emitter emit.Emitter
}

// NewInvoker returns an Invoker. A nil emitter disables event output.
func NewInvoker(emitter emit.Emitter) *Invoker {
	if emitter == nil {
		emitter = emit.NewNullEmitter()
	}
	return &Invoker{emitter: emitter}
}

// Invoke executes the agent and normalizes its result. Panics and
// errors both yield {"success": false, "error": msg} alongside the
// original error; a successful output is guaranteed to carry
// "success": true unless the agent set it false itself.
func (iv *Invoker) Invoke(ctx context.Context, a Agent, runID string, step int, in Input) (out Output, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent %s panicked: %v", a.Name(), r)
			out = Output{"success": false, "error": err.Error()}
			iv.emitter.Emit(emit.Event{
				RunID:  runID,
				Step:   step,
				NodeID: a.Name(),
				Msg:    "agent_panic",
				Meta:   map[string]any{"error": fmt.Sprint(r)},
			})
		}
	}()

	out, err = a.Execute(ctx, in)
	elapsed := time.Since(start)
	if err != nil {
		iv.emitter.Emit(emit.Event{
			RunID:  runID,
			Step:   step,
			NodeID: a.Name(),
			Msg:    "agent_failed",
			Meta:   map[string]any{"error": err.Error(), "duration_ms": elapsed.Milliseconds()},
		})
		return Output{"success": false, "error": err.Error()}, err
	}
	if out == nil {
		out = Output{}
	}
	if _, ok := out["success"]; !ok {
		out["success"] = true
	}
	iv.emitter.Emit(emit.Event{
		RunID:  runID,
		Step:   step,
		NodeID: a.Name(),
		Msg:    "agent_completed",
		Meta:   map[string]any{"duration_ms": elapsed.Milliseconds()},
	})
	return out, nil
}
