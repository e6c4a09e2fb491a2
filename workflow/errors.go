package workflow

// Error codes used across the engine. Step-level failures are recovered
// into state; only routing configuration faults and the loop bound abort
// a run outright.
const (
	CodeValidation        = "VALIDATION"
	CodeStepExecution     = "STEP_EXECUTION"
	CodeRouting           = "ROUTING"
	CodeLoopBoundExceeded = "LOOP_BOUND_EXCEEDED"
)

// EngineError is a structured error from engine operations.
type EngineError struct {
	Message string
	Code    string
	Node    string
}

func (e *EngineError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// IsLoopBound reports whether err is a loop-bound abort, letting callers
// distinguish "business logic failed" from "the graph could not converge".
func IsLoopBound(err error) bool {
	ee, ok := err.(*EngineError)
	return ok && ee.Code == CodeLoopBoundExceeded
}
