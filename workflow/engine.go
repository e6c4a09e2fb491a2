package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/caflow/caflow/workflow/emit"
	"github.com/caflow/caflow/workflow/store"
)

// Options configures engine execution behavior.
type Options struct {
	// MaxSteps caps the total number of node executions in one run.
	// Guards against misconfigured graphs; default 50.
	MaxSteps int

	// MaxNodeVisits caps how many times a single node may be entered in
	// one run. This bounds the reconcile/repost cycle: exceeding it
	// aborts the run with LOOP_BOUND_EXCEEDED. Default 5.
	MaxNodeVisits int
}

const (
	defaultMaxSteps      = 50
	defaultMaxNodeVisits = 5
)

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithStore sets the persistence backend for per-step run state.
func WithStore(st store.Store[*State]) Option {
	return func(e *Engine) { e.store = st }
}

// WithEmitter sets the observability event receiver.
func WithEmitter(em emit.Emitter) Option {
	return func(e *Engine) { e.emitter = em }
}

// WithMetrics sets the Prometheus metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithMaxSteps overrides the total step cap.
func WithMaxSteps(n int) Option {
	return func(e *Engine) { e.opts.MaxSteps = n }
}

// WithMaxNodeVisits overrides the per-node revisit cap.
func WithMaxNodeVisits(n int) Option {
	return func(e *Engine) { e.opts.MaxNodeVisits = n }
}

// Engine interprets a fixed workflow graph: a node table mapping names
// to handlers and an edge table mapping names to successors.
//
// Execution is a sequential loop: resolve the current node, run its
// handler against the single run-owned State, resolve the outgoing
// edge, advance. The loop stops at the Terminal marker, on the first
// handler failure (partial state is returned, never retried), or when
// the loop bound trips.
//
// Distinct sessions may run concurrently; runs sharing a session id are
// serialized, because State mutation is accumulative and unsafe under
// concurrent writers.
type Engine struct {
	mu    sync.RWMutex
	nodes map[string]Handler
	edges map[string]Edge
	start string

	store   store.Store[*State]
	emitter emit.Emitter
	metrics *Metrics
	opts    Options

	sessionMu sync.Mutex
	sessions  map[uuid.UUID]*sessionLock
}

// sessionLock serializes runs sharing a session id. Refcounting lets
// the engine drop the entry once no run holds or waits on it, so the
// session map does not grow with every id ever seen.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// New creates an engine with the given options. Zero-value options get
// defaults; a nil emitter means no events are emitted.
func New(opts ...Option) *Engine {
	e := &Engine{
		nodes:    make(map[string]Handler),
		edges:    make(map[string]Edge),
		sessions: make(map[uuid.UUID]*sessionLock),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.opts.MaxSteps <= 0 {
		e.opts.MaxSteps = defaultMaxSteps
	}
	if e.opts.MaxNodeVisits <= 0 {
		e.opts.MaxNodeVisits = defaultMaxNodeVisits
	}
	return e
}

// Add registers a node. Names must be unique and non-empty.
func (e *Engine) Add(name string, h Handler) error {
	if name == "" || name == Terminal {
		return &EngineError{Message: "invalid node name: " + name, Code: CodeRouting}
	}
	if h == nil {
		return &EngineError{Message: "nil handler for node: " + name, Code: CodeRouting}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.nodes[name]; exists {
		return &EngineError{Message: "duplicate node: " + name, Code: CodeRouting}
	}
	e.nodes[name] = h
	return nil
}

// Connect sets an unconditional edge from one node to a successor
// (or to Terminal).
func (e *Engine) Connect(from, to string) error {
	return e.setEdge(from, Edge{To: to})
}

// Route sets a conditional edge: after from completes, router produces
// a key resolved through targets. An unresolved key falls back to
// defaultTo when non-empty, otherwise the run aborts with a routing
// configuration fault.
func (e *Engine) Route(from string, router Router, targets map[string]string, defaultTo string) error {
	if router == nil {
		return &EngineError{Message: "nil router for node: " + from, Code: CodeRouting}
	}
	return e.setEdge(from, Edge{Route: router, Targets: targets, Default: defaultTo})
}

func (e *Engine) setEdge(from string, edge Edge) error {
	if from == "" {
		return &EngineError{Message: "edge source cannot be empty", Code: CodeRouting}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.edges[from] = edge
	return nil
}

// StartAt sets the entry node. The node must already be registered.
func (e *Engine) StartAt(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.nodes[name]; !exists {
		return &EngineError{Message: "start node does not exist: " + name, Code: CodeRouting}
	}
	e.start = name
	return nil
}

// acquireSession blocks until the caller owns the session's lock.
func (e *Engine) acquireSession(id uuid.UUID) *sessionLock {
	e.sessionMu.Lock()
	lk, ok := e.sessions[id]
	if !ok {
		lk = &sessionLock{}
		e.sessions[id] = lk
	}
	lk.refs++
	e.sessionMu.Unlock()

	lk.mu.Lock()
	return lk
}

// releaseSession unlocks and drops the map entry once the last holder
// or waiter is gone.
func (e *Engine) releaseSession(id uuid.UUID, lk *sessionLock) {
	lk.mu.Unlock()
	e.sessionMu.Lock()
	lk.refs--
	if lk.refs == 0 {
		delete(e.sessions, id)
	}
	e.sessionMu.Unlock()
}

// Run executes the workflow over st from the configured entry node.
//
// Step failures are recovered: the error is recorded in state, the step
// is marked failed, and Run returns the partial state with a nil error.
// A non-nil error is returned only for configuration faults (unresolved
// routing) and the loop bound — conditions where the graph itself could
// not converge. In both cases the partial state accumulated so far is
// returned alongside the error.
func (e *Engine) Run(ctx context.Context, st *State) (*State, error) {
	e.mu.RLock()
	start := e.start
	e.mu.RUnlock()
	if start == "" {
		return st, &EngineError{Message: "start node not set", Code: CodeRouting}
	}

	lk := e.acquireSession(st.SessionID)
	defer e.releaseSession(st.SessionID, lk)

	if e.metrics != nil {
		e.metrics.runStarted()
		defer e.metrics.runFinished()
	}

	current := start
	step := 0
	visits := make(map[string]int)

	for {
		step++
		visits[current]++
		if step > e.opts.MaxSteps || visits[current] > e.opts.MaxNodeVisits {
			if e.metrics != nil {
				e.metrics.loopAbort(current)
			}
			e.emit(st, step, current, "loop bound exceeded", nil)
			return st, &EngineError{
				Message: "workflow did not converge at node " + current,
				Code:    CodeLoopBoundExceeded,
				Node:    current,
			}
		}

		select {
		case <-ctx.Done():
			return st, ctx.Err()
		default:
		}

		e.mu.RLock()
		handler, ok := e.nodes[current]
		edge, hasEdge := e.edges[current]
		e.mu.RUnlock()
		if !ok {
			return st, &EngineError{Message: "unknown node: " + current, Code: CodeRouting, Node: current}
		}

		st.SetCurrentStep(current)
		st.SetStatus(current, StatusInProgress)
		e.emit(st, step, current, "node_start", nil)

		began := time.Now()
		err := handler(ctx, st)
		elapsed := time.Since(began)

		if err != nil {
			kind := errorKind(err)
			st.AddError(kind, err.Error(), map[string]any{"node": current})
			st.SetStatus(current, StatusFailed)
			if e.metrics != nil {
				e.metrics.stepObserved(current, "error", elapsed)
			}
			e.emit(st, step, current, "node_failed", map[string]any{
				"kind":        kind,
				"duration_ms": elapsed.Milliseconds(),
			})
			e.save(ctx, st, step, current)
			// No automatic retry: the partial state is the result.
			return st, nil
		}

		st.SetStatus(current, StatusCompleted)
		if e.metrics != nil {
			e.metrics.stepObserved(current, "success", elapsed)
		}
		e.emit(st, step, current, "node_completed", map[string]any{
			"duration_ms": elapsed.Milliseconds(),
		})
		e.save(ctx, st, step, current)

		if !hasEdge {
			return st, &EngineError{Message: "no edge configured for node: " + current, Code: CodeRouting, Node: current}
		}
		next, resolved := edge.resolve(st)
		if !resolved {
			return st, &EngineError{Message: "unresolved route from node: " + current, Code: CodeRouting, Node: current}
		}
		if next == Terminal {
			return st, nil
		}
		current = next
	}
}

func (e *Engine) emit(st *State, step int, node, msg string, meta map[string]any) {
	if e.emitter == nil {
		return
	}
	e.emitter.Emit(emit.Event{
		RunID:  st.SessionID.String(),
		Step:   step,
		NodeID: node,
		Msg:    msg,
		Meta:   meta,
	})
}

func (e *Engine) save(ctx context.Context, st *State, step int, node string) {
	if e.store == nil {
		return
	}
	// Persistence failures are reported, not fatal: the in-memory state
	// remains authoritative for the rest of the run.
	if err := e.store.SaveStep(ctx, st.SessionID.String(), step, node, st); err != nil {
		e.emit(st, step, node, "store_error", map[string]any{"error": err.Error()})
	}
}

// kinder lets step implementations tag their errors with a taxonomy
// kind (e.g. VALIDATION) without this package importing them.
type kinder interface{ Kind() string }

func errorKind(err error) string {
	var k kinder
	if errors.As(err, &k) {
		return k.Kind()
	}
	return CodeStepExecution
}
