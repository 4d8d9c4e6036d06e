package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/petermattis/goid"

	"github.com/StitchDesign/Stitch-sub007/internal/eval"
	"github.com/StitchDesign/Stitch-sub007/internal/graph"
	"github.com/StitchDesign/Stitch-sub007/internal/store"
	"github.com/StitchDesign/Stitch-sub007/internal/value"
)

// DefaultFrameRate is the simulated frames per second.
const DefaultFrameRate = 60

// TraceSink receives a record of every evaluation and skip. Sink errors
// are logged and never interrupt a step.
type TraceSink interface {
	RecordEvaluation(store.Evaluation) error
	RecordSkip(store.Skip) error
}

// StepReport summarizes one step.
type StepReport struct {
	Frame int64
	Time  float64

	// Evaluated lists nodes in evaluation order.
	Evaluated []graph.NodeID

	// Skipped lists the conditions absorbed during the step.
	Skipped []*RuntimeError

	// Rescheduled lists impure nodes dirtied for the next step.
	Rescheduled []graph.NodeID
}

// Engine schedules and evaluates a patch graph one simulated frame at a
// time.
//
// The engine is a single actor: Step, topology edits and state updates
// must all happen on one goroutine. Other goroutines submit work with
// Enqueue and let Run apply it between steps.
//
// Thread-safety model:
//   - Enqueue, Stop: safe from any goroutine
//   - Run: called from exactly one goroutine, which becomes the actor
//   - everything else: actor only
//
// A node is evaluated at most once per step, after every node feeding it.
// Nodes in a cycle are skipped, logged and retried on the next step.
type Engine struct {
	graph      *graph.Graph
	registry   *eval.Registry
	dispatcher *eval.Dispatcher
	clock      *Clock
	queue      *requestQueue

	frameRate   float64
	policy      value.Policy
	budgetLimit int
	budgets     map[graph.NodeID]*RunAgainBudget
	cycles      *CycleTracker

	dirty mapset.Set[graph.NodeID]
	trace TraceSink
	seq   int64

	logger     *slog.Logger
	checkActor bool
	actor      int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithFrameRate sets the simulated frame rate. Non-positive rates are
// ignored.
func WithFrameRate(fps float64) Option {
	return func(e *Engine) {
		if fps > 0 {
			e.frameRate = fps
		}
	}
}

// WithRunAgainBudget sets how many consecutive frames an impure node may
// ask to run again. Zero disables the limit.
//
// Default: 10000 frames (DefaultRunAgainBudget)
func WithRunAgainBudget(frames int) Option {
	return func(e *Engine) {
		e.budgetLimit = frames
	}
}

// WithStrictValues makes variant mismatches panic instead of falling back
// to defaults. The panic value is a *RuntimeError with code
// VARIANT_MISMATCH naming the node.
func WithStrictValues() Option {
	return func(e *Engine) {
		e.policy = value.Strict
	}
}

// WithTraceSink records every evaluation and skip to sink.
func WithTraceSink(sink TraceSink) Option {
	return func(e *Engine) {
		e.trace = sink
	}
}

// WithLogger sets the logger for the engine and its evaluators.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithClock starts the engine at a pre-configured clock. Replay uses it
// to resume a recorded run.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithSingleActorCheck makes the engine panic when it is driven from more
// than one goroutine. Use in development and tests.
func WithSingleActorCheck() Option {
	return func(e *Engine) {
		e.checkActor = true
	}
}

// New creates an engine over g evaluating node kinds from registry.
func New(g *graph.Graph, registry *eval.Registry, opts ...Option) *Engine {
	e := &Engine{
		graph:       g,
		registry:    registry,
		dispatcher:  eval.NewDispatcher(),
		clock:       NewClock(),
		queue:       newRequestQueue(),
		frameRate:   DefaultFrameRate,
		budgetLimit: DefaultRunAgainBudget,
		budgets:     make(map[graph.NodeID]*RunAgainBudget),
		cycles:      NewCycleTracker(DefaultStarvationThreshold),
		dirty:       mapset.NewThreadUnsafeSet[graph.NodeID](),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Graph returns the graph the engine evaluates. Edits made directly on it
// bypass dirty tracking.
func (e *Engine) Graph() *graph.Graph { return e.graph }

// Registry returns the node kind registry.
func (e *Engine) Registry() *eval.Registry { return e.registry }

// FrameRate returns the simulated frame rate.
func (e *Engine) FrameRate() float64 { return e.frameRate }

// Frame returns the frame of the last step.
func (e *Engine) Frame() int64 { return e.clock.Current() }

// NextFrameTime returns the simulated time of the next step. Pulses meant
// to fire on the next step carry this time.
func (e *Engine) NextFrameTime() float64 {
	return float64(e.clock.Current()+1) / e.frameRate
}

// HasWork reports whether any node is dirty.
func (e *Engine) HasWork() bool {
	e.assertActor()
	return e.dirty.Cardinality() > 0
}

// Dirty returns the dirty nodes sorted by id.
func (e *Engine) Dirty() []graph.NodeID {
	e.assertActor()
	out := e.dirty.ToSlice()
	slices.Sort(out)
	return out
}

// =============================================================================
// Topology and input edits
// =============================================================================

// AddNode creates a node of a registered kind and marks it dirty. typ
// value.KindAny selects the kind's default type.
func (e *Engine) AddNode(kind string, typ value.Kind, inputs int) (graph.NodeID, error) {
	e.assertActor()
	def, ok := e.registry.Lookup(kind)
	if !ok {
		return "", NewUnknownKindError("", kind)
	}
	spec, err := def.Spec(typ, inputs)
	if err != nil {
		return "", fmt.Errorf("add node: %w", err)
	}
	id, err := e.graph.AddNode(spec)
	if err != nil {
		return "", fmt.Errorf("add node: %w", err)
	}
	e.dirty.Add(id)
	e.logger.Debug("node added", "node_id", id, "kind", kind, "inputs", len(spec.Inputs))
	return id, nil
}

// RemoveNode deletes a node and its connections. Inputs it fed keep their
// last values as literals; each is logged as a missing reference.
func (e *Engine) RemoveNode(id graph.NodeID) error {
	e.assertActor()
	n, ok := e.graph.Node(id)
	if !ok {
		return NewMissingReferenceError(id, "node does not exist")
	}
	var orphaned []graph.InputRef
	for o, outs := 0, n.NumOutputs(); o < outs; o++ {
		orphaned = append(orphaned, e.graph.Downstream(graph.OutputRef{Node: id, Index: o})...)
	}
	if err := e.graph.RemoveNode(id); err != nil {
		return fmt.Errorf("remove node: %w", err)
	}
	e.forget(id)
	e.dirty.Remove(id)

	for _, in := range orphaned {
		e.logger.Warn("upstream removed; input keeps last value",
			"node_id", in.Node,
			"port", in.Index,
			"upstream", id,
			"code", ErrCodeMissingReference)
	}
	return nil
}

// Connect feeds an input from an output and marks the input's node dirty.
func (e *Engine) Connect(from graph.OutputRef, to graph.InputRef) error {
	e.assertActor()
	if err := e.graph.Connect(from, to); err != nil {
		return err
	}
	e.dirty.Add(to.Node)
	return nil
}

// Disconnect removes the connection feeding an input. The input keeps its
// last value; its node is marked dirty if a connection existed.
func (e *Engine) Disconnect(to graph.InputRef) error {
	e.assertActor()
	removed, err := e.graph.Disconnect(to)
	if err != nil {
		return err
	}
	if removed {
		e.dirty.Add(to.Node)
	}
	return nil
}

// SetInput writes a literal loop to an unconnected input and marks its
// node dirty.
func (e *Engine) SetInput(ref graph.InputRef, l value.Loop) error {
	e.assertActor()
	if err := e.graph.SetLiteral(ref, l); err != nil {
		return fmt.Errorf("set input %s: %w", ref, err)
	}
	e.dirty.Add(ref.Node)
	return nil
}

// MarkDirty schedules nodes for the next step. The dirty set is a union:
// marking a node more than once still evaluates it once. Unknown ids are
// accepted here and reported as missing references when the step runs.
func (e *Engine) MarkDirty(ids ...graph.NodeID) {
	e.assertActor()
	e.dirty.Append(ids...)
}

// UpdateState replaces a node's ephemeral state with fn(current) and marks
// the node dirty. Gestures reach interaction nodes this way.
func (e *Engine) UpdateState(id graph.NodeID, fn func(eval.State) eval.State) error {
	e.assertActor()
	if _, ok := e.graph.Node(id); !ok {
		return NewMissingReferenceError(id, "node does not exist")
	}
	e.dispatcher.Update(id, fn)
	e.dirty.Add(id)
	return nil
}

// State returns a node's ephemeral state.
func (e *Engine) State(id graph.NodeID) (eval.State, bool) {
	e.assertActor()
	return e.dispatcher.State(id)
}

// Output returns a copy of an output loop.
func (e *Engine) Output(id graph.NodeID, index int) (value.Loop, error) {
	e.assertActor()
	return e.graph.Resolve(graph.OutputRef{Node: id, Index: index})
}

// Input returns a copy of an input loop.
func (e *Engine) Input(id graph.NodeID, index int) (value.Loop, error) {
	e.assertActor()
	n, ok := e.graph.Node(id)
	if !ok {
		return nil, NewMissingReferenceError(id, "node does not exist")
	}
	if index < 0 || index >= n.NumInputs() {
		return nil, NewMissingReferenceError(id, fmt.Sprintf("input %d does not exist", index))
	}
	return n.Input(index), nil
}

// Restart discards every node's ephemeral state and marks every node
// dirty, as when a prototype restarts. The clock keeps running. Calling
// Restart twice in a row is the same as calling it once.
func (e *Engine) Restart() {
	e.assertActor()
	e.dispatcher.ResetAll()
	clear(e.budgets)
	e.cycles.ClearAll()
	for _, n := range e.graph.Nodes() {
		e.dirty.Add(n.ID())
	}
	e.logger.Info("prototype restarted", "frame", e.clock.Current(), "nodes", e.graph.Len())
}

func (e *Engine) forget(id graph.NodeID) {
	e.dispatcher.Reset(id)
	delete(e.budgets, id)
	e.cycles.Clear(id)
}

// =============================================================================
// Step
// =============================================================================

// Step advances the clock by one frame and evaluates the dirty nodes and
// everything downstream of them.
//
// A downstream node only evaluates when one of its inputs actually
// changed. Conditions such as cycles, missing nodes and exhausted budgets
// are logged, reported and recorded to the trace; Step never fails.
func (e *Engine) Step() StepReport {
	e.assertActor()
	frame := e.clock.Next()
	report := StepReport{Frame: frame, Time: float64(frame) / e.frameRate}

	seeds := e.dirty.ToSlice()
	slices.Sort(seeds)
	e.dirty = mapset.NewThreadUnsafeSet[graph.NodeID]()

	live := make([]graph.NodeID, 0, len(seeds))
	for _, id := range seeds {
		if _, ok := e.graph.Node(id); !ok {
			e.skip(&report, NewMissingReferenceError(id, "dirty node does not exist"))
			continue
		}
		live = append(live, id)
	}

	plan := e.graph.Plan(live)
	for _, c := range plan.Cycles {
		for _, id := range c.Nodes {
			e.dirty.Add(id)
			e.skip(&report, NewCycleError(id, c))
			if e.cycles.Skip(id) {
				e.logger.Warn("node starved by cycle",
					"node_id", id,
					"frame", frame,
					"steps", e.cycles.Skips(id))
			}
		}
	}

	ctx := eval.Context{
		Frame:     frame,
		Time:      report.Time,
		FrameRate: e.frameRate,
		Policy:    e.policy,
		Logger:    e.logger,
	}
	seedSet := mapset.NewThreadUnsafeSet(live...)
	changed := mapset.NewThreadUnsafeSet[graph.NodeID]()

	for _, id := range plan.Order {
		if !seedSet.Contains(id) && !changed.Contains(id) {
			continue
		}
		e.cycles.Clear(id)
		node, _ := e.graph.Node(id)
		def, ok := e.registry.Lookup(node.Kind())
		if !ok {
			e.skip(&report, NewUnknownKindError(id, node.Kind()))
			continue
		}

		res := e.evaluate(ctx, node, def)
		report.Evaluated = append(report.Evaluated, id)

		for o, out := range res.Outputs {
			if out.Equal(node.Output(o)) {
				continue
			}
			targets, err := e.graph.SetOutput(graph.OutputRef{Node: id, Index: o}, out)
			if err != nil {
				e.logger.Error("output write failed", "node_id", id, "output", o, "error", err)
				continue
			}
			for _, t := range targets {
				changed.Add(t.Node)
			}
		}

		if def.EvalKind() == graph.Impure {
			e.reschedule(&report, id, node.Kind(), res.RunAgain)
		}
		e.recordEvaluation(frame, report.Time, node, res)
	}

	e.logger.Debug("step complete",
		"frame", frame,
		"evaluated", len(report.Evaluated),
		"skipped", len(report.Skipped),
		"rescheduled", len(report.Rescheduled))
	return report
}

// evaluate runs the dispatcher. Under strict values a variant mismatch
// panic is re-raised as a RuntimeError naming the node.
func (e *Engine) evaluate(ctx eval.Context, node *graph.Node, def eval.Definition) eval.Result {
	if e.policy == value.Strict {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			var mismatch *value.MismatchError
			if err, ok := r.(error); ok && errors.As(err, &mismatch) {
				panic(&RuntimeError{
					Code:    ErrCodeVariantMismatch,
					Message: mismatch.Error(),
					Node:    node.ID(),
					Kind:    node.Kind(),
					Details: map[string]string{
						"frame": fmt.Sprintf("%d", ctx.Frame),
						"want":  mismatch.Want.String(),
					},
				})
			}
			panic(r)
		}()
	}
	return e.dispatcher.Evaluate(ctx, node, def)
}

// reschedule applies an impure node's run-again request against its
// budget.
func (e *Engine) reschedule(report *StepReport, id graph.NodeID, kind string, runAgain bool) {
	b, ok := e.budgets[id]
	if !ok {
		b = NewRunAgainBudget(e.budgetLimit)
		e.budgets[id] = b
	}
	if !runAgain {
		b.Reset()
		return
	}
	if err := b.Check(id, kind); err != nil {
		b.Reset()
		e.skip(report, err.(*RuntimeError))
		return
	}
	e.dirty.Add(id)
	report.Rescheduled = append(report.Rescheduled, id)
}

// skip logs an absorbed condition, adds it to the report and records it.
func (e *Engine) skip(report *StepReport, err *RuntimeError) {
	report.Skipped = append(report.Skipped, err)
	e.logger.Warn("node skipped",
		"node_id", err.Node,
		"kind", err.Kind,
		"frame", report.Frame,
		"code", err.Code,
		"error", err.Message)
	if e.trace == nil {
		return
	}
	if terr := e.trace.RecordSkip(store.Skip{
		Frame:  report.Frame,
		NodeID: string(err.Node),
		Code:   string(err.Code),
		Detail: err.Message,
	}); terr != nil {
		e.logger.Error("trace write failed", "node_id", err.Node, "error", terr)
	}
}

func (e *Engine) recordEvaluation(frame int64, t float64, node *graph.Node, res eval.Result) {
	if e.trace == nil {
		return
	}
	outputs, err := store.EncodeOutputs(res.Outputs)
	if err != nil {
		e.logger.Error("trace encode failed", "node_id", node.ID(), "error", err)
		return
	}
	e.seq++
	if err := e.trace.RecordEvaluation(store.Evaluation{
		Seq:      e.seq,
		Frame:    frame,
		Time:     t,
		NodeID:   string(node.ID()),
		Kind:     node.Kind(),
		Outputs:  outputs,
		RunAgain: res.RunAgain,
	}); err != nil {
		e.logger.Error("trace write failed", "node_id", node.ID(), "error", err)
	}
}

// =============================================================================
// Actor loop
// =============================================================================

// Enqueue submits a request for the Run loop to apply between steps.
// Thread-safe: may be called from any goroutine.
//
// Returns false if the engine has been stopped.
func (e *Engine) Enqueue(r Request) bool {
	return e.queue.Enqueue(r)
}

// Run drives the engine in real time: requests are applied as they
// arrive and a step runs on every frame tick that has work. Blocks until
// ctx is cancelled or Stop is called.
//
// CRITICAL: Must be called from exactly ONE goroutine.
//
// ERROR HANDLING: a request that fails is logged and dropped; the loop
// keeps running.
func (e *Engine) Run(ctx context.Context) error {
	e.assertActor()
	e.logger.Info("engine starting", "frame_rate", e.frameRate)

	ticker := time.NewTicker(time.Duration(float64(time.Second) / e.frameRate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			e.applyPending()
			if e.queue.Closed() {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}

		case <-ticker.C:
			e.applyPending()
			if e.HasWork() {
				e.Step()
			}
		}
	}
}

// Stop closes the request queue, which makes Run return.
func (e *Engine) Stop() {
	e.queue.Close()
}

func (e *Engine) applyPending() {
	for _, r := range e.queue.Drain() {
		if err := e.Apply(r); err != nil {
			e.logger.Warn("request failed",
				"type", r.Type.String(),
				"node_id", r.Node,
				"port", r.Port,
				"error", err)
		}
	}
}

// Apply performs a request immediately. Run calls it for queued requests;
// synchronous drivers may call it directly.
func (e *Engine) Apply(r Request) error {
	switch r.Type {
	case RequestMarkDirty:
		e.MarkDirty(r.Node)
		return nil
	case RequestSetInput:
		return e.SetInput(graph.InputRef{Node: r.Node, Index: r.Port}, r.Value)
	case RequestGesture:
		if r.Update == nil {
			return fmt.Errorf("gesture request for %s has no update", r.Node)
		}
		return e.UpdateState(r.Node, r.Update)
	case RequestRestart:
		e.Restart()
		return nil
	default:
		return fmt.Errorf("unknown request type: %d", r.Type)
	}
}

// assertActor panics when the single actor check is on and the caller is
// not the goroutine that first used the engine.
func (e *Engine) assertActor() {
	if !e.checkActor {
		return
	}
	id := goid.Get()
	if e.actor == 0 {
		e.actor = id
		return
	}
	if id != e.actor {
		panic(fmt.Sprintf("engine used from goroutine %d; owned by goroutine %d", id, e.actor))
	}
}
