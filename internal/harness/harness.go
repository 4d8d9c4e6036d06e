package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/hashicorp/go-multierror"

	"github.com/StitchDesign/Stitch-sub007/internal/engine"
	"github.com/StitchDesign/Stitch-sub007/internal/eval"
	"github.com/StitchDesign/Stitch-sub007/internal/graph"
	"github.com/StitchDesign/Stitch-sub007/internal/nodes"
	"github.com/StitchDesign/Stitch-sub007/internal/scroll"
	"github.com/StitchDesign/Stitch-sub007/internal/store"
	"github.com/StitchDesign/Stitch-sub007/internal/testutil"
	"github.com/StitchDesign/Stitch-sub007/internal/value"
)

// Result is the outcome of a scenario run.
type Result struct {
	Scenario string `json:"scenario"`

	// Pass is true when every expectation held and no step aborted.
	Pass bool `json:"pass"`

	// Errors holds one message per failed expectation.
	Errors []string `json:"errors,omitempty"`

	// Steps counts engine steps across all frames.
	Steps int `json:"steps"`

	// Trace holds every evaluation and skip, keyed by engine node id.
	Trace *store.Trace `json:"-"`

	// Names maps engine node ids back to scenario node ids.
	Names map[string]string `json:"names"`
}

// NewResult creates a passing result.
func NewResult(name string) *Result {
	return &Result{
		Scenario: name,
		Pass:     true,
		Errors:   []string{},
		Trace:    store.NewTrace(),
		Names:    map[string]string{},
	}
}

// AddError records a failure.
func (r *Result) AddError(err error) {
	r.Errors = append(r.Errors, err.Error())
	r.Pass = false
}

// Name returns the scenario id of an engine node id, or the id itself.
func (r *Result) Name(id string) string {
	if n, ok := r.Names[id]; ok {
		return n
	}
	return id
}

type config struct {
	registry *eval.Registry
	logger   *slog.Logger
	sink     engine.TraceSink
}

// Option configures Run.
type Option func(*config)

// WithRegistry replaces the built-in node kinds.
func WithRegistry(r *eval.Registry) Option {
	return func(c *config) { c.registry = r }
}

// WithLogger routes engine logs. Runs are silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithTraceSink records the run to sink as well as the in-memory trace.
func WithTraceSink(sink engine.TraceSink) Option {
	return func(c *config) { c.sink = sink }
}

// Run executes a scenario against a fresh engine.
//
// Node ids are assigned sequentially ("n-1", "n-2", ...) so two runs of
// the same scenario produce identical traces. Expectation failures are
// collected in the Result; an error is returned only when the scenario
// cannot be set up.
func Run(s *Scenario, opts ...Option) (*Result, error) {
	if err := Validate(s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	cfg := config{
		registry: nodes.Registry(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	result := NewResult(s.Name)
	var sink engine.TraceSink = result.Trace
	if cfg.sink != nil {
		sink = teeSink{result.Trace, cfg.sink}
	}
	engOpts := []engine.Option{engine.WithTraceSink(sink), engine.WithLogger(cfg.logger)}
	if s.FrameRate > 0 {
		engOpts = append(engOpts, engine.WithFrameRate(s.FrameRate))
	}
	if s.Budget != 0 {
		engOpts = append(engOpts, engine.WithRunAgainBudget(s.Budget))
	}
	if s.Strict {
		engOpts = append(engOpts, engine.WithStrictValues())
	}

	g := graph.New(graph.WithIDGenerator(testutil.NewSequentialIDs("n")))
	r := &runner{
		scenario: s,
		eng:      engine.New(g, cfg.registry, engOpts...),
		ids:      make(map[string]graph.NodeID, len(s.Nodes)),
		result:   result,
	}
	if err := r.build(); err != nil {
		return nil, err
	}
	for i := range s.Frames {
		if r.aborted {
			break
		}
		r.runFrame(i, s.Frames[i])
	}
	return result, nil
}

type runner struct {
	scenario *Scenario
	eng      *engine.Engine
	ids      map[string]graph.NodeID
	result   *Result
	last     engine.StepReport
	aborted  bool
}

func (r *runner) id(name string) graph.NodeID {
	if id, ok := r.ids[name]; ok {
		return id
	}
	return graph.NodeID(name)
}

func (r *runner) input(ref string) (graph.InputRef, error) {
	p, err := ParsePortRef(ref)
	if err != nil {
		return graph.InputRef{}, err
	}
	return graph.InputRef{Node: r.id(p.Node), Index: p.Index}, nil
}

func (r *runner) output(ref string) (graph.OutputRef, error) {
	p, err := ParsePortRef(ref)
	if err != nil {
		return graph.OutputRef{}, err
	}
	return graph.OutputRef{Node: r.id(p.Node), Index: p.Index}, nil
}

// inputLoop converts raw to a loop of the input's declared kind.
func (r *runner) inputLoop(ref graph.InputRef, raw any) (value.Loop, error) {
	n, ok := r.eng.Graph().Node(ref.Node)
	if !ok {
		return nil, engine.NewMissingReferenceError(ref.Node, "node does not exist")
	}
	if ref.Index < 0 || ref.Index >= n.NumInputs() {
		return nil, fmt.Errorf("%s: input does not exist", ref)
	}
	return value.LoopFromAny(n.InputKind(ref.Index), raw)
}

// build creates the declared nodes, literals and edges. Any failure here
// is a broken scenario rather than a failed expectation.
func (r *runner) build() error {
	var errs *multierror.Error
	for _, decl := range r.scenario.Nodes {
		typ := value.KindAny
		if decl.Type != "" {
			k, err := value.ParseKind(decl.Type)
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("node %s: %w", decl.ID, err))
				continue
			}
			typ = k
		}
		id, err := r.eng.AddNode(decl.Kind, typ, decl.Inputs)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("node %s: %w", decl.ID, err))
			continue
		}
		r.ids[decl.ID] = id
		r.result.Names[string(id)] = decl.ID
	}
	if err := errs.ErrorOrNil(); err != nil {
		return err
	}

	for _, decl := range r.scenario.Nodes {
		ports := make([]int, 0, len(decl.Set))
		for p := range decl.Set {
			ports = append(ports, p)
		}
		slices.Sort(ports)
		for _, p := range ports {
			ref := graph.InputRef{Node: r.ids[decl.ID], Index: p}
			if err := r.setInput(ref, decl.Set[p]); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("node %s input %d: %w", decl.ID, p, err))
			}
		}
	}
	for _, e := range r.scenario.Edges {
		if err := r.connect(e); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("edge %s -> %s: %w", e.From, e.To, err))
		}
	}
	return errs.ErrorOrNil()
}

func (r *runner) setInput(ref graph.InputRef, raw any) error {
	l, err := r.inputLoop(ref, raw)
	if err != nil {
		return err
	}
	return r.eng.SetInput(ref, l)
}

func (r *runner) connect(e EdgeDecl) error {
	from, err := r.output(e.From)
	if err != nil {
		return err
	}
	to, err := r.input(e.To)
	if err != nil {
		return err
	}
	return r.eng.Connect(from, to)
}

// runFrame applies a frame's edits, steps the engine and checks the
// frame's expectations.
func (r *runner) runFrame(index int, f Frame) {
	r.last = engine.StepReport{}
	edit := func(what string, err error) {
		if err != nil {
			r.result.AddError(&AssertionError{Frame: index, Check: "edit", Expected: what, Actual: err.Error()})
		}
	}

	if f.Restart {
		r.eng.Restart()
	}
	for _, name := range f.Remove {
		edit("remove "+name, r.eng.RemoveNode(r.id(name)))
	}
	for _, ref := range f.Disconnect {
		to, err := r.input(ref)
		if err == nil {
			err = r.eng.Disconnect(to)
		}
		edit("disconnect "+ref, err)
	}
	for _, e := range f.Connect {
		edit(fmt.Sprintf("connect %s -> %s", e.From, e.To), r.connect(e))
	}
	for _, in := range f.Set {
		ref, err := r.input(in.Port)
		if err == nil {
			err = r.setInput(ref, in.Value)
		}
		edit("set "+in.Port, err)
	}
	for _, p := range f.Pulse {
		ref, err := r.input(p)
		if err == nil {
			err = r.eng.SetInput(ref, value.NewLoop(value.Pulse(r.eng.NextFrameTime())))
		}
		edit("pulse "+p, err)
	}
	for _, g := range f.Gesture {
		edit(fmt.Sprintf("gesture %s %s", g.Drag, g.Node), r.gesture(g))
	}
	for _, name := range f.Dirty {
		r.eng.MarkDirty(r.id(name))
	}

	switch {
	case f.Settle:
		steps := 0
		for r.eng.HasWork() && !r.aborted {
			if steps == MaxSettleSteps {
				r.result.AddError(&AssertionError{
					Frame:    index,
					Check:    "settle",
					Expected: fmt.Sprintf("idle within %d steps", MaxSettleSteps),
					Actual:   fmt.Sprintf("still dirty: %v", r.names(r.eng.Dirty())),
				})
				break
			}
			r.step(index)
			steps++
		}
	default:
		for i, n := 0, max(f.Repeat, 1); i < n; i++ {
			if r.aborted {
				break
			}
			r.step(index)
		}
	}

	if f.Expect != nil && !r.aborted {
		for _, err := range r.check(index, f.Expect) {
			r.result.AddError(err)
		}
	}
}

func (r *runner) gesture(g Gesture) error {
	translation, err := sizeFromAny(g.Translation)
	if err != nil {
		return fmt.Errorf("translation: %w", err)
	}
	velocity, err := sizeFromAny(g.Velocity)
	if err != nil {
		return fmt.Errorf("velocity: %w", err)
	}
	var fn scroll.Gesture
	switch g.Drag {
	case DragStart:
		fn = scroll.DragStart()
	case DragMove:
		fn = scroll.DragMove(translation, velocity)
	case DragEnd:
		fn = scroll.DragEnd(velocity)
	default:
		return fmt.Errorf("unknown drag phase %q", g.Drag)
	}
	return r.eng.Apply(engine.Request{
		Type:   engine.RequestGesture,
		Node:   r.id(g.Node),
		Update: scroll.At(g.Index, fn),
	})
}

func sizeFromAny(raw any) (value.Size, error) {
	if raw == nil {
		return value.Size{}, nil
	}
	v, err := value.FromAny(value.KindSize, raw)
	if err != nil {
		return value.Size{}, err
	}
	s, _ := value.AsSize(v)
	return s, nil
}

// step runs one engine step. A strict variant mismatch aborts the run.
func (r *runner) step(index int) {
	defer func() {
		p := recover()
		if p == nil {
			return
		}
		err, ok := p.(error)
		if !ok || !engine.IsVariantMismatch(err) {
			panic(p)
		}
		var rerr *engine.RuntimeError
		errors.As(err, &rerr)
		r.result.AddError(&AssertionError{Frame: index, Check: "step", Expected: "no variant mismatch", Actual: rerr.Error()})
		r.aborted = true
	}()
	r.last = r.eng.Step()
	r.result.Steps++
}

func (r *runner) names(ids []graph.NodeID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = r.result.Name(string(id))
	}
	return out
}

// teeSink writes to every sink, collecting their errors.
type teeSink []engine.TraceSink

func (t teeSink) RecordEvaluation(ev store.Evaluation) error {
	var errs *multierror.Error
	for _, s := range t {
		if err := s.RecordEvaluation(ev); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

func (t teeSink) RecordSkip(sk store.Skip) error {
	var errs *multierror.Error
	for _, s := range t {
		if err := s.RecordSkip(sk); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}
