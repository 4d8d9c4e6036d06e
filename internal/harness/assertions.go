package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/StitchDesign/Stitch-sub007/internal/engine"
	"github.com/StitchDesign/Stitch-sub007/internal/value"
)

// AssertionError is a failed expectation or edit within a frame.
type AssertionError struct {
	Frame    int    // scenario frame index, from 0
	Check    string // output, evaluated, skipped, idle, settle, edit or step
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("frame %d: %s: expected %s, got %s", e.Frame, e.Check, e.Expected, e.Actual)
}

// check evaluates a frame's expectations against the engine and the last
// step report.
func (r *runner) check(index int, exp *Expect) []error {
	var errs []error
	fail := func(check, expected, actual string) {
		errs = append(errs, &AssertionError{Frame: index, Check: check, Expected: expected, Actual: actual})
	}

	for _, o := range exp.Outputs {
		if m := r.checkOutput(o); m != nil {
			fail("output "+o.Port, m.expected, m.actual)
		}
	}

	if exp.Evaluated != nil {
		got := r.names(r.last.Evaluated)
		if !slices.Equal(got, exp.Evaluated) {
			fail("evaluated", "["+strings.Join(exp.Evaluated, " ")+"]", "["+strings.Join(got, " ")+"]")
		}
	}

	for _, want := range exp.Skipped {
		found := slices.ContainsFunc(r.last.Skipped, func(s *engine.RuntimeError) bool {
			return r.result.Name(string(s.Node)) == want.Node && string(s.Code) == want.Code
		})
		if !found {
			fail("skipped", want.Code+" on "+want.Node, r.skipSummary())
		}
	}

	if exp.Idle != nil {
		idle := !r.eng.HasWork()
		if idle != *exp.Idle {
			fail("idle", fmt.Sprint(*exp.Idle), fmt.Sprintf("%t (dirty: %v)", idle, r.names(r.eng.Dirty())))
		}
	}
	return errs
}

type mismatch struct {
	expected, actual string
}

func (r *runner) checkOutput(o ExpectOutput) *mismatch {
	ref, err := r.output(o.Port)
	if err != nil {
		return &mismatch{o.Port, err.Error()}
	}
	n, ok := r.eng.Graph().Node(ref.Node)
	if !ok {
		return &mismatch{"node " + string(ref.Node), "missing"}
	}
	if ref.Index >= n.NumOutputs() {
		return &mismatch{fmt.Sprintf("output %d", ref.Index), fmt.Sprintf("%d outputs", n.NumOutputs())}
	}
	want, err := value.LoopFromAny(n.OutputKind(ref.Index), o.Value)
	if err != nil {
		return &mismatch{fmt.Sprintf("%v", o.Value), "unparseable expectation: " + err.Error()}
	}
	got := n.Output(ref.Index)

	equal := got.Equal(want)
	if o.Tolerance > 0 {
		equal = got.ApproxEqual(want, o.Tolerance)
	}
	if equal {
		return nil
	}
	return &mismatch{value.CanonicalString(want), value.CanonicalString(got)}
}

func (r *runner) skipSummary() string {
	if len(r.last.Skipped) == 0 {
		return "no skips"
	}
	parts := make([]string, len(r.last.Skipped))
	for i, s := range r.last.Skipped {
		parts[i] = string(s.Code) + " on " + r.result.Name(string(s.Node))
	}
	return strings.Join(parts, ", ")
}
