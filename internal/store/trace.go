package store

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/StitchDesign/Stitch-sub007/internal/value"
)

// Evaluation records one node evaluation.
type Evaluation struct {
	Seq      int64
	Frame    int64
	Time     float64
	NodeID   string
	Kind     string
	Outputs  string // canonical JSON, one array per output port
	RunAgain bool
}

// Skip records a node the engine did not evaluate, or stopped, and why.
type Skip struct {
	Frame  int64
	NodeID string
	Code   string
	Detail string
}

// EncodeOutputs renders output loops as canonical JSON. Identical outputs
// always encode to identical strings.
func EncodeOutputs(outputs []value.Loop) (string, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, l := range outputs {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := value.MarshalCanonical(l)
		if err != nil {
			return "", fmt.Errorf("encode output %d: %w", i, err)
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.String(), nil
}

// Trace is an in-memory evaluation log.
//
// Thread-safety: Trace is safe for concurrent use via internal mutex.
type Trace struct {
	mu          sync.Mutex
	evaluations []Evaluation
	skips       []Skip
}

// NewTrace creates an empty trace.
func NewTrace() *Trace {
	return &Trace{}
}

// RecordEvaluation appends an evaluation.
func (t *Trace) RecordEvaluation(ev Evaluation) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.evaluations = append(t.evaluations, ev)
	return nil
}

// RecordSkip appends a skip.
func (t *Trace) RecordSkip(s Skip) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.skips = append(t.skips, s)
	return nil
}

// Evaluations returns a copy of the recorded evaluations in order.
func (t *Trace) Evaluations() []Evaluation {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Evaluation(nil), t.evaluations...)
}

// Skips returns a copy of the recorded skips in order.
func (t *Trace) Skips() []Skip {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Skip(nil), t.skips...)
}

// ForNode returns the evaluations of one node in order.
func (t *Trace) ForNode(id string) []Evaluation {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Evaluation
	for _, ev := range t.evaluations {
		if ev.NodeID == id {
			out = append(out, ev)
		}
	}
	return out
}
