package store

import "fmt"

// Divergence is the first point where two traces disagree.
type Divergence struct {
	Index int // position in the evaluation list
	Want  *Evaluation
	Got   *Evaluation
}

func (d Divergence) String() string {
	switch {
	case d.Want == nil:
		return fmt.Sprintf("evaluation %d: unexpected %s@%d", d.Index, d.Got.NodeID, d.Got.Frame)
	case d.Got == nil:
		return fmt.Sprintf("evaluation %d: missing %s@%d", d.Index, d.Want.NodeID, d.Want.Frame)
	}
	return fmt.Sprintf("evaluation %d: want %s@%d %s, got %s@%d %s",
		d.Index,
		d.Want.NodeID, d.Want.Frame, d.Want.Outputs,
		d.Got.NodeID, d.Got.Frame, d.Got.Outputs)
}

// Compare returns the first divergence between a recorded trace and a
// replayed one, or nil when they are identical. Seq is ignored; only
// order matters.
func Compare(want, got []Evaluation) *Divergence {
	for i := 0; i < max(len(want), len(got)); i++ {
		switch {
		case i >= len(want):
			return &Divergence{Index: i, Got: &got[i]}
		case i >= len(got):
			return &Divergence{Index: i, Want: &want[i]}
		}
		w, g := want[i], got[i]
		w.Seq, g.Seq = 0, 0
		if w != g {
			return &Divergence{Index: i, Want: &want[i], Got: &got[i]}
		}
	}
	return nil
}
