package engine

import "github.com/StitchDesign/Stitch-sub007/internal/graph"

// DefaultRunAgainBudget is how many consecutive frames an impure node may
// ask to run again before the engine stops it.
const DefaultRunAgainBudget = 10000

// RunAgainBudget counts the consecutive frames a node has asked to run
// again and enforces a limit.
//
// Animations settle on their own; the budget only catches evaluators that
// never converge, so a broken node cannot keep the scheduler busy forever.
// The count resets whenever the node quiesces.
type RunAgainBudget struct {
	limit   int
	current int
}

// NewRunAgainBudget creates a budget with the given limit. A limit of zero
// or less disables enforcement.
func NewRunAgainBudget(limit int) *RunAgainBudget {
	return &RunAgainBudget{limit: limit}
}

// Check counts one more run-again request. It returns a budget error once
// the count passes the limit.
func (b *RunAgainBudget) Check(id graph.NodeID, kind string) error {
	b.current++
	if b.limit > 0 && b.current > b.limit {
		return NewBudgetError(id, kind, b.current, b.limit)
	}
	return nil
}

// Reset clears the count.
func (b *RunAgainBudget) Reset() {
	b.current = 0
}

// Current returns the number of consecutive run-again requests.
func (b *RunAgainBudget) Current() int {
	return b.current
}

// Limit returns the configured limit.
func (b *RunAgainBudget) Limit() int {
	return b.limit
}
