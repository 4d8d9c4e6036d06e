package engine

import "github.com/StitchDesign/Stitch-sub007/internal/graph"

// DefaultStarvationThreshold is how many consecutive steps a node may be
// skipped in a cycle before the engine warns that it is starving.
const DefaultStarvationThreshold = 60

// CycleTracker counts how many steps in a row each node has been skipped
// because it belongs to a cycle.
//
// A cycle is skipped and retried on every step until an edit breaks it, so
// its members can starve indefinitely. The tracker lets the engine warn once
// per node when that happens instead of on every frame.
//
// Not safe for concurrent use; the engine confines it to its actor.
type CycleTracker struct {
	threshold int
	skips     map[graph.NodeID]int
}

// NewCycleTracker creates a tracker that reports starvation after
// threshold consecutive skips.
func NewCycleTracker(threshold int) *CycleTracker {
	return &CycleTracker{
		threshold: threshold,
		skips:     make(map[graph.NodeID]int),
	}
}

// Skip records one more skipped step for id. It returns true exactly once,
// on the step the node crosses the starvation threshold.
func (c *CycleTracker) Skip(id graph.NodeID) bool {
	c.skips[id]++
	return c.skips[id] == c.threshold
}

// Clear forgets the skips of a node that evaluated or left the graph.
func (c *CycleTracker) Clear(id graph.NodeID) {
	delete(c.skips, id)
}

// ClearAll forgets every node.
func (c *CycleTracker) ClearAll() {
	clear(c.skips)
}

// Skips returns the consecutive skip count for id.
func (c *CycleTracker) Skips(id graph.NodeID) int {
	return c.skips[id]
}

// Len returns the number of nodes currently being skipped.
func (c *CycleTracker) Len() int {
	return len(c.skips)
}
