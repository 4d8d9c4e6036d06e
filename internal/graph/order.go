package graph

import (
	"container/heap"
	"slices"
)

// Plan is the evaluation order for one step.
type Plan struct {
	// Order lists acyclic nodes so that every node comes after the nodes
	// feeding it. Independent nodes keep creation order.
	Order []NodeID

	// Cycles lists the strongly connected groups inside the closure. Their
	// members are excluded from Order.
	Cycles []Cycle
}

// Cyclic returns every node that belongs to a cycle.
func (p Plan) Cyclic() []NodeID {
	var out []NodeID
	for _, c := range p.Cycles {
		out = append(out, c.Nodes...)
	}
	return out
}

// Closure returns seeds plus every node reachable downstream of them, in
// creation order. Unknown seeds are ignored.
func (g *Graph) Closure(seeds []NodeID) []NodeID {
	g.build()
	seen := make(map[NodeID]bool)
	var queue []NodeID
	for _, id := range seeds {
		if _, ok := g.nodes[id]; ok && !seen[id] {
			seen[id] = true
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, s := range g.succ[id] {
			if !seen[s] {
				seen[s] = true
				queue = append(queue, s)
			}
		}
	}
	out := make([]NodeID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sortNodes(g, out)
	return out
}

// Plan computes the evaluation order for the forward closure of seeds.
// Cyclic groups are set aside; edges leaving them are ignored, so nodes
// downstream of a cycle still evaluate against its last outputs.
func (g *Graph) Plan(seeds []NodeID) Plan {
	closure := g.Closure(seeds)
	members := make(map[NodeID]bool, len(closure))
	for _, id := range closure {
		members[id] = true
	}

	cycles := g.cyclesWithin(members)
	for _, c := range cycles {
		for _, id := range c.Nodes {
			delete(members, id)
		}
	}

	// Kahn's algorithm with a creation-order heap for ties.
	indegree := make(map[NodeID]int, len(members))
	for id := range members {
		for _, p := range g.pred[id] {
			if members[p] {
				indegree[id]++
			}
		}
	}
	ready := &seqHeap{g: g}
	for id := range members {
		if indegree[id] == 0 {
			heap.Push(ready, id)
		}
	}
	order := make([]NodeID, 0, len(members))
	for ready.Len() > 0 {
		id := heap.Pop(ready).(NodeID)
		order = append(order, id)
		for _, s := range g.succ[id] {
			if !members[s] {
				continue
			}
			indegree[s]--
			if indegree[s] == 0 {
				heap.Push(ready, s)
			}
		}
	}
	return Plan{Order: order, Cycles: cycles}
}

// seqHeap is a min-heap of node ids keyed by creation sequence.
type seqHeap struct {
	g   *Graph
	ids []NodeID
}

func (h *seqHeap) Len() int           { return len(h.ids) }
func (h *seqHeap) Less(i, j int) bool { return h.g.compareNodes(h.ids[i], h.ids[j]) < 0 }
func (h *seqHeap) Swap(i, j int)      { h.ids[i], h.ids[j] = h.ids[j], h.ids[i] }
func (h *seqHeap) Push(x any)         { h.ids = append(h.ids, x.(NodeID)) }
func (h *seqHeap) Pop() any {
	last := h.ids[len(h.ids)-1]
	h.ids = h.ids[:len(h.ids)-1]
	return last
}

func sortNodes(g *Graph, ids []NodeID) {
	slices.SortFunc(ids, g.compareNodes)
}

func sortGroups(g *Graph, groups [][]NodeID) {
	slices.SortFunc(groups, func(a, b []NodeID) int {
		return g.compareNodes(a[0], b[0])
	})
}
