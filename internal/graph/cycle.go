package graph

import (
	"fmt"
	"strings"
)

// Cycle describes a strongly connected group of nodes.
//
// Cycles are reported, not rejected: the scheduler skips the group for the
// step and retries it on the next one, so the rest of the graph keeps
// evaluating.
type Cycle struct {
	Nodes   []NodeID `json:"nodes"`   // members in creation order
	Path    []NodeID `json:"path"`    // a traversal: ["a", "b", "a"]
	Message string   `json:"message"` // Human-readable description
}

// Cycles analyzes the whole graph and returns every cycle, ordered by the
// creation order of their first member.
func (g *Graph) Cycles() []Cycle {
	all := make(map[NodeID]bool, len(g.nodes))
	for id := range g.nodes {
		all[id] = true
	}
	return g.cyclesWithin(all)
}

// cyclesWithin runs Tarjan's algorithm on the subgraph induced by members.
// A single node SCC counts only if it feeds itself.
func (g *Graph) cyclesWithin(members map[NodeID]bool) []Cycle {
	g.build()
	var cycles []Cycle
	for _, scc := range g.tarjanSCC(members) {
		if len(scc) > 1 || g.hasSelfLoop(scc[0]) {
			cycles = append(cycles, g.describeCycle(scc))
		}
	}
	return cycles
}

func (g *Graph) hasSelfLoop(id NodeID) bool {
	for _, s := range g.succ[id] {
		if s == id {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components. Roots are visited in
// creation order and each component is returned sorted by creation order,
// so the result is deterministic.
func (g *Graph) tarjanSCC(members map[NodeID]bool) [][]NodeID {
	var (
		index   = 0
		stack   []NodeID
		indices = make(map[NodeID]int)
		lowlink = make(map[NodeID]int)
		onStack = make(map[NodeID]bool)
		sccs    [][]NodeID
	)

	var strongConnect func(NodeID)
	strongConnect = func(v NodeID) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.succ[v] {
			if !members[w] {
				continue
			}
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root: pop its component
		if lowlink[v] == indices[v] {
			var scc []NodeID
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sortNodes(g, scc)
			sccs = append(sccs, scc)
		}
	}

	for _, n := range g.Nodes() {
		if !members[n.id] {
			continue
		}
		if _, visited := indices[n.id]; !visited {
			strongConnect(n.id)
		}
	}

	sortGroups(g, sccs)
	return sccs
}

func (g *Graph) describeCycle(scc []NodeID) Cycle {
	path := g.cyclePath(scc)
	parts := make([]string, len(path))
	for i, id := range path {
		parts[i] = string(id)
	}
	msg := fmt.Sprintf("cycle detected: %s", strings.Join(parts, " -> "))
	if len(scc) == 1 {
		msg = fmt.Sprintf("node feeds itself: %s", scc[0])
	}
	return Cycle{Nodes: scc, Path: path, Message: msg}
}

// cyclePath follows edges inside the component from its first member
// until it returns to the start.
func (g *Graph) cyclePath(scc []NodeID) []NodeID {
	inSCC := make(map[NodeID]bool, len(scc))
	for _, id := range scc {
		inSCC[id] = true
	}

	start := scc[0]
	current := start
	path := []NodeID{current}
	visited := make(map[NodeID]bool)

	for {
		visited[current] = true

		var next NodeID
		for _, s := range g.succ[current] {
			if inSCC[s] && (!visited[s] || s == start) {
				next = s
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
