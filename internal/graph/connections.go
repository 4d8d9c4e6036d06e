package graph

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/hashicorp/go-multierror"

	"github.com/StitchDesign/Stitch-sub007/internal/value"
)

// Connection is one entry of the connection table.
type Connection struct {
	From OutputRef
	To   InputRef
}

func (c Connection) String() string { return fmt.Sprintf("%s -> %s", c.From, c.To) }

// Connect feeds the input `to` from the output `from`. Fan-in is not
// allowed: an existing connection on `to` is replaced. The input takes the
// output's current values immediately.
func (g *Graph) Connect(from OutputRef, to InputRef) error {
	src, err := g.output(from)
	if err != nil {
		return fmt.Errorf("connect %s: %w", from, err)
	}
	dst, err := g.input(to)
	if err != nil {
		return fmt.Errorf("connect %s: %w", to, err)
	}
	g.edges[to] = from
	p := &dst.inputs[to.Index]
	p.values = src.outputs[from.Index].values.Coerce(p.kind)
	g.invalidate()
	return nil
}

// Disconnect removes the connection feeding `to`. The input keeps the
// last value it received as a literal, except media inputs which reset to
// the nil media. It reports whether a connection existed.
func (g *Graph) Disconnect(to InputRef) (bool, error) {
	if _, err := g.input(to); err != nil {
		return false, fmt.Errorf("disconnect %s: %w", to, err)
	}
	if _, connected := g.edges[to]; !connected {
		return false, nil
	}
	g.flatten(to)
	delete(g.edges, to)
	g.invalidate()
	return true, nil
}

func (g *Graph) flatten(to InputRef) {
	n, ok := g.nodes[to.Node]
	if !ok || !n.hasInput(to.Index) {
		return
	}
	p := &n.inputs[to.Index]
	if p.kind == value.KindMedia {
		p.values = value.Loop{value.Media{}}
	}
}

// Upstream returns the output feeding `to`, if any.
func (g *Graph) Upstream(to InputRef) (OutputRef, bool) {
	from, ok := g.edges[to]
	return from, ok
}

// Downstream returns the inputs fed by `from`, ordered by node creation
// then input index.
func (g *Graph) Downstream(from OutputRef) []InputRef {
	g.build()
	return slices.Clone(g.down[from])
}

// Successors returns the distinct nodes fed by any output of id, in
// creation order.
func (g *Graph) Successors(id NodeID) []NodeID {
	g.build()
	return slices.Clone(g.succ[id])
}

// Predecessors returns the distinct nodes feeding any input of id, in
// creation order.
func (g *Graph) Predecessors(id NodeID) []NodeID {
	g.build()
	return slices.Clone(g.pred[id])
}

// Connections returns the whole table ordered by destination.
func (g *Graph) Connections() []Connection {
	out := make([]Connection, 0, len(g.edges))
	for to, from := range g.edges {
		out = append(out, Connection{From: from, To: to})
	}
	slices.SortFunc(out, func(a, b Connection) int {
		return g.compareInputs(a.To, b.To)
	})
	return out
}

// Validate checks that no connection references a missing node or port.
// Topology operations maintain this; a failure indicates a bug.
func (g *Graph) Validate() error {
	var result *multierror.Error
	for _, c := range g.Connections() {
		if _, err := g.output(c.From); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", c, err))
		}
		if _, err := g.input(c.To); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", c, err))
		}
	}
	return result.ErrorOrNil()
}

func (g *Graph) compareInputs(a, b InputRef) int {
	if a.Node != b.Node {
		return g.compareNodes(a.Node, b.Node)
	}
	return cmp.Compare(a.Index, b.Index)
}

// compareNodes orders by creation sequence. Unknown ids sort last by id.
func (g *Graph) compareNodes(a, b NodeID) int {
	na, aok := g.nodes[a]
	nb, bok := g.nodes[b]
	switch {
	case aok && bok:
		return cmp.Compare(na.seq, nb.seq)
	case aok:
		return -1
	case bok:
		return 1
	}
	return cmp.Compare(a, b)
}

func (g *Graph) invalidate() {
	g.succ, g.pred, g.down = nil, nil, nil
}

func (g *Graph) build() {
	if g.succ != nil {
		return
	}
	g.succ = make(map[NodeID][]NodeID)
	g.pred = make(map[NodeID][]NodeID)
	g.down = make(map[OutputRef][]InputRef)

	for _, c := range g.Connections() {
		g.down[c.From] = append(g.down[c.From], c.To)
		if !slices.Contains(g.succ[c.From.Node], c.To.Node) {
			g.succ[c.From.Node] = append(g.succ[c.From.Node], c.To.Node)
		}
		if !slices.Contains(g.pred[c.To.Node], c.From.Node) {
			g.pred[c.To.Node] = append(g.pred[c.To.Node], c.From.Node)
		}
	}
	for id, s := range g.succ {
		slices.SortFunc(s, g.compareNodes)
		g.succ[id] = s
	}
	for id, p := range g.pred {
		slices.SortFunc(p, g.compareNodes)
		g.pred[id] = p
	}
}
