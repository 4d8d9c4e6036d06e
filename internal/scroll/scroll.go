// Package scroll implements the scroll interaction node.
//
// Each axis runs its own simulation: free scrolling with momentum and
// rubberbanding, paging toward discrete resting positions, or nothing when
// the axis is disabled. Gestures arrive between steps as state updates
// (see At); jumps arrive as pulses on the node's inputs. The node asks to
// run again while either axis is still moving.
package scroll

import (
	"math"

	"github.com/StitchDesign/Stitch-sub007/internal/eval"
	"github.com/StitchDesign/Stitch-sub007/internal/graph"
	"github.com/StitchDesign/Stitch-sub007/internal/value"
)

// Kind is the node kind name.
const Kind = "scrollInteraction"

// Input ports.
const (
	InputLayer = iota
	InputModeX
	InputModeY
	InputContentSize
	InputDirectionLocking
	InputPageSize
	InputPagePadding
	InputJumpStyleX
	InputJumpToX
	InputJumpPositionX
	InputJumpStyleY
	InputJumpToY
	InputJumpPositionY
	InputDecelerationRate
	InputParentSize
)

// OutputPosition is the scrolled content position.
const OutputPosition = 0

func port(label string, k value.Kind, def value.PortValue) graph.PortSpec {
	p := graph.PortSpec{Label: label, Kind: k}
	if def != nil {
		p.Default = value.NewLoop(def)
	}
	return p
}

// Definition returns the scroll interaction node kind.
func Definition() eval.Definition {
	return eval.Definition{
		Kind:        Kind,
		Description: "scrolls content with momentum, paging and jumps",
		Inputs: []graph.PortSpec{
			port("layer", value.KindLayer, nil),
			port("scroll x", value.KindScrollMode, value.ScrollDisabled),
			port("scroll y", value.KindScrollMode, value.ScrollFree),
			port("content size", value.KindSize, nil),
			port("direction locking", value.KindBool, nil),
			port("page size", value.KindSize, nil),
			port("page padding", value.KindSize, nil),
			port("jump style x", value.KindJumpStyle, nil),
			port("jump to x", value.KindPulse, nil),
			port("jump position x", value.KindNumber, nil),
			port("jump style y", value.KindJumpStyle, nil),
			port("jump to y", value.KindPulse, nil),
			port("jump position y", value.KindNumber, nil),
			port("deceleration rate", value.KindDecelerationRate, nil),
			port("parent size", value.KindSize, nil),
		},
		Outputs:     []graph.PortSpec{port("position", value.KindPosition, nil)},
		DefaultType: value.KindPosition,
		Impure: eval.ImpureFunc(func(ctx eval.Context, f eval.Frame) eval.Result {
			return eval.StepEach(ctx, f, func() State { return State{} }, step)
		}),
	}
}

// inputs are one index's decoded input values.
type inputs struct {
	modeX, modeY  value.ScrollMode
	child, parent value.Size
	locking       bool
	page, padding value.Size
	jumpStyleX    value.JumpStyle
	jumpToX       value.Pulse
	jumpPosX      float64
	jumpStyleY    value.JumpStyle
	jumpToY       value.Pulse
	jumpPosY      float64
	deceleration  value.DecelerationRate
}

func decode(p value.Policy, args []value.PortValue) inputs {
	return inputs{
		modeX:        p.ScrollMode(args[InputModeX]),
		modeY:        p.ScrollMode(args[InputModeY]),
		child:        p.Size(args[InputContentSize]),
		parent:       p.Size(args[InputParentSize]),
		locking:      p.Bool(args[InputDirectionLocking]),
		page:         p.Size(args[InputPageSize]),
		padding:      p.Size(args[InputPagePadding]),
		jumpStyleX:   p.JumpStyle(args[InputJumpStyleX]),
		jumpToX:      p.Pulse(args[InputJumpToX]),
		jumpPosX:     p.Number(args[InputJumpPositionX]),
		jumpStyleY:   p.JumpStyle(args[InputJumpStyleY]),
		jumpToY:      p.Pulse(args[InputJumpToY]),
		jumpPosY:     p.Number(args[InputJumpPositionY]),
		deceleration: p.DecelerationRate(args[InputDecelerationRate]),
	}
}

func step(ctx eval.Context, i int, args, prev []value.PortValue, s State) (State, []value.PortValue, bool) {
	in := decode(ctx.Policy, args)
	pos := ctx.Policy.Position(prev[OutputPosition])

	if s.Drag.Active {
		s, pos = drag(s, pos, in)
		return s, []value.PortValue{pos}, false
	}

	s.X = reconcile(ctx, i, "x", s.X, in.modeX)
	s.Y = reconcile(ctx, i, "y", s.Y, in.modeY)
	s.X = s.X.incrementFrame()
	s.Y = s.Y.incrementFrame()

	var lastX, lastY *float64
	if s.LastDragStart != nil {
		lastX, lastY = &s.LastDragStart.X, &s.LastDragStart.Y
	}
	tc := timeConstant(in.deceleration)

	x := axisStep{
		mode:      in.modeX,
		child:     in.child.Width,
		parent:    in.parent.Width,
		page:      pageLength(in.page.Width, in.padding.Width, in.parent.Width),
		velocity:  s.Drag.Velocity.Width,
		dragStart: lastX,
		jumpStyle: in.jumpStyleX,
		jumpPos:   in.jumpPosX,
		jumped:    in.jumpToX.FiresAt(ctx.Time),
		tc:        tc,
	}
	y := axisStep{
		mode:      in.modeY,
		child:     in.child.Height,
		parent:    in.parent.Height,
		page:      pageLength(in.page.Height, in.padding.Height, in.parent.Height),
		velocity:  s.Drag.Velocity.Height,
		dragStart: lastY,
		jumpStyle: in.jumpStyleY,
		jumpPos:   in.jumpPosY,
		jumped:    in.jumpToY.FiresAt(ctx.Time),
		tc:        tc,
	}

	var runX, runY bool
	s.X, pos.X, runX = x.run(s.X, pos.X)
	s.Y, pos.Y, runY = y.run(s.Y, pos.Y)
	s.LastDragStart = nil

	if !runX && !runY {
		return State{}, []value.PortValue{pos}, false
	}
	return s, []value.PortValue{pos}, true
}

// drag follows the finger: the output is the drag start plus the
// translation, with locked or disabled axes held still.
func drag(s State, pos value.Position, in inputs) (State, value.Position) {
	t := s.Drag.Translation
	if in.locking && s.Lock == LockNone {
		switch {
		case math.Abs(t.Height) > math.Abs(t.Width):
			s.Lock = LockVertical
		case math.Abs(t.Width) > math.Abs(t.Height):
			s.Lock = LockHorizontal
		}
	}
	if in.locking {
		switch s.Lock {
		case LockVertical:
			t.Width = 0
		case LockHorizontal:
			t.Height = 0
		}
	}
	if in.modeX == value.ScrollDisabled {
		t.Width = 0
	}
	if in.modeY == value.ScrollDisabled {
		t.Height = 0
	}

	if !s.Drag.HasStart {
		s.Drag.HasStart = true
		s.Drag.Start = pos
	}
	start := s.Drag.Start
	s.X = newAxis(in.modeX)
	s.Y = newAxis(in.modeY)
	s.LastDragStart = &start
	return s, value.Position{X: start.X + t.Width, Y: start.Y + t.Height}
}

// reconcile keeps an axis in step with its configured scroll mode. A
// mode change abandons the running simulation.
func reconcile(ctx eval.Context, i int, name string, a Axis, m value.ScrollMode) Axis {
	if a.Mode == ModeNone {
		return a
	}
	if m == value.ScrollDisabled {
		ctx.Log().Warn("scroll axis active while disabled; resetting",
			"node_id", ctx.Node,
			"index", i,
			"axis", name,
			"mode", a.Mode.String())
		return newAxis(m)
	}
	if m != a.Configured {
		return newAxis(m)
	}
	return a
}

// axisStep is one axis's view of a step.
type axisStep struct {
	mode      value.ScrollMode
	child     float64
	parent    float64
	page      float64
	velocity  float64
	dragStart *float64
	jumpStyle value.JumpStyle
	jumpPos   float64
	jumped    bool
	tc        float64
}

func (x axisStep) run(a Axis, pos float64) (Axis, float64, bool) {
	if x.jumped && x.mode != value.ScrollDisabled {
		a, pos = x.jump(pos)
		return a, pos, true
	}
	switch a.Mode {
	case ModeFree:
		var again bool
		a.Free, pos, again = stepFree(pos, a.Free, x.child, x.parent, x.tc)
		return a, pos, again
	case ModePaging:
		var again bool
		a.Paging, pos, again = stepPaging(pos, a.Paging, pagingInput{
			child:     x.child,
			parent:    x.parent,
			page:      x.page,
			velocity:  x.velocity,
			dragStart: x.dragStart,
		})
		return a, pos, again
	}
	return a, pos, false
}

// jump moves the axis to the jump position. An instant jump lands there
// at once and rubberbands if out of bounds; an animated jump pages there.
func (x axisStep) jump(pos float64) (Axis, float64) {
	if x.jumpStyle == value.JumpAnimated {
		return Axis{
			Mode:       ModePaging,
			Configured: x.mode,
			Paging: Paging{
				Start:    pos,
				End:      x.jumpPos,
				Distance: x.jumpPos - pos,
				IsJump:   true,
			},
		}, pos
	}
	pos, _ = rubberband(x.jumpPos, 0, x.child, x.parent)
	return Axis{Mode: ModeFree, Configured: x.mode}, pos
}
