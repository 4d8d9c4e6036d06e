package scroll

import (
	"github.com/StitchDesign/Stitch-sub007/internal/eval"
	"github.com/StitchDesign/Stitch-sub007/internal/value"
)

// Mode is the active simulation of one axis. Exactly one is active at a
// time.
type Mode uint8

const (
	ModeNone Mode = iota
	ModeFree
	ModePaging
)

func (m Mode) String() string {
	switch m {
	case ModeFree:
		return "free"
	case ModePaging:
		return "paging"
	default:
		return "none"
	}
}

// Lock is the axis a drag is locked to when direction locking is on.
type Lock uint8

const (
	LockNone Lock = iota
	LockVertical
	LockHorizontal
)

// Free is the momentum state of a free axis.
type Free struct {
	ShouldRun bool
	Amplitude float64
	Frame     int
}

// Phase separates the two halves of an animated jump: moving to the
// target, then settling back inside bounds.
type Phase uint8

const (
	PhaseMove Phase = iota
	PhaseSettle
)

// Paging animates an axis from Start to End. A zero Distance means no
// page animation is in progress.
type Paging struct {
	Start    float64
	End      float64
	Frame    int
	Distance float64
	IsJump   bool
	Phase    Phase
}

// Axis is the simulation state of one axis.
type Axis struct {
	Mode       Mode
	Configured value.ScrollMode
	Free       Free
	Paging     Paging
}

// newAxis returns an idle axis for the configured scroll mode.
func newAxis(m value.ScrollMode) Axis {
	switch m {
	case value.ScrollFree:
		return Axis{Mode: ModeFree, Configured: m}
	case value.ScrollPaging:
		return Axis{Mode: ModePaging, Configured: m}
	default:
		return Axis{Mode: ModeNone, Configured: m}
	}
}

func (a Axis) incrementFrame() Axis {
	switch a.Mode {
	case ModeFree:
		a.Free.Frame++
	case ModePaging:
		a.Paging.Frame++
	}
	return a
}

// Drag is the latest gesture sample for one loop index.
type Drag struct {
	Active      bool
	HasStart    bool
	Start       value.Position
	Translation value.Size
	Velocity    value.Size
}

// State is the per-index ephemeral state of a scroll node.
type State struct {
	X    Axis
	Y    Axis
	Lock Lock
	Drag Drag

	// LastDragStart is the position the most recent drag started from. It
	// survives exactly one step after the drag ends so paging axes can
	// pick a target page.
	LastDragStart *value.Position
}

// Idle reports whether neither axis is animating.
func (s State) Idle() bool {
	return s.X.Mode == ModeNone && s.Y.Mode == ModeNone && !s.Drag.Active
}

// Gesture updates the state of one loop index. The engine applies it
// between steps via eval.Dispatcher.Update.
type Gesture func(s *State)

// At lifts g into an update of the whole node state for loop index i,
// growing the per-index states when needed.
func At(i int, g Gesture) func(eval.State) eval.State {
	return func(st eval.State) eval.State {
		states, _ := st.(eval.Indexed[State])
		next := make(eval.Indexed[State], max(len(states), i+1))
		copy(next, states)
		g(&next[i])
		return next
	}
}

// DragStart begins a drag. The start position is captured from the
// node's output at the next step.
func DragStart() Gesture {
	return func(s *State) {
		s.Lock = LockNone
		s.Drag = Drag{Active: true}
	}
}

// DragMove records the translation since the drag started.
func DragMove(translation, velocity value.Size) Gesture {
	return func(s *State) {
		if !s.Drag.Active {
			s.Drag = Drag{Active: true}
		}
		s.Drag.Translation = translation
		s.Drag.Velocity = velocity
	}
}

// DragEnd releases the drag. Free axes start momentum from velocity.
func DragEnd(velocity value.Size) Gesture {
	return func(s *State) {
		velocity = s.lockVelocity(velocity)
		s.Drag.Active = false
		s.Drag.HasStart = false
		s.Drag.Velocity = velocity
		if s.X.Mode == ModeFree {
			s.X.Free = startMomentum(velocity.Width)
		}
		if s.Y.Mode == ModeFree {
			s.Y.Free = startMomentum(velocity.Height)
		}
	}
}

func (s *State) lockVelocity(v value.Size) value.Size {
	switch s.Lock {
	case LockVertical:
		v.Width = 0
	case LockHorizontal:
		v.Height = 0
	}
	if s.X.Mode == ModeNone {
		v.Width = 0
	}
	if s.Y.Mode == ModeNone {
		v.Height = 0
	}
	return v
}
