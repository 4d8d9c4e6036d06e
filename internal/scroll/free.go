package scroll

import (
	"math"

	"github.com/StitchDesign/Stitch-sub007/internal/value"
)

// Momentum tuning, in frames.
const (
	MomentumTimeConstant     = 1 + 70.0/6
	FastMomentumTimeConstant = 1 + 35.0/6

	// Momentum stops once its frame count passes this many time constants
	// or a step moves less than MomentumMinDelta.
	MomentumEndTimeConstants = 6
	MomentumMinDelta         = 0.1

	MomentumVelocityThreshold = 40
	MomentumDampFactor        = 2.8
	MomentumMinAmplitude      = 1
	MomentumMaxAmplitude      = 1000

	// RubberbandFrameRate scales frame counts into easing progress for
	// both rubberbanding and paging.
	RubberbandFrameRate = 12

	// Each step covers this fraction of frame progress.
	easingDivisor = 3
)

func timeConstant(r value.DecelerationRate) float64 {
	if r == value.DecelerationFast {
		return FastMomentumTimeConstant
	}
	return MomentumTimeConstant
}

// startMomentum converts a release velocity into a momentum state.
// Velocities at or under the threshold leave momentum off.
func startMomentum(velocity float64) Free {
	return Free{
		ShouldRun: math.Abs(velocity) > MomentumVelocityThreshold,
		Amplitude: boundAmplitude(velocity / MomentumDampFactor),
	}
}

func boundAmplitude(a float64) float64 {
	sign := 1.0
	if a < 0 {
		sign = -1
	}
	switch m := math.Abs(a); {
	case m < MomentumMinAmplitude:
		return sign * MomentumMinAmplitude
	case m > MomentumMaxAmplitude:
		return sign * MomentumMaxAmplitude
	}
	return a
}

// momentum decays the amplitude by one step and returns the distance to
// move.
func momentum(f Free, tc float64) (Free, float64) {
	delta := f.Amplitude / tc
	f.Amplitude -= delta
	if float64(f.Frame) > MomentumEndTimeConstants*tc || math.Abs(delta) < MomentumMinDelta {
		f.ShouldRun = false
	}
	return f, delta
}

type direction uint8

const (
	directionNone direction = iota
	directionNeg
	directionPos
)

// rubberbandDirection reports which way pos must move to get back in
// bounds. The valid range is [parent-child, 0] for content larger than
// its parent and exactly 0 otherwise.
func rubberbandDirection(pos, child, parent float64) direction {
	switch {
	case pos > 0:
		return directionNeg
	case child > parent && pos+child < parent:
		return directionPos
	case child <= parent && pos < 0:
		return directionPos
	}
	return directionNone
}

func rubberbandTarget(pos, child, parent float64, d direction) float64 {
	switch d {
	case directionNeg:
		return 0
	case directionPos:
		if child <= parent {
			return 0
		}
		return parent - child
	}
	return pos
}

// rubberband eases pos back toward the valid range. It never overshoots
// the boundary and reports whether pos was out of bounds.
func rubberband(pos float64, frame int, child, parent float64) (float64, bool) {
	d := rubberbandDirection(pos, child, parent)
	if d == directionNone {
		return pos, false
	}
	target := rubberbandTarget(pos, child, parent, d)
	next := pos + (target-pos)*(float64(frame)/RubberbandFrameRate)/easingDivisor

	overshot := d == directionNeg && next < target
	undershot := d == directionPos && next > target
	if overshot || undershot || value.Equivalent(next, target) {
		return target, true
	}
	return next, true
}

// stepFree runs momentum, then rubberbanding. A free axis with nothing
// left to do returns to a fresh momentum state.
func stepFree(pos float64, f Free, child, parent, tc float64) (Free, float64, bool) {
	if f.ShouldRun {
		var delta float64
		f, delta = momentum(f, tc)
		pos += delta
	}
	pos, banding := rubberband(pos, f.Frame, child, parent)
	if !banding && !f.ShouldRun {
		return Free{}, pos, false
	}
	return f, pos, true
}
