package scroll

import (
	"math"

	"github.com/StitchDesign/Stitch-sub007/internal/value"
)

// Paging target selection.
const (
	FlickVelocityThreshold = 200
	DragPagingThreshold    = 30
)

type pageDelta int

const (
	pageStay pageDelta = iota
	pagePrev
	pageNext
)

// pageMovement decides whether a released drag moves one page. A fast
// flick or a drag past the threshold both count.
func pageMovement(velocity, dragStart, pos, page float64) pageDelta {
	threshold := math.Min(DragPagingThreshold, page)
	flicked := math.Abs(velocity) > FlickVelocityThreshold
	dragged := threshold < math.Abs(pos-dragStart)
	if !flicked && !dragged {
		return pageStay
	}
	if dragStart < pos {
		return pagePrev
	}
	return pageNext
}

// maxPageIndex is the number of page steps needed to show the end of the
// content. It stays a float: a tiny page length gives an index far past
// the int range of any slice.
func maxPageIndex(child, parent, page float64) float64 {
	if page <= 0 || child <= parent {
		return 0
	}
	return math.Ceil((child - parent) / page)
}

// restingPosition is where page k comes to rest. The last page is clamped
// so the content end lines up with the parent end.
func restingPosition(k, maxIndex, page, child, parent float64) float64 {
	r := -k * page
	if k == maxIndex {
		r = math.Max(r, parent-child)
	}
	return r
}

// nearestPage returns the page whose resting position is closest to pos.
// Ties go to the lower index.
func nearestPage(pos, maxIndex, page, child, parent float64) float64 {
	guess := math.Max(0, math.Min(maxIndex, math.Round(-pos/page)))
	best := math.Max(0, guess-1)
	bestDist := math.Abs(pos - restingPosition(best, maxIndex, page, child, parent))
	for k := best + 1; k <= math.Min(maxIndex, guess+1); k++ {
		if d := math.Abs(pos - restingPosition(k, maxIndex, page, child, parent)); d < bestDist {
			best, bestDist = k, d
		}
	}
	return best
}

// pageTarget picks the resting position a released drag should animate
// to: the page nearest the drag start, moved by at most one page. Content
// no larger than its parent has no pages; pos is returned unchanged and
// rubberbanding takes over.
func pageTarget(pos, dragStart, velocity, child, parent, page float64) float64 {
	if child <= parent {
		return pos
	}
	maxIndex := maxPageIndex(child, parent, page)
	if maxIndex == 0 {
		return 0
	}

	current := nearestPage(dragStart, maxIndex, page, child, parent)
	switch pageMovement(velocity, dragStart, pos, page) {
	case pagePrev:
		current = math.Max(0, current-1)
	case pageNext:
		current = math.Min(maxIndex, current+1)
	}
	// Avoid -0 in outputs.
	return restingPosition(current, maxIndex, page, child, parent) + 0
}

// pageLength is the distance between resting positions. An unset page
// size means one parent length.
func pageLength(pageSize, padding, parent float64) float64 {
	if pageSize == 0 {
		pageSize = parent
	}
	return pageSize + padding
}

// animatePage eases from Start toward End. It reports arrival once the
// easing completes or the position is equivalent to End.
func animatePage(p Paging) (float64, bool) {
	diff := p.End - p.Start
	if diff == 0 {
		return p.End, true
	}
	progress := math.Min(float64(p.Frame)/RubberbandFrameRate/easingDivisor, 1)
	next := p.Start + diff*progress
	if progress >= 1 || value.Equivalent(next, p.End) {
		return p.End, true
	}
	return next, false
}

// pagingInput is what a paging axis reads in one step.
type pagingInput struct {
	child     float64
	parent    float64
	page      float64
	velocity  float64
	dragStart *float64
}

// stepPaging advances a paging axis. A drag that just ended picks a
// target page; a page animation in progress moves toward it; otherwise
// the axis rubberbands. An animated jump settles inside bounds after
// reaching its target.
func stepPaging(pos float64, p Paging, in pagingInput) (Paging, float64, bool) {
	if in.dragStart != nil {
		end := pageTarget(pos, *in.dragStart, in.velocity, in.child, in.parent, in.page)
		p = Paging{Start: pos, End: end, Distance: end - pos}
	}

	if p.Distance != 0 {
		next, arrived := animatePage(p)
		if !arrived {
			return p, next, true
		}
		p.Distance = 0
		if p.IsJump && p.Phase == PhaseMove {
			p.Phase = PhaseSettle
			p.Frame = 0
			return p, next, true
		}
		return p, next, false
	}

	if p.IsJump && p.Phase == PhaseMove {
		p.Phase = PhaseSettle
		p.Frame = 0
		return p, pos, true
	}

	next, banding := rubberband(pos, p.Frame, in.child, in.parent)
	if !banding && p.IsJump {
		return Paging{}, next, false
	}
	return p, next, banding
}
