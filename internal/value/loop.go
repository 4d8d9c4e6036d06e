package value

import "math"

// Loop is the ordered sequence of values carried by a port. A well-formed
// loop is never empty; a single value is a loop of length one.
type Loop []PortValue

// NewLoop creates a loop from values.
func NewLoop(vals ...PortValue) Loop {
	return Loop(vals)
}

// Repeat creates a loop holding v n times.
func Repeat(v PortValue, n int) Loop {
	l := make(Loop, n)
	for i := range l {
		l[i] = v
	}
	return l
}

// Numbers is shorthand for a loop of Number values.
func Numbers(ns ...float64) Loop {
	l := make(Loop, len(ns))
	for i, n := range ns {
		l[i] = Number(n)
	}
	return l
}

// Primary returns the first value, or nil for an empty loop.
func (l Loop) Primary() PortValue {
	if len(l) == 0 {
		return nil
	}
	return l[0]
}

// At returns the value at index i wrapped to the loop length.
func (l Loop) At(i int) PortValue {
	if len(l) == 0 {
		return nil
	}
	return l[AdjustedIndex(i, len(l))]
}

// Clone returns a copy that shares no backing array with l.
func (l Loop) Clone() Loop {
	if l == nil {
		return nil
	}
	out := make(Loop, len(l))
	copy(out, l)
	return out
}

// Lengthen extends l cyclically to length n: [a, b] lengthened to 5 is
// [a, b, a, b, a]. A loop already at least n long is returned as a copy
// unchanged; an empty loop stays empty.
func (l Loop) Lengthen(n int) Loop {
	if len(l) == 0 || len(l) >= n {
		return l.Clone()
	}
	out := make(Loop, n)
	for i := range out {
		out[i] = l[i%len(l)]
	}
	return out
}

// Adjust lengthens or truncates l to exactly n values.
func (l Loop) Adjust(n int) Loop {
	if len(l) > n {
		out := make(Loop, n)
		copy(out, l)
		return out
	}
	return l.Lengthen(n)
}

// Coerce converts every value in l to kind k.
func (l Loop) Coerce(k Kind) Loop {
	out := make(Loop, len(l))
	for i, v := range l {
		out[i] = Coerce(v, k)
	}
	return out
}

// Equal reports whether l and o hold the same values in the same order.
func (l Loop) Equal(o Loop) bool {
	if len(l) != len(o) {
		return false
	}
	for i := range l {
		if l[i] != o[i] {
			return false
		}
	}
	return true
}

// ApproxEqual reports whether l and o have the same length and kinds and
// every numeric component differs by at most tol. Non-numeric values must
// be equal.
func (l Loop) ApproxEqual(o Loop, tol float64) bool {
	if len(l) != len(o) {
		return false
	}
	for i := range l {
		a, b := l[i], o[i]
		if a == nil || b == nil || a.Kind() != b.Kind() {
			if a != b {
				return false
			}
			continue
		}
		ca, cb := components(a), components(b)
		if ca == nil {
			if a != b {
				return false
			}
			continue
		}
		for k := range ca {
			if math.Abs(ca[k]-cb[k]) > tol {
				return false
			}
		}
	}
	return true
}

// AdjustedIndex wraps i into [0, n). It returns 0 when n is 0.
func AdjustedIndex(i, n int) int {
	if n <= 0 {
		return 0
	}
	m := i % n
	if m < 0 {
		m += n
	}
	return m
}

// LongestLength returns the length of the longest loop, with a minimum of 1.
func LongestLength(loops ...Loop) int {
	n := 1
	for _, l := range loops {
		if len(l) > n {
			n = len(l)
		}
	}
	return n
}

// LengthenAll reconciles loops to their longest length. It returns the
// common length and the lengthened copies.
func LengthenAll(loops []Loop) (int, []Loop) {
	n := LongestLength(loops...)
	out := make([]Loop, len(loops))
	for i, l := range loops {
		out[i] = l.Lengthen(n)
	}
	return n, out
}
