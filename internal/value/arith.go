package value

import "math"

// Op is a binary arithmetic operation.
type Op uint8

const (
	OpAdd Op = iota
	OpSubtract
	OpMultiply
	OpDivide
	OpMod
	OpMax
	OpMin
)

func (o Op) String() string {
	switch o {
	case OpSubtract:
		return "subtract"
	case OpMultiply:
		return "multiply"
	case OpDivide:
		return "divide"
	case OpMod:
		return "mod"
	case OpMax:
		return "max"
	case OpMin:
		return "min"
	default:
		return "add"
	}
}

// SafeDivide divides n by d, returning 0 when d is 0.
func SafeDivide(n, d float64) float64 {
	if d == 0 {
		return 0
	}
	return n / d
}

// SafeMod returns n mod d with the sign of d, or 0 when d is 0.
func SafeMod(n, d float64) float64 {
	if d == 0 {
		return 0
	}
	m := math.Mod(n, d)
	if m != 0 && (m < 0) != (d < 0) {
		m += d
	}
	return m
}

// AdditiveIdentity returns the identity for addition over kind k.
func AdditiveIdentity(k Kind) (PortValue, bool) {
	switch k {
	case KindText:
		return Text(""), true
	case KindColor:
		return Color{}, true
	}
	if !k.Numeric() {
		return nil, false
	}
	return Default(k), true
}

// MultiplicativeIdentity returns the identity for multiplication over kind k.
func MultiplicativeIdentity(k Kind) (PortValue, bool) {
	if !k.Numeric() {
		return nil, false
	}
	return fromComponents(k, []float64{1, 1, 1, 1}), true
}

// Apply computes a op b. The right operand is coerced to a's kind, so the
// result always has a's kind.
func Apply(op Op, a, b PortValue) PortValue {
	k := a.Kind()
	b = Coerce(b, k)
	if k == KindText {
		if op == OpAdd {
			return a.(Text) + b.(Text)
		}
		return a
	}
	if !k.Numeric() {
		return a
	}
	ac, bc := components(a), components(b)
	out := make([]float64, len(ac))
	for i := range ac {
		out[i] = applyScalar(op, ac[i], bc[i])
	}
	return fromComponents(k, out)
}

func applyScalar(op Op, a, b float64) float64 {
	switch op {
	case OpSubtract:
		return a - b
	case OpMultiply:
		return a * b
	case OpDivide:
		return SafeDivide(a, b)
	case OpMod:
		return SafeMod(a, b)
	case OpMax:
		return math.Max(a, b)
	case OpMin:
		return math.Min(a, b)
	default:
		return a + b
	}
}

// Reduce folds values with op into a single value of kind k. Addition and
// multiplication start from the identity; the other operations start from
// the first value. Every operand is coerced to k first. An empty operand
// list yields the identity for additive and multiplicative operations and
// the default value otherwise.
func Reduce(op Op, k Kind, values []PortValue) PortValue {
	var acc PortValue
	rest := values
	switch op {
	case OpAdd:
		if id, ok := AdditiveIdentity(k); ok {
			acc = id
		}
	case OpMultiply:
		if id, ok := MultiplicativeIdentity(k); ok {
			acc = id
		}
	}
	if acc == nil {
		if len(values) == 0 {
			return Default(k)
		}
		acc, rest = Coerce(values[0], k), values[1:]
	}
	for _, v := range rest {
		acc = Apply(op, acc, v)
	}
	return acc
}

func components(v PortValue) []float64 {
	switch val := v.(type) {
	case Number:
		return []float64{float64(val)}
	case Position:
		return []float64{val.X, val.Y}
	case Size:
		return []float64{val.Width, val.Height}
	case Point3D:
		return []float64{val.X, val.Y, val.Z}
	case Point4D:
		return []float64{val.X, val.Y, val.Z, val.W}
	case Color:
		return []float64{val.R, val.G, val.B, val.A}
	case Bool:
		if val {
			return []float64{1}
		}
		return []float64{0}
	case Pulse:
		return []float64{float64(val)}
	}
	return nil
}

// fromComponents builds a value of kind k. Missing components are zero;
// extra components are ignored.
func fromComponents(k Kind, c []float64) PortValue {
	at := func(i int) float64 {
		if i < len(c) {
			return c[i]
		}
		return 0
	}
	switch k {
	case KindNumber:
		return Number(at(0))
	case KindPosition:
		return Position{X: at(0), Y: at(1)}
	case KindSize:
		return Size{Width: at(0), Height: at(1)}
	case KindPoint3D:
		return Point3D{X: at(0), Y: at(1), Z: at(2)}
	case KindPoint4D:
		return Point4D{X: at(0), Y: at(1), Z: at(2), W: at(3)}
	case KindColor:
		return Color{R: at(0), G: at(1), B: at(2), A: at(3)}
	}
	return Default(k)
}

// EquivalenceTolerance is the distance under which two positions are
// treated as equal by animation code.
const EquivalenceTolerance = 0.01

// Equivalent reports whether a and b are within EquivalenceTolerance.
func Equivalent(a, b float64) bool {
	return math.Abs(a-b) < EquivalenceTolerance
}
