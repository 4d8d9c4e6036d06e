package value

// PortValue is a sealed interface over the closed set of port variants.
// Only the types in this file implement it.
type PortValue interface {
	Kind() Kind
	portValue() // Sealed
}

// Number is a scalar.
type Number float64

func (Number) Kind() Kind { return KindNumber }
func (Number) portValue() {}

// Bool is a boolean.
type Bool bool

func (Bool) Kind() Kind { return KindBool }
func (Bool) portValue() {}

// Text is a string.
type Text string

func (Text) Kind() Kind { return KindText }
func (Text) portValue() {}

// Position is a 2D point.
type Position struct {
	X float64
	Y float64
}

func (Position) Kind() Kind { return KindPosition }
func (Position) portValue() {}

// Point3D is a 3D point.
type Point3D struct {
	X float64
	Y float64
	Z float64
}

func (Point3D) Kind() Kind { return KindPoint3D }
func (Point3D) portValue() {}

// Point4D is a 4D point.
type Point4D struct {
	X float64
	Y float64
	Z float64
	W float64
}

func (Point4D) Kind() Kind { return KindPoint4D }
func (Point4D) portValue() {}

// Size is a width/height pair.
type Size struct {
	Width  float64
	Height float64
}

func (Size) Kind() Kind { return KindSize }
func (Size) portValue() {}

// Color is an RGBA color with components in [0, 1].
type Color struct {
	R float64
	G float64
	B float64
	A float64
}

func (Color) Kind() Kind { return KindColor }
func (Color) portValue() {}

// ScrollMode selects how a scroll axis responds to gestures.
type ScrollMode uint8

const (
	ScrollFree ScrollMode = iota
	ScrollPaging
	ScrollDisabled
)

func (ScrollMode) Kind() Kind { return KindScrollMode }
func (ScrollMode) portValue() {}

func (m ScrollMode) String() string {
	switch m {
	case ScrollPaging:
		return "paging"
	case ScrollDisabled:
		return "disabled"
	default:
		return "free"
	}
}

// JumpStyle selects how a scroll jump reaches its target.
type JumpStyle uint8

const (
	JumpInstant JumpStyle = iota
	JumpAnimated
)

func (JumpStyle) Kind() Kind { return KindJumpStyle }
func (JumpStyle) portValue() {}

func (s JumpStyle) String() string {
	if s == JumpAnimated {
		return "animated"
	}
	return "instant"
}

// DecelerationRate selects the momentum time constant.
type DecelerationRate uint8

const (
	DecelerationNormal DecelerationRate = iota
	DecelerationFast
)

func (DecelerationRate) Kind() Kind { return KindDecelerationRate }
func (DecelerationRate) portValue() {}

func (r DecelerationRate) String() string {
	if r == DecelerationFast {
		return "fast"
	}
	return "normal"
}

// Media references an external media object by id. The zero value is the
// nil media.
type Media struct {
	ID string
}

func (Media) Kind() Kind { return KindMedia }
func (Media) portValue() {}

// IsNil reports whether m references nothing.
func (m Media) IsNil() bool { return m.ID == "" }

// Pulse carries the simulated time at which it fires. A pulse input is
// active during the frame whose time equals the pulse time.
type Pulse float64

func (Pulse) Kind() Kind { return KindPulse }
func (Pulse) portValue() {}

// FiresAt reports whether the pulse is active at simulated time t.
func (p Pulse) FiresAt(t float64) bool { return float64(p) == t && t > 0 }

// Layer references an interactive layer by id.
type Layer string

func (Layer) Kind() Kind { return KindLayer }
func (Layer) portValue() {}

// Default returns the value a port of kind k holds before anything is
// written to it. It is also the fallback used by lenient accessors.
func Default(k Kind) PortValue {
	switch k {
	case KindBool:
		return Bool(false)
	case KindText:
		return Text("")
	case KindPosition:
		return Position{}
	case KindPoint3D:
		return Point3D{}
	case KindPoint4D:
		return Point4D{}
	case KindSize:
		return Size{}
	case KindColor:
		return Color{A: 1}
	case KindScrollMode:
		return ScrollFree
	case KindJumpStyle:
		return JumpInstant
	case KindDecelerationRate:
		return DecelerationNormal
	case KindMedia:
		return Media{}
	case KindPulse:
		return Pulse(0)
	case KindLayer:
		return Layer("")
	default:
		return Number(0)
	}
}

// AsNumber returns the scalar held by v.
func AsNumber(v PortValue) (float64, bool) {
	n, ok := v.(Number)
	return float64(n), ok
}

// AsBool returns the boolean held by v.
func AsBool(v PortValue) (bool, bool) {
	b, ok := v.(Bool)
	return bool(b), ok
}

// AsText returns the string held by v.
func AsText(v PortValue) (string, bool) {
	s, ok := v.(Text)
	return string(s), ok
}

// AsPosition returns the position held by v.
func AsPosition(v PortValue) (Position, bool) {
	p, ok := v.(Position)
	return p, ok
}

// AsPoint3D returns the 3D point held by v.
func AsPoint3D(v PortValue) (Point3D, bool) {
	p, ok := v.(Point3D)
	return p, ok
}

// AsPoint4D returns the 4D point held by v.
func AsPoint4D(v PortValue) (Point4D, bool) {
	p, ok := v.(Point4D)
	return p, ok
}

// AsSize returns the size held by v.
func AsSize(v PortValue) (Size, bool) {
	s, ok := v.(Size)
	return s, ok
}

// AsColor returns the color held by v.
func AsColor(v PortValue) (Color, bool) {
	c, ok := v.(Color)
	return c, ok
}

// AsScrollMode returns the scroll mode held by v.
func AsScrollMode(v PortValue) (ScrollMode, bool) {
	m, ok := v.(ScrollMode)
	return m, ok
}

// AsJumpStyle returns the jump style held by v.
func AsJumpStyle(v PortValue) (JumpStyle, bool) {
	s, ok := v.(JumpStyle)
	return s, ok
}

// AsDecelerationRate returns the deceleration rate held by v.
func AsDecelerationRate(v PortValue) (DecelerationRate, bool) {
	r, ok := v.(DecelerationRate)
	return r, ok
}

// AsMedia returns the media reference held by v.
func AsMedia(v PortValue) (Media, bool) {
	m, ok := v.(Media)
	return m, ok
}

// AsPulse returns the pulse time held by v.
func AsPulse(v PortValue) (Pulse, bool) {
	p, ok := v.(Pulse)
	return p, ok
}

// AsLayer returns the layer id held by v.
func AsLayer(v PortValue) (Layer, bool) {
	l, ok := v.(Layer)
	return l, ok
}
