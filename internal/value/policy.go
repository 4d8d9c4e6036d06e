package value

import (
	"fmt"
	"log/slog"
)

// Policy decides what happens when an evaluator reads a variant other than
// the one it expects.
type Policy uint8

const (
	// Lenient returns the documented default for the expected kind and
	// logs at debug level.
	Lenient Policy = iota

	// Strict panics with a *MismatchError. Use in development and tests.
	Strict
)

func (p Policy) String() string {
	if p == Strict {
		return "strict"
	}
	return "lenient"
}

// MismatchError describes a variant mismatch detected by a strict policy.
type MismatchError struct {
	Want Kind
	Got  PortValue
}

func (e *MismatchError) Error() string {
	if e.Got == nil {
		return fmt.Sprintf("variant mismatch: want %s, got nil", e.Want)
	}
	return fmt.Sprintf("variant mismatch: want %s, got %s", e.Want, e.Got.Kind())
}

func expect[T any](p Policy, want Kind, v PortValue, get func(PortValue) (T, bool)) T {
	if v != nil {
		if out, ok := get(v); ok {
			return out
		}
	}
	if p == Strict {
		panic(&MismatchError{Want: want, Got: v})
	}
	slog.Debug("variant mismatch, using default",
		"want", want.String(),
		"got", kindOf(v))
	out, _ := get(Default(want))
	return out
}

func kindOf(v PortValue) string {
	if v == nil {
		return "nil"
	}
	return v.Kind().String()
}

func (p Policy) Number(v PortValue) float64 { return expect(p, KindNumber, v, AsNumber) }
func (p Policy) Bool(v PortValue) bool      { return expect(p, KindBool, v, AsBool) }
func (p Policy) Text(v PortValue) string    { return expect(p, KindText, v, AsText) }
func (p Policy) Position(v PortValue) Position {
	return expect(p, KindPosition, v, AsPosition)
}
func (p Policy) Point3D(v PortValue) Point3D { return expect(p, KindPoint3D, v, AsPoint3D) }
func (p Policy) Point4D(v PortValue) Point4D { return expect(p, KindPoint4D, v, AsPoint4D) }
func (p Policy) Size(v PortValue) Size       { return expect(p, KindSize, v, AsSize) }
func (p Policy) Color(v PortValue) Color     { return expect(p, KindColor, v, AsColor) }
func (p Policy) ScrollMode(v PortValue) ScrollMode {
	return expect(p, KindScrollMode, v, AsScrollMode)
}
func (p Policy) JumpStyle(v PortValue) JumpStyle {
	return expect(p, KindJumpStyle, v, AsJumpStyle)
}
func (p Policy) DecelerationRate(v PortValue) DecelerationRate {
	return expect(p, KindDecelerationRate, v, AsDecelerationRate)
}
func (p Policy) Media(v PortValue) Media { return expect(p, KindMedia, v, AsMedia) }
func (p Policy) Pulse(v PortValue) Pulse { return expect(p, KindPulse, v, AsPulse) }
func (p Policy) Layer(v PortValue) Layer { return expect(p, KindLayer, v, AsLayer) }
