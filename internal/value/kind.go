package value

import "fmt"

// Kind identifies a PortValue variant.
type Kind uint8

// Port value variants. KindAny is only valid on port declarations whose
// kind follows the node's type.
const (
	KindAny Kind = iota
	KindNumber
	KindBool
	KindText
	KindPosition
	KindPoint3D
	KindPoint4D
	KindSize
	KindColor
	KindScrollMode
	KindJumpStyle
	KindDecelerationRate
	KindMedia
	KindPulse
	KindLayer
)

var kindNames = map[Kind]string{
	KindAny:              "any",
	KindNumber:           "number",
	KindBool:             "bool",
	KindText:             "text",
	KindPosition:         "position",
	KindPoint3D:          "point3D",
	KindPoint4D:          "point4D",
	KindSize:             "size",
	KindColor:            "color",
	KindScrollMode:       "scrollMode",
	KindJumpStyle:        "jumpStyle",
	KindDecelerationRate: "decelerationRate",
	KindMedia:            "media",
	KindPulse:            "pulse",
	KindLayer:            "layer",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind resolves a kind name as printed by Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindAny, fmt.Errorf("unknown value kind %q", s)
}

// Numeric reports whether arithmetic is defined component-wise for k.
func (k Kind) Numeric() bool {
	switch k {
	case KindNumber, KindPosition, KindPoint3D, KindPoint4D, KindSize, KindColor:
		return true
	}
	return false
}
