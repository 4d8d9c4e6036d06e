package value

import (
	"strconv"
	"strings"
)

// Coerce converts v to kind k. Scalars broadcast to every component of a
// vector kind, vectors keep their leading components, numbers format as
// text and text parses as a number. Conversions with no sensible mapping
// yield Default(k).
func Coerce(v PortValue, k Kind) PortValue {
	if v == nil {
		return Default(k)
	}
	if k == KindAny || v.Kind() == k {
		return v
	}
	switch k {
	case KindText:
		return Text(formatText(v))
	case KindBool:
		switch val := v.(type) {
		case Text:
			b, err := strconv.ParseBool(strings.TrimSpace(string(val)))
			return Bool(err == nil && b)
		case Media:
			return Bool(!val.IsNil())
		}
		c := components(v)
		return Bool(len(c) > 0 && c[0] != 0)
	case KindNumber, KindPosition, KindSize, KindPoint3D, KindPoint4D, KindColor:
		if t, ok := v.(Text); ok {
			n, err := strconv.ParseFloat(strings.TrimSpace(string(t)), 64)
			if err != nil {
				return Default(k)
			}
			return broadcast(k, n)
		}
		c := components(v)
		switch len(c) {
		case 0:
			return Default(k)
		case 1:
			return broadcast(k, c[0])
		}
		return fromComponents(k, c)
	case KindPulse:
		if n, ok := AsNumber(v); ok {
			return Pulse(n)
		}
	}
	return Default(k)
}

func broadcast(k Kind, n float64) PortValue {
	return fromComponents(k, []float64{n, n, n, n})
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatText(v PortValue) string {
	switch val := v.(type) {
	case Text:
		return string(val)
	case Bool:
		return strconv.FormatBool(bool(val))
	case Media:
		return val.ID
	case Layer:
		return string(val)
	case ScrollMode:
		return val.String()
	case JumpStyle:
		return val.String()
	case DecelerationRate:
		return val.String()
	}
	c := components(v)
	parts := make([]string, len(c))
	for i, f := range c {
		parts[i] = formatFloat(f)
	}
	return strings.Join(parts, ", ")
}
