package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces canonical JSON for a PortValue or a Loop.
// Traces and golden files use this encoding, so two runs with identical
// input history produce byte-identical output.
//
// Differences from json.Marshal:
// 1. Object keys sorted by UTF-16 code units
// 2. No HTML escaping (< > & are NOT escaped)
// 3. Strings are NFC normalized
// 4. Floats use the shortest round-trip form; NaN and Inf are errors
//
// Numbers, bools and text encode as bare JSON scalars. Every other variant
// encodes as an object tagged with its kind.
func MarshalCanonical(v any) ([]byte, error) {
	switch val := v.(type) {
	case Loop:
		return marshalCanonicalLoop(val)
	case []PortValue:
		return marshalCanonicalLoop(Loop(val))
	case PortValue:
		return marshalCanonicalValue(val)
	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

// CanonicalString is MarshalCanonical returning a string. Encoding errors
// are rendered inline so callers that only log or display never fail.
func CanonicalString(v any) string {
	b, err := MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(b)
}

func marshalCanonicalLoop(l Loop) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := marshalCanonicalValue(elem)
		if err != nil {
			return nil, fmt.Errorf("loop[%d]: %w", i, err)
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

type field struct {
	key string
	val any
}

func marshalCanonicalValue(v PortValue) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("nil value is forbidden in canonical JSON")
	case Number:
		return marshalCanonicalFloat(float64(val))
	case Bool:
		return []byte(strconv.FormatBool(bool(val))), nil
	case Text:
		return marshalCanonicalString(string(val))
	case Position:
		return marshalCanonicalObject(KindPosition, field{"x", val.X}, field{"y", val.Y})
	case Size:
		return marshalCanonicalObject(KindSize, field{"width", val.Width}, field{"height", val.Height})
	case Point3D:
		return marshalCanonicalObject(KindPoint3D, field{"x", val.X}, field{"y", val.Y}, field{"z", val.Z})
	case Point4D:
		return marshalCanonicalObject(KindPoint4D,
			field{"x", val.X}, field{"y", val.Y}, field{"z", val.Z}, field{"w", val.W})
	case Color:
		return marshalCanonicalObject(KindColor,
			field{"r", val.R}, field{"g", val.G}, field{"b", val.B}, field{"a", val.A})
	case ScrollMode:
		return marshalCanonicalObject(KindScrollMode, field{"value", val.String()})
	case JumpStyle:
		return marshalCanonicalObject(KindJumpStyle, field{"value", val.String()})
	case DecelerationRate:
		return marshalCanonicalObject(KindDecelerationRate, field{"value", val.String()})
	case Media:
		return marshalCanonicalObject(KindMedia, field{"id", val.ID})
	case Pulse:
		return marshalCanonicalObject(KindPulse, field{"time", float64(val)})
	case Layer:
		return marshalCanonicalObject(KindLayer, field{"id", string(val)})
	default:
		return nil, fmt.Errorf("unsupported value type for canonical JSON: %T", v)
	}
}

func marshalCanonicalObject(k Kind, fields ...field) ([]byte, error) {
	fields = append(fields, field{"kind", k.String()})
	slices.SortFunc(fields, func(a, b field) int { return compareKeysUTF16(a.key, b.key) })

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := marshalCanonicalString(f.key)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", f.key, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		var valBytes []byte
		switch fv := f.val.(type) {
		case float64:
			valBytes, err = marshalCanonicalFloat(fv)
		case string:
			valBytes, err = marshalCanonicalString(fv)
		default:
			err = fmt.Errorf("unsupported field type %T", fv)
		}
		if err != nil {
			return nil, fmt.Errorf("value for key %q: %w", f.key, err)
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// marshalCanonicalFloat formats f in the shortest form that round-trips,
// switching to exponent notation outside [1e-6, 1e21) like ECMAScript.
func marshalCanonicalFloat(f float64) ([]byte, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite number %v is forbidden in canonical JSON", f)
	}
	if f == 0 {
		return []byte("0"), nil
	}
	abs := math.Abs(f)
	if abs >= 1e-6 && abs < 1e21 {
		return []byte(strconv.FormatFloat(f, 'f', -1, 64)), nil
	}
	return []byte(strconv.FormatFloat(f, 'e', -1, 64)), nil
}

// marshalCanonicalString produces a JSON string with NFC normalization and
// without HTML escaping. U+2028 and U+2029 are emitted literally.
func marshalCanonicalString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	// json.Encoder adds a trailing newline.
	result := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	return unescapeLineSeparators(result), nil
}

// unescapeLineSeparators turns the \u2028 and \u2029 escapes emitted by
// encoding/json back into literal characters. An escape preceded by an odd
// run of backslashes is itself escaped text and is left alone.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if i+6 <= len(data) && bytes.HasPrefix(data[i:], []byte(`\u202`)) && (data[i+5] == '8' || data[i+5] == '9') {
			backslashes := 0
			for j := len(out) - 1; j >= 0 && out[j] == '\\'; j-- {
				backslashes++
			}
			if backslashes%2 == 0 {
				if data[i+5] == '8' {
					out = append(out, "\u2028"...)
				} else {
					out = append(out, "\u2029"...)
				}
				i += 5
				continue
			}
		}
		out = append(out, data[i])
	}
	return out
}

// compareKeysUTF16 orders strings by UTF-16 code units.
func compareKeysUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	for i := 0; i < len(a16) && i < len(b16); i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	return len(a16) - len(b16)
}
