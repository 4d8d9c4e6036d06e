package value

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// LoopFromAny builds a loop of kind k from a decoded YAML, JSON or CUE
// document. A list becomes one value per element; anything else becomes a
// loop of length one.
func LoopFromAny(k Kind, raw any) (Loop, error) {
	list, ok := raw.([]any)
	if !ok {
		v, err := FromAny(k, raw)
		if err != nil {
			return nil, err
		}
		return Loop{v}, nil
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("empty loop")
	}
	out := make(Loop, len(list))
	for i, elem := range list {
		v, err := FromAny(k, elem)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// FromAny converts one decoded document value to a PortValue of kind k.
// Scalars are coerced into k; vector kinds accept a map of component
// names; enum kinds accept their names.
func FromAny(k Kind, raw any) (PortValue, error) {
	switch val := raw.(type) {
	case map[string]any:
		return fromMap(k, val)
	case string:
		switch k {
		case KindScrollMode:
			return parseScrollMode(val)
		case KindJumpStyle:
			if val == "animated" {
				return JumpAnimated, nil
			}
			if val == "instant" {
				return JumpInstant, nil
			}
			return nil, fmt.Errorf("unknown jump style %q", val)
		case KindDecelerationRate:
			if val == "fast" {
				return DecelerationFast, nil
			}
			if val == "normal" {
				return DecelerationNormal, nil
			}
			return nil, fmt.Errorf("unknown deceleration rate %q", val)
		case KindMedia:
			return Media{ID: val}, nil
		case KindLayer:
			return Layer(val), nil
		}
		return Coerce(Text(val), k), nil
	case bool:
		return Coerce(Bool(val), k), nil
	case nil:
		return Default(k), nil
	}
	n, err := toFloat(raw)
	if err != nil {
		return nil, err
	}
	return Coerce(Number(n), k), nil
}

func parseScrollMode(s string) (ScrollMode, error) {
	switch s {
	case "free":
		return ScrollFree, nil
	case "paging":
		return ScrollPaging, nil
	case "disabled":
		return ScrollDisabled, nil
	}
	return ScrollFree, fmt.Errorf("unknown scroll mode %q", s)
}

func fromMap(k Kind, m map[string]any) (PortValue, error) {
	get := func(keys ...string) (float64, error) {
		for _, key := range keys {
			if raw, ok := m[key]; ok {
				return toFloat(raw)
			}
		}
		return 0, nil
	}
	var c []float64
	var names [][]string
	switch k {
	case KindPosition:
		names = [][]string{{"x"}, {"y"}}
	case KindSize:
		names = [][]string{{"width", "w"}, {"height", "h"}}
	case KindPoint3D:
		names = [][]string{{"x"}, {"y"}, {"z"}}
	case KindPoint4D:
		names = [][]string{{"x"}, {"y"}, {"z"}, {"w"}}
	case KindColor:
		names = [][]string{{"r", "red"}, {"g", "green"}, {"b", "blue"}, {"a", "alpha"}}
	case KindPulse:
		t, err := get("time")
		return Pulse(t), err
	default:
		return nil, fmt.Errorf("kind %s does not accept a map", k)
	}
	for _, keys := range names {
		f, err := get(keys...)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", keys[0], err)
		}
		c = append(c, f)
	}
	if k == KindColor && !hasAny(m, "a", "alpha") {
		c[3] = 1
	}
	return fromComponents(k, c), nil
}

func toFloat(raw any) (float64, error) {
	switch n := raw.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(n, 64)
	}
	return 0, fmt.Errorf("expected a number, got %T", raw)
}

func hasAny(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}
