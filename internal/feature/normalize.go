package feature

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ValidationError reports a recognised feature key whose value cannot be used.
type ValidationError struct {
	Key    string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid feature %q: %s", e.Key, e.Reason)
}

// Normalize maps raw input onto the fixed 30-slot vector.
//
// Keys are matched case-insensitively against Time, V1..V28 and Amount.
// Unrecognised keys are ignored and absent slots are 0.0.
func Normalize(raw map[string]any) (Vector, error) {
	var v Vector
	seen := make(map[int]string, len(raw))

	// Sorted keys keep the reported error stable when several are bad.
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		slot, ok := Slot(key)
		if !ok {
			continue
		}
		f, err := toFloat(raw[key])
		if err != nil {
			return Vector{}, &ValidationError{Key: key, Reason: err.Error()}
		}
		if prev, dup := seen[slot]; dup && v[slot] != f {
			return Vector{}, &ValidationError{
				Key:    key,
				Reason: fmt.Sprintf("conflicts with %q for slot %s", prev, Names[slot]),
			}
		}
		seen[slot] = key
		v[slot] = f
	}
	return v, nil
}

func toFloat(val any) (float64, error) {
	var f float64
	switch n := val.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("malformed number %q", n.String())
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("malformed number %q", n)
		}
		f = parsed
	case nil:
		return 0, fmt.Errorf("value is null")
	default:
		return 0, fmt.Errorf("unsupported type %T", val)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("value must be finite")
	}
	return f, nil
}
