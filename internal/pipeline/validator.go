package pipeline

import (
	"encoding/json"
	"math"
)

// Validator accepts records whose identifying field is present and truthy.
type Validator struct {
	Field string
}

// Valid reports whether rec may be handed to the destination. It never mutates rec.
func (v Validator) Valid(rec Record) bool {
	val, ok := rec[v.Field]
	return ok && truthy(val)
}

// truthy follows JSON-value truthiness: null, false, "", 0 and NaN are falsy;
// every array and object is truthy, even when empty.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0 && !math.IsNaN(t)
	case float32:
		return t != 0 && !math.IsNaN(float64(t))
	case int:
		return t != 0
	case int64:
		return t != 0
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	default:
		return true
	}
}
