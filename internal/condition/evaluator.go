// Package condition implements the branch expression DSL evaluated against
// a level's published signals.
package condition

import (
	"fmt"
	"strconv"

	"github.com/rohankatakam/strategos-engine/internal/model"
)

// Evaluate is a pure function: given a condition and a signals map, it
// returns whether the condition is satisfied. Deterministic for identical
// inputs, no I/O, no global state.
func Evaluate(cond model.Condition, signals map[string]interface{}) bool {
	if signals == nil {
		return false
	}

	switch cond.Operator {
	case model.OpExists:
		return fieldExists(signals, cond.Field)
	case model.OpNotExists:
		return !fieldExists(signals, cond.Field)
	case model.OpEquals:
		actual, ok := signals[cond.Field]
		return ok && equalValues(actual, cond.Value)
	case model.OpNotEquals:
		actual, ok := signals[cond.Field]
		if !ok {
			return true
		}
		return !equalValues(actual, cond.Value)
	case model.OpContains:
		actual := toString(signals[cond.Field])
		return containsString(actual, toString(cond.Value))
	case model.OpGreaterThan:
		a, aok := toNumber(signals[cond.Field])
		b, bok := toNumber(cond.Value)
		return aok && bok && a > b
	case model.OpLessThan:
		a, aok := toNumber(signals[cond.Field])
		b, bok := toNumber(cond.Value)
		return aok && bok && a < b
	case model.OpIn:
		list, ok := cond.Value.([]interface{})
		if !ok {
			return false
		}
		actual := signals[cond.Field]
		for _, v := range list {
			if equalValues(actual, v) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func fieldExists(signals map[string]interface{}, field string) bool {
	v, ok := signals[field]
	return ok && v != nil
}

func equalValues(a, b interface{}) bool {
	an, aok := toNumber(a)
	bn, bok := toNumber(b)
	if aok && bok {
		return an == bn
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func containsString(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	return len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

func toString(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func toNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
