package condition_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rohankatakam/strategos-engine/internal/condition"
	"github.com/rohankatakam/strategos-engine/internal/model"
)

func TestEvaluate_Operators(t *testing.T) {
	cases := []struct {
		name     string
		cond     model.Condition
		signals  map[string]interface{}
		expected bool
	}{
		{"equals true", model.Condition{Field: "retracted", Operator: model.OpEquals, Value: true}, map[string]interface{}{"retracted": true}, true},
		{"equals false", model.Condition{Field: "retracted", Operator: model.OpEquals, Value: true}, map[string]interface{}{"retracted": false}, false},
		{"notEquals missing field is true", model.Condition{Field: "missing", Operator: model.OpNotEquals, Value: "x"}, map[string]interface{}{}, true},
		{"contains match", model.Condition{Field: "summary", Operator: model.OpContains, Value: "risk"}, map[string]interface{}{"summary": "high risk found"}, true},
		{"contains no match", model.Condition{Field: "summary", Operator: model.OpContains, Value: "risk"}, map[string]interface{}{"summary": "all clear"}, false},
		{"contains nil field", model.Condition{Field: "summary", Operator: model.OpContains, Value: "risk"}, map[string]interface{}{}, false},
		{"greaterThan true", model.Condition{Field: "score", Operator: model.OpGreaterThan, Value: 5.0}, map[string]interface{}{"score": 7.0}, true},
		{"greaterThan false", model.Condition{Field: "score", Operator: model.OpGreaterThan, Value: 5.0}, map[string]interface{}{"score": 3.0}, false},
		{"lessThan true", model.Condition{Field: "score", Operator: model.OpLessThan, Value: 5.0}, map[string]interface{}{"score": 3.0}, true},
		{"in match", model.Condition{Field: "type", Operator: model.OpIn, Value: []interface{}{"GOV", "SCI"}}, map[string]interface{}{"type": "SCI"}, true},
		{"in no match", model.Condition{Field: "type", Operator: model.OpIn, Value: []interface{}{"GOV", "SCI"}}, map[string]interface{}{"type": "FIN"}, false},
		{"in strict non-list value is false", model.Condition{Field: "type", Operator: model.OpIn, Value: "SCI"}, map[string]interface{}{"type": "SCI"}, false},
		{"exists true", model.Condition{Field: "findings", Operator: model.OpExists}, map[string]interface{}{"findings": "x"}, true},
		{"exists false for nil value", model.Condition{Field: "findings", Operator: model.OpExists}, map[string]interface{}{"findings": nil}, false},
		{"exists false for missing key", model.Condition{Field: "findings", Operator: model.OpExists}, map[string]interface{}{}, false},
		{"notExists true", model.Condition{Field: "findings", Operator: model.OpNotExists}, map[string]interface{}{}, true},
		{"unknown operator is false", model.Condition{Field: "x", Operator: "unknown"}, map[string]interface{}{"x": 1}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, condition.Evaluate(tc.cond, tc.signals))
		})
	}
}

func TestEvaluate_NilSignalsIsFalse(t *testing.T) {
	cond := model.Condition{Field: "x", Operator: model.OpExists}
	assert.False(t, condition.Evaluate(cond, nil))
}

func TestEvaluate_Deterministic(t *testing.T) {
	cond := model.Condition{Field: "retracted", Operator: model.OpEquals, Value: true}
	signals := map[string]interface{}{"retracted": true}

	first := condition.Evaluate(cond, signals)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, condition.Evaluate(cond, signals))
	}
}
