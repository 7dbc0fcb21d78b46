package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rohankatakam/strategos-engine/internal/model"
)

func TestLevelByDepth_FindsMatchingDepth(t *testing.T) {
	p := model.Pathway{
		Levels: []model.LevelDef{
			{Depth: 1, Name: "first"},
			{Depth: 2, Name: "second"},
		},
	}
	level := p.LevelByDepth(2)
	assert.NotNil(t, level)
	assert.Equal(t, "second", level.Name)
}

func TestLevelByDepth_MissingDepthIsNil(t *testing.T) {
	p := model.Pathway{Levels: []model.LevelDef{{Depth: 1}}}
	assert.Nil(t, p.LevelByDepth(3))
}

func TestSignalsFrom_PrefersBranchSignalsOverFindings(t *testing.T) {
	out := &model.LevelOutput{
		Findings:      map[string]interface{}{"a": 1},
		BranchSignals: map[string]interface{}{"b": 2},
	}
	signals := model.SignalsFrom(out)
	assert.Equal(t, map[string]interface{}{"b": 2}, signals)
}

func TestSignalsFrom_FallsBackToFindings(t *testing.T) {
	out := &model.LevelOutput{Findings: map[string]interface{}{"a": 1}}
	signals := model.SignalsFrom(out)
	assert.Equal(t, map[string]interface{}{"a": 1}, signals)
}

func TestSignalsFrom_NilOutputIsEmptyNotNil(t *testing.T) {
	signals := model.SignalsFrom(nil)
	assert.NotNil(t, signals)
	assert.Empty(t, signals)
}

func TestPathwayIDForType_ClosedSet(t *testing.T) {
	assert.Equal(t, "P-SCI", model.PathwayIDForType(model.EvidenceSCI))
	assert.Equal(t, "", model.PathwayIDForType(model.EvidenceType("ZZZ")))
}
