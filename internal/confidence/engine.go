// Package confidence implements the deterministic verified/plausible/
// unverified/disputed/retracted classification ladder: a small set of base
// rules evaluated in strict order, then modifiers (caps, downgrades,
// upgrades) applied in that fixed order.
package confidence

import (
	"strings"

	"github.com/rohankatakam/strategos-engine/internal/model"
)

// signals is the set of boolean/numeric facts scanned out of a pathway's
// level outputs before the rule ladder runs.
type signals struct {
	retracted            bool
	contradictory        bool
	confirmations        int
	highBias             bool
	methodologyUnsound   bool
	methodologyBadLevels bool // any level individually flags high p-hacking/cherry-picking
	abRatingCount        int
	otherRatingCount     int

	industryFundingNoReplication bool
	testimonialOnly              bool
	lowHierarchyOnly             bool
	smallSample                  bool
	contrarianCredible           bool
	largeEffect                  bool
	doseResponse                 bool
}

// Evaluate computes the confidence for one evidence item from the list of
// level outputs its pathway produced (some entries may be nil, representing
// a gap). Deterministic and pure: permuting results does not change the
// rule that fires, since every rule only sums/ORs across the full set.
func Evaluate(results []*model.LevelOutput) model.ConfidenceResult {
	s := scan(results)
	var rationale []string
	var flags []string

	base, baseReason := applyRules(s)
	rationale = append(rationale, baseReason)

	if base == model.ConfidenceRetracted {
		return model.ConfidenceResult{
			Confidence: base,
			Label:      base.Label(),
			Rationale:  strings.Join(rationale, "; "),
		}
	}

	conf := base

	// Caps (never exceed P), applied first. capped tracks whether any cap
	// fired, since a cap bounds the whole evaluation, not just the step
	// it fired on — a later upgrade must not step back past it.
	capped := false
	if s.industryFundingNoReplication {
		conf = model.CapAt(conf, model.ConfidencePlausible)
		capped = true
		rationale = append(rationale, "capped: industry funding without replication")
		flags = append(flags, "industry-funding-no-replication")
	}
	if s.testimonialOnly {
		conf = model.CapAt(conf, model.ConfidencePlausible)
		capped = true
		rationale = append(rationale, "capped: testimonial evidence only")
	}
	if s.lowHierarchyOnly {
		conf = model.CapAt(conf, model.ConfidencePlausible)
		capped = true
		rationale = append(rationale, "capped: low-hierarchy evidence only")
		flags = append(flags, "low-hierarchy-only")
	}
	if s.smallSample {
		conf = model.CapAt(conf, model.ConfidencePlausible)
		capped = true
		rationale = append(rationale, "capped: sample size < 30")
		flags = append(flags, "small-sample")
	}

	// Downgrade by 1, applied at most once.
	if s.methodologyBadLevels || s.contrarianCredible {
		conf = model.StepDown(conf)
		if s.methodologyBadLevels {
			rationale = append(rationale, "downgraded: high p-hacking/cherry-picking risk")
		}
		if s.contrarianCredible {
			rationale = append(rationale, "downgraded: credible contrarian evidence")
		}
	}

	// Upgrade by 1, then re-clamped against any cap applied above.
	if s.largeEffect {
		conf = model.StepUp(conf)
		rationale = append(rationale, "upgraded: large effect size")
	}
	if s.doseResponse {
		conf = model.StepUp(conf)
		rationale = append(rationale, "upgraded: dose-response relationship")
	}
	if capped {
		conf = model.CapAt(conf, model.ConfidencePlausible)
	}

	return model.ConfidenceResult{
		Confidence: conf,
		Label:      conf.Label(),
		Rationale:  strings.Join(rationale, "; "),
		Flags:      flags,
	}
}

// applyRules runs the base classification rules in strict order and returns
// the first matching confidence plus the rule's rationale fragment.
func applyRules(s signals) (model.Confidence, string) {
	switch {
	case s.retracted:
		return model.ConfidenceRetracted, "retraction detected"
	case s.contradictory:
		return model.ConfidenceDisputed, "contradictory evidence of equal quality"
	case s.confirmations >= 3 && s.abRatingCount >= 3 && !s.highBias && !s.methodologyUnsound:
		return model.ConfidenceVerified, "3+ confirmations, 3+ A/B sources, no bias, sound methodology"
	case s.confirmations >= 1 || s.abRatingCount >= 1 || s.otherRatingCount >= 3 || (s.highBias && s.confirmations > 0):
		return model.ConfidencePlausible, "partial confirmation or source support"
	default:
		return model.ConfidenceUnverified, "insufficient confirmation"
	}
}

// scan derives the boolean/numeric signal set from a pathway's level
// outputs. A nil entry contributes nothing (a gap).
func scan(results []*model.LevelOutput) signals {
	var s signals

	for _, r := range results {
		if r == nil {
			continue
		}
		f := r.Findings
		if f == nil {
			f = map[string]interface{}{}
		}

		if boolField(f, "retracted") || stringField(f, "confidence") == string(model.ConfidenceRetracted) {
			s.retracted = true
		}
		if listField(f, "contradictoryEvidence") != nil && len(listField(f, "contradictoryEvidence")) > 0 {
			s.contradictory = true
		}

		if boolField(f, "replicationExists") && boolField(f, "replicationConfirms") {
			s.confirmations++
		}
		s.confirmations += len(listField(f, "independentSources"))
		s.confirmations += len(listField(f, "independentReports"))
		s.confirmations += len(listField(f, "independentEvaluations"))
		s.confirmations += len(listField(f, "additionalTestimonials"))
		if boolField(f, "valuesMatch") {
			s.confirmations++
		}
		if boolField(f, "convergence") {
			s.confirmations++
		}

		if stringField(f, "overallBias") == "high" || boolField(f, "conflictsFound") || truthy(f["fundingBiasPattern"]) {
			s.highBias = true
		}

		if f["methodsAppropriate"] != nil && !boolField(f, "methodsAppropriate") {
			s.methodologyUnsound = true
		}
		if stringField(f, "pHackingRisk") == "high" || stringField(f, "cherryPickingRisk") == "high" {
			s.methodologyUnsound = true
			s.methodologyBadLevels = true
		}

		switch r.SourceRating {
		case "A", "B":
			s.abRatingCount++
		case "":
		default:
			s.otherRatingCount++
		}

		if boolField(f, "industryFundingNoReplication") {
			s.industryFundingNoReplication = true
		}
		if boolField(f, "testimonialOnly") {
			s.testimonialOnly = true
		}
		if boolField(f, "lowHierarchyOnly") {
			s.lowHierarchyOnly = true
		}
		if n, ok := numberField(f, "sampleSize"); ok && n < 30 {
			s.smallSample = true
		}
		if boolField(f, "contrarianCredible") {
			s.contrarianCredible = true
		}
		if boolField(f, "largeEffect") {
			s.largeEffect = true
		}
		if boolField(f, "doseResponse") {
			s.doseResponse = true
		}
	}

	return s
}

func boolField(m map[string]interface{}, key string) bool {
	v, ok := m[key].(bool)
	return ok && v
}

func stringField(m map[string]interface{}, key string) string {
	v, _ := m[key].(string)
	return v
}

func numberField(m map[string]interface{}, key string) (float64, bool) {
	switch n := m[key].(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func listField(m map[string]interface{}, key string) []interface{} {
	v, _ := m[key].([]interface{})
	return v
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != ""
	case nil:
		return false
	default:
		return true
	}
}
