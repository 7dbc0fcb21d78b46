// Package adjudicate aggregates investigation results per sub-question,
// detects contrarian consensus (triggering the P-CON pathway), and flags
// cross-project disputes.
package adjudicate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rohankatakam/strategos-engine/internal/investigation"
	"github.com/rohankatakam/strategos-engine/internal/model"
)

// ConsensusThreshold and ConsensusMinTotal gate the P-CON trigger.
const (
	ConsensusThreshold = 0.8
	ConsensusMinTotal  = 3
)

// PCONPathwayID is the contrarian-consensus pathway id.
const PCONPathwayID = "P-CON"

// crossProjectDisputeLookupLimit bounds the best-effort reconciliation scan
// to the first N prior matches.
const crossProjectDisputeLookupLimit = 3

// PriorProjectGraph is the minimal shape the Adjudicator needs from a prior
// completed project to perform cross-project reconciliation.
type PriorProjectGraph struct {
	Topic string
	Graph *model.KnowledgeGraph
}

// PriorProjectLookup returns up to crossProjectDisputeLookupLimit prior
// projects whose topic relates to the current one. The engine does not
// define "relates to" — callers (e.g. the out-of-scope source registry /
// BM25 matcher) supply the matches.
type PriorProjectLookup func(ctx context.Context, topic string) []PriorProjectGraph

// Adjudicator aggregates per sub-question and runs the consensus check.
type Adjudicator struct {
	executor     *investigation.Executor
	priorLookup  PriorProjectLookup
	logger       *slog.Logger
}

// NewAdjudicator creates an Adjudicator. priorLookup may be nil, in which
// case cross-project reconciliation is skipped.
func NewAdjudicator(executor *investigation.Executor, priorLookup PriorProjectLookup, logger *slog.Logger) *Adjudicator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adjudicator{executor: executor, priorLookup: priorLookup, logger: logger.With("component", "adjudicate")}
}

// Run produces one AdjudicatedEvidence per evidence item covered by any
// sub-question in plan, applying the consensus and cross-project checks.
func (a *Adjudicator) Run(ctx context.Context, project *model.Project, plan *model.Plan, manifests []model.EvidenceManifest, results []investigation.Result) []model.AdjudicatedEvidence {
	resultByEvidenceID := make(map[string]investigation.Result, len(results))
	for _, r := range results {
		resultByEvidenceID[r.EvidenceID] = r
	}

	var out []model.AdjudicatedEvidence

	for _, q := range plan.SubQuestions {
		items := evidenceForSubQuestion(manifests, q.ID)
		records := a.adjudicateSubQuestion(ctx, project, q, items, resultByEvidenceID)
		out = append(out, records...)
	}

	return out
}

func evidenceForSubQuestion(manifests []model.EvidenceManifest, subQuestionID string) []model.EvidenceItem {
	var items []model.EvidenceItem
	for _, m := range manifests {
		covers := m.SubQuestionID == subQuestionID
		for _, sq := range m.SubQuestions {
			if sq == subQuestionID {
				covers = true
			}
		}
		if covers {
			items = append(items, m.EvidenceItems...)
		}
	}
	return items
}

func (a *Adjudicator) adjudicateSubQuestion(ctx context.Context, project *model.Project, q model.SubQuestion, items []model.EvidenceItem, resultByEvidenceID map[string]investigation.Result) []model.AdjudicatedEvidence {
	var records []model.AdjudicatedEvidence

	for _, item := range items {
		r, ok := resultByEvidenceID[item.ID]
		if !ok {
			continue
		}
		records = append(records, model.AdjudicatedEvidence{
			EvidenceID:      item.ID,
			Confidence:      r.Confidence.Confidence,
			Label:           r.Confidence.Label,
			Rationale:       r.Confidence.Rationale,
			PathwayID:       r.PathwayID,
			LevelsCompleted: r.LevelsCompleted,
			Flags:           append([]string(nil), r.Confidence.Flags...),
		})
	}

	a.applyConsensusCheck(ctx, project, q, records)
	a.applyCrossProjectReconciliation(ctx, project, records)

	return records
}

// applyConsensusCheck mutates records in place: if verifiedFraction > 0.8
// over >= 3 total records, it spawns P-CON and, if that pathway recommends
// a one-level downgrade, rewrites every verified record to plausible.
func (a *Adjudicator) applyConsensusCheck(ctx context.Context, project *model.Project, q model.SubQuestion, records []model.AdjudicatedEvidence) {
	total := len(records)
	if total < ConsensusMinTotal {
		return
	}

	verifiedOrPlausible := 0
	for _, r := range records {
		if r.Confidence == model.ConfidenceVerified || r.Confidence == model.ConfidencePlausible {
			verifiedOrPlausible++
		}
	}
	verifiedFraction := float64(verifiedOrPlausible) / float64(total)
	if verifiedFraction <= ConsensusThreshold {
		return
	}

	consensusItem := model.EvidenceItem{
		ID:               fmt.Sprintf("%s-consensus", q.ID),
		Type:             "",
		Description:      fmt.Sprintf("Contrarian consensus check for sub-question %q", q.Question),
		TriggeredPathway: PCONPathwayID,
	}

	result := a.executor.Run(ctx, consensusItem)
	if !recommendsDowngrade(result.Results) {
		return
	}

	for i := range records {
		if records[i].Confidence == model.ConfidenceVerified {
			records[i].Confidence = model.ConfidencePlausible
			records[i].Label = model.ConfidencePlausible.Label()
			records[i].Flags = append(records[i].Flags, "contrarian-downgrade")
		}
	}
}

// recommendsDowngrade inspects the last non-nil level output's findings for
// adjustmentRecommendation == "downgrade-one-level".
func recommendsDowngrade(results []*model.LevelOutput) bool {
	for i := len(results) - 1; i >= 0; i-- {
		if results[i] == nil {
			continue
		}
		if v, _ := results[i].Findings["adjustmentRecommendation"].(string); v == "downgrade-one-level" {
			return true
		}
		return false
	}
	return false
}

// applyCrossProjectReconciliation is best-effort: a lookup failure or the
// absence of a configured lookup results in no annotation, never an error
// flagging the dispute rather than changing the confidence itself.
func (a *Adjudicator) applyCrossProjectReconciliation(ctx context.Context, project *model.Project, records []model.AdjudicatedEvidence) {
	if a.priorLookup == nil {
		return
	}

	priors := a.priorLookup(ctx, project.Topic)
	if len(priors) > crossProjectDisputeLookupLimit {
		priors = priors[:crossProjectDisputeLookupLimit]
	}

	for _, prior := range priors {
		if prior.Graph == nil {
			continue
		}
		disputed := 0
		for _, n := range prior.Graph.Nodes {
			if n.Confidence == model.ConfidenceDisputed {
				disputed++
			}
		}
		if disputed == 0 {
			continue
		}
		flag := fmt.Sprintf("cross-project-dispute: %s has %d disputed nodes", prior.Topic, disputed)
		for i := range records {
			records[i].Flags = append(records[i].Flags, flag)
		}
	}
}
