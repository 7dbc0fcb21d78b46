// Package pipeline sequences the five research phases: planning,
// classification, investigation, adjudication, synthesis.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rohankatakam/strategos-engine/internal/adjudicate"
	"github.com/rohankatakam/strategos-engine/internal/errors"
	"github.com/rohankatakam/strategos-engine/internal/events"
	"github.com/rohankatakam/strategos-engine/internal/gateway"
	"github.com/rohankatakam/strategos-engine/internal/graph/validator"
	"github.com/rohankatakam/strategos-engine/internal/investigation"
	"github.com/rohankatakam/strategos-engine/internal/model"
)

// Phase timeouts.
const (
	PlanningTimeout       = 45 * time.Minute
	ClassificationTimeout = 30 * time.Minute
	SynthesisTimeout      = 45 * time.Minute
)

// Classification worker pool bounds.
const (
	ClassificationWorkersMin = 3
	ClassificationWorkersMax = 5
)

// Orchestrator sequences the five phases for a single project.
type Orchestrator struct {
	gateway      *gateway.Gateway
	investigator *investigation.Orchestrator
	adjudicator  *adjudicate.Adjudicator
	emit         events.Emitter
	logger       *slog.Logger
}

// NewOrchestrator creates a pipeline Orchestrator.
func NewOrchestrator(gw *gateway.Gateway, investigator *investigation.Orchestrator, adjudicator *adjudicate.Adjudicator, emit events.Emitter, logger *slog.Logger) *Orchestrator {
	if emit == nil {
		emit = events.NoOp
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{gateway: gw, investigator: investigator, adjudicator: adjudicator, emit: emit, logger: logger.With("component", "pipeline")}
}

// Run drives project through all five phases. A fatal error from any phase
// (planning failure, synthesis failure, or every classification worker
// failing) transitions project to StatusError and is returned; a validator
// failure on synthesis is non-fatal.
func (o *Orchestrator) Run(ctx context.Context, project *model.Project) error {
	o.emit.Emit(events.TypePipeline, map[string]interface{}{"projectId": project.ID, "status": "started"})

	if err := o.run(ctx, project); err != nil {
		project.Touch(model.StatusError, err.Error())
		o.emit.Emit(events.TypeErrorEvent, map[string]interface{}{"projectId": project.ID, "error": err.Error()})
		return err
	}

	project.Touch(model.StatusComplete, "")
	o.emit.Emit(events.TypeComplete, map[string]interface{}{"projectId": project.ID})
	return nil
}

func (o *Orchestrator) run(ctx context.Context, project *model.Project) error {
	plan, err := o.planning(ctx, project)
	if err != nil {
		return fmt.Errorf("planning: %w", err)
	}

	manifests, err := o.classification(ctx, project, plan)
	if err != nil {
		return fmt.Errorf("classification: %w", err)
	}

	var items []model.EvidenceItem
	for _, m := range manifests {
		items = append(items, m.EvidenceItems...)
	}

	project.Touch(model.StatusInvestigation, "")
	o.emit.Emit(events.TypePhase, map[string]interface{}{"phase": "investigation", "status": "started"})
	results, summary := o.investigator.Run(ctx, items)
	o.writeSummary(project, summary)
	o.emit.Emit(events.TypePhase, map[string]interface{}{"phase": "investigation", "status": "done"})

	project.Touch(model.StatusAdjudication, "")
	o.emit.Emit(events.TypePhase, map[string]interface{}{"phase": "adjudication", "status": "started"})
	adjudicated := o.adjudicator.Run(ctx, project, plan, manifests, results)
	o.emit.Emit(events.TypePhase, map[string]interface{}{"phase": "adjudication", "status": "done"})

	return o.synthesis(ctx, project, adjudicated)
}

func (o *Orchestrator) planning(ctx context.Context, project *model.Project) (*model.Plan, error) {
	project.Touch(model.StatusPlanning, "")
	o.emit.Emit(events.TypePhase, map[string]interface{}{"phase": "planning", "status": "started"})

	outputPath := filepath.Join(project.Directory, "plan.json")
	taskDescription := fmt.Sprintf(
		"Decompose the research topic %q into 5-8 sub-questions, each with id, question, scope, and expectedEvidenceTypes. "+
			"At least one sub-question MUST concern actionable recommendations. Write the result as JSON to: %s",
		project.Topic, outputPath)

	workerID, err := o.gateway.Spawn(ctx, "planning", "plan-"+project.ID, project.Directory, "", taskDescription)
	if err != nil {
		return nil, errors.ExternalError(err, "planning worker spawn failed")
	}
	o.emit.Emit(events.TypeWorker, map[string]interface{}{"phase": "planning", "status": "spawned", "workerId": workerID})
	defer o.gateway.Delete(context.Background(), workerID)

	if _, err := o.gateway.WaitForDone(ctx, workerID, PlanningTimeout); err != nil {
		return nil, errors.ExternalError(err, "planning worker did not complete")
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, errors.FileSystemError(err, "plan.json not found")
	}

	var plan model.Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, errors.ValidationError("plan.json is not valid JSON")
	}
	if len(plan.SubQuestions) == 0 {
		return nil, errors.ValidationError("plan has zero sub-questions")
	}

	o.emit.Emit(events.TypeWorker, map[string]interface{}{"phase": "planning", "status": "done"})
	o.emit.Emit(events.TypePhase, map[string]interface{}{"phase": "planning", "status": "done", "subQuestions": len(plan.SubQuestions)})

	return &plan, nil
}

// classification distributes SubQuestions across 3-5 parallel workers
// (workerCount = clamp(ceil(|Q|/2), 3, 5)) by ceil-division batches. The
// phase fails only if every worker fails, in which case it returns an error
// and project transitions to StatusError; otherwise surviving manifests are
// kept and the phase is marked partial_failure.
func (o *Orchestrator) classification(ctx context.Context, project *model.Project, plan *model.Plan) ([]model.EvidenceManifest, error) {
	project.Touch(model.StatusClassification, "")
	o.emit.Emit(events.TypePhase, map[string]interface{}{"phase": "classification", "status": "started"})

	workerCount := clamp(int(math.Ceil(float64(len(plan.SubQuestions))/2)), ClassificationWorkersMin, ClassificationWorkersMax)
	batches := batchSubQuestions(plan.SubQuestions, workerCount)

	manifests := make([]model.EvidenceManifest, len(batches))
	failed := make([]bool, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			m, err := o.classifyBatch(gctx, project, batch, i)
			if err != nil {
				o.logger.Warn("classification worker failed", "batch", i, "error", err)
				o.emit.Emit(events.TypeWorker, map[string]interface{}{"phase": "classification", "status": "failed", "batch": i})
				failed[i] = true
				return nil
			}
			manifests[i] = m
			o.emit.Emit(events.TypeWorker, map[string]interface{}{"phase": "classification", "status": "done", "batch": i})
			return nil
		})
	}
	_ = g.Wait()

	var survivors []model.EvidenceManifest
	allFailed := true
	for i, m := range manifests {
		if !failed[i] {
			allFailed = false
			survivors = append(survivors, m)
		}
	}

	status := "done"
	if allFailed && len(batches) > 0 {
		status = "all_failed"
	} else if len(survivors) < len(batches) {
		status = "partial_failure"
	}
	o.emit.Emit(events.TypePhase, map[string]interface{}{"phase": "classification", "status": status, "manifests": len(survivors)})

	if allFailed && len(batches) > 0 {
		return nil, errors.New(errors.ErrorTypeExternal, errors.SeverityHigh, "all classification workers failed")
	}

	return survivors, nil
}

func (o *Orchestrator) classifyBatch(ctx context.Context, project *model.Project, batch []model.SubQuestion, batchIndex int) (model.EvidenceManifest, error) {
	outputPath := filepath.Join(project.Directory, fmt.Sprintf("manifest-%d.json", batchIndex))

	var ids []string
	for _, q := range batch {
		ids = append(ids, q.ID)
	}
	taskDescription := fmt.Sprintf(
		"For sub-questions %v of topic %q, gather and classify evidence items into the eleven evidence types. "+
			"Write a manifest with subQuestions and evidenceItems as JSON to: %s",
		ids, project.Topic, outputPath)

	workerID, err := o.gateway.Spawn(ctx, "classification", fmt.Sprintf("classify-%s-%d", project.ID, batchIndex), project.Directory, "", taskDescription)
	if err != nil {
		return model.EvidenceManifest{}, err
	}
	defer o.gateway.Delete(context.Background(), workerID)

	if _, err := o.gateway.WaitForDone(ctx, workerID, ClassificationTimeout); err != nil {
		return model.EvidenceManifest{}, err
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		return model.EvidenceManifest{}, err
	}

	var manifest model.EvidenceManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return model.EvidenceManifest{}, err
	}

	return manifest, nil
}

func (o *Orchestrator) synthesis(ctx context.Context, project *model.Project, adjudicated []model.AdjudicatedEvidence) error {
	project.Touch(model.StatusSynthesis, "")
	o.emit.Emit(events.TypePhase, map[string]interface{}{"phase": "synthesis", "status": "started"})

	outputPath := filepath.Join(project.Directory, "graph.json")
	taskDescription := fmt.Sprintf(
		"Assemble the validated knowledge graph for topic %q from %d adjudicated evidence records. "+
			"Write the result as JSON to: %s",
		project.Topic, len(adjudicated), outputPath)

	workerID, err := o.gateway.Spawn(ctx, "synthesis", "synthesis-"+project.ID, project.Directory, "", taskDescription)
	if err != nil {
		return errors.ExternalError(err, "synthesis worker spawn failed")
	}
	defer o.gateway.Delete(context.Background(), workerID)

	if _, err := o.gateway.WaitForDone(ctx, workerID, SynthesisTimeout); err != nil {
		return errors.ExternalError(err, "synthesis worker did not complete")
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		return errors.FileSystemError(err, "graph.json not found")
	}

	var kg model.KnowledgeGraph
	if err := json.Unmarshal(data, &kg); err != nil {
		return errors.ValidationError("graph.json is not valid JSON")
	}

	report := validator.Validate(&kg)
	o.emit.Emit(events.TypeValidation, map[string]interface{}{
		"valid": report.Valid, "errors": len(report.Errors), "warnings": len(report.Warnings),
	})

	if !report.Valid {
		// Validation failure is non-fatal: record it alongside the
		// artifact and keep going.
		errData, _ := json.MarshalIndent(report, "", "  ")
		_ = os.WriteFile(filepath.Join(project.Directory, "validation-errors.json"), errData, 0644)
		o.logger.Warn("graph validation failed", "projectId", project.ID, "errors", report.Errors)
	}

	o.emit.Emit(events.TypePhase, map[string]interface{}{"phase": "synthesis", "status": "done"})
	return nil
}

func (o *Orchestrator) writeSummary(project *model.Project, summary investigation.Summary) {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(project.Directory, "summary.json"), data, 0644)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// batchSubQuestions splits questions into workerCount batches by
// ceil-division, e.g. 11 items / 5 workers -> batches of 3,3,3,2 (fewer
// batches than workers when the last batch fills early).
func batchSubQuestions(questions []model.SubQuestion, workerCount int) [][]model.SubQuestion {
	if workerCount <= 0 || len(questions) == 0 {
		return nil
	}
	perBatch := int(math.Ceil(float64(len(questions)) / float64(workerCount)))

	var batches [][]model.SubQuestion
	for start := 0; start < len(questions); start += perBatch {
		end := start + perBatch
		if end > len(questions) {
			end = len(questions)
		}
		batches = append(batches, questions[start:end])
	}
	return batches
}
