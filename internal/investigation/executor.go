// Package investigation implements the per-evidence pathway executor and
// the bounded-concurrency orchestrator that fans it out over every
// evidence item produced by classification.
package investigation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/rohankatakam/strategos-engine/internal/condition"
	"github.com/rohankatakam/strategos-engine/internal/confidence"
	"github.com/rohankatakam/strategos-engine/internal/events"
	"github.com/rohankatakam/strategos-engine/internal/gateway"
	"github.com/rohankatakam/strategos-engine/internal/model"
	"github.com/rohankatakam/strategos-engine/internal/pathway"
	"github.com/rohankatakam/strategos-engine/internal/taskbuilder"
)

// PerLevelTimeout bounds a single level worker's run.
const PerLevelTimeout = 15 * time.Minute

// CrossPathwayDiscovery is a next-evidence-type surfaced by a level, to be
// picked up by the orchestrator's second wave.
type CrossPathwayDiscovery struct {
	EvidenceType model.EvidenceType
	Depth        int
}

// Result is what one pathway run over one evidence item produces.
type Result struct {
	PathwayID      string
	EvidenceID     string
	Results        []*model.LevelOutput
	Confidence     model.ConfidenceResult
	CrossPathways  []CrossPathwayDiscovery
	LevelsCompleted int
}

// Executor runs a single pathway for a single evidence item level by level.
type Executor struct {
	catalog    *pathway.Catalog
	gateway    *gateway.Gateway
	emit       events.Emitter
	workingDir string
	logger     *slog.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(catalog *pathway.Catalog, gw *gateway.Gateway, emit events.Emitter, workingDir string, logger *slog.Logger) *Executor {
	if emit == nil {
		emit = events.NoOp
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{catalog: catalog, gateway: gw, emit: emit, workingDir: workingDir, logger: logger.With("component", "investigation.executor")}
}

// Run executes the pathway identified by item.TriggeredPathway (or, if
// empty, the pathway resolved from item.Type) against item, level by level
// up to model.MaxDepth, honoring branch conditions between levels.
func (e *Executor) Run(ctx context.Context, item model.EvidenceItem) Result {
	pathwayID := item.TriggeredPathway
	if pathwayID == "" {
		pathwayID = model.PathwayIDForType(item.Type)
	}

	e.emit.Emit(events.TypePathwayStarted, map[string]interface{}{
		"pathwayId": pathwayID, "evidenceId": item.ID,
	})

	p, err := e.catalog.Get(pathwayID)
	if err != nil {
		e.logger.Warn("pathway load failed", "pathway", pathwayID, "error", err)
		return Result{
			PathwayID:  pathwayID,
			EvidenceID: item.ID,
			Confidence: model.ConfidenceResult{
				Confidence: model.ConfidenceUnverified,
				Label:      model.ConfidenceUnverified.Label(),
				Rationale:  fmt.Sprintf("Pathway failed: %v", err),
			},
		}
	}

	var results []*model.LevelOutput
	var crossPathways []CrossPathwayDiscovery
	var currentOutput *model.LevelOutput

	for depth := 1; depth <= model.MaxDepth; depth++ {
		level := p.LevelByDepth(depth)
		if level == nil {
			continue
		}

		if depth > 1 {
			signals := model.SignalsFrom(currentOutput)
			prevLevel := p.LevelByDepth(depth - 1)

			if terminated := e.checkTerminate(prevLevel, signals, pathwayID); terminated {
				break
			}
			if !e.shouldRun(prevLevel, signals, depth) {
				continue
			}
		}

		out := e.runLevel(ctx, pathwayID, *level, item, currentOutput)
		results = append(results, out)
		if out != nil {
			currentOutput = out
			for _, t := range out.NextEvidenceTypes {
				if id := model.PathwayIDForType(t); id != "" && id != pathwayID {
					crossPathways = append(crossPathways, CrossPathwayDiscovery{EvidenceType: t, Depth: depth})
				}
			}
		}
	}

	conf := confidence.Evaluate(results)
	e.emit.Emit(events.TypeConfidenceComputed, map[string]interface{}{
		"pathwayId": pathwayID, "evidenceId": item.ID, "confidence": conf.Confidence,
	})
	e.emit.Emit(events.TypePathwayComplete, map[string]interface{}{
		"pathwayId": pathwayID, "evidenceId": item.ID, "levels": len(results),
	})

	return Result{
		PathwayID:       pathwayID,
		EvidenceID:      item.ID,
		Results:         results,
		Confidence:      conf,
		CrossPathways:   crossPathways,
		LevelsCompleted: len(results),
	}
}

// checkTerminate reports whether prevLevel's branches include a satisfied
// TERMINATE (nextLevel == -1) branch.
func (e *Executor) checkTerminate(prevLevel *model.LevelDef, signals map[string]interface{}, pathwayID string) bool {
	if prevLevel == nil {
		return false
	}
	for _, b := range prevLevel.Branches {
		if b.NextLevel == model.TerminateLevel && condition.Evaluate(b.Condition, signals) {
			e.emit.Emit(events.TypePathwayBranch, map[string]interface{}{
				"pathwayId": pathwayID, "action": "terminated", "atDepth": prevLevel.Depth,
			})
			return true
		}
	}
	return false
}

// shouldRun reports whether any of prevLevel's branches targeting depth are
// satisfied. A level with no matching branch is skipped.
func (e *Executor) shouldRun(prevLevel *model.LevelDef, signals map[string]interface{}, depth int) bool {
	if prevLevel == nil {
		return true
	}
	for _, b := range prevLevel.Branches {
		if b.NextLevel == depth && condition.Evaluate(b.Condition, signals) {
			return true
		}
	}
	return false
}

func (e *Executor) runLevel(ctx context.Context, pathwayID string, level model.LevelDef, item model.EvidenceItem, parent *model.LevelOutput) *model.LevelOutput {
	outputPath := filepath.Join(e.workingDir, fmt.Sprintf("%s-%s-level%d.json", pathwayID, item.ID, level.Depth))

	task := taskbuilder.Build(level, model.TaskBuilderContext{Evidence: item, Parent: parent, OutputPath: outputPath})
	taskDescription := fmt.Sprintf("%s\n\nTasks:\n%s\n\nEnd state: %s\n\nWrite your findings as JSON to: %s",
		task.Purpose, joinBulleted(task.KeyTasks), task.EndState, outputPath)

	label := fmt.Sprintf("%s-%s-l%d", pathwayID, item.ID, level.Depth)
	e.emit.Emit(events.TypePathwayLevel, map[string]interface{}{
		"pathwayId": pathwayID, "depth": level.Depth, "status": "spawning",
	})

	workerID, err := e.gateway.Spawn(ctx, task.WorkerTemplate, label, e.workingDir, "", taskDescription)
	if err != nil {
		e.emit.Emit(events.TypePathwayLevel, map[string]interface{}{
			"pathwayId": pathwayID, "depth": level.Depth, "status": "spawn_failed", "error": err.Error(),
		})
		return nil
	}
	e.emit.Emit(events.TypePathwayLevel, map[string]interface{}{
		"pathwayId": pathwayID, "depth": level.Depth, "status": "spawned", "workerId": workerID,
	})

	defer e.gateway.Delete(context.Background(), workerID)

	if _, err := e.gateway.WaitForDone(ctx, workerID, PerLevelTimeout); err != nil {
		e.emit.Emit(events.TypePathwayLevel, map[string]interface{}{
			"pathwayId": pathwayID, "depth": level.Depth, "status": "failed", "error": err.Error(),
		})
		return nil
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		e.emit.Emit(events.TypePathwayLevel, map[string]interface{}{
			"pathwayId": pathwayID, "depth": level.Depth, "status": "no_output",
		})
		return nil
	}

	var out model.LevelOutput
	if err := json.Unmarshal(data, &out); err != nil {
		e.emit.Emit(events.TypePathwayLevel, map[string]interface{}{
			"pathwayId": pathwayID, "depth": level.Depth, "status": "parse_error", "error": err.Error(),
		})
		return nil
	}

	e.emit.Emit(events.TypePathwayLevel, map[string]interface{}{
		"pathwayId": pathwayID, "depth": level.Depth, "status": "done",
	})
	return &out
}

func joinBulleted(items []string) string {
	out := ""
	for _, item := range items {
		out += "- " + item + "\n"
	}
	return out
}

// NewCrossPathwayEvidence builds the synthetic evidence item for a
// cross-pathway second-wave run, inheriting the originating item's ratings.
// The id is deterministic so re-running the orchestrator on the same
// manifests reproduces the same evidence id.
func NewCrossPathwayEvidence(origin model.EvidenceItem, discovery CrossPathwayDiscovery) model.EvidenceItem {
	return model.EvidenceItem{
		ID:               fmt.Sprintf("%s-cross-%s", origin.ID, discovery.EvidenceType),
		Type:             discovery.EvidenceType,
		SourceRating:     origin.SourceRating,
		InfoRating:       origin.InfoRating,
		Description:      fmt.Sprintf("Cross-pathway from %s (depth %d): %s", origin.TriggeredPathway, discovery.Depth, origin.Description),
		TriggeredPathway: model.PathwayIDForType(discovery.EvidenceType),
	}
}
