package investigation

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rohankatakam/strategos-engine/internal/events"
	"github.com/rohankatakam/strategos-engine/internal/model"
)

// BatchSize and BatchGap implement the "<=5 concurrent pathways, 2s
// inter-batch delay" contract.
const (
	BatchSize = 5
	BatchGap  = 2 * time.Second
)

// Orchestrator fans every evidence item produced by classification out
// through the Executor with bounded concurrency, then runs a second wave
// for any cross-pathway discoveries.
type Orchestrator struct {
	executor *Executor
	emit     events.Emitter
	logger   *slog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(executor *Executor, emit events.Emitter, logger *slog.Logger) *Orchestrator {
	if emit == nil {
		emit = events.NoOp
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{executor: executor, emit: emit, logger: logger.With("component", "investigation.orchestrator")}
}

// Summary is the terminal summary.json the orchestrator produces.
type Summary struct {
	CountsByType       map[model.EvidenceType]int          `json:"countsByType"`
	CountsByConfidence map[model.Confidence]int             `json:"countsByConfidence"`
	Total              int                                  `json:"total"`
}

// Run executes every item in items through the Executor in batches of
// BatchSize with a BatchGap pause between batches, then runs a second wave
// for cross-pathway discoveries, and returns the combined results.
func (o *Orchestrator) Run(ctx context.Context, items []model.EvidenceItem) ([]Result, Summary) {
	o.emit.Emit(events.TypePhase, map[string]interface{}{"phase": "investigating", "status": "started", "count": len(items)})

	results := o.runBatches(ctx, items)

	var crossItems []model.EvidenceItem
	for _, r := range results {
		for _, cp := range r.CrossPathways {
			origin := findOrigin(items, r.EvidenceID)
			crossItems = append(crossItems, NewCrossPathwayEvidence(origin, cp))
		}
	}

	if len(crossItems) > 0 {
		crossResults := o.runBatches(ctx, crossItems)
		results = append(results, crossResults...)
	}

	o.emit.Emit(events.TypePhase, map[string]interface{}{"phase": "investigating", "status": "done", "count": len(results)})

	return results, summarize(items, results)
}

// runBatches runs items through the Executor, BatchSize concurrently at a
// time, pausing BatchGap between batches. A pathway that fails to produce a
// Result (executor panics are not expected, but defensive isolation keeps
// one bad item from sinking the batch) degrades to a synthetic U result.
func (o *Orchestrator) runBatches(ctx context.Context, items []model.EvidenceItem) []Result {
	var all []Result

	for start := 0; start < len(items); start += BatchSize {
		end := start + BatchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		batchResults := make([]Result, len(batch))
		g, gctx := errgroup.WithContext(ctx)

		for i, item := range batch {
			i, item := i, item
			g.Go(func() error {
				batchResults[i] = o.runIsolated(gctx, item)
				return nil
			})
		}
		_ = g.Wait()

		all = append(all, batchResults...)

		if end < len(items) {
			select {
			case <-ctx.Done():
				return all
			case <-time.After(BatchGap):
			}
		}
	}

	return all
}

// runIsolated runs one pathway and converts any panic into a degraded
// result, so a single misbehaving pathway never aborts the batch.
func (o *Orchestrator) runIsolated(ctx context.Context, item model.EvidenceItem) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("pathway execution panicked", "evidenceId", item.ID, "recovered", r)
			result = Result{
				EvidenceID: item.ID,
				PathwayID:  item.TriggeredPathway,
				Confidence: model.ConfidenceResult{
					Confidence: model.ConfidenceUnverified,
					Label:      model.ConfidenceUnverified.Label(),
					Rationale:  "Pathway failed: internal error",
				},
			}
		}
	}()
	return o.executor.Run(ctx, item)
}

func findOrigin(items []model.EvidenceItem, id string) model.EvidenceItem {
	for _, it := range items {
		if it.ID == id {
			return it
		}
	}
	return model.EvidenceItem{ID: id}
}

func summarize(items []model.EvidenceItem, results []Result) Summary {
	s := Summary{
		CountsByType:       make(map[model.EvidenceType]int),
		CountsByConfidence: make(map[model.Confidence]int),
		Total:              len(results),
	}

	byID := make(map[string]model.EvidenceType, len(items))
	for _, it := range items {
		byID[it.ID] = it.Type
	}

	for _, r := range results {
		if t, ok := byID[r.EvidenceID]; ok {
			s.CountsByType[t]++
		}
		s.CountsByConfidence[r.Confidence.Confidence]++
	}

	return s
}
