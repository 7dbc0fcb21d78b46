package investigation_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/strategos-engine/internal/events"
	"github.com/rohankatakam/strategos-engine/internal/gateway"
	"github.com/rohankatakam/strategos-engine/internal/investigation"
	"github.com/rohankatakam/strategos-engine/internal/model"
	"github.com/rohankatakam/strategos-engine/internal/pathway"
)

// multiItemFakeStrategos supports an arbitrary number of concurrently
// spawned workers, keyed by the spawn label, each resolved "done" on its
// first status poll once its findings file has been written.
func multiItemFakeStrategos(t *testing.T) *httptest.Server {
	t.Helper()

	var mu sync.Mutex
	written := make(map[string]bool)

	mux := http.NewServeMux()
	mux.HandleFunc("/spawn-from-template", func(w http.ResponseWriter, r *http.Request) {
		var req gateway.SpawnRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		outPath := extractOutputPath(t, req.Task.Description)
		out := model.LevelOutput{
			PathwayID:     "P-SCI",
			Depth:         1,
			EvidenceFound: true,
			Findings:      map[string]interface{}{"independentSources": []interface{}{"a"}},
		}
		data, err := json.Marshal(out)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(outPath, data, 0644))

		mu.Lock()
		written[req.Label] = true
		mu.Unlock()

		_ = json.NewEncoder(w).Encode(map[string]string{"id": req.Label})
	})
	mux.HandleFunc("/status/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/status/")
		mu.Lock()
		ok := written[id]
		mu.Unlock()
		if ok {
			fmt.Fprint(w, "done healthy 100% complete")
			return
		}
		fmt.Fprint(w, "running healthy 10% working")
	})
	mux.HandleFunc("/workers/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return httptest.NewServer(mux)
}

func writeSciPathway(t *testing.T, dir string) {
	writeSingleLevelPathway(t, dir, "P-SCI")
}

func TestOrchestrator_Run_BatchesAllItems(t *testing.T) {
	pathwayDir := t.TempDir()
	writeSciPathway(t, pathwayDir)

	srv := multiItemFakeStrategos(t)
	defer srv.Close()

	cat := pathway.New(pathwayDir)
	gw := gateway.New(srv.URL, "", 1000, nil)
	exec := investigation.NewExecutor(cat, gw, nil, t.TempDir(), nil)
	orch := investigation.NewOrchestrator(exec, nil, nil)

	items := make([]model.EvidenceItem, 0, 7)
	for i := 0; i < 7; i++ {
		items = append(items, model.EvidenceItem{ID: fmt.Sprintf("ev-%d", i), Type: model.EvidenceSCI})
	}

	start := time.Now()
	results, summary := orch.Run(context.Background(), items)
	elapsed := time.Since(start)

	assert.Len(t, results, 7)
	assert.Equal(t, 7, summary.Total)
	assert.Equal(t, 7, summary.CountsByType[model.EvidenceSCI])
	// 7 items at batch size 5 means exactly one inter-batch gap.
	assert.GreaterOrEqual(t, elapsed, investigation.BatchGap)
}

func TestOrchestrator_Run_EmptyItemsReturnsEmptySummary(t *testing.T) {
	pathwayDir := t.TempDir()
	cat := pathway.New(pathwayDir)
	gw := gateway.New("http://127.0.0.1:1", "", 100, nil)
	exec := investigation.NewExecutor(cat, gw, nil, t.TempDir(), nil)
	orch := investigation.NewOrchestrator(exec, nil, nil)

	results, summary := orch.Run(context.Background(), nil)
	assert.Empty(t, results)
	assert.Equal(t, 0, summary.Total)
}

func TestOrchestrator_Run_EmitsPhaseEvents(t *testing.T) {
	pathwayDir := t.TempDir()
	writeSciPathway(t, pathwayDir)
	srv := multiItemFakeStrategos(t)
	defer srv.Close()

	cat := pathway.New(pathwayDir)
	gw := gateway.New(srv.URL, "", 1000, nil)
	recorder := events.NewRecorder()
	exec := investigation.NewExecutor(cat, gw, recorder, t.TempDir(), nil)
	orch := investigation.NewOrchestrator(exec, recorder, nil)

	items := []model.EvidenceItem{{ID: "ev-1", Type: model.EvidenceSCI}}
	_, _ = orch.Run(context.Background(), items)

	phaseEvents := recorder.OfType(events.TypePhase)
	require.Len(t, phaseEvents, 2)
	assert.Equal(t, "started", phaseEvents[0].Payload["status"])
	assert.Equal(t, "done", phaseEvents[1].Payload["status"])
}
