package pipeline_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/strategos-engine/internal/adjudicate"
	"github.com/rohankatakam/strategos-engine/internal/gateway"
	"github.com/rohankatakam/strategos-engine/internal/investigation"
	"github.com/rohankatakam/strategos-engine/internal/model"
	"github.com/rohankatakam/strategos-engine/internal/pathway"
	"github.com/rohankatakam/strategos-engine/internal/pipeline"
)

var bracketListPattern = regexp.MustCompile(`\[(.*?)\]`)

// fullPipelineServer fakes every template the pipeline spawns: planning,
// classification, research-worker (investigation), and synthesis. Each
// spawn writes its canned output to the path embedded in the task
// description and is immediately reported done on the first status poll.
func fullPipelineServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/spawn-from-template", func(w http.ResponseWriter, r *http.Request) {
		var req gateway.SpawnRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		outPath := lastToken(req.Task.Description)

		switch req.Template {
		case "planning":
			plan := model.Plan{SubQuestions: []model.SubQuestion{
				{ID: "sq-1", Question: "does it work"},
				{ID: "sq-2", Question: "what does it cost"},
			}}
			writeJSON(t, outPath, plan)
		case "classification":
			ids := extractIDs(req.Task.Description)
			var items []model.EvidenceItem
			for _, id := range ids {
				items = append(items, model.EvidenceItem{ID: "ev-" + id, Type: model.EvidenceSCI})
			}
			manifest := model.EvidenceManifest{SubQuestions: ids, EvidenceItems: items}
			writeJSON(t, outPath, manifest)
		case "research-worker":
			out := model.LevelOutput{
				PathwayID: "P-SCI", Depth: 1, EvidenceFound: true,
				Findings: map[string]interface{}{"independentSources": []interface{}{"a", "b", "c"}},
			}
			writeJSON(t, outPath, out)
		case "synthesis":
			writeJSON(t, outPath, minimalGraph())
		default:
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		_ = json.NewEncoder(w).Encode(map[string]string{"id": req.Label})
	})
	mux.HandleFunc("/status/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("done healthy 100% complete"))
	})
	mux.HandleFunc("/workers/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return httptest.NewServer(mux)
}

func lastToken(description string) string {
	fields := strings.Fields(description)
	return fields[len(fields)-1]
}

func extractIDs(description string) []string {
	m := bracketListPattern.FindStringSubmatch(description)
	if m == nil {
		return nil
	}
	return strings.Fields(m[1])
}

func writeJSON(t *testing.T, path string, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func minimalGraph() model.KnowledgeGraph {
	return model.KnowledgeGraph{
		Nodes: []model.Node{
			{ID: "recommendations", Label: "Recommendations", Type: model.NodeDomain},
			{ID: "rec-1", Label: "Filter", Type: model.NodeRecommendation, Parent: "recommendations"},
			{ID: "rec-2", Label: "Ventilation", Type: model.NodeRecommendation, Parent: "recommendations"},
			{ID: "rec-3", Label: "Testing", Type: model.NodeRecommendation, Parent: "recommendations"},
			{ID: "contaminant-1", Label: "Radon", Type: model.NodeContaminant, Confidence: model.ConfidenceVerified},
		},
		Edges: []model.Edge{
			{Source: "contaminant-1", Target: "rec-1", Label: "addressed by", Type: model.EdgeAddresses},
		},
		Topics: map[string]model.Topic{
			"contaminant-1": {Title: "Radon", Sections: []string{"Overview"}},
			"rec-1":         {Title: "Filter", Sections: []string{"Overview"}},
			"rec-2":         {Title: "Ventilation", Sections: []string{"Overview"}},
			"rec-3":         {Title: "Testing", Sections: []string{"Overview"}},
		},
	}
}

func TestOrchestrator_Run_DrivesAllFivePhases(t *testing.T) {
	srv := fullPipelineServer(t)
	defer srv.Close()

	pathwayDir := t.TempDir()
	writeSciPathwayForPipeline(t, pathwayDir)

	gw := gateway.New(srv.URL, "", 1000, nil)
	cat := pathway.New(pathwayDir)
	exec := investigation.NewExecutor(cat, gw, nil, t.TempDir(), nil)
	investigator := investigation.NewOrchestrator(exec, nil, nil)
	adjudicator := adjudicate.NewAdjudicator(exec, nil, nil)

	orch := pipeline.NewOrchestrator(gw, investigator, adjudicator, nil, nil)

	project := &model.Project{ID: "proj-1", Topic: "home radon mitigation", Directory: t.TempDir()}

	err := orch.Run(context.Background(), project)
	require.NoError(t, err)
	assert.Equal(t, model.StatusComplete, project.Status)

	graphData, err := os.ReadFile(filepath.Join(project.Directory, "graph.json"))
	require.NoError(t, err)
	var kg model.KnowledgeGraph
	require.NoError(t, json.Unmarshal(graphData, &kg))
	assert.NotEmpty(t, kg.Nodes)

	_, err = os.Stat(filepath.Join(project.Directory, "summary.json"))
	assert.NoError(t, err)
}

// allClassificationFailsServer behaves like fullPipelineServer except every
// classification spawn is rejected, so every classification worker fails.
func allClassificationFailsServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/spawn-from-template", func(w http.ResponseWriter, r *http.Request) {
		var req gateway.SpawnRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		switch req.Template {
		case "planning":
			plan := model.Plan{SubQuestions: []model.SubQuestion{
				{ID: "sq-1", Question: "does it work"},
				{ID: "sq-2", Question: "what does it cost"},
			}}
			writeJSON(t, lastToken(req.Task.Description), plan)
			_ = json.NewEncoder(w).Encode(map[string]string{"id": req.Label})
		case "classification":
			w.WriteHeader(http.StatusBadRequest)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})
	mux.HandleFunc("/status/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("done healthy 100% complete"))
	})
	mux.HandleFunc("/workers/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return httptest.NewServer(mux)
}

func TestOrchestrator_Run_AllClassificationWorkersFailingErrorsProject(t *testing.T) {
	srv := allClassificationFailsServer(t)
	defer srv.Close()

	pathwayDir := t.TempDir()
	writeSciPathwayForPipeline(t, pathwayDir)

	gw := gateway.New(srv.URL, "", 1000, nil)
	cat := pathway.New(pathwayDir)
	exec := investigation.NewExecutor(cat, gw, nil, t.TempDir(), nil)
	investigator := investigation.NewOrchestrator(exec, nil, nil)
	adjudicator := adjudicate.NewAdjudicator(exec, nil, nil)

	orch := pipeline.NewOrchestrator(gw, investigator, adjudicator, nil, nil)

	project := &model.Project{ID: "proj-2", Topic: "home radon mitigation", Directory: t.TempDir()}

	err := orch.Run(context.Background(), project)
	require.Error(t, err)
	assert.Equal(t, model.StatusError, project.Status)

	_, statErr := os.Stat(filepath.Join(project.Directory, "graph.json"))
	assert.True(t, os.IsNotExist(statErr), "synthesis must not run once classification fails entirely")
}

func writeSciPathwayForPipeline(t *testing.T, dir string) {
	t.Helper()
	p := model.Pathway{
		ID: "P-SCI",
		Levels: []model.LevelDef{
			{
				Depth:          1,
				Name:           "level-1",
				WorkerTemplate: "research-worker",
				Task: model.LevelTask{
					Purpose:  "Investigate {{evidence.id}}",
					EndState: "Write findings",
				},
			},
		},
	}
	data, err := json.Marshal(p)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "P-SCI.json"), data, 0644))
}
