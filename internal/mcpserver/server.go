// Package mcpserver exposes pipeline control as MCP tools, so an agent
// host can drive the engine the same way it drives the Strategos workers
// it coordinates.
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rohankatakam/strategos-engine/internal/model"
	"github.com/rohankatakam/strategos-engine/internal/pipeline"
)

// ProjectStore is the minimal persistence surface the MCP tools need. It
// mirrors the filesystem project-directory contract the pipeline itself
// relies on (persistence beyond this interface is out of scope).
type ProjectStore interface {
	Create(topic string) (*model.Project, error)
	Get(id string) (*model.Project, bool)
}

// Server wires start_investigation / get_status MCP tools over a pipeline
// Orchestrator.
type Server struct {
	orchestrator *pipeline.Orchestrator
	store        ProjectStore
	logger       *slog.Logger

	mu      sync.Mutex
	running map[string]chan error
}

// New creates a Server bound to orchestrator and store.
func New(orchestrator *pipeline.Orchestrator, store ProjectStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		orchestrator: orchestrator,
		store:        store,
		logger:       logger.With("component", "mcpserver"),
		running:      make(map[string]chan error),
	}
}

// StartInvestigationArgs is the input schema for start_investigation.
type StartInvestigationArgs struct {
	Topic string `json:"topic" jsonschema:"the research topic to investigate"`
}

// StartInvestigationResult is the output schema for start_investigation.
type StartInvestigationResult struct {
	ProjectID string `json:"projectId"`
	Status    string `json:"status"`
}

// GetStatusArgs is the input schema for get_status.
type GetStatusArgs struct {
	ProjectID string `json:"projectId" jsonschema:"the project id returned by start_investigation"`
}

// GetStatusResult is the output schema for get_status.
type GetStatusResult struct {
	ProjectID    string `json:"projectId"`
	Status       string `json:"status"`
	StatusDetail string `json:"statusDetail,omitempty"`
}

// NewMCPServer builds the underlying *mcp.Server with both tools
// registered, ready to run over a transport (stdio, by convention of the
// agent host).
func (s *Server) NewMCPServer() *mcp.Server {
	impl := &mcp.Implementation{Name: "strategos-research-engine", Version: "0.1.0"}
	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "start_investigation",
		Description: "Start a new research investigation pipeline run for a topic.",
	}, s.handleStartInvestigation)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_status",
		Description: "Get the current phase/status of a running or completed investigation.",
	}, s.handleGetStatus)

	return server
}

func (s *Server) handleStartInvestigation(ctx context.Context, req *mcp.CallToolRequest, args StartInvestigationArgs) (*mcp.CallToolResult, StartInvestigationResult, error) {
	if args.Topic == "" {
		return nil, StartInvestigationResult{}, fmt.Errorf("topic is required")
	}

	project, err := s.store.Create(args.Topic)
	if err != nil {
		return nil, StartInvestigationResult{}, fmt.Errorf("failed to create project: %w", err)
	}

	done := make(chan error, 1)
	s.mu.Lock()
	s.running[project.ID] = done
	s.mu.Unlock()

	runID := uuid.NewString()
	s.logger.Info("investigation started", "projectId", project.ID, "runId", runID, "topic", args.Topic)

	status := string(project.Status)
	go func() {
		done <- s.orchestrator.Run(context.Background(), project)
	}()

	return nil, StartInvestigationResult{ProjectID: project.ID, Status: status}, nil
}

func (s *Server) handleGetStatus(ctx context.Context, req *mcp.CallToolRequest, args GetStatusArgs) (*mcp.CallToolResult, GetStatusResult, error) {
	project, ok := s.store.Get(args.ProjectID)
	if !ok {
		return nil, GetStatusResult{}, fmt.Errorf("unknown project id: %s", args.ProjectID)
	}

	return nil, GetStatusResult{
		ProjectID:    project.ID,
		Status:       string(project.Status),
		StatusDetail: project.StatusDetail,
	}, nil
}
