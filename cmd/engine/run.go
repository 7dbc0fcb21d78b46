package main

import (
	"fmt"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/rohankatakam/strategos-engine/internal/adjudicate"
	"github.com/rohankatakam/strategos-engine/internal/config"
	"github.com/rohankatakam/strategos-engine/internal/events"
	"github.com/rohankatakam/strategos-engine/internal/gateway"
	"github.com/rohankatakam/strategos-engine/internal/investigation"
	"github.com/rohankatakam/strategos-engine/internal/logging"
	"github.com/rohankatakam/strategos-engine/internal/pathway"
	"github.com/rohankatakam/strategos-engine/internal/pipeline"
	"github.com/rohankatakam/strategos-engine/internal/project"
)

var openAfterRun bool

var runCmd = &cobra.Command{
	Use:   "run <topic>",
	Short: "Run a full investigation pipeline for a research topic",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		topic := args[0]

		token, err := resolveAPIToken()
		if err != nil {
			return err
		}

		orch, store, err := buildPipeline(token)
		if err != nil {
			return err
		}

		proj, err := store.Create(topic)
		if err != nil {
			return fmt.Errorf("failed to create project: %w", err)
		}

		logger.WithField("projectId", proj.ID).Info("starting investigation")
		logging.Info("starting investigation", "projectId", proj.ID, "topic", topic)

		if err := orch.Run(cmd.Context(), proj); err != nil {
			logging.Error("pipeline failed", "projectId", proj.ID, "error", err)
			return fmt.Errorf("pipeline failed: %w", err)
		}
		if err := store.Save(proj); err != nil {
			logger.WithError(err).Warn("failed to persist final project state")
			logging.Warn("failed to persist final project state", "projectId", proj.ID, "error", err)
		}

		logger.WithField("projectId", proj.ID).Info("investigation complete")
		logging.Info("investigation complete", "projectId", proj.ID)
		fmt.Printf("project: %s\ndirectory: %s\n", proj.ID, proj.Directory)

		if openAfterRun {
			graphPath := proj.Directory + "/graph.json"
			if err := browser.OpenFile(graphPath); err != nil {
				logger.WithError(err).Warn("failed to open graph viewer")
			}
		}

		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&openAfterRun, "open", false, "open the synthesized graph in the OS browser on completion")
}

func resolveAPIToken() (string, error) {
	cm := config.NewCredentialManager()
	return cm.GetAPIToken()
}

// buildPipeline wires together the Worker Gateway, Pathway Catalog,
// Investigation Executor/Orchestrator, Adjudicator, and Pipeline
// Orchestrator from the loaded config.
func buildPipeline(apiToken string) (*pipeline.Orchestrator, *project.Store, error) {
	slogLogger := logging.SlogLogger()

	gw := gateway.New(cfg.Strategos.BaseURL, apiToken, cfg.Strategos.RequestsPerSecond, slogLogger)

	catalog := pathway.New(cfg.Pathway.Directory)
	if cfg.Pathway.BoltCachePath != "" {
		if withBolt, err := catalog.WithBoltCache(cfg.Pathway.BoltCachePath); err == nil {
			catalog = withBolt
		} else {
			logger.WithError(err).Warn("pathway bolt cache unavailable, continuing without it")
		}
	}

	store, err := project.NewStore(cfg.Projects.RootDir)
	if err != nil {
		return nil, nil, err
	}

	emitter := buildEmitter()

	executor := investigation.NewExecutor(catalog, gw, emitter, cfg.Projects.RootDir, slogLogger)
	investigator := investigation.NewOrchestrator(executor, emitter, slogLogger)
	adjudicator := adjudicate.NewAdjudicator(executor, nil, slogLogger)
	orch := pipeline.NewOrchestrator(gw, investigator, adjudicator, emitter, slogLogger)

	return orch, store, nil
}

func buildEmitter() events.Emitter {
	if !cfg.EventLog.Enabled {
		return events.NoOp
	}

	recorder, err := events.NewSQLiteRecorder(cfg.EventLog.Path)
	if err != nil {
		logger.WithError(err).Warn("event log unavailable, continuing without it")
		return events.NoOp
	}
	return recorder
}
