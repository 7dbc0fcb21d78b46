package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/strategos-engine/internal/graph/validator"
	"github.com/rohankatakam/strategos-engine/internal/model"
)

var validateCmd = &cobra.Command{
	Use:   "validate <graph.json>",
	Short: "Validate a synthesized knowledge graph artifact against the invariants",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read graph: %w", err)
		}

		var kg model.KnowledgeGraph
		if err := json.Unmarshal(data, &kg); err != nil {
			return fmt.Errorf("failed to parse graph: %w", err)
		}

		report := validator.Validate(&kg)
		topology := validator.ComputeTopologyMetrics(&kg)

		fmt.Printf("valid: %v\n", report.Valid)
		for _, e := range report.Errors {
			fmt.Printf("  error: %s\n", e)
		}
		for _, w := range report.Warnings {
			fmt.Printf("  warning: %s\n", w)
		}
		fmt.Printf("density: %.3f  avgDegree: %.2f  components: %d\n",
			topology.Density, topology.AverageDegree, topology.ConnectedComponentCount)

		if !report.Valid {
			os.Exit(1)
		}
		return nil
	},
}
