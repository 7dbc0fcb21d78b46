package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/strategos-engine/internal/project"
)

var statusCmd = &cobra.Command{
	Use:   "status <projectId>",
	Short: "Show the current phase and status detail of a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := project.NewStore(cfg.Projects.RootDir)
		if err != nil {
			return err
		}

		proj, ok := store.Get(args[0])
		if !ok {
			return fmt.Errorf("unknown project: %s", args[0])
		}

		fmt.Printf("id:     %s\n", proj.ID)
		fmt.Printf("topic:  %s\n", proj.Topic)
		fmt.Printf("status: %s\n", proj.Status)
		if proj.StatusDetail != "" {
			fmt.Printf("detail: %s\n", proj.StatusDetail)
		}
		fmt.Printf("dir:    %s\n", proj.Directory)
		return nil
	},
}
