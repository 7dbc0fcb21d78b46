package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/strategos-engine/internal/config"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Set up the Strategos API token (prefers the OS keychain)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cm := config.NewCredentialManager()

		if cm.HasCredentials() {
			km := config.NewKeyringManager()
			source := km.GetAPITokenSource(cfg)
			fmt.Printf("A Strategos API token is already configured (source: %s).\n", source.Source)
			fmt.Println(source.Recommended)
			return nil
		}

		token, err := cm.GetAPIToken()
		if err != nil {
			return err
		}

		fmt.Printf("Configured: %s\n", config.MaskAPIToken(token))
		return nil
	},
}
