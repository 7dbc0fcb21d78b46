package main

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/rohankatakam/strategos-engine/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve start_investigation / get_status as MCP tools over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := resolveAPIToken()
		if err != nil {
			return err
		}

		orch, store, err := buildPipeline(token)
		if err != nil {
			return err
		}

		srv := mcpserver.New(orch, store, nil)
		server := srv.NewMCPServer()

		return server.Run(cmd.Context(), &mcp.StdioTransport{})
	},
}
