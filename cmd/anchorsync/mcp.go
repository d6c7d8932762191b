package main

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/ryotapoi/anchorsync/internal/mcpserver"
)

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve link checking and heading renames as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, _, err := a.openWorkspace(cmd.Context())
			if err != nil {
				return err
			}
			defer ws.Close()
			return server.ServeStdio(mcpserver.New(ws, resolvedVersion()))
		},
	}
}
