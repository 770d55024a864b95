package main

import (
	"github.com/spf13/cobra"

	"github.com/dusk-indust/pybundle/internal/graph"
	"github.com/dusk-indust/pybundle/internal/mcptools"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr  string
		stdio bool
	)

	cmd := &cobra.Command{
		Use:   "serve-mcp",
		Short: "Serve the indexing and extraction tools over MCP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc := mcptools.NewBundleService(graph.NewTreeSitterParser(), a.cfg, a.logger)
			svc.SetProjectRoot(a.projectRoot)

			if stdio {
				return mcptools.RunMCPServerStdio(cmd.Context(), svc)
			}
			a.logger.Info("starting MCP server", "addr", addr, "root", a.projectRoot)
			return mcptools.RunMCPServer(cmd.Context(), svc, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "address for the streamable HTTP transport")
	cmd.Flags().BoolVar(&stdio, "stdio", false, "serve on stdin/stdout instead of HTTP")
	return cmd
}
