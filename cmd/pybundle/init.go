package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/pybundle/internal/config"
)

// mcpConfig represents the structure of a .mcp.json file.
type mcpConfig struct {
	MCPServers map[string]json.RawMessage `json:"mcpServers"`
}

// pybundleMCPEntry is the MCP server configuration for the pybundle binary.
var pybundleMCPEntry = json.RawMessage(`{
  "type": "stdio",
  "command": "pybundle",
  "args": ["serve-mcp", "--stdio"]
}`)

func newInitCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default bundle.yml and register the MCP server in .mcp.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if err := writeDefaultConfig(out, a.projectRoot, force); err != nil {
				return err
			}
			return mergeMCPConfig(out, a.projectRoot, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files and entries")
	return cmd
}

// writeDefaultConfig writes config.Default to bundle.yml under root.
func writeDefaultConfig(w io.Writer, root string, force bool) error {
	path := filepath.Join(root, config.FileNames[0])
	if !force {
		if _, err := os.Stat(path); err == nil {
			fmt.Fprintf(w, "  skipped %s (exists, use --force to overwrite)\n", dotRelative(root, path))
			return nil
		}
	}

	data, err := yaml.Marshal(config.Default())
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", config.FileNames[0], err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Fprintf(w, "  created %s\n", dotRelative(root, path))
	return nil
}

// mergeMCPConfig creates or merges the pybundle entry into .mcp.json.
func mergeMCPConfig(w io.Writer, root string, force bool) error {
	mcpPath := filepath.Join(root, ".mcp.json")
	var cfg mcpConfig

	data, err := os.ReadFile(mcpPath)
	if err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing %s: %w", mcpPath, err)
		}
	}

	if cfg.MCPServers == nil {
		cfg.MCPServers = make(map[string]json.RawMessage)
	}

	if _, exists := cfg.MCPServers["pybundle"]; exists && !force {
		fmt.Fprintf(w, "  skipped .mcp.json pybundle entry (exists, use --force to overwrite)\n")
		return nil
	}
	cfg.MCPServers["pybundle"] = pybundleMCPEntry

	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling .mcp.json: %w", err)
	}
	if err := os.WriteFile(mcpPath, append(out, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", mcpPath, err)
	}

	action := "created"
	if data != nil {
		action = "updated"
	}
	fmt.Fprintf(w, "  %s .mcp.json with pybundle MCP server\n", action)
	return nil
}

// dotRelative returns a display path relative to the project root, prefixed
// with "./".
func dotRelative(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return path
	}
	return "./" + rel
}
