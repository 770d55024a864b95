package mcptools

import (
	"github.com/dusk-indust/pybundle/internal/extract"
	"github.com/dusk-indust/pybundle/internal/graph"
)

// --- MCP Tool Input Types ---
// These structs define the JSON schema for each MCP tool's input.
// The MCP Go SDK auto-generates JSON schemas from struct tags.

// IndexProjectInput is the input for the index_project MCP tool.
type IndexProjectInput struct {
	ProjectRoot string   `json:"projectRoot,omitempty" jsonschema:"absolute path to the Python project (default: the server's project root)"`
	ExcludeDirs []string `json:"excludeDirs,omitempty" jsonschema:"directory names to skip in addition to the configured ones"`
	Persist     bool     `json:"persist,omitempty" jsonschema:"also write the index to .pybundle/graph under the project root"`
}

// IndexProjectOutput is the result of the index_project MCP tool.
type IndexProjectOutput struct {
	ProjectRoot string           `json:"projectRoot"`
	Modules     int              `json:"modules"`
	Stats       graph.GraphStats `json:"stats"`
	Persisted   string           `json:"persisted,omitempty"`
}

// QuerySymbolsInput is the input for the query_symbols MCP tool.
type QuerySymbolsInput struct {
	Query string `json:"query" jsonschema:"search query for symbol names (substring match)"`
	Kind  string `json:"kind,omitempty" jsonschema:"filter by symbol kind: function, class, variable, typevar, union, module"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results (default: 20)"`
}

// QuerySymbolsOutput is the result of the query_symbols MCP tool.
type QuerySymbolsOutput struct {
	Symbols []graph.SymbolNode `json:"symbols"`
	Total   int                `json:"total"`
}

// GetDependenciesInput is the input for the get_dependencies MCP tool.
type GetDependenciesInput struct {
	NodeID    string `json:"nodeId" jsonschema:"file path, or file path and symbol name as path.py:name"`
	Direction string `json:"direction,omitempty" jsonschema:"upstream (what it depends on) or downstream (what depends on it). Default: downstream"`
	MaxDepth  int    `json:"maxDepth,omitempty" jsonschema:"maximum traversal depth (default: 5)"`
}

// GetDependenciesOutput is the result of the get_dependencies MCP tool.
type GetDependenciesOutput struct {
	Chains []graph.DependencyChain `json:"chains"`
}

// ExtractBundleInput is the input for the extract_bundle MCP tool.
type ExtractBundleInput struct {
	Target      string `json:"target" jsonschema:"entry point as pkg.module:name or path/to/file.py:name"`
	ProjectRoot string `json:"projectRoot,omitempty" jsonschema:"absolute path to the Python project (default: the last indexed project)"`
	OutDir      string `json:"outDir,omitempty" jsonschema:"if set, write bundle.py and manifest.json to this directory"`
}

// ExtractBundleOutput is the result of the extract_bundle MCP tool.
type ExtractBundleOutput struct {
	Entry       string               `json:"entry"`
	Payload     string               `json:"payload"`
	Local       []string             `json:"local"`
	Imports     []string             `json:"imports"`
	Variables   []string             `json:"variables"`
	Parameters  []graph.Param        `json:"parameters,omitempty"`
	Diagnostics []extract.Diagnostic `json:"diagnostics,omitempty"`
	ManifestID  string               `json:"manifestId,omitempty"`
	Written     []string             `json:"written,omitempty"`
}
