package graph

import (
	"context"
	"io"
)

// Store is the interface for the queryable symbol index backend.
// Implementations: KuzuStore (persisted), MemStore (default and testing).
// Extraction itself reads the in-memory Index; the Store serves lookups from
// the CLI and the MCP tools.
type Store interface {
	io.Closer

	// Schema setup, called once before any data is inserted.
	InitSchema(ctx context.Context) error

	// Write operations.
	AddFile(ctx context.Context, node FileNode) error
	AddSymbol(ctx context.Context, node SymbolNode) error
	AddEdge(ctx context.Context, edge Edge) error

	// Read operations.
	GetFile(ctx context.Context, path string) (*FileNode, error)
	GetSymbol(ctx context.Context, filePath, name string) (*SymbolNode, error)
	QuerySymbols(ctx context.Context, query string, limit int) ([]SymbolNode, error)
	GetAllEdges(ctx context.Context) ([]Edge, error)

	// Graph traversal over IMPORTS (file ids) and REFERENCES (symbol ids).
	GetDependencies(ctx context.Context, nodeID string, direction Direction, maxDepth int) ([]DependencyChain, error)

	// Stats.
	Stats(ctx context.Context) (*GraphStats, error)
}

// Direction controls dependency traversal direction.
type Direction string

const (
	DirectionUpstream   Direction = "upstream"   // what does this depend on?
	DirectionDownstream Direction = "downstream" // what depends on this?
)

// symbolID produces a deterministic identifier for a symbol: "filePath:name".
func symbolID(filePath, name string) string {
	return filePath + ":" + name
}
