package mcptools

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewBundleMCPServer creates an MCP server with the indexing and extraction
// tools registered.
func NewBundleMCPServer(svc *BundleService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "pybundle",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "index_project",
		Description: "Index a Python project. Walks the file tree, parses every local module with tree-sitter and resolves imports into a queryable symbol graph.",
	}, svc.IndexProject)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "query_symbols",
		Description: "Search the indexed project for top-level symbols (functions, classes, variables, type variables, unions) by name substring match.",
	}, svc.QuerySymbols)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_dependencies",
		Description: "Traverse module imports or symbol references upstream or downstream from a file or symbol. Returns dependency chains up to the specified depth.",
	}, svc.GetDependencies)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "extract_bundle",
		Description: "Extract the self-contained source bundle of a Python function or class: local definitions in dependency order, imports, inlined configuration values and the entry definition.",
	}, svc.ExtractBundle)

	return server
}

// RunMCPServer starts an HTTP server exposing the MCP tools.
func RunMCPServer(ctx context.Context, svc *BundleService, addr string) error {
	server := NewBundleMCPServer(svc)

	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// RunMCPServerStdio runs the MCP tools on stdio, blocking until stdin is
// closed or the context is cancelled.
func RunMCPServerStdio(ctx context.Context, svc *BundleService) error {
	return NewBundleMCPServer(svc).Run(ctx, &mcp.StdioTransport{})
}
