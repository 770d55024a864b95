package mcptools

import (
	"context"
	"encoding/json"
	"sort"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupServerClient wires an MCP server and client together using in-memory
// transports. It returns the connected client session and the underlying
// BundleService so that tests can inspect state when needed.
func setupServerClient(t *testing.T) (*mcp.ClientSession, *BundleService) {
	t.Helper()

	svc := newTestService(t)
	server := NewBundleMCPServer(svc)

	st, ct := mcp.NewInMemoryTransports()

	ctx := context.Background()

	_, err := server.Connect(ctx, st, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		session.Close()
	})

	return session, svc
}

// callTool invokes a tool and decodes its structured output into out.
func callTool(t *testing.T, session *mcp.ClientSession, name string, args, out any) {
	t.Helper()

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err)
	require.False(t, result.IsError, "%s should not return an error", name)
	require.NotNil(t, result.StructuredContent, "expected structured content from %s", name)

	raw, err := json.Marshal(result.StructuredContent)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

// TestMCPListTools verifies that the MCP server exposes exactly 4 tools with
// the expected names.
func TestMCPListTools(t *testing.T) {
	session, _ := setupServerClient(t)

	result, err := session.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)

	names := make([]string, len(result.Tools))
	for i, tool := range result.Tools {
		names[i] = tool.Name
	}
	sort.Strings(names)

	assert.Equal(t, []string{
		"extract_bundle",
		"get_dependencies",
		"index_project",
		"query_symbols",
	}, names)
}

// TestMCPIndexAndQuery indexes the fixture over the MCP transport and then
// queries it.
func TestMCPIndexAndQuery(t *testing.T) {
	session, _ := setupServerClient(t)

	var indexed IndexProjectOutput
	callTool(t, session, "index_project", IndexProjectInput{ProjectRoot: fixtureAbsPath(t)}, &indexed)
	assert.Equal(t, 4, indexed.Stats.FileCount)

	var found QuerySymbolsOutput
	callTool(t, session, "query_symbols", QuerySymbolsInput{Query: "normal", Limit: 10}, &found)
	require.Equal(t, 1, found.Total)
	assert.Equal(t, "normalize", found.Symbols[0].Name)
	assert.Equal(t, "src/demo/helpers.py", found.Symbols[0].FilePath)
}

// TestMCPExtractBundle extracts the fixture entry point over the MCP
// transport.
func TestMCPExtractBundle(t *testing.T) {
	session, _ := setupServerClient(t)

	var out ExtractBundleOutput
	callTool(t, session, "extract_bundle", ExtractBundleInput{
		Target:      "src/demo/pipeline.py:run",
		ProjectRoot: fixtureAbsPath(t),
	}, &out)

	assert.Contains(t, out.Payload, "def normalize(x):")
	assert.Contains(t, out.Payload, "def run(data: Payload, factor: int = 2) -> T:")
	assert.NotContains(t, out.Payload, "logger =")
	assert.Empty(t, out.Written)
}

// TestMCPToolError verifies that handler errors reach the client as tool
// errors.
func TestMCPToolError(t *testing.T) {
	session, _ := setupServerClient(t)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "query_symbols",
		Arguments: QuerySymbolsInput{Query: "x"},
	})
	if err != nil {
		assert.Contains(t, err.Error(), "index_project")
		return
	}
	assert.True(t, result.IsError, "querying before indexing should fail")
}

// TestMCPCallUnknownTool verifies that calling a non-existent tool returns an
// error.
func TestMCPCallUnknownTool(t *testing.T) {
	session, _ := setupServerClient(t)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "nonexistent_tool",
		Arguments: map[string]any{},
	})

	// The MCP SDK may return an error at the protocol level or set IsError on
	// the result. Accept either behavior.
	if err != nil {
		return
	}

	require.NotNil(t, result)
	assert.True(t, result.IsError, "calling an unknown tool should set IsError")
}
