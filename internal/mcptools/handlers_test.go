package mcptools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/pybundle/internal/config"
	"github.com/dusk-indust/pybundle/internal/export"
	"github.com/dusk-indust/pybundle/internal/extract"
	"github.com/dusk-indust/pybundle/internal/graph"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// fixtureAbsPath returns the absolute path to the py_project test fixture.
// Tests run from internal/mcptools/, so the relative path is
// ../../testdata/fixtures/py_project.
func fixtureAbsPath(t *testing.T) string {
	t.Helper()
	abs, err := filepath.Abs("../../testdata/fixtures/py_project")
	require.NoError(t, err)
	return abs
}

// newTestService returns a service configured for the fixture layout.
func newTestService(t *testing.T) *BundleService {
	t.Helper()
	cfg := config.Default()
	cfg.YAMLDir = "src/demo"
	return NewBundleService(graph.NewTreeSitterParser(), cfg, nil)
}

// indexedService returns a service that has already indexed the fixture.
func indexedService(t *testing.T) *BundleService {
	t.Helper()
	svc := newTestService(t)
	_, _, err := svc.IndexProject(context.Background(), nil, IndexProjectInput{ProjectRoot: fixtureAbsPath(t)})
	require.NoError(t, err)
	return svc
}

func chainsContain(chains []graph.DependencyChain, node string) bool {
	for _, c := range chains {
		for _, n := range c.Nodes {
			if n == node {
				return true
			}
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestIndexProject(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, out, err := svc.IndexProject(ctx, nil, IndexProjectInput{ProjectRoot: fixtureAbsPath(t)})
	require.NoError(t, err)

	assert.Equal(t, fixtureAbsPath(t), out.ProjectRoot)
	assert.Equal(t, 4, out.Stats.FileCount, "ignored and vendored files are skipped")
	assert.Greater(t, out.Stats.SymbolCount, 0)
	assert.Greater(t, out.Stats.EdgeCount, 0)
	assert.Greater(t, out.Modules, out.Stats.FileCount, "files under src are importable under two names")
	assert.Empty(t, out.Persisted)

	t.Run("reindex reuses the same root", func(t *testing.T) {
		_, again, err := svc.IndexProject(ctx, nil, IndexProjectInput{})
		require.NoError(t, err)
		assert.Equal(t, out.Stats, again.Stats)
	})

	t.Run("extra excludes", func(t *testing.T) {
		_, excluded, err := svc.IndexProject(ctx, nil, IndexProjectInput{ExcludeDirs: []string{"demo"}})
		require.NoError(t, err)
		assert.Equal(t, 0, excluded.Stats.FileCount)
	})
}

func TestIndexProject_Errors(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.IndexProject(ctx, nil, IndexProjectInput{})
	assert.ErrorContains(t, err, "projectRoot is required")

	_, _, err = svc.IndexProject(ctx, nil, IndexProjectInput{ProjectRoot: filepath.Join(t.TempDir(), "missing")})
	assert.ErrorContains(t, err, "cannot access projectRoot")

	file := filepath.Join(t.TempDir(), "main.py")
	require.NoError(t, os.WriteFile(file, []byte("x = 1\n"), 0o644))
	_, _, err = svc.IndexProject(ctx, nil, IndexProjectInput{ProjectRoot: file})
	assert.ErrorContains(t, err, "not a directory")
}

func TestQuerySymbols(t *testing.T) {
	ctx := context.Background()

	t.Run("before indexing", func(t *testing.T) {
		_, _, err := newTestService(t).QuerySymbols(ctx, nil, QuerySymbolsInput{Query: "scale"})
		assert.ErrorIs(t, err, ErrNotIndexed)
	})

	svc := indexedService(t)

	tests := []struct {
		name  string
		input QuerySymbolsInput
		want  []string
	}{
		{"substring is case insensitive", QuerySymbolsInput{Query: "scale"}, []string{"SCALE", "scale"}},
		{"kind filter", QuerySymbolsInput{Query: "scale", Kind: "Function"}, []string{"scale"}},
		{"classes", QuerySymbolsInput{Query: "Type", Kind: "class"}, []string{"TypeA", "TypeB"}},
		{"limit", QuerySymbolsInput{Query: "", Limit: 2}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, out, err := svc.QuerySymbols(ctx, nil, tt.input)
			require.NoError(t, err)
			assert.Equal(t, len(out.Symbols), out.Total)
			if tt.want == nil {
				assert.Len(t, out.Symbols, tt.input.Limit)
				return
			}
			var names []string
			for _, s := range out.Symbols {
				names = append(names, s.Name)
			}
			assert.ElementsMatch(t, tt.want, names)
		})
	}
}

func TestGetDependencies(t *testing.T) {
	ctx := context.Background()
	svc := indexedService(t)

	_, up, err := svc.GetDependencies(ctx, nil, GetDependenciesInput{
		NodeID:    "src/demo/pipeline.py",
		Direction: "upstream",
		MaxDepth:  1,
	})
	require.NoError(t, err)
	assert.True(t, chainsContain(up.Chains, "src/demo/helpers.py"))
	assert.True(t, chainsContain(up.Chains, "src/demo/types.py"))

	_, down, err := svc.GetDependencies(ctx, nil, GetDependenciesInput{NodeID: "src/demo/helpers.py"})
	require.NoError(t, err)
	assert.True(t, chainsContain(down.Chains, "src/demo/pipeline.py"))

	_, _, err = svc.GetDependencies(ctx, nil, GetDependenciesInput{})
	assert.ErrorContains(t, err, "nodeId is required")
}

func TestExtractBundle(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	svc.SetProjectRoot(fixtureAbsPath(t))

	outDir := filepath.Join(t.TempDir(), "bundle")
	_, out, err := svc.ExtractBundle(ctx, nil, ExtractBundleInput{
		Target: "demo.pipeline:run",
		OutDir: outDir,
	})
	require.NoError(t, err, "the project is indexed on demand")

	assert.Equal(t, "demo.pipeline:run", out.Entry)
	assert.ElementsMatch(t, []string{"Model", "normalize", "scale", "T"}, out.Local)
	assert.Contains(t, out.Imports, "import os")
	assert.Contains(t, out.Imports, "from dataclasses import dataclass")
	assert.Contains(t, out.Variables, `config_path = {"x": 1}`)
	assert.Contains(t, out.Variables, "Payload = Union[TypeA, TypeB]")
	assert.True(t, strings.HasSuffix(out.Payload, "return helpers.normalize(resp)\n"))
	assert.Len(t, out.Parameters, 2)
	assert.NotEmpty(t, out.Diagnostics)

	assert.NotEmpty(t, out.ManifestID)
	require.Len(t, out.Written, 2)
	payload, err := os.ReadFile(filepath.Join(outDir, export.PayloadFile))
	require.NoError(t, err)
	assert.Equal(t, out.Payload, string(payload))
}

func TestExtractBundle_Errors(t *testing.T) {
	ctx := context.Background()
	svc := indexedService(t)

	_, _, err := svc.ExtractBundle(ctx, nil, ExtractBundleInput{Target: "no-colon"})
	assert.Error(t, err)

	_, _, err = svc.ExtractBundle(ctx, nil, ExtractBundleInput{Target: "demo.pipeline:missing"})
	assert.ErrorIs(t, err, extract.ErrEntryNotFound)

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "loop.py"), []byte(
		"def a():\n    return b()\n\n\ndef b():\n    return a()\n\n\ndef entry():\n    return a()\n"), 0o644))
	_, _, err = svc.ExtractBundle(ctx, nil, ExtractBundleInput{Target: "loop:entry", ProjectRoot: root})
	assert.ErrorIs(t, err, extract.ErrCyclicLocalDependency)
}
