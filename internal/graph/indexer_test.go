package graph

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureRoot = "../../testdata/fixtures/py_project"

func newFixtureIndexer(t *testing.T, opts IndexerOptions) *Indexer {
	t.Helper()
	loc, err := NewLocality(fixtureRoot, nil)
	require.NoError(t, err)
	ix, err := NewIndexer(NewTreeSitterParser(), loc, opts)
	require.NoError(t, err)
	return ix
}

func TestIndexer_BuildFixture(t *testing.T) {
	ix := newFixtureIndexer(t, IndexerOptions{RespectGitignore: true, CacheSize: 16})
	build, err := ix.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"src/demo/__init__.py",
		"src/demo/helpers.py",
		"src/demo/pipeline.py",
		"src/demo/types.py",
	}, build.Index.Files(), "gitignored and vendored files are not indexed")
	assert.Len(t, build.Results, 4)

	pipeline := build.Index.Module("demo.pipeline")
	require.NotNil(t, pipeline)
	tgt := build.Index.Resolve(pipeline, "scale")
	require.NotNil(t, tgt)
	assert.Equal(t, "src/demo/helpers.py:scale", tgt.Identity())

	// requests lives under .venv and is therefore external.
	req := build.Index.Resolve(pipeline, "requests")
	require.NotNil(t, req)
	assert.False(t, req.Local)
}

func TestIndexer_WithoutGitignore(t *testing.T) {
	ix := newFixtureIndexer(t, IndexerOptions{})
	build, err := ix.Build(context.Background())
	require.NoError(t, err)
	assert.Contains(t, build.Index.Files(), "build/generated.py")
}

func TestIndexer_ExcludeDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app/main.py", "def main():\n    pass\n")
	writeFile(t, root, "legacy/old.py", "def old():\n    pass\n")
	writeFile(t, root, "__pycache__/main.cpython-311.py", "x = 1\n")
	writeFile(t, root, "notes.txt", "not python")

	loc, err := NewLocality(root, nil)
	require.NoError(t, err)
	ix, err := NewIndexer(NewTreeSitterParser(), loc, IndexerOptions{ExcludeDirs: []string{"legacy"}, Workers: 2})
	require.NoError(t, err)

	build, err := ix.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"app/main.py"}, build.Index.Files())
}

func TestIndexer_CacheReusesParses(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "mod.py", "A = 1\n")

	loc, err := NewLocality(root, nil)
	require.NoError(t, err)
	ix, err := NewIndexer(NewTreeSitterParser(), loc, IndexerOptions{CacheSize: 4})
	require.NoError(t, err)

	first, err := ix.Build(context.Background())
	require.NoError(t, err)
	second, err := ix.Build(context.Background())
	require.NoError(t, err)
	assert.Same(t, first.Results[0], second.Results[0])
}

func TestIndexer_Cancelled(t *testing.T) {
	ix := newFixtureIndexer(t, IndexerOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ix.Build(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPopulate(t *testing.T) {
	ix := newFixtureIndexer(t, IndexerOptions{RespectGitignore: true})
	ctx := context.Background()
	build, err := ix.Build(ctx)
	require.NoError(t, err)

	store := NewMemStore()
	stats, err := Populate(ctx, store, build)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.FileCount)
	assert.Greater(t, stats.SymbolCount, 8)

	run, err := store.GetSymbol(ctx, "src/demo/pipeline.py", "run")
	require.NoError(t, err)
	require.NotNil(t, run)

	chains, err := store.GetDependencies(ctx, "src/demo/pipeline.py", DirectionUpstream, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"src/demo/__init__.py",
		"src/demo/helpers.py",
		"src/demo/types.py",
	}, terminals(chains))
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
