package graph

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"
)

// DefaultSourceRoots are the directories whose children are importable as
// top-level packages.
var DefaultSourceRoots = []string{".", "src"}

// skipDirs are never descended into.
var skipDirs = map[string]bool{
	".git":          true,
	"__pycache__":   true,
	".mypy_cache":   true,
	".pytest_cache": true,
	".ruff_cache":   true,
	".tox":          true,
	"node_modules":  true,
}

// IndexerOptions configures how a project tree is indexed.
type IndexerOptions struct {
	SourceRoots      []string
	ExcludeDirs      []string
	RespectGitignore bool
	Workers          int // parallel parses; <= 0 means GOMAXPROCS
	CacheSize        int // parsed-file LRU entries; <= 0 disables caching
	Logger           *slog.Logger
}

// BuildResult is the outcome of one indexing pass.
type BuildResult struct {
	Index   *Index
	Results []*ParseResult // sorted by file path
}

// Indexer walks a project tree and builds its Index. Parsed files are
// memoised by path, size and modification time, so repeated builds (as the
// MCP server does) only re-parse changed files.
type Indexer struct {
	parser   Parser
	locality *Locality
	opts     IndexerOptions
	cache    *lru.Cache[string, *ParseResult]
	logger   *slog.Logger
}

// NewIndexer creates an Indexer for the project rooted at locality.Root.
func NewIndexer(parser Parser, locality *Locality, opts IndexerOptions) (*Indexer, error) {
	if len(opts.SourceRoots) == 0 {
		opts.SourceRoots = DefaultSourceRoots
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ix := &Indexer{parser: parser, locality: locality, opts: opts, logger: logger}
	if opts.CacheSize > 0 {
		cache, err := lru.New[string, *ParseResult](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("create parse cache: %w", err)
		}
		ix.cache = cache
	}
	return ix, nil
}

// Root returns the absolute project root.
func (ix *Indexer) Root() string {
	return ix.locality.Root
}

// Locality returns the locality rule the indexer applies.
func (ix *Indexer) Locality() *Locality {
	return ix.locality
}

// Build indexes every local Python file under the project root.
func (ix *Indexer) Build(ctx context.Context) (*BuildResult, error) {
	root := ix.locality.Root
	paths, err := ix.discover(root)
	if err != nil {
		return nil, err
	}

	results := make([]*ParseResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.opts.Workers)
	for i, rel := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := ix.parseFile(gctx, root, rel)
			if err != nil {
				ix.logger.Warn("skipping unparseable file", "path", rel, "err", err)
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("index %s: %w", root, err)
	}

	out := &BuildResult{Index: NewIndex(root)}
	for _, res := range results {
		if res == nil {
			continue
		}
		out.Index.Add(res.Scope, ix.opts.SourceRoots)
		out.Results = append(out.Results, res)
	}
	ix.logger.Debug("indexed project", "root", root, "files", len(out.Results), "modules", len(out.Index.Modules()))
	return out, nil
}

// discover returns the repo-relative paths of local .py files, sorted.
func (ix *Indexer) discover(root string) ([]string, error) {
	var gi *ignore.GitIgnore
	if ix.opts.RespectGitignore {
		if compiled, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore")); err == nil {
			gi = compiled
		}
	}
	exclude := make(map[string]bool, len(ix.opts.ExcludeDirs))
	for _, d := range ix.opts.ExcludeDirs {
		exclude[d] = true
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip inaccessible paths
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if path == root {
				return nil
			}
			name := d.Name()
			if skipDirs[name] || exclude[name] || ix.locality.IsVendorDir(name) {
				return filepath.SkipDir
			}
			if gi != nil && gi.MatchesPath(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".py" || d.Type()&os.ModeSymlink != 0 {
			return nil
		}
		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		if !ix.locality.IsLocal(path) {
			return nil
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// parseFile parses one file, consulting the LRU cache first.
func (ix *Indexer) parseFile(ctx context.Context, root, rel string) (*ParseResult, error) {
	abs := filepath.Join(root, rel)
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s|%d|%d", rel, info.Size(), info.ModTime().UnixNano())
	if ix.cache != nil {
		if res, ok := ix.cache.Get(key); ok {
			return res, nil
		}
	}

	source, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}
	res, err := ix.parser.Parse(ctx, rel, source, LangPython)
	if err != nil {
		return nil, err
	}
	if ix.cache != nil {
		ix.cache.Add(key, res)
	}
	return res, nil
}

// Populate writes the queryable projection of a build (files, symbols and
// resolved edges) into store.
func Populate(ctx context.Context, store Store, build *BuildResult) (*GraphStats, error) {
	if err := store.InitSchema(ctx); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	resolver := NewResolver(build.Index)
	for _, res := range build.Results {
		if err := store.AddFile(ctx, res.File); err != nil {
			return nil, fmt.Errorf("add file %s: %w", res.File.Path, err)
		}
		for _, sym := range res.Symbols {
			if err := store.AddSymbol(ctx, sym); err != nil {
				return nil, fmt.Errorf("add symbol %s: %w", sym.Name, err)
			}
		}
	}
	// Edges go in after every node exists so that file-to-file IMPORTS
	// edges can be matched by the graph backend.
	for _, res := range build.Results {
		for _, edge := range resolver.ResolveAll(res.Edges) {
			if err := store.AddEdge(ctx, edge); err != nil {
				return nil, fmt.Errorf("add edge %s->%s: %w", edge.SourceID, edge.TargetID, err)
			}
		}
	}
	return store.Stats(ctx)
}
