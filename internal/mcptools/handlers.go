package mcptools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/pybundle/internal/config"
	"github.com/dusk-indust/pybundle/internal/export"
	"github.com/dusk-indust/pybundle/internal/extract"
	"github.com/dusk-indust/pybundle/internal/graph"
)

// ErrNotIndexed is returned by tools that need an index before any project
// has been indexed.
var ErrNotIndexed = errors.New("no project indexed; call index_project first")

// PersistDir is where index_project writes a persisted index, relative to
// the project root.
const PersistDir = ".pybundle/graph"

// BundleService holds the project index, its queryable store and the
// configuration used by MCP tool handlers.
type BundleService struct {
	parser graph.Parser
	cfg    *config.ProjectConfig
	logger *slog.Logger

	mu          sync.RWMutex
	projectRoot string
	indexer     *graph.Indexer // reused so unchanged files are not re-parsed
	excludes    []string       // extra excludes the indexer was built with
	build       *graph.BuildResult
	store       graph.Store
}

// NewBundleService creates a BundleService. A nil cfg uses config.Default.
func NewBundleService(parser graph.Parser, cfg *config.ProjectConfig, logger *slog.Logger) *BundleService {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BundleService{parser: parser, cfg: cfg, logger: logger}
}

// SetProjectRoot sets the project used when a tool call names none.
func (s *BundleService) SetProjectRoot(root string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projectRoot = root
}

// IndexProject walks a Python project, builds its module index and loads the
// queryable projection into a fresh store.
func (s *BundleService) IndexProject(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IndexProjectInput,
) (*mcp.CallToolResult, IndexProjectOutput, error) {
	root, err := s.rootFor(input.ProjectRoot)
	if err != nil {
		return nil, IndexProjectOutput{}, err
	}

	build, stats, err := s.index(ctx, root, input.ExcludeDirs)
	if err != nil {
		return nil, IndexProjectOutput{}, err
	}
	out := IndexProjectOutput{
		ProjectRoot: root,
		Modules:     len(build.Index.Modules()),
		Stats:       *stats,
	}

	if input.Persist {
		path := filepath.Join(root, PersistDir)
		if err := persistIndex(ctx, build, path); err != nil {
			s.logger.Warn("failed to persist index", "path", path, "err", err)
		} else {
			out.Persisted = path
		}
	}
	return nil, out, nil
}

// QuerySymbols searches for symbols by name substring match.
func (s *BundleService) QuerySymbols(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QuerySymbolsInput,
) (*mcp.CallToolResult, QuerySymbolsOutput, error) {
	store := s.currentStore()
	if store == nil {
		return nil, QuerySymbolsOutput{}, ErrNotIndexed
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	symbols, err := store.QuerySymbols(ctx, input.Query, limit)
	if err != nil {
		return nil, QuerySymbolsOutput{}, fmt.Errorf("query symbols: %w", err)
	}

	if input.Kind != "" {
		kind := graph.SymbolKind(strings.ToLower(input.Kind))
		filtered := symbols[:0]
		for _, sym := range symbols {
			if sym.Kind == kind {
				filtered = append(filtered, sym)
			}
		}
		symbols = filtered
	}

	return nil, QuerySymbolsOutput{
		Symbols: symbols,
		Total:   len(symbols),
	}, nil
}

// GetDependencies traverses the dependency graph from a given node.
func (s *BundleService) GetDependencies(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetDependenciesInput,
) (*mcp.CallToolResult, GetDependenciesOutput, error) {
	if input.NodeID == "" {
		return nil, GetDependenciesOutput{}, fmt.Errorf("nodeId is required")
	}
	store := s.currentStore()
	if store == nil {
		return nil, GetDependenciesOutput{}, ErrNotIndexed
	}

	direction := graph.DirectionDownstream
	if strings.EqualFold(input.Direction, "upstream") {
		direction = graph.DirectionUpstream
	}

	maxDepth := input.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 5
	}

	chains, err := store.GetDependencies(ctx, input.NodeID, direction, maxDepth)
	if err != nil {
		return nil, GetDependenciesOutput{}, fmt.Errorf("get dependencies: %w", err)
	}

	return nil, GetDependenciesOutput{Chains: chains}, nil
}

// ExtractBundle computes the bundle of a function or class, indexing the
// project first when needed. With OutDir set the payload and manifest are
// also written to disk.
func (s *BundleService) ExtractBundle(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ExtractBundleInput,
) (*mcp.CallToolResult, ExtractBundleOutput, error) {
	ref, err := extract.ParseEntryRef(input.Target)
	if err != nil {
		return nil, ExtractBundleOutput{}, err
	}

	build, root, err := s.buildFor(ctx, input.ProjectRoot)
	if err != nil {
		return nil, ExtractBundleOutput{}, err
	}
	locality, err := graph.NewLocality(root, s.cfg.VendorMarkers)
	if err != nil {
		return nil, ExtractBundleOutput{}, err
	}

	ex := extract.New(build.Index, locality, s.cfg.ExtractOptions(s.logger))
	b, err := ex.Extract(ctx, ref)
	if err != nil {
		return nil, ExtractBundleOutput{}, err
	}

	out := ExtractBundleOutput{
		Entry:       ref.String(),
		Payload:     b.Render(),
		Local:       b.LocalNames(),
		Parameters:  b.Parameters,
		Diagnostics: b.Diagnostics,
	}
	for _, section := range [][]extract.SymbolReference{b.Selective, b.Standard} {
		for _, r := range section {
			out.Imports = append(out.Imports, r.Statement())
		}
	}
	for _, section := range [][]extract.SymbolReference{b.Variables, b.Unions} {
		for _, r := range section {
			out.Variables = append(out.Variables, r.Statement())
		}
	}

	if input.OutDir != "" {
		m, err := export.WriteBundle(input.OutDir, b)
		if err != nil {
			return nil, ExtractBundleOutput{}, err
		}
		out.ManifestID = m.ID
		out.Written = []string{
			filepath.Join(input.OutDir, export.PayloadFile),
			filepath.Join(input.OutDir, export.ManifestFile),
		}
	}
	return nil, out, nil
}

// index builds root and swaps in a freshly populated store.
func (s *BundleService) index(ctx context.Context, root string, excludeDirs []string) (*graph.BuildResult, *graph.GraphStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexer == nil || s.indexer.Root() != root || !slices.Equal(s.excludes, excludeDirs) {
		locality, err := graph.NewLocality(root, s.cfg.VendorMarkers)
		if err != nil {
			return nil, nil, err
		}
		opts := s.cfg.IndexerOptions(s.logger)
		opts.ExcludeDirs = append(append([]string(nil), opts.ExcludeDirs...), excludeDirs...)
		ix, err := graph.NewIndexer(s.parser, locality, opts)
		if err != nil {
			return nil, nil, err
		}
		s.indexer = ix
		s.excludes = excludeDirs
	}

	build, err := s.indexer.Build(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("index %s: %w", root, err)
	}
	store := graph.NewMemStore()
	stats, err := graph.Populate(ctx, store, build)
	if err != nil {
		return nil, nil, err
	}

	s.projectRoot = root
	s.build = build
	s.store = store
	s.logger.Info("indexed project", "root", root, "files", stats.FileCount, "symbols", stats.SymbolCount)
	return build, stats, nil
}

// buildFor returns the index of root, building it unless it is the current
// one.
func (s *BundleService) buildFor(ctx context.Context, root string) (*graph.BuildResult, string, error) {
	root, err := s.rootFor(root)
	if err != nil {
		return nil, "", err
	}
	s.mu.RLock()
	build, current := s.build, s.projectRoot
	s.mu.RUnlock()
	if build != nil && current == root {
		return build, root, nil
	}
	build, _, err = s.index(ctx, root, nil)
	return build, root, err
}

// rootFor resolves the project a tool call refers to.
func (s *BundleService) rootFor(root string) (string, error) {
	if root == "" {
		s.mu.RLock()
		root = s.projectRoot
		s.mu.RUnlock()
	}
	if root == "" {
		return "", fmt.Errorf("projectRoot is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("cannot access projectRoot: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("projectRoot is not a directory: %s", abs)
	}
	return abs, nil
}

func (s *BundleService) currentStore() graph.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store
}
