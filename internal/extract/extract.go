package extract

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/dusk-indust/pybundle/internal/graph"
)

// DefaultYAMLSuffix marks string constants that name a YAML file.
const DefaultYAMLSuffix = ".yaml"

// DefaultExcludeNames are dropped from every bundle.
var DefaultExcludeNames = []string{"logger"}

// Options configures an Extractor.
type Options struct {
	// YAMLSuffix marks string constants that name a YAML file.
	YAMLSuffix string
	// YAMLDir is the directory, relative to the project root, that YAML
	// names are resolved against. It defaults to src/<root basename>.
	YAMLDir string
	// ExcludeNames are never included in a bundle.
	ExcludeNames []string
	Logger       *slog.Logger
}

// Extractor builds bundles from a project index. It holds no per-extraction
// state and is safe for concurrent use.
type Extractor struct {
	index    *graph.Index
	locality *graph.Locality
	opts     Options
	logger   *slog.Logger
}

// New returns an Extractor over index. locality decides which indexed
// modules count as project code.
func New(index *graph.Index, locality *graph.Locality, opts Options) *Extractor {
	if opts.YAMLSuffix == "" {
		opts.YAMLSuffix = DefaultYAMLSuffix
	}
	if opts.YAMLDir == "" {
		opts.YAMLDir = filepath.Join("src", filepath.Base(locality.Root))
	}
	if opts.ExcludeNames == nil {
		opts.ExcludeNames = DefaultExcludeNames
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{index: index, locality: locality, opts: opts, logger: logger}
}

// Extract computes the bundle for the function or class ref names. Only a
// dependency cycle between local definitions, an unreadable YAML file or a
// missing entry fail the extraction; other problems are recorded as
// diagnostics on the bundle.
func (e *Extractor) Extract(ctx context.Context, ref EntryRef) (*Bundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	scope, entry, err := e.entry(ref)
	if err != nil {
		return nil, err
	}

	c := newClassifier(e.index, e.locality, e.logger, e.opts.ExcludeNames)
	c.visited[entry.Identity()] = nil

	// Configuration assignments of the entry file come first, then whatever
	// else the entry body mentions.
	mentioned := make(map[string]bool, len(entry.BodyRefs))
	for _, name := range entry.BodyRefs {
		mentioned[name] = true
	}
	for _, a := range ScanTopLevel(scope) {
		if mentioned[a.Target] {
			c.classifyName(scope, a.Target)
		}
	}
	c.classify(scope, entry.BodyRefs)

	for _, r := range c.refs {
		if r.ImportKind == ImportUnion {
			c.external("Union", "typing")
			break
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := &Bundle{
		EntryName:   entry.Name,
		EntryModule: entry.Module,
		EntryKind:   string(entry.Kind),
		EntryFile:   entry.FilePath,
		EntrySource: stripDecorators(entry.Source, entry.DecoratorLines),
		Parameters:  entry.Params,
	}

	in := newInliner(filepath.Join(e.locality.Root, e.opts.YAMLDir), e.opts.YAMLSuffix)
	var local []SymbolReference
	for _, r := range c.refs {
		switch {
		case r.IsLocal && r.ImportKind == ImportSelective:
			local = append(local, *r)
		case r.ImportKind == ImportSelective:
			b.Selective = append(b.Selective, *r)
		case r.ImportKind == ImportStandard:
			b.Standard = append(b.Standard, *r)
		case r.ImportKind == ImportUnion:
			b.Unions = append(b.Unions, *r)
		case r.ImportKind == ImportVariable:
			line, err := e.variableLine(in, c, r)
			if err != nil {
				return nil, fmt.Errorf("extract %s: inline %s: %w", ref, r.Name, err)
			}
			r.SourceText = line
			b.Variables = append(b.Variables, *r)
		}
	}

	sorted, deps, err := SortLocal(local)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", ref, err)
	}
	b.Local = sorted
	b.Graph = deps
	b.Diagnostics = c.diags

	e.logger.Info("extracted bundle",
		"entry", ref.String(),
		"local", len(b.Local),
		"selective", len(b.Selective),
		"standard", len(b.Standard),
		"variables", len(b.Variables),
		"unions", len(b.Unions),
		"diagnostics", len(b.Diagnostics),
	)
	return b, nil
}

// entry finds the definition ref names, following re-exports.
func (e *Extractor) entry(ref EntryRef) (*graph.ModuleScope, *graph.Binding, error) {
	var scope *graph.ModuleScope
	if ref.File != "" {
		path := ref.File
		if filepath.IsAbs(path) {
			rel, err := filepath.Rel(e.locality.Root, path)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: %s", ErrEntryNotFound, ref)
			}
			path = rel
		}
		scope = e.index.ModuleForFile(path)
	} else {
		scope = e.index.Module(ref.Module)
	}
	if scope == nil {
		return nil, nil, fmt.Errorf("%w: %s: module not indexed", ErrEntryNotFound, ref)
	}

	t := e.index.Resolve(scope, ref.Name)
	if t == nil || t.Binding == nil || t.Scope == nil || !t.Local {
		return nil, nil, fmt.Errorf("%w: %s", ErrEntryNotFound, ref)
	}
	if k := t.Binding.Kind; k != graph.BindFunction && k != graph.BindClass {
		return nil, nil, fmt.Errorf("%w: %s is a %s, not a function or class", ErrEntryNotFound, ref, k)
	}
	return t.Scope, t.Binding, nil
}

// variableLine renders name = value for a variable reference.
func (e *Extractor) variableLine(in *inliner, c *classifier, r *SymbolReference) (string, error) {
	b := r.binding
	var value string
	switch r.ValueKind {
	case ValueConstant:
		v, missing, err := in.constant(b)
		if err != nil {
			return "", err
		}
		if missing {
			c.diagnose(ErrMissingYAMLFile, r.Name, r.OriginModule, fmt.Sprintf("%v not found under %s", b.Value, e.opts.YAMLDir))
		}
		value = v
	case ValueCall:
		value = call(b)
	default:
		value = expression(b)
	}
	return r.Name + " = " + value, nil
}
