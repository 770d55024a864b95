package graph

import (
	"bytes"
	"context"
	"fmt"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

// extractor extracts a module scope from a parsed tree-sitter AST.
type extractor interface {
	Extract(root *tree_sitter.Node, source []byte, scope *ModuleScope)
}

// TreeSitterParser implements the Parser interface using tree-sitter grammars.
// A new tree-sitter parser is created per Parse call, so one TreeSitterParser
// may be shared by concurrent callers.
type TreeSitterParser struct {
	languages  map[Language]*tree_sitter.Language
	extractors map[Language]extractor
}

// NewTreeSitterParser creates a TreeSitterParser with the Python grammar
// registered.
func NewTreeSitterParser() *TreeSitterParser {
	return &TreeSitterParser{
		languages: map[Language]*tree_sitter.Language{
			LangPython: tree_sitter.NewLanguage(tree_sitter_python.Language()),
		},
		extractors: map[Language]extractor{
			LangPython: &pyExtractor{},
		},
	}
}

// Parse extracts the module scope, symbols and relationships from a single
// source file.
func (p *TreeSitterParser) Parse(_ context.Context, path string, source []byte, lang Language) (*ParseResult, error) {
	tsLang, ok := p.languages[lang]
	if !ok {
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}

	ext, ok := p.extractors[lang]
	if !ok {
		return nil, fmt.Errorf("no extractor for language: %s", lang)
	}

	parser := tree_sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(tsLang); err != nil {
		return nil, fmt.Errorf("set language %s: %w", lang, err)
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("tree-sitter returned nil tree for %s", path)
	}
	defer tree.Close()

	scope := NewModuleScope(ModuleNameForPath(path), path)
	ext.Extract(tree.RootNode(), source, scope)

	return &ParseResult{
		File: FileNode{
			Path:     path,
			Module:   scope.Module,
			Language: lang,
			LOC:      countLOC(source),
		},
		Symbols: scopeSymbols(scope),
		Edges:   scopeEdges(scope),
		Scope:   scope,
	}, nil
}

// SupportedLanguages returns the languages this parser can handle.
func (p *TreeSitterParser) SupportedLanguages() []Language {
	langs := make([]Language, 0, len(p.languages))
	for l := range p.languages {
		langs = append(langs, l)
	}
	return langs
}

// Close is a no-op because parsers are created per Parse call.
func (p *TreeSitterParser) Close() error {
	return nil
}

// scopeSymbols projects the scope's bindings onto SymbolNodes. Imports are
// not symbols of the file and are represented as IMPORTS edges instead.
func scopeSymbols(scope *ModuleScope) []SymbolNode {
	var symbols []SymbolNode
	for _, b := range scope.Bindings() {
		if b.Kind == BindModuleImport || b.Kind == BindSymbolImport {
			continue
		}
		symbols = append(symbols, SymbolNode{
			Name:      b.Name,
			Kind:      b.SymbolKind(),
			Exported:  isPyExported(b.Name),
			FilePath:  b.FilePath,
			StartLine: b.StartLine,
			EndLine:   b.EndLine,
		})
	}
	return symbols
}

// scopeEdges derives DEFINES, IMPORTS and intra-file REFERENCES edges.
// IMPORTS targets are raw module specifiers; the Indexer resolves them to
// file paths.
func scopeEdges(scope *ModuleScope) []Edge {
	var edges []Edge
	seenImport := make(map[string]bool)
	for _, b := range scope.Bindings() {
		switch b.Kind {
		case BindModuleImport, BindSymbolImport:
			spec := dotted(b.Level, b.ImportModule)
			if !seenImport[spec] {
				seenImport[spec] = true
				edges = append(edges, Edge{SourceID: scope.FilePath, TargetID: spec, Kind: EdgeKindImports})
			}
			continue
		}
		edges = append(edges, Edge{SourceID: scope.FilePath, TargetID: b.ID(), Kind: EdgeKindDefines})
		for _, ref := range b.Refs {
			target := scope.Lookup(ref)
			if target == nil || target == b || target.Kind == BindModuleImport || target.Kind == BindSymbolImport {
				continue
			}
			edges = append(edges, Edge{SourceID: b.ID(), TargetID: target.ID(), Kind: EdgeKindReferences})
		}
	}
	return edges
}

// countLOC counts the number of lines in source by counting newline bytes
// and adding one for the final line if the source is non-empty.
func countLOC(source []byte) int {
	if len(source) == 0 {
		return 0
	}
	return bytes.Count(source, []byte{'\n'}) + 1
}
