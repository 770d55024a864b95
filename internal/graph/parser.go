package graph

import "context"

// ParseResult holds the extracted symbols, edges and module scope from a
// single file.
type ParseResult struct {
	File    FileNode     `json:"file"`
	Symbols []SymbolNode `json:"symbols"`
	Edges   []Edge       `json:"edges"` // DEFINES, IMPORTS, REFERENCES edges
	Scope   *ModuleScope `json:"-"`
}

// Parser extracts structural information from source files.
// Implementation: TreeSitterParser.
type Parser interface {
	// Parse extracts symbols and relationships from a single source file.
	// path is repo-relative; the module name is derived from it.
	Parse(ctx context.Context, path string, source []byte, lang Language) (*ParseResult, error)

	// SupportedLanguages returns the languages this parser can handle.
	SupportedLanguages() []Language

	// Close releases parser resources (Tree-sitter C memory).
	Close() error
}
