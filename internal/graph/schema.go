package graph

// --- Enums ---

// SymbolKind classifies symbols within the code graph.
type SymbolKind string

const (
	SymbolKindFunction SymbolKind = "function"
	SymbolKindClass    SymbolKind = "class"
	SymbolKindVariable SymbolKind = "variable"
	SymbolKindTypeVar  SymbolKind = "typevar"
	SymbolKindUnion    SymbolKind = "union"
	SymbolKindModule   SymbolKind = "module"
)

// EdgeKind classifies relationships between nodes.
type EdgeKind string

const (
	EdgeKindDefines    EdgeKind = "DEFINES"
	EdgeKindImports    EdgeKind = "IMPORTS"
	EdgeKindReferences EdgeKind = "REFERENCES"
)

// Language identifies a programming language for parsing.
type Language string

const (
	LangPython Language = "python"
)

// SupportedLanguages lists the languages the index understands.
var SupportedLanguages = []Language{LangPython}

// --- Models ---

// FileNode represents a source file in the code graph.
type FileNode struct {
	Path     string   `json:"path"`
	Module   string   `json:"module"`
	Language Language `json:"language"`
	LOC      int      `json:"loc"`
}

// SymbolNode represents a named top-level binding (function, class, constant, etc.).
type SymbolNode struct {
	Name      string     `json:"name"`
	Kind      SymbolKind `json:"kind"`
	Exported  bool       `json:"exported"`
	FilePath  string     `json:"filePath"`
	StartLine int        `json:"startLine"`
	EndLine   int        `json:"endLine"`
}

// Edge represents a relationship between two nodes.
//
// DEFINES: file path -> "filePath:name".
// IMPORTS: file path -> imported module name (file path once resolved).
// REFERENCES: "filePath:name" -> "filePath:name" of a referenced top-level binding.
type Edge struct {
	SourceID string   `json:"sourceId"`
	TargetID string   `json:"targetId"`
	Kind     EdgeKind `json:"kind"`
}

// GraphStats summarizes a code intelligence graph.
type GraphStats struct {
	FileCount   int `json:"fileCount"`
	SymbolCount int `json:"symbolCount"`
	EdgeCount   int `json:"edgeCount"`
}

// DependencyChain is an ordered sequence of nodes forming a dependency path.
type DependencyChain struct {
	Nodes []string `json:"nodes"` // node IDs in order
	Depth int      `json:"depth"`
}
