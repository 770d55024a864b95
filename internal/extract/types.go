// Package extract computes the source bundle of a Python function or class:
// every local definition it transitively depends on in dependency order, the
// import statements for everything non-local, and inlined values for the
// module-level constants it reads.
package extract

import (
	"fmt"
	"strings"

	"github.com/dusk-indust/pybundle/internal/graph"
)

// ImportKind is how a dependency travels in the bundle.
type ImportKind string

const (
	ImportStandard  ImportKind = "standard"  // import m [as n]
	ImportSelective ImportKind = "selective" // from m import x, or a local definition
	ImportVariable  ImportKind = "variable"  // name = <value>, inlined
	ImportUnion     ImportKind = "union"     // name = Union[...], inlined
)

// ValueKind distinguishes the variable lines.
type ValueKind string

const (
	ValueConstant ValueKind = "constant" // int, float, str or bool literal
	ValueCall     ValueKind = "call"     // name = Cls(...)
	ValueExpr     ValueKind = "expr"     // any other expression, copied verbatim
)

// SymbolReference is one discovered dependency.
type SymbolReference struct {
	// Name is the identifier the dependency is bound to in the bundle. When
	// one object is reached under several names the first one seen wins and
	// the rest are kept in Aliases.
	Name    string   `json:"name"`
	Aliases []string `json:"aliases,omitempty"`
	// Symbol is the name the object is defined under in OriginModule.
	Symbol       string     `json:"symbol,omitempty"`
	OriginModule string     `json:"originModule,omitempty"`
	ImportKind   ImportKind `json:"importKind"`
	ValueKind    ValueKind  `json:"valueKind,omitempty"`
	IsLocal      bool       `json:"isLocal"`

	// SourceText is the verbatim definition of a local function or class, or
	// the synthesized line of a variable or union.
	SourceText string `json:"sourceText,omitempty"`
	// Declaration is the assignment that creates a local type variable,
	// whose SourceText is empty.
	Declaration string `json:"declaration,omitempty"`
	// Refs are the identifiers the definition mentions.
	Refs []string `json:"refs,omitempty"`

	FilePath string `json:"filePath,omitempty"`
	Line     int    `json:"line,omitempty"`

	identity string
	binding  *graph.Binding
}

// Identity names the object the reference stands for.
func (r *SymbolReference) Identity() string {
	return r.identity
}

// Names returns every name the reference is bound to, Name first.
func (r *SymbolReference) Names() []string {
	return append([]string{r.Name}, r.Aliases...)
}

// Bundle is the extracted, ordered payload for one entry point.
type Bundle struct {
	EntryName   string        `json:"entryName"`
	EntryModule string        `json:"entryModule"`
	EntryKind   string        `json:"entryKind"` // "function" or "class"
	EntryFile   string        `json:"entryFile"`
	EntrySource string        `json:"entrySource"` // decorators removed
	Parameters  []graph.Param `json:"parameters,omitempty"`

	Local     []SymbolReference `json:"local"` // dependency order
	Selective []SymbolReference `json:"selective"`
	Standard  []SymbolReference `json:"standard"`
	Variables []SymbolReference `json:"variables"`
	Unions    []SymbolReference `json:"unions"`

	Graph       DependencyGraph `json:"graph"`
	Diagnostics []Diagnostic    `json:"diagnostics,omitempty"`
}

// LocalNames returns the names of the local entries in emission order.
func (b *Bundle) LocalNames() []string {
	out := make([]string, len(b.Local))
	for i, r := range b.Local {
		out[i] = r.Name
	}
	return out
}

// References returns every reference in the bundle, section by section.
func (b *Bundle) References() []SymbolReference {
	var out []SymbolReference
	for _, section := range [][]SymbolReference{b.Local, b.Selective, b.Standard, b.Variables, b.Unions} {
		out = append(out, section...)
	}
	return out
}

// EntryRef names the function or class to extract. Exactly one of Module
// and File is set.
type EntryRef struct {
	Module string // dotted module name
	File   string // path relative to the project root
	Name   string
}

func (e EntryRef) String() string {
	if e.File != "" {
		return e.File + ":" + e.Name
	}
	return e.Module + ":" + e.Name
}

// ParseEntryRef parses "pkg.mod:func" or "path/to/file.py:func".
func ParseEntryRef(s string) (EntryRef, error) {
	i := strings.LastIndex(s, ":")
	if i <= 0 || i == len(s)-1 {
		return EntryRef{}, fmt.Errorf("invalid entry %q: want module:name or file.py:name", s)
	}
	where, name := s[:i], s[i+1:]
	if strings.HasSuffix(where, ".py") || strings.ContainsAny(where, `/\`) {
		return EntryRef{File: where, Name: name}, nil
	}
	return EntryRef{Module: where, Name: name}, nil
}
