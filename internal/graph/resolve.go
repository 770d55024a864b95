package graph

import (
	"path/filepath"
	"strings"
)

// ModuleNameForPath converts a repo-relative Python file path into the dotted
// module name it is importable as from the repository root.
// "pkg/mod.py" -> "pkg.mod", "pkg/__init__.py" -> "pkg". A root-level
// __init__.py has no module name and yields "".
func ModuleNameForPath(path string) string {
	p := filepath.ToSlash(filepath.Clean(path))
	p = strings.TrimSuffix(p, ".py")
	p = strings.TrimSuffix(p, "/__init__")
	if p == "__init__" || p == "." {
		return ""
	}
	return strings.ReplaceAll(p, "/", ".")
}

// parentModule returns the package containing module ("a.b.c" -> "a.b").
func parentModule(module string) string {
	if i := strings.LastIndex(module, "."); i >= 0 {
		return module[:i]
	}
	return ""
}

// dotted renders a relative import specifier: dotted(2, "utils") == "..utils".
func dotted(level int, module string) string {
	return strings.Repeat(".", level) + module
}

// splitDotted is the inverse of dotted.
func splitDotted(spec string) (int, string) {
	level := 0
	for level < len(spec) && spec[level] == '.' {
		level++
	}
	return level, spec[level:]
}

// absoluteModule resolves a possibly relative import specifier against the
// importing module. One dot is the importing module's own package, each
// further dot goes up one package.
func absoluteModule(from *ModuleScope, level int, module string) string {
	if level == 0 || from == nil {
		return module
	}
	pkg := from.Module
	if !from.Package {
		pkg = parentModule(pkg)
	}
	for i := 1; i < level; i++ {
		pkg = parentModule(pkg)
	}
	switch {
	case pkg == "":
		return module
	case module == "":
		return pkg
	default:
		return pkg + "." + module
	}
}

// Resolver rewrites raw IMPORTS edge targets (module specifiers extracted by
// tree-sitter) into repo-relative file paths that match FileNode.Path values.
// It is built once per index with the module table of that index.
type Resolver struct {
	index *Index
}

// NewResolver builds a Resolver over the modules known to index.
func NewResolver(index *Index) *Resolver {
	return &Resolver{index: index}
}

// ResolveEdge attempts to resolve a single IMPORTS edge's TargetID from a raw
// import specifier to a repo-relative file path. Returns the resolved edge and
// true on success. Non-IMPORTS edges pass through unchanged.
func (r *Resolver) ResolveEdge(edge Edge) (Edge, bool) {
	if edge.Kind != EdgeKindImports {
		return edge, true
	}
	level, module := splitDotted(edge.TargetID)
	from := r.index.ModuleForFile(edge.SourceID)
	target := r.index.Module(absoluteModule(from, level, module))
	if target == nil {
		return edge, false // stdlib or third-party
	}
	edge.TargetID = target.FilePath
	return edge, true
}

// ResolveAll resolves a slice of edges, dropping unresolvable IMPORTS edges.
// Non-IMPORTS edges pass through unchanged.
func (r *Resolver) ResolveAll(edges []Edge) []Edge {
	out := make([]Edge, 0, len(edges))
	for _, e := range edges {
		resolved, ok := r.ResolveEdge(e)
		if ok {
			out = append(out, resolved)
		}
	}
	return out
}
