package export

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dusk-indust/pybundle/internal/extract"
	"github.com/dusk-indust/pybundle/internal/graph"
)

// GenerateMermaid produces a Mermaid graph TD diagram of a bundle's local
// definitions. An arrow runs from a definition to the definitions that
// depend on it, so the diagram reads in emission order.
func GenerateMermaid(b *extract.Bundle) string {
	ids := newNodeIDs()

	var sb strings.Builder
	sb.WriteString("graph TD\n")
	for _, r := range b.Local {
		fmt.Fprintf(&sb, "  %s[\"%s\"]\n", ids.get(r.Name), label(r))
	}
	if b.EntryName != "" {
		fmt.Fprintf(&sb, "  %s((\"%s\"))\n", ids.get(b.EntryName), b.EntryName)
	}

	dependents := make(map[string]bool)
	for _, r := range b.Local {
		for _, dep := range b.Graph[r.Name] {
			fmt.Fprintf(&sb, "  %s --> %s\n", ids.get(dep), ids.get(r.Name))
			dependents[dep] = true
		}
	}
	// Definitions nothing else needs are used by the entry directly.
	if b.EntryName != "" {
		for _, r := range b.Local {
			if !dependents[r.Name] {
				fmt.Fprintf(&sb, "  %s -.-> %s\n", ids.get(r.Name), ids.get(b.EntryName))
			}
		}
	}
	return sb.String()
}

// GenerateModuleMermaid produces a Mermaid diagram of the indexed project's
// file imports. Files are grouped by directory; IMPORTS edges become arrows.
func GenerateModuleMermaid(ctx context.Context, store graph.Store) (string, error) {
	edges, err := store.GetAllEdges(ctx)
	if err != nil {
		return "", fmt.Errorf("get edges: %w", err)
	}

	groups := make(map[string][]string)
	seen := make(map[string]bool)
	var imports []graph.Edge
	for _, e := range edges {
		if e.Kind != graph.EdgeKindImports {
			continue
		}
		imports = append(imports, e)
		for _, path := range []string{e.SourceID, e.TargetID} {
			if !seen[path] {
				seen[path] = true
				dir := filepath.ToSlash(filepath.Dir(path))
				groups[dir] = append(groups[dir], path)
			}
		}
	}

	dirs := make([]string, 0, len(groups))
	for dir := range groups {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	ids := newNodeIDs()
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	for _, dir := range dirs {
		members := groups[dir]
		sort.Strings(members)
		fmt.Fprintf(&sb, "  subgraph %s[\"%.40s\"]\n", ids.get(dir+"/"), dir)
		for _, member := range members {
			fmt.Fprintf(&sb, "    %s[\"%s\"]\n", ids.get(member), shortPath(member))
		}
		sb.WriteString("  end\n")
	}
	for _, e := range imports {
		fmt.Fprintf(&sb, "  %s --> %s\n", ids.get(e.SourceID), ids.get(e.TargetID))
	}
	return sb.String(), nil
}

// nodeIDs maps names to Mermaid-safe identifiers in first-use order.
type nodeIDs struct {
	ids  map[string]string
	next int
}

func newNodeIDs() *nodeIDs {
	return &nodeIDs{ids: make(map[string]string)}
}

func (n *nodeIDs) get(name string) string {
	if id, ok := n.ids[name]; ok {
		return id
	}
	id := fmt.Sprintf("N%d", n.next)
	n.next++
	n.ids[name] = id
	return id
}

func label(r extract.SymbolReference) string {
	if r.OriginModule == "" {
		return r.Name
	}
	return r.Name + "<br/>" + r.OriginModule
}

// shortPath returns the last 2 path segments for readability.
func shortPath(path string) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) <= 2 {
		return path
	}
	return strings.Join(parts[len(parts)-2:], "/")
}
