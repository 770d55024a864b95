package extract

import (
	"errors"
	"fmt"

	dgraph "github.com/dominikbraun/graph"
)

// DependencyGraph maps each local entry's name to the names of the other
// local entries its definition mentions, in discovery order.
type DependencyGraph map[string][]string

// BuildDependencyGraph computes the dependency graph over local references.
// An entry depends on another when one of its referenced identifiers is a
// name (or alias) of the other entry.
func BuildDependencyGraph(local []SymbolReference) DependencyGraph {
	owner := make(map[string]string)
	for _, r := range local {
		for _, name := range r.Names() {
			if _, taken := owner[name]; !taken {
				owner[name] = r.Name
			}
		}
		if r.Symbol != "" {
			if _, taken := owner[r.Symbol]; !taken {
				owner[r.Symbol] = r.Name
			}
		}
	}

	g := make(DependencyGraph, len(local))
	for _, r := range local {
		seen := make(map[string]bool)
		deps := []string{}
		for _, ref := range r.Refs {
			dep, ok := owner[ref]
			if !ok || dep == r.Name || seen[dep] {
				continue
			}
			seen[dep] = true
			deps = append(deps, dep)
		}
		g[r.Name] = deps
	}
	return g
}

// SortLocal orders local references so that every entry follows the entries
// it depends on. Ties between ready entries are broken by input order, so
// the result is deterministic. A cycle fails with a *CycleError.
func SortLocal(local []SymbolReference) ([]SymbolReference, DependencyGraph, error) {
	deps := BuildDependencyGraph(local)

	rank := make(map[string]int, len(local))
	byName := make(map[string]SymbolReference, len(local))
	g := dgraph.New(dgraph.StringHash, dgraph.Directed(), dgraph.PreventCycles())
	for i, r := range local {
		rank[r.Name] = i
		byName[r.Name] = r
		if err := g.AddVertex(r.Name); err != nil && !errors.Is(err, dgraph.ErrVertexAlreadyExists) {
			return nil, nil, fmt.Errorf("add %s: %w", r.Name, err)
		}
	}

	// Edges point from a dependency to its dependent.
	for _, r := range local {
		for _, dep := range deps[r.Name] {
			err := g.AddEdge(dep, r.Name)
			switch {
			case err == nil, errors.Is(err, dgraph.ErrEdgeAlreadyExists):
			case errors.Is(err, dgraph.ErrEdgeCreatesCycle):
				return nil, deps, &CycleError{Cycle: cycleThrough(g, r.Name, dep)}
			default:
				return nil, nil, fmt.Errorf("add edge %s -> %s: %w", dep, r.Name, err)
			}
		}
	}

	order, err := dgraph.StableTopologicalSort(g, func(a, b string) bool { return rank[a] < rank[b] })
	if err != nil {
		return nil, deps, fmt.Errorf("%w: %v", ErrCyclicLocalDependency, err)
	}
	out := make([]SymbolReference, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name])
	}
	return out, deps, nil
}

// cycleThrough returns the cycle closed when dependent is found to depend on
// dependency although dependency already depends on dependent. It reads in
// "depends on" direction and ends where it starts.
func cycleThrough(g dgraph.Graph[string, string], dependent, dependency string) []string {
	// Edges run from a dependency to its dependent, so the existing path
	// leads from dependent to dependency.
	path, err := dgraph.ShortestPath(g, dependent, dependency)
	if err != nil || len(path) == 0 {
		return []string{dependent, dependency, dependent}
	}
	cycle := make([]string, 0, len(path)+1)
	cycle = append(cycle, dependent)
	for i := len(path) - 1; i >= 0; i-- {
		cycle = append(cycle, path[i])
	}
	return cycle
}
