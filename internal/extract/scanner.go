package extract

import "github.com/dusk-indust/pybundle/internal/graph"

// Assignment is a top-level configuration assignment of the entry file.
type Assignment struct {
	Target  string
	Kind    ValueKind // ValueConstant or ValueCall
	Binding *graph.Binding
}

// ScanTopLevel returns the literal and constructor-call assignments at the
// top level of scope, in first-binding order. A reassigned name appears
// once with its last value, and a name whose last binding is anything else
// (a def, an import) is not an assignment.
func ScanTopLevel(scope *graph.ModuleScope) []Assignment {
	var out []Assignment
	for _, b := range scope.Bindings() {
		switch b.Kind {
		case graph.BindConstant:
			out = append(out, Assignment{Target: b.Name, Kind: ValueConstant, Binding: b})
		case graph.BindCall:
			out = append(out, Assignment{Target: b.Name, Kind: ValueCall, Binding: b})
		}
	}
	return out
}
