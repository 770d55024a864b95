package extract

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnresolvableSource marks a dependency whose definition could not be
	// found. The reference is kept as a plain import.
	ErrUnresolvableSource = errors.New("unresolvable source")
	// ErrCyclicLocalDependency is returned when the local definitions cannot
	// be ordered.
	ErrCyclicLocalDependency = errors.New("cyclic local dependency")
	// ErrMissingYAMLFile marks a YAML-path constant whose file does not
	// exist. The constant is inlined as a string.
	ErrMissingYAMLFile = errors.New("missing yaml file")
	// ErrAmbiguousBinding marks a name bound more than once in one scope.
	// The last binding is used.
	ErrAmbiguousBinding = errors.New("ambiguous binding")
	// ErrEntryNotFound is returned when the entry function or class does not
	// exist in the index.
	ErrEntryNotFound = errors.New("entry not found")
)

// CycleError reports the local definitions that depend on each other.
// Cycle starts and ends with the same name.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCyclicLocalDependency, strings.Join(e.Cycle, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCyclicLocalDependency }

// Diagnostic is a degraded condition met during extraction.
type Diagnostic struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Module string `json:"module,omitempty"`
	Detail string `json:"detail,omitempty"`

	err error
}

func newDiagnostic(err error, name, module, detail string) Diagnostic {
	return Diagnostic{
		Code:   strings.ReplaceAll(err.Error(), " ", "_"),
		Name:   name,
		Module: module,
		Detail: detail,
		err:    err,
	}
}

func (d Diagnostic) Error() string {
	msg := d.Code + ": " + d.Name
	if d.Module != "" {
		msg += " (" + d.Module + ")"
	}
	if d.Detail != "" {
		msg += ": " + d.Detail
	}
	return msg
}

func (d Diagnostic) Unwrap() error { return d.err }

// HasDiagnostic reports whether the bundle recorded a diagnostic of kind err
// for name.
func (b *Bundle) HasDiagnostic(err error, name string) bool {
	for _, d := range b.Diagnostics {
		if d.Name == name && errors.Is(d, err) {
			return true
		}
	}
	return false
}
