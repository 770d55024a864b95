//go:build cgo

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dusk-indust/pybundle/internal/graph"
)

// openIndexStore returns the store index results are loaded into. A Kuzu
// database at path is used when persist is set, replacing any previous one.
func openIndexStore(path string, persist bool) (graph.Store, bool, error) {
	if !persist {
		return graph.NewMemStore(), false, nil
	}
	if err := os.RemoveAll(path); err != nil {
		return nil, false, fmt.Errorf("clear %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, false, err
	}
	store, err := graph.NewKuzuFileStore(path)
	if err != nil {
		return nil, false, fmt.Errorf("open graph: %w", err)
	}
	return store, true, nil
}
