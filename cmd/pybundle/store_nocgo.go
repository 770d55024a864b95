//go:build !cgo

package main

import (
	"errors"

	"github.com/dusk-indust/pybundle/internal/graph"
)

func openIndexStore(_ string, persist bool) (graph.Store, bool, error) {
	if persist {
		return nil, false, errors.New("--db requires a cgo-enabled build")
	}
	return graph.NewMemStore(), false, nil
}
