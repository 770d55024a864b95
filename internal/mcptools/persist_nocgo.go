//go:build !cgo

package mcptools

import (
	"context"
	"errors"

	"github.com/dusk-indust/pybundle/internal/graph"
)

func persistIndex(context.Context, *graph.BuildResult, string) error {
	return errors.New("persisting the index requires a cgo build")
}
