//go:build cgo

package mcptools

import (
	"context"
	"fmt"
	"os"

	"github.com/dusk-indust/pybundle/internal/graph"
)

// persistIndex writes the queryable projection of build to a file-based
// KuzuDB at path, replacing whatever was there. This lets `pybundle index
// --db` and later sessions query the index without re-parsing.
func persistIndex(ctx context.Context, build *graph.BuildResult, path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove stale index: %w", err)
	}

	dst, err := graph.NewKuzuFileStore(path)
	if err != nil {
		return fmt.Errorf("open file store: %w", err)
	}
	defer dst.Close()

	if _, err := graph.Populate(ctx, dst, build); err != nil {
		return fmt.Errorf("populate %s: %w", path, err)
	}
	return nil
}
