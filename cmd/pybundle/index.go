package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/pybundle/internal/export"
	"github.com/dusk-indust/pybundle/internal/graph"
	"github.com/dusk-indust/pybundle/internal/mcptools"
)

func newIndexCmd(a *app) *cobra.Command {
	var (
		db     string
		query  string
		format string
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index the project and report on its module graph",
		Long: `Index parses every local module of the project. With --db the index is
written to a Kuzu database; --query prints the symbols matching a name along
with their file's dependencies; --format mermaid prints the import diagram.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "text" && format != "mermaid" {
				return fmt.Errorf("unknown format %q (want text or mermaid)", format)
			}
			ctx := cmd.Context()
			build, _, err := a.build(ctx)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("db") && db == "" {
				db = mcptools.PersistDir
			}
			if db != "" && !filepath.IsAbs(db) {
				db = filepath.Join(a.projectRoot, db)
			}
			store, persisted, err := openIndexStore(db, db != "")
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := graph.Populate(ctx, store, build)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case format == "mermaid":
				diagram, err := export.GenerateModuleMermaid(ctx, store)
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(out, diagram)
				return err
			case query != "":
				return writeQuery(ctx, out, store, query)
			}

			fmt.Fprintf(out, "files: %d\nmodules: %d\nsymbols: %d\nedges: %d\n",
				stats.FileCount, len(build.Index.Modules()), stats.SymbolCount, stats.EdgeCount)
			if persisted {
				fmt.Fprintf(out, "persisted: %s\n", db)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&db, "db", "", "persist the index to this Kuzu database directory (relative to the project root)")
	cmd.Flags().StringVarP(&query, "query", "q", "", "print symbols whose name contains this string")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text or mermaid")
	return cmd
}

// writeQuery prints the symbols matching pattern and the import neighbourhood
// of the first match's file as markdown.
func writeQuery(ctx context.Context, w io.Writer, store graph.Store, pattern string) error {
	symbols, err := store.QuerySymbols(ctx, pattern, 10)
	if err != nil {
		return fmt.Errorf("query symbols: %w", err)
	}
	if len(symbols) == 0 {
		_, err := fmt.Fprintf(w, "no symbols match %q\n", pattern)
		return err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Symbols matching %q\n\n", pattern)
	for _, sym := range symbols {
		fmt.Fprintf(&sb, "- `%s %s` in `%s:%d`", sym.Kind, sym.Name, sym.FilePath, sym.StartLine)
		if !sym.Exported {
			sb.WriteString(" (private)")
		}
		sb.WriteString("\n")
	}

	primary := symbols[0].FilePath
	upstream, err := store.GetDependencies(ctx, primary, graph.DirectionUpstream, 2)
	if err == nil && len(upstream) > 0 {
		fmt.Fprintf(&sb, "\n**Imports of `%s`:**\n", primary)
		for _, chain := range upstream {
			if len(chain.Nodes) > 1 {
				fmt.Fprintf(&sb, "- `%s`\n", chain.Nodes[len(chain.Nodes)-1])
			}
		}
	}

	downstream, err := store.GetDependencies(ctx, primary, graph.DirectionDownstream, 2)
	if err == nil && len(downstream) > 0 {
		fmt.Fprintf(&sb, "\n**Imported by (%d):**\n", len(downstream))
		shown := 0
		for _, chain := range downstream {
			if len(chain.Nodes) > 1 && shown < 8 {
				fmt.Fprintf(&sb, "- `%s`\n", chain.Nodes[len(chain.Nodes)-1])
				shown++
			}
		}
		if len(downstream) > 8 {
			fmt.Fprintf(&sb, "- ... (%d more)\n", len(downstream)-8)
		}
	}

	_, err = io.WriteString(w, sb.String())
	return err
}
