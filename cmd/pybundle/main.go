package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dusk-indust/pybundle/internal/config"
	"github.com/dusk-indust/pybundle/internal/graph"
)

// version is set via -ldflags at build time.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app is the state shared by every subcommand once flags are parsed.
type app struct {
	projectRoot string
	verbose     bool

	cfg    *config.ProjectConfig
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "pybundle",
		Short: "Extract self-contained source bundles from Python projects",
		Long: `pybundle statically analyses a Python project and computes, for a chosen
function or class, the bundle needed to run it on a remote node: every local
definition it depends on in dependency order, the imports for everything else,
inlined configuration values, and the entry definition itself.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.projectRoot, "project-root", ".", "path to the Python project")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newExtractCmd(a),
		newIndexCmd(a),
		newServeCmd(a),
		newInitCmd(a),
		newVersionCmd(),
	)
	return root
}

// setup loads .env and the project configuration and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	abs, err := filepath.Abs(a.projectRoot)
	if err != nil {
		return fmt.Errorf("resolving project root: %w", err)
	}
	a.projectRoot = abs

	// .env files are optional; variables already set win.
	_ = godotenv.Load(filepath.Join(abs, ".env"))

	cfg, err := config.Load(abs)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := slog.LevelWarn
	if a.verbose || cfg.Verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return nil
}

// build indexes the project with the loaded configuration.
func (a *app) build(ctx context.Context) (*graph.BuildResult, *graph.Locality, error) {
	locality, err := graph.NewLocality(a.projectRoot, a.cfg.VendorMarkers)
	if err != nil {
		return nil, nil, err
	}
	ix, err := graph.NewIndexer(graph.NewTreeSitterParser(), locality, a.cfg.IndexerOptions(a.logger))
	if err != nil {
		return nil, nil, err
	}
	build, err := ix.Build(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("index %s: %w", a.projectRoot, err)
	}
	return build, locality, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
