package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/pybundle/internal/export"
	"github.com/dusk-indust/pybundle/internal/extract"
)

func newExtractCmd(a *app) *cobra.Command {
	var (
		outDir string
		format string
	)

	cmd := &cobra.Command{
		Use:   "extract <target>",
		Short: "Extract the source bundle of a function or class",
		Long: `Extract computes the bundle of the target, given as pkg.module:name or
path/to/file.py:name, and prints it. With --out the payload and its manifest
are also written to a directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case "text", "json", "mermaid":
			default:
				return fmt.Errorf("unknown format %q (want text, json or mermaid)", format)
			}

			ref, err := extract.ParseEntryRef(args[0])
			if err != nil {
				return err
			}
			build, locality, err := a.build(cmd.Context())
			if err != nil {
				return err
			}
			b, err := extract.New(build.Index, locality, a.cfg.ExtractOptions(a.logger)).Extract(cmd.Context(), ref)
			if err != nil {
				return err
			}
			for _, d := range b.Diagnostics {
				a.logger.Warn("degraded symbol", "diagnostic", d.Error())
			}

			if outDir != "" {
				m, err := export.WriteBundle(outDir, b)
				if err != nil {
					return err
				}
				a.logger.Info("bundle written", "dir", outDir, "manifest", m.ID)
				fmt.Fprintf(cmd.ErrOrStderr(), "  wrote %s\n", filepath.Join(outDir, export.PayloadFile))
				fmt.Fprintf(cmd.ErrOrStderr(), "  wrote %s\n", filepath.Join(outDir, export.ManifestFile))
			}

			out := cmd.OutOrStdout()
			switch format {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(export.BuildManifest(b))
			case "mermaid":
				_, err = fmt.Fprint(out, export.GenerateMermaid(b))
			default:
				_, err = fmt.Fprint(out, b.Render())
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "directory to write bundle.py and manifest.json to")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json or mermaid")
	return cmd
}
