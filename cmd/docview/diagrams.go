package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/vanderheijden86/docview/pkg/diagram"
	"github.com/vanderheijden86/docview/pkg/export"
)

func newDiagramsCmd(root *rootOptions) *cobra.Command {
	var (
		outDir string
		format string
		scale  float64
	)
	cmd := &cobra.Command{
		Use:   "diagrams <document>",
		Short: "Export the diagrams of one document as SVG or PNG files",
		Example: `  docview diagrams /content/02_guide/01_install.md --format png
  docview --dir docs diagrams 02_guide/01_install`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			cfg := root.loadConfig(cmd.ErrOrStderr())
			src, err := openSource(cfg)
			if err != nil {
				return err
			}
			defer dumpMetrics()

			docPath, err := resolveDocPath(src, args[0], cfg)
			if err != nil {
				return err
			}
			files, err := export.ExportDiagrams(cmd.Context(), src, diagram.NewCompiler(), afero.NewOsFs(), docPath, export.DiagramOptions{
				OutDir:   outDir,
				Format:   f,
				Language: cfg.Diagram.Language,
				Scale:    scale,
				Build:    buildOptions(cfg),
			})
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s has no diagrams\n", docPath)
				return nil
			}

			failed := 0
			for _, file := range files {
				if file.Err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "line %d: %v\n", file.Line, file.Err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", file.Path)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d diagrams failed to compile", failed, len(files))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "diagrams", "output directory")
	cmd.Flags().StringVar(&format, "format", "svg", "file format: svg or png")
	cmd.Flags().Float64Var(&scale, "scale", 2, "pixel scale for png output")
	return cmd
}
