package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vanderheijden86/docview/pkg/diagram"
	"github.com/vanderheijden86/docview/pkg/export"
	"github.com/vanderheijden86/docview/pkg/hooks"
)

func newExportCmd(root *rootOptions) *cobra.Command {
	var (
		outDir      string
		title       string
		yes         bool
		noHooks     bool
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the documentation as a static HTML site",
		Long: `Renders every document to HTML with its diagrams compiled to inline SVG,
plus an index page, a stylesheet and a nav.json manifest.

Commands listed in .docview/hooks.yaml (in --dir, or the working directory)
run before and after the export.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := root.loadConfig(cmd.ErrOrStderr())
			if outDir == "" {
				outDir = cfg.Export.OutDir
			}
			if concurrency <= 0 {
				concurrency = cfg.Export.Concurrency
			}

			if !yes && dirHasFiles(outDir) {
				ok, err := confirmOverwrite(outDir)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Export cancelled")
					return nil
				}
			}

			src, err := openSource(cfg)
			if err != nil {
				return err
			}
			defer dumpMetrics()

			hookCtx := hooks.ExportContext{OutDir: outDir, Format: "html", Timestamp: time.Now()}
			var executor *hooks.Executor
			if !noHooks {
				projectDir, err := hookDir(cfg.Content.Dir, os.Getwd)
				if err != nil {
					return err
				}
				if executor, err = hooks.RunHooks(afero.NewOsFs(), projectDir, hookCtx); err != nil {
					return err
				}
			}
			if executor != nil {
				if err := executor.RunPreExport(); err != nil {
					fmt.Fprint(cmd.ErrOrStderr(), executor.Summary())
					return err
				}
			}

			m, err := export.ExportSite(cmd.Context(), src, diagram.NewCompiler(), afero.NewOsFs(), export.SiteOptions{
				OutDir:      outDir,
				Title:       title,
				Language:    cfg.Diagram.Language,
				Concurrency: concurrency,
				Build:       buildOptions(cfg),
			})
			if err != nil {
				return err
			}

			diagrams, failed := 0, 0
			for _, p := range m.Pages {
				diagrams += p.Diagrams
				failed += p.Errors
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d pages with %d diagrams to %s\n", len(m.Pages), diagrams, outDir)
			if failed > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %d diagrams failed to compile and were exported as errors\n", failed)
			}

			if executor != nil {
				hookCtx.PageCount, hookCtx.DiagramCount = len(m.Pages), diagrams
				executor.SetContext(hookCtx)
				err := executor.RunPostExport()
				fmt.Fprint(cmd.ErrOrStderr(), executor.Summary())
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "output directory (default: export.out_dir from config)")
	cmd.Flags().StringVar(&title, "title", "", "site title (default: Documentation)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "overwrite a non-empty output directory without asking")
	cmd.Flags().BoolVar(&noHooks, "no-hooks", false, "skip export hooks")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "pages rendered in parallel (default: export.concurrency from config)")
	return cmd
}

// hookDir is where .docview/hooks.yaml is looked up: the content directory,
// or the working directory for the bundled docs.
func hookDir(contentDir string, getwd func() (string, error)) (string, error) {
	if contentDir != "" {
		return contentDir, nil
	}
	wd, err := getwd()
	if err != nil {
		return "", fmt.Errorf("resolving hooks directory: %w", err)
	}
	return wd, nil
}

func dirHasFiles(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}

// confirmOverwrite asks before writing into a non-empty directory. Without a
// terminal the form falls back to huh's accessible line prompt.
func confirmOverwrite(dir string) (bool, error) {
	overwrite := false
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("%s is not empty. Overwrite?", dir)).
				Description("Existing pages with the same names are replaced").
				Value(&overwrite).
				Affirmative("Yes, overwrite").
				Negative("No"),
		),
	).WithTheme(huh.ThemeDracula())
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		form = form.WithAccessible(true)
	}
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, fmt.Errorf("confirming overwrite: %w", err)
	}
	return overwrite, nil
}
