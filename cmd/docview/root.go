package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/docview/internal/datasource"
	"github.com/vanderheijden86/docview/pkg/config"
	"github.com/vanderheijden86/docview/pkg/debug"
	"github.com/vanderheijden86/docview/pkg/doctree"
	"github.com/vanderheijden86/docview/pkg/metrics"
	"github.com/vanderheijden86/docview/pkg/version"
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	dir        string
	configPath string
	noMouse    bool
	noWatch    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "docview",
		Short: "Terminal viewer for numbered Markdown documentation",
		Long: `docview shows a folder of Markdown documents as a collapsible tree next to
the selected document. Files and folders named like 01_intro.md are ordered by
their number prefix. Mermaid flowcharts are drawn inline and can be zoomed,
panned and opened fullscreen.

Without --dir the documentation bundled into the binary is shown.`,
		Version:       version.Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runViewer(cmd, opts)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.dir, "dir", "", "content directory (default: bundled documentation)")
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default: "+config.ConfigPath()+")")
	cmd.Flags().BoolVar(&opts.noMouse, "no-mouse", false, "disable mouse support")
	cmd.Flags().BoolVar(&opts.noWatch, "no-watch", false, "do not reload when files in --dir change")

	cmd.AddCommand(newTreeCmd(opts), newExportCmd(opts), newDiagramsCmd(opts), newVersionCmd())
	return cmd
}

// loadConfig reads the config file and applies flag overrides. Config errors
// are not fatal: the defaults are used and a warning goes to w.
func (o *rootOptions) loadConfig(w io.Writer) config.Config {
	path := o.configPath
	if path == "" {
		path = config.ConfigPath()
	}
	cfg, err := config.LoadFrom(path)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(w, "Warning: %v (using defaults)\n", err)
		cfg = config.DefaultConfig()
	}
	if o.dir != "" {
		cfg.Content.Dir = o.dir
	}
	if cfg.Content.Pattern == "" {
		cfg.Content.Pattern = "**/*" + cfg.Content.Extension
	}
	debug.Dump("config", cfg)
	return cfg
}

func openSource(cfg config.Config) (*datasource.FSSource, error) {
	return datasource.Open(cfg.Content.Dir, datasource.DiscoveryOptions{
		Root:    cfg.Content.Root,
		Pattern: cfg.Content.Pattern,
		Verbose: debug.Enabled(),
		Logger:  func(msg string) { debug.Log("%s", msg) },
	})
}

func buildOptions(cfg config.Config) doctree.BuildOptions {
	return doctree.BuildOptions{Root: cfg.Content.Root, Ext: cfg.Content.Extension}
}

// resolveDocPath accepts a logical path ("/content/01_intro.md") or a path
// relative to the content directory, with or without the extension.
func resolveDocPath(src *datasource.FSSource, arg string, cfg config.Config) (string, error) {
	for _, p := range src.Paths() {
		if p == arg {
			return p, nil
		}
	}
	rel := strings.TrimPrefix(arg, "./")
	if p, ok := src.FileFor(rel); ok {
		return p, nil
	}
	if p, ok := src.FileFor(rel + cfg.Content.Extension); ok {
		return p, nil
	}
	return "", fmt.Errorf("%s: %w", arg, datasource.ErrNotFound)
}

// dumpMetrics writes the collected timings to the debug log.
func dumpMetrics() {
	stats := metrics.AllTimingStats()
	if len(stats) > 0 {
		debug.Section("metrics")
	}
	for _, s := range stats {
		debug.Log("%-16s count=%d total=%.1fms avg=%.2fms max=%.2fms", s.Name, s.Count, s.TotalMs, s.AvgMs, s.MaxMs)
	}
	debug.Sync()
}
