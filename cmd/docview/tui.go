package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vanderheijden86/docview/pkg/debug"
	"github.com/vanderheijden86/docview/pkg/diagram"
	"github.com/vanderheijden86/docview/pkg/ui"
	"github.com/vanderheijden86/docview/pkg/watcher"
)

func runViewer(cmd *cobra.Command, opts *rootOptions) error {
	cfg := opts.loadConfig(cmd.ErrOrStderr())
	src, err := openSource(cfg)
	if err != nil {
		return err
	}
	defer dumpMetrics()

	// Not a terminal: print the table of contents instead.
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return printTree(cmd.OutOrStdout(), src.Name(), src.Paths(), buildOptions(cfg))
	}

	uiOpts := ui.Options{
		Source:        src,
		Compiler:      diagram.NewCompiler(),
		Build:         buildOptions(cfg),
		Language:      cfg.Diagram.Language,
		DiagramHeight: cfg.Diagram.Height,
		SidebarWidth:  cfg.UI.SidebarWidth,
		GlamourStyle:  cfg.UI.GlamourStyle,
	}
	if cfg.Content.Dir != "" && cfg.UI.Watch && !opts.noWatch {
		w, err := watcher.NewWatcher(cfg.Content.Dir,
			watcher.WithExtension(cfg.Content.Extension),
			watcher.WithOnError(func(err error) { debug.Log("watcher: %v", err) }),
		)
		if err == nil {
			err = w.Start()
		}
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: live reload disabled: %v\n", err)
		} else {
			defer w.Stop()
			uiOpts.Watcher = w
			uiOpts.Refresher = src
		}
	}

	if err := runTUIProgram(ui.NewModel(uiOpts), cfg.UI.Mouse && !opts.noMouse); err != nil {
		return fmt.Errorf("running viewer: %w", err)
	}
	return nil
}

func runTUIProgram(m ui.Model, mouse bool) error {
	progOpts := []tea.ProgramOption{
		tea.WithAltScreen(),
		tea.WithReportFocus(),
		tea.WithoutSignalHandler(),
	}
	if mouse {
		progOpts = append(progOpts, tea.WithMouseAllMotion())
	}
	p := tea.NewProgram(m, progOpts...)

	runDone := make(chan struct{})
	defer close(runDone)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	// Optional auto-quit for automated runs: set DOCVIEW_TUI_AUTOCLOSE_MS.
	if v := os.Getenv("DOCVIEW_TUI_AUTOCLOSE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			go func() {
				timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
				defer timer.Stop()

				select {
				case <-runDone:
					return
				case <-timer.C:
				}

				p.Quit()

				select {
				case <-runDone:
					return
				case <-time.After(2 * time.Second):
				}

				p.Kill()
			}()
		}
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted) {
		return nil
	}
	return err
}
