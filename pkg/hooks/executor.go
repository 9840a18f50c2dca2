package hooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/vanderheijden86/docview/pkg/debug"
)

// maxOutput caps the hook output kept in a HookResult.
const maxOutput = 4096

// ExportContext is passed to hooks as environment variables. Counts are
// zero for pre-export hooks.
type ExportContext struct {
	OutDir       string    // DOCVIEW_EXPORT_DIR
	Format       string    // DOCVIEW_EXPORT_FORMAT: html, svg or png
	PageCount    int       // DOCVIEW_PAGE_COUNT
	DiagramCount int       // DOCVIEW_DIAGRAM_COUNT
	Timestamp    time.Time // DOCVIEW_TIMESTAMP, RFC3339
}

// ToEnv renders the context as KEY=value pairs.
func (c ExportContext) ToEnv() []string {
	return []string{
		"DOCVIEW_EXPORT_DIR=" + c.OutDir,
		"DOCVIEW_EXPORT_FORMAT=" + c.Format,
		"DOCVIEW_PAGE_COUNT=" + strconv.Itoa(c.PageCount),
		"DOCVIEW_DIAGRAM_COUNT=" + strconv.Itoa(c.DiagramCount),
		"DOCVIEW_TIMESTAMP=" + c.Timestamp.Format(time.RFC3339),
	}
}

// HookResult records one hook run.
type HookResult struct {
	Hook     Hook
	Phase    Phase
	Success  bool
	Stdout   string
	Stderr   string
	Error    error
	Duration time.Duration
}

// Executor runs configured hooks with the export context in their environment.
type Executor struct {
	config  *Config
	context ExportContext
	results []HookResult
}

// NewExecutor creates an executor for cfg. A nil cfg runs nothing.
func NewExecutor(cfg *Config, ctx ExportContext) *Executor {
	if cfg == nil {
		cfg = &Config{}
	}
	return &Executor{config: cfg, context: ctx}
}

// SetContext replaces the export context, e.g. to add counts before the
// post-export phase.
func (e *Executor) SetContext(ctx ExportContext) { e.context = ctx }

// RunPreExport runs the pre-export hooks. The first failure of a hook with
// on_error=fail stops the phase and is returned.
func (e *Executor) RunPreExport() error { return e.runPhase(PreExport) }

// RunPostExport runs every post-export hook. Failures of hooks with
// on_error=fail are joined into the returned error.
func (e *Executor) RunPostExport() error { return e.runPhase(PostExport) }

func (e *Executor) runPhase(p Phase) error {
	var errs []error
	for _, h := range e.config.Hooks[p] {
		r := e.run(h, p)
		if r.Success || h.OnError == OnErrorContinue {
			continue
		}
		err := fmt.Errorf("%s hook %q failed: %w", p, h.Name, r.Error)
		if p == PreExport {
			return err
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (e *Executor) run(h Hook, phase Phase) HookResult {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", h.Command)
	cmd.Env = append(os.Environ(), e.context.ToEnv()...)
	for k, v := range h.Env {
		cmd.Env = append(cmd.Env, k+"="+os.ExpandEnv(v))
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()
	r := HookResult{
		Hook:     h,
		Phase:    phase,
		Stdout:   truncate(strings.TrimSpace(stdout.String()), maxOutput),
		Stderr:   truncate(strings.TrimSpace(stderr.String()), maxOutput),
		Duration: time.Since(start),
	}
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		r.Error = fmt.Errorf("timed out after %v", timeout)
	case err != nil:
		r.Error = err
	default:
		r.Success = true
	}
	debug.Log("hook %s/%s: success=%v in %v", phase, h.Name, r.Success, r.Duration)
	e.results = append(e.results, r)
	return r
}

// Results returns every hook run so far, in order.
func (e *Executor) Results() []HookResult { return e.results }

// Summary describes the runs in one line per hook plus a count line.
func (e *Executor) Summary() string {
	if len(e.results) == 0 {
		return ""
	}
	var sb strings.Builder
	ok, failed := 0, 0
	for _, r := range e.results {
		if r.Success {
			ok++
			fmt.Fprintf(&sb, "  ✓ %s (%s, %v)\n", r.Hook.Name, r.Phase, r.Duration.Round(time.Millisecond))
			continue
		}
		failed++
		fmt.Fprintf(&sb, "  ✗ %s (%s): %v\n", r.Hook.Name, r.Phase, r.Error)
		if r.Stderr != "" {
			fmt.Fprintf(&sb, "    %s\n", truncate(r.Stderr, 200))
		}
	}
	fmt.Fprintf(&sb, "Hooks: %d succeeded, %d failed\n", ok, failed)
	return sb.String()
}

// RunHooks loads the hook file under projectDir on fsys and returns an
// executor, or nil when no hooks are configured.
func RunHooks(fsys afero.Fs, projectDir string, ctx ExportContext) (*Executor, error) {
	cfg, err := Load(fsys, projectDir)
	if err != nil {
		return nil, err
	}
	for _, w := range cfg.Warnings {
		debug.Log("hooks: %s", w)
	}
	if cfg.Empty() {
		return nil, nil
	}
	return NewExecutor(cfg, ctx), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
