// Package hooks runs user commands around `docview export`. Hooks live in
// .docview/hooks.yaml next to the content, grouped by export phase:
//
//	hooks:
//	  pre-export:
//	    - name: lint
//	      command: markdownlint content
//	  post-export:
//	    - command: rsync -a "$DOCVIEW_EXPORT_DIR" host:/srv/docs
//	      timeout: 2m
package hooks

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/afero"
)

// ConfigFile is the hook file location relative to the content directory.
const ConfigFile = ".docview/hooks.yaml"

// DefaultTimeout bounds a hook that sets no timeout.
const DefaultTimeout = 30 * time.Second

// on_error values.
const (
	OnErrorFail     = "fail"
	OnErrorContinue = "continue"
)

// Phase is a point of an export at which hooks run.
type Phase string

const (
	// PreExport runs before any page is written. A failure aborts the export.
	PreExport Phase = "pre-export"
	// PostExport runs once the site is complete; page and diagram counts
	// are set in its environment.
	PostExport Phase = "post-export"
)

// Phases lists the export phases in run order.
var Phases = []Phase{PreExport, PostExport}

func (p Phase) defaultOnError() string {
	if p == PreExport {
		return OnErrorFail
	}
	return OnErrorContinue
}

// Hook is one command of a phase.
type Hook struct {
	Name    string `koanf:"name"`
	Command string `koanf:"command"`
	// Timeout is a duration ("90s", "2m") or a bare number of seconds.
	Timeout time.Duration     `koanf:"timeout"`
	Env     map[string]string `koanf:"env"`
	OnError string            `koanf:"on_error"`
}

// Config holds the hooks of each phase in file order, plus the problems
// found while normalizing them.
type Config struct {
	Hooks    map[Phase][]Hook
	Warnings []string
}

// Empty reports whether no phase has a hook.
func (c *Config) Empty() bool {
	if c == nil {
		return true
	}
	for _, hooks := range c.Hooks {
		if len(hooks) > 0 {
			return false
		}
	}
	return true
}

// Load reads ConfigFile under dir from fsys. A missing file yields an
// empty Config.
func Load(fsys afero.Fs, dir string) (*Config, error) {
	path := filepath.Join(dir, filepath.FromSlash(ConfigFile))
	cfg := &Config{Hooks: make(map[Phase][]Hook)}

	k := koanf.New(".")
	if err := k.Load(fileProvider{fs: fsys, path: path}, yaml.Parser()); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	for _, p := range Phases {
		var hooks []Hook
		err := k.UnmarshalWithConf("hooks."+string(p), &hooks, koanf.UnmarshalConf{
			DecoderConfig: &mapstructure.DecoderConfig{
				DecodeHook:       timeoutDecodeHook,
				WeaklyTypedInput: true,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %s: %w", path, p, err)
		}
		cfg.Hooks[p] = cfg.normalize(p, hooks)
	}
	return cfg, nil
}

// normalize drops hooks without a command and fills in names, timeouts and
// the phase's on_error default.
func (c *Config) normalize(p Phase, hooks []Hook) []Hook {
	var out []Hook
	for i, h := range hooks {
		if strings.TrimSpace(h.Command) == "" {
			c.Warnings = append(c.Warnings, fmt.Sprintf("%s hook %d has no command; skipping", p, i+1))
			continue
		}
		if h.Name == "" {
			h.Name = fmt.Sprintf("%s-%d", p, i+1)
		}
		if h.Timeout <= 0 {
			h.Timeout = DefaultTimeout
		}
		switch h.OnError {
		case OnErrorFail, OnErrorContinue:
		case "":
			h.OnError = p.defaultOnError()
		default:
			c.Warnings = append(c.Warnings, fmt.Sprintf("%s hook %q: unknown on_error %q, using %q", p, h.Name, h.OnError, p.defaultOnError()))
			h.OnError = p.defaultOnError()
		}
		out = append(out, h)
	}
	return out
}

var durationType = reflect.TypeOf(time.Duration(0))

// timeoutDecodeHook reads durations from strings ("90s") and from bare
// numbers, which count seconds.
func timeoutDecodeHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != durationType {
		return data, nil
	}
	switch v := data.(type) {
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case uint64:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d, nil
		}
		secs, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q", v)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	return data, nil
}

// fileProvider is a koanf provider for one file on an afero filesystem.
type fileProvider struct {
	fs   afero.Fs
	path string
}

func (p fileProvider) ReadBytes() ([]byte, error) { return afero.ReadFile(p.fs, p.path) }

func (p fileProvider) Read() (map[string]any, error) {
	return nil, errors.New("hooks: fileProvider does not support Read()")
}
