// Package config handles loading and saving docview configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config: ~/.config/docview/config.yaml
//
// Values are layered: DefaultConfig, then the YAML file, then DOCVIEW_*
// environment variables (DOCVIEW_UI_SIDEBAR_WIDTH sets ui.sidebar_width).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

const envPrefix = "DOCVIEW_"

// ContentConfig says where documents come from.
type ContentConfig struct {
	Dir       string `yaml:"dir,omitempty" koanf:"dir"`         // empty = bundled docs
	Root      string `yaml:"root" koanf:"root"`                 // logical path prefix
	Extension string `yaml:"extension" koanf:"extension"`       // document file extension
	Pattern   string `yaml:"pattern,omitempty" koanf:"pattern"` // discovery glob
}

// DiagramConfig controls diagram blocks.
type DiagramConfig struct {
	Language string `yaml:"language" koanf:"language"` // fenced code info string that marks a diagram
	Height   int    `yaml:"height" koanf:"height"`     // rows given to an inline diagram viewport
}

// UIConfig holds UI preference settings.
type UIConfig struct {
	SidebarWidth int    `yaml:"sidebar_width" koanf:"sidebar_width"`
	GlamourStyle string `yaml:"glamour_style" koanf:"glamour_style"` // auto, dark, light, notty
	Mouse        bool   `yaml:"mouse" koanf:"mouse"`
	Watch        bool   `yaml:"watch" koanf:"watch"`
}

// ExportConfig controls `docview export`.
type ExportConfig struct {
	OutDir      string `yaml:"out_dir" koanf:"out_dir"`
	Concurrency int    `yaml:"concurrency" koanf:"concurrency"`
}

// Config is the top-level configuration for docview.
type Config struct {
	Content ContentConfig `yaml:"content" koanf:"content"`
	Diagram DiagramConfig `yaml:"diagram" koanf:"diagram"`
	UI      UIConfig      `yaml:"ui" koanf:"ui"`
	Export  ExportConfig  `yaml:"export" koanf:"export"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Content: ContentConfig{
			Root:      "/content/",
			Extension: ".md",
			Pattern:   "**/*.md",
		},
		Diagram: DiagramConfig{
			Language: "mermaid",
			Height:   18,
		},
		UI: UIConfig{
			SidebarWidth: 32,
			GlamourStyle: "auto",
			Mouse:        true,
			Watch:        true,
		},
		Export: ExportConfig{
			OutDir:      "site",
			Concurrency: 4,
		},
	}
}

// ConfigDir returns the XDG config directory for docview.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "docview")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "docview")
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config from the XDG config directory.
// Returns DefaultConfig (plus env overrides) if the file doesn't exist.
func Load() (Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads config from a specific path, then overlays DOCVIEW_*
// environment variables. A missing file is not an error.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return cfg, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return cfg, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parsing config: %w", err)
	}

	cfg.Content.Dir = expandHome(cfg.Content.Dir)
	cfg.Export.OutDir = expandHome(cfg.Export.OutDir)
	return cfg, nil
}

// envKey maps DOCVIEW_UI_SIDEBAR_WIDTH to ui.sidebar_width: the first
// underscore separates the section from the field.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.Replace(s, "_", ".", 1)
}

// Validate checks that the configuration contains usable values.
func (c Config) Validate() error {
	if c.Content.Extension == "" || !strings.HasPrefix(c.Content.Extension, ".") {
		return fmt.Errorf("content.extension %q must start with '.'", c.Content.Extension)
	}
	if !strings.HasPrefix(c.Content.Root, "/") || !strings.HasSuffix(c.Content.Root, "/") {
		return fmt.Errorf("content.root %q must start and end with '/'", c.Content.Root)
	}
	if c.Diagram.Language == "" {
		return fmt.Errorf("diagram.language is required")
	}
	if c.Diagram.Height < 6 {
		return fmt.Errorf("diagram.height must be at least 6, got %d", c.Diagram.Height)
	}
	if c.UI.SidebarWidth < 12 {
		return fmt.Errorf("ui.sidebar_width must be at least 12, got %d", c.UI.SidebarWidth)
	}
	switch c.UI.GlamourStyle {
	case "auto", "dark", "light", "notty", "dracula", "tokyo-night", "pink", "ascii":
	default:
		return fmt.Errorf("invalid ui.glamour_style %q", c.UI.GlamourStyle)
	}
	if c.Export.Concurrency < 1 {
		return fmt.Errorf("export.concurrency must be positive")
	}
	return nil
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
