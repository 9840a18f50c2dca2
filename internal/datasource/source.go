// Package datasource discovers Markdown documents and loads their text.
//
// Documents are addressed by logical paths such as "/content/02_setup/a.md":
// the discovery root prefix followed by the file's path relative to the
// content directory. Discovery runs on an afero filesystem so the same code
// serves a directory on disk, the docs compiled into the binary, and
// in-memory fixtures in tests.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"github.com/vanderheijden86/docview/pkg/debug"
	"github.com/vanderheijden86/docview/pkg/metrics"
)

// ErrNotFound is returned by Load for paths discovery did not produce.
var ErrNotFound = errors.New("document not found")

// Source enumerates document paths and loads their text.
type Source interface {
	// Paths returns every known document path, in discovery order.
	Paths() []string
	// Load returns the raw text of one document.
	Load(ctx context.Context, path string) (string, error)
}

// Entry describes one discovered document.
type Entry struct {
	// Path is the logical document path, the tree and loader key.
	Path string `json:"path"`
	// File is the slash-separated path inside the source filesystem.
	File string `json:"file"`
	// Size is the file size in bytes.
	Size int64 `json:"size"`
	// ModTime is the last modification time reported by the filesystem.
	ModTime time.Time `json:"mod_time"`
}

// String returns a human-readable description of the entry.
func (e Entry) String() string {
	return fmt.Sprintf("%s (%s, %d bytes, mod=%s)", e.Path, e.File, e.Size, e.ModTime.Format(time.RFC3339))
}

// DiscoveryOptions configures document discovery.
type DiscoveryOptions struct {
	// Root is the logical prefix put in front of every relative file path.
	Root string
	// Pattern selects document files, doublestar syntax.
	Pattern string
	// Verbose enables detailed logging during discovery.
	Verbose bool
	// Logger receives log messages when Verbose is true.
	Logger func(msg string)
}

// DefaultDiscoveryOptions discovers every .md file under /content/.
func DefaultDiscoveryOptions() DiscoveryOptions {
	return DiscoveryOptions{Root: "/content/", Pattern: "**/*.md"}
}

// FSSource is a Source backed by an afero filesystem. Discovery is explicit:
// the set of paths only changes when Refresh is called.
type FSSource struct {
	fs   afero.Fs
	opts DiscoveryOptions
	name string

	mu      sync.RWMutex
	entries map[string]Entry
	order   []string
}

// NewFSSource discovers documents in fsys. The name is used in messages only.
func NewFSSource(fsys afero.Fs, name string, opts DiscoveryOptions) (*FSSource, error) {
	def := DefaultDiscoveryOptions()
	if opts.Root == "" {
		opts.Root = def.Root
	}
	if opts.Pattern == "" {
		opts.Pattern = def.Pattern
	}
	if opts.Logger == nil {
		opts.Logger = func(string) {}
	}
	if !doublestar.ValidatePattern(opts.Pattern) {
		return nil, fmt.Errorf("invalid discovery pattern %q", opts.Pattern)
	}
	s := &FSSource{fs: fsys, opts: opts, name: name}
	if _, err := s.Refresh(); err != nil {
		return nil, err
	}
	return s, nil
}

// Name identifies the source, e.g. the content directory.
func (s *FSSource) Name() string { return s.name }

// Fs exposes the underlying filesystem, used by the watcher to resolve paths.
func (s *FSSource) Fs() afero.Fs { return s.fs }

// Refresh rescans the filesystem and reports what changed since the last scan.
func (s *FSSource) Refresh() (SnapshotDiff, error) {
	files, err := doublestar.Glob(afero.NewIOFS(s.fs), s.opts.Pattern, doublestar.WithFilesOnly())
	if err != nil {
		return SnapshotDiff{}, fmt.Errorf("discovering documents in %s: %w", s.name, err)
	}
	sort.Strings(files)

	entries := make(map[string]Entry, len(files))
	order := make([]string, 0, len(files))
	for _, f := range files {
		info, err := s.fs.Stat(f)
		if err != nil {
			if s.opts.Verbose {
				s.opts.Logger(fmt.Sprintf("skipping %s: %v", f, err))
			}
			continue
		}
		p := s.opts.Root + strings.TrimPrefix(f, "/")
		entries[p] = Entry{Path: p, File: f, Size: info.Size(), ModTime: info.ModTime()}
		order = append(order, p)
	}

	s.mu.Lock()
	diff := DiffEntries(s.entries, entries)
	s.entries = entries
	s.order = order
	s.mu.Unlock()

	debug.Log("datasource %s: %d documents (%s)", s.name, len(order), diff.Summary())
	return diff, nil
}

// Paths returns the logical paths found by the last Refresh.
func (s *FSSource) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Entries returns metadata for every discovered document, in path order.
func (s *FSSource) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.order))
	for _, p := range s.order {
		out = append(out, s.entries[p])
	}
	return out
}

// Load reads one document. Paths that were not discovered return ErrNotFound.
func (s *FSSource) Load(ctx context.Context, path string) (string, error) {
	defer metrics.Timer(metrics.DocumentLoad)()
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.RLock()
	e, ok := s.entries[path]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%s: %w", path, ErrNotFound)
	}

	data, err := afero.ReadFile(s.fs, e.File)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

// FileFor maps a filesystem path relative to the source root back to its
// logical document path. ok is false when the file was not discovered.
func (s *FSSource) FileFor(rel string) (path string, ok bool) {
	p := s.opts.Root + strings.TrimPrefix(rel, "/")
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok = s.entries[p]
	return p, ok
}
