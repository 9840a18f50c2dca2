package datasource

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/vanderheijden86/docview/internal/bundled"
)

// Dir discovers documents in a directory on disk. The directory is opened
// read-only; the viewer never writes content.
func Dir(dir string, opts DiscoveryOptions) (*FSSource, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("content directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("content directory %s is not a directory", abs)
	}
	fsys := afero.NewReadOnlyFs(afero.NewBasePathFs(afero.NewOsFs(), abs))
	return NewFSSource(fsys, abs, opts)
}

// Bundled discovers the documents compiled into the binary.
func Bundled(opts DiscoveryOptions) (*FSSource, error) {
	return NewFSSource(afero.FromIOFS{FS: bundled.FS()}, "bundled", opts)
}

// Open picks the content directory when one is given and the bundled docs
// otherwise.
func Open(dir string, opts DiscoveryOptions) (*FSSource, error) {
	if dir == "" {
		return Bundled(opts)
	}
	return Dir(dir, opts)
}
