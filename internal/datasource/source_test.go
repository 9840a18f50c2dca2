package datasource

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memFS(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for name, body := range files {
		require.NoError(t, afero.WriteFile(fsys, name, []byte(body), 0o644))
	}
	return fsys
}

func TestFSSourceDiscovery(t *testing.T) {
	fsys := memFS(t, map[string]string{
		"01_intro.md":      "# Intro",
		"02_setup/a.md":    "# A",
		"02_setup/b.md":    "# B",
		"guide.md":         "# Guide",
		"notes.txt":        "ignored",
		"02_setup/img.png": "ignored",
	})

	src, err := NewFSSource(fsys, "mem", DefaultDiscoveryOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/content/01_intro.md",
		"/content/02_setup/a.md",
		"/content/02_setup/b.md",
		"/content/guide.md",
	}, src.Paths())

	text, err := src.Load(context.Background(), "/content/02_setup/b.md")
	require.NoError(t, err)
	assert.Equal(t, "# B", text)
}

func TestFSSourceLoadErrors(t *testing.T) {
	src, err := NewFSSource(memFS(t, map[string]string{"a.md": "x"}), "mem", DefaultDiscoveryOptions())
	require.NoError(t, err)

	_, err = src.Load(context.Background(), "/content/missing.md")
	assert.ErrorIs(t, err, ErrNotFound)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Load(ctx, "/content/a.md")
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestFSSourceEmptyDocument(t *testing.T) {
	src, err := NewFSSource(memFS(t, map[string]string{"empty.md": ""}), "mem", DefaultDiscoveryOptions())
	require.NoError(t, err)

	text, err := src.Load(context.Background(), "/content/empty.md")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestFSSourceRefreshDiff(t *testing.T) {
	fsys := memFS(t, map[string]string{"a.md": "one", "b.md": "two"})
	src, err := NewFSSource(fsys, "mem", DefaultDiscoveryOptions())
	require.NoError(t, err)

	require.NoError(t, afero.WriteFile(fsys, "c.md", []byte("three"), 0o644))
	require.NoError(t, fsys.Remove("b.md"))
	require.NoError(t, afero.WriteFile(fsys, "a.md", []byte("one, edited"), 0o644))

	diff, err := src.Refresh()
	require.NoError(t, err)
	assert.Equal(t, []string{"/content/c.md"}, diff.Added)
	assert.Equal(t, []string{"/content/b.md"}, diff.Removed)
	assert.Equal(t, []string{"/content/a.md"}, diff.Changed)
	assert.True(t, diff.StructureChanged())
	assert.True(t, diff.Touches("/content/a.md"))
	assert.Equal(t, "1 added, 1 removed, 1 changed", diff.Summary())

	_, err = src.Load(context.Background(), "/content/b.md")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDiffEntriesNoChanges(t *testing.T) {
	now := time.Now()
	snap := map[string]Entry{"/content/a.md": {Path: "/content/a.md", Size: 1, ModTime: now}}
	d := DiffEntries(snap, snap)
	assert.False(t, d.HasChanges())
	assert.Equal(t, "no changes", d.Summary())
}

func TestCustomRootAndPattern(t *testing.T) {
	fsys := memFS(t, map[string]string{"x/a.markdown": "a", "x/b.md": "b"})
	src, err := NewFSSource(fsys, "mem", DiscoveryOptions{Root: "/docs/", Pattern: "**/*.markdown"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/docs/x/a.markdown"}, src.Paths())

	_, err = NewFSSource(fsys, "mem", DiscoveryOptions{Pattern: "[unclosed"})
	assert.Error(t, err)
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "01_a"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "01_a", "x.md"), []byte("# X"), 0o644))

	src, err := Dir(dir, DefaultDiscoveryOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"/content/01_a/x.md"}, src.Paths())

	p, ok := src.FileFor("01_a/x.md")
	assert.True(t, ok)
	assert.Equal(t, "/content/01_a/x.md", p)

	_, err = Dir(filepath.Join(dir, "nope"), DefaultDiscoveryOptions())
	assert.Error(t, err)
}

func TestBundledSource(t *testing.T) {
	src, err := Bundled(DefaultDiscoveryOptions())
	require.NoError(t, err)
	require.NotEmpty(t, src.Paths())
	assert.Contains(t, src.Paths(), "/content/01_introduction.md")

	text, err := src.Load(context.Background(), "/content/01_introduction.md")
	require.NoError(t, err)
	assert.Contains(t, text, "# Introduction")
}
