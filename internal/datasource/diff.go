package datasource

import (
	"fmt"
	"sort"
	"strings"
)

// SnapshotDiff lists the document paths that differ between two discovery scans.
type SnapshotDiff struct {
	Added   []string
	Removed []string
	// Changed holds paths present in both scans whose size or mtime moved.
	Changed []string
}

// HasChanges reports whether the scans differ at all.
func (d SnapshotDiff) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0 || len(d.Changed) > 0
}

// StructureChanged reports whether the set of paths changed, which means the
// table of contents has to be rebuilt.
func (d SnapshotDiff) StructureChanged() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0
}

// Touches reports whether path was added, removed or changed.
func (d SnapshotDiff) Touches(path string) bool {
	for _, list := range [][]string{d.Added, d.Removed, d.Changed} {
		for _, p := range list {
			if p == path {
				return true
			}
		}
	}
	return false
}

// Summary returns a short human-readable description, e.g. "1 added, 2 changed".
func (d SnapshotDiff) Summary() string {
	if !d.HasChanges() {
		return "no changes"
	}
	var parts []string
	if n := len(d.Added); n > 0 {
		parts = append(parts, fmt.Sprintf("%d added", n))
	}
	if n := len(d.Removed); n > 0 {
		parts = append(parts, fmt.Sprintf("%d removed", n))
	}
	if n := len(d.Changed); n > 0 {
		parts = append(parts, fmt.Sprintf("%d changed", n))
	}
	return strings.Join(parts, ", ")
}

// DiffEntries compares two scans keyed by logical path. A nil previous scan
// reports everything as added.
func DiffEntries(prev, next map[string]Entry) SnapshotDiff {
	var d SnapshotDiff
	for p, n := range next {
		o, ok := prev[p]
		switch {
		case !ok:
			d.Added = append(d.Added, p)
		case o.Size != n.Size || !o.ModTime.Equal(n.ModTime):
			d.Changed = append(d.Changed, p)
		}
	}
	for p := range prev {
		if _, ok := next[p]; !ok {
			d.Removed = append(d.Removed, p)
		}
	}
	sort.Strings(d.Added)
	sort.Strings(d.Removed)
	sort.Strings(d.Changed)
	return d
}
