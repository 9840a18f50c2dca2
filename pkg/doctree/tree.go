package doctree

import (
	"sort"
	"strings"
)

// NodeKind distinguishes folders from documents.
type NodeKind int

const (
	KindFolder NodeKind = iota
	KindDocument
)

func (k NodeKind) String() string {
	if k == KindFolder {
		return "folder"
	}
	return "document"
}

// Node is one entry of the table of contents. Folder nodes own their
// children; there are no parent back-references.
type Node struct {
	Kind NodeKind

	// Folder fields
	Name     string  // display name
	Key      string  // slash-joined chain of raw segments, e.g. "02_setup/01_linux"
	Children []*Node // sorted by (SortKey, SortLabel)

	// Document fields
	Path  string // full original document path, the loader lookup key
	Title string

	SortKey   float64
	SortLabel string
}

// IsFolder reports whether n is a folder node.
func (n *Node) IsFolder() bool { return n != nil && n.Kind == KindFolder }

// ID returns the identity of the node within its parent: the folder key or the document path.
func (n *Node) ID() string {
	if n.IsFolder() {
		return n.Key
	}
	return n.Path
}

// Label is the text shown for the node in a listing.
func (n *Node) Label() string {
	if n.IsFolder() {
		return n.Name
	}
	return n.Title
}

// BuildOptions control how document paths are mapped onto segments.
type BuildOptions struct {
	Root string // prefix stripped before splitting, e.g. "/content/"
	Ext  string // suffix stripped before splitting, e.g. ".md"
}

// DefaultBuildOptions matches the paths produced by datasource discovery.
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{Root: "/content/", Ext: ".md"}
}

// Build turns a flat list of document paths into a sorted tree.
//
// Every non-final segment becomes a folder, found or created among the current
// siblings by its cumulative key; the final segment becomes a document holding
// the full original path. Paths with no segments are dropped. Duplicate paths
// produce separate document nodes.
func Build(paths []string, opts BuildOptions) []*Node {
	var roots []*Node
	for _, full := range paths {
		rel := strings.TrimPrefix(full, opts.Root)
		if opts.Ext != "" {
			rel = strings.TrimSuffix(rel, opts.Ext)
		}
		segments := splitSegments(rel)
		if len(segments) == 0 {
			continue
		}
		roots = addAt(roots, full, segments, "")
	}
	sortNodes(roots)
	return roots
}

func splitSegments(rel string) []string {
	parts := strings.Split(rel, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func addAt(level []*Node, fullPath string, segments []string, keyPrefix string) []*Node {
	seg := segments[0]
	c := Classify(seg)

	if len(segments) == 1 {
		return append(level, &Node{
			Kind:      KindDocument,
			Path:      fullPath,
			Title:     Title(c.Label),
			SortKey:   c.SortKey,
			SortLabel: c.Label,
		})
	}

	key := seg
	if keyPrefix != "" {
		key = keyPrefix + "/" + seg
	}

	var folder *Node
	for _, n := range level {
		if n.Kind == KindFolder && n.Key == key {
			folder = n
			break
		}
	}
	if folder == nil {
		folder = &Node{
			Kind:      KindFolder,
			Name:      Title(c.Label),
			Key:       key,
			SortKey:   c.SortKey,
			SortLabel: c.Label,
		}
		level = append(level, folder)
	}
	folder.Children = addAt(folder.Children, fullPath, segments[1:], key)
	return level
}

// sortNodes orders siblings by numeric key, then label, recursing into folders.
// Entries with equal key and label ("1_a" vs "01_a") fall back to their
// identity so the result does not depend on discovery order; exact
// duplicates keep discovery order.
func sortNodes(nodes []*Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if a.SortKey != b.SortKey {
			return a.SortKey < b.SortKey
		}
		if a.SortLabel != b.SortLabel {
			return a.SortLabel < b.SortLabel
		}
		return a.ID() < b.ID()
	})
	for _, n := range nodes {
		if n.Kind == KindFolder {
			sortNodes(n.Children)
		}
	}
}

// Flatten returns document paths in pre-order: a folder's documents appear
// where the folder sits among its siblings.
func Flatten(nodes []*Node) []string {
	var out []string
	Walk(nodes, func(n *Node, _ int) bool {
		if n.Kind == KindDocument {
			out = append(out, n.Path)
		}
		return true
	})
	return out
}

// FolderKeys returns every folder key in pre-order.
func FolderKeys(nodes []*Node) []string {
	var out []string
	Walk(nodes, func(n *Node, _ int) bool {
		if n.Kind == KindFolder {
			out = append(out, n.Key)
		}
		return true
	})
	return out
}

// Walk visits nodes in pre-order. Returning false from fn skips the node's children.
func Walk(nodes []*Node, fn func(n *Node, depth int) bool) {
	var walk func(level []*Node, depth int)
	walk = func(level []*Node, depth int) {
		for _, n := range level {
			if fn(n, depth) && n.Kind == KindFolder {
				walk(n.Children, depth+1)
			}
		}
	}
	walk(nodes, 0)
}

// Find returns the document node with the given path, or nil.
func Find(nodes []*Node, path string) *Node {
	var found *Node
	Walk(nodes, func(n *Node, _ int) bool {
		if found != nil {
			return false
		}
		if n.Kind == KindDocument && n.Path == path {
			found = n
		}
		return true
	})
	return found
}
