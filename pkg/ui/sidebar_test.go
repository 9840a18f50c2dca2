package ui

import (
	"reflect"
	"strings"
	"testing"

	"github.com/vanderheijden86/docview/pkg/doctree"
)

var samplePaths = []string{
	"/content/03_reference/01_api/01_http.md",
	"/content/01_intro.md",
	"/content/02_guide/02_usage.md",
	"/content/02_guide/01_install.md",
}

func newTestSidebar(t *testing.T) *Sidebar {
	t.Helper()
	s := NewSidebar(TestTheme())
	s.SetSize(30, 20)
	s.SetTree(doctree.Build(samplePaths, doctree.DefaultBuildOptions()))
	return s
}

func rowIDs(s *Sidebar) []string {
	var ids []string
	for _, r := range s.rows {
		ids = append(ids, r.node.ID())
	}
	return ids
}

func TestSidebarStartsCollapsed(t *testing.T) {
	s := newTestSidebar(t)
	want := []string{"/content/01_intro.md", "02_guide", "03_reference"}
	if got := rowIDs(s); !reflect.DeepEqual(got, want) {
		t.Errorf("rows = %v, want %v", got, want)
	}
	if len(s.ExpandedKeys()) != 0 {
		t.Errorf("expanded = %v, want none", s.ExpandedKeys())
	}
}

func TestSidebarToggleTwiceRestores(t *testing.T) {
	s := newTestSidebar(t)
	s.Toggle("02_guide")
	if !s.IsExpanded("02_guide") || s.RowCount() != 5 {
		t.Fatalf("after toggle: expanded=%v rows=%d", s.IsExpanded("02_guide"), s.RowCount())
	}
	s.Toggle("02_guide")
	if s.IsExpanded("02_guide") || s.RowCount() != 3 {
		t.Errorf("after second toggle: expanded=%v rows=%d", s.IsExpanded("02_guide"), s.RowCount())
	}
}

func TestSidebarExpandAllCollapseAll(t *testing.T) {
	s := newTestSidebar(t)
	s.ExpandAll()
	want := doctree.FolderKeys(s.Roots())
	if got := s.ExpandedKeys(); !reflect.DeepEqual(got, want) {
		t.Errorf("ExpandAll keys = %v, want %v", got, want)
	}
	if s.RowCount() != 7 {
		t.Errorf("rows after ExpandAll = %d, want 7", s.RowCount())
	}

	s.CollapseAll()
	if len(s.expanded) != 0 || s.RowCount() != 3 {
		t.Errorf("after CollapseAll: expanded=%v rows=%d", s.expanded, s.RowCount())
	}
}

func TestSidebarNestedFolderHiddenUnderCollapsedParent(t *testing.T) {
	s := newTestSidebar(t)
	s.Toggle("03_reference/01_api")
	if s.RowCount() != 3 {
		t.Errorf("child folder opened under a closed parent: %v", rowIDs(s))
	}
	s.Toggle("03_reference")
	if got := rowIDs(s); got[len(got)-1] != "/content/03_reference/01_api/01_http.md" {
		t.Errorf("rows = %v", got)
	}
}

func TestSidebarActivate(t *testing.T) {
	s := newTestSidebar(t)
	path, ok := s.Activate()
	if !ok || path != "/content/01_intro.md" {
		t.Fatalf("Activate on document = %q, %v", path, ok)
	}

	s.MoveDown()
	if _, ok := s.Activate(); ok {
		t.Fatal("Activate on folder returned a document")
	}
	if !s.IsExpanded("02_guide") {
		t.Fatal("Activate on folder did not expand it")
	}
	if n := s.SelectedNode(); n == nil || n.Key != "02_guide" {
		t.Errorf("cursor left the folder: %v", n)
	}

	s.MoveDown()
	path, ok = s.Activate()
	if !ok || path != "/content/02_guide/01_install.md" {
		t.Errorf("Activate = %q, %v", path, ok)
	}
}

func TestSidebarCursorBounds(t *testing.T) {
	s := newTestSidebar(t)
	s.MoveUp()
	if s.Cursor() != 0 {
		t.Errorf("cursor = %d, want 0", s.Cursor())
	}
	s.Bottom()
	s.MoveDown()
	if s.Cursor() != s.RowCount()-1 {
		t.Errorf("cursor = %d, want %d", s.Cursor(), s.RowCount()-1)
	}
	s.Top()
	if s.Cursor() != 0 {
		t.Errorf("Top: cursor = %d", s.Cursor())
	}
}

func TestSidebarClick(t *testing.T) {
	s := newTestSidebar(t)

	s.Click(0, 1) // "Expand all"
	if s.RowCount() != 7 {
		t.Fatalf("Expand all click: rows = %d", s.RowCount())
	}
	s.Click(29, 1) // "Collapse all"
	if s.RowCount() != 3 {
		t.Fatalf("Collapse all click: rows = %d", s.RowCount())
	}

	if path, ok := s.Click(4, sidebarHeaderRows); !ok || path != "/content/01_intro.md" {
		t.Errorf("click on first row = %q, %v", path, ok)
	}
	if _, ok := s.Click(4, sidebarHeaderRows+1); ok || !s.IsExpanded("02_guide") {
		t.Error("click on folder row should toggle it")
	}
	if _, ok := s.Click(4, 0); ok {
		t.Error("click on title returned a document")
	}
	if _, ok := s.Click(4, 19); ok {
		t.Error("click below the rows returned a document")
	}
}

func TestSidebarSetTreeKeepsExpansion(t *testing.T) {
	s := newTestSidebar(t)
	s.Toggle("02_guide")
	s.Toggle("03_reference")

	s.SetTree(doctree.Build(samplePaths[1:], doctree.DefaultBuildOptions()))
	if !s.IsExpanded("02_guide") {
		t.Error("expansion of a surviving folder was lost")
	}
	if s.IsExpanded("03_reference") {
		t.Error("expansion of a removed folder was kept")
	}
}

func TestSidebarView(t *testing.T) {
	s := newTestSidebar(t)
	s.SetCurrent("/content/01_intro.md")
	out := stripANSI(s.View())
	for _, want := range []string{"Documentation", "Expand all", "Collapse all", "▶ Guide", "Intro"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q:\n%s", want, out)
		}
	}
	s.Toggle("02_guide")
	out = stripANSI(s.View())
	if !strings.Contains(out, "▼ Guide") || !strings.Contains(out, "    Install") {
		t.Errorf("expanded view:\n%s", out)
	}
}

func TestSidebarScrollsLongLists(t *testing.T) {
	var paths []string
	for _, p := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		paths = append(paths, "/content/"+p+".md")
	}
	s := NewSidebar(TestTheme())
	s.SetSize(30, 6) // 4 list rows, one used by the indicator
	s.SetTree(doctree.Build(paths, doctree.DefaultBuildOptions()))

	for i := 0; i < 5; i++ {
		s.MoveDown()
	}
	if s.offset != 3 {
		t.Errorf("offset = %d, want 3", s.offset)
	}
	out := stripANSI(s.View())
	if !strings.Contains(out, "(4-6 of 10)") {
		t.Errorf("position indicator missing:\n%s", out)
	}
}
