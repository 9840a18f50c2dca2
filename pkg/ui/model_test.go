package ui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/docview/internal/datasource"
)

type memSource struct {
	order []string
	docs  map[string]string
	fail  map[string]error
	loads []string
}

func newMemSource() *memSource {
	s := &memSource{docs: make(map[string]string), fail: make(map[string]error)}
	for _, p := range samplePaths {
		s.order = append(s.order, p)
		s.docs[p] = "# " + p + "\n\nBody.\n"
	}
	return s
}

func (s *memSource) Paths() []string { return append([]string(nil), s.order...) }

func (s *memSource) Load(_ context.Context, path string) (string, error) {
	s.loads = append(s.loads, path)
	if err := s.fail[path]; err != nil {
		return "", err
	}
	text, ok := s.docs[path]
	if !ok {
		return "", datasource.ErrNotFound
	}
	return text, nil
}

type refreshFunc func() (datasource.SnapshotDiff, error)

func (f refreshFunc) Refresh() (datasource.SnapshotDiff, error) { return f() }

func newTestModel(src *memSource) Model {
	return NewModel(Options{Source: src, GlamourStyle: "notty", DiagramHeight: 8})
}

// drive feeds every message produced by cmd back into the model until the
// queue drains.
func drive(m Model, cmd tea.Cmd) Model {
	queue := collectMsgs(cmd)
	for i := 0; len(queue) > 0 && i < 200; i++ {
		msg := queue[0]
		queue = queue[1:]
		next, c := m.Update(msg)
		m = next.(Model)
		queue = append(queue, collectMsgs(c)...)
	}
	return m
}

func update(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func runeKey(r rune) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}} }

func TestNewModelSelectsFirstDocument(t *testing.T) {
	src := newMemSource()
	m := newTestModel(src)
	if got := m.Selected(); got != "/content/01_intro.md" {
		t.Fatalf("Selected() = %q", got)
	}
	m = drive(m, m.Init())
	if m.Document().Path() != "/content/01_intro.md" || m.Document().state != docReady {
		t.Errorf("document not shown: path=%q state=%v", m.Document().Path(), m.Document().state)
	}
	if m.Sidebar().Current() != "/content/01_intro.md" {
		t.Errorf("sidebar current = %q", m.Sidebar().Current())
	}
}

func TestInitialSelectionDoesNotOverrideUser(t *testing.T) {
	m := newTestModel(newMemSource())
	m.selectDoc("/content/02_guide/01_install.md")
	if cmd := m.ensureInitialSelection(); cmd != nil {
		t.Error("ensureInitialSelection issued a load with a selection present")
	}
	if m.Selected() != "/content/02_guide/01_install.md" {
		t.Errorf("selection overridden: %q", m.Selected())
	}
}

func TestEmptySourceShowsNoDocument(t *testing.T) {
	m := newTestModel(&memSource{})
	if m.Selected() != "" {
		t.Fatalf("Selected() = %q", m.Selected())
	}
	if !strings.Contains(stripANSI(m.View()), "No document selected.") {
		t.Errorf("view:\n%s", m.View())
	}
}

func TestStaleLoadDiscarded(t *testing.T) {
	m := newTestModel(newMemSource())
	first := m.selectDoc("/content/01_intro.md")
	second := m.selectDoc("/content/02_guide/01_install.md")

	m = drive(m, first)
	if m.Document().state != docLoading || m.Document().Path() != "/content/02_guide/01_install.md" {
		t.Fatalf("stale load applied: path=%q state=%v", m.Document().Path(), m.Document().state)
	}
	m = drive(m, second)
	if m.Document().state != docReady {
		t.Errorf("latest load not applied: state=%v", m.Document().state)
	}
}

func TestLoadForOtherPathDiscarded(t *testing.T) {
	m := newTestModel(newMemSource())
	m, _ = update(m, docLoadedMsg{seq: m.loadSeq, path: "/content/02_guide/02_usage.md", text: "# wrong"})
	if m.Document().state == docReady {
		t.Error("load for a path other than the selection was applied")
	}
}

func TestLoadFailureShowsError(t *testing.T) {
	src := newMemSource()
	src.fail["/content/01_intro.md"] = errors.New("disk on fire")
	m := newTestModel(src)
	m = drive(m, m.Init())

	msg, isErr := m.Status()
	if !isErr || !strings.Contains(msg, "disk on fire") {
		t.Errorf("status = %q, error = %v", msg, isErr)
	}
	if m.Document().Err() == nil {
		t.Error("document error state not set")
	}
}

func TestSidebarKeysOpenDocument(t *testing.T) {
	src := newMemSource()
	m := newTestModel(src)
	m = drive(m, m.Init())

	m, _ = update(m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = update(m, tea.KeyMsg{Type: tea.KeyEnter})
	if !m.Sidebar().IsExpanded("02_guide") {
		t.Fatal("enter on folder did not expand it")
	}
	m, _ = update(m, tea.KeyMsg{Type: tea.KeyDown})
	m, cmd := update(m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.Selected() != "/content/02_guide/01_install.md" {
		t.Fatalf("Selected() = %q", m.Selected())
	}
	m = drive(m, cmd)
	if m.Document().Path() != "/content/02_guide/01_install.md" || m.Document().state != docReady {
		t.Errorf("document not loaded: %q", m.Document().Path())
	}

	m, _ = update(m, runeKey('E'))
	if len(m.Sidebar().ExpandedKeys()) != 3 {
		t.Errorf("E expanded %v", m.Sidebar().ExpandedKeys())
	}
	m, _ = update(m, runeKey('C'))
	if len(m.Sidebar().ExpandedKeys()) != 0 {
		t.Errorf("C left %v expanded", m.Sidebar().ExpandedKeys())
	}
}

func TestMouseClickSelectsDocument(t *testing.T) {
	m := newTestModel(newMemSource())
	m = drive(m, m.Init())

	// Sidebar content starts inside the border; rows follow the title and
	// action lines.
	row := 1 + sidebarHeaderRows
	m, _ = update(m, tea.MouseMsg{X: 3, Y: row + 1, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	if !m.Sidebar().IsExpanded("02_guide") {
		t.Fatal("click on folder did not expand it")
	}
	m, cmd := update(m, tea.MouseMsg{X: 3, Y: row + 2, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	if m.Selected() != "/content/02_guide/01_install.md" || cmd == nil {
		t.Errorf("click did not select: %q", m.Selected())
	}
}

func TestContentChangeReloadsSelected(t *testing.T) {
	src := newMemSource()
	m := newTestModel(src)
	m = drive(m, m.Init())
	src.docs["/content/01_intro.md"] = "# Intro\n\nEdited.\n"
	m.opts.Refresher = refreshFunc(func() (datasource.SnapshotDiff, error) {
		return datasource.SnapshotDiff{Changed: []string{"/content/01_intro.md"}}, nil
	})

	loads := len(src.loads)
	m, cmd := update(m, ContentChangedMsg{})
	m = drive(m, cmd)
	if len(src.loads) != loads+1 {
		t.Errorf("selected document was not reloaded (%d loads)", len(src.loads)-loads)
	}
	if !strings.Contains(m.Document().text, "Edited.") {
		t.Errorf("document text = %q", m.Document().text)
	}
	if msg, _ := m.Status(); !strings.Contains(msg, "1 changed") {
		t.Errorf("status = %q", msg)
	}
}

func TestContentChangeIgnoresOtherDocuments(t *testing.T) {
	src := newMemSource()
	m := newTestModel(src)
	m = drive(m, m.Init())
	m.opts.Refresher = refreshFunc(func() (datasource.SnapshotDiff, error) {
		return datasource.SnapshotDiff{Changed: []string{"/content/02_guide/02_usage.md"}}, nil
	})
	loads := len(src.loads)
	m, cmd := update(m, ContentChangedMsg{})
	drive(m, cmd)
	if len(src.loads) != loads {
		t.Error("unrelated change reloaded the selected document")
	}
}

func TestContentChangeRemovingSelectionPicksFirst(t *testing.T) {
	src := newMemSource()
	m := newTestModel(src)
	m = drive(m, m.Init())
	m.opts.Refresher = refreshFunc(func() (datasource.SnapshotDiff, error) {
		src.order = []string{"/content/03_reference/01_api/01_http.md", "/content/02_guide/02_usage.md"}
		return datasource.SnapshotDiff{Removed: []string{"/content/01_intro.md", "/content/02_guide/01_install.md"}}, nil
	})

	m, cmd := update(m, ContentChangedMsg{})
	m = drive(m, cmd)
	if m.Selected() != "/content/02_guide/02_usage.md" {
		t.Errorf("Selected() = %q, want first remaining document", m.Selected())
	}
}

func TestDiagramFullscreenThroughModel(t *testing.T) {
	src := newMemSource()
	src.docs["/content/01_intro.md"] = sampleDoc
	m := newTestModel(src)
	m = drive(m, m.Init())
	if len(m.diagramViewports()) != 1 {
		t.Fatalf("diagram not compiled: %d viewports", len(m.diagramViewports()))
	}

	m, _ = update(m, tea.KeyMsg{Type: tea.KeyTab})
	m, _ = update(m, tea.KeyMsg{Type: tea.KeyTab})
	if m.focused != focusDiagram {
		t.Fatalf("focus = %v, want diagram", m.focused)
	}
	v := m.diagramViewports()[0]

	m, _ = update(m, runeKey('+'))
	scale := v.Scale()
	m, _ = update(m, runeKey('-'))
	if v.Scale() >= scale {
		t.Errorf("zoom keys had no effect: %v then %v", scale, v.Scale())
	}

	m, cmd := update(m, runeKey('f'))
	m = drive(m, cmd)
	if m.Host().Owner() != v.ID() || !v.IsFullscreen() {
		t.Fatalf("fullscreen not entered: owner=%q", m.Host().Owner())
	}
	if cols, _ := v.Size(); cols != 78 {
		t.Errorf("fullscreen cols = %d, want 78", cols)
	}
	if out := stripANSI(m.View()); strings.Contains(out, "Documentation") {
		t.Errorf("sidebar drawn in fullscreen:\n%s", out)
	}

	m, cmd = update(m, tea.KeyMsg{Type: tea.KeyEsc})
	m = drive(m, cmd)
	if m.Host().Owner() != "" || v.IsFullscreen() {
		t.Fatal("esc did not leave fullscreen")
	}
	if cols, rows := v.Size(); cols != 44 || rows != 8 {
		t.Errorf("inline size = %dx%d, want 44x8", cols, rows)
	}
}

func TestQuit(t *testing.T) {
	m := newTestModel(newMemSource())
	_, cmd := update(m, runeKey('q'))
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}
