package ui

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/vanderheijden86/docview/pkg/diagram"
)

const sampleDoc = "# Setup\n\nSome text.\n\n```mermaid\ngraph TD\n  A --> B\n```\n\nMore text.\n"

func newTestDocument() (*DocumentView, *FullscreenHost) {
	host := &FullscreenHost{}
	d := NewDocumentView(TestTheme(), diagram.NewCompiler(), host, DocumentOptions{GlamourStyle: "notty", DiagramHeight: 8})
	d.SetSize(80, 40)
	return d, host
}

func onlyBlock(t *testing.T, d *DocumentView) *DiagramBlock {
	t.Helper()
	blocks := d.Blocks()
	if len(blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(blocks))
	}
	return blocks[0]
}

func TestSetDocumentMountsLoadingBlock(t *testing.T) {
	d, _ := newTestDocument()
	cmd := d.SetDocument("/content/a.md", sampleDoc)
	if cmd == nil {
		t.Fatal("expected a compile command")
	}
	b := onlyBlock(t, d)
	if !b.Loading() {
		t.Error("block should be loading before its compile returns")
	}
	if id, ok := strings.CutPrefix(b.RenderID(), "mermaid-"); !ok || uuid.Validate(id) != nil {
		t.Errorf("render id %q", b.RenderID())
	}
	if b.Key != "/content/a.md:5" {
		t.Errorf("key = %q", b.Key)
	}
	if !strings.Contains(stripANSI(d.View()), "Loading diagram…") {
		t.Errorf("view missing loading placeholder:\n%s", d.View())
	}
}

func TestCompileResultBecomesViewport(t *testing.T) {
	d, _ := newTestDocument()
	cmd := d.SetDocument("/content/a.md", sampleDoc)
	for _, msg := range collectMsgs(cmd) {
		d.Update(msg)
	}
	b := onlyBlock(t, d)
	if b.Viewport() == nil || b.Loading() {
		t.Fatalf("block not ready: loading=%v err=%v", b.Loading(), b.Err())
	}
	if b.Viewport().ID() != b.RenderID() {
		t.Errorf("viewport id %q, render id %q", b.Viewport().ID(), b.RenderID())
	}
	if cols, rows := b.Viewport().Size(); cols != 78 || rows != 8 {
		t.Errorf("viewport size = %dx%d, want 78x8", cols, rows)
	}
	out := stripANSI(d.View())
	if !strings.Contains(out, "Scroll: zoom · Drag: pan") {
		t.Errorf("diagram not rendered inline:\n%s", out)
	}
	if strings.Contains(out, "```") {
		t.Errorf("diagram fence leaked into markdown:\n%s", out)
	}
}

func TestStaleCompileResultDropped(t *testing.T) {
	d, _ := newTestDocument()
	d.SetDocument("/content/a.md", sampleDoc)
	b := onlyBlock(t, d)
	oldID := b.RenderID()

	// Live edit of the diagram source: same fence line, new text.
	d.SetDocument("/content/a.md", strings.Replace(sampleDoc, "A --> B", "A --> C", 1))
	if onlyBlock(t, d) != b {
		t.Fatal("reload replaced the block instead of recompiling it")
	}
	if b.RenderID() == oldID {
		t.Fatal("source change did not issue a new render id")
	}

	img := compileImage(t, "graph TD\n  A --> B\n")
	d.Update(diagramCompiledMsg{key: b.Key, renderID: oldID, image: img})
	if b.Viewport() != nil || !b.Loading() {
		t.Fatal("result of the superseded compile was applied")
	}

	d.Update(diagramCompiledMsg{key: b.Key, renderID: b.RenderID(), image: img})
	if b.Viewport() == nil {
		t.Fatal("current result was not applied")
	}
}

func TestResultForUnmountedBlockDropped(t *testing.T) {
	d, _ := newTestDocument()
	d.SetDocument("/content/a.md", sampleDoc)
	b := onlyBlock(t, d)
	id := b.RenderID()

	d.SetDocument("/content/b.md", "# Other\n")
	if len(d.Blocks()) != 0 {
		t.Fatalf("blocks of the previous document survived: %d", len(d.Blocks()))
	}
	d.Update(diagramCompiledMsg{key: b.Key, renderID: id, image: compileImage(t, "graph TD\nA-->B\n")})
	if b.Viewport() != nil {
		t.Error("result applied to an unmounted block")
	}
	if cmd := b.apply(diagramCompiledMsg{key: b.Key, renderID: id}, nil, TestTheme(), 10, 5); cmd != nil || b.Viewport() != nil {
		t.Error("apply on an unmounted block should be a no-op")
	}
}

func TestReloadWithSameTextKeepsBlock(t *testing.T) {
	d, _ := newTestDocument()
	d.SetDocument("/content/a.md", sampleDoc)
	b := onlyBlock(t, d)
	id := b.RenderID()

	if cmd := d.SetDocument("/content/a.md", sampleDoc); cmd != nil {
		t.Error("unchanged reload should not compile again")
	}
	if onlyBlock(t, d) != b || b.RenderID() != id {
		t.Error("unchanged reload replaced the block")
	}
}

func TestCompileErrorShownInline(t *testing.T) {
	d, _ := newTestDocument()
	d.SetDocument("/content/a.md", sampleDoc)
	b := onlyBlock(t, d)

	d.Update(diagramCompiledMsg{key: b.Key, renderID: b.RenderID(), err: errors.New("line 2: unexpected token")})
	if b.Err() == nil || b.Loading() {
		t.Fatal("error not recorded")
	}
	if out := stripANSI(d.View()); !strings.Contains(out, "unexpected token") {
		t.Errorf("error text missing:\n%s", out)
	}

	// A later successful compile replaces the error.
	d.SetDocument("/content/a.md", strings.Replace(sampleDoc, "A --> B", "A --> D", 1))
	d.Update(diagramCompiledMsg{key: b.Key, renderID: b.RenderID(), image: compileImage(t, "graph TD\nA-->D\n")})
	if b.Err() != nil || b.Viewport() == nil {
		t.Errorf("recompile did not clear the error: %v", b.Err())
	}
}

func TestDocumentStates(t *testing.T) {
	d, _ := newTestDocument()
	if out := stripANSI(d.View()); !strings.Contains(out, "No document selected.") {
		t.Errorf("empty state:\n%s", out)
	}

	d.SetLoading("/content/a.md")
	if out := stripANSI(d.View()); !strings.Contains(out, "Loading…") {
		t.Errorf("loading state:\n%s", out)
	}

	d.SetError("/content/a.md", errors.New("permission denied"))
	out := stripANSI(d.View())
	if !strings.Contains(out, "Could not load document /content/a.md") || !strings.Contains(out, "permission denied") {
		t.Errorf("error state:\n%s", out)
	}

	d.SetDocument("/content/a.md", "")
	if d.Err() != nil || len(d.Blocks()) != 0 {
		t.Error("empty document should render without error")
	}
}

func TestReloadingSamePathKeepsContentWhileLoading(t *testing.T) {
	d, _ := newTestDocument()
	d.SetDocument("/content/a.md", sampleDoc)
	b := onlyBlock(t, d)

	d.SetLoading("/content/a.md")
	if len(d.Blocks()) != 1 || d.Blocks()[0] != b {
		t.Error("reloading the same path dropped its blocks")
	}
	d.SetLoading("/content/b.md")
	if len(d.Blocks()) != 0 {
		t.Error("loading another path kept the old blocks")
	}
}

func TestUnmountReleasesFullscreen(t *testing.T) {
	d, host := newTestDocument()
	for _, msg := range collectMsgs(d.SetDocument("/content/a.md", sampleDoc)) {
		d.Update(msg)
	}
	v := onlyBlock(t, d).Viewport()
	host.owner = v.ID()
	if d.FullscreenViewport() != v {
		t.Fatal("FullscreenViewport did not find the owner")
	}

	msgs := collectMsgs(d.SetDocument("/content/a.md", "# No diagrams\n"))
	if host.Owner() != "" {
		t.Errorf("owner %q survived unmount", host.Owner())
	}
	found := false
	for _, m := range msgs {
		if m == (FullscreenChangedMsg{}) {
			found = true
		}
	}
	if !found {
		t.Error("unmount did not announce the fullscreen change")
	}
}

func TestBlockAtMapsRows(t *testing.T) {
	d, _ := newTestDocument()
	for _, msg := range collectMsgs(d.SetDocument("/content/a.md", sampleDoc)) {
		d.Update(msg)
	}
	b := onlyBlock(t, d)
	top, ok := d.blockTop(b)
	if !ok {
		t.Fatal("block not laid out")
	}
	got, row := d.BlockAt(top + 2)
	if got != b || row != 2 {
		t.Errorf("BlockAt(%d) = %v, %d", top+2, got, row)
	}
	if got, _ := d.BlockAt(0); got != nil {
		t.Error("heading row mapped to a block")
	}
}

func TestRenderIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := newRenderID()
		if seen[id] {
			t.Fatalf("render id %q issued twice", id)
		}
		seen[id] = true
	}
}

const nestedDiagramDoc = "# Setup\n\n1. Install:\n\n   ```mermaid\n   graph TD\n     A --> B\n   ```\n\n2. Check:\n\n" +
	"> Note:\n>\n> ```mermaid\n> graph LR\n>   X --> Y\n> ```\n"

func TestNestedDiagramsBecomeBlocks(t *testing.T) {
	d, _ := newTestDocument()
	cmd := d.SetDocument("/content/a.md", nestedDiagramDoc)
	blocks := d.Blocks()
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want the list and the quote diagram", len(blocks))
	}
	if blocks[0].Key != "/content/a.md:5" || blocks[1].Key != "/content/a.md:14" {
		t.Errorf("keys = %q, %q", blocks[0].Key, blocks[1].Key)
	}
	for _, msg := range collectMsgs(cmd) {
		d.Update(msg)
	}
	for _, b := range d.Blocks() {
		if b.Viewport() == nil {
			t.Errorf("block %s not compiled: %v", b.Key, b.Err())
		}
	}
	out := stripANSI(d.View())
	for _, raw := range []string{"```", "graph TD", "A --> B", "graph LR"} {
		if strings.Contains(out, raw) {
			t.Errorf("diagram source %q shown as text:\n%s", raw, out)
		}
	}
	if !strings.Contains(out, "Install:") || !strings.Contains(out, "Note:") {
		t.Errorf("surrounding text missing:\n%s", out)
	}
}

func TestReferenceLinksResolveAcrossDiagrams(t *testing.T) {
	d, _ := newTestDocument()
	doc := "See [the guide][g].\n\n```mermaid\ngraph TD\n  A --> B\n```\n\n[g]: https://example.com/guide\n"
	d.SetDocument("/content/a.md", doc)
	out := stripANSI(d.View())
	if strings.Contains(out, "][g]") {
		t.Errorf("reference link left unresolved:\n%s", out)
	}
	if !strings.Contains(out, "example.com/guide") {
		t.Errorf("link destination missing:\n%s", out)
	}
}
