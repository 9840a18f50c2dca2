package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/vanderheijden86/docview/pkg/debug"
	"github.com/vanderheijden86/docview/pkg/diagram"
	"github.com/vanderheijden86/docview/pkg/markdown"
	"github.com/vanderheijden86/docview/pkg/metrics"
)

// newRenderID returns a fresh compile id: "mermaid-" and a random uuid.
func newRenderID() string {
	return "mermaid-" + uuid.NewString()
}

// diagramCompiledMsg carries the result of one compile attempt.
type diagramCompiledMsg struct {
	key      string
	renderID string
	image    *diagram.Image
	err      error
}

type blockState int

const (
	blockLoading blockState = iota
	blockReady
	blockFailed
)

// DiagramBlock is one diagram fence of the displayed document. It is keyed
// by document path and fence line, so a different document never reuses it.
type DiagramBlock struct {
	Key    string
	Source string
	Line   int

	renderID string
	mounted  bool
	state    blockState
	err      error
	viewport *DiagramViewport
}

func blockKey(path string, line int) string { return fmt.Sprintf("%s:%d", path, line) }

// State helpers, mostly for tests and the status line.
func (b *DiagramBlock) Loading() bool              { return b.state == blockLoading }
func (b *DiagramBlock) Err() error                 { return b.err }
func (b *DiagramBlock) RenderID() string           { return b.renderID }
func (b *DiagramBlock) Viewport() *DiagramViewport { return b.viewport }

// compile starts a new attempt under a new render id. Results of earlier
// attempts no longer match and are dropped when they arrive.
func (b *DiagramBlock) compile(c *diagram.Compiler) tea.Cmd {
	b.renderID = newRenderID()
	if b.viewport == nil && b.err == nil {
		b.state = blockLoading
	}
	key, id, src := b.Key, b.renderID, b.Source
	return func() tea.Msg {
		img, err := c.Render(context.Background(), id, src)
		return diagramCompiledMsg{key: key, renderID: id, image: img, err: err}
	}
}

// apply stores a compile result if it belongs to the current attempt.
func (b *DiagramBlock) apply(msg diagramCompiledMsg, host *FullscreenHost, theme Theme, cols, rows int) tea.Cmd {
	if !b.mounted || msg.renderID != b.renderID {
		debug.Log("discarding stale diagram result %s for %s", msg.renderID, b.Key)
		return nil
	}
	if msg.err != nil {
		b.state = blockFailed
		b.err = msg.err
		return nil
	}
	b.err = nil
	b.state = blockReady
	if b.viewport != nil {
		return b.viewport.SetImage(msg.image)
	}
	b.viewport = NewDiagramViewport(msg.renderID, msg.image, host, theme)
	b.viewport.SetSize(cols, rows)
	return b.viewport.Init()
}

func (b *DiagramBlock) view(theme Theme, width int) string {
	switch {
	case b.err != nil:
		return theme.ErrorBlock.Width(max(width-2, 1)).Render(b.err.Error())
	case b.viewport != nil:
		return b.viewport.View()
	default:
		return theme.Loading.Render("Loading diagram…")
	}
}

type docState int

const (
	docEmpty docState = iota
	docLoading
	docReady
	docFailed
)

// part is one rendered piece of the document.
type part struct {
	markdown string // rendered terminal text, when block is nil
	block    *DiagramBlock
	top      int // first content line
	height   int
}

// DocumentOptions configures a DocumentView.
type DocumentOptions struct {
	Language      string
	DiagramHeight int
	GlamourStyle  string
}

// DocumentView renders the current document: Markdown through glamour and
// diagram fences as DiagramBlocks, in one scrollable pane.
type DocumentView struct {
	opts     DocumentOptions
	theme    Theme
	compiler *diagram.Compiler
	host     *FullscreenHost

	path     string
	shown    string // path whose text is on display
	text     string
	state    docState
	err      error
	segments []markdown.Segment
	blocks   map[string]*DiagramBlock
	parts    []part

	width, height int
	pane          viewport.Model
	renderer      *glamour.TermRenderer
	rendererWidth int
	cache         map[string]string
}

// NewDocumentView returns an empty document pane.
func NewDocumentView(theme Theme, compiler *diagram.Compiler, host *FullscreenHost, opts DocumentOptions) *DocumentView {
	if opts.Language == "" {
		opts.Language = markdown.DefaultLanguage
	}
	if opts.DiagramHeight <= 0 {
		opts.DiagramHeight = 18
	}
	return &DocumentView{
		opts:     opts,
		theme:    theme,
		compiler: compiler,
		host:     host,
		blocks:   make(map[string]*DiagramBlock),
		pane:     viewport.New(0, 0),
		cache:    make(map[string]string),
	}
}

func (d *DocumentView) Path() string { return d.path }
func (d *DocumentView) Err() error   { return d.err }

// Blocks returns the mounted diagram blocks in document order.
func (d *DocumentView) Blocks() []*DiagramBlock {
	var out []*DiagramBlock
	for _, p := range d.parts {
		if p.block != nil {
			out = append(out, p.block)
		}
	}
	return out
}

// SetSize resizes the pane and every inline diagram.
func (d *DocumentView) SetSize(w, h int) {
	d.width, d.height = max(w, 0), max(h, 0)
	d.pane.Width, d.pane.Height = d.width, d.height
	for _, b := range d.blocks {
		if b.viewport != nil && !b.viewport.IsFullscreen() {
			b.viewport.SetSize(d.diagramCols(), d.opts.DiagramHeight)
		}
	}
	d.refresh()
}

func (d *DocumentView) diagramCols() int { return max(d.width-2, 1) }

// SetLoading shows the loading state for path.
func (d *DocumentView) SetLoading(path string) {
	if path != d.shown {
		d.unmountAll()
		d.shown, d.text, d.segments = "", "", nil
	}
	d.path = path
	d.state = docLoading
	d.err = nil
	d.refresh()
}

// Clear returns to the "no document" state.
func (d *DocumentView) Clear() {
	d.unmountAll()
	d.path, d.shown, d.text, d.segments = "", "", "", nil
	d.state = docEmpty
	d.err = nil
	d.refresh()
	d.pane.GotoTop()
}

// SetError shows an inline error for path.
func (d *DocumentView) SetError(path string, err error) {
	d.unmountAll()
	d.path, d.shown, d.text, d.segments = path, "", "", nil
	d.state = docFailed
	d.err = err
	d.refresh()
	d.pane.GotoTop()
}

// SetDocument displays text for path and starts compiling its diagrams.
// Reloading the same path keeps blocks whose fence line is unchanged and
// recompiles those whose source changed.
func (d *DocumentView) SetDocument(path, text string) tea.Cmd {
	samePath := path == d.shown
	if !samePath {
		d.unmountAll()
	}
	d.path, d.shown, d.text = path, path, text
	d.state = docReady
	d.err = nil
	d.segments = markdown.Split(text, d.opts.Language)

	var cmds []tea.Cmd
	live := make(map[string]bool)
	for _, seg := range d.segments {
		if seg.Kind != markdown.SegmentDiagram {
			continue
		}
		key := blockKey(path, seg.Line)
		live[key] = true
		b, ok := d.blocks[key]
		switch {
		case !ok:
			b = &DiagramBlock{Key: key, Source: seg.Text, Line: seg.Line, mounted: true}
			d.blocks[key] = b
			cmds = append(cmds, b.compile(d.compiler))
		case b.Source != seg.Text:
			b.Source = seg.Text
			cmds = append(cmds, b.compile(d.compiler))
		}
	}
	for key, b := range d.blocks {
		if !live[key] {
			cmds = append(cmds, d.unmount(b))
		}
	}

	d.refresh()
	if !samePath {
		d.pane.GotoTop()
	}
	return tea.Batch(cmds...)
}

func (d *DocumentView) unmount(b *DiagramBlock) tea.Cmd {
	b.mounted = false
	delete(d.blocks, b.Key)
	if b.viewport != nil {
		return d.host.Release(b.viewport.ID())
	}
	return nil
}

// unmountAll drops every block. A fullscreen token held by one of them is
// cleared without a change message.
func (d *DocumentView) unmountAll() {
	for _, b := range d.blocks {
		b.mounted = false
		if b.viewport != nil {
			d.host.forget(b.viewport.ID())
		}
	}
	d.blocks = make(map[string]*DiagramBlock)
}

// Update routes compile results, fit ticks, fullscreen changes and blur to
// the diagrams.
func (d *DocumentView) Update(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case diagramCompiledMsg:
		b, ok := d.blocks[msg.key]
		if !ok {
			debug.Log("discarding diagram result %s for unmounted %s", msg.renderID, msg.key)
			return nil
		}
		cmds = append(cmds, b.apply(msg, d.host, d.theme, d.diagramCols(), d.opts.DiagramHeight))
	case fitMsg, FullscreenChangedMsg, tea.BlurMsg:
		for _, b := range d.blocks {
			if b.viewport != nil {
				cmds = append(cmds, b.viewport.Update(msg))
			}
		}
	}
	d.refresh()
	return tea.Batch(cmds...)
}

// FullscreenViewport returns the viewport currently holding fullscreen.
func (d *DocumentView) FullscreenViewport() *DiagramViewport {
	owner := d.host.Owner()
	if owner == "" {
		return nil
	}
	for _, b := range d.blocks {
		if b.viewport != nil && b.viewport.ID() == owner {
			return b.viewport
		}
	}
	return nil
}

// PanningViewport returns the viewport with a drag in progress.
func (d *DocumentView) PanningViewport() *DiagramViewport {
	for _, b := range d.blocks {
		if b.viewport != nil && b.viewport.IsPanning() {
			return b.viewport
		}
	}
	return nil
}

// BlockAt maps a pane row to the block drawn there and the row within it.
func (d *DocumentView) BlockAt(row int) (*DiagramBlock, int) {
	line := row + d.pane.YOffset
	for _, p := range d.parts {
		if p.block != nil && line >= p.top && line < p.top+p.height {
			return p.block, line - p.top
		}
	}
	return nil, 0
}

// blockTop returns the pane row of the block's first line; it is negative
// when the block starts above the visible window.
func (d *DocumentView) blockTop(b *DiagramBlock) (int, bool) {
	for _, p := range d.parts {
		if p.block == b {
			return p.top - d.pane.YOffset, true
		}
	}
	return 0, false
}

// Reveal scrolls so that the block is visible.
func (d *DocumentView) Reveal(b *DiagramBlock) {
	for _, p := range d.parts {
		if p.block != b {
			continue
		}
		if p.top < d.pane.YOffset || p.top+p.height > d.pane.YOffset+d.height {
			d.pane.SetYOffset(p.top)
		}
		return
	}
}

func (d *DocumentView) ScrollBy(n int) { d.pane.SetYOffset(d.pane.YOffset + n) }
func (d *DocumentView) PageDown()      { d.ScrollBy(max(d.height-1, 1)) }
func (d *DocumentView) PageUp()        { d.ScrollBy(-max(d.height-1, 1)) }
func (d *DocumentView) GotoTop()       { d.pane.GotoTop() }
func (d *DocumentView) GotoBottom()    { d.pane.GotoBottom() }
func (d *DocumentView) YOffset() int   { return d.pane.YOffset }

// markdownRenderer returns a glamour renderer wrapping at the pane width.
func (d *DocumentView) markdownRenderer() *glamour.TermRenderer {
	if d.renderer != nil && d.rendererWidth == d.width {
		return d.renderer
	}
	style := glamour.WithAutoStyle()
	if d.opts.GlamourStyle != "" && d.opts.GlamourStyle != "auto" {
		style = glamour.WithStandardStyle(d.opts.GlamourStyle)
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(max(d.width-2, 20)))
	if err != nil {
		debug.Log("glamour renderer: %v", err)
		return nil
	}
	d.renderer, d.rendererWidth = r, d.width
	d.cache = make(map[string]string)
	return r
}

func (d *DocumentView) renderMarkdown(src string) string {
	r := d.markdownRenderer()
	if r == nil {
		return src
	}
	if out, ok := d.cache[src]; ok {
		return out
	}
	defer metrics.Timer(metrics.MarkdownRender)()
	out, err := r.Render(src)
	if err != nil {
		debug.Log("glamour render: %v", err)
		out = src
	}
	out = strings.Trim(out, "\n")
	d.cache[src] = out
	return out
}

// refresh rebuilds the pane content from the current state.
func (d *DocumentView) refresh() {
	d.parts = d.parts[:0]
	var lines []string
	add := func(p part, text string) {
		p.top = len(lines)
		block := strings.Split(text, "\n")
		p.height = len(block)
		lines = append(lines, block...)
		lines = append(lines, "")
		d.parts = append(d.parts, p)
	}

	switch d.state {
	case docEmpty:
		add(part{}, d.theme.MutedText.Render("No document selected."))
	case docLoading:
		if len(d.segments) == 0 {
			add(part{}, d.theme.Loading.Render("Loading…"))
		}
	case docFailed:
		msg := "Could not load document"
		if d.path != "" {
			msg += " " + d.path
		}
		add(part{}, d.theme.ErrorBlock.Render(msg+"\n"+fmt.Sprint(d.err)))
	}

	for _, seg := range d.segments {
		if seg.Kind == markdown.SegmentMarkdown {
			out := d.renderMarkdown(seg.Text)
			add(part{markdown: out}, out)
			continue
		}
		b := d.blocks[blockKey(d.path, seg.Line)]
		if b == nil {
			continue
		}
		add(part{block: b}, b.view(d.theme, d.width))
	}

	content := strings.Join(lines, "\n")
	if d.width > 0 {
		content = lipgloss.NewStyle().MaxWidth(d.width).Render(content)
	}
	d.pane.SetContent(content)
}

// View renders the visible window of the document.
func (d *DocumentView) View() string { return d.pane.View() }
