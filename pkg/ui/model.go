package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/docview/internal/datasource"
	"github.com/vanderheijden86/docview/pkg/debug"
	"github.com/vanderheijden86/docview/pkg/diagram"
	"github.com/vanderheijden86/docview/pkg/doctree"
	"github.com/vanderheijden86/docview/pkg/metrics"
	"github.com/vanderheijden86/docview/pkg/watcher"
)

const (
	minSidebarWidth = 16
	wheelScrollRows = 3
)

// focus represents which pane has keyboard focus
type focus int

const (
	focusSidebar focus = iota
	focusDocument
	focusDiagram
)

// Refresher rescans a source and reports what changed.
type Refresher interface {
	Refresh() (datasource.SnapshotDiff, error)
}

// Options configures the viewer.
type Options struct {
	Source    datasource.Source
	Refresher Refresher        // optional, enables live reload together with Watcher
	Watcher   *watcher.Watcher // optional
	Compiler  *diagram.Compiler

	Build         doctree.BuildOptions
	Language      string
	DiagramHeight int
	SidebarWidth  int
	GlamourStyle  string
}

// docLoadedMsg is the result of one document load.
type docLoadedMsg struct {
	seq  int
	path string
	text string
	err  error
}

// ContentChangedMsg is sent when the content directory changes on disk.
type ContentChangedMsg struct{}

// WatchContentCmd waits for the next change notification from w.
func WatchContentCmd(w *watcher.Watcher) tea.Cmd {
	return func() tea.Msg {
		<-w.Changed()
		return ContentChangedMsg{}
	}
}

// Model is the Bubble Tea model of the documentation viewer.
type Model struct {
	opts  Options
	theme Theme
	keys  KeyMap
	help  help.Model

	tree     []*doctree.Node
	sidebar  *Sidebar
	doc      *DocumentView
	host     *FullscreenHost
	compiler *diagram.Compiler

	selected string
	loadSeq  int

	focused    focus
	diagramIdx int
	showHelp   bool

	statusMsg     string
	statusIsError bool

	width, height int
}

// NewModel builds the table of contents and selects the first document.
func NewModel(opts Options) Model {
	if opts.Build == (doctree.BuildOptions{}) {
		opts.Build = doctree.DefaultBuildOptions()
	}
	if opts.SidebarWidth <= 0 {
		opts.SidebarWidth = 32
	}
	compiler := opts.Compiler
	if compiler == nil {
		compiler = diagram.NewCompiler()
	}
	theme := DefaultTheme(lipgloss.DefaultRenderer())
	host := &FullscreenHost{}

	m := Model{
		opts:     opts,
		theme:    theme,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		sidebar:  NewSidebar(theme),
		host:     host,
		compiler: compiler,
		doc: NewDocumentView(theme, compiler, host, DocumentOptions{
			Language:      opts.Language,
			DiagramHeight: opts.DiagramHeight,
			GlamourStyle:  opts.GlamourStyle,
		}),
		width:  80,
		height: 24,
	}
	m.rebuildTree()
	m.ensureInitialSelection()
	m.setFocus(focusSidebar)
	m.layout()
	return m
}

// Selected returns the path of the selected document.
func (m Model) Selected() string { return m.selected }

func (m Model) Sidebar() *Sidebar              { return m.sidebar }
func (m Model) Document() *DocumentView        { return m.doc }
func (m Model) Host() *FullscreenHost          { return m.host }
func (m Model) Tree() []*doctree.Node          { return m.tree }
func (m Model) Status() (string, bool)         { return m.statusMsg, m.statusIsError }
func (m Model) Size() (width, height int)      { return m.width, m.height }
func (m Model) loadCmdFor(path string) tea.Cmd { return m.loadCmd(m.loadSeq, path) }

func (m *Model) rebuildTree() {
	defer metrics.Timer(metrics.TreeBuild)()
	var paths []string
	if m.opts.Source != nil {
		paths = m.opts.Source.Paths()
	}
	m.tree = doctree.Build(paths, m.opts.Build)
	m.sidebar.SetTree(m.tree)
}

// ensureInitialSelection picks the first document in table-of-contents
// order, but only while nothing is selected.
func (m *Model) ensureInitialSelection() tea.Cmd {
	if m.selected != "" {
		return nil
	}
	paths := doctree.Flatten(m.tree)
	if len(paths) == 0 {
		m.doc.Clear()
		return nil
	}
	return m.selectDoc(paths[0])
}

// selectDoc makes path the selection and starts loading it.
func (m *Model) selectDoc(path string) tea.Cmd {
	m.selected = path
	m.sidebar.SetCurrent(path)
	m.diagramIdx = 0
	if m.focused == focusDiagram {
		m.setFocus(focusDocument)
	}
	return m.startLoad(path)
}

func (m *Model) startLoad(path string) tea.Cmd {
	m.loadSeq++
	m.doc.SetLoading(path)
	return m.loadCmd(m.loadSeq, path)
}

func (m Model) loadCmd(seq int, path string) tea.Cmd {
	src := m.opts.Source
	return func() tea.Msg {
		if src == nil {
			return docLoadedMsg{seq: seq, path: path, err: datasource.ErrNotFound}
		}
		text, err := src.Load(context.Background(), path)
		return docLoadedMsg{seq: seq, path: path, text: text, err: err}
	}
}

func (m Model) Init() tea.Cmd {
	var cmds []tea.Cmd
	if m.selected != "" {
		cmds = append(cmds, m.loadCmdFor(m.selected))
	}
	if m.opts.Watcher != nil {
		cmds = append(cmds, WatchContentCmd(m.opts.Watcher))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()

	case docLoadedMsg:
		cmds = append(cmds, m.applyLoad(msg))

	case diagramCompiledMsg, fitMsg, tea.BlurMsg:
		cmds = append(cmds, m.doc.Update(msg))

	case fullscreenRequestMsg:
		cmds = append(cmds, m.host.handle(msg))

	case FullscreenChangedMsg:
		cmds = append(cmds, m.doc.Update(msg))
		m.layout()
		if fv := m.doc.FullscreenViewport(); fv == nil {
			m.revealFocusedDiagram()
		}

	case ContentChangedMsg:
		cmds = append(cmds, m.handleContentChanged())

	case tea.MouseMsg:
		cmds = append(cmds, m.handleMouse(msg))

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		cmds = append(cmds, m.handleKey(msg))
	}

	m.doc.refresh()
	return m, tea.Batch(cmds...)
}

// applyLoad shows a loaded document unless a newer load or a different
// selection superseded it.
func (m *Model) applyLoad(msg docLoadedMsg) tea.Cmd {
	if msg.seq != m.loadSeq || msg.path != m.selected {
		debug.Log("discarding stale load of %s (seq %d, latest %d)", msg.path, msg.seq, m.loadSeq)
		return nil
	}
	if msg.err != nil {
		m.doc.SetError(msg.path, msg.err)
		m.setStatus(fmt.Sprintf("Could not load %s: %v", msg.path, msg.err), true)
		return nil
	}
	cmd := m.doc.SetDocument(msg.path, msg.text)
	m.clampDiagramFocus()
	return cmd
}

// handleContentChanged rescans the source, rebuilds the tree when paths came
// or went, and reloads the selected document when it changed.
func (m *Model) handleContentChanged() tea.Cmd {
	var cmds []tea.Cmd
	if m.opts.Watcher != nil {
		cmds = append(cmds, WatchContentCmd(m.opts.Watcher))
	}
	if m.opts.Refresher == nil {
		return tea.Batch(cmds...)
	}
	diff, err := m.opts.Refresher.Refresh()
	if err != nil {
		m.setStatus(fmt.Sprintf("Reload error: %v", err), true)
		return tea.Batch(cmds...)
	}
	if !diff.HasChanges() {
		return tea.Batch(cmds...)
	}
	debug.Log("content changed: %s", diff.Summary())

	if diff.StructureChanged() {
		m.rebuildTree()
	}
	switch {
	case m.selected != "" && doctree.Find(m.tree, m.selected) == nil:
		m.selected = ""
		cmds = append(cmds, m.ensureInitialSelection())
	case diff.Touches(m.selected):
		cmds = append(cmds, m.startLoad(m.selected))
	}
	m.setStatus("Reloaded: "+diff.Summary(), false)
	return tea.Batch(cmds...)
}

func (m *Model) setStatus(msg string, isError bool) {
	m.statusMsg, m.statusIsError = msg, isError
	if isError {
		debug.Log("status: %s", msg)
	}
}

func (m *Model) clearStatus() { m.statusMsg, m.statusIsError = "", false }

// ── Layout ──

func (m Model) sidebarWidth() int {
	w := m.opts.SidebarWidth
	if limit := m.width / 2; w > limit {
		w = limit
	}
	return max(w, min(minSidebarWidth, m.width))
}

func (m Model) footerView() string {
	if m.showHelp {
		h := m.help
		h.ShowAll = true
		h.Width = m.width
		return h.View(m.keys)
	}
	if m.statusMsg != "" {
		return renderStatus(m.statusMsg, m.statusIsError, m.width)
	}
	h := m.help
	h.ShowAll = false
	h.Width = m.width
	return h.View(m.keys)
}

func (m Model) bodyHeight() int {
	return max(m.height-lipgloss.Height(m.footerView()), 3)
}

// layout sizes the panes, or the fullscreen diagram when one is active.
func (m *Model) layout() {
	bodyH := m.bodyHeight()
	sw := m.sidebarWidth()
	m.sidebar.SetSize(max(sw-2, 0), max(bodyH-2, 0))
	m.doc.SetSize(max(m.width-sw-2, 0), max(bodyH-2, 0))
	if fv := m.doc.FullscreenViewport(); fv != nil {
		fv.SetSize(max(m.width-2, 1), max(bodyH-4, 1))
	}
	m.help.Width = m.width
}

// docOrigin is the screen position of the document pane's first cell.
func (m Model) docOrigin() (x, y int) { return m.sidebarWidth() + 1, 1 }

// ── Focus ──

// diagramViewports lists the compiled diagrams of the document in order.
func (m Model) diagramViewports() []*DiagramViewport {
	var out []*DiagramViewport
	for _, b := range m.doc.Blocks() {
		if b.viewport != nil {
			out = append(out, b.viewport)
		}
	}
	return out
}

func (m Model) focusedViewport() *DiagramViewport {
	if fv := m.doc.FullscreenViewport(); fv != nil {
		return fv
	}
	if m.focused != focusDiagram {
		return nil
	}
	vs := m.diagramViewports()
	if m.diagramIdx < 0 || m.diagramIdx >= len(vs) {
		return nil
	}
	return vs[m.diagramIdx]
}

func (m *Model) setFocus(f focus) {
	m.focused = f
	m.sidebar.SetFocused(f == focusSidebar)
	fv := m.focusedViewport()
	for _, v := range m.diagramViewports() {
		v.SetFocused(v == fv)
	}
	m.revealFocusedDiagram()
}

func (m *Model) revealFocusedDiagram() {
	if m.focused != focusDiagram {
		return
	}
	for _, b := range m.doc.Blocks() {
		if b.viewport != nil && b.viewport == m.focusedViewport() {
			m.doc.refresh()
			m.doc.Reveal(b)
			return
		}
	}
}

// cycleFocus steps through sidebar, document and each compiled diagram.
func (m *Model) cycleFocus(delta int) {
	stops := 2 + len(m.diagramViewports())
	cur := int(m.focused)
	if m.focused == focusDiagram {
		cur = 2 + m.diagramIdx
	}
	next := ((cur+delta)%stops + stops) % stops
	if next >= 2 {
		m.diagramIdx = next - 2
		m.setFocus(focusDiagram)
		return
	}
	m.setFocus(focus(next))
}

func (m *Model) clampDiagramFocus() {
	if m.focused != focusDiagram {
		return
	}
	if n := len(m.diagramViewports()); m.diagramIdx >= n {
		if n == 0 {
			m.setFocus(focusDocument)
			return
		}
		m.diagramIdx = n - 1
	}
	m.setFocus(focusDiagram)
}

// ── Keys ──

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.Help) {
		m.showHelp = !m.showHelp
		m.layout()
		return nil
	}
	if m.showHelp && key.Matches(msg, m.keys.Back) {
		m.showHelp = false
		m.layout()
		return nil
	}
	m.clearStatus()

	if key.Matches(msg, m.keys.CopyPath) {
		m.copyToClipboard(m.selected, "path")
		return nil
	}

	if v := m.focusedViewport(); v != nil {
		if cmd, ok := m.handleDiagramKey(v, msg); ok {
			return cmd
		}
	}

	switch {
	case key.Matches(msg, m.keys.NextFocus):
		m.cycleFocus(1)
		return nil
	case key.Matches(msg, m.keys.PrevFocus):
		m.cycleFocus(-1)
		return nil
	case key.Matches(msg, m.keys.ExpandAll):
		m.sidebar.ExpandAll()
		return nil
	case key.Matches(msg, m.keys.CollapseAll):
		m.sidebar.CollapseAll()
		return nil
	}

	switch m.focused {
	case focusSidebar:
		return m.handleSidebarKey(msg)
	case focusDocument:
		m.handleDocumentKey(msg)
	}
	return nil
}

func (m *Model) handleSidebarKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.sidebar.MoveUp()
	case key.Matches(msg, m.keys.Down):
		m.sidebar.MoveDown()
	case key.Matches(msg, m.keys.PageUp):
		m.sidebar.PageUp()
	case key.Matches(msg, m.keys.PageDown):
		m.sidebar.PageDown()
	case key.Matches(msg, m.keys.Top):
		m.sidebar.Top()
	case key.Matches(msg, m.keys.Bottom):
		m.sidebar.Bottom()
	case key.Matches(msg, m.keys.Enter):
		if path, ok := m.sidebar.Activate(); ok {
			return m.selectDoc(path)
		}
	}
	return nil
}

func (m *Model) handleDocumentKey(msg tea.KeyMsg) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.doc.ScrollBy(-1)
	case key.Matches(msg, m.keys.Down):
		m.doc.ScrollBy(1)
	case key.Matches(msg, m.keys.PageUp):
		m.doc.PageUp()
	case key.Matches(msg, m.keys.PageDown):
		m.doc.PageDown()
	case key.Matches(msg, m.keys.Top):
		m.doc.GotoTop()
	case key.Matches(msg, m.keys.Bottom):
		m.doc.GotoBottom()
	case key.Matches(msg, m.keys.Back):
		m.setFocus(focusSidebar)
	}
}

// handleDiagramKey handles keys aimed at the focused or fullscreen diagram.
// ok is false when the key is not a diagram key.
func (m *Model) handleDiagramKey(v *DiagramViewport, msg tea.KeyMsg) (cmd tea.Cmd, ok bool) {
	switch {
	case key.Matches(msg, m.keys.ZoomIn):
		v.ZoomIn()
	case key.Matches(msg, m.keys.ZoomOut):
		v.ZoomOut()
	case key.Matches(msg, m.keys.Reset):
		v.Fit()
	case key.Matches(msg, m.keys.Fullscreen):
		return v.ToggleFullscreen(), true
	case key.Matches(msg, m.keys.Left):
		v.PanBy(-panStep, 0)
	case key.Matches(msg, m.keys.Right):
		v.PanBy(panStep, 0)
	case key.Matches(msg, m.keys.Up):
		v.PanBy(0, -panStep/2)
	case key.Matches(msg, m.keys.Down):
		v.PanBy(0, panStep/2)
	case key.Matches(msg, m.keys.CopySource):
		if v.Image() != nil {
			m.copyToClipboard(v.Image().Source, "diagram source")
		}
	case key.Matches(msg, m.keys.Back):
		if v.IsFullscreen() {
			return v.ToggleFullscreen(), true
		}
		m.setFocus(focusDocument)
	default:
		return nil, false
	}
	return nil, true
}

func (m *Model) copyToClipboard(text, what string) {
	if text == "" {
		return
	}
	if err := clipboard.WriteAll(text); err != nil {
		m.setStatus(fmt.Sprintf("Clipboard error: %v", err), true)
		return
	}
	m.setStatus("Copied "+what+" to clipboard", false)
}

// ── Mouse ──

func (m *Model) handleMouse(msg tea.MouseMsg) tea.Cmd {
	if fv := m.doc.FullscreenViewport(); fv != nil {
		return fv.Mouse(msg)
	}

	dx, dy := m.docOrigin()
	if pv := m.doc.PanningViewport(); pv != nil &&
		(msg.Action == tea.MouseActionMotion || msg.Action == tea.MouseActionRelease) {
		for _, b := range m.doc.Blocks() {
			if b.viewport != pv {
				continue
			}
			top, _ := m.doc.blockTop(b)
			rel := msg
			rel.X, rel.Y = msg.X-dx, msg.Y-dy-top
			return pv.Mouse(rel)
		}
		pv.EndPan()
		return nil
	}
	if msg.Action != tea.MouseActionPress {
		return nil
	}

	bodyH := m.bodyHeight()
	sw := m.sidebarWidth()
	inBody := msg.Y >= 1 && msg.Y < bodyH-1
	switch {
	case inBody && msg.X >= 1 && msg.X < sw-1:
		return m.sidebarMouse(msg.X-1, msg.Y-1, msg.Button)
	case inBody && msg.X >= dx && msg.X < m.width-1:
		return m.documentMouse(msg, msg.X-dx, msg.Y-dy)
	}
	return nil
}

func (m *Model) sidebarMouse(x, y int, button tea.MouseButton) tea.Cmd {
	switch button {
	case tea.MouseButtonWheelUp:
		m.sidebar.MoveUp()
	case tea.MouseButtonWheelDown:
		m.sidebar.MoveDown()
	case tea.MouseButtonLeft:
		m.setFocus(focusSidebar)
		if path, ok := m.sidebar.Click(x, y); ok {
			return m.selectDoc(path)
		}
	}
	return nil
}

func (m *Model) documentMouse(msg tea.MouseMsg, x, y int) tea.Cmd {
	b, row := m.doc.BlockAt(y)
	if b != nil && b.viewport != nil {
		v := b.viewport
		wheel := msg.Button == tea.MouseButtonWheelUp || msg.Button == tea.MouseButtonWheelDown
		if !wheel || v.inCanvas(x, row) {
			if msg.Button == tea.MouseButtonLeft {
				m.focusViewport(v)
			}
			rel := msg
			rel.X, rel.Y = x, row
			return v.Mouse(rel)
		}
	}

	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.doc.ScrollBy(-wheelScrollRows)
	case tea.MouseButtonWheelDown:
		m.doc.ScrollBy(wheelScrollRows)
	case tea.MouseButtonLeft:
		m.setFocus(focusDocument)
	}
	return nil
}

func (m *Model) focusViewport(v *DiagramViewport) {
	for i, vv := range m.diagramViewports() {
		if vv == v {
			m.diagramIdx = i
			m.setFocus(focusDiagram)
			return
		}
	}
}

// ── View ──

func (m Model) View() string {
	footer := m.footerView()
	if fv := m.doc.FullscreenViewport(); fv != nil {
		return lipgloss.JoinVertical(lipgloss.Left, fv.View(), footer)
	}

	bodyH := m.bodyHeight()
	sw := m.sidebarWidth()
	left := panel(m.sidebar.View(), sw, bodyH, m.focused == focusSidebar)
	right := panel(m.doc.View(), max(m.width-sw, 0), bodyH, m.focused != focusSidebar)
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	return strings.TrimRight(lipgloss.JoinVertical(lipgloss.Left, body, footer), "\n")
}
