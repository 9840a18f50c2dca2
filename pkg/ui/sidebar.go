package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/docview/pkg/doctree"
)

const (
	sidebarTitle      = "Documentation"
	expandAllLabel    = "Expand all"
	collapseAllLabel  = "Collapse all"
	sidebarHeaderRows = 2 // title row + action row
	sidebarIndent     = 2
)

// sidebarRow is one visible line of the table of contents.
type sidebarRow struct {
	node  *doctree.Node
	depth int
}

// Sidebar is the collapsible table of contents. Folder expansion lives in a
// key -> open map; absent means closed. Only explicit toggles and the
// expand/collapse-all actions change it.
type Sidebar struct {
	theme Theme

	roots    []*doctree.Node
	expanded map[string]bool
	rows     []sidebarRow

	cursor  int
	offset  int
	current string // path of the document on display

	width, height int
	focused       bool
}

// NewSidebar returns an empty sidebar.
func NewSidebar(theme Theme) *Sidebar {
	return &Sidebar{theme: theme, expanded: make(map[string]bool)}
}

// SetTree replaces the tree. Expansion entries for folders that still exist
// are kept; the cursor follows the current document when it is visible.
func (s *Sidebar) SetTree(roots []*doctree.Node) {
	s.roots = roots
	live := make(map[string]bool)
	for _, k := range doctree.FolderKeys(roots) {
		live[k] = true
	}
	for k := range s.expanded {
		if !live[k] {
			delete(s.expanded, k)
		}
	}
	s.rebuild()
	if i := s.indexOf(s.current); i >= 0 {
		s.cursor = i
	}
	s.ensureCursorVisible()
}

func (s *Sidebar) Roots() []*doctree.Node { return s.roots }
func (s *Sidebar) Current() string        { return s.current }
func (s *Sidebar) Cursor() int            { return s.cursor }
func (s *Sidebar) SetFocused(f bool)      { s.focused = f }

// SetSize sets the inner size in cells.
func (s *Sidebar) SetSize(w, h int) {
	s.width, s.height = max(w, 0), max(h, 0)
	s.ensureCursorVisible()
}

// SetCurrent marks path as the document on display and moves the cursor onto
// it when its row is visible.
func (s *Sidebar) SetCurrent(path string) {
	s.current = path
	if i := s.indexOf(path); i >= 0 {
		s.cursor = i
		s.ensureCursorVisible()
	}
}

// IsExpanded reports whether the folder key is open.
func (s *Sidebar) IsExpanded(key string) bool { return s.expanded[key] }

// ExpandedKeys returns the open folder keys in tree order.
func (s *Sidebar) ExpandedKeys() []string {
	var keys []string
	for _, k := range doctree.FolderKeys(s.roots) {
		if s.expanded[k] {
			keys = append(keys, k)
		}
	}
	return keys
}

// Toggle flips one folder.
func (s *Sidebar) Toggle(key string) {
	s.expanded[key] = !s.expanded[key]
	s.rebuild()
	s.ensureCursorVisible()
}

// ExpandAll opens every folder in the tree.
func (s *Sidebar) ExpandAll() {
	for _, k := range doctree.FolderKeys(s.roots) {
		s.expanded[k] = true
	}
	s.rebuild()
	s.ensureCursorVisible()
}

// CollapseAll clears the expansion map.
func (s *Sidebar) CollapseAll() {
	s.expanded = make(map[string]bool)
	s.rebuild()
	s.ensureCursorVisible()
}

// rebuild recomputes the visible rows from the tree and the expansion map.
func (s *Sidebar) rebuild() {
	var selected string
	if n := s.SelectedNode(); n != nil {
		selected = n.ID()
	}
	s.rows = s.rows[:0]
	doctree.Walk(s.roots, func(n *doctree.Node, depth int) bool {
		s.rows = append(s.rows, sidebarRow{node: n, depth: depth})
		return !n.IsFolder() || s.expanded[n.Key]
	})
	if i := s.indexOf(selected); i >= 0 {
		s.cursor = i
	}
	if s.cursor >= len(s.rows) {
		s.cursor = len(s.rows) - 1
	}
	if s.cursor < 0 {
		s.cursor = 0
	}
}

func (s *Sidebar) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i, r := range s.rows {
		if r.node.ID() == id {
			return i
		}
	}
	return -1
}

// RowCount is the number of visible tree rows.
func (s *Sidebar) RowCount() int { return len(s.rows) }

// SelectedNode returns the node under the cursor.
func (s *Sidebar) SelectedNode() *doctree.Node {
	if s.cursor >= 0 && s.cursor < len(s.rows) {
		return s.rows[s.cursor].node
	}
	return nil
}

func (s *Sidebar) MoveDown() {
	if s.cursor < len(s.rows)-1 {
		s.cursor++
		s.ensureCursorVisible()
	}
}

func (s *Sidebar) MoveUp() {
	if s.cursor > 0 {
		s.cursor--
		s.ensureCursorVisible()
	}
}

func (s *Sidebar) Top() {
	s.cursor = 0
	s.ensureCursorVisible()
}

func (s *Sidebar) Bottom() {
	if len(s.rows) > 0 {
		s.cursor = len(s.rows) - 1
		s.ensureCursorVisible()
	}
}

// PageDown moves the cursor one page of rows forward.
func (s *Sidebar) PageDown() {
	s.cursor = min(s.cursor+s.visibleCount(), len(s.rows)-1)
	s.cursor = max(s.cursor, 0)
	s.ensureCursorVisible()
}

// PageUp moves the cursor one page of rows back.
func (s *Sidebar) PageUp() {
	s.cursor = max(s.cursor-s.visibleCount(), 0)
	s.ensureCursorVisible()
}

// Activate acts on the cursor row: a folder toggles, a document is returned
// for selection.
func (s *Sidebar) Activate() (path string, ok bool) {
	n := s.SelectedNode()
	if n == nil {
		return "", false
	}
	if n.IsFolder() {
		s.Toggle(n.Key)
		return "", false
	}
	return n.Path, true
}

// Click handles a left click at (x, y) relative to the sidebar content. It
// returns a document path when a document row was clicked.
func (s *Sidebar) Click(x, y int) (path string, ok bool) {
	if y == 1 {
		expandEnd := lipgloss.Width(s.theme.Action.Render(expandAllLabel))
		collapseStart := expandEnd + lipgloss.Width(s.actionSep())
		switch {
		case x < expandEnd:
			s.ExpandAll()
		case x >= collapseStart:
			s.CollapseAll()
		}
		return "", false
	}
	i := s.offset + y - sidebarHeaderRows
	if y < sidebarHeaderRows || i >= min(len(s.rows), s.offset+s.visibleCount()) {
		return "", false
	}
	s.cursor = i
	return s.Activate()
}

// visibleCount is the number of tree rows that fit under the header,
// keeping one line for the position indicator when the list overflows.
func (s *Sidebar) visibleCount() int {
	n := s.height - sidebarHeaderRows
	if n <= 0 {
		n = 20
	}
	if len(s.rows) > n {
		n--
	}
	return max(n, 1)
}

// ensureCursorVisible scrolls just enough to keep the cursor on screen.
func (s *Sidebar) ensureCursorVisible() {
	if len(s.rows) == 0 {
		s.offset = 0
		return
	}
	visible := s.visibleCount()
	if s.cursor < s.offset {
		s.offset = s.cursor
	}
	if s.cursor >= s.offset+visible {
		s.offset = s.cursor - visible + 1
	}
	s.offset = max(min(s.offset, len(s.rows)-visible), 0)
}

func (s *Sidebar) actionSep() string { return s.theme.MutedText.Render(" · ") }

// View renders the header, the action row and the visible window of rows.
func (s *Sidebar) View() string {
	width := s.width
	if width <= 0 {
		width = 30
	}
	var sb strings.Builder
	sb.WriteString(s.theme.Header.Width(width).Render(runewidth.Truncate(sidebarTitle, max(width-2, 1), "…")))
	sb.WriteString("\n")
	sb.WriteString(s.theme.Action.Render(expandAllLabel))
	sb.WriteString(s.actionSep())
	sb.WriteString(s.theme.Action.Render(collapseAllLabel))

	if len(s.rows) == 0 {
		sb.WriteString("\n")
		sb.WriteString(s.theme.MutedText.Render("No documents."))
		return sb.String()
	}

	end := min(s.offset+s.visibleCount(), len(s.rows))
	for i := s.offset; i < end; i++ {
		sb.WriteString("\n")
		sb.WriteString(s.renderRow(s.rows[i], i == s.cursor, width))
	}
	if len(s.rows) > s.visibleCount() {
		sb.WriteString("\n")
		sb.WriteString(s.renderPositionIndicator(s.offset, end))
	}
	return sb.String()
}

func (s *Sidebar) renderRow(r sidebarRow, isCursor bool, width int) string {
	indent := strings.Repeat(" ", r.depth*sidebarIndent)
	chevron := "  "
	style := s.theme.Doc
	if r.node.IsFolder() {
		chevron = "▶ "
		if s.expanded[r.node.Key] {
			chevron = "▼ "
		}
		style = s.theme.Folder
	} else if r.node.Path == s.current {
		style = s.theme.Current
	}

	avail := max(width-runewidth.StringWidth(indent+chevron), 1)
	label := runewidth.Truncate(r.node.Label(), avail, "…")
	line := indent + s.theme.Chevron.Render(chevron) + style.Render(label)
	if isCursor && s.focused {
		pad := max(width-lipgloss.Width(line), 0)
		line = s.theme.Cursor.Render(indent+chevron+label+strings.Repeat(" ", pad))
	}
	return line
}

// renderPositionIndicator shows "Page X/Y (a-b of n)" for long lists.
func (s *Sidebar) renderPositionIndicator(start, end int) string {
	pageSize := s.visibleCount()
	total := len(s.rows)
	totalPages := max((total+pageSize-1)/pageSize, 1)
	page := min(s.offset/pageSize+1, totalPages)
	return s.theme.MutedText.Render(fmt.Sprintf(" Page %d/%d (%d-%d of %d)", page, totalPages, start+1, end, total))
}
