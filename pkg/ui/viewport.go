package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/docview/pkg/diagram"
)

// Zoom and fit parameters of a diagram viewport.
const (
	MinScale           = 0.2
	MaxScale           = 15.0
	ScaleStep          = 1.2
	FitDelay           = 80 * time.Millisecond
	FullscreenFitDelay = 120 * time.Millisecond

	// panStep is the keyboard pan distance in cells.
	panStep = 4
)

// ClampScale bounds s to [MinScale, MaxScale].
func ClampScale(s float64) float64 {
	return math.Min(MaxScale, math.Max(MinScale, s))
}

// FitTransform returns the scale and translation that center an iw×ih image
// in a vw×vh viewport. ok is false when any dimension is not positive.
func FitTransform(vw, vh, iw, ih float64) (scale, tx, ty float64, ok bool) {
	if vw <= 0 || vh <= 0 || iw <= 0 || ih <= 0 {
		return 0, 0, 0, false
	}
	scale = ClampScale(math.Min(vw/iw, vh/ih))
	return scale, (vw - iw*scale) / 2, (vh - ih*scale) / 2, true
}

// fitMsg is the delayed fit of one viewport. Seq guards against ticks that
// were superseded by a later schedule.
type fitMsg struct {
	id  string
	seq int
}

type toolbarAction int

const (
	actionNone toolbarAction = iota
	actionZoomIn
	actionZoomOut
	actionFit
	actionFullscreen
)

type toolbarButton struct {
	x0, x1 int // [x0, x1) columns on the toolbar row
	action toolbarAction
}

type panAnchor struct {
	x, y   int
	tx, ty float64
}

// DiagramViewport shows one compiled diagram with zoom, pan and fullscreen.
// Translation is in viewport pixels; one cell is diagram.CellWidth ×
// diagram.CellHeight pixels.
type DiagramViewport struct {
	id    string
	image *diagram.Image
	host  *FullscreenHost
	theme Theme

	scale      float64
	tx, ty     float64
	panning    bool
	anchor     panAnchor
	fullscreen bool
	focused    bool

	cols, rows int
	fitSeq     int
	buttons    []toolbarButton
}

// NewDiagramViewport wraps img at scale 1 with no translation. id must be
// unique among live viewports; it is the fullscreen token key.
func NewDiagramViewport(id string, img *diagram.Image, host *FullscreenHost, theme Theme) *DiagramViewport {
	v := &DiagramViewport{id: id, image: img, host: host, theme: theme, scale: 1}
	v.layoutToolbar()
	return v
}

// Init schedules the initial fit.
func (v *DiagramViewport) Init() tea.Cmd { return v.ScheduleFit(FitDelay) }

func (v *DiagramViewport) ID() string                    { return v.id }
func (v *DiagramViewport) Image() *diagram.Image         { return v.image }
func (v *DiagramViewport) Scale() float64                { return v.scale }
func (v *DiagramViewport) Translate() (float64, float64) { return v.tx, v.ty }
func (v *DiagramViewport) IsPanning() bool               { return v.panning }
func (v *DiagramViewport) IsFullscreen() bool            { return v.fullscreen }
func (v *DiagramViewport) SetFocused(f bool)             { v.focused = f }
func (v *DiagramViewport) Size() (cols, rows int)        { return v.cols, v.rows }

func (v *DiagramViewport) pixels() (float64, float64) { return cellsToPx(v.cols, v.rows) }

func cellsToPx(c, r int) (float64, float64) {
	return float64(c * diagram.CellWidth), float64(r * diagram.CellHeight)
}

// SetImage swaps in a recompiled image and schedules a fit. The viewport
// keeps its id so a fullscreen session survives a live reload.
func (v *DiagramViewport) SetImage(img *diagram.Image) tea.Cmd {
	v.image = img
	return v.ScheduleFit(FitDelay)
}

// SetSize sets the raster area in cells, excluding the toolbar, frame and
// hint line.
func (v *DiagramViewport) SetSize(cols, rows int) {
	v.cols, v.rows = max(cols, 0), max(rows, 0)
}

// Height is the number of lines View renders.
func (v *DiagramViewport) Height() int { return v.rows + 4 }

// Label is the zoom percentage shown in the toolbar.
func (v *DiagramViewport) Label() string {
	return fmt.Sprintf("%d%%", int(math.Round(v.scale*100)))
}

func (v *DiagramViewport) ZoomIn()  { v.scale = ClampScale(v.scale * ScaleStep) }
func (v *DiagramViewport) ZoomOut() { v.scale = ClampScale(v.scale / ScaleStep) }

// Fit scales the image to the viewport and centers it. Nothing happens when
// either the viewport or the image has no area.
func (v *DiagramViewport) Fit() {
	if v.image == nil {
		return
	}
	vw, vh := v.pixels()
	s, tx, ty, ok := FitTransform(vw, vh, v.image.Width(), v.image.Height())
	if !ok {
		return
	}
	v.scale, v.tx, v.ty = s, tx, ty
}

// ScheduleFit returns a command that fits the viewport after delay, unless
// another fit is scheduled first.
func (v *DiagramViewport) ScheduleFit(delay time.Duration) tea.Cmd {
	v.fitSeq++
	msg := fitMsg{id: v.id, seq: v.fitSeq}
	return tea.Tick(delay, func(time.Time) tea.Msg { return msg })
}

// PanBy moves the image by whole cells.
func (v *DiagramViewport) PanBy(dc, dr int) {
	dx, dy := cellsToPx(dc, dr)
	v.tx += dx
	v.ty += dy
}

// ToggleFullscreen asks the host to enter or leave fullscreen. The state
// only changes when the host answers.
func (v *DiagramViewport) ToggleFullscreen() tea.Cmd {
	if v.host == nil {
		return nil
	}
	if v.fullscreen {
		return v.host.Exit(v.id)
	}
	return v.host.Request(v.id)
}

// EndPan drops any drag in progress.
func (v *DiagramViewport) EndPan() { v.panning = false }

// Update handles fit ticks, fullscreen changes and focus loss.
func (v *DiagramViewport) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case fitMsg:
		if msg.id == v.id && msg.seq == v.fitSeq {
			v.Fit()
		}
	case FullscreenChangedMsg:
		was := v.fullscreen
		v.fullscreen = msg.Owner != "" && msg.Owner == v.id
		if v.fullscreen && !was {
			return v.ScheduleFit(FullscreenFitDelay)
		}
	case tea.BlurMsg:
		v.EndPan()
	}
	return nil
}

// Mouse handles a mouse event with coordinates relative to the top-left of
// the view. Motion and release are honored anywhere once a drag started.
func (v *DiagramViewport) Mouse(msg tea.MouseMsg) tea.Cmd {
	x, y := msg.X, msg.Y
	switch msg.Action {
	case tea.MouseActionMotion:
		if v.panning {
			v.tx = v.anchor.tx + float64((x-v.anchor.x)*diagram.CellWidth)
			v.ty = v.anchor.ty + float64((y-v.anchor.y)*diagram.CellHeight)
		}
		return nil
	case tea.MouseActionRelease:
		v.EndPan()
		return nil
	}

	switch msg.Button {
	case tea.MouseButtonWheelUp:
		if v.inCanvas(x, y) {
			v.ZoomIn()
		}
	case tea.MouseButtonWheelDown:
		if v.inCanvas(x, y) {
			v.ZoomOut()
		}
	case tea.MouseButtonLeft:
		if y == 0 {
			return v.press(v.buttonAt(x))
		}
		if v.inCanvas(x, y) {
			v.anchor = panAnchor{x: x, y: y, tx: v.tx, ty: v.ty}
			v.panning = true
		}
	}
	return nil
}

// inCanvas reports whether (x, y) is inside the framed raster area.
func (v *DiagramViewport) inCanvas(x, y int) bool {
	return x >= 1 && x <= v.cols && y >= 2 && y < 2+v.rows
}

func (v *DiagramViewport) buttonAt(x int) toolbarAction {
	for _, b := range v.buttons {
		if x >= b.x0 && x < b.x1 {
			return b.action
		}
	}
	return actionNone
}

func (v *DiagramViewport) press(a toolbarAction) tea.Cmd {
	switch a {
	case actionZoomIn:
		v.ZoomIn()
	case actionZoomOut:
		v.ZoomOut()
	case actionFit:
		v.Fit()
	case actionFullscreen:
		return v.ToggleFullscreen()
	}
	return nil
}

type toolbarLabel struct {
	text   string
	action toolbarAction
}

func (v *DiagramViewport) toolbarLabels() []toolbarLabel {
	fs := "⛶"
	if v.fullscreen {
		fs = "✕"
	}
	return []toolbarLabel{
		{"+", actionZoomIn},
		{"−", actionZoomOut},
		{"Reset", actionFit},
		{fs, actionFullscreen},
	}
}

// layoutToolbar records the button columns for hit testing.
func (v *DiagramViewport) layoutToolbar() []string {
	var parts []string
	v.buttons = v.buttons[:0]
	x := 0
	for _, l := range v.toolbarLabels() {
		s := v.theme.Button.Render(l.text)
		w := lipgloss.Width(s)
		v.buttons = append(v.buttons, toolbarButton{x0: x, x1: x + w, action: l.action})
		parts = append(parts, s)
		x += w + 1
	}
	return parts
}

// View renders the toolbar, the framed raster and the hint line.
func (v *DiagramViewport) View() string {
	parts := v.layoutToolbar()
	toolbar := strings.Join(parts, " ") + "  " + v.theme.ZoomLabel.Render(v.Label())

	var lines []string
	if v.image != nil && v.cols > 0 && v.rows > 0 {
		lines = v.image.Scene.Raster(v.cols, v.rows, diagram.Transform{Scale: v.scale, TX: v.tx, TY: v.ty})
	}
	for len(lines) < v.rows {
		lines = append(lines, strings.Repeat(" ", v.cols))
	}
	canvas := v.theme.Canvas.Render(strings.Join(lines, "\n"))
	frame := v.theme.CanvasFrame
	if v.focused {
		frame = v.theme.CanvasFocus
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		toolbar,
		frame.Render(canvas),
		v.theme.Hint.Render("Scroll: zoom · Drag: pan"),
	)
}
