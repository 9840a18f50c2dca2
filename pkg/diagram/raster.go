package diagram

import (
	"image"
	"image/color"
	"io"
	"math"
	"strings"

	"git.sr.ht/~sbinet/gg"
	"github.com/mattn/go-runewidth"
	"golang.org/x/image/font/basicfont"
)

// One braille dot covers DotSize×DotSize image pixels at scale 1; a cell is
// 2×4 dots.
const DotSize = 4

// Braille dot bits indexed by [row][col] within a cell.
var brailleBits = [4][2]rune{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

// Transform maps image pixels to viewport pixels: v = p*Scale + (TX, TY).
type Transform struct {
	Scale  float64
	TX, TY float64
}

// Raster draws the scene into a cols×rows grid of braille characters and
// overlays node labels as text. Empty cells are spaces.
func (s *Scene) Raster(cols, rows int, t Transform) []string {
	if cols <= 0 || rows <= 0 {
		return nil
	}
	if t.Scale <= 0 {
		t.Scale = 1
	}
	dc := gg.NewContext(cols*2, rows*4)
	dc.Scale(1.0/DotSize, 1.0/DotSize)
	dc.Translate(t.TX, t.TY)
	dc.Scale(t.Scale, t.Scale)
	dc.SetColor(color.White)
	dc.SetLineWidth(1)

	for _, g := range s.Groups {
		dc.DrawRectangle(g.X, g.Y, g.W, g.H)
		dc.SetDash(2, 2)
		dc.Stroke()
		dc.SetDash()
	}
	for _, e := range s.Edges {
		if e.Style == EdgeDotted {
			dc.SetDash(1, 1)
		}
		dc.DrawLine(e.X1, e.Y1, e.X2, e.Y2)
		dc.Stroke()
		dc.SetDash()
		if e.ArrowEnd {
			fillArrow(dc, e.X1, e.Y1, e.X2, e.Y2)
		}
		if e.ArrowStart {
			fillArrow(dc, e.X2, e.Y2, e.X1, e.Y1)
		}
	}
	for _, n := range s.Nodes {
		traceNode(dc, n)
		dc.Stroke()
	}

	grid := brailleGrid(dc.Image(), cols, rows)
	s.overlayLabels(grid, t)

	out := make([]string, rows)
	for r := range grid {
		var b strings.Builder
		for _, cell := range grid[r] {
			b.WriteString(cell)
		}
		out[r] = b.String()
	}
	return out
}

func brailleGrid(img image.Image, cols, rows int) [][]string {
	grid := make([][]string, rows)
	for r := 0; r < rows; r++ {
		grid[r] = make([]string, cols)
		for c := 0; c < cols; c++ {
			var bits rune
			for dy := 0; dy < 4; dy++ {
				for dx := 0; dx < 2; dx++ {
					_, _, _, a := img.At(c*2+dx, r*4+dy).RGBA()
					if a > 0x4000 {
						bits |= brailleBits[dy][dx]
					}
				}
			}
			if bits == 0 {
				grid[r][c] = " "
			} else {
				grid[r][c] = string(0x2800 + bits)
			}
		}
	}
	return grid
}

// overlayLabels writes each node label centered on the node, truncated to
// the node's on-screen width. Labels that would not fit a single character
// are skipped.
func (s *Scene) overlayLabels(grid [][]string, t Transform) {
	rows := len(grid)
	if rows == 0 {
		return
	}
	cols := len(grid[0])
	for _, n := range s.Nodes {
		cx, cy := n.Center()
		vx, vy := cx*t.Scale+t.TX, cy*t.Scale+t.TY
		avail := int(n.W*t.Scale/CellWidth) - 2
		if avail < 1 || n.H*t.Scale < CellHeight {
			continue
		}
		label := runewidth.Truncate(n.Label, avail, "…")
		w := runewidth.StringWidth(label)
		row := int(math.Floor(vy / CellHeight))
		col := int(math.Floor(vx/CellWidth)) - w/2
		writeCells(grid, row, col, cols, label)
	}
}

func writeCells(grid [][]string, row, col, cols int, text string) {
	if row < 0 || row >= len(grid) {
		return
	}
	for _, r := range text {
		rw := runewidth.RuneWidth(r)
		if rw == 0 {
			continue
		}
		if col >= 0 && col+rw <= cols {
			grid[row][col] = string(r)
			if rw == 2 {
				grid[row][col+1] = ""
			}
		}
		col += rw
	}
}

func fillArrow(dc *gg.Context, x1, y1, x2, y2 float64) {
	xs, ys := arrowHead(x1, y1, x2, y2)
	if len(xs) < 3 {
		return
	}
	dc.NewSubPath()
	dc.MoveTo(float64(xs[0]), float64(ys[0]))
	dc.LineTo(float64(xs[1]), float64(ys[1]))
	dc.LineTo(float64(xs[2]), float64(ys[2]))
	dc.ClosePath()
	dc.Fill()
}

// traceNode adds the node outline to the current path.
func traceNode(dc *gg.Context, n PlacedNode) {
	switch n.Shape {
	case ShapeRound:
		dc.DrawRoundedRectangle(n.X, n.Y, n.W, n.H, 10)
	case ShapeStadium:
		dc.DrawRoundedRectangle(n.X, n.Y, n.W, n.H, n.H/2)
	case ShapeCircle:
		dc.DrawEllipse(n.X+n.W/2, n.Y+n.H/2, n.W/2, n.H/2)
	case ShapeCylinder:
		dc.DrawRectangle(n.X, n.Y+5, n.W, n.H-10)
		dc.DrawEllipse(n.X+n.W/2, n.Y+5, n.W/2, 5)
	case ShapeSubroutine:
		dc.DrawRectangle(n.X, n.Y, n.W, n.H)
		dc.DrawLine(n.X+8, n.Y, n.X+8, n.Y+n.H)
		dc.DrawLine(n.X+n.W-8, n.Y, n.X+n.W-8, n.Y+n.H)
	default:
		xs, ys, ok := outline(n)
		if !ok {
			dc.DrawRectangle(n.X, n.Y, n.W, n.H)
			return
		}
		dc.NewSubPath()
		dc.MoveTo(xs[0], ys[0])
		for i := 1; i < len(xs); i++ {
			dc.LineTo(xs[i], ys[i])
		}
		dc.ClosePath()
	}
}

// WritePNG renders the scene as a PNG at the given pixel scale.
func (s *Scene) WritePNG(w io.Writer, scale float64, p Palette) error {
	if scale <= 0 {
		scale = 1
	}
	dc := gg.NewContext(int(math.Ceil(s.Width*scale)), int(math.Ceil(s.Height*scale)))
	dc.Scale(scale, scale)
	dc.SetColor(p.Background)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	for _, g := range s.Groups {
		dc.SetColor(p.GroupFill)
		dc.DrawRectangle(g.X, g.Y, g.W, g.H)
		dc.Fill()
		dc.SetColor(p.NodeStroke)
		dc.SetLineWidth(1)
		dc.DrawRectangle(g.X, g.Y, g.W, g.H)
		dc.Stroke()
		dc.SetColor(p.Text)
		dc.DrawStringAnchored(g.Label, g.X+8, g.Y+11, 0, 0.5)
	}

	for _, e := range s.Edges {
		dc.SetColor(p.Edge)
		switch e.Style {
		case EdgeThick:
			dc.SetLineWidth(3 * scale)
		case EdgeDotted:
			dc.SetLineWidth(1.5 * scale)
			dc.SetDash(4*scale, 3*scale)
		default:
			dc.SetLineWidth(1.5 * scale)
		}
		dc.DrawLine(e.X1, e.Y1, e.X2, e.Y2)
		dc.Stroke()
		dc.SetDash()
		if e.ArrowEnd {
			fillArrow(dc, e.X1, e.Y1, e.X2, e.Y2)
		}
		if e.ArrowStart {
			fillArrow(dc, e.X2, e.Y2, e.X1, e.Y1)
		}
	}

	for _, n := range s.Nodes {
		dc.SetColor(p.NodeFill)
		traceNode(dc, n)
		dc.Fill()
		dc.SetColor(p.NodeStroke)
		dc.SetLineWidth(1.5 * scale)
		traceNode(dc, n)
		dc.Stroke()
		dc.SetColor(p.Text)
		cx, cy := n.Center()
		dc.DrawStringAnchored(n.Label, cx, cy, 0.5, 0.5)
	}

	for _, e := range s.Edges {
		if e.Label == "" {
			continue
		}
		mx, my := (e.X1+e.X2)/2, (e.Y1+e.Y2)/2
		lw := float64(len([]rune(e.Label))*7 + 8)
		dc.SetColor(p.LabelBg)
		dc.DrawRectangle(mx-lw/2, my-9, lw, 18)
		dc.Fill()
		dc.SetColor(p.Text)
		dc.DrawStringAnchored(e.Label, mx, my, 0.5, 0.5)
	}

	return dc.EncodePNG(w)
}
