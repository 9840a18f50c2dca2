package diagram

import (
	"fmt"
	"image/color"
	"io"
	"math"

	svg "github.com/ajstarks/svgo"
)

// Palette is the set of colors a scene is drawn with.
type Palette struct {
	Background color.RGBA
	NodeFill   color.RGBA
	NodeStroke color.RGBA
	Text       color.RGBA
	Edge       color.RGBA
	GroupFill  color.RGBA
	LabelBg    color.RGBA
}

// DarkPalette matches the viewer's dark surface.
var DarkPalette = Palette{
	Background: color.RGBA{0x0c, 0x0c, 0x0e, 0xff},
	NodeFill:   color.RGBA{0x1e, 0x29, 0x3b, 0xff},
	NodeStroke: color.RGBA{0x33, 0x41, 0x55, 0xff},
	Text:       color.RGBA{0xe4, 0xe4, 0xe7, 0xff},
	Edge:       color.RGBA{0x64, 0x74, 0x8b, 0xff},
	GroupFill:  color.RGBA{0x15, 0x1b, 0x26, 0xff},
	LabelBg:    color.RGBA{0x0c, 0x0c, 0x0e, 0xff},
}

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func ri(f float64) int { return int(math.Round(f)) }

// WriteSVG renders the scene as a standalone SVG document whose root element
// carries the given id.
func WriteSVG(w io.Writer, id string, s *Scene, p Palette) error {
	canvas := svg.New(w)
	width, height := ri(s.Width), ri(s.Height)
	canvas.Start(width, height,
		fmt.Sprintf(`id="%s"`, id),
		fmt.Sprintf(`viewBox="0 0 %d %d"`, width, height),
		`role="img"`,
	)
	canvas.Rect(0, 0, width, height, "fill:"+css(p.Background))

	for _, g := range s.Groups {
		canvas.Rect(ri(g.X), ri(g.Y), ri(g.W), ri(g.H),
			fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1;stroke-dasharray:4 3", css(p.GroupFill), css(p.NodeStroke)))
		if g.Label != "" {
			canvas.Text(ri(g.X+8), ri(g.Y+15), g.Label,
				fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(p.Text)))
		}
	}

	for _, e := range s.Edges {
		writeEdgeSVG(canvas, e, p)
	}
	for _, n := range s.Nodes {
		writeNodeSVG(canvas, n, p)
	}
	for _, e := range s.Edges {
		if e.Label == "" {
			continue
		}
		mx, my := (e.X1+e.X2)/2, (e.Y1+e.Y2)/2
		lw := float64(len([]rune(e.Label))*7 + 8)
		canvas.Rect(ri(mx-lw/2), ri(my-9), ri(lw), 18, "fill:"+css(p.LabelBg))
		canvas.Text(ri(mx), ri(my+4), e.Label,
			fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace;text-anchor:middle", css(p.Text)))
	}

	canvas.End()
	return nil
}

func edgeStyle(e PlacedEdge, p Palette) string {
	style := fmt.Sprintf("stroke:%s;fill:none", css(p.Edge))
	switch e.Style {
	case EdgeDotted:
		style += ";stroke-width:1.5;stroke-dasharray:4 3"
	case EdgeThick:
		style += ";stroke-width:3"
	default:
		style += ";stroke-width:1.5"
	}
	return style
}

func writeEdgeSVG(canvas *svg.SVG, e PlacedEdge, p Palette) {
	canvas.Line(ri(e.X1), ri(e.Y1), ri(e.X2), ri(e.Y2), edgeStyle(e, p))
	if e.ArrowEnd {
		xs, ys := arrowHead(e.X1, e.Y1, e.X2, e.Y2)
		canvas.Polygon(xs, ys, "fill:"+css(p.Edge))
	}
	if e.ArrowStart {
		xs, ys := arrowHead(e.X2, e.Y2, e.X1, e.Y1)
		canvas.Polygon(xs, ys, "fill:"+css(p.Edge))
	}
}

// arrowHead returns a triangle pointing at (x2, y2) along the segment.
func arrowHead(x1, y1, x2, y2 float64) ([]int, []int) {
	const length, half = 9.0, 4.5
	dx, dy := x2-x1, y2-y1
	d := math.Hypot(dx, dy)
	if d == 0 {
		return []int{ri(x2)}, []int{ri(y2)}
	}
	ux, uy := dx/d, dy/d
	bx, by := x2-ux*length, y2-uy*length
	return []int{ri(x2), ri(bx - uy*half), ri(bx + uy*half)},
		[]int{ri(y2), ri(by + ux*half), ri(by - ux*half)}
}

// outline returns the polygon for shapes drawn as polygons.
func outline(n PlacedNode) ([]float64, []float64, bool) {
	x, y, w, h := n.X, n.Y, n.W, n.H
	switch n.Shape {
	case ShapeRhombus:
		return []float64{x + w/2, x + w, x + w/2, x}, []float64{y, y + h/2, y + h, y + h/2}, true
	case ShapeHexagon:
		k := math.Min(16, w/4)
		return []float64{x + k, x + w - k, x + w, x + w - k, x + k, x},
			[]float64{y, y, y + h/2, y + h, y + h, y + h/2}, true
	case ShapeAsymmetric:
		k := math.Min(14, w/5)
		return []float64{x, x + w, x + w, x, x + k}, []float64{y, y, y + h, y + h, y + h/2}, true
	}
	return nil, nil, false
}

func toInts(fs []float64) []int {
	out := make([]int, len(fs))
	for i, f := range fs {
		out[i] = ri(f)
	}
	return out
}

func writeNodeSVG(canvas *svg.SVG, n PlacedNode, p Palette) {
	style := fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1.5", css(p.NodeFill), css(p.NodeStroke))
	x, y, w, h := ri(n.X), ri(n.Y), ri(n.W), ri(n.H)

	switch n.Shape {
	case ShapeRound:
		canvas.Roundrect(x, y, w, h, 10, 10, style)
	case ShapeStadium:
		canvas.Roundrect(x, y, w, h, h/2, h/2, style)
	case ShapeCircle:
		canvas.Ellipse(x+w/2, y+h/2, w/2, h/2, style)
	case ShapeSubroutine:
		canvas.Rect(x, y, w, h, style)
		canvas.Line(x+8, y, x+8, y+h, style)
		canvas.Line(x+w-8, y, x+w-8, y+h, style)
	case ShapeCylinder:
		canvas.Rect(x, y+5, w, h-10, style)
		canvas.Ellipse(x+w/2, y+h-5, w/2, 5, style)
		canvas.Ellipse(x+w/2, y+5, w/2, 5, style)
	default:
		if xs, ys, ok := outline(n); ok {
			canvas.Polygon(toInts(xs), toInts(ys), style)
		} else {
			canvas.Rect(x, y, w, h, style)
		}
	}

	cx, cy := n.Center()
	canvas.Text(ri(cx), ri(cy+5), n.Label,
		fmt.Sprintf("fill:%s;font-size:14px;font-family:monospace;text-anchor:middle", css(p.Text)))
}
