// Package diagram compiles flowchart descriptions (the mermaid "graph" /
// "flowchart" subset) into laid-out scenes that render as SVG, PNG, or a
// braille raster for the terminal.
package diagram

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedDiagram is returned for diagram types other than flowcharts.
	ErrUnsupportedDiagram = errors.New("unsupported diagram type")
	// ErrRenderIDInUse is returned when a render id is reused while its first
	// compile is still running.
	ErrRenderIDInUse = errors.New("render id already in use")
)

// SyntaxError reports a parse failure at a 1-based source line.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("Parse error on line %d: %s", e.Line, e.Msg)
}

// Direction is the flow direction of the main axis.
type Direction string

const (
	TopDown   Direction = "TD"
	BottomUp  Direction = "BT"
	LeftRight Direction = "LR"
	RightLeft Direction = "RL"
)

// Vertical reports whether ranks stack top to bottom (or bottom to top).
func (d Direction) Vertical() bool { return d == TopDown || d == BottomUp }

// Shape is the outline of a node.
type Shape int

const (
	ShapeRect       Shape = iota // A[text]
	ShapeRound                   // A(text)
	ShapeStadium                 // A([text])
	ShapeSubroutine              // A[[text]]
	ShapeCylinder                // A[(text)]
	ShapeCircle                  // A((text))
	ShapeAsymmetric              // A>text]
	ShapeRhombus                 // A{text}
	ShapeHexagon                 // A{{text}}
)

// EdgeStyle is the stroke of an edge.
type EdgeStyle int

const (
	EdgeSolid EdgeStyle = iota
	EdgeDotted
	EdgeThick
)

// Node is a vertex as declared in the source.
type Node struct {
	ID    string
	Label string
	Shape Shape
	Group string // innermost subgraph id, empty at top level
	Line  int    // line of first mention
}

// Edge connects two node ids.
type Edge struct {
	From, To   string
	Label      string
	Style      EdgeStyle
	ArrowEnd   bool
	ArrowStart bool
}

// Group is a subgraph.
type Group struct {
	ID     string
	Label  string
	Parent string
	Nodes  []string
}

// Graph is a parsed flowchart. Nodes are in declaration order.
type Graph struct {
	Direction Direction
	Nodes     []*Node
	Edges     []Edge
	Groups    []*Group

	index map[string]int
}

func newGraph() *Graph {
	return &Graph{Direction: TopDown, index: make(map[string]int)}
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *Node {
	if i, ok := g.index[id]; ok {
		return g.Nodes[i]
	}
	return nil
}

// upsert records a node mention. A later mention with an explicit label or
// shape fills in a node first seen as a bare id.
func (g *Graph) upsert(ref nodeRef, group string, line int) {
	if i, ok := g.index[ref.id]; ok {
		n := g.Nodes[i]
		if ref.explicit {
			n.Label, n.Shape = ref.label, ref.shape
		}
		return
	}
	label := ref.id
	if ref.explicit {
		label = ref.label
	}
	g.index[ref.id] = len(g.Nodes)
	g.Nodes = append(g.Nodes, &Node{ID: ref.id, Label: label, Shape: ref.shape, Group: group, Line: line})
	for _, grp := range g.Groups {
		if grp.ID == group {
			grp.Nodes = append(grp.Nodes, ref.id)
			break
		}
	}
}
