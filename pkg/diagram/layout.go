package diagram

import (
	"math"
	"sort"

	"github.com/mattn/go-runewidth"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Scene geometry, in image pixels. One terminal cell is 8×16 px, so labels
// are measured in cells and scaled by CellWidth.
const (
	CellWidth  = 8
	CellHeight = 16

	nodeHeight  = 48
	minNodeW    = 64
	labelPad    = 32
	rankGap     = 56
	nodeGap     = 32
	padding     = 24
	groupPad    = 16
	groupHeader = 20
)

// PlacedNode is a node with its bounding box.
type PlacedNode struct {
	ID, Label  string
	Shape      Shape
	X, Y, W, H float64
	Rank       int
}

// Center returns the middle of the node's box.
func (n PlacedNode) Center() (float64, float64) { return n.X + n.W/2, n.Y + n.H/2 }

// PlacedEdge is an edge clipped to its endpoints' boxes.
type PlacedEdge struct {
	Edge
	X1, Y1, X2, Y2 float64
}

// PlacedGroup is a subgraph box drawn behind its members.
type PlacedGroup struct {
	ID, Label  string
	X, Y, W, H float64
	Depth      int
}

// Scene is a laid-out graph ready to draw.
type Scene struct {
	Width, Height float64
	Direction     Direction
	Nodes         []PlacedNode
	Edges         []PlacedEdge
	Groups        []PlacedGroup
}

func nodeSize(n *Node) (float64, float64) {
	w := float64(runewidth.StringWidth(n.Label)*CellWidth + labelPad)
	h := float64(nodeHeight)
	switch n.Shape {
	case ShapeRhombus:
		w += 32
		h += 16
	case ShapeHexagon:
		w += 24
	case ShapeCircle:
		w = math.Max(w, h)
		h = w
	}
	return math.Max(w, minNodeW), h
}

// Layout ranks nodes along the flow direction (longest path from the
// sources), orders each rank by declaration and one barycenter sweep, and
// places boxes rank by rank. Edges that close a cycle are drawn but do not
// constrain ranking.
func Layout(g *Graph) *Scene {
	scene := &Scene{Direction: g.Direction}
	if len(g.Nodes) == 0 {
		scene.Width, scene.Height = 2*padding+minNodeW, 2*padding+nodeHeight
		return scene
	}

	ranks := rankNodes(g)

	maxRank := 0
	for _, r := range ranks {
		maxRank = max(maxRank, r)
	}
	layers := make([][]int, maxRank+1)
	for i := range g.Nodes {
		layers[ranks[i]] = append(layers[ranks[i]], i)
	}
	orderLayers(g, layers)

	placed := make([]PlacedNode, len(g.Nodes))
	for i, n := range g.Nodes {
		w, h := nodeSize(n)
		placed[i] = PlacedNode{ID: n.ID, Label: n.Label, Shape: n.Shape, W: w, H: h, Rank: ranks[i]}
	}
	place(g.Direction, layers, placed)

	scene.Nodes = placed
	scene.Groups = placeGroups(g, placed)
	scene.Width, scene.Height = bounds(scene)

	for _, e := range g.Edges {
		a, b := placed[g.index[e.From]], placed[g.index[e.To]]
		ax, ay := a.Center()
		bx, by := b.Center()
		x1, y1 := clipToBox(a, bx, by)
		x2, y2 := clipToBox(b, ax, ay)
		scene.Edges = append(scene.Edges, PlacedEdge{Edge: e, X1: x1, Y1: y1, X2: x2, Y2: y2})
	}
	return scene
}

// rankNodes assigns each node the length of the longest path reaching it.
func rankNodes(g *Graph) []int {
	n := len(g.Nodes)
	adj := make([][]int, n)
	for _, e := range g.Edges {
		a, b := g.index[e.From], g.index[e.To]
		if a != b {
			adj[a] = append(adj[a], b)
		}
	}

	// Depth-first search in declaration order; edges into a node still on
	// the stack close a cycle and are left out of the ranking graph.
	dag := simple.NewDirectedGraph()
	for i := 0; i < n; i++ {
		dag.AddNode(simple.Node(i))
	}
	state := make([]int8, n) // 0 new, 1 on stack, 2 done
	var visit func(u int)
	visit = func(u int) {
		state[u] = 1
		for _, v := range adj[u] {
			if state[v] == 1 {
				continue
			}
			dag.SetEdge(dag.NewEdge(simple.Node(u), simple.Node(v)))
			if state[v] == 0 {
				visit(v)
			}
		}
		state[u] = 2
	}
	for i := 0; i < n; i++ {
		if state[i] == 0 {
			visit(i)
		}
	}

	order, err := topo.Sort(dag)
	ranks := make([]int, n)
	if err != nil {
		// Unreachable: back edges were removed above.
		return ranks
	}
	for _, node := range order {
		v := int(node.ID())
		preds := dag.To(node.ID())
		for preds.Next() {
			u := int(preds.Node().ID())
			ranks[v] = max(ranks[v], ranks[u]+1)
		}
	}
	return ranks
}

// orderLayers keeps declaration order in the first rank and sorts later ranks
// by the mean position of their predecessors in the rank above.
func orderLayers(g *Graph, layers [][]int) {
	preds := make([][]int, len(g.Nodes))
	for _, e := range g.Edges {
		a, b := g.index[e.From], g.index[e.To]
		if a != b {
			preds[b] = append(preds[b], a)
		}
	}
	for r := 1; r < len(layers); r++ {
		pos := make(map[int]float64, len(layers[r-1]))
		for i, v := range layers[r-1] {
			pos[v] = float64(i)
		}
		key := make(map[int]float64, len(layers[r]))
		for i, v := range layers[r] {
			sum, cnt := 0.0, 0
			for _, u := range preds[v] {
				if p, ok := pos[u]; ok {
					sum += p
					cnt++
				}
			}
			if cnt > 0 {
				key[v] = sum / float64(cnt)
			} else {
				key[v] = float64(i)
			}
		}
		layer := layers[r]
		sort.SliceStable(layer, func(i, j int) bool { return key[layer[i]] < key[layer[j]] })
	}
}

// place assigns coordinates. Ranks run along the main axis; nodes within a
// rank are spread on the cross axis and the rank is centered.
func place(dir Direction, layers [][]int, nodes []PlacedNode) {
	main := func(n PlacedNode) float64 { return n.H }
	cross := func(n PlacedNode) float64 { return n.W }
	if !dir.Vertical() {
		main = func(n PlacedNode) float64 { return n.W }
		cross = func(n PlacedNode) float64 { return n.H }
	}

	rankSize := make([]float64, len(layers))
	crossSize := make([]float64, len(layers))
	widest := 0.0
	for r, layer := range layers {
		for i, v := range layer {
			rankSize[r] = math.Max(rankSize[r], main(nodes[v]))
			crossSize[r] += cross(nodes[v])
			if i > 0 {
				crossSize[r] += nodeGap
			}
		}
		widest = math.Max(widest, crossSize[r])
	}

	offset := float64(padding + groupHeader)
	for r, layer := range layers {
		c := padding + groupPad + (widest-crossSize[r])/2
		for _, v := range layer {
			n := &nodes[v]
			m := offset + (rankSize[r]-main(*n))/2
			if dir.Vertical() {
				n.X, n.Y = c, m
			} else {
				n.X, n.Y = m, c
			}
			c += cross(*n) + nodeGap
		}
		offset += rankSize[r] + rankGap
	}

	if dir == BottomUp || dir == RightLeft {
		total := offset - rankGap + padding
		for i := range nodes {
			if dir == BottomUp {
				nodes[i].Y = total - nodes[i].Y - nodes[i].H + groupHeader
			} else {
				nodes[i].X = total - nodes[i].X - nodes[i].W + groupHeader
			}
		}
	}
}

func placeGroups(g *Graph, nodes []PlacedNode) []PlacedGroup {
	byID := make(map[string]*Group, len(g.Groups))
	for _, grp := range g.Groups {
		byID[grp.ID] = grp
	}
	depth := func(grp *Group) int {
		d := 0
		for p := grp.Parent; p != ""; p = byID[p].Parent {
			d++
		}
		return d
	}
	// members includes nodes of nested groups.
	var members func(id string) []int
	members = func(id string) []int {
		var out []int
		for _, nid := range byID[id].Nodes {
			out = append(out, g.index[nid])
		}
		for _, child := range g.Groups {
			if child.Parent == id {
				out = append(out, members(child.ID)...)
			}
		}
		return out
	}

	var out []PlacedGroup
	for _, grp := range g.Groups {
		idx := members(grp.ID)
		if len(idx) == 0 {
			continue
		}
		minX, minY := math.Inf(1), math.Inf(1)
		maxX, maxY := math.Inf(-1), math.Inf(-1)
		for _, i := range idx {
			n := nodes[i]
			minX, minY = math.Min(minX, n.X), math.Min(minY, n.Y)
			maxX, maxY = math.Max(maxX, n.X+n.W), math.Max(maxY, n.Y+n.H)
		}
		d := depth(grp)
		pad := float64(groupPad - 4*d)
		out = append(out, PlacedGroup{
			ID:    grp.ID,
			Label: grp.Label,
			X:     minX - pad,
			Y:     minY - pad - groupHeader,
			W:     maxX - minX + 2*pad,
			H:     maxY - minY + 2*pad + groupHeader,
			Depth: d,
		})
	}
	// Outer groups first so inner boxes draw on top.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Depth < out[j].Depth })
	return out
}

func bounds(s *Scene) (float64, float64) {
	w, h := 0.0, 0.0
	for _, n := range s.Nodes {
		w, h = math.Max(w, n.X+n.W), math.Max(h, n.Y+n.H)
	}
	for _, g := range s.Groups {
		w, h = math.Max(w, g.X+g.W), math.Max(h, g.Y+g.H)
	}
	return math.Ceil(w + padding), math.Ceil(h + padding)
}

// clipToBox returns where the segment from the center of n towards (tx, ty)
// leaves n's bounding box.
func clipToBox(n PlacedNode, tx, ty float64) (float64, float64) {
	cx, cy := n.Center()
	dx, dy := tx-cx, ty-cy
	if dx == 0 && dy == 0 {
		return cx, cy
	}
	hw, hh := n.W/2, n.H/2
	t := math.Inf(1)
	if dx != 0 {
		t = math.Min(t, hw/math.Abs(dx))
	}
	if dy != 0 {
		t = math.Min(t, hh/math.Abs(dy))
	}
	return cx + dx*t, cy + dy*t
}
