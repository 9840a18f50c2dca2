// Package testutil provides fixture generators for flowchart topologies and
// numbered documentation trees. All generators produce deterministic output
// for reproducible tests and benchmarks.
package testutil

import (
	"fmt"
	"math/rand"
	"path"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// GraphFixture is an abstract directed graph. Edges point in flow direction:
// [from_idx, to_idx].
type GraphFixture struct {
	Description string
	Nodes       []string
	Edges       [][2]int
	Properties  Properties
}

// Properties holds what a fixture is known to satisfy.
type Properties struct {
	HasCycles   bool
	IsConnected bool
	// ExpectedDepth is the longest path length, valid for acyclic fixtures.
	ExpectedDepth int
}

// GeneratorConfig controls fixture generation.
type GeneratorConfig struct {
	Seed      int64  // Random seed (0 = 42)
	Direction string // flowchart direction for ToFlowchart (default TD)
	// DiagramEvery puts a diagram in every n-th generated document; 0 disables.
	DiagramEvery int
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{Seed: 42, Direction: "TD", DiagramEvery: 2}
}

// Generator creates fixtures.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	if cfg.Direction == "" {
		cfg.Direction = "TD"
	}
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
}

// NewDefault creates a Generator with default config.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

// ── Topologies ──

// Chain is n0 --> n1 --> ... --> n{size-1}.
func (g *Generator) Chain(size int) GraphFixture {
	nodes := make([]string, size)
	edges := make([][2]int, 0, max(size-1, 0))
	for i := 0; i < size; i++ {
		nodes[i] = fmt.Sprintf("n%d", i)
		if i > 0 {
			edges = append(edges, [2]int{i - 1, i})
		}
	}
	return GraphFixture{
		Description: fmt.Sprintf("Linear chain of %d nodes", size),
		Nodes:       nodes,
		Edges:       edges,
		Properties:  Properties{IsConnected: true, ExpectedDepth: max(size-1, 0)},
	}
}

// Star fans out from a hub to every spoke.
func (g *Generator) Star(spokes int) GraphFixture {
	nodes := make([]string, spokes+1)
	edges := make([][2]int, spokes)
	nodes[0] = "hub"
	for i := 1; i <= spokes; i++ {
		nodes[i] = fmt.Sprintf("spoke%d", i)
		edges[i-1] = [2]int{0, i}
	}
	return GraphFixture{
		Description: fmt.Sprintf("Star with hub and %d spokes", spokes),
		Nodes:       nodes,
		Edges:       edges,
		Properties:  Properties{IsConnected: true, ExpectedDepth: min(spokes, 1)},
	}
}

// Diamond is top --> mid1..midN --> bottom.
func (g *Generator) Diamond(width int) GraphFixture {
	width = max(width, 1)
	size := width + 2
	nodes := make([]string, size)
	edges := make([][2]int, 0, width*2)
	nodes[0], nodes[size-1] = "top", "bottom"
	for i := 1; i <= width; i++ {
		nodes[i] = fmt.Sprintf("mid%d", i)
		edges = append(edges, [2]int{0, i}, [2]int{i, size - 1})
	}
	return GraphFixture{
		Description: fmt.Sprintf("Diamond with %d middle nodes", width),
		Nodes:       nodes,
		Edges:       edges,
		Properties:  Properties{IsConnected: true, ExpectedDepth: 2},
	}
}

// Cycle is n0 --> n1 --> ... --> n{size-1} --> n0.
func (g *Generator) Cycle(size int) GraphFixture {
	nodes := make([]string, size)
	edges := make([][2]int, size)
	for i := 0; i < size; i++ {
		nodes[i] = fmt.Sprintf("n%d", i)
		edges[i] = [2]int{i, (i + 1) % size}
	}
	return GraphFixture{
		Description: fmt.Sprintf("Cycle of %d nodes", size),
		Nodes:       nodes,
		Edges:       edges,
		Properties:  Properties{HasCycles: true, IsConnected: true},
	}
}

// Tree gives every non-leaf node `breadth` children, `depth` levels deep.
func (g *Generator) Tree(depth, breadth int) GraphFixture {
	depth, breadth = max(depth, 1), max(breadth, 1)
	nodes := []string{"n0"}
	var edges [][2]int
	level := []int{0}
	for d := 0; d < depth; d++ {
		var next []int
		for _, parent := range level {
			for b := 0; b < breadth; b++ {
				child := len(nodes)
				nodes = append(nodes, fmt.Sprintf("n%d", child))
				edges = append(edges, [2]int{parent, child})
				next = append(next, child)
			}
		}
		level = next
	}
	return GraphFixture{
		Description: fmt.Sprintf("Tree with depth=%d, breadth=%d (%d nodes)", depth, breadth, len(nodes)),
		Nodes:       nodes,
		Edges:       edges,
		Properties:  Properties{IsConnected: true, ExpectedDepth: depth},
	}
}

// RandomDAG adds each forward edge i --> j (i < j) with probability density.
func (g *Generator) RandomDAG(size int, density float64) GraphFixture {
	density = min(max(density, 0), 1)
	nodes := make([]string, size)
	var edges [][2]int
	for i := 0; i < size; i++ {
		nodes[i] = fmt.Sprintf("n%d", i)
	}
	for i := 0; i < size; i++ {
		for j := i + 1; j < size; j++ {
			if g.rng.Float64() < density {
				edges = append(edges, [2]int{i, j})
			}
		}
	}
	return GraphFixture{
		Description: fmt.Sprintf("Random DAG with %d nodes, density=%.2f (%d edges)", size, density, len(edges)),
		Nodes:       nodes,
		Edges:       edges,
		Properties:  Properties{ExpectedDepth: longestPath(len(nodes), edges)},
	}
}

// longestPath works on forward-only edges, where index order is a topological order.
func longestPath(n int, edges [][2]int) int {
	depth := make([]int, n)
	sorted := append([][2]int(nil), edges...)
	sort.Slice(sorted, func(a, b int) bool { return sorted[a][0] < sorted[b][0] })
	best := 0
	for _, e := range sorted {
		depth[e[1]] = max(depth[e[1]], depth[e[0]]+1)
		best = max(best, depth[e[1]])
	}
	return best
}

// ToFlowchart renders the fixture as flowchart source. Nodes are declared
// first, in order, with a label derived from their id.
func (g *Generator) ToFlowchart(gf GraphFixture) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "graph %s\n", g.cfg.Direction)
	for _, n := range gf.Nodes {
		fmt.Fprintf(&sb, "  %s[%s]\n", n, strings.ToUpper(n[:1])+n[1:])
	}
	for _, e := range gf.Edges {
		fmt.Fprintf(&sb, "  %s --> %s\n", gf.Nodes[e[0]], gf.Nodes[e[1]])
	}
	return sb.String()
}

// ── Documentation trees ──

// ContentFixture is a generated set of documents keyed by file path relative
// to the content directory.
type ContentFixture struct {
	Files    map[string]string
	Diagrams int
}

// Paths returns the logical document paths under root, sorted.
func (c ContentFixture) Paths(root string) []string {
	out := make([]string, 0, len(c.Files))
	for f := range c.Files {
		out = append(out, root+f)
	}
	sort.Strings(out)
	return out
}

// Write stores every file in fsys under dir.
func (c ContentFixture) Write(fsys afero.Fs, dir string) error {
	for name, body := range c.Files {
		p := path.Join(dir, name)
		if err := fsys.MkdirAll(path.Dir(p), 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", path.Dir(p), err)
		}
		if err := afero.WriteFile(fsys, p, []byte(body), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", p, err)
		}
	}
	return nil
}

// Content generates `sections` numbered folders of `docs` numbered documents
// each, plus an unnumbered appendix. Every DiagramEvery-th document carries a
// random flowchart.
func (g *Generator) Content(sections, docs int) ContentFixture {
	c := ContentFixture{Files: make(map[string]string)}
	c.Files["01_introduction.md"] = "# Introduction\n\nGenerated documentation.\n"
	n := 0
	for s := 1; s <= sections; s++ {
		folder := fmt.Sprintf("%02d_section-%d", s+1, s)
		for d := 1; d <= docs; d++ {
			n++
			title := fmt.Sprintf("Topic %d.%d", s, d)
			var sb strings.Builder
			fmt.Fprintf(&sb, "# %s\n\nParagraph %d of the generated set.\n", title, n)
			if g.cfg.DiagramEvery > 0 && n%g.cfg.DiagramEvery == 0 {
				gf := g.RandomDAG(3+g.rng.Intn(6), 0.4)
				fmt.Fprintf(&sb, "\n```mermaid\n%s```\n", g.ToFlowchart(gf))
				c.Diagrams++
			}
			sb.WriteString("\n## Details\n\n- one\n- two\n")
			c.Files[fmt.Sprintf("%s/%02d_topic-%d.md", folder, d, d)] = sb.String()
		}
	}
	c.Files["appendix.md"] = "# Appendix\n"
	return c
}
