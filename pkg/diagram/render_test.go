package diagram

import (
	"bytes"
	"context"
	"image/png"
	"strings"
	"sync"
	"testing"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLayout(t *testing.T, src string) *Scene {
	t.Helper()
	g, err := Parse(src)
	require.NoError(t, err)
	return Layout(g)
}

func nodeByID(s *Scene, id string) PlacedNode {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n
		}
	}
	return PlacedNode{}
}

func TestLayoutRanksTopDown(t *testing.T) {
	s := mustLayout(t, "graph TD\nA-->B\nA-->C\nB-->D\nC-->D")

	assert.Equal(t, 0, nodeByID(s, "A").Rank)
	assert.Equal(t, 1, nodeByID(s, "B").Rank)
	assert.Equal(t, 1, nodeByID(s, "C").Rank)
	assert.Equal(t, 2, nodeByID(s, "D").Rank)

	a, b, d := nodeByID(s, "A"), nodeByID(s, "B"), nodeByID(s, "D")
	assert.Less(t, a.Y, b.Y)
	assert.Less(t, b.Y, d.Y)
	assert.Equal(t, nodeByID(s, "B").Y, nodeByID(s, "C").Y)
	assert.Less(t, nodeByID(s, "B").X, nodeByID(s, "C").X, "declaration order within a rank")

	for _, n := range s.Nodes {
		assert.GreaterOrEqual(t, n.X, 0.0)
		assert.LessOrEqual(t, n.X+n.W, s.Width)
		assert.LessOrEqual(t, n.Y+n.H, s.Height)
	}
}

func TestLayoutDirections(t *testing.T) {
	lr := mustLayout(t, "graph LR\nA-->B")
	assert.Less(t, nodeByID(lr, "A").X, nodeByID(lr, "B").X)
	assert.Equal(t, nodeByID(lr, "A").Y+nodeByID(lr, "A").H/2, nodeByID(lr, "B").Y+nodeByID(lr, "B").H/2)

	bt := mustLayout(t, "graph BT\nA-->B")
	assert.Greater(t, nodeByID(bt, "A").Y, nodeByID(bt, "B").Y)

	rl := mustLayout(t, "graph RL\nA-->B")
	assert.Greater(t, nodeByID(rl, "A").X, nodeByID(rl, "B").X)
}

func TestLayoutCycle(t *testing.T) {
	s := mustLayout(t, "graph TD\nA-->B\nB-->C\nC-->A\nC-->C")
	assert.Equal(t, 0, nodeByID(s, "A").Rank)
	assert.Equal(t, 1, nodeByID(s, "B").Rank)
	assert.Equal(t, 2, nodeByID(s, "C").Rank)
	assert.Len(t, s.Edges, 4, "back edges and self loops are still drawn")
}

func TestLayoutEdgesClippedToBoxes(t *testing.T) {
	s := mustLayout(t, "graph TD\nA-->B")
	a, b := nodeByID(s, "A"), nodeByID(s, "B")
	e := s.Edges[0]
	assert.InDelta(t, a.Y+a.H, e.Y1, 0.001)
	assert.InDelta(t, b.Y, e.Y2, 0.001)
}

func TestLayoutGroupsEncloseMembers(t *testing.T) {
	s := mustLayout(t, "graph TD\nsubgraph g[Group]\nA-->B\nend\nB-->C")
	require.Len(t, s.Groups, 1)
	grp := s.Groups[0]
	for _, id := range []string{"A", "B"} {
		n := nodeByID(s, id)
		assert.GreaterOrEqual(t, n.X, grp.X)
		assert.GreaterOrEqual(t, n.Y, grp.Y)
		assert.LessOrEqual(t, n.X+n.W, grp.X+grp.W)
		assert.LessOrEqual(t, n.Y+n.H, grp.Y+grp.H)
	}
	assert.GreaterOrEqual(t, grp.Y, 0.0)
}

func TestLayoutEmptyGraph(t *testing.T) {
	s := mustLayout(t, "graph TD")
	assert.Empty(t, s.Nodes)
	assert.Greater(t, s.Width, 0.0)
	assert.Greater(t, s.Height, 0.0)
}

func TestNodeWidthFollowsLabel(t *testing.T) {
	s := mustLayout(t, "graph TD\nA[x]\nB[a much longer label]")
	assert.Equal(t, float64(minNodeW), nodeByID(s, "A").W)
	assert.Equal(t, float64(runewidth.StringWidth("a much longer label")*CellWidth+labelPad), nodeByID(s, "B").W)
}

func TestWriteSVG(t *testing.T) {
	s := mustLayout(t, `graph TD
A["Tom & Jerry <3"] -->|go| B((Round))`)
	var buf bytes.Buffer
	require.NoError(t, WriteSVG(&buf, "mermaid-abc123", s, DarkPalette))
	out := buf.String()

	assert.Contains(t, out, `id="mermaid-abc123"`)
	assert.Contains(t, out, "<svg")
	assert.Contains(t, out, "Tom &amp; Jerry &lt;3")
	assert.Contains(t, out, ">go<")
	assert.Contains(t, out, "<ellipse")
	assert.Contains(t, out, "#0c0c0e")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "</svg>"))
}

func TestRasterDimensions(t *testing.T) {
	s := mustLayout(t, "graph TD\nA[Alpha]-->B[Beta]")
	lines := s.Raster(40, 12, Transform{Scale: 1, TX: 0, TY: 0})
	require.Len(t, lines, 12)
	for _, l := range lines {
		assert.Equal(t, 40, runewidth.StringWidth(l))
	}

	joined := strings.Join(lines, "\n")
	assert.Contains(t, joined, "Alpha")
	assert.True(t, strings.ContainsFunc(joined, func(r rune) bool { return r > 0x2800 && r <= 0x28ff }),
		"expected braille strokes")
}

func TestRasterOffscreenIsBlank(t *testing.T) {
	s := mustLayout(t, "graph TD\nA-->B")
	lines := s.Raster(10, 4, Transform{Scale: 1, TX: -10000, TY: -10000})
	for _, l := range lines {
		assert.Equal(t, strings.Repeat(" ", 10), l)
	}
	assert.Nil(t, s.Raster(0, 4, Transform{Scale: 1}))
}

func TestWritePNG(t *testing.T) {
	s := mustLayout(t, "graph LR\nA-.->B==>C")
	var buf bytes.Buffer
	require.NoError(t, s.WritePNG(&buf, 2, DarkPalette))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, int(s.Width*2), img.Bounds().Dx())
}

func TestCompilerRender(t *testing.T) {
	c := NewCompiler()
	img, err := c.Render(context.Background(), "mermaid-1", "graph TD\nA-->B")
	require.NoError(t, err)
	assert.Equal(t, "mermaid-1", img.ID)
	assert.Contains(t, img.SVG, `id="mermaid-1"`)
	assert.Greater(t, img.Width(), 0.0)

	// The id is free again once the compile finished.
	_, err = c.Render(context.Background(), "mermaid-1", "graph TD\nA-->B")
	assert.NoError(t, err)

	_, err = c.Render(context.Background(), "mermaid-2", "graph TD\nA[oops")
	var se *SyntaxError
	assert.ErrorAs(t, err, &se)
}

func TestCompilerRejectsInFlightID(t *testing.T) {
	c := NewCompiler()
	require.NoError(t, c.claim("mermaid-x"))
	_, err := c.Render(context.Background(), "mermaid-x", "graph TD\nA")
	assert.ErrorIs(t, err, ErrRenderIDInUse)
	c.release("mermaid-x")

	_, err = c.Render(context.Background(), "mermaid-x", "graph TD\nA")
	assert.NoError(t, err)
}

func TestCompilerConcurrentDistinctIDs(t *testing.T) {
	c := NewCompiler()
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Render(context.Background(), "mermaid-"+string(rune('a'+i)), "graph TD\nA-->B")
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestCompilerCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewCompiler().Render(ctx, "mermaid-c", "graph TD\nA")
	assert.ErrorIs(t, err, context.Canceled)
}
