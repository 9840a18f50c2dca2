package diagram

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/vanderheijden86/docview/pkg/debug"
	"github.com/vanderheijden86/docview/pkg/metrics"
)

// Image is a compiled diagram: SVG markup plus the scene it was drawn from.
type Image struct {
	ID     string
	Source string
	SVG    string
	Scene  *Scene
}

// Width is the intrinsic width in image pixels.
func (im *Image) Width() float64 { return im.Scene.Width }

// Height is the intrinsic height in image pixels.
func (im *Image) Height() float64 { return im.Scene.Height }

// Compiler turns diagram source into images. It is safe for concurrent use,
// but a render id may only be in flight once.
type Compiler struct {
	Palette Palette

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewCompiler returns a compiler using the dark palette.
func NewCompiler() *Compiler {
	return &Compiler{Palette: DarkPalette, inflight: make(map[string]struct{})}
}

func (c *Compiler) claim(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight == nil {
		c.inflight = make(map[string]struct{})
	}
	if _, busy := c.inflight[id]; busy {
		return fmt.Errorf("%s: %w", id, ErrRenderIDInUse)
	}
	c.inflight[id] = struct{}{}
	return nil
}

func (c *Compiler) release(id string) {
	c.mu.Lock()
	delete(c.inflight, id)
	c.mu.Unlock()
}

// Render compiles src under the given render id. Errors are either a
// *SyntaxError, ErrUnsupportedDiagram, ErrRenderIDInUse, or the context's error.
func (c *Compiler) Render(ctx context.Context, id, src string) (*Image, error) {
	if err := c.claim(id); err != nil {
		return nil, err
	}
	defer c.release(id)
	defer metrics.Timer(metrics.DiagramCompile)()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g, err := Parse(src)
	if err != nil {
		debug.Log("diagram %s: %v", id, err)
		return nil, err
	}
	scene := Layout(g)

	var buf bytes.Buffer
	if err := WriteSVG(&buf, id, scene, c.Palette); err != nil {
		return nil, fmt.Errorf("writing svg: %w", err)
	}
	debug.Log("diagram %s: %d nodes, %d edges, %.0fx%.0f", id, len(g.Nodes), len(g.Edges), scene.Width, scene.Height)
	return &Image{ID: id, Source: src, SVG: buf.String(), Scene: scene}, nil
}
