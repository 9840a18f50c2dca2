// Package markdown parses documents with goldmark and lifts diagram fences out
// of the code-block path. Fenced blocks whose language is the diagram language
// become Diagram nodes wherever they sit: the HTML renderer writes them as
// figures, and Split exposes them as separate segments for the terminal
// renderer.
package markdown

import (
	"bytes"
	"html"
	"strconv"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// DefaultLanguage is the fence info string that marks a diagram.
const DefaultLanguage = "mermaid"

// KindDiagram is the AST kind of a Diagram node.
var KindDiagram = ast.NewNodeKind("Diagram")

// Diagram is a block node holding the raw text of a diagram fence.
type Diagram struct {
	ast.BaseBlock

	// Source is the fence body without its trailing newline.
	Source string
	// Line is the 1-based line of the opening fence.
	Line int
	// Start and Stop delimit the whole fence, both fence lines included,
	// as byte offsets into the document.
	Start, Stop int

	// indent is the column of the opening fence inside a list item; zero
	// at top level and inside quotes.
	indent int
}

func (n *Diagram) Kind() ast.NodeKind { return KindDiagram }

func (n *Diagram) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{
		"Line":   strconv.Itoa(n.Line),
		"Source": n.Source,
	}, nil)
}

// RenderFunc turns a diagram into HTML placed inside its figure.
type RenderFunc func(d *Diagram) (string, error)

// Extension swaps diagram fences for Diagram nodes. With a nil Render the
// HTML output carries the escaped source for client-side rendering.
type Extension struct {
	Language string
	Render   RenderFunc
}

func (e *Extension) lang() string {
	if e.Language == "" {
		return DefaultLanguage
	}
	return e.Language
}

func (e *Extension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithASTTransformers(
		util.Prioritized(&diagramTransformer{lang: e.lang()}, 100),
	))
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(&diagramHTMLRenderer{render: e.Render}, 500),
	))
}

type diagramTransformer struct {
	lang string
}

func (t *diagramTransformer) Transform(doc *ast.Document, reader text.Reader, pc parser.Context) {
	source := reader.Source()

	var fences []*ast.FencedCodeBlock
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if fc, ok := n.(*ast.FencedCodeBlock); ok {
			if fc.Info != nil && string(fc.Language(source)) == t.lang {
				fences = append(fences, fc)
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	for _, fc := range fences {
		parent := fc.Parent()
		if parent == nil {
			continue
		}
		parent.ReplaceChild(parent, fc, newDiagram(fc, source))
	}
}

func newDiagram(fc *ast.FencedCodeBlock, source []byte) *Diagram {
	var body bytes.Buffer
	lines := fc.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		body.Write(seg.Value(source))
	}
	src := body.String()
	if n := len(src); n > 0 && src[n-1] == '\n' {
		src = src[:n-1]
	}

	infoAt := fc.Info.Segment.Start
	start := bytes.LastIndexByte(source[:infoAt], '\n') + 1
	d := &Diagram{
		Source: src,
		Line:   bytes.Count(source[:start], []byte{'\n'}) + 1,
		Start:  start,
	}

	open := infoAt
	for open > start && (source[open-1] == ' ' || source[open-1] == '\t') {
		open--
	}
	runEnd := open
	for open > start && (source[open-1] == '`' || source[open-1] == '~') {
		open--
	}
	fence := string(source[open:runEnd])
	if prefix := source[start:open]; !bytes.ContainsRune(prefix, '>') {
		d.indent = len(prefix)
	}

	// End of the last body line, or of the opening fence line when empty.
	pos := lineEnd(source, infoAt)
	if lines.Len() > 0 {
		pos = lineEnd(source, lines.At(lines.Len()-1).Stop-1)
	}
	d.Stop = pos
	if fence != "" && pos < len(source) {
		next := lineEnd(source, pos)
		if isClosingFence(source[pos:next], fence) {
			d.Stop = next
		}
	}
	return d
}

// lineEnd returns the offset just past the newline ending the line that
// contains offset at, or len(source).
func lineEnd(source []byte, at int) int {
	if at < 0 {
		at = 0
	}
	if at >= len(source) {
		return len(source)
	}
	if i := bytes.IndexByte(source[at:], '\n'); i >= 0 {
		return at + i + 1
	}
	return len(source)
}

// fenceRun returns the backtick or tilde run opening the line, after any
// indentation and quote markers.
func fenceRun(line []byte) string {
	line = bytes.TrimLeft(line, " \t>")
	if len(line) == 0 || (line[0] != '`' && line[0] != '~') {
		return ""
	}
	i := 0
	for i < len(line) && line[i] == line[0] {
		i++
	}
	return string(line[:i])
}

func isClosingFence(line []byte, open string) bool {
	run := fenceRun(line)
	if run == "" || run[0] != open[0] || len(run) < len(open) {
		return false
	}
	rest := bytes.TrimLeft(line, " \t>")[len(run):]
	return len(bytes.TrimSpace(rest)) == 0
}

type diagramHTMLRenderer struct {
	render RenderFunc
}

func (r *diagramHTMLRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindDiagram, r.renderDiagram)
}

func (r *diagramHTMLRenderer) renderDiagram(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	d := node.(*Diagram)
	line := strconv.Itoa(d.Line)

	if r.render == nil {
		_, _ = w.WriteString(`<div class="diagram" data-line="` + line + `">`)
		_, _ = w.WriteString(html.EscapeString(d.Source))
		_, _ = w.WriteString("</div>\n")
		return ast.WalkSkipChildren, nil
	}

	out, err := r.render(d)
	if err != nil {
		_, _ = w.WriteString(`<pre class="diagram-error" data-line="` + line + `">`)
		_, _ = w.WriteString(html.EscapeString(err.Error()))
		_, _ = w.WriteString("</pre>\n")
		return ast.WalkSkipChildren, nil
	}
	_, _ = w.WriteString(`<figure class="diagram" data-line="` + line + `">`)
	_, _ = w.WriteString(out)
	_, _ = w.WriteString("</figure>\n")
	return ast.WalkSkipChildren, nil
}
