package markdown

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// SegmentKind tells Markdown text from a diagram.
type SegmentKind int

const (
	SegmentMarkdown SegmentKind = iota
	SegmentDiagram
)

func (k SegmentKind) String() string {
	if k == SegmentDiagram {
		return "diagram"
	}
	return "markdown"
}

// Segment is one piece of a document in reading order. For diagrams Text is
// the diagram source and Line the line of its opening fence; for Markdown
// Line is the first line of the piece.
type Segment struct {
	Kind SegmentKind
	Text string
	Line int
}

// Options configures the HTML pipeline built by New.
type Options struct {
	Language string
	Render   RenderFunc
	// CodeStyle is a chroma style name for highlighted code.
	CodeStyle string
}

// New returns a goldmark instance with GFM, syntax highlighting, heading ids
// and the diagram extension.
func New(opts Options) goldmark.Markdown {
	style := opts.CodeStyle
	if style == "" {
		style = "dracula"
	}
	return goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(highlighting.WithStyle(style)),
			&Extension{Language: opts.Language, Render: opts.Render},
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)
}

// Parse returns the goldmark AST of src with diagram fences replaced.
func Parse(src []byte, lang string) ast.Node {
	return parse(src, lang, parser.NewContext())
}

func parse(src []byte, lang string, pc parser.Context) ast.Node {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM, &Extension{Language: lang}))
	return md.Parser().Parse(text.NewReader(src), parser.WithContext(pc))
}

// Split cuts a document at every diagram fence, including fences inside
// lists and quotes. Whitespace-only Markdown between diagrams is dropped.
// The rest of a list item that held a diagram is dedented so it renders as
// text rather than as an indented code block. Link reference definitions
// are repeated in every Markdown segment so references resolve across a
// diagram.
func Split(doc, lang string) []Segment {
	pc := parser.NewContext()
	diagrams := collectDiagrams(parse([]byte(doc), lang, pc))

	var out []Segment
	pos, line, indent := 0, 1, 0
	emit := func(upto int) {
		chunk := doc[pos:upto]
		if strings.TrimSpace(chunk) != "" {
			out = append(out, Segment{Kind: SegmentMarkdown, Text: dedent(chunk, indent), Line: line})
		}
		line += strings.Count(chunk, "\n")
		pos = upto
	}

	for _, d := range diagrams {
		emit(d.Start)
		out = append(out, Segment{Kind: SegmentDiagram, Text: d.Source, Line: d.Line})
		line += strings.Count(doc[d.Start:d.Stop], "\n")
		pos, indent = d.Stop, d.indent
	}
	emit(len(doc))

	if len(diagrams) > 0 {
		if defs := referenceDefinitions(pc); defs != "" {
			for i := range out {
				if out[i].Kind == SegmentMarkdown {
					out[i].Text = strings.TrimRight(out[i].Text, "\n") + "\n\n" + defs
				}
			}
		}
	}
	return out
}

// dedent strips indent spaces from the leading lines of chunk that carry at
// least that much indentation, up to the first line that does not.
func dedent(chunk string, indent int) string {
	if indent == 0 {
		return chunk
	}
	lines := strings.SplitAfter(chunk, "\n")
	for i, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		if len(l)-len(strings.TrimLeft(l, " ")) < indent {
			break
		}
		lines[i] = l[indent:]
	}
	return strings.Join(lines, "")
}

// referenceDefinitions renders the link reference definitions collected
// while parsing, one per line.
func referenceDefinitions(pc parser.Context) string {
	refs := pc.References()
	sort.Slice(refs, func(i, j int) bool { return string(refs[i].Label()) < string(refs[j].Label()) })
	var b strings.Builder
	for _, ref := range refs {
		fmt.Fprintf(&b, "[%s]: <%s>", ref.Label(), ref.Destination())
		if title := ref.Title(); len(title) > 0 {
			fmt.Fprintf(&b, " %q", title)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Diagrams returns every diagram in the document, nested ones included.
func Diagrams(doc, lang string) []*Diagram {
	return collectDiagrams(Parse([]byte(doc), lang))
}

func collectDiagrams(root ast.Node) []*Diagram {
	var out []*Diagram
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if d, ok := n.(*Diagram); ok && entering {
			out = append(out, d)
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return out
}

// Title returns the text of the first level-one heading, or "".
func Title(doc string) string {
	src := []byte(doc)
	var title string
	_ = ast.Walk(Parse(src, DefaultLanguage), func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		h, ok := n.(*ast.Heading)
		if !entering || !ok || h.Level != 1 {
			return ast.WalkContinue, nil
		}
		title = plainText(h, src)
		return ast.WalkStop, nil
	})
	return title
}

func plainText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
