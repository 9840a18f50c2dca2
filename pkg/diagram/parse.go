package diagram

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Diagram types we recognize but do not draw.
var otherDiagramTypes = map[string]bool{
	"sequenceDiagram": true, "classDiagram": true, "classDiagram-v2": true,
	"stateDiagram": true, "stateDiagram-v2": true, "erDiagram": true,
	"journey": true, "gantt": true, "pie": true, "gitGraph": true,
	"mindmap": true, "timeline": true, "quadrantChart": true,
	"requirementDiagram": true, "C4Context": true, "sankey-beta": true,
	"xychart-beta": true, "block-beta": true, "packet-beta": true,
	"architecture-beta": true, "kanban": true,
}

// Statements that style or annotate but do not change the drawing.
var ignoredKeywords = map[string]bool{
	"direction": true, "classDef": true, "class": true, "style": true,
	"linkStyle": true, "click": true, "accTitle": true, "accDescr": true,
}

var (
	breakTag   = regexp.MustCompile(`(?i)<br\s*/?>`)
	linkRe     = regexp.MustCompile(`^(<)?(-{2,}|={2,}|-\.+-)(>|o|x)?`)
	textLinkRe = regexp.MustCompile(`(-{2,}|={2,}|\.-+)([>ox])?`)
	classSufRe = regexp.MustCompile(`^:::[A-Za-z0-9_\-]+`)
)

// Parse reads a flowchart description.
//
// Supported: "graph" / "flowchart" headers with TD, TB, BT, LR or RL;
// node shapes [] () ([]) [[]] [()] (()) >] {} {{}}; quoted labels;
// links --> --- -.-> -.- ==> === with |label| or "-- label -->" text; chains
// and "&" groups; subgraph ... end; "%%" comments; ";" separators. Styling
// statements are accepted and ignored.
func Parse(src string) (*Graph, error) {
	lines := strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n")
	p := &parser{g: newGraph()}

	i := skipFrontmatter(lines)
	headerSeen := false
	for ; i < len(lines); i++ {
		lineNo := i + 1
		line := stripComment(lines[i])
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !headerSeen {
			rest, err := p.header(line, lineNo)
			if err != nil {
				return nil, err
			}
			headerSeen = true
			line = rest
		}
		for _, stmt := range splitStatements(line) {
			if err := p.statement(stmt, lineNo); err != nil {
				return nil, err
			}
		}
	}
	if !headerSeen {
		return nil, &SyntaxError{Line: 1, Msg: "empty diagram"}
	}
	if len(p.stack) > 0 {
		return nil, &SyntaxError{Line: len(lines), Msg: fmt.Sprintf("subgraph %q is missing 'end'", p.stack[len(p.stack)-1])}
	}
	return p.g, nil
}

func skipFrontmatter(lines []string) int {
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return 0
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return i + 1
		}
	}
	return 0
}

func stripComment(line string) string {
	if strings.HasPrefix(strings.TrimSpace(line), "%%") {
		return ""
	}
	if i := strings.Index(line, "%%"); i >= 0 && !insideQuotes(line, i) {
		return line[:i]
	}
	return line
}

func insideQuotes(s string, at int) bool {
	return strings.Count(s[:at], `"`)%2 == 1
}

// splitStatements splits on ';' outside quotes and brackets.
func splitStatements(line string) []string {
	var (
		out   []string
		depth int
		quote bool
		start int
	)
	for i, r := range line {
		switch {
		case r == '"':
			quote = !quote
		case quote:
		case strings.ContainsRune("[({", r):
			depth++
		case strings.ContainsRune("])}", r):
			if depth > 0 {
				depth--
			}
		case r == ';' && depth == 0:
			out = append(out, line[start:i])
			start = i + 1
		}
	}
	out = append(out, line[start:])
	return out
}

type parser struct {
	g         *Graph
	stack     []string // open subgraph ids
	anonGroup int
}

func (p *parser) currentGroup() string {
	if len(p.stack) == 0 {
		return ""
	}
	return p.stack[len(p.stack)-1]
}

// header consumes the diagram declaration and returns what follows it on the
// same line ("graph TD; A-->B").
func (p *parser) header(line string, lineNo int) (string, error) {
	trimmed := strings.TrimSpace(line)
	word, rest := splitWord(trimmed)
	word = strings.TrimSuffix(word, ";")

	switch word {
	case "graph", "flowchart", "flowchart-elk":
	default:
		if otherDiagramTypes[word] {
			return "", fmt.Errorf("%w: %s", ErrUnsupportedDiagram, word)
		}
		return "", &SyntaxError{Line: lineNo, Msg: fmt.Sprintf("no diagram type detected for text: %q", trimmed)}
	}

	dir, after := splitWord(rest)
	switch strings.TrimSuffix(dir, ";") {
	case "":
		return "", nil
	case "TD", "TB":
		p.g.Direction = TopDown
	case "BT":
		p.g.Direction = BottomUp
	case "LR":
		p.g.Direction = LeftRight
	case "RL":
		p.g.Direction = RightLeft
	default:
		// No direction: the rest of the line is a statement.
		return rest, nil
	}
	return after, nil
}

func splitWord(s string) (string, string) {
	s = strings.TrimSpace(s)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

func (p *parser) statement(stmt string, lineNo int) error {
	stmt = strings.TrimSpace(stmt)
	if stmt == "" {
		return nil
	}
	word, rest := splitWord(stmt)
	switch {
	case word == "subgraph":
		return p.openGroup(rest, lineNo)
	case word == "end" && rest == "":
		if len(p.stack) == 0 {
			return &SyntaxError{Line: lineNo, Msg: "'end' without subgraph"}
		}
		p.stack = p.stack[:len(p.stack)-1]
		return nil
	case ignoredKeywords[word]:
		return nil
	}
	return p.chain(stmt, lineNo)
}

func (p *parser) openGroup(rest string, lineNo int) error {
	var id, label string
	switch {
	case rest == "":
		p.anonGroup++
		id = fmt.Sprintf("subGraph%d", p.anonGroup)
	case strings.HasPrefix(rest, `"`):
		p.anonGroup++
		id = fmt.Sprintf("subGraph%d", p.anonGroup)
		label = strings.Trim(rest, `"`)
	case strings.Contains(rest, "["):
		sc := &scanner{s: rest, line: lineNo}
		ref, err := sc.nodeRef()
		if err != nil {
			return err
		}
		id, label = ref.id, ref.label
	default:
		id, label = rest, rest
	}
	p.g.Groups = append(p.g.Groups, &Group{ID: id, Label: cleanLabel(label), Parent: p.currentGroup()})
	p.stack = append(p.stack, id)
	return nil
}

func (p *parser) chain(stmt string, lineNo int) error {
	sc := &scanner{s: stmt, line: lineNo}
	prev, err := sc.nodeGroup()
	if err != nil {
		return err
	}
	for _, r := range prev {
		p.g.upsert(r, p.currentGroup(), lineNo)
	}
	for {
		sc.skipSpace()
		if sc.eof() {
			return nil
		}
		l, err := sc.link()
		if err != nil {
			return err
		}
		next, err := sc.nodeGroup()
		if err != nil {
			return err
		}
		for _, r := range next {
			p.g.upsert(r, p.currentGroup(), lineNo)
		}
		for _, a := range prev {
			for _, b := range next {
				e := l
				e.From, e.To = a.id, b.id
				p.g.Edges = append(p.g.Edges, e)
			}
		}
		prev = next
	}
}

type nodeRef struct {
	id       string
	label    string
	shape    Shape
	explicit bool
}

type scanner struct {
	s    string
	pos  int
	line int
}

func (sc *scanner) eof() bool    { return sc.pos >= len(sc.s) }
func (sc *scanner) rest() string { return sc.s[sc.pos:] }

func (sc *scanner) skipSpace() {
	for sc.pos < len(sc.s) && (sc.s[sc.pos] == ' ' || sc.s[sc.pos] == '\t') {
		sc.pos++
	}
}

func (sc *scanner) errorf(format string, args ...any) error {
	return &SyntaxError{Line: sc.line, Msg: fmt.Sprintf(format, args...)}
}

func (sc *scanner) near() string {
	r := []rune(sc.rest())
	if len(r) > 12 {
		r = r[:12]
	}
	return string(r)
}

// nodeGroup reads "A", or "A & B[label] & C".
func (sc *scanner) nodeGroup() ([]nodeRef, error) {
	var refs []nodeRef
	for {
		sc.skipSpace()
		ref, err := sc.nodeRef()
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
		sc.skipSpace()
		if strings.HasPrefix(sc.rest(), "&") {
			sc.pos++
			continue
		}
		return refs, nil
	}
}

func isIDRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

type shapeDelim struct {
	open, close string
	shape       Shape
}

// Longer openers first so "((" wins over "(".
var shapeDelims = []shapeDelim{
	{"((", "))", ShapeCircle},
	{"([", "])", ShapeStadium},
	{"[[", "]]", ShapeSubroutine},
	{"[(", ")]", ShapeCylinder},
	{"{{", "}}", ShapeHexagon},
	{"[", "]", ShapeRect},
	{"(", ")", ShapeRound},
	{"{", "}", ShapeRhombus},
	{">", "]", ShapeAsymmetric},
}

// idLen returns the byte length of the node id at the start of s. Dashes are
// allowed inside ids ("api-gateway") but never where a link starts.
func idLen(s string) int {
	for i, r := range s {
		if isIDRune(r) {
			continue
		}
		if r == '-' && i > 0 {
			next := s[i+1:]
			if next != "" && !strings.ContainsAny(next[:1], "-.>=") {
				continue
			}
		}
		return i
	}
	return len(s)
}

func (sc *scanner) nodeRef() (nodeRef, error) {
	start := sc.pos
	sc.pos += idLen(sc.rest())
	id := sc.s[start:sc.pos]
	if id == "" {
		return nodeRef{}, sc.errorf("expecting node id, got %q", sc.near())
	}
	ref := nodeRef{id: id, shape: ShapeRect}

	for _, d := range shapeDelims {
		if !strings.HasPrefix(sc.rest(), d.open) {
			continue
		}
		sc.pos += len(d.open)
		label, err := sc.label(d.close)
		if err != nil {
			return nodeRef{}, err
		}
		if d.shape == ShapeRect {
			label = trimParallelogram(label)
		}
		ref.label, ref.shape, ref.explicit = cleanLabel(label), d.shape, true
		break
	}

	if m := classSufRe.FindString(sc.rest()); m != "" {
		sc.pos += len(m)
	}
	return ref, nil
}

func (sc *scanner) label(closer string) (string, error) {
	sc.skipSpace()
	if strings.HasPrefix(sc.rest(), `"`) {
		end := strings.Index(sc.rest()[1:], `"`)
		if end < 0 {
			return "", sc.errorf("unterminated string in node label")
		}
		text := sc.rest()[1 : end+1]
		sc.pos += end + 2
		sc.skipSpace()
		if !strings.HasPrefix(sc.rest(), closer) {
			return "", sc.errorf("expecting %q after quoted label, got %q", closer, sc.near())
		}
		sc.pos += len(closer)
		return text, nil
	}
	end := strings.Index(sc.rest(), closer)
	if end < 0 {
		return "", sc.errorf("unterminated node label, expecting %q", closer)
	}
	text := sc.rest()[:end]
	sc.pos += end + len(closer)
	return text, nil
}

func trimParallelogram(s string) string {
	if len(s) >= 2 && strings.ContainsAny(s[:1], `/\`) && strings.ContainsAny(s[len(s)-1:], `/\`) {
		return s[1 : len(s)-1]
	}
	return s
}

func cleanLabel(s string) string {
	s = breakTag.ReplaceAllString(s, " ")
	s = strings.NewReplacer("#quot;", `"`, "#amp;", "&", "#lt;", "<", "#gt;", ">").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// link reads an edge operator with its optional label.
func (sc *scanner) link() (Edge, error) {
	rest := sc.rest()

	// Dotted text form: "-. label .->".
	if strings.HasPrefix(rest, "-. ") {
		return sc.textLink(2, EdgeDotted)
	}

	m := linkRe.FindStringSubmatch(rest)
	if m == nil {
		return Edge{}, sc.errorf("expecting link, got %q", sc.near())
	}
	body := m[2]
	if m[1] == "" && m[3] == "" && (body == "--" || body == "==") {
		style := EdgeSolid
		if body == "==" {
			style = EdgeThick
		}
		return sc.textLink(len(body), style)
	}

	sc.pos += len(m[0])
	e := Edge{
		Style:      styleOf(body),
		ArrowStart: m[1] == "<",
		ArrowEnd:   m[3] != "",
	}
	sc.skipSpace()
	if strings.HasPrefix(sc.rest(), "|") {
		end := strings.Index(sc.rest()[1:], "|")
		if end < 0 {
			return Edge{}, sc.errorf("unterminated edge label")
		}
		e.Label = cleanLabel(strings.Trim(sc.rest()[1:end+1], `"`))
		sc.pos += end + 2
	}
	return e, nil
}

func (sc *scanner) textLink(openLen int, style EdgeStyle) (Edge, error) {
	sc.pos += openLen
	rest := sc.rest()
	loc := textLinkRe.FindStringSubmatchIndex(rest)
	if loc == nil {
		return Edge{}, sc.errorf("unterminated link text")
	}
	text := rest[:loc[0]]
	head := ""
	if loc[4] >= 0 {
		head = rest[loc[4]:loc[5]]
	}
	sc.pos += loc[1]
	return Edge{
		Label:    cleanLabel(strings.Trim(strings.TrimSpace(text), `"`)),
		Style:    style,
		ArrowEnd: head != "",
	}, nil
}

func styleOf(body string) EdgeStyle {
	switch {
	case strings.Contains(body, "="):
		return EdgeThick
	case strings.Contains(body, "."):
		return EdgeDotted
	default:
		return EdgeSolid
	}
}
