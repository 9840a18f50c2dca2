// Package export writes documentation to disk: a static HTML site with the
// diagrams compiled to inline SVG, and per-document diagram files.
package export

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"path"
	"regexp"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/docview/internal/datasource"
	"github.com/vanderheijden86/docview/pkg/debug"
	"github.com/vanderheijden86/docview/pkg/diagram"
	"github.com/vanderheijden86/docview/pkg/doctree"
	"github.com/vanderheijden86/docview/pkg/markdown"
	"github.com/vanderheijden86/docview/pkg/metrics"
)

// ManifestFile is the name of the navigation manifest written next to the pages.
const ManifestFile = "nav.json"

var slugNonAlphanumericRegex = regexp.MustCompile(`[^a-z0-9]+`)

// SiteOptions configures ExportSite.
type SiteOptions struct {
	OutDir      string
	Title       string
	Language    string
	CodeStyle   string
	Concurrency int
	Build       doctree.BuildOptions
}

// Page is one exported document.
type Page struct {
	Path     string `json:"path"`
	Title    string `json:"title"`
	Href     string `json:"href"`
	Diagrams int    `json:"diagrams"`
	Errors   int    `json:"errors,omitempty"`
}

// NavItem mirrors the sidebar tree. Folders carry children, documents an href.
type NavItem struct {
	Title    string     `json:"title"`
	Href     string     `json:"href,omitempty"`
	Children []*NavItem `json:"children,omitempty"`
}

// Manifest describes an exported site.
type Manifest struct {
	Title string     `json:"title"`
	Pages []Page     `json:"pages"`
	Nav   []*NavItem `json:"nav"`
}

type pageData struct {
	Title     string
	SiteTitle string
	Content   template.HTML
	Nav       template.HTML
	BasePath  string
}

// PageHref maps a document path to its page under the output directory,
// e.g. "/content/02_guide/01_install.md" becomes "02_guide/01_install.html".
func PageHref(docPath string, opts doctree.BuildOptions) string {
	rel := strings.TrimPrefix(docPath, opts.Root)
	rel = strings.TrimPrefix(rel, "/")
	if opts.Ext != "" {
		rel = strings.TrimSuffix(rel, opts.Ext)
	}
	return rel + ".html"
}

// basePath returns the prefix leading from a page back to the site root.
func basePath(href string) string {
	return strings.Repeat("../", strings.Count(href, "/"))
}

// diagramID derives a stable render id from the page and fence line. The
// slug keeps ids readable; the hash of the exact href keeps pages whose
// slugs coincide ("a-b", "a_b", "A.b") from sharing an id.
func diagramID(href string, line int) string {
	slug := slugNonAlphanumericRegex.ReplaceAllString(strings.ToLower(strings.TrimSuffix(href, ".html")), "-")
	sum := strings.ReplaceAll(uuid.NewSHA1(uuid.NameSpaceURL, []byte(href)).String(), "-", "")[:12]
	return "mermaid-" + strings.Trim(slug, "-") + "-" + sum + "-" + strconv.Itoa(line)
}

// inlineSVG drops the XML prolog so the markup can sit inside HTML.
func inlineSVG(s string) string {
	if i := strings.Index(s, "<svg"); i > 0 {
		return s[i:]
	}
	return s
}

// ExportSite renders every document of src into opts.OutDir on fsys and
// returns the manifest it wrote. Diagram compile failures are rendered
// inline and counted; they do not fail the export.
func ExportSite(ctx context.Context, src datasource.Source, compiler *diagram.Compiler, fsys afero.Fs, opts SiteOptions) (*Manifest, error) {
	if opts.Build == (doctree.BuildOptions{}) {
		opts.Build = doctree.DefaultBuildOptions()
	}
	if opts.Title == "" {
		opts.Title = "Documentation"
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if compiler == nil {
		compiler = diagram.NewCompiler()
	}
	if err := fsys.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	roots := doctree.Build(src.Paths(), opts.Build)
	paths := doctree.Flatten(roots)
	nav := buildNav(roots, opts.Build)
	pages := make([]Page, len(paths))

	tmpl, err := template.New("page").Parse(pageTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing page template: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i, p := range paths {
		g.Go(func() error {
			page, err := exportPage(ctx, src, compiler, fsys, tmpl, roots, nav, p, opts)
			if err != nil {
				return err
			}
			pages[i] = page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	manifest := &Manifest{Title: opts.Title, Pages: pages, Nav: nav}
	if err := writeIndex(fsys, opts.OutDir, manifest); err != nil {
		return nil, err
	}
	if err := afero.WriteFile(fsys, path.Join(opts.OutDir, "style.css"), []byte(cssContent), 0o644); err != nil {
		return nil, fmt.Errorf("writing stylesheet: %w", err)
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	if err := afero.WriteFile(fsys, path.Join(opts.OutDir, ManifestFile), data, 0o644); err != nil {
		return nil, fmt.Errorf("writing manifest: %w", err)
	}
	debug.Log("export: %d pages to %s", len(pages), opts.OutDir)
	return manifest, nil
}

func exportPage(ctx context.Context, src datasource.Source, compiler *diagram.Compiler, fsys afero.Fs,
	tmpl *template.Template, roots []*doctree.Node, nav []*NavItem, docPath string, opts SiteOptions) (Page, error) {
	defer metrics.Timer(metrics.ExportPage)()

	text, err := src.Load(ctx, docPath)
	if err != nil {
		return Page{}, fmt.Errorf("loading %s: %w", docPath, err)
	}
	href := PageHref(docPath, opts.Build)
	page := Page{Path: docPath, Href: href, Title: markdown.Title(text)}
	if page.Title == "" {
		if n := doctree.Find(roots, docPath); n != nil {
			page.Title = n.Label()
		}
	}

	md := markdown.New(markdown.Options{
		Language:  opts.Language,
		CodeStyle: opts.CodeStyle,
		Render: func(d *markdown.Diagram) (string, error) {
			page.Diagrams++
			img, err := compiler.Render(ctx, diagramID(href, d.Line), d.Source)
			if err != nil {
				page.Errors++
				return "", err
			}
			return inlineSVG(img.SVG), nil
		},
	})
	var body bytes.Buffer
	if err := md.Convert([]byte(text), &body); err != nil {
		return Page{}, fmt.Errorf("rendering %s: %w", docPath, err)
	}

	base := basePath(href)
	var out bytes.Buffer
	err = tmpl.Execute(&out, pageData{
		Title:     page.Title,
		SiteTitle: opts.Title,
		Content:   template.HTML(body.String()),
		Nav:       renderNav(nav, base, href),
		BasePath:  base,
	})
	if err != nil {
		return Page{}, fmt.Errorf("executing template for %s: %w", docPath, err)
	}

	target := path.Join(opts.OutDir, href)
	if err := fsys.MkdirAll(path.Dir(target), 0o755); err != nil {
		return Page{}, fmt.Errorf("creating %s: %w", path.Dir(target), err)
	}
	if err := afero.WriteFile(fsys, target, out.Bytes(), 0o644); err != nil {
		return Page{}, fmt.Errorf("writing %s: %w", target, err)
	}
	return page, nil
}

func buildNav(nodes []*doctree.Node, opts doctree.BuildOptions) []*NavItem {
	items := make([]*NavItem, 0, len(nodes))
	for _, n := range nodes {
		item := &NavItem{Title: n.Label()}
		if n.IsFolder() {
			item.Children = buildNav(n.Children, opts)
		} else {
			item.Href = PageHref(n.Path, opts)
		}
		items = append(items, item)
	}
	return items
}

func renderNav(items []*NavItem, base, current string) template.HTML {
	var sb strings.Builder
	writeNav(&sb, items, base, current)
	return template.HTML(sb.String())
}

func writeNav(sb *strings.Builder, items []*NavItem, base, current string) {
	sb.WriteString("<ul>")
	for _, it := range items {
		sb.WriteString("<li>")
		if it.Href == "" {
			sb.WriteString("<details open><summary>")
			sb.WriteString(template.HTMLEscapeString(it.Title))
			sb.WriteString("</summary>")
			writeNav(sb, it.Children, base, current)
			sb.WriteString("</details>")
		} else {
			class := ""
			if it.Href == current {
				class = ` class="active"`
			}
			fmt.Fprintf(sb, `<a href="%s"%s>%s</a>`,
				template.HTMLEscapeString(base+it.Href), class, template.HTMLEscapeString(it.Title))
		}
		sb.WriteString("</li>")
	}
	sb.WriteString("</ul>")
}

// writeIndex writes index.html redirecting to the first page.
func writeIndex(fsys afero.Fs, outDir string, m *Manifest) error {
	tmpl, err := template.New("index").Parse(indexTemplate)
	if err != nil {
		return fmt.Errorf("parsing index template: %w", err)
	}
	first := ""
	if len(m.Pages) > 0 {
		first = m.Pages[0].Href
	}
	var out bytes.Buffer
	if err := tmpl.Execute(&out, struct{ Title, First string }{m.Title, first}); err != nil {
		return fmt.Errorf("executing index template: %w", err)
	}
	if err := afero.WriteFile(fsys, path.Join(outDir, "index.html"), out.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing index: %w", err)
	}
	return nil
}
