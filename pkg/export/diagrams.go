package export

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/spf13/afero"

	"github.com/vanderheijden86/docview/internal/datasource"
	"github.com/vanderheijden86/docview/pkg/diagram"
	"github.com/vanderheijden86/docview/pkg/doctree"
	"github.com/vanderheijden86/docview/pkg/markdown"
)

// Format selects the file type written by ExportDiagrams.
type Format string

const (
	FormatSVG Format = "svg"
	FormatPNG Format = "png"
)

// ParseFormat accepts "svg" or "png", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatSVG, FormatPNG:
		return f, nil
	default:
		return "", fmt.Errorf("unknown diagram format %q (want svg or png)", s)
	}
}

// DiagramOptions configures ExportDiagrams.
type DiagramOptions struct {
	OutDir   string
	Format   Format
	Language string
	// Scale is the PNG pixel scale; ignored for SVG.
	Scale float64
	Build doctree.BuildOptions
}

// DiagramFile is one written diagram, or the error that kept it from being written.
type DiagramFile struct {
	Line int
	Path string
	Err  error
}

// ExportDiagrams compiles every diagram of one document, nested ones included,
// and writes each to its own file named after the page and fence line. A
// diagram that fails to compile is reported in its DiagramFile and skipped.
func ExportDiagrams(ctx context.Context, src datasource.Source, compiler *diagram.Compiler, fsys afero.Fs, docPath string, opts DiagramOptions) ([]DiagramFile, error) {
	if opts.Build == (doctree.BuildOptions{}) {
		opts.Build = doctree.DefaultBuildOptions()
	}
	if opts.Format == "" {
		opts.Format = FormatSVG
	}
	if opts.Scale <= 0 {
		opts.Scale = 2
	}
	if compiler == nil {
		compiler = diagram.NewCompiler()
	}

	text, err := src.Load(ctx, docPath)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", docPath, err)
	}
	if err := fsys.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	href := PageHref(docPath, opts.Build)
	var files []DiagramFile
	for _, d := range markdown.Diagrams(text, opts.Language) {
		id := diagramID(href, d.Line)
		f := DiagramFile{Line: d.Line, Path: path.Join(opts.OutDir, id+"."+string(opts.Format))}

		img, err := compiler.Render(ctx, id, d.Source)
		if err != nil {
			f.Err = err
			files = append(files, f)
			continue
		}
		var buf bytes.Buffer
		if opts.Format == FormatPNG {
			err = img.Scene.WritePNG(&buf, opts.Scale, compiler.Palette)
		} else {
			_, err = buf.WriteString(img.SVG)
		}
		if err != nil {
			return files, fmt.Errorf("encoding %s: %w", id, err)
		}
		if err := afero.WriteFile(fsys, f.Path, buf.Bytes(), 0o644); err != nil {
			return files, fmt.Errorf("writing %s: %w", f.Path, err)
		}
		files = append(files, f)
	}
	return files, nil
}
