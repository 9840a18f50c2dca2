package ui

import (
	"os"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"
)

// TermProfile holds the detected terminal color profile. Computed once at
// package init so every style helper can branch without re-detecting.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

// ThemeBg returns the given hex color for TrueColor terminals and
// lipgloss.NoColor{} otherwise, so 16/256-color terminals use the
// terminal's own background instead of a down-converted approximation.
func ThemeBg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.TrueColor {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(hex)
}

// ThemeFg returns the given hex color for ANSI256+ terminals and a safe
// ANSI white (color 7) for 16-color or lower terminals.
func ThemeFg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.ANSI256 {
		return lipgloss.ANSIColor(7)
	}
	return lipgloss.Color(hex)
}

type Theme struct {
	Renderer *lipgloss.Renderer

	// Colors
	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Subtext   lipgloss.AdaptiveColor
	Danger    lipgloss.AdaptiveColor

	// UI Elements
	Border    lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor
	Muted     lipgloss.AdaptiveColor

	// Styles
	Base     lipgloss.Style
	Selected lipgloss.Style
	Header   lipgloss.Style

	// Sidebar rows
	Folder  lipgloss.Style
	Doc     lipgloss.Style
	Current lipgloss.Style // the document on display
	Cursor  lipgloss.Style // keyboard cursor row
	Chevron lipgloss.Style
	Action  lipgloss.Style // "Expand all" / "Collapse all"

	// Diagram chrome
	Button      lipgloss.Style
	ZoomLabel   lipgloss.Style
	Canvas      lipgloss.Style
	CanvasFrame lipgloss.Style
	CanvasFocus lipgloss.Style
	Hint        lipgloss.Style
	Loading     lipgloss.Style
	ErrorBlock  lipgloss.Style

	MutedText lipgloss.Style
}

// DefaultTheme returns the Dracula-inspired theme (adaptive).
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer: r,

		Primary:   lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"}, // Purple
		Secondary: lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"}, // Gray
		Subtext:   lipgloss.AdaptiveColor{Light: "#666666", Dark: "#BFBFBF"},
		Danger:    lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"},

		Border:    lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#44475A"},
		Highlight: lipgloss.AdaptiveColor{Light: "#E0E0E0", Dark: "#44475A"},
		Muted:     lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
	}

	t.Base = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#F8F8F2"})

	t.Selected = r.NewStyle().
		Background(t.Highlight).
		Border(lipgloss.ThickBorder(), false, false, false, true).
		BorderForeground(t.Primary).
		PaddingLeft(1).
		Bold(true)

	t.Header = r.NewStyle().
		Background(t.Primary).
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}).
		Bold(true).
		Padding(0, 1)

	t.Folder = r.NewStyle().Foreground(t.Subtext).Bold(true)
	t.Doc = r.NewStyle().Foreground(ColorText)
	t.Current = r.NewStyle().Foreground(t.Primary).Bold(true)
	t.Cursor = r.NewStyle().Background(t.Highlight)
	t.Chevron = r.NewStyle().Foreground(t.Muted)
	t.Action = r.NewStyle().Foreground(ColorInfo).Underline(true)

	t.Button = r.NewStyle().
		Foreground(ColorText).
		Background(ColorBgSubtle).
		Padding(0, 1)
	t.ZoomLabel = r.NewStyle().Foreground(t.Subtext)
	t.Canvas = r.NewStyle().
		Foreground(ThemeFg("#64748B")).
		Background(ThemeBg("#0C0C0E"))
	t.CanvasFrame = r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Border)
	t.CanvasFocus = t.CanvasFrame.BorderForeground(t.Primary)
	t.Hint = r.NewStyle().Foreground(t.Muted).Italic(true)
	t.Loading = r.NewStyle().Foreground(t.Muted).Italic(true)
	t.ErrorBlock = r.NewStyle().
		Foreground(t.Danger).
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(t.Danger).
		PaddingLeft(1)

	t.MutedText = r.NewStyle().Foreground(ColorMuted)

	return t
}

// TestTheme returns a theme suitable for use in tests.
func TestTheme() Theme {
	return DefaultTheme(lipgloss.NewRenderer(os.Stdout))
}
