package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"
)

func TestDefaultTheme(t *testing.T) {
	renderer := lipgloss.NewRenderer(nil)
	theme := DefaultTheme(renderer)

	if theme.Renderer != renderer {
		t.Error("DefaultTheme renderer mismatch")
	}
	for name, c := range map[string]lipgloss.AdaptiveColor{
		"Primary": theme.Primary,
		"Danger":  theme.Danger,
		"Border":  theme.Border,
		"Muted":   theme.Muted,
	} {
		if c.Light == "" || c.Dark == "" {
			t.Errorf("%s color is empty", name)
		}
	}
}

func TestThemeBgByProfile(t *testing.T) {
	saved := TermProfile
	defer func() { TermProfile = saved }()

	tests := []struct {
		profile colorprofile.Profile
		noColor bool
	}{
		{colorprofile.TrueColor, false},
		{colorprofile.ANSI256, true},
		{colorprofile.ANSI, true},
		{colorprofile.ASCII, true},
	}
	for _, tt := range tests {
		TermProfile = tt.profile
		_, isNone := ThemeBg("#0C0C0E").(lipgloss.NoColor)
		if isNone != tt.noColor {
			t.Errorf("profile %v: ThemeBg NoColor = %v, want %v", tt.profile, isNone, tt.noColor)
		}
	}
}

func TestThemeFgByProfile(t *testing.T) {
	saved := TermProfile
	defer func() { TermProfile = saved }()

	TermProfile = colorprofile.ANSI
	if got, ok := ThemeFg("#64748B").(lipgloss.ANSIColor); !ok || got != 7 {
		t.Errorf("ANSI: ThemeFg = %v, want ANSIColor(7)", got)
	}
	TermProfile = colorprofile.ANSI256
	if got, ok := ThemeFg("#64748B").(lipgloss.Color); !ok || got != "#64748B" {
		t.Errorf("ANSI256: ThemeFg = %v, want the hex color", got)
	}
}

func TestPanelHasExactSize(t *testing.T) {
	content := strings.Repeat("line\n", 30)
	out := panel(content, 20, 10, false)
	if h := lipgloss.Height(out); h != 10 {
		t.Errorf("panel height = %d, want 10", h)
	}
	if w := lipgloss.Width(out); w != 20 {
		t.Errorf("panel width = %d, want 20", w)
	}
}

func TestClipLines(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"a\nb\nc", 2, "a\nb"},
		{"a\nb", 5, "a\nb"},
		{"a", 0, ""},
	}
	for _, tt := range tests {
		if got := clipLines(tt.in, tt.n); got != tt.want {
			t.Errorf("clipLines(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestRenderStatus(t *testing.T) {
	ok := stripANSI(renderStatus("Reloaded", false, 40))
	if !strings.Contains(ok, "✓ Reloaded") {
		t.Errorf("status = %q", ok)
	}
	bad := stripANSI(renderStatus("Could not load", true, 40))
	if !strings.Contains(bad, "✗ Could not load") {
		t.Errorf("error status = %q", bad)
	}
	if w := lipgloss.Width(bad); w != 40 {
		t.Errorf("status width = %d, want 40", w)
	}
}
