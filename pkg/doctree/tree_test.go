package doctree

import (
	"fmt"
	"math"
	"math/rand"
	"reflect"
	"strconv"
	"testing"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/docview/pkg/testutil"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		in        string
		wantKey   float64
		wantLabel string
	}{
		{"01_intro", 1, "intro"},
		{"2_setup", 2, "setup"},
		{"10_", 10, ""},
		{"007_a_b", 7, "a_b"},
		{"guide", math.Inf(1), "guide"},
		{"_x", math.Inf(1), "_x"},
		{"12abc", math.Inf(1), "12abc"},
		{"99999999999999999999999_big", 1e23, "big"},
	}
	for _, tt := range tests {
		got := Classify(tt.in)
		if got.SortKey != tt.wantKey || got.Label != tt.wantLabel {
			t.Errorf("Classify(%q) = {%v %q}, want {%v %q}", tt.in, got.SortKey, got.Label, tt.wantKey, tt.wantLabel)
		}
	}
}

func TestClassifyProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 1_000_000).Draw(t, "n")
		rest := rapid.StringMatching(`[a-z_\-]{0,12}`).Draw(t, "rest")
		c := Classify(strconv.Itoa(n) + "_" + rest)
		if c.SortKey != float64(n) || c.Label != rest {
			t.Fatalf("numbered segment: got {%v %q}, want {%d %q}", c.SortKey, c.Label, n, rest)
		}

		plain := rapid.StringMatching(`[a-z][a-z0-9\-]{0,12}`).Draw(t, "plain")
		c = Classify(plain)
		if !c.Unordered() || c.Label != plain {
			t.Fatalf("plain segment %q: got {%v %q}", plain, c.SortKey, c.Label)
		}
	})
}

func TestTitle(t *testing.T) {
	tests := map[string]string{
		"intro":          "Intro",
		"getting-started": "Getting Started",
		"api/reference":  "Api Reference",
		"a--b":           "A  B",
		"":               "",
		"ünicode-text":   "Ünicode Text",
	}
	for in, want := range tests {
		if got := Title(in); got != want {
			t.Errorf("Title(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildExampleTree(t *testing.T) {
	paths := []string{
		"/content/guide.md",
		"/content/02_setup/b.md",
		"/content/01_intro.md",
		"/content/02_setup/a.md",
	}
	roots := Build(paths, DefaultBuildOptions())

	if len(roots) != 3 {
		t.Fatalf("expected 3 roots, got %d", len(roots))
	}
	if roots[0].Kind != KindDocument || roots[0].Path != "/content/01_intro.md" || roots[0].SortKey != 1 {
		t.Errorf("root[0] = %+v, want 01_intro document", roots[0])
	}
	if roots[0].Title != "Intro" {
		t.Errorf("root[0].Title = %q, want Intro", roots[0].Title)
	}
	setup := roots[1]
	if setup.Kind != KindFolder || setup.Key != "02_setup" || setup.SortKey != 2 || setup.Name != "Setup" {
		t.Errorf("root[1] = %+v, want 02_setup folder", setup)
	}
	if len(setup.Children) != 2 || setup.Children[0].Path != "/content/02_setup/a.md" || setup.Children[1].Path != "/content/02_setup/b.md" {
		t.Errorf("02_setup children out of order: %v", Flatten(setup.Children))
	}
	if roots[2].Path != "/content/guide.md" || !math.IsInf(roots[2].SortKey, 1) {
		t.Errorf("root[2] = %+v, want guide document", roots[2])
	}

	want := []string{"/content/01_intro.md", "/content/02_setup/a.md", "/content/02_setup/b.md", "/content/guide.md"}
	if got := Flatten(roots); !reflect.DeepEqual(got, want) {
		t.Errorf("Flatten = %v, want %v", got, want)
	}
}

func TestBuildMergesFoldersByRawKey(t *testing.T) {
	roots := Build([]string{
		"/content/03_ops/01_deploy/x.md",
		"/content/03_ops/01_deploy/y.md",
		"/content/03_ops/z.md",
	}, DefaultBuildOptions())

	if len(roots) != 1 {
		t.Fatalf("expected folders to merge into 1 root, got %d", len(roots))
	}
	ops := roots[0]
	if len(ops.Children) != 2 {
		t.Fatalf("expected 2 children under ops, got %d", len(ops.Children))
	}
	deploy := ops.Children[0]
	if deploy.Key != "03_ops/01_deploy" {
		t.Errorf("nested key = %q, want raw chain 03_ops/01_deploy", deploy.Key)
	}
	if got := FolderKeys(roots); !reflect.DeepEqual(got, []string{"03_ops", "03_ops/01_deploy"}) {
		t.Errorf("FolderKeys = %v", got)
	}
}

func TestBuildEdgeCases(t *testing.T) {
	roots := Build([]string{"/content/.md", "/content/", "/content//a//b.md"}, DefaultBuildOptions())
	if got := Flatten(roots); !reflect.DeepEqual(got, []string{"/content//a//b.md"}) {
		t.Errorf("empty paths should be dropped and empty segments skipped, got %v", got)
	}

	dup := Build([]string{"/content/a.md", "/content/a.md"}, DefaultBuildOptions())
	if len(dup) != 2 {
		t.Errorf("duplicate paths should produce separate nodes, got %d", len(dup))
	}
}

func TestFind(t *testing.T) {
	roots := Build([]string{"/content/01_a/b.md", "/content/c.md"}, DefaultBuildOptions())
	if n := Find(roots, "/content/01_a/b.md"); n == nil || n.Title != "B" {
		t.Errorf("Find nested doc = %+v", n)
	}
	if n := Find(roots, "/content/missing.md"); n != nil {
		t.Errorf("Find missing = %+v, want nil", n)
	}
}

func pathGen() *rapid.Generator[string] {
	seg := rapid.OneOf(
		rapid.StringMatching(`[0-9]{1,2}_[a-c]{1,2}`),
		rapid.StringMatching(`[a-c]{1,2}`),
	)
	return rapid.Custom(func(t *rapid.T) string {
		segs := rapid.SliceOfN(seg, 1, 3).Draw(t, "segs")
		p := "/content"
		for _, s := range segs {
			p += "/" + s
		}
		return p + ".md"
	})
}

func assertSorted(t *rapid.T, nodes []*Node) {
	for i := 1; i < len(nodes); i++ {
		a, b := nodes[i-1], nodes[i]
		if a.SortKey > b.SortKey || (a.SortKey == b.SortKey && a.SortLabel > b.SortLabel) {
			t.Fatalf("siblings out of order: %s(%v,%q) before %s(%v,%q)",
				a.ID(), a.SortKey, a.SortLabel, b.ID(), b.SortKey, b.SortLabel)
		}
	}
	for _, n := range nodes {
		if n.IsFolder() {
			assertSorted(t, n.Children)
		}
	}
}

func TestBuildProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		paths := rapid.SliceOfNDistinct(pathGen(), 0, 20, rapid.ID[string]).Draw(t, "paths")
		roots := Build(paths, DefaultBuildOptions())
		assertSorted(t, roots)

		if got := len(Flatten(roots)); got != len(paths) {
			t.Fatalf("Flatten returned %d paths for %d inputs", got, len(paths))
		}

		shuffled := append([]string(nil), paths...)
		seed := rapid.Int64().Draw(t, "seed")
		rand.New(rand.NewSource(seed)).Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		again := Build(shuffled, DefaultBuildOptions())
		if !reflect.DeepEqual(dump(roots), dump(again)) {
			t.Fatalf("build depends on input order:\n%v\n%v", dump(roots), dump(again))
		}
	})
}

func dump(nodes []*Node) []string {
	var out []string
	Walk(nodes, func(n *Node, depth int) bool {
		out = append(out, fmt.Sprintf("%d:%s:%s", depth, n.Kind, n.ID()))
		return true
	})
	return out
}

func TestBuildGeneratedContent(t *testing.T) {
	c := testutil.NewDefault().Content(4, 5)
	paths := c.Paths("/content/")
	roots := Build(paths, DefaultBuildOptions())

	// Introduction, four sections, then the unnumbered appendix.
	if len(roots) != 6 {
		t.Fatalf("got %d roots, want 6", len(roots))
	}
	if roots[0].Label() != "Introduction" || roots[5].Label() != "Appendix" {
		t.Errorf("first/last roots = %q, %q", roots[0].Label(), roots[5].Label())
	}
	for _, section := range roots[1:5] {
		if !section.IsFolder() || len(section.Children) != 5 {
			t.Errorf("section %q: folder=%v children=%d", section.Key, section.IsFolder(), len(section.Children))
		}
	}
	if got := Flatten(roots); len(got) != len(paths) {
		t.Errorf("Flatten returned %d paths, want %d", len(got), len(paths))
	}
}
