//go:build ignore

// generate_testdata.go writes generated documentation trees for manual runs
// and profiling.
// Usage: go run scripts/generate_testdata.go [out-dir]
//
// Creates:
//
//	testdata/content/small   (3 sections x 4 documents)
//	testdata/content/medium  (10 sections x 10 documents)
//	testdata/content/large   (25 sections x 40 documents)
//
// Then: docview --dir testdata/content/large
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/vanderheijden86/docview/pkg/testutil"
)

type datasetSpec struct {
	name     string
	sections int
	docs     int
	every    int
}

var datasets = []datasetSpec{
	{"small", 3, 4, 2},
	{"medium", 10, 10, 3},
	{"large", 25, 40, 5},
}

func main() {
	outputDir := filepath.Join("testdata", "content")
	if len(os.Args) > 1 {
		outputDir = os.Args[1]
	}
	fsys := afero.NewOsFs()

	for _, ds := range datasets {
		dir := filepath.Join(outputDir, ds.name)
		if err := os.RemoveAll(dir); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to clear %s: %v\n", dir, err)
			os.Exit(1)
		}

		gen := testutil.New(testutil.GeneratorConfig{Seed: int64(ds.sections * ds.docs), DiagramEvery: ds.every})
		content := gen.Content(ds.sections, ds.docs)
		if err := content.Write(fsys, filepath.ToSlash(dir)); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", ds.name, err)
			os.Exit(1)
		}
		fmt.Printf("  %-7s %4d documents, %3d diagrams -> %s\n", ds.name, len(content.Files), content.Diagrams, dir)
	}
}
