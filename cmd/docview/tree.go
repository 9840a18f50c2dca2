package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"

	"github.com/vanderheijden86/docview/pkg/doctree"
)

func newTreeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Print the table of contents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := root.loadConfig(cmd.ErrOrStderr())
			src, err := openSource(cfg)
			if err != nil {
				return err
			}
			return printTree(cmd.OutOrStdout(), src.Name(), src.Paths(), buildOptions(cfg))
		},
	}
}

// printTree writes the document tree in sidebar order, each document with
// its logical path.
func printTree(w io.Writer, name string, paths []string, opts doctree.BuildOptions) error {
	roots := doctree.Build(paths, opts)
	if len(roots) == 0 {
		_, err := fmt.Fprintf(w, "No documents found in %s.\n", name)
		return err
	}
	tree := treeprint.NewWithRoot(name)
	addTreeNodes(tree, roots)
	_, err := fmt.Fprint(w, tree.String())
	return err
}

func addTreeNodes(branch treeprint.Tree, nodes []*doctree.Node) {
	for _, n := range nodes {
		if n.IsFolder() {
			addTreeNodes(branch.AddBranch(n.Label()), n.Children)
			continue
		}
		branch.AddMetaNode(n.Path, n.Label())
	}
}
