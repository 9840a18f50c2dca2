package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/docview/pkg/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of docview",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "docview %s\n", version.Version)
		},
	}
}
