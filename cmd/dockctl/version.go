package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/dockapi/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of dockctl",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dockctl %s\n", version.String())
		},
	}
}
