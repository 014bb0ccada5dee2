package main

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newTargetsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List the protein targets the server can dock against",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := c.newClient()
			if err != nil {
				return err
			}
			targets, err := client.Targets(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if c.v.GetBool(keyJSON) {
				return writeJSON(out, map[string][]string{"targets": targets})
			}
			for _, t := range targets {
				fmt.Fprintln(out, t)
			}
			pterm.Info.WithWriter(cmd.ErrOrStderr()).Printfln("%d targets", len(targets))
			return nil
		},
	}
}
