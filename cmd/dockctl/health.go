package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var errUnhealthy = errors.New("service is not healthy")

func newHealthCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := c.newClient()
			if err != nil {
				return err
			}
			status, err := client.Health(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if c.v.GetBool(keyJSON) {
				if err := writeJSON(out, status); err != nil {
					return err
				}
			} else {
				names := make([]string, 0, len(status.Checks))
				for name := range status.Checks {
					names = append(names, name)
				}
				sort.Strings(names)

				rows := [][]string{{"Check", "Status"}}
				for _, name := range names {
					rows = append(rows, []string{name, status.Checks[name]})
				}
				if err := pterm.DefaultTable.WithHasHeader().WithWriter(out).WithData(rows).Render(); err != nil {
					return fmt.Errorf("render health: %w", err)
				}
				fmt.Fprintf(out, "status: %s\n", status.Status)
			}

			if !status.Healthy() {
				return fmt.Errorf("%w: %s", errUnhealthy, status.Status)
			}
			return nil
		},
	}
}
