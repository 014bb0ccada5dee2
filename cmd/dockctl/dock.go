package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	dockapi "github.com/kailas-cloud/dockapi/pkg/sdk"
)

func newDockCmd(c *cli) *cobra.Command {
	var (
		req       dockapi.DockRequest
		useGET    bool
		ligandOut string
	)

	cmd := &cobra.Command{
		Use:   "dock",
		Short: "Dock a SMILES molecule against a protein target",
		Example: `  dockctl dock --target ABL1 --smiles CCO
  dockctl dock --target ABL1 --smiles CCO --return-mol --ligand-out pose.mol`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if ligandOut != "" {
				req.ReturnMol = true
			}
			client, err := c.newClient()
			if err != nil {
				return err
			}

			dock := client.Dock
			if useGET {
				dock = client.DockQuery
			}
			res, err := dock(cmd.Context(), req)
			if err != nil {
				return err
			}

			if ligandOut != "" {
				ligand, ok := res.Ligand()
				if !ok {
					return fmt.Errorf("server returned no ligand pose")
				}
				if err := os.WriteFile(ligandOut, []byte(ligand), 0o600); err != nil {
					return fmt.Errorf("write ligand: %w", err)
				}
			}

			if c.v.GetBool(keyJSON) {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			return printDockResult(cmd, req, res, ligandOut)
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.Target, "target", "", "protein target name (e.g. ABL1)")
	f.StringVar(&req.SMILES, "smiles", "", "ligand as a SMILES string")
	f.BoolVar(&req.ReturnMol, "return-mol", false, "ask the server for the docked pose")
	f.BoolVar(&useGET, "get", false, "send the request as GET with query parameters")
	f.StringVar(&ligandOut, "ligand-out", "", "write the docked pose to this file (implies --return-mol)")
	_ = cmd.MarkFlagRequired("target")
	_ = cmd.MarkFlagRequired("smiles")

	return cmd
}

func printDockResult(cmd *cobra.Command, req dockapi.DockRequest, res *dockapi.DockResult, ligandOut string) error {
	out := cmd.OutOrStdout()

	rows := [][]string{{"Field", "Value"}}
	rows = append(rows,
		[]string{"target", req.Target},
		[]string{"smiles", req.SMILES},
		[]string{"score", fmt.Sprintf("%g", res.Score)},
	)
	keys := make([]string, 0, len(res.Details))
	for k := range res.Details {
		if k == "ligand" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		rows = append(rows, []string{k, fmt.Sprint(res.Details[k])})
	}
	if res.Cache != "" {
		rows = append(rows, []string{"cache", res.Cache})
	}

	if err := pterm.DefaultTable.WithHasHeader().WithWriter(out).WithData(rows).Render(); err != nil {
		return fmt.Errorf("render result: %w", err)
	}

	switch ligand, ok := res.Ligand(); {
	case ligandOut != "":
		pterm.Success.WithWriter(out).Printfln("Pose written to %s", ligandOut)
	case ok:
		pterm.DefaultBox.
			WithTitle(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("Ligand pose")).
			WithPadding(1).
			WithWriter(out).
			Println(ligand)
	}
	return nil
}
