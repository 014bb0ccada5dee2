// Package dockapi provides a Go client for the dockapi molecular docking service.
//
// A docking call sends a protein target name and a SMILES string and returns
// the engine's binding score plus its details. The docked pose (an MDL molblock)
// is included only when requested.
//
//	client, _ := dockapi.New("http://localhost:8000", dockapi.WithAPIKey(key))
//	res, err := client.Dock(ctx, dockapi.DockRequest{Target: "ABL1", SMILES: "CCO"})
//	if errors.Is(err, dockapi.ErrDockingFailed) {
//	    // the engine rejected the target or the molecule
//	}
//	fmt.Println(res.Score)
package dockapi
