package main

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/pterm/pterm"

	dockapi "github.com/kailas-cloud/dockapi/pkg/sdk"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printError renders API errors with the server's detail message.
func printError(w io.Writer, err error) {
	var apiErr *dockapi.APIError
	switch {
	case errors.Is(err, dockapi.ErrDockingFailed) && errors.As(err, &apiErr):
		pterm.Error.WithWriter(w).Println("Docking failed: " + apiErr.Detail)
	case errors.Is(err, dockapi.ErrUnauthorized):
		pterm.Error.WithWriter(w).Println("Unauthorized: set --api-key or DOCKCTL_API_KEY")
	default:
		pterm.Error.WithWriter(w).Println(err.Error())
	}
}
