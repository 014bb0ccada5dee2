package dockapi

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors. Use errors.Is() to check an *APIError against them.
var (
	// ErrDockingFailed: the engine rejected the target or the molecule (HTTP 400).
	ErrDockingFailed = errors.New("docking failed")
	// ErrUnauthorized: missing or invalid API key (HTTP 401).
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTimeout: the server gave up waiting for the engine (HTTP 504).
	ErrTimeout = errors.New("docking timed out")
	// ErrUnavailable: the server or its docking engine is unavailable (HTTP 502, 503).
	ErrUnavailable = errors.New("service unavailable")
)

// APIError is a non-2xx response from the service.
// Detail is the server's {"detail": ...} message, verbatim.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("dockapi: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("dockapi: HTTP %d: %s", e.StatusCode, e.Detail)
}

// Is maps status codes onto the sentinel errors.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrDockingFailed:
		return e.StatusCode == http.StatusBadRequest
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrTimeout:
		return e.StatusCode == http.StatusGatewayTimeout
	case ErrUnavailable:
		return e.StatusCode == http.StatusServiceUnavailable || e.StatusCode == http.StatusBadGateway
	}
	return false
}
