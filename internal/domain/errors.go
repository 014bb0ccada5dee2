package domain

import (
	"errors"
)

var (
	// ErrInvalidQuery signals a malformed docking request (missing or oversized fields).
	ErrInvalidQuery = errors.New("invalid query")
	// ErrDockingFailed signals any failure raised by the docking engine:
	// unknown target, unparsable molecule, internal engine fault.
	ErrDockingFailed = errors.New("docking failed")
	// ErrDockingTimeout signals that the engine did not finish within the configured timeout.
	ErrDockingTimeout = errors.New("docking timed out")
	// ErrEngineUnavailable signals an engine that failed on its side (server error, overload).
	ErrEngineUnavailable = errors.New("docking engine unavailable")
	// ErrTargetListingUnsupported signals an engine that cannot enumerate its targets.
	ErrTargetListingUnsupported = errors.New("target listing not supported by engine")
)

// DockingError carries the engine's own failure description.
// Message is surfaced to clients verbatim.
type DockingError struct {
	Message string
}

func (e *DockingError) Error() string { return e.Message }

func (e *DockingError) Unwrap() error { return ErrDockingFailed }

// NewDockingError creates a docking failure with the engine's message.
func NewDockingError(message string) error {
	return &DockingError{Message: message}
}

// DockingFailureMessage extracts the engine's failure description from an error chain.
func DockingFailureMessage(err error) (string, bool) {
	var de *DockingError
	if errors.As(err, &de) {
		return de.Message, true
	}
	return "", false
}
