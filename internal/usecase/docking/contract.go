package docking

import (
	"context"

	"github.com/kailas-cloud/dockapi/internal/domain"
)

// Engine loads receptors; the result cache and engine transports satisfy it.
type Engine interface {
	LoadTarget(ctx context.Context, name string) (domain.Target, error)
}
