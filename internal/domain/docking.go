package domain

import (
	"context"
	"maps"
	"math"
)

// LigandKey is the details field that carries the docked pose.
const LigandKey = "ligand"

// PoseFormat names the text encoding of a docked pose.
type PoseFormat string

// PoseFormatMolBlock is an MDL V2000 molfile block with 3D coordinates.
const PoseFormatMolBlock PoseFormat = "molblock"

// Pose is the predicted ligand conformation returned by the engine.
type Pose struct {
	Format PoseFormat
	Data   string
}

// IsZero reports whether the engine returned no pose.
func (p Pose) IsZero() bool { return p.Data == "" }

// DockingOutput is the engine's raw result: score, opaque details and the pose.
type DockingOutput struct {
	Score   float64
	Details map[string]any
	Pose    Pose
}

// DockingResult is the client-facing result.
// Details always contains LigandKey: the pose text when requested, nil otherwise.
type DockingResult struct {
	Score   float64
	Details map[string]any
}

// NewDockingResult applies the ligand policy to an engine output.
// The input details map is never mutated.
func NewDockingResult(out DockingOutput, returnMol bool) (DockingResult, error) {
	if math.IsNaN(out.Score) || math.IsInf(out.Score, 0) {
		return DockingResult{}, NewDockingError("docking engine returned a non-finite score")
	}

	details := make(map[string]any, len(out.Details)+1)
	maps.Copy(details, out.Details)

	if returnMol {
		if out.Pose.IsZero() {
			return DockingResult{}, NewDockingError("docking engine returned no ligand pose")
		}
		details[LigandKey] = out.Pose.Data
	} else {
		details[LigandKey] = nil
	}

	return DockingResult{Score: out.Score, Details: details}, nil
}

// Engine is the docking engine contract: load_target(name) -> Target.
type Engine interface {
	LoadTarget(ctx context.Context, name string) (Target, error)
}

// Target is a loaded receptor: Target.dock(smiles) -> (score, details).
type Target interface {
	Name() string
	Dock(ctx context.Context, smiles string) (DockingOutput, error)
}

// TargetLister enumerates the receptors an engine knows about.
type TargetLister interface {
	ListTargets(ctx context.Context) ([]string, error)
}

// HealthChecker verifies engine availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
