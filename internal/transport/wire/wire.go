// Package wire defines the JSON envelope exchanged with docking engines.
// The process bridge reads one Request from stdin and writes one Reply to stdout;
// the remote engine uses the same shapes as HTTP bodies.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kailas-cloud/dockapi/internal/domain"
)

// Engine operations.
const (
	OpDock    = "dock"
	OpLoad    = "load"
	OpTargets = "targets"
	OpPing    = "ping"
)

// DockParams are the engine tuning knobs sent with every dock request.
type DockParams struct {
	PH      float64 `json:"ph,omitempty"`
	NumCPUs int     `json:"num_cpus,omitempty"`
	Seed    int64   `json:"seed,omitempty"`
}

// Request is a single engine call.
type Request struct {
	Op     string `json:"op"`
	Target string `json:"target,omitempty"`
	SMILES string `json:"smiles,omitempty"`
	DockParams
}

// NewDockRequest builds a dock request.
func NewDockRequest(target, smiles string, params DockParams) Request {
	return Request{Op: OpDock, Target: target, SMILES: smiles, DockParams: params}
}

// Reply is the engine's answer. OK=false carries the engine's failure message in Error.
type Reply struct {
	OK           bool           `json:"ok"`
	Error        string         `json:"error,omitempty"`
	Score        *float64       `json:"score,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	Ligand       string         `json:"ligand,omitempty"`
	LigandFormat string         `json:"ligand_format,omitempty"`
	Targets      []string       `json:"targets,omitempty"`
}

// ErrEmptyReply signals an engine that produced no output.
var ErrEmptyReply = errors.New("empty engine reply")

// DecodeReply parses a reply. Numbers inside details stay json.Number.
func DecodeReply(data []byte) (Reply, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Reply{}, ErrEmptyReply
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var r Reply
	if err := dec.Decode(&r); err != nil {
		return Reply{}, fmt.Errorf("decode engine reply: %w", err)
	}
	return r, nil
}

// Err returns the engine failure as a *domain.DockingError, or nil for OK replies.
func (r Reply) Err() error {
	if r.OK {
		return nil
	}
	if r.Error == "" {
		return domain.NewDockingError("docking engine reported a failure without a message")
	}
	return domain.NewDockingError(r.Error)
}

// Output converts a dock reply into a domain output.
func (r Reply) Output() (domain.DockingOutput, error) {
	if err := r.Err(); err != nil {
		return domain.DockingOutput{}, err
	}
	if r.Score == nil {
		return domain.DockingOutput{}, domain.NewDockingError("docking engine returned no score")
	}

	details := r.Details
	if details == nil {
		details = map[string]any{}
	}

	format := domain.PoseFormat(r.LigandFormat)
	if format == "" {
		format = domain.PoseFormatMolBlock
	}

	return domain.DockingOutput{
		Score:   *r.Score,
		Details: details,
		Pose:    domain.Pose{Format: format, Data: r.Ligand},
	}, nil
}
