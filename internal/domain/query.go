package domain

import (
	"fmt"
	"strings"
	"unicode"
)

// Input limits. Chemistry validity is left to the engine.
const (
	MaxSMILESLength = 5000
	MaxTargetLength = 128
)

// Query is a single docking request.
type Query struct {
	Target    string
	SMILES    string
	ReturnMol bool
}

// NewQuery trims and shape-checks the request fields.
func NewQuery(target, smiles string, returnMol bool) (Query, error) {
	target = strings.TrimSpace(target)
	smiles = strings.TrimSpace(smiles)

	if target == "" {
		return Query{}, fmt.Errorf("%w: target is required", ErrInvalidQuery)
	}
	if len(target) > MaxTargetLength {
		return Query{}, fmt.Errorf("%w: target exceeds %d characters", ErrInvalidQuery, MaxTargetLength)
	}
	if smiles == "" {
		return Query{}, fmt.Errorf("%w: smiles is required", ErrInvalidQuery)
	}
	if len(smiles) > MaxSMILESLength {
		return Query{}, fmt.Errorf("%w: smiles exceeds %d characters", ErrInvalidQuery, MaxSMILESLength)
	}
	// Text after a space or tab is the molecule's name in SMILES files; other control characters are rejected.
	if i := strings.IndexFunc(smiles, func(r rune) bool {
		return r != '\t' && unicode.IsControl(r)
	}); i >= 0 {
		return Query{}, fmt.Errorf("%w: smiles contains a control character at offset %d", ErrInvalidQuery, i)
	}

	return Query{Target: target, SMILES: smiles, ReturnMol: returnMol}, nil
}
