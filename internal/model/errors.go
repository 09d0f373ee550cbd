package model

import (
	"errors"
	"fmt"
)

// ErrContractViolation matches every *ContractError via errors.Is.
var ErrContractViolation = errors.New("model response violates the turn contract")

// ContractKind classifies a contract violation.
type ContractKind string

const (
	ContractMalformed         ContractKind = "malformed_response"
	ContractMissingField      ContractKind = "missing_field"
	ContractInvalidAssessment ContractKind = "invalid_assessment"
	ContractInvalidGoal       ContractKind = "invalid_goal"
	ContractUnknownTrack      ContractKind = "unknown_track"
	ContractRepeatedTrack     ContractKind = "repeated_track"
)

// ContractError reports a structurally valid call whose response cannot be accepted.
type ContractError struct {
	Kind    ContractKind
	Purpose string
	Turn    int
	Detail  string
}

func (e *ContractError) Error() string {
	if e.Turn > 0 {
		return fmt.Sprintf("%s turn %d: %s: %s", e.Purpose, e.Turn, e.Kind, e.Detail)
	}
	return fmt.Sprintf("%s: %s: %s", e.Purpose, e.Kind, e.Detail)
}

// Is makes errors.Is(err, ErrContractViolation) true.
func (e *ContractError) Is(target error) bool {
	return target == ErrContractViolation
}
