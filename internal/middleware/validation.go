package middleware

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// MaxTurns caps the turns a single API request may ask for.
const MaxTurns = 50

// ValidateNumTurns validates the requested number of turns.
func ValidateNumTurns(n int) error {
	if n <= 0 {
		return errors.New("num_turns must be positive")
	}
	if n > MaxTurns {
		return fmt.Errorf("num_turns exceeds maximum of %d", MaxTurns)
	}
	return nil
}

// ValidateRunID validates a run ID.
func ValidateRunID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid run ID format")
	}
	return nil
}
