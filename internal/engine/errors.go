package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores for an absent key.
	ErrNotFound = errors.New("not found")

	ErrInvalidToken           = errors.New("invalid session token")
	ErrInvalidSession         = errors.New("session definition no longer available")
	ErrOutOfRange             = errors.New("index out of range")
	ErrBackwardJumpDisallowed = errors.New("jumping back is not allowed")
	ErrForwardJumpDisallowed  = errors.New("jumping forward is not allowed")
	ErrDefinitionNotFound     = errors.New("game definition not found")
	ErrAccessDenied           = errors.New("access to game definition denied")
	ErrStorage                = errors.New("storage failure")
)

// ErrSessionNotFound is returned when scoring a session that is already
// gone. It also matches ErrInvalidToken.
var ErrSessionNotFound = fmt.Errorf("session not found: %w", ErrInvalidToken)

func storageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
