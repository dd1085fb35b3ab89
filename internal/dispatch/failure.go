package dispatch

import (
	"errors"

	"github.com/MJE43/mapgame-session-go/internal/engine"
)

var (
	ErrUnknownFunction  = errors.New("unknown function")
	ErrInvalidArguments = errors.New("invalid arguments")
	errInternal         = errors.New("internal error")
)

// Kind names a failure class on the wire.
type Kind string

const (
	KindInvalidToken           Kind = "InvalidToken"
	KindInvalidSession         Kind = "InvalidSession"
	KindSessionNotFound        Kind = "SessionNotFound"
	KindOutOfRange             Kind = "OutOfRange"
	KindBackwardJumpDisallowed Kind = "BackwardJumpDisallowed"
	KindForwardJumpDisallowed  Kind = "ForwardJumpDisallowed"
	KindDefinitionNotFound     Kind = "DefinitionNotFound"
	KindAccessDenied           Kind = "AccessDenied"
	KindUnknownFunction        Kind = "UnknownFunction"
	KindInvalidArguments       Kind = "InvalidArguments"
	KindStorage                Kind = "StorageError"
	KindInternal               Kind = "InternalError"
)

// Failure is the tagged error half of a Result.
type Failure struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Classify maps an error onto its failure kind. SessionNotFound is checked
// before InvalidToken because it wraps it.
func Classify(err error) Kind {
	switch {
	case errors.Is(err, engine.ErrSessionNotFound):
		return KindSessionNotFound
	case errors.Is(err, engine.ErrInvalidToken):
		return KindInvalidToken
	case errors.Is(err, engine.ErrInvalidSession):
		return KindInvalidSession
	case errors.Is(err, engine.ErrOutOfRange):
		return KindOutOfRange
	case errors.Is(err, engine.ErrBackwardJumpDisallowed):
		return KindBackwardJumpDisallowed
	case errors.Is(err, engine.ErrForwardJumpDisallowed):
		return KindForwardJumpDisallowed
	case errors.Is(err, engine.ErrDefinitionNotFound):
		return KindDefinitionNotFound
	case errors.Is(err, engine.ErrAccessDenied):
		return KindAccessDenied
	case errors.Is(err, ErrUnknownFunction):
		return KindUnknownFunction
	case errors.Is(err, ErrInvalidArguments):
		return KindInvalidArguments
	case errors.Is(err, engine.ErrStorage):
		return KindStorage
	default:
		return KindInternal
	}
}

func failureFor(err error) *Failure {
	kind := Classify(err)
	msg := err.Error()
	// Store errors can carry driver detail; clients get the generic text.
	if kind == KindStorage {
		msg = engine.ErrStorage.Error()
	}
	if kind == KindInternal {
		msg = errInternal.Error()
	}
	return &Failure{Kind: kind, Message: msg}
}
