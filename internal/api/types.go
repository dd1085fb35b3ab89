package api

import (
	"github.com/MJE43/mapgame-session-go/internal/dispatch"
	"github.com/MJE43/mapgame-session-go/internal/engine"
	"github.com/MJE43/mapgame-session-go/internal/store"
)

// EngineError represents a structured error response with context
type EngineError struct {
	Type      string                 `json:"type"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Timestamp string                 `json:"timestamp,omitempty"`
}

// Error implements the error interface
func (e EngineError) Error() string {
	return e.Message
}

// Error types with proper categorization
const (
	// Input validation errors
	ErrTypeValidation       = "validation_error"
	ErrTypeOutOfRange       = "out_of_range"
	ErrTypeInvalidArguments = "invalid_arguments"
	ErrTypeUnknownFunction  = "unknown_function"

	// Session errors
	ErrTypeInvalidToken       = "invalid_token"
	ErrTypeInvalidSession     = "invalid_session"
	ErrTypeSessionNotFound    = "session_not_found"
	ErrTypeDefinitionNotFound = "definition_not_found"

	// Policy errors
	ErrTypeJumpDisallowed = "jump_disallowed"
	ErrTypeAccessDenied   = "access_denied"

	// System errors
	ErrTypeStorage            = "storage_error"
	ErrTypeTimeout            = "timeout"
	ErrTypeInternal           = "internal_error"
	ErrTypeServiceUnavailable = "service_unavailable"
)

// ErrorCategory represents error categories for monitoring
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "validation"
	CategorySession    ErrorCategory = "session"
	CategoryPolicy     ErrorCategory = "policy"
	CategorySystem     ErrorCategory = "system"
	CategoryTimeout    ErrorCategory = "timeout"
)

// GetErrorCategory returns the category for an error type
func GetErrorCategory(errType string) ErrorCategory {
	switch errType {
	case ErrTypeValidation, ErrTypeOutOfRange, ErrTypeInvalidArguments, ErrTypeUnknownFunction:
		return CategoryValidation
	case ErrTypeInvalidToken, ErrTypeInvalidSession, ErrTypeSessionNotFound, ErrTypeDefinitionNotFound:
		return CategorySession
	case ErrTypeJumpDisallowed, ErrTypeAccessDenied:
		return CategoryPolicy
	case ErrTypeTimeout:
		return CategoryTimeout
	default:
		return CategorySystem
	}
}

// VersionInfo contains engine version information
type VersionInfo struct {
	EngineVersion string `json:"engine_version"`
	GitCommit     string `json:"git_commit,omitempty"`
	BuildTime     string `json:"build_time,omitempty"`
}

// CreateSessionRequest starts a session on a definition.
type CreateSessionRequest struct {
	Definition string `json:"definition"`
	Player     string `json:"player,omitempty"`
}

// CreateSessionResponse carries the new session token.
type CreateSessionResponse struct {
	Token         string `json:"token"`
	EngineVersion string `json:"engine_version"`
}

// SessionResponse describes a live session.
type SessionResponse struct {
	Session       engine.SessionInfo `json:"session"`
	EngineVersion string             `json:"engine_version"`
}

// InvokeRequest names a session function and its positional arguments.
type InvokeRequest struct {
	Function string `json:"function"`
	Args     []any  `json:"args,omitempty"`
}

// InvokeResponse is the dispatcher result as sent on the wire.
type InvokeResponse struct {
	dispatch.Result
	Function  string `json:"function"`
	RequestID string `json:"request_id,omitempty"`
}

// DefinitionsResponse lists the definitions a player may start.
type DefinitionsResponse struct {
	Definitions   []store.DefinitionSummary `json:"definitions"`
	EngineVersion string                    `json:"engine_version"`
}

// ResultsResponse lists archived game results.
type ResultsResponse struct {
	Results       []engine.Result `json:"results"`
	EngineVersion string          `json:"engine_version"`
}
