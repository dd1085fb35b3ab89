package engine

import (
	"context"
	"time"

	"github.com/MJE43/mapgame-session-go/internal/game"
)

// DefinitionStore resolves a definition reference for a player. It returns
// ErrNotFound for unknown references and ErrAccessDenied when the player may
// not play the definition.
type DefinitionStore interface {
	Resolve(ctx context.Context, ref, player string) (*game.Definition, error)
}

// SessionStore persists session state by token. Load returns ErrNotFound for
// an unknown token, Delete returns ErrNotFound when nothing was removed.
// Implementations must hand out copies; the engine mutates what Load returns.
type SessionStore interface {
	Load(ctx context.Context, token string) (*State, error)
	Save(ctx context.Context, state *State) error
	Delete(ctx context.Context, token string) error
}

// Locker serializes calls on one token across processes sharing a store.
// The engine always holds its in-process lock as well.
type Locker interface {
	Lock(ctx context.Context, token string) (unlock func(), err error)
}

// ExpiredLister lists up to limit sessions last saved before olderThan.
type ExpiredLister interface {
	ExpiredTokens(ctx context.Context, olderThan time.Time, limit int) ([]string, error)
}

// ResultSink archives finished games. Recording the same token twice must
// succeed so a failed scoring attempt can be retried.
type ResultSink interface {
	RecordResult(ctx context.Context, result Result) error
}

// Result is the archived outcome of a finished session.
type Result struct {
	Token        string    `json:"token"`
	DefinitionID string    `json:"definitionId"`
	Player       string    `json:"player,omitempty"`
	Score        Score     `json:"score"`
	StartedAt    time.Time `json:"startedAt"`
	CompletedAt  time.Time `json:"completedAt"`
}
