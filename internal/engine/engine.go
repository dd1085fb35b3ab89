// Package engine implements the token-addressed game session protocol:
// issuing sessions, navigating prompts, recording choices, replaying past
// map actions and scoring finished games.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MJE43/mapgame-session-go/internal/game"
)

// Engine runs session operations against the definition and session stores.
// Calls for the same token are serialized; different tokens run in parallel.
type Engine struct {
	definitions DefinitionStore
	sessions    SessionStore
	results     ResultSink
	locks       *keyedMutex
	remote      Locker
	logger      *log.Logger
	now         func() time.Time
	newToken    func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithResultSink archives every scored game before its session is deleted.
func WithResultSink(sink ResultSink) Option {
	return func(e *Engine) { e.results = sink }
}

// WithLocker adds a cross-process lock taken after the in-process one.
func WithLocker(l Locker) Option {
	return func(e *Engine) { e.remote = l }
}

// WithLogger replaces the default stdout logger.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithTokenSource overrides token generation.
func WithTokenSource(next func() string) Option {
	return func(e *Engine) { e.newToken = next }
}

// New creates an engine.
func New(definitions DefinitionStore, sessions SessionStore, opts ...Option) *Engine {
	e := &Engine{
		definitions: definitions,
		sessions:    sessions,
		locks:       newKeyedMutex(),
		logger:      log.New(os.Stdout, "[ENGINE] ", log.LstdFlags|log.Lshortfile),
		now:         func() time.Time { return time.Now().UTC() },
		newToken:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SessionInfo is a read-only summary of a live session.
type SessionInfo struct {
	Token              string    `json:"token"`
	DefinitionID       string    `json:"definitionId"`
	Title              string    `json:"title,omitempty"`
	Player             string    `json:"player,omitempty"`
	PromptCount        int       `json:"promptCount"`
	CurrentPromptIndex *int      `json:"currentPromptIndex"`
	Answered           int       `json:"answered"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// CreateSession resolves definitionRef for player and stores a fresh session
// for it. player may be empty.
func (e *Engine) CreateSession(ctx context.Context, definitionRef, player string) (string, error) {
	definitionRef = strings.TrimSpace(definitionRef)
	if definitionRef == "" {
		return "", fmt.Errorf("%w: empty reference", ErrDefinitionNotFound)
	}

	if _, err := e.definitions.Resolve(ctx, definitionRef, player); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return "", fmt.Errorf("%w: %s", ErrDefinitionNotFound, definitionRef)
		case errors.Is(err, ErrAccessDenied):
			return "", err
		default:
			return "", storageError("resolve definition", err)
		}
	}

	now := e.now()
	st := &State{
		Token:           e.newToken(),
		DefinitionID:    definitionRef,
		Player:          player,
		UserChoices:     map[int]int{},
		UserChoiceOrder: []int{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.sessions.Save(ctx, st); err != nil {
		return "", storageError("save session", err)
	}

	e.logger.Printf("session_created token=%s definition=%s player_set=%t", Fingerprint(st.Token), definitionRef, player != "")
	return st.Token, nil
}

// DestroySession ends a session early.
func (e *Engine) DestroySession(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidToken
	}
	unlock, err := e.lock(ctx, token)
	if err != nil {
		return err
	}
	defer unlock()

	if err := e.sessions.Delete(ctx, token); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidToken
		}
		return storageError("delete session", err)
	}
	e.logger.Printf("session_destroyed token=%s", Fingerprint(token))
	return nil
}

// Describe returns a summary of the session and checks that its definition
// still resolves.
func (e *Engine) Describe(ctx context.Context, token string) (SessionInfo, error) {
	unlock, err := e.lock(ctx, token)
	if err != nil {
		return SessionInfo{}, err
	}
	defer unlock()

	def, st, err := e.load(ctx, token)
	if err != nil {
		return SessionInfo{}, err
	}
	return SessionInfo{
		Token:              st.Token,
		DefinitionID:       st.DefinitionID,
		Title:              def.Title,
		Player:             st.Player,
		PromptCount:        def.PromptCount(),
		CurrentPromptIndex: cloneIndex(st.CurrentPromptIndex),
		Answered:           len(st.UserChoices),
		CreatedAt:          st.CreatedAt,
		UpdatedAt:          st.UpdatedAt,
	}, nil
}

// PromptCount returns the number of prompts in the session's definition.
func (e *Engine) PromptCount(ctx context.Context, token string) (int, error) {
	info, err := e.Describe(ctx, token)
	if err != nil {
		return 0, err
	}
	return info.PromptCount, nil
}

// GoToPrompt navigates to promptIndex and returns its display payload.
func (e *Engine) GoToPrompt(ctx context.Context, token string, promptIndex int) (json.RawMessage, error) {
	unlock, err := e.lock(ctx, token)
	if err != nil {
		return nil, err
	}
	defer unlock()

	def, st, err := e.load(ctx, token)
	if err != nil {
		return nil, err
	}
	from := st.CurrentPromptIndex
	payload, err := goToPrompt(def, st, promptIndex)
	if err != nil {
		e.logger.Printf("navigation_rejected token=%s prompt=%d error=%q", Fingerprint(token), promptIndex, err.Error())
		return nil, err
	}
	if err := e.save(ctx, st); err != nil {
		return nil, err
	}

	if from == nil || promptIndex != *from+1 {
		e.logger.Printf("navigation_jump token=%s from=%s to=%d", Fingerprint(token), formatIndex(from), promptIndex)
	}
	return payload, nil
}

// ChooseOption records an answer and returns the option's actions.
func (e *Engine) ChooseOption(ctx context.Context, token string, promptIndex, optionIndex int) ([]game.Action, error) {
	unlock, err := e.lock(ctx, token)
	if err != nil {
		return nil, err
	}
	defer unlock()

	def, st, err := e.load(ctx, token)
	if err != nil {
		return nil, err
	}
	actions, err := chooseOption(def, st, promptIndex, optionIndex)
	if err != nil {
		return nil, err
	}
	if err := e.save(ctx, st); err != nil {
		return nil, err
	}
	return actions, nil
}

// PastActions returns the map actions to replay for a reattaching client.
func (e *Engine) PastActions(ctx context.Context, token string) ([]game.Action, error) {
	unlock, err := e.lock(ctx, token)
	if err != nil {
		return nil, err
	}
	defer unlock()

	def, st, err := e.load(ctx, token)
	if err != nil {
		return nil, err
	}
	return pastActions(def, st)
}

// ComputeScore scores the session and ends it. Scoring an already finished
// session fails with ErrSessionNotFound.
func (e *Engine) ComputeScore(ctx context.Context, token string) (Score, error) {
	unlock, err := e.lock(ctx, token)
	if err != nil {
		return Score{}, err
	}
	defer unlock()

	def, st, err := e.load(ctx, token)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return Score{}, ErrSessionNotFound
		}
		return Score{}, err
	}

	score, err := computeScore(def, st)
	if err != nil {
		return Score{}, err
	}

	if e.results != nil {
		result := Result{
			Token:        st.Token,
			DefinitionID: st.DefinitionID,
			Player:       st.Player,
			Score:        score,
			StartedAt:    st.CreatedAt,
			CompletedAt:  e.now(),
		}
		if err := e.results.RecordResult(ctx, result); err != nil {
			return Score{}, storageError("record result", err)
		}
	}

	// The result is archived idempotently, so a failed delete can be retried
	// and a session that vanished after loading still counts as finished.
	if err := e.sessions.Delete(ctx, token); err != nil && !errors.Is(err, ErrNotFound) {
		return Score{}, storageError("delete session", err)
	}

	e.logger.Printf("session_scored token=%s definition=%s total=%s possible=%s rows=%d",
		Fingerprint(token), st.DefinitionID, score.Total, score.Possible, len(score.Rows))
	return score, nil
}

// purgeBatch bounds one PurgeExpired pass; the next pass picks up the rest.
const purgeBatch = 500

// PurgeExpired deletes sessions not saved since olderThan. Each candidate is
// reloaded under its token lock and kept if a call touched it in between.
func (e *Engine) PurgeExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	lister, ok := e.sessions.(ExpiredLister)
	if !ok {
		return 0, fmt.Errorf("%w: session store cannot list expired sessions", ErrStorage)
	}
	tokens, err := lister.ExpiredTokens(ctx, olderThan, purgeBatch)
	if err != nil {
		return 0, storageError("list expired sessions", err)
	}

	var purged int64
	for _, token := range tokens {
		expired, err := e.expire(ctx, token, olderThan)
		if err != nil {
			return purged, err
		}
		if expired {
			purged++
		}
	}
	return purged, nil
}

func (e *Engine) expire(ctx context.Context, token string, olderThan time.Time) (bool, error) {
	unlock, err := e.lock(ctx, token)
	if err != nil {
		return false, err
	}
	defer unlock()

	st, err := e.sessions.Load(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storageError("load session", err)
	}
	if !st.UpdatedAt.Before(olderThan) {
		return false, nil
	}
	if err := e.sessions.Delete(ctx, token); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, storageError("delete session", err)
	}
	e.logger.Printf("session_expired token=%s idle_since=%s", Fingerprint(token), st.UpdatedAt.UTC().Format(time.RFC3339))
	return true, nil
}

// lock takes the in-process token lock, then the cross-process one if set.
func (e *Engine) lock(ctx context.Context, token string) (func(), error) {
	unlock := e.locks.Lock(token)
	if e.remote == nil {
		return unlock, nil
	}
	release, err := e.remote.Lock(ctx, token)
	if err != nil {
		unlock()
		return nil, storageError("lock session", err)
	}
	return func() {
		release()
		unlock()
	}, nil
}

// load fetches the session and its definition. Callers hold the token lock.
func (e *Engine) load(ctx context.Context, token string) (*game.Definition, *State, error) {
	if token == "" {
		return nil, nil, ErrInvalidToken
	}

	st, err := e.sessions.Load(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, storageError("load session", err)
	}

	def, err := e.definitions.Resolve(ctx, st.DefinitionID, st.Player)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return nil, nil, fmt.Errorf("%w: %s", ErrInvalidSession, st.DefinitionID)
		case errors.Is(err, ErrAccessDenied):
			return nil, nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
		default:
			return nil, nil, storageError("resolve definition", err)
		}
	}
	return def, st, nil
}

func (e *Engine) save(ctx context.Context, st *State) error {
	st.UpdatedAt = e.now()
	if err := e.sessions.Save(ctx, st); err != nil {
		return storageError("save session", err)
	}
	return nil
}

// Fingerprint identifies a token in logs without exposing it.
func Fingerprint(token string) string {
	if token == "" {
		return "empty"
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])[:12]
}

func formatIndex(p *int) string {
	if p == nil {
		return "unset"
	}
	return fmt.Sprint(*p)
}
