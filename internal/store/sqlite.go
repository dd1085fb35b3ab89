package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/MJE43/mapgame-session-go/internal/engine"
	"github.com/MJE43/mapgame-session-go/internal/game"
)

// DefinitionSummary is a listing row for stored definitions.
type DefinitionSummary struct {
	ID          string          `json:"id"`
	Title       string          `json:"title,omitempty"`
	Owner       string          `json:"owner,omitempty"`
	Visibility  game.Visibility `json:"visibility"`
	PromptCount int             `json:"promptCount"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// SQLite stores sessions, definitions and finished-game results in one
// database file.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens/creates a SQLite database at dbPath and runs migrations.
func NewSQLite(dbPath string) (*SQLite, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite is not concurrent for writes
	s := &SQLite{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLite) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			definition_id TEXT NOT NULL,
			player TEXT NOT NULL DEFAULT '',
			current_prompt INTEGER,
			next_allowed INTEGER,
			choices_json TEXT NOT NULL DEFAULT '{}',
			choice_order_json TEXT NOT NULL DEFAULT '[]',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);`,

		`CREATE TABLE IF NOT EXISTS definitions (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			owner TEXT NOT NULL DEFAULT '',
			visibility TEXT NOT NULL DEFAULT 'public',
			prompt_count INTEGER NOT NULL,
			body_json TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS results (
			token TEXT PRIMARY KEY,
			definition_id TEXT NOT NULL,
			player TEXT NOT NULL DEFAULT '',
			total TEXT NOT NULL,
			possible TEXT NOT NULL,
			score_json TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_results_definition ON results(definition_id, completed_at DESC);`,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// --------- Sessions ---------

func (s *SQLite) Load(ctx context.Context, token string) (*engine.State, error) {
	var (
		st  engine.State
		row sessionRow
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT token, definition_id, player, current_prompt, next_allowed,
			choices_json, choice_order_json, created_at, updated_at
		FROM sessions WHERE token = ?`, token).Scan(
		&st.Token, &st.DefinitionID, &st.Player, &row.current, &row.nextAllowed,
		&row.choicesJSON, &row.orderJSON, &st.CreatedAt, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := row.decodeInto(&st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *SQLite) Save(ctx context.Context, st *engine.State) error {
	row, err := encodeSession(st)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (token, definition_id, player, current_prompt, next_allowed,
			choices_json, choice_order_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(token) DO UPDATE SET
			current_prompt = excluded.current_prompt,
			next_allowed = excluded.next_allowed,
			choices_json = excluded.choices_json,
			choice_order_json = excluded.choice_order_json,
			updated_at = excluded.updated_at`,
		st.Token, st.DefinitionID, st.Player, row.current, row.nextAllowed,
		row.choicesJSON, row.orderJSON, st.CreatedAt.UTC(), st.UpdatedAt.UTC())
	return err
}

func (s *SQLite) Delete(ctx context.Context, token string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.ErrNotFound
	}
	return nil
}

// ExpiredTokens lists up to limit sessions last saved before olderThan,
// oldest first.
func (s *SQLite) ExpiredTokens(ctx context.Context, olderThan time.Time, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token FROM sessions WHERE updated_at < ?
		ORDER BY updated_at LIMIT ?`, olderThan.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, err
		}
		out = append(out, token)
	}
	return out, rows.Err()
}

// --------- Definitions ---------

// PutDefinition inserts or replaces a definition.
func (s *SQLite) PutDefinition(ctx context.Context, def *game.Definition) error {
	if def.ID == "" {
		return fmt.Errorf("%w: missing id", game.ErrInvalidDefinition)
	}
	body, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("encode definition: %w", err)
	}
	visibility := def.Visibility
	if visibility == "" {
		visibility = game.VisibilityPublic
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO definitions (id, title, owner, visibility, prompt_count, body_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			owner = excluded.owner,
			visibility = excluded.visibility,
			prompt_count = excluded.prompt_count,
			body_json = excluded.body_json,
			updated_at = excluded.updated_at`,
		def.ID, def.Title, def.Owner, string(visibility), def.PromptCount(), string(body), now, now)
	return err
}

// DeleteDefinition removes a definition. Sessions on it become invalid.
func (s *SQLite) DeleteDefinition(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM definitions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.ErrNotFound
	}
	return nil
}

func (s *SQLite) Resolve(ctx context.Context, ref, player string) (*game.Definition, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body_json FROM definitions WHERE id = ?`, ref).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var def game.Definition
	if err := json.Unmarshal([]byte(body), &def); err != nil {
		return nil, fmt.Errorf("decode definition %s: %w", ref, err)
	}
	if err := authorize(&def, player); err != nil {
		return nil, err
	}
	return &def, nil
}

// ListDefinitions returns the definitions player may start, public ones and
// the player's own private ones.
func (s *SQLite) ListDefinitions(ctx context.Context, player string) ([]DefinitionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, owner, visibility, prompt_count, updated_at
		FROM definitions
		WHERE visibility = 'public' OR owner = ?
		ORDER BY id`, player)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DefinitionSummary
	for rows.Next() {
		var d DefinitionSummary
		var vis string
		if err := rows.Scan(&d.ID, &d.Title, &d.Owner, &vis, &d.PromptCount, &d.UpdatedAt); err != nil {
			return nil, err
		}
		d.Visibility = game.Visibility(vis)
		out = append(out, d)
	}
	return out, rows.Err()
}

// --------- Results ---------

// RecordResult archives a finished game. Recording a token again keeps the
// first result, so scoring can be retried after a failed session delete.
func (s *SQLite) RecordResult(ctx context.Context, r engine.Result) error {
	scoreJSON, err := json.Marshal(r.Score)
	if err != nil {
		return fmt.Errorf("encode score: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO results (token, definition_id, player, total, possible, score_json, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(token) DO NOTHING`,
		r.Token, r.DefinitionID, r.Player, r.Score.Total.String(), r.Score.Possible.String(),
		string(scoreJSON), r.StartedAt.UTC(), r.CompletedAt.UTC())
	return err
}

// ListResults returns archived results for a definition, newest first.
func (s *SQLite) ListResults(ctx context.Context, definitionID string, limit, offset int) ([]engine.Result, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT token, definition_id, player, score_json, started_at, completed_at
		FROM results WHERE definition_id = ?
		ORDER BY completed_at DESC, token
		LIMIT ? OFFSET ?`, definitionID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.Result
	for rows.Next() {
		var r engine.Result
		var scoreJSON string
		if err := rows.Scan(&r.Token, &r.DefinitionID, &r.Player, &scoreJSON, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(scoreJSON), &r.Score); err != nil {
			return nil, fmt.Errorf("decode score %s: %w", r.Token, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
