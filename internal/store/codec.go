// Package store provides the persistence backends behind the session engine:
// SQLite, Postgres, Redis and in-memory session stores, plus SQLite, directory
// and in-memory definition stores.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/MJE43/mapgame-session-go/internal/engine"
	"github.com/MJE43/mapgame-session-go/internal/game"
)

// sessionRow is the column form of engine.State shared by the SQL stores.
type sessionRow struct {
	current     sql.NullInt64
	nextAllowed sql.NullInt64
	choicesJSON string
	orderJSON   string
}

func encodeSession(st *engine.State) (sessionRow, error) {
	choices := st.UserChoices
	if choices == nil {
		choices = map[int]int{}
	}
	order := st.UserChoiceOrder
	if order == nil {
		order = []int{}
	}
	cj, err := json.Marshal(choices)
	if err != nil {
		return sessionRow{}, fmt.Errorf("encode choices: %w", err)
	}
	oj, err := json.Marshal(order)
	if err != nil {
		return sessionRow{}, fmt.Errorf("encode choice order: %w", err)
	}
	return sessionRow{
		current:     nullIndex(st.CurrentPromptIndex),
		nextAllowed: nullIndex(st.NextAllowedPromptIndex),
		choicesJSON: string(cj),
		orderJSON:   string(oj),
	}, nil
}

func (r sessionRow) decodeInto(st *engine.State) error {
	st.CurrentPromptIndex = indexFromNull(r.current)
	st.NextAllowedPromptIndex = indexFromNull(r.nextAllowed)
	st.UserChoices = map[int]int{}
	st.UserChoiceOrder = []int{}
	if r.choicesJSON != "" {
		if err := json.Unmarshal([]byte(r.choicesJSON), &st.UserChoices); err != nil {
			return fmt.Errorf("decode choices: %w", err)
		}
	}
	if r.orderJSON != "" {
		if err := json.Unmarshal([]byte(r.orderJSON), &st.UserChoiceOrder); err != nil {
			return fmt.Errorf("decode choice order: %w", err)
		}
	}
	return nil
}

func nullIndex(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func indexFromNull(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

// authorize applies the definition's access decision for player.
func authorize(def *game.Definition, player string) error {
	if def.IsPublic() || def.Owner == player {
		return nil
	}
	return fmt.Errorf("%w: %s", engine.ErrAccessDenied, def.ID)
}
