// Package game holds the authored, immutable content a session plays against.
package game

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// JumpBackPolicy controls what happens to recorded choices when a player
// navigates to an earlier prompt.
type JumpBackPolicy string

const (
	// JumpBackHide keeps later choices but hides them from replay.
	JumpBackHide JumpBackPolicy = "hide"
	// JumpBackReset discards every choice at or after the target prompt.
	JumpBackReset JumpBackPolicy = "reset"
)

// Visibility is the access level of a definition.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Definition is an authored game: an ordered list of prompts plus the
// navigation flags a session enforces. A Definition is never modified once
// loaded; prompt indices are stable for the lifetime of any session.
type Definition struct {
	ID         string     `json:"id,omitempty"`
	Title      string     `json:"title,omitempty"`
	Owner      string     `json:"owner,omitempty"`
	Visibility Visibility `json:"visibility,omitempty"`

	Prompts []Prompt `json:"prompts"`

	JumpingBackAllowed     bool           `json:"jumpingBackAllowed"`
	JumpingForwardAllowed  bool           `json:"jumpingForwardAllowed"`
	OnJumpBack             JumpBackPolicy `json:"onJumpBack,omitempty"`
	ShowActionsInUserOrder bool           `json:"showActionsInUserOrder"`
}

// Prompt is one step of the game. Payload is passed to clients untouched.
type Prompt struct {
	Payload json.RawMessage `json:"payload,omitempty"`
	Options []Option        `json:"options"`
}

// Option is one selectable answer at a prompt.
type Option struct {
	Actions    []Action        `json:"actions"`
	PointValue decimal.Decimal `json:"pointValue"`
}

// Action is an opaque effect record replayed by clients.
type Action struct {
	Name string `json:"name"`
	Data []any  `json:"data,omitempty"`
}

// Action names the engine gives meaning to.
const (
	ActionGoto    = "goto"
	ActionExplain = "explain"
	ActionEndGame = "endGame"
	ActionLogout  = "logout"
)

// nonMapActions are navigational or presentational; they never change the
// map and are left out of history replay.
var nonMapActions = map[string]bool{
	ActionExplain: true,
	ActionGoto:    true,
	ActionEndGame: true,
	ActionLogout:  true,
}

// IsMapAction reports whether the action affects the map/world and should be
// replayed when a client reattaches to a session.
func (a Action) IsMapAction() bool {
	return !nonMapActions[a.Name]
}

// GotoTarget returns the prompt index a goto action points at. The first
// datum must be an integral number (or a numeric string).
func (a Action) GotoTarget() (int, bool) {
	if a.Name != ActionGoto || len(a.Data) == 0 {
		return 0, false
	}
	return toIndex(a.Data[0])
}

// PromptCount returns the number of prompts.
func (d *Definition) PromptCount() int {
	return len(d.Prompts)
}

// IsPublic reports whether anyone may start a session on the definition.
func (d *Definition) IsPublic() bool {
	return d.Visibility != VisibilityPrivate
}

func toIndex(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}
