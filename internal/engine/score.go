package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/MJE43/mapgame-session-go/internal/game"
)

// ScoreRow is one scored prompt.
type ScoreRow struct {
	PromptIndex int             `json:"promptIndex"`
	Chosen      *int            `json:"chosenOption,omitempty"`
	Achieved    decimal.Decimal `json:"achieved"`
	Best        decimal.Decimal `json:"best"`
}

// Score is the end-of-game breakdown.
type Score struct {
	Rows  []ScoreRow      `json:"rows"`
	Total decimal.Decimal `json:"total"`
	// Possible is the sum of the best value of every prompt.
	Possible decimal.Decimal `json:"possible"`
}

// computeScore walks every prompt that has options. Rows where neither the
// best nor the worst option is worth anything are left out of the breakdown
// but still count toward the total.
func computeScore(def *game.Definition, st *State) (Score, error) {
	score := Score{Rows: []ScoreRow{}, Total: decimal.Zero, Possible: decimal.Zero}

	for p, prompt := range def.Prompts {
		if len(prompt.Options) == 0 {
			continue
		}

		best := prompt.Options[0].PointValue
		worst := best
		for _, opt := range prompt.Options[1:] {
			best = decimal.Max(best, opt.PointValue)
			worst = decimal.Min(worst, opt.PointValue)
		}

		row := ScoreRow{PromptIndex: p, Achieved: decimal.Zero, Best: best}
		if o, ok := st.UserChoices[p]; ok {
			if o < 0 || o >= len(prompt.Options) {
				return Score{}, fmt.Errorf("%w: recorded choice %d at prompt %d does not exist", ErrInvalidSession, o, p)
			}
			row.Chosen = indexPtr(o)
			row.Achieved = prompt.Options[o].PointValue
		}

		score.Total = score.Total.Add(row.Achieved)
		score.Possible = score.Possible.Add(best)
		if !best.IsZero() || !worst.IsZero() {
			score.Rows = append(score.Rows, row)
		}
	}
	return score, nil
}
