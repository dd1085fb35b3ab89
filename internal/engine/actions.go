package engine

import (
	"fmt"

	"github.com/MJE43/mapgame-session-go/internal/game"
)

// chooseOption records optionIndex as the answer to promptIndex and returns
// the option's actions verbatim. A trailing goto action grants a one-shot
// pass to its target; any other choice revokes a pending pass.
func chooseOption(def *game.Definition, st *State, promptIndex, optionIndex int) ([]game.Action, error) {
	if promptIndex < 0 || promptIndex >= len(def.Prompts) {
		return nil, fmt.Errorf("%w: prompt %d of %d", ErrOutOfRange, promptIndex, len(def.Prompts))
	}
	options := def.Prompts[promptIndex].Options
	if optionIndex < 0 || optionIndex >= len(options) {
		return nil, fmt.Errorf("%w: option %d of %d at prompt %d", ErrOutOfRange, optionIndex, len(options), promptIndex)
	}

	opt := options[optionIndex]
	st.recordChoice(promptIndex, optionIndex)
	st.NextAllowedPromptIndex = nil
	if n := len(opt.Actions); n > 0 {
		if target, ok := opt.Actions[n-1].GotoTarget(); ok {
			st.NextAllowedPromptIndex = indexPtr(target)
		}
	}

	if opt.Actions == nil {
		return []game.Action{}, nil
	}
	return opt.Actions, nil
}

// pastActions lists the map actions a reattaching client should replay.
// Choices at or after the current prompt are skipped under the hide policy.
func pastActions(def *game.Definition, st *State) ([]game.Action, error) {
	order := st.ChosenPrompts()
	if def.ShowActionsInUserOrder {
		order = st.UserChoiceOrder
	}

	hideFuture := def.OnJumpBack == game.JumpBackHide
	out := []game.Action{}
	for _, p := range order {
		o, ok := st.UserChoices[p]
		if !ok {
			continue
		}
		if hideFuture && (st.CurrentPromptIndex == nil || p >= *st.CurrentPromptIndex) {
			continue
		}
		if p < 0 || p >= len(def.Prompts) || o < 0 || o >= len(def.Prompts[p].Options) {
			return nil, fmt.Errorf("%w: recorded choice %d at prompt %d does not exist", ErrInvalidSession, o, p)
		}
		for _, a := range def.Prompts[p].Options[o].Actions {
			if a.IsMapAction() {
				out = append(out, a)
			}
		}
	}
	return out, nil
}
