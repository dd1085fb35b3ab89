package engine

import (
	"encoding/json"
	"fmt"

	"github.com/MJE43/mapgame-session-go/internal/game"
)

// goToPrompt moves st to promptIndex if the definition's jump policy allows
// it. All checks run before st is touched.
//
// A pending goto pass for exactly this index wins over the jump policy and is
// consumed. Otherwise moving backwards needs JumpingBackAllowed (and with the
// reset policy drops every choice from the target onwards), and skipping ahead
// of current+1 needs JumpingForwardAllowed. A session that has not navigated
// yet sits before prompt 0.
func goToPrompt(def *game.Definition, st *State, promptIndex int) (json.RawMessage, error) {
	if promptIndex < 0 || promptIndex >= len(def.Prompts) {
		return nil, fmt.Errorf("%w: prompt %d of %d", ErrOutOfRange, promptIndex, len(def.Prompts))
	}

	current := -1
	if st.CurrentPromptIndex != nil {
		current = *st.CurrentPromptIndex
	}

	switch {
	case st.NextAllowedPromptIndex != nil && *st.NextAllowedPromptIndex == promptIndex:
		st.NextAllowedPromptIndex = nil
	case st.CurrentPromptIndex != nil && promptIndex < current:
		if !def.JumpingBackAllowed {
			return nil, fmt.Errorf("%w: prompt %d to %d", ErrBackwardJumpDisallowed, current, promptIndex)
		}
		if def.OnJumpBack == game.JumpBackReset {
			st.dropChoicesFrom(promptIndex)
		}
	case promptIndex > current+1:
		if !def.JumpingForwardAllowed {
			return nil, fmt.Errorf("%w: prompt %d to %d", ErrForwardJumpDisallowed, current, promptIndex)
		}
	}

	st.CurrentPromptIndex = indexPtr(promptIndex)
	st.clearChoice(promptIndex)
	return def.Prompts[promptIndex].Payload, nil
}
