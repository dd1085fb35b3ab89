package engine

import (
	"slices"
	"sort"
	"time"
)

// State is the per-token progress of one player through one definition.
type State struct {
	Token        string `json:"token"`
	DefinitionID string `json:"definitionId"`
	Player       string `json:"player,omitempty"`

	// CurrentPromptIndex is nil until the first navigation.
	CurrentPromptIndex *int `json:"currentPromptIndex"`
	// NextAllowedPromptIndex is a one-shot pass granted by a goto action.
	NextAllowedPromptIndex *int `json:"nextAllowedPromptIndex"`

	UserChoices map[int]int `json:"userChoices"`
	// UserChoiceOrder lists prompts in most-recent-choice order, no duplicates.
	UserChoiceOrder []int `json:"userChoiceOrder"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s
	out.CurrentPromptIndex = cloneIndex(s.CurrentPromptIndex)
	out.NextAllowedPromptIndex = cloneIndex(s.NextAllowedPromptIndex)
	out.UserChoices = make(map[int]int, len(s.UserChoices))
	for k, v := range s.UserChoices {
		out.UserChoices[k] = v
	}
	out.UserChoiceOrder = slices.Clone(s.UserChoiceOrder)
	if out.UserChoiceOrder == nil {
		out.UserChoiceOrder = []int{}
	}
	return &out
}

// ChosenPrompts returns the prompt indices with a recorded choice, ascending.
func (s *State) ChosenPrompts() []int {
	out := make([]int, 0, len(s.UserChoices))
	for p := range s.UserChoices {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

func (s *State) recordChoice(prompt, option int) {
	if s.UserChoices == nil {
		s.UserChoices = make(map[int]int)
	}
	s.UserChoices[prompt] = option
	s.UserChoiceOrder = append(removeIndex(s.UserChoiceOrder, prompt), prompt)
}

func (s *State) clearChoice(prompt int) {
	delete(s.UserChoices, prompt)
	s.UserChoiceOrder = removeIndex(s.UserChoiceOrder, prompt)
}

// dropChoicesFrom discards every recorded choice at or after prompt.
func (s *State) dropChoicesFrom(prompt int) {
	for p := range s.UserChoices {
		if p >= prompt {
			delete(s.UserChoices, p)
		}
	}
	s.UserChoiceOrder = slices.DeleteFunc(s.UserChoiceOrder, func(p int) bool { return p >= prompt })
}

func removeIndex(order []int, prompt int) []int {
	return slices.DeleteFunc(order, func(p int) bool { return p == prompt })
}

func cloneIndex(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func indexPtr(v int) *int {
	return &v
}
