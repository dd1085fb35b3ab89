package engine

import (
	"errors"
	"slices"
	"testing"

	"github.com/MJE43/mapgame-session-go/internal/game"
)

func actionNames(actions []game.Action) []string {
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = a.Name
	}
	return out
}

func TestChooseOptionRecordsChoice(t *testing.T) {
	def := testDefinition(3)
	st := stateAt(0)

	actions, err := chooseOption(def, st, 0, 1)
	if err != nil {
		t.Fatalf("chooseOption: %v", err)
	}
	if !slices.Equal(actionNames(actions), []string{"zoom"}) {
		t.Errorf("actions = %v, want [zoom]", actionNames(actions))
	}
	if st.UserChoices[0] != 1 {
		t.Errorf("UserChoices[0] = %d, want 1", st.UserChoices[0])
	}
	if !slices.Equal(st.UserChoiceOrder, []int{0}) {
		t.Errorf("UserChoiceOrder = %v, want [0]", st.UserChoiceOrder)
	}
}

func TestChooseOptionMovesRechosenPromptToEnd(t *testing.T) {
	def := testDefinition(3)
	st := stateAt(2)

	for _, c := range [][2]int{{0, 0}, {1, 1}, {2, 0}, {0, 1}} {
		if _, err := chooseOption(def, st, c[0], c[1]); err != nil {
			t.Fatalf("chooseOption%v: %v", c, err)
		}
	}
	if !slices.Equal(st.UserChoiceOrder, []int{1, 2, 0}) {
		t.Errorf("UserChoiceOrder = %v, want [1 2 0]", st.UserChoiceOrder)
	}
	if st.UserChoices[0] != 1 {
		t.Errorf("UserChoices[0] = %d, want latest choice 1", st.UserChoices[0])
	}
}

func TestChooseOptionOutOfRange(t *testing.T) {
	def := testDefinition(2)
	cases := [][2]int{{-1, 0}, {2, 0}, {0, 2}, {0, -1}}
	for _, c := range cases {
		st := stateAt(0)
		if _, err := chooseOption(def, st, c[0], c[1]); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("chooseOption%v error = %v, want ErrOutOfRange", c, err)
		}
		if len(st.UserChoices) != 0 {
			t.Errorf("state mutated on rejected choice")
		}
	}
}

func TestChooseOptionGotoGrantsPass(t *testing.T) {
	def := testDefinition(3)
	def.Prompts[0].Options[0].Actions = []game.Action{
		{Name: "pan", Data: []any{1, 2}},
		{Name: "goto", Data: []any{float64(2)}},
	}
	st := stateAt(0)

	actions, err := chooseOption(def, st, 0, 0)
	if err != nil {
		t.Fatalf("chooseOption: %v", err)
	}
	if !slices.Equal(actionNames(actions), []string{"pan", "goto"}) {
		t.Errorf("actions should be returned verbatim, got %v", actionNames(actions))
	}
	if st.NextAllowedPromptIndex == nil || *st.NextAllowedPromptIndex != 2 {
		t.Fatalf("NextAllowedPromptIndex = %s, want 2", formatIndex(st.NextAllowedPromptIndex))
	}

	// choosing an option without a trailing goto revokes the pass
	if _, err := chooseOption(def, st, 0, 1); err != nil {
		t.Fatalf("chooseOption: %v", err)
	}
	if st.NextAllowedPromptIndex != nil {
		t.Errorf("pass should be cleared, got %d", *st.NextAllowedPromptIndex)
	}
}

func TestChooseOptionGotoMustBeLast(t *testing.T) {
	def := testDefinition(3)
	def.Prompts[0].Options[0].Actions = []game.Action{
		{Name: "goto", Data: []any{2}},
		{Name: "pan", Data: []any{1, 2}},
	}
	st := stateAt(0)
	if _, err := chooseOption(def, st, 0, 0); err != nil {
		t.Fatalf("chooseOption: %v", err)
	}
	if st.NextAllowedPromptIndex != nil {
		t.Errorf("goto that is not the last action must not grant a pass")
	}
}

func replayDefinition() *game.Definition {
	def := testDefinition(4)
	for p := range def.Prompts {
		def.Prompts[p].Options[0].Actions = []game.Action{
			{Name: "explain", Data: []any{"why"}},
			{Name: "pan", Data: []any{p}},
			{Name: "goto", Data: []any{p}},
		}
	}
	def.Prompts[3].Options[1].Actions = []game.Action{{Name: "endGame"}, {Name: "logout"}}
	return def
}

func TestPastActionsPromptOrder(t *testing.T) {
	def := replayDefinition()
	st := stateAt(3)
	st.recordChoice(2, 0)
	st.recordChoice(0, 0)
	st.recordChoice(1, 1)

	actions, err := pastActions(def, st)
	if err != nil {
		t.Fatalf("pastActions: %v", err)
	}
	want := []string{"pan", "zoom", "pan"}
	if !slices.Equal(actionNames(actions), want) {
		t.Errorf("actions = %v, want %v", actionNames(actions), want)
	}
	if actions[0].Data[0] != 0 || actions[2].Data[0] != 2 {
		t.Errorf("actions not in prompt order: %+v", actions)
	}
}

func TestPastActionsUserOrder(t *testing.T) {
	def := replayDefinition()
	def.ShowActionsInUserOrder = true
	st := stateAt(3)
	st.recordChoice(2, 0)
	st.recordChoice(0, 0)
	st.recordChoice(1, 1)

	actions, err := pastActions(def, st)
	if err != nil {
		t.Fatalf("pastActions: %v", err)
	}
	if len(actions) != 3 || actions[0].Data[0] != 2 || actions[1].Data[0] != 0 || actions[2].Name != "zoom" {
		t.Errorf("actions not in user order: %+v", actions)
	}
}

func TestPastActionsHidePolicy(t *testing.T) {
	def := replayDefinition()
	def.OnJumpBack = game.JumpBackHide
	st := stateAt(1)
	st.recordChoice(0, 0)
	st.recordChoice(2, 0)
	st.recordChoice(3, 0)

	actions, err := pastActions(def, st)
	if err != nil {
		t.Fatalf("pastActions: %v", err)
	}
	if len(actions) != 1 || actions[0].Data[0] != 0 {
		t.Errorf("only prompt 0 should replay under hide, got %+v", actions)
	}

	// without hide the later choices replay too
	def.OnJumpBack = ""
	actions, err = pastActions(def, st)
	if err != nil {
		t.Fatalf("pastActions: %v", err)
	}
	if len(actions) != 3 {
		t.Errorf("len(actions) = %d, want 3", len(actions))
	}
}

func TestPastActionsFiltersNonMapActions(t *testing.T) {
	def := replayDefinition()
	st := stateAt(3)
	st.recordChoice(3, 1)

	actions, err := pastActions(def, st)
	if err != nil {
		t.Fatalf("pastActions: %v", err)
	}
	if len(actions) != 0 {
		t.Errorf("endGame/logout should be filtered, got %v", actionNames(actions))
	}
}

func TestPastActionsDoesNotMutate(t *testing.T) {
	def := replayDefinition()
	def.ShowActionsInUserOrder = true
	st := stateAt(2, [2]int{1, 0}, [2]int{0, 1})
	before := st.Clone()

	if _, err := pastActions(def, st); err != nil {
		t.Fatalf("pastActions: %v", err)
	}
	if !slices.Equal(before.UserChoiceOrder, st.UserChoiceOrder) || len(before.UserChoices) != len(st.UserChoices) {
		t.Errorf("pastActions mutated state")
	}
}
