package game

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

func TestLoadFileYAML(t *testing.T) {
	def, err := LoadFile(filepath.Join("testdata", "coastline.yaml"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if def.ID != "coastline" {
		t.Errorf("ID = %q, want coastline", def.ID)
	}
	if def.PromptCount() != 3 {
		t.Fatalf("PromptCount = %d, want 3", def.PromptCount())
	}
	if !def.JumpingBackAllowed || def.JumpingForwardAllowed {
		t.Errorf("unexpected jump flags: back=%t forward=%t", def.JumpingBackAllowed, def.JumpingForwardAllowed)
	}
	if def.OnJumpBack != JumpBackReset {
		t.Errorf("OnJumpBack = %q, want reset", def.OnJumpBack)
	}

	opt := def.Prompts[0].Options[1]
	if !opt.PointValue.Equal(decimal.NewFromInt(10)) {
		t.Errorf("PointValue = %s, want 10", opt.PointValue)
	}
	target, ok := opt.Actions[len(opt.Actions)-1].GotoTarget()
	if !ok || target != 2 {
		t.Errorf("GotoTarget = %d, %t; want 2, true", target, ok)
	}

	if !def.Prompts[1].Options[1].PointValue.Equal(decimal.NewFromInt(-2)) {
		t.Errorf("negative point value not preserved: %s", def.Prompts[1].Options[1].PointValue)
	}
	if !def.Prompts[2].Options[0].PointValue.IsZero() {
		t.Errorf("missing point value should default to zero")
	}

	var payload map[string]string
	if err := json.Unmarshal(def.Prompts[0].Payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload["text"] != "Where should the survey begin?" {
		t.Errorf("payload text = %q", payload["text"])
	}
}

func TestLoadFileJSONUsesFileName(t *testing.T) {
	def, err := LoadFile(filepath.Join("testdata", "flood.json"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if def.ID != "flood" {
		t.Errorf("ID = %q, want flood", def.ID)
	}
	if !def.ShowActionsInUserOrder || def.OnJumpBack != JumpBackHide {
		t.Errorf("flags not decoded: %+v", def)
	}
	if !def.Prompts[0].Options[1].PointValue.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("PointValue = %s, want 1.5", def.Prompts[0].Options[1].PointValue)
	}
}

func TestParseJSONRejectsInvalidDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{"prompts": [`},
		{"missing prompts", `{"title": "x"}`},
		{"action without name", `{"prompts": [{"options": [{"actions": [{"data": [1]}]}]}]}`},
		{"string point value", `{"prompts": [{"options": [{"pointValue": "ten", "actions": []}]}]}`},
		{"goto out of range", `{"prompts": [{"options": [{"actions": [{"name": "goto", "data": [4]}]}]}]}`},
		{"goto without target", `{"prompts": [{"options": [{"actions": [{"name": "goto"}]}]}]}`},
		{"private without owner", `{"visibility": "private", "prompts": []}`},
		{"unknown visibility", `{"visibility": "friends", "prompts": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJSON([]byte(tt.doc))
			if !errors.Is(err, ErrInvalidDefinition) {
				t.Fatalf("ParseJSON error = %v, want ErrInvalidDefinition", err)
			}
		})
	}
}

func TestLoadFileUnsupportedExtension(t *testing.T) {
	if _, err := LoadFile(filepath.Join("testdata", "coastline.toml")); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestActionClassification(t *testing.T) {
	for _, name := range []string{ActionGoto, ActionExplain, ActionEndGame, ActionLogout} {
		if (Action{Name: name}).IsMapAction() {
			t.Errorf("%s should not be a map action", name)
		}
	}
	if !(Action{Name: "pan"}).IsMapAction() {
		t.Error("pan should be a map action")
	}
}

func TestGotoTarget(t *testing.T) {
	tests := []struct {
		action Action
		want   int
		ok     bool
	}{
		{Action{Name: "goto", Data: []any{float64(3)}}, 3, true},
		{Action{Name: "goto", Data: []any{2}}, 2, true},
		{Action{Name: "goto", Data: []any{json.Number("5")}}, 5, true},
		{Action{Name: "goto", Data: []any{"4"}}, 4, true},
		{Action{Name: "goto", Data: []any{1.5}}, 0, false},
		{Action{Name: "goto"}, 0, false},
		{Action{Name: "pan", Data: []any{3}}, 0, false},
	}

	for _, tt := range tests {
		got, ok := tt.action.GotoTarget()
		if got != tt.want || ok != tt.ok {
			t.Errorf("GotoTarget(%+v) = %d, %t; want %d, %t", tt.action, got, ok, tt.want, tt.ok)
		}
	}
}
