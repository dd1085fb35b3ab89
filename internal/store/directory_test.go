package store

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/MJE43/mapgame-session-go/internal/engine"
	"github.com/MJE43/mapgame-session-go/internal/game"
)

var quiet = log.New(io.Discard, "", 0)

func TestLoadDirectory(t *testing.T) {
	defs, err := LoadDirectory("testdata/defs", quiet)
	if err != nil {
		t.Fatalf("LoadDirectory: %v", err)
	}
	ids := defs.IDs()
	sort.Strings(ids)
	if len(ids) != 2 || ids[0] != "harbor" || ids[1] != "survey" {
		t.Fatalf("ids = %v, want [harbor survey]", ids)
	}

	ctx := context.Background()
	harbor, err := defs.Resolve(ctx, "harbor", "")
	if err != nil {
		t.Fatalf("Resolve harbor: %v", err)
	}
	if harbor.PromptCount() != 2 || !harbor.JumpingBackAllowed {
		t.Errorf("harbor = %+v", harbor)
	}
	if _, err := defs.Resolve(ctx, "survey", "bo"); !errors.Is(err, engine.ErrAccessDenied) {
		t.Errorf("private survey visible to bo: %v", err)
	}
}

func TestLoadDirectoryDuplicateID(t *testing.T) {
	dir := t.TempDir()
	body := []byte(`{"id": "same", "prompts": []}`)
	for _, name := range []string{"a.json", "b.json"} {
		if err := os.WriteFile(filepath.Join(dir, name), body, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := LoadDirectory(dir, quiet); !errors.Is(err, game.ErrInvalidDefinition) {
		t.Errorf("LoadDirectory = %v, want ErrInvalidDefinition", err)
	}
}

func TestLoadDirectoryMissing(t *testing.T) {
	if _, err := LoadDirectory(filepath.Join(t.TempDir(), "absent"), quiet); err == nil {
		t.Error("expected an error for a missing directory")
	}
}

func TestSQLiteImport(t *testing.T) {
	defs, err := LoadDirectory("testdata/defs", quiet)
	if err != nil {
		t.Fatalf("LoadDirectory: %v", err)
	}
	s := newTestSQLite(t)
	ctx := context.Background()

	n, err := s.Import(ctx, defs)
	if err != nil || n != 2 {
		t.Fatalf("Import = %d, %v; want 2, nil", n, err)
	}
	survey, err := s.Resolve(ctx, "survey", "ana")
	if err != nil {
		t.Fatalf("Resolve survey: %v", err)
	}
	if survey.Title != "Owner Survey" {
		t.Errorf("title = %q", survey.Title)
	}
}
