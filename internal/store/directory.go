package store

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/MJE43/mapgame-session-go/internal/game"
)

// LoadDirectory parses every *.yaml, *.yml and *.json file in dir into an
// in-memory definition store. Duplicate IDs are an error.
func LoadDirectory(dir string, logger *log.Logger) (*MemoryDefinitions, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read definitions dir: %w", err)
	}
	if logger == nil {
		logger = log.New(os.Stdout, "[STORE] ", log.LstdFlags)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml", ".json":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	defs := NewMemoryDefinitions()
	seen := make(map[string]string, len(names))
	for _, name := range names {
		def, err := game.LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[def.ID]; ok {
			return nil, fmt.Errorf("%w: id %q defined by %s and %s", game.ErrInvalidDefinition, def.ID, prev, name)
		}
		seen[def.ID] = name
		defs.Put(def)
		logger.Printf("definition_loaded id=%s prompts=%d visibility=%s", def.ID, def.PromptCount(), visibilityOf(def))
	}
	return defs, nil
}

// Import copies every definition in src into the SQLite definition table.
func (s *SQLite) Import(ctx context.Context, src *MemoryDefinitions) (int, error) {
	ids := src.IDs()
	sort.Strings(ids)
	for _, id := range ids {
		src.mu.RLock()
		def := src.defs[id]
		src.mu.RUnlock()
		if err := s.PutDefinition(ctx, def); err != nil {
			return 0, fmt.Errorf("import %s: %w", id, err)
		}
	}
	return len(ids), nil
}

func visibilityOf(def *game.Definition) game.Visibility {
	if def.IsPublic() {
		return game.VisibilityPublic
	}
	return game.VisibilityPrivate
}
