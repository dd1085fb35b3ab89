package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MJE43/mapgame-session-go/internal/engine"
	"github.com/MJE43/mapgame-session-go/internal/game"
)

// MemorySessions keeps sessions in process memory.
type MemorySessions struct {
	mu     sync.RWMutex
	states map[string]*engine.State
}

func NewMemorySessions() *MemorySessions {
	return &MemorySessions{states: make(map[string]*engine.State)}
}

func (m *MemorySessions) Load(_ context.Context, token string) (*engine.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[token]
	if !ok {
		return nil, engine.ErrNotFound
	}
	return st.Clone(), nil
}

func (m *MemorySessions) Save(_ context.Context, st *engine.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[st.Token] = st.Clone()
	return nil
}

func (m *MemorySessions) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.states[token]; !ok {
		return engine.ErrNotFound
	}
	delete(m.states, token)
	return nil
}

// ExpiredTokens lists up to limit sessions not updated since olderThan,
// oldest first.
func (m *MemorySessions) ExpiredTokens(_ context.Context, olderThan time.Time, limit int) ([]string, error) {
	m.mu.RLock()
	var stale []*engine.State
	for _, st := range m.states {
		if st.UpdatedAt.Before(olderThan) {
			stale = append(stale, st)
		}
	}
	m.mu.RUnlock()

	sort.Slice(stale, func(i, j int) bool { return stale[i].UpdatedAt.Before(stale[j].UpdatedAt) })
	if len(stale) > limit {
		stale = stale[:limit]
	}
	out := make([]string, len(stale))
	for i, st := range stale {
		out[i] = st.Token
	}
	return out, nil
}

func (m *MemorySessions) Ping(context.Context) error { return nil }

// MemoryDefinitions is a fixed set of definitions keyed by ID.
type MemoryDefinitions struct {
	mu   sync.RWMutex
	defs map[string]*game.Definition
}

func NewMemoryDefinitions(defs ...*game.Definition) *MemoryDefinitions {
	m := &MemoryDefinitions{defs: make(map[string]*game.Definition)}
	for _, d := range defs {
		m.defs[d.ID] = d
	}
	return m
}

// Put adds or replaces a definition.
func (m *MemoryDefinitions) Put(def *game.Definition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defs[def.ID] = def
}

// Remove drops a definition; sessions started on it become invalid.
func (m *MemoryDefinitions) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.defs, id)
}

func (m *MemoryDefinitions) Resolve(_ context.Context, ref, player string) (*game.Definition, error) {
	m.mu.RLock()
	def, ok := m.defs[ref]
	m.mu.RUnlock()
	if !ok {
		return nil, engine.ErrNotFound
	}
	if err := authorize(def, player); err != nil {
		return nil, err
	}
	return def, nil
}

// IDs lists the stored definition IDs.
func (m *MemoryDefinitions) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.defs))
	for id := range m.defs {
		out = append(out, id)
	}
	return out
}

// ListDefinitions returns the definitions player may start, ordered by ID.
func (m *MemoryDefinitions) ListDefinitions(_ context.Context, player string) ([]DefinitionSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]DefinitionSummary, 0, len(m.defs))
	for _, def := range m.defs {
		if authorize(def, player) != nil {
			continue
		}
		out = append(out, DefinitionSummary{
			ID:          def.ID,
			Title:       def.Title,
			Owner:       def.Owner,
			Visibility:  visibilityOf(def),
			PromptCount: def.PromptCount(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
