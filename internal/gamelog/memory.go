package gamelog

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Memory keeps the game log and seeds in process. Used when no database is
// configured and in tests.
type Memory struct {
	mu    sync.Mutex
	games map[string]map[int]Game
	seeds map[string]float64
}

func NewMemory() *Memory {
	return &Memory{
		games: make(map[string]map[int]Game),
		seeds: make(map[string]float64),
	}
}

func (m *Memory) Append(_ context.Context, g *Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lobby := m.games[g.Lobby]
	if lobby == nil {
		lobby = make(map[int]Game)
		m.games[g.Lobby] = lobby
	}
	next := 1
	if len(lobby) > 0 {
		next = slices.Max(slices.Collect(maps.Keys(lobby))) + 1
	}
	g.ID = next
	lobby[next] = g.Clone()
	return nil
}

func (m *Memory) Update(_ context.Context, g Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.games[g.Lobby][g.ID]; !ok {
		return fmt.Errorf("game %d in %s: %w", g.ID, g.Lobby, ErrNotFound)
	}
	m.games[g.Lobby][g.ID] = g.Clone()
	return nil
}

func (m *Memory) Get(_ context.Context, lobby string, id int) (Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.games[lobby][id]
	if !ok {
		return Game{}, fmt.Errorf("game %d in %s: %w", id, lobby, ErrNotFound)
	}
	return g.Clone(), nil
}

func (m *Memory) List(_ context.Context, lobby string) ([]Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list(lobby), nil
}

func (m *Memory) ListAll(_ context.Context) (map[string][]Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string][]Game, len(m.games))
	for lobby := range m.games {
		out[lobby] = m.list(lobby)
	}
	return out, nil
}

func (m *Memory) list(lobby string) []Game {
	ids := slices.Sorted(maps.Keys(m.games[lobby]))
	out := make([]Game, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.games[lobby][id].Clone())
	}
	return out
}

func (m *Memory) SetSeed(_ context.Context, playerID string, mean float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seeds[playerID] = mean
	return nil
}

func (m *Memory) Seeds(_ context.Context) (map[string]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.seeds), nil
}
