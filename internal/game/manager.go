package game

import (
	"sort"

	"WagerHouse/internal/wheel"

	"github.com/google/uuid"
)

// Manager holds every game known to the engine, keyed by id, with a
// round index so the beacon feed can find the game awaiting a draw.
type Manager struct {
	games   map[uuid.UUID]*Game
	byRound map[uint64]uuid.UUID
}

func NewManager() *Manager {
	return &Manager{
		games:   make(map[uuid.UUID]*Game),
		byRound: make(map[uint64]uuid.UUID),
	}
}

// Get returns the game or nil.
func (m *Manager) Get(id uuid.UUID) *Game {
	return m.games[id]
}

// GetByRound returns the game bound to a beacon round, nil if none.
func (m *Manager) GetByRound(round uint64) *Game {
	id, ok := m.byRound[round]
	if !ok {
		return nil
	}
	return m.games[id]
}

// Add registers a new game. The caller guarantees id uniqueness; a round
// may only be claimed by one game.
func (m *Manager) Add(g *Game) {
	m.games[g.ID] = g
	m.byRound[g.Round] = g.ID
}

// RoundClaimed reports whether some game already targets the round.
func (m *Manager) RoundClaimed(round uint64) bool {
	_, ok := m.byRound[round]
	return ok
}

// Count returns the number of games held.
func (m *Manager) Count() int {
	return len(m.games)
}

// All returns every game ordered by round for deterministic iteration.
func (m *Manager) All() []*Game {
	out := make([]*Game, 0, len(m.games))
	for _, g := range m.games {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Round < out[j].Round
	})
	return out
}

// Snapshot captures every game for persistence.
func (m *Manager) Snapshot() []GameSnapshot {
	games := m.All()
	out := make([]GameSnapshot, 0, len(games))
	for _, g := range games {
		out = append(out, g.ToSnapshot())
	}
	return out
}

// Restore rebuilds the manager from a snapshot, replacing current state.
func (m *Manager) Restore(snaps []GameSnapshot, rules *wheel.Rules) error {
	games := make(map[uuid.UUID]*Game, len(snaps))
	byRound := make(map[uint64]uuid.UUID, len(snaps))
	for _, snap := range snaps {
		g, err := FromSnapshot(snap, rules)
		if err != nil {
			return err
		}
		games[g.ID] = g
		byRound[g.Round] = g.ID
	}
	m.games = games
	m.byRound = byRound
	return nil
}
