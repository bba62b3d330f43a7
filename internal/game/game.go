// Package game holds a round's state: the ordered bet sequence, the status
// machine, the embedded risk table, and the drawn outcome once stored.
package game

import (
	"fmt"

	"WagerHouse/internal/risk"
	"WagerHouse/internal/wheel"

	"github.com/google/uuid"
)

// Game is one wagering round. Bets append in placement order and settle in
// that same order; the outcome is stored once and never rewritten.
type Game struct {
	ID            uuid.UUID
	Round         uint64
	Status        Status
	Bets          []*Bet
	Risk          *risk.Table
	MinimumStake  int64
	SettledCount  int
	CommittedRisk int64
	CreatedAt     int64
	ClosedAt      int64
	CompletedAt   int64

	// Settlement accounting, reported on completion.
	SettlementCalls int
	TotalPaidOut    int64
	TotalSwept      int64

	outcome      *int
	betsByBettor map[uuid.UUID][]uuid.UUID
}

// NewGame creates an open game for the given beacon round.
func NewGame(id uuid.UUID, round uint64, rules *wheel.Rules, minimumStake int64, createdAt int64) *Game {
	return &Game{
		ID:           id,
		Round:        round,
		Status:       StatusOpen,
		Bets:         make([]*Bet, 0),
		Risk:         risk.NewTable(rules),
		MinimumStake: minimumStake,
		CreatedAt:    createdAt,
		betsByBettor: make(map[uuid.UUID][]uuid.UUID),
	}
}

// TransitionTo advances the status machine, stamping lifecycle timestamps.
func (g *Game) TransitionTo(next Status, now int64) error {
	if !g.Status.CanTransitionTo(next) {
		return fmt.Errorf("cannot transition from %s to %s", g.Status, next)
	}
	g.Status = next
	switch next {
	case StatusClosed:
		g.ClosedAt = now
	case StatusCompleted:
		g.CompletedAt = now
	}
	return nil
}

// AppendBet adds an accepted bet to the tail of the sequence.
func (g *Game) AppendBet(b *Bet) {
	g.Bets = append(g.Bets, b)
	g.betsByBettor[b.Bettor] = append(g.betsByBettor[b.Bettor], b.ID)
}

// PopUnsettledTail removes and returns the last bet if it is unsettled.
// Returns nil when the game has no bets or the tail is already settled,
// which ends a refund sweep.
func (g *Game) PopUnsettledTail() *Bet {
	if len(g.Bets) == 0 {
		return nil
	}
	last := g.Bets[len(g.Bets)-1]
	if last.Settled {
		return nil
	}
	g.Bets = g.Bets[:len(g.Bets)-1]
	g.removeFromIndex(last)
	return last
}

func (g *Game) removeFromIndex(b *Bet) {
	ids := g.betsByBettor[b.Bettor]
	for i := len(ids) - 1; i >= 0; i-- {
		if ids[i] == b.ID {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(g.betsByBettor, b.Bettor)
	} else {
		g.betsByBettor[b.Bettor] = ids
	}
}

// Len returns the number of bets currently held.
func (g *Game) Len() int {
	return len(g.Bets)
}

// BetAt returns the bet at append index i, nil when out of range.
func (g *Game) BetAt(i int) *Bet {
	if i < 0 || i >= len(g.Bets) {
		return nil
	}
	return g.Bets[i]
}

// UnsettledCount returns how many bets still await settlement.
func (g *Game) UnsettledCount() int {
	return len(g.Bets) - g.SettledCount
}

// BetsOf returns the ids of every bet this bettor holds in the game.
func (g *Game) BetsOf(bettor uuid.UUID) []uuid.UUID {
	ids := g.betsByBettor[bettor]
	out := make([]uuid.UUID, len(ids))
	copy(out, ids)
	return out
}

// SetOutcome stores the drawn pocket. The value is written exactly once;
// every later settlement call reuses it.
func (g *Game) SetOutcome(pocket int) error {
	if g.outcome != nil {
		return fmt.Errorf("outcome already stored: %d", *g.outcome)
	}
	p := pocket
	g.outcome = &p
	return nil
}

// Outcome returns the stored pocket and whether one has been drawn.
func (g *Game) Outcome() (int, bool) {
	if g.outcome == nil {
		return 0, false
	}
	return *g.outcome, true
}

// GameSnapshot is the serializable form of a game, risk table included.
type GameSnapshot struct {
	ID            string        `json:"id"`
	Round         uint64        `json:"round"`
	Status        int32         `json:"status"`
	Outcome       *int          `json:"outcome,omitempty"`
	MinimumStake  int64         `json:"minimum_stake"`
	SettledCount  int           `json:"settled_count"`
	CommittedRisk int64         `json:"committed_risk"`
	Liabilities   []int64       `json:"liabilities"`
	Bets          []BetSnapshot `json:"bets"`
	CreatedAt     int64         `json:"created_at"`
	ClosedAt      int64         `json:"closed_at,omitempty"`
	CompletedAt   int64         `json:"completed_at,omitempty"`

	SettlementCalls int   `json:"settlement_calls,omitempty"`
	TotalPaidOut    int64 `json:"total_paid_out,omitempty"`
	TotalSwept      int64 `json:"total_swept,omitempty"`
}

// ToSnapshot captures the game for persistence.
func (g *Game) ToSnapshot() GameSnapshot {
	snap := GameSnapshot{
		ID:            g.ID.String(),
		Round:         g.Round,
		Status:        int32(g.Status),
		MinimumStake:  g.MinimumStake,
		SettledCount:  g.SettledCount,
		CommittedRisk: g.CommittedRisk,
		Liabilities:   g.Risk.Liabilities(),
		Bets:          make([]BetSnapshot, 0, len(g.Bets)),
		CreatedAt:     g.CreatedAt,
		ClosedAt:      g.ClosedAt,
		CompletedAt:   g.CompletedAt,

		SettlementCalls: g.SettlementCalls,
		TotalPaidOut:    g.TotalPaidOut,
		TotalSwept:      g.TotalSwept,
	}
	if g.outcome != nil {
		p := *g.outcome
		snap.Outcome = &p
	}
	for _, b := range g.Bets {
		snap.Bets = append(snap.Bets, b.ToSnapshot())
	}
	return snap
}

// FromSnapshot rebuilds a game, reconstructing the risk table and the
// bettor index from the stored bet sequence.
func FromSnapshot(snap GameSnapshot, rules *wheel.Rules) (*Game, error) {
	id, err := uuid.Parse(snap.ID)
	if err != nil {
		return nil, fmt.Errorf("parse game id %q: %w", snap.ID, err)
	}

	g := &Game{
		ID:            id,
		Round:         snap.Round,
		Status:        Status(snap.Status),
		Bets:          make([]*Bet, 0, len(snap.Bets)),
		Risk:          risk.NewTable(rules),
		MinimumStake:  snap.MinimumStake,
		SettledCount:  snap.SettledCount,
		CommittedRisk: snap.CommittedRisk,
		CreatedAt:     snap.CreatedAt,
		ClosedAt:      snap.ClosedAt,
		CompletedAt:   snap.CompletedAt,

		SettlementCalls: snap.SettlementCalls,
		TotalPaidOut:    snap.TotalPaidOut,
		TotalSwept:      snap.TotalSwept,

		betsByBettor: make(map[uuid.UUID][]uuid.UUID),
	}
	if snap.Outcome != nil {
		p := *snap.Outcome
		g.outcome = &p
	}
	if err := g.Risk.Restore(snap.Liabilities); err != nil {
		return nil, fmt.Errorf("game %s: %w", snap.ID, err)
	}
	for _, bs := range snap.Bets {
		b, err := betFromSnapshot(bs)
		if err != nil {
			return nil, fmt.Errorf("game %s: %w", snap.ID, err)
		}
		g.AppendBet(b)
	}
	return g, nil
}
