package game

import (
	"fmt"

	"WagerHouse/internal/wheel"

	"github.com/google/uuid"
)

// Bet is one accepted wager. Immutable after placement except Settled;
// removed from its game only by refund.
type Bet struct {
	ID       uuid.UUID
	Bettor   uuid.UUID
	Kind     wheel.BetKind
	Target   int // meaningful only for single-pocket bets
	Stake    int64
	Metadata string
	PlacedAt int64 // microseconds
	Settled  bool
}

// BetSnapshot is the serializable form of a bet.
type BetSnapshot struct {
	ID       string `json:"id"`
	Bettor   string `json:"bettor"`
	Kind     string `json:"kind"`
	Target   int    `json:"target"`
	Stake    int64  `json:"stake"`
	Metadata string `json:"metadata,omitempty"`
	PlacedAt int64  `json:"placed_at"`
	Settled  bool   `json:"settled"`
}

func (b *Bet) ToSnapshot() BetSnapshot {
	return BetSnapshot{
		ID:       b.ID.String(),
		Bettor:   b.Bettor.String(),
		Kind:     b.Kind.String(),
		Target:   b.Target,
		Stake:    b.Stake,
		Metadata: b.Metadata,
		PlacedAt: b.PlacedAt,
		Settled:  b.Settled,
	}
}

func betFromSnapshot(s BetSnapshot) (*Bet, error) {
	id, err := uuid.Parse(s.ID)
	if err != nil {
		return nil, fmt.Errorf("parse bet id %q: %w", s.ID, err)
	}
	bettor, err := uuid.Parse(s.Bettor)
	if err != nil {
		return nil, fmt.Errorf("parse bettor id %q: %w", s.Bettor, err)
	}
	kind, err := wheel.ParseBetKind(s.Kind)
	if err != nil {
		return nil, fmt.Errorf("bet %s: %w", s.ID, err)
	}
	return &Bet{
		ID:       id,
		Bettor:   bettor,
		Kind:     kind,
		Target:   s.Target,
		Stake:    s.Stake,
		Metadata: s.Metadata,
		PlacedAt: s.PlacedAt,
		Settled:  s.Settled,
	}, nil
}
