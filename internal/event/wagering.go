package event

import (
	"fmt"

	"github.com/google/uuid"
)

// GameCreated records a new round opening for bets.
// Idempotency key: game_id.
type GameCreated struct {
	GameRef      uuid.UUID `json:"game_id"`
	BeaconRound  uint64    `json:"round"`
	MinimumStake int64     `json:"minimum_stake"`
	CreatedAt    int64     `json:"created_at"`
}

func (e *GameCreated) IdempotencyKey() string {
	return e.GameRef.String()
}

func (e *GameCreated) EventType() EventType {
	return EventTypeGameCreated
}

func (e *GameCreated) GameID() *string {
	s := e.GameRef.String()
	return &s
}

func (e *GameCreated) Round() uint64 {
	return e.BeaconRound
}

// BetPlaced records an accepted wager with the exposure it added.
// Idempotency key: bet_id.
type BetPlaced struct {
	BetID       uuid.UUID `json:"bet_id"`
	GameRef     uuid.UUID `json:"game_id"`
	Bettor      uuid.UUID `json:"bettor"`
	Kind        string    `json:"kind"`
	Target      int       `json:"target"`
	Stake       int64     `json:"stake"`
	RiskDelta   int64     `json:"risk_delta"`
	Metadata    string    `json:"metadata,omitempty"`
	BeaconRound uint64    `json:"round"`
}

func (e *BetPlaced) IdempotencyKey() string {
	return e.BetID.String()
}

func (e *BetPlaced) EventType() EventType {
	return EventTypeBetPlaced
}

func (e *BetPlaced) GameID() *string {
	s := e.GameRef.String()
	return &s
}

func (e *BetPlaced) Round() uint64 {
	return e.BeaconRound
}

// GameClosed records the betting freeze after the preceding beacon round
// was proven.
// Idempotency key: "{game_id}:closed".
type GameClosed struct {
	GameRef     uuid.UUID `json:"game_id"`
	BeaconRound uint64    `json:"round"`
	TotalBets   int       `json:"total_bets"`
	TotalRisk   int64     `json:"total_risk"`
	ClosedAt    int64     `json:"closed_at"`
}

func (e *GameClosed) IdempotencyKey() string {
	return fmt.Sprintf("%s:closed", e.GameRef)
}

func (e *GameClosed) EventType() EventType {
	return EventTypeGameClosed
}

func (e *GameClosed) GameID() *string {
	s := e.GameRef.String()
	return &s
}

func (e *GameClosed) Round() uint64 {
	return e.BeaconRound
}
