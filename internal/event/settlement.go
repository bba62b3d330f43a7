package event

import (
	"fmt"

	"github.com/google/uuid"
)

// BetResult is one resolved bet inside a settlement page.
type BetResult struct {
	BetID  uuid.UUID `json:"bet_id"`
	Bettor uuid.UUID `json:"bettor"`
	Kind   string    `json:"kind"`
	Target int       `json:"target"`
	Stake  int64     `json:"stake"`
	Payout int64     `json:"payout"`
	Won    bool      `json:"won"`
}

// SettlementPage records the bets newly resolved by one settle call.
// Replayed pages settle nothing and emit nothing, so the settled-counter
// range is unique per page.
// Idempotency key: "{game_id}:settled:{from}:{to}".
type SettlementPage struct {
	GameRef      uuid.UUID   `json:"game_id"`
	BeaconRound  uint64      `json:"round"`
	Outcome      int         `json:"outcome"`
	SettledFrom  int         `json:"settled_from"`
	SettledTo    int         `json:"settled_to"`
	Results      []BetResult `json:"results"`
	SettledCount int         `json:"settled_count"`
	TotalBets    int         `json:"total_bets"`
}

func (e *SettlementPage) IdempotencyKey() string {
	return fmt.Sprintf("%s:settled:%d:%d", e.GameRef, e.SettledFrom, e.SettledTo)
}

func (e *SettlementPage) EventType() EventType {
	return EventTypeSettlementPage
}

func (e *SettlementPage) GameID() *string {
	s := e.GameRef.String()
	return &s
}

func (e *SettlementPage) Round() uint64 {
	return e.BeaconRound
}

// GameCompleted records a game reaching its terminal state with every bet
// settled and the remaining reserved exposure released.
// Idempotency key: "{game_id}:completed".
type GameCompleted struct {
	GameRef         uuid.UUID `json:"game_id"`
	BeaconRound     uint64    `json:"round"`
	Outcome         int       `json:"outcome"`
	TotalBets       int       `json:"total_bets"`
	TotalPaidOut    int64     `json:"total_paid_out"`
	TotalSwept      int64     `json:"total_swept"`
	ReleasedRisk    int64     `json:"released_risk"`
	CompletedAt     int64     `json:"completed_at"`
	SettlementCalls int       `json:"settlement_calls"`
}

func (e *GameCompleted) IdempotencyKey() string {
	return fmt.Sprintf("%s:completed", e.GameRef)
}

func (e *GameCompleted) EventType() EventType {
	return EventTypeGameCompleted
}

func (e *GameCompleted) GameID() *string {
	s := e.GameRef.String()
	return &s
}

func (e *GameCompleted) Round() uint64 {
	return e.BeaconRound
}

// RefundResult is one bet returned to its bettor by a refund sweep.
type RefundResult struct {
	BetID  uuid.UUID `json:"bet_id"`
	Bettor uuid.UUID `json:"bettor"`
	Stake  int64     `json:"stake"`
}

// BetsRefunded records one refund page popping bets off the game's tail.
// The before/after lengths are unique per page since pops only shrink the
// sequence.
// Idempotency key: "{game_id}:refund:{from}:{to}".
type BetsRefunded struct {
	GameRef     uuid.UUID      `json:"game_id"`
	BeaconRound uint64         `json:"round"`
	LenFrom     int            `json:"len_from"`
	LenTo       int            `json:"len_to"`
	Refunds     []RefundResult `json:"refunds"`
	Remaining   int            `json:"remaining"`
}

func (e *BetsRefunded) IdempotencyKey() string {
	return fmt.Sprintf("%s:refund:%d:%d", e.GameRef, e.LenFrom, e.LenTo)
}

func (e *BetsRefunded) EventType() EventType {
	return EventTypeBetsRefunded
}

func (e *BetsRefunded) GameID() *string {
	s := e.GameRef.String()
	return &s
}

func (e *BetsRefunded) Round() uint64 {
	return e.BeaconRound
}
