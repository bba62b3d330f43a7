package event

import (
	"time"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeBettorDeposited
	EventTypeBettorWithdrew
	EventTypeBankrollToppedUp
	EventTypeBankrollWithdrawn
	EventTypeExposureCeilingSet
	EventTypeCredentialRotated
	EventTypeGameCreated
	EventTypeBetPlaced
	EventTypeGameClosed
	EventTypeSettlementPage
	EventTypeGameCompleted
	EventTypeBetsRefunded
)

// Envelope wraps every event in the log
type Envelope struct {
	// Global monotonic sequence assigned by the engine
	Sequence int64

	// Stable dedup key from the payload
	IdempotencyKey string

	// Event type discriminator
	EventType EventType

	// Game context (nullable for funding and admin events)
	GameID *string

	// Beacon round that drove this event, 0 for command-driven events
	Round uint64

	// Engine-assigned event timestamp
	Timestamp time.Time

	// JSON-encoded event-specific data
	Payload []byte

	// SHA-256 of engine state AFTER applying this event
	StateHash [32]byte

	// Previous event's state hash (chain integrity)
	PrevHash [32]byte
}

// Event is the interface all event payloads must implement
type Event interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// EventType returns the discriminator
	EventType() EventType

	// GameID returns the game context (nil for global events)
	GameID() *string

	// Round returns the beacon round context, 0 when not round-driven
	Round() uint64
}

func (et EventType) String() string {
	switch et {
	case EventTypeBettorDeposited:
		return "BettorDeposited"
	case EventTypeBettorWithdrew:
		return "BettorWithdrew"
	case EventTypeBankrollToppedUp:
		return "BankrollToppedUp"
	case EventTypeBankrollWithdrawn:
		return "BankrollWithdrawn"
	case EventTypeExposureCeilingSet:
		return "ExposureCeilingSet"
	case EventTypeCredentialRotated:
		return "CredentialRotated"
	case EventTypeGameCreated:
		return "GameCreated"
	case EventTypeBetPlaced:
		return "BetPlaced"
	case EventTypeGameClosed:
		return "GameClosed"
	case EventTypeSettlementPage:
		return "SettlementPage"
	case EventTypeGameCompleted:
		return "GameCompleted"
	case EventTypeBetsRefunded:
		return "BetsRefunded"
	default:
		return "Unknown"
	}
}
