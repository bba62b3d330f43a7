// Package bank is the double-entry ledger backing the wagering engine:
// bettor wallets, per-bettor escrow, the pooled house bankroll, and the
// external world accounts that keep the system zero-sum.
package bank

import (
	"fmt"

	"github.com/google/uuid"
)

// AccountScope is the top-level account namespace.
type AccountScope uint8

const (
	ScopeBettor AccountScope = iota + 1
	ScopeHouse
	ScopeExternal
)

func (s AccountScope) String() string {
	switch s {
	case ScopeBettor:
		return "bettor"
	case ScopeHouse:
		return "house"
	case ScopeExternal:
		return "external"
	default:
		return "unknown"
	}
}

// AccountSubType identifies the account within its scope.
type AccountSubType uint8

const (
	// SubTypeWallet holds a bettor's spendable funds.
	SubTypeWallet AccountSubType = iota + 1
	// SubTypeEscrow holds a bettor's stakes locked on open bets.
	SubTypeEscrow
	// SubTypeBankroll is the pooled house fund backing all payouts.
	SubTypeBankroll
	// SubTypeExternalDeposits mirrors bettor money entering the system.
	SubTypeExternalDeposits
	// SubTypeExternalWithdrawals mirrors bettor money leaving the system.
	SubTypeExternalWithdrawals
	// SubTypeExternalHouseFunding mirrors administrator top-ups/withdrawals.
	SubTypeExternalHouseFunding
)

func (s AccountSubType) String() string {
	switch s {
	case SubTypeWallet:
		return "wallet"
	case SubTypeEscrow:
		return "escrow"
	case SubTypeBankroll:
		return "bankroll"
	case SubTypeExternalDeposits:
		return "deposits"
	case SubTypeExternalWithdrawals:
		return "withdrawals"
	case SubTypeExternalHouseFunding:
		return "house_funding"
	default:
		return "unknown"
	}
}

// AccountKey uniquely identifies a ledger account. Comparable, fixed size,
// usable as a map key. EntityID is the bettor id for ScopeBettor and zero
// otherwise.
type AccountKey struct {
	Scope    AccountScope
	EntityID [16]byte
	SubType  AccountSubType
}

// NewBettorAccountKey builds a bettor-scoped key.
func NewBettorAccountKey(bettorID uuid.UUID, subType AccountSubType) AccountKey {
	return AccountKey{
		Scope:    ScopeBettor,
		EntityID: bettorID,
		SubType:  subType,
	}
}

// HouseBankrollKey returns the single pooled bankroll account.
func HouseBankrollKey() AccountKey {
	return AccountKey{Scope: ScopeHouse, SubType: SubTypeBankroll}
}

// NewExternalAccountKey builds a key for the world outside the ledger.
func NewExternalAccountKey(subType AccountSubType) AccountKey {
	return AccountKey{Scope: ScopeExternal, SubType: subType}
}

// Path renders the key as a human-readable account path, e.g.
// "bettor:550e8400-e29b-41d4-a716-446655440000:wallet" or "house:bankroll".
func (k AccountKey) Path() string {
	if k.Scope == ScopeBettor {
		return fmt.Sprintf("%s:%s:%s", k.Scope, uuid.UUID(k.EntityID), k.SubType)
	}
	return fmt.Sprintf("%s:%s", k.Scope, k.SubType)
}

// BettorID returns the bettor uuid for bettor-scoped keys.
func (k AccountKey) BettorID() uuid.UUID {
	return uuid.UUID(k.EntityID)
}
