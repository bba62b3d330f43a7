package bank

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// BalanceTracker holds current balances for every account touched so far.
// Debits increase a balance, credits decrease it; external accounts run
// negative as money enters the system, keeping the global sum at zero.
// Not thread-safe — only accessed under the engine mutex.
type BalanceTracker struct {
	balances map[AccountKey]int64
}

func NewBalanceTracker() *BalanceTracker {
	return &BalanceTracker{
		balances: make(map[AccountKey]int64),
	}
}

// ApplyJournal applies a single movement.
func (bt *BalanceTracker) ApplyJournal(j Journal) {
	bt.balances[j.DebitAccount] += j.Amount
	bt.balances[j.CreditAccount] -= j.Amount
}

// ApplyBatch applies every journal of a validated batch.
func (bt *BalanceTracker) ApplyBatch(b *Batch) {
	for _, j := range b.Journals {
		bt.ApplyJournal(j)
	}
}

// GetBalance returns the balance of one account, zero if never touched.
func (bt *BalanceTracker) GetBalance(key AccountKey) int64 {
	return bt.balances[key]
}

// BankrollBalance returns the pooled house balance.
func (bt *BalanceTracker) BankrollBalance() int64 {
	return bt.balances[HouseBankrollKey()]
}

// WalletBalance returns a bettor's spendable funds.
func (bt *BalanceTracker) WalletBalance(bettorID uuid.UUID) int64 {
	return bt.balances[NewBettorAccountKey(bettorID, SubTypeWallet)]
}

// EscrowBalance returns a bettor's locked stakes.
func (bt *BalanceTracker) EscrowBalance(bettorID uuid.UUID) int64 {
	return bt.balances[NewBettorAccountKey(bettorID, SubTypeEscrow)]
}

// TotalEscrow sums every bettor's escrow. Used by conservation checks:
// bankroll + total escrow only moves with top-ups and withdrawals.
func (bt *BalanceTracker) TotalEscrow() int64 {
	var total int64
	for key, bal := range bt.balances {
		if key.Scope == ScopeBettor && key.SubType == SubTypeEscrow {
			total += bal
		}
	}
	return total
}

// ValidateSufficient rejects a movement that would drive an internal
// account negative.
func (bt *BalanceTracker) ValidateSufficient(key AccountKey, amount int64) error {
	if bal := bt.balances[key]; bal < amount {
		return fmt.Errorf("account %s holds %d, need %d", key.Path(), bal, amount)
	}
	return nil
}

// ValidateNonNegative checks one account has not gone negative.
func (bt *BalanceTracker) ValidateNonNegative(key AccountKey) error {
	if bal := bt.balances[key]; bal < 0 {
		return fmt.Errorf("account %s is negative: %d", key.Path(), bal)
	}
	return nil
}

// ComputeGlobalBalance sums every account. Double entry keeps this at zero
// for any sequence of applied batches.
func (bt *BalanceTracker) ComputeGlobalBalance() int64 {
	var total int64
	for _, bal := range bt.balances {
		total += bal
	}
	return total
}

// BalanceSnapshot is one account's balance in serializable form.
type BalanceSnapshot struct {
	Scope    uint8  `json:"scope"`
	EntityID string `json:"entity_id,omitempty"`
	SubType  uint8  `json:"sub_type"`
	Balance  int64  `json:"balance"`
}

// Snapshot captures every non-zero balance, ordered by account path so the
// output is deterministic.
func (bt *BalanceTracker) Snapshot() []BalanceSnapshot {
	keys := make([]AccountKey, 0, len(bt.balances))
	for key, bal := range bt.balances {
		if bal != 0 {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].Path() < keys[j].Path()
	})

	out := make([]BalanceSnapshot, 0, len(keys))
	for _, key := range keys {
		snap := BalanceSnapshot{
			Scope:   uint8(key.Scope),
			SubType: uint8(key.SubType),
			Balance: bt.balances[key],
		}
		if key.Scope == ScopeBettor {
			snap.EntityID = key.BettorID().String()
		}
		out = append(out, snap)
	}
	return out
}

// Restore rebuilds the tracker from a snapshot, replacing current state.
func (bt *BalanceTracker) Restore(snaps []BalanceSnapshot) error {
	balances := make(map[AccountKey]int64, len(snaps))
	for _, s := range snaps {
		key := AccountKey{Scope: AccountScope(s.Scope), SubType: AccountSubType(s.SubType)}
		if key.Scope == ScopeBettor {
			id, err := uuid.Parse(s.EntityID)
			if err != nil {
				return fmt.Errorf("parse entity id %q: %w", s.EntityID, err)
			}
			key.EntityID = id
		}
		balances[key] = s.Balance
	}
	bt.balances = balances
	return nil
}
