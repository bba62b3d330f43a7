package bank

import (
	"fmt"

	"github.com/google/uuid"
)

// JournalType labels what a journal entry represents.
type JournalType int32

const (
	JournalTypeUnknown JournalType = iota
	// JournalTypeBettorDeposit funds a wallet from outside.
	JournalTypeBettorDeposit
	// JournalTypeBettorWithdrawal drains a wallet to outside.
	JournalTypeBettorWithdrawal
	// JournalTypeBankrollTopUp funds the bankroll from the administrator.
	JournalTypeBankrollTopUp
	// JournalTypeBankrollWithdrawal pays the administrator out of the bankroll.
	JournalTypeBankrollWithdrawal
	// JournalTypeStakeEscrow locks a stake: wallet -> escrow.
	JournalTypeStakeEscrow
	// JournalTypeWinPayout pays net winnings: bankroll -> wallet.
	JournalTypeWinPayout
	// JournalTypeEscrowRelease returns an escrowed stake to the wallet on a win.
	JournalTypeEscrowRelease
	// JournalTypeStakeSweep moves a losing stake: escrow -> bankroll.
	JournalTypeStakeSweep
	// JournalTypeStakeRefund returns a stake on refund: escrow -> wallet.
	JournalTypeStakeRefund
)

func (jt JournalType) String() string {
	switch jt {
	case JournalTypeBettorDeposit:
		return "bettor_deposit"
	case JournalTypeBettorWithdrawal:
		return "bettor_withdrawal"
	case JournalTypeBankrollTopUp:
		return "bankroll_topup"
	case JournalTypeBankrollWithdrawal:
		return "bankroll_withdrawal"
	case JournalTypeStakeEscrow:
		return "stake_escrow"
	case JournalTypeWinPayout:
		return "win_payout"
	case JournalTypeEscrowRelease:
		return "escrow_release"
	case JournalTypeStakeSweep:
		return "stake_sweep"
	case JournalTypeStakeRefund:
		return "stake_refund"
	default:
		return "unknown"
	}
}

// Journal is one double-entry movement. Amount is always positive; the
// debit account gains, the credit account loses. EventRef ties the entry
// back to the bet, game, or funding request that caused it.
type Journal struct {
	JournalID     uuid.UUID
	BatchID       uuid.UUID
	EventRef      string
	Sequence      int64
	DebitAccount  AccountKey
	CreditAccount AccountKey
	Amount        int64
	JournalType   JournalType
	Timestamp     int64 // microseconds
}

// Batch groups the journals generated by one engine command. A batch is
// applied atomically or not at all.
type Batch struct {
	BatchID   uuid.UUID
	EventRef  string
	Sequence  int64
	Timestamp int64
	Journals  []Journal
}

// Validate checks batch-level invariants before application: entries exist,
// amounts are positive, ids line up, and no entry transfers an account to
// itself.
func (b *Batch) Validate() error {
	if len(b.Journals) == 0 {
		return fmt.Errorf("batch %s has no journals", b.BatchID)
	}
	for i, j := range b.Journals {
		if j.Amount <= 0 {
			return fmt.Errorf("journal %d: amount must be positive, got %d", i, j.Amount)
		}
		if j.BatchID != b.BatchID {
			return fmt.Errorf("journal %d: batch id mismatch", i)
		}
		if j.DebitAccount == j.CreditAccount {
			return fmt.Errorf("journal %d: self-transfer on %s", i, j.DebitAccount.Path())
		}
		if j.JournalType == JournalTypeUnknown {
			return fmt.Errorf("journal %d: missing journal type", i)
		}
	}
	return nil
}
