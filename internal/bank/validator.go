package bank

import (
	"fmt"

	"github.com/google/uuid"
)

// InvariantValidator checks ledger invariants.
type InvariantValidator struct {
	tracker *BalanceTracker
}

func NewInvariantValidator(tracker *BalanceTracker) *InvariantValidator {
	return &InvariantValidator{
		tracker: tracker,
	}
}

// ValidateBatchBalance verifies a batch is well formed before application.
func (v *InvariantValidator) ValidateBatchBalance(batch *Batch) error {
	return batch.Validate()
}

// ValidateGlobalBalance verifies the ledger is zero-sum.
func (v *InvariantValidator) ValidateGlobalBalance() error {
	if total := v.tracker.ComputeGlobalBalance(); total != 0 {
		return fmt.Errorf("global balance is non-zero: %d", total)
	}
	return nil
}

// ValidateWalletNonNegative checks a bettor's wallet has not gone negative.
func (v *InvariantValidator) ValidateWalletNonNegative(bettorID uuid.UUID) error {
	return v.tracker.ValidateNonNegative(NewBettorAccountKey(bettorID, SubTypeWallet))
}

// ValidateEscrowNonNegative checks a bettor's escrow has not gone negative.
func (v *InvariantValidator) ValidateEscrowNonNegative(bettorID uuid.UUID) error {
	return v.tracker.ValidateNonNegative(NewBettorAccountKey(bettorID, SubTypeEscrow))
}

// ValidateBankrollNonNegative checks the pooled bankroll has not gone
// negative. Payouts are capped by the exposure ceiling so this only fires
// if bookkeeping is broken.
func (v *InvariantValidator) ValidateBankrollNonNegative() error {
	return v.tracker.ValidateNonNegative(HouseBankrollKey())
}

// ValidateReserve verifies the house can honor a worst-case liability.
func (v *InvariantValidator) ValidateReserve(committedExposure int64) error {
	bankroll := v.tracker.BankrollBalance()
	if committedExposure > bankroll {
		return fmt.Errorf("committed exposure %d exceeds bankroll %d", committedExposure, bankroll)
	}
	return nil
}
