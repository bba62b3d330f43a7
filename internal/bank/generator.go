package bank

import (
	"fmt"

	"github.com/google/uuid"
)

// JournalGenerator builds balanced journal batches for engine commands.
// It owns the monotonic ledger sequence and pre-checks balances through the
// tracker before building, so a returned batch always applies cleanly.
type JournalGenerator struct {
	sequence       int64
	balanceTracker *BalanceTracker
}

func NewJournalGenerator(startSequence int64, tracker *BalanceTracker) *JournalGenerator {
	return &JournalGenerator{
		sequence:       startSequence,
		balanceTracker: tracker,
	}
}

// Sequence returns the next sequence number the generator will assign.
func (jg *JournalGenerator) Sequence() int64 {
	return jg.sequence
}

// SetSequence resets the counter, used when restoring from a snapshot.
func (jg *JournalGenerator) SetSequence(seq int64) {
	jg.sequence = seq
}

// GenerateBettorDeposit credits a wallet from the outside world.
// Moves funds: external:deposits -> bettor:wallet
func (jg *JournalGenerator) GenerateBettorDeposit(
	bettorID uuid.UUID,
	depositID uuid.UUID,
	amount int64,
	timestamp int64,
) (*Batch, error) {
	batchID := uuid.New()

	batch := &Batch{
		BatchID:   batchID,
		EventRef:  depositID.String(),
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, 1),
	}

	journal := Journal{
		JournalID:     uuid.New(),
		BatchID:       batchID,
		EventRef:      depositID.String(),
		Sequence:      jg.sequence,
		DebitAccount:  NewBettorAccountKey(bettorID, SubTypeWallet),
		CreditAccount: NewExternalAccountKey(SubTypeExternalDeposits),
		Amount:        amount,
		JournalType:   JournalTypeBettorDeposit,
		Timestamp:     timestamp,
	}

	batch.Journals = append(batch.Journals, journal)
	jg.sequence++

	return batch, nil
}

// GenerateBettorWithdrawal drains a wallet to the outside world.
// Pre-check: the wallet must cover the amount.
// Moves funds: bettor:wallet -> external:withdrawals
func (jg *JournalGenerator) GenerateBettorWithdrawal(
	bettorID uuid.UUID,
	withdrawalID uuid.UUID,
	amount int64,
	timestamp int64,
) (*Batch, error) {
	walletKey := NewBettorAccountKey(bettorID, SubTypeWallet)
	if err := jg.balanceTracker.ValidateSufficient(walletKey, amount); err != nil {
		return nil, fmt.Errorf("withdrawal pre-check failed: %w", err)
	}

	batchID := uuid.New()

	batch := &Batch{
		BatchID:   batchID,
		EventRef:  withdrawalID.String(),
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, 1),
	}

	journal := Journal{
		JournalID:     uuid.New(),
		BatchID:       batchID,
		EventRef:      withdrawalID.String(),
		Sequence:      jg.sequence,
		DebitAccount:  NewExternalAccountKey(SubTypeExternalWithdrawals),
		CreditAccount: walletKey,
		Amount:        amount,
		JournalType:   JournalTypeBettorWithdrawal,
		Timestamp:     timestamp,
	}

	batch.Journals = append(batch.Journals, journal)
	jg.sequence++

	return batch, nil
}

// GenerateBankrollTopUp funds the pooled bankroll from the administrator.
// Moves funds: external:house_funding -> house:bankroll
func (jg *JournalGenerator) GenerateBankrollTopUp(
	fundingID uuid.UUID,
	amount int64,
	timestamp int64,
) (*Batch, error) {
	batchID := uuid.New()

	batch := &Batch{
		BatchID:   batchID,
		EventRef:  fundingID.String(),
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, 1),
	}

	journal := Journal{
		JournalID:     uuid.New(),
		BatchID:       batchID,
		EventRef:      fundingID.String(),
		Sequence:      jg.sequence,
		DebitAccount:  HouseBankrollKey(),
		CreditAccount: NewExternalAccountKey(SubTypeExternalHouseFunding),
		Amount:        amount,
		JournalType:   JournalTypeBankrollTopUp,
		Timestamp:     timestamp,
	}

	batch.Journals = append(batch.Journals, journal)
	jg.sequence++

	return batch, nil
}

// GenerateBankrollWithdrawal pays the administrator out of the bankroll.
// Pre-check: the bankroll must cover the amount. The engine additionally
// refuses withdrawals that would dip below committed exposure.
// Moves funds: house:bankroll -> external:house_funding
func (jg *JournalGenerator) GenerateBankrollWithdrawal(
	fundingID uuid.UUID,
	amount int64,
	timestamp int64,
) (*Batch, error) {
	if err := jg.balanceTracker.ValidateSufficient(HouseBankrollKey(), amount); err != nil {
		return nil, fmt.Errorf("bankroll withdrawal pre-check failed: %w", err)
	}

	batchID := uuid.New()

	batch := &Batch{
		BatchID:   batchID,
		EventRef:  fundingID.String(),
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, 1),
	}

	journal := Journal{
		JournalID:     uuid.New(),
		BatchID:       batchID,
		EventRef:      fundingID.String(),
		Sequence:      jg.sequence,
		DebitAccount:  NewExternalAccountKey(SubTypeExternalHouseFunding),
		CreditAccount: HouseBankrollKey(),
		Amount:        amount,
		JournalType:   JournalTypeBankrollWithdrawal,
		Timestamp:     timestamp,
	}

	batch.Journals = append(batch.Journals, journal)
	jg.sequence++

	return batch, nil
}

// GenerateStakeEscrow locks a stake when a bet is accepted.
// Pre-check: the wallet must cover the stake.
// Moves funds: bettor:wallet -> bettor:escrow
func (jg *JournalGenerator) GenerateStakeEscrow(
	bettorID uuid.UUID,
	betID uuid.UUID,
	stake int64,
	timestamp int64,
) (*Batch, error) {
	walletKey := NewBettorAccountKey(bettorID, SubTypeWallet)
	if err := jg.balanceTracker.ValidateSufficient(walletKey, stake); err != nil {
		return nil, fmt.Errorf("escrow pre-check failed: %w", err)
	}

	batchID := uuid.New()

	batch := &Batch{
		BatchID:   batchID,
		EventRef:  betID.String(),
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, 1),
	}

	journal := Journal{
		JournalID:     uuid.New(),
		BatchID:       batchID,
		EventRef:      betID.String(),
		Sequence:      jg.sequence,
		DebitAccount:  NewBettorAccountKey(bettorID, SubTypeEscrow),
		CreditAccount: walletKey,
		Amount:        stake,
		JournalType:   JournalTypeStakeEscrow,
		Timestamp:     timestamp,
	}

	batch.Journals = append(batch.Journals, journal)
	jg.sequence++

	return batch, nil
}

// GenerateWinSettlement settles a winning bet. Net winnings come out of the
// bankroll and the locked stake comes back from escrow, so the wallet ends
// up with the full payout of stake * (multiplier + 1).
// Pre-checks: escrow holds the stake, bankroll covers the net winnings.
// Moves funds: house:bankroll -> bettor:wallet (payout - stake), then
// bettor:escrow -> bettor:wallet (stake).
func (jg *JournalGenerator) GenerateWinSettlement(
	bettorID uuid.UUID,
	betID uuid.UUID,
	stake int64,
	payout int64,
	timestamp int64,
) (*Batch, error) {
	if payout <= stake {
		return nil, fmt.Errorf("payout %d does not exceed stake %d", payout, stake)
	}

	escrowKey := NewBettorAccountKey(bettorID, SubTypeEscrow)
	if err := jg.balanceTracker.ValidateSufficient(escrowKey, stake); err != nil {
		return nil, fmt.Errorf("win settlement pre-check failed: %w", err)
	}
	winnings := payout - stake
	if err := jg.balanceTracker.ValidateSufficient(HouseBankrollKey(), winnings); err != nil {
		return nil, fmt.Errorf("win settlement pre-check failed: %w", err)
	}

	batchID := uuid.New()
	walletKey := NewBettorAccountKey(bettorID, SubTypeWallet)

	batch := &Batch{
		BatchID:   batchID,
		EventRef:  betID.String(),
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, 2),
	}

	winJournal := Journal{
		JournalID:     uuid.New(),
		BatchID:       batchID,
		EventRef:      betID.String(),
		Sequence:      jg.sequence,
		DebitAccount:  walletKey,
		CreditAccount: HouseBankrollKey(),
		Amount:        winnings,
		JournalType:   JournalTypeWinPayout,
		Timestamp:     timestamp,
	}
	batch.Journals = append(batch.Journals, winJournal)

	releaseJournal := Journal{
		JournalID:     uuid.New(),
		BatchID:       batchID,
		EventRef:      betID.String(),
		Sequence:      jg.sequence,
		DebitAccount:  walletKey,
		CreditAccount: escrowKey,
		Amount:        stake,
		JournalType:   JournalTypeEscrowRelease,
		Timestamp:     timestamp,
	}
	batch.Journals = append(batch.Journals, releaseJournal)

	jg.sequence++
	return batch, nil
}

// GenerateLossSettlement sweeps a losing stake into the bankroll.
// Pre-check: escrow holds the stake.
// Moves funds: bettor:escrow -> house:bankroll
func (jg *JournalGenerator) GenerateLossSettlement(
	bettorID uuid.UUID,
	betID uuid.UUID,
	stake int64,
	timestamp int64,
) (*Batch, error) {
	escrowKey := NewBettorAccountKey(bettorID, SubTypeEscrow)
	if err := jg.balanceTracker.ValidateSufficient(escrowKey, stake); err != nil {
		return nil, fmt.Errorf("loss settlement pre-check failed: %w", err)
	}

	batchID := uuid.New()

	batch := &Batch{
		BatchID:   batchID,
		EventRef:  betID.String(),
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, 1),
	}

	journal := Journal{
		JournalID:     uuid.New(),
		BatchID:       batchID,
		EventRef:      betID.String(),
		Sequence:      jg.sequence,
		DebitAccount:  HouseBankrollKey(),
		CreditAccount: escrowKey,
		Amount:        stake,
		JournalType:   JournalTypeStakeSweep,
		Timestamp:     timestamp,
	}

	batch.Journals = append(batch.Journals, journal)
	jg.sequence++

	return batch, nil
}

// GenerateRefund returns an escrowed stake to its wallet when a bet is
// cancelled before settlement.
// Pre-check: escrow holds the stake.
// Moves funds: bettor:escrow -> bettor:wallet
func (jg *JournalGenerator) GenerateRefund(
	bettorID uuid.UUID,
	betID uuid.UUID,
	stake int64,
	timestamp int64,
) (*Batch, error) {
	escrowKey := NewBettorAccountKey(bettorID, SubTypeEscrow)
	if err := jg.balanceTracker.ValidateSufficient(escrowKey, stake); err != nil {
		return nil, fmt.Errorf("refund pre-check failed: %w", err)
	}

	batchID := uuid.New()

	batch := &Batch{
		BatchID:   batchID,
		EventRef:  betID.String(),
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, 1),
	}

	journal := Journal{
		JournalID:     uuid.New(),
		BatchID:       batchID,
		EventRef:      betID.String(),
		Sequence:      jg.sequence,
		DebitAccount:  NewBettorAccountKey(bettorID, SubTypeWallet),
		CreditAccount: escrowKey,
		Amount:        stake,
		JournalType:   JournalTypeStakeRefund,
		Timestamp:     timestamp,
	}

	batch.Journals = append(batch.Journals, journal)
	jg.sequence++

	return batch, nil
}
