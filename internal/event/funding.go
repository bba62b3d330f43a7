package event

import "github.com/google/uuid"

// BettorDeposited records money entering a bettor's wallet.
// Idempotency key: deposit_id.
type BettorDeposited struct {
	DepositID uuid.UUID `json:"deposit_id"`
	Bettor    uuid.UUID `json:"bettor"`
	Amount    int64     `json:"amount"`
	Balance   int64     `json:"balance"`
}

func (e *BettorDeposited) IdempotencyKey() string {
	return e.DepositID.String()
}

func (e *BettorDeposited) EventType() EventType {
	return EventTypeBettorDeposited
}

func (e *BettorDeposited) GameID() *string {
	return nil
}

func (e *BettorDeposited) Round() uint64 {
	return 0
}

// BettorWithdrew records money leaving a bettor's wallet.
// Idempotency key: withdrawal_id.
type BettorWithdrew struct {
	WithdrawalID uuid.UUID `json:"withdrawal_id"`
	Bettor       uuid.UUID `json:"bettor"`
	Amount       int64     `json:"amount"`
	Balance      int64     `json:"balance"`
}

func (e *BettorWithdrew) IdempotencyKey() string {
	return e.WithdrawalID.String()
}

func (e *BettorWithdrew) EventType() EventType {
	return EventTypeBettorWithdrew
}

func (e *BettorWithdrew) GameID() *string {
	return nil
}

func (e *BettorWithdrew) Round() uint64 {
	return 0
}

// BankrollToppedUp records administrator funding of the pooled bankroll.
// Idempotency key: funding_id.
type BankrollToppedUp struct {
	FundingID uuid.UUID `json:"funding_id"`
	Amount    int64     `json:"amount"`
	Bankroll  int64     `json:"bankroll"`
}

func (e *BankrollToppedUp) IdempotencyKey() string {
	return e.FundingID.String()
}

func (e *BankrollToppedUp) EventType() EventType {
	return EventTypeBankrollToppedUp
}

func (e *BankrollToppedUp) GameID() *string {
	return nil
}

func (e *BankrollToppedUp) Round() uint64 {
	return 0
}

// BankrollWithdrawn records an administrator payout from the bankroll.
// Idempotency key: funding_id.
type BankrollWithdrawn struct {
	FundingID uuid.UUID `json:"funding_id"`
	Amount    int64     `json:"amount"`
	Bankroll  int64     `json:"bankroll"`
}

func (e *BankrollWithdrawn) IdempotencyKey() string {
	return e.FundingID.String()
}

func (e *BankrollWithdrawn) EventType() EventType {
	return EventTypeBankrollWithdrawn
}

func (e *BankrollWithdrawn) GameID() *string {
	return nil
}

func (e *BankrollWithdrawn) Round() uint64 {
	return 0
}
