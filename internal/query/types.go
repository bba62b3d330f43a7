package query

import (
	"time"

	"github.com/google/uuid"
)

// BalanceResponse is a bettor's money split across wallet and escrow.
// AsOfSequence is the projection watermark the numbers were read at.
type BalanceResponse struct {
	BettorID      uuid.UUID `json:"bettor_id"`
	WalletBalance int64     `json:"wallet_balance"`
	EscrowBalance int64     `json:"escrow_balance"`
	TotalBalance  int64     `json:"total_balance"`
	AsOfSequence  int64     `json:"as_of_sequence"`
}

// BetHistoryEntry is one bet from a bettor's history.
type BetHistoryEntry struct {
	BetID        uuid.UUID  `json:"bet_id"`
	GameID       uuid.UUID  `json:"game_id"`
	Kind         string     `json:"kind"`
	Target       int        `json:"target"`
	Stake        int64      `json:"stake"`
	Status       string     `json:"status"`
	Payout       int64      `json:"payout"`
	PlacedAt     time.Time  `json:"placed_at"`
	SettledAt    *time.Time `json:"settled_at,omitempty"`
	LastSequence int64      `json:"last_sequence"`
	AsOfSequence int64      `json:"as_of_sequence"`
}

// GameSummary is the read-side view of one game.
type GameSummary struct {
	GameID        uuid.UUID `json:"game_id"`
	Round         int64     `json:"round"`
	Status        string    `json:"status"`
	Outcome       *int      `json:"outcome,omitempty"`
	MinimumStake  int64     `json:"minimum_stake"`
	TotalBets     int       `json:"total_bets"`
	SettledCount  int       `json:"settled_count"`
	CommittedRisk int64     `json:"committed_risk"`
	PaidOut       int64     `json:"paid_out"`
	Swept         int64     `json:"swept"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	AsOfSequence  int64     `json:"as_of_sequence"`
}

// HouseSummary aggregates the money side of the whole book.
type HouseSummary struct {
	Bankroll     int64 `json:"bankroll"`
	TotalEscrow  int64 `json:"total_escrow"`
	TotalWallets int64 `json:"total_wallets"`
	OpenGames    int   `json:"open_games"`
	LiveGames    int   `json:"live_games"` // closed or settling
	AsOfSequence int64 `json:"as_of_sequence"`
}

// JournalHistoryEntry is one double-entry line touching a bettor.
type JournalHistoryEntry struct {
	JournalID     string `json:"journal_id"`
	BatchID       string `json:"batch_id"`
	EventRef      string `json:"event_ref"`
	Sequence      int64  `json:"sequence"`
	DebitAccount  string `json:"debit_account"`
	CreditAccount string `json:"credit_account"`
	Amount        int64  `json:"amount"`
	JournalType   int32  `json:"journal_type"`
	Timestamp     int64  `json:"timestamp"`
}

// IntegrityReport is the result of re-verifying the event log. ChainBreaks
// lists sequences whose prev_hash does not match the prior state_hash;
// HashMismatches lists sequences whose stored state_hash does not
// recompute from its inputs.
type IntegrityReport struct {
	IsHealthy       bool    `json:"is_healthy"`
	EventsChecked   int64   `json:"events_checked"`
	ChainBreaks     []int64 `json:"chain_breaks,omitempty"`
	HashMismatches  []int64 `json:"hash_mismatches,omitempty"`
	GlobalImbalance int64   `json:"global_imbalance"`
	LastSequence    int64   `json:"last_sequence"`
}
