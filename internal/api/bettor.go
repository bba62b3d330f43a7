package api

import (
	"net/http"
	"time"

	"WagerHouse/internal/wheel"

	"github.com/go-chi/render"
	"github.com/google/uuid"
)

// fundRequest moves money in or out of a wallet or the bankroll. The
// request id doubles as the idempotency key; replaying it is rejected.
type fundRequest struct {
	RequestID string `json:"request_id" validate:"required,uuid"`
	Amount    int64  `json:"amount" validate:"required,gt=0"`
}

type balanceReply struct {
	Response
	BettorID uuid.UUID `json:"bettor_id"`
	Balance  int64     `json:"balance"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	bettorID, ok := s.pathUUID(w, r, "bettorID")
	if !ok {
		return
	}
	var req fundRequest
	if !s.decode(w, r, &req) {
		return
	}

	balance, err := s.house.Deposit(bettorID, uuid.MustParse(req.RequestID), req.Amount, time.Now())
	if err != nil {
		s.renderFault(w, r, err)
		return
	}
	render.JSON(w, r, balanceReply{Response: OK(), BettorID: bettorID, Balance: balance})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	bettorID, ok := s.pathUUID(w, r, "bettorID")
	if !ok {
		return
	}
	var req fundRequest
	if !s.decode(w, r, &req) {
		return
	}

	balance, err := s.house.Withdraw(bettorID, uuid.MustParse(req.RequestID), req.Amount, time.Now())
	if err != nil {
		s.renderFault(w, r, err)
		return
	}
	render.JSON(w, r, balanceReply{Response: OK(), BettorID: bettorID, Balance: balance})
}

// placeBetRequest stakes one wager on an open game. Target is only
// meaningful for single-pocket bets; the engine ignores it otherwise.
type placeBetRequest struct {
	BetID    string `json:"bet_id" validate:"required,uuid"`
	BettorID string `json:"bettor_id" validate:"required,uuid"`
	Kind     string `json:"kind" validate:"required"`
	Target   int    `json:"target"`
	Stake    int64  `json:"stake" validate:"required,gt=0"`
	Metadata string `json:"metadata"`
}

type placeBetReply struct {
	Response
	BetID         uuid.UUID `json:"bet_id"`
	GameID        uuid.UUID `json:"game_id"`
	Kind          string    `json:"kind"`
	Target        int       `json:"target"`
	Stake         int64     `json:"stake"`
	RiskDelta     int64     `json:"risk_delta"`
	GameRisk      int64     `json:"game_risk"`
	WalletBalance int64     `json:"wallet_balance"`
}

func (s *Server) handlePlaceBet(w http.ResponseWriter, r *http.Request) {
	gameID, ok := s.pathUUID(w, r, "gameID")
	if !ok {
		return
	}
	var req placeBetRequest
	if !s.decode(w, r, &req) {
		return
	}
	kind, err := wheel.ParseBetKind(req.Kind)
	if err != nil {
		s.renderErr(w, r, Err(http.StatusBadRequest, CodeValidation, err.Error()))
		return
	}

	receipt, err := s.house.PlaceBet(
		uuid.MustParse(req.BettorID), gameID, uuid.MustParse(req.BetID),
		kind, req.Target, req.Stake, req.Metadata, time.Now(),
	)
	if err != nil {
		s.renderFault(w, r, err)
		return
	}
	render.JSON(w, r, placeBetReply{
		Response:      OK(),
		BetID:         receipt.BetID,
		GameID:        receipt.GameID,
		Kind:          receipt.Kind.String(),
		Target:        receipt.Target,
		Stake:         receipt.Stake,
		RiskDelta:     receipt.RiskDelta,
		GameRisk:      receipt.GameRisk,
		WalletBalance: receipt.WalletBalance,
	})
}
