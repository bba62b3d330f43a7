package api

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"WagerHouse/internal/beacon"
	"WagerHouse/internal/engine"
	"WagerHouse/internal/event"

	"github.com/go-chi/render"
	"github.com/google/uuid"
)

// credentialHeader carries the admin credential on every privileged call.
const credentialHeader = "X-House-Credential"

// credential pulls and decodes the admin header. A false return means the
// 401 is already written. The engine still compares the value; this only
// rejects requests that cannot possibly match.
func (s *Server) credential(w http.ResponseWriter, r *http.Request) (engine.Credential, bool) {
	raw := r.Header.Get(credentialHeader)
	if raw == "" {
		s.renderErr(w, r, Err(http.StatusUnauthorized, CodeUnauthorized, "missing "+credentialHeader+" header"))
		return engine.Credential{}, false
	}
	cred, err := engine.ParseCredential(raw)
	if err != nil {
		s.renderErr(w, r, Err(http.StatusUnauthorized, CodeUnauthorized, err.Error()))
		return engine.Credential{}, false
	}
	return cred, true
}

// parseProof decodes the hex proof fields shared by close and settle
// requests. The length and content checks belong to the verifier.
func parseProof(round uint64, signature, previous string) (beacon.Proof, error) {
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return beacon.Proof{}, fmt.Errorf("signature must be hex: %w", err)
	}
	prev, err := hex.DecodeString(previous)
	if err != nil {
		return beacon.Proof{}, fmt.Errorf("previous_signature must be hex: %w", err)
	}
	return beacon.Proof{Round: round, Signature: sig, PreviousSignature: prev}, nil
}

// gameView is the wire form of a live engine game.
type gameView struct {
	GameID        uuid.UUID `json:"game_id"`
	Round         uint64    `json:"round"`
	Status        string    `json:"status"`
	TotalBets     int       `json:"total_bets"`
	SettledCount  int       `json:"settled_count"`
	TotalRisk     int64     `json:"total_risk"`
	CommittedRisk int64     `json:"committed_risk"`
	MinimumStake  int64     `json:"minimum_stake"`
	Outcome       *int      `json:"outcome,omitempty"`
}

func wireGame(v *engine.GameView) gameView {
	return gameView{
		GameID:        v.ID,
		Round:         v.Round,
		Status:        strings.ToLower(v.Status.String()),
		TotalBets:     v.TotalBets,
		SettledCount:  v.SettledCount,
		TotalRisk:     v.TotalRisk,
		CommittedRisk: v.CommittedRisk,
		MinimumStake:  v.MinimumStake,
		Outcome:       v.Outcome,
	}
}

type bankrollReply struct {
	Response
	Bankroll int64 `json:"bankroll"`
}

func (s *Server) handleBankrollTopUp(w http.ResponseWriter, r *http.Request) {
	cred, ok := s.credential(w, r)
	if !ok {
		return
	}
	var req fundRequest
	if !s.decode(w, r, &req) {
		return
	}

	bankroll, err := s.house.TopUpBankroll(cred, uuid.MustParse(req.RequestID), req.Amount, time.Now())
	if err != nil {
		s.renderFault(w, r, err)
		return
	}
	render.JSON(w, r, bankrollReply{Response: OK(), Bankroll: bankroll})
}

func (s *Server) handleBankrollWithdraw(w http.ResponseWriter, r *http.Request) {
	cred, ok := s.credential(w, r)
	if !ok {
		return
	}
	var req fundRequest
	if !s.decode(w, r, &req) {
		return
	}

	bankroll, err := s.house.WithdrawBankroll(cred, uuid.MustParse(req.RequestID), req.Amount, time.Now())
	if err != nil {
		s.renderFault(w, r, err)
		return
	}
	render.JSON(w, r, bankrollReply{Response: OK(), Bankroll: bankroll})
}

// createGameRequest opens a game drawing from the given beacon round. A
// zero minimum stake takes the house default.
type createGameRequest struct {
	GameID       string `json:"game_id" validate:"required,uuid"`
	Round        uint64 `json:"round" validate:"required,gt=1"`
	MinimumStake int64  `json:"minimum_stake" validate:"gte=0"`
}

type gameReply struct {
	Response
	Game gameView `json:"game"`
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	cred, ok := s.credential(w, r)
	if !ok {
		return
	}
	var req createGameRequest
	if !s.decode(w, r, &req) {
		return
	}

	view, err := s.house.CreateGame(cred, uuid.MustParse(req.GameID), req.Round, req.MinimumStake, time.Now())
	if err != nil {
		s.renderFault(w, r, err)
		return
	}
	render.JSON(w, r, gameReply{Response: OK(), Game: wireGame(view)})
}

// closeGameRequest freezes placement. The proof must verify for the round
// right before the game's draw round.
type closeGameRequest struct {
	Round             uint64 `json:"round" validate:"required"`
	Signature         string `json:"signature" validate:"required,hexadecimal"`
	PreviousSignature string `json:"previous_signature" validate:"required,hexadecimal"`
}

func (s *Server) handleCloseGame(w http.ResponseWriter, r *http.Request) {
	cred, ok := s.credential(w, r)
	if !ok {
		return
	}
	gameID, ok := s.pathUUID(w, r, "gameID")
	if !ok {
		return
	}
	var req closeGameRequest
	if !s.decode(w, r, &req) {
		return
	}
	proof, err := parseProof(req.Round, req.Signature, req.PreviousSignature)
	if err != nil {
		s.renderErr(w, r, Err(http.StatusBadRequest, CodeValidation, err.Error()))
		return
	}

	view, err := s.house.CloseGame(cred, gameID, proof, time.Now())
	if err != nil {
		s.renderFault(w, r, err)
		return
	}
	render.JSON(w, r, gameReply{Response: OK(), Game: wireGame(view)})
}

// settleRequest resolves one page of bets against the draw-round proof.
// Repeating a page is safe; settled bets inside the window are skipped.
type settleRequest struct {
	Round             uint64 `json:"round" validate:"required"`
	Signature         string `json:"signature" validate:"required,hexadecimal"`
	PreviousSignature string `json:"previous_signature" validate:"required,hexadecimal"`
	PageStart         int    `json:"page_start" validate:"gte=0"`
	PageSize          int    `json:"page_size" validate:"required,gt=0"`
}

type settleReply struct {
	Response
	GameID       uuid.UUID         `json:"game_id"`
	Outcome      int               `json:"outcome"`
	PageStart    int               `json:"page_start"`
	PageEnd      int               `json:"page_end"`
	NewlySettled int               `json:"newly_settled"`
	SettledCount int               `json:"settled_count"`
	TotalBets    int               `json:"total_bets"`
	NextIndex    int               `json:"next_index"`
	Completed    bool              `json:"completed"`
	PaidOut      int64             `json:"paid_out"`
	Swept        int64             `json:"swept"`
	Results      []event.BetResult `json:"results"`
}

func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	cred, ok := s.credential(w, r)
	if !ok {
		return
	}
	gameID, ok := s.pathUUID(w, r, "gameID")
	if !ok {
		return
	}
	var req settleRequest
	if !s.decode(w, r, &req) {
		return
	}
	proof, err := parseProof(req.Round, req.Signature, req.PreviousSignature)
	if err != nil {
		s.renderErr(w, r, Err(http.StatusBadRequest, CodeValidation, err.Error()))
		return
	}

	res, err := s.house.Settle(cred, gameID, proof, req.PageStart, req.PageSize, time.Now())
	if err != nil {
		s.renderFault(w, r, err)
		return
	}
	render.JSON(w, r, settleReply{
		Response:     OK(),
		GameID:       res.GameID,
		Outcome:      res.Outcome,
		PageStart:    res.PageStart,
		PageEnd:      res.PageEnd,
		NewlySettled: res.NewlySettled,
		SettledCount: res.SettledCount,
		TotalBets:    res.TotalBets,
		NextIndex:    res.NextIndex,
		Completed:    res.Completed,
		PaidOut:      res.PaidOut,
		Swept:        res.Swept,
		Results:      res.Results,
	})
}

// refundRequest pops up to count unsettled bets off the game's tail and
// returns their stakes.
type refundRequest struct {
	Count int `json:"count" validate:"required,gt=0"`
}

type refundReply struct {
	Response
	GameID    uuid.UUID `json:"game_id"`
	Refunded  int       `json:"refunded"`
	Returned  int64     `json:"returned"`
	Remaining int       `json:"remaining"`
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	cred, ok := s.credential(w, r)
	if !ok {
		return
	}
	gameID, ok := s.pathUUID(w, r, "gameID")
	if !ok {
		return
	}
	var req refundRequest
	if !s.decode(w, r, &req) {
		return
	}

	out, err := s.house.RefundAll(cred, gameID, req.Count, time.Now())
	if err != nil {
		s.renderFault(w, r, err)
		return
	}
	render.JSON(w, r, refundReply{
		Response:  OK(),
		GameID:    out.GameID,
		Refunded:  out.Refunded,
		Returned:  out.Returned,
		Remaining: out.Remaining,
	})
}

// ceilingRequest changes the per-game exposure limit. Live games keep
// their committed exposure.
type ceilingRequest struct {
	RequestID string `json:"request_id" validate:"required,uuid"`
	Ceiling   int64  `json:"ceiling" validate:"required,gt=0"`
}

type ceilingReply struct {
	Response
	Ceiling int64 `json:"ceiling"`
}

func (s *Server) handleSetCeiling(w http.ResponseWriter, r *http.Request) {
	cred, ok := s.credential(w, r)
	if !ok {
		return
	}
	var req ceilingRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.house.SetExposureCeiling(cred, uuid.MustParse(req.RequestID), req.Ceiling, time.Now()); err != nil {
		s.renderFault(w, r, err)
		return
	}
	render.JSON(w, r, ceilingReply{Response: OK(), Ceiling: req.Ceiling})
}

// rotateRequest swaps the house credential. The new value takes effect on
// the next privileged call; it is never echoed back or logged.
type rotateRequest struct {
	RequestID      string `json:"request_id" validate:"required,uuid"`
	NextCredential string `json:"next_credential" validate:"required,hexadecimal,len=64"`
}

func (s *Server) handleRotateCredential(w http.ResponseWriter, r *http.Request) {
	cred, ok := s.credential(w, r)
	if !ok {
		return
	}
	var req rotateRequest
	if !s.decode(w, r, &req) {
		return
	}
	next, err := engine.ParseCredential(req.NextCredential)
	if err != nil {
		s.renderErr(w, r, Err(http.StatusBadRequest, CodeValidation, err.Error()))
		return
	}

	if err := s.house.RotateCredential(cred, uuid.MustParse(req.RequestID), next, time.Now()); err != nil {
		s.renderFault(w, r, err)
		return
	}
	render.JSON(w, r, OK())
}
