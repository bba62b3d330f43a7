package api

import (
	"net/http"

	"WagerHouse/internal/projection"
	"WagerHouse/internal/query"

	"github.com/go-chi/render"
	"github.com/google/uuid"
)

type balanceQueryReply struct {
	Response
	query.BalanceResponse
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	bettorID, ok := s.pathUUID(w, r, "bettorID")
	if !ok {
		return
	}
	bal, err := s.queries.GetBalance(r.Context(), bettorID)
	if err != nil {
		s.renderQueryErr(w, r, err)
		return
	}
	render.JSON(w, r, balanceQueryReply{Response: OK(), BalanceResponse: *bal})
}

type betHistoryReply struct {
	Response
	Bets []query.BetHistoryEntry `json:"bets"`
}

func (s *Server) handleBetHistory(w http.ResponseWriter, r *http.Request) {
	bettorID, ok := s.pathUUID(w, r, "bettorID")
	if !ok {
		return
	}
	var gameID *uuid.UUID
	if raw := r.URL.Query().Get("game_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			s.renderErr(w, r, Err(http.StatusBadRequest, CodeValidation, "game_id must be a uuid"))
			return
		}
		gameID = &id
	}

	bets, err := s.queries.GetBetHistory(r.Context(), bettorID, gameID, limitParam(r, 50, 500), cursorParam(r))
	if err != nil {
		s.renderQueryErr(w, r, err)
		return
	}
	render.JSON(w, r, betHistoryReply{Response: OK(), Bets: bets})
}

type journalReply struct {
	Response
	Entries []query.JournalHistoryEntry `json:"entries"`
}

func (s *Server) handleJournalHistory(w http.ResponseWriter, r *http.Request) {
	bettorID, ok := s.pathUUID(w, r, "bettorID")
	if !ok {
		return
	}
	entries, err := s.queries.GetJournalHistory(r.Context(), bettorID, limitParam(r, 50, 500), cursorParam(r))
	if err != nil {
		s.renderQueryErr(w, r, err)
		return
	}
	render.JSON(w, r, journalReply{Response: OK(), Entries: entries})
}

// gameSummaryReply nests the summary because its status field would
// collide with the envelope's.
type gameSummaryReply struct {
	Response
	Game query.GameSummary `json:"game"`
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	gameID, ok := s.pathUUID(w, r, "gameID")
	if !ok {
		return
	}
	summary, err := s.queries.GetGame(r.Context(), gameID)
	if err != nil {
		s.renderQueryErr(w, r, err)
		return
	}
	if summary == nil {
		s.renderErr(w, r, Err(http.StatusNotFound, CodeNotFound, "game not found"))
		return
	}
	render.JSON(w, r, gameSummaryReply{Response: OK(), Game: *summary})
}

type gamesReply struct {
	Response
	Games []query.GameSummary `json:"games"`
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	var status *string
	if raw := r.URL.Query().Get("status"); raw != "" {
		status = &raw
	}
	games, err := s.queries.ListGames(r.Context(), status, limitParam(r, 50, 500))
	if err != nil {
		s.renderQueryErr(w, r, err)
		return
	}
	render.JSON(w, r, gamesReply{Response: OK(), Games: games})
}

// handleGameLive reads the engine's in-memory view, ahead of the
// projection watermark.
func (s *Server) handleGameLive(w http.ResponseWriter, r *http.Request) {
	gameID, ok := s.pathUUID(w, r, "gameID")
	if !ok {
		return
	}
	view, err := s.house.ViewGame(gameID)
	if err != nil {
		s.renderErr(w, r, Err(http.StatusNotFound, CodeNotFound, "game not found"))
		return
	}
	render.JSON(w, r, gameReply{Response: OK(), Game: wireGame(view)})
}

type houseSummaryReply struct {
	Response
	query.HouseSummary
}

func (s *Server) handleHouseSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.queries.GetHouseSummary(r.Context())
	if err != nil {
		s.renderQueryErr(w, r, err)
		return
	}
	render.JSON(w, r, houseSummaryReply{Response: OK(), HouseSummary: *summary})
}

type exposureReply struct {
	Response
	Bankroll          int64 `json:"bankroll"`
	CommittedExposure int64 `json:"committed_exposure"`
	ExposureCeiling   int64 `json:"exposure_ceiling"`
	Headroom          int64 `json:"headroom"`
	Sequence          int64 `json:"sequence"`
}

// handleExposure reads the engine's live risk position in one lock hold.
func (s *Server) handleExposure(w http.ResponseWriter, r *http.Request) {
	view := s.house.Exposure()
	render.JSON(w, r, exposureReply{
		Response:          OK(),
		Bankroll:          view.Bankroll,
		CommittedExposure: view.CommittedExposure,
		ExposureCeiling:   view.ExposureCeiling,
		Headroom:          view.Bankroll - view.CommittedExposure,
		Sequence:          view.Sequence,
	})
}

type integrityReply struct {
	Response
	query.IntegrityReport
}

// handleIntegrity re-verifies the whole event log. A broken chain still
// renders 200; the report says what failed.
func (s *Server) handleIntegrity(w http.ResponseWriter, r *http.Request) {
	report, err := s.queries.VerifyIntegrity(r.Context())
	if err != nil {
		s.renderQueryErr(w, r, err)
		return
	}
	render.JSON(w, r, integrityReply{Response: OK(), IntegrityReport: *report})
}

type outcomesReply struct {
	Response
	Recent      []projection.OutcomeEntry `json:"recent"`
	Frequencies map[int]int64             `json:"frequencies"`
	Total       int64                     `json:"total"`
}

// handleOutcomes serves the in-memory draw history kept by the projection
// worker. It resets on restart; the projections hold the durable record.
func (s *Server) handleOutcomes(w http.ResponseWriter, r *http.Request) {
	freqs, total := s.history.Frequencies()
	render.JSON(w, r, outcomesReply{
		Response:    OK(),
		Recent:      s.history.Recent(limitParam(r, 32, 256)),
		Frequencies: freqs,
		Total:       total,
	})
}
