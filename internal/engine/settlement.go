package engine

import (
	"fmt"
	"time"

	"WagerHouse/internal/bank"
	"WagerHouse/internal/beacon"
	"WagerHouse/internal/event"
	"WagerHouse/internal/fault"
	"WagerHouse/internal/game"
	"WagerHouse/internal/risk"

	"github.com/google/uuid"
)

// SettlementResult reports one settle call: the clamped window, the bets it
// newly resolved, and the cursor for the next page.
type SettlementResult struct {
	GameID       uuid.UUID
	Outcome      int
	PageStart    int
	PageEnd      int
	NewlySettled int
	SettledCount int
	TotalBets    int
	// NextIndex is the resume cursor. Calling settle again from here
	// covers every bet the finished window did not.
	NextIndex int
	Completed bool
	PaidOut   int64
	Swept     int64
	Results   []event.BetResult
}

// Settle resolves one page of bets against the game's drawn pocket.
//
// The first successful call verifies the randomness proof for the game's
// draw round, stores the mapped pocket, and moves the game to Settling.
// Later calls reuse the stored pocket and ignore the proof argument, so a
// retried page can never resolve against a different outcome. Already
// settled bets inside the window are skipped, which makes any page safe to
// repeat. Each paid winner consumes its net payout from the game's
// reservation, keeping committed exposure covered by the bankroll between
// pages; when the settled count reaches the bet count the game completes
// and the unconsumed remainder returns to the bankroll's free headroom.
func (h *House) Settle(
	cred Credential,
	gameID uuid.UUID,
	proof beacon.Proof,
	pageStart, pageSize int,
	now time.Time,
) (*SettlementResult, error) {
	const op = "engine.Settle"
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.authorize(op, cred); err != nil {
		return nil, err
	}
	return h.settlePage(op, gameID, proof, pageStart, pageSize, now)
}

// settlePage is the settlement body. Callers hold the engine lock and have
// already authorized.
func (h *House) settlePage(
	op string,
	gameID uuid.UUID,
	proof beacon.Proof,
	pageStart, pageSize int,
	now time.Time,
) (*SettlementResult, error) {
	g := h.games.Get(gameID)
	if g == nil {
		return nil, fault.Validationf(op, "unknown game %s", gameID)
	}
	if pageStart < 0 {
		return nil, fault.Validationf(op, "page start must be non-negative, got %d", pageStart)
	}
	if pageSize <= 0 {
		return nil, fault.Validationf(op, "page size must be positive, got %d", pageSize)
	}
	switch g.Status {
	case game.StatusOpen:
		h.reject(op, "state")
		return nil, fault.Statef(op, "game %s is still open, close it before settling", gameID)
	case game.StatusCompleted:
		h.reject(op, "state")
		return nil, fault.Statef(op, "game %s is already completed", gameID)
	}

	// Draw the pocket exactly once per game. Proof verification failure
	// leaves the game untouched and retryable.
	outcome, drawn := g.Outcome()
	if !drawn {
		entropy, err := h.verifier.VerifyRound(proof, g.Round)
		if err != nil {
			h.reject(op, "proof")
			return nil, fault.Proof(op, err)
		}
		outcome = beacon.MapToPocket(entropy, h.rules.Layout().Pockets)
		if err := g.SetOutcome(outcome); err != nil {
			panic(fmt.Sprintf("FATAL: outcome stored twice for game %s: %v", gameID, err))
		}
	}
	if g.Status == game.StatusClosed {
		if err := g.TransitionTo(game.StatusSettling, now.UnixMicro()); err != nil {
			panic(fmt.Sprintf("FATAL: closed game %s refused settling: %v", gameID, err))
		}
	}
	g.SettlementCalls++

	end := pageStart + pageSize
	if end > g.Len() {
		end = g.Len()
	}

	settledFrom := g.SettledCount
	results := make([]event.BetResult, 0)
	batches := make([]*bank.Batch, 0)
	var paidOut, swept int64

	for i := pageStart; i < end; i++ {
		bet := g.BetAt(i)
		if bet.Settled {
			continue
		}

		won := h.rules.Wins(bet.Kind, bet.Target, outcome)
		var payout int64
		var batch *bank.Batch
		var err error
		if won {
			payout = h.rules.Payout(bet.Stake, bet.Kind)
			batch, err = h.journalGen.GenerateWinSettlement(bet.Bettor, bet.ID, bet.Stake, payout, now.UnixMicro())
		} else {
			batch, err = h.journalGen.GenerateLossSettlement(bet.Bettor, bet.ID, bet.Stake, now.UnixMicro())
		}
		// An unsettled bet's stake is in escrow and a win never exceeds
		// the reserve, so generation cannot fail on live state.
		if err != nil {
			panic(fmt.Sprintf("FATAL: settle bet %s: %v", bet.ID, err))
		}
		h.applyBatch(batch)
		batches = append(batches, batch)

		bet.Settled = true
		g.SettledCount++
		if won {
			paidOut += payout
			// The bankroll debit and the reservation release move
			// together, so committed exposure stays covered by the
			// balance between pages. Settled bets remain in the risk
			// table until completion, which bounds consumption by the
			// reservation in both release modes.
			consumed := payout - bet.Stake
			g.CommittedRisk -= consumed
			h.committedExposure -= consumed
			if g.CommittedRisk < 0 {
				panic(fmt.Sprintf("FATAL: game %s consumed %d past its reservation", gameID, consumed))
			}
		} else {
			swept += bet.Stake
		}
		results = append(results, event.BetResult{
			BetID:  bet.ID,
			Bettor: bet.Bettor,
			Kind:   bet.Kind.String(),
			Target: bet.Target,
			Stake:  bet.Stake,
			Payout: payout,
			Won:    won,
		})
	}

	g.TotalPaidOut += paidOut
	g.TotalSwept += swept

	if len(results) > 0 {
		h.finalize(&event.SettlementPage{
			GameRef:      gameID,
			BeaconRound:  g.Round,
			Outcome:      outcome,
			SettledFrom:  settledFrom,
			SettledTo:    g.SettledCount,
			Results:      results,
			SettledCount: g.SettledCount,
			TotalBets:    g.Len(),
		}, batches, now)
	}

	completed := false
	if g.SettledCount == g.Len() && g.Status == game.StatusSettling {
		if err := g.TransitionTo(game.StatusCompleted, now.UnixMicro()); err != nil {
			panic(fmt.Sprintf("FATAL: settling game %s refused completion: %v", gameID, err))
		}
		released := g.CommittedRisk
		h.committedExposure -= released
		g.CommittedRisk = 0
		g.Risk.Reset()
		completed = true

		h.finalize(&event.GameCompleted{
			GameRef:         gameID,
			BeaconRound:     g.Round,
			Outcome:         outcome,
			TotalBets:       g.Len(),
			TotalPaidOut:    g.TotalPaidOut,
			TotalSwept:      g.TotalSwept,
			ReleasedRisk:    released,
			CompletedAt:     g.CompletedAt,
			SettlementCalls: g.SettlementCalls,
		}, nil, now)
	}

	return &SettlementResult{
		GameID:       gameID,
		Outcome:      outcome,
		PageStart:    pageStart,
		PageEnd:      end,
		NewlySettled: len(results),
		SettledCount: g.SettledCount,
		TotalBets:    g.Len(),
		NextIndex:    end,
		Completed:    completed,
		PaidOut:      paidOut,
		Swept:        swept,
		Results:      results,
	}, nil
}

// RefundOutcome reports one refund sweep.
type RefundOutcome struct {
	GameID    uuid.UUID
	Refunded  int
	Returned  int64
	Remaining int
}

// RefundAll pops up to count unsettled bets off the game's tail and
// returns each stake from escrow to its bettor's wallet. It runs in any
// status and stops early at a settled tail or an empty game; a sweep that
// pops nothing changes nothing and emits nothing.
//
// Under the incremental release mode each pop frees the exact exposure the
// bet no longer contributes. Under the bulk mode reserved exposure holds
// until the game empties, trading headroom for fewer liability walks.
func (h *House) RefundAll(cred Credential, gameID uuid.UUID, count int, now time.Time) (*RefundOutcome, error) {
	const op = "engine.RefundAll"
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.authorize(op, cred); err != nil {
		return nil, err
	}
	g := h.games.Get(gameID)
	if g == nil {
		return nil, fault.Validationf(op, "unknown game %s", gameID)
	}
	if count <= 0 {
		return nil, fault.Validationf(op, "count must be positive, got %d", count)
	}

	lenFrom := g.Len()
	refunds := make([]event.RefundResult, 0)
	batches := make([]*bank.Batch, 0)
	var returned int64

	for popped := 0; popped < count; popped++ {
		bet := g.PopUnsettledTail()
		if bet == nil {
			break
		}
		batch, err := h.journalGen.GenerateRefund(bet.Bettor, bet.ID, bet.Stake, now.UnixMicro())
		// A popped bet's stake is in escrow by construction.
		if err != nil {
			panic(fmt.Sprintf("FATAL: refund bet %s: %v", bet.ID, err))
		}
		h.applyBatch(batch)
		batches = append(batches, batch)

		if h.params.ReleaseMode == risk.ReleaseModeIncremental {
			freed := g.Risk.Release(bet.Kind, bet.Target, bet.Stake)
			g.CommittedRisk -= freed
			h.committedExposure -= freed
		}

		returned += bet.Stake
		refunds = append(refunds, event.RefundResult{
			BetID:  bet.ID,
			Bettor: bet.Bettor,
			Stake:  bet.Stake,
		})
	}

	if h.params.ReleaseMode == risk.ReleaseModeBulk && g.Len() == 0 && g.CommittedRisk > 0 {
		h.committedExposure -= g.CommittedRisk
		g.CommittedRisk = 0
		g.Risk.Reset()
	}

	if len(refunds) == 0 {
		return &RefundOutcome{
			GameID:    gameID,
			Refunded:  0,
			Returned:  0,
			Remaining: g.UnsettledCount(),
		}, nil
	}

	h.finalize(&event.BetsRefunded{
		GameRef:     gameID,
		BeaconRound: g.Round,
		LenFrom:     lenFrom,
		LenTo:       g.Len(),
		Refunds:     refunds,
		Remaining:   g.UnsettledCount(),
	}, batches, now)

	return &RefundOutcome{
		GameID:    gameID,
		Refunded:  len(refunds),
		Returned:  returned,
		Remaining: g.UnsettledCount(),
	}, nil
}

// SettleByRound drives full settlement for the game claiming the given
// beacon round, walking pages until the game completes. The engine lock
// releases between pages so other commands interleave with a large
// settlement run. A round no game claims returns nil without error since
// most beacon rounds carry no game.
//
// This is the in-process feed driver's entry and takes no credential;
// external settlement goes through Settle.
func (h *House) SettleByRound(proof beacon.Proof, pageSize int, now time.Time) (*SettlementResult, error) {
	const op = "engine.SettleByRound"
	if pageSize <= 0 {
		return nil, fault.Validationf(op, "page size must be positive, got %d", pageSize)
	}

	h.mu.Lock()
	g := h.games.GetByRound(proof.Round)
	var (
		gameID     uuid.UUID
		settleable bool
	)
	if g != nil {
		gameID = g.ID
		settleable = g.Status == game.StatusClosed || g.Status == game.StatusSettling
	}
	h.mu.Unlock()
	if g == nil || !settleable {
		return nil, nil
	}

	var last *SettlementResult
	cursor := 0
	for {
		h.mu.Lock()
		res, err := h.settlePage(op, gameID, proof, cursor, pageSize, now)
		h.mu.Unlock()
		if err != nil {
			return last, err
		}
		last = res
		if res.Completed || res.NextIndex >= res.TotalBets {
			return last, nil
		}
		cursor = res.NextIndex
	}
}
