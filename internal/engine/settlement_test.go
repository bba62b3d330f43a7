package engine_test

import (
	"testing"

	"WagerHouse/internal/event"
	"WagerHouse/internal/fault"
	"WagerHouse/internal/game"
	"WagerHouse/internal/risk"
	"WagerHouse/internal/wheel"

	"github.com/google/uuid"
)

// ============================================================================
// Test: Settlement outcomes
// ============================================================================

// The test computes the pocket a round will draw before placing bets, so
// wins and losses are chosen, not sampled.

func TestSettle_SinglePocketWinCollectsThirtySixTimesStake(t *testing.T) {
	h := newHarness(t, testParams())
	h.topUp(t, 2000)
	bettor := uuid.New()
	h.deposit(t, bettor, 1000)

	round := uint64(10)
	pocket := h.pocketFor(t, round)
	gameID := h.createGame(t, round)
	h.placeBet(t, gameID, bettor, wheel.KindSingle, pocket, 27)
	h.closeGame(t, gameID, round)

	res, err := h.house.Settle(h.cred, gameID, h.proofs[round], 0, 100, h.now())
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if res.Outcome != pocket {
		t.Errorf("outcome = %d, want %d", res.Outcome, pocket)
	}
	if !res.Completed {
		t.Error("single-bet game did not complete")
	}
	if res.PaidOut != 972 {
		t.Errorf("paid out = %d, want 972 (27 * 36)", res.PaidOut)
	}

	// Wallet: 1000 - 27 staked + 972 collected.
	if got := h.house.WalletBalance(bettor); got != 1945 {
		t.Errorf("wallet = %d, want 1945", got)
	}
	if got := h.house.EscrowBalance(bettor); got != 0 {
		t.Errorf("escrow = %d, want 0", got)
	}
	// Bankroll paid 945 net winnings out of 2000.
	if got := h.house.BankrollBalance(); got != 1055 {
		t.Errorf("bankroll = %d, want 1055", got)
	}
}

func TestSettle_EvenMoneyWinCollectsDoubleStake(t *testing.T) {
	h := newHarness(t, testParams())
	h.topUp(t, 1000)
	bettor := uuid.New()
	h.deposit(t, bettor, 100)

	round := h.findRound(t, func(p int) bool { return h.layout.IsRed(p) })
	gameID := h.createGame(t, round)
	h.placeBet(t, gameID, bettor, wheel.KindRed, 0, 5)
	h.closeGame(t, gameID, round)

	res, err := h.house.Settle(h.cred, gameID, h.proofs[round], 0, 10, h.now())
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if res.PaidOut != 10 {
		t.Errorf("paid out = %d, want 10 (stake 5 at 1:1)", res.PaidOut)
	}
	if got := h.house.WalletBalance(bettor); got != 105 {
		t.Errorf("wallet = %d, want 105", got)
	}
}

func TestSettle_LossSweepsStakeIntoBankroll(t *testing.T) {
	h := newHarness(t, testParams())
	h.topUp(t, 1000)
	bettor := uuid.New()
	h.deposit(t, bettor, 100)

	// Bet red on a round that draws black or an edge pocket.
	round := h.findRound(t, func(p int) bool { return !h.layout.IsRed(p) })
	gameID := h.createGame(t, round)
	h.placeBet(t, gameID, bettor, wheel.KindRed, 0, 50)
	h.closeGame(t, gameID, round)

	res, err := h.house.Settle(h.cred, gameID, h.proofs[round], 0, 10, h.now())
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if res.Swept != 50 {
		t.Errorf("swept = %d, want 50", res.Swept)
	}
	if got := h.house.WalletBalance(bettor); got != 50 {
		t.Errorf("wallet = %d, want 50", got)
	}
	if got := h.house.BankrollBalance(); got != 1050 {
		t.Errorf("bankroll = %d, want 1050", got)
	}
	if got := h.house.EscrowBalance(bettor); got != 0 {
		t.Errorf("escrow = %d, want 0", got)
	}
}

func TestSettle_EdgePocketLosesEveryOutsideBet(t *testing.T) {
	h := newHarness(t, testParams())
	h.topUp(t, 10_000)
	bettor := uuid.New()
	h.deposit(t, bettor, 1000)

	round := h.findRound(t, func(p int) bool { return h.layout.IsEdge(p) })
	pocket := h.pocketFor(t, round)
	gameID := h.createGame(t, round)

	// Every outside category, plus a single on the edge pocket itself.
	outside := []wheel.BetKind{
		wheel.KindRed, wheel.KindBlack, wheel.KindEven, wheel.KindOdd,
		wheel.KindLow, wheel.KindHigh, wheel.KindDozen1, wheel.KindColumn2,
	}
	for _, kind := range outside {
		h.placeBet(t, gameID, bettor, kind, 0, 10)
	}
	h.placeBet(t, gameID, bettor, wheel.KindSingle, pocket, 2)
	h.closeGame(t, gameID, round)

	res, err := h.house.Settle(h.cred, gameID, h.proofs[round], 0, 100, h.now())
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	for _, r := range res.Results {
		if r.Kind == "single" {
			if !r.Won || r.Payout != 72 {
				t.Errorf("single on edge pocket: won=%v payout=%d, want win paying 72", r.Won, r.Payout)
			}
			continue
		}
		if r.Won {
			t.Errorf("outside bet %s won on edge pocket %d", r.Kind, pocket)
		}
	}
	// 80 swept from outside stakes, 72 paid for the single.
	if res.Swept != 80 || res.PaidOut != 72 {
		t.Errorf("swept=%d paid=%d, want 80 and 72", res.Swept, res.PaidOut)
	}
}

// ============================================================================
// Test: Paging, idempotency, state machine
// ============================================================================

func TestSettle_PagesConvergeAndRepeatSafely(t *testing.T) {
	h := newHarness(t, testParams())
	h.topUp(t, 50_000)
	bettor := uuid.New()
	h.deposit(t, bettor, 1000)

	round := uint64(15)
	gameID := h.createGame(t, round)
	for i := 0; i < 10; i++ {
		h.placeBet(t, gameID, bettor, wheel.KindRed, 0, 10)
	}
	h.closeGame(t, gameID, round)
	h.drain()

	// Ten bets at page size 3: exactly ceil(10/3) = 4 calls.
	calls := 0
	cursor := 0
	var completed bool
	for !completed {
		res, err := h.house.Settle(h.cred, gameID, h.proofs[round], cursor, 3, h.now())
		if err != nil {
			t.Fatalf("settle call %d failed: %v", calls, err)
		}
		calls++
		cursor = res.NextIndex
		completed = res.Completed

		// Replaying the same window must settle nothing new.
		if !completed {
			again, err := h.house.Settle(h.cred, gameID, h.proofs[round], res.PageStart, 3, h.now())
			if err != nil {
				t.Fatalf("replay of page %d failed: %v", res.PageStart, err)
			}
			if again.NewlySettled != 0 {
				t.Errorf("replayed page settled %d bets", again.NewlySettled)
			}
			if again.SettledCount != res.SettledCount {
				t.Errorf("replay changed settled count: %d vs %d", again.SettledCount, res.SettledCount)
			}
		}
	}
	if calls != 4 {
		t.Errorf("completion took %d calls, want 4", calls)
	}

	// A completed game refuses another settle.
	_, err := h.house.Settle(h.cred, gameID, h.proofs[round], 0, 3, h.now())
	if !fault.IsKind(err, fault.KindState) {
		t.Errorf("settle after completion kind = %v, want state", fault.KindOf(err))
	}

	// Replayed pages emit no second settlement event: 4 pages + 1 completion.
	var pages, completions int
	for _, et := range eventTypes(h.drain()) {
		switch et {
		case event.EventTypeSettlementPage:
			pages++
		case event.EventTypeGameCompleted:
			completions++
		}
	}
	if pages != 4 || completions != 1 {
		t.Errorf("emitted %d pages and %d completions, want 4 and 1", pages, completions)
	}
}

func TestSettle_RequiresClosedGame(t *testing.T) {
	h := newHarness(t, testParams())
	h.topUp(t, 1000)
	gameID := h.createGame(t, 12)

	_, err := h.house.Settle(h.cred, gameID, h.proofs[12], 0, 10, h.now())
	if !fault.IsKind(err, fault.KindState) {
		t.Errorf("settle on open game kind = %v, want state", fault.KindOf(err))
	}
	if _, err := h.house.Settle(h.cred, uuid.New(), h.proofs[12], 0, 10, h.now()); err == nil {
		t.Error("settle on unknown game accepted")
	}
}

func TestSettle_ProofFailureLeavesGameRetryable(t *testing.T) {
	h := newHarness(t, testParams())
	h.topUp(t, 1000)
	bettor := uuid.New()
	h.deposit(t, bettor, 100)

	round := uint64(9)
	gameID := h.createGame(t, round)
	h.placeBet(t, gameID, bettor, wheel.KindRed, 0, 10)
	h.closeGame(t, gameID, round)

	// Wrong round: the draw proof must be for the game's own round.
	_, err := h.house.Settle(h.cred, gameID, h.proofs[round-1], 0, 10, h.now())
	if !fault.IsKind(err, fault.KindExternalProof) {
		t.Fatalf("error kind = %v, want external proof", fault.KindOf(err))
	}

	view, err := h.house.ViewGame(gameID)
	if err != nil {
		t.Fatalf("ViewGame failed: %v", err)
	}
	if view.Status != game.StatusClosed {
		t.Errorf("status after proof failure = %s, want Closed", view.Status)
	}
	if view.SettledCount != 0 {
		t.Errorf("settled count after proof failure = %d, want 0", view.SettledCount)
	}

	// The valid proof still settles.
	res, err := h.house.Settle(h.cred, gameID, h.proofs[round], 0, 10, h.now())
	if err != nil {
		t.Fatalf("retry settle failed: %v", err)
	}
	if !res.Completed {
		t.Error("retry did not complete the game")
	}
}

func TestSettle_StoredOutcomeIgnoresLaterProofs(t *testing.T) {
	h := newHarness(t, testParams())
	h.topUp(t, 10_000)
	bettor := uuid.New()
	h.deposit(t, bettor, 1000)

	round := uint64(11)
	gameID := h.createGame(t, round)
	for i := 0; i < 4; i++ {
		h.placeBet(t, gameID, bettor, wheel.KindOdd, 0, 10)
	}
	h.closeGame(t, gameID, round)

	first, err := h.house.Settle(h.cred, gameID, h.proofs[round], 0, 2, h.now())
	if err != nil {
		t.Fatalf("first page failed: %v", err)
	}

	// Garbage proof on the second page: the stored pocket rules.
	garbage := h.proofs[round]
	garbage.Signature = []byte("not a signature")
	second, err := h.house.Settle(h.cred, gameID, garbage, 2, 2, h.now())
	if err != nil {
		t.Fatalf("second page with stored outcome failed: %v", err)
	}
	if second.Outcome != first.Outcome {
		t.Errorf("outcome drifted between pages: %d vs %d", first.Outcome, second.Outcome)
	}
	if !second.Completed {
		t.Error("game did not complete")
	}
}

func TestSettle_ZeroBetGameCompletesImmediately(t *testing.T) {
	h := newHarness(t, testParams())
	h.topUp(t, 1000)

	round := uint64(14)
	gameID := h.createGame(t, round)
	h.closeGame(t, gameID, round)
	h.drain()

	res, err := h.house.Settle(h.cred, gameID, h.proofs[round], 0, 10, h.now())
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if !res.Completed || res.NewlySettled != 0 {
		t.Errorf("completed=%v settled=%d, want true and 0", res.Completed, res.NewlySettled)
	}

	types := eventTypes(h.drain())
	if len(types) != 1 || types[0] != event.EventTypeGameCompleted {
		t.Errorf("emitted %v, want exactly one GameCompleted", types)
	}
}

func TestSettle_CompletionReleasesExposure(t *testing.T) {
	h := newHarness(t, testParams())
	h.topUp(t, 1000)
	bettor := uuid.New()
	h.deposit(t, bettor, 100)

	round := uint64(16)
	gameID := h.createGame(t, round)
	h.placeBet(t, gameID, bettor, wheel.KindRed, 0, 50)
	h.closeGame(t, gameID, round)

	if got := h.house.CommittedExposure(); got != 50 {
		t.Fatalf("committed exposure = %d, want 50", got)
	}
	res, err := h.house.Settle(h.cred, gameID, h.proofs[round], 0, 10, h.now())
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if !res.Completed {
		t.Fatal("game did not complete")
	}
	if got := h.house.CommittedExposure(); got != 0 {
		t.Errorf("committed exposure after completion = %d, want 0", got)
	}

	// The full bankroll is withdrawable again.
	bankroll := h.house.BankrollBalance()
	if _, err := h.house.WithdrawBankroll(h.cred, uuid.New(), bankroll, h.now()); err != nil {
		t.Errorf("post-completion withdrawal of %d failed: %v", bankroll, err)
	}
}

// ============================================================================
// Test: Conservation
// ============================================================================

func TestSettle_ConservesThePool(t *testing.T) {
	h := newHarness(t, testParams())
	h.topUp(t, 20_000)
	bettors := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, b := range bettors {
		h.deposit(t, b, 1000)
	}

	round := uint64(21)
	pocket := h.pocketFor(t, round)
	gameID := h.createGame(t, round)

	// A spread of winners and losers whatever the pocket is.
	h.placeBet(t, gameID, bettors[0], wheel.KindSingle, pocket, 10)
	h.placeBet(t, gameID, bettors[0], wheel.KindSingle, (pocket+1)%h.layout.Pockets, 10)
	h.placeBet(t, gameID, bettors[1], wheel.KindRed, 0, 25)
	h.placeBet(t, gameID, bettors[1], wheel.KindBlack, 0, 25)
	h.placeBet(t, gameID, bettors[2], wheel.KindOdd, 0, 40)
	h.placeBet(t, gameID, bettors[2], wheel.KindDozen2, 0, 15)
	h.closeGame(t, gameID, round)

	walletsBefore := make(map[uuid.UUID]int64, len(bettors))
	var escrowBefore int64
	for _, b := range bettors {
		walletsBefore[b] = h.house.WalletBalance(b)
		escrowBefore += h.house.EscrowBalance(b)
	}
	poolBefore := h.house.BankrollBalance() + escrowBefore

	res, err := h.house.Settle(h.cred, gameID, h.proofs[round], 0, 100, h.now())
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if !res.Completed {
		t.Fatal("game did not complete")
	}

	var distributed, escrowAfter int64
	for _, b := range bettors {
		distributed += h.house.WalletBalance(b) - walletsBefore[b]
		escrowAfter += h.house.EscrowBalance(b)
	}
	if escrowAfter != 0 {
		t.Errorf("escrow after settlement = %d, want 0", escrowAfter)
	}
	if poolAfter := h.house.BankrollBalance(); poolBefore != poolAfter+distributed {
		t.Errorf("pool before %d != bankroll after %d + distributed %d", poolBefore, poolAfter, distributed)
	}
}

// ============================================================================
// Test: Refunds
// ============================================================================

func TestRefundAll_PopsFromTheTail(t *testing.T) {
	h := newHarness(t, testParams())
	h.topUp(t, 10_000)
	bettor := uuid.New()
	h.deposit(t, bettor, 100)

	gameID := h.createGame(t, 5)
	first := h.placeBet(t, gameID, bettor, wheel.KindRed, 0, 27)
	second := h.placeBet(t, gameID, bettor, wheel.KindOdd, 0, 27)
	h.drain()

	// Two sweeps of one bet each: last placed comes back first.
	out1, err := h.house.RefundAll(h.cred, gameID, 1, h.now())
	if err != nil {
		t.Fatalf("first RefundAll failed: %v", err)
	}
	if out1.Refunded != 1 || out1.Returned != 27 {
		t.Errorf("first sweep refunded=%d returned=%d, want 1 and 27", out1.Refunded, out1.Returned)
	}
	if got := h.house.WalletBalance(bettor); got != 73 {
		t.Errorf("wallet after first sweep = %d, want 73", got)
	}

	out2, err := h.house.RefundAll(h.cred, gameID, 1, h.now())
	if err != nil {
		t.Fatalf("second RefundAll failed: %v", err)
	}
	if out2.Refunded != 1 || out2.Returned != 27 {
		t.Errorf("second sweep refunded=%d returned=%d, want 1 and 27", out2.Refunded, out2.Returned)
	}
	if got := h.house.WalletBalance(bettor); got != 100 {
		t.Errorf("wallet after second sweep = %d, want 100", got)
	}

	outputs := h.drain()
	if len(outputs) != 2 {
		t.Fatalf("expected 2 refund events, got %d", len(outputs))
	}
	var ev1, ev2 event.BetsRefunded
	decodePayload(t, outputs[0].Envelope.Payload, &ev1)
	decodePayload(t, outputs[1].Envelope.Payload, &ev2)
	if ev1.Refunds[0].BetID != second {
		t.Error("first sweep did not pop the last-placed bet")
	}
	if ev2.Refunds[0].BetID != first {
		t.Error("second sweep did not pop the remaining bet")
	}
}

func TestRefundAll_EmptySweepIsANoop(t *testing.T) {
	h := newHarness(t, testParams())
	h.topUp(t, 1000)
	gameID := h.createGame(t, 5)
	h.drain()

	out, err := h.house.RefundAll(h.cred, gameID, 10, h.now())
	if err != nil {
		t.Fatalf("RefundAll failed: %v", err)
	}
	if out.Refunded != 0 {
		t.Errorf("refunded = %d, want 0", out.Refunded)
	}
	if outputs := h.drain(); len(outputs) != 0 {
		t.Errorf("empty sweep emitted %d outputs", len(outputs))
	}
}

func TestRefundAll_StopsAtSettledTail(t *testing.T) {
	h := newHarness(t, testParams())
	h.topUp(t, 10_000)
	bettor := uuid.New()
	h.deposit(t, bettor, 100)

	round := uint64(13)
	gameID := h.createGame(t, round)
	h.placeBet(t, gameID, bettor, wheel.KindRed, 0, 10)
	h.placeBet(t, gameID, bettor, wheel.KindOdd, 0, 10)
	h.closeGame(t, gameID, round)

	// Settle only the first bet, leaving the tail unsettled.
	if _, err := h.house.Settle(h.cred, gameID, h.proofs[round], 0, 1, h.now()); err != nil {
		t.Fatalf("partial settle failed: %v", err)
	}

	// The sweep pops the unsettled tail, then stops at the settled bet.
	out, err := h.house.RefundAll(h.cred, gameID, 10, h.now())
	if err != nil {
		t.Fatalf("RefundAll failed: %v", err)
	}
	if out.Refunded != 1 {
		t.Errorf("refunded = %d, want 1", out.Refunded)
	}

	// Nothing left to pop: the next sweep is a no-op.
	again, err := h.house.RefundAll(h.cred, gameID, 10, h.now())
	if err != nil {
		t.Fatalf("second RefundAll failed: %v", err)
	}
	if again.Refunded != 0 {
		t.Errorf("second sweep refunded = %d, want 0", again.Refunded)
	}
}

func TestRefundAll_IncrementalModeFreesExposurePerPop(t *testing.T) {
	h := newHarness(t, testParams())
	h.topUp(t, 10_000)
	bettor := uuid.New()
	h.deposit(t, bettor, 100)

	gameID := h.createGame(t, 5)
	h.placeBet(t, gameID, bettor, wheel.KindRed, 0, 30)
	h.placeBet(t, gameID, bettor, wheel.KindRed, 0, 20)
	if got := h.house.CommittedExposure(); got != 50 {
		t.Fatalf("committed exposure = %d, want 50", got)
	}

	if _, err := h.house.RefundAll(h.cred, gameID, 1, h.now()); err != nil {
		t.Fatalf("RefundAll failed: %v", err)
	}
	if got := h.house.CommittedExposure(); got != 30 {
		t.Errorf("committed exposure after one pop = %d, want 30", got)
	}
	if _, err := h.house.RefundAll(h.cred, gameID, 1, h.now()); err != nil {
		t.Fatalf("RefundAll failed: %v", err)
	}
	if got := h.house.CommittedExposure(); got != 0 {
		t.Errorf("committed exposure after both pops = %d, want 0", got)
	}
}

func TestRefundAll_BulkModeHoldsExposureUntilEmpty(t *testing.T) {
	params := testParams()
	params.ReleaseMode = risk.ReleaseModeBulk
	h := newHarness(t, params)
	h.topUp(t, 10_000)
	bettor := uuid.New()
	h.deposit(t, bettor, 100)

	gameID := h.createGame(t, 5)
	h.placeBet(t, gameID, bettor, wheel.KindRed, 0, 30)
	h.placeBet(t, gameID, bettor, wheel.KindRed, 0, 20)

	if _, err := h.house.RefundAll(h.cred, gameID, 1, h.now()); err != nil {
		t.Fatalf("RefundAll failed: %v", err)
	}
	// Conservative: the reserve holds while any bet remains.
	if got := h.house.CommittedExposure(); got != 50 {
		t.Errorf("committed exposure after partial sweep = %d, want 50", got)
	}
	if _, err := h.house.RefundAll(h.cred, gameID, 1, h.now()); err != nil {
		t.Fatalf("RefundAll failed: %v", err)
	}
	if got := h.house.CommittedExposure(); got != 0 {
		t.Errorf("committed exposure after emptying = %d, want 0", got)
	}
}

// ============================================================================
// Test: Feed-driven settlement
// ============================================================================

func TestSettleByRound_DrivesGameToCompletion(t *testing.T) {
	h := newHarness(t, testParams())
	h.topUp(t, 10_000)
	bettor := uuid.New()
	h.deposit(t, bettor, 1000)

	round := uint64(25)
	gameID := h.createGame(t, round)
	for i := 0; i < 5; i++ {
		h.placeBet(t, gameID, bettor, wheel.KindRed, 0, 10)
	}
	h.closeGame(t, gameID, round)

	res, err := h.house.SettleByRound(h.proofs[round], 2, h.now())
	if err != nil {
		t.Fatalf("SettleByRound failed: %v", err)
	}
	if res == nil || !res.Completed {
		t.Fatal("feed-driven settlement did not complete the game")
	}
	view, err := h.house.ViewGame(gameID)
	if err != nil {
		t.Fatalf("ViewGame failed: %v", err)
	}
	if view.Status != game.StatusCompleted {
		t.Errorf("status = %s, want Completed", view.Status)
	}

	// Unclaimed rounds and already-completed games settle nothing.
	if res, err := h.house.SettleByRound(h.proofs[round+100], 2, h.now()); err != nil || res != nil {
		t.Errorf("unclaimed round: res=%v err=%v, want nil and nil", res, err)
	}
	if res, err := h.house.SettleByRound(h.proofs[round], 2, h.now()); err != nil || res != nil {
		t.Errorf("completed game: res=%v err=%v, want nil and nil", res, err)
	}
}

// TestSettleByRound_OpenGameIgnored covers a feed proof arriving before the
// administrator closes the game: the proof is dropped, not applied.
func TestSettleByRound_OpenGameIgnored(t *testing.T) {
	h := newHarness(t, testParams())
	h.topUp(t, 1000)
	round := uint64(30)
	h.createGame(t, round)

	res, err := h.house.SettleByRound(h.proofs[round], 10, h.now())
	if err != nil || res != nil {
		t.Errorf("open game: res=%v err=%v, want nil and nil", res, err)
	}
}
