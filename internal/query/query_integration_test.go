package query_test

import (
	"bytes"
	"context"
	"database/sql"
	"testing"

	"WagerHouse/internal/persistence"
	"WagerHouse/internal/projection"
	"WagerHouse/internal/query"
	"WagerHouse/internal/testutil"
	"WagerHouse/internal/wheel"

	"github.com/google/uuid"
)

// --- Test helpers ---

const chainLength = 64

type bookScene struct {
	bettorA  uuid.UUID
	bettorB  uuid.UUID
	gameID   uuid.UUID
	openGame uuid.UUID
	round    uint64
	pocket   int
	winBet   uuid.UUID
	loseBet  uuid.UUID
	redBet   uuid.UUID
	blackBet uuid.UUID
	openBet  uuid.UUID
	lastSeq  int64
}

// seedBook drives one full game through settlement plus a second game left
// open with a single live bet, then persists the log and applies the
// projections so every query path has data behind it.
func seedBook(t *testing.T, db *sql.DB, fix *testutil.EngineFixture) *bookScene {
	t.Helper()

	sc := &bookScene{bettorA: uuid.New(), bettorB: uuid.New()}
	fix.TopUp(t, 1_000_000)
	fix.Deposit(t, sc.bettorA, 10_000)
	fix.Deposit(t, sc.bettorB, 5_000)

	sc.round = fix.FindRound(t, func(pocket int) bool { return pocket >= 1 && pocket <= 36 })
	sc.pocket = fix.PocketFor(t, sc.round)
	sc.gameID = fix.CreateGame(t, sc.round)
	sc.winBet = fix.PlaceBet(t, sc.gameID, sc.bettorA, wheel.KindSingle, sc.pocket, 100)
	sc.loseBet = fix.PlaceBet(t, sc.gameID, sc.bettorA, wheel.KindSingle, sc.pocket-1, 50)
	sc.redBet = fix.PlaceBet(t, sc.gameID, sc.bettorB, wheel.KindRed, 0, 200)
	sc.blackBet = fix.PlaceBet(t, sc.gameID, sc.bettorB, wheel.KindBlack, 0, 200)
	fix.CloseGame(t, sc.gameID, sc.round)

	first := fix.Settle(t, sc.gameID, sc.round, 0, 2)
	second := fix.Settle(t, sc.gameID, sc.round, first.NextIndex, 2)
	if !second.Completed {
		t.Fatalf("settlement did not complete: %+v", second)
	}

	// Second game stays open so status filters and escrow have live rows.
	sc.openGame = fix.CreateGame(t, sc.round+1)
	sc.openBet = fix.PlaceBet(t, sc.openGame, sc.bettorA, wheel.KindLow, 0, 60)

	outputs := fix.DrainPersist()
	sc.lastSeq = outputs[len(outputs)-1].Envelope.Sequence

	var events []persistence.EventRow
	var journals []persistence.JournalRow
	for _, o := range outputs {
		row := persistence.OutputFromEnvelope(o.Envelope, o.Batches, o.StateDelta)
		events = append(events, row.EventRow)
		journals = append(journals, row.JournalRows...)
	}
	ctx := context.Background()
	writer := persistence.NewEventLogWriter(db)
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	defer tx.Rollback()
	if err := writer.WriteEventBatch(ctx, tx, events); err != nil {
		t.Fatalf("write events: %v", err)
	}
	if err := writer.WriteJournalBatch(ctx, tx, journals); err != nil {
		t.Fatalf("write journals: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	projOutputs := fix.DrainProjection()
	ch := make(chan projection.Output, len(projOutputs))
	for _, o := range projOutputs {
		ch <- projection.OutputFromEnvelope(o.Envelope, o.Batches)
	}
	close(ch)
	if err := projection.NewWorker(db, ch, nil, nil).Run(ctx); err != nil {
		t.Fatalf("projection run returned %v", err)
	}

	return sc
}

// --- Tests ---

func TestGetBalanceTracksEngine(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	fix := testutil.NewEngineFixture(t, chainLength)
	sc := seedBook(t, db, fix)
	svc := query.NewService(db)
	ctx := context.Background()

	bal, err := svc.GetBalance(ctx, sc.bettorA)
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if want := fix.House.WalletBalance(sc.bettorA); bal.WalletBalance != want {
		t.Errorf("wallet = %d, want %d", bal.WalletBalance, want)
	}
	// The open bet's stake sits in escrow.
	if bal.EscrowBalance != 60 {
		t.Errorf("escrow = %d, want 60", bal.EscrowBalance)
	}
	if bal.TotalBalance != bal.WalletBalance+bal.EscrowBalance {
		t.Errorf("total = %d, want wallet+escrow", bal.TotalBalance)
	}
	if bal.AsOfSequence != sc.lastSeq {
		t.Errorf("as_of_sequence = %d, want %d", bal.AsOfSequence, sc.lastSeq)
	}

	// Unknown bettors read as zero, not as an error.
	empty, err := svc.GetBalance(ctx, uuid.New())
	if err != nil {
		t.Fatalf("GetBalance for unknown bettor failed: %v", err)
	}
	if empty.WalletBalance != 0 || empty.EscrowBalance != 0 || empty.TotalBalance != 0 {
		t.Errorf("unknown bettor balance = %+v, want zeros", empty)
	}
}

func TestGetBetHistoryFiltersAndPaginates(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	fix := testutil.NewEngineFixture(t, chainLength)
	sc := seedBook(t, db, fix)
	svc := query.NewService(db)
	ctx := context.Background()

	all, err := svc.GetBetHistory(ctx, sc.bettorA, nil, 10, nil)
	if err != nil {
		t.Fatalf("GetBetHistory failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("history entries: got %d, want 3", len(all))
	}
	// Newest first; the still-open bet was touched last.
	if all[0].BetID != sc.openBet || all[0].Status != "placed" {
		t.Errorf("first entry = %+v, want the open bet", all[0])
	}
	if all[0].SettledAt != nil {
		t.Error("unsettled bet carries a settled_at")
	}
	if all[0].AsOfSequence != sc.lastSeq {
		t.Errorf("as_of_sequence = %d, want %d", all[0].AsOfSequence, sc.lastSeq)
	}
	for i := 1; i < len(all); i++ {
		if all[i].LastSequence > all[i-1].LastSequence {
			t.Errorf("entry %d out of order: %d after %d", i, all[i].LastSequence, all[i-1].LastSequence)
		}
	}

	// Cursor: everything before the open bet's touch is the settled game.
	after := all[0].LastSequence
	settled, err := svc.GetBetHistory(ctx, sc.bettorA, nil, 10, &after)
	if err != nil {
		t.Fatalf("GetBetHistory with cursor failed: %v", err)
	}
	if len(settled) != 2 {
		t.Fatalf("cursor page: got %d entries, want 2", len(settled))
	}
	for _, e := range settled {
		if e.GameID != sc.gameID {
			t.Errorf("cursor page leaked bet %s from game %s", e.BetID, e.GameID)
		}
		if e.SettledAt == nil {
			t.Errorf("settled bet %s has no settled_at", e.BetID)
		}
	}

	// Game filter narrows to one game's bets.
	byGame, err := svc.GetBetHistory(ctx, sc.bettorA, &sc.openGame, 10, nil)
	if err != nil {
		t.Fatalf("GetBetHistory by game failed: %v", err)
	}
	if len(byGame) != 1 || byGame[0].BetID != sc.openBet {
		t.Errorf("game filter returned %d entries", len(byGame))
	}

	if limited, _ := svc.GetBetHistory(ctx, sc.bettorA, nil, 1, nil); len(limited) != 1 {
		t.Errorf("limit 1 returned %d entries", len(limited))
	}
}

func TestGetGameAndListGames(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	fix := testutil.NewEngineFixture(t, chainLength)
	sc := seedBook(t, db, fix)
	svc := query.NewService(db)
	ctx := context.Background()

	g, err := svc.GetGame(ctx, sc.gameID)
	if err != nil {
		t.Fatalf("GetGame failed: %v", err)
	}
	if g == nil {
		t.Fatal("settled game not found")
	}
	if g.Status != "completed" || g.TotalBets != 4 || g.SettledCount != 4 {
		t.Errorf("game summary = %+v", g)
	}
	if g.Outcome == nil || *g.Outcome != sc.pocket {
		t.Errorf("outcome = %v, want %d", g.Outcome, sc.pocket)
	}
	if g.PaidOut != 4000 || g.Swept != 250 || g.CommittedRisk != 0 {
		t.Errorf("game money = paid %d swept %d risk %d", g.PaidOut, g.Swept, g.CommittedRisk)
	}

	unknown, err := svc.GetGame(ctx, uuid.New())
	if err != nil || unknown != nil {
		t.Errorf("unknown game: got (%v, %v), want (nil, nil)", unknown, err)
	}

	games, err := svc.ListGames(ctx, nil, 10)
	if err != nil {
		t.Fatalf("ListGames failed: %v", err)
	}
	if len(games) != 2 {
		t.Fatalf("game count: got %d, want 2", len(games))
	}
	if games[0].GameID != sc.openGame {
		t.Errorf("newest game first: got %s, want %s", games[0].GameID, sc.openGame)
	}

	status := "completed"
	completed, err := svc.ListGames(ctx, &status, 10)
	if err != nil {
		t.Fatalf("ListGames by status failed: %v", err)
	}
	if len(completed) != 1 || completed[0].GameID != sc.gameID {
		t.Errorf("status filter returned %d games", len(completed))
	}
}

func TestGetHouseSummary(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	fix := testutil.NewEngineFixture(t, chainLength)
	sc := seedBook(t, db, fix)
	svc := query.NewService(db)

	summary, err := svc.GetHouseSummary(context.Background())
	if err != nil {
		t.Fatalf("GetHouseSummary failed: %v", err)
	}
	if want := fix.House.BankrollBalance(); summary.Bankroll != want {
		t.Errorf("bankroll = %d, want %d", summary.Bankroll, want)
	}
	if summary.TotalEscrow != 60 {
		t.Errorf("total escrow = %d, want 60", summary.TotalEscrow)
	}
	wantWallets := fix.House.WalletBalance(sc.bettorA) + fix.House.WalletBalance(sc.bettorB)
	if summary.TotalWallets != wantWallets {
		t.Errorf("total wallets = %d, want %d", summary.TotalWallets, wantWallets)
	}
	if summary.OpenGames != 1 || summary.LiveGames != 0 {
		t.Errorf("game counts = %d open / %d live, want 1/0", summary.OpenGames, summary.LiveGames)
	}
}

func TestGetJournalHistory(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	fix := testutil.NewEngineFixture(t, chainLength)
	sc := seedBook(t, db, fix)
	svc := query.NewService(db)
	ctx := context.Background()

	// bettorA touches the journal seven times: deposit, three stake
	// escrows, a two-line win payout, and a one-line loss sweep.
	entries, err := svc.GetJournalHistory(ctx, sc.bettorA, 50, nil)
	if err != nil {
		t.Fatalf("GetJournalHistory failed: %v", err)
	}
	if len(entries) != 7 {
		t.Fatalf("journal entries: got %d, want 7", len(entries))
	}
	prefix := "bettor:" + sc.bettorA.String() + ":"
	for i, e := range entries {
		if i > 0 && e.Sequence > entries[i-1].Sequence {
			t.Errorf("entry %d out of order: seq %d after %d", i, e.Sequence, entries[i-1].Sequence)
		}
		touchesDebit := len(e.DebitAccount) >= len(prefix) && e.DebitAccount[:len(prefix)] == prefix
		touchesCredit := len(e.CreditAccount) >= len(prefix) && e.CreditAccount[:len(prefix)] == prefix
		if !touchesDebit && !touchesCredit {
			t.Errorf("entry %d does not touch the bettor: %s / %s", i, e.DebitAccount, e.CreditAccount)
		}
	}
	if entries[0].Sequence != sc.lastSeq {
		t.Errorf("newest journal at seq %d, want %d", entries[0].Sequence, sc.lastSeq)
	}

	// Cursor excludes the newest touch and returns the rest.
	after := entries[0].Sequence
	rest, err := svc.GetJournalHistory(ctx, sc.bettorA, 50, &after)
	if err != nil {
		t.Fatalf("GetJournalHistory with cursor failed: %v", err)
	}
	if len(rest) != len(entries)-1 {
		t.Errorf("cursor page: got %d entries, want %d", len(rest), len(entries)-1)
	}
	for _, e := range rest {
		if e.Sequence >= after {
			t.Errorf("cursor leaked seq %d", e.Sequence)
		}
	}
}

func TestVerifyIntegrityDetectsTampering(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	fix := testutil.NewEngineFixture(t, chainLength)
	sc := seedBook(t, db, fix)
	svc := query.NewService(db)
	ctx := context.Background()

	report, err := svc.VerifyIntegrity(ctx)
	if err != nil {
		t.Fatalf("VerifyIntegrity failed: %v", err)
	}
	if !report.IsHealthy {
		t.Fatalf("fresh log reported unhealthy: %+v", report)
	}
	if report.EventsChecked != sc.lastSeq+1 || report.LastSequence != sc.lastSeq {
		t.Errorf("checked %d through %d, want %d through %d",
			report.EventsChecked, report.LastSequence, sc.lastSeq+1, sc.lastSeq)
	}
	if report.GlobalImbalance != 0 {
		t.Errorf("global imbalance = %d, want 0", report.GlobalImbalance)
	}

	// Tamper with one stored hash and one balance.
	if _, err := db.Exec(
		`UPDATE event_log.events SET state_hash = $1 WHERE sequence = 2`,
		bytes.Repeat([]byte{0xAB}, 32),
	); err != nil {
		t.Fatalf("corrupt event: %v", err)
	}
	if _, err := db.Exec(
		`UPDATE projections.balances SET balance = balance + 5 WHERE account_path = 'house:bankroll'`,
	); err != nil {
		t.Fatalf("corrupt balance: %v", err)
	}

	report, err = svc.VerifyIntegrity(ctx)
	if err != nil {
		t.Fatalf("VerifyIntegrity failed: %v", err)
	}
	if report.IsHealthy {
		t.Fatal("tampered log reported healthy")
	}
	// Sequence 2 no longer recomputes; sequence 3 no longer chains to it.
	// The walk resumes from stored hashes, so the damage stays local.
	if len(report.HashMismatches) == 0 || report.HashMismatches[0] != 2 {
		t.Errorf("hash mismatches = %v, want first at 2", report.HashMismatches)
	}
	foundBreak := false
	for _, seq := range report.ChainBreaks {
		if seq == 3 {
			foundBreak = true
		}
	}
	if !foundBreak {
		t.Errorf("chain breaks = %v, want 3 flagged", report.ChainBreaks)
	}
	for _, seq := range report.ChainBreaks {
		if seq > 3 {
			t.Errorf("damage spread past the tampered row: break at %d", seq)
		}
	}
	if report.GlobalImbalance != 5 {
		t.Errorf("global imbalance = %d, want 5", report.GlobalImbalance)
	}
}
