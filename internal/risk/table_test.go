package risk_test

import (
	"testing"

	"WagerHouse/internal/risk"
	"WagerHouse/internal/wheel"
)

func newTable() *risk.Table {
	return risk.NewTable(wheel.NewRules(wheel.AmericanLayout()))
}

// ============================================================
// Incremental add
// ============================================================

func TestAddSinglePocket(t *testing.T) {
	tbl := newTable()

	// 27 on pocket 4: liability 27*36 - 27 = 945 on one slot.
	delta := tbl.Add(wheel.KindSingle, 4, 27)
	if delta != 945 {
		t.Errorf("delta = %d, want 945", delta)
	}
	if got := tbl.TotalRisk(); got != 945 {
		t.Errorf("TotalRisk = %d, want 945", got)
	}
}

func TestAddOutsideBetRaisesOnlyWinningSlots(t *testing.T) {
	tbl := newTable()

	// 100 on red: 18 slots gain 100 (payout 200 - stake 100).
	delta := tbl.Add(wheel.KindRed, 0, 100)
	if delta != 100 {
		t.Errorf("red delta = %d, want 100", delta)
	}

	// 100 on black raises the other 18 slots; the max is unchanged.
	delta = tbl.Add(wheel.KindBlack, 0, 100)
	if delta != 0 {
		t.Errorf("black delta = %d, want 0 (disjoint partitions)", delta)
	}
	if got := tbl.TotalRisk(); got != 100 {
		t.Errorf("TotalRisk = %d, want 100", got)
	}
}

func TestAddOverlappingBetsAccumulate(t *testing.T) {
	tbl := newTable()

	tbl.Add(wheel.KindRed, 0, 100) // red slots at 100
	tbl.Add(wheel.KindEven, 0, 50) // even slots +50; red-even slots at 150

	// 12 is red and even on the standard layout.
	if got := tbl.TotalRisk(); got != 150 {
		t.Errorf("TotalRisk = %d, want 150", got)
	}
}

func TestPreviewMatchesAddWithoutMutation(t *testing.T) {
	tbl := newTable()
	tbl.Add(wheel.KindRed, 0, 100)

	before := tbl.TotalRisk()
	preview := tbl.Preview(wheel.KindSingle, 19, 10) // 19 is red: 100 + 350 = 450
	if preview != 350 {
		t.Errorf("Preview = %d, want 350", preview)
	}
	if tbl.TotalRisk() != before {
		t.Error("Preview mutated the table")
	}

	added := tbl.Add(wheel.KindSingle, 19, 10)
	if added != preview {
		t.Errorf("Add delta %d != Preview delta %d", added, preview)
	}
}

func TestTotalRiskNeverDecreasesFromAdd(t *testing.T) {
	tbl := newTable()

	bets := []struct {
		kind   wheel.BetKind
		target int
		stake  int64
	}{
		{wheel.KindSingle, 0, 10},
		{wheel.KindRed, 0, 40},
		{wheel.KindDozen3, 0, 25},
		{wheel.KindBlack, 0, 40},
		{wheel.KindSingle, 37, 3},
		{wheel.KindColumn2, 0, 60},
	}
	prev := int64(0)
	for _, b := range bets {
		tbl.Add(b.kind, b.target, b.stake)
		if tbl.TotalRisk() < prev {
			t.Fatalf("TotalRisk decreased from %d to %d after %s", prev, tbl.TotalRisk(), b.kind)
		}
		prev = tbl.TotalRisk()
	}
}

// ============================================================
// Release and restore
// ============================================================

func TestReleaseRestoresPriorWorstCase(t *testing.T) {
	tbl := newTable()

	tbl.Add(wheel.KindRed, 0, 100)
	tbl.Add(wheel.KindSingle, 19, 10)
	if got := tbl.TotalRisk(); got != 450 {
		t.Fatalf("TotalRisk = %d, want 450", got)
	}

	freed := tbl.Release(wheel.KindSingle, 19, 10)
	if freed != 350 {
		t.Errorf("Release freed %d, want 350", freed)
	}
	if got := tbl.TotalRisk(); got != 100 {
		t.Errorf("TotalRisk after release = %d, want 100", got)
	}

	freed = tbl.Release(wheel.KindRed, 0, 100)
	if freed != 100 {
		t.Errorf("Release freed %d, want 100", freed)
	}
	if got := tbl.TotalRisk(); got != 0 {
		t.Errorf("TotalRisk after all releases = %d, want 0", got)
	}
}

func TestResetClearsEverything(t *testing.T) {
	tbl := newTable()
	tbl.Add(wheel.KindHigh, 0, 500)
	tbl.Reset()

	if got := tbl.TotalRisk(); got != 0 {
		t.Errorf("TotalRisk after Reset = %d, want 0", got)
	}
	for i, v := range tbl.Liabilities() {
		if v != 0 {
			t.Errorf("slot %d = %d after Reset, want 0", i, v)
		}
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	tbl := newTable()
	tbl.Add(wheel.KindRed, 0, 100)
	tbl.Add(wheel.KindSingle, 7, 20)

	snap := tbl.Liabilities()

	restored := newTable()
	if err := restored.Restore(snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored.TotalRisk() != tbl.TotalRisk() {
		t.Errorf("restored TotalRisk = %d, want %d", restored.TotalRisk(), tbl.TotalRisk())
	}

	euro := risk.NewTable(wheel.NewRules(wheel.EuropeanLayout()))
	if err := euro.Restore(snap); err == nil {
		t.Error("Restore should reject a snapshot sized for a different wheel")
	}
}

// ============================================================
// Params
// ============================================================

func TestValidateParams(t *testing.T) {
	if err := risk.ValidateParams(risk.DefaultParams()); err != nil {
		t.Errorf("default params invalid: %v", err)
	}

	bad := risk.DefaultParams()
	bad.ExposureCeilingPerGame = 0
	if err := risk.ValidateParams(bad); err == nil {
		t.Error("zero ceiling should be rejected")
	}

	bad = risk.DefaultParams()
	bad.ReleaseMode = 99
	if err := risk.ValidateParams(bad); err == nil {
		t.Error("unknown release mode should be rejected")
	}
}

func TestParseReleaseMode(t *testing.T) {
	m, err := risk.ParseReleaseMode("bulk")
	if err != nil || m != risk.ReleaseModeBulk {
		t.Errorf("ParseReleaseMode(bulk) = %v, %v", m, err)
	}
	if _, err := risk.ParseReleaseMode("lazy"); err == nil {
		t.Error("ParseReleaseMode(lazy) should fail")
	}
}
