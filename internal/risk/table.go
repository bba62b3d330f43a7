// Package risk tracks the worst-case payout the bankroll could owe across
// every possible pocket, incrementally per bet, so placement never rescans
// the open bet list.
package risk

import (
	"fmt"

	"WagerHouse/internal/wheel"
)

// Table is the dense per-pocket liability table for one game. Slot p holds
// the cumulative net liability (payout minus stake) owed if pocket p is
// drawn; max is the running worst case across all slots.
// Not thread-safe — only accessed under the engine mutex.
type Table struct {
	rules     *wheel.Rules
	liability []int64
	max       int64
}

// NewTable builds an empty table sized from the rules' layout.
func NewTable(rules *wheel.Rules) *Table {
	return &Table{
		rules:     rules,
		liability: make([]int64, rules.Layout().Pockets),
	}
}

// Preview returns the change in worst-case exposure that Add would cause,
// without mutating the table. Untouched slots cannot raise the maximum
// because added liability is never negative, so only winning slots are
// examined against the current max.
func (t *Table) Preview(kind wheel.BetKind, target int, stake int64) int64 {
	add := t.rules.Payout(stake, kind) - stake
	newMax := t.max
	for p := range t.liability {
		if t.rules.Wins(kind, target, p) {
			if v := t.liability[p] + add; v > newMax {
				newMax = v
			}
		}
	}
	return newMax - t.max
}

// Add commits one bet into the table and returns the change in worst-case
// exposure (possibly 0). The caller folds the delta into game- and
// bankroll-level counters.
func (t *Table) Add(kind wheel.BetKind, target int, stake int64) int64 {
	add := t.rules.Payout(stake, kind) - stake
	newMax := t.max
	for p := range t.liability {
		if t.rules.Wins(kind, target, p) {
			t.liability[p] += add
			if t.liability[p] > newMax {
				newMax = t.liability[p]
			}
		}
	}
	delta := newMax - t.max
	t.max = newMax
	return delta
}

// Release removes one bet's liability from the table and returns how much
// the worst case shrank (non-negative). Removal can lower the maximum, so
// the max is recomputed with a full scan. Only called in incremental
// release mode.
func (t *Table) Release(kind wheel.BetKind, target int, stake int64) int64 {
	sub := t.rules.Payout(stake, kind) - stake
	for p := range t.liability {
		if t.rules.Wins(kind, target, p) {
			t.liability[p] -= sub
		}
	}
	oldMax := t.max
	t.max = 0
	for _, v := range t.liability {
		if v > t.max {
			t.max = v
		}
	}
	return oldMax - t.max
}

// TotalRisk returns the current worst-case exposure. O(1).
func (t *Table) TotalRisk() int64 {
	return t.max
}

// Reset clears every slot. Used when a game completes or fully refunds.
func (t *Table) Reset() {
	for p := range t.liability {
		t.liability[p] = 0
	}
	t.max = 0
}

// Liabilities returns a copy of the per-slot table for snapshots.
func (t *Table) Liabilities() []int64 {
	out := make([]int64, len(t.liability))
	copy(out, t.liability)
	return out
}

// Restore overwrites the table from a snapshot copy.
func (t *Table) Restore(liabilities []int64) error {
	if len(liabilities) != len(t.liability) {
		return fmt.Errorf("liability snapshot has %d slots, table has %d",
			len(liabilities), len(t.liability))
	}
	copy(t.liability, liabilities)
	t.max = 0
	for _, v := range t.liability {
		if v > t.max {
			t.max = v
		}
	}
	return nil
}
