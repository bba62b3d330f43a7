package wheel

import "fmt"

// BetKind enumerates the recognized wager categories.
type BetKind uint8

const (
	KindUnknown BetKind = iota
	KindSingle
	KindRed
	KindBlack
	KindEven
	KindOdd
	KindLow
	KindHigh
	KindDozen1
	KindDozen2
	KindDozen3
	KindColumn1
	KindColumn2
	KindColumn3
)

func (k BetKind) String() string {
	switch k {
	case KindSingle:
		return "single"
	case KindRed:
		return "red"
	case KindBlack:
		return "black"
	case KindEven:
		return "even"
	case KindOdd:
		return "odd"
	case KindLow:
		return "low"
	case KindHigh:
		return "high"
	case KindDozen1:
		return "dozen_1"
	case KindDozen2:
		return "dozen_2"
	case KindDozen3:
		return "dozen_3"
	case KindColumn1:
		return "column_1"
	case KindColumn2:
		return "column_2"
	case KindColumn3:
		return "column_3"
	default:
		return "unknown"
	}
}

// ParseBetKind converts the wire representation back to a BetKind.
func ParseBetKind(s string) (BetKind, error) {
	for k := KindSingle; k <= KindColumn3; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown bet kind %q", s)
}

// IsOutside reports whether the kind is an outside bet (covers a partition
// of 1..36 rather than one pocket).
func (k BetKind) IsOutside() bool {
	return k >= KindRed && k <= KindColumn3
}

// Rules evaluates bets against one layout. Stateless: payout and win
// decisions depend only on the arguments and the layout tables.
type Rules struct {
	layout *Layout
}

func NewRules(layout *Layout) *Rules {
	return &Rules{layout: layout}
}

// Layout returns the layout these rules evaluate against.
func (r *Rules) Layout() *Layout {
	return r.layout
}

// Multiplier returns the X in "X to 1" for a kind, or 0 for unknown kinds.
func (r *Rules) Multiplier(kind BetKind) int64 {
	switch kind {
	case KindSingle:
		return r.layout.Multipliers.Single
	case KindDozen1, KindDozen2, KindDozen3:
		return r.layout.Multipliers.Dozen
	case KindColumn1, KindColumn2, KindColumn3:
		return r.layout.Multipliers.Column
	case KindRed, KindBlack, KindEven, KindOdd, KindLow, KindHigh:
		return r.layout.Multipliers.EvenMoney
	default:
		return 0
	}
}

// Payout returns the total amount a winning bet collects: the escrowed stake
// plus multiplier times stake. Integer arithmetic; every call site must use
// this function so settlement and risk accounting never disagree.
func (r *Rules) Payout(stake int64, kind BetKind) int64 {
	return stake * (r.Multiplier(kind) + 1)
}

// Wins decides one bet against a drawn pocket. Single-pocket bets win only
// on an exact match. Edge pockets lose every outside bet. target is ignored
// for outside bets.
func (r *Rules) Wins(kind BetKind, target, outcome int) bool {
	if kind == KindSingle {
		return outcome == target
	}
	if r.layout.IsEdge(outcome) {
		return false
	}
	switch kind {
	case KindRed:
		return r.layout.IsRed(outcome)
	case KindBlack:
		return !r.layout.IsRed(outcome)
	case KindEven:
		return outcome%2 == 0
	case KindOdd:
		return outcome%2 == 1
	case KindLow:
		return outcome <= 18
	case KindHigh:
		return outcome >= 19
	case KindDozen1:
		return outcome <= 12
	case KindDozen2:
		return outcome >= 13 && outcome <= 24
	case KindDozen3:
		return outcome >= 25
	case KindColumn1:
		return outcome%3 == 1
	case KindColumn2:
		return outcome%3 == 2
	case KindColumn3:
		return outcome%3 == 0
	default:
		return false
	}
}

// ValidateBet rejects malformed bets at placement time so settlement never
// sees unvalidated data. target must be a wheel pocket for single-pocket
// bets and is ignored otherwise.
func (r *Rules) ValidateBet(kind BetKind, target int, stake, minimumStake int64) error {
	if kind == KindUnknown || kind > KindColumn3 {
		return fmt.Errorf("unknown bet kind %d", kind)
	}
	if kind == KindSingle && !r.layout.Contains(target) {
		return fmt.Errorf("target %d outside pockets 0..%d", target, r.layout.Pockets-1)
	}
	if stake <= 0 {
		return fmt.Errorf("stake must be positive, got %d", stake)
	}
	if stake < minimumStake {
		return fmt.Errorf("stake %d below minimum %d", stake, minimumStake)
	}
	return nil
}
