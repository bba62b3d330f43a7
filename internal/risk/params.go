package risk

import "fmt"

// ReleaseMode selects how per-slot liability behaves when bets are refunded.
type ReleaseMode uint8

const (
	// ReleaseModeIncremental symmetrically decrements per-slot liability on
	// every refunded bet and recomputes the maximum.
	ReleaseModeIncremental ReleaseMode = iota + 1
	// ReleaseModeBulk leaves per-slot liability elevated after individual
	// refunds; the table resets and committed exposure releases only once
	// the game's bet list is empty. A partly refunded game therefore keeps
	// the ceiling occupied until its last bet is popped.
	ReleaseModeBulk
)

func (m ReleaseMode) String() string {
	switch m {
	case ReleaseModeIncremental:
		return "incremental"
	case ReleaseModeBulk:
		return "bulk"
	default:
		return "unknown"
	}
}

// ParseReleaseMode converts a config string to a ReleaseMode.
func ParseReleaseMode(s string) (ReleaseMode, error) {
	switch s {
	case "incremental":
		return ReleaseModeIncremental, nil
	case "bulk":
		return ReleaseModeBulk, nil
	default:
		return 0, fmt.Errorf("unknown release mode %q (want incremental or bulk)", s)
	}
}

// Params are the house-level risk controls.
type Params struct {
	// ExposureCeilingPerGame caps any single game's worst-case exposure.
	ExposureCeilingPerGame int64
	// DefaultMinimumStake seeds new games that do not set their own minimum.
	DefaultMinimumStake int64
	// ReleaseMode controls refund behavior, see the mode docs above.
	ReleaseMode ReleaseMode
}

// DefaultParams returns conservative starting values.
func DefaultParams() Params {
	return Params{
		ExposureCeilingPerGame: 1_000_000,
		DefaultMinimumStake:    1,
		ReleaseMode:            ReleaseModeIncremental,
	}
}

// ValidateParams rejects unusable parameter sets.
func ValidateParams(p Params) error {
	if p.ExposureCeilingPerGame <= 0 {
		return fmt.Errorf("exposure ceiling must be > 0, got %d", p.ExposureCeilingPerGame)
	}
	if p.DefaultMinimumStake <= 0 {
		return fmt.Errorf("default minimum stake must be > 0, got %d", p.DefaultMinimumStake)
	}
	if p.ReleaseMode != ReleaseModeIncremental && p.ReleaseMode != ReleaseModeBulk {
		return fmt.Errorf("unknown release mode %d", p.ReleaseMode)
	}
	return nil
}
