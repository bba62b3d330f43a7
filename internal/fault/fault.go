// Package fault classifies engine rejections into the four kinds callers
// can act on: validation, capacity, state, and external-proof failures.
// Every mutating operation rejects synchronously with exactly one kind and
// mutates nothing on the rejected path.
package fault

import (
	"errors"
	"fmt"
)

// Kind is the rejection class of an engine error.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindValidation covers malformed input: bad bet kind, out-of-range
	// target, stake below minimum, wrong credential, insufficient wallet
	// balance, duplicate request ids.
	KindValidation
	// KindCapacity covers economic rejection: the bankroll cannot cover the
	// added exposure, or the per-game ceiling would be breached.
	KindCapacity
	// KindState covers operations invalid for the current game status.
	KindState
	// KindExternalProof covers randomness proofs that fail verification or
	// target the wrong beacon round.
	KindExternalProof
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindCapacity:
		return "capacity"
	case KindState:
		return "state"
	case KindExternalProof:
		return "external_proof"
	default:
		return "unknown"
	}
}

// Error is a classified rejection. Op names the rejecting operation,
// e.g. "engine.PlaceBet".
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validationf builds a validation rejection.
func Validationf(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Op: op, Err: fmt.Errorf(format, args...)}
}

// Capacityf builds a capacity rejection.
func Capacityf(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindCapacity, Op: op, Err: fmt.Errorf(format, args...)}
}

// Statef builds a state rejection.
func Statef(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindState, Op: op, Err: fmt.Errorf(format, args...)}
}

// Proof wraps a beacon verification failure, preserving the underlying
// sentinel so callers can still distinguish bad-proof from wrong-round.
func Proof(op string, err error) *Error {
	return &Error{Kind: KindExternalProof, Op: op, Err: err}
}

// Wrap attaches a kind and operation to an existing error.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the kind from an error chain, or KindUnknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// IsKind reports whether any error in the chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
