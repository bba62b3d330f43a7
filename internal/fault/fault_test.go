package fault_test

import (
	"errors"
	"fmt"
	"testing"

	"WagerHouse/internal/fault"
)

func TestKindOf(t *testing.T) {
	err := fault.Capacityf("engine.PlaceBet", "exposure %d exceeds ceiling %d", 1500, 1000)

	if got := fault.KindOf(err); got != fault.KindCapacity {
		t.Errorf("KindOf = %v, want %v", got, fault.KindCapacity)
	}
	if !fault.IsKind(err, fault.KindCapacity) {
		t.Error("IsKind(KindCapacity) = false, want true")
	}
	if fault.IsKind(err, fault.KindValidation) {
		t.Error("IsKind(KindValidation) = true, want false")
	}
}

func TestKindOfWrappedChain(t *testing.T) {
	inner := fault.Statef("engine.Settle", "game already completed")
	outer := fmt.Errorf("handle settle request: %w", inner)

	if got := fault.KindOf(outer); got != fault.KindState {
		t.Errorf("KindOf through wrap = %v, want %v", got, fault.KindState)
	}
}

func TestKindOfPlainError(t *testing.T) {
	if got := fault.KindOf(errors.New("plain")); got != fault.KindUnknown {
		t.Errorf("KindOf(plain) = %v, want %v", got, fault.KindUnknown)
	}
}

func TestProofPreservesSentinel(t *testing.T) {
	sentinel := errors.New("beacon: signature verification failed")
	err := fault.Proof("engine.Settle", sentinel)

	if !errors.Is(err, sentinel) {
		t.Error("wrapped proof error lost its sentinel")
	}
	if got := fault.KindOf(err); got != fault.KindExternalProof {
		t.Errorf("KindOf = %v, want %v", got, fault.KindExternalProof)
	}
}

func TestKindStrings(t *testing.T) {
	cases := []struct {
		kind fault.Kind
		want string
	}{
		{fault.KindValidation, "validation"},
		{fault.KindCapacity, "capacity"},
		{fault.KindState, "state"},
		{fault.KindExternalProof, "external_proof"},
		{fault.KindUnknown, "unknown"},
	}
	for _, tc := range cases {
		if got := tc.kind.String(); got != tc.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tc.kind, got, tc.want)
		}
	}
}
