package feed_test

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"testing"

	"WagerHouse/internal/beacon"
	"WagerHouse/internal/feed"
)

func testChain(t *testing.T) []beacon.Proof {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	copy(seed, []byte("feed-parser-chain"))
	priv := ed25519.NewKeyFromSeed(seed)
	signer, err := beacon.NewSigner(priv)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}

	prev := beacon.GenesisSeed("feed-parser-chain")
	proofs := make([]beacon.Proof, 0, 8)
	for round := uint64(1); round <= 8; round++ {
		p := signer.Sign(round, prev)
		proofs = append(proofs, p)
		prev = p.Signature
	}
	return proofs
}

func TestParseRoundMessage_RoundTrips(t *testing.T) {
	proofs := testChain(t)
	p := proofs[4]

	data, err := feed.EncodeRoundMessage(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	parsed, err := feed.ParseRoundMessage(data)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if parsed.Round != p.Round {
		t.Errorf("round: got %d, want %d", parsed.Round, p.Round)
	}
	if hex.EncodeToString(parsed.Signature) != hex.EncodeToString(p.Signature) {
		t.Error("signature did not survive the round trip")
	}
	if hex.EncodeToString(parsed.PreviousSignature) != hex.EncodeToString(p.PreviousSignature) {
		t.Error("previous signature did not survive the round trip")
	}
}

func TestParseRoundMessage_ParsedProofVerifies(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	copy(seed, []byte("feed-parser-chain"))
	priv := ed25519.NewKeyFromSeed(seed)
	verifier, err := beacon.NewVerifier(priv.Public().(ed25519.PublicKey))
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}

	proofs := testChain(t)
	data, err := feed.EncodeRoundMessage(proofs[2])
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	parsed, err := feed.ParseRoundMessage(data)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if _, err := verifier.VerifyRound(parsed, 3); err != nil {
		t.Fatalf("parsed proof failed verification: %v", err)
	}
}

func TestParseRoundMessage_RejectsMalformed(t *testing.T) {
	proofs := testChain(t)
	validSig := hex.EncodeToString(proofs[0].Signature)
	validPrev := hex.EncodeToString(proofs[0].PreviousSignature)

	cases := []struct {
		name string
		data []byte
	}{
		{"invalid json", []byte(`{invalid json`)},
		{"round zero", mustJSON(t, map[string]interface{}{
			"round": 0, "signature": validSig, "previous_signature": validPrev,
		})},
		{"non-hex signature", mustJSON(t, map[string]interface{}{
			"round": 1, "signature": "zz", "previous_signature": validPrev,
		})},
		{"short signature", mustJSON(t, map[string]interface{}{
			"round": 1, "signature": "deadbeef", "previous_signature": validPrev,
		})},
		{"missing previous signature", mustJSON(t, map[string]interface{}{
			"round": 1, "signature": validSig, "previous_signature": "",
		})},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := feed.ParseRoundMessage(tc.data); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func TestRoundTracker_ClassifiesRounds(t *testing.T) {
	rt := feed.NewRoundTracker()

	// Nothing seen yet: everything processes.
	if reason := rt.Check(5); reason != "" {
		t.Errorf("first round: got %q, want accept", reason)
	}
	rt.MarkProcessed(5)

	if reason := rt.Check(5); reason != "duplicate" {
		t.Errorf("same round: got %q, want duplicate", reason)
	}
	if reason := rt.Check(3); reason != "stale" {
		t.Errorf("older round: got %q, want stale", reason)
	}
	// Gaps are fine, rounds without games are common.
	if reason := rt.Check(9); reason != "" {
		t.Errorf("newer round with gap: got %q, want accept", reason)
	}

	rt.MarkProcessed(9)
	last, seen := rt.LastRound()
	if !seen || last != 9 {
		t.Errorf("last round: got (%d, %v), want (9, true)", last, seen)
	}
}
