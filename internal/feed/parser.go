// Package feed is the NATS edge of the house: an outbound JetStream
// publisher for observer events and an inbound beacon-round subscriber
// that drives settlement for games whose draw round has been published.
package feed

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"WagerHouse/internal/beacon"
)

// roundMessageJSON is the beacon round wire format. Signatures are
// hex-encoded, matching the beacon's HTTP API.
type roundMessageJSON struct {
	Round             uint64 `json:"round"`
	Signature         string `json:"signature"`
	PreviousSignature string `json:"previous_signature"`
}

// ParseRoundMessage converts beacon-round JSON into a verifiable proof.
// Only shape is checked here; signature verification happens in the
// engine against the chain's public key.
func ParseRoundMessage(data []byte) (beacon.Proof, error) {
	var j roundMessageJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return beacon.Proof{}, fmt.Errorf("parse round message: %w", err)
	}

	if j.Round == 0 {
		return beacon.Proof{}, fmt.Errorf("round numbers start at 1")
	}

	signature, err := hex.DecodeString(j.Signature)
	if err != nil {
		return beacon.Proof{}, fmt.Errorf("decode signature: %w", err)
	}
	if len(signature) != ed25519.SignatureSize {
		return beacon.Proof{}, fmt.Errorf("signature must be %d bytes, got %d", ed25519.SignatureSize, len(signature))
	}

	previous, err := hex.DecodeString(j.PreviousSignature)
	if err != nil {
		return beacon.Proof{}, fmt.Errorf("decode previous signature: %w", err)
	}
	if len(previous) == 0 {
		return beacon.Proof{}, fmt.Errorf("previous signature is required")
	}

	return beacon.Proof{
		Round:             j.Round,
		Signature:         signature,
		PreviousSignature: previous,
	}, nil
}

// EncodeRoundMessage renders a proof in the beacon wire format. Used by
// tests and local tooling that simulate the beacon.
func EncodeRoundMessage(p beacon.Proof) ([]byte, error) {
	return json.Marshal(roundMessageJSON{
		Round:             p.Round,
		Signature:         hex.EncodeToString(p.Signature),
		PreviousSignature: hex.EncodeToString(p.PreviousSignature),
	})
}
