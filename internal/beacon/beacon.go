// Package beacon verifies randomness proofs from an external signature
// chain. Each round carries a signature over the previous round's signature,
// so a proof is unpredictable before the beacon publishes it and checkable
// by anyone holding the chain's public key.
package beacon

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrInvalidProof marks a signature that fails verification.
	ErrInvalidProof = errors.New("beacon proof failed verification")
	// ErrWrongRound marks a proof targeting a different round than
	// expected. Retrying with the correct round's proof is safe.
	ErrWrongRound = errors.New("beacon proof targets wrong round")
)

// Proof is one published beacon round.
type Proof struct {
	Round             uint64
	Signature         []byte
	PreviousSignature []byte
}

// Entropy is the 32 verified random bytes extracted from a proof.
type Entropy [32]byte

// RoundMessage is the digest a beacon signs for a round: the previous
// round's signature chained with the big-endian round number.
func RoundMessage(round uint64, previousSignature []byte) [32]byte {
	h := sha256.New()
	h.Write(previousSignature)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], round)
	h.Write(buf[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// GenesisSeed derives the chain's round-zero signature stand-in from its
// name. Round 1 signs over this value.
func GenesisSeed(chainName string) []byte {
	sum := sha256.Sum256([]byte(chainName))
	return sum[:]
}

// Verifier checks proofs against one beacon chain's public key.
type Verifier struct {
	publicKey ed25519.PublicKey
}

func NewVerifier(publicKey ed25519.PublicKey) (*Verifier, error) {
	if len(publicKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("beacon public key must be %d bytes, got %d", ed25519.PublicKeySize, len(publicKey))
	}
	return &Verifier{publicKey: publicKey}, nil
}

// VerifyRound checks that the proof targets the expected round and carries
// a valid chain signature, then extracts its entropy. The two failure modes
// stay distinguishable so callers can retry a wrong-round submission.
func (v *Verifier) VerifyRound(p Proof, expectedRound uint64) (Entropy, error) {
	if p.Round != expectedRound {
		return Entropy{}, fmt.Errorf("%w: got round %d, want %d", ErrWrongRound, p.Round, expectedRound)
	}
	return v.Verify(p)
}

// Verify checks the chain signature for the proof's own round and extracts
// its entropy.
func (v *Verifier) Verify(p Proof) (Entropy, error) {
	if p.Round == 0 {
		return Entropy{}, fmt.Errorf("%w: round numbers start at 1", ErrInvalidProof)
	}
	if len(p.Signature) != ed25519.SignatureSize {
		return Entropy{}, fmt.Errorf("%w: signature must be %d bytes, got %d", ErrInvalidProof, ed25519.SignatureSize, len(p.Signature))
	}
	message := RoundMessage(p.Round, p.PreviousSignature)
	if !ed25519.Verify(v.publicKey, message[:], p.Signature) {
		return Entropy{}, fmt.Errorf("%w: round %d", ErrInvalidProof, p.Round)
	}
	return ExtractEntropy(p), nil
}

// ExtractEntropy hashes the signature into the round's random bytes. The
// signature, not the message, carries the unpredictability.
func ExtractEntropy(p Proof) Entropy {
	return Entropy(sha256.Sum256(p.Signature))
}

// Signer produces chain proofs. Production rounds come from the external
// beacon; the signer backs local development and tests.
type Signer struct {
	privateKey ed25519.PrivateKey
}

func NewSigner(privateKey ed25519.PrivateKey) (*Signer, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("beacon private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(privateKey))
	}
	return &Signer{privateKey: privateKey}, nil
}

// Sign produces the proof for a round given the previous round's signature.
func (s *Signer) Sign(round uint64, previousSignature []byte) Proof {
	message := RoundMessage(round, previousSignature)
	return Proof{
		Round:             round,
		Signature:         ed25519.Sign(s.privateKey, message[:]),
		PreviousSignature: previousSignature,
	}
}
