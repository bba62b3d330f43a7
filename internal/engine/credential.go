package engine

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
)

// CredentialSize is the byte length of a house credential.
const CredentialSize = 32

// ErrCredentialMismatch is the sentinel inside every credential rejection,
// so transports can distinguish auth failures from other validation faults.
var ErrCredentialMismatch = errors.New("credential not recognized")

// Credential is the opaque token identifying the house. Possession is the
// only check: whoever presents the current credential is the administrator.
// The value never appears in logs, events, or snapshots.
type Credential [CredentialSize]byte

// NewCredential draws a fresh credential from the system entropy source.
func NewCredential() (Credential, error) {
	var c Credential
	if _, err := rand.Read(c[:]); err != nil {
		return Credential{}, fmt.Errorf("generate credential: %w", err)
	}
	return c, nil
}

// ParseCredential decodes the hex form presented by callers.
func ParseCredential(s string) (Credential, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Credential{}, fmt.Errorf("credential must be hex: %w", err)
	}
	if len(raw) != CredentialSize {
		return Credential{}, fmt.Errorf("credential must be %d bytes, got %d", CredentialSize, len(raw))
	}
	var c Credential
	copy(c[:], raw)
	return c, nil
}

// Equal compares credentials in constant time.
func (c Credential) Equal(other Credential) bool {
	return subtle.ConstantTimeCompare(c[:], other[:]) == 1
}

// Hex renders the credential for operator handoff. Callers must treat the
// result as a secret.
func (c Credential) Hex() string {
	return hex.EncodeToString(c[:])
}

// String masks the value so accidental formatting leaks nothing.
func (c Credential) String() string {
	return "credential(redacted)"
}
