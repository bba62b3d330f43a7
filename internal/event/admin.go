package event

import "github.com/google/uuid"

// ExposureCeilingSet records a change to the per-game worst-case limit.
// Idempotency key: request_id.
type ExposureCeilingSet struct {
	RequestID uuid.UUID `json:"request_id"`
	Ceiling   int64     `json:"ceiling"`
	Previous  int64     `json:"previous"`
}

func (e *ExposureCeilingSet) IdempotencyKey() string {
	return e.RequestID.String()
}

func (e *ExposureCeilingSet) EventType() EventType {
	return EventTypeExposureCeilingSet
}

func (e *ExposureCeilingSet) GameID() *string {
	return nil
}

func (e *ExposureCeilingSet) Round() uint64 {
	return 0
}

// CredentialRotated records a house credential rotation. The credential
// itself never appears in any event or log line.
// Idempotency key: request_id.
type CredentialRotated struct {
	RequestID uuid.UUID `json:"request_id"`
	RotatedAt int64     `json:"rotated_at"`
}

func (e *CredentialRotated) IdempotencyKey() string {
	return e.RequestID.String()
}

func (e *CredentialRotated) EventType() EventType {
	return EventTypeCredentialRotated
}

func (e *CredentialRotated) GameID() *string {
	return nil
}

func (e *CredentialRotated) Round() uint64 {
	return 0
}
