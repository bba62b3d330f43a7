package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"WagerHouse/internal/bank"
	"WagerHouse/internal/game"
)

// Snapshot format versions stored in event_log.snapshots.format_version.
const (
	snapshotFormatJSON = int32(1) // plain JSON
	snapshotFormatZstd = int32(2) // zstd-compressed JSON
)

// SnapshotManager saves and loads full-state snapshots. A snapshot is the
// recovery source: restart loads the latest verified snapshot and resumes,
// with the event log kept for audit and integrity checks.
type SnapshotManager struct {
	db      *sql.DB
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// SnapshotData is the serialized engine state at a point in time. It
// reuses the bank and game snapshot DTOs directly rather than mirroring
// them; they exist for exactly this purpose.
type SnapshotData struct {
	Sequence          int64                  `json:"sequence"`
	LedgerSequence    int64                  `json:"ledger_sequence"`
	StateHash         []byte                 `json:"state_hash"`
	ExposureCeiling   int64                  `json:"exposure_ceiling"`
	CommittedExposure int64                  `json:"committed_exposure"`
	Balances          []bank.BalanceSnapshot `json:"balances"`
	Games             []game.GameSnapshot    `json:"games"`
	IdempotencyKeys   []string               `json:"idempotency_keys"` // recent keys for LRU warming
	CreatedAt         time.Time              `json:"created_at"`
}

func NewSnapshotManager(db *sql.DB) (*SnapshotManager, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &SnapshotManager{db: db, encoder: encoder, decoder: decoder}, nil
}

// SaveSnapshot persists a snapshot as unverified. The caller verifies it
// (load back, rehash, compare) and then calls MarkVerified; restart only
// ever trusts verified snapshots.
func (sm *SnapshotManager) SaveSnapshot(ctx context.Context, snap *SnapshotData) (int, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return 0, fmt.Errorf("marshal snapshot: %w", err)
	}
	compressed := sm.encoder.EncodeAll(data, nil)

	snapshotID := uuid.New()
	sizeBytes := len(compressed)

	_, err = sm.db.ExecContext(ctx, `
		INSERT INTO event_log.snapshots
			(snapshot_id, sequence, data, state_hash, format_version, size_bytes, verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)
		ON CONFLICT (sequence) DO UPDATE SET data = $3, state_hash = $4, size_bytes = $6, verified = FALSE
	`, snapshotID, snap.Sequence, compressed, snap.StateHash, snapshotFormatZstd, sizeBytes, snap.CreatedAt)

	return sizeBytes, err
}

// LoadLatestSnapshot loads the most recent verified snapshot. Returns
// (nil, nil) when no verified snapshot exists, which means a cold start.
func (sm *SnapshotManager) LoadLatestSnapshot(ctx context.Context) (*SnapshotData, error) {
	row := sm.db.QueryRowContext(ctx, `
		SELECT data, format_version FROM event_log.snapshots
		WHERE verified = TRUE
		ORDER BY sequence DESC
		LIMIT 1
	`)

	var (
		data          []byte
		formatVersion int32
	)
	if err := row.Scan(&data, &formatVersion); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	switch formatVersion {
	case snapshotFormatJSON:
		// v1 rows predate compression; read as-is.
	case snapshotFormatZstd:
		decompressed, err := sm.decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress snapshot: %w", err)
		}
		data = decompressed
	default:
		return nil, fmt.Errorf("unknown snapshot format version %d", formatVersion)
	}

	var snap SnapshotData
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return &snap, nil
}

// LoadSnapshotAt loads the snapshot stored at an exact sequence regardless
// of verification state. Used by the snapshot loop to verify what it just
// wrote.
func (sm *SnapshotManager) LoadSnapshotAt(ctx context.Context, sequence int64) (*SnapshotData, error) {
	row := sm.db.QueryRowContext(ctx, `
		SELECT data, format_version FROM event_log.snapshots
		WHERE sequence = $1
	`, sequence)

	var (
		data          []byte
		formatVersion int32
	)
	if err := row.Scan(&data, &formatVersion); err != nil {
		return nil, fmt.Errorf("load snapshot at %d: %w", sequence, err)
	}

	if formatVersion == snapshotFormatZstd {
		decompressed, err := sm.decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress snapshot: %w", err)
		}
		data = decompressed
	}

	var snap SnapshotData
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// MarkVerified marks a snapshot as trusted for recovery.
func (sm *SnapshotManager) MarkVerified(ctx context.Context, sequence int64) error {
	_, err := sm.db.ExecContext(ctx, `
		UPDATE event_log.snapshots SET verified = TRUE WHERE sequence = $1
	`, sequence)
	return err
}

// LoadEventsFrom loads events at or after fromSequence, oldest first.
// Used to report how far the event log runs past the latest snapshot and
// by the integrity checker to rewalk the hash chain.
func (sm *SnapshotManager) LoadEventsFrom(ctx context.Context, fromSequence int64, limit int) ([]EventRow, error) {
	rows, err := sm.db.QueryContext(ctx, `
		SELECT sequence, event_type, idempotency_key, game_id, round, payload,
		       state_hash, prev_hash, state_digest, timestamp
		FROM event_log.events
		WHERE sequence >= $1
		ORDER BY sequence ASC
		LIMIT $2
	`, fromSequence, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRow
	for rows.Next() {
		var e EventRow
		if err := rows.Scan(
			&e.Sequence, &e.EventType, &e.IdempotencyKey, &e.GameID, &e.Round,
			&e.Payload, &e.StateHash, &e.PrevHash, &e.StateDigest, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// GetLatestSequence returns the highest sequence in the event log, or 0
// when the log is empty.
func (sm *SnapshotManager) GetLatestSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := sm.db.QueryRowContext(ctx, `
		SELECT MAX(sequence) FROM event_log.events
	`).Scan(&seq)
	if err != nil {
		return 0, err
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}
