package query

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// genesisHashSeed matches the engine's chain root so integrity checks can
// verify the log from sequence zero without touching engine state.
const genesisHashSeed = "WagerHouse:genesis:v1"

// Service provides read-only access to the projection tables and the
// event log. Every response carries as_of_sequence so callers can reason
// about freshness against the engine's live sequence.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// GetBalance returns a bettor's wallet and escrow balances.
func (qs *Service) GetBalance(ctx context.Context, bettorID uuid.UUID) (*BalanceResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	wallet, err := qs.projectedBalance(ctx, fmt.Sprintf("bettor:%s:wallet", bettorID))
	if err != nil {
		return nil, err
	}
	escrow, err := qs.projectedBalance(ctx, fmt.Sprintf("bettor:%s:escrow", bettorID))
	if err != nil {
		return nil, err
	}

	return &BalanceResponse{
		BettorID:      bettorID,
		WalletBalance: wallet,
		EscrowBalance: escrow,
		TotalBalance:  wallet + escrow,
		AsOfSequence:  asOfSeq,
	}, nil
}

// GetBetHistory returns a bettor's bets, newest first, with cursor-based
// pagination on last_sequence.
func (qs *Service) GetBetHistory(
	ctx context.Context,
	bettorID uuid.UUID,
	gameID *uuid.UUID,
	limit int,
	afterSequence *int64,
) ([]BetHistoryEntry, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	q := `
		SELECT bet_id, game_id, kind, target, stake, status, payout,
		       placed_at, settled_at, last_sequence
		FROM projections.bets
		WHERE bettor_id = $1
	`
	args := []interface{}{bettorID}
	argIdx := 2

	if gameID != nil {
		q += fmt.Sprintf(" AND game_id = $%d", argIdx)
		args = append(args, *gameID)
		argIdx++
	}
	if afterSequence != nil {
		q += fmt.Sprintf(" AND last_sequence < $%d", argIdx)
		args = append(args, *afterSequence)
		argIdx++
	}

	q += " ORDER BY last_sequence DESC"
	q += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []BetHistoryEntry
	for rows.Next() {
		var e BetHistoryEntry
		e.AsOfSequence = asOfSeq
		if err := rows.Scan(
			&e.BetID, &e.GameID, &e.Kind, &e.Target, &e.Stake, &e.Status,
			&e.Payout, &e.PlacedAt, &e.SettledAt, &e.LastSequence,
		); err != nil {
			return nil, err
		}
		history = append(history, e)
	}

	return history, rows.Err()
}

// GetGame returns one game summary, or nil when unknown.
func (qs *Service) GetGame(ctx context.Context, gameID uuid.UUID) (*GameSummary, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	var g GameSummary
	g.AsOfSequence = asOfSeq
	err = qs.db.QueryRowContext(ctx, `
		SELECT game_id, round, status, outcome, minimum_stake, total_bets,
		       settled_count, committed_risk, paid_out, swept, created_at, updated_at
		FROM projections.games
		WHERE game_id = $1
	`, gameID).Scan(
		&g.GameID, &g.Round, &g.Status, &g.Outcome, &g.MinimumStake, &g.TotalBets,
		&g.SettledCount, &g.CommittedRisk, &g.PaidOut, &g.Swept, &g.CreatedAt, &g.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// ListGames returns games newest first, optionally filtered by status.
func (qs *Service) ListGames(ctx context.Context, status *string, limit int) ([]GameSummary, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	q := `
		SELECT game_id, round, status, outcome, minimum_stake, total_bets,
		       settled_count, committed_risk, paid_out, swept, created_at, updated_at
		FROM projections.games
	`
	args := []interface{}{}
	if status != nil {
		q += " WHERE status = $1"
		args = append(args, *status)
	}
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []GameSummary
	for rows.Next() {
		var g GameSummary
		g.AsOfSequence = asOfSeq
		if err := rows.Scan(
			&g.GameID, &g.Round, &g.Status, &g.Outcome, &g.MinimumStake, &g.TotalBets,
			&g.SettledCount, &g.CommittedRisk, &g.PaidOut, &g.Swept, &g.CreatedAt, &g.UpdatedAt,
		); err != nil {
			return nil, err
		}
		games = append(games, g)
	}

	return games, rows.Err()
}

// GetHouseSummary aggregates bankroll, escrow, wallet totals and live game
// counts from the projections.
func (qs *Service) GetHouseSummary(ctx context.Context) (*HouseSummary, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	summary := &HouseSummary{AsOfSequence: asOfSeq}

	summary.Bankroll, err = qs.projectedBalance(ctx, "house:bankroll")
	if err != nil {
		return nil, err
	}

	err = qs.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(balance) FILTER (WHERE account_path LIKE 'bettor:%:escrow'), 0),
			COALESCE(SUM(balance) FILTER (WHERE account_path LIKE 'bettor:%:wallet'), 0)
		FROM projections.balances
	`).Scan(&summary.TotalEscrow, &summary.TotalWallets)
	if err != nil {
		return nil, err
	}

	err = qs.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'open'),
			COUNT(*) FILTER (WHERE status IN ('closed', 'settling'))
		FROM projections.games
	`).Scan(&summary.OpenGames, &summary.LiveGames)
	if err != nil {
		return nil, err
	}

	return summary, nil
}

// GetJournalHistory returns journal lines touching a bettor's accounts,
// newest first, with cursor-based pagination on sequence.
func (qs *Service) GetJournalHistory(
	ctx context.Context,
	bettorID uuid.UUID,
	limit int,
	afterSequence *int64,
) ([]JournalHistoryEntry, error) {
	accountPrefix := fmt.Sprintf("bettor:%s:%%", bettorID)

	q := `
		SELECT journal_id, batch_id, event_ref, sequence,
		       debit_account, credit_account, amount, journal_type, timestamp
		FROM event_log.journal
		WHERE (debit_account LIKE $1 OR credit_account LIKE $1)
	`
	args := []interface{}{accountPrefix}
	argIdx := 2

	if afterSequence != nil {
		q += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *afterSequence)
		argIdx++
	}

	// Lines from one event share a sequence; journal_id breaks the tie
	// deterministically.
	q += " ORDER BY sequence DESC, journal_id"
	q += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []JournalHistoryEntry
	for rows.Next() {
		var e JournalHistoryEntry
		if err := rows.Scan(
			&e.JournalID, &e.BatchID, &e.EventRef, &e.Sequence,
			&e.DebitAccount, &e.CreditAccount, &e.Amount, &e.JournalType, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// VerifyIntegrity rewalks the full event log: every prev_hash must equal
// the prior state_hash, and every state_hash must recompute from
// SHA-256(prev_hash || sequence || state_digest) starting at the genesis
// root. Also checks the global zero-sum invariant over projected balances.
func (qs *Service) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{}

	prevTip := sha256.Sum256([]byte(genesisHashSeed))
	const pageSize = 1000
	from := int64(0)

	for {
		rows, err := qs.db.QueryContext(ctx, `
			SELECT sequence, state_hash, prev_hash, state_digest
			FROM event_log.events
			WHERE sequence >= $1
			ORDER BY sequence ASC
			LIMIT $2
		`, from, pageSize)
		if err != nil {
			return nil, err
		}

		var fetched int
		for rows.Next() {
			var (
				seq                         int64
				stateHash, prevHash, digest []byte
			)
			if err := rows.Scan(&seq, &stateHash, &prevHash, &digest); err != nil {
				rows.Close()
				return nil, err
			}
			fetched++

			if !bytes.Equal(prevHash, prevTip[:]) {
				report.ChainBreaks = appendCapped(report.ChainBreaks, seq)
			}

			recomputed := recomputeStateHash(prevTip, seq, digest)
			if !bytes.Equal(stateHash, recomputed[:]) {
				report.HashMismatches = appendCapped(report.HashMismatches, seq)
			}

			copy(prevTip[:], stateHash)
			report.EventsChecked++
			report.LastSequence = seq
			from = seq + 1
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()

		if fetched < pageSize {
			break
		}
	}

	err := qs.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(balance), 0) FROM projections.balances
	`).Scan(&report.GlobalImbalance)
	if err != nil {
		return nil, err
	}

	report.IsHealthy = len(report.ChainBreaks) == 0 &&
		len(report.HashMismatches) == 0 &&
		report.GlobalImbalance == 0
	return report, nil
}

// --- helpers ---

func (qs *Service) getWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := qs.db.QueryRowContext(ctx, `
		SELECT COALESCE(last_sequence, 0) FROM projections.watermark WHERE worker_id = 'main'
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}

func (qs *Service) projectedBalance(ctx context.Context, accountPath string) (int64, error) {
	var balance int64
	err := qs.db.QueryRowContext(ctx, `
		SELECT COALESCE(balance, 0) FROM projections.balances
		WHERE account_path = $1
	`, accountPath).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return balance, err
}

func recomputeStateHash(prev [32]byte, sequence int64, digest []byte) [32]byte {
	h := sha256.New()
	h.Write(prev[:])
	var seqBuf [8]byte
	binary.LittleEndian.PutUint64(seqBuf[:], uint64(sequence))
	h.Write(seqBuf[:])
	h.Write(digest)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// appendCapped bounds the break lists so a corrupted log cannot balloon
// the report.
func appendCapped(list []int64, seq int64) []int64 {
	if len(list) >= 10 {
		return list
	}
	return append(list, seq)
}
