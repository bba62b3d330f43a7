package projection

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"WagerHouse/internal/bank"
	"WagerHouse/internal/event"
	"WagerHouse/internal/observability"
)

// Output mirrors the slice of engine output the projections consume. The
// orchestrator bridges from engine.Output through OutputFromEnvelope so
// this package never imports the engine.
type Output struct {
	Sequence  int64
	EventType string
	GameID    *string
	Round     uint64
	Payload   []byte
	Journals  []JournalEntry
	Timestamp time.Time
}

// JournalEntry carries the account movement a journal line encodes.
type JournalEntry struct {
	DebitAccount  string
	CreditAccount string
	Amount        int64
	JournalType   int32
}

// OutputFromEnvelope converts one applied event with its journal batches
// into the slice the projections consume.
func OutputFromEnvelope(env *event.Envelope, batches []*bank.Batch) Output {
	out := Output{
		Sequence:  env.Sequence,
		EventType: env.EventType.String(),
		GameID:    env.GameID,
		Round:     env.Round,
		Payload:   env.Payload,
		Timestamp: env.Timestamp,
	}
	for _, b := range batches {
		for _, j := range b.Journals {
			out.Journals = append(out.Journals, JournalEntry{
				DebitAccount:  j.DebitAccount.Path(),
				CreditAccount: j.CreditAccount.Path(),
				Amount:        j.Amount,
				JournalType:   int32(j.JournalType),
			})
		}
	}
	return out
}

// Worker updates the query-side tables from applied events. Its channel is
// non-blocking with drop on the engine side, so the tables lag under load;
// RebuildProjections recovers them from the event log.
type Worker struct {
	db        *sql.DB
	inputChan <-chan Output
	metrics   *observability.Metrics
	history   *OutcomeHistory
	lastSeq   int64
}

func NewWorker(db *sql.DB, inputChan <-chan Output, history *OutcomeHistory, metrics *observability.Metrics) *Worker {
	return &Worker{
		db:        db,
		inputChan: inputChan,
		metrics:   metrics,
		history:   history,
	}
}

// Run drains the projection channel until ctx is cancelled or the channel
// closes. A failed update is logged and skipped; the tables stay eventually
// consistent and the event log remains the source of truth.
func (pw *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case output, ok := <-pw.inputChan:
			if !ok {
				return nil
			}

			start := time.Now()
			if err := pw.apply(ctx, output); err != nil {
				log.Printf("WARN: projection update failed at seq=%d type=%s: %v",
					output.Sequence, output.EventType, err)
			} else {
				pw.lastSeq = output.Sequence
				if pw.metrics != nil {
					pw.metrics.ProjectionUpdateDur.WithLabelValues(output.EventType).
						Observe(time.Since(start).Seconds())
					pw.metrics.ProjectionLastSequence.Set(float64(output.Sequence))
				}
			}
		}
	}
}

// LastSequence returns the watermark of the most recent applied output.
func (pw *Worker) LastSequence() int64 {
	return pw.lastSeq
}

func (pw *Worker) apply(ctx context.Context, output Output) error {
	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := applyEvent(ctx, tx, output.Sequence, output.EventType, output.Payload, output.Timestamp); err != nil {
		return err
	}

	for _, j := range output.Journals {
		if err := applyJournal(ctx, tx, output.Sequence, j.DebitAccount, j.CreditAccount, j.Amount); err != nil {
			return fmt.Errorf("balance projection: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		VALUES ('main', $1, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $1, updated_at = NOW()
	`, output.Sequence); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	if pw.history != nil && output.EventType == "GameCompleted" {
		var e event.GameCompleted
		if err := json.Unmarshal(output.Payload, &e); err == nil {
			pw.history.Add(OutcomeEntry{
				GameID:      e.GameRef,
				Round:       e.BeaconRound,
				Outcome:     e.Outcome,
				TotalBets:   e.TotalBets,
				PaidOut:     e.TotalPaidOut,
				Swept:       e.TotalSwept,
				CompletedAt: output.Timestamp,
			})
		}
	}

	return nil
}

// applyEvent routes one event into the bets and games tables. Shared by
// the live worker and the rebuild path so both produce identical rows.
func applyEvent(ctx context.Context, tx *sql.Tx, seq int64, eventType string, payload []byte, ts time.Time) error {
	switch eventType {
	case "GameCreated":
		var e event.GameCreated
		if err := json.Unmarshal(payload, &e); err != nil {
			return fmt.Errorf("decode GameCreated: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projections.games
				(game_id, round, status, minimum_stake, total_bets, settled_count,
				 committed_risk, paid_out, swept, created_at, updated_at, last_sequence)
			VALUES ($1, $2, 'open', $3, 0, 0, 0, 0, 0, $4, $4, $5)
			ON CONFLICT (game_id) DO NOTHING
		`, e.GameRef, int64(e.BeaconRound), e.MinimumStake, ts, seq)
		return err

	case "BetPlaced":
		var e event.BetPlaced
		if err := json.Unmarshal(payload, &e); err != nil {
			return fmt.Errorf("decode BetPlaced: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projections.bets
				(bet_id, game_id, bettor_id, kind, target, stake, status, payout,
				 placed_at, last_sequence)
			VALUES ($1, $2, $3, $4, $5, $6, 'placed', 0, $7, $8)
			ON CONFLICT (bet_id) DO NOTHING
		`, e.BetID, e.GameRef, e.Bettor, e.Kind, e.Target, e.Stake, ts, seq); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.games
			SET total_bets = total_bets + 1,
			    committed_risk = committed_risk + $2,
			    updated_at = $3, last_sequence = $4
			WHERE game_id = $1
		`, e.GameRef, e.RiskDelta, ts, seq)
		return err

	case "GameClosed":
		var e event.GameClosed
		if err := json.Unmarshal(payload, &e); err != nil {
			return fmt.Errorf("decode GameClosed: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.games
			SET status = 'closed', total_bets = $2, committed_risk = $3,
			    updated_at = $4, last_sequence = $5
			WHERE game_id = $1
		`, e.GameRef, e.TotalBets, e.TotalRisk, ts, seq)
		return err

	case "SettlementPage":
		var e event.SettlementPage
		if err := json.Unmarshal(payload, &e); err != nil {
			return fmt.Errorf("decode SettlementPage: %w", err)
		}
		for _, r := range e.Results {
			status := "lost"
			if r.Won {
				status = "won"
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE projections.bets
				SET status = $2, payout = $3, settled_at = $4, last_sequence = $5
				WHERE bet_id = $1
			`, r.BetID, status, r.Payout, ts, seq); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.games
			SET status = 'settling', outcome = $2, settled_count = $3,
			    updated_at = $4, last_sequence = $5
			WHERE game_id = $1
		`, e.GameRef, e.Outcome, e.SettledCount, ts, seq)
		return err

	case "GameCompleted":
		var e event.GameCompleted
		if err := json.Unmarshal(payload, &e); err != nil {
			return fmt.Errorf("decode GameCompleted: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.games
			SET status = 'completed', outcome = $2, settled_count = $3,
			    total_bets = $3, committed_risk = 0, paid_out = $4, swept = $5,
			    updated_at = $6, last_sequence = $7
			WHERE game_id = $1
		`, e.GameRef, e.Outcome, e.TotalBets, e.TotalPaidOut, e.TotalSwept, ts, seq)
		return err

	case "BetsRefunded":
		var e event.BetsRefunded
		if err := json.Unmarshal(payload, &e); err != nil {
			return fmt.Errorf("decode BetsRefunded: %w", err)
		}
		for _, r := range e.Refunds {
			if _, err := tx.ExecContext(ctx, `
				UPDATE projections.bets
				SET status = 'refunded', payout = $2, settled_at = $3, last_sequence = $4
				WHERE bet_id = $1
			`, r.BetID, r.Stake, ts, seq); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.games
			SET total_bets = $2, updated_at = $3, last_sequence = $4
			WHERE game_id = $1
		`, e.GameRef, e.Remaining, ts, seq)
		return err

	default:
		// Funding and admin events only move balances.
		return nil
	}
}

// applyJournal mirrors one double-entry line into the balances table.
// Debit increases, credit decreases, matching the engine's tracker;
// external accounts run negative as money enters the system.
func applyJournal(ctx context.Context, tx *sql.Tx, seq int64, debit, credit string, amount int64) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, balance, last_sequence)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_path)
		DO UPDATE SET balance = projections.balances.balance + $2, last_sequence = $3
	`, debit, amount, seq); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, balance, last_sequence)
		VALUES ($1, -$2, $3)
		ON CONFLICT (account_path)
		DO UPDATE SET balance = projections.balances.balance - $2, last_sequence = $3
	`, credit, amount, seq); err != nil {
		return err
	}

	return nil
}

// RebuildProjections drops and reconstructs every projection table from
// the event log. Balances come from a journal aggregation; bets and games
// come from replaying event payloads through the same routing as the live
// worker.
func RebuildProjections(ctx context.Context, db *sql.DB) error {
	start := time.Now()

	truncateStatements := []string{
		`TRUNCATE projections.balances`,
		`TRUNCATE projections.bets`,
		`TRUNCATE projections.games`,
		`DELETE FROM projections.watermark WHERE worker_id = 'main'`,
	}
	for _, stmt := range truncateStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
	}

	// Debits in one pass, credits subtracted in a second.
	if _, err := db.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, balance, last_sequence)
		SELECT debit_account, SUM(amount), MAX(sequence)
		FROM event_log.journal
		GROUP BY debit_account
		ON CONFLICT (account_path) DO UPDATE
			SET balance = EXCLUDED.balance, last_sequence = EXCLUDED.last_sequence
	`); err != nil {
		return fmt.Errorf("rebuild debit balances: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, balance, last_sequence)
		SELECT credit_account, -SUM(amount), MAX(sequence)
		FROM event_log.journal
		GROUP BY credit_account
		ON CONFLICT (account_path) DO UPDATE
			SET balance = projections.balances.balance + EXCLUDED.balance,
			    last_sequence = GREATEST(projections.balances.last_sequence, EXCLUDED.last_sequence)
	`); err != nil {
		return fmt.Errorf("rebuild credit balances: %w", err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT sequence, event_type, payload, timestamp
		FROM event_log.events
		ORDER BY sequence ASC
	`)
	if err != nil {
		return fmt.Errorf("read event log: %w", err)
	}
	defer rows.Close()

	var (
		lastSeq int64
		count   int64
	)
	for rows.Next() {
		var (
			seq       int64
			eventType string
			payload   []byte
			ts        time.Time
		)
		if err := rows.Scan(&seq, &eventType, &payload, &ts); err != nil {
			return err
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := applyEvent(ctx, tx, seq, eventType, payload, ts); err != nil {
			tx.Rollback()
			return fmt.Errorf("replay seq=%d: %w", seq, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}

		lastSeq = seq
		count++
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if count > 0 {
		if _, err := db.ExecContext(ctx, `
			INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
			VALUES ('main', $1, NOW())
			ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $1, updated_at = NOW()
		`, lastSeq); err != nil {
			return fmt.Errorf("watermark update: %w", err)
		}
	}

	log.Printf("INFO: projection rebuild complete (%d events, %v)", count, time.Since(start))
	return nil
}
