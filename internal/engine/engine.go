// Package engine holds the wagering core: one mutex-serialized House that
// validates every command fully before moving funds, applies double-entry
// batches, and emits hash-chained events for persistence and projections.
package engine

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"WagerHouse/internal/bank"
	"WagerHouse/internal/beacon"
	"WagerHouse/internal/event"
	"WagerHouse/internal/fault"
	"WagerHouse/internal/game"
	"WagerHouse/internal/observability"
	"WagerHouse/internal/risk"
	"WagerHouse/internal/wheel"

	"github.com/google/uuid"
)

// House is the single-writer wagering engine. All mutating commands and
// reads serialize on one mutex; no partial state is ever observable.
type House struct {
	mu sync.Mutex

	rules      *wheel.Rules
	params     risk.Params
	credential Credential
	verifier   *beacon.Verifier

	sequence       int64
	hasher         *StateHasher
	balanceTracker *bank.BalanceTracker
	journalGen     *bank.JournalGenerator
	validator      *bank.InvariantValidator
	games          *game.Manager
	idempotency    *IdempotencyChecker
	metrics        *observability.Metrics

	// Worst-case liability committed across every live game. Never
	// exceeds the bankroll balance.
	committedExposure int64

	persistChan    chan<- Output
	projectionChan chan<- Output
}

// Output carries one applied event with its ledger effects.
type Output struct {
	Envelope   *event.Envelope
	Batches    []*bank.Batch
	StateDelta []byte
}

// HouseConfig gathers construction-time settings.
type HouseConfig struct {
	Rules               *wheel.Rules
	Params              risk.Params
	Credential          Credential
	Verifier            *beacon.Verifier
	StartSequence       int64
	IdempotencyCapacity int
}

func NewHouse(
	cfg HouseConfig,
	persistChan, projectionChan chan<- Output,
	dbChecker DBIdempotencyChecker,
	metrics *observability.Metrics,
) (*House, error) {
	if cfg.Rules == nil {
		return nil, fmt.Errorf("wheel rules are required")
	}
	if cfg.Verifier == nil {
		return nil, fmt.Errorf("beacon verifier is required")
	}
	if err := risk.ValidateParams(cfg.Params); err != nil {
		return nil, err
	}
	if cfg.Credential == (Credential{}) {
		return nil, fmt.Errorf("house credential is required")
	}
	if cfg.IdempotencyCapacity <= 0 {
		cfg.IdempotencyCapacity = 1_000_000
	}

	balanceTracker := bank.NewBalanceTracker()

	return &House{
		rules:          cfg.Rules,
		params:         cfg.Params,
		credential:     cfg.Credential,
		verifier:       cfg.Verifier,
		sequence:       cfg.StartSequence,
		hasher:         NewStateHasher(),
		balanceTracker: balanceTracker,
		journalGen:     bank.NewJournalGenerator(cfg.StartSequence, balanceTracker),
		validator:      bank.NewInvariantValidator(balanceTracker),
		games:          game.NewManager(),
		idempotency:    NewIdempotencyChecker(cfg.IdempotencyCapacity, dbChecker),
		metrics:        metrics,
		persistChan:    persistChan,
		projectionChan: projectionChan,
	}, nil
}

// authorize checks the presented credential in constant time.
func (h *House) authorize(op string, presented Credential) error {
	if !h.credential.Equal(presented) {
		h.reject(op, "credential")
		return fault.Wrap(fault.KindValidation, op, ErrCredentialMismatch)
	}
	return nil
}

func (h *House) reject(op, reason string) {
	if h.metrics != nil {
		h.metrics.EngineEventsRejected.WithLabelValues(op, reason).Inc()
	}
}

// ============================================================================
// Bettor funding
// ============================================================================

// Deposit credits a bettor wallet. The deposit id doubles as the
// idempotency key; a replay is rejected, never applied twice.
func (h *House) Deposit(bettor, depositID uuid.UUID, amount int64, now time.Time) (int64, error) {
	const op = "engine.Deposit"
	h.mu.Lock()
	defer h.mu.Unlock()

	if bettor == uuid.Nil {
		return 0, fault.Validationf(op, "bettor id is required")
	}
	if depositID == uuid.Nil {
		return 0, fault.Validationf(op, "deposit id is required")
	}
	if amount <= 0 {
		return 0, fault.Validationf(op, "amount must be positive, got %d", amount)
	}
	if h.isDuplicate(op, event.EventTypeBettorDeposited, depositID.String()) {
		return 0, fault.Validationf(op, "duplicate request %s", depositID)
	}

	batch, err := h.journalGen.GenerateBettorDeposit(bettor, depositID, amount, now.UnixMicro())
	if err != nil {
		return 0, fault.Wrap(fault.KindValidation, op, err)
	}
	h.applyBatch(batch)

	balance := h.balanceTracker.WalletBalance(bettor)
	h.finalize(&event.BettorDeposited{
		DepositID: depositID,
		Bettor:    bettor,
		Amount:    amount,
		Balance:   balance,
	}, []*bank.Batch{batch}, now)

	return balance, nil
}

// Withdraw debits a bettor wallet. Escrowed stakes are out of reach until
// settled or refunded.
func (h *House) Withdraw(bettor, withdrawalID uuid.UUID, amount int64, now time.Time) (int64, error) {
	const op = "engine.Withdraw"
	h.mu.Lock()
	defer h.mu.Unlock()

	if bettor == uuid.Nil {
		return 0, fault.Validationf(op, "bettor id is required")
	}
	if withdrawalID == uuid.Nil {
		return 0, fault.Validationf(op, "withdrawal id is required")
	}
	if amount <= 0 {
		return 0, fault.Validationf(op, "amount must be positive, got %d", amount)
	}
	if h.isDuplicate(op, event.EventTypeBettorWithdrew, withdrawalID.String()) {
		return 0, fault.Validationf(op, "duplicate request %s", withdrawalID)
	}

	batch, err := h.journalGen.GenerateBettorWithdrawal(bettor, withdrawalID, amount, now.UnixMicro())
	if err != nil {
		return 0, fault.Wrap(fault.KindValidation, op, err)
	}
	h.applyBatch(batch)

	balance := h.balanceTracker.WalletBalance(bettor)
	h.finalize(&event.BettorWithdrew{
		WithdrawalID: withdrawalID,
		Bettor:       bettor,
		Amount:       amount,
		Balance:      balance,
	}, []*bank.Batch{batch}, now)

	return balance, nil
}

// ============================================================================
// Administrator funding and configuration
// ============================================================================

// TopUpBankroll funds the pooled bankroll.
func (h *House) TopUpBankroll(cred Credential, fundingID uuid.UUID, amount int64, now time.Time) (int64, error) {
	const op = "engine.TopUpBankroll"
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.authorize(op, cred); err != nil {
		return 0, err
	}
	if fundingID == uuid.Nil {
		return 0, fault.Validationf(op, "funding id is required")
	}
	if amount <= 0 {
		return 0, fault.Validationf(op, "amount must be positive, got %d", amount)
	}
	if h.isDuplicate(op, event.EventTypeBankrollToppedUp, fundingID.String()) {
		return 0, fault.Validationf(op, "duplicate request %s", fundingID)
	}

	batch, err := h.journalGen.GenerateBankrollTopUp(fundingID, amount, now.UnixMicro())
	if err != nil {
		return 0, fault.Wrap(fault.KindValidation, op, err)
	}
	h.applyBatch(batch)

	bankroll := h.balanceTracker.BankrollBalance()
	h.finalize(&event.BankrollToppedUp{
		FundingID: fundingID,
		Amount:    amount,
		Bankroll:  bankroll,
	}, []*bank.Batch{batch}, now)

	return bankroll, nil
}

// WithdrawBankroll pays the administrator from the bankroll. Funds backing
// committed exposure cannot leave.
func (h *House) WithdrawBankroll(cred Credential, fundingID uuid.UUID, amount int64, now time.Time) (int64, error) {
	const op = "engine.WithdrawBankroll"
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.authorize(op, cred); err != nil {
		return 0, err
	}
	if fundingID == uuid.Nil {
		return 0, fault.Validationf(op, "funding id is required")
	}
	if amount <= 0 {
		return 0, fault.Validationf(op, "amount must be positive, got %d", amount)
	}
	if h.isDuplicate(op, event.EventTypeBankrollWithdrawn, fundingID.String()) {
		return 0, fault.Validationf(op, "duplicate request %s", fundingID)
	}
	uncommitted := h.balanceTracker.BankrollBalance() - h.committedExposure
	if amount > uncommitted {
		h.reject(op, "capacity")
		return 0, fault.Capacityf(op, "withdrawal %d exceeds uncommitted bankroll %d (committed exposure %d)",
			amount, uncommitted, h.committedExposure)
	}

	batch, err := h.journalGen.GenerateBankrollWithdrawal(fundingID, amount, now.UnixMicro())
	if err != nil {
		return 0, fault.Wrap(fault.KindCapacity, op, err)
	}
	h.applyBatch(batch)

	bankroll := h.balanceTracker.BankrollBalance()
	h.finalize(&event.BankrollWithdrawn{
		FundingID: fundingID,
		Amount:    amount,
		Bankroll:  bankroll,
	}, []*bank.Batch{batch}, now)

	return bankroll, nil
}

// SetExposureCeiling changes the per-game worst-case limit. Live games keep
// their committed exposure; only new placements feel the new ceiling.
func (h *House) SetExposureCeiling(cred Credential, requestID uuid.UUID, ceiling int64, now time.Time) error {
	const op = "engine.SetExposureCeiling"
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.authorize(op, cred); err != nil {
		return err
	}
	if requestID == uuid.Nil {
		return fault.Validationf(op, "request id is required")
	}
	if ceiling <= 0 {
		return fault.Validationf(op, "ceiling must be positive, got %d", ceiling)
	}
	if h.isDuplicate(op, event.EventTypeExposureCeilingSet, requestID.String()) {
		return fault.Validationf(op, "duplicate request %s", requestID)
	}

	previous := h.params.ExposureCeilingPerGame
	h.params.ExposureCeilingPerGame = ceiling

	h.finalize(&event.ExposureCeilingSet{
		RequestID: requestID,
		Ceiling:   ceiling,
		Previous:  previous,
	}, nil, now)

	return nil
}

// RotateCredential swaps the house credential. The new value takes effect
// immediately; the event records only that a rotation happened.
func (h *House) RotateCredential(cred Credential, requestID uuid.UUID, next Credential, now time.Time) error {
	const op = "engine.RotateCredential"
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.authorize(op, cred); err != nil {
		return err
	}
	if requestID == uuid.Nil {
		return fault.Validationf(op, "request id is required")
	}
	if next == (Credential{}) {
		return fault.Validationf(op, "next credential is required")
	}
	if h.isDuplicate(op, event.EventTypeCredentialRotated, requestID.String()) {
		return fault.Validationf(op, "duplicate request %s", requestID)
	}

	h.credential = next

	h.finalize(&event.CredentialRotated{
		RequestID: requestID,
		RotatedAt: now.UnixMicro(),
	}, nil, now)

	return nil
}

// ============================================================================
// Game lifecycle
// ============================================================================

// CreateGame opens a round for bets. The game id doubles as the request's
// idempotency key; the beacon round must be unclaimed and late enough that
// its preceding round exists to prove the close.
func (h *House) CreateGame(cred Credential, gameID uuid.UUID, round uint64, minimumStake int64, now time.Time) (*GameView, error) {
	const op = "engine.CreateGame"
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.authorize(op, cred); err != nil {
		return nil, err
	}
	if gameID == uuid.Nil {
		return nil, fault.Validationf(op, "game id is required")
	}
	if round < 2 {
		return nil, fault.Validationf(op, "draw round must be at least 2, got %d", round)
	}
	if h.games.Get(gameID) != nil {
		return nil, fault.Validationf(op, "game %s already exists", gameID)
	}
	if h.games.RoundClaimed(round) {
		return nil, fault.Validationf(op, "round %d already claimed by another game", round)
	}
	if minimumStake == 0 {
		minimumStake = h.params.DefaultMinimumStake
	}
	if minimumStake < 0 {
		return nil, fault.Validationf(op, "minimum stake must be positive, got %d", minimumStake)
	}
	if h.isDuplicate(op, event.EventTypeGameCreated, gameID.String()) {
		return nil, fault.Validationf(op, "duplicate request %s", gameID)
	}

	g := game.NewGame(gameID, round, h.rules, minimumStake, now.UnixMicro())
	h.games.Add(g)

	h.finalize(&event.GameCreated{
		GameRef:      gameID,
		BeaconRound:  round,
		MinimumStake: minimumStake,
		CreatedAt:    g.CreatedAt,
	}, nil, now)

	return h.viewGame(g), nil
}

// CloseGame freezes placement. The proof must verify for the round right
// before the draw round; its entropy is discarded, the check only sequences
// the close against the beacon.
func (h *House) CloseGame(cred Credential, gameID uuid.UUID, proof beacon.Proof, now time.Time) (*GameView, error) {
	const op = "engine.CloseGame"
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.authorize(op, cred); err != nil {
		return nil, err
	}
	g := h.games.Get(gameID)
	if g == nil {
		return nil, fault.Validationf(op, "unknown game %s", gameID)
	}
	if g.Status != game.StatusOpen {
		h.reject(op, "state")
		return nil, fault.Statef(op, "game %s is %s, only an Open game can close", gameID, g.Status)
	}
	if _, err := h.verifier.VerifyRound(proof, g.Round-1); err != nil {
		h.reject(op, "proof")
		return nil, fault.Proof(op, err)
	}

	if err := g.TransitionTo(game.StatusClosed, now.UnixMicro()); err != nil {
		return nil, fault.Statef(op, "%v", err)
	}

	h.finalize(&event.GameClosed{
		GameRef:     gameID,
		BeaconRound: g.Round,
		TotalBets:   g.Len(),
		TotalRisk:   g.Risk.TotalRisk(),
		ClosedAt:    g.ClosedAt,
	}, nil, now)

	return h.viewGame(g), nil
}

// ============================================================================
// Bet placement
// ============================================================================

// BetReceipt reports an accepted wager.
type BetReceipt struct {
	BetID         uuid.UUID
	GameID        uuid.UUID
	Kind          wheel.BetKind
	Target        int
	Stake         int64
	RiskDelta     int64
	GameRisk      int64
	WalletBalance int64
}

// PlaceBet validates, escrows, and records one wager. Every check runs
// before any fund moves; a rejected bet leaves wallet, escrow, and risk
// state untouched. The bet id doubles as the request's idempotency key.
func (h *House) PlaceBet(
	bettor, gameID, betID uuid.UUID,
	kind wheel.BetKind,
	target int,
	stake int64,
	metadata string,
	now time.Time,
) (*BetReceipt, error) {
	const op = "engine.PlaceBet"
	h.mu.Lock()
	defer h.mu.Unlock()

	if bettor == uuid.Nil {
		return nil, fault.Validationf(op, "bettor id is required")
	}
	if betID == uuid.Nil {
		return nil, fault.Validationf(op, "bet id is required")
	}
	g := h.games.Get(gameID)
	if g == nil {
		return nil, fault.Validationf(op, "unknown game %s", gameID)
	}
	if !g.Status.AcceptsBets() {
		h.reject(op, "state")
		return nil, fault.Statef(op, "game %s is %s, not accepting bets", gameID, g.Status)
	}
	if err := h.rules.ValidateBet(kind, target, stake, g.MinimumStake); err != nil {
		h.reject(op, "validation")
		return nil, fault.Wrap(fault.KindValidation, op, err)
	}
	if h.isDuplicate(op, event.EventTypeBetPlaced, betID.String()) {
		return nil, fault.Validationf(op, "duplicate request %s", betID)
	}

	riskDelta := g.Risk.Preview(kind, target, stake)
	if g.CommittedRisk+riskDelta > h.params.ExposureCeilingPerGame {
		h.reject(op, "capacity")
		return nil, fault.Capacityf(op, "bet adds %d exposure, game holds %d of ceiling %d",
			riskDelta, g.CommittedRisk, h.params.ExposureCeilingPerGame)
	}
	if h.committedExposure+riskDelta > h.balanceTracker.BankrollBalance() {
		h.reject(op, "capacity")
		return nil, fault.Capacityf(op, "bankroll %d cannot cover committed exposure %d plus %d",
			h.balanceTracker.BankrollBalance(), h.committedExposure, riskDelta)
	}

	batch, err := h.journalGen.GenerateStakeEscrow(bettor, betID, stake, now.UnixMicro())
	if err != nil {
		h.reject(op, "validation")
		return nil, fault.Wrap(fault.KindValidation, op, err)
	}

	// Past the last reject: apply escrow, commit risk, append the bet.
	h.applyBatch(batch)
	delta := g.Risk.Add(kind, target, stake)
	if delta != riskDelta {
		panic(fmt.Sprintf("FATAL: risk preview %d diverged from commit %d", riskDelta, delta))
	}
	g.CommittedRisk += delta
	h.committedExposure += delta

	bet := &game.Bet{
		ID:       betID,
		Bettor:   bettor,
		Kind:     kind,
		Target:   target,
		Stake:    stake,
		Metadata: metadata,
		PlacedAt: now.UnixMicro(),
	}
	g.AppendBet(bet)

	h.finalize(&event.BetPlaced{
		BetID:       betID,
		GameRef:     gameID,
		Bettor:      bettor,
		Kind:        kind.String(),
		Target:      target,
		Stake:       stake,
		RiskDelta:   delta,
		Metadata:    metadata,
		BeaconRound: g.Round,
	}, []*bank.Batch{batch}, now)

	return &BetReceipt{
		BetID:         betID,
		GameID:        gameID,
		Kind:          kind,
		Target:        target,
		Stake:         stake,
		RiskDelta:     delta,
		GameRisk:      g.CommittedRisk,
		WalletBalance: h.balanceTracker.WalletBalance(bettor),
	}, nil
}

// ============================================================================
// Read-only queries
// ============================================================================

// GameView is a consistent read of one game.
type GameView struct {
	ID            uuid.UUID
	Round         uint64
	Status        game.Status
	TotalBets     int
	SettledCount  int
	TotalRisk     int64
	CommittedRisk int64
	MinimumStake  int64
	Outcome       *int
}

func (h *House) viewGame(g *game.Game) *GameView {
	v := &GameView{
		ID:            g.ID,
		Round:         g.Round,
		Status:        g.Status,
		TotalBets:     g.Len(),
		SettledCount:  g.SettledCount,
		TotalRisk:     g.Risk.TotalRisk(),
		CommittedRisk: g.CommittedRisk,
		MinimumStake:  g.MinimumStake,
	}
	if outcome, ok := g.Outcome(); ok {
		o := outcome
		v.Outcome = &o
	}
	return v
}

// ViewGame returns a consistent snapshot of one game's counters.
func (h *House) ViewGame(gameID uuid.UUID) (*GameView, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	g := h.games.Get(gameID)
	if g == nil {
		return nil, fault.Validationf("engine.ViewGame", "unknown game %s", gameID)
	}
	return h.viewGame(g), nil
}

// ViewGames lists every game ordered by round.
func (h *House) ViewGames() []*GameView {
	h.mu.Lock()
	defer h.mu.Unlock()
	games := h.games.All()
	out := make([]*GameView, 0, len(games))
	for _, g := range games {
		out = append(out, h.viewGame(g))
	}
	return out
}

// BankrollBalance returns the pooled house balance.
func (h *House) BankrollBalance() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.balanceTracker.BankrollBalance()
}

// CommittedExposure returns worst-case liability across live games.
func (h *House) CommittedExposure() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.committedExposure
}

// ExposureCeiling returns the per-game limit.
func (h *House) ExposureCeiling() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.params.ExposureCeilingPerGame
}

// ExposureView is one consistent read of the house's risk position.
type ExposureView struct {
	Bankroll          int64
	CommittedExposure int64
	ExposureCeiling   int64
	Sequence          int64
}

// Exposure reads bankroll, committed exposure, and ceiling under one lock
// hold, so the numbers never straddle a command.
func (h *House) Exposure() ExposureView {
	h.mu.Lock()
	defer h.mu.Unlock()
	return ExposureView{
		Bankroll:          h.balanceTracker.BankrollBalance(),
		CommittedExposure: h.committedExposure,
		ExposureCeiling:   h.params.ExposureCeilingPerGame,
		Sequence:          h.sequence,
	}
}

// WalletBalance returns a bettor's spendable funds.
func (h *House) WalletBalance(bettor uuid.UUID) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.balanceTracker.WalletBalance(bettor)
}

// EscrowBalance returns a bettor's locked stakes.
func (h *House) EscrowBalance(bettor uuid.UUID) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.balanceTracker.EscrowBalance(bettor)
}

// TotalRisk returns a game's current worst-case liability.
func (h *House) TotalRisk(gameID uuid.UUID) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	g := h.games.Get(gameID)
	if g == nil {
		return 0, fault.Validationf("engine.TotalRisk", "unknown game %s", gameID)
	}
	return g.Risk.TotalRisk(), nil
}

// GetSequence returns the next event sequence to assign.
func (h *House) GetSequence() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sequence
}

// GetStateHash returns the current hash chain tip.
func (h *House) GetStateHash() [32]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hasher.GetPrevHash()
}

// DedupCacheStats reports LRU occupancy and lifetime evictions.
func (h *House) DedupCacheStats() (size int, evictions int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.idempotency.lru.Size(), h.idempotency.lru.Evictions()
}

// ============================================================================
// Event pipeline
// ============================================================================

func (h *House) isDuplicate(op string, et event.EventType, key string) bool {
	if h.idempotency.IsDuplicate(et.String(), key) {
		h.reject(op, "duplicate")
		return true
	}
	return false
}

// applyBatch validates and applies one journal batch. An unbalanced batch
// is a bug in the generator, not an input error.
func (h *House) applyBatch(batch *bank.Batch) {
	if err := h.validator.ValidateBatchBalance(batch); err != nil {
		panic(fmt.Sprintf("FATAL: unbalanced batch: %v", err))
	}
	h.balanceTracker.ApplyBatch(batch)
}

// finalize hashes the post-command state, builds the envelope, runs
// invariant post-checks, and hands the output to the persistence and
// projection channels. The persist send blocks for backpressure; the
// projection send drops when full since projections rebuild from the log.
func (h *House) finalize(evt event.Event, batches []*bank.Batch, now time.Time) {
	start := time.Now()
	eventType := evt.EventType()

	payload, err := json.Marshal(evt)
	if err != nil {
		panic(fmt.Sprintf("FATAL: marshal %s payload: %v", eventType, err))
	}

	stateDigest := h.computeStateDigest(batches)
	prevHash := h.hasher.GetPrevHash()
	stateHash := h.hasher.ComputeHash(h.sequence, stateDigest)

	envelope := &event.Envelope{
		Sequence:       h.sequence,
		IdempotencyKey: evt.IdempotencyKey(),
		EventType:      eventType,
		GameID:         evt.GameID(),
		Round:          evt.Round(),
		Timestamp:      now,
		Payload:        payload,
		StateHash:      stateHash,
		PrevHash:       prevHash,
	}
	h.sequence++

	if err := h.postCheckInvariants(); err != nil {
		panic(fmt.Sprintf("FATAL: invariant violated after %s: %v", eventType, err))
	}

	output := Output{
		Envelope:   envelope,
		Batches:    batches,
		StateDelta: stateDigest,
	}

	// Persistence: blocking send, the engine stalls until the worker
	// drains. No applied event is ever lost.
	select {
	case h.persistChan <- output:
	default:
		if h.metrics != nil {
			h.metrics.PersistBackpressure.Inc()
		}
		h.persistChan <- output
	}

	// Projections: non-blocking send, dropped outputs are recovered by a
	// projection rebuild from the event log.
	select {
	case h.projectionChan <- output:
	default:
		if h.metrics != nil {
			h.metrics.ProjectionDrops.Inc()
		}
	}

	h.idempotency.MarkProcessed(eventType.String(), evt.IdempotencyKey())

	if h.metrics != nil {
		h.metrics.EngineEventsApplied.WithLabelValues(eventType.String()).Inc()
		h.metrics.EngineEventDuration.WithLabelValues(eventType.String()).Observe(time.Since(start).Seconds())
		h.metrics.EngineSequence.Set(float64(h.sequence))
		h.metrics.BankrollBalance.Set(float64(h.balanceTracker.BankrollBalance()))
		h.metrics.CommittedExposure.Set(float64(h.committedExposure))
	}
}

// computeStateDigest creates canonical bytes over the accounts the batches
// touched: length-prefixed account path plus little-endian balance, sorted
// by path.
func (h *House) computeStateDigest(batches []*bank.Batch) []byte {
	affectedAccounts := make(map[bank.AccountKey]bool)
	for _, batch := range batches {
		for _, j := range batch.Journals {
			affectedAccounts[j.DebitAccount] = true
			affectedAccounts[j.CreditAccount] = true
		}
	}

	accounts := make([]bank.AccountKey, 0, len(affectedAccounts))
	for key := range affectedAccounts {
		accounts = append(accounts, key)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].Path() < accounts[j].Path()
	})

	digest := make([]byte, 0, len(accounts)*64)
	for _, key := range accounts {
		balance := h.balanceTracker.GetBalance(key)
		path := key.Path()
		digest = append(digest, byte(len(path)))
		digest = append(digest, []byte(path)...)
		digest = appendInt64LE(digest, balance)
	}
	return digest
}

func appendInt64LE(buf []byte, v int64) []byte {
	return append(buf,
		byte(v),
		byte(v>>8),
		byte(v>>16),
		byte(v>>24),
		byte(v>>32),
		byte(v>>40),
		byte(v>>48),
		byte(v>>56),
	)
}

// postCheckInvariants validates invariants after every applied command.
func (h *House) postCheckInvariants() error {
	if err := h.validator.ValidateBankrollNonNegative(); err != nil {
		return err
	}
	if err := h.validator.ValidateReserve(h.committedExposure); err != nil {
		return err
	}
	if h.committedExposure < 0 {
		return fmt.Errorf("committed exposure is negative: %d", h.committedExposure)
	}
	// Periodic global zero-sum check; O(accounts), so not on every event.
	if h.sequence > 0 && h.sequence%1000 == 0 {
		if err := h.validator.ValidateGlobalBalance(); err != nil {
			return fmt.Errorf("at seq %d: %w", h.sequence, err)
		}
	}
	return nil
}

// ============================================================================
// Snapshot restore and startup
// ============================================================================

// SnapshotState holds the serializable in-memory state for restore.
type SnapshotState struct {
	Sequence          int64
	LedgerSequence    int64
	StateHash         [32]byte
	ExposureCeiling   int64
	CommittedExposure int64
	Balances          []bank.BalanceSnapshot
	Games             []game.GameSnapshot
	IdempotencyKeys   []string
}

// CreateSnapshotState captures the current in-memory state for persistence.
func (h *House) CreateSnapshotState() *SnapshotState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return &SnapshotState{
		Sequence:          h.sequence - 1, // Last processed sequence
		LedgerSequence:    h.journalGen.Sequence(),
		StateHash:         h.hasher.GetPrevHash(),
		ExposureCeiling:   h.params.ExposureCeilingPerGame,
		CommittedExposure: h.committedExposure,
		Balances:          h.balanceTracker.Snapshot(),
		Games:             h.games.Snapshot(),
		IdempotencyKeys:   h.idempotency.lru.GetAllKeys(),
	}
}

// RestoreFromSnapshot rebuilds the engine's in-memory state on warm
// restart. The committed-exposure counter is cross-checked against the
// restored games so a corrupt snapshot cannot undercount liability.
func (h *House) RestoreFromSnapshot(snap *SnapshotState) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.balanceTracker.Restore(snap.Balances); err != nil {
		return fmt.Errorf("restore balances: %w", err)
	}
	if err := h.games.Restore(snap.Games, h.rules); err != nil {
		return fmt.Errorf("restore games: %w", err)
	}

	var committed int64
	for _, g := range h.games.All() {
		committed += g.CommittedRisk
	}
	if committed != snap.CommittedExposure {
		return fmt.Errorf("snapshot committed exposure %d does not match games total %d",
			snap.CommittedExposure, committed)
	}

	h.sequence = snap.Sequence + 1 // Next sequence to assign
	h.journalGen.SetSequence(snap.LedgerSequence)
	h.hasher.SetPrevHash(snap.StateHash)
	h.params.ExposureCeilingPerGame = snap.ExposureCeiling
	h.committedExposure = snap.CommittedExposure
	return nil
}

// WarmLRU loads recent idempotency keys, avoiding cold-path lookups for
// recently processed requests.
func (h *House) WarmLRU(keys []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.idempotency.lru.WarmFromKeys(keys)
}
