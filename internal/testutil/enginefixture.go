package testutil

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"WagerHouse/internal/beacon"
	"WagerHouse/internal/engine"
	"WagerHouse/internal/risk"
	"WagerHouse/internal/wheel"

	"github.com/google/uuid"
)

// EngineFixture drives a real wagering engine with a locally signed beacon
// chain. Integration tests use it to produce genuine envelopes and journal
// batches instead of fabricating rows by hand.
type EngineFixture struct {
	House    *engine.House
	Persist  chan engine.Output
	Proj     chan engine.Output
	Cred     engine.Credential
	Verifier *beacon.Verifier
	Proofs   map[uint64]beacon.Proof
	Layout   *wheel.Layout
	clock    int64
}

// NewEngineFixture builds an engine on the American layout with a signed
// chain of chainLength rounds and buffered output channels.
func NewEngineFixture(t *testing.T, chainLength uint64) *EngineFixture {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate beacon key: %v", err)
	}
	signer, err := beacon.NewSigner(priv)
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}
	verifier, err := beacon.NewVerifier(pub)
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}

	proofs := make(map[uint64]beacon.Proof, chainLength)
	prevSig := beacon.GenesisSeed("integration-test-chain")
	for round := uint64(1); round <= chainLength; round++ {
		p := signer.Sign(round, prevSig)
		proofs[round] = p
		prevSig = p.Signature
	}

	cred, err := engine.NewCredential()
	if err != nil {
		t.Fatalf("NewCredential failed: %v", err)
	}

	layout := wheel.AmericanLayout()
	persistCh := make(chan engine.Output, 1024)
	projCh := make(chan engine.Output, 1024)
	house, err := engine.NewHouse(engine.HouseConfig{
		Rules: wheel.NewRules(layout),
		Params: risk.Params{
			ExposureCeilingPerGame: 1_000_000,
			DefaultMinimumStake:    1,
			ReleaseMode:            risk.ReleaseModeIncremental,
		},
		Credential: cred,
		Verifier:   verifier,
	}, persistCh, projCh, nil, nil)
	if err != nil {
		t.Fatalf("NewHouse failed: %v", err)
	}

	return &EngineFixture{
		House:    house,
		Persist:  persistCh,
		Proj:     projCh,
		Cred:     cred,
		Verifier: verifier,
		Proofs:   proofs,
		Layout:   layout,
	}
}

// Now returns a strictly increasing clock so event timestamps are unique.
func (f *EngineFixture) Now() time.Time {
	f.clock++
	return time.UnixMicro(1_700_000_000_000_000 + f.clock*1000)
}

// PocketFor maps a round's verified entropy to its pocket, so tests can
// bet on (or against) the draw before it happens.
func (f *EngineFixture) PocketFor(t *testing.T, round uint64) int {
	t.Helper()
	entropy, err := f.Verifier.VerifyRound(f.Proofs[round], round)
	if err != nil {
		t.Fatalf("verify round %d: %v", round, err)
	}
	return beacon.MapToPocket(entropy, f.Layout.Pockets)
}

// FindRound scans the chain for a round whose pocket satisfies want.
func (f *EngineFixture) FindRound(t *testing.T, want func(pocket int) bool) uint64 {
	t.Helper()
	for round := uint64(2); round <= uint64(len(f.Proofs)); round++ {
		if want(f.PocketFor(t, round)) {
			return round
		}
	}
	t.Fatalf("no round in %d satisfies the pocket predicate", len(f.Proofs))
	return 0
}

func (f *EngineFixture) Deposit(t *testing.T, bettor uuid.UUID, amount int64) int64 {
	t.Helper()
	balance, err := f.House.Deposit(bettor, uuid.New(), amount, f.Now())
	if err != nil {
		t.Fatalf("Deposit failed: %v", err)
	}
	return balance
}

func (f *EngineFixture) TopUp(t *testing.T, amount int64) int64 {
	t.Helper()
	bankroll, err := f.House.TopUpBankroll(f.Cred, uuid.New(), amount, f.Now())
	if err != nil {
		t.Fatalf("TopUpBankroll failed: %v", err)
	}
	return bankroll
}

func (f *EngineFixture) CreateGame(t *testing.T, round uint64) uuid.UUID {
	t.Helper()
	gameID := uuid.New()
	if _, err := f.House.CreateGame(f.Cred, gameID, round, 0, f.Now()); err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	return gameID
}

func (f *EngineFixture) PlaceBet(t *testing.T, gameID, bettor uuid.UUID, kind wheel.BetKind, target int, stake int64) uuid.UUID {
	t.Helper()
	betID := uuid.New()
	if _, err := f.House.PlaceBet(bettor, gameID, betID, kind, target, stake, "", f.Now()); err != nil {
		t.Fatalf("PlaceBet failed: %v", err)
	}
	return betID
}

func (f *EngineFixture) CloseGame(t *testing.T, gameID uuid.UUID, round uint64) {
	t.Helper()
	if _, err := f.House.CloseGame(f.Cred, gameID, f.Proofs[round-1], f.Now()); err != nil {
		t.Fatalf("CloseGame failed: %v", err)
	}
}

func (f *EngineFixture) Settle(t *testing.T, gameID uuid.UUID, round uint64, pageStart, pageSize int) *engine.SettlementResult {
	t.Helper()
	res, err := f.House.Settle(f.Cred, gameID, f.Proofs[round], pageStart, pageSize, f.Now())
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	return res
}

func (f *EngineFixture) RefundAll(t *testing.T, gameID uuid.UUID, count int) *engine.RefundOutcome {
	t.Helper()
	out, err := f.House.RefundAll(f.Cred, gameID, count, f.Now())
	if err != nil {
		t.Fatalf("RefundAll failed: %v", err)
	}
	return out
}

// DrainPersist empties the persistence channel.
func (f *EngineFixture) DrainPersist() []engine.Output {
	var outputs []engine.Output
	for {
		select {
		case o := <-f.Persist:
			outputs = append(outputs, o)
		default:
			return outputs
		}
	}
}

// DrainProjection empties the projection channel.
func (f *EngineFixture) DrainProjection() []engine.Output {
	var outputs []engine.Output
	for {
		select {
		case o := <-f.Proj:
			outputs = append(outputs, o)
		default:
			return outputs
		}
	}
}
