package feed

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"WagerHouse/internal/beacon"
	"WagerHouse/internal/engine"
	"WagerHouse/internal/fault"
	"WagerHouse/internal/observability"
)

// BeaconSubject carries published beacon rounds.
const BeaconSubject = "wager.beacon.rounds"

// RawRound is an unparsed beacon round message off the wire.
type RawRound struct {
	Data      []byte
	Timestamp time.Time
	Ack       func()
	Nak       func()
}

// RoundSettler is the slice of the engine the feed drives.
type RoundSettler interface {
	SettleByRound(proof beacon.Proof, pageSize int, now time.Time) (*engine.SettlementResult, error)
}

// RoundTracker drops rounds the feed has already acted on. Rounds advance
// monotonically; gaps are normal since most rounds carry no game. Only the
// subscriber loop touches it.
type RoundTracker struct {
	lastRound uint64
	seen      bool
}

func NewRoundTracker() *RoundTracker {
	return &RoundTracker{}
}

// Check classifies an incoming round: "" to process, else the drop reason.
func (rt *RoundTracker) Check(round uint64) string {
	if !rt.seen {
		return ""
	}
	switch {
	case round == rt.lastRound:
		return "duplicate"
	case round < rt.lastRound:
		return "stale"
	default:
		return ""
	}
}

// MarkProcessed advances the tracker past a handled round.
func (rt *RoundTracker) MarkProcessed(round uint64) {
	rt.lastRound = round
	rt.seen = true
}

// LastRound returns the most recently handled round.
func (rt *RoundTracker) LastRound() (uint64, bool) {
	return rt.lastRound, rt.seen
}

// Subscriber consumes beacon rounds from JetStream and settles any game
// claiming the round, page by page, through the engine.
type Subscriber struct {
	js        jetstream.JetStream
	roundChan chan RawRound
	settler   RoundSettler
	tracker   *RoundTracker
	pageSize  int
	metrics   *observability.Metrics
	consumers []jetstream.ConsumeContext
}

func NewSubscriber(
	js jetstream.JetStream,
	settler RoundSettler,
	pageSize int,
	metrics *observability.Metrics,
) *Subscriber {
	if pageSize <= 0 {
		pageSize = 256
	}
	return &Subscriber{
		js:        js,
		roundChan: make(chan RawRound, 64),
		settler:   settler,
		tracker:   NewRoundTracker(),
		pageSize:  pageSize,
		metrics:   metrics,
	}
}

// Subscribe creates the durable beacon-round consumer.
func (s *Subscriber) Subscribe(ctx context.Context) error {
	consumer, err := s.js.CreateOrUpdateConsumer(ctx, "WAGER_BEACON_ROUNDS", jetstream.ConsumerConfig{
		Durable:       "house-beacon-rounds",
		FilterSubject: BeaconSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return fmt.Errorf("create beacon consumer: %w", err)
	}

	consumerContext, err := consumer.Consume(func(msg jetstream.Msg) {
		raw := RawRound{
			Data:      msg.Data(),
			Timestamp: time.Now(),
			Ack:       func() { msg.Ack() },
			Nak:       func() { msg.Nak() },
		}

		select {
		case s.roundChan <- raw:
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("consume beacon rounds: %w", err)
	}

	s.consumers = append(s.consumers, consumerContext)
	log.Printf("INFO: subscribed to %s (consumer=house-beacon-rounds)", BeaconSubject)
	return nil
}

// Run processes queued rounds until ctx is cancelled. Every message is
// acked once handled: engine rejections are deterministic, so redelivery
// would only repeat the same outcome.
func (s *Subscriber) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw := <-s.roundChan:
			s.handle(raw)
		}
	}
}

func (s *Subscriber) handle(raw RawRound) {
	if s.metrics != nil {
		s.metrics.BeaconRoundsReceived.Inc()
	}

	proof, err := ParseRoundMessage(raw.Data)
	if err != nil {
		log.Printf("WARN: dropping malformed beacon round: %v", err)
		s.drop("malformed")
		raw.Ack()
		return
	}

	if reason := s.tracker.Check(proof.Round); reason != "" {
		s.drop(reason)
		raw.Ack()
		return
	}

	res, err := s.settler.SettleByRound(proof, s.pageSize, time.Now())
	if err != nil {
		if fault.IsKind(err, fault.KindExternalProof) {
			log.Printf("WARN: beacon round %d failed verification: %v", proof.Round, err)
			s.drop("unverified")
		} else {
			log.Printf("WARN: settlement for round %d failed: %v", proof.Round, err)
		}
		raw.Ack()
		return
	}

	s.tracker.MarkProcessed(proof.Round)
	if res != nil {
		log.Printf("INFO: round %d settled game %s (%d bets, paid=%d, swept=%d)",
			proof.Round, res.GameID, res.TotalBets, res.PaidOut, res.Swept)
	}
	raw.Ack()
}

func (s *Subscriber) drop(reason string) {
	if s.metrics != nil {
		s.metrics.BeaconRoundsDropped.WithLabelValues(reason).Inc()
	}
}

// Stop halts the NATS consumers.
func (s *Subscriber) Stop() {
	for _, cc := range s.consumers {
		cc.Stop()
	}
	log.Println("INFO: beacon subscriber stopped")
}

// EnsureBeaconStream creates the inbound beacon round stream if absent.
// In production the beacon bridge owns this stream; creating it here keeps
// local development one-binary.
func EnsureBeaconStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "WAGER_BEACON_ROUNDS",
		Subjects:  []string{BeaconSubject},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create beacon stream: %w", err)
	}
	log.Println("INFO: ensured beacon stream WAGER_BEACON_ROUNDS")
	return nil
}
