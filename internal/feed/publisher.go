package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"WagerHouse/internal/observability"
)

// Publishable is an applied event ready for the outbound stream. The
// orchestrator builds these from engine outputs after the event is on the
// persist path.
type Publishable struct {
	Sequence       int64           `json:"sequence"`
	EventType      string          `json:"event_type"`
	IdempotencyKey string          `json:"idempotency_key"`
	GameID         *string         `json:"game_id,omitempty"`
	Round          uint64          `json:"round,omitempty"`
	Payload        json.RawMessage `json:"payload"`
	StateHash      []byte          `json:"state_hash"`
	Timestamp      time.Time       `json:"timestamp"`
}

// Publisher pushes applied events to NATS for observers. Best-effort: a
// failed publish is logged and dropped, never retried, since the event log
// remains the authoritative record.
type Publisher struct {
	js        jetstream.JetStream
	inputChan <-chan Publishable
	metrics   *observability.Metrics
}

func NewPublisher(js jetstream.JetStream, inputChan <-chan Publishable, metrics *observability.Metrics) *Publisher {
	return &Publisher{
		js:        js,
		inputChan: inputChan,
		metrics:   metrics,
	}
}

// Run drains the publish channel until ctx is cancelled or the channel
// closes.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case evt, ok := <-p.inputChan:
			if !ok {
				return nil
			}

			if err := p.publish(ctx, evt); err != nil {
				log.Printf("WARN: outbound publish failed seq=%d: %v", evt.Sequence, err)
				if p.metrics != nil {
					p.metrics.PublishDrops.Inc()
				}
				continue
			}
			if p.metrics != nil {
				p.metrics.EventsPublished.Inc()
			}
		}
	}
}

// publish sends one event under wager.house.events.{event_type}[.{game_id}].
func (p *Publisher) publish(ctx context.Context, evt Publishable) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := fmt.Sprintf("wager.house.events.%s", evt.EventType)
	if evt.GameID != nil {
		subject = fmt.Sprintf("%s.%s", subject, *evt.GameID)
	}

	_, err = p.js.Publish(ctx, subject, data)
	return err
}

// EnsureOutboundStream creates the observer event stream if absent.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "WAGER_HOUSE_EVENTS",
		Subjects:  []string{"wager.house.events.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	log.Println("INFO: ensured outbound stream WAGER_HOUSE_EVENTS")
	return nil
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("WARN: NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Println("INFO: NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}
