package notify

import (
	"context"
	"time"

	outboxrepo "shoporders/internal/repository/outbox"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Dispatcher drains pending notification intents from the outbox and hands
// them to the broker topic the push-delivery service consumes. Delivery is
// at-least-once to the broker and best-effort beyond it; a failed publish is
// retried on the next tick and never reported back to the operation that
// recorded the intent.
type Dispatcher struct {
	repo      outboxrepo.Repository
	writer    messageWriter
	tick      time.Duration
	batchSize int
	logger    zerolog.Logger
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewDispatcher builds a dispatcher publishing to topic via brokers.
func NewDispatcher(repo outboxrepo.Repository, topic string, brokers []string, tick time.Duration, logger zerolog.Logger) *Dispatcher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return newDispatcher(repo, w, tick, logger)
}

func newDispatcher(repo outboxrepo.Repository, w messageWriter, tick time.Duration, logger zerolog.Logger) *Dispatcher {
	if tick <= 0 {
		tick = time.Second
	}
	return &Dispatcher{repo: repo, writer: w, tick: tick, batchSize: 100, logger: logger}
}

// Run polls until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.drain(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	records, err := d.repo.FetchPending(ctx, d.batchSize)
	if err != nil {
		d.logger.Error().Err(err).Msg("fetch pending intents")
		return
	}
	for _, rec := range records {
		msg := kafka.Message{
			Key:   []byte(rec.UserID),
			Value: rec.Payload,
			Headers: []kafka.Header{
				{Key: "event_id", Value: []byte(rec.EventID)},
				{Key: "event_type", Value: []byte(rec.EventType)},
			},
		}
		if err := d.writer.WriteMessages(ctx, msg); err != nil {
			d.logger.Error().Err(err).Str("event_id", rec.EventID).Msg("publish intent")
			continue
		}
		if err := d.repo.MarkSent(ctx, rec.ID); err != nil {
			d.logger.Error().Err(err).Str("event_id", rec.EventID).Msg("mark intent sent")
			continue
		}
	}
}
