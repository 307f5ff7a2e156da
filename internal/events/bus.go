package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rockettradeline/backend-market/internal/store"
)

// Topics published by the services.
const (
	TopicPaymentCreated   = "payment.created"
	TopicPaymentCompleted = "payment.completed"
	TopicPaymentCancelled = "payment.cancelled"
	TopicPaymentVerified  = "payment.verified"
	TopicPaymentExpired   = "payment.expired"
	TopicOrderCreated     = "order.created"
)

// Notifier receives every event after it is persisted. Notifier failures are
// logged and swallowed; the durable record is the source of truth.
type Notifier interface {
	Notify(ctx context.Context, ev store.DomainEvent)
}

type sink interface {
	InsertDomainEvent(ctx context.Context, topic string, aggregateID uuid.UUID, payload []byte) (store.DomainEvent, error)
}

// Bus persists domain events and fans them out to notifiers.
type Bus struct {
	store     sink
	notifiers []Notifier
	log       zerolog.Logger
}

// NewBus constructs a Bus.
func NewBus(st sink, log zerolog.Logger, notifiers ...Notifier) *Bus {
	return &Bus{store: st, notifiers: notifiers, log: log}
}

// Publish records the event and notifies subscribers. The payload is
// marshalled to JSON before it is stored.
func (b *Bus) Publish(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", topic, err)
	}
	ev, err := b.store.InsertDomainEvent(ctx, topic, aggregateID, raw)
	if err != nil {
		return fmt.Errorf("events: persist %s: %w", topic, err)
	}
	for _, n := range b.notifiers {
		n.Notify(ctx, ev)
	}
	return nil
}

// LogNotifier writes every event to the structured log.
type LogNotifier struct {
	Log zerolog.Logger
}

func (n LogNotifier) Notify(_ context.Context, ev store.DomainEvent) {
	n.Log.Info().
		Str("topic", ev.Topic).
		Str("aggregate_id", ev.AggregateID.String()).
		Int64("event_id", ev.ID).
		Msg("domain event")
}

// RedisNotifier broadcasts events over a Redis pub/sub channel so other
// instances can react without polling the events table.
type RedisNotifier struct {
	R       *redis.Client
	Channel string
	Log     zerolog.Logger
}

func (n RedisNotifier) Notify(ctx context.Context, ev store.DomainEvent) {
	channel := n.Channel
	if channel == "" {
		channel = "market:events"
	}
	msg, err := json.Marshal(ev)
	if err != nil {
		n.Log.Error().Err(err).Str("topic", ev.Topic).Msg("event broadcast marshal failed")
		return
	}
	if err := n.R.Publish(ctx, channel, msg).Err(); err != nil {
		n.Log.Error().Err(err).Str("topic", ev.Topic).Msg("event broadcast failed")
	}
}
