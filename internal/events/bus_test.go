package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/rockettradeline/backend-market/internal/events"
	"github.com/rockettradeline/backend-market/internal/store"
)

type fakeSink struct {
	inserted []store.DomainEvent
	nextID   int64
}

func (f *fakeSink) InsertDomainEvent(_ context.Context, topic string, aggregateID uuid.UUID, payload []byte) (store.DomainEvent, error) {
	f.nextID++
	ev := store.DomainEvent{
		ID:          f.nextID,
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     payload,
		OccurredAt:  time.Now(),
	}
	f.inserted = append(f.inserted, ev)
	return ev, nil
}

type recordingNotifier struct {
	events []store.DomainEvent
}

func (n *recordingNotifier) Notify(_ context.Context, ev store.DomainEvent) {
	n.events = append(n.events, ev)
}

func TestPublishPersistsAndNotifies(t *testing.T) {
	sink := &fakeSink{}
	notifier := &recordingNotifier{}
	bus := events.NewBus(sink, zerolog.Nop(), notifier)

	aggregate := uuid.New()
	err := bus.Publish(context.Background(), events.TopicPaymentCreated, aggregate, map[string]any{"amount": 2500})
	require.NoError(t, err)

	require.Len(t, sink.inserted, 1)
	require.Equal(t, events.TopicPaymentCreated, sink.inserted[0].Topic)
	require.Equal(t, aggregate, sink.inserted[0].AggregateID)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(sink.inserted[0].Payload, &payload))
	require.EqualValues(t, 2500, payload["amount"])

	require.Len(t, notifier.events, 1)
	require.EqualValues(t, 1, notifier.events[0].ID)
}

func TestRedisNotifierBroadcasts(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sub := client.Subscribe(context.Background(), "market:events")
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)

	notifier := events.RedisNotifier{R: client, Log: zerolog.Nop()}
	notifier.Notify(context.Background(), store.DomainEvent{ID: 7, Topic: events.TopicOrderCreated, AggregateID: uuid.New()})

	select {
	case msg := <-sub.Channel():
		var ev store.DomainEvent
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
		require.Equal(t, events.TopicOrderCreated, ev.Topic)
		require.EqualValues(t, 7, ev.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no broadcast received")
	}
}
