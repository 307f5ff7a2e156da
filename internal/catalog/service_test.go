package catalog_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/rockettradeline/backend-market/internal/catalog"
	"github.com/rockettradeline/backend-market/internal/store"
)

type fakeTradelineStore struct {
	rows  map[uuid.UUID]store.Tradeline
	calls int
}

func (f *fakeTradelineStore) GetTradeline(_ context.Context, id uuid.UUID) (store.Tradeline, error) {
	f.calls++
	t, ok := f.rows[id]
	if !ok {
		return store.Tradeline{}, pgx.ErrNoRows
	}
	return t, nil
}

func (f *fakeTradelineStore) ListActiveTradelines(_ context.Context, _, _ int32) ([]store.Tradeline, error) {
	var out []store.Tradeline
	for _, t := range f.rows {
		if t.Status == "Active" {
			out = append(out, t)
		}
	}
	return out, nil
}

func newTestService(t *testing.T, rows map[uuid.UUID]store.Tradeline) (*catalog.Service, *fakeTradelineStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	st := &fakeTradelineStore{rows: rows}
	svc, err := catalog.NewService(catalog.ServiceConfig{
		Store:  st,
		Cache:  catalog.NewCache(client, time.Minute),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	return svc, st
}

func TestGetSnapshotCachesAfterFirstLookup(t *testing.T) {
	id := uuid.New()
	svc, st := newTestService(t, map[uuid.UUID]store.Tradeline{
		id: {ID: id, Bank: "Chase", Price: 45000, MaxSpots: 3, Status: "Active"},
	})

	snap, err := svc.GetSnapshot(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "Chase", snap.Bank)
	require.EqualValues(t, 45000, snap.Price)
	require.EqualValues(t, 3, snap.MaxSpots)
	require.Equal(t, 1, st.calls)

	snap2, err := svc.GetSnapshot(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, snap, snap2)
	require.Equal(t, 1, st.calls, "second lookup should be served from cache")
}

func TestGetSnapshotUnknownTradeline(t *testing.T) {
	svc, _ := newTestService(t, map[uuid.UUID]store.Tradeline{})
	_, err := svc.GetSnapshot(context.Background(), uuid.New())
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestGetSnapshotInactiveTradeline(t *testing.T) {
	id := uuid.New()
	svc, _ := newTestService(t, map[uuid.UUID]store.Tradeline{
		id: {ID: id, Bank: "Amex", Price: 30000, MaxSpots: 2, Status: "Sold"},
	})
	_, err := svc.GetSnapshot(context.Background(), id)
	require.ErrorIs(t, err, catalog.ErrNotFound)
}
