package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/rockettradeline/backend-market/internal/common"
	"github.com/rockettradeline/backend-market/internal/obs"
	"github.com/rockettradeline/backend-market/internal/store"
)

// ErrNotFound is returned when a tradeline does not exist or is not active.
var ErrNotFound = errors.New("catalog: tradeline not found")

type tradelineStore interface {
	GetTradeline(ctx context.Context, id uuid.UUID) (store.Tradeline, error)
	ListActiveTradelines(ctx context.Context, limit, offset int32) ([]store.Tradeline, error)
}

// Snapshot is the pricing-relevant view of a tradeline used when adding it
// to a cart. Price is in minor currency units.
type Snapshot struct {
	TradelineID uuid.UUID `json:"tradelineId"`
	Bank        string    `json:"bank"`
	Price       int64     `json:"price"`
	MaxSpots    int64     `json:"maxSpots"`
}

// Service resolves tradeline snapshots, caching them in Redis.
type Service struct {
	store tradelineStore
	cache *Cache
	log   zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store  tradelineStore
	Cache  *Cache
	Logger zerolog.Logger
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: store is required")
	}
	return &Service{store: cfg.Store, cache: cfg.Cache, log: cfg.Logger}, nil
}

func snapshotKey(id uuid.UUID) string {
	return "catalog:tradeline:" + id.String()
}

// GetSnapshot returns the catalog snapshot for a tradeline, consulting the
// cache first. Inactive tradelines resolve to ErrNotFound.
func (s *Service) GetSnapshot(ctx context.Context, id uuid.UUID) (Snapshot, error) {
	var snap Snapshot
	hit, err := s.cache.GetJSON(ctx, snapshotKey(id), &snap)
	if err != nil {
		s.log.Warn().Err(err).Str("tradeline_id", id.String()).Msg("catalog cache read failed")
	}
	if hit {
		if obs.CatalogLookupTotal != nil {
			obs.CatalogLookupTotal.WithLabelValues("cache_hit").Inc()
		}
		return snap, nil
	}

	t, err := s.store.GetTradeline(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if obs.CatalogLookupTotal != nil {
				obs.CatalogLookupTotal.WithLabelValues("miss").Inc()
			}
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, fmt.Errorf("catalog: get tradeline: %w", err)
	}
	if t.Status != "Active" {
		if obs.CatalogLookupTotal != nil {
			obs.CatalogLookupTotal.WithLabelValues("inactive").Inc()
		}
		return Snapshot{}, ErrNotFound
	}

	snap = Snapshot{TradelineID: t.ID, Bank: t.Bank, Price: t.Price, MaxSpots: t.MaxSpots}
	if err := s.cache.SetJSON(ctx, snapshotKey(id), snap); err != nil {
		s.log.Warn().Err(err).Str("tradeline_id", id.String()).Msg("catalog cache write failed")
	}
	if obs.CatalogLookupTotal != nil {
		obs.CatalogLookupTotal.WithLabelValues("db_hit").Inc()
	}
	return snap, nil
}

// List returns the browsable active catalog.
func (s *Service) List(ctx context.Context, limit, offset int32) ([]store.Tradeline, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.store.ListActiveTradelines(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("catalog: list tradelines: %w", err)
	}
	return rows, nil
}

// Get returns a single tradeline for the public detail endpoint.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (store.Tradeline, error) {
	t, err := s.store.GetTradeline(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Tradeline{}, common.NewAppError("NOT_FOUND", "tradeline not found", http.StatusNotFound, ErrNotFound)
		}
		return store.Tradeline{}, fmt.Errorf("catalog: get tradeline: %w", err)
	}
	return t, nil
}
