package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/rockettradeline/backend-market/internal/cart"
	"github.com/rockettradeline/backend-market/internal/events"
	"github.com/rockettradeline/backend-market/internal/pricing"
	"github.com/rockettradeline/backend-market/internal/store"
)

// Service errors surfaced to handlers.
var (
	ErrCartNotFound  = errors.New("checkout: cart not found")
	ErrEmptyCart     = errors.New("checkout: cart has no items")
	ErrNoPaymentMode = errors.New("checkout: please select a payment mode before checkout")
	ErrNotOwner      = errors.New("checkout: cart belongs to another user")
	ErrNotActive     = errors.New("checkout: cart is not active")
)

// Store is the persistence surface checkout needs.
type Store interface {
	GetCart(ctx context.Context, id uuid.UUID) (store.Cart, error)
	ListCartItems(ctx context.Context, cartID uuid.UUID) ([]store.CartItem, error)
	UpdateCartTotals(ctx context.Context, id uuid.UUID, subtotal, total int64) error
	UpdateCartStatus(ctx context.Context, id uuid.UUID, status string) error
	CreateOrder(ctx context.Context, o store.Order) (store.Order, error)
	InTx(ctx context.Context, fn func(Store) error) error
}

// StoreAdapter adapts *store.Store to the Store interface.
type StoreAdapter struct {
	*store.Store
}

// InTx runs fn inside a database transaction.
func (a StoreAdapter) InTx(ctx context.Context, fn func(Store) error) error {
	return a.Store.InTx(ctx, func(tx *store.Store) error {
		return fn(StoreAdapter{tx})
	})
}

type eventSink interface {
	Publish(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) error
}

// Service converts an active cart into an order.
type Service struct {
	store    Store
	events   eventSink
	currency string
	log      zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store    Store
	Events   eventSink
	Currency string
	Logger   zerolog.Logger
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("checkout: store is required")
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "USD"
	}
	return &Service{
		store:    cfg.Store,
		events:   cfg.Events,
		currency: currency,
		log:      cfg.Logger,
	}, nil
}

// Checkout freezes the cart into an order. Totals are recomputed from the
// lines inside the same transaction so the order never captures stale sums,
// and the cart moves to Checked Out.
func (s *Service) Checkout(ctx context.Context, cartID, userID uuid.UUID) (store.Order, error) {
	ctx, span := otel.Tracer("checkout.Service").Start(ctx, "CheckoutService.Checkout")
	defer span.End()
	span.SetAttributes(attribute.String("cart.id", cartID.String()))

	c, err := s.store.GetCart(ctx, cartID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Order{}, ErrCartNotFound
		}
		return store.Order{}, fmt.Errorf("checkout: load cart: %w", err)
	}
	if c.UserID != nil && *c.UserID != userID {
		return store.Order{}, ErrNotOwner
	}
	status, err := cart.ParseStatus(c.Status)
	if err != nil {
		return store.Order{}, err
	}
	if !status.Mutable() {
		return store.Order{}, fmt.Errorf("%w: status is %s", ErrNotActive, status)
	}
	if c.PaymentMode == nil || *c.PaymentMode == "" {
		return store.Order{}, ErrNoPaymentMode
	}

	var order store.Order
	err = s.store.InTx(ctx, func(tx Store) error {
		items, err := tx.ListCartItems(ctx, cartID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrEmptyCart
		}

		lines := make([]pricing.Line, 0, len(items))
		for _, it := range items {
			qty := it.Quantity
			lines = append(lines, pricing.Line{Qty: &qty, UnitRate: it.UnitRate})
		}
		summary := pricing.Compute(lines, pricing.Adjustments{Discount: c.DiscountAmount, Tax: c.TaxAmount})
		if err := tx.UpdateCartTotals(ctx, cartID, summary.Subtotal, summary.Total); err != nil {
			return err
		}

		order, err = tx.CreateOrder(ctx, store.Order{
			CartID:   cartID,
			UserID:   userID,
			Subtotal: summary.Subtotal,
			Discount: c.DiscountAmount,
			Tax:      c.TaxAmount,
			Total:    summary.Total,
			Currency: s.currency,
			Status:   "Pending",
		})
		if err != nil {
			return err
		}
		return tx.UpdateCartStatus(ctx, cartID, cart.StatusCheckedOut.String())
	})
	if err != nil {
		if errors.Is(err, ErrEmptyCart) {
			return store.Order{}, err
		}
		return store.Order{}, fmt.Errorf("checkout: %w", err)
	}

	s.log.Info().
		Str("order_id", order.ID.String()).
		Str("cart_id", cartID.String()).
		Int64("total", order.Total).
		Msg("cart checked out")
	if s.events != nil {
		if err := s.events.Publish(ctx, events.TopicOrderCreated, order.ID, order); err != nil {
			s.log.Error().Err(err).Str("order_id", order.ID.String()).Msg("order event publish failed")
		}
	}
	return order, nil
}
