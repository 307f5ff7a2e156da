package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/rockettradeline/backend-market/internal/catalog"
	"github.com/rockettradeline/backend-market/internal/obs"
	"github.com/rockettradeline/backend-market/internal/pricing"
	"github.com/rockettradeline/backend-market/internal/store"
)

// Service errors surfaced to handlers.
var (
	ErrNotFound           = errors.New("cart: not found")
	ErrItemNotFound       = errors.New("cart: item not found")
	ErrReadOnly           = errors.New("cart: only active carts can be modified")
	ErrTradelineNotFound  = errors.New("cart: tradeline not found")
	ErrCatalogUnavailable = errors.New("cart: tradeline lookup failed")
	ErrInvalidInput       = errors.New("cart: invalid input")
)

// Store is the persistence surface the cart service needs. InTx runs fn
// against a transactional view of the same store.
type Store interface {
	CreateCart(ctx context.Context, userID *uuid.UUID, expiresAt time.Time) (store.Cart, error)
	GetCart(ctx context.Context, id uuid.UUID) (store.Cart, error)
	UpdateCartStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateCartPaymentMode(ctx context.Context, id uuid.UUID, mode string) error
	UpdateCartAdjustments(ctx context.Context, id uuid.UUID, discount, tax int64) error
	UpdateCartTotals(ctx context.Context, id uuid.UUID, subtotal, total int64) error
	MarkExpiredCarts(ctx context.Context, now time.Time) (int64, error)
	ListCartItems(ctx context.Context, cartID uuid.UUID) ([]store.CartItem, error)
	GetCartItem(ctx context.Context, cartID, itemID uuid.UUID) (store.CartItem, error)
	FindCartItemByTradeline(ctx context.Context, cartID, tradelineID uuid.UUID) (store.CartItem, error)
	InsertCartItem(ctx context.Context, it store.CartItem) (store.CartItem, error)
	UpdateCartItemPricing(ctx context.Context, itemID uuid.UUID, quantity int64, unitRate, amount *int64) error
	DeleteCartItem(ctx context.Context, cartID, itemID uuid.UUID) error
	ClearCartItems(ctx context.Context, cartID uuid.UUID) error
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

type snapshotSource interface {
	GetSnapshot(ctx context.Context, id uuid.UUID) (catalog.Snapshot, error)
}

// Service owns cart mutations. Every mutation ends with a full pricing pass
// so persisted totals always reflect the current lines and adjustments.
type Service struct {
	store   Store
	catalog snapshotSource
	cartTTL time.Duration
	log     zerolog.Logger
	now     func() time.Time

	mu      sync.Mutex
	recalcs map[uuid.UUID]*Recalculator
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store   Store
	Catalog snapshotSource
	CartTTL time.Duration
	Logger  zerolog.Logger
	Now     func() time.Time
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("cart: store is required")
	}
	if cfg.Catalog == nil {
		return nil, errors.New("cart: catalog is required")
	}
	ttl := cfg.CartTTL
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:   cfg.Store,
		catalog: cfg.Catalog,
		cartTTL: ttl,
		log:     cfg.Logger,
		now:     now,
		recalcs: map[uuid.UUID]*Recalculator{},
	}, nil
}

// View is the full cart payload returned to clients.
type View struct {
	Cart      store.Cart       `json:"cart"`
	Items     []store.CartItem `json:"items"`
	Indicator string           `json:"indicator"`
}

// MutationResult carries the refreshed cart plus any advisory notices
// produced while applying the mutation (quantity clamps and the like).
type MutationResult struct {
	View    View     `json:"view"`
	Notices []string `json:"notices,omitempty"`
}

// Create opens an empty Active cart.
func (s *Service) Create(ctx context.Context, userID *uuid.UUID) (store.Cart, error) {
	c, err := s.store.CreateCart(ctx, userID, s.now().Add(s.cartTTL))
	if err != nil {
		return store.Cart{}, fmt.Errorf("cart: create: %w", err)
	}
	s.log.Info().Str("cart_id", c.ID.String()).Msg("cart created")
	return c, nil
}

// Get returns the cart with its lines.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (View, error) {
	return s.view(ctx, s.store, id)
}

// AddItem adds a tradeline to the cart, or tops up the existing line for the
// same tradeline. The catalog price always overwrites whatever rate the line
// carried, and the quantity is clamped to the available spots.
func (s *Service) AddItem(ctx context.Context, cartID, tradelineID uuid.UUID, quantity int64) (MutationResult, error) {
	if quantity < 1 {
		return MutationResult{}, fmt.Errorf("%w: quantity must be at least 1", ErrInvalidInput)
	}
	if _, err := s.mutableCart(ctx, cartID); err != nil {
		return MutationResult{}, err
	}

	snap, err := s.catalog.GetSnapshot(ctx, tradelineID)
	if err != nil {
		// no line is added when the lookup fails
		if errors.Is(err, catalog.ErrNotFound) {
			return MutationResult{}, ErrTradelineNotFound
		}
		return MutationResult{}, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	var notices []string
	rec := s.recalcFor(cartID)
	defer s.releaseRecalc(cartID, rec)
	err = s.store.InTx(ctx, func(tx Store) error {
		existing, err := tx.FindCartItemByTradeline(ctx, cartID, tradelineID)
		switch {
		case err == nil:
			next := existing.Quantity + quantity
			next, notices = clampQuantity(next, snap, notices)
			rate := snap.Price
			amount := next * rate
			if err := tx.UpdateCartItemPricing(ctx, existing.ID, next, &rate, &amount); err != nil {
				return err
			}
		case errors.Is(err, pgx.ErrNoRows):
			qty := quantity
			qty, notices = clampQuantity(qty, snap, notices)
			rate := snap.Price
			amount := qty * rate
			if _, err := tx.InsertCartItem(ctx, store.CartItem{
				CartID:        cartID,
				TradelineID:   tradelineID,
				TradelineName: snap.Bank,
				Quantity:      qty,
				UnitRate:      &rate,
				Amount:        &amount,
			}); err != nil {
				return err
			}
		default:
			return err
		}
		rec.MarkDirty()
		return s.runRecalc(ctx, tx, cartID, rec, "add_item")
	})
	if err != nil {
		return MutationResult{}, fmt.Errorf("cart: add item: %w", err)
	}
	return s.mutationResult(ctx, cartID, notices)
}

// UpdateQuantity rewrites the quantity of a line, clamping to available
// spots when the catalog snapshot is reachable.
func (s *Service) UpdateQuantity(ctx context.Context, cartID, itemID uuid.UUID, quantity int64) (MutationResult, error) {
	if quantity < 0 {
		return MutationResult{}, fmt.Errorf("%w: quantity must not be negative", ErrInvalidInput)
	}
	if _, err := s.mutableCart(ctx, cartID); err != nil {
		return MutationResult{}, err
	}

	item, err := s.store.GetCartItem(ctx, cartID, itemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MutationResult{}, ErrItemNotFound
		}
		return MutationResult{}, err
	}

	var notices []string
	if snap, err := s.catalog.GetSnapshot(ctx, item.TradelineID); err == nil {
		quantity, notices = clampQuantity(quantity, snap, notices)
	}

	rec := s.recalcFor(cartID)
	defer s.releaseRecalc(cartID, rec)
	err = s.store.InTx(ctx, func(tx Store) error {
		amount := lineAmount(quantity, item.UnitRate)
		if err := tx.UpdateCartItemPricing(ctx, itemID, quantity, item.UnitRate, amount); err != nil {
			return err
		}
		rec.MarkDirty()
		return s.runRecalc(ctx, tx, cartID, rec, "update_quantity")
	})
	if err != nil {
		return MutationResult{}, fmt.Errorf("cart: update quantity: %w", err)
	}
	return s.mutationResult(ctx, cartID, notices)
}

// UpdateRate sets a manual unit rate on a line. A later AddItem for the same
// tradeline overwrites it with the catalog price again.
func (s *Service) UpdateRate(ctx context.Context, cartID, itemID uuid.UUID, rate int64) (MutationResult, error) {
	if rate < 0 {
		return MutationResult{}, fmt.Errorf("%w: rate must not be negative", ErrInvalidInput)
	}
	if _, err := s.mutableCart(ctx, cartID); err != nil {
		return MutationResult{}, err
	}

	item, err := s.store.GetCartItem(ctx, cartID, itemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MutationResult{}, ErrItemNotFound
		}
		return MutationResult{}, err
	}

	rec := s.recalcFor(cartID)
	defer s.releaseRecalc(cartID, rec)
	err = s.store.InTx(ctx, func(tx Store) error {
		amount := lineAmount(item.Quantity, &rate)
		if err := tx.UpdateCartItemPricing(ctx, itemID, item.Quantity, &rate, amount); err != nil {
			return err
		}
		rec.MarkDirty()
		return s.runRecalc(ctx, tx, cartID, rec, "update_rate")
	})
	if err != nil {
		return MutationResult{}, fmt.Errorf("cart: update rate: %w", err)
	}
	return s.mutationResult(ctx, cartID, nil)
}

// RemoveItem deletes one line.
func (s *Service) RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) (MutationResult, error) {
	if _, err := s.mutableCart(ctx, cartID); err != nil {
		return MutationResult{}, err
	}
	if _, err := s.store.GetCartItem(ctx, cartID, itemID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MutationResult{}, ErrItemNotFound
		}
		return MutationResult{}, err
	}
	rec := s.recalcFor(cartID)
	defer s.releaseRecalc(cartID, rec)
	err := s.store.InTx(ctx, func(tx Store) error {
		if err := tx.DeleteCartItem(ctx, cartID, itemID); err != nil {
			return err
		}
		rec.MarkDirty()
		return s.runRecalc(ctx, tx, cartID, rec, "remove_item")
	})
	if err != nil {
		return MutationResult{}, fmt.Errorf("cart: remove item: %w", err)
	}
	return s.mutationResult(ctx, cartID, nil)
}

// Clear removes every line.
func (s *Service) Clear(ctx context.Context, cartID uuid.UUID) (MutationResult, error) {
	if _, err := s.mutableCart(ctx, cartID); err != nil {
		return MutationResult{}, err
	}
	rec := s.recalcFor(cartID)
	defer s.releaseRecalc(cartID, rec)
	err := s.store.InTx(ctx, func(tx Store) error {
		if err := tx.ClearCartItems(ctx, cartID); err != nil {
			return err
		}
		rec.MarkDirty()
		return s.runRecalc(ctx, tx, cartID, rec, "clear")
	})
	if err != nil {
		return MutationResult{}, fmt.Errorf("cart: clear: %w", err)
	}
	return s.mutationResult(ctx, cartID, nil)
}

// SetAdjustments rewrites the discount and tax inputs.
func (s *Service) SetAdjustments(ctx context.Context, cartID uuid.UUID, discount, tax int64) (MutationResult, error) {
	if discount < 0 || tax < 0 {
		return MutationResult{}, fmt.Errorf("%w: adjustments must not be negative", ErrInvalidInput)
	}
	if _, err := s.mutableCart(ctx, cartID); err != nil {
		return MutationResult{}, err
	}
	rec := s.recalcFor(cartID)
	defer s.releaseRecalc(cartID, rec)
	err := s.store.InTx(ctx, func(tx Store) error {
		if err := tx.UpdateCartAdjustments(ctx, cartID, discount, tax); err != nil {
			return err
		}
		rec.MarkDirty()
		return s.runRecalc(ctx, tx, cartID, rec, "adjustments")
	})
	if err != nil {
		return MutationResult{}, fmt.Errorf("cart: set adjustments: %w", err)
	}
	return s.mutationResult(ctx, cartID, nil)
}

// SetPaymentMode records the payment mode selected for checkout.
func (s *Service) SetPaymentMode(ctx context.Context, cartID uuid.UUID, mode string) error {
	if _, err := s.mutableCart(ctx, cartID); err != nil {
		return err
	}
	if err := s.store.UpdateCartPaymentMode(ctx, cartID, mode); err != nil {
		return fmt.Errorf("cart: set payment mode: %w", err)
	}
	return nil
}

// SweepExpired transitions Active carts past their expiry to Expired.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.store.MarkExpiredCarts(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("cart: expire sweep: %w", err)
	}
	if n > 0 {
		s.log.Info().Int64("expired", n).Msg("expired stale carts")
	}
	return n, nil
}

// RecalcState exposes the refresh cycle of a cart for diagnostics.
func (s *Service) RecalcState(cartID uuid.UUID) RecalcState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.recalcs[cartID]; ok {
		return rec.State()
	}
	return RecalcIdle
}

func (s *Service) mutableCart(ctx context.Context, id uuid.UUID) (store.Cart, error) {
	c, err := s.store.GetCart(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Cart{}, ErrNotFound
		}
		return store.Cart{}, err
	}
	status, err := ParseStatus(c.Status)
	if err != nil {
		return store.Cart{}, err
	}
	if !status.Mutable() {
		return store.Cart{}, fmt.Errorf("%w: status is %s", ErrReadOnly, status)
	}
	return c, nil
}

func (s *Service) recalcFor(cartID uuid.UUID) *Recalculator {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recalcs[cartID]
	if !ok {
		rec = &Recalculator{}
		s.recalcs[cartID] = rec
	}
	return rec
}

// releaseRecalc drops a drained recalculator so the map does not accumulate
// an entry for every cart the process ever touched. A dirty recalculator is
// kept; the next mutation on the cart retries the owed pass.
func (s *Service) releaseRecalc(cartID uuid.UUID, rec *Recalculator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.recalcs[cartID]; ok && cur == rec && cur.State() == RecalcIdle {
		delete(s.recalcs, cartID)
	}
}

// runRecalc drains the recalculator with full pricing passes inside the
// caller's transaction.
func (s *Service) runRecalc(ctx context.Context, tx Store, cartID uuid.UUID, rec *Recalculator, trigger string) error {
	return rec.Run(ctx, func(ctx context.Context) error {
		return s.recalcPass(ctx, tx, cartID, trigger)
	})
}

// recalcPass recomputes every line amount and the cart totals from scratch.
func (s *Service) recalcPass(ctx context.Context, tx Store, cartID uuid.UUID, trigger string) error {
	ctx, span := otel.Tracer("cart.Service").Start(ctx, "CartService.recalcPass")
	defer span.End()
	span.SetAttributes(attribute.String("cart.id", cartID.String()), attribute.String("recalc.trigger", trigger))
	start := time.Now()

	c, err := tx.GetCart(ctx, cartID)
	if err != nil {
		return err
	}
	items, err := tx.ListCartItems(ctx, cartID)
	if err != nil {
		return err
	}

	lines := make([]pricing.Line, 0, len(items))
	for _, it := range items {
		qty := it.Quantity
		line := pricing.Line{Qty: &qty, UnitRate: it.UnitRate}
		amount, defined := line.Amount()
		var stored *int64
		if defined {
			stored = &amount
		}
		if !sameAmount(stored, it.Amount) {
			if err := tx.UpdateCartItemPricing(ctx, it.ID, it.Quantity, it.UnitRate, stored); err != nil {
				return err
			}
		}
		lines = append(lines, line)
	}

	summary := pricing.Compute(lines, pricing.Adjustments{Discount: c.DiscountAmount, Tax: c.TaxAmount})
	if err := tx.UpdateCartTotals(ctx, cartID, summary.Subtotal, summary.Total); err != nil {
		return err
	}

	if obs.CartRecalcTotal != nil {
		obs.CartRecalcTotal.WithLabelValues(trigger).Inc()
	}
	if obs.CartRecalcLatency != nil {
		obs.CartRecalcLatency.Observe(obs.DurationMillis(time.Since(start)))
	}
	return nil
}

func (s *Service) mutationResult(ctx context.Context, cartID uuid.UUID, notices []string) (MutationResult, error) {
	view, err := s.view(ctx, s.store, cartID)
	if err != nil {
		return MutationResult{}, err
	}
	return MutationResult{View: view, Notices: notices}, nil
}

func (s *Service) view(ctx context.Context, st Store, id uuid.UUID) (View, error) {
	c, err := st.GetCart(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return View{}, ErrNotFound
		}
		return View{}, err
	}
	items, err := st.ListCartItems(ctx, id)
	if err != nil {
		return View{}, err
	}
	status, err := ParseStatus(c.Status)
	if err != nil {
		return View{}, err
	}
	return View{Cart: c, Items: items, Indicator: status.Indicator()}, nil
}

func clampQuantity(qty int64, snap catalog.Snapshot, notices []string) (int64, []string) {
	if qty <= snap.MaxSpots {
		return qty, notices
	}
	if obs.CartItemClampTotal != nil {
		obs.CartItemClampTotal.Inc()
	}
	return snap.MaxSpots, append(notices,
		fmt.Sprintf("Quantity adjusted to maximum available spots: %d", snap.MaxSpots))
}

func lineAmount(qty int64, rate *int64) *int64 {
	line := pricing.Line{Qty: &qty, UnitRate: rate}
	amount, defined := line.Amount()
	if !defined {
		return nil
	}
	return &amount
}

func sameAmount(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
