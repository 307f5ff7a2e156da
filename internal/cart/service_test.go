package cart_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/rockettradeline/backend-market/internal/cart"
	"github.com/rockettradeline/backend-market/internal/catalog"
	"github.com/rockettradeline/backend-market/internal/store"
)

type fakeCartStore struct {
	mu    sync.Mutex
	carts map[uuid.UUID]store.Cart
	items map[uuid.UUID]store.CartItem
}

func newFakeCartStore() *fakeCartStore {
	return &fakeCartStore{
		carts: map[uuid.UUID]store.Cart{},
		items: map[uuid.UUID]store.CartItem{},
	}
}

func (f *fakeCartStore) CreateCart(_ context.Context, userID *uuid.UUID, expiresAt time.Time) (store.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := store.Cart{ID: uuid.New(), UserID: userID, Status: "Active", ExpiresAt: expiresAt}
	f.carts[c.ID] = c
	return c, nil
}

func (f *fakeCartStore) GetCart(_ context.Context, id uuid.UUID) (store.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.carts[id]
	if !ok {
		return store.Cart{}, pgx.ErrNoRows
	}
	return c, nil
}

func (f *fakeCartStore) UpdateCartStatus(_ context.Context, id uuid.UUID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.carts[id]
	c.Status = status
	f.carts[id] = c
	return nil
}

func (f *fakeCartStore) UpdateCartPaymentMode(_ context.Context, id uuid.UUID, mode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.carts[id]
	c.PaymentMode = &mode
	f.carts[id] = c
	return nil
}

func (f *fakeCartStore) UpdateCartAdjustments(_ context.Context, id uuid.UUID, discount, tax int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.carts[id]
	c.DiscountAmount = discount
	c.TaxAmount = tax
	f.carts[id] = c
	return nil
}

func (f *fakeCartStore) UpdateCartTotals(_ context.Context, id uuid.UUID, subtotal, total int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.carts[id]
	c.Subtotal = subtotal
	c.TotalAmount = total
	f.carts[id] = c
	return nil
}

func (f *fakeCartStore) MarkExpiredCarts(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, c := range f.carts {
		if c.Status == "Active" && c.ExpiresAt.Before(now) {
			c.Status = "Expired"
			f.carts[id] = c
			n++
		}
	}
	return n, nil
}

func (f *fakeCartStore) ListCartItems(_ context.Context, cartID uuid.UUID) ([]store.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.CartItem
	for _, it := range f.items {
		if it.CartID == cartID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakeCartStore) GetCartItem(_ context.Context, cartID, itemID uuid.UUID) (store.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[itemID]
	if !ok || it.CartID != cartID {
		return store.CartItem{}, pgx.ErrNoRows
	}
	return it, nil
}

func (f *fakeCartStore) FindCartItemByTradeline(_ context.Context, cartID, tradelineID uuid.UUID) (store.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.items {
		if it.CartID == cartID && it.TradelineID == tradelineID {
			return it, nil
		}
	}
	return store.CartItem{}, pgx.ErrNoRows
}

func (f *fakeCartStore) InsertCartItem(_ context.Context, it store.CartItem) (store.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it.ID = uuid.New()
	f.items[it.ID] = it
	return it, nil
}

func (f *fakeCartStore) UpdateCartItemPricing(_ context.Context, itemID uuid.UUID, quantity int64, unitRate, amount *int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	it := f.items[itemID]
	it.Quantity = quantity
	it.UnitRate = unitRate
	it.Amount = amount
	f.items[itemID] = it
	return nil
}

func (f *fakeCartStore) DeleteCartItem(_ context.Context, cartID, itemID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if it, ok := f.items[itemID]; ok && it.CartID == cartID {
		delete(f.items, itemID)
	}
	return nil
}

func (f *fakeCartStore) ClearCartItems(_ context.Context, cartID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, it := range f.items {
		if it.CartID == cartID {
			delete(f.items, id)
		}
	}
	return nil
}

func (f *fakeCartStore) InTx(_ context.Context, fn func(cart.Store) error) error {
	return fn(f)
}

type fakeSnapshots struct {
	snaps map[uuid.UUID]catalog.Snapshot
	err   error
}

func (f *fakeSnapshots) GetSnapshot(_ context.Context, id uuid.UUID) (catalog.Snapshot, error) {
	if f.err != nil {
		return catalog.Snapshot{}, f.err
	}
	snap, ok := f.snaps[id]
	if !ok {
		return catalog.Snapshot{}, catalog.ErrNotFound
	}
	return snap, nil
}

func newCartService(t *testing.T, st *fakeCartStore, snaps *fakeSnapshots) *cart.Service {
	t.Helper()
	svc, err := cart.NewService(cart.ServiceConfig{
		Store:   st,
		Catalog: snaps,
		CartTTL: 30 * 24 * time.Hour,
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)
	return svc
}

func TestAddItemClampsQuantityToAvailableSpots(t *testing.T) {
	st := newFakeCartStore()
	tradelineID := uuid.New()
	snaps := &fakeSnapshots{snaps: map[uuid.UUID]catalog.Snapshot{
		tradelineID: {TradelineID: tradelineID, Bank: "Chase", Price: 45000, MaxSpots: 3},
	}}
	svc := newCartService(t, st, snaps)

	c, err := svc.Create(context.Background(), nil)
	require.NoError(t, err)

	result, err := svc.AddItem(context.Background(), c.ID, tradelineID, 10)
	require.NoError(t, err)
	require.Len(t, result.Notices, 1)
	require.Contains(t, result.Notices[0], "3")
	require.Len(t, result.View.Items, 1)
	require.EqualValues(t, 3, result.View.Items[0].Quantity)
	require.EqualValues(t, 3*45000, result.View.Cart.Subtotal)
}

func TestAddItemWithinSpotsNoNotice(t *testing.T) {
	st := newFakeCartStore()
	tradelineID := uuid.New()
	snaps := &fakeSnapshots{snaps: map[uuid.UUID]catalog.Snapshot{
		tradelineID: {TradelineID: tradelineID, Bank: "Chase", Price: 45000, MaxSpots: 3},
	}}
	svc := newCartService(t, st, snaps)

	c, err := svc.Create(context.Background(), nil)
	require.NoError(t, err)

	result, err := svc.AddItem(context.Background(), c.ID, tradelineID, 2)
	require.NoError(t, err)
	require.Empty(t, result.Notices)
	require.EqualValues(t, 2, result.View.Items[0].Quantity)
}

func TestAddItemOverwritesManualRateWithCatalogPrice(t *testing.T) {
	st := newFakeCartStore()
	tradelineID := uuid.New()
	snaps := &fakeSnapshots{snaps: map[uuid.UUID]catalog.Snapshot{
		tradelineID: {TradelineID: tradelineID, Bank: "Amex", Price: 30000, MaxSpots: 5},
	}}
	svc := newCartService(t, st, snaps)

	c, err := svc.Create(context.Background(), nil)
	require.NoError(t, err)
	result, err := svc.AddItem(context.Background(), c.ID, tradelineID, 1)
	require.NoError(t, err)
	itemID := result.View.Items[0].ID

	result, err = svc.UpdateRate(context.Background(), c.ID, itemID, 99)
	require.NoError(t, err)
	require.EqualValues(t, 99, *result.View.Items[0].UnitRate)

	// adding the same tradeline again restores the catalog price
	result, err = svc.AddItem(context.Background(), c.ID, tradelineID, 1)
	require.NoError(t, err)
	require.EqualValues(t, 30000, *result.View.Items[0].UnitRate)
	require.EqualValues(t, 2, result.View.Items[0].Quantity)
}

func TestAddItemFailSoftOnCatalogError(t *testing.T) {
	st := newFakeCartStore()
	snaps := &fakeSnapshots{err: errors.New("redis down")}
	svc := newCartService(t, st, snaps)

	c, err := svc.Create(context.Background(), nil)
	require.NoError(t, err)

	_, err = svc.AddItem(context.Background(), c.ID, uuid.New(), 1)
	require.ErrorIs(t, err, cart.ErrCatalogUnavailable)

	view, err := svc.Get(context.Background(), c.ID)
	require.NoError(t, err)
	require.Empty(t, view.Items)
}

func TestAddItemUnknownTradeline(t *testing.T) {
	st := newFakeCartStore()
	svc := newCartService(t, st, &fakeSnapshots{snaps: map[uuid.UUID]catalog.Snapshot{}})

	c, err := svc.Create(context.Background(), nil)
	require.NoError(t, err)

	_, err = svc.AddItem(context.Background(), c.ID, uuid.New(), 1)
	require.ErrorIs(t, err, cart.ErrTradelineNotFound)
}

func TestTotalsFollowAdjustments(t *testing.T) {
	st := newFakeCartStore()
	lineA := uuid.New()
	lineB := uuid.New()
	snaps := &fakeSnapshots{snaps: map[uuid.UUID]catalog.Snapshot{
		lineA: {TradelineID: lineA, Bank: "Chase", Price: 50, MaxSpots: 10},
		lineB: {TradelineID: lineB, Bank: "Amex", Price: 30, MaxSpots: 10},
	}}
	svc := newCartService(t, st, snaps)

	c, err := svc.Create(context.Background(), nil)
	require.NoError(t, err)
	_, err = svc.AddItem(context.Background(), c.ID, lineA, 2)
	require.NoError(t, err)
	_, err = svc.AddItem(context.Background(), c.ID, lineB, 1)
	require.NoError(t, err)

	result, err := svc.SetAdjustments(context.Background(), c.ID, 10, 5)
	require.NoError(t, err)
	require.EqualValues(t, 130, result.View.Cart.Subtotal)
	require.EqualValues(t, 125, result.View.Cart.TotalAmount)

	// repeating the same adjustments yields identical totals
	result, err = svc.SetAdjustments(context.Background(), c.ID, 10, 5)
	require.NoError(t, err)
	require.EqualValues(t, 130, result.View.Cart.Subtotal)
	require.EqualValues(t, 125, result.View.Cart.TotalAmount)
}

func TestReadOnlyCartRejectsMutations(t *testing.T) {
	st := newFakeCartStore()
	tradelineID := uuid.New()
	snaps := &fakeSnapshots{snaps: map[uuid.UUID]catalog.Snapshot{
		tradelineID: {TradelineID: tradelineID, Bank: "Chase", Price: 45000, MaxSpots: 3},
	}}
	svc := newCartService(t, st, snaps)

	c, err := svc.Create(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, st.UpdateCartStatus(context.Background(), c.ID, "Checked Out"))

	_, err = svc.AddItem(context.Background(), c.ID, tradelineID, 1)
	require.ErrorIs(t, err, cart.ErrReadOnly)
	_, err = svc.Clear(context.Background(), c.ID)
	require.ErrorIs(t, err, cart.ErrReadOnly)
	_, err = svc.SetAdjustments(context.Background(), c.ID, 0, 0)
	require.ErrorIs(t, err, cart.ErrReadOnly)
}

func TestRemoveAndClearRecalculate(t *testing.T) {
	st := newFakeCartStore()
	tradelineID := uuid.New()
	snaps := &fakeSnapshots{snaps: map[uuid.UUID]catalog.Snapshot{
		tradelineID: {TradelineID: tradelineID, Bank: "Chase", Price: 100, MaxSpots: 5},
	}}
	svc := newCartService(t, st, snaps)

	c, err := svc.Create(context.Background(), nil)
	require.NoError(t, err)
	result, err := svc.AddItem(context.Background(), c.ID, tradelineID, 2)
	require.NoError(t, err)
	require.EqualValues(t, 200, result.View.Cart.Subtotal)

	result, err = svc.RemoveItem(context.Background(), c.ID, result.View.Items[0].ID)
	require.NoError(t, err)
	require.Empty(t, result.View.Items)
	require.Zero(t, result.View.Cart.Subtotal)
	require.Zero(t, result.View.Cart.TotalAmount)
}

func TestSweepExpired(t *testing.T) {
	st := newFakeCartStore()
	svc := newCartService(t, st, &fakeSnapshots{})

	stale := store.Cart{ID: uuid.New(), Status: "Active", ExpiresAt: time.Now().Add(-time.Hour)}
	fresh := store.Cart{ID: uuid.New(), Status: "Active", ExpiresAt: time.Now().Add(time.Hour)}
	st.carts[stale.ID] = stale
	st.carts[fresh.ID] = fresh

	n, err := svc.SweepExpired(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	c, err := st.GetCart(context.Background(), stale.ID)
	require.NoError(t, err)
	require.Equal(t, "Expired", c.Status)
}
