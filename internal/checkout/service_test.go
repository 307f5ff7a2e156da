package checkout_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/rockettradeline/backend-market/internal/checkout"
	"github.com/rockettradeline/backend-market/internal/store"
)

type fakeCheckoutStore struct {
	mu     sync.Mutex
	carts  map[uuid.UUID]store.Cart
	items  map[uuid.UUID][]store.CartItem
	orders []store.Order
}

func newFakeCheckoutStore() *fakeCheckoutStore {
	return &fakeCheckoutStore{
		carts: map[uuid.UUID]store.Cart{},
		items: map[uuid.UUID][]store.CartItem{},
	}
}

func (f *fakeCheckoutStore) GetCart(_ context.Context, id uuid.UUID) (store.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.carts[id]
	if !ok {
		return store.Cart{}, pgx.ErrNoRows
	}
	return c, nil
}

func (f *fakeCheckoutStore) ListCartItems(_ context.Context, cartID uuid.UUID) ([]store.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[cartID], nil
}

func (f *fakeCheckoutStore) UpdateCartTotals(_ context.Context, id uuid.UUID, subtotal, total int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.carts[id]
	c.Subtotal = subtotal
	c.TotalAmount = total
	f.carts[id] = c
	return nil
}

func (f *fakeCheckoutStore) UpdateCartStatus(_ context.Context, id uuid.UUID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.carts[id]
	c.Status = status
	f.carts[id] = c
	return nil
}

func (f *fakeCheckoutStore) CreateOrder(_ context.Context, o store.Order) (store.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o.ID = uuid.New()
	o.CreatedAt = time.Now()
	f.orders = append(f.orders, o)
	return o, nil
}

func (f *fakeCheckoutStore) InTx(_ context.Context, fn func(checkout.Store) error) error {
	return fn(f)
}

type recordingSink struct {
	topics []string
}

func (s *recordingSink) Publish(_ context.Context, topic string, _ uuid.UUID, _ any) error {
	s.topics = append(s.topics, topic)
	return nil
}

func newCheckoutService(t *testing.T, st *fakeCheckoutStore, sink *recordingSink) *checkout.Service {
	t.Helper()
	svc, err := checkout.NewService(checkout.ServiceConfig{
		Store:    st,
		Events:   sink,
		Currency: "USD",
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)
	return svc
}

func seedCart(st *fakeCheckoutStore, userID uuid.UUID, paymentMode string) uuid.UUID {
	cartID := uuid.New()
	c := store.Cart{
		ID:             cartID,
		UserID:         &userID,
		Status:         "Active",
		DiscountAmount: 10,
		TaxAmount:      5,
		ExpiresAt:      time.Now().Add(time.Hour),
	}
	if paymentMode != "" {
		c.PaymentMode = &paymentMode
	}
	st.carts[cartID] = c

	rate := int64(100)
	amount := int64(200)
	st.items[cartID] = []store.CartItem{{
		ID: uuid.New(), CartID: cartID, TradelineID: uuid.New(),
		TradelineName: "Chase", Quantity: 2, UnitRate: &rate, Amount: &amount,
	}}
	return cartID
}

func TestCheckoutCreatesOrderAndFreezesCart(t *testing.T) {
	st := newFakeCheckoutStore()
	sink := &recordingSink{}
	svc := newCheckoutService(t, st, sink)
	userID := uuid.New()
	cartID := seedCart(st, userID, "Zelle")

	order, err := svc.Checkout(context.Background(), cartID, userID)
	require.NoError(t, err)
	require.EqualValues(t, 200, order.Subtotal)
	require.EqualValues(t, 195, order.Total)
	require.Equal(t, "USD", order.Currency)
	require.Equal(t, "Pending", order.Status)

	c, err := st.GetCart(context.Background(), cartID)
	require.NoError(t, err)
	require.Equal(t, "Checked Out", c.Status)
	require.EqualValues(t, 195, c.TotalAmount)
	require.Equal(t, []string{"order.created"}, sink.topics)
}

func TestCheckoutRequiresPaymentMode(t *testing.T) {
	st := newFakeCheckoutStore()
	svc := newCheckoutService(t, st, &recordingSink{})
	userID := uuid.New()
	cartID := seedCart(st, userID, "")

	_, err := svc.Checkout(context.Background(), cartID, userID)
	require.ErrorIs(t, err, checkout.ErrNoPaymentMode)
	require.Empty(t, st.orders)
}

func TestCheckoutRejectsEmptyCart(t *testing.T) {
	st := newFakeCheckoutStore()
	svc := newCheckoutService(t, st, &recordingSink{})
	userID := uuid.New()
	cartID := seedCart(st, userID, "Zelle")
	st.items[cartID] = nil

	_, err := svc.Checkout(context.Background(), cartID, userID)
	require.ErrorIs(t, err, checkout.ErrEmptyCart)
}

func TestCheckoutRejectsForeignCart(t *testing.T) {
	st := newFakeCheckoutStore()
	svc := newCheckoutService(t, st, &recordingSink{})
	cartID := seedCart(st, uuid.New(), "Zelle")

	_, err := svc.Checkout(context.Background(), cartID, uuid.New())
	require.ErrorIs(t, err, checkout.ErrNotOwner)
}

func TestCheckoutRejectsCheckedOutCart(t *testing.T) {
	st := newFakeCheckoutStore()
	svc := newCheckoutService(t, st, &recordingSink{})
	userID := uuid.New()
	cartID := seedCart(st, userID, "Zelle")

	_, err := svc.Checkout(context.Background(), cartID, userID)
	require.NoError(t, err)
	_, err = svc.Checkout(context.Background(), cartID, userID)
	require.ErrorIs(t, err, checkout.ErrNotActive)
}
