package payment_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/rockettradeline/backend-market/internal/payment"
	"github.com/rockettradeline/backend-market/internal/paymethod"
	"github.com/rockettradeline/backend-market/internal/store"
)

type fakePaymentStore struct {
	mu       sync.Mutex
	configs  map[string]store.PaymentConfiguration
	requests map[uuid.UUID]store.PaymentRequest
	carts    map[uuid.UUID]store.Cart
}

func newFakePaymentStore() *fakePaymentStore {
	return &fakePaymentStore{
		configs:  map[string]store.PaymentConfiguration{},
		requests: map[uuid.UUID]store.PaymentRequest{},
		carts:    map[uuid.UUID]store.Cart{},
	}
}

func (f *fakePaymentStore) GetActivePaymentConfig(_ context.Context, method string) (store.PaymentConfiguration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.configs[method]
	if !ok || !c.IsActive {
		return store.PaymentConfiguration{}, pgx.ErrNoRows
	}
	return c, nil
}

func (f *fakePaymentStore) ListActivePaymentConfigs(_ context.Context) ([]store.PaymentConfiguration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.PaymentConfiguration
	for _, c := range f.configs {
		if c.IsActive {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakePaymentStore) UpsertPaymentConfig(_ context.Context, c store.PaymentConfiguration) (store.PaymentConfiguration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = uuid.New()
	f.configs[c.Method] = c
	return c, nil
}

func (f *fakePaymentStore) CreatePaymentRequest(_ context.Context, p store.PaymentRequest) (store.PaymentRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	f.requests[p.ID] = p
	return p, nil
}

func (f *fakePaymentStore) GetPaymentRequest(_ context.Context, id uuid.UUID) (store.PaymentRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.requests[id]
	if !ok {
		return store.PaymentRequest{}, pgx.ErrNoRows
	}
	return p, nil
}

func (f *fakePaymentStore) UpdatePaymentStatus(_ context.Context, id uuid.UUID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.requests[id]
	p.Status = status
	f.requests[id] = p
	return nil
}

func (f *fakePaymentStore) MarkPaymentCompleted(_ context.Context, id uuid.UUID, transactionID string, completedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.requests[id]
	p.Status = "Completed"
	p.TransactionID = &transactionID
	p.CompletedAt = &completedAt
	f.requests[id] = p
	return nil
}

func (f *fakePaymentStore) MarkPaymentVerified(_ context.Context, id uuid.UUID, verifiedBy string, verifiedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.requests[id]
	p.Status = "Verified"
	p.VerifiedBy = &verifiedBy
	p.VerifiedAt = &verifiedAt
	f.requests[id] = p
	return nil
}

func (f *fakePaymentStore) ListPendingPayments(_ context.Context, _ int32) ([]store.PaymentRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.PaymentRequest
	for _, p := range f.requests {
		if p.Status == "Pending" {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePaymentStore) ExpirePendingPayments(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, p := range f.requests {
		if p.Status == "Pending" && p.ExpiryDate.Before(now) {
			p.Status = "Expired"
			f.requests[id] = p
			n++
		}
	}
	return n, nil
}

func (f *fakePaymentStore) GetCart(_ context.Context, id uuid.UUID) (store.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.carts[id]
	if !ok {
		return store.Cart{}, pgx.ErrNoRows
	}
	return c, nil
}

func newPaymentService(t *testing.T, st *fakePaymentStore, now time.Time) *payment.Service {
	t.Helper()
	svc, err := payment.NewService(payment.ServiceConfig{
		Store:      st,
		RequestTTL: 24 * time.Hour,
		Currency:   "USD",
		Logger:     zerolog.Nop(),
		Now:        func() time.Time { return now },
	})
	require.NoError(t, err)
	return svc
}

func seedZelleConfig(st *fakePaymentStore) {
	email := "pay@example.com"
	st.configs["Zelle"] = store.PaymentConfiguration{
		Method:       "Zelle",
		DisplayName:  "Zelle",
		PaymentType:  "Bank Transfer",
		IsActive:     true,
		MinAmount:    100,
		MaxAmount:    250000,
		Instructions: "Send payment via Zelle using the provided email or phone number",
		AccountEmail: &email,
	}
}

func TestCreatePaymentRequest(t *testing.T) {
	st := newFakePaymentStore()
	seedZelleConfig(st)
	cartID := uuid.New()
	st.carts[cartID] = store.Cart{ID: cartID, Status: "Active", TotalAmount: 50000}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newPaymentService(t, st, now)

	rec, err := svc.Create(context.Background(), payment.CreateParams{CartID: cartID, Method: paymethod.Zelle})
	require.NoError(t, err)
	require.Equal(t, "Pending", rec.Status)
	require.EqualValues(t, 50000, rec.Amount)
	require.Zero(t, rec.Fees)
	require.EqualValues(t, 50000, rec.TotalAmount)
	require.Equal(t, now.Add(24*time.Hour), rec.ExpiryDate)
	require.Contains(t, rec.Instructions, "Zelle")
	require.NotNil(t, rec.PaymentData)
}

func TestCreateRejectsOutOfRangeAmount(t *testing.T) {
	st := newFakePaymentStore()
	seedZelleConfig(st)
	cartID := uuid.New()
	st.carts[cartID] = store.Cart{ID: cartID, Status: "Active", TotalAmount: 500000}

	svc := newPaymentService(t, st, time.Now())
	_, err := svc.Create(context.Background(), payment.CreateParams{CartID: cartID, Method: paymethod.Zelle})
	require.ErrorIs(t, err, payment.ErrAmountOutOfRange)
}

func TestCreateRejectsEmptyCart(t *testing.T) {
	st := newFakePaymentStore()
	seedZelleConfig(st)
	cartID := uuid.New()
	st.carts[cartID] = store.Cart{ID: cartID, Status: "Active", TotalAmount: 0}

	svc := newPaymentService(t, st, time.Now())
	_, err := svc.Create(context.Background(), payment.CreateParams{CartID: cartID, Method: paymethod.Zelle})
	require.ErrorIs(t, err, payment.ErrEmptyCart)
}

func TestCompleteThenVerify(t *testing.T) {
	st := newFakePaymentStore()
	seedZelleConfig(st)
	cartID := uuid.New()
	st.carts[cartID] = store.Cart{ID: cartID, Status: "Active", TotalAmount: 20000}

	svc := newPaymentService(t, st, time.Now())
	rec, err := svc.Create(context.Background(), payment.CreateParams{CartID: cartID, Method: paymethod.Zelle})
	require.NoError(t, err)

	// verifying a pending request is not allowed
	_, err = svc.Verify(context.Background(), rec.ID, "admin@example.com")
	require.ErrorIs(t, err, payment.ErrInvalidTransition)

	completed, err := svc.MarkCompleted(context.Background(), rec.ID, "TXN-1")
	require.NoError(t, err)
	require.Equal(t, "Completed", completed.Status)
	require.NotNil(t, completed.TransactionID)

	// a completed request cannot be cancelled
	_, err = svc.Cancel(context.Background(), rec.ID)
	require.ErrorIs(t, err, payment.ErrInvalidTransition)

	verified, err := svc.Verify(context.Background(), rec.ID, "admin@example.com")
	require.NoError(t, err)
	require.Equal(t, "Verified", verified.Status)
	require.Equal(t, "admin@example.com", *verified.VerifiedBy)

	// verified is terminal
	_, err = svc.MarkCompleted(context.Background(), rec.ID, "TXN-2")
	require.ErrorIs(t, err, payment.ErrInvalidTransition)
}

func TestGetViewFormatsPaymentData(t *testing.T) {
	st := newFakePaymentStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newPaymentService(t, st, now)

	validJSON := `{"a":1}`
	malformed := `{"a":1` // unterminated object
	id := uuid.New()
	st.requests[id] = store.PaymentRequest{
		ID:              id,
		Status:          "Pending",
		ExpiryDate:      now.Add(90 * time.Minute),
		PaymentData:     &validJSON,
		PaymentResponse: &malformed,
	}

	view, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "orange", view.Indicator)
	require.Equal(t, "expiring_soon", view.ExpiryState)
	require.NotNil(t, view.HoursLeft)
	require.EqualValues(t, 1, *view.HoursLeft)
	require.Contains(t, view.PaymentData, "\n")
	// malformed JSON is displayed exactly as stored
	require.Equal(t, malformed, view.PaymentResponse)
}

func TestExpireOverdue(t *testing.T) {
	st := newFakePaymentStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newPaymentService(t, st, now)

	overdue := uuid.New()
	fresh := uuid.New()
	st.requests[overdue] = store.PaymentRequest{ID: overdue, Status: "Pending", ExpiryDate: now.Add(-time.Hour)}
	st.requests[fresh] = store.PaymentRequest{ID: fresh, Status: "Pending", ExpiryDate: now.Add(time.Hour)}

	n, err := svc.ExpireOverdue(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	rec, err := st.GetPaymentRequest(context.Background(), overdue)
	require.NoError(t, err)
	require.Equal(t, "Expired", rec.Status)
	rec, err = st.GetPaymentRequest(context.Background(), fresh)
	require.NoError(t, err)
	require.Equal(t, "Pending", rec.Status)
}

func TestSaveConfigPercentGuard(t *testing.T) {
	st := newFakePaymentStore()
	svc := newPaymentService(t, st, time.Now())

	cfg := paymethod.Config{
		Method:     paymethod.CashApp,
		IsActive:   true,
		MinAmount:  100,
		MaxAmount:  250000,
		PercentFee: 120,
	}
	rec, notices, err := svc.SaveConfig(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, notices, 1)
	require.Zero(t, rec.PercentFee)

	bad := paymethod.Config{Method: paymethod.Zelle, IsActive: true, MinAmount: 500, MaxAmount: 100}
	_, _, err = svc.SaveConfig(context.Background(), bad)
	require.ErrorIs(t, err, paymethod.ErrAmountRange)
}

func TestWatcherStopsOnCancel(t *testing.T) {
	st := newFakePaymentStore()
	svc := newPaymentService(t, st, time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		payment.Watcher{Service: svc, Interval: 5 * time.Millisecond, Logger: zerolog.Nop()}.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop after context cancellation")
	}
}
