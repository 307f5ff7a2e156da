package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/rockettradeline/backend-market/internal/obs"
	"github.com/rockettradeline/backend-market/internal/paymethod"
	"github.com/rockettradeline/backend-market/internal/store"
)

// Service errors surfaced to handlers.
var (
	ErrNotFound          = errors.New("payment: request not found")
	ErrConfigNotFound    = errors.New("payment: no active configuration for method")
	ErrAmountOutOfRange  = errors.New("payment: amount outside configured limits")
	ErrInvalidTransition = errors.New("payment: transition not allowed")
	ErrCartNotFound      = errors.New("payment: cart not found")
	ErrEmptyCart         = errors.New("payment: cart total must be positive")
)

type paymentStore interface {
	GetActivePaymentConfig(ctx context.Context, method string) (store.PaymentConfiguration, error)
	ListActivePaymentConfigs(ctx context.Context) ([]store.PaymentConfiguration, error)
	UpsertPaymentConfig(ctx context.Context, c store.PaymentConfiguration) (store.PaymentConfiguration, error)
	CreatePaymentRequest(ctx context.Context, p store.PaymentRequest) (store.PaymentRequest, error)
	GetPaymentRequest(ctx context.Context, id uuid.UUID) (store.PaymentRequest, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status string) error
	MarkPaymentCompleted(ctx context.Context, id uuid.UUID, transactionID string, completedAt time.Time) error
	MarkPaymentVerified(ctx context.Context, id uuid.UUID, verifiedBy string, verifiedAt time.Time) error
	ListPendingPayments(ctx context.Context, limit int32) ([]store.PaymentRequest, error)
	ExpirePendingPayments(ctx context.Context, now time.Time) (int64, error)
	GetCart(ctx context.Context, id uuid.UUID) (store.Cart, error)
}

type eventSink interface {
	Publish(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) error
}

// ProviderFor resolves the provider used to open a checkout for a method.
type ProviderFor func(method paymethod.Method, cfg paymethod.Config) Provider

// Service coordinates payment request lifecycle and fee computation.
type Service struct {
	store      paymentStore
	events     eventSink
	providers  ProviderFor
	requestTTL time.Duration
	currency   string
	log        zerolog.Logger
	now        func() time.Time
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store      paymentStore
	Events     eventSink
	Providers  ProviderFor
	RequestTTL time.Duration
	Currency   string
	Logger     zerolog.Logger
	Now        func() time.Time
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("payment: store is required")
	}
	ttl := cfg.RequestTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "USD"
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	providers := cfg.Providers
	if providers == nil {
		providers = func(method paymethod.Method, cfg paymethod.Config) Provider {
			return Manual{
				MethodName:   method.String(),
				AccountEmail: cfg.AccountEmail,
				PhoneNumber:  cfg.PhoneNumber,
				AccountID:    cfg.AccountID,
			}
		}
	}
	return &Service{
		store:      cfg.Store,
		events:     cfg.Events,
		providers:  providers,
		requestTTL: ttl,
		currency:   currency,
		log:        cfg.Logger,
		now:        now,
	}, nil
}

// FeeBreakdown is the result of a server-side fee computation.
type FeeBreakdown struct {
	Amount      int64 `json:"amount"`
	TotalFee    int64 `json:"totalFee"`
	TotalAmount int64 `json:"totalAmount"`
}

// MethodConfig loads and normalises the active configuration for a method.
func (s *Service) MethodConfig(ctx context.Context, method paymethod.Method) (paymethod.Config, error) {
	rec, err := s.store.GetActivePaymentConfig(ctx, method.String())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return paymethod.Config{}, ErrConfigNotFound
		}
		return paymethod.Config{}, fmt.Errorf("payment: load config: %w", err)
	}
	return configFromRecord(rec), nil
}

// CalculateFees computes the fee and grand total for an amount under the
// active configuration for the method.
func (s *Service) CalculateFees(ctx context.Context, amount int64, method paymethod.Method) (FeeBreakdown, error) {
	cfg, err := s.MethodConfig(ctx, method)
	if err != nil {
		return FeeBreakdown{}, err
	}
	if !cfg.InRange(amount) {
		return FeeBreakdown{}, fmt.Errorf("%w: %d not in [%d, %d]", ErrAmountOutOfRange, amount, cfg.MinAmount, cfg.MaxAmount)
	}
	fee := cfg.Fees(amount)
	return FeeBreakdown{Amount: amount, TotalFee: fee, TotalAmount: amount + fee}, nil
}

// CreateParams describes a new payment request.
type CreateParams struct {
	CartID uuid.UUID
	UserID *uuid.UUID
	Method paymethod.Method
}

// Create opens a payment request for a cart. The request is persisted in the
// Pending state with fees, provider checkout data and an expiry applied.
func (s *Service) Create(ctx context.Context, params CreateParams) (store.PaymentRequest, error) {
	ctx, span := otel.Tracer("payment.Service").Start(ctx, "PaymentService.Create")
	defer span.End()
	span.SetAttributes(
		attribute.String("cart.id", params.CartID.String()),
		attribute.String("payment.method", params.Method.String()),
	)

	cart, err := s.store.GetCart(ctx, params.CartID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.PaymentRequest{}, ErrCartNotFound
		}
		return store.PaymentRequest{}, fmt.Errorf("payment: load cart: %w", err)
	}
	if cart.TotalAmount <= 0 {
		return store.PaymentRequest{}, ErrEmptyCart
	}

	cfg, err := s.MethodConfig(ctx, params.Method)
	if err != nil {
		return store.PaymentRequest{}, err
	}
	if !cfg.InRange(cart.TotalAmount) {
		return store.PaymentRequest{}, fmt.Errorf("%w: %d not in [%d, %d]", ErrAmountOutOfRange, cart.TotalAmount, cfg.MinAmount, cfg.MaxAmount)
	}

	fee := cfg.Fees(cart.TotalAmount)
	expiry := s.now().Add(s.requestTTL)
	requestID := uuid.New()

	provider := s.providers(params.Method, cfg)
	checkout, err := provider.CreateCheckout(ctx, CheckoutRequest{
		RequestID:    requestID.String(),
		Amount:       cart.TotalAmount + fee,
		Currency:     s.currency,
		ExpiresAtSec: int(s.requestTTL.Seconds()),
	})
	if err != nil {
		span.RecordError(err)
		return store.PaymentRequest{}, fmt.Errorf("payment: open checkout: %w", err)
	}

	cartID := params.CartID
	rec := store.PaymentRequest{
		CartID:       &cartID,
		UserID:       params.UserID,
		Method:       params.Method.String(),
		Amount:       cart.TotalAmount,
		Fees:         fee,
		TotalAmount:  cart.TotalAmount + fee,
		Status:       StatusPending.String(),
		ExpiryDate:   expiry,
		Instructions: cfg.Instructions,
	}
	if checkout.PayloadJSON != "" {
		rec.PaymentData = &checkout.PayloadJSON
	}
	created, err := s.store.CreatePaymentRequest(ctx, rec)
	if err != nil {
		return store.PaymentRequest{}, fmt.Errorf("payment: create request: %w", err)
	}

	s.recordTransition(StatusDraft, StatusPending)
	s.log.Info().
		Str("payment_id", created.ID.String()).
		Str("cart_id", params.CartID.String()).
		Str("method", params.Method.String()).
		Int64("total_amount", created.TotalAmount).
		Msg("payment request created")
	s.publish(ctx, "payment.created", created.ID, created)
	return created, nil
}

// View is the display representation of a payment request. The data and
// response payloads are pretty-printed when they hold valid JSON and shown
// raw otherwise.
type View struct {
	Request         store.PaymentRequest `json:"request"`
	Indicator       string               `json:"indicator"`
	ExpiryState     string               `json:"expiryState"`
	HoursLeft       *int64               `json:"hoursLeft,omitempty"`
	PaymentData     string               `json:"paymentData,omitempty"`
	PaymentResponse string               `json:"paymentResponse,omitempty"`
}

// Get returns the display view for a payment request.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (View, error) {
	rec, err := s.store.GetPaymentRequest(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return View{}, ErrNotFound
		}
		return View{}, fmt.Errorf("payment: get request: %w", err)
	}

	status, err := ParseStatus(rec.Status)
	if err != nil {
		return View{}, err
	}
	view := View{
		Request:     rec,
		Indicator:   status.Indicator(),
		ExpiryState: ExpiryNormal.String(),
	}
	if status == StatusPending {
		now := s.now()
		state := ClassifyExpiry(rec.ExpiryDate, now)
		view.ExpiryState = state.String()
		if state != Expired {
			hours := int64(rec.ExpiryDate.Sub(now).Hours())
			view.HoursLeft = &hours
		}
	}
	if rec.PaymentData != nil {
		view.PaymentData = formatJSON(*rec.PaymentData)
	}
	if rec.PaymentResponse != nil {
		view.PaymentResponse = formatJSON(*rec.PaymentResponse)
	}
	return view, nil
}

// MarkCompleted transitions a pending request to Completed with its
// settlement transaction id.
func (s *Service) MarkCompleted(ctx context.Context, id uuid.UUID, transactionID string) (store.PaymentRequest, error) {
	rec, err := s.transitionTarget(ctx, id, StatusCompleted)
	if err != nil {
		return store.PaymentRequest{}, err
	}
	if err := s.store.MarkPaymentCompleted(ctx, id, transactionID, s.now()); err != nil {
		return store.PaymentRequest{}, fmt.Errorf("payment: mark completed: %w", err)
	}
	s.recordTransition(StatusPending, StatusCompleted)
	s.log.Info().Str("payment_id", id.String()).Str("transaction_id", transactionID).Msg("payment completed")
	s.publish(ctx, "payment.completed", id, map[string]any{"transactionId": transactionID, "cartId": rec.CartID})
	return s.store.GetPaymentRequest(ctx, id)
}

// Cancel transitions a pending request to Cancelled.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (store.PaymentRequest, error) {
	rec, err := s.store.GetPaymentRequest(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.PaymentRequest{}, ErrNotFound
		}
		return store.PaymentRequest{}, err
	}
	from, err := ParseStatus(rec.Status)
	if err != nil {
		return store.PaymentRequest{}, err
	}
	if !from.CanTransition(StatusCancelled) {
		return store.PaymentRequest{}, fmt.Errorf("%w: %s -> Cancelled", ErrInvalidTransition, from)
	}
	if err := s.store.UpdatePaymentStatus(ctx, id, StatusCancelled.String()); err != nil {
		return store.PaymentRequest{}, fmt.Errorf("payment: cancel: %w", err)
	}
	s.recordTransition(from, StatusCancelled)
	s.publish(ctx, "payment.cancelled", id, nil)
	return s.store.GetPaymentRequest(ctx, id)
}

// Verify transitions a completed request to Verified, recording the auditor.
func (s *Service) Verify(ctx context.Context, id uuid.UUID, verifiedBy string) (store.PaymentRequest, error) {
	rec, err := s.store.GetPaymentRequest(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.PaymentRequest{}, ErrNotFound
		}
		return store.PaymentRequest{}, err
	}
	from, err := ParseStatus(rec.Status)
	if err != nil {
		return store.PaymentRequest{}, err
	}
	if !from.CanTransition(StatusVerified) {
		return store.PaymentRequest{}, fmt.Errorf("%w: %s -> Verified", ErrInvalidTransition, from)
	}
	if err := s.store.MarkPaymentVerified(ctx, id, verifiedBy, s.now()); err != nil {
		return store.PaymentRequest{}, fmt.Errorf("payment: verify: %w", err)
	}
	s.recordTransition(from, StatusVerified)
	s.log.Info().Str("payment_id", id.String()).Str("verified_by", verifiedBy).Msg("payment verified")
	s.publish(ctx, "payment.verified", id, map[string]any{"verifiedBy": verifiedBy})
	return s.store.GetPaymentRequest(ctx, id)
}

// ExpireOverdue sweeps pending requests whose expiry date has passed.
func (s *Service) ExpireOverdue(ctx context.Context) (int64, error) {
	n, err := s.store.ExpirePendingPayments(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("payment: expire sweep: %w", err)
	}
	if n > 0 {
		if obs.PaymentExpiredTotal != nil {
			obs.PaymentExpiredTotal.Add(float64(n))
		}
		s.log.Info().Int64("expired", n).Msg("expired overdue payment requests")
	}
	return n, nil
}

// SaveConfig normalises, validates and persists a method configuration.
// The returned notices describe corrections applied during normalisation.
func (s *Service) SaveConfig(ctx context.Context, cfg paymethod.Config) (store.PaymentConfiguration, []string, error) {
	notices := cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return store.PaymentConfiguration{}, notices, err
	}
	rec, err := s.store.UpsertPaymentConfig(ctx, recordFromConfig(cfg))
	if err != nil {
		return store.PaymentConfiguration{}, notices, fmt.Errorf("payment: save config: %w", err)
	}
	return rec, notices, nil
}

// ListConfigs returns every active method configuration.
func (s *Service) ListConfigs(ctx context.Context) ([]store.PaymentConfiguration, error) {
	return s.store.ListActivePaymentConfigs(ctx)
}

// TestConfiguration performs a dry-run fee computation to confirm a method
// is usable, mirroring the admin diagnostics action.
func (s *Service) TestConfiguration(ctx context.Context, method paymethod.Method, testAmount int64) (string, error) {
	if testAmount <= 0 {
		testAmount = 10000
	}
	breakdown, err := s.CalculateFees(ctx, testAmount, method)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s configuration OK: fee %d on amount %d, total %d",
		method, breakdown.TotalFee, breakdown.Amount, breakdown.TotalAmount), nil
}

// SamplePayment is the non-persisted diagnostics payload.
type SamplePayment struct {
	Method        string    `json:"method"`
	Amount        int64     `json:"amount"`
	Fees          int64     `json:"fees"`
	TotalAmount   int64     `json:"totalAmount"`
	Status        string    `json:"status"`
	CustomerEmail string    `json:"customerEmail"`
	ExpiryDate    time.Time `json:"expiryDate"`
}

// CreateSample builds a sample payment payload for a method without
// persisting anything.
func (s *Service) CreateSample(ctx context.Context, method paymethod.Method, amount int64, customerEmail string) (SamplePayment, error) {
	breakdown, err := s.CalculateFees(ctx, amount, method)
	if err != nil {
		return SamplePayment{}, err
	}
	return SamplePayment{
		Method:        method.String(),
		Amount:        breakdown.Amount,
		Fees:          breakdown.TotalFee,
		TotalAmount:   breakdown.TotalAmount,
		Status:        StatusDraft.String(),
		CustomerEmail: customerEmail,
		ExpiryDate:    s.now().Add(s.requestTTL),
	}, nil
}

func (s *Service) transitionTarget(ctx context.Context, id uuid.UUID, next Status) (store.PaymentRequest, error) {
	rec, err := s.store.GetPaymentRequest(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.PaymentRequest{}, ErrNotFound
		}
		return store.PaymentRequest{}, err
	}
	from, err := ParseStatus(rec.Status)
	if err != nil {
		return store.PaymentRequest{}, err
	}
	if !from.CanTransition(next) {
		return store.PaymentRequest{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, next)
	}
	return rec, nil
}

func (s *Service) recordTransition(from, to Status) {
	if obs.PaymentTransitionTotal != nil {
		obs.PaymentTransitionTotal.WithLabelValues(from.String(), to.String()).Inc()
	}
}

func (s *Service) publish(ctx context.Context, topic string, id uuid.UUID, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, topic, id, payload); err != nil {
		s.log.Warn().Err(err).Str("topic", topic).Msg("event publish failed")
	}
}

func configFromRecord(rec store.PaymentConfiguration) paymethod.Config {
	method, err := paymethod.Parse(rec.Method)
	if err != nil {
		method = paymethod.BankTransfer
	}
	cfg := paymethod.Config{
		Method:      method,
		DisplayName: rec.DisplayName,
		PaymentType: rec.PaymentType,
		IsActive:    rec.IsActive,
		MinAmount:   rec.MinAmount,
		MaxAmount:   rec.MaxAmount,
		FixedFee:    rec.FixedFee,
		PercentFee:  rec.PercentFee,
		SandboxMode: rec.SandboxMode,
	}
	if rec.AccountEmail != nil {
		cfg.AccountEmail = *rec.AccountEmail
	}
	if rec.PhoneNumber != nil {
		cfg.PhoneNumber = *rec.PhoneNumber
	}
	if rec.AccountID != nil {
		cfg.AccountID = *rec.AccountID
	}
	if rec.APIKey != nil {
		cfg.APIKey = *rec.APIKey
	}
	if rec.APISecret != nil {
		cfg.APISecret = *rec.APISecret
	}
	cfg.Instructions = rec.Instructions
	cfg.Icon = rec.Icon
	return cfg
}

func recordFromConfig(cfg paymethod.Config) store.PaymentConfiguration {
	rec := store.PaymentConfiguration{
		Method:       cfg.Method.String(),
		DisplayName:  cfg.DisplayName,
		PaymentType:  cfg.PaymentType,
		IsActive:     cfg.IsActive,
		MinAmount:    cfg.MinAmount,
		MaxAmount:    cfg.MaxAmount,
		FixedFee:     cfg.FixedFee,
		PercentFee:   cfg.PercentFee,
		SandboxMode:  cfg.SandboxMode,
		Instructions: cfg.Instructions,
		Icon:         cfg.Icon,
	}
	setOpt := func(dst **string, v string) {
		if v != "" {
			value := v
			*dst = &value
		}
	}
	setOpt(&rec.AccountEmail, cfg.AccountEmail)
	setOpt(&rec.PhoneNumber, cfg.PhoneNumber)
	setOpt(&rec.AccountID, cfg.AccountID)
	setOpt(&rec.APIKey, cfg.APIKey)
	setOpt(&rec.APISecret, cfg.APISecret)
	return rec
}

// formatJSON pretty-prints a JSON payload, returning the raw value untouched
// when it does not parse.
func formatJSON(raw string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(raw), "", "  "); err != nil {
		return raw
	}
	return buf.String()
}
