package payment

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rockettradeline/backend-market/internal/common"
	"github.com/rockettradeline/backend-market/internal/paymethod"
)

// Handler exposes payment request and configuration endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Create handles POST /api/v1/payments.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		CartID string `json:"cartId"`
		Method string `json:"method"`
	}
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "malformed request body", nil)
		return
	}
	cartID, err := uuid.Parse(payload.CartID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "cartId must be a UUID", nil)
		return
	}
	method, err := paymethod.Parse(payload.Method)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "UNKNOWN_METHOD", "unknown payment method", nil)
		return
	}

	var userID *uuid.UUID
	if raw, ok := common.UserID(r.Context()); ok {
		if parsed, err := uuid.Parse(raw); err == nil {
			userID = &parsed
		}
	}

	rec, err := h.service.Create(r.Context(), CreateParams{CartID: cartID, UserID: userID, Method: method})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": rec})
}

// Get handles GET /api/v1/payments/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}
	view, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// Complete handles POST /api/v1/payments/{id}/complete.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}
	var payload struct {
		TransactionID string `json:"transactionId"`
	}
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "malformed request body", nil)
		return
	}
	if payload.TransactionID == "" {
		common.JSONError(w, http.StatusBadRequest, "MISSING_TRANSACTION", "transactionId is required", nil)
		return
	}
	rec, err := h.service.MarkCompleted(r.Context(), id, payload.TransactionID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rec})
}

// Cancel handles POST /api/v1/payments/{id}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}
	rec, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rec})
}

// Verify handles POST /api/v1/payments/{id}/verify. Admin only.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}
	verifier, _ := common.UserID(r.Context())
	rec, err := h.service.Verify(r.Context(), id, verifier)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rec})
}

// Fees handles POST /api/v1/payments/fees.
func (h *Handler) Fees(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Amount int64  `json:"amount"`
		Method string `json:"method"`
	}
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "malformed request body", nil)
		return
	}
	method, err := paymethod.Parse(payload.Method)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "UNKNOWN_METHOD", "unknown payment method", nil)
		return
	}
	breakdown, err := h.service.CalculateFees(r.Context(), payload.Amount, method)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": breakdown})
}

// ListConfigs handles GET /api/v1/admin/payment-configs.
func (h *Handler) ListConfigs(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.ListConfigs(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// SaveConfig handles PUT /api/v1/admin/payment-configs/{method}.
func (h *Handler) SaveConfig(w http.ResponseWriter, r *http.Request) {
	method, err := paymethod.Parse(chi.URLParam(r, "method"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "UNKNOWN_METHOD", "unknown payment method", nil)
		return
	}
	var payload struct {
		DisplayName  string  `json:"displayName"`
		PaymentType  string  `json:"paymentType"`
		IsActive     bool    `json:"isActive"`
		MinAmount    int64   `json:"minAmount"`
		MaxAmount    int64   `json:"maxAmount"`
		FixedFee     int64   `json:"fixedFee"`
		PercentFee   float64 `json:"percentFee"`
		AccountEmail string  `json:"accountEmail"`
		PhoneNumber  string  `json:"phoneNumber"`
		AccountID    string  `json:"accountId"`
		APIKey       string  `json:"apiKey"`
		APISecret    string  `json:"apiSecret"`
		SandboxMode  bool    `json:"sandboxMode"`
		Instructions string  `json:"instructions"`
		Icon         string  `json:"icon"`
	}
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "malformed request body", nil)
		return
	}
	cfg := paymethod.Config{
		Method:       method,
		DisplayName:  payload.DisplayName,
		PaymentType:  payload.PaymentType,
		IsActive:     payload.IsActive,
		MinAmount:    payload.MinAmount,
		MaxAmount:    payload.MaxAmount,
		FixedFee:     payload.FixedFee,
		PercentFee:   payload.PercentFee,
		AccountEmail: payload.AccountEmail,
		PhoneNumber:  payload.PhoneNumber,
		AccountID:    payload.AccountID,
		APIKey:       payload.APIKey,
		APISecret:    payload.APISecret,
		SandboxMode:  payload.SandboxMode,
		Instructions: payload.Instructions,
		Icon:         payload.Icon,
	}
	rec, notices, err := h.service.SaveConfig(r.Context(), cfg)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rec, "notices": notices})
}

// TestConfig handles POST /api/v1/admin/payment-configs/{method}/test.
func (h *Handler) TestConfig(w http.ResponseWriter, r *http.Request) {
	method, err := paymethod.Parse(chi.URLParam(r, "method"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "UNKNOWN_METHOD", "unknown payment method", nil)
		return
	}
	var payload struct {
		TestAmount int64 `json:"testAmount"`
	}
	_ = common.DecodeJSON(r, &payload)
	msg, err := h.service.TestConfiguration(r.Context(), method, payload.TestAmount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"success": true, "message": msg})
}

// SamplePayment handles POST /api/v1/admin/payment-configs/{method}/sample.
func (h *Handler) SamplePayment(w http.ResponseWriter, r *http.Request) {
	method, err := paymethod.Parse(chi.URLParam(r, "method"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "UNKNOWN_METHOD", "unknown payment method", nil)
		return
	}
	var payload struct {
		Amount        int64  `json:"amount"`
		CustomerEmail string `json:"customerEmail"`
	}
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "malformed request body", nil)
		return
	}
	sample, err := h.service.CreateSample(r.Context(), method, payload.Amount, payload.CustomerEmail)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": sample})
}

func (h *Handler) requestID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "payment id must be a UUID", nil)
		return uuid.UUID{}, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "payment request not found", nil)
	case errors.Is(err, ErrCartNotFound):
		common.JSONError(w, http.StatusNotFound, "CART_NOT_FOUND", "cart not found", nil)
	case errors.Is(err, ErrConfigNotFound):
		common.JSONError(w, http.StatusUnprocessableEntity, "CONFIG_NOT_FOUND", "no active configuration for method", nil)
	case errors.Is(err, ErrAmountOutOfRange):
		common.JSONError(w, http.StatusUnprocessableEntity, "AMOUNT_OUT_OF_RANGE", err.Error(), nil)
	case errors.Is(err, ErrEmptyCart):
		common.JSONError(w, http.StatusUnprocessableEntity, "EMPTY_CART", "cart total must be positive", nil)
	case errors.Is(err, ErrInvalidTransition):
		common.JSONError(w, http.StatusConflict, "INVALID_TRANSITION", err.Error(), nil)
	case errors.Is(err, paymethod.ErrAmountRange):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_RANGE", "minimum amount must be less than maximum amount", nil)
	case errors.Is(err, paymethod.ErrMissingPhone), errors.Is(err, paymethod.ErrMissingAPIKey):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_CONFIG", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unexpected error", nil)
	}
}
