package cart

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rockettradeline/backend-market/internal/common"
	"github.com/rockettradeline/backend-market/internal/paymethod"
)

// Handler exposes cart endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Create handles POST /api/v1/carts.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var userID *uuid.UUID
	if raw, ok := common.UserID(r.Context()); ok {
		if parsed, err := uuid.Parse(raw); err == nil {
			userID = &parsed
		}
	}
	c, err := h.service.Create(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": c})
}

// Get handles GET /api/v1/carts/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.cartID(w, r)
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

// AddItem handles POST /api/v1/carts/{id}/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.cartID(w, r)
	if !ok {
		return
	}
	var payload struct {
		TradelineID string `json:"tradelineId"`
		Quantity    int64  `json:"quantity"`
	}
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "malformed request body", nil)
		return
	}
	tradelineID, err := uuid.Parse(payload.TradelineID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "tradelineId must be a UUID", nil)
		return
	}
	if payload.Quantity == 0 {
		payload.Quantity = 1
	}
	result, err := h.service.AddItem(r.Context(), id, tradelineID, payload.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result.View, "notices": result.Notices})
}

// UpdateItem handles PATCH /api/v1/carts/{id}/items/{itemId}.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.cartID(w, r)
	if !ok {
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "item id must be a UUID", nil)
		return
	}
	var payload struct {
		Quantity *int64 `json:"quantity"`
		Rate     *int64 `json:"rate"`
	}
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "malformed request body", nil)
		return
	}
	if payload.Quantity == nil && payload.Rate == nil {
		common.JSONError(w, http.StatusBadRequest, "EMPTY_UPDATE", "quantity or rate is required", nil)
		return
	}

	var result MutationResult
	if payload.Quantity != nil {
		result, err = h.service.UpdateQuantity(r.Context(), id, itemID, *payload.Quantity)
		if err != nil {
			h.writeError(w, err)
			return
		}
	}
	if payload.Rate != nil {
		result, err = h.service.UpdateRate(r.Context(), id, itemID, *payload.Rate)
		if err != nil {
			h.writeError(w, err)
			return
		}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result.View, "notices": result.Notices})
}

// RemoveItem handles DELETE /api/v1/carts/{id}/items/{itemId}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.cartID(w, r)
	if !ok {
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "item id must be a UUID", nil)
		return
	}
	result, err := h.service.RemoveItem(r.Context(), id, itemID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result.View})
}

// Clear handles POST /api/v1/carts/{id}/clear.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	id, ok := h.cartID(w, r)
	if !ok {
		return
	}
	result, err := h.service.Clear(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result.View})
}

// SetAdjustments handles PUT /api/v1/carts/{id}/adjustments.
func (h *Handler) SetAdjustments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.cartID(w, r)
	if !ok {
		return
	}
	var payload struct {
		DiscountAmount int64 `json:"discountAmount"`
		TaxAmount      int64 `json:"taxAmount"`
	}
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "malformed request body", nil)
		return
	}
	result, err := h.service.SetAdjustments(r.Context(), id, payload.DiscountAmount, payload.TaxAmount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result.View})
}

// SetPaymentMode handles PUT /api/v1/carts/{id}/payment-mode.
func (h *Handler) SetPaymentMode(w http.ResponseWriter, r *http.Request) {
	id, ok := h.cartID(w, r)
	if !ok {
		return
	}
	var payload struct {
		PaymentMode string `json:"paymentMode"`
	}
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "malformed request body", nil)
		return
	}
	if _, err := paymethod.Parse(payload.PaymentMode); err != nil {
		common.JSONError(w, http.StatusBadRequest, "UNKNOWN_METHOD", "unknown payment method", nil)
		return
	}
	if err := h.service.SetPaymentMode(r.Context(), id, payload.PaymentMode); err != nil {
		h.writeError(w, err)
		return
	}
	view, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

func (h *Handler) cartID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "cart id must be a UUID", nil)
		return uuid.UUID{}, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart not found", nil)
	case errors.Is(err, ErrItemNotFound):
		common.JSONError(w, http.StatusNotFound, "ITEM_NOT_FOUND", "cart item not found", nil)
	case errors.Is(err, ErrTradelineNotFound):
		common.JSONError(w, http.StatusNotFound, "TRADELINE_NOT_FOUND", "tradeline not found", nil)
	case errors.Is(err, ErrReadOnly):
		common.JSONError(w, http.StatusConflict, "READ_ONLY", "only active carts can be modified", nil)
	case errors.Is(err, ErrCatalogUnavailable):
		common.JSONError(w, http.StatusBadGateway, "CATALOG_UNAVAILABLE", "tradeline lookup failed", nil)
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unexpected error", nil)
	}
}
