package payment

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// Manual implements Provider for peer-to-peer methods that are settled
// outside the system (Zelle, CashApp, Venmo, Apple Cash). It synthesises a
// reference and records the send-to account details as the checkout payload.
type Manual struct {
	MethodName   string
	AccountEmail string
	PhoneNumber  string
	AccountID    string
}

// CreateCheckout returns the manual settlement details without a network call.
func (m Manual) CreateCheckout(_ context.Context, req CheckoutRequest) (CheckoutResponse, error) {
	if strings.TrimSpace(req.RequestID) == "" {
		return CheckoutResponse{}, errors.New("request id is required")
	}
	payload, err := json.Marshal(map[string]any{
		"method":        m.MethodName,
		"account_email": m.AccountEmail,
		"phone_number":  m.PhoneNumber,
		"account_id":    m.AccountID,
		"amount":        req.Amount,
		"currency":      req.Currency,
	})
	if err != nil {
		return CheckoutResponse{}, err
	}
	return CheckoutResponse{
		Provider:    "manual",
		Reference:   "MAN-" + req.RequestID,
		PayloadJSON: string(payload),
	}, nil
}
