package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rockettradeline/backend-market/internal/resilience"
)

// PayPal implements Provider against the PayPal Orders v2 API.
type PayPal struct {
	BaseURL  string
	ClientID string
	Secret   string
	HTTP     *resilience.HTTPClient

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

type paypalOrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
}

// CreateCheckout opens a PayPal order and returns the approval link.
func (p *PayPal) CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutResponse, error) {
	if strings.TrimSpace(req.RequestID) == "" {
		return CheckoutResponse{}, errors.New("request id is required")
	}
	token, err := p.token(ctx)
	if err != nil {
		return CheckoutResponse{}, fmt.Errorf("paypal auth: %w", err)
	}

	body, err := json.Marshal(map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"reference_id": req.RequestID,
			"amount": map[string]string{
				"currency_code": req.Currency,
				"value":         minorToDecimal(req.Amount),
			},
		}},
	})
	if err != nil {
		return CheckoutResponse{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.base()+"/v2/checkout/orders", bytes.NewReader(body))
	if err != nil {
		return CheckoutResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("PayPal-Request-Id", req.RequestID)

	resp, err := p.HTTP.Do(ctx, httpReq)
	if err != nil {
		return CheckoutResponse{}, fmt.Errorf("paypal create order: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return CheckoutResponse{}, err
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return CheckoutResponse{}, fmt.Errorf("paypal create order: status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var order paypalOrderResponse
	if err := json.Unmarshal(raw, &order); err != nil {
		return CheckoutResponse{}, fmt.Errorf("paypal decode order: %w", err)
	}
	redirect := ""
	for _, link := range order.Links {
		if link.Rel == "approve" {
			redirect = link.Href
		}
	}
	return CheckoutResponse{
		Provider:    "paypal",
		Reference:   order.ID,
		RedirectURL: redirect,
		PayloadJSON: string(raw),
	}, nil
}

func (p *PayPal) token(ctx context.Context) (string, error) {
	p.mu.Lock()
	if p.accessToken != "" && time.Now().Before(p.tokenExpiry) {
		token := p.accessToken
		p.mu.Unlock()
		return token, nil
	}
	p.mu.Unlock()

	form := url.Values{"grant_type": {"client_credentials"}}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.base()+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.SetBasicAuth(p.ClientID, p.Secret)

	resp, err := p.HTTP.Do(ctx, httpReq)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	if payload.AccessToken == "" {
		return "", errors.New("empty access token")
	}

	p.mu.Lock()
	p.accessToken = payload.AccessToken
	// refresh one minute early
	p.tokenExpiry = time.Now().Add(time.Duration(payload.ExpiresIn-60) * time.Second)
	p.mu.Unlock()
	return payload.AccessToken, nil
}

func (p *PayPal) base() string {
	host := strings.TrimSpace(p.BaseURL)
	if host == "" {
		host = "https://api-m.sandbox.paypal.com"
	}
	return strings.TrimRight(host, "/")
}

func minorToDecimal(amount int64) string {
	return fmt.Sprintf("%d.%02d", amount/100, amount%100)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
