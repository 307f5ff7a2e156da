package payment

import "context"

// CheckoutRequest captures the information required to open a checkout with a provider.
type CheckoutRequest struct {
	RequestID     string
	Amount        int64
	Currency      string
	CustomerEmail string
	ExpiresAtSec  int
}

// CheckoutResponse represents the minimal information a provider returns when
// a checkout is opened. PayloadJSON is stored verbatim on the payment request.
type CheckoutResponse struct {
	Provider    string
	Reference   string
	RedirectURL string
	PayloadJSON string
}

// Provider abstracts the operations required from an upstream payment provider.
type Provider interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutResponse, error)
}
