package paymethod_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rockettradeline/backend-market/internal/paymethod"
)

func TestNormalizePercentFeeGuard(t *testing.T) {
	cfg := paymethod.Config{Method: paymethod.CashApp, MinAmount: 100, MaxAmount: 250000, PercentFee: 150}
	notices := cfg.Normalize()
	require.Len(t, notices, 1)
	require.Contains(t, notices[0], "exceeds 100")
	require.Zero(t, cfg.PercentFee)

	cfg = paymethod.Config{Method: paymethod.CashApp, MinAmount: 100, MaxAmount: 250000, PercentFee: 100}
	require.Empty(t, cfg.Normalize())
	require.Equal(t, 100.0, cfg.PercentFee)

	cfg = paymethod.Config{Method: paymethod.CashApp, MinAmount: 100, MaxAmount: 250000, PercentFee: 42.5}
	require.Empty(t, cfg.Normalize())
	require.Equal(t, 42.5, cfg.PercentFee)
}

func TestNormalizeFillsDefaults(t *testing.T) {
	cfg := paymethod.Config{Method: paymethod.Venmo}
	cfg.Normalize()
	require.Equal(t, "Venmo", cfg.DisplayName)
	require.Equal(t, "fa-mobile", cfg.Icon)
	require.Equal(t, "Peer-to-Peer", cfg.PaymentType)
	require.EqualValues(t, 1, cfg.MinAmount)
	require.EqualValues(t, 499999, cfg.MaxAmount)
}

func TestValidateAmountRange(t *testing.T) {
	cfg := paymethod.Config{Method: paymethod.Zelle, MinAmount: 500, MaxAmount: 500}
	require.ErrorIs(t, cfg.Validate(), paymethod.ErrAmountRange)

	cfg.MaxAmount = 400
	require.ErrorIs(t, cfg.Validate(), paymethod.ErrAmountRange)

	cfg.MaxAmount = 501
	require.NoError(t, cfg.Validate())
}

func TestValidateRequiredFields(t *testing.T) {
	cfg := paymethod.Config{Method: paymethod.AppleCash, MinAmount: 100, MaxAmount: 300000}
	require.ErrorIs(t, cfg.Validate(), paymethod.ErrMissingPhone)

	cfg.PhoneNumber = "+15550001111"
	require.NoError(t, cfg.Validate())

	pp := paymethod.Config{Method: paymethod.PayPal, MinAmount: 1, MaxAmount: 1000000, SandboxMode: false}
	require.ErrorIs(t, pp.Validate(), paymethod.ErrMissingAPIKey)

	pp.SandboxMode = true
	require.NoError(t, pp.Validate())

	pp.SandboxMode = false
	pp.APIKey = "key"
	pp.APISecret = "secret"
	require.NoError(t, pp.Validate())
}

func TestFees(t *testing.T) {
	cfg := paymethod.Config{Method: paymethod.PayPal, FixedFee: 30, PercentFee: 3.49}
	// 3.49% of $100.00 is 349 cents plus the 30 cent fixed fee.
	require.EqualValues(t, 379, cfg.Fees(10000))

	flat := paymethod.Config{Method: paymethod.Zelle}
	require.Zero(t, flat.Fees(10000))

	pctOnly := paymethod.Config{Method: paymethod.CashApp, PercentFee: 2.9}
	// 2.9% of $25.00 is 72.5 cents, rounded to 73.
	require.EqualValues(t, 73, pctOnly.Fees(2500))
}

func TestParseMethod(t *testing.T) {
	m, err := paymethod.Parse("apple cash")
	require.NoError(t, err)
	require.Equal(t, paymethod.AppleCash, m)

	m, err = paymethod.Parse(" PayPal ")
	require.NoError(t, err)
	require.Equal(t, paymethod.PayPal, m)

	_, err = paymethod.Parse("wire pigeon")
	require.ErrorIs(t, err, paymethod.ErrUnknownMethod)
}

func TestIconFallback(t *testing.T) {
	require.Equal(t, "fa-money", paymethod.Method(99).Icon())
	require.Equal(t, "fa-bitcoin", paymethod.Cryptocurrency.Icon())
}
