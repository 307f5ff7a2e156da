package paymethod

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Validation errors returned by Config.Validate.
var (
	ErrAmountRange   = errors.New("paymethod: minimum amount must be less than maximum amount")
	ErrMissingPhone  = errors.New("paymethod: phone number is required for this method")
	ErrMissingAPIKey = errors.New("paymethod: api key and secret are required outside sandbox mode")
)

// Config is the normalised configuration for a single payment method.
// Monetary fields are minor currency units, PercentFee is a percentage
// in [0, 100].
type Config struct {
	Method       Method
	DisplayName  string
	PaymentType  string
	IsActive     bool
	MinAmount    int64
	MaxAmount    int64
	FixedFee     int64
	PercentFee   float64
	AccountEmail string
	PhoneNumber  string
	AccountID    string
	APIKey       string
	APISecret    string
	SandboxMode  bool
	Instructions string
	Icon         string
}

// Normalize fills derived fields and clamps out-of-range values in place.
// It returns human-readable notices for every correction applied.
func (c *Config) Normalize() []string {
	var notices []string

	if c.PercentFee > 100 {
		notices = append(notices, fmt.Sprintf("percentage fee %.2f exceeds 100, reset to 0", c.PercentFee))
		c.PercentFee = 0
	}
	if c.PercentFee < 0 {
		notices = append(notices, fmt.Sprintf("percentage fee %.2f is negative, reset to 0", c.PercentFee))
		c.PercentFee = 0
	}
	if strings.TrimSpace(c.Icon) == "" {
		c.Icon = c.Method.Icon()
	}
	if strings.TrimSpace(c.DisplayName) == "" {
		c.DisplayName = c.Method.String()
	}
	if d, ok := c.Method.DefaultConfig(); ok {
		if strings.TrimSpace(c.PaymentType) == "" {
			c.PaymentType = d.PaymentType
		}
		if c.MinAmount == 0 && c.MaxAmount == 0 {
			c.MinAmount = d.MinAmount
			c.MaxAmount = d.MaxAmount
		}
		if strings.TrimSpace(c.Instructions) == "" {
			c.Instructions = d.Instructions
		}
	}
	return notices
}

// Validate rejects configurations that must not be saved.
func (c *Config) Validate() error {
	if c.MinAmount >= c.MaxAmount {
		return fmt.Errorf("%w: min %d, max %d", ErrAmountRange, c.MinAmount, c.MaxAmount)
	}
	caps := c.Method.Capabilities()
	if caps.RequiresPhone && strings.TrimSpace(c.PhoneNumber) == "" {
		return ErrMissingPhone
	}
	if caps.RequiresAPIKeys && !c.SandboxMode {
		if strings.TrimSpace(c.APIKey) == "" || strings.TrimSpace(c.APISecret) == "" {
			return ErrMissingAPIKey
		}
	}
	return nil
}

// InRange reports whether the amount is within the configured limits.
func (c *Config) InRange(amount int64) bool {
	return amount >= c.MinAmount && amount <= c.MaxAmount
}

// Fees computes the total fee for an amount: the fixed fee plus the
// percentage fee, rounded to the nearest minor unit.
func (c *Config) Fees(amount int64) int64 {
	pct := math.Round(float64(amount) * c.PercentFee / 100)
	return c.FixedFee + int64(pct)
}
