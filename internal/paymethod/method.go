package paymethod

import (
	"errors"
	"fmt"
	"strings"
)

// Method enumerates the supported payment methods.
type Method int

const (
	AppleCash Method = iota
	Zelle
	CashApp
	Venmo
	PayPal
	CreditCard
	BankTransfer
	Cryptocurrency
)

// ErrUnknownMethod is returned when parsing an unrecognised method name.
var ErrUnknownMethod = errors.New("paymethod: unknown payment method")

var methodNames = [...]string{
	AppleCash:      "Apple Cash",
	Zelle:          "Zelle",
	CashApp:        "CashApp",
	Venmo:          "Venmo",
	PayPal:         "PayPal",
	CreditCard:     "Credit Card",
	BankTransfer:   "Bank Transfer",
	Cryptocurrency: "Cryptocurrency",
}

// All lists every supported method.
func All() []Method {
	return []Method{AppleCash, Zelle, CashApp, Venmo, PayPal, CreditCard, BankTransfer, Cryptocurrency}
}

// String returns the canonical display name.
func (m Method) String() string {
	if int(m) < 0 || int(m) >= len(methodNames) {
		return "Unknown"
	}
	return methodNames[m]
}

// MarshalText implements encoding.TextMarshaler.
func (m Method) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Method) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Parse resolves a method from its canonical name. Matching is
// case-insensitive and tolerant of surrounding whitespace.
func Parse(name string) (Method, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	for _, m := range All() {
		if strings.ToLower(m.String()) == needle {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMethod, name)
}

// Icon returns the display icon identifier for the method.
func (m Method) Icon() string {
	switch m {
	case AppleCash:
		return "fa-apple"
	case Zelle:
		return "fa-university"
	case CashApp:
		return "fa-dollar-sign"
	case Venmo:
		return "fa-mobile"
	case PayPal:
		return "fa-paypal"
	case CreditCard:
		return "fa-credit-card"
	case BankTransfer:
		return "fa-bank"
	case Cryptocurrency:
		return "fa-bitcoin"
	default:
		return "fa-money"
	}
}

// Capability describes which account fields a method uses and requires.
type Capability struct {
	UsesAccountEmail bool
	UsesPhoneNumber  bool
	UsesAccountID    bool
	UsesAPIKeys      bool
	RequiresPhone    bool
	// RequiresAPIKeys applies only outside sandbox mode.
	RequiresAPIKeys bool
}

// Capabilities returns the capability record for the method.
func (m Method) Capabilities() Capability {
	switch m {
	case AppleCash:
		return Capability{UsesPhoneNumber: true, RequiresPhone: true}
	case Zelle:
		return Capability{UsesAccountEmail: true, UsesPhoneNumber: true}
	case CashApp:
		return Capability{UsesAccountEmail: true, UsesPhoneNumber: true, UsesAccountID: true}
	case Venmo:
		return Capability{UsesAccountEmail: true, UsesPhoneNumber: true, UsesAccountID: true}
	case PayPal:
		return Capability{UsesAccountEmail: true, UsesAPIKeys: true, RequiresAPIKeys: true}
	case CreditCard:
		return Capability{UsesAPIKeys: true}
	case BankTransfer:
		return Capability{UsesAccountEmail: true}
	case Cryptocurrency:
		return Capability{UsesAccountID: true}
	default:
		return Capability{}
	}
}

// Defaults holds the seed configuration applied when a method is first set up.
// Amounts are minor currency units.
type Defaults struct {
	PaymentType  string
	MinAmount    int64
	MaxAmount    int64
	FixedFee     int64
	PercentFee   float64
	Instructions string
}

// DefaultConfig returns per-method seed values. Methods without a known
// profile return ok=false and should be configured explicitly.
func (m Method) DefaultConfig() (Defaults, bool) {
	switch m {
	case AppleCash:
		return Defaults{
			PaymentType:  "Digital Wallet",
			MinAmount:    100,
			MaxAmount:    300000,
			Instructions: "Send payment via Apple Cash to the provided phone number",
		}, true
	case Zelle:
		return Defaults{
			PaymentType:  "Bank Transfer",
			MinAmount:    100,
			MaxAmount:    250000,
			Instructions: "Send payment via Zelle using the provided email or phone number",
		}, true
	case CashApp:
		return Defaults{
			PaymentType:  "Peer-to-Peer",
			MinAmount:    100,
			MaxAmount:    250000,
			PercentFee:   2.9,
			Instructions: "Send payment via Cash App to the provided username or phone",
		}, true
	case Venmo:
		return Defaults{
			PaymentType:  "Peer-to-Peer",
			MinAmount:    1,
			MaxAmount:    499999,
			PercentFee:   1.9,
			Instructions: "Send payment via Venmo to the provided username",
		}, true
	case PayPal:
		return Defaults{
			PaymentType:  "Digital Wallet",
			MinAmount:    1,
			MaxAmount:    1000000,
			FixedFee:     30,
			PercentFee:   3.49,
			Instructions: "Complete payment using the PayPal checkout link",
		}, true
	case CreditCard, BankTransfer, Cryptocurrency:
		return Defaults{}, false
	default:
		return Defaults{}, false
	}
}
