package store

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered account.
type User struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	Roles        []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Tradeline is a catalog product: a slot on a credit line sold by the bank
// named in Bank, priced per spot with a hard availability ceiling.
type Tradeline struct {
	ID        uuid.UUID
	Bank      string
	Price     int64
	MaxSpots  int64
	Status    string
	CreatedAt time.Time
}

// Cart is a shopping cart document. Derived totals are persisted alongside the
// inputs so a cart read never recomputes anything.
type Cart struct {
	ID             uuid.UUID
	UserID         *uuid.UUID
	Status         string
	Subtotal       int64
	DiscountAmount int64
	TaxAmount      int64
	TotalAmount    int64
	PaymentMode    *string
	ExpiresAt      time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CartItem is a single cart line. UnitRate and Amount are nullable: a line
// whose pricing inputs were never completed carries no amount.
type CartItem struct {
	ID            uuid.UUID
	CartID        uuid.UUID
	TradelineID   uuid.UUID
	TradelineName string
	Quantity      int64
	UnitRate      *int64
	Amount        *int64
}

// Order is the checkout artifact produced from a cart.
type Order struct {
	ID        uuid.UUID
	CartID    uuid.UUID
	UserID    uuid.UUID
	Subtotal  int64
	Discount  int64
	Tax       int64
	Total     int64
	Currency  string
	Status    string
	CreatedAt time.Time
}

// PaymentConfiguration holds the per-method settings used for fee computation
// and payment request creation.
type PaymentConfiguration struct {
	ID           uuid.UUID
	Method       string
	DisplayName  string
	PaymentType  string
	IsActive     bool
	MinAmount    int64
	MaxAmount    int64
	FixedFee     int64
	PercentFee   float64
	AccountEmail *string
	PhoneNumber  *string
	AccountID    *string
	APIKey       *string
	APISecret    *string
	SandboxMode  bool
	Instructions string
	Icon         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PaymentRequest tracks one payment through its lifecycle.
type PaymentRequest struct {
	ID              uuid.UUID
	CartID          *uuid.UUID
	UserID          *uuid.UUID
	Method          string
	Amount          int64
	Fees            int64
	TotalAmount     int64
	Status          string
	TransactionID   *string
	PaymentData     *string
	PaymentResponse *string
	Instructions    string
	ExpiryDate      time.Time
	CompletedAt     *time.Time
	VerifiedBy      *string
	VerifiedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DomainEvent is a persisted event bus record.
type DomainEvent struct {
	ID          int64
	Topic       string
	AggregateID uuid.UUID
	Payload     []byte
	OccurredAt  time.Time
}
