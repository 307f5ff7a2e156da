package store

import (
	"context"
)

const orderColumns = `id, cart_id, user_id, subtotal, discount, tax, total, currency, status, created_at`

func scanOrder(row interface{ Scan(dest ...any) error }) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.CartID, &o.UserID, &o.Subtotal, &o.Discount, &o.Tax, &o.Total, &o.Currency, &o.Status, &o.CreatedAt)
	return o, err
}

// CreateOrder inserts the checkout artifact for a cart.
func (s *Store) CreateOrder(ctx context.Context, o Order) (Order, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO orders (cart_id, user_id, subtotal, discount, tax, total, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+orderColumns,
		o.CartID, o.UserID, o.Subtotal, o.Discount, o.Tax, o.Total, o.Currency, o.Status)
	return scanOrder(row)
}
