package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const cartColumns = `id, user_id, status, subtotal, discount_amount, tax_amount, total_amount, payment_mode, expires_at, created_at, updated_at`

func scanCart(row interface{ Scan(dest ...any) error }) (Cart, error) {
	var c Cart
	err := row.Scan(&c.ID, &c.UserID, &c.Status, &c.Subtotal, &c.DiscountAmount, &c.TaxAmount, &c.TotalAmount, &c.PaymentMode, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// CreateCart inserts an empty Active cart.
func (s *Store) CreateCart(ctx context.Context, userID *uuid.UUID, expiresAt time.Time) (Cart, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO carts (user_id, status, expires_at)
		VALUES ($1, 'Active', $2)
		RETURNING `+cartColumns, userID, expiresAt)
	return scanCart(row)
}

// GetCart fetches a cart by id.
func (s *Store) GetCart(ctx context.Context, id uuid.UUID) (Cart, error) {
	row := s.db.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE id = $1`, id)
	return scanCart(row)
}

// UpdateCartStatus sets the lifecycle status.
func (s *Store) UpdateCartStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := s.db.Exec(ctx, `UPDATE carts SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	return err
}

// UpdateCartPaymentMode records the selected payment mode.
func (s *Store) UpdateCartPaymentMode(ctx context.Context, id uuid.UUID, mode string) error {
	_, err := s.db.Exec(ctx, `UPDATE carts SET payment_mode = $2, updated_at = now() WHERE id = $1`, id, mode)
	return err
}

// UpdateCartAdjustments persists the discount and tax inputs.
func (s *Store) UpdateCartAdjustments(ctx context.Context, id uuid.UUID, discount, tax int64) error {
	_, err := s.db.Exec(ctx, `
		UPDATE carts SET discount_amount = $2, tax_amount = $3, updated_at = now()
		WHERE id = $1`, id, discount, tax)
	return err
}

// UpdateCartTotals persists derived totals after a recalculation pass.
func (s *Store) UpdateCartTotals(ctx context.Context, id uuid.UUID, subtotal, total int64) error {
	_, err := s.db.Exec(ctx, `
		UPDATE carts SET subtotal = $2, total_amount = $3, updated_at = now()
		WHERE id = $1`, id, subtotal, total)
	return err
}

// MarkExpiredCarts transitions Active carts past their expiry to Expired and
// reports how many rows changed.
func (s *Store) MarkExpiredCarts(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE carts SET status = 'Expired', updated_at = now()
		WHERE status = 'Active' AND expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const cartItemColumns = `id, cart_id, tradeline_id, tradeline_name, quantity, unit_rate, amount`

func scanCartItem(row interface{ Scan(dest ...any) error }) (CartItem, error) {
	var it CartItem
	err := row.Scan(&it.ID, &it.CartID, &it.TradelineID, &it.TradelineName, &it.Quantity, &it.UnitRate, &it.Amount)
	return it, err
}

// ListCartItems returns all lines of a cart.
func (s *Store) ListCartItems(ctx context.Context, cartID uuid.UUID) ([]CartItem, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+cartItemColumns+` FROM cart_items
		WHERE cart_id = $1 ORDER BY created_at`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CartItem
	for rows.Next() {
		it, err := scanCartItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetCartItem fetches one line by id, scoped to its cart.
func (s *Store) GetCartItem(ctx context.Context, cartID, itemID uuid.UUID) (CartItem, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+cartItemColumns+` FROM cart_items
		WHERE id = $1 AND cart_id = $2`, itemID, cartID)
	return scanCartItem(row)
}

// FindCartItemByTradeline locates the cart line for a tradeline if present.
func (s *Store) FindCartItemByTradeline(ctx context.Context, cartID, tradelineID uuid.UUID) (CartItem, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+cartItemColumns+` FROM cart_items
		WHERE cart_id = $1 AND tradeline_id = $2`, cartID, tradelineID)
	return scanCartItem(row)
}

// InsertCartItem appends a line to the cart.
func (s *Store) InsertCartItem(ctx context.Context, it CartItem) (CartItem, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO cart_items (cart_id, tradeline_id, tradeline_name, quantity, unit_rate, amount)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+cartItemColumns,
		it.CartID, it.TradelineID, it.TradelineName, it.Quantity, it.UnitRate, it.Amount)
	return scanCartItem(row)
}

// UpdateCartItemPricing rewrites the pricing inputs and derived amount of a line.
func (s *Store) UpdateCartItemPricing(ctx context.Context, itemID uuid.UUID, quantity int64, unitRate, amount *int64) error {
	_, err := s.db.Exec(ctx, `
		UPDATE cart_items SET quantity = $2, unit_rate = $3, amount = $4
		WHERE id = $1`, itemID, quantity, unitRate, amount)
	return err
}

// DeleteCartItem removes one line from a cart.
func (s *Store) DeleteCartItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`, itemID, cartID)
	return err
}

// ClearCartItems removes every line from a cart.
func (s *Store) ClearCartItems(ctx context.Context, cartID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	return err
}
