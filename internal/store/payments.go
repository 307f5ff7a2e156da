package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const paymentConfigColumns = `id, method, display_name, payment_type, is_active, min_amount, max_amount,
	fixed_fee, percent_fee, account_email, phone_number, account_id, api_key, api_secret,
	sandbox_mode, instructions, icon, created_at, updated_at`

func scanPaymentConfig(row interface{ Scan(dest ...any) error }) (PaymentConfiguration, error) {
	var c PaymentConfiguration
	err := row.Scan(&c.ID, &c.Method, &c.DisplayName, &c.PaymentType, &c.IsActive, &c.MinAmount, &c.MaxAmount,
		&c.FixedFee, &c.PercentFee, &c.AccountEmail, &c.PhoneNumber, &c.AccountID, &c.APIKey, &c.APISecret,
		&c.SandboxMode, &c.Instructions, &c.Icon, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// GetActivePaymentConfig returns the active configuration for a method.
func (s *Store) GetActivePaymentConfig(ctx context.Context, method string) (PaymentConfiguration, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+paymentConfigColumns+` FROM payment_configurations
		WHERE method = $1 AND is_active`, method)
	return scanPaymentConfig(row)
}

// ListActivePaymentConfigs returns every active configuration.
func (s *Store) ListActivePaymentConfigs(ctx context.Context) ([]PaymentConfiguration, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+paymentConfigColumns+` FROM payment_configurations
		WHERE is_active ORDER BY method`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PaymentConfiguration
	for rows.Next() {
		c, err := scanPaymentConfig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpsertPaymentConfig inserts or replaces the configuration for a method.
func (s *Store) UpsertPaymentConfig(ctx context.Context, c PaymentConfiguration) (PaymentConfiguration, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO payment_configurations
			(method, display_name, payment_type, is_active, min_amount, max_amount,
			 fixed_fee, percent_fee, account_email, phone_number, account_id, api_key, api_secret,
			 sandbox_mode, instructions, icon)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (method) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			payment_type = EXCLUDED.payment_type,
			is_active = EXCLUDED.is_active,
			min_amount = EXCLUDED.min_amount,
			max_amount = EXCLUDED.max_amount,
			fixed_fee = EXCLUDED.fixed_fee,
			percent_fee = EXCLUDED.percent_fee,
			account_email = EXCLUDED.account_email,
			phone_number = EXCLUDED.phone_number,
			account_id = EXCLUDED.account_id,
			api_key = EXCLUDED.api_key,
			api_secret = EXCLUDED.api_secret,
			sandbox_mode = EXCLUDED.sandbox_mode,
			instructions = EXCLUDED.instructions,
			icon = EXCLUDED.icon,
			updated_at = now()
		RETURNING `+paymentConfigColumns,
		c.Method, c.DisplayName, c.PaymentType, c.IsActive, c.MinAmount, c.MaxAmount,
		c.FixedFee, c.PercentFee, c.AccountEmail, c.PhoneNumber, c.AccountID, c.APIKey, c.APISecret,
		c.SandboxMode, c.Instructions, c.Icon)
	return scanPaymentConfig(row)
}

const paymentRequestColumns = `id, cart_id, user_id, method, amount, fees, total_amount, status,
	transaction_id, payment_data, payment_response, instructions, expiry_date,
	completed_at, verified_by, verified_at, created_at, updated_at`

func scanPaymentRequest(row interface{ Scan(dest ...any) error }) (PaymentRequest, error) {
	var p PaymentRequest
	err := row.Scan(&p.ID, &p.CartID, &p.UserID, &p.Method, &p.Amount, &p.Fees, &p.TotalAmount, &p.Status,
		&p.TransactionID, &p.PaymentData, &p.PaymentResponse, &p.Instructions, &p.ExpiryDate,
		&p.CompletedAt, &p.VerifiedBy, &p.VerifiedAt, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// CreatePaymentRequest inserts a new payment request record.
func (s *Store) CreatePaymentRequest(ctx context.Context, p PaymentRequest) (PaymentRequest, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO payment_requests
			(cart_id, user_id, method, amount, fees, total_amount, status,
			 payment_data, instructions, expiry_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+paymentRequestColumns,
		p.CartID, p.UserID, p.Method, p.Amount, p.Fees, p.TotalAmount, p.Status,
		p.PaymentData, p.Instructions, p.ExpiryDate)
	return scanPaymentRequest(row)
}

// GetPaymentRequest fetches a payment request by id.
func (s *Store) GetPaymentRequest(ctx context.Context, id uuid.UUID) (PaymentRequest, error) {
	row := s.db.QueryRow(ctx, `SELECT `+paymentRequestColumns+` FROM payment_requests WHERE id = $1`, id)
	return scanPaymentRequest(row)
}

// UpdatePaymentStatus rewrites only the lifecycle status.
func (s *Store) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE payment_requests SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	return err
}

// MarkPaymentCompleted records the completion transition with its transaction id.
func (s *Store) MarkPaymentCompleted(ctx context.Context, id uuid.UUID, transactionID string, completedAt time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE payment_requests
		SET status = 'Completed', transaction_id = $2, completed_at = $3, updated_at = now()
		WHERE id = $1`, id, transactionID, completedAt)
	return err
}

// MarkPaymentVerified records the verification transition and its auditor.
func (s *Store) MarkPaymentVerified(ctx context.Context, id uuid.UUID, verifiedBy string, verifiedAt time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE payment_requests
		SET status = 'Verified', verified_by = $2, verified_at = $3, updated_at = now()
		WHERE id = $1`, id, verifiedBy, verifiedAt)
	return err
}

// ListPendingPayments returns Pending requests, oldest expiry first, for the
// watcher and the expiry sweep.
func (s *Store) ListPendingPayments(ctx context.Context, limit int32) ([]PaymentRequest, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+paymentRequestColumns+` FROM payment_requests
		WHERE status = 'Pending'
		ORDER BY expiry_date
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PaymentRequest
	for rows.Next() {
		p, err := scanPaymentRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ExpirePendingPayments transitions overdue Pending requests to Expired and
// reports how many rows changed.
func (s *Store) ExpirePendingPayments(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE payment_requests SET status = 'Expired', updated_at = now()
		WHERE status = 'Pending' AND expiry_date < $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
