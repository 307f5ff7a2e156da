package store

import (
	"context"

	"github.com/google/uuid"
)

const tradelineColumns = `id, bank, price, max_spots, status, created_at`

func scanTradeline(row interface{ Scan(dest ...any) error }) (Tradeline, error) {
	var t Tradeline
	err := row.Scan(&t.ID, &t.Bank, &t.Price, &t.MaxSpots, &t.Status, &t.CreatedAt)
	return t, err
}

// GetTradeline fetches a single tradeline by id.
func (s *Store) GetTradeline(ctx context.Context, id uuid.UUID) (Tradeline, error) {
	row := s.db.QueryRow(ctx, `SELECT `+tradelineColumns+` FROM tradelines WHERE id = $1`, id)
	return scanTradeline(row)
}

// ListActiveTradelines returns the browsable catalog.
func (s *Store) ListActiveTradelines(ctx context.Context, limit, offset int32) ([]Tradeline, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+tradelineColumns+` FROM tradelines
		WHERE status = 'Active'
		ORDER BY bank, created_at
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Tradeline
	for rows.Next() {
		t, err := scanTradeline(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
