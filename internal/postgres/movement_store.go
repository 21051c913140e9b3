package postgres

import (
	"context"

	"github.com/ariefcatur/go-checkout.git/internal/checkout"
)

type MovementStore struct{ Tx *TxManager }

// Record is idempotent by (order_id, product_id): a second insert for the
// same line is a no-op and reports false.
func (s *MovementStore) Record(ctx context.Context, m checkout.StockMovement) (bool, error) {
	ct, err := s.Tx.q(ctx).Exec(ctx, `
		INSERT INTO stock_movements(order_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (order_id, product_id) DO NOTHING`,
		m.OrderID, m.ProductID, m.Quantity)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (s *MovementStore) ByOrder(ctx context.Context, orderID string) ([]checkout.StockMovement, error) {
	rows, err := s.Tx.q(ctx).Query(ctx, `
		SELECT order_id, product_id, quantity, created_at
		FROM stock_movements WHERE order_id=$1`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []checkout.StockMovement
	for rows.Next() {
		var m checkout.StockMovement
		if err := rows.Scan(&m.OrderID, &m.ProductID, &m.Quantity, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
