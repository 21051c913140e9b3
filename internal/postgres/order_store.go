package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-checkout.git/internal/checkout"
	"github.com/jackc/pgx/v5"
)

type OrderStore struct{ Tx *TxManager }

const orderCols = `id, COALESCE(user_id,''), COALESCE(session_id,''), status, total_amount, currency,
	idempotency_key, shipping_address, billing_address, created_at, updated_at`

func (s *OrderStore) Insert(ctx context.Context, o checkout.Order, items []checkout.OrderItem) error {
	q := s.Tx.q(ctx)
	_, err := q.Exec(ctx, `
		INSERT INTO orders(id, user_id, session_id, status, total_amount, currency,
			idempotency_key, shipping_address, billing_address)
		VALUES ($1, NULLIF($2,''), NULLIF($3,''), $4, $5, $6, $7, $8, $9)`,
		o.ID, o.UserID, o.SessionToken, o.Status, o.TotalAmount, o.Currency,
		o.IdempotencyKey, o.ShippingAddress, o.BillingAddress)
	if isUniqueViolation(err, "orders_idempotency_key_key") {
		return fmt.Errorf("%w: %s", checkout.ErrDuplicateIdempotencyKey, o.IdempotencyKey)
	}
	if err != nil {
		return err
	}
	for _, it := range items {
		if _, err := q.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, quantity, price_at_purchase)
			VALUES ($1, $2, $3, $4)`,
			it.OrderID, it.ProductID, it.Quantity, it.PriceAtPurchase); err != nil {
			return err
		}
	}
	return nil
}

func (s *OrderStore) IdempotencyKeyUsed(ctx context.Context, key string) (bool, error) {
	var used bool
	err := s.Tx.q(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM orders WHERE idempotency_key=$1)`, key).Scan(&used)
	return used, err
}

func (s *OrderStore) Get(ctx context.Context, id string) (checkout.Order, error) {
	return s.scanOne(s.Tx.q(ctx).QueryRow(ctx,
		`SELECT `+orderCols+` FROM orders WHERE id=$1`, id))
}

func (s *OrderStore) ListByOwner(ctx context.Context, owner checkout.Identity) ([]checkout.Order, error) {
	var (
		rows pgx.Rows
		err  error
		q    = s.Tx.q(ctx)
	)
	if owner.UserID != "" {
		rows, err = q.Query(ctx,
			`SELECT `+orderCols+` FROM orders WHERE user_id=$1 ORDER BY created_at DESC`, owner.UserID)
	} else {
		rows, err = q.Query(ctx,
			`SELECT `+orderCols+` FROM orders WHERE session_id=$1 ORDER BY created_at DESC`, owner.SessionToken)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []checkout.Order
	for rows.Next() {
		o, err := s.scanOne(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *OrderStore) Items(ctx context.Context, orderID string) ([]checkout.OrderItem, error) {
	rows, err := s.Tx.q(ctx).Query(ctx, `
		SELECT order_id, product_id, quantity, price_at_purchase
		FROM order_items WHERE order_id=$1 ORDER BY product_id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []checkout.OrderItem
	for rows.Next() {
		var it checkout.OrderItem
		if err := rows.Scan(&it.OrderID, &it.ProductID, &it.Quantity, &it.PriceAtPurchase); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// UpdateStatus is the compare-and-set behind every state transition: the row
// only changes when it is still in from.
func (s *OrderStore) UpdateStatus(ctx context.Context, id string, from, to checkout.OrderStatus) (bool, error) {
	if !from.CanTransition(to) {
		return false, fmt.Errorf("order transition %s -> %s not allowed", from, to)
	}
	ct, err := s.Tx.q(ctx).Exec(ctx,
		`UPDATE orders SET status=$3, updated_at=now() WHERE id=$1 AND status=$2`, id, from, to)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (s *OrderStore) scanOne(row pgx.Row) (checkout.Order, error) {
	var o checkout.Order
	err := row.Scan(&o.ID, &o.UserID, &o.SessionToken, &o.Status, &o.TotalAmount, &o.Currency,
		&o.IdempotencyKey, &o.ShippingAddress, &o.BillingAddress, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return checkout.Order{}, fmt.Errorf("%w: order", checkout.ErrNotFound)
	}
	if err != nil {
		return checkout.Order{}, err
	}
	return o, nil
}
