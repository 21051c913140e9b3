package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-checkout.git/internal/checkout"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type CartStore struct{ Tx *TxManager }

// GetOrCreate lazily creates the single cart a user (or anonymous session)
// owns; the unique constraints make the upsert race-free.
func (s *CartStore) GetOrCreate(ctx context.Context, owner checkout.Identity) (checkout.Cart, error) {
	if !owner.Valid() {
		return checkout.Cart{}, checkout.ErrInvalidIdentity
	}
	var (
		row pgx.Row
		q   = s.Tx.q(ctx)
	)
	if owner.UserID != "" {
		row = q.QueryRow(ctx, `
			INSERT INTO carts(id, user_id) VALUES ($1, $2)
			ON CONFLICT (user_id) DO UPDATE SET updated_at = now()
			RETURNING id, COALESCE(user_id,''), COALESCE(session_id,''), created_at, updated_at`,
			uuid.NewString(), owner.UserID)
	} else {
		row = q.QueryRow(ctx, `
			INSERT INTO carts(id, session_id) VALUES ($1, $2)
			ON CONFLICT (session_id) DO UPDATE SET updated_at = now()
			RETURNING id, COALESCE(user_id,''), COALESCE(session_id,''), created_at, updated_at`,
			uuid.NewString(), owner.SessionToken)
	}
	var c checkout.Cart
	if err := row.Scan(&c.ID, &c.UserID, &c.SessionToken, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return checkout.Cart{}, err
	}
	return c, nil
}

func (s *CartStore) Items(ctx context.Context, cartID string) ([]checkout.CartItem, error) {
	rows, err := s.Tx.q(ctx).Query(ctx,
		`SELECT cart_id, product_id, quantity FROM cart_items WHERE cart_id=$1 ORDER BY product_id`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []checkout.CartItem
	for rows.Next() {
		var it checkout.CartItem
		if err := rows.Scan(&it.CartID, &it.ProductID, &it.Quantity); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *CartStore) GetItem(ctx context.Context, cartID, productID string) (checkout.CartItem, error) {
	var it checkout.CartItem
	err := s.Tx.q(ctx).QueryRow(ctx,
		`SELECT cart_id, product_id, quantity FROM cart_items WHERE cart_id=$1 AND product_id=$2`,
		cartID, productID).Scan(&it.CartID, &it.ProductID, &it.Quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return checkout.CartItem{}, fmt.Errorf("%w: cart line for product %s", checkout.ErrNotFound, productID)
	}
	if err != nil {
		return checkout.CartItem{}, err
	}
	return it, nil
}

func (s *CartStore) UpsertItem(ctx context.Context, item checkout.CartItem) error {
	_, err := s.Tx.q(ctx).Exec(ctx, `
		INSERT INTO cart_items(cart_id, product_id, quantity) VALUES ($1, $2, $3)
		ON CONFLICT (cart_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity`,
		item.CartID, item.ProductID, item.Quantity)
	return err
}

func (s *CartStore) DeleteItem(ctx context.Context, cartID, productID string) error {
	ct, err := s.Tx.q(ctx).Exec(ctx,
		`DELETE FROM cart_items WHERE cart_id=$1 AND product_id=$2`, cartID, productID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: cart line for product %s", checkout.ErrNotFound, productID)
	}
	return nil
}

func (s *CartStore) ClearItems(ctx context.Context, cartID string) error {
	_, err := s.Tx.q(ctx).Exec(ctx, `DELETE FROM cart_items WHERE cart_id=$1`, cartID)
	return err
}
