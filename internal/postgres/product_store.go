package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-checkout.git/internal/checkout"
	"github.com/jackc/pgx/v5"
)

type ProductStore struct{ Tx *TxManager }

const productCols = `id, sku, name, price, stock, created_at, updated_at`

func (s *ProductStore) Get(ctx context.Context, id string) (checkout.Product, error) {
	return s.scanOne(s.Tx.q(ctx).QueryRow(ctx,
		`SELECT `+productCols+` FROM products WHERE id=$1`, id))
}

func (s *ProductStore) GetForUpdate(ctx context.Context, id string) (checkout.Product, error) {
	return s.scanOne(s.Tx.q(ctx).QueryRow(ctx,
		`SELECT `+productCols+` FROM products WHERE id=$1 FOR UPDATE`, id))
}

// DecrementStock refuses to take stock below zero: the WHERE guard holds
// even for a caller that skipped the row lock.
func (s *ProductStore) DecrementStock(ctx context.Context, id string, qty int) error {
	ct, err := s.Tx.q(ctx).Exec(ctx,
		`UPDATE products SET stock = stock - $2, updated_at = now() WHERE id=$1 AND stock >= $2`, id, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("%w: product %s", checkout.ErrInsufficientStock, id)
	}
	return nil
}

func (s *ProductStore) List(ctx context.Context) ([]checkout.Product, error) {
	rows, err := s.Tx.q(ctx).Query(ctx,
		`SELECT `+productCols+` FROM products ORDER BY sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []checkout.Product
	for rows.Next() {
		var p checkout.Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *ProductStore) scanOne(row pgx.Row) (checkout.Product, error) {
	var p checkout.Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return checkout.Product{}, fmt.Errorf("%w: product", checkout.ErrNotFound)
	}
	if err != nil {
		return checkout.Product{}, err
	}
	return p, nil
}
