package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-checkout.git/internal/checkout"
	"github.com/jackc/pgx/v5"
)

type PaymentStore struct{ Tx *TxManager }

const paymentCols = `id, order_id, transaction_id, amount, currency, method, status, meta, created_at, updated_at`

func (s *PaymentStore) Insert(ctx context.Context, p checkout.Payment) error {
	meta, err := json.Marshal(orEmpty(p.Meta))
	if err != nil {
		return err
	}
	_, err = s.Tx.q(ctx).Exec(ctx, `
		INSERT INTO payments(id, order_id, transaction_id, amount, currency, method, status, meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.OrderID, p.TransactionID, p.Amount, p.Currency, p.Method, p.Status, meta)
	if isUniqueViolation(err, "payments_transaction_id_key") {
		return fmt.Errorf("%w: transaction %s", checkout.ErrAlreadyExists, p.TransactionID)
	}
	return err
}

func (s *PaymentStore) Get(ctx context.Context, id string) (checkout.Payment, error) {
	return s.scanOne(s.Tx.q(ctx).QueryRow(ctx,
		`SELECT `+paymentCols+` FROM payments WHERE id=$1`, id))
}

func (s *PaymentStore) GetByTransactionID(ctx context.Context, transactionID string) (checkout.Payment, error) {
	return s.scanOne(s.Tx.q(ctx).QueryRow(ctx,
		`SELECT `+paymentCols+` FROM payments WHERE transaction_id=$1`, transactionID))
}

func (s *PaymentStore) UpdateStatus(ctx context.Context, id string, from, to checkout.PaymentStatus) (bool, error) {
	if !from.CanTransition(to) {
		return false, fmt.Errorf("payment transition %s -> %s not allowed", from, to)
	}
	ct, err := s.Tx.q(ctx).Exec(ctx,
		`UPDATE payments SET status=$3, updated_at=now() WHERE id=$1 AND status=$2`, id, from, to)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// MergeMeta concatenates into the jsonb blob; fields from the later event win.
func (s *PaymentStore) MergeMeta(ctx context.Context, id string, meta map[string]any) error {
	b, err := json.Marshal(orEmpty(meta))
	if err != nil {
		return err
	}
	_, err = s.Tx.q(ctx).Exec(ctx,
		`UPDATE payments SET meta = meta || $2::jsonb, updated_at = now() WHERE id=$1`, id, b)
	return err
}

func (s *PaymentStore) ListByOrder(ctx context.Context, orderID string) ([]checkout.Payment, error) {
	rows, err := s.Tx.q(ctx).Query(ctx,
		`SELECT `+paymentCols+` FROM payments WHERE order_id=$1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []checkout.Payment
	for rows.Next() {
		p, err := s.scanOne(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PaymentStore) scanOne(row pgx.Row) (checkout.Payment, error) {
	var (
		p    checkout.Payment
		meta []byte
	)
	err := row.Scan(&p.ID, &p.OrderID, &p.TransactionID, &p.Amount, &p.Currency,
		&p.Method, &p.Status, &meta, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return checkout.Payment{}, fmt.Errorf("%w: payment", checkout.ErrNotFound)
	}
	if err != nil {
		return checkout.Payment{}, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &p.Meta); err != nil {
			return checkout.Payment{}, err
		}
	}
	return p, nil
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
