package checkout

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const DefaultCurrency = "USD"

// OrderFactory turns a cart into an immutable order. One transaction covers
// order + items + stock decrement + cart clear; the caller publishes the
// order-created event only after commit.
type OrderFactory struct {
	Tx       TxManager
	Products ProductStore
	Carts    CartStore
	Orders   OrderStore
	Ledger   StockReserver
}

// Checkout is strictly idempotent by rejection: a reused key fails with
// ErrDuplicateIdempotencyKey instead of replaying the prior order.
func (f *OrderFactory) Checkout(ctx context.Context, owner Identity, idempotencyKey, shippingAddr, billingAddr string) (Order, []OrderItem, error) {
	if !owner.Valid() {
		return Order{}, nil, ErrInvalidIdentity
	}
	if idempotencyKey == "" {
		return Order{}, nil, fmt.Errorf("%w: missing idempotency key", ErrDuplicateIdempotencyKey)
	}
	used, err := f.Orders.IdempotencyKeyUsed(ctx, idempotencyKey)
	if err != nil {
		return Order{}, nil, err
	}
	if used {
		return Order{}, nil, fmt.Errorf("%w: %s", ErrDuplicateIdempotencyKey, idempotencyKey)
	}

	cart, err := f.Carts.GetOrCreate(ctx, owner)
	if err != nil {
		return Order{}, nil, err
	}

	var (
		order Order
		items []OrderItem
	)
	err = f.Tx.WithinTx(ctx, func(ctx context.Context) error {
		lines, err := f.Carts.Items(ctx, cart.ID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		order = Order{
			ID:              uuid.NewString(),
			UserID:          owner.UserID,
			SessionToken:    owner.SessionToken,
			Status:          OrderPending,
			Currency:        DefaultCurrency,
			IdempotencyKey:  idempotencyKey,
			ShippingAddress: shippingAddr,
			BillingAddress:  billingAddr,
		}

		total := decimal.Zero
		items = items[:0]
		for _, ln := range lines {
			// Reserve locks the product row; the price read after it matches
			// exactly the stock that was decremented.
			if err := f.Ledger.Reserve(ctx, order.ID, ln.ProductID, ln.Quantity); err != nil {
				return err
			}
			p, err := f.Products.Get(ctx, ln.ProductID)
			if err != nil {
				return err
			}
			items = append(items, OrderItem{
				OrderID:         order.ID,
				ProductID:       ln.ProductID,
				Quantity:        ln.Quantity,
				PriceAtPurchase: p.Price,
			})
			total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(ln.Quantity))))
		}
		order.TotalAmount = total

		// The unique constraint catches the race two requests with the same
		// key can still hit after the advisory check above.
		if err := f.Orders.Insert(ctx, order, items); err != nil {
			return err
		}
		return f.Carts.ClearItems(ctx, cart.ID)
	})
	if err != nil {
		return Order{}, nil, err
	}
	return order, items, nil
}

// CreatedEvent builds the order-created payload emitted after commit.
func CreatedEvent(o Order, items []OrderItem) OrderCreatedPayload {
	lines := make([]OrderLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, OrderLine{
			ProductID:       it.ProductID,
			Qty:             it.Quantity,
			PriceAtPurchase: it.PriceAtPurchase,
		})
	}
	return OrderCreatedPayload{
		OrderID:      o.ID,
		UserID:       o.UserID,
		SessionToken: o.SessionToken,
		Items:        lines,
		TotalAmount:  o.TotalAmount,
		Currency:     o.Currency,
	}
}
