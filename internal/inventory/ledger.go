package inventory

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-checkout.git/internal/checkout"
)

// Ledger is the only write path for product stock. Reserve must run inside a
// transaction: it takes the exclusive row lock before reading stock, so two
// concurrent reservations can never both observe stale availability.
type Ledger struct {
	Products  checkout.ProductStore
	Movements checkout.MovementStore
}

// Reserve decrements stock for one order line. Idempotent by (order, product):
// a movement already on record means the decrement was committed before, and
// the call succeeds without touching stock again.
func (l *Ledger) Reserve(ctx context.Context, orderID, productID string, qty int) error {
	if qty < 1 {
		return checkout.ErrInvalidQuantity
	}
	p, err := l.Products.GetForUpdate(ctx, productID)
	if err != nil {
		return err
	}
	recorded, err := l.Movements.Record(ctx, checkout.StockMovement{
		OrderID:   orderID,
		ProductID: productID,
		Quantity:  qty,
	})
	if err != nil {
		return err
	}
	if !recorded {
		return nil
	}
	if p.Stock < qty {
		return fmt.Errorf("%w: product %s has %d, need %d", checkout.ErrInsufficientStock, productID, p.Stock, qty)
	}
	return l.Products.DecrementStock(ctx, productID, qty)
}

// Available is the non-locking advisory check used by cart soft reservations.
func (l *Ledger) Available(ctx context.Context, productID string, qty int) (bool, error) {
	p, err := l.Products.Get(ctx, productID)
	if err != nil {
		return false, err
	}
	return p.Stock >= qty, nil
}
