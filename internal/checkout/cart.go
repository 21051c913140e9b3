package checkout

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// CartService mutates the pre-checkout basket. Cart lines are soft
// reservations: availability is checked under the product row lock but stock
// is only decremented at checkout.
type CartService struct {
	Tx       TxManager
	Products ProductStore
	Carts    CartStore
}

func (s *CartService) GetOrCreate(ctx context.Context, owner Identity) (Cart, error) {
	if !owner.Valid() {
		return Cart{}, ErrInvalidIdentity
	}
	return s.Carts.GetOrCreate(ctx, owner)
}

// AddItem increments the line for product in place, or inserts a new one. The
// product row lock serializes concurrent adds so the existing+new check never
// reads a stale line.
func (s *CartService) AddItem(ctx context.Context, cart Cart, productID string, qty int) (CartItem, error) {
	if qty < 1 {
		return CartItem{}, ErrInvalidQuantity
	}
	var out CartItem
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.Products.GetForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		existing := 0
		if item, err := s.Carts.GetItem(ctx, cart.ID, productID); err == nil {
			existing = item.Quantity
		} else if !IsNotFound(err) {
			return err
		}
		want := existing + qty
		if p.Stock < want {
			return fmt.Errorf("%w: product %s has %d, cart wants %d", ErrOutOfStock, p.ID, p.Stock, want)
		}
		out = CartItem{CartID: cart.ID, ProductID: productID, Quantity: want}
		return s.Carts.UpsertItem(ctx, out)
	})
	if err != nil {
		return CartItem{}, err
	}
	return out, nil
}

// UpdateItem overwrites the line quantity (absolute, not additive). Zero is
// equivalent to RemoveItem.
func (s *CartService) UpdateItem(ctx context.Context, cart Cart, productID string, qty int) (CartItem, error) {
	if qty < 0 {
		return CartItem{}, ErrInvalidQuantity
	}
	if qty == 0 {
		return CartItem{}, s.RemoveItem(ctx, cart, productID)
	}
	var out CartItem
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.Products.GetForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if _, err := s.Carts.GetItem(ctx, cart.ID, productID); err != nil {
			return err
		}
		if p.Stock < qty {
			return fmt.Errorf("%w: product %s has %d, cart wants %d", ErrOutOfStock, p.ID, p.Stock, qty)
		}
		out = CartItem{CartID: cart.ID, ProductID: productID, Quantity: qty}
		return s.Carts.UpsertItem(ctx, out)
	})
	if err != nil {
		return CartItem{}, err
	}
	return out, nil
}

func (s *CartService) RemoveItem(ctx context.Context, cart Cart, productID string) error {
	return s.Carts.DeleteItem(ctx, cart.ID, productID)
}

// Clear deletes all lines; no-op on an empty cart.
func (s *CartService) Clear(ctx context.Context, cart Cart) error {
	return s.Carts.ClearItems(ctx, cart.ID)
}

// CheckStock re-validates every line against live stock. Advisory only: stock
// can change between this call and checkout, which re-validates under lock.
func (s *CartService) CheckStock(ctx context.Context, cart Cart) (bool, error) {
	items, err := s.Carts.Items(ctx, cart.ID)
	if err != nil {
		return false, err
	}
	for _, it := range items {
		p, err := s.Products.Get(ctx, it.ProductID)
		if err != nil {
			if IsNotFound(err) {
				return false, nil
			}
			return false, err
		}
		if p.Stock < it.Quantity {
			return false, nil
		}
	}
	return true, nil
}

// TotalPrice sums quantity * current product price over all lines. Derived,
// never stored; orders freeze their own snapshot at checkout.
func (s *CartService) TotalPrice(ctx context.Context, cart Cart) (decimal.Decimal, error) {
	items, err := s.Carts.Items(ctx, cart.ID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, it := range items {
		p, err := s.Products.Get(ctx, it.ProductID)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total, nil
}
