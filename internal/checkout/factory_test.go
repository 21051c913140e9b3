package checkout_test

import (
	"context"
	"testing"

	"github.com/ariefcatur/go-checkout.git/internal/checkout"
	"github.com/ariefcatur/go-checkout.git/internal/inventory"
	"github.com/ariefcatur/go-checkout.git/internal/memstore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFactoryFixture(t *testing.T) (*memstore.Store, *checkout.OrderFactory, *checkout.CartService) {
	t.Helper()
	st := memstore.New()
	factory := &checkout.OrderFactory{
		Tx:       st,
		Products: st,
		Carts:    st,
		Orders:   memstore.Orders{Store: st},
		Ledger:   &inventory.Ledger{Products: st, Movements: st},
	}
	cartSvc := &checkout.CartService{Tx: st, Products: st, Carts: st}
	return st, factory, cartSvc
}

func TestCheckoutCreatesOrder(t *testing.T) {
	st, factory, carts := newFactoryFixture(t)
	st.SeedProduct(checkout.Product{ID: "pA", Price: decimal.NewFromInt(100), Stock: 10})
	st.SeedProduct(checkout.Product{ID: "pB", Price: decimal.NewFromInt(50), Stock: 4})
	ctx := context.Background()
	owner := checkout.Identity{UserID: "u1"}

	cart, err := carts.GetOrCreate(ctx, owner)
	require.NoError(t, err)
	_, err = carts.AddItem(ctx, cart, "pA", 2)
	require.NoError(t, err)
	_, err = carts.AddItem(ctx, cart, "pB", 1)
	require.NoError(t, err)

	order, items, err := factory.Checkout(ctx, owner, "key-1", "12 Main St", "12 Main St")
	require.NoError(t, err)

	assert.Equal(t, checkout.OrderPending, order.Status)
	assert.Equal(t, checkout.DefaultCurrency, order.Currency)
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(250)), "got %s", order.TotalAmount)
	require.Len(t, items, 2)

	byProduct := map[string]checkout.OrderItem{}
	for _, it := range items {
		byProduct[it.ProductID] = it
	}
	assert.Equal(t, 2, byProduct["pA"].Quantity)
	assert.True(t, byProduct["pA"].PriceAtPurchase.Equal(decimal.NewFromInt(100)))
	assert.True(t, byProduct["pB"].PriceAtPurchase.Equal(decimal.NewFromInt(50)))

	// stock decremented in the same transaction
	pA, _ := st.Get(ctx, "pA")
	pB, _ := st.Get(ctx, "pB")
	assert.Equal(t, 8, pA.Stock)
	assert.Equal(t, 3, pB.Stock)

	// cart cleared
	lines, err := st.Items(ctx, cart.ID)
	require.NoError(t, err)
	assert.Empty(t, lines)

	// a movement exists per line
	moves, err := st.ByOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, moves, 2)
}

func TestCheckoutFreezesPrice(t *testing.T) {
	st, factory, carts := newFactoryFixture(t)
	st.SeedProduct(checkout.Product{ID: "pA", Price: decimal.NewFromInt(100), Stock: 10})
	ctx := context.Background()
	owner := checkout.Identity{SessionToken: "anon-9"}

	cart, err := carts.GetOrCreate(ctx, owner)
	require.NoError(t, err)
	_, err = carts.AddItem(ctx, cart, "pA", 1)
	require.NoError(t, err)

	order, items, err := factory.Checkout(ctx, owner, "key-freeze", "", "")
	require.NoError(t, err)

	// a later price change must not touch the stored snapshot
	st.SeedProduct(checkout.Product{ID: "pA", Price: decimal.NewFromInt(175), Stock: 9})
	stored, err := memstore.Orders{Store: st}.Items(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.True(t, stored[0].PriceAtPurchase.Equal(decimal.NewFromInt(100)))
	assert.True(t, items[0].PriceAtPurchase.Equal(decimal.NewFromInt(100)))
}

func TestCheckoutRejectsReusedKey(t *testing.T) {
	st, factory, carts := newFactoryFixture(t)
	st.SeedProduct(checkout.Product{ID: "pA", Price: decimal.NewFromInt(100), Stock: 10})
	ctx := context.Background()
	owner := checkout.Identity{UserID: "u1"}

	cart, err := carts.GetOrCreate(ctx, owner)
	require.NoError(t, err)
	_, err = carts.AddItem(ctx, cart, "pA", 1)
	require.NoError(t, err)
	_, _, err = factory.Checkout(ctx, owner, "key-dup", "", "")
	require.NoError(t, err)

	// refill the cart; the key is burned regardless
	_, err = carts.AddItem(ctx, cart, "pA", 1)
	require.NoError(t, err)
	_, _, err = factory.Checkout(ctx, owner, "key-dup", "", "")
	assert.ErrorIs(t, err, checkout.ErrDuplicateIdempotencyKey)

	orders, err := st.ListByOwner(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestCheckoutRequiresKey(t *testing.T) {
	_, factory, _ := newFactoryFixture(t)
	_, _, err := factory.Checkout(context.Background(), checkout.Identity{UserID: "u1"}, "", "", "")
	assert.ErrorIs(t, err, checkout.ErrDuplicateIdempotencyKey)
}

func TestCheckoutEmptyCart(t *testing.T) {
	_, factory, _ := newFactoryFixture(t)
	_, _, err := factory.Checkout(context.Background(), checkout.Identity{UserID: "u1"}, "key-empty", "", "")
	assert.ErrorIs(t, err, checkout.ErrEmptyCart)
}

// A failing line rolls back the whole checkout: no order, no partial
// decrement, cart intact.
func TestCheckoutInsufficientStockRollsBack(t *testing.T) {
	st, factory, carts := newFactoryFixture(t)
	st.SeedProduct(checkout.Product{ID: "pA", Price: decimal.NewFromInt(100), Stock: 10})
	st.SeedProduct(checkout.Product{ID: "pB", Price: decimal.NewFromInt(50), Stock: 5})
	ctx := context.Background()
	owner := checkout.Identity{UserID: "u1"}

	cart, err := carts.GetOrCreate(ctx, owner)
	require.NoError(t, err)
	_, err = carts.AddItem(ctx, cart, "pA", 2)
	require.NoError(t, err)
	_, err = carts.AddItem(ctx, cart, "pB", 5)
	require.NoError(t, err)

	// stock for pB sold out after the cart was built
	st.SeedProduct(checkout.Product{ID: "pB", Price: decimal.NewFromInt(50), Stock: 1})

	_, _, err = factory.Checkout(ctx, owner, "key-rb", "", "")
	assert.ErrorIs(t, err, checkout.ErrInsufficientStock)

	pA, _ := st.Get(ctx, "pA")
	assert.Equal(t, 10, pA.Stock)
	lines, err := st.Items(ctx, cart.ID)
	require.NoError(t, err)
	assert.Len(t, lines, 2)
	orders, err := st.ListByOwner(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCreatedEventPayload(t *testing.T) {
	order := checkout.Order{
		ID:          "o1",
		UserID:      "u1",
		TotalAmount: decimal.NewFromInt(250),
		Currency:    checkout.DefaultCurrency,
	}
	items := []checkout.OrderItem{
		{OrderID: "o1", ProductID: "pA", Quantity: 2, PriceAtPurchase: decimal.NewFromInt(100)},
		{OrderID: "o1", ProductID: "pB", Quantity: 1, PriceAtPurchase: decimal.NewFromInt(50)},
	}
	p := checkout.CreatedEvent(order, items)
	assert.Equal(t, "o1", p.OrderID)
	assert.Equal(t, "u1", p.UserID)
	require.Len(t, p.Items, 2)
	assert.Equal(t, 2, p.Items[0].Qty)
	assert.True(t, p.TotalAmount.Equal(decimal.NewFromInt(250)))
}
