package checkout_test

import (
	"context"
	"sync"
	"testing"

	"github.com/ariefcatur/go-checkout.git/internal/checkout"
	"github.com/ariefcatur/go-checkout.git/internal/memstore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCartFixture(t *testing.T) (*memstore.Store, *checkout.CartService, checkout.Cart) {
	t.Helper()
	st := memstore.New()
	svc := &checkout.CartService{Tx: st, Products: st, Carts: st}
	cart, err := svc.GetOrCreate(context.Background(), checkout.Identity{UserID: "u1"})
	require.NoError(t, err)
	return st, svc, cart
}

func TestGetOrCreateReturnsSameCart(t *testing.T) {
	_, svc, cart := newCartFixture(t)
	again, err := svc.GetOrCreate(context.Background(), checkout.Identity{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, cart.ID, again.ID)

	other, err := svc.GetOrCreate(context.Background(), checkout.Identity{SessionToken: "anon-1"})
	require.NoError(t, err)
	assert.NotEqual(t, cart.ID, other.ID)
}

func TestGetOrCreateRejectsInvalidIdentity(t *testing.T) {
	_, svc, _ := newCartFixture(t)
	_, err := svc.GetOrCreate(context.Background(), checkout.Identity{})
	assert.ErrorIs(t, err, checkout.ErrInvalidIdentity)

	_, err = svc.GetOrCreate(context.Background(), checkout.Identity{UserID: "u1", SessionToken: "s1"})
	assert.ErrorIs(t, err, checkout.ErrInvalidIdentity)
}

func TestAddItemAccumulates(t *testing.T) {
	st, svc, cart := newCartFixture(t)
	st.SeedProduct(checkout.Product{ID: "p1", Price: decimal.NewFromInt(100), Stock: 10})
	ctx := context.Background()

	it, err := svc.AddItem(ctx, cart, "p1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, it.Quantity)

	it, err = svc.AddItem(ctx, cart, "p1", 3)
	require.NoError(t, err)
	assert.Equal(t, 5, it.Quantity)
}

func TestAddItemRejectsOverStock(t *testing.T) {
	st, svc, cart := newCartFixture(t)
	st.SeedProduct(checkout.Product{ID: "p1", Price: decimal.NewFromInt(100), Stock: 5})
	ctx := context.Background()

	_, err := svc.AddItem(ctx, cart, "p1", 3)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, cart, "p1", 3)
	assert.ErrorIs(t, err, checkout.ErrOutOfStock)

	// the failed add left the line untouched
	it, err := st.GetItem(ctx, cart.ID, "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, it.Quantity)
}

func TestAddItemValidation(t *testing.T) {
	st, svc, cart := newCartFixture(t)
	st.SeedProduct(checkout.Product{ID: "p1", Price: decimal.NewFromInt(100), Stock: 5})
	ctx := context.Background()

	_, err := svc.AddItem(ctx, cart, "p1", 0)
	assert.ErrorIs(t, err, checkout.ErrInvalidQuantity)
	_, err = svc.AddItem(ctx, cart, "missing", 1)
	assert.ErrorIs(t, err, checkout.ErrNotFound)
}

// Two concurrent adds that each fit individually but not together: the row
// lock serializes them, so exactly one succeeds.
func TestAddItemConcurrent(t *testing.T) {
	st, svc, cart := newCartFixture(t)
	st.SeedProduct(checkout.Product{ID: "p1", Price: decimal.NewFromInt(100), Stock: 10})
	ctx := context.Background()

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.AddItem(ctx, cart, "p1", 6)
		}(i)
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, checkout.ErrOutOfStock)
			failed++
		}
	}
	assert.Equal(t, 1, failed)

	it, err := st.GetItem(ctx, cart.ID, "p1")
	require.NoError(t, err)
	assert.Equal(t, 6, it.Quantity)
}

func TestUpdateItemIsAbsolute(t *testing.T) {
	st, svc, cart := newCartFixture(t)
	st.SeedProduct(checkout.Product{ID: "p1", Price: decimal.NewFromInt(100), Stock: 10})
	ctx := context.Background()

	_, err := svc.AddItem(ctx, cart, "p1", 5)
	require.NoError(t, err)

	it, err := svc.UpdateItem(ctx, cart, "p1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, it.Quantity)

	_, err = svc.UpdateItem(ctx, cart, "p1", 11)
	assert.ErrorIs(t, err, checkout.ErrOutOfStock)

	_, err = svc.UpdateItem(ctx, cart, "p1", -1)
	assert.ErrorIs(t, err, checkout.ErrInvalidQuantity)
}

func TestUpdateItemZeroRemoves(t *testing.T) {
	st, svc, cart := newCartFixture(t)
	st.SeedProduct(checkout.Product{ID: "p1", Price: decimal.NewFromInt(100), Stock: 10})
	ctx := context.Background()

	_, err := svc.AddItem(ctx, cart, "p1", 2)
	require.NoError(t, err)

	_, err = svc.UpdateItem(ctx, cart, "p1", 0)
	require.NoError(t, err)
	_, err = st.GetItem(ctx, cart.ID, "p1")
	assert.ErrorIs(t, err, checkout.ErrNotFound)
}

func TestRemoveItemMissing(t *testing.T) {
	_, svc, cart := newCartFixture(t)
	err := svc.RemoveItem(context.Background(), cart, "nope")
	assert.ErrorIs(t, err, checkout.ErrNotFound)
}

func TestClearIsIdempotent(t *testing.T) {
	st, svc, cart := newCartFixture(t)
	st.SeedProduct(checkout.Product{ID: "p1", Price: decimal.NewFromInt(100), Stock: 10})
	ctx := context.Background()

	_, err := svc.AddItem(ctx, cart, "p1", 2)
	require.NoError(t, err)
	require.NoError(t, svc.Clear(ctx, cart))
	require.NoError(t, svc.Clear(ctx, cart))

	items, err := st.Items(ctx, cart.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCheckStockAdvisory(t *testing.T) {
	st, svc, cart := newCartFixture(t)
	st.SeedProduct(checkout.Product{ID: "p1", Price: decimal.NewFromInt(100), Stock: 10})
	ctx := context.Background()

	_, err := svc.AddItem(ctx, cart, "p1", 8)
	require.NoError(t, err)

	ok, err := svc.CheckStock(ctx, cart)
	require.NoError(t, err)
	assert.True(t, ok)

	// stock dropped after the line was added
	st.SeedProduct(checkout.Product{ID: "p1", Price: decimal.NewFromInt(100), Stock: 3})
	ok, err = svc.CheckStock(ctx, cart)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTotalPriceUsesCurrentPrices(t *testing.T) {
	st, svc, cart := newCartFixture(t)
	st.SeedProduct(checkout.Product{ID: "p1", Price: decimal.NewFromInt(100), Stock: 10})
	st.SeedProduct(checkout.Product{ID: "p2", Price: decimal.NewFromInt(50), Stock: 10})
	ctx := context.Background()

	_, err := svc.AddItem(ctx, cart, "p1", 2)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, cart, "p2", 1)
	require.NoError(t, err)

	total, err := svc.TotalPrice(ctx, cart)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(250)), "got %s", total)

	// the cart total tracks price changes; only orders freeze prices
	st.SeedProduct(checkout.Product{ID: "p2", Price: decimal.NewFromInt(60), Stock: 10})
	total, err = svc.TotalPrice(ctx, cart)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(260)), "got %s", total)
}
