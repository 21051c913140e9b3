package inventory_test

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

func newLedgerFixture() (*memstore.Store, *inventory.Ledger) {
	st := memstore.New()
	return st, &inventory.Ledger{Products: st, Movements: st}
}

func TestReserveDecrements(t *testing.T) {
	st, led := newLedgerFixture()
	st.SeedProduct(checkout.Product{ID: "p1", Price: decimal.NewFromInt(10), Stock: 5})
	ctx := context.Background()

	require.NoError(t, led.Reserve(ctx, "o1", "p1", 3))
	p, err := st.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Stock)
}

// Replaying the same (order, product) reservation is a no-op: the movement is
// already on record, stock is not touched twice.
func TestReserveIdempotentPerOrderLine(t *testing.T) {
	st, led := newLedgerFixture()
	st.SeedProduct(checkout.Product{ID: "p1", Price: decimal.NewFromInt(10), Stock: 5})
	ctx := context.Background()

	require.NoError(t, led.Reserve(ctx, "o1", "p1", 3))
	require.NoError(t, led.Reserve(ctx, "o1", "p1", 3))
	p, err := st.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Stock)

	// a different order still decrements
	require.NoError(t, led.Reserve(ctx, "o2", "p1", 2))
	p, _ = st.Get(ctx, "p1")
	assert.Equal(t, 0, p.Stock)
}

func TestReserveInsufficientStock(t *testing.T) {
	st, led := newLedgerFixture()
	st.SeedProduct(checkout.Product{ID: "p1", Price: decimal.NewFromInt(10), Stock: 2})
	ctx := context.Background()

	err := led.Reserve(ctx, "o1", "p1", 3)
	assert.ErrorIs(t, err, checkout.ErrInsufficientStock)
	p, _ := st.Get(ctx, "p1")
	assert.Equal(t, 2, p.Stock)
}

func TestReserveValidation(t *testing.T) {
	st, led := newLedgerFixture()
	st.SeedProduct(checkout.Product{ID: "p1", Price: decimal.NewFromInt(10), Stock: 2})
	ctx := context.Background()

	assert.ErrorIs(t, led.Reserve(ctx, "o1", "p1", 0), checkout.ErrInvalidQuantity)
	assert.ErrorIs(t, led.Reserve(ctx, "o1", "missing", 1), checkout.ErrNotFound)
}

// Stock can never be driven below zero by any sequence of reservations.
func TestStockNeverNegative(t *testing.T) {
	st, led := newLedgerFixture()
	st.SeedProduct(checkout.Product{ID: "p1", Price: decimal.NewFromInt(10), Stock: 7})
	ctx := context.Background()

	orders := []struct {
		id  string
		qty int
	}{
		{"o1", 3}, {"o2", 3}, {"o3", 3}, {"o4", 1}, {"o5", 2},
	}
	granted := 0
	for _, o := range orders {
		if err := led.Reserve(ctx, o.id, "p1", o.qty); err == nil {
			granted += o.qty
		}
	}
	p, err := st.Get(ctx, "p1")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, p.Stock, 0)
	assert.Equal(t, 7-granted, p.Stock)
}

func TestAvailable(t *testing.T) {
	st, led := newLedgerFixture()
	st.SeedProduct(checkout.Product{ID: "p1", Price: decimal.NewFromInt(10), Stock: 4})
	ctx := context.Background()

	ok, err := led.Available(ctx, "p1", 4)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = led.Available(ctx, "p1", 5)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = led.Available(ctx, "missing", 1)
	assert.ErrorIs(t, err, checkout.ErrNotFound)
}
