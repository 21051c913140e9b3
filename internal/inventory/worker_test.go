package inventory_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ariefcatur/go-checkout.git/internal/checkout"
	"github.com/ariefcatur/go-checkout.git/internal/inventory"
	"github.com/ariefcatur/go-checkout.git/internal/memstore"
	"github.com/ariefcatur/go-checkout.git/internal/metrics"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// deadRedis returns a client with no server behind it. Dedup degrades to a
// no-op (errors are advisory) so handlers fall back to their own idempotency.
func deadRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func newWorkerFixture(t *testing.T) (*memstore.Store, *inventory.Worker) {
	t.Helper()
	st := memstore.New()
	w := &inventory.Worker{
		Tx:      st,
		Orders:  memstore.Orders{Store: st},
		Ledger:  &inventory.Ledger{Products: st, Movements: st},
		Redis:   deadRedis(),
		Log:     zap.NewNop(),
		Metrics: metrics.New("test"),
	}
	return st, w
}

func orderCreatedMessage(t *testing.T, orderID string) kafkago.Message {
	t.Helper()
	payload, err := json.Marshal(checkout.OrderCreatedPayload{OrderID: orderID})
	require.NoError(t, err)
	env := checkout.Envelope{
		EventID:       uuid.NewString(),
		EventType:     checkout.EventOrderCreated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      "test",
		CorrelationID: orderID,
		Payload:       payload,
	}
	b, err := json.Marshal(env)
	require.NoError(t, err)
	return kafkago.Message{Value: b}
}

func TestHandleOrderCreatedAppliesMissingLines(t *testing.T) {
	st, w := newWorkerFixture(t)
	st.SeedProduct(checkout.Product{ID: "p1", Price: decimal.NewFromInt(10), Stock: 10})
	ctx := context.Background()

	order := checkout.Order{ID: "o1", UserID: "u1", Status: checkout.OrderPending, IdempotencyKey: "k1"}
	items := []checkout.OrderItem{{OrderID: "o1", ProductID: "p1", Quantity: 3, PriceAtPurchase: decimal.NewFromInt(10)}}
	require.NoError(t, st.Insert(ctx, order, items))

	require.NoError(t, w.HandleOrderCreated(ctx, orderCreatedMessage(t, "o1")))

	p, err := st.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 7, p.Stock)
	moves, err := st.ByOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Len(t, moves, 1)
}

// Redelivery never decrements twice: the movement table already has the line.
func TestHandleOrderCreatedRedelivery(t *testing.T) {
	st, w := newWorkerFixture(t)
	st.SeedProduct(checkout.Product{ID: "p1", Price: decimal.NewFromInt(10), Stock: 10})
	ctx := context.Background()

	order := checkout.Order{ID: "o1", UserID: "u1", Status: checkout.OrderPending, IdempotencyKey: "k1"}
	items := []checkout.OrderItem{{OrderID: "o1", ProductID: "p1", Quantity: 3, PriceAtPurchase: decimal.NewFromInt(10)}}
	require.NoError(t, st.Insert(ctx, order, items))

	require.NoError(t, w.HandleOrderCreated(ctx, orderCreatedMessage(t, "o1")))
	require.NoError(t, w.HandleOrderCreated(ctx, orderCreatedMessage(t, "o1")))

	p, err := st.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 7, p.Stock)
}

func TestHandleOrderCreatedConflictIsRetriable(t *testing.T) {
	st, w := newWorkerFixture(t)
	st.SeedProduct(checkout.Product{ID: "p1", Price: decimal.NewFromInt(10), Stock: 1})
	ctx := context.Background()

	order := checkout.Order{ID: "o1", UserID: "u1", Status: checkout.OrderPending, IdempotencyKey: "k1"}
	items := []checkout.OrderItem{{OrderID: "o1", ProductID: "p1", Quantity: 5, PriceAtPurchase: decimal.NewFromInt(10)}}
	require.NoError(t, st.Insert(ctx, order, items))

	err := w.HandleOrderCreated(ctx, orderCreatedMessage(t, "o1"))
	assert.ErrorIs(t, err, checkout.ErrTransientStockConflict)

	// the failed transaction left nothing behind
	p, _ := st.Get(ctx, "p1")
	assert.Equal(t, 1, p.Stock)
	moves, _ := st.ByOrder(ctx, "o1")
	assert.Empty(t, moves)
}

func TestHandleOrderCreatedIgnoresOtherEvents(t *testing.T) {
	st, w := newWorkerFixture(t)
	st.SeedProduct(checkout.Product{ID: "p1", Price: decimal.NewFromInt(10), Stock: 10})

	env := checkout.Envelope{EventID: uuid.NewString(), EventType: "SomethingElse"}
	b, err := json.Marshal(env)
	require.NoError(t, err)
	require.NoError(t, w.HandleOrderCreated(context.Background(), kafkago.Message{Value: b}))

	p, _ := st.Get(context.Background(), "p1")
	assert.Equal(t, 10, p.Stock)
}
