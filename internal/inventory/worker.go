package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-checkout.git/internal/checkout"
	"github.com/ariefcatur/go-checkout.git/internal/metrics"
	"github.com/ariefcatur/go-checkout.git/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Worker durably re-applies the stock decrement for a confirmed order. The
// checkout transaction already decremented synchronously; this consumer only
// closes the gap when a line's movement is missing, idempotent by order id.
type Worker struct {
	Tx      checkout.TxManager
	Orders  checkout.OrderStore
	Ledger  *Ledger
	Redis   *redis.Client
	Log     *zap.Logger
	Metrics *metrics.Metrics
}

// HandleOrderCreated is installed as the consumer handler. Returning an error
// triggers the consumer's bounded retry.
func (w *Worker) HandleOrderCreated(ctx context.Context, m kafkago.Message) error {
	var env checkout.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != checkout.EventOrderCreated {
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, "stock", env.EventID)
	if ok, _ := redisx.Exists(ctx, w.Redis, dkey); ok {
		return nil
	}

	var p checkout.OrderCreatedPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return err
	}

	items, err := w.Orders.Items(ctx, p.OrderID)
	if err != nil {
		return err
	}
	missing, err := w.missingLines(ctx, p.OrderID, items)
	if err != nil {
		return err
	}

	if len(missing) > 0 {
		err = w.Tx.WithinTx(ctx, func(ctx context.Context) error {
			for _, it := range missing {
				if err := w.Ledger.Reserve(ctx, p.OrderID, it.ProductID, it.Quantity); err != nil {
					return err
				}
			}
			return nil
		})
		if errors.Is(err, checkout.ErrInsufficientStock) {
			// Stock moved under us; another attempt may see it restored.
			w.Metrics.StockRetries.Inc()
			return fmt.Errorf("%w: order %s: %v", checkout.ErrTransientStockConflict, p.OrderID, err)
		}
		if err != nil {
			w.Metrics.StockRetries.Inc()
			return err
		}
		w.Log.Info("stock reconciled",
			zap.String("order_id", p.OrderID),
			zap.Int("lines", len(missing)))
	}

	_ = w.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	return nil
}

func (w *Worker) missingLines(ctx context.Context, orderID string, items []checkout.OrderItem) ([]checkout.OrderItem, error) {
	applied, err := w.Ledger.Movements.ByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(applied))
	for _, mv := range applied {
		done[mv.ProductID] = true
	}
	var missing []checkout.OrderItem
	for _, it := range items {
		if !done[it.ProductID] {
			missing = append(missing, it)
		}
	}
	return missing, nil
}

// Escalate runs after the retry budget is exhausted. The order is not
// cancelled automatically; an operator picks it up from the alert.
func (w *Worker) Escalate(ctx context.Context, m kafkago.Message, cause error) {
	var env checkout.Envelope
	orderID := ""
	if err := json.Unmarshal(m.Value, &env); err == nil {
		orderID = env.CorrelationID
	}
	w.Metrics.StockEscalations.Inc()
	w.Log.Error("stock reconciliation exhausted retries, manual intervention required",
		zap.String("alert", "manual_intervention"),
		zap.String("order_id", orderID),
		zap.Time("received_at", time.Now().UTC()),
		zap.Error(cause))
}
