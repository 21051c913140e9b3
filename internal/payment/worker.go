package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ariefcatur/go-checkout.git/internal/checkout"
	"github.com/ariefcatur/go-checkout.git/internal/metrics"
	"github.com/ariefcatur/go-checkout.git/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Worker consumes queued webhook events. Intake already verified signatures;
// here we dedup by (transaction id, event type) and apply the state machine.
type Worker struct {
	Service *Service
	Redis   *redis.Client
	Log     *zap.Logger
	Metrics *metrics.Metrics
}

func (w *Worker) HandleWebhookEvent(ctx context.Context, m kafkago.Message) error {
	var env checkout.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != checkout.EventPaymentWebhook {
		return nil
	}

	var ev Event
	if err := json.Unmarshal(env.Payload, &ev); err != nil {
		return err
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, "payment", ev.TransactionID+":"+string(ev.Type))
	if ok, _ := redisx.Exists(ctx, w.Redis, dkey); ok {
		return nil
	}

	if err := w.Service.HandleEvent(ctx, ev); err != nil {
		w.Metrics.WebhookEvents.WithLabelValues(string(ev.Gateway), "error").Inc()
		return err
	}
	w.Metrics.WebhookEvents.WithLabelValues(string(ev.Gateway), "processed").Inc()

	_ = w.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	return nil
}

// Escalate runs when a webhook event exhausts the retry budget.
func (w *Worker) Escalate(ctx context.Context, m kafkago.Message, cause error) {
	var env checkout.Envelope
	txn := ""
	if err := json.Unmarshal(m.Value, &env); err == nil {
		txn = env.CorrelationID
	}
	w.Log.Error("webhook reconciliation exhausted retries",
		zap.String("alert", "manual_intervention"),
		zap.String("transaction_id", txn),
		zap.Error(cause))
}
