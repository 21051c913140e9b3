package checkout

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated   = "OrderCreated"
	EventPaymentWebhook = "PaymentWebhookReceived"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id or transaction id
	Payload       json.RawMessage `json:"payload"`
}

type OrderLine struct {
	ProductID       string          `json:"product_id"`
	Qty             int             `json:"qty"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
}

type OrderCreatedPayload struct {
	OrderID      string          `json:"order_id"`
	UserID       string          `json:"user_id,omitempty"`
	SessionToken string          `json:"session_token,omitempty"`
	Items        []OrderLine     `json:"items"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Currency     string          `json:"currency"`
}
