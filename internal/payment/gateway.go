package payment

import (
	"context"

	"github.com/ariefcatur/go-checkout.git/internal/checkout"
	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventSucceeded EventType = "payment_succeeded"
	EventFailed    EventType = "payment_failed"
	EventRefunded  EventType = "payment_refunded"
)

// Event is a verified, parsed gateway callback.
type Event struct {
	Gateway       checkout.PaymentMethod `json:"gateway"`
	Type          EventType              `json:"type"`
	TransactionID string                 `json:"transaction_id"`
	OrderID       string                 `json:"order_id"`
	Amount        decimal.Decimal        `json:"amount"`
	Currency      string                 `json:"currency"`
	Raw           map[string]any         `json:"raw"`
}

type Card struct {
	Number   string `json:"number"`
	ExpMonth int    `json:"expiry_month"`
	ExpYear  int    `json:"expiry_year"`
	CVV      string `json:"cvv"`
}

type Result struct {
	TransactionID string
	Succeeded     bool
	Meta          map[string]any
}

// Gateway is the capability the core needs from a payment provider: submit a
// charge, authenticate and parse a webhook, issue a refund. Provider SDKs and
// wire formats stay behind this interface.
type Gateway interface {
	Method() checkout.PaymentMethod
	Submit(ctx context.Context, order checkout.Order, card Card) (Result, error)
	VerifyWebhook(body []byte, signature string) (Event, error)
	Refund(ctx context.Context, transactionID string, amount decimal.Decimal) error
}
