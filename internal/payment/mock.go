package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-checkout.git/internal/checkout"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Test card suffixes the mock gateway declines, mirroring the usual
// gateway-sandbox convention.
const declineSuffix = "0002"

// MockGateway simulates a provider in-process: deterministic outcomes, no
// network, unsigned webhooks. Used in development and tests.
type MockGateway struct{}

func (MockGateway) Method() checkout.PaymentMethod { return checkout.MethodMock }

func (MockGateway) Submit(ctx context.Context, order checkout.Order, card Card) (Result, error) {
	if card.Number == "" || card.CVV == "" {
		return Result{}, fmt.Errorf("%w: incomplete card details", checkout.ErrPaymentFailed)
	}
	if strings.HasSuffix(card.Number, declineSuffix) {
		return Result{
			TransactionID: "mock_" + uuid.NewString(),
			Succeeded:     false,
			Meta:          map[string]any{"decline_code": "card_declined"},
		}, nil
	}
	return Result{
		TransactionID: "mock_" + uuid.NewString(),
		Succeeded:     true,
		Meta: map[string]any{
			"amount":   order.TotalAmount.String(),
			"currency": order.Currency,
		},
	}, nil
}

type mockWebhook struct {
	TransactionID string          `json:"transaction_id"`
	OrderID       string          `json:"order_id"`
	Status        string          `json:"status"` // success | failed | refunded
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
}

// VerifyWebhook parses the mock payload. The mock gateway does not sign its
// callbacks; malformed or incomplete payloads still fail verification.
func (MockGateway) VerifyWebhook(body []byte, _ string) (Event, error) {
	var wh mockWebhook
	if err := json.Unmarshal(body, &wh); err != nil {
		return Event{}, fmt.Errorf("%w: %v", checkout.ErrWebhookVerification, err)
	}
	if wh.TransactionID == "" || wh.OrderID == "" {
		return Event{}, fmt.Errorf("%w: missing transaction_id or order_id", checkout.ErrWebhookVerification)
	}
	var typ EventType
	switch wh.Status {
	case "success":
		typ = EventSucceeded
	case "failed":
		typ = EventFailed
	case "refunded":
		typ = EventRefunded
	default:
		return Event{}, fmt.Errorf("%w: unknown status %q", checkout.ErrWebhookVerification, wh.Status)
	}
	var raw map[string]any
	_ = json.Unmarshal(body, &raw)
	return Event{
		Gateway:       checkout.MethodMock,
		Type:          typ,
		TransactionID: wh.TransactionID,
		OrderID:       wh.OrderID,
		Amount:        wh.Amount,
		Currency:      wh.Currency,
		Raw:           raw,
	}, nil
}

func (MockGateway) Refund(ctx context.Context, transactionID string, amount decimal.Decimal) error {
	if transactionID == "" {
		return fmt.Errorf("%w: missing transaction id", checkout.ErrInvalidRefundTarget)
	}
	return nil
}
