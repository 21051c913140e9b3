package payment

import (
	"context"
	"testing"

	"github.com/ariefcatur/go-checkout.git/internal/checkout"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockSubmit(t *testing.T) {
	gw := MockGateway{}
	order := checkout.Order{ID: "o1", TotalAmount: decimal.NewFromInt(250), Currency: "USD"}

	res, err := gw.Submit(context.Background(), order, Card{Number: "4242424242424242", CVV: "123"})
	require.NoError(t, err)
	assert.True(t, res.Succeeded)
	assert.NotEmpty(t, res.TransactionID)

	res, err = gw.Submit(context.Background(), order, Card{Number: "4000000000000002", CVV: "123"})
	require.NoError(t, err)
	assert.False(t, res.Succeeded)
	assert.Equal(t, "card_declined", res.Meta["decline_code"])

	_, err = gw.Submit(context.Background(), order, Card{})
	assert.ErrorIs(t, err, checkout.ErrPaymentFailed)
}

func TestMockVerifyWebhook(t *testing.T) {
	gw := MockGateway{}

	ev, err := gw.VerifyWebhook([]byte(`{"transaction_id":"txn_1","order_id":"o1","status":"success","amount":"250","currency":"USD"}`), "")
	require.NoError(t, err)
	assert.Equal(t, EventSucceeded, ev.Type)
	assert.Equal(t, "txn_1", ev.TransactionID)
	assert.Equal(t, "o1", ev.OrderID)
	assert.True(t, ev.Amount.Equal(decimal.NewFromInt(250)))

	ev, err = gw.VerifyWebhook([]byte(`{"transaction_id":"txn_2","order_id":"o1","status":"refunded"}`), "")
	require.NoError(t, err)
	assert.Equal(t, EventRefunded, ev.Type)

	_, err = gw.VerifyWebhook([]byte(`not json`), "")
	assert.ErrorIs(t, err, checkout.ErrWebhookVerification)
	_, err = gw.VerifyWebhook([]byte(`{"status":"success"}`), "")
	assert.ErrorIs(t, err, checkout.ErrWebhookVerification)
	_, err = gw.VerifyWebhook([]byte(`{"transaction_id":"txn_3","order_id":"o1","status":"sideways"}`), "")
	assert.ErrorIs(t, err, checkout.ErrWebhookVerification)
}
