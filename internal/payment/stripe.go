package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/go-checkout.git/internal/checkout"
	"github.com/shopspring/decimal"
)

const signatureTolerance = 5 * time.Minute

// StripeGateway talks to the Stripe HTTP API directly; the core only needs
// charge, refund and webhook verification, so the full SDK stays out.
type StripeGateway struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	HTTPClient    *http.Client

	// now is swappable for signature-tolerance tests.
	now func() time.Time
}

func NewStripeGateway(baseURL, apiKey, webhookSecret string) *StripeGateway {
	return &StripeGateway{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		APIKey:        apiKey,
		WebhookSecret: webhookSecret,
		HTTPClient:    &http.Client{Timeout: 10 * time.Second},
		now:           time.Now,
	}
}

func (g *StripeGateway) Method() checkout.PaymentMethod { return checkout.MethodStripe }

// Submit creates and confirms a payment intent in one call. Amounts go over
// the wire in the currency's minor unit.
func (g *StripeGateway) Submit(ctx context.Context, order checkout.Order, card Card) (Result, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(minorUnits(order.TotalAmount), 10))
	form.Set("currency", strings.ToLower(order.Currency))
	form.Set("confirm", "true")
	form.Set("metadata[order_id]", order.ID)
	form.Set("payment_method_data[type]", "card")
	form.Set("payment_method_data[card][number]", card.Number)
	form.Set("payment_method_data[card][exp_month]", strconv.Itoa(card.ExpMonth))
	form.Set("payment_method_data[card][exp_year]", strconv.Itoa(card.ExpYear))
	form.Set("payment_method_data[card][cvc]", card.CVV)

	var resp struct {
		ID     string         `json:"id"`
		Status string         `json:"status"`
		Error  map[string]any `json:"error"`
	}
	if err := g.post(ctx, "/v1/payment_intents", form, &resp); err != nil {
		return Result{}, err
	}
	if resp.Error != nil {
		return Result{}, fmt.Errorf("%w: %v", checkout.ErrPaymentFailed, resp.Error["message"])
	}
	return Result{
		TransactionID: resp.ID,
		Succeeded:     resp.Status == "succeeded",
		Meta:          map[string]any{"status": resp.Status},
	}, nil
}

func (g *StripeGateway) Refund(ctx context.Context, transactionID string, amount decimal.Decimal) error {
	form := url.Values{}
	form.Set("payment_intent", transactionID)
	if amount.IsPositive() {
		form.Set("amount", strconv.FormatInt(minorUnits(amount), 10))
	}
	var resp struct {
		ID     string         `json:"id"`
		Status string         `json:"status"`
		Error  map[string]any `json:"error"`
	}
	if err := g.post(ctx, "/v1/refunds", form, &resp); err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("stripe refund %s: %v", transactionID, resp.Error["message"])
	}
	return nil
}

// VerifyWebhook checks the Stripe-Signature header (t=...,v1=... over
// "t.body" with HMAC-SHA256) before trusting the payload.
func (g *StripeGateway) VerifyWebhook(body []byte, signature string) (Event, error) {
	ts, sig, err := parseSignatureHeader(signature)
	if err != nil {
		return Event{}, err
	}
	if d := g.now().Sub(time.Unix(ts, 0)); d > signatureTolerance || d < -signatureTolerance {
		return Event{}, fmt.Errorf("%w: timestamp outside tolerance", checkout.ErrWebhookVerification)
	}
	mac := hmac.New(sha256.New, []byte(g.WebhookSecret))
	fmt.Fprintf(mac, "%d.%s", ts, body)
	if !hmac.Equal([]byte(hex.EncodeToString(mac.Sum(nil))), []byte(sig)) {
		return Event{}, fmt.Errorf("%w: signature mismatch", checkout.ErrWebhookVerification)
	}
	return g.parseEvent(body)
}

type stripeEvent struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID             string            `json:"id"`
			PaymentIntent  string            `json:"payment_intent"`
			AmountTotal    int64             `json:"amount_total"`
			AmountRefunded int64             `json:"amount_refunded"`
			Currency       string            `json:"currency"`
			Metadata       map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

func (g *StripeGateway) parseEvent(body []byte) (Event, error) {
	var ev stripeEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: %v", checkout.ErrWebhookVerification, err)
	}
	obj := ev.Data.Object

	txn := obj.PaymentIntent
	if txn == "" {
		txn = obj.ID
	}
	out := Event{
		Gateway:       checkout.MethodStripe,
		TransactionID: txn,
		OrderID:       obj.Metadata["order_id"],
		Currency:      strings.ToUpper(obj.Currency),
	}
	var raw map[string]any
	_ = json.Unmarshal(body, &raw)
	out.Raw = raw

	switch ev.Type {
	case "checkout.session.completed", "payment_intent.succeeded":
		out.Type = EventSucceeded
		out.Amount = fromMinorUnits(obj.AmountTotal)
	case "payment_intent.payment_failed":
		out.Type = EventFailed
	case "charge.refunded":
		out.Type = EventRefunded
		out.Amount = fromMinorUnits(obj.AmountRefunded)
	default:
		return Event{}, fmt.Errorf("%w: unhandled event type %q", checkout.ErrWebhookVerification, ev.Type)
	}
	if out.TransactionID == "" {
		return Event{}, fmt.Errorf("%w: missing transaction id", checkout.ErrWebhookVerification)
	}
	return out, nil
}

func (g *StripeGateway) post(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+g.APIKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func parseSignatureHeader(header string) (ts int64, sig string, err error) {
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts, err = strconv.ParseInt(v, 10, 64)
			if err != nil {
				return 0, "", fmt.Errorf("%w: bad timestamp", checkout.ErrWebhookVerification)
			}
		case "v1":
			sig = v
		}
	}
	if ts == 0 || sig == "" {
		return 0, "", fmt.Errorf("%w: malformed signature header", checkout.ErrWebhookVerification)
	}
	return ts, sig, nil
}

func minorUnits(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func fromMinorUnits(n int64) decimal.Decimal {
	return decimal.New(n, -2)
}
