package httpx

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/ariefcatur/go-checkout.git/internal/checkout"
	kafkax "github.com/ariefcatur/go-checkout.git/internal/kafka"
	"github.com/ariefcatur/go-checkout.git/internal/metrics"
	"github.com/ariefcatur/go-checkout.git/internal/payment"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	Service  *payment.Service
	Payments checkout.PaymentStore
	Producer *kafkax.Producer // topic: checkout.payment.webhook
	Metrics  *metrics.Metrics
	Log      *zap.Logger
	Name     string
}

type mockPayReq struct {
	OrderID string       `json:"order_id"`
	Card    payment.Card `json:"card_details"`
}

type refundReq struct {
	Amount *decimal.Decimal `json:"amount"`
}

func (h *PaymentHandler) Register(r *chi.Mux) {
	r.Post("/payments/mock", h.mockPayment)
	r.Post("/payments/{id}/refund", h.refund)
	r.Get("/orders/{id}/payments", h.listByOrder)
	r.Post("/webhooks/mock", h.webhook(checkout.MethodMock, ""))
	r.Post("/webhooks/stripe", h.webhook(checkout.MethodStripe, "Stripe-Signature"))
}

func (h *PaymentHandler) mockPayment(w http.ResponseWriter, r *http.Request) {
	var req mockPayReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	p, err := h.Service.Submit(ctx, req.OrderID, identity(w, r), checkout.MethodMock, req.Card)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PaymentHandler) refund(w http.ResponseWriter, r *http.Request) {
	var req refundReq
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	p, err := h.Service.Refund(ctx, chi.URLParam(r, "id"), identity(w, r), req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PaymentHandler) listByOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	ps, err := h.Payments.ListByOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

// webhook verifies the callback inline, then queues the parsed event instead
// of processing it: the gateway gets its 200 fast and bursts land in kafka.
// A payload that fails verification is logged and dropped, never retried.
func (h *PaymentHandler) webhook(method checkout.PaymentMethod, sigHeader string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read body"})
			return
		}
		gw, err := h.Service.Gateway(method)
		if err != nil {
			writeError(w, err)
			return
		}
		sig := ""
		if sigHeader != "" {
			sig = r.Header.Get(sigHeader)
		}
		ev, err := gw.VerifyWebhook(body, sig)
		if err != nil {
			h.Metrics.WebhookEvents.WithLabelValues(string(method), "dropped").Inc()
			h.Log.Warn("webhook rejected",
				zap.String("gateway", string(method)),
				zap.Error(err))
			writeError(w, err)
			return
		}

		env := checkout.Envelope{
			EventID:       uuid.NewString(),
			EventType:     checkout.EventPaymentWebhook,
			EventVersion:  1,
			OccurredAt:    time.Now().UTC(),
			Producer:      h.Name,
			CorrelationID: ev.TransactionID,
			Payload:       kafkax.MustMarshal(ev),
		}
		h.Producer.Publish(checkout.PartitionKey(ev.TransactionID), kafkax.MustMarshal(env),
			kafkago.Header{Key: "x-event-type", Value: []byte(checkout.EventPaymentWebhook)},
			kafkago.Header{Key: "x-event-version", Value: []byte("1")},
		)
		h.Metrics.WebhookEvents.WithLabelValues(string(method), "queued").Inc()
		writeJSON(w, http.StatusOK, map[string]string{"status": "queued"})
	}
}
