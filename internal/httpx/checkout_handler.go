package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-checkout.git/internal/checkout"
	kafkax "github.com/ariefcatur/go-checkout.git/internal/kafka"
	"github.com/ariefcatur/go-checkout.git/internal/metrics"
	"github.com/ariefcatur/go-checkout.git/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

const idempotencyHeader = "Idempotency-Key"

type CheckoutHandler struct {
	Factory  *checkout.OrderFactory
	Orders   checkout.OrderStore
	Producer *kafkax.Producer
	Redis    *redis.Client
	Metrics  *metrics.Metrics
	Service  string
}

type checkoutReq struct {
	IdempotencyKey  string `json:"idempotency_key"`
	ShippingAddress string `json:"shipping_address"`
	BillingAddress  string `json:"billing_address"`
}

type orderResp struct {
	Order checkout.Order       `json:"order"`
	Items []checkout.OrderItem `json:"items"`
}

func (h *CheckoutHandler) Register(r *chi.Mux) {
	r.Post("/checkout", h.checkout)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
}

func (h *CheckoutHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	if key == "" {
		key = strings.TrimSpace(req.IdempotencyKey)
	}
	if key == "" || req.ShippingAddress == "" || req.BillingAddress == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	owner := identity(w, r)

	// Fast-path rejection via redis; the orders.idempotency_key unique
	// constraint remains the source of truth.
	idemKey := fmt.Sprintf(redisx.KeyIdemCheckout, key)
	if ok, _ := redisx.Exists(ctx, h.Redis, idemKey); ok {
		h.Metrics.CheckoutTotal.WithLabelValues("rejected").Inc()
		writeError(w, fmt.Errorf("%w: %s", checkout.ErrDuplicateIdempotencyKey, key))
		return
	}

	order, items, err := h.Factory.Checkout(ctx, owner, key, req.ShippingAddress, req.BillingAddress)
	if err != nil {
		outcome := "error"
		if errStatus(err) != http.StatusInternalServerError {
			outcome = "rejected"
		}
		h.Metrics.CheckoutTotal.WithLabelValues(outcome).Inc()
		writeError(w, err)
		return
	}
	h.Metrics.CheckoutTotal.WithLabelValues("created").Inc()

	_ = h.Redis.Set(ctx, idemKey, order.ID, redisx.TTLIdempotency).Err()
	statusKey := fmt.Sprintf(redisx.KeyOrderStatus, order.ID)
	_ = h.Redis.Set(ctx, statusKey, `{"status":"pending"}`, redisx.TTLStatusCache).Err()

	// publish after commit: consumers never see an order the tx rolled back
	ev := checkout.Envelope{
		EventID:       uuid.NewString(),
		EventType:     checkout.EventOrderCreated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: order.ID,
		Payload:       kafkax.MustMarshal(checkout.CreatedEvent(order, items)),
	}
	h.Producer.Publish(checkout.PartitionKey(order.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(checkout.EventOrderCreated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)

	writeJSON(w, http.StatusCreated, orderResp{Order: order, Items: items})
}

func (h *CheckoutHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	orders, err := h.Orders.ListByOwner(ctx, identity(w, r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *CheckoutHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	order, err := h.Orders.Get(ctx, orderID)
	if err != nil || order.Owner() != identity(w, r) {
		writeError(w, fmt.Errorf("%w: order", checkout.ErrNotFound))
		return
	}
	items, err := h.Orders.Items(ctx, orderID)
	if err != nil {
		writeError(w, err)
		return
	}

	statusKey := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	_ = h.Redis.Set(ctx, statusKey, fmt.Sprintf(`{"status":%q}`, order.Status), redisx.TTLStatusCache).Err()

	writeJSON(w, http.StatusOK, orderResp{Order: order, Items: items})
}
