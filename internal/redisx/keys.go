package redisx

import "time"

const (
	// Checkout idempotency fast-path: idem:checkout:{idempotency_key} -> order_id.
	// The orders.idempotency_key unique constraint stays the source of truth.
	KeyIdemCheckout = "idem:checkout:%s"

	// Order status cache: order_status:{order_id} -> {"status": "..."}
	KeyOrderStatus = "order_status:%s"

	// Consumer dedup: dedup:{consumer}:{id} (event_id, or txn_id:event_type)
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
