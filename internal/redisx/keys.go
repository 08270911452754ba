package redisx

import "time"

const (
	// Checkout idempotency fast path: idem:order:create:{external_id} -> order_id.
	// The database unique constraint stays the source of truth.
	KeyIdemCheckout = "idem:order:create:%s"

	// Cached order status: order_status:{order_id} -> {"status": "..."}
	KeyOrderStatus = "order_status:%s"

	// Consumer dedup: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
