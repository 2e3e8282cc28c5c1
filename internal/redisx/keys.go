package redisx

import "time"

const (
	// Webhook event dedup fast path: dedup:webhook:{event_id} -> "1".
	// Written only after a successful reconciliation; the conditional
	// update in the store stays the authoritative idempotency gate.
	KeyDedupWebhook = "dedup:webhook:%s"

	// Notifier-side dedup so a redelivered order.paid event does not
	// mail the customer twice: dedup:notify:{event_id}
	KeyDedupNotify = "dedup:notify:%s"

	// Cache order status for GET: order_status:{order_id}
	KeyOrderStatus = "order_status:%s"
)

var (
	TTLDedup       = 48 * time.Hour
	TTLStatusCache = 5 * time.Minute
)
