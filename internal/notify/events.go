package notify

import (
	"encoding/json"
	"time"
)

const (
	TopicOrderPaid = "shop.order.paid"
	EventOrderPaid = "OrderPaid"
)

type Envelope struct {
	EventID      string          `json:"event_id"`
	EventType    string          `json:"event_type"`
	EventVersion int             `json:"event_version"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Producer     string          `json:"producer"`
	Payload      json.RawMessage `json:"payload"`
}

type ItemLine struct {
	Name       string `json:"name"`
	PriceCents int    `json:"price_cents"`
	Quantity   int    `json:"quantity"`
}

type OrderPaidPayload struct {
	OrderID       string     `json:"order_id"`
	CustomerEmail string     `json:"customer_email,omitempty"`
	AmountCents   int        `json:"amount_cents"`
	Items         []ItemLine `json:"items"`
}

// PartitionKey keeps every event of one order in order on the topic.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
