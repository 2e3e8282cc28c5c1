package orders

import "time"

type Order struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id"`
	CustomerEmail string    `json:"customer_email,omitempty"`
	AmountCents   int       `json:"amount_cents"`
	Status        Status    `json:"status"`
	Shipped       bool      `json:"shipped"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// OrderItem freezes name and price at checkout time; later product edits
// must not change what the customer was charged.
type OrderItem struct {
	ID         string `json:"id"`
	OrderID    string `json:"order_id"`
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	PriceCents int    `json:"price_cents"`
	Quantity   int    `json:"quantity"`
}

type OrderWithItems struct {
	Order
	Items []OrderItem `json:"items"`
}

// ClampedStock records a decrement that would have driven stock negative
// and was floored at zero instead.
type ClampedStock struct {
	ProductID string
	Requested int
	Available int
}
