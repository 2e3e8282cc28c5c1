package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/greenzone/shop-backend/internal/kafka"
	"github.com/greenzone/shop-backend/internal/orders"
)

// Publisher is the producer side of the notification surface: after a
// successful reconciliation it emits an OrderPaid envelope for the mailer
// worker. The underlying producer is async, so this never blocks or fails
// the caller.
type Publisher struct {
	Producer *kafkax.Producer
	Service  string
}

func (p *Publisher) OrderPaid(ctx context.Context, o orders.Order, items []orders.OrderItem) {
	lines := make([]ItemLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, ItemLine{Name: it.Name, PriceCents: it.PriceCents, Quantity: it.Quantity})
	}

	ev := Envelope{
		EventID:      uuid.NewString(),
		EventType:    EventOrderPaid,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     p.Service,
		Payload: kafkax.MustMarshal(OrderPaidPayload{
			OrderID:       o.ID,
			CustomerEmail: o.CustomerEmail,
			AmountCents:   o.AmountCents,
			Items:         lines,
		}),
	}

	p.Producer.Publish(PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(EventOrderPaid)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
