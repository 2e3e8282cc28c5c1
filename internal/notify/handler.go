package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/greenzone/shop-backend/internal/kafka"
	"github.com/greenzone/shop-backend/internal/redisx"
)

// Handler is the consumer side: it turns OrderPaid events into customer and
// operations mail. Mail is best effort; a send failure is logged and the
// message still committed, because a retry storm of duplicate mail is worse
// than a dropped one.
type Handler struct {
	Redis      *redis.Client
	Mailer     Mailer
	AdminEmail string
}

func (h *Handler) HandleOrderPaid(ctx context.Context, m kafkago.Message) error {
	var env Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != EventOrderPaid {
		return nil
	}

	// dedup before sending: duplicate mail cannot be unsent
	dkey := fmt.Sprintf(redisx.KeyDedupNotify, env.EventID)
	if exists, _ := redisx.Exists(ctx, h.Redis, dkey); exists {
		return nil
	}
	_ = h.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	p, err := kafkax.UnwrapPayload[OrderPaidPayload](env.Payload)
	if err != nil {
		return err
	}

	body := summary(p)
	if p.CustomerEmail != "" {
		subject := fmt.Sprintf("Green zone — Order %s received", p.OrderID)
		if err := h.Mailer.Send(ctx, p.CustomerEmail, subject, body); err != nil {
			log.Error().Err(err).Str("order_id", p.OrderID).Msg("customer mail failed")
		}
	}
	if h.AdminEmail != "" {
		subject := fmt.Sprintf("New paid order (%s)", p.OrderID)
		if err := h.Mailer.Send(ctx, h.AdminEmail, subject, body); err != nil {
			log.Error().Err(err).Str("order_id", p.OrderID).Msg("admin mail failed")
		}
	}
	return nil
}

func summary(p OrderPaidPayload) string {
	var b strings.Builder
	b.WriteString("Thanks — we received your payment. Order summary:\n")
	for _, it := range p.Items {
		fmt.Fprintf(&b, "- %s x %d — $%.2f\n", it.Name, it.Quantity, float64(it.PriceCents*it.Quantity)/100)
	}
	fmt.Fprintf(&b, "Total: $%.2f\n", float64(p.AmountCents)/100)
	return b.String()
}
