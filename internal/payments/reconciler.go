package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/greenzone/shop-backend/internal/orders"
	"github.com/greenzone/shop-backend/internal/redisx"
	"github.com/greenzone/shop-backend/internal/stripex"
)

// ErrMalformedPayload marks an event body that could not be decoded; the
// webhook surface maps it to a client error rather than a retryable one.
var ErrMalformedPayload = errors.New("malformed event payload")

type OrderStore interface {
	FindBySessionID(ctx context.Context, sessionID string) (orders.Order, error)
	ItemsByOrder(ctx context.Context, orderID string) ([]orders.OrderItem, error)
	MarkPaid(ctx context.Context, orderID string) (bool, []orders.ClampedStock, error)
}

type SessionRetriever interface {
	RetrieveSession(ctx context.Context, id string) (stripex.Session, error)
}

type Verifier interface {
	Verify(payload []byte, header string) error
}

// Notifier is fire-and-forget; a failure here must never roll back the
// payment/stock transaction.
type Notifier interface {
	OrderPaid(ctx context.Context, o orders.Order, items []orders.OrderItem)
}

type Ack struct {
	Received bool `json:"received"`
}

// Reconciler drives pending orders to paid off provider events. Both entry
// points (the asynchronous webhook and the synchronous return-from-payment
// check) converge on reconcile and therefore on the same idempotency gate,
// so duplicate and out-of-order deliveries all land on the same end state.
type Reconciler struct {
	Store    OrderStore
	Verifier Verifier
	Sessions SessionRetriever
	Notifier Notifier

	// Redis is an optional dedup fast path keyed by provider event id.
	// The conditional update inside MarkPaid stays authoritative.
	Redis *redis.Client
}

// HandlePaymentEvent processes one delivered webhook event. Provider
// retries must not be failed for anything ignorable: unknown event types,
// unknown sessions and already-settled orders are all acknowledged.
func (r *Reconciler) HandlePaymentEvent(ctx context.Context, payload []byte, sigHeader string) (Ack, error) {
	if err := r.Verifier.Verify(payload, sigHeader); err != nil {
		return Ack{}, err
	}

	ev, err := stripex.ParseEvent(payload)
	if err != nil {
		return Ack{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	if ev.Type != stripex.EventCheckoutCompleted {
		return Ack{Received: true}, nil
	}

	if r.seen(ctx, ev.ID) {
		return Ack{Received: true}, nil
	}

	return r.reconcile(ctx, ev.Data.Object.ID, ev.ID)
}

// ConfirmSession covers the customer's browser returning before the webhook
// arrives: the session status is pulled from the provider directly and, if
// paid, the order goes through the same transition.
func (r *Reconciler) ConfirmSession(ctx context.Context, sessionID string) error {
	sess, err := r.Sessions.RetrieveSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("retrieve session %s: %w", sessionID, err)
	}
	if sess.PaymentStatus != stripex.PaymentStatusPaid {
		log.Debug().Str("session_id", sessionID).Str("payment_status", sess.PaymentStatus).
			Msg("session not paid, nothing to reconcile")
		return nil
	}
	_, err = r.reconcile(ctx, sessionID, "")
	return err
}

func (r *Reconciler) reconcile(ctx context.Context, sessionID, eventID string) (Ack, error) {
	order, err := r.Store.FindBySessionID(ctx, sessionID)
	if errors.Is(err, orders.ErrNotFound) {
		// orphaned session, e.g. checkout persistence failed after the
		// session was created
		log.Warn().Str("session_id", sessionID).Msg("payment event for unknown session, ignored")
		return Ack{Received: true}, nil
	}
	if err != nil {
		return Ack{}, fmt.Errorf("find order by session: %w", err)
	}

	if order.Status.Terminal() {
		r.markSeen(ctx, eventID)
		return Ack{Received: true}, nil
	}

	paid, clamped, err := r.Store.MarkPaid(ctx, order.ID)
	if err != nil {
		return Ack{}, fmt.Errorf("mark order %s paid: %w", order.ID, err)
	}
	if !paid {
		// lost the race against a concurrent delivery, which is fine
		r.markSeen(ctx, eventID)
		return Ack{Received: true}, nil
	}

	for _, c := range clamped {
		log.Warn().Str("order_id", order.ID).Str("product_id", c.ProductID).
			Int("requested", c.Requested).Int("available", c.Available).
			Msg("stock decrement clamped at zero, inventory inconsistent")
	}

	log.Info().Str("order_id", order.ID).Str("session_id", sessionID).
		Int("amount_cents", order.AmountCents).Msg("order paid")

	if r.Redis != nil {
		// drop the cached status so reads see paid immediately
		_ = r.Redis.Del(ctx, fmt.Sprintf(redisx.KeyOrderStatus, order.ID)).Err()
	}

	order.Status = orders.StatusPaid
	if r.Notifier != nil {
		items, err := r.Store.ItemsByOrder(ctx, order.ID)
		if err != nil {
			// the transition is committed; notification is best effort
			log.Warn().Err(err).Str("order_id", order.ID).Msg("load items for notification failed")
		} else {
			r.Notifier.OrderPaid(ctx, order, items)
		}
	}

	r.markSeen(ctx, eventID)
	return Ack{Received: true}, nil
}

func (r *Reconciler) seen(ctx context.Context, eventID string) bool {
	if r.Redis == nil || eventID == "" {
		return false
	}
	ok, err := redisx.Exists(ctx, r.Redis, fmt.Sprintf(redisx.KeyDedupWebhook, eventID))
	if err != nil {
		return false // cache down, fall through to the store gate
	}
	return ok
}

// markSeen records the event id only after the order is settled, so a
// failed attempt stays retryable.
func (r *Reconciler) markSeen(ctx context.Context, eventID string) {
	if r.Redis == nil || eventID == "" {
		return
	}
	_ = r.Redis.Set(ctx, fmt.Sprintf(redisx.KeyDedupWebhook, eventID), "1", redisx.TTLDedup).Err()
}
