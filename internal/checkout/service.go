package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/greenzone/shop-backend/internal/catalog"
	"github.com/greenzone/shop-backend/internal/orders"
	"github.com/greenzone/shop-backend/internal/stripex"
)

type Catalog interface {
	Get(ctx context.Context, id string) (catalog.Product, error)
}

type OrderStore interface {
	CreateWithItems(ctx context.Context, o orders.Order, items []orders.OrderItem) error
}

type SessionCreator interface {
	CreateSession(ctx context.Context, p stripex.SessionParams) (stripex.Session, error)
}

type CartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type Result struct {
	OrderID    string `json:"order_id"`
	SessionID  string `json:"session_id"`
	SessionURL string `json:"url"`
}

// Service validates a cart against the catalog, opens a payment session and
// records the pending order. Stock is only pre-checked here, never held: the
// authoritative decrement happens on reconciliation, so two concurrent
// checkouts may both pass validation against the same unit of stock.
type Service struct {
	Catalog  Catalog
	Orders   OrderStore
	Sessions SessionCreator

	SuccessURL string
	CancelURL  string
}

func (s *Service) CreateCheckout(ctx context.Context, items []CartItem, customerEmail string) (Result, error) {
	if len(items) == 0 {
		return Result{}, ErrEmptyCart
	}

	lineItems := make([]stripex.LineItem, 0, len(items))
	snapshot := make([]orders.OrderItem, 0, len(items))
	total := 0
	for _, it := range items {
		if it.Quantity <= 0 {
			return Result{}, &InvalidQuantityError{ProductID: it.ProductID, Quantity: it.Quantity}
		}
		p, err := s.Catalog.Get(ctx, it.ProductID)
		if errors.Is(err, catalog.ErrNotFound) {
			return Result{}, &ProductNotFoundError{ProductID: it.ProductID}
		}
		if err != nil {
			return Result{}, fmt.Errorf("look up product %s: %w", it.ProductID, err)
		}
		if it.Quantity > p.Stock {
			return Result{}, &InsufficientStockError{
				ProductID: it.ProductID,
				Requested: it.Quantity,
				Available: p.Stock,
			}
		}

		lineItems = append(lineItems, stripex.LineItem{
			Name:      p.Name,
			UnitCents: p.PriceCents,
			Quantity:  it.Quantity,
		})
		// price and name frozen here; later catalog edits must not leak in
		snapshot = append(snapshot, orders.OrderItem{
			ID:         uuid.NewString(),
			ProductID:  p.ID,
			Name:       p.Name,
			PriceCents: p.PriceCents,
			Quantity:   it.Quantity,
		})
		total += p.PriceCents * it.Quantity
	}

	sess, err := s.Sessions.CreateSession(ctx, stripex.SessionParams{
		LineItems:     lineItems,
		SuccessURL:    s.SuccessURL + "?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     s.CancelURL,
		CustomerEmail: customerEmail,
	})
	if err != nil {
		// nothing persisted yet, so nothing to compensate
		return Result{}, fmt.Errorf("create payment session: %w", err)
	}

	order := orders.Order{
		ID:            uuid.NewString(),
		SessionID:     sess.ID,
		CustomerEmail: customerEmail,
		AmountCents:   total,
		Status:        orders.StatusPending,
	}
	for i := range snapshot {
		snapshot[i].OrderID = order.ID
	}

	if err := s.Orders.CreateWithItems(ctx, order, snapshot); err != nil {
		// the session is orphaned; the reconciler will find no matching
		// order for it and ignore its events
		log.Error().Err(err).Str("session_id", sess.ID).Msg("order persist failed, session orphaned")
		return Result{}, fmt.Errorf("persist order: %w", err)
	}

	log.Info().Str("order_id", order.ID).Str("session_id", sess.ID).Int("amount_cents", total).
		Msg("checkout created")

	return Result{OrderID: order.ID, SessionID: sess.ID, SessionURL: sess.URL}, nil
}
