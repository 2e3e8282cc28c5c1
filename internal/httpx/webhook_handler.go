package httpx

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/greenzone/shop-backend/internal/payments"
	"github.com/greenzone/shop-backend/internal/stripex"
)

const maxWebhookBody = 1 << 20

type PaymentEventHandler interface {
	HandlePaymentEvent(ctx context.Context, payload []byte, sigHeader string) (payments.Ack, error)
}

// WebhookHandler routes the provider's raw event body to the reconciler.
// Anything handled or ignorable acks {"received":true}; only a bad
// signature or an undecodable body rejects, and store failures surface as
// 5xx so the provider retries.
type WebhookHandler struct {
	Reconciler PaymentEventHandler
}

func (h *WebhookHandler) Register(r *chi.Mux) {
	r.Post("/webhook", h.handle)
}

func (h *WebhookHandler) handle(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}

	ack, err := h.Reconciler.HandlePaymentEvent(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, stripex.ErrInvalidSignature):
		writeError(w, http.StatusBadRequest, "invalid signature")
	case errors.Is(err, payments.ErrMalformedPayload):
		writeError(w, http.StatusBadRequest, "malformed payload")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, ack)
	}
}
