package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/greenzone/shop-backend/internal/payments"
	"github.com/greenzone/shop-backend/internal/stripex"
)

type stubReconciler struct {
	err       error
	gotHeader string
}

func (s *stubReconciler) HandlePaymentEvent(_ context.Context, _ []byte, sigHeader string) (payments.Ack, error) {
	s.gotHeader = sigHeader
	if s.err != nil {
		return payments.Ack{}, s.err
	}
	return payments.Ack{Received: true}, nil
}

func post(t *testing.T, rec *stubReconciler) *httptest.ResponseRecorder {
	t.Helper()
	router := NewRouter()
	(&WebhookHandler{Reconciler: rec}).Register(router)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"type":"x"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=ff")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhookAck(t *testing.T) {
	rec := &stubReconciler{}
	w := post(t, rec)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"received":true}` {
		t.Errorf("body = %s", got)
	}
	if rec.gotHeader != "t=1,v1=ff" {
		t.Errorf("signature header not forwarded: %q", rec.gotHeader)
	}
}

func TestWebhookInvalidSignature(t *testing.T) {
	w := post(t, &stubReconciler{err: stripex.ErrInvalidSignature})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestWebhookMalformedPayload(t *testing.T) {
	w := post(t, &stubReconciler{err: payments.ErrMalformedPayload})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestWebhookStoreErrorRetries(t *testing.T) {
	// a store failure must surface as 5xx so the provider redelivers
	w := post(t, &stubReconciler{err: errors.New("store down")})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}
