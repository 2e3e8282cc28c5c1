package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/greenzone/shop-backend/internal/catalog"
	"github.com/greenzone/shop-backend/internal/checkout"
	"github.com/greenzone/shop-backend/internal/orders"
	"github.com/greenzone/shop-backend/internal/redisx"
	"github.com/greenzone/shop-backend/internal/stripex"
)

type SessionConfirmer interface {
	ConfirmSession(ctx context.Context, sessionID string) error
}

type ShopHandler struct {
	Catalog   *catalog.Repo
	Orders    *orders.Repo
	Checkout  *checkout.Service
	Confirmer SessionConfirmer
	Redis     *redis.Client
}

func (h *ShopHandler) Register(r *chi.Mux) {
	r.Get("/api/products", h.listProducts)
	r.Post("/api/checkout", h.createCheckout)
	r.Get("/api/checkout/success", h.checkoutSuccess)
	r.Get("/api/orders/{id}", h.getOrder)
}

func (h *ShopHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Catalog.List(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ps == nil {
		ps = []catalog.Product{}
	}
	writeJSON(w, http.StatusOK, ps)
}

type checkoutReq struct {
	Items         []checkout.CartItem `json:"items"`
	CustomerEmail string              `json:"customer_email"`
}

func (h *ShopHandler) createCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	res, err := h.Checkout.CreateCheckout(ctx, req.Items, req.CustomerEmail)
	if err != nil {
		var notFound *checkout.ProductNotFoundError
		var badQty *checkout.InvalidQuantityError
		var noStock *checkout.InsufficientStockError
		var apiErr *stripex.APIError
		switch {
		case errors.Is(err, checkout.ErrEmptyCart),
			errors.As(err, &notFound),
			errors.As(err, &badQty),
			errors.As(err, &noStock):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &apiErr):
			writeError(w, http.StatusBadGateway, "payment provider error")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// checkoutSuccess is the synchronous return-from-payment path: the browser
// lands here before the webhook may have arrived.
func (h *ShopHandler) checkoutSuccess(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing session_id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.Confirmer.ConfirmSession(ctx, sessionID); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Payment complete — your order is recorded."})
}

func (h *ShopHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "missing id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		writeJSON(w, http.StatusOK, json.RawMessage(s))
		return
	}

	o, err := h.Orders.Get(ctx, orderID)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	body, _ := json.Marshal(map[string]any{"status": o.Status, "shipped": o.Shipped})
	_ = h.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
