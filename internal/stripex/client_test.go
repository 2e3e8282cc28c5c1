package stripex

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateSession(t *testing.T) {
	var gotForm map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/checkout/sessions" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test" {
			t.Errorf("auth header = %q", got)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		gotForm = map[string]string{}
		for k := range r.PostForm {
			gotForm[k] = r.PostForm.Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_123","url":"https://pay.example/cs_123"}`))
	}))
	defer srv.Close()

	c := NewClient("sk_test", srv.URL)
	s, err := c.CreateSession(context.Background(), SessionParams{
		LineItems:     []LineItem{{Name: "Fern", UnitCents: 500, Quantity: 2}},
		SuccessURL:    "http://shop/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     "http://shop/cancel",
		CustomerEmail: "a@b.com",
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if s.ID != "cs_123" || s.URL != "https://pay.example/cs_123" {
		t.Errorf("unexpected session: %+v", s)
	}

	want := map[string]string{
		"mode":                                     "payment",
		"success_url":                              "http://shop/success?session_id={CHECKOUT_SESSION_ID}",
		"cancel_url":                               "http://shop/cancel",
		"customer_email":                           "a@b.com",
		"line_items[0][price_data][currency]":      "usd",
		"line_items[0][price_data][product_data][name]": "Fern",
		"line_items[0][price_data][unit_amount]":   "500",
		"line_items[0][quantity]":                  "2",
	}
	for k, v := range want {
		if gotForm[k] != v {
			t.Errorf("form[%q] = %q, want %q", k, gotForm[k], v)
		}
	}
}

func TestRetrieveSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v1/checkout/sessions/cs_123" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_123","payment_status":"paid","customer_email":"a@b.com"}`))
	}))
	defer srv.Close()

	c := NewClient("sk_test", srv.URL)
	s, err := c.RetrieveSession(context.Background(), "cs_123")
	if err != nil {
		t.Fatalf("RetrieveSession: %v", err)
	}
	if s.PaymentStatus != PaymentStatusPaid {
		t.Errorf("payment_status = %q, want paid", s.PaymentStatus)
	}
}

func TestAPIErrorDecoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"message":"card declined"}}`))
	}))
	defer srv.Close()

	c := NewClient("sk_test", srv.URL)
	_, err := c.RetrieveSession(context.Background(), "cs_bad")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want APIError", err)
	}
	if apiErr.StatusCode != http.StatusPaymentRequired || apiErr.Message != "card declined" {
		t.Errorf("unexpected api error: %+v", apiErr)
	}
}
