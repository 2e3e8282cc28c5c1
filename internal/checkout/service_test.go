package checkout

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/greenzone/shop-backend/internal/catalog"
	"github.com/greenzone/shop-backend/internal/orders"
	"github.com/greenzone/shop-backend/internal/stripex"
)

type fakeCatalog struct {
	products map[string]catalog.Product
}

func (f *fakeCatalog) Get(_ context.Context, id string) (catalog.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

type fakeOrders struct {
	created []orders.Order
	items   [][]orders.OrderItem
	err     error
}

func (f *fakeOrders) CreateWithItems(_ context.Context, o orders.Order, items []orders.OrderItem) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, o)
	f.items = append(f.items, items)
	return nil
}

type fakeSessions struct {
	session stripex.Session
	params  []stripex.SessionParams
	err     error
}

func (f *fakeSessions) CreateSession(_ context.Context, p stripex.SessionParams) (stripex.Session, error) {
	if f.err != nil {
		return stripex.Session{}, f.err
	}
	f.params = append(f.params, p)
	return f.session, nil
}

func newService(cat *fakeCatalog, ord *fakeOrders, sess *fakeSessions) *Service {
	return &Service{
		Catalog:    cat,
		Orders:     ord,
		Sessions:   sess,
		SuccessURL: "http://localhost:3000",
		CancelURL:  "http://localhost:3000/checkout-cancel",
	}
}

func TestCreateCheckout(t *testing.T) {
	cat := &fakeCatalog{products: map[string]catalog.Product{
		"p1": {ID: "p1", Name: "Fern", PriceCents: 500, Stock: 10},
	}}
	ord := &fakeOrders{}
	sess := &fakeSessions{session: stripex.Session{ID: "cs_1", URL: "https://pay.example/cs_1"}}
	svc := newService(cat, ord, sess)

	res, err := svc.CreateCheckout(context.Background(), []CartItem{{ProductID: "p1", Quantity: 2}}, "a@b.com")
	if err != nil {
		t.Fatalf("CreateCheckout: %v", err)
	}
	if res.SessionID != "cs_1" || res.SessionURL != "https://pay.example/cs_1" {
		t.Errorf("unexpected result: %+v", res)
	}

	if len(ord.created) != 1 {
		t.Fatalf("want 1 order, got %d", len(ord.created))
	}
	o := ord.created[0]
	if o.AmountCents != 1000 {
		t.Errorf("amount = %d, want 1000", o.AmountCents)
	}
	if o.Status != orders.StatusPending {
		t.Errorf("status = %s, want pending", o.Status)
	}
	if o.SessionID != "cs_1" || o.CustomerEmail != "a@b.com" {
		t.Errorf("unexpected order: %+v", o)
	}
	// stock is only pre-checked, never touched here
	if cat.products["p1"].Stock != 10 {
		t.Errorf("stock = %d, checkout must not mutate stock", cat.products["p1"].Stock)
	}

	items := ord.items[0]
	if len(items) != 1 {
		t.Fatalf("want 1 item, got %d", len(items))
	}
	it := items[0]
	if it.OrderID != o.ID || it.ProductID != "p1" || it.Name != "Fern" || it.PriceCents != 500 || it.Quantity != 2 {
		t.Errorf("unexpected item snapshot: %+v", it)
	}

	p := sess.params[0]
	if !strings.HasSuffix(p.SuccessURL, "?session_id={CHECKOUT_SESSION_ID}") {
		t.Errorf("success url missing session placeholder: %s", p.SuccessURL)
	}
	if len(p.LineItems) != 1 || p.LineItems[0].UnitCents != 500 || p.LineItems[0].Quantity != 2 {
		t.Errorf("unexpected line items: %+v", p.LineItems)
	}
}

func TestCreateCheckoutEmptyCart(t *testing.T) {
	svc := newService(&fakeCatalog{}, &fakeOrders{}, &fakeSessions{})
	_, err := svc.CreateCheckout(context.Background(), nil, "")
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("err = %v, want ErrEmptyCart", err)
	}
}

func TestCreateCheckoutUnknownProduct(t *testing.T) {
	ord := &fakeOrders{}
	svc := newService(&fakeCatalog{products: map[string]catalog.Product{}}, ord, &fakeSessions{})

	_, err := svc.CreateCheckout(context.Background(), []CartItem{{ProductID: "ghost", Quantity: 1}}, "")
	var notFound *ProductNotFoundError
	if !errors.As(err, &notFound) || notFound.ProductID != "ghost" {
		t.Fatalf("err = %v, want ProductNotFoundError{ghost}", err)
	}
	if len(ord.created) != 0 {
		t.Error("no order may be created on validation failure")
	}
}

func TestCreateCheckoutInvalidQuantity(t *testing.T) {
	cat := &fakeCatalog{products: map[string]catalog.Product{
		"p1": {ID: "p1", PriceCents: 500, Stock: 10},
	}}
	svc := newService(cat, &fakeOrders{}, &fakeSessions{})

	_, err := svc.CreateCheckout(context.Background(), []CartItem{{ProductID: "p1", Quantity: 0}}, "")
	var badQty *InvalidQuantityError
	if !errors.As(err, &badQty) {
		t.Fatalf("err = %v, want InvalidQuantityError", err)
	}
}

func TestCreateCheckoutInsufficientStock(t *testing.T) {
	cat := &fakeCatalog{products: map[string]catalog.Product{
		"p1": {ID: "p1", Name: "Fern", PriceCents: 500, Stock: 10},
	}}
	ord := &fakeOrders{}
	sess := &fakeSessions{}
	svc := newService(cat, ord, sess)

	_, err := svc.CreateCheckout(context.Background(), []CartItem{{ProductID: "p1", Quantity: 999}}, "")
	var noStock *InsufficientStockError
	if !errors.As(err, &noStock) {
		t.Fatalf("err = %v, want InsufficientStockError", err)
	}
	if noStock.Requested != 999 || noStock.Available != 10 {
		t.Errorf("unexpected detail: %+v", noStock)
	}
	if len(ord.created) != 0 || len(sess.params) != 0 {
		t.Error("nothing may be created on stock failure")
	}
}

func TestCreateCheckoutProviderFailureAborts(t *testing.T) {
	cat := &fakeCatalog{products: map[string]catalog.Product{
		"p1": {ID: "p1", PriceCents: 500, Stock: 10},
	}}
	ord := &fakeOrders{}
	sess := &fakeSessions{err: &stripex.APIError{StatusCode: 502, Message: "down"}}
	svc := newService(cat, ord, sess)

	_, err := svc.CreateCheckout(context.Background(), []CartItem{{ProductID: "p1", Quantity: 1}}, "")
	var apiErr *stripex.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want APIError", err)
	}
	if len(ord.created) != 0 {
		t.Error("no order may be persisted when session creation fails")
	}
}

func TestCreateCheckoutPersistFailureSurfaces(t *testing.T) {
	cat := &fakeCatalog{products: map[string]catalog.Product{
		"p1": {ID: "p1", PriceCents: 500, Stock: 10},
	}}
	ord := &fakeOrders{err: errors.New("store down")}
	sess := &fakeSessions{session: stripex.Session{ID: "cs_orphan"}}
	svc := newService(cat, ord, sess)

	_, err := svc.CreateCheckout(context.Background(), []CartItem{{ProductID: "p1", Quantity: 1}}, "")
	if err == nil {
		t.Fatal("want error when persistence fails")
	}
}

func TestCreateCheckoutMultiItemTotal(t *testing.T) {
	cat := &fakeCatalog{products: map[string]catalog.Product{
		"p1": {ID: "p1", Name: "Fern", PriceCents: 500, Stock: 10},
		"p2": {ID: "p2", Name: "Cactus", PriceCents: 250, Stock: 3},
	}}
	ord := &fakeOrders{}
	svc := newService(cat, ord, &fakeSessions{session: stripex.Session{ID: "cs_2"}})

	_, err := svc.CreateCheckout(context.Background(), []CartItem{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 3},
	}, "")
	if err != nil {
		t.Fatalf("CreateCheckout: %v", err)
	}

	o := ord.created[0]
	if o.AmountCents != 2*500+3*250 {
		t.Errorf("amount = %d, want %d", o.AmountCents, 2*500+3*250)
	}
	// conservation: item sum must equal the order amount
	sum := 0
	for _, it := range ord.items[0] {
		sum += it.PriceCents * it.Quantity
	}
	if sum != o.AmountCents {
		t.Errorf("item sum %d != order amount %d", sum, o.AmountCents)
	}
}
