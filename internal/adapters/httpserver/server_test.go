package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/phenrril/ordercore/internal/adapters/payments/razorpay"
	"github.com/phenrril/ordercore/internal/adapters/repo/memory"
	"github.com/phenrril/ordercore/internal/domain"
	"github.com/phenrril/ordercore/internal/usecase"
)

var testSecret = []byte("actor-secret")

type harness struct {
	t       *testing.T
	ctx     context.Context
	store   *memory.Store
	now     time.Time
	gateway *razorpay.Gateway
	handler http.Handler

	customer domain.Actor
	other    domain.Actor
	admin    domain.Actor
	address  uuid.UUID
	variant  uuid.UUID
}

// fakeRazorpay answers create-order calls with sequential ids.
func fakeRazorpay(t *testing.T) *httptest.Server {
	var mu sync.Mutex
	seq := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Amount   int64  `json:"amount"`
			Currency string `json:"currency"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		seq++
		id := fmt.Sprintf("order_%d", seq)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"id": id, "amount": body.Amount, "currency": body.Currency})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:     t,
		ctx:   context.Background(),
		store: memory.NewStore(),
		now:   time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC),
	}
	clock := usecase.Clock(func() time.Time { return h.now })
	h.gateway = razorpay.NewGateway(razorpay.Config{
		KeyID:         "rzp_test_key",
		KeySecret:     "key_secret",
		WebhookSecret: "wh_secret",
		BaseURL:       fakeRazorpay(t).URL,
	})

	h.customer = h.addUser("ana@example.com", domain.RoleCustomer)
	h.other = h.addUser("raj@example.com", domain.RoleCustomer)
	h.admin = h.addUser("ops@example.com", domain.RoleAdmin)
	h.address = uuid.New()
	h.tx(func(tx domain.Store) error {
		if err := tx.Addresses().Save(h.ctx, &domain.Address{ID: h.address, UserID: h.customer.UserID, Line1: "12 MG Road", City: "Pune", State: "MH", PostalCode: "411001"}); err != nil {
			return err
		}
		return tx.Taxes().Save(h.ctx, &domain.TaxConfiguration{
			ID: uuid.New(), Name: "GST", Percentage: decimal.NewFromInt(18),
			EffectiveFrom: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), IsActive: true, CreatedAt: h.now.Add(-time.Hour),
		})
	})

	catalog := &usecase.CatalogUC{Store: h.store, Now: clock}
	p := &domain.Product{Name: "Kurta"}
	require.NoError(t, catalog.CreateProduct(h.ctx, p))
	v := &domain.Variant{ProductID: p.ID, SKU: "krt-ind", Color: "indigo", Fabric: "cotton", BasePrice: decimal.NewFromInt(500)}
	require.NoError(t, catalog.CreateVariant(h.ctx, v))
	sz := &domain.Size{Code: "m", Name: "Medium", MarkupPct: decimal.NewFromInt(10)}
	require.NoError(t, catalog.CreateSize(h.ctx, sz))
	vs, err := catalog.AddVariantSize(h.ctx, v.ID, sz.ID, 10)
	require.NoError(t, err)
	h.variant = vs.ID

	h.handler = New(Deps{
		Carts:       &usecase.CartManager{Store: h.store, Now: clock},
		Orders:      &usecase.OrderWorkflow{Store: h.store, Now: clock},
		Payments:    &usecase.PaymentWorkflow{Store: h.store, Gateway: h.gateway, Now: clock},
		Materials:   &usecase.MaterialPlanner{Store: h.store, Now: clock},
		Invoices:    &usecase.InvoiceGenerator{Store: h.store, Now: clock},
		Webhooks:    h.gateway,
		TokenSecret: testSecret,
		Now:         func() time.Time { return h.now },
	})
	return h
}

func (h *harness) tx(fn func(tx domain.Store) error) {
	h.t.Helper()
	require.NoError(h.t, h.store.WithinTx(h.ctx, fn))
}

func (h *harness) addUser(email string, role domain.Role) domain.Actor {
	u := &domain.User{ID: uuid.New(), Email: email, Name: email, Role: role, CreatedAt: h.now}
	h.tx(func(tx domain.Store) error { return tx.Users().Save(h.ctx, u) })
	return domain.Actor{UserID: u.ID, Role: role}
}

func (h *harness) token(a domain.Actor) string {
	tok, _, err := IssueActorToken(testSecret, a, time.Hour, h.now)
	require.NoError(h.t, err)
	return tok
}

// do sends a JSON request as the actor; a zero actor sends no token.
func (h *harness) do(a domain.Actor, method, path string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(h.t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.UserID != uuid.Nil {
		req.Header.Set("Authorization", "Bearer "+h.token(a))
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// placeOrder checks out qty units of the seeded variant for the customer.
func (h *harness) placeOrder(qty int) domain.Order {
	h.t.Helper()
	rec := h.do(h.customer, http.MethodPost, "/api/cart/items", map[string]any{"variant_size_id": h.variant, "quantity": qty})
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = h.do(h.customer, http.MethodPost, "/api/orders", map[string]any{"address_id": h.address})
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[domain.Order](h.t, rec)
}

// pay opens and verifies a payment through the API.
func (h *harness) pay(orderID uuid.UUID, ptype string) domain.Payment {
	h.t.Helper()
	rec := h.do(h.customer, http.MethodPost, "/api/payments", map[string]any{"order_id": orderID, "type": ptype, "method": "upi"})
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	intent := decode[domain.PaymentIntent](h.t, rec)
	pid := "pay_" + intent.GatewayOrderID
	rec = h.do(h.customer, http.MethodPost, "/api/payments/verify", map[string]any{
		"payment_id":          intent.PaymentID,
		"razorpay_payment_id": pid,
		"razorpay_signature":  h.gateway.SignPayment(intent.GatewayOrderID, pid),
	})
	require.Equal(h.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[domain.Payment](h.t, rec)
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	rec := h.do(domain.Actor{}, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestAuthentication(t *testing.T) {
	h := newHarness(t)

	rec := h.do(domain.Actor{}, http.MethodGet, "/api/cart", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	expired, _, err := IssueActorToken(testSecret, h.customer, time.Minute, h.now.Add(-time.Hour))
	require.NoError(t, err)
	forged, _, err := IssueActorToken([]byte("other"), h.customer, time.Hour, h.now)
	require.NoError(t, err)
	for name, tok := range map[string]string{"expired": expired, "forged": forged, "garbage": "a.b"} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
			req.Header.Set("Authorization", "Bearer "+tok)
			rec := httptest.NewRecorder()
			h.handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}

	rec = h.do(h.customer, http.MethodGet, "/api/materials/alerts", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", decode[errorBody](t, rec).Code)
}

func TestCartEndpoints(t *testing.T) {
	h := newHarness(t)

	rec := h.do(h.customer, http.MethodPost, "/api/cart/items", map[string]any{"variant_size_id": h.variant, "quantity": 2})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	item := decode[domain.CartItem](t, rec)

	rec = h.do(h.customer, http.MethodPost, "/api/cart/items", map[string]any{"variant_size_id": h.variant, "quantity": 3})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, decode[domain.CartItem](t, rec).Qty)

	rec = h.do(h.customer, http.MethodPost, "/api/cart/items", map[string]any{"variant_size_id": h.variant, "quantity": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_quantity", decode[errorBody](t, rec).Code)

	rec = h.do(h.customer, http.MethodPatch, "/api/cart/items/"+item.ID.String(), map[string]any{"quantity": 1})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(h.other, http.MethodPatch, "/api/cart/items/"+item.ID.String(), map[string]any{"quantity": 4})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(h.customer, http.MethodGet, "/api/cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sum := decode[domain.CartSummary](t, rec)
	assert.Equal(t, "550", sum.Subtotal.String())
	assert.Equal(t, "99", sum.Tax.String())
	assert.Equal(t, "649", sum.Total.String())

	rec = h.do(h.customer, http.MethodDelete, "/api/cart/items/"+item.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = h.do(h.customer, http.MethodDelete, "/api/cart", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = h.do(h.customer, http.MethodPost, "/api/orders", map[string]any{"address_id": h.address})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "empty_cart", decode[errorBody](t, rec).Code)
}

func TestOrderLifecycleThroughAPI(t *testing.T) {
	h := newHarness(t)
	o := h.placeOrder(2)
	assert.Equal(t, domain.OrderPending, o.Status)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "550", o.Items[0].UnitPrice.String())

	rec := h.do(h.customer, http.MethodGet, "/api/orders/"+o.ID.String()+"/total", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	total := decode[domain.OrderTotal](t, rec)
	assert.Equal(t, "1100", total.Subtotal.String())
	assert.Equal(t, "1298", total.Total.String())

	rec = h.do(h.other, http.MethodGet, "/api/orders/"+o.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(h.customer, http.MethodPatch, "/api/orders/"+o.ID.String()+"/status", map[string]any{"status": "dispatched"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	advance := h.pay(o.ID, "advance")
	assert.Equal(t, domain.PaymentSuccess, advance.Status)
	assert.Equal(t, "649", advance.Amount.String())

	rec = h.do(h.admin, http.MethodPatch, "/api/orders/"+o.ID.String()+"/status", map[string]any{"status": "dispatched"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	h.pay(o.ID, "final")

	rec = h.do(h.customer, http.MethodGet, "/api/orders/"+o.ID.String()+"/payments/completion", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	c := decode[domain.PaymentCompletion](t, rec)
	assert.True(t, c.FullyPaid)
	assert.Equal(t, "0", c.AmountOutstanding.String())

	rec = h.do(h.admin, http.MethodPatch, "/api/orders/"+o.ID.String()+"/status", map[string]any{"status": "processing", "notes": "cutting"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(h.customer, http.MethodGet, "/api/orders/"+o.ID.String()+"/payments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Payment](t, rec), 2)

	rec = h.do(h.customer, http.MethodGet, "/api/orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Order](t, rec), 1)
}

func TestPaymentErrors(t *testing.T) {
	h := newHarness(t)
	o := h.placeOrder(2)

	rec := h.do(h.customer, http.MethodPost, "/api/payments", map[string]any{"order_id": o.ID, "type": "final", "method": "upi"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "advance_not_completed", decode[errorBody](t, rec).Code)

	rec = h.do(h.customer, http.MethodPost, "/api/payments", map[string]any{"order_id": o.ID, "type": "layaway", "method": "upi"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(h.other, http.MethodPost, "/api/payments", map[string]any{"order_id": o.ID, "type": "advance", "method": "upi"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(h.customer, http.MethodPost, "/api/payments", map[string]any{"order_id": o.ID, "type": "advance", "method": "upi"})
	require.Equal(t, http.StatusCreated, rec.Code)
	intent := decode[domain.PaymentIntent](t, rec)
	assert.Equal(t, int64(64900), intent.AmountMinor)
	assert.Equal(t, "rzp_test_key", intent.GatewayKeyID)

	rec = h.do(h.customer, http.MethodPost, "/api/payments/verify", map[string]any{
		"payment_id":          intent.PaymentID,
		"razorpay_payment_id": "pay_1",
		"razorpay_signature":  "deadbeef",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "signature_invalid", decode[errorBody](t, rec).Code)

	rec = h.do(h.customer, http.MethodPost, "/api/payments/"+intent.PaymentID.String()+"/failure", map[string]any{"reason": "card declined"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.PaymentFailed, decode[domain.Payment](t, rec).Status)

	rec = h.do(h.customer, http.MethodPost, "/api/payments/retry", map[string]any{"order_id": o.ID, "type": "advance", "method": "card"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = h.do(h.customer, http.MethodPost, "/api/payments/"+uuid.NewString()+"/failure", map[string]any{"reason": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "payment_not_found", decode[errorBody](t, rec).Code)
}

func TestInsufficientStockDetails(t *testing.T) {
	type shortageBody struct {
		Code    string                 `json:"code"`
		Details []domain.StockShortage `json:"details"`
	}
	h := newHarness(t)

	rec := h.do(h.customer, http.MethodPost, "/api/cart/items", map[string]any{"variant_size_id": h.variant, "quantity": 11})
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode[shortageBody](t, rec)
	assert.Equal(t, "insufficient_stock", body.Code)
	assert.Equal(t, []domain.StockShortage{{VariantSizeID: h.variant, Requested: 11, Available: 10}}, body.Details)

	rec = h.do(h.customer, http.MethodPost, "/api/cart/items", map[string]any{"variant_size_id": h.variant, "quantity": 8})
	require.Equal(t, http.StatusCreated, rec.Code)
	// stock sold elsewhere after the line was added
	h.tx(func(tx domain.Store) error {
		return tx.Stock().Save(h.ctx, &domain.Stock{VariantSizeID: h.variant, QuantityInStock: 6})
	})

	rec = h.do(h.customer, http.MethodPost, "/api/orders", map[string]any{"address_id": h.address})
	require.Equal(t, http.StatusConflict, rec.Code)
	body = decode[shortageBody](t, rec)
	assert.Equal(t, "insufficient_stock", body.Code)
	assert.Equal(t, []domain.StockShortage{{VariantSizeID: h.variant, Requested: 8, Available: 6}}, body.Details)

	rec = h.do(h.customer, http.MethodGet, "/api/orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]domain.Order](t, rec))
}

func TestCancelOrder(t *testing.T) {
	h := newHarness(t)
	o := h.placeOrder(3)

	rec := h.do(h.other, http.MethodPost, "/api/orders/"+o.ID.String()+"/cancel", map[string]any{"reason": "mine now"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(h.customer, http.MethodPost, "/api/orders/"+o.ID.String()+"/cancel", map[string]any{"reason": "changed my mind"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.OrderCancelled, decode[domain.Order](t, rec).Status)

	s, err := h.store.Stock().Get(h.ctx, h.variant)
	require.NoError(t, err)
	assert.Equal(t, 0, s.QuantityReserved)

	rec = h.do(h.customer, http.MethodPost, "/api/orders/"+o.ID.String()+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", decode[errorBody](t, rec).Code)
}

func TestRazorpayWebhook(t *testing.T) {
	h := newHarness(t)
	o := h.placeOrder(2)
	rec := h.do(h.customer, http.MethodPost, "/api/payments", map[string]any{"order_id": o.ID, "type": "full", "method": "card"})
	require.Equal(t, http.StatusCreated, rec.Code)
	intent := decode[domain.PaymentIntent](t, rec)

	body := []byte(fmt.Sprintf(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_W1","order_id":%q}}}}`, intent.GatewayOrderID))
	send := func(sig, eventID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/razorpay", bytes.NewReader(body))
		req.Header.Set("X-Razorpay-Signature", sig)
		req.Header.Set("X-Razorpay-Event-Id", eventID)
		rec := httptest.NewRecorder()
		h.handler.ServeHTTP(rec, req)
		return rec
	}

	rec = send("bad", "evt_1")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = send(h.gateway.SignWebhook(body), "evt_1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "applied", decode[map[string]string](t, rec)["status"])

	rec = send(h.gateway.SignWebhook(body), "evt_1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "duplicate", decode[map[string]string](t, rec)["status"])

	got, err := h.store.Orders().FindByID(h.ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderConfirmed, got.Status)
}

func TestMaterialsEndpoints(t *testing.T) {
	h := newHarness(t)
	fabric := &domain.RawMaterial{ID: uuid.New(), Name: "Cotton", CurrentQuantity: decimal.NewFromInt(5), DefaultReorderLevel: ptr(decimal.NewFromInt(10))}
	h.tx(func(tx domain.Store) error {
		if err := tx.Materials().Save(h.ctx, fabric); err != nil {
			return err
		}
		return tx.Materials().SaveSpec(h.ctx, &domain.ManufacturingSpec{ID: uuid.New(), VariantSizeID: h.variant, MaterialID: fabric.ID, QuantityRequired: decimal.RequireFromString("2.5")})
	})
	o := h.placeOrder(2)

	rec := h.do(h.customer, http.MethodGet, "/api/orders/"+o.ID.String()+"/materials", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	m := decode[materialsResponse](t, rec)
	assert.True(t, m.Feasible)
	require.Len(t, m.Requirements, 1)
	assert.Equal(t, "5", m.Requirements[0].Required.String())

	rec = h.do(h.customer, http.MethodPost, "/api/orders/"+o.ID.String()+"/materials/consume", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// pending orders are not in production yet
	rec = h.do(h.admin, http.MethodPost, "/api/orders/"+o.ID.String()+"/materials/consume", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	h.pay(o.ID, "advance")
	rec = h.do(h.admin, http.MethodPost, "/api/orders/"+o.ID.String()+"/materials/consume", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(h.admin, http.MethodPost, "/api/orders/"+o.ID.String()+"/materials/consume", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_consumed", decode[errorBody](t, rec).Code)

	rec = h.do(h.admin, http.MethodGet, "/api/materials/alerts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var alerts struct {
		Count  int                   `json:"count"`
		Alerts []domain.ReorderAlert `json:"alerts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &alerts))
	assert.Equal(t, 1, alerts.Count)
	assert.Equal(t, "10", alerts.Alerts[0].Shortage.String())
}

func TestInvoiceEndpoints(t *testing.T) {
	h := newHarness(t)
	o := h.placeOrder(2)

	rec := h.do(h.customer, http.MethodGet, "/api/orders/"+o.ID.String()+"/invoice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(h.customer, http.MethodPost, "/api/orders/"+o.ID.String()+"/invoice", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	inv := decode[domain.Invoice](t, rec)
	assert.Equal(t, "INV-20261019-0001", inv.Number)
	assert.Equal(t, "1298", inv.TotalAmount.String())

	rec = h.do(h.customer, http.MethodPost, "/api/orders/"+o.ID.String()+"/invoice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, inv.ID, decode[domain.Invoice](t, rec).ID)

	rec = h.do(h.customer, http.MethodGet, "/api/orders/"+o.ID.String()+"/invoice.xlsx", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "INV-20261019-0001.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	number, err := f.GetCellValue(invoiceSheet, "B1")
	require.NoError(t, err)
	assert.Equal(t, "INV-20261019-0001", number)
	qty, err := f.GetCellValue(invoiceSheet, "C6")
	require.NoError(t, err)
	assert.Equal(t, "2", qty)
}

func ptr[T any](v T) *T { return &v }
