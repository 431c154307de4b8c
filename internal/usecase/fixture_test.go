package usecase

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/phenrril/ordercore/internal/adapters/repo/memory"
	"github.com/phenrril/ordercore/internal/domain"
)

var errInjected = errors.New("injected failure")

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) ofType(t domain.EventType) []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.Event
	for _, ev := range p.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// fakeGateway signs like the real gateway so the verification path runs.
type fakeGateway struct {
	mu     sync.Mutex
	secret string
	seq    int
	err    error
	last   domain.GatewayOrderRequest
}

func (g *fakeGateway) CreateOrder(_ context.Context, req domain.GatewayOrderRequest) (*domain.GatewayIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.seq++
	g.last = req
	return &domain.GatewayIntent{ID: fmt.Sprintf("order_%d", g.seq), AmountMinor: req.AmountMinor, Currency: req.Currency}, nil
}

func (g *fakeGateway) sign(gatewayOrderID, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, []byte(g.secret))
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func (g *fakeGateway) VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	return hmac.Equal([]byte(g.sign(gatewayOrderID, gatewayPaymentID)), []byte(signature))
}

func (g *fakeGateway) KeyID() string { return "rzp_test_key" }

type fixture struct {
	t       *testing.T
	ctx     context.Context
	store   *memory.Store
	now     time.Time
	events  *recordingPublisher
	gateway *fakeGateway

	customer domain.Actor
	admin    domain.Actor
	address  uuid.UUID

	carts     *CartManager
	orders    *OrderWorkflow
	payments  *PaymentWorkflow
	materials *MaterialPlanner
	invoices  *InvoiceGenerator
	stock     *StockLedger
	taxes     *TaxCalculator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:       t,
		ctx:     context.Background(),
		store:   memory.NewStore(),
		now:     time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC),
		events:  &recordingPublisher{},
		gateway: &fakeGateway{secret: "whsec"},
	}
	f.customer = f.addUser("ana@example.com", domain.RoleCustomer)
	f.admin = f.addUser("ops@example.com", domain.RoleAdmin)
	f.address = f.addAddress(f.customer.UserID)
	f.addTax("18", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), nil, f.now.Add(-24*time.Hour))
	f.wire(f.store)
	return f
}

// wire builds the workflows over s, which may wrap the fixture store.
func (f *fixture) wire(s domain.Store) {
	clock := Clock(func() time.Time { return f.now })
	f.carts = &CartManager{Store: s, Now: clock}
	f.orders = &OrderWorkflow{Store: s, Events: f.events, Now: clock}
	f.payments = &PaymentWorkflow{Store: s, Gateway: f.gateway, Events: f.events, Now: clock}
	f.materials = &MaterialPlanner{Store: s, Events: f.events, Now: clock}
	f.invoices = &InvoiceGenerator{Store: s, Events: f.events, Now: clock}
	f.stock = &StockLedger{Store: s}
	f.taxes = &TaxCalculator{Store: s}
}

func (f *fixture) tx(fn func(tx domain.Store) error) {
	f.t.Helper()
	require.NoError(f.t, f.store.WithinTx(f.ctx, fn))
}

func (f *fixture) addUser(email string, role domain.Role) domain.Actor {
	u := &domain.User{ID: uuid.New(), Email: email, Name: email, Role: role, CreatedAt: f.now}
	f.tx(func(tx domain.Store) error { return tx.Users().Save(f.ctx, u) })
	return domain.Actor{UserID: u.ID, Role: role}
}

func (f *fixture) addAddress(userID uuid.UUID) uuid.UUID {
	a := &domain.Address{ID: uuid.New(), UserID: userID, Line1: "12 MG Road", City: "Pune", State: "MH", PostalCode: "411001"}
	f.tx(func(tx domain.Store) error { return tx.Addresses().Save(f.ctx, a) })
	return a.ID
}

func (f *fixture) addTax(pct string, from time.Time, to *time.Time, createdAt time.Time) *domain.TaxConfiguration {
	c := &domain.TaxConfiguration{ID: uuid.New(), Name: "GST " + pct, Percentage: dec(pct), EffectiveFrom: from, EffectiveTo: to, IsActive: true, CreatedAt: createdAt}
	f.tx(func(tx domain.Store) error { return tx.Taxes().Save(f.ctx, c) })
	return c
}

// addVariant creates a sellable variant size priced base × (1 + markup%)
// with inStock units on hand.
func (f *fixture) addVariant(base, markup string, inStock int) uuid.UUID {
	p := &domain.Product{ID: uuid.New(), Name: "Kurta"}
	v := &domain.Variant{ID: uuid.New(), ProductID: p.ID, SKU: "KRT-" + p.ID.String()[:8], Color: "indigo", Fabric: "cotton", BasePrice: dec(base)}
	sz := &domain.Size{ID: uuid.New(), Code: "M", Name: "Medium", MarkupPct: dec(markup)}
	vs := &domain.VariantSize{ID: uuid.New(), VariantID: v.ID, SizeID: sz.ID}
	f.tx(func(tx domain.Store) error {
		c := tx.Catalog()
		if err := c.SaveProduct(f.ctx, p); err != nil {
			return err
		}
		if err := c.SaveVariant(f.ctx, v); err != nil {
			return err
		}
		if err := c.SaveSize(f.ctx, sz); err != nil {
			return err
		}
		if err := c.SaveVariantSize(f.ctx, vs); err != nil {
			return err
		}
		return tx.Stock().Save(f.ctx, &domain.Stock{VariantSizeID: vs.ID, QuantityInStock: inStock})
	})
	return vs.ID
}

func (f *fixture) setStock(variantSizeID uuid.UUID, inStock, reserved int) {
	f.tx(func(tx domain.Store) error {
		return tx.Stock().Save(f.ctx, &domain.Stock{VariantSizeID: variantSizeID, QuantityInStock: inStock, QuantityReserved: reserved})
	})
}

func (f *fixture) stockOf(variantSizeID uuid.UUID) domain.Stock {
	s, err := f.store.Stock().Get(f.ctx, variantSizeID)
	require.NoError(f.t, err)
	return *s
}

type line struct {
	variantSizeID uuid.UUID
	qty           int
}

// checkout fills the customer's cart and turns it into an order.
func (f *fixture) checkout(lines ...line) *domain.Order {
	f.t.Helper()
	for _, l := range lines {
		_, _, err := f.carts.AddItem(f.ctx, f.customer.UserID, l.variantSizeID, l.qty)
		require.NoError(f.t, err)
	}
	cart, err := f.carts.GetActive(f.ctx, f.customer.UserID)
	require.NoError(f.t, err)
	o, err := f.orders.CreateFromCart(f.ctx, f.customer.UserID, cart.ID, f.address)
	require.NoError(f.t, err)
	return o
}

// pay opens and settles a payment of the given type.
func (f *fixture) pay(orderID uuid.UUID, ptype domain.PaymentType) *domain.Payment {
	f.t.Helper()
	intent, err := f.payments.CreatePaymentOrder(f.ctx, orderID, ptype, domain.MethodUPI)
	require.NoError(f.t, err)
	pid := "pay_" + intent.GatewayOrderID
	p, err := f.payments.ProcessSuccess(f.ctx, intent.PaymentID, pid, f.gateway.sign(intent.GatewayOrderID, pid))
	require.NoError(f.t, err)
	return p
}

func (f *fixture) order(id uuid.UUID) *domain.Order {
	o, err := f.store.Orders().FindByID(f.ctx, id)
	require.NoError(f.t, err)
	return o
}

// faults is shared by every view of a faultStore, including transaction views.
type faults struct {
	mu             sync.Mutex
	failOrderItem  int // fail the n-th OrderRepo.CreateItem call
	orderItemCalls int
	failOrderSave  bool
	staleInvoices  bool
}

// faultStore wraps a domain.Store and injects failures into selected
// repository calls.
type faultStore struct {
	domain.Store
	f *faults
}

func (s *faultStore) WithinTx(ctx context.Context, fn func(tx domain.Store) error) error {
	return s.Store.WithinTx(ctx, func(tx domain.Store) error {
		return fn(&faultStore{Store: tx, f: s.f})
	})
}

func (s *faultStore) Orders() domain.OrderRepo     { return faultOrders{s.Store.Orders(), s.f} }
func (s *faultStore) Invoices() domain.InvoiceRepo { return faultInvoices{s.Store.Invoices(), s.f} }

type faultOrders struct {
	domain.OrderRepo
	f *faults
}

func (r faultOrders) CreateItem(ctx context.Context, it *domain.OrderItem) error {
	r.f.mu.Lock()
	r.f.orderItemCalls++
	fail := r.f.failOrderItem > 0 && r.f.orderItemCalls == r.f.failOrderItem
	r.f.mu.Unlock()
	if fail {
		return errInjected
	}
	return r.OrderRepo.CreateItem(ctx, it)
}

func (r faultOrders) Save(ctx context.Context, o *domain.Order) error {
	if r.f.failOrderSave {
		return errInjected
	}
	return r.OrderRepo.Save(ctx, o)
}

type faultInvoices struct {
	domain.InvoiceRepo
	f *faults
}

// MaxNumberWithPrefix pretends no invoice was issued yet, as a reader racing
// a concurrent insert would see.
func (r faultInvoices) MaxNumberWithPrefix(ctx context.Context, prefix string) (string, error) {
	if r.f.staleInvoices {
		return "", nil
	}
	return r.InvoiceRepo.MaxNumberWithPrefix(ctx, prefix)
}
