// Package memory is an in-process domain.Store. Transactions are serialized
// by a store-wide mutex and applied by swapping in a working copy of the
// state, so a failed callback leaves nothing behind.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/phenrril/ordercore/internal/domain"
)

type state struct {
	users             map[uuid.UUID]domain.User
	addresses         map[uuid.UUID]domain.Address
	products          map[uuid.UUID]domain.Product
	variants          map[uuid.UUID]domain.Variant
	sizes             map[uuid.UUID]domain.Size
	variantSizes      map[uuid.UUID]domain.VariantSize
	stock             map[uuid.UUID]domain.Stock
	carts             map[uuid.UUID]domain.Cart
	cartItems         map[uuid.UUID]domain.CartItem
	orders            map[uuid.UUID]domain.Order
	orderItems        map[uuid.UUID][]domain.OrderItem
	payments          map[uuid.UUID]domain.Payment
	taxes             map[uuid.UUID]domain.TaxConfiguration
	materialTypes     map[uuid.UUID]domain.MaterialType
	materials         map[uuid.UUID]domain.RawMaterial
	suppliers         map[uuid.UUID]domain.Supplier
	materialSuppliers map[uuid.UUID]domain.MaterialSupplier
	specs             map[uuid.UUID]domain.ManufacturingSpec
	invoices          map[uuid.UUID]domain.Invoice
	webhooks          map[string]domain.WebhookEvent
}

func newState() *state {
	return &state{
		users:             map[uuid.UUID]domain.User{},
		addresses:         map[uuid.UUID]domain.Address{},
		products:          map[uuid.UUID]domain.Product{},
		variants:          map[uuid.UUID]domain.Variant{},
		sizes:             map[uuid.UUID]domain.Size{},
		variantSizes:      map[uuid.UUID]domain.VariantSize{},
		stock:             map[uuid.UUID]domain.Stock{},
		carts:             map[uuid.UUID]domain.Cart{},
		cartItems:         map[uuid.UUID]domain.CartItem{},
		orders:            map[uuid.UUID]domain.Order{},
		orderItems:        map[uuid.UUID][]domain.OrderItem{},
		payments:          map[uuid.UUID]domain.Payment{},
		taxes:             map[uuid.UUID]domain.TaxConfiguration{},
		materialTypes:     map[uuid.UUID]domain.MaterialType{},
		materials:         map[uuid.UUID]domain.RawMaterial{},
		suppliers:         map[uuid.UUID]domain.Supplier{},
		materialSuppliers: map[uuid.UUID]domain.MaterialSupplier{},
		specs:             map[uuid.UUID]domain.ManufacturingSpec{},
		invoices:          map[uuid.UUID]domain.Invoice{},
		webhooks:          map[string]domain.WebhookEvent{},
	}
}

// clone copies every table. Rows are values, so a shallow map copy is
// enough except for the per-order item slices.
func (st *state) clone() *state {
	items := make(map[uuid.UUID][]domain.OrderItem, len(st.orderItems))
	for k, v := range st.orderItems {
		items[k] = slices.Clone(v)
	}
	return &state{
		users:             maps.Clone(st.users),
		addresses:         maps.Clone(st.addresses),
		products:          maps.Clone(st.products),
		variants:          maps.Clone(st.variants),
		sizes:             maps.Clone(st.sizes),
		variantSizes:      maps.Clone(st.variantSizes),
		stock:             maps.Clone(st.stock),
		carts:             maps.Clone(st.carts),
		cartItems:         maps.Clone(st.cartItems),
		orders:            maps.Clone(st.orders),
		orderItems:        items,
		payments:          maps.Clone(st.payments),
		taxes:             maps.Clone(st.taxes),
		materialTypes:     maps.Clone(st.materialTypes),
		materials:         maps.Clone(st.materials),
		suppliers:         maps.Clone(st.suppliers),
		materialSuppliers: maps.Clone(st.materialSuppliers),
		specs:             maps.Clone(st.specs),
		invoices:          maps.Clone(st.invoices),
		webhooks:          maps.Clone(st.webhooks),
	}
}

type Store struct {
	mu *sync.Mutex // nil on the view handed to a transaction callback
	st *state
}

func NewStore() *Store {
	return &Store{mu: &sync.Mutex{}, st: newState()}
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx domain.Store) error) error {
	if s.mu != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(&Store{st: work}); err != nil {
		return err
	}
	*s.st = *work
	return nil
}

// view runs fn against the state, holding the store lock when called
// outside a transaction.
func (s *Store) view(fn func(st *state) error) error {
	if s.mu != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(s.st)
}

func (s *Store) Users() domain.UserRepo         { return userRepo{s} }
func (s *Store) Addresses() domain.AddressRepo  { return addressRepo{s} }
func (s *Store) Catalog() domain.CatalogRepo    { return catalogRepo{s} }
func (s *Store) Stock() domain.StockRepo        { return stockRepo{s} }
func (s *Store) Carts() domain.CartRepo         { return cartRepo{s} }
func (s *Store) Orders() domain.OrderRepo       { return orderRepo{s} }
func (s *Store) Payments() domain.PaymentRepo   { return paymentRepo{s} }
func (s *Store) Taxes() domain.TaxRepo          { return taxRepo{s} }
func (s *Store) Materials() domain.MaterialRepo { return materialRepo{s} }
func (s *Store) Invoices() domain.InvoiceRepo   { return invoiceRepo{s} }
func (s *Store) Webhooks() domain.WebhookRepo   { return webhookRepo{s} }

func get[K comparable, V any](m map[K]V, k K) (*V, error) {
	v, ok := m[k]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &v, nil
}
