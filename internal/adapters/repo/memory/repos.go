package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/phenrril/ordercore/internal/domain"
)

type userRepo struct{ s *Store }

func (r userRepo) FindByID(_ context.Context, id uuid.UUID) (u *domain.User, err error) {
	err = r.s.view(func(st *state) error { u, err = get(st.users, id); return err })
	return u, err
}

func (r userRepo) Save(_ context.Context, u *domain.User) error {
	return r.s.view(func(st *state) error {
		for _, other := range st.users {
			if other.ID != u.ID && strings.EqualFold(other.Email, u.Email) && u.Email != "" {
				return fmt.Errorf("user email %q: %w", u.Email, domain.ErrConflict)
			}
		}
		st.users[u.ID] = *u
		return nil
	})
}

type addressRepo struct{ s *Store }

func (r addressRepo) FindByID(_ context.Context, id uuid.UUID) (a *domain.Address, err error) {
	err = r.s.view(func(st *state) error { a, err = get(st.addresses, id); return err })
	return a, err
}

func (r addressRepo) Save(_ context.Context, a *domain.Address) error {
	return r.s.view(func(st *state) error { st.addresses[a.ID] = *a; return nil })
}

type catalogRepo struct{ s *Store }

func (r catalogRepo) FindVariantSize(_ context.Context, id uuid.UUID) (*domain.VariantSize, error) {
	var out *domain.VariantSize
	err := r.s.view(func(st *state) error {
		vs, err := get(st.variantSizes, id)
		if err != nil {
			return err
		}
		if v, ok := st.variants[vs.VariantID]; ok {
			vs.Variant = &v
		}
		if sz, ok := st.sizes[vs.SizeID]; ok {
			vs.Size = &sz
		}
		out = vs
		return nil
	})
	return out, err
}

func (r catalogRepo) SaveProduct(_ context.Context, p *domain.Product) error {
	return r.s.view(func(st *state) error {
		row := *p
		row.Variants = nil
		st.products[p.ID] = row
		return nil
	})
}

func (r catalogRepo) SaveVariant(_ context.Context, v *domain.Variant) error {
	return r.s.view(func(st *state) error { st.variants[v.ID] = *v; return nil })
}

func (r catalogRepo) SaveSize(_ context.Context, sz *domain.Size) error {
	return r.s.view(func(st *state) error { st.sizes[sz.ID] = *sz; return nil })
}

func (r catalogRepo) SaveVariantSize(_ context.Context, vs *domain.VariantSize) error {
	return r.s.view(func(st *state) error {
		row := *vs
		row.Variant, row.Size = nil, nil
		st.variantSizes[vs.ID] = row
		return nil
	})
}

type stockRepo struct{ s *Store }

func (r stockRepo) Get(_ context.Context, id uuid.UUID) (s *domain.Stock, err error) {
	err = r.s.view(func(st *state) error { s, err = get(st.stock, id); return err })
	return s, err
}

// GetForUpdate needs no row lock here: transactions already run one at a time.
func (r stockRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Stock, error) {
	return r.Get(ctx, id)
}

func (r stockRepo) Save(_ context.Context, s *domain.Stock) error {
	if s.QuantityInStock < 0 || s.QuantityReserved < 0 || s.QuantityReserved > s.QuantityInStock {
		return fmt.Errorf("stock %s: in_stock=%d reserved=%d violates bounds: %w",
			s.VariantSizeID, s.QuantityInStock, s.QuantityReserved, domain.ErrConflict)
	}
	return r.s.view(func(st *state) error { st.stock[s.VariantSizeID] = *s; return nil })
}

type cartRepo struct{ s *Store }

func (r cartRepo) FindActive(_ context.Context, userID uuid.UUID) (*domain.Cart, error) {
	var out *domain.Cart
	err := r.s.view(func(st *state) error {
		for _, c := range st.carts {
			if c.UserID == userID && c.Status == domain.CartActive {
				c.Items = itemsOf(st, c.ID)
				out = &c
				return nil
			}
		}
		return domain.ErrNotFound
	})
	return out, err
}

func (r cartRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Cart, error) {
	var out *domain.Cart
	err := r.s.view(func(st *state) error {
		c, err := get(st.carts, id)
		if err != nil {
			return err
		}
		c.Items = itemsOf(st, c.ID)
		out = c
		return nil
	})
	return out, err
}

func (r cartRepo) FindActiveForUpdate(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	return r.FindActive(ctx, userID)
}

func (r cartRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Cart, error) {
	return r.FindByID(ctx, id)
}

func (r cartRepo) Create(_ context.Context, c *domain.Cart) error {
	return r.s.view(func(st *state) error {
		if _, ok := st.carts[c.ID]; ok {
			return fmt.Errorf("cart %s: %w", c.ID, domain.ErrConflict)
		}
		return putCart(st, c)
	})
}

func (r cartRepo) Save(_ context.Context, c *domain.Cart) error {
	return r.s.view(func(st *state) error { return putCart(st, c) })
}

func (r cartRepo) Touch(_ context.Context, id uuid.UUID, at time.Time) error {
	return r.s.view(func(st *state) error {
		c, ok := st.carts[id]
		if !ok {
			return domain.ErrNotFound
		}
		c.UpdatedAt = at
		st.carts[id] = c
		return nil
	})
}

func putCart(st *state, c *domain.Cart) error {
	if c.Status == domain.CartActive {
		for _, other := range st.carts {
			if other.ID != c.ID && other.UserID == c.UserID && other.Status == domain.CartActive {
				return fmt.Errorf("active cart for user %s: %w", c.UserID, domain.ErrConflict)
			}
		}
	}
	row := *c
	row.Items = nil
	st.carts[c.ID] = row
	return nil
}

func (r cartRepo) ListStale(_ context.Context, before time.Time) ([]domain.Cart, error) {
	var out []domain.Cart
	err := r.s.view(func(st *state) error {
		for _, c := range st.carts {
			if c.Status == domain.CartActive && c.UpdatedAt.Before(before) {
				out = append(out, c)
			}
		}
		return nil
	})
	return out, err
}

func (r cartRepo) FindItem(_ context.Context, id uuid.UUID) (it *domain.CartItem, err error) {
	err = r.s.view(func(st *state) error { it, err = get(st.cartItems, id); return err })
	return it, err
}

func (r cartRepo) FindItemByVariant(_ context.Context, cartID, variantSizeID uuid.UUID) (*domain.CartItem, error) {
	var out *domain.CartItem
	err := r.s.view(func(st *state) error {
		for _, it := range st.cartItems {
			if it.CartID == cartID && it.VariantSizeID == variantSizeID {
				out = &it
				return nil
			}
		}
		return domain.ErrNotFound
	})
	return out, err
}

func (r cartRepo) CreateItem(_ context.Context, it *domain.CartItem) error {
	return r.s.view(func(st *state) error {
		for _, other := range st.cartItems {
			if other.ID == it.ID || (other.CartID == it.CartID && other.VariantSizeID == it.VariantSizeID) {
				return fmt.Errorf("cart item %s/%s: %w", it.CartID, it.VariantSizeID, domain.ErrConflict)
			}
		}
		st.cartItems[it.ID] = *it
		return nil
	})
}

func (r cartRepo) SaveItem(_ context.Context, it *domain.CartItem) error {
	return r.s.view(func(st *state) error { st.cartItems[it.ID] = *it; return nil })
}

func (r cartRepo) DeleteItem(_ context.Context, id uuid.UUID) error {
	return r.s.view(func(st *state) error { delete(st.cartItems, id); return nil })
}

func (r cartRepo) DeleteItems(_ context.Context, cartID uuid.UUID) error {
	return r.s.view(func(st *state) error {
		for id, it := range st.cartItems {
			if it.CartID == cartID {
				delete(st.cartItems, id)
			}
		}
		return nil
	})
}

func (r cartRepo) ListItems(_ context.Context, cartID uuid.UUID) ([]domain.CartItem, error) {
	var out []domain.CartItem
	err := r.s.view(func(st *state) error { out = itemsOf(st, cartID); return nil })
	return out, err
}

func itemsOf(st *state, cartID uuid.UUID) []domain.CartItem {
	var out []domain.CartItem
	for _, it := range st.cartItems {
		if it.CartID == cartID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

type orderRepo struct{ s *Store }

func (r orderRepo) Create(_ context.Context, o *domain.Order) error {
	return r.s.view(func(st *state) error {
		if _, ok := st.orders[o.ID]; ok {
			return fmt.Errorf("order %s: %w", o.ID, domain.ErrConflict)
		}
		row := *o
		row.Items = nil
		st.orders[o.ID] = row
		return nil
	})
}

func (r orderRepo) CreateItem(_ context.Context, it *domain.OrderItem) error {
	return r.s.view(func(st *state) error {
		if _, ok := st.orders[it.OrderID]; !ok {
			return fmt.Errorf("order %s: %w", it.OrderID, domain.ErrNotFound)
		}
		st.orderItems[it.OrderID] = append(st.orderItems[it.OrderID], *it)
		return nil
	})
}

func (r orderRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	var out *domain.Order
	err := r.s.view(func(st *state) error {
		o, err := get(st.orders, id)
		if err != nil {
			return err
		}
		o.Items = slices.Clone(st.orderItems[id])
		out = o
		return nil
	})
	return out, err
}

func (r orderRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.FindByID(ctx, id)
}

func (r orderRepo) Save(_ context.Context, o *domain.Order) error {
	return r.s.view(func(st *state) error {
		if _, ok := st.orders[o.ID]; !ok {
			return fmt.Errorf("order %s: %w", o.ID, domain.ErrNotFound)
		}
		row := *o
		row.Items = nil
		st.orders[o.ID] = row
		return nil
	})
}

func (r orderRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.Order, error) {
	var out []domain.Order
	err := r.s.view(func(st *state) error {
		for _, o := range st.orders {
			if o.UserID == userID {
				o.Items = slices.Clone(st.orderItems[o.ID])
				out = append(out, o)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

type paymentRepo struct{ s *Store }

func (r paymentRepo) Create(_ context.Context, p *domain.Payment) error {
	return r.s.view(func(st *state) error {
		for _, other := range st.payments {
			if other.ID == p.ID || (p.GatewayOrderID != "" && other.GatewayOrderID == p.GatewayOrderID) {
				return fmt.Errorf("payment %s: %w", p.GatewayOrderID, domain.ErrConflict)
			}
		}
		st.payments[p.ID] = *p
		return nil
	})
}

func (r paymentRepo) Save(_ context.Context, p *domain.Payment) error {
	return r.s.view(func(st *state) error {
		if _, ok := st.payments[p.ID]; !ok {
			return fmt.Errorf("payment %s: %w", p.ID, domain.ErrNotFound)
		}
		// Mirrors the partial unique index on payments(order_id, type).
		if p.Succeeded() {
			for _, other := range st.payments {
				if other.ID != p.ID && other.OrderID == p.OrderID && other.Type == p.Type && other.Succeeded() {
					return fmt.Errorf("second %s success for order %s: %w", p.Type, p.OrderID, domain.ErrConflict)
				}
			}
		}
		st.payments[p.ID] = *p
		return nil
	})
}

func (r paymentRepo) FindByID(_ context.Context, id uuid.UUID) (p *domain.Payment, err error) {
	err = r.s.view(func(st *state) error { p, err = get(st.payments, id); return err })
	return p, err
}

func (r paymentRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	return r.FindByID(ctx, id)
}

func (r paymentRepo) FindByGatewayOrderID(_ context.Context, gid string) (*domain.Payment, error) {
	var out *domain.Payment
	err := r.s.view(func(st *state) error {
		for _, p := range st.payments {
			if p.GatewayOrderID == gid {
				out = &p
				return nil
			}
		}
		return domain.ErrNotFound
	})
	return out, err
}

func (r paymentRepo) ListByOrder(_ context.Context, orderID uuid.UUID) ([]domain.Payment, error) {
	var out []domain.Payment
	err := r.s.view(func(st *state) error {
		for _, p := range st.payments {
			if p.OrderID == orderID {
				out = append(out, p)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

type taxRepo struct{ s *Store }

func (r taxRepo) ListEffective(_ context.Context, day time.Time) ([]domain.TaxConfiguration, error) {
	var out []domain.TaxConfiguration
	err := r.s.view(func(st *state) error {
		for _, c := range st.taxes {
			if c.AppliesOn(day) {
				out = append(out, c)
			}
		}
		return nil
	})
	return out, err
}

func (r taxRepo) Save(_ context.Context, c *domain.TaxConfiguration) error {
	return r.s.view(func(st *state) error { st.taxes[c.ID] = *c; return nil })
}

type materialRepo struct{ s *Store }

func (r materialRepo) FindByID(_ context.Context, id uuid.UUID) (m *domain.RawMaterial, err error) {
	err = r.s.view(func(st *state) error { m, err = get(st.materials, id); return err })
	return m, err
}

func (r materialRepo) LockByIDs(_ context.Context, ids []uuid.UUID) ([]domain.RawMaterial, error) {
	sorted := slices.Clone(ids)
	slices.SortFunc(sorted, func(a, b uuid.UUID) int { return strings.Compare(a.String(), b.String()) })
	out := make([]domain.RawMaterial, 0, len(sorted))
	err := r.s.view(func(st *state) error {
		for _, id := range sorted {
			m, ok := st.materials[id]
			if !ok {
				return fmt.Errorf("material %s: %w", id, domain.ErrNotFound)
			}
			out = append(out, m)
		}
		return nil
	})
	return out, err
}

func (r materialRepo) List(_ context.Context) ([]domain.RawMaterial, error) {
	var out []domain.RawMaterial
	err := r.s.view(func(st *state) error {
		for _, m := range st.materials {
			out = append(out, m)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

func (r materialRepo) Save(_ context.Context, m *domain.RawMaterial) error {
	if m.CurrentQuantity.IsNegative() {
		return fmt.Errorf("material %s: negative quantity: %w", m.ID, domain.ErrConflict)
	}
	return r.s.view(func(st *state) error { st.materials[m.ID] = *m; return nil })
}

func (r materialRepo) SpecsFor(_ context.Context, variantSizeIDs []uuid.UUID) ([]domain.ManufacturingSpec, error) {
	var out []domain.ManufacturingSpec
	err := r.s.view(func(st *state) error {
		for _, sp := range st.specs {
			if slices.Contains(variantSizeIDs, sp.VariantSizeID) {
				out = append(out, sp)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

func (r materialRepo) SaveSpec(_ context.Context, sp *domain.ManufacturingSpec) error {
	return r.s.view(func(st *state) error { st.specs[sp.ID] = *sp; return nil })
}

func (r materialRepo) SaveType(_ context.Context, t *domain.MaterialType) error {
	return r.s.view(func(st *state) error { st.materialTypes[t.ID] = *t; return nil })
}

func (r materialRepo) SaveSupplier(_ context.Context, sp *domain.Supplier) error {
	return r.s.view(func(st *state) error { st.suppliers[sp.ID] = *sp; return nil })
}

func (r materialRepo) SaveMaterialSupplier(_ context.Context, ms *domain.MaterialSupplier) error {
	return r.s.view(func(st *state) error {
		row := *ms
		row.Supplier = nil
		st.materialSuppliers[ms.ID] = row
		return nil
	})
}

func (r materialRepo) ListMaterialSuppliers(_ context.Context) ([]domain.MaterialSupplier, error) {
	var out []domain.MaterialSupplier
	err := r.s.view(func(st *state) error {
		for _, ms := range st.materialSuppliers {
			if sp, ok := st.suppliers[ms.SupplierID]; ok {
				ms.Supplier = &sp
			}
			out = append(out, ms)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

type invoiceRepo struct{ s *Store }

func (r invoiceRepo) FindByOrder(_ context.Context, orderID uuid.UUID) (*domain.Invoice, error) {
	var out *domain.Invoice
	err := r.s.view(func(st *state) error {
		for _, inv := range st.invoices {
			if inv.OrderID == orderID {
				out = &inv
				return nil
			}
		}
		return domain.ErrNotFound
	})
	return out, err
}

func (r invoiceRepo) MaxNumberWithPrefix(_ context.Context, prefix string) (string, error) {
	best, bestSeq := "", -1
	err := r.s.view(func(st *state) error {
		for _, inv := range st.invoices {
			if !strings.HasPrefix(inv.Number, prefix) {
				continue
			}
			if n, ok := domain.InvoiceSequence(inv.Number); ok && n > bestSeq {
				best, bestSeq = inv.Number, n
			}
		}
		return nil
	})
	return best, err
}

func (r invoiceRepo) Create(_ context.Context, inv *domain.Invoice) error {
	return r.s.view(func(st *state) error {
		for _, other := range st.invoices {
			if other.Number == inv.Number || other.OrderID == inv.OrderID || other.ID == inv.ID {
				return fmt.Errorf("invoice %s: %w", inv.Number, domain.ErrConflict)
			}
		}
		st.invoices[inv.ID] = *inv
		return nil
	})
}

type webhookRepo struct{ s *Store }

func (r webhookRepo) Record(_ context.Context, ev *domain.WebhookEvent) (bool, error) {
	fresh := false
	err := r.s.view(func(st *state) error {
		if _, ok := st.webhooks[ev.ID]; ok {
			return nil
		}
		st.webhooks[ev.ID] = *ev
		fresh = true
		return nil
	})
	return fresh, err
}
