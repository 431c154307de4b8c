package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store is the unit of persistence. Workflows run their reads and writes
// against the Store handed to the WithinTx callback; returning an error
// from the callback rolls every write back.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Store) error) error

	Users() UserRepo
	Addresses() AddressRepo
	Catalog() CatalogRepo
	Stock() StockRepo
	Carts() CartRepo
	Orders() OrderRepo
	Payments() PaymentRepo
	Taxes() TaxRepo
	Materials() MaterialRepo
	Invoices() InvoiceRepo
	Webhooks() WebhookRepo
}

type UserRepo interface {
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	Save(ctx context.Context, u *User) error
}

type AddressRepo interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Address, error)
	Save(ctx context.Context, a *Address) error
}

type CatalogRepo interface {
	// FindVariantSize loads the sellable unit with its Variant and Size.
	FindVariantSize(ctx context.Context, id uuid.UUID) (*VariantSize, error)
	SaveProduct(ctx context.Context, p *Product) error
	SaveVariant(ctx context.Context, v *Variant) error
	SaveSize(ctx context.Context, s *Size) error
	SaveVariantSize(ctx context.Context, vs *VariantSize) error
}

type StockRepo interface {
	Get(ctx context.Context, variantSizeID uuid.UUID) (*Stock, error)
	// GetForUpdate reads the row and holds a write lock on it until the
	// surrounding transaction ends.
	GetForUpdate(ctx context.Context, variantSizeID uuid.UUID) (*Stock, error)
	Save(ctx context.Context, s *Stock) error
}

type CartRepo interface {
	FindActive(ctx context.Context, userID uuid.UUID) (*Cart, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Cart, error)
	// The ForUpdate variants hold a write lock on the cart row until the
	// surrounding transaction ends.
	FindActiveForUpdate(ctx context.Context, userID uuid.UUID) (*Cart, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Cart, error)
	// Create fails with ErrConflict when the user already has an active cart.
	Create(ctx context.Context, c *Cart) error
	Save(ctx context.Context, c *Cart) error
	// Touch bumps updated_at and leaves every other column alone.
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
	ListStale(ctx context.Context, before time.Time) ([]Cart, error)

	FindItem(ctx context.Context, id uuid.UUID) (*CartItem, error)
	FindItemByVariant(ctx context.Context, cartID, variantSizeID uuid.UUID) (*CartItem, error)
	// CreateItem fails with ErrConflict when the variant is already in the cart.
	CreateItem(ctx context.Context, it *CartItem) error
	SaveItem(ctx context.Context, it *CartItem) error
	DeleteItem(ctx context.Context, id uuid.UUID) error
	DeleteItems(ctx context.Context, cartID uuid.UUID) error
	ListItems(ctx context.Context, cartID uuid.UUID) ([]CartItem, error)
}

type OrderRepo interface {
	Create(ctx context.Context, o *Order) error
	CreateItem(ctx context.Context, it *OrderItem) error
	// FindByID loads the order with its items.
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Order, error)
	Save(ctx context.Context, o *Order) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Order, error)
}

type PaymentRepo interface {
	Create(ctx context.Context, p *Payment) error
	Save(ctx context.Context, p *Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Payment, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*Payment, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]Payment, error)
}

type TaxRepo interface {
	// ListEffective returns the active configurations whose validity window
	// contains the given day.
	ListEffective(ctx context.Context, day time.Time) ([]TaxConfiguration, error)
	Save(ctx context.Context, c *TaxConfiguration) error
}

type MaterialRepo interface {
	FindByID(ctx context.Context, id uuid.UUID) (*RawMaterial, error)
	// LockByIDs locks the given material rows in id order.
	LockByIDs(ctx context.Context, ids []uuid.UUID) ([]RawMaterial, error)
	List(ctx context.Context) ([]RawMaterial, error)
	Save(ctx context.Context, m *RawMaterial) error
	SpecsFor(ctx context.Context, variantSizeIDs []uuid.UUID) ([]ManufacturingSpec, error)
	SaveSpec(ctx context.Context, s *ManufacturingSpec) error
	SaveType(ctx context.Context, t *MaterialType) error
	SaveSupplier(ctx context.Context, s *Supplier) error
	SaveMaterialSupplier(ctx context.Context, ms *MaterialSupplier) error
	// ListMaterialSuppliers returns every supplier link with Supplier loaded.
	ListMaterialSuppliers(ctx context.Context) ([]MaterialSupplier, error)
}

type InvoiceRepo interface {
	FindByOrder(ctx context.Context, orderID uuid.UUID) (*Invoice, error)
	// MaxNumberWithPrefix returns the highest invoice number starting with
	// prefix, or "" when there is none.
	MaxNumberWithPrefix(ctx context.Context, prefix string) (string, error)
	// Create fails with ErrConflict on a duplicate number or order.
	Create(ctx context.Context, inv *Invoice) error
}

type WebhookRepo interface {
	// Record stores the event id and reports false when it was already seen.
	Record(ctx context.Context, ev *WebhookEvent) (bool, error)
}

type PaymentGateway interface {
	CreateOrder(ctx context.Context, req GatewayOrderRequest) (*GatewayIntent, error)
	VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature string) bool
	KeyID() string
}

type EventType string

const (
	EventOrderCreated     EventType = "order.created"
	EventOrderStatus      EventType = "order.status_changed"
	EventOrderCancelled   EventType = "order.cancelled"
	EventPaymentSucceeded EventType = "payment.succeeded"
	EventPaymentFailed    EventType = "payment.failed"
	EventMaterialsUsed    EventType = "materials.consumed"
	EventInvoiceIssued    EventType = "invoice.issued"
)

// Event is a lifecycle notification published after the owning
// transaction committed.
type Event struct {
	Type       EventType       `json:"type"`
	OrderID    uuid.UUID       `json:"order_id"`
	Status     string          `json:"status,omitempty"`
	PaymentID  *uuid.UUID      `json:"payment_id,omitempty"`
	Amount     decimal.Decimal `json:"amount,omitempty"`
	Reference  string          `json:"reference,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}
