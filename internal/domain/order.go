package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Cart struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID  `gorm:"type:uuid;index;not null" json:"user_id"`
	Status    CartStatus `gorm:"type:varchar(20);index;not null" json:"status"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type CartItem struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CartID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_cart_item_variant" json:"cart_id"`
	VariantSizeID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_cart_item_variant" json:"variant_size_id"`
	Qty           int       `gorm:"not null;check:chk_cart_item_qty,qty >= 1" json:"quantity"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type CartLine struct {
	Item      CartItem        `json:"item"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
	Available int             `json:"available"`
}

// CartSummary prices the cart at the current catalog price and tax rate.
type CartSummary struct {
	CartID   uuid.UUID       `json:"cart_id"`
	Lines    []CartLine      `json:"lines"`
	Subtotal decimal.Decimal `json:"subtotal"`
	TaxPct   decimal.Decimal `json:"tax_pct"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

type Order struct {
	ID                  uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	UserID              uuid.UUID   `gorm:"type:uuid;index;not null" json:"user_id"`
	AddressID           uuid.UUID   `gorm:"type:uuid;not null" json:"address_id"`
	CartID              uuid.UUID   `gorm:"type:uuid;index" json:"cart_id"`
	Status              OrderStatus `gorm:"type:varchar(20);index;not null" json:"status"`
	Notes               string      `gorm:"type:text" json:"notes,omitempty"`
	StockCommitted      bool        `gorm:"not null;default:false" json:"stock_committed"`
	MaterialsConsumedAt *time.Time  `json:"materials_consumed_at,omitempty"`
	Items               []OrderItem `json:"items,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

func (o *Order) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(LineTotal(it.UnitPrice, it.Qty))
	}
	return RoundMoney(sum)
}

// AppendNote adds a line to the free-text notes.
func (o *Order) AppendNote(note string) {
	if note == "" {
		return
	}
	if o.Notes != "" {
		o.Notes += "\n"
	}
	o.Notes += note
}

type OrderItem struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID       uuid.UUID       `gorm:"type:uuid;index;not null" json:"order_id"`
	VariantSizeID uuid.UUID       `gorm:"type:uuid;index;not null" json:"variant_size_id"`
	Qty           int             `gorm:"not null" json:"quantity"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	CreatedAt     time.Time       `json:"created_at"`
}

// OrderTotal is the tax-inclusive total of an order.
type OrderTotal struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	TaxPct     decimal.Decimal `json:"tax_pct"`
	Tax        decimal.Decimal `json:"tax"`
	Total      decimal.Decimal `json:"total"`
	TaxMissing bool            `json:"tax_missing,omitempty"`
}
