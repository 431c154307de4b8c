package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"size:180" json:"name"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	Variants    []Variant `json:"variants,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Variant struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID uuid.UUID       `gorm:"type:uuid;index" json:"product_id"`
	SKU       string          `gorm:"size:100;index" json:"sku"`
	Color     string          `gorm:"size:60" json:"color"`
	Fabric    string          `gorm:"size:60" json:"fabric"`
	BasePrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"base_price"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type Size struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Code      string          `gorm:"size:10;uniqueIndex" json:"code"`
	Name      string          `gorm:"size:50" json:"name"`
	MarkupPct decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"markup_pct"`
	CreatedAt time.Time       `json:"created_at"`
}

// VariantSize is the sellable unit: a variant in a given size. Stock,
// cart lines and order lines all point at it.
type VariantSize struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	VariantID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_variant_size" json:"variant_id"`
	SizeID    uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_variant_size" json:"size_id"`
	Variant   *Variant  `gorm:"foreignKey:VariantID" json:"variant,omitempty"`
	Size      *Size     `gorm:"foreignKey:SizeID" json:"size,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// UnitPrice is the current catalog price; it needs Variant and Size loaded.
func (vs *VariantSize) UnitPrice() decimal.Decimal {
	if vs.Variant == nil {
		return decimal.Zero
	}
	markup := decimal.Zero
	if vs.Size != nil {
		markup = vs.Size.MarkupPct
	}
	return SnapshotPrice(vs.Variant.BasePrice, markup)
}
