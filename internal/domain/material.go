package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type MaterialType struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name              string    `gorm:"size:50;uniqueIndex" json:"name"`
	UnitOfMeasurement string    `gorm:"size:20" json:"unit_of_measurement"`
	CreatedAt         time.Time `json:"created_at"`
}

type RawMaterial struct {
	ID                  uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	Name                string           `gorm:"size:100;uniqueIndex:idx_material_name_type" json:"name"`
	MaterialTypeID      uuid.UUID        `gorm:"type:uuid;uniqueIndex:idx_material_name_type" json:"material_type_id"`
	UnitPrice           decimal.Decimal  `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	CurrentQuantity     decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0;check:chk_material_qty,current_quantity >= 0" json:"current_quantity"`
	DefaultReorderLevel *decimal.Decimal `gorm:"type:decimal(12,2)" json:"default_reorder_level,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

type Supplier struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"size:100" json:"name"`
	Email     string    `gorm:"size:140" json:"email,omitempty"`
	Phone     string    `gorm:"size:30" json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type MaterialSupplier struct {
	ID               uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	MaterialID       uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_material_supplier" json:"material_id"`
	SupplierID       uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_material_supplier" json:"supplier_id"`
	Supplier         *Supplier        `gorm:"foreignKey:SupplierID" json:"supplier,omitempty"`
	SupplierPrice    *decimal.Decimal `gorm:"type:decimal(10,2)" json:"supplier_price,omitempty"`
	MinOrderQuantity *decimal.Decimal `gorm:"type:decimal(10,2)" json:"min_order_quantity,omitempty"`
	ReorderLevel     *decimal.Decimal `gorm:"type:decimal(12,2)" json:"reorder_level,omitempty"`
	LeadTimeDays     *int             `json:"lead_time_days,omitempty"`
	IsPreferred      bool             `gorm:"not null;default:false" json:"is_preferred"`
	CreatedAt        time.Time        `json:"created_at"`
}

// ManufacturingSpec is one bill-of-materials line: how much of a material
// goes into a single unit of a sellable variant.
type ManufacturingSpec struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	VariantSizeID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_spec_variant_material" json:"variant_size_id"`
	MaterialID       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_spec_variant_material" json:"material_id"`
	QuantityRequired decimal.Decimal `gorm:"type:decimal(8,2);not null" json:"quantity_required"`
	CreatedAt        time.Time       `json:"created_at"`
}

type RequirementSource struct {
	OrderItemID   uuid.UUID       `json:"order_item_id"`
	VariantSizeID uuid.UUID       `json:"variant_size_id"`
	ItemQty       int             `json:"item_quantity"`
	PerUnit       decimal.Decimal `json:"per_unit"`
	Required      decimal.Decimal `json:"required"`
}

type MaterialRequirement struct {
	MaterialID   uuid.UUID           `json:"material_id"`
	MaterialName string              `json:"material_name"`
	Required     decimal.Decimal     `json:"required"`
	Available    decimal.Decimal     `json:"available"`
	Breakdown    []RequirementSource `json:"breakdown"`
}

type MaterialShortage struct {
	MaterialID   uuid.UUID       `json:"material_id"`
	MaterialName string          `json:"material_name"`
	Required     decimal.Decimal `json:"required"`
	Available    decimal.Decimal `json:"available"`
	Shortage     decimal.Decimal `json:"shortage"`
}

type ReorderAlert struct {
	MaterialID        uuid.UUID       `json:"material_id"`
	MaterialName      string          `json:"material_name"`
	CurrentQuantity   decimal.Decimal `json:"current_quantity"`
	ReorderLevel      decimal.Decimal `json:"reorder_level"`
	Shortage          decimal.Decimal `json:"shortage"`
	PreferredSupplier *Supplier       `json:"preferred_supplier,omitempty"`
}
