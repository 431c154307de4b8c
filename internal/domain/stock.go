package domain

import (
	"time"

	"github.com/google/uuid"
)

type Stock struct {
	VariantSizeID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"variant_size_id"`
	QuantityInStock  int       `gorm:"not null;default:0;check:chk_stock_in_stock,quantity_in_stock >= 0" json:"quantity_in_stock"`
	QuantityReserved int       `gorm:"not null;default:0;check:chk_stock_reserved,quantity_reserved >= 0 AND quantity_reserved <= quantity_in_stock" json:"quantity_reserved"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (s *Stock) Available() int {
	if s == nil {
		return 0
	}
	if a := s.QuantityInStock - s.QuantityReserved; a > 0 {
		return a
	}
	return 0
}
