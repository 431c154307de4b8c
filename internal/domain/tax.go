package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TaxConfiguration struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string          `gorm:"size:100" json:"name"`
	Percentage    decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"percentage"`
	EffectiveFrom time.Time       `gorm:"type:date;not null;index" json:"effective_from"`
	EffectiveTo   *time.Time      `gorm:"type:date" json:"effective_to,omitempty"`
	IsActive      bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Day truncates t to its calendar day in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AppliesOn reports whether the configuration is in force on the given day.
func (c *TaxConfiguration) AppliesOn(t time.Time) bool {
	day := Day(t)
	if !c.IsActive || Day(c.EffectiveFrom).After(day) {
		return false
	}
	return c.EffectiveTo == nil || !Day(*c.EffectiveTo).Before(day)
}
