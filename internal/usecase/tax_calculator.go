package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/phenrril/ordercore/internal/domain"
)

type TaxCalculator struct {
	Store domain.Store
}

// ActiveConfig returns the configuration in force on date. The boolean is
// false when none applies; callers decide whether that is fatal.
func (uc *TaxCalculator) ActiveConfig(ctx context.Context, date time.Time) (*domain.TaxConfiguration, bool, error) {
	return activeTaxConfig(ctx, uc.Store, date)
}

func (uc *TaxCalculator) Compute(subtotal, pct decimal.Decimal) (tax, total decimal.Decimal) {
	return computeTax(subtotal, pct)
}

func activeTaxConfig(ctx context.Context, s domain.Store, date time.Time) (*domain.TaxConfiguration, bool, error) {
	list, err := s.Taxes().ListEffective(ctx, domain.Day(date))
	if err != nil {
		return nil, false, err
	}
	var best *domain.TaxConfiguration
	for i := range list {
		c := &list[i]
		if !c.AppliesOn(date) {
			continue
		}
		if best == nil || c.EffectiveFrom.After(best.EffectiveFrom) ||
			(c.EffectiveFrom.Equal(best.EffectiveFrom) && c.CreatedAt.After(best.CreatedAt)) {
			best = c
		}
	}
	return best, best != nil, nil
}

func computeTax(subtotal, pct decimal.Decimal) (tax, total decimal.Decimal) {
	tax = domain.PercentOf(subtotal, pct)
	return tax, domain.RoundMoney(subtotal.Add(tax))
}
