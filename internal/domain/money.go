package domain

import (
	"github.com/shopspring/decimal"
)

var (
	hundred     = decimal.NewFromInt(100)
	advanceRate = decimal.RequireFromString("0.5")
)

// RoundMoney rounds to two decimal places. decimal.Round rounds half away
// from zero, which is half-up for the non-negative amounts handled here.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// SnapshotPrice is base × (1 + markup/100), rounded to cents.
func SnapshotPrice(base, markupPct decimal.Decimal) decimal.Decimal {
	return RoundMoney(base.Mul(decimal.NewFromInt(1).Add(markupPct.Div(hundred))))
}

// PercentOf returns round(amount × pct / 100, 2).
func PercentOf(amount, pct decimal.Decimal) decimal.Decimal {
	return RoundMoney(amount.Mul(pct).Div(hundred))
}

// AdvanceAmount is the advance half of a total.
func AdvanceAmount(total decimal.Decimal) decimal.Decimal {
	return RoundMoney(total.Mul(advanceRate))
}

// MinorUnits converts a two-decimal amount into the smallest currency unit (paise, cents).
func MinorUnits(amount decimal.Decimal) int64 {
	return RoundMoney(amount).Shift(2).IntPart()
}

// LineTotal is unit price × quantity.
func LineTotal(unit decimal.Decimal, qty int) decimal.Decimal {
	return RoundMoney(unit.Mul(decimal.NewFromInt(int64(qty))))
}
