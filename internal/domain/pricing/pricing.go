package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/errs"
	"staybook/internal/domain/shared/money"
)

var (
	ErrInvalidDateRange = fmt.Errorf("pricing: stay must last at least one night: %w", errs.ErrInvalidDateRange)
	ErrCurrencyUnset    = errors.New("pricing: currency must be defined")
	ErrNegativeRate     = errors.New("pricing: tax rate cannot be negative")
	ErrInvalidModifier  = errors.New("pricing: price modifier must be positive")
	ErrInvalidBase      = errors.New("pricing: base price must be positive")
)

// PriceBreakdown is the priced quote for one stay. Money fields are rounded to the
// minor unit; Total is always exactly Subtotal + Tax.
type PriceBreakdown struct {
	Nights   int
	Nightly  money.Money
	Subtotal money.Money
	Tax      money.Money
	Total    money.Money
	TaxRate  decimal.Decimal
	Modifier decimal.Decimal
}

type Input struct {
	BaseNightly money.Money
	Modifier    decimal.Decimal
	Range       daterange.DateRange
	TaxRate     decimal.Decimal
}

// Compute prices a stay. Intermediate products stay exact; the subtotal and the tax
// are each rounded half-up once.
func Compute(in Input) (PriceBreakdown, error) {
	if in.BaseNightly.Currency == "" {
		return PriceBreakdown{}, ErrCurrencyUnset
	}
	if !in.BaseNightly.IsPositive() {
		return PriceBreakdown{}, ErrInvalidBase
	}
	if in.TaxRate.IsNegative() {
		return PriceBreakdown{}, ErrNegativeRate
	}
	modifier := in.Modifier
	if modifier.IsZero() {
		modifier = decimal.NewFromInt(1)
	}
	if modifier.IsNegative() {
		return PriceBreakdown{}, ErrInvalidModifier
	}
	if err := in.Range.Validate(); err != nil {
		return PriceBreakdown{}, ErrInvalidDateRange
	}
	nights := in.Range.Nights()
	if nights <= 0 {
		return PriceBreakdown{}, ErrInvalidDateRange
	}

	currency := in.BaseNightly.Currency
	nightly := in.BaseNightly.Decimal().Mul(modifier)
	subtotalExact := nightly.Mul(decimal.NewFromInt(int64(nights)))

	nightlyMoney, err := money.FromDecimal(nightly, currency)
	if err != nil {
		return PriceBreakdown{}, err
	}
	subtotal, err := money.FromDecimal(subtotalExact, currency)
	if err != nil {
		return PriceBreakdown{}, err
	}
	tax, err := money.FromDecimal(subtotal.Decimal().Mul(in.TaxRate), currency)
	if err != nil {
		return PriceBreakdown{}, err
	}
	total, err := subtotal.Add(tax)
	if err != nil {
		return PriceBreakdown{}, err
	}
	return PriceBreakdown{
		Nights:   nights,
		Nightly:  nightlyMoney,
		Subtotal: subtotal,
		Tax:      tax,
		Total:    total,
		TaxRate:  in.TaxRate,
		Modifier: modifier,
	}, nil
}

// Calculator binds the configured tax rate so callers only supply stay data.
type Calculator struct {
	TaxRate decimal.Decimal
}

func NewCalculator(taxRate decimal.Decimal) (Calculator, error) {
	if taxRate.IsNegative() {
		return Calculator{}, ErrNegativeRate
	}
	return Calculator{TaxRate: taxRate}, nil
}

func (c Calculator) Quote(base money.Money, modifier decimal.Decimal, dr daterange.DateRange) (PriceBreakdown, error) {
	return Compute(Input{BaseNightly: base, Modifier: modifier, Range: dr, TaxRate: c.TaxRate})
}
