package policies

import (
	"github.com/shopspring/decimal"

	domainpricing "staybook/internal/domain/pricing"
	domainrange "staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

// PricingPort prices a stay from the nightly base and room modifier.
type PricingPort interface {
	Quote(base money.Money, modifier decimal.Decimal, dr domainrange.DateRange) (domainpricing.PriceBreakdown, error)
}

var _ PricingPort = domainpricing.Calculator{}
