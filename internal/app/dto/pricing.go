package dto

import (
	domainpricing "staybook/internal/domain/pricing"
)

type PriceBreakdown struct {
	Nights   int      `json:"nights"`
	Nightly  MoneyDTO `json:"nightly"`
	Subtotal MoneyDTO `json:"subtotal"`
	Tax      MoneyDTO `json:"tax"`
	Total    MoneyDTO `json:"total"`
	TaxRate  string   `json:"tax_rate"`
	Modifier string   `json:"modifier"`
}

func MapPriceBreakdown(p domainpricing.PriceBreakdown) PriceBreakdown {
	return PriceBreakdown{
		Nights:   p.Nights,
		Nightly:  MapMoney(p.Nightly),
		Subtotal: MapMoney(p.Subtotal),
		Tax:      MapMoney(p.Tax),
		Total:    MapMoney(p.Total),
		TaxRate:  p.TaxRate.String(),
		Modifier: p.Modifier.String(),
	}
}
