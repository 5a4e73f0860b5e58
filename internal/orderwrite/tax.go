package orderwrite

import (
	"math"
	"strings"

	"pricewaiter-bridge/internal/model"
)

// TaxCalculator attaches the store's automatic tax lines to an order.
type TaxCalculator interface {
	Calculate(o *model.Order)
}

// TaxRate is one row of the store's tax table. Empty Country or State
// match any value.
type TaxRate struct {
	ID       int64   `yaml:"id" json:"id"`
	Label    string  `yaml:"label" json:"label"`
	Country  string  `yaml:"country" json:"country"`
	State    string  `yaml:"state" json:"state"`
	Percent  float64 `yaml:"percent" json:"percent"`
	Shipping bool    `yaml:"shipping" json:"shipping"`
	Compound bool    `yaml:"compound" json:"compound"`
}

func (r TaxRate) matches(a model.Address) bool {
	return (r.Country == "" || strings.EqualFold(r.Country, a.Country)) &&
		(r.State == "" || strings.EqualFold(r.State, a.State))
}

// RateTable applies matching rates in order. Compound rates are applied on
// top of the taxes computed before them.
type RateTable []TaxRate

func (t RateTable) Calculate(o *model.Order) {
	var base, shipping int64
	for _, it := range o.Items {
		switch it.Kind {
		case model.KindProduct:
			base += it.Total
		case model.KindShipping:
			shipping += it.Total
		}
	}

	var prior int64
	for _, rate := range t {
		if !rate.matches(o.Shipping) {
			continue
		}
		taxable := base
		if rate.Compound {
			taxable += prior
		}
		item := model.LineItem{
			Kind:     model.KindTax,
			Name:     rate.Label,
			Label:    rate.Label,
			RateID:   rate.ID,
			Tax:      percentOf(taxable, rate.Percent),
			Compound: rate.Compound,
		}
		if rate.Shipping {
			item.ShippingTax = percentOf(shipping, rate.Percent)
		}
		prior += item.Tax
		o.Items = append(o.Items, item)
	}
}

func percentOf(cents int64, percent float64) int64 {
	return int64(math.Round(float64(cents) * percent / 100))
}
