package orderwrite

import (
	"testing"

	"pricewaiter-bridge/internal/model"
)

func TestRateTable_Calculate(t *testing.T) {
	newOrder := func(state string) *model.Order {
		return &model.Order{
			Shipping: model.Address{Country: "US", State: state},
			Items: []model.LineItem{
				{Kind: model.KindProduct, Total: 2000},
				{Kind: model.KindShipping, Total: 500},
			},
		}
	}

	tests := []struct {
		name        string
		table       RateTable
		state       string
		wantTax     []int64
		wantShipTax []int64
	}{
		{
			name:    "no rates",
			table:   nil,
			wantTax: nil,
		},
		{
			name:        "single rate with shipping",
			table:       RateTable{{ID: 1, Label: "State", Country: "US", Percent: 10, Shipping: true}},
			state:       "OR",
			wantTax:     []int64{200},
			wantShipTax: []int64{50},
		},
		{
			name:    "state mismatch",
			table:   RateTable{{ID: 1, Country: "US", State: "CA", Percent: 10}},
			state:   "OR",
			wantTax: nil,
		},
		{
			name: "compound rate",
			table: RateTable{
				{ID: 1, Percent: 10},
				{ID: 2, Percent: 5, Compound: true},
			},
			wantTax:     []int64{200, 110},
			wantShipTax: []int64{0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newOrder(tt.state)
			tt.table.Calculate(o)

			taxes := o.ItemsOf(model.KindTax)
			if len(taxes) != len(tt.wantTax) {
				t.Fatalf("tax lines = %d, want %d", len(taxes), len(tt.wantTax))
			}
			for i, it := range taxes {
				if it.Tax != tt.wantTax[i] {
					t.Errorf("line %d Tax = %d, want %d", i, it.Tax, tt.wantTax[i])
				}
				if it.ShippingTax != tt.wantShipTax[i] {
					t.Errorf("line %d ShippingTax = %d, want %d", i, it.ShippingTax, tt.wantShipTax[i])
				}
				if it.RateID != tt.table[i].ID {
					t.Errorf("line %d RateID = %d", i, it.RateID)
				}
			}
		})
	}
}
