package postgres

import (
	"pricewaiter-bridge/internal/model"
	"pricewaiter-bridge/internal/settings"
	"pricewaiter-bridge/internal/store"
)

func toOrderModel(o *model.Order) OrderModel {
	m := OrderModel{
		ID:                 o.ID,
		OrderKey:           o.OrderKey,
		Status:             string(o.Status),
		CustomerID:         o.CustomerID,
		CreatedVia:         o.CreatedVia,
		Currency:           o.Currency,
		PaymentMethod:      o.PaymentMethod,
		PaymentMethodTitle: o.PaymentMethodTitle,
		Test:               o.Test,
		Billing:            o.Billing,
		Shipping:           o.Shipping,
		Meta:               o.Meta,
		Notes:              o.Notes,
		CartTax:            o.Totals.CartTax,
		ShippingTotal:      o.Totals.Shipping,
		ShippingTax:        o.Totals.ShippingTax,
		CartDiscount:       o.Totals.CartDiscount,
		OrderDiscount:      o.Totals.OrderDiscount,
		Total:              o.Totals.Total,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}
	if o.PricewaiterID != "" {
		id := o.PricewaiterID
		m.PricewaiterID = &id
	}
	for i, it := range o.Items {
		m.Items = append(m.Items, OrderItemModel{
			OrderID:     o.ID,
			Position:    i,
			Kind:        string(it.Kind),
			Name:        it.Name,
			ProductID:   it.ProductID,
			SKU:         it.SKU,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Subtotal:    it.Subtotal,
			Total:       it.Total,
			Tax:         it.Tax,
			Variation:   it.Variation,
			MethodID:    it.MethodID,
			Label:       it.Label,
			RateID:      it.RateID,
			ShippingTax: it.ShippingTax,
			Compound:    it.Compound,
		})
	}
	return m
}

// toDomainOrder expects m.Items sorted by Position.
func toDomainOrder(m OrderModel) *model.Order {
	o := &model.Order{
		ID:                 m.ID,
		OrderKey:           m.OrderKey,
		Status:             model.OrderStatus(m.Status),
		CustomerID:         m.CustomerID,
		CreatedVia:         m.CreatedVia,
		Currency:           m.Currency,
		PaymentMethod:      m.PaymentMethod,
		PaymentMethodTitle: m.PaymentMethodTitle,
		Test:               m.Test,
		Billing:            m.Billing,
		Shipping:           m.Shipping,
		Meta:               m.Meta,
		Notes:              m.Notes,
		Totals: model.Totals{
			CartTax:       m.CartTax,
			Shipping:      m.ShippingTotal,
			ShippingTax:   m.ShippingTax,
			CartDiscount:  m.CartDiscount,
			OrderDiscount: m.OrderDiscount,
			Total:         m.Total,
		},
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.PricewaiterID != nil {
		o.PricewaiterID = *m.PricewaiterID
	}
	if o.Meta == nil {
		o.Meta = map[string]string{}
	}
	for _, it := range m.Items {
		o.Items = append(o.Items, model.LineItem{
			Kind:        model.LineKind(it.Kind),
			Name:        it.Name,
			ProductID:   it.ProductID,
			SKU:         it.SKU,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Subtotal:    it.Subtotal,
			Total:       it.Total,
			Tax:         it.Tax,
			Variation:   it.Variation,
			MethodID:    it.MethodID,
			Label:       it.Label,
			RateID:      it.RateID,
			ShippingTax: it.ShippingTax,
			Compound:    it.Compound,
		})
	}
	return o
}

func toDomainProduct(m ProductModel) *store.Product {
	return &store.Product{
		ID:          m.ID,
		ParentID:    m.ParentID,
		Name:        m.Name,
		SKU:         m.SKU,
		Price:       m.Price,
		TaxClass:    m.TaxClass,
		ManageStock: m.ManageStock,
		Stock:       m.Stock,
		Attributes:  m.Attributes,
	}
}

func toSettingsModel(s settings.Settings) SettingsModel {
	return SettingsModel{
		ID:                 settingsRowID,
		APIKey:             s.APIKey,
		APIUserID:          s.APIUserID,
		SetupComplete:      s.SetupComplete,
		Debug:              s.Debug,
		EcommerceTracking:  string(s.EcommerceTracking),
		TrackingObject:     s.TrackingObject,
		ButtonWrapperStyle: s.ButtonWrapperStyle,
		UpdatedAt:          s.UpdatedAt,
	}
}

func toDomainSettings(m SettingsModel) settings.Settings {
	return settings.Settings{
		APIKey:             m.APIKey,
		APIUserID:          m.APIUserID,
		SetupComplete:      m.SetupComplete,
		Debug:              m.Debug,
		EcommerceTracking:  settings.AnalyticsMode(m.EcommerceTracking),
		TrackingObject:     m.TrackingObject,
		ButtonWrapperStyle: m.ButtonWrapperStyle,
		UpdatedAt:          m.UpdatedAt,
	}
}
