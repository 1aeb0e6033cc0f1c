package handlers

import (
	"time"

	domain "github.com/atelier-goods/api/internal/domain"
)

type addressPayload struct {
	Name       string `json:"name,omitempty"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

type adjustmentPayload struct {
	ID         string `json:"id"`
	SourceType string `json:"source_type,omitempty"`
	SourceID   string `json:"source_id,omitempty"`
	Amount     int64  `json:"amount"`
	Label      string `json:"label,omitempty"`
	Eligible   bool   `json:"eligible"`
	Included   bool   `json:"included"`
	State      string `json:"state"`
}

type lineItemPayload struct {
	ID                 string              `json:"id"`
	VariantID          string              `json:"variant_id"`
	ProductID          string              `json:"product_id,omitempty"`
	Quantity           int                 `json:"quantity"`
	Price              int64               `json:"price"`
	Amount             int64               `json:"amount"`
	Currency           string              `json:"currency"`
	AdjustmentTotal    int64               `json:"adjustment_total"`
	PromoTotal         int64               `json:"promo_total"`
	IncludedTaxTotal   int64               `json:"included_tax_total"`
	AdditionalTaxTotal int64               `json:"additional_tax_total"`
	Adjustments        []adjustmentPayload `json:"adjustments,omitempty"`
}

type shippingRatePayload struct {
	ID               string `json:"id"`
	ShippingMethodID string `json:"shipping_method_id"`
	Cost             int64  `json:"cost"`
	Selected         bool   `json:"selected"`
}

type inventoryUnitPayload struct {
	ID        string `json:"id"`
	VariantID string `json:"variant_id"`
	State     string `json:"state"`
}

type shipmentPayload struct {
	ID              string                 `json:"id"`
	Number          string                 `json:"number"`
	StockLocationID string                 `json:"stock_location_id"`
	State           string                 `json:"state"`
	Cost            int64                  `json:"cost"`
	AdjustmentTotal int64                  `json:"adjustment_total"`
	ShippingRates   []shippingRatePayload  `json:"shipping_rates,omitempty"`
	InventoryUnits  []inventoryUnitPayload `json:"inventory_units,omitempty"`
	Adjustments     []adjustmentPayload    `json:"adjustments,omitempty"`
	ShippedAt       *time.Time             `json:"shipped_at,omitempty"`
}

type paymentPayload struct {
	ID           string `json:"id"`
	Amount       int64  `json:"amount"`
	State        string `json:"state"`
	GatewayRef   string `json:"gateway_ref,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type orderPayload struct {
	ID         string `json:"id"`
	Number     string `json:"number"`
	GuestToken string `json:"guest_token,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	State      string `json:"state"`
	Currency   string `json:"currency"`
	Email      string `json:"email,omitempty"`

	BillAddress *addressPayload `json:"bill_address,omitempty"`
	ShipAddress *addressPayload `json:"ship_address,omitempty"`

	ItemTotal          int64 `json:"item_total"`
	AdjustmentTotal    int64 `json:"adjustment_total"`
	PromoTotal         int64 `json:"promo_total"`
	IncludedTaxTotal   int64 `json:"included_tax_total"`
	AdditionalTaxTotal int64 `json:"additional_tax_total"`
	ShipmentTotal      int64 `json:"shipment_total"`
	Total              int64 `json:"total"`

	LineItems   []lineItemPayload   `json:"line_items"`
	Shipments   []shipmentPayload   `json:"shipments,omitempty"`
	Payments    []paymentPayload    `json:"payments,omitempty"`
	Adjustments []adjustmentPayload `json:"adjustments,omitempty"`

	Approved    bool       `json:"approved"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CanceledAt  *time.Time `json:"canceled_at,omitempty"`
}

type returnAuthorizationPayload struct {
	ID              string     `json:"id"`
	Number          string     `json:"number"`
	OrderID         string     `json:"order_id"`
	StockLocationID string     `json:"stock_location_id,omitempty"`
	Amount          int64      `json:"amount"`
	Reason          string     `json:"reason,omitempty"`
	State           string     `json:"state"`
	CreatedAt       time.Time  `json:"created_at"`
	ReceivedAt      *time.Time `json:"received_at,omitempty"`
}

func buildAddressPayload(addr *domain.Address) *addressPayload {
	if addr == nil {
		return nil
	}
	return &addressPayload{
		Name:       addr.Name,
		Line1:      addr.Line1,
		Line2:      addr.Line2,
		City:       addr.City,
		State:      addr.State,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
		Phone:      addr.Phone,
	}
}

func addressFromPayload(payload *addressPayload) *domain.Address {
	if payload == nil {
		return nil
	}
	return &domain.Address{
		Name:       payload.Name,
		Line1:      payload.Line1,
		Line2:      payload.Line2,
		City:       payload.City,
		State:      payload.State,
		PostalCode: payload.PostalCode,
		Country:    payload.Country,
		Phone:      payload.Phone,
	}
}

func buildAdjustmentPayloads(adjustments []domain.Adjustment) []adjustmentPayload {
	if len(adjustments) == 0 {
		return nil
	}
	payloads := make([]adjustmentPayload, 0, len(adjustments))
	for _, adj := range adjustments {
		payloads = append(payloads, adjustmentPayload{
			ID:         adj.ID,
			SourceType: string(adj.SourceType),
			SourceID:   adj.SourceID,
			Amount:     adj.Amount,
			Label:      adj.Label,
			Eligible:   adj.Eligible,
			Included:   adj.Included,
			State:      string(adj.State),
		})
	}
	return payloads
}

func buildOrderPayload(order domain.Order) orderPayload {
	payload := orderPayload{
		ID:                 order.ID,
		Number:             order.Number,
		GuestToken:         order.GuestToken,
		UserID:             order.UserID,
		State:              string(order.State),
		Currency:           order.Currency,
		Email:              order.Email,
		BillAddress:        buildAddressPayload(order.BillAddress),
		ShipAddress:        buildAddressPayload(order.ShipAddress),
		ItemTotal:          order.ItemTotal,
		AdjustmentTotal:    order.AdjustmentTotal,
		PromoTotal:         order.PromoTotal,
		IncludedTaxTotal:   order.IncludedTaxTotal,
		AdditionalTaxTotal: order.AdditionalTaxTotal,
		ShipmentTotal:      order.ShipmentTotal,
		Total:              order.Total,
		LineItems:          make([]lineItemPayload, 0, len(order.LineItems)),
		Adjustments:        buildAdjustmentPayloads(order.Adjustments),
		Approved:           order.Approved,
		CreatedAt:          order.CreatedAt,
		UpdatedAt:          order.UpdatedAt,
		CompletedAt:        order.CompletedAt,
		CanceledAt:         order.CanceledAt,
	}

	for _, li := range order.LineItems {
		payload.LineItems = append(payload.LineItems, lineItemPayload{
			ID:                 li.ID,
			VariantID:          li.VariantID,
			ProductID:          li.ProductID,
			Quantity:           li.Quantity,
			Price:              li.Price,
			Amount:             li.Amount(),
			Currency:           li.Currency,
			AdjustmentTotal:    li.AdjustmentTotal,
			PromoTotal:         li.PromoTotal,
			IncludedTaxTotal:   li.IncludedTaxTotal,
			AdditionalTaxTotal: li.AdditionalTaxTotal,
			Adjustments:        buildAdjustmentPayloads(li.Adjustments),
		})
	}

	for _, shipment := range order.Shipments {
		sp := shipmentPayload{
			ID:              shipment.ID,
			Number:          shipment.Number,
			StockLocationID: shipment.StockLocationID,
			State:           string(shipment.State),
			Cost:            shipment.Cost,
			AdjustmentTotal: shipment.AdjustmentTotal,
			Adjustments:     buildAdjustmentPayloads(shipment.Adjustments),
			ShippedAt:       shipment.ShippedAt,
		}
		for _, rate := range shipment.ShippingRates {
			sp.ShippingRates = append(sp.ShippingRates, shippingRatePayload{
				ID:               rate.ID,
				ShippingMethodID: rate.ShippingMethodID,
				Cost:             rate.Cost,
				Selected:         rate.Selected,
			})
		}
		for _, unit := range shipment.InventoryUnits {
			sp.InventoryUnits = append(sp.InventoryUnits, inventoryUnitPayload{
				ID:        unit.ID,
				VariantID: unit.VariantID,
				State:     string(unit.State),
			})
		}
		payload.Shipments = append(payload.Shipments, sp)
	}

	for _, payment := range order.Payments {
		payload.Payments = append(payload.Payments, paymentPayload{
			ID:           payment.ID,
			Amount:       payment.Amount,
			State:        string(payment.State),
			GatewayRef:   payment.GatewayRef,
			ErrorMessage: payment.ErrorMessage,
		})
	}

	return payload
}

func buildReturnAuthorizationPayload(rma domain.ReturnAuthorization) returnAuthorizationPayload {
	return returnAuthorizationPayload{
		ID:              rma.ID,
		Number:          rma.Number,
		OrderID:         rma.OrderID,
		StockLocationID: rma.StockLocationID,
		Amount:          rma.Amount,
		Reason:          rma.Reason,
		State:           string(rma.State),
		CreatedAt:       rma.CreatedAt,
		ReceivedAt:      rma.ReceivedAt,
	}
}
