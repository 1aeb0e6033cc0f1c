package gormrepo

import (
	"encoding/json"
	"time"

	domain "github.com/atelier-goods/api/internal/domain"
)

// Rows use string primary keys minted by the services layer; child rows
// carry order_id so one query collects a whole aggregate. Addresses and
// string lists are stored as JSON text columns.

type orderModel struct {
	ID         string `gorm:"primaryKey;size:32"`
	Number     string `gorm:"size:16;uniqueIndex;not null"`
	GuestToken string `gorm:"size:64;index"`
	UserID     string `gorm:"size:64;index"`
	State      string `gorm:"size:24;not null;index"`
	Currency   string `gorm:"size:3;not null"`

	BillAddress string `gorm:"type:text"`
	ShipAddress string `gorm:"type:text"`
	Email       string `gorm:"size:255"`

	ItemTotal          int64
	AdjustmentTotal    int64
	PromoTotal         int64
	IncludedTaxTotal   int64
	AdditionalTaxTotal int64
	ShipmentTotal      int64
	Total              int64

	Approved              bool
	ConfirmationDelivered bool

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
	CanceledAt  *time.Time
}

func (orderModel) TableName() string { return "orders" }

type lineItemModel struct {
	ID            string `gorm:"primaryKey;size:32"`
	OrderID       string `gorm:"size:32;index;not null"`
	VariantID     string `gorm:"size:32;not null"`
	ProductID     string `gorm:"size:32"`
	Quantity      int    `gorm:"not null"`
	Price         int64  `gorm:"not null"`
	Currency      string `gorm:"size:3;not null"`
	TaxCategoryID string `gorm:"size:32"`

	AdjustmentTotal    int64
	PromoTotal         int64
	IncludedTaxTotal   int64
	AdditionalTaxTotal int64

	Position int `gorm:"not null"`
}

func (lineItemModel) TableName() string { return "line_items" }

type shipmentModel struct {
	ID              string `gorm:"primaryKey;size:32"`
	OrderID         string `gorm:"size:32;index;not null"`
	StockLocationID string `gorm:"size:32;not null"`
	Number          string `gorm:"size:16;index"`
	State           string `gorm:"size:16;not null"`
	Cost            int64

	AdjustmentTotal    int64
	PromoTotal         int64
	IncludedTaxTotal   int64
	AdditionalTaxTotal int64

	ShippedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	Position  int `gorm:"not null"`
}

func (shipmentModel) TableName() string { return "shipments" }

type shippingRateModel struct {
	ID               string `gorm:"primaryKey;size:32"`
	OrderID          string `gorm:"size:32;index;not null"`
	ShipmentID       string `gorm:"size:32;index;not null"`
	ShippingMethodID string `gorm:"size:32;not null"`
	Cost             int64
	TaxRateID        string `gorm:"size:32"`
	Selected         bool
	Position         int `gorm:"not null"`
}

func (shippingRateModel) TableName() string { return "shipping_rates" }

type inventoryUnitModel struct {
	ID      string `gorm:"primaryKey;size:32"`
	OrderID string `gorm:"size:32;index;not null"`
	// StockLocationID duplicates the shipment's location so backorder
	// queries do not need a join.
	StockLocationID       string `gorm:"size:32;index;not null"`
	ShipmentID            string `gorm:"size:32;index;not null"`
	VariantID             string `gorm:"size:32;index;not null"`
	LineItemID            string `gorm:"size:32"`
	State                 string `gorm:"size:16;not null;index"`
	ReturnAuthorizationID string `gorm:"size:32;index"`
	CreatedAt             time.Time
}

func (inventoryUnitModel) TableName() string { return "inventory_units" }

type paymentModel struct {
	ID           string `gorm:"primaryKey;size:32"`
	OrderID      string `gorm:"size:32;index;not null"`
	Amount       int64  `gorm:"not null"`
	State        string `gorm:"size:16;not null"`
	GatewayRef   string `gorm:"size:64"`
	ErrorMessage string `gorm:"size:255"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (paymentModel) TableName() string { return "payments" }

type adjustmentModel struct {
	ID             string `gorm:"primaryKey;size:32"`
	OrderID        string `gorm:"size:32;index;not null"`
	AdjustableType string `gorm:"size:16;not null"`
	AdjustableID   string `gorm:"size:32;not null;index"`
	SourceType     string `gorm:"size:32"`
	SourceID       string `gorm:"size:32"`
	Amount         int64
	Label          string `gorm:"size:255"`
	Eligible       bool
	Included       bool
	State          string `gorm:"size:16;not null"`
	CreatedAt      time.Time
}

func (adjustmentModel) TableName() string { return "adjustments" }

type variantModel struct {
	ID             string `gorm:"primaryKey;size:32"`
	ProductID      string `gorm:"size:32;index;not null"`
	SKU            string `gorm:"size:64;uniqueIndex"`
	Price          int64  `gorm:"not null"`
	WeightGrams    int
	TaxCategoryID  string `gorm:"size:32"`
	TrackInventory bool
	IsMaster       bool
}

func (variantModel) TableName() string { return "variants" }

type stockItemModel struct {
	ID              string `gorm:"primaryKey;size:32"`
	VariantID       string `gorm:"size:32;index:idx_stock_variant_location,unique;not null"`
	StockLocationID string `gorm:"size:32;index:idx_stock_variant_location,unique;not null"`
	CountOnHand     int
	Backorderable   bool
	Version         int64 `gorm:"not null;default:0"`
	UpdatedAt       time.Time
}

func (stockItemModel) TableName() string { return "stock_items" }

type stockLocationModel struct {
	ID       string `gorm:"primaryKey;size:32"`
	Name     string `gorm:"size:255;not null"`
	Priority int
	Active   bool `gorm:"index"`
}

func (stockLocationModel) TableName() string { return "stock_locations" }

type shippingMethodModel struct {
	ID               string `gorm:"primaryKey;size:32"`
	Name             string `gorm:"size:255;not null"`
	DisplayOn        string `gorm:"size:16"`
	ZoneIDs          string `gorm:"type:text"`
	StockLocationIDs string `gorm:"type:text"`
	TaxCategoryID    string `gorm:"size:32"`

	CalculatorKind     string `gorm:"size:32"`
	CalculatorCurrency string `gorm:"size:3"`
	CalculatorAmount   int64
	CalculatorPercent  float64
}

func (shippingMethodModel) TableName() string { return "shipping_methods" }

type zoneModel struct {
	ID        string `gorm:"primaryKey;size:32"`
	Name      string `gorm:"size:255;not null"`
	Countries string `gorm:"type:text"`
}

func (zoneModel) TableName() string { return "zones" }

type taxRateModel struct {
	ID              string `gorm:"primaryKey;size:32"`
	Name            string `gorm:"size:255"`
	TaxCategoryID   string `gorm:"size:32;index"`
	ZoneID          string `gorm:"size:32;index"`
	Amount          float64
	IncludedInPrice bool
}

func (taxRateModel) TableName() string { return "tax_rates" }

type promotionModel struct {
	ID          string `gorm:"primaryKey;size:32"`
	Name        string `gorm:"size:255"`
	Code        string `gorm:"size:64;index"`
	Path        string `gorm:"size:255"`
	MatchPolicy string `gorm:"size:8"`
	StartsAt    *time.Time
	ExpiresAt   *time.Time
	Active      bool `gorm:"index"`
}

func (promotionModel) TableName() string { return "promotions" }

type promotionRuleModel struct {
	ID           string `gorm:"primaryKey;size:32"`
	PromotionID  string `gorm:"size:32;index;not null"`
	Kind         string `gorm:"size:16;not null"`
	ProductIDs   string `gorm:"type:text"`
	ProductMatch string `gorm:"size:8"`
	Operator     string `gorm:"size:4"`
	Threshold    int64
}

func (promotionRuleModel) TableName() string { return "promotion_rules" }

type promotionActionModel struct {
	ID          string `gorm:"primaryKey;size:32"`
	PromotionID string `gorm:"size:32;index;not null"`
	Kind        string `gorm:"size:32;not null"`
	Label       string `gorm:"size:255"`

	CalculatorKind     string `gorm:"size:32"`
	CalculatorCurrency string `gorm:"size:3"`
	CalculatorAmount   int64
	CalculatorPercent  float64
}

func (promotionActionModel) TableName() string { return "promotion_actions" }

type returnAuthorizationModel struct {
	ID              string `gorm:"primaryKey;size:32"`
	Number          string `gorm:"size:16;uniqueIndex;not null"`
	OrderID         string `gorm:"size:32;index;not null"`
	StockLocationID string `gorm:"size:32"`
	Amount          int64
	Reason          string `gorm:"size:255"`
	State           string `gorm:"size:16;not null"`
	CreatedAt       time.Time
	ReceivedAt      *time.Time
}

func (returnAuthorizationModel) TableName() string { return "return_authorizations" }

func allModels() []any {
	return []any{
		&orderModel{}, &lineItemModel{}, &shipmentModel{}, &shippingRateModel{},
		&inventoryUnitModel{}, &paymentModel{}, &adjustmentModel{},
		&variantModel{}, &stockItemModel{}, &stockLocationModel{},
		&shippingMethodModel{}, &zoneModel{}, &taxRateModel{},
		&promotionModel{}, &promotionRuleModel{}, &promotionActionModel{},
		&returnAuthorizationModel{},
	}
}

func marshalJSON(v any) string {
	if v == nil {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func unmarshalAddress(raw string) *domain.Address {
	if raw == "" {
		return nil
	}
	var addr domain.Address
	if err := json.Unmarshal([]byte(raw), &addr); err != nil {
		return nil
	}
	return &addr
}

func unmarshalStrings(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

func toOrderModel(order domain.Order) orderModel {
	return orderModel{
		ID:                    order.ID,
		Number:                order.Number,
		GuestToken:            order.GuestToken,
		UserID:                order.UserID,
		State:                 string(order.State),
		Currency:              order.Currency,
		BillAddress:           marshalAddress(order.BillAddress),
		ShipAddress:           marshalAddress(order.ShipAddress),
		Email:                 order.Email,
		ItemTotal:             order.ItemTotal,
		AdjustmentTotal:       order.AdjustmentTotal,
		PromoTotal:            order.PromoTotal,
		IncludedTaxTotal:      order.IncludedTaxTotal,
		AdditionalTaxTotal:    order.AdditionalTaxTotal,
		ShipmentTotal:         order.ShipmentTotal,
		Total:                 order.Total,
		Approved:              order.Approved,
		ConfirmationDelivered: order.ConfirmationDelivered,
		CreatedAt:             order.CreatedAt,
		UpdatedAt:             order.UpdatedAt,
		CompletedAt:           order.CompletedAt,
		CanceledAt:            order.CanceledAt,
	}
}

func marshalAddress(addr *domain.Address) string {
	if addr == nil {
		return ""
	}
	return marshalJSON(addr)
}

func fromOrderModel(m orderModel) domain.Order {
	return domain.Order{
		ID:                    m.ID,
		Number:                m.Number,
		GuestToken:            m.GuestToken,
		UserID:                m.UserID,
		State:                 domain.OrderState(m.State),
		Currency:              m.Currency,
		BillAddress:           unmarshalAddress(m.BillAddress),
		ShipAddress:           unmarshalAddress(m.ShipAddress),
		Email:                 m.Email,
		ItemTotal:             m.ItemTotal,
		AdjustmentTotal:       m.AdjustmentTotal,
		PromoTotal:            m.PromoTotal,
		IncludedTaxTotal:      m.IncludedTaxTotal,
		AdditionalTaxTotal:    m.AdditionalTaxTotal,
		ShipmentTotal:         m.ShipmentTotal,
		Total:                 m.Total,
		Approved:              m.Approved,
		ConfirmationDelivered: m.ConfirmationDelivered,
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
		CompletedAt:           m.CompletedAt,
		CanceledAt:            m.CanceledAt,
	}
}

func toAdjustmentModel(orderID string, adj domain.Adjustment) adjustmentModel {
	return adjustmentModel{
		ID:             adj.ID,
		OrderID:        orderID,
		AdjustableType: string(adj.AdjustableType),
		AdjustableID:   adj.AdjustableID,
		SourceType:     string(adj.SourceType),
		SourceID:       adj.SourceID,
		Amount:         adj.Amount,
		Label:          adj.Label,
		Eligible:       adj.Eligible,
		Included:       adj.Included,
		State:          string(adj.State),
		CreatedAt:      adj.CreatedAt,
	}
}

func fromAdjustmentModel(m adjustmentModel) domain.Adjustment {
	return domain.Adjustment{
		ID:             m.ID,
		OrderID:        m.OrderID,
		AdjustableType: domain.AdjustableType(m.AdjustableType),
		AdjustableID:   m.AdjustableID,
		SourceType:     domain.AdjustmentSourceType(m.SourceType),
		SourceID:       m.SourceID,
		Amount:         m.Amount,
		Label:          m.Label,
		Eligible:       m.Eligible,
		Included:       m.Included,
		State:          domain.AdjustmentState(m.State),
		CreatedAt:      m.CreatedAt,
	}
}

func toVariant(m variantModel) domain.Variant {
	return domain.Variant{
		ID:             m.ID,
		ProductID:      m.ProductID,
		SKU:            m.SKU,
		Price:          m.Price,
		WeightGrams:    m.WeightGrams,
		TaxCategoryID:  m.TaxCategoryID,
		TrackInventory: m.TrackInventory,
		IsMaster:       m.IsMaster,
	}
}

func toStockItem(m stockItemModel) domain.StockItem {
	return domain.StockItem{
		ID:              m.ID,
		VariantID:       m.VariantID,
		StockLocationID: m.StockLocationID,
		CountOnHand:     m.CountOnHand,
		Backorderable:   m.Backorderable,
		Version:         m.Version,
		UpdatedAt:       m.UpdatedAt,
	}
}

func toShippingMethod(m shippingMethodModel) domain.ShippingMethod {
	return domain.ShippingMethod{
		ID:               m.ID,
		Name:             m.Name,
		DisplayOn:        domain.DisplayContext(m.DisplayOn),
		ZoneIDs:          unmarshalStrings(m.ZoneIDs),
		StockLocationIDs: unmarshalStrings(m.StockLocationIDs),
		TaxCategoryID:    m.TaxCategoryID,
		Calculator: domain.Calculator{
			Kind:     domain.CalculatorKind(m.CalculatorKind),
			Currency: m.CalculatorCurrency,
			Amount:   m.CalculatorAmount,
			Percent:  m.CalculatorPercent,
		},
	}
}

func toZone(m zoneModel) domain.Zone {
	return domain.Zone{
		ID:        m.ID,
		Name:      m.Name,
		Countries: unmarshalStrings(m.Countries),
	}
}

func toTaxRate(m taxRateModel) domain.TaxRate {
	return domain.TaxRate{
		ID:              m.ID,
		Name:            m.Name,
		TaxCategoryID:   m.TaxCategoryID,
		ZoneID:          m.ZoneID,
		Amount:          m.Amount,
		IncludedInPrice: m.IncludedInPrice,
	}
}

func toPromotion(m promotionModel, rules []promotionRuleModel, actions []promotionActionModel) domain.Promotion {
	promo := domain.Promotion{
		ID:          m.ID,
		Name:        m.Name,
		Code:        m.Code,
		Path:        m.Path,
		MatchPolicy: domain.MatchPolicy(m.MatchPolicy),
		StartsAt:    m.StartsAt,
		ExpiresAt:   m.ExpiresAt,
		Active:      m.Active,
	}
	for _, rule := range rules {
		promo.Rules = append(promo.Rules, domain.PromotionRule{
			ID:           rule.ID,
			PromotionID:  rule.PromotionID,
			Kind:         domain.RuleKind(rule.Kind),
			ProductIDs:   unmarshalStrings(rule.ProductIDs),
			ProductMatch: domain.ProductMatchPolicy(rule.ProductMatch),
			Operator:     domain.ComparisonOperator(rule.Operator),
			Threshold:    rule.Threshold,
		})
	}
	for _, action := range actions {
		promo.Actions = append(promo.Actions, domain.PromotionAction{
			ID:          action.ID,
			PromotionID: action.PromotionID,
			Kind:        domain.ActionKind(action.Kind),
			Label:       action.Label,
			Calculator: domain.Calculator{
				Kind:     domain.CalculatorKind(action.CalculatorKind),
				Currency: action.CalculatorCurrency,
				Amount:   action.CalculatorAmount,
				Percent:  action.CalculatorPercent,
			},
		})
	}
	return promo
}

func toRMAModel(rma domain.ReturnAuthorization) returnAuthorizationModel {
	return returnAuthorizationModel{
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

func fromRMAModel(m returnAuthorizationModel) domain.ReturnAuthorization {
	return domain.ReturnAuthorization{
		ID:              m.ID,
		Number:          m.Number,
		OrderID:         m.OrderID,
		StockLocationID: m.StockLocationID,
		Amount:          m.Amount,
		Reason:          m.Reason,
		State:           domain.ReturnAuthorizationState(m.State),
		CreatedAt:       m.CreatedAt,
		ReceivedAt:      m.ReceivedAt,
	}
}
