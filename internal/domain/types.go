package domain

import (
	"time"
)

// OrderState enumerates the lifecycle states an order moves through.
type OrderState string

const (
	// OrderStateCart is the initial state while the shopper assembles line items.
	OrderStateCart OrderState = "cart"
	// OrderStateAddress requires billing and shipping addresses before advancing.
	OrderStateAddress OrderState = "address"
	// OrderStateDelivery requires at least one shipment with a selected rate.
	OrderStateDelivery OrderState = "delivery"
	// OrderStatePayment requires a payment when the order total is payable.
	OrderStatePayment OrderState = "payment"
	// OrderStateConfirm is an optional review step before completion.
	OrderStateConfirm OrderState = "confirm"
	// OrderStateComplete marks a finalized order.
	OrderStateComplete OrderState = "complete"
	// OrderStateCanceled marks an order withdrawn before fulfillment.
	OrderStateCanceled OrderState = "canceled"
	// OrderStateResumed marks a canceled order brought back into fulfillment.
	OrderStateResumed OrderState = "resumed"
	// OrderStateRisky holds a completed order flagged by fraud checks.
	OrderStateRisky OrderState = "risky"
	// OrderStateAwaitingReturn marks an order with an authorized return in flight.
	OrderStateAwaitingReturn OrderState = "awaiting_return"
	// OrderStateReturned marks an order whose shipped units all came back.
	OrderStateReturned OrderState = "returned"
)

// Order aggregates checkout state, contents, and rolled-up monetary totals.
// Amounts are kept in the smallest currency unit.
type Order struct {
	ID         string
	Number     string
	GuestToken string
	UserID     string
	State      OrderState
	Currency   string

	BillAddress *Address
	ShipAddress *Address
	Email       string

	ItemTotal          int64
	AdjustmentTotal    int64
	PromoTotal         int64
	IncludedTaxTotal   int64
	AdditionalTaxTotal int64
	ShipmentTotal      int64
	Total              int64

	LineItems   []LineItem
	Shipments   []Shipment
	Payments    []Payment
	Adjustments []Adjustment

	Approved              bool
	ConfirmationDelivered bool

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
	CanceledAt  *time.Time
}

// LineItem is one variant/quantity entry owned by exactly one order.
type LineItem struct {
	ID            string
	OrderID       string
	VariantID     string
	ProductID     string
	Quantity      int
	Price         int64
	Currency      string
	TaxCategoryID string

	AdjustmentTotal    int64
	PromoTotal         int64
	IncludedTaxTotal   int64
	AdditionalTaxTotal int64

	Adjustments []Adjustment
}

// Amount returns the undiscounted extended price for the line.
func (li LineItem) Amount() int64 {
	return li.Price * int64(li.Quantity)
}

// Variant is the sellable unit: a product plus option values (or the master).
type Variant struct {
	ID             string
	ProductID      string
	SKU            string
	Price          int64
	WeightGrams    int
	TaxCategoryID  string
	TrackInventory bool
	IsMaster       bool
}

// StockItem tracks on-hand count for one (variant, stock location) pair.
// CountOnHand may go negative only while Backorderable is true; all writes go
// through the inventory ledger's compare-and-swap update.
type StockItem struct {
	ID              string
	VariantID       string
	StockLocationID string
	CountOnHand     int
	Backorderable   bool
	Version         int64
	UpdatedAt       time.Time
}

// Available reports whether the item can be included in a shipment.
func (si StockItem) Available() bool {
	return si.CountOnHand > 0 || si.Backorderable
}

// StockLocation is a physical or logical inventory-holding site. Locations are
// consulted in ascending Priority order when packing.
type StockLocation struct {
	ID       string
	Name     string
	Priority int
	Active   bool
}

// InventoryUnitState tracks a single unit's fulfillment progress.
type InventoryUnitState string

const (
	// UnitOnHand means the unit is reserved against physical stock.
	UnitOnHand InventoryUnitState = "on_hand"
	// UnitBackordered means the unit awaits incoming stock.
	UnitBackordered InventoryUnitState = "backordered"
	// UnitShipped means the unit left the stock location.
	UnitShipped InventoryUnitState = "shipped"
	// UnitReturned means the unit came back through a return authorization.
	UnitReturned InventoryUnitState = "returned"
)

// InventoryUnit is one physical unit of a variant inside a shipment.
type InventoryUnit struct {
	ID                    string
	OrderID               string
	ShipmentID            string
	VariantID             string
	LineItemID            string
	State                 InventoryUnitState
	ReturnAuthorizationID string
	CreatedAt             time.Time
}

// ShipmentState enumerates shipment fulfillment states.
type ShipmentState string

const (
	// ShipmentPending means the shipment awaits payment or stock.
	ShipmentPending ShipmentState = "pending"
	// ShipmentReady means the shipment can be dispatched.
	ShipmentReady ShipmentState = "ready"
	// ShipmentShipped means the shipment left the building.
	ShipmentShipped ShipmentState = "shipped"
	// ShipmentCanceled means the shipment was withdrawn with its order.
	ShipmentCanceled ShipmentState = "canceled"
)

// Shipment groups inventory units leaving one stock location for an order.
// Exactly one of its ShippingRates is selected at any time.
type Shipment struct {
	ID              string
	OrderID         string
	StockLocationID string
	Number          string
	State           ShipmentState
	Cost            int64

	AdjustmentTotal    int64
	PromoTotal         int64
	IncludedTaxTotal   int64
	AdditionalTaxTotal int64

	InventoryUnits []InventoryUnit
	ShippingRates  []ShippingRate
	Adjustments    []Adjustment

	ShippedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BackorderedUnits counts units still awaiting stock.
func (s Shipment) BackorderedUnits() int {
	count := 0
	for _, unit := range s.InventoryUnits {
		if unit.State == UnitBackordered {
			count++
		}
	}
	return count
}

// SelectedRate returns the currently selected shipping rate, if any.
func (s Shipment) SelectedRate() (ShippingRate, bool) {
	for _, rate := range s.ShippingRates {
		if rate.Selected {
			return rate, true
		}
	}
	return ShippingRate{}, false
}

// ShippingRate is an ephemeral candidate cost for a shipment; rates are
// discarded and rebuilt whenever the shipment's contents or address change.
type ShippingRate struct {
	ID               string
	ShipmentID       string
	ShippingMethodID string
	Cost             int64
	TaxRateID        string
	Selected         bool
}

// DisplayContext restricts where a shipping method may be offered.
type DisplayContext string

const (
	// DisplayBoth offers the method in storefront and admin estimation.
	DisplayBoth DisplayContext = "both"
	// DisplayFrontEnd offers the method to shoppers only.
	DisplayFrontEnd DisplayContext = "front_end"
	// DisplayBackEnd restricts the method to admin contexts.
	DisplayBackEnd DisplayContext = "back_end"
)

// ShippingMethod describes one way of moving a package, scoped by zones.
type ShippingMethod struct {
	ID               string
	Name             string
	DisplayOn        DisplayContext
	ZoneIDs          []string
	StockLocationIDs []string
	TaxCategoryID    string
	Calculator       Calculator
}

// ServesLocation reports whether the method ships from the given location.
// An empty location list means the method serves every location.
func (m ShippingMethod) ServesLocation(stockLocationID string) bool {
	if len(m.StockLocationIDs) == 0 {
		return true
	}
	for _, id := range m.StockLocationIDs {
		if id == stockLocationID {
			return true
		}
	}
	return false
}

// Zone is a named set of countries used to scope shipping methods and taxes.
type Zone struct {
	ID        string
	Name      string
	Countries []string
}

// Contains reports whether the address falls inside the zone.
func (z Zone) Contains(addr *Address) bool {
	if addr == nil {
		return false
	}
	for _, country := range z.Countries {
		if country == addr.Country {
			return true
		}
	}
	return false
}

// Address is the postal address snapshot attached to orders.
type Address struct {
	Name       string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
	Phone      string
}

// Blank reports whether the address carries no routable information.
func (a *Address) Blank() bool {
	return a == nil || (a.Line1 == "" && a.City == "" && a.Country == "")
}

// TaxRate links a tax category to a zone with a rate applied by the
// adjustment engine. IncludedInPrice selects included vs additional tax.
type TaxRate struct {
	ID              string
	Name            string
	TaxCategoryID   string
	ZoneID          string
	Amount          float64
	IncludedInPrice bool
}

// AdjustableType tags the closed set of entities adjustments attach to.
type AdjustableType string

const (
	// AdjustableOrder targets the order itself.
	AdjustableOrder AdjustableType = "order"
	// AdjustableLineItem targets one line item.
	AdjustableLineItem AdjustableType = "line_item"
	// AdjustableShipment targets one shipment.
	AdjustableShipment AdjustableType = "shipment"
)

// AdjustmentSourceType tags what produced an adjustment.
type AdjustmentSourceType string

const (
	// SourcePromotionAction marks promotion-created adjustments.
	SourcePromotionAction AdjustmentSourceType = "promotion_action"
	// SourceTaxRate marks tax-created adjustments.
	SourceTaxRate AdjustmentSourceType = "tax_rate"
	// SourceReturnAuthorization marks RMA credit adjustments.
	SourceReturnAuthorization AdjustmentSourceType = "return_authorization"
	// SourceNone marks manual adjustments with no recomputable source.
	SourceNone AdjustmentSourceType = ""
)

// AdjustmentState freezes an adjustment's amount once an order completes.
type AdjustmentState string

const (
	// AdjustmentOpen allows recomputation of the amount.
	AdjustmentOpen AdjustmentState = "open"
	// AdjustmentClosed excludes the adjustment from recomputation forever.
	AdjustmentClosed AdjustmentState = "closed"
)

// Adjustment is a monetary delta (tax, promotion, RMA credit, or manual)
// attached to an order, shipment, or line item.
type Adjustment struct {
	ID             string
	OrderID        string
	AdjustableType AdjustableType
	AdjustableID   string
	SourceType     AdjustmentSourceType
	SourceID       string
	Amount         int64
	Label          string
	Eligible       bool
	Included       bool
	State          AdjustmentState
	CreatedAt      time.Time
}

// Open reports whether the amount may still be recomputed.
func (a Adjustment) Open() bool {
	return a.State != AdjustmentClosed
}

// Promotion owns ordered rules and actions; it is eligible for an order or
// line item only when its rules combine per MatchPolicy.
type Promotion struct {
	ID          string
	Name        string
	Code        string
	Path        string
	MatchPolicy MatchPolicy
	Rules       []PromotionRule
	Actions     []PromotionAction
	StartsAt    *time.Time
	ExpiresAt   *time.Time
	Active      bool
}

// AutoApplicable reports whether the promotion activates without an entry
// code or path restriction.
func (p Promotion) AutoApplicable() bool {
	return p.Code == "" && p.Path == ""
}

// Live reports whether the promotion is active within its window at t.
func (p Promotion) Live(t time.Time) bool {
	if !p.Active {
		return false
	}
	if p.StartsAt != nil && t.Before(*p.StartsAt) {
		return false
	}
	if p.ExpiresAt != nil && t.After(*p.ExpiresAt) {
		return false
	}
	return true
}

// MatchPolicy combines rule outcomes for a promotion.
type MatchPolicy string

const (
	// MatchAll requires every rule to pass.
	MatchAll MatchPolicy = "all"
	// MatchAny requires at least one rule to pass.
	MatchAny MatchPolicy = "any"
)

// RuleKind tags the closed set of promotion rule variants.
type RuleKind string

const (
	// RuleProduct tests order product membership against a configured set.
	RuleProduct RuleKind = "product"
	// RuleItemTotal compares the order or line-item total against a threshold.
	RuleItemTotal RuleKind = "item_total"
)

// ProductMatchPolicy refines how a product rule tests membership.
type ProductMatchPolicy string

const (
	// ProductMatchAny passes when any configured product is in the order.
	ProductMatchAny ProductMatchPolicy = "any"
	// ProductMatchAll passes when every configured product is in the order.
	ProductMatchAll ProductMatchPolicy = "all"
	// ProductMatchNone passes when no configured product is in the order.
	ProductMatchNone ProductMatchPolicy = "none"
)

// ComparisonOperator selects the item-total rule comparison.
type ComparisonOperator string

const (
	// OpGT passes when total > threshold.
	OpGT ComparisonOperator = "gt"
	// OpGTE passes when total >= threshold.
	OpGTE ComparisonOperator = "gte"
	// OpEQ passes when total == threshold.
	OpEQ ComparisonOperator = "eq"
	// OpLT passes when total < threshold.
	OpLT ComparisonOperator = "lt"
	// OpLTE passes when total <= threshold.
	OpLTE ComparisonOperator = "lte"
)

// PromotionRule is a closed tagged variant; fields beyond Kind are populated
// per variant (ProductIDs/ProductMatch for product rules, Operator/Threshold
// for item-total rules).
type PromotionRule struct {
	ID           string
	PromotionID  string
	Kind         RuleKind
	ProductIDs   []string
	ProductMatch ProductMatchPolicy
	Operator     ComparisonOperator
	Threshold    int64
}

// ActionKind tags the closed set of promotion action variants.
type ActionKind string

const (
	// ActionCreateAdjustment creates one order-level adjustment.
	ActionCreateAdjustment ActionKind = "create_adjustment"
	// ActionCreateItemAdjustments creates one adjustment per line item.
	ActionCreateItemAdjustments ActionKind = "create_item_adjustments"
	// ActionFreeShipping zeroes the cost of every shipment.
	ActionFreeShipping ActionKind = "free_shipping"
)

// PromotionAction is the effect applied when its promotion is eligible.
type PromotionAction struct {
	ID          string
	PromotionID string
	Kind        ActionKind
	Calculator  Calculator
	Label       string
}

// ReturnAuthorizationState tracks an RMA's lifecycle.
type ReturnAuthorizationState string

const (
	// RMAAuthorized means units may still be claimed or the RMA canceled.
	RMAAuthorized ReturnAuthorizationState = "authorized"
	// RMAReceived means claimed units came back and the order was credited.
	RMAReceived ReturnAuthorizationState = "received"
	// RMACanceled means the authorization was withdrawn.
	RMACanceled ReturnAuthorizationState = "canceled"
)

// ReturnAuthorization claims shipped inventory units for return and credits
// the order when received.
type ReturnAuthorization struct {
	ID              string
	Number          string
	OrderID         string
	StockLocationID string
	Amount          int64
	Reason          string
	State           ReturnAuthorizationState
	CreatedAt       time.Time
	ReceivedAt      *time.Time
}

// PaymentState enumerates payment processing states.
type PaymentState string

const (
	// PaymentCheckout is the initial state before processing.
	PaymentCheckout PaymentState = "checkout"
	// PaymentPending means an authorization succeeded awaiting capture.
	PaymentPending PaymentState = "pending"
	// PaymentCompleted means funds were captured.
	PaymentCompleted PaymentState = "completed"
	// PaymentFailed means the gateway declined or errored.
	PaymentFailed PaymentState = "failed"
	// PaymentVoid means the authorization was voided.
	PaymentVoid PaymentState = "void"
)

// Payment records one gateway interaction for an order.
type Payment struct {
	ID           string
	OrderID      string
	Amount       int64
	State        PaymentState
	GatewayRef   string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Package is a location-scoped grouping of inventory produced by the packer
// and destined to become one shipment.
type Package struct {
	StockLocationID string
	Contents        []PackageItem
}

// PackageItemState distinguishes stock-backed units from backorders.
type PackageItemState string

const (
	// PackageOnHand counts against physical stock.
	PackageOnHand PackageItemState = "on_hand"
	// PackageBackordered awaits incoming stock.
	PackageBackordered PackageItemState = "backordered"
)

// PackageItem is a quantity of a variant inside a package.
type PackageItem struct {
	Variant    Variant
	LineItemID string
	Quantity   int
	State      PackageItemState
}

// Quantity sums all units in the package.
func (p Package) Quantity() int {
	total := 0
	for _, item := range p.Contents {
		total += item.Quantity
	}
	return total
}

// OnHandQuantity sums units backed by stock.
func (p Package) OnHandQuantity() int {
	total := 0
	for _, item := range p.Contents {
		if item.State == PackageOnHand {
			total += item.Quantity
		}
	}
	return total
}

// BackorderedQuantity sums units awaiting stock.
func (p Package) BackorderedQuantity() int {
	total := 0
	for _, item := range p.Contents {
		if item.State == PackageBackordered {
			total += item.Quantity
		}
	}
	return total
}

// WeightGrams sums the package's shipping weight.
func (p Package) WeightGrams() int {
	total := 0
	for _, item := range p.Contents {
		total += item.Variant.WeightGrams * item.Quantity
	}
	return total
}

// Empty reports whether the package holds no units.
func (p Package) Empty() bool {
	return p.Quantity() == 0
}
