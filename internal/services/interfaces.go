package services

import (
	"context"

	domain "github.com/atelier-goods/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing
// dependency direction.
type (
	Order               = domain.Order
	OrderState          = domain.OrderState
	LineItem            = domain.LineItem
	Variant             = domain.Variant
	StockItem           = domain.StockItem
	StockLocation       = domain.StockLocation
	InventoryUnit       = domain.InventoryUnit
	Shipment            = domain.Shipment
	ShippingRate        = domain.ShippingRate
	ShippingMethod      = domain.ShippingMethod
	Zone                = domain.Zone
	Address             = domain.Address
	TaxRate             = domain.TaxRate
	Adjustment          = domain.Adjustment
	Promotion           = domain.Promotion
	PromotionRule       = domain.PromotionRule
	PromotionAction     = domain.PromotionAction
	ReturnAuthorization = domain.ReturnAuthorization
	Payment             = domain.Payment
	Package             = domain.Package
	PackageItem         = domain.PackageItem
	Calculator          = domain.Calculator
)

// InventoryLedger owns all stock counter mutations. Every write is safe under
// concurrent adjustment from multiple orders; see the optimistic retry
// discipline in the implementation.
type InventoryLedger interface {
	// Adjust applies count_on_hand += delta and, for positive deltas,
	// fills queued backordered units oldest-first.
	Adjust(ctx context.Context, stockItemID string, delta int) (StockItem, error)
	// Set overwrites count_on_hand absolutely without touching backorders.
	Set(ctx context.Context, stockItemID string, value int) (StockItem, error)
	// ReduceToZero clamps a positive count to zero; negative counts are
	// left alone so backorder debt stays visible.
	ReduceToZero(ctx context.Context, stockItemID string) (StockItem, error)
}

// InsufficientStockLine reports unmet demand for one line item after packing.
type InsufficientStockLine struct {
	LineItemID string
	VariantID  string
	Requested  int
	Missing    int
}

// PackResult carries packages plus any non-fatal insufficient-stock
// conditions; the caller decides whether to allow or reject the shortfall.
type PackResult struct {
	Packages          []Package
	InsufficientStock []InsufficientStockLine
}

// StockPacker partitions an order's requested quantities into per-location
// packages and runs the splitter chain over the result.
type StockPacker interface {
	Pack(ctx context.Context, order Order) (PackResult, error)
}

// EstimateCommand scopes one shipping-rate estimation run.
type EstimateCommand struct {
	Order   Order
	Package Package
	// PreviousMethodID preserves the shopper's explicit choice across
	// re-estimation when the method is still among the candidates.
	PreviousMethodID string
	// AdminContext includes backend-only display methods.
	AdminContext bool
}

// ShippingRateEstimator computes candidate rates for a package, cheapest
// first, with exactly one rate selected.
type ShippingRateEstimator interface {
	Estimate(ctx context.Context, cmd EstimateCommand) ([]ShippingRate, error)
}

// AdjustmentEngine recomputes tax and promotion adjustments and rolls totals
// up into the order aggregate. It mutates the aggregate in memory; callers
// own persistence.
type AdjustmentEngine interface {
	// ApplyTaxes reconciles open tax adjustments against the rates
	// applicable to the order's tax address (idempotent).
	ApplyTaxes(ctx context.Context, order *Order) error
	// UpdateOrder recomputes every adjustable of the order and its totals.
	UpdateOrder(ctx context.Context, order *Order) error
	// UpdateAdjustable recomputes a single line item, shipment, or the
	// order itself, then refreshes order totals.
	UpdateAdjustable(ctx context.Context, order *Order, adjustableType domain.AdjustableType, adjustableID string) error
}

// PromotionActivator evaluates auto-apply promotions against an order (and
// optionally one line item) and activates matching actions. Activation is
// idempotent per (promotion action, adjustable) pair.
type PromotionActivator interface {
	Activate(ctx context.Context, order *Order, lineItemID string) error
}

// OrderService drives the order state machine and coordinates repacking,
// promotion activation, adjustment recomputation, and totals persistence.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	AddLineItem(ctx context.Context, cmd AddLineItemCommand) (Order, error)
	RemoveLineItem(ctx context.Context, cmd RemoveLineItemCommand) (Order, error)
	Empty(ctx context.Context, orderID string) (Order, error)
	SetAddresses(ctx context.Context, cmd SetAddressesCommand) (Order, error)
	SelectShippingRate(ctx context.Context, cmd SelectShippingRateCommand) (Order, error)
	AddPayment(ctx context.Context, cmd AddPaymentCommand) (Order, error)
	ProcessPayments(ctx context.Context, orderID string) (Order, error)
	Ship(ctx context.Context, cmd ShipShipmentCommand) (Order, error)
	Next(ctx context.Context, orderID string) (Order, error)
	Advance(ctx context.Context, orderID string) (Order, error)
	Cancel(ctx context.Context, orderID string) (Order, error)
	Resume(ctx context.Context, orderID string) (Order, error)
	Approve(ctx context.Context, orderID string) (Order, error)
}

// ReturnService manages return authorizations over shipped inventory.
type ReturnService interface {
	CreateReturnAuthorization(ctx context.Context, cmd CreateReturnAuthorizationCommand) (ReturnAuthorization, error)
	AddVariant(ctx context.Context, cmd AddReturnVariantCommand) (ReturnAuthorization, error)
	Receive(ctx context.Context, rmaID string) (ReturnAuthorization, error)
	CancelReturn(ctx context.Context, rmaID string) (ReturnAuthorization, error)
}

// CreateOrderCommand starts a cart.
type CreateOrderCommand struct {
	UserID   string
	Email    string
	Currency string
}

// AddLineItemCommand adds quantity of a variant to an order, merging with an
// existing line for the same variant.
type AddLineItemCommand struct {
	OrderID   string
	VariantID string
	Quantity  int
}

// RemoveLineItemCommand removes quantity of a variant; the line is deleted
// when its quantity reaches zero.
type RemoveLineItemCommand struct {
	OrderID   string
	VariantID string
	Quantity  int
}

// SetAddressesCommand sets the order's billing and shipping addresses.
type SetAddressesCommand struct {
	OrderID     string
	Email       string
	BillAddress *Address
	ShipAddress *Address
}

// SelectShippingRateCommand records the shopper's explicit rate choice.
type SelectShippingRateCommand struct {
	OrderID        string
	ShipmentID     string
	ShippingRateID string
}

// AddPaymentCommand attaches a payment covering amount to the order.
type AddPaymentCommand struct {
	OrderID string
	Amount  int64
}

// ShipShipmentCommand dispatches one ready shipment.
type ShipShipmentCommand struct {
	OrderID    string
	ShipmentID string
}

// CreateReturnAuthorizationCommand opens an RMA against shipped units.
type CreateReturnAuthorizationCommand struct {
	OrderID         string
	StockLocationID string
	Amount          int64
	Reason          string
}

// AddReturnVariantCommand claims (or trims a claim to) quantity units of a
// variant for the RMA.
type AddReturnVariantCommand struct {
	ReturnAuthorizationID string
	VariantID             string
	Quantity              int
}
