package repositories

import (
	"context"

	domain "github.com/atelier-goods/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for
// dependency injection. Implementations must guarantee consistent reads after
// writes within a single RunInTx boundary.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	Variants() VariantRepository
	StockItems() StockItemRepository
	StockLocations() StockLocationRepository
	InventoryUnits() InventoryUnitRepository
	ShippingMethods() ShippingMethodRepository
	Zones() ZoneRepository
	TaxRates() TaxRateRepository
	Promotions() PromotionRepository
	ReturnAuthorizations() ReturnAuthorizationRepository

	UnitOfWork
}

// UnitOfWork groups repository operations in a transactional boundary when
// the backend supports one; otherwise fn runs directly.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists the full order aggregate: line items, shipments
// with their rates and units, payments, and adjustments.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	FindByNumber(ctx context.Context, number string) (domain.Order, error)
}

// VariantRepository reads sellable units.
type VariantRepository interface {
	FindByID(ctx context.Context, variantID string) (domain.Variant, error)
}

// StockItemRepository persists per-(variant, location) stock counters.
// Update enforces optimistic concurrency: the write succeeds only when the
// stored Version equals expectedVersion, otherwise ErrorConflict.
type StockItemRepository interface {
	FindByID(ctx context.Context, stockItemID string) (domain.StockItem, error)
	FindForVariant(ctx context.Context, variantID, stockLocationID string) (domain.StockItem, error)
	ListByVariant(ctx context.Context, variantID string) ([]domain.StockItem, error)
	Update(ctx context.Context, item domain.StockItem, expectedVersion int64) (domain.StockItem, error)
}

// StockLocationRepository reads inventory-holding sites.
type StockLocationRepository interface {
	ListActive(ctx context.Context) ([]domain.StockLocation, error)
}

// InventoryUnitRepository queries and mutates units across orders; the
// ledger uses it to fill backorders oldest-first.
type InventoryUnitRepository interface {
	ListBackordered(ctx context.Context, variantID, stockLocationID string) ([]domain.InventoryUnit, error)
	UpdateState(ctx context.Context, unitID string, state domain.InventoryUnitState) error
}

// ShippingMethodRepository reads shipping methods with their calculators.
type ShippingMethodRepository interface {
	ListAll(ctx context.Context) ([]domain.ShippingMethod, error)
}

// ZoneRepository reads geographic zones.
type ZoneRepository interface {
	FindByID(ctx context.Context, zoneID string) (domain.Zone, error)
	ListAll(ctx context.Context) ([]domain.Zone, error)
}

// TaxRateRepository reads tax rates.
type TaxRateRepository interface {
	ListAll(ctx context.Context) ([]domain.TaxRate, error)
}

// PromotionRepository reads promotions with their rules and actions.
type PromotionRepository interface {
	ListActive(ctx context.Context) ([]domain.Promotion, error)
	FindByID(ctx context.Context, promotionID string) (domain.Promotion, error)
	// FindByActionID resolves the promotion owning an action; the
	// adjustment engine uses it to recompute promotion-sourced amounts.
	FindByActionID(ctx context.Context, actionID string) (domain.Promotion, domain.PromotionAction, error)
}

// ReturnAuthorizationRepository persists RMAs.
type ReturnAuthorizationRepository interface {
	Insert(ctx context.Context, rma domain.ReturnAuthorization) error
	Update(ctx context.Context, rma domain.ReturnAuthorization) error
	FindByID(ctx context.Context, rmaID string) (domain.ReturnAuthorization, error)
	ListByOrder(ctx context.Context, orderID string) ([]domain.ReturnAuthorization, error)
}
