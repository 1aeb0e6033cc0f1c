// Package memory provides a Registry backed by process memory. It powers
// tests and local development; production deployments use the gormrepo
// registry instead.
package memory

import (
	"context"
	"sort"
	"sync"

	domain "github.com/atelier-goods/api/internal/domain"
	"github.com/atelier-goods/api/internal/repositories"
)

// Registry implements repositories.Registry over in-process maps guarded by
// a single mutex. Reads return deep copies so callers never share state.
type Registry struct {
	mu sync.RWMutex

	orders         map[string]domain.Order
	ordersByNumber map[string]string
	variants       map[string]domain.Variant
	stockItems     map[string]domain.StockItem
	stockLocations map[string]domain.StockLocation
	methods        map[string]domain.ShippingMethod
	zones          map[string]domain.Zone
	taxRates       map[string]domain.TaxRate
	promotions     map[string]domain.Promotion
	rmas           map[string]domain.ReturnAuthorization
}

// NewRegistry constructs an empty in-memory registry.
func NewRegistry() *Registry {
	return &Registry{
		orders:         make(map[string]domain.Order),
		ordersByNumber: make(map[string]string),
		variants:       make(map[string]domain.Variant),
		stockItems:     make(map[string]domain.StockItem),
		stockLocations: make(map[string]domain.StockLocation),
		methods:        make(map[string]domain.ShippingMethod),
		zones:          make(map[string]domain.Zone),
		taxRates:       make(map[string]domain.TaxRate),
		promotions:     make(map[string]domain.Promotion),
		rmas:           make(map[string]domain.ReturnAuthorization),
	}
}

func (r *Registry) Close(ctx context.Context) error { return nil }

// RunInTx runs fn directly: the in-memory registry has no transactional
// boundary beyond its mutex.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (r *Registry) Orders() repositories.OrderRepository                   { return (*orderRepo)(r) }
func (r *Registry) Variants() repositories.VariantRepository               { return (*variantRepo)(r) }
func (r *Registry) StockItems() repositories.StockItemRepository           { return (*stockItemRepo)(r) }
func (r *Registry) StockLocations() repositories.StockLocationRepository   { return (*stockLocationRepo)(r) }
func (r *Registry) InventoryUnits() repositories.InventoryUnitRepository   { return (*inventoryUnitRepo)(r) }
func (r *Registry) ShippingMethods() repositories.ShippingMethodRepository { return (*methodRepo)(r) }
func (r *Registry) Zones() repositories.ZoneRepository                     { return (*zoneRepo)(r) }
func (r *Registry) TaxRates() repositories.TaxRateRepository               { return (*taxRateRepo)(r) }
func (r *Registry) Promotions() repositories.PromotionRepository           { return (*promotionRepo)(r) }
func (r *Registry) ReturnAuthorizations() repositories.ReturnAuthorizationRepository {
	return (*rmaRepo)(r)
}

// Seed helpers load reference data without going through a repository
// interface; tests and local bootstrap use them.

func (r *Registry) SeedVariant(v domain.Variant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variants[v.ID] = v
}

func (r *Registry) SeedStockItem(si domain.StockItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stockItems[si.ID] = si
}

func (r *Registry) SeedStockLocation(sl domain.StockLocation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stockLocations[sl.ID] = sl
}

func (r *Registry) SeedShippingMethod(m domain.ShippingMethod) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods[m.ID] = m
}

func (r *Registry) SeedZone(z domain.Zone) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.zones[z.ID] = z
}

func (r *Registry) SeedTaxRate(t domain.TaxRate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.taxRates[t.ID] = t
}

func (r *Registry) SeedPromotion(p domain.Promotion) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.promotions[p.ID] = p
}

type orderRepo Registry

func (r *orderRepo) Insert(ctx context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.ID]; ok {
		return repositories.NewError("memory.orders.insert", repositories.ErrorConflict, "order already exists", nil)
	}
	r.orders[order.ID] = cloneOrder(order)
	r.ordersByNumber[order.Number] = order.ID
	return nil
}

func (r *orderRepo) Update(ctx context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.ID]; !ok {
		return repositories.NewError("memory.orders.update", repositories.ErrorNotFound, "order not found", nil)
	}
	r.orders[order.ID] = cloneOrder(order)
	r.ordersByNumber[order.Number] = order.ID
	return nil
}

func (r *orderRepo) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, repositories.NewError("memory.orders.find", repositories.ErrorNotFound, "order not found", nil)
	}
	return cloneOrder(order), nil
}

func (r *orderRepo) FindByNumber(ctx context.Context, number string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.ordersByNumber[number]
	if !ok {
		return domain.Order{}, repositories.NewError("memory.orders.find_by_number", repositories.ErrorNotFound, "order not found", nil)
	}
	return cloneOrder(r.orders[id]), nil
}

type variantRepo Registry

func (r *variantRepo) FindByID(ctx context.Context, variantID string) (domain.Variant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	variant, ok := r.variants[variantID]
	if !ok {
		return domain.Variant{}, repositories.NewError("memory.variants.find", repositories.ErrorNotFound, "variant not found", nil)
	}
	return variant, nil
}

type stockItemRepo Registry

func (r *stockItemRepo) FindByID(ctx context.Context, stockItemID string) (domain.StockItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.stockItems[stockItemID]
	if !ok {
		return domain.StockItem{}, repositories.NewError("memory.stock_items.find", repositories.ErrorNotFound, "stock item not found", nil)
	}
	return item, nil
}

func (r *stockItemRepo) FindForVariant(ctx context.Context, variantID, stockLocationID string) (domain.StockItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, item := range r.stockItems {
		if item.VariantID == variantID && item.StockLocationID == stockLocationID {
			return item, nil
		}
	}
	return domain.StockItem{}, repositories.NewError("memory.stock_items.find_for_variant", repositories.ErrorNotFound, "stock item not found", nil)
}

func (r *stockItemRepo) ListByVariant(ctx context.Context, variantID string) ([]domain.StockItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var items []domain.StockItem
	for _, item := range r.stockItems {
		if item.VariantID == variantID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

// Update enforces the optimistic concurrency contract: the write lands only
// when the stored version still matches expectedVersion.
func (r *stockItemRepo) Update(ctx context.Context, item domain.StockItem, expectedVersion int64) (domain.StockItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.stockItems[item.ID]
	if !ok {
		return domain.StockItem{}, repositories.NewError("memory.stock_items.update", repositories.ErrorNotFound, "stock item not found", nil)
	}
	if stored.Version != expectedVersion {
		return domain.StockItem{}, repositories.NewError("memory.stock_items.update", repositories.ErrorConflict, "stock item version mismatch", nil)
	}
	item.Version = expectedVersion + 1
	r.stockItems[item.ID] = item
	return item, nil
}

type stockLocationRepo Registry

func (r *stockLocationRepo) ListActive(ctx context.Context) ([]domain.StockLocation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var locations []domain.StockLocation
	for _, loc := range r.stockLocations {
		if loc.Active {
			locations = append(locations, loc)
		}
	}
	sort.Slice(locations, func(i, j int) bool {
		if locations[i].Priority != locations[j].Priority {
			return locations[i].Priority < locations[j].Priority
		}
		return locations[i].ID < locations[j].ID
	})
	return locations, nil
}

type inventoryUnitRepo Registry

// ListBackordered walks every order's shipments; units are returned
// oldest-first so backorder fulfillment is fair across orders.
func (r *inventoryUnitRepo) ListBackordered(ctx context.Context, variantID, stockLocationID string) ([]domain.InventoryUnit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var units []domain.InventoryUnit
	for _, order := range r.orders {
		for _, shipment := range order.Shipments {
			if shipment.StockLocationID != stockLocationID {
				continue
			}
			for _, unit := range shipment.InventoryUnits {
				if unit.VariantID == variantID && unit.State == domain.UnitBackordered {
					units = append(units, unit)
				}
			}
		}
	}
	sort.Slice(units, func(i, j int) bool {
		if !units[i].CreatedAt.Equal(units[j].CreatedAt) {
			return units[i].CreatedAt.Before(units[j].CreatedAt)
		}
		return units[i].ID < units[j].ID
	})
	return units, nil
}

func (r *inventoryUnitRepo) UpdateState(ctx context.Context, unitID string, state domain.InventoryUnitState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for orderID, order := range r.orders {
		for i := range order.Shipments {
			for j := range order.Shipments[i].InventoryUnits {
				if order.Shipments[i].InventoryUnits[j].ID == unitID {
					order.Shipments[i].InventoryUnits[j].State = state
					r.orders[orderID] = order
					return nil
				}
			}
		}
	}
	return repositories.NewError("memory.inventory_units.update_state", repositories.ErrorNotFound, "inventory unit not found", nil)
}

type methodRepo Registry

func (r *methodRepo) ListAll(ctx context.Context) ([]domain.ShippingMethod, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var methods []domain.ShippingMethod
	for _, m := range r.methods {
		methods = append(methods, m)
	}
	sort.Slice(methods, func(i, j int) bool { return methods[i].ID < methods[j].ID })
	return methods, nil
}

type zoneRepo Registry

func (r *zoneRepo) FindByID(ctx context.Context, zoneID string) (domain.Zone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	zone, ok := r.zones[zoneID]
	if !ok {
		return domain.Zone{}, repositories.NewError("memory.zones.find", repositories.ErrorNotFound, "zone not found", nil)
	}
	return zone, nil
}

func (r *zoneRepo) ListAll(ctx context.Context) ([]domain.Zone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var zones []domain.Zone
	for _, z := range r.zones {
		zones = append(zones, z)
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i].ID < zones[j].ID })
	return zones, nil
}

type taxRateRepo Registry

func (r *taxRateRepo) ListAll(ctx context.Context) ([]domain.TaxRate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var rates []domain.TaxRate
	for _, rate := range r.taxRates {
		rates = append(rates, rate)
	}
	sort.Slice(rates, func(i, j int) bool { return rates[i].ID < rates[j].ID })
	return rates, nil
}

type promotionRepo Registry

func (r *promotionRepo) ListActive(ctx context.Context) ([]domain.Promotion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var promos []domain.Promotion
	for _, p := range r.promotions {
		if p.Active {
			promos = append(promos, p)
		}
	}
	sort.Slice(promos, func(i, j int) bool { return promos[i].ID < promos[j].ID })
	return promos, nil
}

func (r *promotionRepo) FindByID(ctx context.Context, promotionID string) (domain.Promotion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	promo, ok := r.promotions[promotionID]
	if !ok {
		return domain.Promotion{}, repositories.NewError("memory.promotions.find", repositories.ErrorNotFound, "promotion not found", nil)
	}
	return promo, nil
}

func (r *promotionRepo) FindByActionID(ctx context.Context, actionID string) (domain.Promotion, domain.PromotionAction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, promo := range r.promotions {
		for _, action := range promo.Actions {
			if action.ID == actionID {
				return promo, action, nil
			}
		}
	}
	return domain.Promotion{}, domain.PromotionAction{}, repositories.NewError("memory.promotions.find_by_action", repositories.ErrorNotFound, "promotion action not found", nil)
}

type rmaRepo Registry

func (r *rmaRepo) Insert(ctx context.Context, rma domain.ReturnAuthorization) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rmas[rma.ID]; ok {
		return repositories.NewError("memory.rmas.insert", repositories.ErrorConflict, "return authorization already exists", nil)
	}
	r.rmas[rma.ID] = rma
	return nil
}

func (r *rmaRepo) Update(ctx context.Context, rma domain.ReturnAuthorization) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rmas[rma.ID]; !ok {
		return repositories.NewError("memory.rmas.update", repositories.ErrorNotFound, "return authorization not found", nil)
	}
	r.rmas[rma.ID] = rma
	return nil
}

func (r *rmaRepo) FindByID(ctx context.Context, rmaID string) (domain.ReturnAuthorization, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rma, ok := r.rmas[rmaID]
	if !ok {
		return domain.ReturnAuthorization{}, repositories.NewError("memory.rmas.find", repositories.ErrorNotFound, "return authorization not found", nil)
	}
	return rma, nil
}

func (r *rmaRepo) ListByOrder(ctx context.Context, orderID string) ([]domain.ReturnAuthorization, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var rmas []domain.ReturnAuthorization
	for _, rma := range r.rmas {
		if rma.OrderID == orderID {
			rmas = append(rmas, rma)
		}
	}
	sort.Slice(rmas, func(i, j int) bool { return rmas[i].CreatedAt.Before(rmas[j].CreatedAt) })
	return rmas, nil
}

func cloneOrder(order domain.Order) domain.Order {
	out := order
	if order.BillAddress != nil {
		addr := *order.BillAddress
		out.BillAddress = &addr
	}
	if order.ShipAddress != nil {
		addr := *order.ShipAddress
		out.ShipAddress = &addr
	}
	if order.CompletedAt != nil {
		t := *order.CompletedAt
		out.CompletedAt = &t
	}
	if order.CanceledAt != nil {
		t := *order.CanceledAt
		out.CanceledAt = &t
	}
	out.LineItems = make([]domain.LineItem, len(order.LineItems))
	for i, li := range order.LineItems {
		out.LineItems[i] = li
		out.LineItems[i].Adjustments = append([]domain.Adjustment(nil), li.Adjustments...)
	}
	out.Shipments = make([]domain.Shipment, len(order.Shipments))
	for i, shipment := range order.Shipments {
		out.Shipments[i] = shipment
		out.Shipments[i].InventoryUnits = append([]domain.InventoryUnit(nil), shipment.InventoryUnits...)
		out.Shipments[i].ShippingRates = append([]domain.ShippingRate(nil), shipment.ShippingRates...)
		out.Shipments[i].Adjustments = append([]domain.Adjustment(nil), shipment.Adjustments...)
	}
	out.Payments = append([]domain.Payment(nil), order.Payments...)
	out.Adjustments = append([]domain.Adjustment(nil), order.Adjustments...)
	return out
}
