package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/atelier-goods/api/internal/domain"
	"github.com/atelier-goods/api/internal/repositories"
)

var (
	// ErrAdjustmentOrderRequired signals the engine was called without an order.
	ErrAdjustmentOrderRequired = errors.New("adjustment engine: order is required")
	// ErrAdjustmentUnknownAdjustable indicates the target does not belong to the order.
	ErrAdjustmentUnknownAdjustable = errors.New("adjustment engine: unknown adjustable")
)

// AdjustmentEngineDeps bundles the collaborators required to construct the engine.
type AdjustmentEngineDeps struct {
	Promotions  repositories.PromotionRepository
	TaxRates    repositories.TaxRateRepository
	Zones       repositories.ZoneRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type adjustmentEngine struct {
	promotions repositories.PromotionRepository
	taxRates   repositories.TaxRateRepository
	zones      repositories.ZoneRepository
	clock      func() time.Time
	newID      func() string
	logger     func(context.Context, string, map[string]any)
}

// NewAdjustmentEngine wires dependencies into a concrete AdjustmentEngine.
func NewAdjustmentEngine(deps AdjustmentEngineDeps) (AdjustmentEngine, error) {
	if deps.Promotions == nil {
		return nil, errors.New("adjustment engine: promotion repository is required")
	}
	if deps.TaxRates == nil {
		return nil, errors.New("adjustment engine: tax rate repository is required")
	}
	if deps.Zones == nil {
		return nil, errors.New("adjustment engine: zone repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &adjustmentEngine{
		promotions: deps.Promotions,
		taxRates:   deps.TaxRates,
		zones:      deps.Zones,
		clock:      func() time.Time { return clock().UTC() },
		newID:      newID,
		logger:     logger,
	}, nil
}

// ApplyTaxes reconciles open tax adjustments against the rates applicable to
// the order's tax address. Missing adjustments are created, stale open ones
// removed; closed adjustments are never touched. Amounts are left to
// UpdateOrder.
func (e *adjustmentEngine) ApplyTaxes(ctx context.Context, order *Order) error {
	if order == nil {
		return ErrAdjustmentOrderRequired
	}

	applicable, err := e.applicableTaxRates(ctx, order.ShipAddress)
	if err != nil {
		return err
	}
	now := e.clock()

	for i := range order.LineItems {
		li := &order.LineItems[i]
		var want []TaxRate
		for _, rate := range applicable {
			if rate.TaxCategoryID != "" && rate.TaxCategoryID == li.TaxCategoryID {
				want = append(want, rate)
			}
		}
		li.Adjustments = e.reconcileTaxAdjustments(li.Adjustments, want, order.ID, domain.AdjustableLineItem, li.ID, now)
	}

	for i := range order.Shipments {
		shipment := &order.Shipments[i]
		var want []TaxRate
		if rate, ok := shipment.SelectedRate(); ok && rate.TaxRateID != "" {
			for _, candidate := range applicable {
				if candidate.ID == rate.TaxRateID {
					want = append(want, candidate)
					break
				}
			}
		}
		shipment.Adjustments = e.reconcileTaxAdjustments(shipment.Adjustments, want, order.ID, domain.AdjustableShipment, shipment.ID, now)
	}

	return nil
}

func (e *adjustmentEngine) reconcileTaxAdjustments(adjustments []Adjustment, want []TaxRate, orderID string, adjustableType domain.AdjustableType, adjustableID string, now time.Time) []Adjustment {
	wanted := make(map[string]TaxRate, len(want))
	for _, rate := range want {
		wanted[rate.ID] = rate
	}

	kept := adjustments[:0]
	present := make(map[string]bool)
	for _, adj := range adjustments {
		if adj.SourceType == domain.SourceTaxRate && adj.Open() {
			if _, ok := wanted[adj.SourceID]; !ok {
				continue // rate no longer applies
			}
			present[adj.SourceID] = true
		}
		kept = append(kept, adj)
	}

	for _, rate := range want {
		if present[rate.ID] {
			continue
		}
		kept = append(kept, Adjustment{
			ID:             e.newID(),
			OrderID:        orderID,
			AdjustableType: adjustableType,
			AdjustableID:   adjustableID,
			SourceType:     domain.SourceTaxRate,
			SourceID:       rate.ID,
			Label:          rate.Name,
			Eligible:       true,
			Included:       rate.IncludedInPrice,
			State:          domain.AdjustmentOpen,
			CreatedAt:      now,
		})
	}
	return kept
}

func (e *adjustmentEngine) applicableTaxRates(ctx context.Context, addr *Address) ([]TaxRate, error) {
	rates, err := e.taxRates.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	zones, err := e.zones.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	zoneByID := make(map[string]Zone, len(zones))
	for _, zone := range zones {
		zoneByID[zone.ID] = zone
	}

	var applicable []TaxRate
	for _, rate := range rates {
		if zone, ok := zoneByID[rate.ZoneID]; ok && zone.Contains(addr) {
			applicable = append(applicable, rate)
		}
	}
	return applicable, nil
}

// UpdateOrder recomputes every adjustable of the order, then rolls totals up.
func (e *adjustmentEngine) UpdateOrder(ctx context.Context, order *Order) error {
	if order == nil {
		return ErrAdjustmentOrderRequired
	}

	rates, err := e.taxRateIndex(ctx)
	if err != nil {
		return err
	}

	for i := range order.LineItems {
		e.updateLineItem(ctx, order, &order.LineItems[i], rates)
	}
	for i := range order.Shipments {
		e.updateShipment(ctx, order, &order.Shipments[i], rates)
	}
	e.updateOrderLevel(ctx, order)

	rollUpTotals(order)
	return nil
}

// UpdateAdjustable recomputes a single adjustable, then refreshes totals.
func (e *adjustmentEngine) UpdateAdjustable(ctx context.Context, order *Order, adjustableType domain.AdjustableType, adjustableID string) error {
	if order == nil {
		return ErrAdjustmentOrderRequired
	}
	rates, err := e.taxRateIndex(ctx)
	if err != nil {
		return err
	}

	switch adjustableType {
	case domain.AdjustableLineItem:
		for i := range order.LineItems {
			if order.LineItems[i].ID == adjustableID {
				e.updateLineItem(ctx, order, &order.LineItems[i], rates)
				rollUpTotals(order)
				return nil
			}
		}
	case domain.AdjustableShipment:
		for i := range order.Shipments {
			if order.Shipments[i].ID == adjustableID {
				e.updateShipment(ctx, order, &order.Shipments[i], rates)
				rollUpTotals(order)
				return nil
			}
		}
	case domain.AdjustableOrder:
		if adjustableID == order.ID {
			e.updateOrderLevel(ctx, order)
			rollUpTotals(order)
			return nil
		}
	}
	return fmt.Errorf("%w: %s %s", ErrAdjustmentUnknownAdjustable, adjustableType, adjustableID)
}

func (e *adjustmentEngine) taxRateIndex(ctx context.Context) (map[string]TaxRate, error) {
	rates, err := e.taxRates.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	index := make(map[string]TaxRate, len(rates))
	for _, rate := range rates {
		index[rate.ID] = rate
	}
	return index, nil
}

// updateLineItem runs the promotion phase (recompute + best selection) and
// the tax phase for one line item, then stores its totals.
func (e *adjustmentEngine) updateLineItem(ctx context.Context, order *Order, li *LineItem, rates map[string]TaxRate) {
	for i := range li.Adjustments {
		adj := &li.Adjustments[i]
		if adj.SourceType != domain.SourcePromotionAction || !adj.Open() {
			continue
		}
		promo, action, err := e.promotions.FindByActionID(ctx, adj.SourceID)
		if err != nil {
			e.logSourceMiss(ctx, adj, err)
			adj.Eligible = false
			continue
		}
		adj.Amount = clampDiscount(action.Calculator.ComputeLineItem(*li), li.Amount())
		adj.Eligible = promotionEligibleForLineItem(promo, order, *li)
	}
	chooseBestPromotion(li.Adjustments)

	promoTotal := eligiblePromoTotal(li.Adjustments)
	e.recomputeTaxes(li.Adjustments, li.Amount()+promoTotal, rates)

	li.PromoTotal = promoTotal
	li.IncludedTaxTotal = includedTaxTotal(li.Adjustments)
	li.AdditionalTaxTotal = additionalTaxTotal(li.Adjustments)
	li.AdjustmentTotal = promoTotal + li.AdditionalTaxTotal + otherAdjustmentTotal(li.Adjustments)
}

func (e *adjustmentEngine) updateShipment(ctx context.Context, order *Order, shipment *Shipment, rates map[string]TaxRate) {
	for i := range shipment.Adjustments {
		adj := &shipment.Adjustments[i]
		if adj.SourceType != domain.SourcePromotionAction || !adj.Open() {
			continue
		}
		promo, action, err := e.promotions.FindByActionID(ctx, adj.SourceID)
		if err != nil {
			e.logSourceMiss(ctx, adj, err)
			adj.Eligible = false
			continue
		}
		switch action.Kind {
		case domain.ActionFreeShipping:
			adj.Amount = -shipment.Cost
		default:
			adj.Amount = clampDiscount(action.Calculator.ComputeOrder(*order), shipment.Cost)
		}
		adj.Eligible = promotionEligibleForOrder(promo, order)
	}
	chooseBestPromotion(shipment.Adjustments)

	promoTotal := eligiblePromoTotal(shipment.Adjustments)
	e.recomputeTaxes(shipment.Adjustments, shipment.Cost+promoTotal, rates)

	shipment.PromoTotal = promoTotal
	shipment.IncludedTaxTotal = includedTaxTotal(shipment.Adjustments)
	shipment.AdditionalTaxTotal = additionalTaxTotal(shipment.Adjustments)
	shipment.AdjustmentTotal = promoTotal + shipment.AdditionalTaxTotal + otherAdjustmentTotal(shipment.Adjustments)
}

func (e *adjustmentEngine) updateOrderLevel(ctx context.Context, order *Order) {
	for i := range order.Adjustments {
		adj := &order.Adjustments[i]
		if adj.SourceType != domain.SourcePromotionAction || !adj.Open() {
			continue
		}
		promo, action, err := e.promotions.FindByActionID(ctx, adj.SourceID)
		if err != nil {
			e.logSourceMiss(ctx, adj, err)
			adj.Eligible = false
			continue
		}
		adj.Amount = clampDiscount(action.Calculator.ComputeOrder(*order), order.ItemTotal)
		adj.Eligible = promotionEligibleForOrder(promo, order)
	}
	chooseBestPromotion(order.Adjustments)
}

// recomputeTaxes refreshes open tax-rate-sourced adjustments against the
// taxable base. Closed adjustments keep their frozen amounts.
func (e *adjustmentEngine) recomputeTaxes(adjustments []Adjustment, base int64, rates map[string]TaxRate) {
	for i := range adjustments {
		adj := &adjustments[i]
		if adj.SourceType != domain.SourceTaxRate || !adj.Open() {
			continue
		}
		rate, ok := rates[adj.SourceID]
		if !ok {
			adj.Eligible = false
			continue
		}
		adj.Amount = rate.TaxOn(base)
		adj.Included = rate.IncludedInPrice
		adj.Eligible = true
	}
}

func (e *adjustmentEngine) logSourceMiss(ctx context.Context, adj *Adjustment, err error) {
	e.logger(ctx, "adjustment.source_missing", map[string]any{
		"adjustmentId": adj.ID,
		"sourceId":     adj.SourceID,
		"error":        err.Error(),
	})
}

// chooseBestPromotion enforces the best-of-one invariant: among the
// promotion adjustments currently eligible, only the one with the largest
// discount magnitude stays eligible. Ties break deterministically by
// adjustment ID; the precedence itself carries no meaning.
func chooseBestPromotion(adjustments []Adjustment) {
	best := -1
	for i := range adjustments {
		adj := adjustments[i]
		if adj.SourceType != domain.SourcePromotionAction || !adj.Eligible {
			continue
		}
		if best == -1 {
			best = i
			continue
		}
		current := adjustments[best]
		if adj.Amount < current.Amount || (adj.Amount == current.Amount && adj.ID < current.ID) {
			best = i
		}
	}
	if best == -1 {
		return
	}
	for i := range adjustments {
		if adjustments[i].SourceType != domain.SourcePromotionAction {
			continue
		}
		adjustments[i].Eligible = i == best
	}
}

func eligiblePromoTotal(adjustments []Adjustment) int64 {
	var total int64
	for _, adj := range adjustments {
		if adj.SourceType == domain.SourcePromotionAction && adj.Eligible {
			total += adj.Amount
		}
	}
	return total
}

func includedTaxTotal(adjustments []Adjustment) int64 {
	var total int64
	for _, adj := range adjustments {
		if adj.SourceType == domain.SourceTaxRate && adj.Eligible && adj.Included {
			total += adj.Amount
		}
	}
	return total
}

func additionalTaxTotal(adjustments []Adjustment) int64 {
	var total int64
	for _, adj := range adjustments {
		if adj.SourceType == domain.SourceTaxRate && adj.Eligible && !adj.Included {
			total += adj.Amount
		}
	}
	return total
}

// otherAdjustmentTotal sums eligible adjustments that are neither promotion
// nor tax sourced: RMA credits and manual adjustments.
func otherAdjustmentTotal(adjustments []Adjustment) int64 {
	var total int64
	for _, adj := range adjustments {
		if adj.SourceType == domain.SourcePromotionAction || adj.SourceType == domain.SourceTaxRate {
			continue
		}
		if adj.Eligible {
			total += adj.Amount
		}
	}
	return total
}

// rollUpTotals recomputes the order's monetary invariant:
// total = item_total + adjustment_total + shipment_total.
func rollUpTotals(order *Order) {
	var itemTotal int64
	for _, li := range order.LineItems {
		itemTotal += li.Amount()
	}

	var shipmentTotal int64
	var adjustmentTotal int64
	var promoTotal int64
	var includedTax int64
	var additionalTax int64

	for _, li := range order.LineItems {
		adjustmentTotal += li.AdjustmentTotal
		promoTotal += li.PromoTotal
		includedTax += li.IncludedTaxTotal
		additionalTax += li.AdditionalTaxTotal
	}
	for _, shipment := range order.Shipments {
		if shipment.State == domain.ShipmentCanceled {
			continue
		}
		shipmentTotal += shipment.Cost
		adjustmentTotal += shipment.AdjustmentTotal
		promoTotal += shipment.PromoTotal
		includedTax += shipment.IncludedTaxTotal
		additionalTax += shipment.AdditionalTaxTotal
	}

	orderPromo := eligiblePromoTotal(order.Adjustments)
	promoTotal += orderPromo
	adjustmentTotal += orderPromo + additionalTaxTotal(order.Adjustments) + otherAdjustmentTotal(order.Adjustments)
	includedTax += includedTaxTotal(order.Adjustments)
	additionalTax += additionalTaxTotal(order.Adjustments)

	order.ItemTotal = itemTotal
	order.ShipmentTotal = shipmentTotal
	order.AdjustmentTotal = adjustmentTotal
	order.PromoTotal = promoTotal
	order.IncludedTaxTotal = includedTax
	order.AdditionalTaxTotal = additionalTax
	order.Total = itemTotal + adjustmentTotal + shipmentTotal
}
