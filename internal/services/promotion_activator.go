package services

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/atelier-goods/api/internal/domain"
	"github.com/atelier-goods/api/internal/repositories"
)

// ErrPromotionOrderRequired signals Activate was called without an order.
var ErrPromotionOrderRequired = errors.New("promotion activator: order is required")

// PromotionActivatorDeps bundles the collaborators required to construct an
// activator.
type PromotionActivatorDeps struct {
	Promotions  repositories.PromotionRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type promotionActivator struct {
	promotions repositories.PromotionRepository
	clock      func() time.Time
	newID      func() string
	logger     func(context.Context, string, map[string]any)
}

// NewPromotionActivator wires dependencies into a concrete PromotionActivator.
func NewPromotionActivator(deps PromotionActivatorDeps) (PromotionActivator, error) {
	if deps.Promotions == nil {
		return nil, errors.New("promotion activator: promotion repository is required")
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
	return &promotionActivator{
		promotions: deps.Promotions,
		clock:      func() time.Time { return clock().UTC() },
		newID:      newID,
		logger:     logger,
	}, nil
}

// Activate selects auto-apply promotions and creates adjustments for the
// eligible ones. Creating an adjustment does not guarantee a discount: the
// adjustment engine re-evaluates eligibility and picks the best one on every
// totals update. Repeated activation never duplicates an adjustment for the
// same (action, adjustable) pair.
func (a *promotionActivator) Activate(ctx context.Context, order *Order, lineItemID string) error {
	if order == nil {
		return ErrPromotionOrderRequired
	}

	promotions, err := a.promotions.ListActive(ctx)
	if err != nil {
		return err
	}

	now := a.clock()
	var lineItem *LineItem
	if lineItemID != "" {
		for i := range order.LineItems {
			if order.LineItems[i].ID == lineItemID {
				lineItem = &order.LineItems[i]
				break
			}
		}
	}

	for _, promo := range promotions {
		if !promo.AutoApplicable() || !promo.Live(now) {
			continue
		}
		eligible := promotionEligibleForOrder(promo, order)
		if !eligible && lineItem != nil {
			eligible = promotionEligibleForLineItem(promo, order, *lineItem)
		}
		if !eligible {
			continue
		}
		for _, action := range promo.Actions {
			a.perform(order, promo, action, now)
		}
	}
	return nil
}

func (a *promotionActivator) perform(order *Order, promo Promotion, action PromotionAction, now time.Time) {
	label := action.Label
	if label == "" {
		label = promo.Name
	}

	switch action.Kind {
	case domain.ActionCreateAdjustment:
		if hasAdjustmentFrom(order.Adjustments, action.ID) {
			return
		}
		amount := clampDiscount(action.Calculator.ComputeOrder(*order), order.ItemTotal)
		if amount == 0 {
			return
		}
		order.Adjustments = append(order.Adjustments, a.newAdjustment(order.ID, domain.AdjustableOrder, order.ID, action.ID, amount, label, now))

	case domain.ActionCreateItemAdjustments:
		for i := range order.LineItems {
			li := &order.LineItems[i]
			if hasAdjustmentFrom(li.Adjustments, action.ID) {
				continue
			}
			amount := clampDiscount(action.Calculator.ComputeLineItem(*li), li.Amount())
			if amount == 0 {
				continue
			}
			li.Adjustments = append(li.Adjustments, a.newAdjustment(order.ID, domain.AdjustableLineItem, li.ID, action.ID, amount, label, now))
		}

	case domain.ActionFreeShipping:
		for i := range order.Shipments {
			shipment := &order.Shipments[i]
			if hasAdjustmentFrom(shipment.Adjustments, action.ID) {
				continue
			}
			if shipment.Cost == 0 {
				continue
			}
			shipment.Adjustments = append(shipment.Adjustments, a.newAdjustment(order.ID, domain.AdjustableShipment, shipment.ID, action.ID, -shipment.Cost, label, now))
		}
	}
}

func (a *promotionActivator) newAdjustment(orderID string, adjustableType domain.AdjustableType, adjustableID, actionID string, amount int64, label string, now time.Time) Adjustment {
	return Adjustment{
		ID:             a.newID(),
		OrderID:        orderID,
		AdjustableType: adjustableType,
		AdjustableID:   adjustableID,
		SourceType:     domain.SourcePromotionAction,
		SourceID:       actionID,
		Amount:         amount,
		Label:          label,
		Eligible:       true,
		State:          domain.AdjustmentOpen,
		CreatedAt:      now,
	}
}

func hasAdjustmentFrom(adjustments []Adjustment, actionID string) bool {
	for _, adj := range adjustments {
		if adj.SourceType == domain.SourcePromotionAction && adj.SourceID == actionID {
			return true
		}
	}
	return false
}

// clampDiscount caps a discount at the adjustable's own amount and returns
// it as a negative delta.
func clampDiscount(computed, base int64) int64 {
	if computed <= 0 {
		return 0
	}
	if computed > base {
		computed = base
	}
	return -computed
}
