package services

import (
	"context"

	domain "github.com/atelier-goods/api/internal/domain"
	"github.com/atelier-goods/api/internal/notifications"
	"github.com/atelier-goods/api/internal/payments"
	"github.com/atelier-goods/api/internal/repositories"
)

func notFoundErr(op string) error {
	return repositories.NewError(op, repositories.ErrorNotFound, "", nil)
}

func conflictErr(op string) error {
	return repositories.NewError(op, repositories.ErrorConflict, "", nil)
}

type stubStockItemRepo struct {
	findByIDFn       func(ctx context.Context, stockItemID string) (domain.StockItem, error)
	findForVariantFn func(ctx context.Context, variantID, stockLocationID string) (domain.StockItem, error)
	listByVariantFn  func(ctx context.Context, variantID string) ([]domain.StockItem, error)
	updateFn         func(ctx context.Context, item domain.StockItem, expectedVersion int64) (domain.StockItem, error)
}

func (s *stubStockItemRepo) FindByID(ctx context.Context, stockItemID string) (domain.StockItem, error) {
	return s.findByIDFn(ctx, stockItemID)
}

func (s *stubStockItemRepo) FindForVariant(ctx context.Context, variantID, stockLocationID string) (domain.StockItem, error) {
	return s.findForVariantFn(ctx, variantID, stockLocationID)
}

func (s *stubStockItemRepo) ListByVariant(ctx context.Context, variantID string) ([]domain.StockItem, error) {
	return s.listByVariantFn(ctx, variantID)
}

func (s *stubStockItemRepo) Update(ctx context.Context, item domain.StockItem, expectedVersion int64) (domain.StockItem, error) {
	return s.updateFn(ctx, item, expectedVersion)
}

type stubUnitRepo struct {
	listBackorderedFn func(ctx context.Context, variantID, stockLocationID string) ([]domain.InventoryUnit, error)
	updateStateFn     func(ctx context.Context, unitID string, state domain.InventoryUnitState) error
}

func (s *stubUnitRepo) ListBackordered(ctx context.Context, variantID, stockLocationID string) ([]domain.InventoryUnit, error) {
	return s.listBackorderedFn(ctx, variantID, stockLocationID)
}

func (s *stubUnitRepo) UpdateState(ctx context.Context, unitID string, state domain.InventoryUnitState) error {
	return s.updateStateFn(ctx, unitID, state)
}

type stubOrderRepo struct {
	insertFn       func(ctx context.Context, order domain.Order) error
	updateFn       func(ctx context.Context, order domain.Order) error
	findByIDFn     func(ctx context.Context, orderID string) (domain.Order, error)
	findByNumberFn func(ctx context.Context, number string) (domain.Order, error)
}

func (s *stubOrderRepo) Insert(ctx context.Context, order domain.Order) error {
	return s.insertFn(ctx, order)
}

func (s *stubOrderRepo) Update(ctx context.Context, order domain.Order) error {
	return s.updateFn(ctx, order)
}

func (s *stubOrderRepo) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	return s.findByIDFn(ctx, orderID)
}

func (s *stubOrderRepo) FindByNumber(ctx context.Context, number string) (domain.Order, error) {
	return s.findByNumberFn(ctx, number)
}

type stubVariantRepo struct {
	findByIDFn func(ctx context.Context, variantID string) (domain.Variant, error)
}

func (s *stubVariantRepo) FindByID(ctx context.Context, variantID string) (domain.Variant, error) {
	return s.findByIDFn(ctx, variantID)
}

type stubLocationRepo struct {
	listActiveFn func(ctx context.Context) ([]domain.StockLocation, error)
}

func (s *stubLocationRepo) ListActive(ctx context.Context) ([]domain.StockLocation, error) {
	return s.listActiveFn(ctx)
}

type stubMethodRepo struct {
	listAllFn func(ctx context.Context) ([]domain.ShippingMethod, error)
}

func (s *stubMethodRepo) ListAll(ctx context.Context) ([]domain.ShippingMethod, error) {
	return s.listAllFn(ctx)
}

type stubZoneRepo struct {
	findByIDFn func(ctx context.Context, zoneID string) (domain.Zone, error)
	listAllFn  func(ctx context.Context) ([]domain.Zone, error)
}

func (s *stubZoneRepo) FindByID(ctx context.Context, zoneID string) (domain.Zone, error) {
	return s.findByIDFn(ctx, zoneID)
}

func (s *stubZoneRepo) ListAll(ctx context.Context) ([]domain.Zone, error) {
	return s.listAllFn(ctx)
}

type stubTaxRateRepo struct {
	listAllFn func(ctx context.Context) ([]domain.TaxRate, error)
}

func (s *stubTaxRateRepo) ListAll(ctx context.Context) ([]domain.TaxRate, error) {
	return s.listAllFn(ctx)
}

type stubPromotionRepo struct {
	listActiveFn     func(ctx context.Context) ([]domain.Promotion, error)
	findByIDFn       func(ctx context.Context, promotionID string) (domain.Promotion, error)
	findByActionIDFn func(ctx context.Context, actionID string) (domain.Promotion, domain.PromotionAction, error)
}

func (s *stubPromotionRepo) ListActive(ctx context.Context) ([]domain.Promotion, error) {
	return s.listActiveFn(ctx)
}

func (s *stubPromotionRepo) FindByID(ctx context.Context, promotionID string) (domain.Promotion, error) {
	return s.findByIDFn(ctx, promotionID)
}

func (s *stubPromotionRepo) FindByActionID(ctx context.Context, actionID string) (domain.Promotion, domain.PromotionAction, error) {
	return s.findByActionIDFn(ctx, actionID)
}

type stubReturnRepo struct {
	insertFn      func(ctx context.Context, rma domain.ReturnAuthorization) error
	updateFn      func(ctx context.Context, rma domain.ReturnAuthorization) error
	findByIDFn    func(ctx context.Context, rmaID string) (domain.ReturnAuthorization, error)
	listByOrderFn func(ctx context.Context, orderID string) ([]domain.ReturnAuthorization, error)
}

func (s *stubReturnRepo) Insert(ctx context.Context, rma domain.ReturnAuthorization) error {
	return s.insertFn(ctx, rma)
}

func (s *stubReturnRepo) Update(ctx context.Context, rma domain.ReturnAuthorization) error {
	return s.updateFn(ctx, rma)
}

func (s *stubReturnRepo) FindByID(ctx context.Context, rmaID string) (domain.ReturnAuthorization, error) {
	return s.findByIDFn(ctx, rmaID)
}

func (s *stubReturnRepo) ListByOrder(ctx context.Context, orderID string) ([]domain.ReturnAuthorization, error) {
	return s.listByOrderFn(ctx, orderID)
}

// Collaborator stubs for the order and return service tests. Unset function
// fields behave as successful no-ops so each test only wires what it asserts.

type stubPacker struct {
	packFn func(ctx context.Context, order Order) (PackResult, error)
}

func (s *stubPacker) Pack(ctx context.Context, order Order) (PackResult, error) {
	if s.packFn == nil {
		return PackResult{}, nil
	}
	return s.packFn(ctx, order)
}

type stubEstimator struct {
	estimateFn func(ctx context.Context, cmd EstimateCommand) ([]ShippingRate, error)
}

func (s *stubEstimator) Estimate(ctx context.Context, cmd EstimateCommand) ([]ShippingRate, error) {
	if s.estimateFn == nil {
		return nil, nil
	}
	return s.estimateFn(ctx, cmd)
}

type stubEngine struct {
	applyTaxesFn       func(ctx context.Context, order *Order) error
	updateOrderFn      func(ctx context.Context, order *Order) error
	updateAdjustableFn func(ctx context.Context, order *Order, adjustableType domain.AdjustableType, adjustableID string) error
}

func (s *stubEngine) ApplyTaxes(ctx context.Context, order *Order) error {
	if s.applyTaxesFn == nil {
		return nil
	}
	return s.applyTaxesFn(ctx, order)
}

func (s *stubEngine) UpdateOrder(ctx context.Context, order *Order) error {
	if s.updateOrderFn == nil {
		return nil
	}
	return s.updateOrderFn(ctx, order)
}

func (s *stubEngine) UpdateAdjustable(ctx context.Context, order *Order, adjustableType domain.AdjustableType, adjustableID string) error {
	if s.updateAdjustableFn == nil {
		return nil
	}
	return s.updateAdjustableFn(ctx, order, adjustableType, adjustableID)
}

type stubActivator struct {
	activateFn func(ctx context.Context, order *Order, lineItemID string) error
}

func (s *stubActivator) Activate(ctx context.Context, order *Order, lineItemID string) error {
	if s.activateFn == nil {
		return nil
	}
	return s.activateFn(ctx, order, lineItemID)
}

type stubLedger struct {
	adjustFn       func(ctx context.Context, stockItemID string, delta int) (StockItem, error)
	setFn          func(ctx context.Context, stockItemID string, value int) (StockItem, error)
	reduceToZeroFn func(ctx context.Context, stockItemID string) (StockItem, error)
}

func (s *stubLedger) Adjust(ctx context.Context, stockItemID string, delta int) (StockItem, error) {
	if s.adjustFn == nil {
		return StockItem{}, nil
	}
	return s.adjustFn(ctx, stockItemID, delta)
}

func (s *stubLedger) Set(ctx context.Context, stockItemID string, value int) (StockItem, error) {
	if s.setFn == nil {
		return StockItem{}, nil
	}
	return s.setFn(ctx, stockItemID, value)
}

func (s *stubLedger) ReduceToZero(ctx context.Context, stockItemID string) (StockItem, error) {
	if s.reduceToZeroFn == nil {
		return StockItem{}, nil
	}
	return s.reduceToZeroFn(ctx, stockItemID)
}

type stubGateway struct {
	purchaseFn func(ctx context.Context, req payments.PurchaseRequest) (payments.PaymentDetails, error)
}

func (s *stubGateway) Purchase(ctx context.Context, req payments.PurchaseRequest) (payments.PaymentDetails, error) {
	if s.purchaseFn == nil {
		return payments.PaymentDetails{Status: payments.StatusSucceeded, IntentID: "pi_test"}, nil
	}
	return s.purchaseFn(ctx, req)
}

type stubNotifier struct {
	orderConfirmationFn func(ctx context.Context, msg notifications.OrderConfirmation) error
	shipmentNoticeFn    func(ctx context.Context, msg notifications.ShipmentNotice) error
}

func (s *stubNotifier) OrderConfirmation(ctx context.Context, msg notifications.OrderConfirmation) error {
	if s.orderConfirmationFn == nil {
		return nil
	}
	return s.orderConfirmationFn(ctx, msg)
}

func (s *stubNotifier) ShipmentNotice(ctx context.Context, msg notifications.ShipmentNotice) error {
	if s.shipmentNoticeFn == nil {
		return nil
	}
	return s.shipmentNoticeFn(ctx, msg)
}

type stubRisk struct {
	assessFn func(ctx context.Context, order Order) (bool, string, error)
}

func (s *stubRisk) Assess(ctx context.Context, order Order) (bool, string, error) {
	if s.assessFn == nil {
		return false, "", nil
	}
	return s.assessFn(ctx, order)
}
