package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/atelier-goods/api/internal/domain"
	"github.com/atelier-goods/api/internal/platform/orderlock"
	"github.com/atelier-goods/api/internal/repositories"
)

var (
	// ErrReturnInvalidInput signals a malformed command.
	ErrReturnInvalidInput = errors.New("return service: invalid input")
	// ErrReturnNotFound signals the return authorization does not exist.
	ErrReturnNotFound = errors.New("return service: return authorization not found")
	// ErrReturnOrderNotFound signals the owning order does not exist.
	ErrReturnOrderNotFound = errors.New("return service: order not found")
	// ErrReturnNotAuthorized blocks mutation of received or canceled RMAs.
	ErrReturnNotAuthorized = errors.New("return service: return authorization is not in the authorized state")
	// ErrReturnNoShippedUnits signals the order has nothing to return.
	ErrReturnNoShippedUnits = errors.New("return service: order has no shipped units")
)

// ReturnServiceDeps bundles the collaborators required to construct the service.
type ReturnServiceDeps struct {
	Orders     repositories.OrderRepository
	Returns    repositories.ReturnAuthorizationRepository
	Variants   repositories.VariantRepository
	StockItems repositories.StockItemRepository
	Ledger     InventoryLedger
	Engine     AdjustmentEngine
	Locks      orderlock.Locker
	Settings   StoreSettings

	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type returnService struct {
	orders     repositories.OrderRepository
	returns    repositories.ReturnAuthorizationRepository
	variants   repositories.VariantRepository
	stockItems repositories.StockItemRepository
	ledger     InventoryLedger
	engine     AdjustmentEngine
	locks      orderlock.Locker
	settings   StoreSettings

	clock  func() time.Time
	newID  func() string
	logger func(context.Context, string, map[string]any)
}

// NewReturnService wires dependencies into a concrete ReturnService.
func NewReturnService(deps ReturnServiceDeps) (ReturnService, error) {
	if deps.Orders == nil {
		return nil, errors.New("return service: order repository is required")
	}
	if deps.Returns == nil {
		return nil, errors.New("return service: return authorization repository is required")
	}
	if deps.Variants == nil {
		return nil, errors.New("return service: variant repository is required")
	}
	if deps.StockItems == nil {
		return nil, errors.New("return service: stock item repository is required")
	}
	if deps.Ledger == nil {
		return nil, errors.New("return service: inventory ledger is required")
	}
	if deps.Engine == nil {
		return nil, errors.New("return service: adjustment engine is required")
	}
	if deps.Locks == nil {
		return nil, errors.New("return service: order locker is required")
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
	return &returnService{
		orders:     deps.Orders,
		returns:    deps.Returns,
		variants:   deps.Variants,
		stockItems: deps.StockItems,
		ledger:     deps.Ledger,
		engine:     deps.Engine,
		locks:      deps.Locks,
		settings:   deps.Settings,
		clock:      func() time.Time { return clock().UTC() },
		newID:      newID,
		logger:     logger,
	}, nil
}

// CreateReturnAuthorization opens an RMA against an order with shipped
// units. The credit amount is forced positive regardless of input sign.
func (s *returnService) CreateReturnAuthorization(ctx context.Context, cmd CreateReturnAuthorizationCommand) (ReturnAuthorization, error) {
	if cmd.OrderID == "" {
		return ReturnAuthorization{}, fmt.Errorf("%w: order id is required", ErrReturnInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, cmd.OrderID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return ReturnAuthorization{}, fmt.Errorf("%w: %s", ErrReturnOrderNotFound, cmd.OrderID)
		}
		return ReturnAuthorization{}, fmt.Errorf("return service: load order: %w", err)
	}
	if countUnits(order, domain.UnitShipped) == 0 {
		return ReturnAuthorization{}, fmt.Errorf("%w: %s", ErrReturnNoShippedUnits, cmd.OrderID)
	}

	amount := cmd.Amount
	if amount < 0 {
		amount = -amount
	}

	rma := ReturnAuthorization{
		ID:              s.newID(),
		Number:          generateNumber("RMA"),
		OrderID:         order.ID,
		StockLocationID: cmd.StockLocationID,
		Amount:          amount,
		Reason:          cmd.Reason,
		State:           domain.RMAAuthorized,
		CreatedAt:       s.clock(),
	}
	if err := s.returns.Insert(ctx, rma); err != nil {
		return ReturnAuthorization{}, fmt.Errorf("return service: insert rma: %w", err)
	}
	s.logger(ctx, "return.authorized", map[string]any{
		"rmaId":   rma.ID,
		"number":  rma.Number,
		"orderId": order.ID,
	})
	return rma, nil
}

// AddVariant sets the RMA's claim on a variant to exactly quantity shipped
// units: it claims unclaimed units to grow and releases its own claims to
// shrink. The first claim moves the order to awaiting_return.
func (s *returnService) AddVariant(ctx context.Context, cmd AddReturnVariantCommand) (ReturnAuthorization, error) {
	if cmd.VariantID == "" || cmd.Quantity < 0 {
		return ReturnAuthorization{}, fmt.Errorf("%w: variant id and non-negative quantity are required", ErrReturnInvalidInput)
	}
	rma, err := s.findRMA(ctx, cmd.ReturnAuthorizationID)
	if err != nil {
		return ReturnAuthorization{}, err
	}
	if rma.State != domain.RMAAuthorized {
		return ReturnAuthorization{}, fmt.Errorf("%w: %s", ErrReturnNotAuthorized, rma.State)
	}

	release, err := s.locks.Acquire(ctx, rma.OrderID)
	if err != nil {
		return ReturnAuthorization{}, fmt.Errorf("return service: lock order: %w", err)
	}
	defer release()

	order, err := s.orders.FindByID(ctx, rma.OrderID)
	if err != nil {
		return ReturnAuthorization{}, fmt.Errorf("return service: load order: %w", err)
	}

	claimed := 0
	var mine, free []*domain.InventoryUnit
	for i := range order.Shipments {
		for j := range order.Shipments[i].InventoryUnits {
			unit := &order.Shipments[i].InventoryUnits[j]
			if unit.VariantID != cmd.VariantID || unit.State != domain.UnitShipped {
				continue
			}
			switch unit.ReturnAuthorizationID {
			case rma.ID:
				claimed++
				mine = append(mine, unit)
			case "":
				free = append(free, unit)
			}
		}
	}

	switch {
	case cmd.Quantity > claimed:
		need := cmd.Quantity - claimed
		if need > len(free) {
			return ReturnAuthorization{}, fmt.Errorf("%w: only %d shipped units of variant %s are available",
				ErrReturnInvalidInput, claimed+len(free), cmd.VariantID)
		}
		for _, unit := range free[:need] {
			unit.ReturnAuthorizationID = rma.ID
		}
	case cmd.Quantity < claimed:
		for _, unit := range mine[:claimed-cmd.Quantity] {
			unit.ReturnAuthorizationID = ""
		}
	}

	if hasClaims(order, rma.ID) && order.State != domain.OrderStateAwaitingReturn {
		order.State = domain.OrderStateAwaitingReturn
	}

	order.UpdatedAt = s.clock()
	if err := s.orders.Update(ctx, order); err != nil {
		return ReturnAuthorization{}, fmt.Errorf("return service: persist order: %w", err)
	}
	return rma, nil
}

// Receive marks the RMA's claimed units returned, restocks them, and
// credits the order with a single negative adjustment. When every shipped
// unit of the order has come back the order itself becomes returned.
func (s *returnService) Receive(ctx context.Context, rmaID string) (ReturnAuthorization, error) {
	rma, err := s.findRMA(ctx, rmaID)
	if err != nil {
		return ReturnAuthorization{}, err
	}
	if rma.State != domain.RMAAuthorized {
		return ReturnAuthorization{}, fmt.Errorf("%w: %s", ErrReturnNotAuthorized, rma.State)
	}

	release, err := s.locks.Acquire(ctx, rma.OrderID)
	if err != nil {
		return ReturnAuthorization{}, fmt.Errorf("return service: lock order: %w", err)
	}
	defer release()

	order, err := s.orders.FindByID(ctx, rma.OrderID)
	if err != nil {
		return ReturnAuthorization{}, fmt.Errorf("return service: load order: %w", err)
	}

	restock := make(map[string]int)
	received := 0
	for i := range order.Shipments {
		for j := range order.Shipments[i].InventoryUnits {
			unit := &order.Shipments[i].InventoryUnits[j]
			if unit.ReturnAuthorizationID != rma.ID || unit.State != domain.UnitShipped {
				continue
			}
			unit.State = domain.UnitReturned
			restock[unit.VariantID]++
			received++
		}
	}
	if received == 0 {
		return ReturnAuthorization{}, fmt.Errorf("%w: no units claimed by %s", ErrReturnInvalidInput, rma.Number)
	}

	if s.settings.TrackInventoryLevels {
		for variantID, count := range restock {
			if err := s.restockVariant(ctx, variantID, rma.StockLocationID, count); err != nil {
				return ReturnAuthorization{}, err
			}
		}
	}

	if rma.Amount > 0 {
		order.Adjustments = append(order.Adjustments, Adjustment{
			ID:             s.newID(),
			OrderID:        order.ID,
			AdjustableType: domain.AdjustableOrder,
			AdjustableID:   order.ID,
			SourceType:     domain.SourceReturnAuthorization,
			SourceID:       rma.ID,
			Amount:         -rma.Amount,
			Label:          "Return #" + rma.Number,
			Eligible:       true,
			State:          domain.AdjustmentClosed,
			CreatedAt:      s.clock(),
		})
	}

	if err := s.engine.UpdateOrder(ctx, &order); err != nil {
		return ReturnAuthorization{}, fmt.Errorf("return service: update totals: %w", err)
	}

	if allUnitsReturned(order) {
		order.State = domain.OrderStateReturned
	}
	order.UpdatedAt = s.clock()
	if err := s.orders.Update(ctx, order); err != nil {
		return ReturnAuthorization{}, fmt.Errorf("return service: persist order: %w", err)
	}

	now := s.clock()
	rma.State = domain.RMAReceived
	rma.ReceivedAt = &now
	if err := s.returns.Update(ctx, rma); err != nil {
		return ReturnAuthorization{}, fmt.Errorf("return service: persist rma: %w", err)
	}
	s.logger(ctx, "return.received", map[string]any{
		"rmaId":   rma.ID,
		"orderId": order.ID,
		"units":   received,
		"credit":  rma.Amount,
	})
	return rma, nil
}

// CancelReturn withdraws an authorized RMA, releasing its unit claims.
func (s *returnService) CancelReturn(ctx context.Context, rmaID string) (ReturnAuthorization, error) {
	rma, err := s.findRMA(ctx, rmaID)
	if err != nil {
		return ReturnAuthorization{}, err
	}
	if rma.State != domain.RMAAuthorized {
		return ReturnAuthorization{}, fmt.Errorf("%w: %s", ErrReturnNotAuthorized, rma.State)
	}

	release, err := s.locks.Acquire(ctx, rma.OrderID)
	if err != nil {
		return ReturnAuthorization{}, fmt.Errorf("return service: lock order: %w", err)
	}
	defer release()

	order, err := s.orders.FindByID(ctx, rma.OrderID)
	if err != nil {
		return ReturnAuthorization{}, fmt.Errorf("return service: load order: %w", err)
	}

	for i := range order.Shipments {
		for j := range order.Shipments[i].InventoryUnits {
			unit := &order.Shipments[i].InventoryUnits[j]
			if unit.ReturnAuthorizationID == rma.ID && unit.State == domain.UnitShipped {
				unit.ReturnAuthorizationID = ""
			}
		}
	}

	if order.State == domain.OrderStateAwaitingReturn && !hasAnyClaims(order) {
		order.State = domain.OrderStateComplete
	}
	order.UpdatedAt = s.clock()
	if err := s.orders.Update(ctx, order); err != nil {
		return ReturnAuthorization{}, fmt.Errorf("return service: persist order: %w", err)
	}

	rma.State = domain.RMACanceled
	if err := s.returns.Update(ctx, rma); err != nil {
		return ReturnAuthorization{}, fmt.Errorf("return service: persist rma: %w", err)
	}
	s.logger(ctx, "return.canceled", map[string]any{"rmaId": rma.ID})
	return rma, nil
}

func (s *returnService) findRMA(ctx context.Context, rmaID string) (ReturnAuthorization, error) {
	if rmaID == "" {
		return ReturnAuthorization{}, fmt.Errorf("%w: return authorization id is required", ErrReturnInvalidInput)
	}
	rma, err := s.returns.FindByID(ctx, rmaID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return ReturnAuthorization{}, fmt.Errorf("%w: %s", ErrReturnNotFound, rmaID)
		}
		return ReturnAuthorization{}, fmt.Errorf("return service: load rma: %w", err)
	}
	return rma, nil
}

func (s *returnService) restockVariant(ctx context.Context, variantID, stockLocationID string, count int) error {
	variant, err := s.variants.FindByID(ctx, variantID)
	if err != nil {
		return fmt.Errorf("return service: load variant %s: %w", variantID, err)
	}
	if !variant.TrackInventory {
		return nil
	}
	item, err := s.stockItems.FindForVariant(ctx, variantID, stockLocationID)
	if err != nil {
		if repositories.IsNotFound(err) {
			s.logger(ctx, "return.stock_item_missing", map[string]any{
				"variantId": variantID,
				"location":  stockLocationID,
			})
			return nil
		}
		return fmt.Errorf("return service: load stock item: %w", err)
	}
	if _, err := s.ledger.Adjust(ctx, item.ID, count); err != nil {
		return fmt.Errorf("return service: restock %s: %w", variantID, err)
	}
	return nil
}

func countUnits(order Order, state domain.InventoryUnitState) int {
	count := 0
	for _, shipment := range order.Shipments {
		for _, unit := range shipment.InventoryUnits {
			if unit.State == state {
				count++
			}
		}
	}
	return count
}

func hasClaims(order Order, rmaID string) bool {
	for _, shipment := range order.Shipments {
		for _, unit := range shipment.InventoryUnits {
			if unit.ReturnAuthorizationID == rmaID && unit.State == domain.UnitShipped {
				return true
			}
		}
	}
	return false
}

func hasAnyClaims(order Order) bool {
	for _, shipment := range order.Shipments {
		for _, unit := range shipment.InventoryUnits {
			if unit.ReturnAuthorizationID != "" && unit.State == domain.UnitShipped {
				return true
			}
		}
	}
	return false
}

func allUnitsReturned(order Order) bool {
	total := 0
	for _, shipment := range order.Shipments {
		for _, unit := range shipment.InventoryUnits {
			total++
			if unit.State != domain.UnitReturned {
				return false
			}
		}
	}
	return total > 0
}
