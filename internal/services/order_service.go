package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	domain "github.com/atelier-goods/api/internal/domain"
	"github.com/atelier-goods/api/internal/notifications"
	"github.com/atelier-goods/api/internal/payments"
	"github.com/atelier-goods/api/internal/platform/orderlock"
	"github.com/atelier-goods/api/internal/repositories"
)

var (
	// ErrOrderInvalidInput signals a malformed command.
	ErrOrderInvalidInput = errors.New("order service: invalid input")
	// ErrOrderNotFound signals the order does not exist.
	ErrOrderNotFound = errors.New("order service: order not found")
	// ErrOrderVariantNotFound signals the requested variant does not exist.
	ErrOrderVariantNotFound = errors.New("order service: variant not found")
	// ErrOrderLineItemNotFound signals the variant is not in the order.
	ErrOrderLineItemNotFound = errors.New("order service: line item not found")
	// ErrOrderStateTransition signals a transition the state machine forbids.
	ErrOrderStateTransition = errors.New("order service: invalid state transition")
	// ErrOrderInsufficientStock signals packing could not cover the order.
	ErrOrderInsufficientStock = errors.New("order service: insufficient stock")
	// ErrOrderNoShippingRates signals no shipping method covered a shipment.
	ErrOrderNoShippingRates = errors.New("order service: no shipping rates")
	// ErrOrderPaymentFailed signals the gateway declined during completion.
	ErrOrderPaymentFailed = errors.New("order service: payment failed")
	// ErrOrderShipped blocks cancellation once a shipment has shipped.
	ErrOrderShipped = errors.New("order service: order has shipped shipments")
)

// PaymentGateway is the slice of the payments manager the order service uses.
type PaymentGateway interface {
	Purchase(ctx context.Context, req payments.PurchaseRequest) (payments.PaymentDetails, error)
}

// RiskAssessor flags completed orders for manual review. A nil assessor
// means every order passes.
type RiskAssessor interface {
	Assess(ctx context.Context, order Order) (risky bool, reason string, err error)
}

// StoreSettings carries the storefront toggles the order service honours.
type StoreSettings struct {
	Currency                 string
	TrackInventoryLevels     bool
	AlwaysIncludeConfirmStep bool
}

// OrderServiceDeps bundles the collaborators required to construct the service.
type OrderServiceDeps struct {
	Orders     repositories.OrderRepository
	Variants   repositories.VariantRepository
	StockItems repositories.StockItemRepository
	Packer     StockPacker
	Estimator  ShippingRateEstimator
	Engine     AdjustmentEngine
	Activator  PromotionActivator
	Ledger     InventoryLedger
	Gateway    PaymentGateway
	Notifier   notifications.Notifier
	Locks      orderlock.Locker
	Risk       RiskAssessor
	Settings   StoreSettings

	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders     repositories.OrderRepository
	variants   repositories.VariantRepository
	stockItems repositories.StockItemRepository
	packer     StockPacker
	estimator  ShippingRateEstimator
	engine     AdjustmentEngine
	activator  PromotionActivator
	ledger     InventoryLedger
	gateway    PaymentGateway
	notifier   notifications.Notifier
	locks      orderlock.Locker
	risk       RiskAssessor
	settings   StoreSettings

	clock  func() time.Time
	newID  func() string
	logger func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Variants == nil {
		return nil, errors.New("order service: variant repository is required")
	}
	if deps.StockItems == nil {
		return nil, errors.New("order service: stock item repository is required")
	}
	if deps.Packer == nil {
		return nil, errors.New("order service: stock packer is required")
	}
	if deps.Estimator == nil {
		return nil, errors.New("order service: shipping rate estimator is required")
	}
	if deps.Engine == nil {
		return nil, errors.New("order service: adjustment engine is required")
	}
	if deps.Activator == nil {
		return nil, errors.New("order service: promotion activator is required")
	}
	if deps.Ledger == nil {
		return nil, errors.New("order service: inventory ledger is required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("order service: payment gateway is required")
	}
	if deps.Notifier == nil {
		return nil, errors.New("order service: notifier is required")
	}
	if deps.Locks == nil {
		return nil, errors.New("order service: order locker is required")
	}
	if deps.Settings.Currency == "" {
		deps.Settings.Currency = "USD"
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
	return &orderService{
		orders:     deps.Orders,
		variants:   deps.Variants,
		stockItems: deps.StockItems,
		packer:     deps.Packer,
		estimator:  deps.Estimator,
		engine:     deps.Engine,
		activator:  deps.Activator,
		ledger:     deps.Ledger,
		gateway:    deps.Gateway,
		notifier:   deps.Notifier,
		locks:      deps.Locks,
		risk:       deps.Risk,
		settings:   deps.Settings,
		clock:      func() time.Time { return clock().UTC() },
		newID:      newID,
		logger:     logger,
	}, nil
}

// CreateOrder starts an empty cart in the store currency.
func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	currency := cmd.Currency
	if currency == "" {
		currency = s.settings.Currency
	}
	now := s.clock()
	order := Order{
		ID:         s.newID(),
		Number:     generateNumber("R"),
		GuestToken: uuid.NewString(),
		UserID:     cmd.UserID,
		Email:      cmd.Email,
		State:      domain.OrderStateCart,
		Currency:   currency,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.orders.Insert(ctx, order); err != nil {
		return Order{}, fmt.Errorf("order service: create order: %w", err)
	}
	s.logger(ctx, "order.created", map[string]any{
		"orderId": order.ID,
		"number":  order.Number,
	})
	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		return Order{}, fmt.Errorf("order service: get order: %w", err)
	}
	return order, nil
}

// withOrder serialises a mutation of one order behind its lock.
func (s *orderService) withOrder(ctx context.Context, orderID string, fn func(order *Order) error) (Order, error) {
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	release, err := s.locks.Acquire(ctx, orderID)
	if err != nil {
		return Order{}, fmt.Errorf("order service: lock order: %w", err)
	}
	defer release()

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		return Order{}, fmt.Errorf("order service: load order: %w", err)
	}

	if err := fn(&order); err != nil {
		// A gateway decline stays visible: the failed payment and its
		// message persist even though the mutation itself stopped.
		if errors.Is(err, ErrOrderPaymentFailed) {
			order.UpdatedAt = s.clock()
			if uerr := s.orders.Update(ctx, order); uerr != nil {
				return Order{}, fmt.Errorf("order service: persist order: %w", uerr)
			}
		}
		return order, err
	}

	order.UpdatedAt = s.clock()
	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, fmt.Errorf("order service: persist order: %w", err)
	}
	return order, nil
}

func (s *orderService) AddLineItem(ctx context.Context, cmd AddLineItemCommand) (Order, error) {
	if cmd.VariantID == "" || cmd.Quantity <= 0 {
		return Order{}, fmt.Errorf("%w: variant id and positive quantity are required", ErrOrderInvalidInput)
	}
	variant, err := s.variants.FindByID(ctx, cmd.VariantID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return Order{}, fmt.Errorf("%w: %s", ErrOrderVariantNotFound, cmd.VariantID)
		}
		return Order{}, fmt.Errorf("order service: load variant: %w", err)
	}

	return s.withOrder(ctx, cmd.OrderID, func(order *Order) error {
		if !contentsEditable(order.State) {
			return fmt.Errorf("%w: cannot modify contents in state %s", ErrOrderStateTransition, order.State)
		}

		lineItemID := ""
		merged := false
		for i := range order.LineItems {
			if order.LineItems[i].VariantID == variant.ID {
				order.LineItems[i].Quantity += cmd.Quantity
				lineItemID = order.LineItems[i].ID
				merged = true
				break
			}
		}
		if !merged {
			li := LineItem{
				ID:            s.newID(),
				OrderID:       order.ID,
				VariantID:     variant.ID,
				ProductID:     variant.ProductID,
				Quantity:      cmd.Quantity,
				Price:         variant.Price,
				Currency:      order.Currency,
				TaxCategoryID: variant.TaxCategoryID,
			}
			order.LineItems = append(order.LineItems, li)
			lineItemID = li.ID
		}

		return s.updateOrderContents(ctx, order, lineItemID)
	})
}

func (s *orderService) RemoveLineItem(ctx context.Context, cmd RemoveLineItemCommand) (Order, error) {
	if cmd.VariantID == "" || cmd.Quantity <= 0 {
		return Order{}, fmt.Errorf("%w: variant id and positive quantity are required", ErrOrderInvalidInput)
	}
	return s.withOrder(ctx, cmd.OrderID, func(order *Order) error {
		if !contentsEditable(order.State) {
			return fmt.Errorf("%w: cannot modify contents in state %s", ErrOrderStateTransition, order.State)
		}

		idx := -1
		for i := range order.LineItems {
			if order.LineItems[i].VariantID == cmd.VariantID {
				idx = i
				break
			}
		}
		if idx == -1 {
			return fmt.Errorf("%w: variant %s", ErrOrderLineItemNotFound, cmd.VariantID)
		}

		order.LineItems[idx].Quantity -= cmd.Quantity
		changedID := order.LineItems[idx].ID
		if order.LineItems[idx].Quantity <= 0 {
			order.LineItems = append(order.LineItems[:idx], order.LineItems[idx+1:]...)
			changedID = ""
		}

		return s.updateOrderContents(ctx, order, changedID)
	})
}

// Empty removes every line item and open order-level adjustment and zeroes
// totals, leaving addresses and state untouched.
func (s *orderService) Empty(ctx context.Context, orderID string) (Order, error) {
	return s.withOrder(ctx, orderID, func(order *Order) error {
		if !contentsEditable(order.State) {
			return fmt.Errorf("%w: cannot empty order in state %s", ErrOrderStateTransition, order.State)
		}
		order.LineItems = nil
		order.Shipments = nil

		kept := order.Adjustments[:0]
		for _, adj := range order.Adjustments {
			if !adj.Open() {
				kept = append(kept, adj)
			}
		}
		order.Adjustments = kept

		return s.recompute(ctx, order)
	})
}

func (s *orderService) SetAddresses(ctx context.Context, cmd SetAddressesCommand) (Order, error) {
	return s.withOrder(ctx, cmd.OrderID, func(order *Order) error {
		if !contentsEditable(order.State) {
			return fmt.Errorf("%w: cannot change addresses in state %s", ErrOrderStateTransition, order.State)
		}
		if cmd.Email != "" {
			order.Email = cmd.Email
		}
		if cmd.BillAddress != nil {
			order.BillAddress = cmd.BillAddress
		}
		if cmd.ShipAddress != nil {
			order.ShipAddress = cmd.ShipAddress
		}

		// Shipments estimated against the old address are stale.
		if len(order.Shipments) > 0 {
			if err := s.createProposedShipments(ctx, order); err != nil {
				return err
			}
		}
		return s.recompute(ctx, order)
	})
}

func (s *orderService) SelectShippingRate(ctx context.Context, cmd SelectShippingRateCommand) (Order, error) {
	if cmd.ShipmentID == "" || cmd.ShippingRateID == "" {
		return Order{}, fmt.Errorf("%w: shipment id and shipping rate id are required", ErrOrderInvalidInput)
	}
	return s.withOrder(ctx, cmd.OrderID, func(order *Order) error {
		if !contentsEditable(order.State) {
			return fmt.Errorf("%w: cannot select rates in state %s", ErrOrderStateTransition, order.State)
		}
		for i := range order.Shipments {
			shipment := &order.Shipments[i]
			if shipment.ID != cmd.ShipmentID {
				continue
			}
			found := false
			for j := range shipment.ShippingRates {
				match := shipment.ShippingRates[j].ID == cmd.ShippingRateID
				shipment.ShippingRates[j].Selected = match
				if match {
					shipment.Cost = shipment.ShippingRates[j].Cost
					found = true
				}
			}
			if !found {
				return fmt.Errorf("%w: shipping rate %s", ErrOrderInvalidInput, cmd.ShippingRateID)
			}
			return s.recompute(ctx, order)
		}
		return fmt.Errorf("%w: shipment %s", ErrOrderInvalidInput, cmd.ShipmentID)
	})
}

func (s *orderService) AddPayment(ctx context.Context, cmd AddPaymentCommand) (Order, error) {
	return s.withOrder(ctx, cmd.OrderID, func(order *Order) error {
		if order.State == domain.OrderStateComplete || order.State == domain.OrderStateCanceled {
			return fmt.Errorf("%w: cannot add payments in state %s", ErrOrderStateTransition, order.State)
		}
		amount := cmd.Amount
		if amount <= 0 {
			amount = order.Total
		}
		now := s.clock()
		order.Payments = append(order.Payments, Payment{
			ID:        s.newID(),
			OrderID:   order.ID,
			Amount:    amount,
			State:     domain.PaymentCheckout,
			CreatedAt: now,
			UpdatedAt: now,
		})
		return nil
	})
}

func (s *orderService) ProcessPayments(ctx context.Context, orderID string) (Order, error) {
	return s.withOrder(ctx, orderID, func(order *Order) error {
		return s.processPayments(ctx, order)
	})
}

// processPayments charges checkout payments until the order is paid in
// full. A decline marks the payment failed with the gateway's message and
// stops without changing the order state.
func (s *orderService) processPayments(ctx context.Context, order *Order) error {
	for i := range order.Payments {
		if paidInFull(order) {
			return nil
		}
		payment := &order.Payments[i]
		if payment.State != domain.PaymentCheckout && payment.State != domain.PaymentPending {
			continue
		}

		details, err := s.gateway.Purchase(ctx, payments.PurchaseRequest{
			PaymentID:      payment.ID,
			OrderNumber:    order.Number,
			Amount:         payment.Amount,
			Currency:       order.Currency,
			IdempotencyKey: payment.ID,
		})
		if err != nil {
			return fmt.Errorf("order service: process payment %s: %w", payment.ID, err)
		}

		payment.UpdatedAt = s.clock()
		switch details.Status {
		case payments.StatusSucceeded:
			payment.State = domain.PaymentCompleted
			payment.GatewayRef = details.IntentID
		case payments.StatusFailed:
			payment.State = domain.PaymentFailed
			payment.ErrorMessage = details.Message
			s.logger(ctx, "order.payment_declined", map[string]any{
				"orderId":   order.ID,
				"paymentId": payment.ID,
			})
			return fmt.Errorf("%w: %s", ErrOrderPaymentFailed, details.Message)
		default:
			payment.State = domain.PaymentPending
			payment.GatewayRef = details.IntentID
		}
	}
	return nil
}

// Ship dispatches a ready shipment: its on-hand units become shipped, the
// shipment is stamped, and a shipment notice goes out. Notice delivery is
// fire-and-forget; a broker failure never blocks dispatch.
func (s *orderService) Ship(ctx context.Context, cmd ShipShipmentCommand) (Order, error) {
	if cmd.ShipmentID == "" {
		return Order{}, fmt.Errorf("%w: shipment id is required", ErrOrderInvalidInput)
	}
	return s.withOrder(ctx, cmd.OrderID, func(order *Order) error {
		for i := range order.Shipments {
			shipment := &order.Shipments[i]
			if shipment.ID != cmd.ShipmentID {
				continue
			}
			if shipment.State != domain.ShipmentReady {
				return fmt.Errorf("%w: shipment %s is %s, not ready", ErrOrderStateTransition, shipment.ID, shipment.State)
			}

			now := s.clock()
			for j := range shipment.InventoryUnits {
				if shipment.InventoryUnits[j].State == domain.UnitOnHand {
					shipment.InventoryUnits[j].State = domain.UnitShipped
				}
			}
			shipment.State = domain.ShipmentShipped
			shipment.ShippedAt = &now
			shipment.UpdatedAt = now

			if err := s.notifier.ShipmentNotice(ctx, notifications.ShipmentNotice{
				OrderID:    order.ID,
				Number:     shipment.Number,
				ShipmentID: shipment.ID,
				Email:      order.Email,
			}); err != nil {
				s.logger(ctx, "order.shipment_notice_failed", map[string]any{
					"orderId":    order.ID,
					"shipmentId": shipment.ID,
					"error":      err.Error(),
				})
			}
			s.logger(ctx, "order.shipment_shipped", map[string]any{
				"orderId":    order.ID,
				"shipmentId": shipment.ID,
				"number":     shipment.Number,
			})
			return nil
		}
		return fmt.Errorf("%w: shipment %s", ErrOrderInvalidInput, cmd.ShipmentID)
	})
}

// Next advances the order exactly one checkout step.
func (s *orderService) Next(ctx context.Context, orderID string) (Order, error) {
	return s.withOrder(ctx, orderID, func(order *Order) error {
		return s.step(ctx, order)
	})
}

// Advance runs Next until the order completes or a guard blocks further
// progress. A guard hit after at least one successful step is not an error:
// the order rests at the blocked step with the earlier steps persisted.
func (s *orderService) Advance(ctx context.Context, orderID string) (Order, error) {
	return s.withOrder(ctx, orderID, func(order *Order) error {
		progressed := false
		for order.State != domain.OrderStateComplete && order.State != domain.OrderStateRisky {
			if err := s.step(ctx, order); err != nil {
				if progressed && errors.Is(err, ErrOrderStateTransition) {
					return nil
				}
				return err
			}
			progressed = true
		}
		return nil
	})
}

func (s *orderService) step(ctx context.Context, order *Order) error {
	switch order.State {
	case domain.OrderStateCart:
		if len(order.LineItems) == 0 {
			return fmt.Errorf("%w: cart has no line items", ErrOrderStateTransition)
		}
		order.State = domain.OrderStateAddress
		return nil

	case domain.OrderStateAddress:
		if order.BillAddress.Blank() || order.ShipAddress.Blank() {
			return fmt.Errorf("%w: billing and shipping addresses are required", ErrOrderStateTransition)
		}
		if err := s.createProposedShipments(ctx, order); err != nil {
			return err
		}
		if err := s.recompute(ctx, order); err != nil {
			return err
		}
		order.State = domain.OrderStateDelivery
		return nil

	case domain.OrderStateDelivery:
		for _, shipment := range order.Shipments {
			if _, ok := shipment.SelectedRate(); !ok {
				return fmt.Errorf("%w: shipment %s has no selected rate", ErrOrderNoShippingRates, shipment.ID)
			}
		}
		if err := s.recompute(ctx, order); err != nil {
			return err
		}
		if paymentRequired(order) {
			order.State = domain.OrderStatePayment
			return nil
		}
		return s.enterConfirmOrComplete(ctx, order)

	case domain.OrderStatePayment:
		if paymentRequired(order) && !hasUsablePayment(order) {
			return fmt.Errorf("%w: a payment is required", ErrOrderStateTransition)
		}
		return s.enterConfirmOrComplete(ctx, order)

	case domain.OrderStateConfirm:
		return s.complete(ctx, order)

	default:
		return fmt.Errorf("%w: cannot advance from state %s", ErrOrderStateTransition, order.State)
	}
}

func (s *orderService) enterConfirmOrComplete(ctx context.Context, order *Order) error {
	if s.settings.AlwaysIncludeConfirmStep {
		order.State = domain.OrderStateConfirm
		return nil
	}
	return s.complete(ctx, order)
}

// complete charges outstanding payments and finalizes the order.
func (s *orderService) complete(ctx context.Context, order *Order) error {
	if paymentRequired(order) && !paidInFull(order) {
		if err := s.processPayments(ctx, order); err != nil {
			return err
		}
	}
	return s.finalize(ctx, order)
}

// finalize is the single transition into the completed family of states:
// inventory is sold, adjustments freeze, the confirmation goes out once,
// and risky orders are held for review.
func (s *orderService) finalize(ctx context.Context, order *Order) error {
	now := s.clock()
	order.CompletedAt = &now

	if err := s.sellInventory(ctx, order); err != nil {
		return err
	}

	paid := paidInFull(order)
	for i := range order.Shipments {
		if order.Shipments[i].State != domain.ShipmentPending {
			continue
		}
		if paid && order.Shipments[i].BackorderedUnits() == 0 {
			order.Shipments[i].State = domain.ShipmentReady
		}
	}

	closeAdjustments(order)

	order.State = domain.OrderStateComplete
	if s.risk != nil && !order.Approved {
		risky, reason, err := s.risk.Assess(ctx, *order)
		if err != nil {
			s.logger(ctx, "order.risk_check_failed", map[string]any{
				"orderId": order.ID,
				"error":   err.Error(),
			})
		} else if risky {
			order.State = domain.OrderStateRisky
			s.logger(ctx, "order.held_for_review", map[string]any{
				"orderId": order.ID,
				"reason":  reason,
			})
		}
	}

	if !order.ConfirmationDelivered {
		if err := s.notifier.OrderConfirmation(ctx, notifications.ConfirmationFromOrder(*order)); err != nil {
			s.logger(ctx, "order.confirmation_failed", map[string]any{
				"orderId": order.ID,
				"error":   err.Error(),
			})
		} else {
			order.ConfirmationDelivered = true
		}
	}

	s.logger(ctx, "order.completed", map[string]any{
		"orderId": order.ID,
		"number":  order.Number,
		"state":   order.State,
		"total":   order.Total,
	})
	return nil
}

// sellInventory decrements stock for every on-hand unit in the order's
// shipments, grouped per (variant, location). Untracked variants and
// stores with inventory tracking disabled are skipped.
func (s *orderService) sellInventory(ctx context.Context, order *Order) error {
	if !s.settings.TrackInventoryLevels {
		return nil
	}
	return s.moveInventory(ctx, order, -1)
}

func (s *orderService) moveInventory(ctx context.Context, order *Order, direction int) error {
	for _, shipment := range order.Shipments {
		counts := make(map[string]int)
		for _, unit := range shipment.InventoryUnits {
			if unit.State == domain.UnitOnHand {
				counts[unit.VariantID]++
			}
		}
		for variantID, count := range counts {
			variant, err := s.variants.FindByID(ctx, variantID)
			if err != nil {
				return fmt.Errorf("order service: load variant %s: %w", variantID, err)
			}
			if !variant.TrackInventory {
				continue
			}
			item, err := s.stockItems.FindForVariant(ctx, variantID, shipment.StockLocationID)
			if err != nil {
				if repositories.IsNotFound(err) {
					s.logger(ctx, "order.stock_item_missing", map[string]any{
						"orderId":   order.ID,
						"variantId": variantID,
						"location":  shipment.StockLocationID,
					})
					continue
				}
				return fmt.Errorf("order service: load stock item: %w", err)
			}
			if _, err := s.ledger.Adjust(ctx, item.ID, direction*count); err != nil {
				return fmt.Errorf("order service: adjust stock for %s: %w", variantID, err)
			}
		}
	}
	return nil
}

// Cancel withdraws a completed order, restocking on-hand units and voiding
// unprocessed payments. Shipped shipments block cancellation.
func (s *orderService) Cancel(ctx context.Context, orderID string) (Order, error) {
	return s.withOrder(ctx, orderID, func(order *Order) error {
		if order.State == domain.OrderStateCanceled {
			return fmt.Errorf("%w: order is already canceled", ErrOrderStateTransition)
		}
		for _, shipment := range order.Shipments {
			if shipment.State == domain.ShipmentShipped {
				return fmt.Errorf("%w: shipment %s", ErrOrderShipped, shipment.ID)
			}
		}

		if order.CompletedAt != nil && s.settings.TrackInventoryLevels {
			if err := s.moveInventory(ctx, order, 1); err != nil {
				return err
			}
		}

		for i := range order.Shipments {
			order.Shipments[i].State = domain.ShipmentCanceled
		}
		for i := range order.Payments {
			if order.Payments[i].State == domain.PaymentCheckout || order.Payments[i].State == domain.PaymentPending {
				order.Payments[i].State = domain.PaymentVoid
				order.Payments[i].UpdatedAt = s.clock()
			}
		}

		now := s.clock()
		order.CanceledAt = &now
		order.State = domain.OrderStateCanceled
		s.logger(ctx, "order.canceled", map[string]any{"orderId": order.ID})
		return nil
	})
}

// Resume brings a canceled order back into fulfillment, selling its
// inventory again.
func (s *orderService) Resume(ctx context.Context, orderID string) (Order, error) {
	return s.withOrder(ctx, orderID, func(order *Order) error {
		if order.State != domain.OrderStateCanceled {
			return fmt.Errorf("%w: only canceled orders can resume", ErrOrderStateTransition)
		}
		for i := range order.Shipments {
			if order.Shipments[i].State == domain.ShipmentCanceled {
				order.Shipments[i].State = domain.ShipmentPending
			}
		}
		if order.CompletedAt != nil {
			if err := s.sellInventory(ctx, order); err != nil {
				return err
			}
			paid := paidInFull(order)
			for i := range order.Shipments {
				if paid && order.Shipments[i].State == domain.ShipmentPending && order.Shipments[i].BackorderedUnits() == 0 {
					order.Shipments[i].State = domain.ShipmentReady
				}
			}
		}
		order.CanceledAt = nil
		order.State = domain.OrderStateResumed
		s.logger(ctx, "order.resumed", map[string]any{"orderId": order.ID})
		return nil
	})
}

// Approve records a manual review decision and releases a risky hold.
func (s *orderService) Approve(ctx context.Context, orderID string) (Order, error) {
	return s.withOrder(ctx, orderID, func(order *Order) error {
		order.Approved = true
		if order.State == domain.OrderStateRisky {
			order.State = domain.OrderStateComplete
		}
		s.logger(ctx, "order.approved", map[string]any{"orderId": order.ID})
		return nil
	})
}

// updateOrderContents is the content-change pipeline: repack when shipments
// exist, run promotion activation for the order and the changed line, then
// recompute adjustments and totals.
func (s *orderService) updateOrderContents(ctx context.Context, order *Order, changedLineItemID string) error {
	if len(order.Shipments) > 0 {
		if len(order.LineItems) == 0 {
			order.Shipments = nil
		} else if err := s.createProposedShipments(ctx, order); err != nil {
			return err
		}
	}

	// Item-total rules read order.ItemTotal, which still holds the
	// pre-mutation rollup at this point. Refresh it from the line items so
	// activation sees the total the mutation produced.
	var itemTotal int64
	for _, li := range order.LineItems {
		itemTotal += li.Amount()
	}
	order.ItemTotal = itemTotal

	if err := s.activator.Activate(ctx, order, ""); err != nil {
		return fmt.Errorf("order service: activate promotions: %w", err)
	}
	if changedLineItemID != "" {
		if err := s.activator.Activate(ctx, order, changedLineItemID); err != nil {
			return fmt.Errorf("order service: activate line promotions: %w", err)
		}
	}

	return s.recompute(ctx, order)
}

// recompute reconciles taxes and reruns the adjustment engine.
func (s *orderService) recompute(ctx context.Context, order *Order) error {
	if err := s.engine.ApplyTaxes(ctx, order); err != nil {
		return fmt.Errorf("order service: apply taxes: %w", err)
	}
	if err := s.engine.UpdateOrder(ctx, order); err != nil {
		return fmt.Errorf("order service: update adjustments: %w", err)
	}
	return nil
}

// createProposedShipments rebuilds shipments from a fresh packing run. A
// previously selected shipping method is preserved per location when it is
// still among the candidates.
func (s *orderService) createProposedShipments(ctx context.Context, order *Order) error {
	previousMethods := make(map[string]string)
	for _, shipment := range order.Shipments {
		if rate, ok := shipment.SelectedRate(); ok {
			previousMethods[shipment.StockLocationID] = rate.ShippingMethodID
		}
	}

	result, err := s.packer.Pack(ctx, *order)
	if err != nil {
		return fmt.Errorf("order service: pack order: %w", err)
	}
	if len(result.InsufficientStock) > 0 {
		short := result.InsufficientStock[0]
		return fmt.Errorf("%w: variant %s short by %d", ErrOrderInsufficientStock, short.VariantID, short.Missing)
	}

	now := s.clock()
	shipments := make([]Shipment, 0, len(result.Packages))
	for _, pkg := range result.Packages {
		shipment := Shipment{
			ID:              s.newID(),
			OrderID:         order.ID,
			StockLocationID: pkg.StockLocationID,
			Number:          generateNumber("H"),
			State:           domain.ShipmentPending,
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		for _, item := range pkg.Contents {
			unitState := domain.UnitOnHand
			if item.State == domain.PackageBackordered {
				unitState = domain.UnitBackordered
			}
			for n := 0; n < item.Quantity; n++ {
				shipment.InventoryUnits = append(shipment.InventoryUnits, InventoryUnit{
					ID:         s.newID(),
					OrderID:    order.ID,
					ShipmentID: shipment.ID,
					VariantID:  item.Variant.ID,
					LineItemID: item.LineItemID,
					State:      unitState,
					CreatedAt:  now,
				})
			}
		}

		rates, err := s.estimator.Estimate(ctx, EstimateCommand{
			Order:            *order,
			Package:          pkg,
			PreviousMethodID: previousMethods[pkg.StockLocationID],
		})
		if err != nil {
			return fmt.Errorf("order service: estimate rates: %w", err)
		}
		if len(rates) == 0 {
			return fmt.Errorf("%w: location %s", ErrOrderNoShippingRates, pkg.StockLocationID)
		}
		for i := range rates {
			rates[i].ShipmentID = shipment.ID
			if rates[i].Selected {
				shipment.Cost = rates[i].Cost
			}
		}
		shipment.ShippingRates = rates
		shipments = append(shipments, shipment)
	}

	order.Shipments = shipments
	return nil
}

func contentsEditable(state OrderState) bool {
	switch state {
	case domain.OrderStateCart, domain.OrderStateAddress, domain.OrderStateDelivery,
		domain.OrderStatePayment, domain.OrderStateConfirm:
		return true
	default:
		return false
	}
}

func paymentRequired(order *Order) bool {
	return order.Total > 0
}

func paidInFull(order *Order) bool {
	var paid int64
	for _, payment := range order.Payments {
		if payment.State == domain.PaymentCompleted {
			paid += payment.Amount
		}
	}
	return paid >= order.Total
}

func hasUsablePayment(order *Order) bool {
	for _, payment := range order.Payments {
		switch payment.State {
		case domain.PaymentCheckout, domain.PaymentPending, domain.PaymentCompleted:
			return true
		}
	}
	return false
}

func closeAdjustments(order *Order) {
	for i := range order.Adjustments {
		order.Adjustments[i].State = domain.AdjustmentClosed
	}
	for i := range order.LineItems {
		for j := range order.LineItems[i].Adjustments {
			order.LineItems[i].Adjustments[j].State = domain.AdjustmentClosed
		}
	}
	for i := range order.Shipments {
		for j := range order.Shipments[i].Adjustments {
			order.Shipments[i].Adjustments[j].State = domain.AdjustmentClosed
		}
	}
}
