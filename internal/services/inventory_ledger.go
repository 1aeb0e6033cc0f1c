package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/atelier-goods/api/internal/domain"
	"github.com/atelier-goods/api/internal/repositories"
)

const defaultLedgerRetries = 5

var (
	// ErrLedgerInvalidInput signals the caller provided invalid arguments.
	ErrLedgerInvalidInput = errors.New("inventory ledger: invalid input")
	// ErrLedgerStockItemNotFound indicates the stock item does not exist.
	ErrLedgerStockItemNotFound = errors.New("inventory ledger: stock item not found")
	// ErrLedgerConflict indicates concurrent writers exhausted the retry
	// budget; the caller may retry the whole mutation.
	ErrLedgerConflict = errors.New("inventory ledger: concurrent update conflict")
	// ErrLedgerStockFloor indicates the adjustment would drive a
	// non-backorderable item negative.
	ErrLedgerStockFloor = errors.New("inventory ledger: count may not go negative")
)

// InventoryLedgerDeps bundles the collaborators required to construct the ledger.
type InventoryLedgerDeps struct {
	StockItems repositories.StockItemRepository
	Units      repositories.InventoryUnitRepository
	MaxRetries int
	Clock      func() time.Time
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type inventoryLedger struct {
	stockItems repositories.StockItemRepository
	units      repositories.InventoryUnitRepository
	maxRetries int
	clock      func() time.Time
	logger     func(context.Context, string, map[string]any)
}

// NewInventoryLedger wires dependencies into a concrete InventoryLedger.
func NewInventoryLedger(deps InventoryLedgerDeps) (InventoryLedger, error) {
	if deps.StockItems == nil {
		return nil, errors.New("inventory ledger: stock item repository is required")
	}
	retries := deps.MaxRetries
	if retries <= 0 {
		retries = defaultLedgerRetries
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &inventoryLedger{
		stockItems: deps.StockItems,
		units:      deps.Units,
		maxRetries: retries,
		clock:      func() time.Time { return clock().UTC() },
		logger:     logger,
	}, nil
}

func (l *inventoryLedger) Adjust(ctx context.Context, stockItemID string, delta int) (StockItem, error) {
	if stockItemID == "" {
		return StockItem{}, fmt.Errorf("%w: stock item id is required", ErrLedgerInvalidInput)
	}
	if delta == 0 {
		return l.stockItems.FindByID(ctx, stockItemID)
	}

	item, err := l.mutate(ctx, stockItemID, func(current domain.StockItem) (int, error) {
		next := current.CountOnHand + delta
		if next < 0 && !current.Backorderable {
			return 0, fmt.Errorf("%w: %s", ErrLedgerStockFloor, current.ID)
		}
		return next, nil
	})
	if err != nil {
		return StockItem{}, err
	}

	if delta > 0 {
		l.fillBackorders(ctx, item, delta)
	}
	return item, nil
}

func (l *inventoryLedger) Set(ctx context.Context, stockItemID string, value int) (StockItem, error) {
	if stockItemID == "" {
		return StockItem{}, fmt.Errorf("%w: stock item id is required", ErrLedgerInvalidInput)
	}
	// Administrative correction path: no backorder processing.
	return l.mutate(ctx, stockItemID, func(domain.StockItem) (int, error) {
		return value, nil
	})
}

func (l *inventoryLedger) ReduceToZero(ctx context.Context, stockItemID string) (StockItem, error) {
	if stockItemID == "" {
		return StockItem{}, fmt.Errorf("%w: stock item id is required", ErrLedgerInvalidInput)
	}
	return l.mutate(ctx, stockItemID, func(current domain.StockItem) (int, error) {
		if current.CountOnHand <= 0 {
			return current.CountOnHand, nil
		}
		return 0, nil
	})
}

// mutate runs a locked read-modify-write with optimistic retry: lost updates
// between the read and the versioned write are retried up to the budget.
func (l *inventoryLedger) mutate(ctx context.Context, stockItemID string, next func(domain.StockItem) (int, error)) (StockItem, error) {
	var lastErr error
	for attempt := 0; attempt < l.maxRetries; attempt++ {
		current, err := l.stockItems.FindByID(ctx, stockItemID)
		if err != nil {
			if repositories.IsNotFound(err) {
				return StockItem{}, fmt.Errorf("%w: %s", ErrLedgerStockItemNotFound, stockItemID)
			}
			return StockItem{}, err
		}

		value, err := next(current)
		if err != nil {
			return StockItem{}, err
		}
		if value == current.CountOnHand {
			return current, nil
		}

		updated := current
		updated.CountOnHand = value
		updated.UpdatedAt = l.clock()

		stored, err := l.stockItems.Update(ctx, updated, current.Version)
		if err == nil {
			return stored, nil
		}
		if !repositories.IsConflict(err) {
			return StockItem{}, err
		}
		lastErr = err
	}

	l.logger(ctx, "inventory.adjust_conflict", map[string]any{
		"stockItemId": stockItemID,
		"attempts":    l.maxRetries,
	})
	return StockItem{}, fmt.Errorf("%w: %s", ErrLedgerConflict, lastErr)
}

// fillBackorders transitions up to filled backordered units for the stock
// item to on_hand, oldest first. Positive adjustments fill backorders even
// while the running count stays negative.
func (l *inventoryLedger) fillBackorders(ctx context.Context, item StockItem, filled int) {
	if l.units == nil || filled <= 0 {
		return
	}
	backordered, err := l.units.ListBackordered(ctx, item.VariantID, item.StockLocationID)
	if err != nil {
		l.logger(ctx, "inventory.backorder_list_failed", map[string]any{
			"stockItemId": item.ID,
			"error":       err.Error(),
		})
		return
	}
	for i, unit := range backordered {
		if i >= filled {
			break
		}
		if err := l.units.UpdateState(ctx, unit.ID, domain.UnitOnHand); err != nil {
			l.logger(ctx, "inventory.backorder_fill_failed", map[string]any{
				"stockItemId": item.ID,
				"unitId":      unit.ID,
				"error":       err.Error(),
			})
			return
		}
	}
}
