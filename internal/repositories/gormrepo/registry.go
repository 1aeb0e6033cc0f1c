// Package gormrepo provides the durable Registry over SQLite via GORM.
package gormrepo

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	domain "github.com/atelier-goods/api/internal/domain"
	"github.com/atelier-goods/api/internal/repositories"
)

type txKey struct{}

// Registry implements repositories.Registry over a GORM database handle.
type Registry struct {
	db *gorm.DB
}

// Open connects to the SQLite file at path and migrates the schema.
func Open(path string) (*Registry, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("gormrepo: open %s: %w", path, err)
	}
	return OpenDB(db)
}

// OpenDB wraps an existing handle, migrating the schema first.
func OpenDB(db *gorm.DB) (*Registry, error) {
	if db == nil {
		return nil, errors.New("gormrepo: db handle is required")
	}
	if err := db.AutoMigrate(allModels()...); err != nil {
		return nil, fmt.Errorf("gormrepo: migrate: %w", err)
	}
	return &Registry{db: db}, nil
}

func (r *Registry) Close(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RunInTx opens a transaction and threads it through ctx so nested
// repository calls join it.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// conn returns the transaction bound to ctx, or the root handle.
func (r *Registry) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return r.db.WithContext(ctx)
}

func (r *Registry) Orders() repositories.OrderRepository                 { return &orderRepo{r} }
func (r *Registry) Variants() repositories.VariantRepository             { return &variantRepo{r} }
func (r *Registry) StockItems() repositories.StockItemRepository         { return &stockItemRepo{r} }
func (r *Registry) StockLocations() repositories.StockLocationRepository { return &stockLocationRepo{r} }
func (r *Registry) InventoryUnits() repositories.InventoryUnitRepository { return &inventoryUnitRepo{r} }
func (r *Registry) ShippingMethods() repositories.ShippingMethodRepository {
	return &shippingMethodRepo{r}
}
func (r *Registry) Zones() repositories.ZoneRepository         { return &zoneRepo{r} }
func (r *Registry) TaxRates() repositories.TaxRateRepository   { return &taxRateRepo{r} }
func (r *Registry) Promotions() repositories.PromotionRepository {
	return &promotionRepo{r}
}
func (r *Registry) ReturnAuthorizations() repositories.ReturnAuthorizationRepository {
	return &rmaRepo{r}
}

func wrapErr(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repositories.NewError(op, repositories.ErrorNotFound, "record not found", err)
	}
	return repositories.NewError(op, repositories.ErrorUnknown, err.Error(), err)
}

type orderRepo struct{ r *Registry }

func (o *orderRepo) Insert(ctx context.Context, order domain.Order) error {
	return o.r.runOrderTx(ctx, order, true)
}

func (o *orderRepo) Update(ctx context.Context, order domain.Order) error {
	return o.r.runOrderTx(ctx, order, false)
}

// runOrderTx writes a full aggregate: the order row is upserted and every
// child collection is replaced wholesale. Blunt, but it keeps the database a
// faithful snapshot of the in-memory aggregate the services mutated.
func (r *Registry) runOrderTx(ctx context.Context, order domain.Order, insert bool) error {
	op := "gorm.orders.update"
	if insert {
		op = "gorm.orders.insert"
	}
	run := func(tx *gorm.DB) error {
		row := toOrderModel(order)
		if insert {
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		} else {
			var count int64
			if err := tx.Model(&orderModel{}).Where("id = ?", order.ID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return gorm.ErrRecordNotFound
			}
			// Save writes the full row so cleared booleans and zeroed
			// totals land too.
			if err := tx.Save(&row).Error; err != nil {
				return err
			}
		}

		for _, model := range []any{
			&lineItemModel{}, &shipmentModel{}, &shippingRateModel{},
			&inventoryUnitModel{}, &paymentModel{}, &adjustmentModel{},
		} {
			if err := tx.Where("order_id = ?", order.ID).Delete(model).Error; err != nil {
				return err
			}
		}

		locationByShipment := make(map[string]string, len(order.Shipments))
		var lineItems []lineItemModel
		var shipments []shipmentModel
		var rates []shippingRateModel
		var units []inventoryUnitModel
		var pays []paymentModel
		var adjustments []adjustmentModel

		for i, li := range order.LineItems {
			lineItems = append(lineItems, lineItemModel{
				ID: li.ID, OrderID: order.ID, VariantID: li.VariantID, ProductID: li.ProductID,
				Quantity: li.Quantity, Price: li.Price, Currency: li.Currency,
				TaxCategoryID: li.TaxCategoryID, AdjustmentTotal: li.AdjustmentTotal,
				PromoTotal: li.PromoTotal, IncludedTaxTotal: li.IncludedTaxTotal,
				AdditionalTaxTotal: li.AdditionalTaxTotal, Position: i,
			})
			for _, adj := range li.Adjustments {
				adjustments = append(adjustments, toAdjustmentModel(order.ID, adj))
			}
		}
		for i, shipment := range order.Shipments {
			locationByShipment[shipment.ID] = shipment.StockLocationID
			shipments = append(shipments, shipmentModel{
				ID: shipment.ID, OrderID: order.ID, StockLocationID: shipment.StockLocationID,
				Number: shipment.Number, State: string(shipment.State), Cost: shipment.Cost,
				AdjustmentTotal: shipment.AdjustmentTotal, PromoTotal: shipment.PromoTotal,
				IncludedTaxTotal: shipment.IncludedTaxTotal, AdditionalTaxTotal: shipment.AdditionalTaxTotal,
				ShippedAt: shipment.ShippedAt, CreatedAt: shipment.CreatedAt,
				UpdatedAt: shipment.UpdatedAt, Position: i,
			})
			for j, rate := range shipment.ShippingRates {
				rates = append(rates, shippingRateModel{
					ID: rate.ID, OrderID: order.ID, ShipmentID: shipment.ID,
					ShippingMethodID: rate.ShippingMethodID, Cost: rate.Cost,
					TaxRateID: rate.TaxRateID, Selected: rate.Selected, Position: j,
				})
			}
			for _, unit := range shipment.InventoryUnits {
				units = append(units, inventoryUnitModel{
					ID: unit.ID, OrderID: order.ID,
					StockLocationID: locationByShipment[unit.ShipmentID],
					ShipmentID:      unit.ShipmentID, VariantID: unit.VariantID,
					LineItemID: unit.LineItemID, State: string(unit.State),
					ReturnAuthorizationID: unit.ReturnAuthorizationID,
					CreatedAt:             unit.CreatedAt,
				})
			}
			for _, adj := range shipment.Adjustments {
				adjustments = append(adjustments, toAdjustmentModel(order.ID, adj))
			}
		}
		for _, payment := range order.Payments {
			pays = append(pays, paymentModel{
				ID: payment.ID, OrderID: order.ID, Amount: payment.Amount,
				State: string(payment.State), GatewayRef: payment.GatewayRef,
				ErrorMessage: payment.ErrorMessage,
				CreatedAt:    payment.CreatedAt, UpdatedAt: payment.UpdatedAt,
			})
		}
		for _, adj := range order.Adjustments {
			adjustments = append(adjustments, toAdjustmentModel(order.ID, adj))
		}

		for _, batch := range []struct {
			rows any
			size int
		}{
			{lineItems, len(lineItems)}, {shipments, len(shipments)},
			{rates, len(rates)}, {units, len(units)},
			{pays, len(pays)}, {adjustments, len(adjustments)},
		} {
			if batch.size == 0 {
				continue
			}
			if err := tx.Create(batch.rows).Error; err != nil {
				return err
			}
		}
		return nil
	}

	var err error
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		err = run(tx)
	} else {
		err = r.db.WithContext(ctx).Transaction(run)
	}
	if err != nil {
		return wrapErr(op, err)
	}
	return nil
}

func (o *orderRepo) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	return o.r.loadOrder(ctx, "id = ?", orderID)
}

func (o *orderRepo) FindByNumber(ctx context.Context, number string) (domain.Order, error) {
	return o.r.loadOrder(ctx, "number = ?", number)
}

func (r *Registry) loadOrder(ctx context.Context, query string, arg any) (domain.Order, error) {
	db := r.conn(ctx)

	var row orderModel
	if err := db.Where(query, arg).First(&row).Error; err != nil {
		return domain.Order{}, wrapErr("gorm.orders.find", err)
	}
	order := fromOrderModel(row)

	var lineItems []lineItemModel
	if err := db.Where("order_id = ?", row.ID).Order("position").Find(&lineItems).Error; err != nil {
		return domain.Order{}, wrapErr("gorm.orders.find", err)
	}
	var shipments []shipmentModel
	if err := db.Where("order_id = ?", row.ID).Order("position").Find(&shipments).Error; err != nil {
		return domain.Order{}, wrapErr("gorm.orders.find", err)
	}
	var rates []shippingRateModel
	if err := db.Where("order_id = ?", row.ID).Order("position").Find(&rates).Error; err != nil {
		return domain.Order{}, wrapErr("gorm.orders.find", err)
	}
	var units []inventoryUnitModel
	if err := db.Where("order_id = ?", row.ID).Order("created_at, id").Find(&units).Error; err != nil {
		return domain.Order{}, wrapErr("gorm.orders.find", err)
	}
	var pays []paymentModel
	if err := db.Where("order_id = ?", row.ID).Order("created_at, id").Find(&pays).Error; err != nil {
		return domain.Order{}, wrapErr("gorm.orders.find", err)
	}
	var adjustments []adjustmentModel
	if err := db.Where("order_id = ?", row.ID).Order("created_at, id").Find(&adjustments).Error; err != nil {
		return domain.Order{}, wrapErr("gorm.orders.find", err)
	}

	adjByAdjustable := make(map[string][]domain.Adjustment)
	for _, m := range adjustments {
		adj := fromAdjustmentModel(m)
		key := m.AdjustableType + "/" + m.AdjustableID
		adjByAdjustable[key] = append(adjByAdjustable[key], adj)
	}

	for _, m := range lineItems {
		order.LineItems = append(order.LineItems, domain.LineItem{
			ID: m.ID, OrderID: m.OrderID, VariantID: m.VariantID, ProductID: m.ProductID,
			Quantity: m.Quantity, Price: m.Price, Currency: m.Currency,
			TaxCategoryID: m.TaxCategoryID, AdjustmentTotal: m.AdjustmentTotal,
			PromoTotal: m.PromoTotal, IncludedTaxTotal: m.IncludedTaxTotal,
			AdditionalTaxTotal: m.AdditionalTaxTotal,
			Adjustments:        adjByAdjustable[string(domain.AdjustableLineItem)+"/"+m.ID],
		})
	}

	ratesByShipment := make(map[string][]domain.ShippingRate)
	for _, m := range rates {
		ratesByShipment[m.ShipmentID] = append(ratesByShipment[m.ShipmentID], domain.ShippingRate{
			ID: m.ID, ShipmentID: m.ShipmentID, ShippingMethodID: m.ShippingMethodID,
			Cost: m.Cost, TaxRateID: m.TaxRateID, Selected: m.Selected,
		})
	}
	unitsByShipment := make(map[string][]domain.InventoryUnit)
	for _, m := range units {
		unitsByShipment[m.ShipmentID] = append(unitsByShipment[m.ShipmentID], domain.InventoryUnit{
			ID: m.ID, OrderID: m.OrderID, ShipmentID: m.ShipmentID,
			VariantID: m.VariantID, LineItemID: m.LineItemID,
			State:                 domain.InventoryUnitState(m.State),
			ReturnAuthorizationID: m.ReturnAuthorizationID,
			CreatedAt:             m.CreatedAt,
		})
	}
	for _, m := range shipments {
		order.Shipments = append(order.Shipments, domain.Shipment{
			ID: m.ID, OrderID: m.OrderID, StockLocationID: m.StockLocationID,
			Number: m.Number, State: domain.ShipmentState(m.State), Cost: m.Cost,
			AdjustmentTotal: m.AdjustmentTotal, PromoTotal: m.PromoTotal,
			IncludedTaxTotal: m.IncludedTaxTotal, AdditionalTaxTotal: m.AdditionalTaxTotal,
			InventoryUnits: unitsByShipment[m.ID], ShippingRates: ratesByShipment[m.ID],
			Adjustments: adjByAdjustable[string(domain.AdjustableShipment)+"/"+m.ID],
			ShippedAt:   m.ShippedAt, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt,
		})
	}
	for _, m := range pays {
		order.Payments = append(order.Payments, domain.Payment{
			ID: m.ID, OrderID: m.OrderID, Amount: m.Amount,
			State: domain.PaymentState(m.State), GatewayRef: m.GatewayRef,
			ErrorMessage: m.ErrorMessage, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt,
		})
	}
	order.Adjustments = adjByAdjustable[string(domain.AdjustableOrder)+"/"+row.ID]

	return order, nil
}

type variantRepo struct{ r *Registry }

func (v *variantRepo) FindByID(ctx context.Context, variantID string) (domain.Variant, error) {
	var row variantModel
	if err := v.r.conn(ctx).Where("id = ?", variantID).First(&row).Error; err != nil {
		return domain.Variant{}, wrapErr("gorm.variants.find", err)
	}
	return toVariant(row), nil
}

type stockItemRepo struct{ r *Registry }

func (s *stockItemRepo) FindByID(ctx context.Context, stockItemID string) (domain.StockItem, error) {
	var row stockItemModel
	if err := s.r.conn(ctx).Where("id = ?", stockItemID).First(&row).Error; err != nil {
		return domain.StockItem{}, wrapErr("gorm.stock_items.find", err)
	}
	return toStockItem(row), nil
}

func (s *stockItemRepo) FindForVariant(ctx context.Context, variantID, stockLocationID string) (domain.StockItem, error) {
	var row stockItemModel
	err := s.r.conn(ctx).
		Where("variant_id = ? AND stock_location_id = ?", variantID, stockLocationID).
		First(&row).Error
	if err != nil {
		return domain.StockItem{}, wrapErr("gorm.stock_items.find_for_variant", err)
	}
	return toStockItem(row), nil
}

func (s *stockItemRepo) ListByVariant(ctx context.Context, variantID string) ([]domain.StockItem, error) {
	var rows []stockItemModel
	if err := s.r.conn(ctx).Where("variant_id = ?", variantID).Order("id").Find(&rows).Error; err != nil {
		return nil, wrapErr("gorm.stock_items.list", err)
	}
	items := make([]domain.StockItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, toStockItem(row))
	}
	return items, nil
}

// Update performs the compare-and-swap write: the UPDATE is guarded on the
// stored version, and zero affected rows becomes a conflict (or not-found).
func (s *stockItemRepo) Update(ctx context.Context, item domain.StockItem, expectedVersion int64) (domain.StockItem, error) {
	db := s.r.conn(ctx)
	res := db.Model(&stockItemModel{}).
		Where("id = ? AND version = ?", item.ID, expectedVersion).
		Updates(map[string]any{
			"count_on_hand": item.CountOnHand,
			"backorderable": item.Backorderable,
			"version":       expectedVersion + 1,
			"updated_at":    item.UpdatedAt,
		})
	if res.Error != nil {
		return domain.StockItem{}, wrapErr("gorm.stock_items.update", res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := db.Model(&stockItemModel{}).Where("id = ?", item.ID).Count(&count).Error; err != nil {
			return domain.StockItem{}, wrapErr("gorm.stock_items.update", err)
		}
		if count == 0 {
			return domain.StockItem{}, repositories.NewError("gorm.stock_items.update", repositories.ErrorNotFound, "stock item not found", nil)
		}
		return domain.StockItem{}, repositories.NewError("gorm.stock_items.update", repositories.ErrorConflict, "stock item version mismatch", nil)
	}
	item.Version = expectedVersion + 1
	return item, nil
}

type stockLocationRepo struct{ r *Registry }

func (s *stockLocationRepo) ListActive(ctx context.Context) ([]domain.StockLocation, error) {
	var rows []stockLocationModel
	if err := s.r.conn(ctx).Where("active = ?", true).Order("priority, id").Find(&rows).Error; err != nil {
		return nil, wrapErr("gorm.stock_locations.list", err)
	}
	locations := make([]domain.StockLocation, 0, len(rows))
	for _, row := range rows {
		locations = append(locations, domain.StockLocation{
			ID: row.ID, Name: row.Name, Priority: row.Priority, Active: row.Active,
		})
	}
	return locations, nil
}

type inventoryUnitRepo struct{ r *Registry }

func (i *inventoryUnitRepo) ListBackordered(ctx context.Context, variantID, stockLocationID string) ([]domain.InventoryUnit, error) {
	var rows []inventoryUnitModel
	err := i.r.conn(ctx).
		Where("variant_id = ? AND stock_location_id = ? AND state = ?",
			variantID, stockLocationID, string(domain.UnitBackordered)).
		Order("created_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, wrapErr("gorm.inventory_units.list_backordered", err)
	}
	units := make([]domain.InventoryUnit, 0, len(rows))
	for _, row := range rows {
		units = append(units, domain.InventoryUnit{
			ID: row.ID, OrderID: row.OrderID, ShipmentID: row.ShipmentID,
			VariantID: row.VariantID, LineItemID: row.LineItemID,
			State:                 domain.InventoryUnitState(row.State),
			ReturnAuthorizationID: row.ReturnAuthorizationID,
			CreatedAt:             row.CreatedAt,
		})
	}
	return units, nil
}

func (i *inventoryUnitRepo) UpdateState(ctx context.Context, unitID string, state domain.InventoryUnitState) error {
	res := i.r.conn(ctx).Model(&inventoryUnitModel{}).
		Where("id = ?", unitID).
		Update("state", string(state))
	if res.Error != nil {
		return wrapErr("gorm.inventory_units.update_state", res.Error)
	}
	if res.RowsAffected == 0 {
		return repositories.NewError("gorm.inventory_units.update_state", repositories.ErrorNotFound, "inventory unit not found", nil)
	}
	return nil
}

type shippingMethodRepo struct{ r *Registry }

func (s *shippingMethodRepo) ListAll(ctx context.Context) ([]domain.ShippingMethod, error) {
	var rows []shippingMethodModel
	if err := s.r.conn(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, wrapErr("gorm.shipping_methods.list", err)
	}
	methods := make([]domain.ShippingMethod, 0, len(rows))
	for _, row := range rows {
		methods = append(methods, toShippingMethod(row))
	}
	return methods, nil
}

type zoneRepo struct{ r *Registry }

func (z *zoneRepo) FindByID(ctx context.Context, zoneID string) (domain.Zone, error) {
	var row zoneModel
	if err := z.r.conn(ctx).Where("id = ?", zoneID).First(&row).Error; err != nil {
		return domain.Zone{}, wrapErr("gorm.zones.find", err)
	}
	return toZone(row), nil
}

func (z *zoneRepo) ListAll(ctx context.Context) ([]domain.Zone, error) {
	var rows []zoneModel
	if err := z.r.conn(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, wrapErr("gorm.zones.list", err)
	}
	zones := make([]domain.Zone, 0, len(rows))
	for _, row := range rows {
		zones = append(zones, toZone(row))
	}
	return zones, nil
}

type taxRateRepo struct{ r *Registry }

func (t *taxRateRepo) ListAll(ctx context.Context) ([]domain.TaxRate, error) {
	var rows []taxRateModel
	if err := t.r.conn(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, wrapErr("gorm.tax_rates.list", err)
	}
	rates := make([]domain.TaxRate, 0, len(rows))
	for _, row := range rows {
		rates = append(rates, toTaxRate(row))
	}
	return rates, nil
}

type promotionRepo struct{ r *Registry }

func (p *promotionRepo) ListActive(ctx context.Context) ([]domain.Promotion, error) {
	var rows []promotionModel
	if err := p.r.conn(ctx).Where("active = ?", true).Order("id").Find(&rows).Error; err != nil {
		return nil, wrapErr("gorm.promotions.list", err)
	}
	promos := make([]domain.Promotion, 0, len(rows))
	for _, row := range rows {
		promo, err := p.assemble(ctx, row)
		if err != nil {
			return nil, err
		}
		promos = append(promos, promo)
	}
	return promos, nil
}

func (p *promotionRepo) FindByID(ctx context.Context, promotionID string) (domain.Promotion, error) {
	var row promotionModel
	if err := p.r.conn(ctx).Where("id = ?", promotionID).First(&row).Error; err != nil {
		return domain.Promotion{}, wrapErr("gorm.promotions.find", err)
	}
	return p.assemble(ctx, row)
}

func (p *promotionRepo) FindByActionID(ctx context.Context, actionID string) (domain.Promotion, domain.PromotionAction, error) {
	var action promotionActionModel
	if err := p.r.conn(ctx).Where("id = ?", actionID).First(&action).Error; err != nil {
		return domain.Promotion{}, domain.PromotionAction{}, wrapErr("gorm.promotions.find_by_action", err)
	}
	promo, err := p.FindByID(ctx, action.PromotionID)
	if err != nil {
		return domain.Promotion{}, domain.PromotionAction{}, err
	}
	for _, a := range promo.Actions {
		if a.ID == actionID {
			return promo, a, nil
		}
	}
	return domain.Promotion{}, domain.PromotionAction{}, repositories.NewError("gorm.promotions.find_by_action", repositories.ErrorNotFound, "promotion action not found", nil)
}

func (p *promotionRepo) assemble(ctx context.Context, row promotionModel) (domain.Promotion, error) {
	var rules []promotionRuleModel
	if err := p.r.conn(ctx).Where("promotion_id = ?", row.ID).Order("id").Find(&rules).Error; err != nil {
		return domain.Promotion{}, wrapErr("gorm.promotions.rules", err)
	}
	var actions []promotionActionModel
	if err := p.r.conn(ctx).Where("promotion_id = ?", row.ID).Order("id").Find(&actions).Error; err != nil {
		return domain.Promotion{}, wrapErr("gorm.promotions.actions", err)
	}
	return toPromotion(row, rules, actions), nil
}

type rmaRepo struct{ r *Registry }

func (m *rmaRepo) Insert(ctx context.Context, rma domain.ReturnAuthorization) error {
	row := toRMAModel(rma)
	if err := m.r.conn(ctx).Create(&row).Error; err != nil {
		return wrapErr("gorm.rmas.insert", err)
	}
	return nil
}

func (m *rmaRepo) Update(ctx context.Context, rma domain.ReturnAuthorization) error {
	row := toRMAModel(rma)
	if err := m.r.conn(ctx).Save(&row).Error; err != nil {
		return wrapErr("gorm.rmas.update", err)
	}
	return nil
}

func (m *rmaRepo) FindByID(ctx context.Context, rmaID string) (domain.ReturnAuthorization, error) {
	var row returnAuthorizationModel
	if err := m.r.conn(ctx).Where("id = ?", rmaID).First(&row).Error; err != nil {
		return domain.ReturnAuthorization{}, wrapErr("gorm.rmas.find", err)
	}
	return fromRMAModel(row), nil
}

func (m *rmaRepo) ListByOrder(ctx context.Context, orderID string) ([]domain.ReturnAuthorization, error) {
	var rows []returnAuthorizationModel
	if err := m.r.conn(ctx).Where("order_id = ?", orderID).Find(&rows).Error; err != nil {
		return nil, wrapErr("gorm.rmas.list", err)
	}
	rmas := make([]domain.ReturnAuthorization, 0, len(rows))
	for _, row := range rows {
		rmas = append(rmas, fromRMAModel(row))
	}
	sort.Slice(rmas, func(i, j int) bool { return rmas[i].CreatedAt.Before(rmas[j].CreatedAt) })
	return rmas, nil
}

// SeedCatalog loads reference data (variants, locations, stock, methods,
// zones, tax rates, promotions) idempotently; local bootstrap uses it.
func (r *Registry) SeedCatalog(ctx context.Context,
	variants []domain.Variant,
	locations []domain.StockLocation,
	stockItems []domain.StockItem,
	methods []domain.ShippingMethod,
	zones []domain.Zone,
	taxRates []domain.TaxRate,
	promotions []domain.Promotion,
) error {
	return r.RunInTx(ctx, func(ctx context.Context) error {
		db := r.conn(ctx)
		for _, v := range variants {
			row := variantModel{
				ID: v.ID, ProductID: v.ProductID, SKU: v.SKU, Price: v.Price,
				WeightGrams: v.WeightGrams, TaxCategoryID: v.TaxCategoryID,
				TrackInventory: v.TrackInventory, IsMaster: v.IsMaster,
			}
			if err := db.Save(&row).Error; err != nil {
				return wrapErr("gorm.seed.variants", err)
			}
		}
		for _, l := range locations {
			row := stockLocationModel{ID: l.ID, Name: l.Name, Priority: l.Priority, Active: l.Active}
			if err := db.Save(&row).Error; err != nil {
				return wrapErr("gorm.seed.stock_locations", err)
			}
		}
		for _, si := range stockItems {
			row := stockItemModel{
				ID: si.ID, VariantID: si.VariantID, StockLocationID: si.StockLocationID,
				CountOnHand: si.CountOnHand, Backorderable: si.Backorderable,
				Version: si.Version, UpdatedAt: si.UpdatedAt,
			}
			if err := db.Save(&row).Error; err != nil {
				return wrapErr("gorm.seed.stock_items", err)
			}
		}
		for _, m := range methods {
			row := shippingMethodModel{
				ID: m.ID, Name: m.Name, DisplayOn: string(m.DisplayOn),
				ZoneIDs: marshalJSON(m.ZoneIDs), StockLocationIDs: marshalJSON(m.StockLocationIDs),
				TaxCategoryID:      m.TaxCategoryID,
				CalculatorKind:     string(m.Calculator.Kind),
				CalculatorCurrency: m.Calculator.Currency,
				CalculatorAmount:   m.Calculator.Amount,
				CalculatorPercent:  m.Calculator.Percent,
			}
			if err := db.Save(&row).Error; err != nil {
				return wrapErr("gorm.seed.shipping_methods", err)
			}
		}
		for _, z := range zones {
			row := zoneModel{ID: z.ID, Name: z.Name, Countries: marshalJSON(z.Countries)}
			if err := db.Save(&row).Error; err != nil {
				return wrapErr("gorm.seed.zones", err)
			}
		}
		for _, t := range taxRates {
			row := taxRateModel{
				ID: t.ID, Name: t.Name, TaxCategoryID: t.TaxCategoryID,
				ZoneID: t.ZoneID, Amount: t.Amount, IncludedInPrice: t.IncludedInPrice,
			}
			if err := db.Save(&row).Error; err != nil {
				return wrapErr("gorm.seed.tax_rates", err)
			}
		}
		for _, p := range promotions {
			row := promotionModel{
				ID: p.ID, Name: p.Name, Code: p.Code, Path: p.Path,
				MatchPolicy: string(p.MatchPolicy), StartsAt: p.StartsAt,
				ExpiresAt: p.ExpiresAt, Active: p.Active,
			}
			if err := db.Save(&row).Error; err != nil {
				return wrapErr("gorm.seed.promotions", err)
			}
			for _, rule := range p.Rules {
				ruleRow := promotionRuleModel{
					ID: rule.ID, PromotionID: p.ID, Kind: string(rule.Kind),
					ProductIDs: marshalJSON(rule.ProductIDs), ProductMatch: string(rule.ProductMatch),
					Operator: string(rule.Operator), Threshold: rule.Threshold,
				}
				if err := db.Save(&ruleRow).Error; err != nil {
					return wrapErr("gorm.seed.promotion_rules", err)
				}
			}
			for _, action := range p.Actions {
				actionRow := promotionActionModel{
					ID: action.ID, PromotionID: p.ID, Kind: string(action.Kind),
					Label:              action.Label,
					CalculatorKind:     string(action.Calculator.Kind),
					CalculatorCurrency: action.Calculator.Currency,
					CalculatorAmount:   action.Calculator.Amount,
					CalculatorPercent:  action.Calculator.Percent,
				}
				if err := db.Save(&actionRow).Error; err != nil {
					return wrapErr("gorm.seed.promotion_actions", err)
				}
			}
		}
		return nil
	})
}
