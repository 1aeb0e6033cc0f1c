package services

import (
	"context"
	"errors"
	"sort"

	"github.com/oklog/ulid/v2"

	domain "github.com/atelier-goods/api/internal/domain"
	"github.com/atelier-goods/api/internal/repositories"
)

// ErrEstimatorInvalidInput signals the caller provided invalid arguments.
var ErrEstimatorInvalidInput = errors.New("shipping estimator: invalid input")

// ShippingRateEstimatorDeps bundles the collaborators required to construct
// an estimator.
type ShippingRateEstimatorDeps struct {
	ShippingMethods repositories.ShippingMethodRepository
	Zones           repositories.ZoneRepository
	TaxRates        repositories.TaxRateRepository
	IDGenerator     func() string
	Logger          func(ctx context.Context, event string, fields map[string]any)
}

type shippingRateEstimator struct {
	methods  repositories.ShippingMethodRepository
	zones    repositories.ZoneRepository
	taxRates repositories.TaxRateRepository
	newID    func() string
	logger   func(context.Context, string, map[string]any)
}

// NewShippingRateEstimator wires dependencies into a concrete estimator.
func NewShippingRateEstimator(deps ShippingRateEstimatorDeps) (ShippingRateEstimator, error) {
	if deps.ShippingMethods == nil {
		return nil, errors.New("shipping estimator: shipping method repository is required")
	}
	if deps.Zones == nil {
		return nil, errors.New("shipping estimator: zone repository is required")
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &shippingRateEstimator{
		methods:  deps.ShippingMethods,
		zones:    deps.Zones,
		taxRates: deps.TaxRates,
		newID:    newID,
		logger:   logger,
	}, nil
}

func (e *shippingRateEstimator) Estimate(ctx context.Context, cmd EstimateCommand) ([]ShippingRate, error) {
	if cmd.Package.Empty() {
		return nil, errors.New("shipping estimator: package is empty")
	}

	methods, err := e.methods.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	zones, err := e.loadZones(ctx)
	if err != nil {
		return nil, err
	}
	var taxRates []TaxRate
	if e.taxRates != nil {
		taxRates, err = e.taxRates.ListAll(ctx)
		if err != nil {
			return nil, err
		}
	}

	var rates []ShippingRate
	for _, method := range methods {
		if !method.ServesLocation(cmd.Package.StockLocationID) {
			continue
		}
		if method.DisplayOn == domain.DisplayBackEnd && !cmd.AdminContext {
			continue
		}
		if !methodCoversAddress(method, zones, cmd.Order.ShipAddress) {
			continue
		}
		if method.Calculator.Currency != "" && method.Calculator.Currency != cmd.Order.Currency {
			continue
		}
		if !method.Calculator.AvailableFor(cmd.Package) {
			continue
		}

		cost, err := method.Calculator.ComputePackage(cmd.Package)
		if err != nil {
			// Estimation degrades to fewer rates; a broken calculator
			// never fails the whole run.
			e.logger(ctx, "estimator.calculator_failed", map[string]any{
				"shippingMethodId": method.ID,
				"error":            err.Error(),
			})
			continue
		}

		rates = append(rates, ShippingRate{
			ID:               e.newID(),
			ShippingMethodID: method.ID,
			Cost:             cost,
			TaxRateID:        e.matchTaxRate(method, taxRates, zones, cmd.Order.ShipAddress),
		})
	}

	sort.SliceStable(rates, func(i, j int) bool { return rates[i].Cost < rates[j].Cost })
	selectRate(rates, cmd.PreviousMethodID)
	return rates, nil
}

func (e *shippingRateEstimator) loadZones(ctx context.Context) (map[string]Zone, error) {
	all, err := e.zones.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]Zone, len(all))
	for _, zone := range all {
		byID[zone.ID] = zone
	}
	return byID, nil
}

func methodCoversAddress(method ShippingMethod, zones map[string]Zone, addr *Address) bool {
	for _, zoneID := range method.ZoneIDs {
		if zone, ok := zones[zoneID]; ok && zone.Contains(addr) {
			return true
		}
	}
	return false
}

// matchTaxRate returns the rate taxing the method's category within the
// order's tax zone, if any.
func (e *shippingRateEstimator) matchTaxRate(method ShippingMethod, taxRates []TaxRate, zones map[string]Zone, addr *Address) string {
	if method.TaxCategoryID == "" {
		return ""
	}
	for _, rate := range taxRates {
		if rate.TaxCategoryID != method.TaxCategoryID {
			continue
		}
		if zone, ok := zones[rate.ZoneID]; ok && zone.Contains(addr) {
			return rate.ID
		}
	}
	return ""
}

// selectRate marks exactly one candidate selected: the shopper's previous
// method when it survived re-estimation, otherwise the cheapest.
func selectRate(rates []ShippingRate, previousMethodID string) {
	if len(rates) == 0 {
		return
	}
	selected := 0
	if previousMethodID != "" {
		for i, rate := range rates {
			if rate.ShippingMethodID == previousMethodID {
				selected = i
				break
			}
		}
	}
	for i := range rates {
		rates[i].Selected = i == selected
	}
}
