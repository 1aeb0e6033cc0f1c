package services

import (
	"context"
	"testing"

	domain "github.com/atelier-goods/api/internal/domain"
)

func estimatorFixtureDeps(methods []domain.ShippingMethod, zones []domain.Zone, taxRates []domain.TaxRate) ShippingRateEstimatorDeps {
	ids := 0
	return ShippingRateEstimatorDeps{
		ShippingMethods: &stubMethodRepo{
			listAllFn: func(ctx context.Context) ([]domain.ShippingMethod, error) { return methods, nil },
		},
		Zones: &stubZoneRepo{
			listAllFn: func(ctx context.Context) ([]domain.Zone, error) { return zones, nil },
		},
		TaxRates: &stubTaxRateRepo{
			listAllFn: func(ctx context.Context) ([]domain.TaxRate, error) { return taxRates, nil },
		},
		IDGenerator: func() string {
			ids++
			return "rate-" + string(rune('a'+ids-1))
		},
	}
}

func newTestEstimator(t *testing.T, deps ShippingRateEstimatorDeps) ShippingRateEstimator {
	t.Helper()
	estimator, err := NewShippingRateEstimator(deps)
	if err != nil {
		t.Fatalf("NewShippingRateEstimator returned error: %v", err)
	}
	return estimator
}

func usOrder() Order {
	return Order{
		ID:          "o-1",
		Currency:    "USD",
		ShipAddress: &Address{Line1: "1 Main St", City: "Portland", Country: "US"},
	}
}

func onePackage() Package {
	return Package{
		StockLocationID: "loc-1",
		Contents: []PackageItem{
			{Variant: domain.Variant{ID: "v-1", Price: 2000}, LineItemID: "li-1", Quantity: 2, State: domain.PackageOnHand},
		},
	}
}

func TestEstimatorSortsCheapestFirstAndSelectsIt(t *testing.T) {
	usZone := domain.Zone{ID: "z-us", Countries: []string{"US"}}
	methods := []domain.ShippingMethod{
		{ID: "m-express", Name: "Express", DisplayOn: domain.DisplayBoth, ZoneIDs: []string{"z-us"},
			Calculator: domain.Calculator{Kind: domain.CalcFlatRate, Currency: "USD", Amount: 2500}},
		{ID: "m-ground", Name: "Ground", DisplayOn: domain.DisplayBoth, ZoneIDs: []string{"z-us"},
			Calculator: domain.Calculator{Kind: domain.CalcFlatRate, Currency: "USD", Amount: 700}},
	}
	estimator := newTestEstimator(t, estimatorFixtureDeps(methods, []domain.Zone{usZone}, nil))

	rates, err := estimator.Estimate(context.Background(), EstimateCommand{Order: usOrder(), Package: onePackage()})
	if err != nil {
		t.Fatalf("Estimate returned error: %v", err)
	}
	if len(rates) != 2 {
		t.Fatalf("expected 2 rates, got %d", len(rates))
	}
	if rates[0].ShippingMethodID != "m-ground" || rates[0].Cost != 700 {
		t.Fatalf("expected ground first, got %+v", rates[0])
	}
	if !rates[0].Selected || rates[1].Selected {
		t.Fatalf("expected the cheapest rate selected, got %+v", rates)
	}
}

func TestEstimatorKeepsPreviousMethodSelected(t *testing.T) {
	usZone := domain.Zone{ID: "z-us", Countries: []string{"US"}}
	methods := []domain.ShippingMethod{
		{ID: "m-express", DisplayOn: domain.DisplayBoth, ZoneIDs: []string{"z-us"},
			Calculator: domain.Calculator{Kind: domain.CalcFlatRate, Amount: 2500}},
		{ID: "m-ground", DisplayOn: domain.DisplayBoth, ZoneIDs: []string{"z-us"},
			Calculator: domain.Calculator{Kind: domain.CalcFlatRate, Amount: 700}},
	}
	estimator := newTestEstimator(t, estimatorFixtureDeps(methods, []domain.Zone{usZone}, nil))

	rates, err := estimator.Estimate(context.Background(), EstimateCommand{
		Order: usOrder(), Package: onePackage(), PreviousMethodID: "m-express",
	})
	if err != nil {
		t.Fatalf("Estimate returned error: %v", err)
	}
	for _, rate := range rates {
		if rate.ShippingMethodID == "m-express" && !rate.Selected {
			t.Fatalf("expected previous method to stay selected, got %+v", rates)
		}
		if rate.ShippingMethodID != "m-express" && rate.Selected {
			t.Fatalf("expected only the previous method selected, got %+v", rates)
		}
	}
}

func TestEstimatorFilters(t *testing.T) {
	usZone := domain.Zone{ID: "z-us", Countries: []string{"US"}}
	euZone := domain.Zone{ID: "z-eu", Countries: []string{"DE", "FR"}}
	methods := []domain.ShippingMethod{
		{ID: "m-ok", DisplayOn: domain.DisplayBoth, ZoneIDs: []string{"z-us"},
			Calculator: domain.Calculator{Kind: domain.CalcFlatRate, Amount: 700}},
		{ID: "m-admin", DisplayOn: domain.DisplayBackEnd, ZoneIDs: []string{"z-us"},
			Calculator: domain.Calculator{Kind: domain.CalcFlatRate, Amount: 100}},
		{ID: "m-eu", DisplayOn: domain.DisplayBoth, ZoneIDs: []string{"z-eu"},
			Calculator: domain.Calculator{Kind: domain.CalcFlatRate, Amount: 100}},
		{ID: "m-eur", DisplayOn: domain.DisplayBoth, ZoneIDs: []string{"z-us"},
			Calculator: domain.Calculator{Kind: domain.CalcFlatRate, Currency: "EUR", Amount: 100}},
		{ID: "m-other-loc", DisplayOn: domain.DisplayBoth, ZoneIDs: []string{"z-us"}, StockLocationIDs: []string{"loc-2"},
			Calculator: domain.Calculator{Kind: domain.CalcFlatRate, Amount: 100}},
		{ID: "m-broken", DisplayOn: domain.DisplayBoth, ZoneIDs: []string{"z-us"},
			Calculator: domain.Calculator{Kind: "mystery", Amount: 100}},
	}
	estimator := newTestEstimator(t, estimatorFixtureDeps(methods, []domain.Zone{usZone, euZone}, nil))

	rates, err := estimator.Estimate(context.Background(), EstimateCommand{Order: usOrder(), Package: onePackage()})
	if err != nil {
		t.Fatalf("Estimate returned error: %v", err)
	}
	if len(rates) != 1 || rates[0].ShippingMethodID != "m-ok" {
		t.Fatalf("expected only m-ok to survive filtering, got %+v", rates)
	}
}

func TestEstimatorAdminContextSeesBackEndMethods(t *testing.T) {
	usZone := domain.Zone{ID: "z-us", Countries: []string{"US"}}
	methods := []domain.ShippingMethod{
		{ID: "m-admin", DisplayOn: domain.DisplayBackEnd, ZoneIDs: []string{"z-us"},
			Calculator: domain.Calculator{Kind: domain.CalcFlatRate, Amount: 100}},
	}
	estimator := newTestEstimator(t, estimatorFixtureDeps(methods, []domain.Zone{usZone}, nil))

	rates, err := estimator.Estimate(context.Background(), EstimateCommand{
		Order: usOrder(), Package: onePackage(), AdminContext: true,
	})
	if err != nil {
		t.Fatalf("Estimate returned error: %v", err)
	}
	if len(rates) != 1 || rates[0].ShippingMethodID != "m-admin" {
		t.Fatalf("expected back-end method in admin context, got %+v", rates)
	}
}

func TestEstimatorAttachesMatchingTaxRate(t *testing.T) {
	usZone := domain.Zone{ID: "z-us", Countries: []string{"US"}}
	methods := []domain.ShippingMethod{
		{ID: "m-ground", DisplayOn: domain.DisplayBoth, ZoneIDs: []string{"z-us"}, TaxCategoryID: "tc-shipping",
			Calculator: domain.Calculator{Kind: domain.CalcFlatRate, Amount: 700}},
	}
	taxRates := []domain.TaxRate{
		{ID: "tr-other", TaxCategoryID: "tc-goods", ZoneID: "z-us", Amount: 0.2},
		{ID: "tr-ship", TaxCategoryID: "tc-shipping", ZoneID: "z-us", Amount: 0.1},
	}
	estimator := newTestEstimator(t, estimatorFixtureDeps(methods, []domain.Zone{usZone}, taxRates))

	rates, err := estimator.Estimate(context.Background(), EstimateCommand{Order: usOrder(), Package: onePackage()})
	if err != nil {
		t.Fatalf("Estimate returned error: %v", err)
	}
	if len(rates) != 1 || rates[0].TaxRateID != "tr-ship" {
		t.Fatalf("expected shipping tax rate attached, got %+v", rates)
	}
}

func TestEstimatorRejectsEmptyPackage(t *testing.T) {
	estimator := newTestEstimator(t, estimatorFixtureDeps(nil, nil, nil))

	if _, err := estimator.Estimate(context.Background(), EstimateCommand{Order: usOrder()}); err == nil {
		t.Fatalf("expected error for empty package")
	}
}

func TestEstimatorPerItemCalculator(t *testing.T) {
	usZone := domain.Zone{ID: "z-us", Countries: []string{"US"}}
	methods := []domain.ShippingMethod{
		{ID: "m-per-item", DisplayOn: domain.DisplayBoth, ZoneIDs: []string{"z-us"},
			Calculator: domain.Calculator{Kind: domain.CalcPerItem, Amount: 150}},
	}
	estimator := newTestEstimator(t, estimatorFixtureDeps(methods, []domain.Zone{usZone}, nil))

	rates, err := estimator.Estimate(context.Background(), EstimateCommand{Order: usOrder(), Package: onePackage()})
	if err != nil {
		t.Fatalf("Estimate returned error: %v", err)
	}
	if len(rates) != 1 || rates[0].Cost != 300 {
		t.Fatalf("expected per-item cost 300, got %+v", rates)
	}
}
