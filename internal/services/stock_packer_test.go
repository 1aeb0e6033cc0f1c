package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/atelier-goods/api/internal/domain"
)

type packerFixture struct {
	variants  map[string]domain.Variant
	locations []domain.StockLocation
	stock     map[string]domain.StockItem // keyed variantID/locationID
}

func (f packerFixture) deps() StockPackerDeps {
	return StockPackerDeps{
		StockItems: &stubStockItemRepo{
			findForVariantFn: func(ctx context.Context, variantID, stockLocationID string) (domain.StockItem, error) {
				item, ok := f.stock[variantID+"/"+stockLocationID]
				if !ok {
					return domain.StockItem{}, notFoundErr("stockitems.find")
				}
				return item, nil
			},
		},
		StockLocations: &stubLocationRepo{
			listActiveFn: func(ctx context.Context) ([]domain.StockLocation, error) {
				return f.locations, nil
			},
		},
		Variants: &stubVariantRepo{
			findByIDFn: func(ctx context.Context, variantID string) (domain.Variant, error) {
				variant, ok := f.variants[variantID]
				if !ok {
					return domain.Variant{}, notFoundErr("variants.find")
				}
				return variant, nil
			},
		},
		TrackInventoryLevels: true,
	}
}

func newTestPacker(t *testing.T, deps StockPackerDeps) StockPacker {
	t.Helper()
	packer, err := NewStockPacker(deps)
	if err != nil {
		t.Fatalf("NewStockPacker returned error: %v", err)
	}
	return packer
}

func TestStockPackerSingleLocation(t *testing.T) {
	fixture := packerFixture{
		variants: map[string]domain.Variant{
			"v-1": {ID: "v-1", TrackInventory: true, WeightGrams: 100},
		},
		locations: []domain.StockLocation{{ID: "loc-1", Priority: 1, Active: true}},
		stock: map[string]domain.StockItem{
			"v-1/loc-1": {ID: "si-1", VariantID: "v-1", StockLocationID: "loc-1", CountOnHand: 10},
		},
	}
	packer := newTestPacker(t, fixture.deps())

	order := Order{LineItems: []LineItem{{ID: "li-1", VariantID: "v-1", Quantity: 3}}}
	result, err := packer.Pack(context.Background(), order)
	if err != nil {
		t.Fatalf("Pack returned error: %v", err)
	}
	if len(result.InsufficientStock) != 0 {
		t.Fatalf("unexpected shortfalls: %v", result.InsufficientStock)
	}
	if len(result.Packages) != 1 {
		t.Fatalf("expected 1 package, got %d", len(result.Packages))
	}
	pkg := result.Packages[0]
	if pkg.StockLocationID != "loc-1" || pkg.OnHandQuantity() != 3 || pkg.BackorderedQuantity() != 0 {
		t.Fatalf("unexpected package %+v", pkg)
	}
	if pkg.Contents[0].LineItemID != "li-1" {
		t.Fatalf("expected line item reference, got %+v", pkg.Contents[0])
	}
}

func TestStockPackerSpillsAcrossLocationsByPriority(t *testing.T) {
	fixture := packerFixture{
		variants: map[string]domain.Variant{
			"v-1": {ID: "v-1", TrackInventory: true},
		},
		locations: []domain.StockLocation{
			{ID: "loc-1", Priority: 1, Active: true},
			{ID: "loc-2", Priority: 2, Active: true},
		},
		stock: map[string]domain.StockItem{
			"v-1/loc-1": {ID: "si-1", VariantID: "v-1", StockLocationID: "loc-1", CountOnHand: 2},
			"v-1/loc-2": {ID: "si-2", VariantID: "v-1", StockLocationID: "loc-2", CountOnHand: 10},
		},
	}
	packer := newTestPacker(t, fixture.deps())

	order := Order{LineItems: []LineItem{{ID: "li-1", VariantID: "v-1", Quantity: 5}}}
	result, err := packer.Pack(context.Background(), order)
	if err != nil {
		t.Fatalf("Pack returned error: %v", err)
	}
	if len(result.Packages) != 2 {
		t.Fatalf("expected 2 packages, got %d", len(result.Packages))
	}
	if result.Packages[0].StockLocationID != "loc-1" || result.Packages[0].OnHandQuantity() != 2 {
		t.Fatalf("unexpected first package %+v", result.Packages[0])
	}
	if result.Packages[1].StockLocationID != "loc-2" || result.Packages[1].OnHandQuantity() != 3 {
		t.Fatalf("unexpected second package %+v", result.Packages[1])
	}
}

func TestStockPackerBackordersRemainder(t *testing.T) {
	fixture := packerFixture{
		variants: map[string]domain.Variant{
			"v-1": {ID: "v-1", TrackInventory: true},
		},
		locations: []domain.StockLocation{{ID: "loc-1", Priority: 1, Active: true}},
		stock: map[string]domain.StockItem{
			"v-1/loc-1": {ID: "si-1", VariantID: "v-1", StockLocationID: "loc-1", CountOnHand: 2, Backorderable: true},
		},
	}
	packer := newTestPacker(t, fixture.deps())

	order := Order{LineItems: []LineItem{{ID: "li-1", VariantID: "v-1", Quantity: 5}}}
	result, err := packer.Pack(context.Background(), order)
	if err != nil {
		t.Fatalf("Pack returned error: %v", err)
	}
	if len(result.InsufficientStock) != 0 {
		t.Fatalf("unexpected shortfalls: %v", result.InsufficientStock)
	}
	pkg := result.Packages[0]
	if pkg.OnHandQuantity() != 2 || pkg.BackorderedQuantity() != 3 {
		t.Fatalf("expected 2 on hand and 3 backordered, got %+v", pkg)
	}
}

func TestStockPackerReportsShortfall(t *testing.T) {
	fixture := packerFixture{
		variants: map[string]domain.Variant{
			"v-1": {ID: "v-1", TrackInventory: true},
		},
		locations: []domain.StockLocation{{ID: "loc-1", Priority: 1, Active: true}},
		stock: map[string]domain.StockItem{
			"v-1/loc-1": {ID: "si-1", VariantID: "v-1", StockLocationID: "loc-1", CountOnHand: 2, Backorderable: false},
		},
	}
	packer := newTestPacker(t, fixture.deps())

	order := Order{LineItems: []LineItem{{ID: "li-1", VariantID: "v-1", Quantity: 5}}}
	result, err := packer.Pack(context.Background(), order)
	if err != nil {
		t.Fatalf("Pack returned error: %v", err)
	}
	if len(result.InsufficientStock) != 1 {
		t.Fatalf("expected one shortfall, got %v", result.InsufficientStock)
	}
	short := result.InsufficientStock[0]
	if short.LineItemID != "li-1" || short.VariantID != "v-1" || short.Requested != 5 || short.Missing != 3 {
		t.Fatalf("unexpected shortfall %+v", short)
	}
	// The covered part still packs.
	if result.Packages[0].OnHandQuantity() != 2 {
		t.Fatalf("expected partial package, got %+v", result.Packages[0])
	}
}

func TestStockPackerUntrackedVariantPacksFromPrimary(t *testing.T) {
	fixture := packerFixture{
		variants: map[string]domain.Variant{
			"v-1": {ID: "v-1", TrackInventory: false},
		},
		locations: []domain.StockLocation{
			{ID: "loc-1", Priority: 1, Active: true},
			{ID: "loc-2", Priority: 2, Active: true},
		},
	}
	packer := newTestPacker(t, fixture.deps())

	order := Order{LineItems: []LineItem{{ID: "li-1", VariantID: "v-1", Quantity: 4}}}
	result, err := packer.Pack(context.Background(), order)
	if err != nil {
		t.Fatalf("Pack returned error: %v", err)
	}
	if len(result.Packages) != 1 || result.Packages[0].StockLocationID != "loc-1" {
		t.Fatalf("expected single package at primary location, got %+v", result.Packages)
	}
	if result.Packages[0].OnHandQuantity() != 4 {
		t.Fatalf("expected 4 on hand, got %+v", result.Packages[0])
	}
}

func TestStockPackerTrackingDisabledIgnoresStock(t *testing.T) {
	fixture := packerFixture{
		variants: map[string]domain.Variant{
			"v-1": {ID: "v-1", TrackInventory: true},
		},
		locations: []domain.StockLocation{{ID: "loc-1", Priority: 1, Active: true}},
	}
	deps := fixture.deps()
	deps.TrackInventoryLevels = false
	deps.StockItems = &stubStockItemRepo{
		findForVariantFn: func(ctx context.Context, variantID, stockLocationID string) (domain.StockItem, error) {
			t.Fatalf("stock must not be consulted when tracking is disabled")
			return domain.StockItem{}, nil
		},
	}
	packer := newTestPacker(t, deps)

	order := Order{LineItems: []LineItem{{ID: "li-1", VariantID: "v-1", Quantity: 2}}}
	result, err := packer.Pack(context.Background(), order)
	if err != nil {
		t.Fatalf("Pack returned error: %v", err)
	}
	if result.Packages[0].OnHandQuantity() != 2 {
		t.Fatalf("expected 2 on hand, got %+v", result.Packages[0])
	}
}

func TestStockPackerErrors(t *testing.T) {
	fixture := packerFixture{
		variants:  map[string]domain.Variant{"v-1": {ID: "v-1"}},
		locations: []domain.StockLocation{{ID: "loc-1", Active: true}},
	}

	t.Run("empty order", func(t *testing.T) {
		packer := newTestPacker(t, fixture.deps())
		if _, err := packer.Pack(context.Background(), Order{}); !errors.Is(err, ErrPackerInvalidInput) {
			t.Fatalf("expected ErrPackerInvalidInput, got %v", err)
		}
	})

	t.Run("no active locations", func(t *testing.T) {
		deps := fixture.deps()
		deps.StockLocations = &stubLocationRepo{
			listActiveFn: func(ctx context.Context) ([]domain.StockLocation, error) { return nil, nil },
		}
		packer := newTestPacker(t, deps)
		order := Order{LineItems: []LineItem{{ID: "li-1", VariantID: "v-1", Quantity: 1}}}
		if _, err := packer.Pack(context.Background(), order); !errors.Is(err, ErrPackerNoLocations) {
			t.Fatalf("expected ErrPackerNoLocations, got %v", err)
		}
	})
}

func TestWeightSplitterSubdividesOverweightPackages(t *testing.T) {
	splitter := NewWeightSplitter(1000)
	heavy := domain.Variant{ID: "v-1", WeightGrams: 400}
	pkg := Package{
		StockLocationID: "loc-1",
		Contents: []PackageItem{
			{Variant: heavy, LineItemID: "li-1", Quantity: 1, State: domain.PackageOnHand},
			{Variant: heavy, LineItemID: "li-2", Quantity: 1, State: domain.PackageOnHand},
			{Variant: heavy, LineItemID: "li-3", Quantity: 1, State: domain.PackageOnHand},
		},
	}

	out := splitter.Split([]Package{pkg})
	if len(out) != 2 {
		t.Fatalf("expected 2 packages, got %d", len(out))
	}
	for _, p := range out {
		if p.WeightGrams() > 1000 {
			t.Fatalf("package over limit: %d grams", p.WeightGrams())
		}
		if p.StockLocationID != "loc-1" {
			t.Fatalf("split lost the location: %+v", p)
		}
	}
	if out[0].Quantity()+out[1].Quantity() != pkg.Quantity() {
		t.Fatalf("split changed total quantity")
	}
}

func TestWeightSplitterLeavesConformingPackagesAlone(t *testing.T) {
	splitter := NewWeightSplitter(1000)
	light := Package{
		StockLocationID: "loc-1",
		Contents: []PackageItem{
			{Variant: domain.Variant{ID: "v-1", WeightGrams: 100}, Quantity: 2, State: domain.PackageOnHand},
		},
	}

	out := splitter.Split([]Package{light})
	if len(out) != 1 || out[0].WeightGrams() != 200 {
		t.Fatalf("expected pass-through, got %+v", out)
	}
}

func TestWeightSplitterCannotReduceSingleItem(t *testing.T) {
	splitter := NewWeightSplitter(1000)
	// One content item over the limit passes through unchanged.
	oversize := Package{
		StockLocationID: "loc-1",
		Contents: []PackageItem{
			{Variant: domain.Variant{ID: "v-1", WeightGrams: 900}, Quantity: 3, State: domain.PackageOnHand},
		},
	}

	out := splitter.Split([]Package{oversize})
	if len(out) != 1 || out[0].Quantity() != 3 {
		t.Fatalf("expected single oversize package, got %+v", out)
	}
}

func TestStockPackerAppliesWeightSplitter(t *testing.T) {
	fixture := packerFixture{
		variants: map[string]domain.Variant{
			"v-1": {ID: "v-1", TrackInventory: true, WeightGrams: 600},
			"v-2": {ID: "v-2", TrackInventory: true, WeightGrams: 600},
		},
		locations: []domain.StockLocation{{ID: "loc-1", Priority: 1, Active: true}},
		stock: map[string]domain.StockItem{
			"v-1/loc-1": {ID: "si-1", VariantID: "v-1", StockLocationID: "loc-1", CountOnHand: 10},
			"v-2/loc-1": {ID: "si-2", VariantID: "v-2", StockLocationID: "loc-1", CountOnHand: 10},
		},
	}
	deps := fixture.deps()
	deps.Splitters = []Splitter{NewWeightSplitter(1000)}
	packer := newTestPacker(t, deps)

	order := Order{LineItems: []LineItem{
		{ID: "li-1", VariantID: "v-1", Quantity: 1},
		{ID: "li-2", VariantID: "v-2", Quantity: 1},
	}}
	result, err := packer.Pack(context.Background(), order)
	if err != nil {
		t.Fatalf("Pack returned error: %v", err)
	}
	if len(result.Packages) != 2 {
		t.Fatalf("expected the splitter to produce 2 packages, got %d", len(result.Packages))
	}
}
