package domain

import (
	"errors"
	"testing"
)

func TestCalculatorComputeOrder(t *testing.T) {
	order := Order{
		ItemTotal: 10000,
		LineItems: []LineItem{
			{Quantity: 2},
			{Quantity: 3},
		},
	}

	cases := []struct {
		name string
		calc Calculator
		want int64
	}{
		{"flat rate", Calculator{Kind: CalcFlatRate, Amount: 500}, 500},
		{"flat percent", Calculator{Kind: CalcFlatPercent, Percent: 10}, 1000},
		{"per item", Calculator{Kind: CalcPerItem, Amount: 100}, 500},
		{"unknown kind", Calculator{Kind: "mystery"}, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.calc.ComputeOrder(order); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestCalculatorComputeLineItem(t *testing.T) {
	li := LineItem{Quantity: 3, Price: 400}

	if got := (Calculator{Kind: CalcFlatPercent, Percent: 25}).ComputeLineItem(li); got != 300 {
		t.Fatalf("expected 25%% of 1200 = 300, got %d", got)
	}
	if got := (Calculator{Kind: CalcPerItem, Amount: 50}).ComputeLineItem(li); got != 150 {
		t.Fatalf("expected 150, got %d", got)
	}
}

func TestCalculatorComputePackage(t *testing.T) {
	pkg := Package{
		StockLocationID: "loc-1",
		Contents: []PackageItem{
			{Variant: Variant{Price: 1000}, Quantity: 2, State: PackageOnHand},
			{Variant: Variant{Price: 500}, Quantity: 1, State: PackageBackordered},
		},
	}

	if got, err := (Calculator{Kind: CalcFlatRate, Amount: 700}).ComputePackage(pkg); err != nil || got != 700 {
		t.Fatalf("flat rate: got %d err %v", got, err)
	}
	if got, err := (Calculator{Kind: CalcFlatPercent, Percent: 10}).ComputePackage(pkg); err != nil || got != 250 {
		t.Fatalf("flat percent: expected 10%% of 2500 = 250, got %d err %v", got, err)
	}
	if got, err := (Calculator{Kind: CalcPerItem, Amount: 150}).ComputePackage(pkg); err != nil || got != 450 {
		t.Fatalf("per item: expected 450, got %d err %v", got, err)
	}

	if _, err := (Calculator{Kind: CalcPerItem, Amount: 150}).ComputePackage(Package{}); !errors.Is(err, ErrCalculatorUnavailable) {
		t.Fatalf("expected unavailable for empty per-item package, got %v", err)
	}
	if _, err := (Calculator{Kind: "mystery"}).ComputePackage(pkg); !errors.Is(err, ErrCalculatorUnavailable) {
		t.Fatalf("expected unavailable for unknown kind, got %v", err)
	}
}

func TestCalculatorAvailableFor(t *testing.T) {
	empty := Package{}
	full := Package{Contents: []PackageItem{{Quantity: 1}}}

	if !(Calculator{Kind: CalcFlatRate}).AvailableFor(empty) {
		t.Fatal("flat rate should serve empty packages")
	}
	if (Calculator{Kind: CalcPerItem}).AvailableFor(empty) {
		t.Fatal("per item should not serve empty packages")
	}
	if !(Calculator{Kind: CalcPerItem}).AvailableFor(full) {
		t.Fatal("per item should serve non-empty packages")
	}
	if (Calculator{Kind: "mystery"}).AvailableFor(full) {
		t.Fatal("unknown kind should serve nothing")
	}
}

func TestTaxRateTaxOn(t *testing.T) {
	additional := TaxRate{Amount: 0.1}
	if got := additional.TaxOn(2200); got != 220 {
		t.Fatalf("expected additional tax 220, got %d", got)
	}

	included := TaxRate{Amount: 0.1, IncludedInPrice: true}
	if got := included.TaxOn(2200); got != 200 {
		t.Fatalf("expected included tax 200, got %d", got)
	}

	if got := additional.TaxOn(0); got != 0 {
		t.Fatalf("expected zero tax on zero base, got %d", got)
	}
	if got := additional.TaxOn(-500); got != 0 {
		t.Fatalf("expected zero tax on negative base, got %d", got)
	}
	if got := (TaxRate{Amount: 0}).TaxOn(1000); got != 0 {
		t.Fatalf("expected zero tax for zero rate, got %d", got)
	}
}

func TestPercentOfRounds(t *testing.T) {
	if got := percentOf(999, 10); got != 100 {
		t.Fatalf("expected 99.9 rounded to 100, got %d", got)
	}
	if got := percentOf(994, 10); got != 99 {
		t.Fatalf("expected 99.4 rounded to 99, got %d", got)
	}
	if got := percentOf(1000, 0); got != 0 {
		t.Fatalf("expected zero for zero percent, got %d", got)
	}
}
