package domain

import (
	"errors"
	"fmt"
	"math"
)

// CalculatorKind tags the closed set of cost calculators. The set is fixed at
// the core level; unknown kinds surface as errors rather than panics so
// estimation can degrade gracefully.
type CalculatorKind string

const (
	// CalcFlatRate returns a fixed amount regardless of the computable.
	CalcFlatRate CalculatorKind = "flat_rate"
	// CalcFlatPercent returns a percentage of the computable's amount.
	CalcFlatPercent CalculatorKind = "flat_percent"
	// CalcPerItem returns a fixed amount per unit.
	CalcPerItem CalculatorKind = "per_item"
)

// ErrCalculatorUnavailable signals the calculator cannot produce a cost for
// the given input.
var ErrCalculatorUnavailable = errors.New("calculator: unavailable")

// Calculator computes monetary amounts for promotion actions and shipping
// methods. A zero-value Calculator is invalid.
type Calculator struct {
	Kind     CalculatorKind
	Currency string
	Amount   int64
	Percent  float64
}

// ComputeOrder returns the discount base amount for an order-level promotion.
func (c Calculator) ComputeOrder(order Order) int64 {
	switch c.Kind {
	case CalcFlatRate:
		return c.Amount
	case CalcFlatPercent:
		return percentOf(order.ItemTotal, c.Percent)
	case CalcPerItem:
		quantity := 0
		for _, li := range order.LineItems {
			quantity += li.Quantity
		}
		return c.Amount * int64(quantity)
	default:
		return 0
	}
}

// ComputeLineItem returns the discount base amount for a line-item promotion.
func (c Calculator) ComputeLineItem(li LineItem) int64 {
	switch c.Kind {
	case CalcFlatRate:
		return c.Amount
	case CalcFlatPercent:
		return percentOf(li.Amount(), c.Percent)
	case CalcPerItem:
		return c.Amount * int64(li.Quantity)
	default:
		return 0
	}
}

// ComputePackage returns the shipping cost for a package. Unknown kinds and
// empty packages for per-item calculators report ErrCalculatorUnavailable.
func (c Calculator) ComputePackage(pkg Package) (int64, error) {
	switch c.Kind {
	case CalcFlatRate:
		return c.Amount, nil
	case CalcFlatPercent:
		base := int64(0)
		for _, item := range pkg.Contents {
			base += item.Variant.Price * int64(item.Quantity)
		}
		return percentOf(base, c.Percent), nil
	case CalcPerItem:
		if pkg.Empty() {
			return 0, ErrCalculatorUnavailable
		}
		return c.Amount * int64(pkg.Quantity()), nil
	default:
		return 0, fmt.Errorf("%w: unknown kind %q", ErrCalculatorUnavailable, c.Kind)
	}
}

// AvailableFor reports whether the calculator can serve the package at all.
func (c Calculator) AvailableFor(pkg Package) bool {
	switch c.Kind {
	case CalcFlatRate, CalcFlatPercent:
		return true
	case CalcPerItem:
		return !pkg.Empty()
	default:
		return false
	}
}

// TaxOn returns the tax amount the rate levies on base. Included-in-price
// rates back the tax out of the base; additional rates apply on top.
func (r TaxRate) TaxOn(base int64) int64 {
	if base <= 0 || r.Amount <= 0 {
		return 0
	}
	if r.IncludedInPrice {
		return base - int64(math.Round(float64(base)/(1+r.Amount)))
	}
	return int64(math.Round(float64(base) * r.Amount))
}

func percentOf(amount int64, percent float64) int64 {
	if amount <= 0 || percent <= 0 {
		return 0
	}
	return int64(math.Round(float64(amount) * percent / 100))
}
