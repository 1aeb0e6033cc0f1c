package services

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/atelier-goods/api/internal/domain"
	"github.com/atelier-goods/api/internal/repositories"
)

// DefaultPackageWeightLimitGrams bounds a single package's shipping weight
// before the weight splitter subdivides it.
const DefaultPackageWeightLimitGrams = 15000

// maxSplitRounds caps the splitter fixed-point loop; each round either
// shrinks some package or leaves the set unchanged, so the cap is never hit
// in practice.
const maxSplitRounds = 16

var (
	// ErrPackerInvalidInput signals the caller provided invalid arguments.
	ErrPackerInvalidInput = errors.New("stock packer: invalid input")
	// ErrPackerNoLocations indicates no active stock location exists.
	ErrPackerNoLocations = errors.New("stock packer: no active stock locations")
)

// Splitter is a policy object that may subdivide packages violating a
// constraint. Implementations must return a conforming input set unchanged.
type Splitter interface {
	Split(packages []Package) []Package
}

// StockPackerDeps bundles the collaborators required to construct a packer.
type StockPackerDeps struct {
	StockItems     repositories.StockItemRepository
	StockLocations repositories.StockLocationRepository
	Variants       repositories.VariantRepository
	Splitters      []Splitter
	// TrackInventoryLevels mirrors the global setting; when false the
	// packer never consults stock counts.
	TrackInventoryLevels bool
	Logger               func(ctx context.Context, event string, fields map[string]any)
}

type stockPacker struct {
	stockItems     repositories.StockItemRepository
	stockLocations repositories.StockLocationRepository
	variants       repositories.VariantRepository
	splitters      []Splitter
	trackInventory bool
	logger         func(context.Context, string, map[string]any)
}

// NewStockPacker wires dependencies into a concrete StockPacker. When no
// splitters are supplied the weight splitter with the default limit is used.
func NewStockPacker(deps StockPackerDeps) (StockPacker, error) {
	if deps.StockItems == nil {
		return nil, errors.New("stock packer: stock item repository is required")
	}
	if deps.StockLocations == nil {
		return nil, errors.New("stock packer: stock location repository is required")
	}
	if deps.Variants == nil {
		return nil, errors.New("stock packer: variant repository is required")
	}
	splitters := deps.Splitters
	if len(splitters) == 0 {
		splitters = []Splitter{NewWeightSplitter(DefaultPackageWeightLimitGrams)}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &stockPacker{
		stockItems:     deps.StockItems,
		stockLocations: deps.StockLocations,
		variants:       deps.Variants,
		splitters:      splitters,
		trackInventory: deps.TrackInventoryLevels,
		logger:         logger,
	}, nil
}

func (p *stockPacker) Pack(ctx context.Context, order Order) (PackResult, error) {
	if len(order.LineItems) == 0 {
		return PackResult{}, fmt.Errorf("%w: order has no line items", ErrPackerInvalidInput)
	}

	locations, err := p.stockLocations.ListActive(ctx)
	if err != nil {
		return PackResult{}, err
	}
	if len(locations) == 0 {
		return PackResult{}, ErrPackerNoLocations
	}

	builders := make(map[string]*Package, len(locations))
	ordered := make([]string, 0, len(locations))
	packageFor := func(locationID string) *Package {
		pkg, ok := builders[locationID]
		if !ok {
			pkg = &Package{StockLocationID: locationID}
			builders[locationID] = pkg
			ordered = append(ordered, locationID)
		}
		return pkg
	}

	var shortfalls []InsufficientStockLine
	for _, li := range order.LineItems {
		variant, err := p.variants.FindByID(ctx, li.VariantID)
		if err != nil {
			return PackResult{}, err
		}

		if !p.trackInventory || !variant.TrackInventory {
			// Untracked variants always pack on hand from the primary location.
			appendContents(packageFor(locations[0].ID), variant, li, li.Quantity, domain.PackageOnHand)
			continue
		}

		remaining := li.Quantity
		lastStocked := StockItem{}
		haveStocked := false
		for _, location := range locations {
			if remaining == 0 {
				break
			}
			item, err := p.stockItems.FindForVariant(ctx, variant.ID, location.ID)
			if err != nil {
				if repositories.IsNotFound(err) {
					continue
				}
				return PackResult{}, err
			}
			lastStocked = item
			haveStocked = true
			available := item.CountOnHand
			if available <= 0 {
				continue
			}
			take := remaining
			if take > available {
				take = available
			}
			appendContents(packageFor(location.ID), variant, li, take, domain.PackageOnHand)
			remaining -= take
		}

		if remaining > 0 {
			if haveStocked && lastStocked.Backorderable {
				appendContents(packageFor(lastStocked.StockLocationID), variant, li, remaining, domain.PackageBackordered)
			} else {
				shortfalls = append(shortfalls, InsufficientStockLine{
					LineItemID: li.ID,
					VariantID:  variant.ID,
					Requested:  li.Quantity,
					Missing:    remaining,
				})
			}
		}
	}

	packages := make([]Package, 0, len(ordered))
	for _, locationID := range ordered {
		pkg := builders[locationID]
		if !pkg.Empty() {
			packages = append(packages, *pkg)
		}
	}

	packages = p.runSplitters(ctx, packages)

	return PackResult{Packages: packages, InsufficientStock: shortfalls}, nil
}

// runSplitters applies the splitter chain to a fixed point. Every splitter
// must leave conforming packages unchanged, so the loop terminates as soon as
// a full round produces no change.
func (p *stockPacker) runSplitters(ctx context.Context, packages []Package) []Package {
	for round := 0; round < maxSplitRounds; round++ {
		next := packages
		for _, splitter := range p.splitters {
			next = splitter.Split(next)
		}
		if packagesEqual(next, packages) {
			return next
		}
		packages = next
	}
	p.logger(ctx, "packer.split_rounds_exhausted", map[string]any{"packages": len(packages)})
	return packages
}

func appendContents(pkg *Package, variant Variant, li LineItem, quantity int, state domain.PackageItemState) {
	if quantity <= 0 {
		return
	}
	pkg.Contents = append(pkg.Contents, PackageItem{
		Variant:    variant,
		LineItemID: li.ID,
		Quantity:   quantity,
		State:      state,
	})
}

func packagesEqual(a, b []Package) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].StockLocationID != b[i].StockLocationID || len(a[i].Contents) != len(b[i].Contents) {
			return false
		}
		for j := range a[i].Contents {
			ac, bc := a[i].Contents[j], b[i].Contents[j]
			if ac.Variant.ID != bc.Variant.ID || ac.LineItemID != bc.LineItemID ||
				ac.Quantity != bc.Quantity || ac.State != bc.State {
				return false
			}
		}
	}
	return true
}

// WeightSplitter subdivides packages whose total weight exceeds the limit.
// It works at content-item granularity: a package holding a single content
// item cannot be reduced and passes through even when overweight.
type WeightSplitter struct {
	LimitGrams int
}

// NewWeightSplitter returns a weight splitter with the given limit; a
// non-positive limit falls back to the default.
func NewWeightSplitter(limitGrams int) WeightSplitter {
	if limitGrams <= 0 {
		limitGrams = DefaultPackageWeightLimitGrams
	}
	return WeightSplitter{LimitGrams: limitGrams}
}

// Split implements Splitter.
func (w WeightSplitter) Split(packages []Package) []Package {
	out := make([]Package, 0, len(packages))
	for _, pkg := range packages {
		if pkg.WeightGrams() <= w.LimitGrams || len(pkg.Contents) <= 1 {
			out = append(out, pkg)
			continue
		}
		out = append(out, w.reduce(pkg)...)
	}
	return out
}

// reduce greedily bins content items so each resulting package stays under
// the limit; every split strictly reduces package size because each bin
// receives at least one content item.
func (w WeightSplitter) reduce(pkg Package) []Package {
	var result []Package
	current := Package{StockLocationID: pkg.StockLocationID}
	for _, item := range pkg.Contents {
		itemWeight := item.Variant.WeightGrams * item.Quantity
		if len(current.Contents) > 0 && current.WeightGrams()+itemWeight > w.LimitGrams {
			result = append(result, current)
			current = Package{StockLocationID: pkg.StockLocationID}
		}
		current.Contents = append(current.Contents, item)
	}
	if len(current.Contents) > 0 {
		result = append(result, current)
	}
	return result
}
