// Package pricing turns a property area and an account's pricing
// configuration into a price. Everything here is pure: no I/O, no shared
// mutable state, and a fresh result per call, so functions may be called
// concurrently without coordination.
package pricing

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"greenquote/internal/types"
)

// currencyPlaces is the number of decimal places in the smallest currency unit.
const currencyPlaces = 2

// PriceResult is the area-based price and how it was banded. Flat and tiered
// pricing return the same shape.
type PriceResult struct {
	TotalPrice decimal.Decimal    `json:"total_price"`
	Breakdown  []types.BandResult `json:"breakdown"`
}

func emptyResult() PriceResult {
	return PriceResult{TotalPrice: decimal.Zero, Breakdown: []types.BandResult{}}
}

// round2 rounds half away from zero to cents. Prices are never negative in a
// valid configuration, so this is half-up.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(currencyPlaces)
}

// SortTiers returns a copy of tiers ordered by ascending upper bound with
// unbounded tiers last. The input is not modified.
func SortTiers(tiers []types.PricingTier) []types.PricingTier {
	sorted := types.CloneTiers(tiers)
	slices.SortStableFunc(sorted, func(a, b types.PricingTier) int {
		switch {
		case a.IsUnbounded() && b.IsUnbounded():
			return 0
		case a.IsUnbounded():
			return 1
		case b.IsUnbounded():
			return -1
		default:
			return a.UpToArea.Cmp(*b.UpToArea)
		}
	})
	return sorted
}

// ComputeTieredPrice bills totalArea across the tier bands. Each band only
// bills the area that falls inside it; the total is rounded once at the end.
//
// Zero or negative area prices at zero with an empty breakdown. Tiers may
// arrive in any order; only the first unbounded tier after sorting is used.
// Area past the last boundary of a schedule with no unbounded tier is not
// billed here; Compute and ValidateConfiguration reject that configuration.
func ComputeTieredPrice(totalArea decimal.Decimal, tiers []types.PricingTier) PriceResult {
	result := emptyResult()
	if !totalArea.IsPositive() {
		return result
	}

	remaining := totalArea
	previous := decimal.Zero
	total := decimal.Zero

	for _, tier := range SortTiers(tiers) {
		if !remaining.IsPositive() {
			break
		}

		billed := remaining
		if !tier.IsUnbounded() {
			billed = decimal.Min(remaining, tier.UpToArea.Sub(previous))
		}

		if billed.IsPositive() {
			price := billed.Mul(tier.RatePerUnitArea)
			total = total.Add(price)

			band := types.BandResult{
				RangeStart: previous,
				AreaInBand: billed,
				Rate:       tier.RatePerUnitArea,
				Price:      round2(price),
			}
			if !tier.IsUnbounded() {
				end := *tier.UpToArea
				band.RangeEnd = &end
			}
			result.Breakdown = append(result.Breakdown, band)
			remaining = remaining.Sub(billed)
		}

		if tier.IsUnbounded() {
			break
		}
		previous = decimal.Max(previous, *tier.UpToArea)
	}

	result.TotalPrice = round2(total)
	return result
}

// ComputeFlatPrice bills the whole area at one rate. The breakdown holds a
// single open band so callers need not care which mode produced it.
func ComputeFlatPrice(totalArea, rate decimal.Decimal) PriceResult {
	result := emptyResult()
	if !totalArea.IsPositive() {
		return result
	}

	price := totalArea.Mul(rate)
	result.TotalPrice = round2(price)
	result.Breakdown = append(result.Breakdown, types.BandResult{
		RangeStart: decimal.Zero,
		AreaInBand: totalArea,
		Rate:       rate,
		Price:      round2(price),
	})
	return result
}

// Compute prices area under cfg. In tiered mode the schedule is checked
// first: an unusable schedule, or one that cannot cover area, yields a
// *ConfigurationError rather than a misleading number.
func Compute(cfg types.PricingConfiguration, area decimal.Decimal) (PriceResult, error) {
	if !cfg.UseTieredPricing {
		return ComputeFlatPrice(area, cfg.FlatRatePerUnitArea), nil
	}

	if err := ValidateTiers(cfg.Tiers); err != nil {
		return PriceResult{}, err
	}
	if err := checkCoverage(cfg.Tiers, area); err != nil {
		return PriceResult{}, err
	}
	return ComputeTieredPrice(area, cfg.Tiers), nil
}

// checkCoverage rejects an area that extends beyond a schedule with no
// unbounded tier.
func checkCoverage(tiers []types.PricingTier, area decimal.Decimal) error {
	sorted := SortTiers(tiers)
	if len(sorted) == 0 || sorted[len(sorted)-1].IsUnbounded() {
		return nil
	}
	last := *sorted[len(sorted)-1].UpToArea
	if area.GreaterThan(last) {
		e := &ConfigurationError{}
		e.add(IssueUncoveredArea, "tiers", -1, fmt.Sprintf(
			"area %s exceeds the highest tier boundary %s and no unlimited tier is configured", area, last))
		return e
	}
	return nil
}
