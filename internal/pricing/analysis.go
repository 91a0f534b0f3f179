package pricing

import (
	"github.com/shopspring/decimal"

	"greenquote/internal/types"
)

const ratePlaces = 6

var hundred = decimal.NewFromInt(100)

// EffectiveRate is the blended per-unit rate a customer pays for area under
// the tier schedule, rounded to six places. Zero area has a zero rate.
func EffectiveRate(area decimal.Decimal, tiers []types.PricingTier) decimal.Decimal {
	if !area.IsPositive() {
		return decimal.Zero
	}
	total := ComputeTieredPrice(area, tiers).TotalPrice
	return total.DivRound(area, ratePlaces)
}

// Comparison contrasts tiered and flat pricing for the same area.
type Comparison struct {
	Area          decimal.Decimal   `json:"area"`
	TieredPrice   decimal.Decimal   `json:"tiered_price"`
	FlatPrice     decimal.Decimal   `json:"flat_price"`
	EffectiveRate decimal.Decimal   `json:"effective_rate"`
	FlatRate      decimal.Decimal   `json:"flat_rate"`
	Difference    decimal.Decimal   `json:"difference"`
	SavingsPct    decimal.Decimal   `json:"savings_percent"`
	Cheaper       types.PricingMode `json:"cheaper"`
}

// ComparePricing prices area both ways using cfg's tiers and flat rate,
// regardless of which mode cfg has switched on. Difference is flat minus
// tiered; SavingsPct is that difference as a share of the flat price.
func ComparePricing(area decimal.Decimal, cfg types.PricingConfiguration) (Comparison, error) {
	tieredCfg := cfg
	tieredCfg.UseTieredPricing = true
	tiered, err := Compute(tieredCfg, area)
	if err != nil {
		return Comparison{}, err
	}
	flat := ComputeFlatPrice(area, cfg.FlatRatePerUnitArea)

	c := Comparison{
		Area:          area,
		TieredPrice:   tiered.TotalPrice,
		FlatPrice:     flat.TotalPrice,
		EffectiveRate: EffectiveRate(area, cfg.Tiers),
		FlatRate:      cfg.FlatRatePerUnitArea,
		Difference:    flat.TotalPrice.Sub(tiered.TotalPrice),
		SavingsPct:    decimal.Zero,
		Cheaper:       types.PricingModeTiered,
	}
	if flat.TotalPrice.IsPositive() {
		c.SavingsPct = c.Difference.Mul(hundred).DivRound(flat.TotalPrice, currencyPlaces)
	}
	if flat.TotalPrice.LessThan(tiered.TotalPrice) {
		c.Cheaper = types.PricingModeFlat
	}
	return c, nil
}
