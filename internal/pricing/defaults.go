package pricing

import (
	"github.com/shopspring/decimal"

	"greenquote/internal/types"
)

// Documented account defaults. New accounts, the CLI, and fallbacks all
// derive from these values.
var (
	DefaultMinPricePerVisit = decimal.NewFromInt(50)
	DefaultFlatRate         = decimal.RequireFromString("0.10")
	DefaultBaseFee          = decimal.Zero
)

// defaultTierSchedule is the single source of the default volume-discount
// schedule. An empty upTo marks the unbounded band.
var defaultTierSchedule = []struct {
	upTo string
	rate string
}{
	{upTo: "5000", rate: "0.012"},
	{upTo: "20000", rate: "0.008"},
	{upTo: "", rate: "0.005"},
}

// DefaultTiers returns a fresh copy of the default tier schedule:
// up to 5,000 @ 0.012, up to 20,000 @ 0.008, and everything above @ 0.005.
func DefaultTiers() []types.PricingTier {
	tiers := make([]types.PricingTier, 0, len(defaultTierSchedule))
	for _, row := range defaultTierSchedule {
		rate := decimal.RequireFromString(row.rate)
		if row.upTo == "" {
			tiers = append(tiers, types.UnboundedTier(rate))
			continue
		}
		tiers = append(tiers, types.BoundedTier(decimal.RequireFromString(row.upTo), rate))
	}
	return tiers
}

// DefaultFrequencyMultipliers returns the default per-visit discount factors.
func DefaultFrequencyMultipliers() map[types.Frequency]decimal.Decimal {
	return map[types.Frequency]decimal.Decimal{
		types.FrequencyOneTime:  decimal.NewFromInt(1),
		types.FrequencyWeekly:   decimal.RequireFromString("0.85"),
		types.FrequencyBiWeekly: decimal.RequireFromString("0.95"),
		types.FrequencyMonthly:  decimal.NewFromInt(1),
	}
}

// visitsPerMonth is the fixed visit count used for monthly estimates.
// One-time service has no entry.
var visitsPerMonth = map[types.Frequency]decimal.Decimal{
	types.FrequencyWeekly:   decimal.RequireFromString("4.33"),
	types.FrequencyBiWeekly: decimal.RequireFromString("2.17"),
	types.FrequencyMonthly:  decimal.NewFromInt(1),
}

// VisitsPerMonth returns the monthly visit count for f. ok is false for
// frequencies without a monthly estimate.
func VisitsPerMonth(f types.Frequency) (visits decimal.Decimal, ok bool) {
	visits, ok = visitsPerMonth[f]
	return visits, ok
}

// DefaultConfiguration is the pricing configuration written for every newly
// provisioned account.
func DefaultConfiguration() types.PricingConfiguration {
	return types.PricingConfiguration{
		UseTieredPricing:     true,
		FlatRatePerUnitArea:  DefaultFlatRate,
		Tiers:                DefaultTiers(),
		MinPricePerVisit:     DefaultMinPricePerVisit,
		BaseFee:              DefaultBaseFee,
		AddOns:               []types.AddOn{},
		FrequencyMultipliers: DefaultFrequencyMultipliers(),
	}
}
