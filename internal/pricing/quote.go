package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"greenquote/internal/types"
)

// QuoteInput is what a prospect selected.
type QuoteInput struct {
	Area       decimal.Decimal
	AreaSource types.AreaSource
	Service    string
	AddOnIDs   []string
	Frequency  types.Frequency
}

// QuoteResult is a fully priced quote before persistence.
type QuoteResult struct {
	PricingMode   types.PricingMode     `json:"pricing_mode"`
	Area          decimal.Decimal       `json:"area"`
	AreaSource    types.AreaSource      `json:"area_source"`
	AreaPrice     PriceResult           `json:"area_price"`
	BaseFee       decimal.Decimal       `json:"base_fee"`
	BasePrice     decimal.Decimal       `json:"base_price"`
	FloorApplied  bool                  `json:"floor_applied"`
	AddOns        []types.SelectedAddOn `json:"add_ons"`
	IgnoredAddOns []string              `json:"ignored_add_ons,omitempty"`
	AddOnsTotal   decimal.Decimal       `json:"add_ons_total"`
	Frequency     types.Frequency       `json:"frequency"`
	Multiplier    decimal.Decimal       `json:"multiplier"`
	PricePerVisit decimal.Decimal       `json:"price_per_visit"`
	// MonthlyEstimate is nil for one-time service.
	MonthlyEstimate *decimal.Decimal `json:"monthly_estimate"`
}

// HasMonthlyEstimate reports whether the quote recurs.
func (r QuoteResult) HasMonthlyEstimate() bool {
	return r.MonthlyEstimate != nil
}

// Multiplier returns the frequency factor cfg applies to f, falling back to
// the default table when the account has not overridden it.
func Multiplier(cfg types.PricingConfiguration, f types.Frequency) (decimal.Decimal, error) {
	if !f.IsValid() {
		return decimal.Zero, types.NewAppError(types.ErrCodeValidationInvalidFreq,
			fmt.Sprintf("unknown frequency %q", f), nil)
	}
	if m, ok := cfg.FrequencyMultipliers[f]; ok {
		return m, nil
	}
	return DefaultFrequencyMultipliers()[f], nil
}

// AssembleQuote prices a quote:
//
//	basePrice = max(areaPrice + baseFee, minPricePerVisit)
//	perVisit  = round2((basePrice + addOnsTotal) * multiplier)
//	monthly   = round2(perVisit * visitsPerMonth)
//
// The minimum is applied before add-ons, so the advertised minimum is always
// the bare service. Selected add-ons that are unknown or disabled are not
// charged and are listed in IgnoredAddOns.
func AssembleQuote(cfg types.PricingConfiguration, in QuoteInput) (QuoteResult, error) {
	multiplier, err := Multiplier(cfg, in.Frequency)
	if err != nil {
		return QuoteResult{}, err
	}

	areaPrice, err := Compute(cfg, in.Area)
	if err != nil {
		return QuoteResult{}, err
	}

	result := QuoteResult{
		PricingMode: cfg.Mode(),
		Area:        in.Area,
		AreaSource:  in.AreaSource,
		AreaPrice:   areaPrice,
		BaseFee:     cfg.BaseFee,
		Frequency:   in.Frequency,
		Multiplier:  multiplier,
		AddOns:      []types.SelectedAddOn{},
		AddOnsTotal: decimal.Zero,
	}
	if !in.Area.IsPositive() {
		result.Area = decimal.Zero
	}

	base := areaPrice.TotalPrice.Add(cfg.BaseFee)
	if base.LessThan(cfg.MinPricePerVisit) {
		base = cfg.MinPricePerVisit
		result.FloorApplied = true
	}
	result.BasePrice = base

	catalog := make(map[string]types.AddOn, len(cfg.AddOns))
	for _, a := range cfg.AddOns {
		catalog[a.ID] = a
	}
	charged := make(map[string]bool, len(in.AddOnIDs))
	for _, id := range in.AddOnIDs {
		addOn, ok := catalog[id]
		if !ok || !addOn.Enabled || charged[id] {
			result.IgnoredAddOns = append(result.IgnoredAddOns, id)
			continue
		}
		charged[id] = true
		result.AddOns = append(result.AddOns, types.SelectedAddOn{
			ID:            addOn.ID,
			Label:         addOn.Label,
			PricePerVisit: addOn.PricePerVisit,
		})
		result.AddOnsTotal = result.AddOnsTotal.Add(addOn.PricePerVisit)
	}

	result.PricePerVisit = round2(base.Add(result.AddOnsTotal).Mul(multiplier))

	if visits, ok := VisitsPerMonth(in.Frequency); ok {
		monthly := round2(result.PricePerVisit.Mul(visits))
		result.MonthlyEstimate = &monthly
	}

	return result, nil
}

// BuildQuote turns a priced result into a pending Quote carrying a snapshot
// of the configuration it was priced with.
func BuildQuote(cfg types.PricingConfiguration, in QuoteInput, result QuoteResult) types.Quote {
	q := types.Quote{
		Area:             result.Area,
		AreaSource:       in.AreaSource,
		Service:          in.Service,
		AddOns:           types.SelectedAddOns(result.AddOns),
		Frequency:        result.Frequency,
		PricingMode:      result.PricingMode,
		TiersSnapshot:    types.TierSnapshot(types.CloneTiers(cfg.Tiers)),
		FlatRateSnapshot: cfg.FlatRatePerUnitArea,
		Breakdown:        types.Breakdown(result.AreaPrice.Breakdown),
		AreaPrice:        result.AreaPrice.TotalPrice,
		BasePrice:        result.BasePrice,
		AddOnsTotal:      result.AddOnsTotal,
		PricePerVisit:    result.PricePerVisit,
		Status:           types.QuoteStatusPending,
	}
	if result.MonthlyEstimate != nil {
		m := *result.MonthlyEstimate
		q.MonthlyEstimate = &m
	}
	if q.TiersSnapshot == nil {
		q.TiersSnapshot = types.TierSnapshot{}
	}
	return q
}
