package pricing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenquote/internal/types"
)

func edgingAddOn() types.AddOn {
	return types.AddOn{ID: "edging", Label: "Edging", PricePerVisit: d("15"), Enabled: true}
}

func TestAssembleQuote_FlatWithAddOnBiWeekly(t *testing.T) {
	cfg := types.PricingConfiguration{
		UseTieredPricing:    false,
		FlatRatePerUnitArea: d("0.01"),
		MinPricePerVisit:    d("50"),
		AddOns:              []types.AddOn{edgingAddOn()},
	}

	result, err := AssembleQuote(cfg, QuoteInput{
		Area:       d("10000"),
		AreaSource: types.AreaSourceMeasured,
		AddOnIDs:   []string{"edging"},
		Frequency:  types.FrequencyBiWeekly,
	})
	require.NoError(t, err)

	assert.Equal(t, types.PricingModeFlat, result.PricingMode)
	assertDecimal(t, "100.00", result.AreaPrice.TotalPrice)
	assertDecimal(t, "100.00", result.BasePrice)
	assert.False(t, result.FloorApplied)
	assertDecimal(t, "15", result.AddOnsTotal)
	assertDecimal(t, "0.95", result.Multiplier)
	assertDecimal(t, "109.25", result.PricePerVisit)
	require.True(t, result.HasMonthlyEstimate())
	// 109.25 * 2.17 = 237.0725
	assertDecimal(t, "237.07", *result.MonthlyEstimate)
	require.Len(t, result.AddOns, 1)
	assert.Equal(t, "Edging", result.AddOns[0].Label)
	assert.Empty(t, result.IgnoredAddOns)
}

func TestAssembleQuote_MinimumAppliesBeforeAddOns(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.AddOns = []types.AddOn{edgingAddOn()}

	result, err := AssembleQuote(cfg, QuoteInput{
		Area:      d("1000"),
		AddOnIDs:  []string{"edging"},
		Frequency: types.FrequencyOneTime,
	})
	require.NoError(t, err)

	assertDecimal(t, "12.00", result.AreaPrice.TotalPrice)
	assertDecimal(t, "50", result.BasePrice)
	assert.True(t, result.FloorApplied)
	assertDecimal(t, "65.00", result.PricePerVisit)
	assert.False(t, result.HasMonthlyEstimate())
	assert.Nil(t, result.MonthlyEstimate)
}

func TestAssembleQuote_Frequencies(t *testing.T) {
	tests := []struct {
		freq     types.Frequency
		perVisit string
		monthly  string // "" means no monthly estimate
	}{
		{types.FrequencyOneTime, "100.00", ""},
		{types.FrequencyWeekly, "85.00", "368.05"},
		{types.FrequencyBiWeekly, "95.00", "206.15"},
		{types.FrequencyMonthly, "100.00", "100.00"},
	}

	for _, tt := range tests {
		t.Run(string(tt.freq), func(t *testing.T) {
			result, err := AssembleQuote(DefaultConfiguration(), QuoteInput{
				Area:      d("10000"),
				Frequency: tt.freq,
			})
			require.NoError(t, err)
			assertDecimal(t, tt.perVisit, result.PricePerVisit)
			if tt.monthly == "" {
				assert.Nil(t, result.MonthlyEstimate)
				return
			}
			require.NotNil(t, result.MonthlyEstimate)
			assertDecimal(t, tt.monthly, *result.MonthlyEstimate)
		})
	}
}

func TestAssembleQuote_BaseFeeCountsTowardMinimum(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.BaseFee = d("25")

	result, err := AssembleQuote(cfg, QuoteInput{Area: d("2500"), Frequency: types.FrequencyOneTime})
	require.NoError(t, err)
	// 30 + 25 clears the 50 minimum.
	assertDecimal(t, "55", result.BasePrice)
	assert.False(t, result.FloorApplied)
	assertDecimal(t, "55.00", result.PricePerVisit)
}

func TestAssembleQuote_IgnoresUnknownDisabledAndRepeatedAddOns(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.AddOns = []types.AddOn{
		edgingAddOn(),
		{ID: "aeration", Label: "Aeration", PricePerVisit: d("40"), Enabled: false},
	}

	result, err := AssembleQuote(cfg, QuoteInput{
		Area:      d("10000"),
		AddOnIDs:  []string{"edging", "aeration", "unicorns", "edging"},
		Frequency: types.FrequencyOneTime,
	})
	require.NoError(t, err)

	require.Len(t, result.AddOns, 1)
	assert.Equal(t, "edging", result.AddOns[0].ID)
	assertDecimal(t, "15", result.AddOnsTotal)
	assert.Equal(t, []string{"aeration", "unicorns", "edging"}, result.IgnoredAddOns)
	assertDecimal(t, "115.00", result.PricePerVisit)
}

func TestAssembleQuote_MultiplierOverride(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.FrequencyMultipliers = map[types.Frequency]decimal.Decimal{
		types.FrequencyWeekly: d("0.5"),
	}

	weekly, err := AssembleQuote(cfg, QuoteInput{Area: d("10000"), Frequency: types.FrequencyWeekly})
	require.NoError(t, err)
	assertDecimal(t, "50.00", weekly.PricePerVisit)

	// Frequencies without an override fall back to the defaults.
	biWeekly, err := AssembleQuote(cfg, QuoteInput{Area: d("10000"), Frequency: types.FrequencyBiWeekly})
	require.NoError(t, err)
	assertDecimal(t, "95.00", biWeekly.PricePerVisit)
}

func TestAssembleQuote_InvalidFrequency(t *testing.T) {
	for _, f := range []types.Frequency{"", "daily"} {
		_, err := AssembleQuote(DefaultConfiguration(), QuoteInput{Area: d("1000"), Frequency: f})
		var appErr *types.AppError
		require.True(t, errors.As(err, &appErr), "frequency %q", f)
		assert.Equal(t, types.ErrCodeValidationInvalidFreq, appErr.Code)
	}
}

func TestAssembleQuote_ZeroAreaChargesMinimum(t *testing.T) {
	result, err := AssembleQuote(DefaultConfiguration(), QuoteInput{Area: d("-10"), Frequency: types.FrequencyOneTime})
	require.NoError(t, err)
	assert.True(t, result.Area.IsZero())
	assert.Empty(t, result.AreaPrice.Breakdown)
	assertDecimal(t, "50.00", result.PricePerVisit)
}

func TestAssembleQuote_ConfigurationErrorsSurface(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.Tiers = nil

	_, err := AssembleQuote(cfg, QuoteInput{Area: d("1000"), Frequency: types.FrequencyWeekly})
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, types.ErrCodePricingNotConfigured, cfgErr.Code())
}

func TestBuildQuote_SnapshotsConfiguration(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.AddOns = []types.AddOn{edgingAddOn()}
	in := QuoteInput{
		Area:       d("25000"),
		AreaSource: types.AreaSourceEstimated,
		Service:    "mowing",
		AddOnIDs:   []string{"edging"},
		Frequency:  types.FrequencyWeekly,
	}

	result, err := AssembleQuote(cfg, in)
	require.NoError(t, err)
	q := BuildQuote(cfg, in, result)

	assert.Equal(t, types.QuoteStatusPending, q.Status)
	assert.Equal(t, types.PricingModeTiered, q.PricingMode)
	assert.Equal(t, "mowing", q.Service)
	assert.Equal(t, types.AreaSourceEstimated, q.AreaSource)
	assertDecimal(t, "205.00", q.AreaPrice)
	assertDecimal(t, "0.10", q.FlatRateSnapshot)
	require.Len(t, q.TiersSnapshot, 3)
	require.Len(t, q.Breakdown, 3)
	require.Len(t, q.AddOns, 1)
	// (205 + 15) * 0.85 = 187.00
	assertDecimal(t, "187.00", q.PricePerVisit)
	require.NotNil(t, q.MonthlyEstimate)
	assertDecimal(t, "809.71", *q.MonthlyEstimate)

	// Later edits to the account configuration must not leak into the quote.
	cfg.Tiers[0].RatePerUnitArea = d("99")
	*cfg.Tiers[1].UpToArea = d("1")
	*result.MonthlyEstimate = d("0")
	assertDecimal(t, "0.012", q.TiersSnapshot[0].RatePerUnitArea)
	assertDecimal(t, "20000", *q.TiersSnapshot[1].UpToArea)
	assertDecimal(t, "809.71", *q.MonthlyEstimate)
}

func TestBuildQuote_FlatModeHasEmptySnapshot(t *testing.T) {
	cfg := types.PricingConfiguration{FlatRatePerUnitArea: d("0.02"), MinPricePerVisit: d("0")}
	in := QuoteInput{Area: d("100"), Frequency: types.FrequencyOneTime}
	result, err := AssembleQuote(cfg, in)
	require.NoError(t, err)

	q := BuildQuote(cfg, in, result)
	assert.NotNil(t, q.TiersSnapshot)
	assert.Empty(t, q.TiersSnapshot)
	assert.Nil(t, q.MonthlyEstimate)
	assertDecimal(t, "2.00", q.PricePerVisit)
}
