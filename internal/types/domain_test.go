package types

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to QuoteStatus
		want     bool
	}{
		{QuoteStatusPending, QuoteStatusWon, true},
		{QuoteStatusPending, QuoteStatusLost, true},
		{QuoteStatusPending, QuoteStatusPending, false},
		{QuoteStatusWon, QuoteStatusLost, false},
		{QuoteStatusWon, QuoteStatusPending, false},
		{QuoteStatusLost, QuoteStatusWon, false},
		{QuoteStatusPending, QuoteStatus("archived"), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestQuoteStatus_IsValid(t *testing.T) {
	assert.True(t, QuoteStatusPending.IsValid())
	assert.True(t, QuoteStatusWon.IsValid())
	assert.False(t, QuoteStatus("open").IsValid())
}

func TestFrequency_IsValid(t *testing.T) {
	for _, f := range Frequencies {
		assert.True(t, f.IsValid(), f)
	}
	assert.False(t, Frequency("daily").IsValid())
}

func TestFrequency_Label(t *testing.T) {
	assert.Equal(t, "Bi-weekly", FrequencyBiWeekly.Label())
	assert.Equal(t, "One-time", FrequencyOneTime.Label())
	assert.Equal(t, "daily", Frequency("daily").Label())
}

func TestPricingConfiguration_CloneIsDeep(t *testing.T) {
	orig := PricingConfiguration{
		UseTieredPricing: true,
		Tiers: []PricingTier{
			BoundedTier(decimal.NewFromInt(5000), decimal.RequireFromString("0.012")),
			UnboundedTier(decimal.RequireFromString("0.005")),
		},
		AddOns: []AddOn{{ID: "aeration", PricePerVisit: decimal.NewFromInt(40), Enabled: true}},
		FrequencyMultipliers: map[Frequency]decimal.Decimal{
			FrequencyWeekly: decimal.RequireFromString("0.85"),
		},
	}

	clone := orig.Clone()

	*clone.Tiers[0].UpToArea = decimal.NewFromInt(1)
	clone.Tiers[1].RatePerUnitArea = decimal.NewFromInt(9)
	clone.AddOns[0].Enabled = false
	clone.FrequencyMultipliers[FrequencyWeekly] = decimal.NewFromInt(2)

	require.NotNil(t, orig.Tiers[0].UpToArea)
	assert.True(t, orig.Tiers[0].UpToArea.Equal(decimal.NewFromInt(5000)))
	assert.True(t, orig.Tiers[1].RatePerUnitArea.Equal(decimal.RequireFromString("0.005")))
	assert.True(t, orig.AddOns[0].Enabled)
	assert.True(t, orig.FrequencyMultipliers[FrequencyWeekly].Equal(decimal.RequireFromString("0.85")))
}

func TestPricingConfiguration_Mode(t *testing.T) {
	assert.Equal(t, PricingModeTiered, PricingConfiguration{UseTieredPricing: true}.Mode())
	assert.Equal(t, PricingModeFlat, PricingConfiguration{}.Mode())
}

func TestValidateWebhookURL(t *testing.T) {
	assert.NoError(t, ValidateWebhookURL("https://hooks.example.com/leads"))
	assert.Error(t, ValidateWebhookURL("http://hooks.example.com/leads"))
	assert.Error(t, ValidateWebhookURL("not a url"))
	assert.Error(t, ValidateWebhookURL("https://"))
}
