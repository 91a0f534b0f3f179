// Package billing provides plan limits, monthly quote usage, and
// subscription access rules.
package billing

import "greenquote/internal/types"

// UnlimitedQuotes is the allowance used for plans without a practical cap.
const UnlimitedQuotes = 999999

// PlanRegistry defines the authoritative limits for each tier.
type PlanRegistry interface {
	// GetLimits returns the limits for tier. Unknown tiers get the Starter
	// limits.
	GetLimits(tier types.PlanTier) types.PlanLimits
}

type staticPlanRegistry struct {
	limits map[types.PlanTier]types.PlanLimits
}

//	| Plan         | Quotes / month |
//	|--------------|----------------|
//	| Starter      | 25             |
//	| Professional | 100            |
//	| Enterprise   | unlimited      |
var planDefaults = map[types.PlanTier]types.PlanLimits{
	types.PlanStarter:      {MaxQuotesMonthly: 25},
	types.PlanProfessional: {MaxQuotesMonthly: 100},
	types.PlanEnterprise:   {MaxQuotesMonthly: UnlimitedQuotes},
}

var starterLimits = planDefaults[types.PlanStarter]

// NewStaticPlanRegistry returns a PlanRegistry backed by the built-in plan
// table.
func NewStaticPlanRegistry() PlanRegistry {
	m := make(map[types.PlanTier]types.PlanLimits, len(planDefaults))
	for k, v := range planDefaults {
		m[k] = v
	}
	return &staticPlanRegistry{limits: m}
}

func (r *staticPlanRegistry) GetLimits(tier types.PlanTier) types.PlanLimits {
	if limits, ok := r.limits[tier]; ok {
		return limits
	}
	return starterLimits
}

// IsKnownPlan reports whether tier is a plan that can be sold.
func IsKnownPlan(tier types.PlanTier) bool {
	_, ok := planDefaults[tier]
	return ok
}
