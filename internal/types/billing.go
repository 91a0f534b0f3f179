package types

import "time"

// PlanLimits is what a plan includes. Quotes beyond MaxQuotesMonthly are
// still accepted and counted as overage.
type PlanLimits struct {
	MaxQuotesMonthly int `json:"max_quotes_monthly"`
}

// UsageSnapshot is an account's quote consumption for one UTC calendar month.
type UsageSnapshot struct {
	Plan            PlanTier  `json:"plan"`
	QuotesThisMonth int       `json:"quotes_this_month"`
	Limit           int       `json:"limit"`
	Remaining       int       `json:"remaining"`
	OverageCount    int       `json:"overage_count"`
	UsagePercentage float64   `json:"usage_percentage"`
	PeriodStart     time.Time `json:"period_start"`
	PeriodEnd       time.Time `json:"period_end"`
}

// IsOverLimit reports whether the account has used more than its allowance.
func (u *UsageSnapshot) IsOverLimit() bool {
	return u.OverageCount > 0
}

// BillingStatus summarises whether an account may use paid features.
type BillingStatus struct {
	Plan               PlanTier           `json:"plan"`
	Status             SubscriptionStatus `json:"status"`
	HasAccess          bool               `json:"has_access"`
	TrialDaysRemaining int                `json:"trial_days_remaining"`
	TrialEndsAt        *time.Time         `json:"trial_ends_at,omitempty"`
}
