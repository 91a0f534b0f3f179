package billing

import (
	"math"
	"time"

	"greenquote/internal/types"
)

// TrialLength is how long a newly provisioned account may use the product
// before subscribing.
const TrialLength = 14 * 24 * time.Hour

// TrialDaysRemaining counts whole or partial days left in the trial, never
// negative. Accounts without a trial end have none left.
func TrialDaysRemaining(trialEndsAt *time.Time, now time.Time) int {
	if trialEndsAt == nil {
		return 0
	}
	left := trialEndsAt.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Hours() / 24))
}

// HasAccess reports whether the subscription state allows use of the
// product: an active subscription, or a trial with time left.
func HasAccess(status types.SubscriptionStatus, trialDaysRemaining int) bool {
	switch status {
	case types.SubStatusActive:
		return true
	case types.SubStatusTrialing:
		return trialDaysRemaining > 0
	default:
		return false
	}
}

// StatusFor builds the billing status for account at now.
func StatusFor(account *types.Account, now time.Time) types.BillingStatus {
	days := TrialDaysRemaining(account.TrialEndsAt, now)
	return types.BillingStatus{
		Plan:               account.Plan,
		Status:             account.SubscriptionStatus,
		HasAccess:          HasAccess(account.SubscriptionStatus, days),
		TrialDaysRemaining: days,
		TrialEndsAt:        account.TrialEndsAt,
	}
}
