package billing

import (
	"context"
	"fmt"
	"math"
	"time"

	"greenquote/internal/types"
)

// WarningThreshold is the usage percentage at which callers are warned that
// the monthly allowance is nearly spent.
const WarningThreshold = 80.0

// AccountLookup provides the account's plan.
type AccountLookup interface {
	GetByID(ctx context.Context, id string) (*types.Account, error)
}

// QuoteCounter counts quotes created in a half-open time window.
type QuoteCounter interface {
	CountCreatedBetween(ctx context.Context, accountID string, start, end time.Time) (int, error)
}

// UsageReporter reports monthly quote consumption against plan limits.
type UsageReporter struct {
	accounts AccountLookup
	quotes   QuoteCounter
	plans    PlanRegistry
	clock    types.Clock
}

// NewUsageReporter wires a UsageReporter. A nil clock uses wall time.
func NewUsageReporter(accounts AccountLookup, quotes QuoteCounter, plans PlanRegistry, clock types.Clock) *UsageReporter {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &UsageReporter{accounts: accounts, quotes: quotes, plans: plans, clock: clock}
}

// MonthBounds returns the UTC calendar month containing t as [start, end).
func MonthBounds(t time.Time) (start, end time.Time) {
	t = t.UTC()
	start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// GetCurrentUsage returns the account's usage for the current UTC month.
func (r *UsageReporter) GetCurrentUsage(ctx context.Context, accountID string) (*types.UsageSnapshot, error) {
	account, err := r.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	start, end := MonthBounds(r.clock.Now())
	used, err := r.quotes.CountCreatedBetween(ctx, accountID, start, end)
	if err != nil {
		return nil, err
	}

	snap := Summarize(account.Plan, r.plans.GetLimits(account.Plan), used)
	snap.PeriodStart = start
	snap.PeriodEnd = end
	return &snap, nil
}

// Summarize derives remaining allowance, overage and percentage from a raw
// count. The percentage is capped at 100 and rounded to one decimal place.
func Summarize(plan types.PlanTier, limits types.PlanLimits, used int) types.UsageSnapshot {
	snap := types.UsageSnapshot{
		Plan:            plan,
		QuotesThisMonth: used,
		Limit:           limits.MaxQuotesMonthly,
	}
	if used < limits.MaxQuotesMonthly {
		snap.Remaining = limits.MaxQuotesMonthly - used
	} else {
		snap.OverageCount = used - limits.MaxQuotesMonthly
	}

	if limits.MaxQuotesMonthly > 0 {
		pct := float64(used) / float64(limits.MaxQuotesMonthly) * 100
		snap.UsagePercentage = math.Min(100, math.Round(pct*10)/10)
	} else if used > 0 {
		snap.UsagePercentage = 100
	}
	return snap
}

// UsageWarning returns a human-readable warning once usage reaches
// WarningThreshold, or "" below it.
func UsageWarning(snap *types.UsageSnapshot) string {
	switch {
	case snap.IsOverLimit():
		return fmt.Sprintf("%d of %d included quotes used this month; %d overage quote(s) will be billed",
			snap.QuotesThisMonth, snap.Limit, snap.OverageCount)
	case snap.UsagePercentage >= WarningThreshold:
		return fmt.Sprintf("%d of %d included quotes used this month", snap.QuotesThisMonth, snap.Limit)
	default:
		return ""
	}
}
