package pricing

import (
	"fmt"

	"greenquote/internal/types"
)

// ValidateTiers checks the structural soundness of a tier schedule and
// reports every problem found, not just the first.
//
// It rejects an empty list, negative rates, non-positive or repeated
// boundaries, and more than one unbounded tier. A schedule without an
// unbounded tier passes here; see ValidateConfiguration.
func ValidateTiers(tiers []types.PricingTier) error {
	e := &ConfigurationError{}

	if len(tiers) == 0 {
		e.add(IssueEmptyTiers, "tiers", -1, "at least one pricing tier is required")
		return e
	}
	if len(tiers) > types.MaxTiers {
		e.add(IssueInvalidBoundary, "tiers", -1, fmt.Sprintf("at most %d pricing tiers are allowed", types.MaxTiers))
	}

	unbounded := 0
	seen := make(map[string]int, len(tiers))
	for i, t := range tiers {
		if t.RatePerUnitArea.IsNegative() {
			e.add(IssueNegativeRate, fmt.Sprintf("tiers[%d].rate_per_unit_area", i), i,
				fmt.Sprintf("tier %d has a negative rate", i+1))
		}
		if t.IsUnbounded() {
			unbounded++
			continue
		}
		if !t.UpToArea.IsPositive() {
			e.add(IssueInvalidBoundary, fmt.Sprintf("tiers[%d].up_to_area", i), i,
				fmt.Sprintf("tier %d upper bound must be greater than zero", i+1))
			continue
		}
		key := t.UpToArea.String()
		if prev, dup := seen[key]; dup {
			e.add(IssueDuplicateBoundary, fmt.Sprintf("tiers[%d].up_to_area", i), i,
				fmt.Sprintf("tier %d repeats the upper bound of tier %d", i+1, prev+1))
			continue
		}
		seen[key] = i
	}

	if unbounded > 1 {
		e.add(IssueMultipleUnbounded, "tiers", -1,
			fmt.Sprintf("only one unlimited tier is allowed, found %d", unbounded))
	}

	return e.orNil()
}

// ValidateConfiguration is the write-time check for a full pricing
// configuration. On top of ValidateTiers (when tiered mode is on) it requires
// the schedule to end in an unbounded tier, non-negative money amounts,
// positive frequency multipliers, and well-formed add-ons.
func ValidateConfiguration(cfg types.PricingConfiguration) error {
	e := &ConfigurationError{}

	if cfg.UseTieredPricing {
		if err := ValidateTiers(cfg.Tiers); err != nil {
			e.Issues = append(e.Issues, err.(*ConfigurationError).Issues...)
		} else if !hasUnbounded(cfg.Tiers) {
			e.add(IssueNoUnbounded, "tiers", -1,
				"the highest tier must be unlimited so every area is billed")
		}
	}

	if cfg.FlatRatePerUnitArea.IsNegative() {
		e.add(IssueNegativeAmount, "flat_rate_per_unit_area", -1, "flat rate must not be negative")
	}
	if cfg.MinPricePerVisit.IsNegative() {
		e.add(IssueNegativeAmount, "min_price_per_visit", -1, "minimum price per visit must not be negative")
	}
	if cfg.BaseFee.IsNegative() {
		e.add(IssueNegativeAmount, "base_fee", -1, "base fee must not be negative")
	}

	for f, m := range cfg.FrequencyMultipliers {
		if !f.IsValid() {
			e.add(IssueInvalidMultiplier, "frequency_multipliers", -1,
				fmt.Sprintf("unknown frequency %q", f))
			continue
		}
		if !m.IsPositive() {
			e.add(IssueInvalidMultiplier, "frequency_multipliers."+string(f), -1,
				fmt.Sprintf("multiplier for %s must be greater than zero", f))
		}
	}

	if len(cfg.AddOns) > types.MaxAddOns {
		e.add(IssueInvalidAddOn, "add_ons", -1, fmt.Sprintf("at most %d add-ons are allowed", types.MaxAddOns))
	}
	ids := make(map[string]struct{}, len(cfg.AddOns))
	for i, a := range cfg.AddOns {
		field := fmt.Sprintf("add_ons[%d]", i)
		if a.ID == "" {
			e.add(IssueInvalidAddOn, field+".id", i, fmt.Sprintf("add-on %d needs an id", i+1))
		} else if _, dup := ids[a.ID]; dup {
			e.add(IssueInvalidAddOn, field+".id", i, fmt.Sprintf("add-on id %q is used more than once", a.ID))
		}
		ids[a.ID] = struct{}{}
		if a.PricePerVisit.IsNegative() {
			e.add(IssueInvalidAddOn, field+".price_per_visit", i,
				fmt.Sprintf("add-on %q has a negative price", a.ID))
		}
	}

	return e.orNil()
}

func hasUnbounded(tiers []types.PricingTier) bool {
	for _, t := range tiers {
		if t.IsUnbounded() {
			return true
		}
	}
	return false
}
