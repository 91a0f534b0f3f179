package pricing

import (
	"errors"
	"strings"

	"greenquote/internal/types"
)

// IssueKind classifies a single configuration problem.
type IssueKind string

const (
	IssueEmptyTiers        IssueKind = "empty_tiers"
	IssueNegativeRate      IssueKind = "negative_rate"
	IssueMultipleUnbounded IssueKind = "multiple_unbounded"
	IssueNoUnbounded       IssueKind = "no_unbounded_tier"
	IssueInvalidBoundary   IssueKind = "invalid_boundary"
	IssueDuplicateBoundary IssueKind = "duplicate_boundary"
	IssueUncoveredArea     IssueKind = "uncovered_area"
	IssueNegativeAmount    IssueKind = "negative_amount"
	IssueInvalidMultiplier IssueKind = "invalid_multiplier"
	IssueInvalidAddOn      IssueKind = "invalid_add_on"
)

// Issue is one problem found in a pricing configuration. Index points at the
// offending tier or add-on, or is -1 when the problem concerns the whole list.
type Issue struct {
	Kind    IssueKind `json:"kind"`
	Field   string    `json:"field"`
	Index   int       `json:"index"`
	Message string    `json:"message"`
}

// ConfigurationError reports that a pricing configuration cannot produce a
// trustworthy price. Callers must surface it instead of showing a number.
type ConfigurationError struct {
	Issues []Issue
}

func (e *ConfigurationError) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		msgs[i] = is.Message
	}
	return "pricing configuration: " + strings.Join(msgs, "; ")
}

// Has reports whether any issue is of the given kind.
func (e *ConfigurationError) Has(kind IssueKind) bool {
	for _, is := range e.Issues {
		if is.Kind == kind {
			return true
		}
	}
	return false
}

// Code maps the error onto the API error taxonomy. A configuration with no
// tiers at all, or one that cannot cover the requested area, blocks pricing
// outright; anything else is an invalid tier document.
func (e *ConfigurationError) Code() types.ErrorCode {
	switch {
	case e.Has(IssueEmptyTiers):
		return types.ErrCodePricingNotConfigured
	case e.Has(IssueUncoveredArea):
		return types.ErrCodePricingUncovered
	default:
		return types.ErrCodeValidationInvalidTiers
	}
}

func (e *ConfigurationError) add(kind IssueKind, field string, index int, msg string) {
	e.Issues = append(e.Issues, Issue{Kind: kind, Field: field, Index: index, Message: msg})
}

func (e *ConfigurationError) orNil() error {
	if len(e.Issues) == 0 {
		return nil
	}
	return e
}

// ToAppError converts a ConfigurationError into a *types.AppError carrying the
// issue list. Other errors are returned unchanged.
func ToAppError(err error) error {
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		return err
	}
	return types.NewAppErrorWithDetails(cfgErr.Code(), cfgErr.Error(), err, map[string]any{
		"issues": cfgErr.Issues,
	})
}
