package types

import (
	"maps"
	"net/http"
	"strings"
)

// ErrorCode is the machine-readable error identifier returned by the API.
// Its prefix selects the HTTP status.
type ErrorCode string

const (
	// Validation (400)
	ErrCodeValidationMissingField    ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidEmail    ErrorCode = "validation_invalid_email"
	ErrCodeValidationInvalidWebhook  ErrorCode = "validation_invalid_webhook_url"
	ErrCodeValidationInvalidTiers    ErrorCode = "validation_invalid_pricing_tiers"
	ErrCodeValidationInvalidFreq     ErrorCode = "validation_invalid_frequency"
	ErrCodeValidationInvalidArea     ErrorCode = "validation_invalid_area"
	ErrCodeValidationInvalidStatus   ErrorCode = "validation_invalid_quote_status"
	ErrCodeValidationInvalidAddOn    ErrorCode = "validation_invalid_add_on"
	ErrCodeValidationInvalidCursor   ErrorCode = "validation_invalid_cursor"
	ErrCodeValidationInvalidPlan     ErrorCode = "validation_invalid_plan"
	ErrCodeValidationInvalidArgument ErrorCode = "validation_invalid_argument"

	// Auth (401)
	ErrCodeAuthTokenMissing ErrorCode = "auth_token_missing"
	ErrCodeAuthTokenInvalid ErrorCode = "auth_token_invalid"
	ErrCodeAuthTokenRevoked ErrorCode = "auth_token_revoked"

	// Permission (403)
	ErrCodePermissionAccountMismatch ErrorCode = "permission_account_mismatch"
	ErrCodePermissionNoAccess        ErrorCode = "permission_subscription_inactive"

	// Limits (429)
	ErrCodeLimitQuotes    ErrorCode = "limit_monthly_quotes_exceeded"
	ErrCodeLimitRateLimit ErrorCode = "limit_rate_exceeded"

	// Not Found (404)
	ErrCodeNotFoundAccount  ErrorCode = "not_found_account"
	ErrCodeNotFoundQuote    ErrorCode = "not_found_quote"
	ErrCodeNotFoundSettings ErrorCode = "not_found_settings"
	ErrCodeNotFoundAPIKey   ErrorCode = "not_found_api_key"

	// Conflict (409)
	ErrCodeConflictQuoteFinalized ErrorCode = "conflict_quote_already_finalized"
	ErrCodeConflictConcurrent     ErrorCode = "conflict_concurrent_modification"

	// Pricing (422)
	ErrCodePricingNotConfigured ErrorCode = "pricing_not_configured"
	ErrCodePricingUncovered     ErrorCode = "pricing_area_not_covered"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB            ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected    ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamStripe        ErrorCode = "upstream_stripe_unavailable"
	ErrCodeUpstreamEmailProvider ErrorCode = "upstream_email_provider_unavailable"
	ErrCodeUpstreamQueue         ErrorCode = "upstream_queue_unavailable"
	ErrCodeUpstreamStorage       ErrorCode = "upstream_storage_unavailable"
	ErrCodeUpstreamUnavailable   ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited   ErrorCode = "upstream_rate_limited"

	// Payment-specific
	ErrCodePaymentDeclined ErrorCode = "payment_declined"
	ErrCodeEmailBlocked    ErrorCode = "email_blocked"
)

// statusByPrefix maps the category prefix of a code to its HTTP status.
var statusByPrefix = []struct {
	prefix string
	status int
}{
	{"validation_", http.StatusBadRequest},
	{"auth_", http.StatusUnauthorized},
	{"permission_", http.StatusForbidden},
	{"limit_", http.StatusTooManyRequests},
	{"not_found_", http.StatusNotFound},
	{"conflict_", http.StatusConflict},
	{"pricing_", http.StatusUnprocessableEntity},
	{"upstream_", http.StatusBadGateway},
}

// HTTPStatus is derived from the code's category prefix. Unknown codes are
// 500.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case ErrCodePaymentDeclined:
		return http.StatusPaymentRequired
	case ErrCodeEmailBlocked:
		return http.StatusForbidden
	}
	for _, p := range statusByPrefix {
		if strings.HasPrefix(string(c), p.prefix) {
			return p.status
		}
	}
	return http.StatusInternalServerError
}

// AppError carries a stable code for API clients alongside the message shown
// to them. Err is the internal cause and is never serialized.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *AppError) Error() string   { return string(e.Code) + ": " + e.Message }
func (e *AppError) Unwrap() error   { return e.Err }
func (e *AppError) HTTPStatus() int { return e.Code.HTTPStatus() }

// WithDetails returns a copy with details merged over the existing ones.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+len(details))
	maps.Copy(cp.Details, e.Details)
	maps.Copy(cp.Details, details)
	return &cp
}

func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{Code: code, Message: message, Err: err, Details: details}
}
