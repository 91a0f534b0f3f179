package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppErrorErrorFormat(t *testing.T) {
	appErr := &AppError{
		Code:    ErrCodeValidationInvalidFreq,
		Message: "frequency must be one of one_time, weekly, bi_weekly, monthly",
	}

	expected := "validation_invalid_frequency: frequency must be one of one_time, weekly, bi_weekly, monthly"
	if appErr.Error() != expected {
		t.Errorf("Error() = %q, want %q", appErr.Error(), expected)
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	underlying := errors.New("database connection failed")
	appErr := NewAppError(ErrCodeInternalDB, "failed to query quotes", underlying)

	if appErr.Unwrap() != underlying {
		t.Errorf("Unwrap() = %v, want %v", appErr.Unwrap(), underlying)
	}
	if !errors.Is(appErr, underlying) {
		t.Error("errors.Is should find the wrapped error")
	}
}

func TestAppErrorErrorsAs(t *testing.T) {
	appErr := NewAppError(ErrCodeNotFoundQuote, "quote not found", nil)
	wrapped := fmt.Errorf("handler failed: %w", appErr)

	var target *AppError
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As should find AppError in the chain")
	}
	if target.Code != ErrCodeNotFoundQuote {
		t.Errorf("Code = %q, want %q", target.Code, ErrCodeNotFoundQuote)
	}
}

func TestAppErrorWithDetails_DoesNotMutateOriginal(t *testing.T) {
	orig := NewAppErrorWithDetails(ErrCodeValidationInvalidTiers, "bad tiers", nil, map[string]any{"index": 1})
	withMore := orig.WithDetails(map[string]any{"reason": "negative rate"})

	if len(orig.Details) != 1 {
		t.Errorf("original details mutated: %v", orig.Details)
	}
	if withMore.Details["index"] != 1 || withMore.Details["reason"] != "negative rate" {
		t.Errorf("merged details = %v", withMore.Details)
	}
}

func TestErrorCodeHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationMissingField, http.StatusBadRequest},
		{ErrCodeValidationInvalidTiers, http.StatusBadRequest},
		{ErrCodeAuthTokenInvalid, http.StatusUnauthorized},
		{ErrCodePermissionNoAccess, http.StatusForbidden},
		{ErrCodeLimitRateLimit, http.StatusTooManyRequests},
		{ErrCodeNotFoundQuote, http.StatusNotFound},
		{ErrCodeConflictQuoteFinalized, http.StatusConflict},
		{ErrCodePricingNotConfigured, http.StatusUnprocessableEntity},
		{ErrCodePricingUncovered, http.StatusUnprocessableEntity},
		{ErrCodePaymentDeclined, http.StatusPaymentRequired},
		{ErrCodeEmailBlocked, http.StatusForbidden},
		{ErrCodeUpstreamStripe, http.StatusBadGateway},
		{ErrCodeInternalDB, http.StatusInternalServerError},
		{ErrorCode("something_unknown"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := tt.code.HTTPStatus(); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}
