package core

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"greenquote/internal/types"
)

// ValidationError describes one rejected field.
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// Validator wraps go-playground/validator with the GreenQuote tags:
//
//	frequency      one of types.Frequencies
//	area_source    measured | estimated
//	quote_status   pending | won | lost
//	property_type  residential | commercial
//	ssrf_url       https webhook URL that passes the SSRF check
//	nonneg_decimal decimal.Decimal >= 0
type Validator struct {
	validate *validator.Validate
	ssrf     types.SSRFValidator
	logger   *slog.Logger
}

// NewValidator registers the custom tags. ssrf may be nil, in which case
// ssrf_url only enforces the https rule.
func NewValidator(logger *slog.Logger, ssrf types.SSRFValidator) *Validator {
	v := &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		ssrf:     ssrf,
		logger:   logger,
	}

	// Report JSON names so clients can map errors back to their payload.
	v.validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	v.validate.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	_ = v.validate.RegisterValidation("frequency", func(fl validator.FieldLevel) bool {
		return types.Frequency(fl.Field().String()).IsValid()
	})
	_ = v.validate.RegisterValidation("area_source", func(fl validator.FieldLevel) bool {
		switch types.AreaSource(fl.Field().String()) {
		case types.AreaSourceMeasured, types.AreaSourceEstimated:
			return true
		}
		return false
	})
	_ = v.validate.RegisterValidation("quote_status", func(fl validator.FieldLevel) bool {
		return types.QuoteStatus(fl.Field().String()).IsValid()
	})
	_ = v.validate.RegisterValidation("property_type", func(fl validator.FieldLevel) bool {
		switch types.PropertyType(fl.Field().String()) {
		case types.PropertyResidential, types.PropertyCommercial:
			return true
		}
		return false
	})
	_ = v.validate.RegisterValidation("ssrf_url", v.validateSSRFURL)
	_ = v.validate.RegisterValidation("nonneg_decimal", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && !d.IsNegative()
	})

	return v
}

func (v *Validator) validateSSRFURL(fl validator.FieldLevel) bool {
	raw := fl.Field().String()
	if raw == "" {
		return true
	}
	if err := types.ValidateWebhookURL(raw); err != nil {
		return false
	}
	if v.ssrf == nil {
		return true
	}
	if err := v.ssrf(raw); err != nil {
		if v.logger != nil {
			v.logger.Warn("webhook url rejected", slog.String("error", err.Error()))
		}
		return false
	}
	return true
}

// ValidateStruct validates s and returns a validation AppError listing every
// failed field under details.validation_errors. The error code follows the
// first failure.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "validation could not run", err)
	}

	out := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ValidationError{
			Field:   fieldPath(fe),
			Tag:     fe.Tag(),
			Message: describe(fe),
		})
	}

	first := verrs[0]
	return types.NewAppErrorWithDetails(codeForTag(first.Tag()), out[0].Message, nil,
		map[string]any{"validation_errors": out})
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func codeForTag(tag string) types.ErrorCode {
	switch tag {
	case "required", "required_if", "required_without":
		return types.ErrCodeValidationMissingField
	case "email":
		return types.ErrCodeValidationInvalidEmail
	case "ssrf_url":
		return types.ErrCodeValidationInvalidWebhook
	case "frequency":
		return types.ErrCodeValidationInvalidFreq
	case "quote_status":
		return types.ErrCodeValidationInvalidStatus
	case "area_source", "nonneg_decimal":
		return types.ErrCodeValidationInvalidArea
	default:
		return types.ErrCodeValidationInvalidArgument
	}
}

func describe(fe validator.FieldError) string {
	field := fieldPath(fe)
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "ssrf_url":
		return field + " must be a public https URL"
	case "frequency":
		return fmt.Sprintf("%s must be one of %v", field, types.Frequencies)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "nonneg_decimal":
		return field + " must be a non-negative number"
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
