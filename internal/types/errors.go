package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All handlers MUST use these constants instead of hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationInvalidTier     ErrorCode = "validation_invalid_tier"
	ErrCodeValidationInvalidLat      ErrorCode = "validation_invalid_latitude"
	ErrCodeValidationInvalidLon      ErrorCode = "validation_invalid_longitude"
	ErrCodeValidationInvalidCity     ErrorCode = "validation_invalid_city"
	ErrCodeValidationInvalidPayload  ErrorCode = "validation_invalid_payload"
	ErrCodeValidationInvalidCurrency ErrorCode = "validation_invalid_currency"
	ErrCodeValidationMissingField    ErrorCode = "validation_missing_required_field"

	// Auth (401)
	ErrCodeAuthSecretMissing ErrorCode = "auth_webhook_secret_missing"
	ErrCodeAuthSecretInvalid ErrorCode = "auth_webhook_secret_invalid"

	// Permission (403)
	ErrCodePermissionNotEntitled ErrorCode = "permission_not_entitled"

	// Not Found (404)
	ErrCodeNotFoundOrder ErrorCode = "not_found_order"
	ErrCodeNotFoundUser  ErrorCode = "not_found_user"

	// Conflict (409)
	ErrCodeConflictInvalidState ErrorCode = "conflict_invalid_state"

	// Domain: forecast data quality (permanent, 422)
	ErrCodeForecastIncompleteData ErrorCode = "forecast_incomplete_data"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB         ErrorCode = "internal_database_error"
	ErrCodeInternalSession    ErrorCode = "internal_session_error"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"

	ErrCodeUpstreamWeather     ErrorCode = "upstream_weather_unavailable"
	ErrCodeUpstreamTelegram    ErrorCode = "upstream_telegram_unavailable"
	ErrCodeUpstreamGeocoder    ErrorCode = "upstream_geocoder_unavailable"
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"

	// Payment-specific
	ErrCodePaymentDeclined ErrorCode = "payment_declined"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Used by the API layer to translate AppErrors into HTTP responses.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case strings.HasPrefix(s, "auth_"):
		return http.StatusUnauthorized // 401
	case strings.HasPrefix(s, "permission_"):
		return http.StatusForbidden // 403
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound // 404
	case strings.HasPrefix(s, "conflict_"):
		return http.StatusConflict // 409
	case s == string(ErrCodeForecastIncompleteData):
		return http.StatusUnprocessableEntity // 422
	case s == string(ErrCodePaymentDeclined):
		return http.StatusPaymentRequired // 402
	case s == string(ErrCodeUpstreamRateLimited):
		return http.StatusTooManyRequests // 429
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway // 502
	case strings.HasPrefix(s, "internal_"):
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// IsTransient reports whether an error with this code may succeed on retry.
// Transient failures are surfaced to the user as "try again"; permanent
// failures are surfaced immediately without retry.
func (c ErrorCode) IsTransient() bool {
	switch c {
	case ErrCodeUpstreamWeather, ErrCodeUpstreamTelegram,
		ErrCodeUpstreamGeocoder, ErrCodeUpstreamRateLimited:
		return true
	default:
		return false
	}
}

// AppError is the standard application error type used throughout the bot.
// All domain and handler errors should be expressed as AppError to enable
// consistent error formatting, HTTP status mapping, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
// This is useful for adding context without mutating the original error.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error. This is the standard constructor for domain errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf extracts the ErrorCode from an error chain. Generic errors map to
// internal_unexpected_error so callers can always branch on a code.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternalUnexpected
}

// IsTransient reports whether the error chain carries a transient error code.
func IsTransient(err error) bool {
	return CodeOf(err).IsTransient()
}
