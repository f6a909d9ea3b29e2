package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ServiceErrorBadInput            = "ORGCREATOR_BAD_INPUT"
	ServiceErrorClaimNotFound       = "ORGCREATOR_CLAIM_NOT_FOUND"
	ServiceErrorNotFound            = "ORGCREATOR_NOT_FOUND"
	ServiceErrorLedgerWriteFailed   = "ORGCREATOR_LEDGER_WRITE_FAILED"
	ServiceErrorAcknowledgeFailed   = "ORGCREATOR_ACKNOWLEDGE_FAILED"
	ServiceErrorRejectFailed        = "ORGCREATOR_REJECT_FAILED"
	ServiceErrorIdentityUnavailable = "ORGCREATOR_IDENTITY_UNAVAILABLE"
	ServiceErrorUnauthorized        = "ORGCREATOR_UNAUTHORIZED"
	ServiceErrorForbidden           = "ORGCREATOR_FORBIDDEN"
	ServiceErrorConflict            = "ORGCREATOR_CONFLICT"
	ServiceErrorRateLimited         = "ORGCREATOR_RATE_LIMITED"
	ServiceErrorOperationFailed     = "ORGCREATOR_OPERATION_FAILED"
	ServiceErrorExternalFailure     = "ORGCREATOR_EXTERNAL_FAILURE"
	ServiceErrorInternal            = "ORGCREATOR_INTERNAL_ERROR"
)

// ErrClaimNotFound is returned by IdentityService.GetClaimByID for an unknown
// claim id.
var ErrClaimNotFound = errors.New("core: claim not found")

// ErrClaimOutcomeNotFound is returned by ClaimOutcomeReader.Get when no
// outcome was recorded for the claim.
var ErrClaimOutcomeNotFound = errors.New("core: claim outcome not found")

// MapError converts any error into the service envelope used by the HTTP
// surface and error reporting.
func MapError(err error) *goerrors.Error {
	return serviceErrorMapper(err)
}

func serviceErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureServiceErrorEnvelope(richErr)
	}
	if errors.Is(err, ErrClaimNotFound) {
		return newServiceError(err.Error(), goerrors.CategoryNotFound, ServiceErrorClaimNotFound)
	}
	if errors.Is(err, ErrClaimOutcomeNotFound) {
		return newServiceError(err.Error(), goerrors.CategoryNotFound, ServiceErrorNotFound)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "mutation lock"):
		return newServiceError(err.Error(), goerrors.CategoryConflict, ServiceErrorConflict)
	case strings.Contains(msg, "throttl"), strings.Contains(msg, "rate limit"):
		return newServiceError(err.Error(), goerrors.CategoryRateLimit, ServiceErrorRateLimited)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "must be"):
		return newServiceError(err.Error(), goerrors.CategoryBadInput, ServiceErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureServiceErrorEnvelope(mapped)
}

func newServiceError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureServiceErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

// wrapStepError tags an identity service failure with the step that failed.
func wrapStepError(err error, textCode string, message string, metadata map[string]any) error {
	if err == nil {
		return nil
	}
	category := goerrors.CategoryExternal
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Category != "" {
		category = richErr.Category
	}
	wrapped := goerrors.Wrap(err, category, message).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		wrapped.WithMetadata(metadata)
	}
	return ensureServiceErrorEnvelope(wrapped)
}

func ensureServiceErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = serviceHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultServiceTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultServiceTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ServiceErrorBadInput
	case goerrors.CategoryNotFound:
		return ServiceErrorNotFound
	case goerrors.CategoryAuth:
		return ServiceErrorUnauthorized
	case goerrors.CategoryAuthz:
		return ServiceErrorForbidden
	case goerrors.CategoryConflict:
		return ServiceErrorConflict
	case goerrors.CategoryRateLimit:
		return ServiceErrorRateLimited
	case goerrors.CategoryOperation:
		return ServiceErrorOperationFailed
	case goerrors.CategoryExternal:
		return ServiceErrorExternalFailure
	default:
		return ServiceErrorInternal
	}
}

func serviceHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// IsClaimNotFound reports whether err means the identity service has no claim
// for the requested id.
func IsClaimNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrClaimNotFound) {
		return true
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == ServiceErrorClaimNotFound
	}
	return false
}
