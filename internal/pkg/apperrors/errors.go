package apperrors

import (
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrInvalidRequest ErrorType = "INVALID_REQUEST"
	ErrNotFound       ErrorType = "NOT_FOUND"
	ErrVaultInactive  ErrorType = "VAULT_INACTIVE"
	ErrUnauthorized   ErrorType = "UNAUTHORIZED"
	ErrNonce          ErrorType = "NONCE_ERROR"
	ErrExpired        ErrorType = "PAYLOAD_EXPIRED"
	ErrExecution      ErrorType = "EXECUTION_FAILED"
	ErrInternal       ErrorType = "INTERNAL_ERROR"
)

// AppError is the standard error struct for the application
type AppError struct {
	Type       ErrorType `json:"code"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
	HTTPStatus int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
		Suggestion: mapTypeToSuggestion(errType),
	}
}

func NewInvalidRequest(msg string) *AppError {
	return New(ErrInvalidRequest, msg, nil)
}

func NewNotFound(msg string) *AppError {
	return New(ErrNotFound, msg, nil)
}

func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return New(ErrInternal, err.Error(), err)
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrInvalidRequest:
		return http.StatusBadRequest
	case ErrNotFound:
		return http.StatusNotFound
	case ErrVaultInactive:
		return http.StatusConflict
	case ErrUnauthorized:
		return http.StatusForbidden
	case ErrNonce:
		return http.StatusConflict
	case ErrExpired:
		return http.StatusGone
	case ErrExecution:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func mapTypeToSuggestion(t ErrorType) string {
	switch t {
	case ErrNonce:
		return "Re-sign the payload with the signer's current nonce."
	case ErrExpired:
		return "Obtain a freshly signed payload."
	case ErrUnauthorized:
		return "Check relayer/signer authorization in the registry."
	case ErrExecution:
		return "Inspect vault state; the nonce was not consumed, resubmission is safe."
	default:
		return ""
	}
}
