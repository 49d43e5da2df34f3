package apierror

import (
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

type ErrorCode string

const (
	ErrNotFound          ErrorCode = "NOT_FOUND"
	ErrConflict          ErrorCode = "CONFLICT"
	ErrValidation        ErrorCode = "VALIDATION_ERROR"
	ErrInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrGateway           ErrorCode = "GATEWAY_ERROR"
	ErrReleaseFailed     ErrorCode = "RELEASE_FAILED"
	ErrRefundFailed      ErrorCode = "REFUND_FAILED"
	ErrInternalServer    ErrorCode = "INTERNAL_SERVER_ERROR"
)

type APIError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAPIError(code ErrorCode, message string, details interface{}) APIError {
	logrus.Error(details)
	return APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// Retryable reports whether the caller should retry the same operation with
// the same idempotency key. Gateway failures leave the local record
// consistent, so a retry is always safe.
func Retryable(err error) bool {
	if apiErr, ok := err.(APIError); ok {
		switch apiErr.Code {
		case ErrGateway, ErrReleaseFailed, ErrRefundFailed:
			return true
		}
	}
	return false
}

func MapErrorToHTTPStatus(err error) int {
	if apiErr, ok := err.(APIError); ok {
		switch apiErr.Code {
		case ErrNotFound:
			return http.StatusNotFound
		case ErrConflict, ErrInvalidTransition:
			return http.StatusConflict
		case ErrValidation:
			return http.StatusBadRequest
		case ErrGateway, ErrReleaseFailed, ErrRefundFailed:
			return http.StatusBadGateway
		case ErrInternalServer:
			return http.StatusInternalServerError
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}
