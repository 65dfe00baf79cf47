package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors. AppError values wrap one of these so callers can branch
// with errors.Is regardless of the message.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrInternal      = errors.New("internal error")
	ErrConflict      = errors.New("conflict")
	ErrOutOfStock    = errors.New("out of stock")
	ErrPaymentFailed = errors.New("payment failed")

	// Gateway failures are payment failures; errors.Is(err, ErrPaymentFailed)
	// holds for both.
	ErrGatewayUnavailable = fmt.Errorf("%w: gateway unavailable", ErrPaymentFailed)
	ErrGatewayRejected    = fmt.Errorf("%w: gateway rejected", ErrPaymentFailed)

	// ErrPaymentReconciliation marks a checkout whose payment intent was
	// created but whose order could not be committed.
	ErrPaymentReconciliation = errors.New("payment reconciliation failed")
)

// AppError is a structured application error carrying its HTTP status.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Field names the offending request field for validation errors.
	Field  string `json:"field,omitempty"`
	Status int    `json:"-"`
	Err    error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error with a caller-supplied message.
func NotFound(message string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: message,
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// InvalidField creates a 400 error attributed to a single request field.
func InvalidField(field, message string) *AppError {
	e := InvalidInput(message)
	e.Field = field
	return e
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// Forbidden creates a 403 error.
func Forbidden(message string) *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     ErrForbidden,
	}
}

// Conflict creates a 409 error.
func Conflict(message string) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Message: message,
		Status:  http.StatusConflict,
		Err:     ErrConflict,
	}
}

// OutOfStock creates a 409 error for a failed conditional stock decrement.
func OutOfStock(bookID string) *AppError {
	return &AppError{
		Code:    "OUT_OF_STOCK",
		Message: fmt.Sprintf("book %s is out of stock", bookID),
		Status:  http.StatusConflict,
		Err:     ErrOutOfStock,
	}
}

// GatewayUnavailable creates a 502 error for transient gateway failures.
func GatewayUnavailable(message string) *AppError {
	return &AppError{
		Code:    "GATEWAY_UNAVAILABLE",
		Message: message,
		Status:  http.StatusBadGateway,
		Err:     ErrGatewayUnavailable,
	}
}

// GatewayRejected creates a 402 error for permanent payment failures.
func GatewayRejected(message string) *AppError {
	return &AppError{
		Code:    "PAYMENT_REJECTED",
		Message: message,
		Status:  http.StatusPaymentRequired,
		Err:     ErrGatewayRejected,
	}
}

// PaymentReconciliation creates a 500 error for a payment intent that may
// exist at the gateway without a committed order.
func PaymentReconciliation(intentRef string, err error) *AppError {
	return &AppError{
		Code: "PAYMENT_RECONCILIATION_FAILED",
		Message: fmt.Sprintf(
			"order was not recorded but payment intent %s may exist; check its status with the payment provider before retrying",
			intentRef,
		),
		Status: http.StatusInternalServerError,
		Err:    fmt.Errorf("%w: %w", ErrPaymentReconciliation, err),
	}
}

// Internal creates a 500 error that hides the cause from clients.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     fmt.Errorf("%w: %w", ErrInternal, err),
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrOutOfStock):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrGatewayUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, ErrGatewayRejected):
		return http.StatusPaymentRequired
	default:
		// Unresolved conflicts and reconciliation failures surface as 500.
		return http.StatusInternalServerError
	}
}
