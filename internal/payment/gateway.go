package payment

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/obaraelijah/LeafLine-Server/pkg/errors"
)

// IntentInput describes a payment intent to create.
type IntentInput struct {
	AmountMinorUnits int64
	Currency         string
	Metadata         map[string]string
	// IdempotencyKey is forwarded to providers that deduplicate requests.
	IdempotencyKey string
}

// Intent is a created payment intent. The client secret lets the storefront
// confirm the payment; Reference is the provider's intent ID.
type Intent struct {
	ClientSecret string
	Reference    string
}

// Gateway creates payment intents with a payment provider.
type Gateway interface {
	// Name returns the provider name (e.g., "mock", "stripe").
	Name() string

	// CreatePaymentIntent requests an intent. Failures are *Error values
	// wrapping apperrors.ErrGatewayUnavailable or apperrors.ErrGatewayRejected.
	CreatePaymentIntent(ctx context.Context, in IntentInput) (*Intent, error)
}

// Error is a classified gateway failure.
type Error struct {
	Provider string
	// Code is the provider's error code, when it sent one.
	Code    string
	Message string
	kind    error
	cause   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Message)
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.cause == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.cause}
}

// Unavailable reports a transient failure: the provider could not be reached
// or did not answer in time.
func Unavailable(provider, message string, cause error) *Error {
	return &Error{Provider: provider, Message: message, kind: apperrors.ErrGatewayUnavailable, cause: cause}
}

// Rejected reports a permanent failure: the provider refused the request or
// answered with something unusable.
func Rejected(provider, code, message string) *Error {
	return &Error{Provider: provider, Code: code, Message: message, kind: apperrors.ErrGatewayRejected}
}

// IsUnavailable reports whether err is a transient gateway failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, apperrors.ErrGatewayUnavailable)
}
