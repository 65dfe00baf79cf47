package mock

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/obaraelijah/LeafLine-Server/internal/payment"
)

const providerName = "mock"

// Gateway is an in-process payment gateway for development and tests. It
// approves every intent unless Fail is set.
type Gateway struct {
	// Fail, when non-nil, is returned from every CreatePaymentIntent call.
	Fail error
}

var _ payment.Gateway = (*Gateway)(nil)

// NewGateway creates a mock gateway that always succeeds.
func NewGateway() *Gateway {
	return &Gateway{}
}

// Name returns the provider name.
func (g *Gateway) Name() string {
	return providerName
}

// CreatePaymentIntent returns a fresh intent shaped like a Stripe one.
func (g *Gateway) CreatePaymentIntent(ctx context.Context, in payment.IntentInput) (*payment.Intent, error) {
	if err := ctx.Err(); err != nil {
		return nil, payment.Unavailable(providerName, "request cancelled", err)
	}
	if g.Fail != nil {
		return nil, g.Fail
	}
	if in.AmountMinorUnits <= 0 {
		return nil, payment.Rejected(providerName, "amount_too_small", "amount must be positive")
	}

	ref := "pi_mock_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	return &payment.Intent{
		Reference:    ref,
		ClientSecret: ref + "_secret_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16],
	}, nil
}
