package service

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/obaraelijah/LeafLine-Server/pkg/errors"
)

// CheckoutState is a step of the checkout flow. Failed checkouts are logged
// and counted with the step they reached.
type CheckoutState string

const (
	StateValidating        CheckoutState = "Validating"
	StateComputing         CheckoutState = "Computing"
	StateWriting           CheckoutState = "Writing"
	StateRequestingPayment CheckoutState = "RequestingPayment"
	StateReconciling       CheckoutState = "Reconciling"
	StateCommitted         CheckoutState = "Committed"
	StateRolledBack        CheckoutState = "RolledBack"
)

var checkoutTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "leafline_checkout_total",
		Help: "Checkout attempts by the state reached and their outcome.",
	},
	[]string{"state", "outcome"},
)

// checkoutOutcome maps a checkout error to a low-cardinality metric label.
func checkoutOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, apperrors.ErrPaymentReconciliation):
		return "reconciliation"
	case errors.Is(err, apperrors.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperrors.ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, apperrors.ErrGatewayRejected):
		return "payment_rejected"
	case errors.Is(err, apperrors.ErrGatewayUnavailable):
		return "payment_unavailable"
	case errors.Is(err, apperrors.ErrConflict):
		return "conflict"
	case errors.Is(err, apperrors.ErrUnauthorized):
		return "unauthorized"
	default:
		return "error"
	}
}
