package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/obaraelijah/LeafLine-Server/pkg/errors"
)

func TestUnavailable(t *testing.T) {
	err := Unavailable("stripe", "request timed out", context.DeadlineExceeded)

	assert.True(t, IsUnavailable(err))
	assert.ErrorIs(t, err, apperrors.ErrPaymentFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, apperrors.ErrGatewayRejected)
	assert.Equal(t, "stripe: request timed out: context deadline exceeded", err.Error())
}

func TestRejected(t *testing.T) {
	err := Rejected("stripe", "amount_too_small", "Amount must be at least $0.50 usd")

	assert.False(t, IsUnavailable(err))
	assert.ErrorIs(t, err, apperrors.ErrGatewayRejected)
	assert.Equal(t, 402, apperrors.HTTPStatus(err))

	var gwErr *Error
	assert.True(t, errors.As(err, &gwErr))
	assert.Equal(t, "amount_too_small", gwErr.Code)
}
