package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/obaraelijah/LeafLine-Server/internal/domain"
	"github.com/obaraelijah/LeafLine-Server/internal/repository"
	apperrors "github.com/obaraelijah/LeafLine-Server/pkg/errors"
	"github.com/obaraelijah/LeafLine-Server/pkg/pagination"
)

func newTestOrderService(repo *mockOrderRepository, events *mockEventPublisher) *OrderService {
	svc := NewOrderService(repo, events, newTestLogger())
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func sampleOrder(orderID, userID, status string) *domain.Order {
	return &domain.Order{
		ID:             "9b2f3c1e-4a4e-4b8f-9c55-0f1f3f0d7a11",
		OrderID:        orderID,
		UserID:         userID,
		TotalPrice:     decimal.RequireFromString("28.25"),
		Currency:       "usd",
		Status:         status,
		IsPaid:         true,
		TrackingNumber: "LLTN-AB12CD34",
	}
}

func strPtr(s string) *string {
	return &s
}

// --- ListOrders ---

func TestListOrders_CustomerSeesOwnOrders(t *testing.T) {
	repo := new(mockOrderRepository)
	svc := newTestOrderService(repo, new(mockEventPublisher))
	ctx := context.Background()

	orders := []domain.Order{*sampleOrder("LL-AAAAAAAAAA", "user-1", domain.OrderStatusProcessing)}
	repo.On("ListPaginated", ctx, repository.OrderFilter{UserID: strPtr("user-1"), Page: 2, PerPage: 12}).
		Return(orders, 25, nil)

	got, info, err := svc.ListOrders(ctx, Caller{UserID: "user-1"}, pagination.Params{Page: 2})

	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 2, info.CurrentPage)
	assert.Equal(t, 3, info.TotalPages)
	assert.Equal(t, 25, info.TotalCount)
	require.NotNil(t, info.NextPage)
	assert.Equal(t, 3, *info.NextPage)
	require.NotNil(t, info.PrevPage)
	assert.Equal(t, 1, *info.PrevPage)
	repo.AssertExpectations(t)
}

func TestListOrders_AdminSeesAll(t *testing.T) {
	repo := new(mockOrderRepository)
	svc := newTestOrderService(repo, new(mockEventPublisher))
	ctx := context.Background()

	repo.On("ListPaginated", ctx, repository.OrderFilter{Page: 1, PerPage: 100}).
		Return([]domain.Order{}, 0, nil)

	got, info, err := svc.ListOrders(ctx, Caller{UserID: "admin-1", IsAdmin: true}, pagination.Params{Page: 0, PageSize: 500})

	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, info.TotalPages)
	assert.Nil(t, info.NextPage)
	repo.AssertExpectations(t)
}

func TestListOrders_RepositoryError(t *testing.T) {
	repo := new(mockOrderRepository)
	svc := newTestOrderService(repo, new(mockEventPublisher))

	repo.On("ListPaginated", mock.Anything, mock.Anything).Return([]domain.Order(nil), 0, errors.New("db down"))

	_, _, err := svc.ListOrders(context.Background(), Caller{UserID: "user-1"}, pagination.Params{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "list orders")
}

// --- GetOrder ---

func TestGetOrder_Owner(t *testing.T) {
	repo := new(mockOrderRepository)
	svc := newTestOrderService(repo, new(mockEventPublisher))
	ctx := context.Background()

	repo.On("FindByID", ctx, "LL-AAAAAAAAAA").Return(sampleOrder("LL-AAAAAAAAAA", "user-1", domain.OrderStatusShipped), nil)

	order, err := svc.GetOrder(ctx, Caller{UserID: "user-1"}, "LL-AAAAAAAAAA")

	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipped, order.Status)
}

func TestGetOrder_OtherCustomerIsNotFound(t *testing.T) {
	repo := new(mockOrderRepository)
	svc := newTestOrderService(repo, new(mockEventPublisher))
	ctx := context.Background()

	repo.On("FindByID", ctx, "LL-AAAAAAAAAA").Return(sampleOrder("LL-AAAAAAAAAA", "user-1", domain.OrderStatusShipped), nil)

	_, err := svc.GetOrder(ctx, Caller{UserID: "user-2"}, "LL-AAAAAAAAAA")

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	order, err := svc.GetOrder(ctx, Caller{UserID: "admin-1", IsAdmin: true}, "LL-AAAAAAAAAA")
	require.NoError(t, err)
	assert.Equal(t, "user-1", order.UserID)
}

func TestGetOrder_Missing(t *testing.T) {
	repo := new(mockOrderRepository)
	svc := newTestOrderService(repo, new(mockEventPublisher))

	repo.On("FindByID", mock.Anything, "LL-ZZZZZZZZZZ").Return(nil, apperrors.ErrNotFound)

	_, err := svc.GetOrder(context.Background(), Caller{UserID: "user-1"}, "LL-ZZZZZZZZZZ")

	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, apperrors.HTTPStatus(err))
	assert.Equal(t, "order not found", requireAppError(t, err).Message)
}

// --- UpdateStatus ---

func TestUpdateStatus_Success(t *testing.T) {
	repo := new(mockOrderRepository)
	events := new(mockEventPublisher)
	svc := newTestOrderService(repo, events)
	ctx := context.Background()

	repo.On("FindByID", ctx, "LL-AAAAAAAAAA").Return(sampleOrder("LL-AAAAAAAAAA", "user-1", domain.OrderStatusProcessing), nil)
	repo.On("UpdateStatus", ctx, mock.AnythingOfType("*domain.Order"), domain.OrderStatusProcessing).Return(nil)
	events.On("PublishOrderStatusChanged", ctx, "LL-AAAAAAAAAA", domain.OrderStatusProcessing, domain.OrderStatusShipped).Return(nil)

	order, err := svc.UpdateStatus(ctx, "LL-AAAAAAAAAA", domain.OrderStatusShipped)

	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipped, order.Status)
	assert.False(t, order.IsDelivered)
	assert.Equal(t, fixedNow, order.UpdatedAt)
	repo.AssertExpectations(t)
	events.AssertExpectations(t)
}

func TestUpdateStatus_DeliveredSetsDeliveryFields(t *testing.T) {
	repo := new(mockOrderRepository)
	events := new(mockEventPublisher)
	svc := newTestOrderService(repo, events)
	ctx := context.Background()

	repo.On("FindByID", ctx, "LL-AAAAAAAAAA").Return(sampleOrder("LL-AAAAAAAAAA", "user-1", domain.OrderStatusShipped), nil)
	repo.On("UpdateStatus", ctx, mock.MatchedBy(func(o *domain.Order) bool {
		return o.IsDelivered && o.DeliveredAt != nil
	}), domain.OrderStatusShipped).Return(nil)
	events.On("PublishOrderStatusChanged", ctx, "LL-AAAAAAAAAA", domain.OrderStatusShipped, domain.OrderStatusDelivered).Return(errors.New("broker down"))

	order, err := svc.UpdateStatus(ctx, "LL-AAAAAAAAAA", domain.OrderStatusDelivered)

	require.NoError(t, err)
	assert.True(t, order.IsDelivered)
	require.NotNil(t, order.DeliveredAt)
	assert.Equal(t, fixedNow, *order.DeliveredAt)
	repo.AssertExpectations(t)
}

func TestUpdateStatus_InvalidStatus(t *testing.T) {
	repo := new(mockOrderRepository)
	svc := newTestOrderService(repo, new(mockEventPublisher))

	_, err := svc.UpdateStatus(context.Background(), "LL-AAAAAAAAAA", "Lost")

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, "newStatus", requireAppError(t, err).Field)
	repo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestUpdateStatus_BackwardTransition(t *testing.T) {
	tests := []struct {
		name   string
		from   string
		target string
	}{
		{"backward", domain.OrderStatusOutForDelivery, domain.OrderStatusShipped},
		{"same status", domain.OrderStatusShipped, domain.OrderStatusShipped},
		{"after delivery", domain.OrderStatusDelivered, domain.OrderStatusProcessing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mockOrderRepository)
			svc := newTestOrderService(repo, new(mockEventPublisher))

			repo.On("FindByID", mock.Anything, "LL-AAAAAAAAAA").Return(sampleOrder("LL-AAAAAAAAAA", "user-1", tt.from), nil)

			_, err := svc.UpdateStatus(context.Background(), "LL-AAAAAAAAAA", tt.target)

			require.Error(t, err)
			assert.Equal(t, http.StatusBadRequest, apperrors.HTTPStatus(err))
			repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestUpdateStatus_SkipsAreAllowed(t *testing.T) {
	repo := new(mockOrderRepository)
	events := new(mockEventPublisher)
	svc := newTestOrderService(repo, events)

	repo.On("FindByID", mock.Anything, "LL-AAAAAAAAAA").Return(sampleOrder("LL-AAAAAAAAAA", "user-1", domain.OrderStatusProcessing), nil)
	repo.On("UpdateStatus", mock.Anything, mock.Anything, domain.OrderStatusProcessing).Return(nil)
	events.On("PublishOrderStatusChanged", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	order, err := svc.UpdateStatus(context.Background(), "LL-AAAAAAAAAA", domain.OrderStatusOutForDelivery)

	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusOutForDelivery, order.Status)
}

func TestUpdateStatus_ConcurrentChange(t *testing.T) {
	repo := new(mockOrderRepository)
	events := new(mockEventPublisher)
	svc := newTestOrderService(repo, events)

	repo.On("FindByID", mock.Anything, "LL-AAAAAAAAAA").Return(sampleOrder("LL-AAAAAAAAAA", "user-1", domain.OrderStatusProcessing), nil)
	repo.On("UpdateStatus", mock.Anything, mock.Anything, domain.OrderStatusProcessing).
		Return(errors.Join(errors.New("update status"), apperrors.ErrConflict))

	_, err := svc.UpdateStatus(context.Background(), "LL-AAAAAAAAAA", domain.OrderStatusShipped)

	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, apperrors.HTTPStatus(err))
	events.AssertNotCalled(t, "PublishOrderStatusChanged", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateStatus_OrderMissing(t *testing.T) {
	repo := new(mockOrderRepository)
	svc := newTestOrderService(repo, new(mockEventPublisher))

	repo.On("FindByID", mock.Anything, "LL-ZZZZZZZZZZ").Return(nil, apperrors.ErrNotFound)

	_, err := svc.UpdateStatus(context.Background(), "LL-ZZZZZZZZZZ", domain.OrderStatusShipped)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
