package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/obaraelijah/LeafLine-Server/internal/domain"
	"github.com/obaraelijah/LeafLine-Server/internal/repository"
	apperrors "github.com/obaraelijah/LeafLine-Server/pkg/errors"
	"github.com/obaraelijah/LeafLine-Server/pkg/pagination"
)

// Caller identifies who is asking. Customers only see their own orders.
type Caller struct {
	UserID  string
	IsAdmin bool
}

// OrderService implements read and administrative operations on the order
// ledger.
type OrderService struct {
	repo   repository.OrderRepository
	events EventPublisher
	logger *slog.Logger
	now    func() time.Time
}

// NewOrderService creates a new OrderService.
func NewOrderService(repo repository.OrderRepository, events EventPublisher, logger *slog.Logger) *OrderService {
	return &OrderService{
		repo:   repo,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// ListOrders returns one page of orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, caller Caller, params pagination.Params) ([]domain.Order, pagination.Info, error) {
	params = params.Normalize()

	filter := repository.OrderFilter{
		Page:    params.Page,
		PerPage: params.PageSize,
	}
	if !caller.IsAdmin {
		userID := caller.UserID
		filter.UserID = &userID
	}

	orders, total, err := s.repo.ListPaginated(ctx, filter)
	if err != nil {
		return nil, pagination.Info{}, fmt.Errorf("list orders: %w", err)
	}
	return orders, pagination.NewInfo(total, params), nil
}

// GetOrder retrieves an order by its order number. Another customer's order
// is reported as missing.
func (s *OrderService) GetOrder(ctx context.Context, caller Caller, orderID string) (*domain.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("order not found")
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if !caller.IsAdmin && order.UserID != caller.UserID {
		return nil, apperrors.NotFound("order not found")
	}
	return order, nil
}

// UpdateStatus moves an order forward in its lifecycle.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID, newStatus string) (*domain.Order, error) {
	if !domain.IsValidStatus(newStatus) {
		return nil, apperrors.InvalidField("newStatus",
			fmt.Sprintf("invalid status %q, must be one of: %s", newStatus, strings.Join(domain.ValidStatuses(), ", ")))
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("order not found")
		}
		return nil, fmt.Errorf("get order for status update: %w", err)
	}

	oldStatus := order.Status
	if err := order.ApplyStatus(newStatus, s.now()); err != nil {
		return nil, apperrors.InvalidField("newStatus", err.Error())
	}

	if err := s.repo.UpdateStatus(ctx, order, oldStatus); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, apperrors.Conflict("order status was changed by another request")
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}

	if err := s.events.PublishOrderStatusChanged(ctx, order.OrderID, oldStatus, newStatus); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.status_changed event",
			slog.String("order_id", order.OrderID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order status updated",
		slog.String("order_id", order.OrderID),
		slog.String("old_status", oldStatus),
		slog.String("new_status", newStatus),
	)

	return order, nil
}
