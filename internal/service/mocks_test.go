package service

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/obaraelijah/LeafLine-Server/internal/domain"
	"github.com/obaraelijah/LeafLine-Server/internal/payment"
	"github.com/obaraelijah/LeafLine-Server/internal/repository"
	"github.com/obaraelijah/LeafLine-Server/pkg/database"
)

// --- Mock Repositories ---

type mockBookRepository struct {
	mock.Mock
}

func (m *mockBookRepository) GetByID(ctx context.Context, id string) (*domain.Book, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Book), args.Error(1)
}

func (m *mockBookRepository) DecrementStock(ctx context.Context, tx database.DBTX, bookID string, quantity int) error {
	args := m.Called(ctx, tx, bookID, quantity)
	return args.Error(0)
}

type mockOrderRepository struct {
	mock.Mock
}

func (m *mockOrderRepository) CreateWithinTransaction(ctx context.Context, tx database.DBTX, order *domain.Order) error {
	args := m.Called(ctx, tx, order)
	return args.Error(0)
}

func (m *mockOrderRepository) MarkPaid(ctx context.Context, tx database.DBTX, orderID, paymentIntentID string, paidAt time.Time) error {
	args := m.Called(ctx, tx, orderID, paymentIntentID, paidAt)
	return args.Error(0)
}

func (m *mockOrderRepository) FindByID(ctx context.Context, orderID string) (*domain.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, order *domain.Order, fromStatus string) error {
	args := m.Called(ctx, order, fromStatus)
	return args.Error(0)
}

func (m *mockOrderRepository) ListPaginated(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Order), args.Int(1), args.Error(2)
}

type mockIdempotencyStore struct {
	mock.Mock
}

func (m *mockIdempotencyStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *mockIdempotencyStore) Release(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// --- Mock Gateway and Publisher ---

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Name() string { return "test" }

func (m *mockGateway) CreatePaymentIntent(ctx context.Context, in payment.IntentInput) (*payment.Intent, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Intent), args.Error(1)
}

type mockEventPublisher struct {
	mock.Mock
}

func (m *mockEventPublisher) PublishOrderPlaced(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *mockEventPublisher) PublishOrderStatusChanged(ctx context.Context, orderID, oldStatus, newStatus string) error {
	args := m.Called(ctx, orderID, oldStatus, newStatus)
	return args.Error(0)
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}
