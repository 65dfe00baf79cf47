package repository

import (
	"context"
	"time"

	"github.com/obaraelijah/LeafLine-Server/internal/domain"
	"github.com/obaraelijah/LeafLine-Server/pkg/database"
)

// OrderFilter defines filter criteria for listing orders.
type OrderFilter struct {
	// UserID limits results to one customer. Nil lists every order.
	UserID  *string
	Page    int
	PerPage int
}

// BookRepository reads the catalog and reserves stock during checkout.
type BookRepository interface {
	// GetByID returns the book, or apperrors.ErrNotFound.
	GetByID(ctx context.Context, id string) (*domain.Book, error)

	// DecrementStock takes quantity copies out of stock inside tx. It fails
	// with apperrors.ErrOutOfStock when fewer copies remain.
	DecrementStock(ctx context.Context, tx database.DBTX, bookID string, quantity int) error
}

// OrderRepository is the order ledger.
type OrderRepository interface {
	// CreateWithinTransaction inserts an unpaid order inside tx. A duplicate
	// order number or tracking number yields apperrors.ErrConflict.
	CreateWithinTransaction(ctx context.Context, tx database.DBTX, order *domain.Order) error

	// MarkPaid flags the order as paid inside tx.
	MarkPaid(ctx context.Context, tx database.DBTX, orderID, paymentIntentID string, paidAt time.Time) error

	// FindByID loads an order by its order number.
	FindByID(ctx context.Context, orderID string) (*domain.Order, error)

	// UpdateStatus persists the lifecycle fields of order, provided its status
	// is still fromStatus in storage.
	UpdateStatus(ctx context.Context, order *domain.Order, fromStatus string) error

	// ListPaginated returns one page of orders, newest first, and the total count.
	ListPaginated(ctx context.Context, filter OrderFilter) ([]domain.Order, int, error)
}

// IdempotencyStore remembers checkout submissions by client-supplied key.
type IdempotencyStore interface {
	// Reserve claims key for ttl. It returns false when the key is already held.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release frees key so the client may submit again.
	Release(ctx context.Context, key string) error
}
