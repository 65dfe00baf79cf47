package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/obaraelijah/LeafLine-Server/internal/domain"
	"github.com/obaraelijah/LeafLine-Server/pkg/database"
	apperrors "github.com/obaraelijah/LeafLine-Server/pkg/errors"
)

const (
	getBookSQL = `
		SELECT id, title, price::text, shipping_fee::text, stock
		FROM books
		WHERE id = $1`

	decrementStockSQL = `
		UPDATE books
		SET stock = stock - $2::bigint, updated_at = NOW()
		WHERE id = $1 AND stock >= $2::bigint`
)

// BookRepository implements repository.BookRepository using PostgreSQL.
type BookRepository struct {
	pool database.DBTX
}

// NewBookRepository creates a new PostgreSQL-backed book repository.
func NewBookRepository(pool database.DBTX) *BookRepository {
	return &BookRepository{pool: pool}
}

// GetByID reads a book outside any transaction. Identifiers that are not
// UUIDs cannot exist and are reported as not found without a query.
func (r *BookRepository) GetByID(ctx context.Context, id string) (_ *domain.Book, err error) {
	if _, perr := uuid.Parse(id); perr != nil {
		return nil, apperrors.ErrNotFound
	}

	ctx, end := database.TraceQuery(ctx, "books.get", getBookSQL)
	defer func() { end(err) }()

	var (
		b           domain.Book
		price, ship string
	)
	err = r.pool.QueryRow(ctx, getBookSQL, id).Scan(&b.ID, &b.Title, &price, &ship, &b.Stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get book %s: %w", id, err)
	}

	if b.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("parse price of book %s: %w", id, err)
	}
	if b.ShippingFee, err = decimal.NewFromString(ship); err != nil {
		return nil, fmt.Errorf("parse shipping fee of book %s: %w", id, err)
	}
	return &b, nil
}

// DecrementStock runs the conditional update inside tx, so concurrent
// checkouts cannot oversell: the row lock serialises them and the second one
// sees the reduced stock.
func (r *BookRepository) DecrementStock(ctx context.Context, tx database.DBTX, bookID string, quantity int) (err error) {
	ctx, end := database.TraceQuery(ctx, "books.decrement_stock", decrementStockSQL)
	defer func() { end(err) }()

	tag, err := tx.Exec(ctx, decrementStockSQL, bookID, quantity)
	if err != nil {
		return fmt.Errorf("decrement stock of book %s: %w", bookID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.OutOfStock(bookID)
	}
	return nil
}
