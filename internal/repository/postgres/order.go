package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/obaraelijah/LeafLine-Server/internal/domain"
	"github.com/obaraelijah/LeafLine-Server/internal/repository"
	"github.com/obaraelijah/LeafLine-Server/pkg/database"
	apperrors "github.com/obaraelijah/LeafLine-Server/pkg/errors"
)

const orderColumns = `
		id, order_id, user_id, items, shipping_address,
		sub_total::text, shipping_fee::text, discount_amount::text, total_price::text,
		currency, status, is_paid, paid_at, COALESCE(payment_intent_id, ''),
		is_delivered, delivered_at, tracking_number, created_at, updated_at`

const (
	insertOrderSQL = `
		INSERT INTO orders (
			id, order_id, user_id, items, shipping_address,
			sub_total, shipping_fee, discount_amount, total_price,
			currency, status, is_paid, is_delivered, tracking_number, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, FALSE, FALSE, $12, $13, $14)`

	markPaidSQL = `
		UPDATE orders
		SET is_paid = TRUE, paid_at = $2, payment_intent_id = $3, updated_at = $2
		WHERE order_id = $1 AND is_paid = FALSE`

	findOrderSQL = `SELECT` + orderColumns + `
		FROM orders
		WHERE order_id = $1`

	updateStatusSQL = `
		UPDATE orders
		SET status = $2, is_delivered = $3, delivered_at = $4, updated_at = $5
		WHERE order_id = $1 AND status = $6`
)

// OrderRepository implements repository.OrderRepository using PostgreSQL.
// Line items and the shipping address are embedded as JSONB.
type OrderRepository struct {
	pool database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool database.DBTX) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// CreateWithinTransaction inserts o inside tx. The caller owns the
// transaction and must call o.Prepare first.
func (r *OrderRepository) CreateWithinTransaction(ctx context.Context, tx database.DBTX, o *domain.Order) (err error) {
	ctx, end := database.TraceQuery(ctx, "orders.insert", insertOrderSQL)
	defer func() { end(err) }()

	if o.OrderID == "" || o.TrackingNumber == "" {
		return fmt.Errorf("insert order: identifiers not assigned")
	}

	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshal order items: %w", err)
	}
	addrJSON, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}

	_, err = tx.Exec(ctx, insertOrderSQL,
		o.ID,
		o.OrderID,
		o.UserID,
		itemsJSON,
		addrJSON,
		o.SubTotal.String(),
		o.ShippingFee.String(),
		o.DiscountAmount.String(),
		o.TotalPrice.String(),
		o.Currency,
		o.Status,
		o.TrackingNumber,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("insert order %s (%s): %w", o.OrderID, database.ConstraintName(err), apperrors.ErrConflict)
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// MarkPaid flags an unpaid order as paid inside tx.
func (r *OrderRepository) MarkPaid(ctx context.Context, tx database.DBTX, orderID, paymentIntentID string, paidAt time.Time) (err error) {
	ctx, end := database.TraceQuery(ctx, "orders.mark_paid", markPaidSQL)
	defer func() { end(err) }()

	tag, err := tx.Exec(ctx, markPaidSQL, orderID, paidAt.UTC(), paymentIntentID)
	if err != nil {
		return fmt.Errorf("mark order %s paid: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark order %s paid: %w", orderID, apperrors.ErrNotFound)
	}
	return nil
}

// FindByID loads an order by its order number.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (_ *domain.Order, err error) {
	ctx, end := database.TraceQuery(ctx, "orders.find", findOrderSQL)
	defer func() {
		if errors.Is(err, apperrors.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	o, err := scanOrder(r.pool.QueryRow(ctx, findOrderSQL, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("find order %s: %w", orderID, err)
	}
	return o, nil
}

// UpdateStatus writes the lifecycle fields of o. The status guard turns a
// concurrent update into apperrors.ErrConflict instead of a lost write.
func (r *OrderRepository) UpdateStatus(ctx context.Context, o *domain.Order, fromStatus string) (err error) {
	ctx, end := database.TraceQuery(ctx, "orders.update_status", updateStatusSQL)
	defer func() { end(err) }()

	tag, err := r.pool.Exec(ctx, updateStatusSQL,
		o.OrderID, o.Status, o.IsDelivered, o.DeliveredAt, o.UpdatedAt, fromStatus,
	)
	if err != nil {
		return fmt.Errorf("update status of order %s: %w", o.OrderID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update status of order %s: %w", o.OrderID, apperrors.ErrConflict)
	}
	return nil
}

// ListPaginated returns one page of orders, newest first, and the total count.
func (r *OrderRepository) ListPaginated(ctx context.Context, filter repository.OrderFilter) (_ []domain.Order, _ int, err error) {
	var (
		where string
		args  []any
	)
	if filter.UserID != nil {
		where = " WHERE user_id = $1"
		args = append(args, *filter.UserID)
	}

	countQuery := "SELECT COUNT(*) FROM orders" + where
	listQuery := fmt.Sprintf("SELECT%s\n\t\tFROM orders%s\n\t\tORDER BY created_at DESC, id\n\t\tLIMIT $%d OFFSET $%d",
		orderColumns, where, len(args)+1, len(args)+2)

	ctx, end := database.TraceQuery(ctx, "orders.list", listQuery)
	defer func() { end(err) }()

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	page, perPage := filter.Page, filter.PerPage
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * perPage

	rows, err := r.pool.Query(ctx, listQuery, append(args, perPage, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, perPage)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, total, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o                        domain.Order
		itemsJSON, addrJSON      []byte
		sub, ship, discount, tot string
	)
	err := row.Scan(
		&o.ID,
		&o.OrderID,
		&o.UserID,
		&itemsJSON,
		&addrJSON,
		&sub,
		&ship,
		&discount,
		&tot,
		&o.Currency,
		&o.Status,
		&o.IsPaid,
		&o.PaidAt,
		&o.PaymentIntentID,
		&o.IsDelivered,
		&o.DeliveredAt,
		&o.TrackingNumber,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(addrJSON, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}

	for dst, src := range map[*decimal.Decimal]string{
		&o.SubTotal:       sub,
		&o.ShippingFee:    ship,
		&o.DiscountAmount: discount,
		&o.TotalPrice:     tot,
	} {
		d, err := decimal.NewFromString(src)
		if err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", src, err)
		}
		*dst = d
	}
	return &o, nil
}
