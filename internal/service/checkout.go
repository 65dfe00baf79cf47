package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/obaraelijah/LeafLine-Server/internal/domain"
	"github.com/obaraelijah/LeafLine-Server/internal/payment"
	"github.com/obaraelijah/LeafLine-Server/internal/repository"
	"github.com/obaraelijah/LeafLine-Server/pkg/database"
	apperrors "github.com/obaraelijah/LeafLine-Server/pkg/errors"
)

const (
	// maxCheckoutAttempts bounds retries after an order number collision.
	maxCheckoutAttempts = 3

	defaultGatewayTimeout = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour

	companyName = "LeafLine"
)

// EventPublisher defines the interface for publishing order events.
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, order *domain.Order) error
	PublishOrderStatusChanged(ctx context.Context, orderID, oldStatus, newStatus string) error
}

// CheckoutConfig tunes the checkout flow. Zero values fall back to defaults.
type CheckoutConfig struct {
	Currency       string
	GatewayTimeout time.Duration
	IdempotencyTTL time.Duration
}

// OrderItemInput is one requested line: a book and how many copies.
type OrderItemInput struct {
	BookID   string
	Quantity int
}

// PlaceOrderInput holds the data for placing an order.
type PlaceOrderInput struct {
	UserID          string
	Items           []OrderItemInput
	ShippingAddress domain.Address
	// IdempotencyKey is optional. When set, a second submission with the same
	// key is refused and the key is forwarded to the payment provider.
	IdempotencyKey string
}

// PlaceOrderResult is a committed, paid order and the client secret the
// storefront needs to confirm the payment.
type PlaceOrderResult struct {
	ClientSecret string
	Order        *domain.Order
}

// CheckoutService turns a cart into a paid order. Stock, the order row and
// the paid flag are written in one database transaction that only commits
// once the payment provider has issued an intent.
type CheckoutService struct {
	db      database.TxBeginner
	books   repository.BookRepository
	orders  repository.OrderRepository
	gateway payment.Gateway
	events  EventPublisher
	idem    repository.IdempotencyStore
	cfg     CheckoutConfig
	logger  *slog.Logger
	now     func() time.Time
}

// NewCheckoutService creates a new CheckoutService. idem may be nil, in which
// case idempotency keys are only forwarded to the gateway.
func NewCheckoutService(
	db database.TxBeginner,
	books repository.BookRepository,
	orders repository.OrderRepository,
	gateway payment.Gateway,
	events EventPublisher,
	idem repository.IdempotencyStore,
	cfg CheckoutConfig,
	logger *slog.Logger,
) *CheckoutService {
	if cfg.Currency == "" {
		cfg.Currency = domain.DefaultCurrency
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = defaultGatewayTimeout
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = defaultIdempotencyTTL
	}
	return &CheckoutService{
		db:      db,
		books:   books,
		orders:  orders,
		gateway: gateway,
		events:  events,
		idem:    idem,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// checkoutRun tracks where a single checkout is in the flow.
type checkoutRun struct {
	state CheckoutState
	// failedAt is the state in which the last attempt was rolled back.
	failedAt CheckoutState
}

func (r *checkoutRun) enter(s CheckoutState) { r.state = s }

func (r *checkoutRun) rolledBack() {
	r.failedAt = r.state
	r.state = StateRolledBack
}

// stage is the state reported on metrics: where the checkout stopped.
func (r *checkoutRun) stage() CheckoutState {
	if r.state == StateRolledBack && r.failedAt != "" {
		return r.failedAt
	}
	return r.state
}

// PlaceOrder validates the request, reserves stock, records the order and
// requests a payment intent. Either everything commits or nothing does.
func (s *CheckoutService) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*PlaceOrderResult, error) {
	if in.UserID == "" {
		checkoutTotal.WithLabelValues(string(StateValidating), "unauthorized").Inc()
		return nil, apperrors.Unauthorized("authentication required")
	}

	reserved, err := s.reserveKey(ctx, in.IdempotencyKey)
	if err != nil {
		checkoutTotal.WithLabelValues(string(StateValidating), "duplicate").Inc()
		return nil, err
	}

	run := &checkoutRun{state: StateValidating}
	res, err := s.placeOrder(ctx, in, run)
	if err != nil {
		attrs := []any{
			slog.String("user_id", in.UserID),
			slog.String("checkout_state", string(run.state)),
			slog.String("error", err.Error()),
		}
		if run.failedAt != "" {
			attrs = append(attrs, slog.String("failed_state", string(run.failedAt)))
		}
		if apperrors.HTTPStatus(err) >= http.StatusInternalServerError {
			s.logger.ErrorContext(ctx, "checkout failed", attrs...)
		} else {
			s.logger.WarnContext(ctx, "checkout failed", attrs...)
		}

		if reserved && releasable(err) {
			s.releaseKey(ctx, in.IdempotencyKey)
		}
		checkoutTotal.WithLabelValues(string(run.stage()), checkoutOutcome(err)).Inc()
		return nil, err
	}

	checkoutTotal.WithLabelValues(string(StateCommitted), checkoutOutcome(nil)).Inc()

	if err := s.events.PublishOrderPlaced(ctx, res.Order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.placed event",
			slog.String("order_id", res.Order.OrderID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "checkout committed",
		slog.String("order_id", res.Order.OrderID),
		slog.String("user_id", res.Order.UserID),
		slog.String("payment_intent_id", res.Order.PaymentIntentID),
		slog.String("total_price", res.Order.TotalPrice.StringFixed(2)),
		slog.String("checkout_state", string(StateCommitted)),
	)

	return res, nil
}

func (s *CheckoutService) placeOrder(ctx context.Context, in PlaceOrderInput, run *checkoutRun) (*PlaceOrderResult, error) {
	run.enter(StateValidating)
	items, err := s.resolveItems(ctx, in)
	if err != nil {
		return nil, err
	}

	run.enter(StateComputing)
	order := domain.NewOrder(in.UserID, items, in.ShippingAddress, s.cfg.Currency)

	var lastErr error
	for attempt := 1; attempt <= maxCheckoutAttempts; attempt++ {
		intent, err := s.attempt(ctx, order, in.IdempotencyKey, run)
		if err == nil {
			run.enter(StateCommitted)
			return &PlaceOrderResult{ClientSecret: intent.ClientSecret, Order: order}, nil
		}
		if !errors.Is(err, apperrors.ErrConflict) {
			return nil, err
		}

		lastErr = err
		s.logger.WarnContext(ctx, "order identifier collision, retrying checkout",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxCheckoutAttempts),
			slog.String("error", err.Error()),
		)
	}

	return nil, apperrors.Internal(fmt.Errorf("create order after %d attempts: %w", maxCheckoutAttempts, lastErr))
}

// resolveItems checks the request and snapshots catalog prices. It performs
// no writes.
func (s *CheckoutService) resolveItems(ctx context.Context, in PlaceOrderInput) ([]domain.LineItem, error) {
	if len(in.Items) == 0 {
		return nil, apperrors.InvalidField("items", "items required")
	}
	for i, it := range in.Items {
		if it.Quantity < 1 || it.Quantity > math.MaxInt32 {
			return nil, apperrors.InvalidField(fmt.Sprintf("items[%d].quantity", i), "invalid quantity")
		}
	}

	items := make([]domain.LineItem, 0, len(in.Items))
	for _, it := range in.Items {
		book, err := s.books.GetByID(ctx, it.BookID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.NotFound("book not found")
			}
			return nil, fmt.Errorf("get book %s: %w", it.BookID, err)
		}
		if !book.Purchasable() {
			return nil, apperrors.NotFound("book not found")
		}
		items = append(items, domain.NewLineItem(book, it.Quantity))
	}

	if field := in.ShippingAddress.MissingField(); field != "" {
		return nil, apperrors.InvalidField("shippingAddress."+field, "incomplete address")
	}
	return items, nil
}

// attempt runs one transactional write. A conflict on insert is returned as
// apperrors.ErrConflict so the caller can retry with fresh identifiers; the
// gateway is only called after a successful insert.
func (s *CheckoutService) attempt(ctx context.Context, order *domain.Order, idemKey string, run *checkoutRun) (*payment.Intent, error) {
	run.enter(StateWriting)
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin checkout transaction: %w", err)
	}

	done := false
	defer func() {
		if done {
			return
		}
		if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.logger.ErrorContext(ctx, "failed to roll back checkout transaction",
				slog.String("order_id", order.OrderID),
				slog.String("error", err.Error()),
			)
		}
		run.rolledBack()
	}()

	for _, d := range stockDecrements(order.Items) {
		if err := s.books.DecrementStock(ctx, tx, d.bookID, d.quantity); err != nil {
			return nil, err
		}
	}

	if err := order.Prepare(s.now()); err != nil {
		return nil, fmt.Errorf("assign order identifiers: %w", err)
	}
	if err := s.orders.CreateWithinTransaction(ctx, tx, order); err != nil {
		return nil, err
	}

	run.enter(StateRequestingPayment)
	intent, err := s.requestPayment(ctx, order, idemKey)
	if err != nil {
		return nil, err
	}

	run.enter(StateReconciling)
	paidAt := s.now()
	if err := s.orders.MarkPaid(ctx, tx, order.OrderID, intent.Reference, paidAt); err != nil {
		return nil, apperrors.PaymentReconciliation(intent.Reference, err)
	}
	order.MarkPaid(intent.Reference, paidAt)

	// pgx rolls the transaction back itself when Commit fails.
	done = true
	if err := tx.Commit(ctx); err != nil {
		run.rolledBack()
		return nil, apperrors.PaymentReconciliation(intent.Reference, fmt.Errorf("commit checkout transaction: %w", err))
	}
	return intent, nil
}

type stockDecrement struct {
	bookID   string
	quantity int
}

// stockDecrements folds repeated books into one decrement each, ordered by
// book ID so that concurrent checkouts lock book rows in the same order.
func stockDecrements(items []domain.LineItem) []stockDecrement {
	idx := make(map[string]int, len(items))
	out := make([]stockDecrement, 0, len(items))
	for _, it := range items {
		if i, ok := idx[it.BookID]; ok {
			out[i].quantity += it.Quantity
			continue
		}
		idx[it.BookID] = len(out)
		out = append(out, stockDecrement{bookID: it.BookID, quantity: it.Quantity})
	}
	slices.SortFunc(out, func(a, b stockDecrement) int {
		return strings.Compare(a.bookID, b.bookID)
	})
	return out
}

func (s *CheckoutService) requestPayment(ctx context.Context, order *domain.Order, idemKey string) (*payment.Intent, error) {
	if idemKey == "" {
		idemKey = order.ID
	}

	gctx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	defer cancel()

	intent, err := s.gateway.CreatePaymentIntent(gctx, payment.IntentInput{
		AmountMinorUnits: order.AmountMinorUnits(),
		Currency:         order.Currency,
		Metadata: map[string]string{
			"order_id": order.OrderID,
			"company":  companyName,
		},
		IdempotencyKey: idemKey,
	})
	if err != nil {
		return nil, gatewayError(err)
	}
	return intent, nil
}

// gatewayError maps a provider failure to the API error taxonomy. Anything
// not classified as a rejection, including a timeout, is treated as the
// provider being unavailable.
func gatewayError(err error) error {
	msg := "payment provider unavailable"
	var gwErr *payment.Error
	if errors.As(err, &gwErr) && gwErr.Message != "" {
		msg = gwErr.Message
	}

	var appErr *apperrors.AppError
	switch {
	case errors.Is(err, apperrors.ErrGatewayRejected):
		appErr = apperrors.GatewayRejected(msg)
	case errors.Is(err, context.DeadlineExceeded):
		appErr = apperrors.GatewayUnavailable("payment provider timed out")
	default:
		appErr = apperrors.GatewayUnavailable(msg)
	}
	if !errors.Is(err, appErr.Err) {
		err = fmt.Errorf("%w: %w", appErr.Err, err)
	}
	appErr.Err = err
	return appErr
}

// reserveKey claims the idempotency key. A store outage does not block
// checkout; it only loses duplicate detection.
func (s *CheckoutService) reserveKey(ctx context.Context, key string) (bool, error) {
	if key == "" || s.idem == nil {
		return false, nil
	}

	ok, err := s.idem.Reserve(ctx, key, s.cfg.IdempotencyTTL)
	if err != nil {
		s.logger.WarnContext(ctx, "idempotency store unavailable, continuing without reservation",
			slog.String("error", err.Error()),
		)
		return false, nil
	}
	if !ok {
		return false, apperrors.Conflict("duplicate checkout submission")
	}
	return true, nil
}

func (s *CheckoutService) releaseKey(ctx context.Context, key string) {
	if err := s.idem.Release(context.WithoutCancel(ctx), key); err != nil {
		s.logger.WarnContext(ctx, "failed to release idempotency key",
			slog.String("error", err.Error()),
		)
	}
}

// releasable reports whether the client may submit again under the same
// idempotency key: requests it can correct, and provider outages where the
// transaction rolled back before any intent was recorded. The retry carries
// the same key to the provider.
func releasable(err error) bool {
	if errors.Is(err, apperrors.ErrPaymentReconciliation) {
		return false
	}
	return errors.Is(err, apperrors.ErrInvalidInput) ||
		errors.Is(err, apperrors.ErrNotFound) ||
		errors.Is(err, apperrors.ErrOutOfStock) ||
		errors.Is(err, apperrors.ErrGatewayUnavailable)
}
