package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/obaraelijah/LeafLine-Server/internal/domain"
	"github.com/obaraelijah/LeafLine-Server/internal/service"
	apperrors "github.com/obaraelijah/LeafLine-Server/pkg/errors"
	"github.com/obaraelijah/LeafLine-Server/pkg/httputil"
	"github.com/obaraelijah/LeafLine-Server/pkg/middleware"
	"github.com/obaraelijah/LeafLine-Server/pkg/pagination"
	"github.com/obaraelijah/LeafLine-Server/pkg/validator"
)

const (
	// IdempotencyKeyHeader carries the client's checkout submission key.
	IdempotencyKeyHeader = "Idempotency-Key"

	maxIdempotencyKeyLen = 255
	maxBodyBytes         = 1 << 20
)

// CheckoutService places orders.
type CheckoutService interface {
	PlaceOrder(ctx context.Context, in service.PlaceOrderInput) (*service.PlaceOrderResult, error)
}

// OrderService reads and administers placed orders.
type OrderService interface {
	ListOrders(ctx context.Context, caller service.Caller, params pagination.Params) ([]domain.Order, pagination.Info, error)
	GetOrder(ctx context.Context, caller service.Caller, orderID string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, orderID, newStatus string) (*domain.Order, error)
}

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	checkout CheckoutService
	orders   OrderService
	logger   *slog.Logger
}

// NewOrderHandler creates a new order HTTP handler.
func NewOrderHandler(checkout CheckoutService, orders OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		checkout: checkout,
		orders:   orders,
		logger:   logger,
	}
}

// --- Request / Response DTOs ---

// OrderItemRequest is one requested line item.
type OrderItemRequest struct {
	BookID   string `json:"bookId"`
	Quantity int    `json:"quantity"`
}

// PlaceOrderRequest is the JSON request body for checkout. Item and address
// rules are enforced by the checkout service so that failures are reported
// in a fixed order.
type PlaceOrderRequest struct {
	Items           []OrderItemRequest `json:"items"`
	ShippingAddress domain.Address     `json:"shippingAddress"`
}

// PlaceOrderResponse is returned after a successful checkout.
type PlaceOrderResponse struct {
	ClientSecret string `json:"clientSecret"`
}

// UpdateStatusRequest is the JSON request body for updating order status.
type UpdateStatusRequest struct {
	NewStatus string `json:"newStatus" validate:"required"`
}

// ListOrdersResponse is one page of orders with its navigation fields.
type ListOrdersResponse struct {
	Orders []domain.Order `json:"orders"`
	pagination.Info
}

// --- Handlers ---

// PlaceOrder handles POST /api/v1/order
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req PlaceOrderRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	key := r.Header.Get(IdempotencyKeyHeader)
	if len(key) > maxIdempotencyKeyLen {
		httputil.WriteError(w, r, apperrors.InvalidField(IdempotencyKeyHeader, "idempotency key is too long"), h.logger)
		return
	}

	items := make([]service.OrderItemInput, len(req.Items))
	for i, it := range req.Items {
		items[i] = service.OrderItemInput{BookID: it.BookID, Quantity: it.Quantity}
	}

	res, err := h.checkout.PlaceOrder(r.Context(), service.PlaceOrderInput{
		UserID:          middleware.UserIDFromContext(r.Context()),
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		IdempotencyKey:  key,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, PlaceOrderResponse{ClientSecret: res.ClientSecret})
}

// ListOrders handles GET /api/v1/order
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)

	orders, info, err := h.orders.ListOrders(r.Context(), callerFrom(r.Context()), params)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, "Order retrieved successfully", ListOrdersResponse{
		Orders: orders,
		Info:   info,
	})
}

// GetOrder handles GET /api/v1/order/{orderId}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "orderId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, "Order retrieved successfully", order)
}

// UpdateOrderStatus handles PATCH /api/v1/order/{orderId}/update-status
func (h *OrderHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req UpdateStatusRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "orderId"), req.NewStatus)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, "Order status updated successfully", order)
}

func callerFrom(ctx context.Context) service.Caller {
	return service.Caller{
		UserID:  middleware.UserIDFromContext(ctx),
		IsAdmin: middleware.IsAdmin(ctx),
	}
}
