package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/obaraelijah/LeafLine-Server/internal/domain"
	pkgkafka "github.com/obaraelijah/LeafLine-Server/pkg/kafka"
	"github.com/obaraelijah/LeafLine-Server/pkg/logger"
)

// Kafka topic constants for order events.
const (
	TopicOrderPlaced        = "leafline.order.placed"
	TopicOrderStatusChanged = "leafline.order.status_changed"
)

// AggregateTypeOrder is the aggregate type of every order event.
const AggregateTypeOrder = "order"

// SourceLeafLineServer identifies events emitted by this server.
const SourceLeafLineServer = "leafline-server"

// OrderPlacedData is the payload for an order.placed event.
type OrderPlacedData struct {
	OrderID         string            `json:"orderId"`
	UserID          string            `json:"userId"`
	Items           []domain.LineItem `json:"orderItems"`
	TotalPrice      string            `json:"totalPrice"`
	Currency        string            `json:"currency"`
	PaymentIntentID string            `json:"paymentIntentId"`
	TrackingNumber  string            `json:"trackingNumber"`
	PlacedAt        time.Time         `json:"placedAt"`
}

// OrderStatusChangedData is the payload for an order.status_changed event.
type OrderStatusChangedData struct {
	OrderID   string `json:"orderId"`
	OldStatus string `json:"oldStatus"`
	NewStatus string `json:"newStatus"`
}

// Producer publishes order events to Kafka.
type Producer struct {
	kafka  pkgkafka.Publisher
	logger *slog.Logger
}

// NewProducer creates a new order event producer.
func NewProducer(kafka pkgkafka.Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishOrderPlaced publishes an order.placed event for a committed order.
func (p *Producer) PublishOrderPlaced(ctx context.Context, order *domain.Order) error {
	data := OrderPlacedData{
		OrderID:         order.OrderID,
		UserID:          order.UserID,
		Items:           order.Items,
		TotalPrice:      order.TotalPrice.StringFixed(2),
		Currency:        order.Currency,
		PaymentIntentID: order.PaymentIntentID,
		TrackingNumber:  order.TrackingNumber,
		PlacedAt:        order.CreatedAt,
	}
	return p.publish(ctx, TopicOrderPlaced, order.OrderID, data)
}

// PublishOrderStatusChanged publishes an order.status_changed event.
func (p *Producer) PublishOrderStatusChanged(ctx context.Context, orderID, oldStatus, newStatus string) error {
	data := OrderStatusChangedData{
		OrderID:   orderID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
	}
	return p.publish(ctx, TopicOrderStatusChanged, orderID, data)
}

func (p *Producer) publish(ctx context.Context, topic, orderID string, data any) error {
	ev, err := pkgkafka.NewEvent(topic, orderID, AggregateTypeOrder, SourceLeafLineServer, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	ev.WithCorrelationID(logger.CorrelationIDFromContext(ctx))

	if err := p.kafka.Publish(ctx, topic, ev); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published order event",
		slog.String("topic", topic),
		slog.String("order_id", orderID),
	)
	return nil
}
