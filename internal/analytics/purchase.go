package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"storefront/internal/logging"
)

const eventTypePurchase = "purchase"

type PurchaseItem struct {
	ProductID int64   `json:"product_id"`
	VariantID *int64  `json:"variant_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// PurchaseEvent is emitted once per completed order.
type PurchaseEvent struct {
	EventID    string         `json:"event_id"`
	OrderID    string         `json:"order_id,omitempty"`
	UserID     string         `json:"user_id"`
	Value      float64        `json:"value"`
	Tax        float64        `json:"tax"`
	Shipping   float64        `json:"shipping"`
	Currency   string         `json:"currency"`
	Items      []PurchaseItem `json:"items"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	writer MessageWriter
	logger *zap.Logger
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

func NewPublisher(writer MessageWriter, logger *zap.Logger) *Publisher {
	return &Publisher{writer: writer, logger: logging.OrNop(logger).Named("analytics")}
}

func (p *Publisher) PublishPurchase(ctx context.Context, event PurchaseEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal purchase event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.UserID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventTypePurchase)},
			{Key: "event_id", Value: []byte(event.EventID)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish purchase event: %w", err)
	}

	p.logger.Info("purchase event published",
		zap.String("eventId", event.EventID),
		zap.String("orderId", event.OrderID))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// LogWriter stands in for Kafka when no brokers are configured.
type LogWriter struct {
	logger *zap.Logger
}

func NewLogWriter(logger *zap.Logger) *LogWriter {
	return &LogWriter{logger: logging.OrNop(logger).Named("analytics")}
}

func (w *LogWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, msg := range msgs {
		w.logger.Info("event not sent, no brokers configured",
			zap.ByteString("key", msg.Key),
			zap.ByteString("value", msg.Value))
	}
	return nil
}

func (w *LogWriter) Close() error { return nil }
