package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nikolayk812/shopcore/internal/domain"
	"github.com/nikolayk812/shopcore/internal/port"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeName = "shop_orders"
	ExchangeType = "topic"
)

// SetupConn handles the connection and exchange declaration.
func SetupConn(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("could not open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		ExchangeName, // name
		ExchangeType, // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return nil, nil, fmt.Errorf("could not declare exchange: %w", err)
	}

	return conn, ch, nil
}

type publisher struct {
	ch *amqp.Channel
}

// NewPublisher creates a Notifier publishing order events to RabbitMQ.
func NewPublisher(ch *amqp.Channel) port.Notifier {
	return &publisher{ch: ch}
}

type orderEvent struct {
	Event       string    `json:"event"`
	OrderNumber string    `json:"order_number"`
	UserID      *string   `json:"user_id,omitempty"`
	Total       string    `json:"total"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func (p *publisher) OrderConfirmed(ctx context.Context, order domain.Order) error {
	return p.publish(ctx, "confirmed", order)
}

func (p *publisher) OrderShipped(ctx context.Context, order domain.Order) error {
	return p.publish(ctx, "shipped", order)
}

func (p *publisher) OrderDelivered(ctx context.Context, order domain.Order) error {
	return p.publish(ctx, "delivered", order)
}

func (p *publisher) publish(ctx context.Context, event string, order domain.Order) error {
	body, err := json.Marshal(orderEvent{
		Event:       event,
		OrderNumber: order.Number,
		UserID:      order.UserID,
		Total:       order.Total().String(),
		Currency:    order.Currency.String(),
		Status:      string(order.Status),
		OccurredAt:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("could not marshal order event: %w", err)
	}

	// Routing key: order.<event> (e.g., order.shipped)
	routingKey := fmt.Sprintf("order.%s", event)

	return p.ch.PublishWithContext(ctx,
		ExchangeName, // exchange
		routingKey,   // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
}
