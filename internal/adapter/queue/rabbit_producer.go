package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aq2208/gorder-inventory/internal/usecase"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	RoutingKeyCreated       = "order.created"
	RoutingKeyStatusChanged = "order.status_changed"
)

type confirmPublisher interface {
	PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error)
}

// RabbitProducer implements usecase.EventPublisher
type RabbitProducer struct {
	ch       confirmPublisher
	exchange string
	now      func() time.Time
}

// DeclareExchange sets up the durable topic exchange every order event goes to.
func DeclareExchange(ch *amqp.Channel, exchange string) error {
	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	return nil
}

// DeclareQueue declares a durable queue and binds it to exchange with key.
func DeclareQueue(ch *amqp.Channel, exchange, queue, key string) error {
	q, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, key, exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}
	return nil
}

// NewRabbitProducer declares the exchange and puts ch in confirm mode.
func NewRabbitProducer(ch *amqp.Channel, exchange string) (*RabbitProducer, error) {
	if err := DeclareExchange(ch, exchange); err != nil {
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("enable confirm mode: %w", err)
	}
	return newProducer(ch, exchange), nil
}

func newProducer(ch confirmPublisher, exchange string) *RabbitProducer {
	return &RabbitProducer{ch: ch, exchange: exchange, now: time.Now}
}

// PublishCreated sends an "order.created" event to the exchange.
func (p *RabbitProducer) PublishCreated(ctx context.Context, msg usecase.CreatedMsg) error {
	return p.publish(ctx, RoutingKeyCreated, msg)
}

// PublishStatusChanged sends an "order.status_changed" event to the exchange.
func (p *RabbitProducer) PublishStatusChanged(ctx context.Context, msg usecase.OrderStatusChangedMsg) error {
	return p.publish(ctx, RoutingKeyStatusChanged, msg)
}

func (p *RabbitProducer) publish(ctx context.Context, key string, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // survive broker restarts
		MessageId:    uuid.NewString(),
		Timestamp:    p.now().UTC(),
		Type:         key,
		Body:         body,
	}

	confirm, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, key, false, false, pub)
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	// nil when the channel is not in confirm mode
	if confirm == nil {
		return nil
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("confirm %s: %w", key, err)
	}
	if !acked {
		return fmt.Errorf("publish %s: broker nacked message %s", key, pub.MessageId)
	}
	return nil
}

var _ usecase.EventPublisher = (*RabbitProducer)(nil)
