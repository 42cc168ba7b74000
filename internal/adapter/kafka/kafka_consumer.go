package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/aq2208/gorder-inventory/internal/logging"
)

// ErrSkip tells the consumer a message can never be applied. It is marked
// and not retried.
var ErrSkip = errors.New("skip message")

// FulfillmentEvent is published by the fulfillment service when it ships or
// cancels an order.
type FulfillmentEvent struct {
	OrderID int64  `json:"orderId"`
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
}

// HandlerFunc processes a decoded event.
type HandlerFunc func(ctx context.Context, ev FulfillmentEvent) error

// Consumer consumes a topic with a single handler.
type Consumer struct {
	Group   sarama.ConsumerGroup
	Topics  []string
	Handle  HandlerFunc
	Logger  *slog.Logger
	Backoff time.Duration
}

func NewConsumer(group sarama.ConsumerGroup, topics []string, h HandlerFunc) *Consumer {
	return &Consumer{
		Group:   group,
		Topics:  topics,
		Handle:  h,
		Logger:  logging.New("kafka-consumer"),
		Backoff: time.Second,
	}
}

// Start blocks until ctx is done or the group fails.
func (c *Consumer) Start(ctx context.Context) error {
	handler := &cgHandler{handle: c.Handle, logger: c.Logger}
	go func() {
		for err := range c.Group.Errors() {
			c.Logger.Warn("consumer group error", "err", err)
		}
	}()
	for {
		if err := c.Group.Consume(ctx, c.Topics, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		// Consume returns on rebalance or after a claim stopped on an error.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.Backoff):
		}
	}
}

type cgHandler struct {
	handle HandlerFunc
	logger *slog.Logger
}

func (h *cgHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *cgHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *cgHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		l := h.logger.With("topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "key", string(msg.Key))

		var ev FulfillmentEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			l.Warn("kafka decode error", "err", err)
			// mark to avoid reprocessing poison
			sess.MarkMessage(msg, "decode-error")
			continue
		}

		ctx := logging.WithCtx(sess.Context(), l)
		if err := h.handle(ctx, ev); err != nil {
			if errors.Is(err, ErrSkip) {
				l.Warn("event skipped", "order_id", ev.OrderID, "status", ev.Status, "err", err)
				sess.MarkMessage(msg, "skipped")
				continue
			}
			// Leave the offset where it is; the next session retries from here.
			l.Error("handler error", "order_id", ev.OrderID, "err", err)
			return err
		}
		sess.MarkMessage(msg, "")
	}
	return nil
}
