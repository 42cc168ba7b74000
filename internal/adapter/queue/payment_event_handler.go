package queue

import (
	"context"
	"errors"

	"github.com/aq2208/gorder-inventory/internal/logging"
	"github.com/aq2208/gorder-inventory/internal/usecase"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	HeaderSignature          = "X-Signature"
	HeaderSignatureTimestamp = "X-Signature-Timestamp"
)

type paymentVerifier interface {
	VerifyAndApply(ctx context.Context, raw []byte, timestamp, signature string) (usecase.AppliedResult, error)
}

// PaymentEventHandler consumes payment webhooks relayed onto the bus. The body
// is the untouched webhook body and the signature travels in the headers, so
// the same verification as the HTTP endpoint applies.
type PaymentEventHandler struct {
	webhook paymentVerifier
}

func NewPaymentEventHandler(webhook paymentVerifier) *PaymentEventHandler {
	return &PaymentEventHandler{webhook: webhook}
}

func (h *PaymentEventHandler) Handle(ctx context.Context, d amqp.Delivery) error {
	ts := headerString(d.Headers, HeaderSignatureTimestamp)
	sig := headerString(d.Headers, HeaderSignature)

	res, err := h.webhook.VerifyAndApply(ctx, d.Body, ts, sig)
	if err != nil {
		if rejectedForGood(err) {
			return Permanent(err)
		}
		return err
	}
	logging.FromCtx(ctx).Info("relayed payment applied", "order_id", res.OrderID, "status", res.Status, "msg_id", d.MessageId)
	return nil
}

func rejectedForGood(err error) bool {
	for _, target := range []error{
		usecase.ErrMissingSignature,
		usecase.ErrBadTimestamp,
		usecase.ErrStaleWebhook,
		usecase.ErrInvalidSignature,
		usecase.ErrMalformedPayload,
		usecase.ErrUnsupportedEvent,
		usecase.ErrOrderNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func headerString(t amqp.Table, key string) string {
	switch v := t[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}
