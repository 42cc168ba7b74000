package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	domain "github.com/aq2208/gorder-inventory/internal/entity"
	"github.com/aq2208/gorder-inventory/internal/logging"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	EventPaymentSucceeded = "payment.succeeded"

	DefaultMaxSkew = 300 * time.Second
)

// AppliedResult is what a verified delivery did to its order.
type AppliedResult struct {
	OrderID int64
	Status  domain.Status
}

type paymentEvent struct {
	Type string `json:"type"`
	Data struct {
		OrderID json.RawMessage `json:"order_id"`
	} `json:"data"`
}

// PaymentWebhook authenticates signed payment notifications and marks the
// referenced order paid. Every gate fails fast before any state is touched.
type PaymentWebhook struct {
	verifier  SignatureVerifier
	lifecycle *OrderLifecycle
	maxSkew   time.Duration
	now       func() time.Time
}

type WebhookOption func(*PaymentWebhook)

func WithMaxSkew(d time.Duration) WebhookOption {
	return func(uc *PaymentWebhook) {
		if d >= 0 {
			uc.maxSkew = d
		}
	}
}

func WithWebhookClock(now func() time.Time) WebhookOption {
	return func(uc *PaymentWebhook) { uc.now = now }
}

func NewPaymentWebhook(verifier SignatureVerifier, lifecycle *OrderLifecycle, opts ...WebhookOption) *PaymentWebhook {
	uc := &PaymentWebhook{
		verifier:  verifier,
		lifecycle: lifecycle,
		maxSkew:   DefaultMaxSkew,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func (uc *PaymentWebhook) VerifyAndApply(ctx context.Context, raw []byte, timestamp, signature string) (AppliedResult, error) {
	ctx, span := tracer.Start(ctx, "payment_webhook")
	defer span.End()

	res, err := uc.verifyAndApply(ctx, raw, timestamp, signature)
	webhookEventsTotal.WithLabelValues(webhookOutcome(err)).Inc()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		logging.FromCtx(ctx).Warn("payment webhook rejected", "err", err)
		return AppliedResult{}, err
	}
	span.SetAttributes(attribute.Int64("order.id", res.OrderID), attribute.String("order.status", string(res.Status)))
	return res, nil
}

func (uc *PaymentWebhook) verifyAndApply(ctx context.Context, raw []byte, timestamp, signature string) (AppliedResult, error) {
	if timestamp == "" || signature == "" {
		return AppliedResult{}, ErrMissingSignature
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(timestamp), 10, 64)
	if err != nil {
		return AppliedResult{}, ErrBadTimestamp
	}
	skew := uc.now().Unix() - ts
	if skew < 0 {
		skew = -skew
	}
	if skew > int64(uc.maxSkew/time.Second) {
		return AppliedResult{}, ErrStaleWebhook
	}
	// The signature covers the header value exactly as sent and the raw body.
	if err := uc.verifier.Verify(timestamp, raw, signature); err != nil {
		return AppliedResult{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	orderID, eventType, err := decodePaymentEvent(raw)
	if err != nil {
		return AppliedResult{}, err
	}
	if eventType != EventPaymentSucceeded {
		return AppliedResult{}, ErrUnsupportedEvent
	}

	o, err := uc.lifecycle.MarkPaid(ctx, orderID)
	if err != nil {
		return AppliedResult{}, err
	}
	return AppliedResult{OrderID: o.ID, Status: o.Status}, nil
}

// decodePaymentEvent accepts order_id as a JSON integer or a numeric string.
func decodePaymentEvent(raw []byte) (int64, string, error) {
	var ev paymentEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return 0, "", ErrMalformedPayload
	}
	idRaw := bytes.TrimSpace(ev.Data.OrderID)
	if len(idRaw) == 0 || bytes.Equal(idRaw, []byte("null")) {
		return 0, "", ErrMalformedPayload
	}
	if idRaw[0] == '"' {
		var s string
		if err := json.Unmarshal(idRaw, &s); err != nil {
			return 0, "", ErrMalformedPayload
		}
		idRaw = []byte(strings.TrimSpace(s))
	}
	id, err := strconv.ParseInt(string(idRaw), 10, 64)
	if err != nil {
		return 0, "", ErrMalformedPayload
	}
	return id, ev.Type, nil
}

func webhookOutcome(err error) string {
	switch {
	case err == nil:
		return "applied"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrStaleWebhook):
		return "stale"
	case errors.Is(err, ErrOrderNotFound):
		return "order_not_found"
	case errors.Is(err, ErrMissingSignature),
		errors.Is(err, ErrBadTimestamp),
		errors.Is(err, ErrMalformedPayload),
		errors.Is(err, ErrUnsupportedEvent):
		return "bad_request"
	default:
		return "error"
	}
}
