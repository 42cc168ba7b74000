package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	domain "github.com/aq2208/gorder-inventory/internal/entity"
	"github.com/aq2208/gorder-inventory/internal/usecase"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAck struct {
	acks, nacks int
	requeue     bool
}

func (f *fakeAck) Ack(uint64, bool) error { f.acks++; return nil }
func (f *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacks++
	f.requeue = requeue
	return nil
}
func (f *fakeAck) Reject(uint64, bool) error { return nil }

type handlerFunc func(ctx context.Context, d amqp.Delivery) error

func (f handlerFunc) Handle(ctx context.Context, d amqp.Delivery) error { return f(ctx, d) }

func TestRouterDispatchSettlesDeliveries(t *testing.T) {
	r := NewRouter(nil, WithTimeout(time.Second))
	ctx := context.Background()

	cases := []struct {
		name              string
		err               error
		wantAck, wantNack int
	}{
		{"success", nil, 1, 0},
		{"permanent", Permanent(errors.New("bad body")), 1, 0},
		{"transient", errors.New("db down"), 0, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ack := &fakeAck{}
			d := amqp.Delivery{Acknowledger: ack, DeliveryTag: 1}
			r.dispatch(ctx, handlerFunc(func(context.Context, amqp.Delivery) error { return tc.err }), d)
			assert.Equal(t, tc.wantAck, ack.acks)
			assert.Equal(t, tc.wantNack, ack.nacks)
			if tc.wantNack > 0 {
				assert.True(t, ack.requeue)
			}
		})
	}
}

type published struct {
	exchange, key string
	msg           amqp.Publishing
}

type fakePublisher struct {
	sent []published
	err  error
}

func (f *fakePublisher) PublishWithDeferredConfirmWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, published{exchange: exchange, key: key, msg: msg})
	return nil, nil
}

func TestRabbitProducerPublishes(t *testing.T) {
	fp := &fakePublisher{}
	p := newProducer(fp, "order.events")
	ctx := context.Background()

	created := usecase.CreatedMsg{OrderID: 1, ProductID: 2, Quantity: 3, Status: string(domain.StatusPending)}
	require.NoError(t, p.PublishCreated(ctx, created))
	require.NoError(t, p.PublishStatusChanged(ctx, usecase.OrderStatusChangedMsg{OrderID: 1, From: "PENDING", Status: "PAID"}))

	require.Len(t, fp.sent, 2)
	assert.Equal(t, "order.events", fp.sent[0].exchange)
	assert.Equal(t, RoutingKeyCreated, fp.sent[0].key)
	assert.Equal(t, RoutingKeyStatusChanged, fp.sent[1].key)
	assert.Equal(t, amqp.Persistent, fp.sent[0].msg.DeliveryMode)
	assert.NotEmpty(t, fp.sent[0].msg.MessageId)
	assert.NotEqual(t, fp.sent[0].msg.MessageId, fp.sent[1].msg.MessageId)

	var back usecase.CreatedMsg
	require.NoError(t, json.Unmarshal(fp.sent[0].msg.Body, &back))
	assert.Equal(t, created.OrderID, back.OrderID)
	assert.Equal(t, created.Quantity, back.Quantity)

	fp.err = errors.New("channel closed")
	assert.Error(t, p.PublishCreated(ctx, created))
}

type fakeVerifier struct {
	ts, sig string
	body    []byte
	res     usecase.AppliedResult
	err     error
}

func (f *fakeVerifier) VerifyAndApply(_ context.Context, raw []byte, ts, sig string) (usecase.AppliedResult, error) {
	f.body, f.ts, f.sig = raw, ts, sig
	return f.res, f.err
}

func TestPaymentEventHandler(t *testing.T) {
	fv := &fakeVerifier{res: usecase.AppliedResult{OrderID: 9, Status: domain.StatusPaid}}
	h := NewPaymentEventHandler(fv)
	d := amqp.Delivery{
		Body: []byte(`{"type":"payment.succeeded","data":{"order_id":9}}`),
		Headers: amqp.Table{
			HeaderSignatureTimestamp: "1700000000",
			HeaderSignature:          []byte("abc123"),
		},
	}

	require.NoError(t, h.Handle(context.Background(), d))
	assert.Equal(t, "1700000000", fv.ts)
	assert.Equal(t, "abc123", fv.sig)
	assert.Equal(t, d.Body, fv.body)

	fv.err = usecase.ErrInvalidSignature
	assert.True(t, IsPermanent(h.Handle(context.Background(), d)))

	fv.err = usecase.ErrOrderNotFound
	assert.True(t, IsPermanent(h.Handle(context.Background(), d)))

	fv.err = errors.New("database is locked")
	err := h.Handle(context.Background(), d)
	require.Error(t, err)
	assert.False(t, IsPermanent(err))
}
