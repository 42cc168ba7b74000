package usecase

import (
	"context"
	"errors"
	"strconv"
	"time"

	domain "github.com/aq2208/gorder-inventory/internal/entity"
	"github.com/aq2208/gorder-inventory/internal/logging"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const idempotencyScope = "orders"

var errQuantityRange = errors.New("quantity must be >= 1")

type ReserveOrderInput struct {
	ProductID      int64
	Quantity       int
	IdempotencyKey string
}

// ReserveOrder turns a "create order" request into a stock decrement plus a
// PENDING order row. Both happen in one storage transaction or not at all.
type ReserveOrder struct {
	products ProductRepo
	orders   OrderRepo
	reserver Reserver
	idem     IdempotencyStore
	cache    OrderCache
	events   EventPublisher
	now      func() time.Time
}

type ReserveOption func(*ReserveOrder)

func WithIdempotency(s IdempotencyStore) ReserveOption { return func(uc *ReserveOrder) { uc.idem = s } }
func WithOrderCache(c OrderCache) ReserveOption        { return func(uc *ReserveOrder) { uc.cache = c } }
func WithPublisher(p EventPublisher) ReserveOption     { return func(uc *ReserveOrder) { uc.events = p } }
func WithClock(now func() time.Time) ReserveOption     { return func(uc *ReserveOrder) { uc.now = now } }

func NewReserveOrder(products ProductRepo, orders OrderRepo, reserver Reserver, opts ...ReserveOption) *ReserveOrder {
	uc := &ReserveOrder{
		products: products,
		orders:   orders,
		reserver: reserver,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func (uc *ReserveOrder) Execute(ctx context.Context, in ReserveOrderInput) (domain.Order, error) {
	ctx, span := tracer.Start(ctx, "reserve_order")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("product.id", in.ProductID),
		attribute.Int("order.quantity", in.Quantity),
	)

	if in.Quantity < 1 {
		return domain.Order{}, &FieldError{Field: "quantity", Err: errQuantityRange}
	}

	// Fast path: a replayed idempotency key returns the order it created.
	locked := false
	if uc.idem != nil && in.IdempotencyKey != "" {
		if o, ok := uc.recall(ctx, in.IdempotencyKey); ok {
			span.SetAttributes(attribute.Bool("idempotent.replay", true))
			return o, nil
		}
		ok, err := uc.idem.TryLock(ctx, idempotencyScope, in.IdempotencyKey)
		if err != nil {
			return domain.Order{}, err
		}
		if !ok {
			return domain.Order{}, ErrDuplicateRequest
		}
		locked = true
	}

	order, err := uc.reserve(ctx, in)
	if err != nil {
		if locked {
			_ = uc.idem.Forget(ctx, idempotencyScope, in.IdempotencyKey)
		}
		reservationsTotal.WithLabelValues(reservationOutcome(err)).Inc()
		span.SetStatus(codes.Error, err.Error())
		return domain.Order{}, err
	}
	reservationsTotal.WithLabelValues("created").Inc()
	span.SetAttributes(attribute.Int64("order.id", order.ID))

	if locked {
		_ = uc.idem.Remember(ctx, idempotencyScope, in.IdempotencyKey, strconv.FormatInt(order.ID, 10))
	}
	uc.afterCreate(ctx, order)
	return order, nil
}

func (uc *ReserveOrder) reserve(ctx context.Context, in ReserveOrderInput) (domain.Order, error) {
	// Existence is checked up front so a missing product never reaches the
	// conditional decrement.
	if _, err := uc.products.GetByID(ctx, in.ProductID); err != nil {
		return domain.Order{}, err
	}
	order, err := domain.NewOrder(in.ProductID, in.Quantity, uc.now())
	if err != nil {
		return domain.Order{}, &FieldError{Field: "quantity", Err: err}
	}
	return uc.reserver.ReserveAndCreate(ctx, order)
}

func (uc *ReserveOrder) recall(ctx context.Context, key string) (domain.Order, bool) {
	val, ok, err := uc.idem.Recall(ctx, idempotencyScope, key)
	if err != nil || !ok {
		return domain.Order{}, false
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return domain.Order{}, false
	}
	o, err := uc.orders.GetByID(ctx, id)
	if errors.Is(err, ErrOrderNotFound) {
		// the order was deleted; release the key so it can create a new one
		if err := uc.idem.Forget(ctx, idempotencyScope, key); err != nil {
			logging.FromCtx(ctx).Warn("release idempotency key", "key", key, "err", err)
		}
		return domain.Order{}, false
	}
	if err != nil {
		return domain.Order{}, false
	}
	return o, true
}

// afterCreate runs best-effort side effects; the order is already committed.
func (uc *ReserveOrder) afterCreate(ctx context.Context, o domain.Order) {
	log := logging.FromCtx(ctx)
	if uc.cache != nil {
		if err := uc.cache.SetStatus(ctx, o.ID, o.Status); err != nil {
			log.Warn("cache order status", "order_id", o.ID, "err", err)
		}
	}
	if uc.events != nil {
		err := uc.events.PublishCreated(ctx, CreatedMsg{
			OrderID:   o.ID,
			ProductID: o.ProductID,
			Quantity:  o.Quantity,
			Status:    string(o.Status),
			CreatedAt: o.CreatedAt,
		})
		if err != nil {
			log.Warn("publish order.created", "order_id", o.ID, "err", err)
		}
	}
	log.Info("order reserved", "order_id", o.ID, "product_id", o.ProductID, "quantity", o.Quantity)
}

func reservationOutcome(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}
