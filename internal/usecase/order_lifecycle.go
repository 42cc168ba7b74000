package usecase

import (
	"context"

	domain "github.com/aq2208/gorder-inventory/internal/entity"
	"github.com/aq2208/gorder-inventory/internal/logging"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// maxTransitionAttempts bounds how often a guarded status update is retried
// after losing a race with another writer.
const maxTransitionAttempts = 3

// OrderLifecycle validates and applies order status changes. cache and events
// are optional.
type OrderLifecycle struct {
	orders OrderRepo
	cache  OrderCache
	events EventPublisher
}

func NewOrderLifecycle(orders OrderRepo, cache OrderCache, events EventPublisher) *OrderLifecycle {
	return &OrderLifecycle{orders: orders, cache: cache, events: events}
}

func (uc *OrderLifecycle) Get(ctx context.Context, id int64) (domain.Order, error) {
	return uc.orders.GetByID(ctx, id)
}

// Status answers from the cache when it can and falls back to storage.
func (uc *OrderLifecycle) Status(ctx context.Context, id int64) (domain.Status, error) {
	if uc.cache != nil {
		st, ok, err := uc.cache.GetStatus(ctx, id)
		if err == nil && ok {
			return st, nil
		}
		if err != nil {
			logging.FromCtx(ctx).Warn("read cached status", "order_id", id, "err", err)
		}
	}
	o, err := uc.orders.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	uc.cacheStatus(ctx, o)
	return o.Status, nil
}

// UpdateStatus moves the order to next if the transition table allows it.
// Requesting the current status is a successful no-op.
func (uc *OrderLifecycle) UpdateStatus(ctx context.Context, id int64, next domain.Status) (domain.Order, error) {
	ctx, span := tracer.Start(ctx, "update_order_status")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", id), attribute.String("order.status.to", string(next)))

	if !next.Valid() {
		return domain.Order{}, &FieldError{Field: "status", Err: domain.ErrUnknownStatus}
	}

	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		o, err := uc.orders.GetByID(ctx, id)
		if err != nil {
			return domain.Order{}, err
		}
		if o.Status == next {
			return o, nil
		}
		if !domain.CanTransition(o.Status, next) {
			err := &TransitionError{From: o.Status, To: next}
			span.SetStatus(codes.Error, err.Error())
			return domain.Order{}, err
		}

		ok, err := uc.orders.UpdateStatusIf(ctx, id, o.Status, next)
		if err != nil {
			return domain.Order{}, err
		}
		if ok {
			from := o.Status
			o.Status = next
			uc.afterTransition(ctx, o, from)
			return o, nil
		}
		// Someone else moved the row between the read and the guarded
		// write; re-validate against what is stored now.
	}
	span.SetStatus(codes.Error, ErrConcurrentUpdate.Error())
	return domain.Order{}, ErrConcurrentUpdate
}

// MarkPaid applies a payment confirmation. Only a PENDING order changes; any
// other status is returned untouched so redelivery never fails.
func (uc *OrderLifecycle) MarkPaid(ctx context.Context, id int64) (domain.Order, error) {
	o, err := uc.orders.GetByID(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if o.Status != domain.StatusPending {
		return o, nil
	}

	ok, err := uc.orders.UpdateStatusIf(ctx, id, domain.StatusPending, domain.StatusPaid)
	if err != nil {
		return domain.Order{}, err
	}
	if !ok {
		// Lost to a concurrent writer (a parallel delivery or a cancel).
		// Whatever it left behind is the answer.
		return uc.orders.GetByID(ctx, id)
	}
	o.Status = domain.StatusPaid
	uc.afterTransition(ctx, o, domain.StatusPending)
	return o, nil
}

// Delete removes a PENDING order. Other statuses must be canceled instead.
func (uc *OrderLifecycle) Delete(ctx context.Context, id int64) error {
	ok, err := uc.orders.DeleteIfStatus(ctx, id, domain.StatusPending)
	if err != nil {
		return err
	}
	if ok {
		if uc.cache != nil {
			if err := uc.cache.DeleteStatus(ctx, id); err != nil {
				logging.FromCtx(ctx).Warn("evict cached status", "order_id", id, "err", err)
			}
		}
		return nil
	}
	if _, err := uc.orders.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrDeletionNotAllowed
}

func (uc *OrderLifecycle) afterTransition(ctx context.Context, o domain.Order, from domain.Status) {
	statusTransitionsTotal.WithLabelValues(string(from), string(o.Status)).Inc()
	log := logging.FromCtx(ctx)
	uc.cacheStatus(ctx, o)
	if uc.events != nil {
		err := uc.events.PublishStatusChanged(ctx, OrderStatusChangedMsg{
			OrderID: o.ID,
			From:    string(from),
			Status:  string(o.Status),
		})
		if err != nil {
			log.Warn("publish order.status_changed", "order_id", o.ID, "err", err)
		}
	}
	log.Info("order status changed", "order_id", o.ID, "from", from, "to", o.Status)
}

func (uc *OrderLifecycle) cacheStatus(ctx context.Context, o domain.Order) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.SetStatus(ctx, o.ID, o.Status); err != nil {
		logging.FromCtx(ctx).Warn("cache order status", "order_id", o.ID, "err", err)
	}
}
