package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/aq2208/gorder-inventory/internal/entity"
	"github.com/aq2208/gorder-inventory/internal/usecase"
)

type statusUpdater interface {
	UpdateStatus(ctx context.Context, id int64, next domain.Status) (domain.Order, error)
}

// OrderStatusChangedHandler applies fulfillment events through the order
// lifecycle, so the transition table guards them like any API call.
type OrderStatusChangedHandler struct {
	Lifecycle statusUpdater
}

func NewOrderStatusChangedHandler(lc statusUpdater) *OrderStatusChangedHandler {
	return &OrderStatusChangedHandler{Lifecycle: lc}
}

func (h *OrderStatusChangedHandler) Handle(ctx context.Context, ev FulfillmentEvent) error {
	// Map external status -> internal
	var next domain.Status
	switch strings.ToUpper(strings.TrimSpace(ev.Status)) {
	case "SHIPPED", "DISPATCHED":
		next = domain.StatusShipped
	case "CANCELED", "CANCELLED", "REJECTED":
		next = domain.StatusCanceled
	default:
		return fmt.Errorf("%w: unknown fulfillment status %q", ErrSkip, ev.Status)
	}

	_, err := h.Lifecycle.UpdateStatus(ctx, ev.OrderID, next)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, usecase.ErrOrderNotFound),
		errors.Is(err, usecase.ErrInvalidTransition),
		errors.Is(err, usecase.ErrValidation):
		return fmt.Errorf("%w: %v", ErrSkip, err)
	default:
		return err
	}
}
