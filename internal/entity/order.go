package domain

import (
	"errors"
	"time"
)

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusPaid     Status = "PAID"
	StatusShipped  Status = "SHIPPED"
	StatusCanceled Status = "CANCELED"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be >= 1")
	ErrUnknownStatus   = errors.New("unknown order status")
)

// transitions is the complete set of legal status moves. Terminal states map to nothing.
var transitions = map[Status][]Status{
	StatusPending:  {StatusPaid, StatusCanceled},
	StatusPaid:     {StatusShipped, StatusCanceled},
	StatusShipped:  nil,
	StatusCanceled: nil,
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := transitions[st]; !ok {
		return "", ErrUnknownStatus
	}
	return st, nil
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// CanTransition reports whether from -> to is allowed. Same-state requests are
// accepted so callers can treat them as no-ops.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Order struct {
	ID        int64
	ProductID int64
	Quantity  int
	Status    Status
	CreatedAt time.Time
}

// NewOrder builds the PENDING order a successful reservation inserts.
func NewOrder(productID int64, quantity int, now time.Time) (Order, error) {
	if quantity < 1 {
		return Order{}, ErrInvalidQuantity
	}
	return Order{
		ProductID: productID,
		Quantity:  quantity,
		Status:    StatusPending,
		CreatedAt: now.UTC(),
	}, nil
}

// Deletable reports whether the order may be removed instead of canceled.
func (o Order) Deletable() bool {
	return o.Status == StatusPending
}
