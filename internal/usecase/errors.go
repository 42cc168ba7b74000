package usecase

import (
	"errors"
	"fmt"

	domain "github.com/aq2208/gorder-inventory/internal/entity"
)

var (
	ErrValidation = errors.New("validation failed")

	ErrProductNotFound = errors.New("product not found")
	ErrOrderNotFound   = errors.New("order not found")

	ErrDuplicateSku       = errors.New("sku already exists")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrDeletionNotAllowed = errors.New("only PENDING orders can be deleted; consider status=CANCELED")
	ErrDuplicateRequest   = errors.New("request with this idempotency key is already in progress")
	ErrConcurrentUpdate   = errors.New("order was modified concurrently")
	// ErrIntegrity is the safety net for storage constraint violations not
	// caught by an explicit check.
	ErrIntegrity = errors.New("integrity constraint violated")

	ErrMissingSignature = errors.New("missing signature headers")
	ErrBadTimestamp     = errors.New("bad timestamp header")
	ErrStaleWebhook     = errors.New("stale webhook")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrUnsupportedEvent = errors.New("unsupported event type")
)

// FieldError is a validation failure bound to one input field.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Err.Error() }

func (e *FieldError) Unwrap() error { return e.Err }

func (e *FieldError) Is(target error) bool { return target == ErrValidation }

// TransitionError reports a status change rejected by the transition table.
type TransitionError struct {
	From, To domain.Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

func productFieldError(err error) error {
	field := "body"
	switch {
	case errors.Is(err, domain.ErrEmptySKU):
		field = "sku"
	case errors.Is(err, domain.ErrEmptyName):
		field = "name"
	case errors.Is(err, domain.ErrInvalidPrice):
		field = "price"
	case errors.Is(err, domain.ErrNegativeStock):
		field = "stock"
	}
	return &FieldError{Field: field, Err: err}
}

// IsConflict reports whether err is one of the conflict conditions a caller
// should surface as 409.
func IsConflict(err error) bool {
	for _, target := range []error{
		ErrDuplicateSku,
		ErrInsufficientStock,
		ErrInvalidTransition,
		ErrDeletionNotAllowed,
		ErrDuplicateRequest,
		ErrConcurrentUpdate,
		ErrIntegrity,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
