package usecase

import (
	"context"

	domain "github.com/aq2208/gorder-inventory/internal/entity"
)

type ProductRepo interface {
	Create(ctx context.Context, p domain.Product) (domain.Product, error)
	GetByID(ctx context.Context, id int64) (domain.Product, error)
	List(ctx context.Context, limit, offset int) ([]domain.Product, error)
	Update(ctx context.Context, id int64, patch domain.ProductPatch) (domain.Product, error)
	Delete(ctx context.Context, id int64) error
}

type OrderRepo interface {
	GetByID(ctx context.Context, id int64) (domain.Order, error)
	// UpdateStatusIf moves the order to toStatus only while it is still in
	// fromStatus. false means nothing matched.
	UpdateStatusIf(ctx context.Context, id int64, fromStatus, toStatus domain.Status) (bool, error)
	DeleteIfStatus(ctx context.Context, id int64, status domain.Status) (bool, error)
}

// Reserver decrements stock and inserts the order as one unit of work.
type Reserver interface {
	ReserveAndCreate(ctx context.Context, o domain.Order) (domain.Order, error)
}

type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
	Forget(ctx context.Context, scope, key string) error
}

type OrderCache interface {
	SetStatus(ctx context.Context, orderID int64, status domain.Status) error
	GetStatus(ctx context.Context, orderID int64) (domain.Status, bool, error)
	DeleteStatus(ctx context.Context, orderID int64) error
}

type EventPublisher interface {
	PublishCreated(ctx context.Context, msg CreatedMsg) error
	PublishStatusChanged(ctx context.Context, msg OrderStatusChangedMsg) error
}

type SignatureVerifier interface {
	Verify(timestamp string, body []byte, signature string) error
}
