package repo

import (
	"context"
	"database/sql"
	"fmt"

	domain "github.com/aq2208/gorder-inventory/internal/entity"
	"github.com/aq2208/gorder-inventory/internal/usecase"
)

// SQLReserver couples the guarded stock decrement with the order insert in a
// single transaction.
type SQLReserver struct{ db *sql.DB }

func NewSQLReserver(db *sql.DB) *SQLReserver { return &SQLReserver{db: db} }

// ReserveAndCreate never reads stock into the application. The WHERE clause
// is the sufficiency check, and zero affected rows means the guard failed.
// Everything inside the transaction goes through tx; touching r.db here would
// need a second connection.
func (r *SQLReserver) ReserveAndCreate(ctx context.Context, o domain.Order) (domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin reservation: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"UPDATE product SET stock = stock - ? WHERE id = ? AND stock >= ?",
		o.Quantity, o.ProductID, o.Quantity,
	)
	if err != nil {
		return domain.Order{}, reservationError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Order{}, err
	}
	if n == 0 {
		// The product may have been deleted since the caller looked it up.
		if _, err := getProduct(ctx, tx, o.ProductID); err != nil {
			return domain.Order{}, err
		}
		return domain.Order{}, usecase.ErrInsufficientStock
	}

	res, err = tx.ExecContext(ctx,
		"INSERT INTO `order` (product_id, quantity, status, created_at) VALUES (?, ?, ?, ?)",
		o.ProductID, o.Quantity, string(o.Status), toMillis(o.CreatedAt),
	)
	if err != nil {
		return domain.Order{}, reservationError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Order{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.Order{}, fmt.Errorf("commit reservation: %w", err)
	}
	o.ID = id
	// match what a read from storage would return
	o.CreatedAt = fromMillis(toMillis(o.CreatedAt))
	return o, nil
}

func reservationError(err error) error {
	switch constraintOf(err) {
	case constraintForeignKey:
		return usecase.ErrProductNotFound
	case constraintCheck, constraintUnique:
		return fmt.Errorf("%w: %v", usecase.ErrIntegrity, err)
	}
	return err
}

var _ usecase.Reserver = (*SQLReserver)(nil)
