package repo

import (
	"context"
	"database/sql"
	"errors"

	domain "github.com/aq2208/gorder-inventory/internal/entity"
	"github.com/aq2208/gorder-inventory/internal/usecase"
)

type SQLOrderRepo struct{ db *sql.DB }

func NewSQLOrderRepo(db *sql.DB) *SQLOrderRepo { return &SQLOrderRepo{db: db} }

func (r *SQLOrderRepo) GetByID(ctx context.Context, id int64) (domain.Order, error) {
	var (
		o         domain.Order
		status    string
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT id, product_id, quantity, status, created_at FROM `order` WHERE id = ?", id,
	).Scan(&o.ID, &o.ProductID, &o.Quantity, &status, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, usecase.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	o.Status = domain.Status(status)
	o.CreatedAt = fromMillis(createdAt)
	return o, nil
}

func (r *SQLOrderRepo) UpdateStatusIf(ctx context.Context, id int64, fromStatus, toStatus domain.Status) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE `order` SET status = ? WHERE id = ? AND status = ?",
		string(toStatus), id, string(fromStatus),
	)
	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	// rows == 0 → nothing matched (either not found or status mismatch)
	return rows > 0, nil
}

func (r *SQLOrderRepo) DeleteIfStatus(ctx context.Context, id int64, status domain.Status) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM `order` WHERE id = ? AND status = ?", id, string(status),
	)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

var _ usecase.OrderRepo = (*SQLOrderRepo)(nil)
