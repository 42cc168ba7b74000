package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	domain "github.com/aq2208/gorder-inventory/internal/entity"
	"github.com/aq2208/gorder-inventory/internal/usecase"
)

// SQLProductRepo stores products with plain SQL that runs unchanged on MySQL
// and SQLite.
type SQLProductRepo struct{ db *sql.DB }

func NewSQLProductRepo(db *sql.DB) *SQLProductRepo { return &SQLProductRepo{db: db} }

func (r *SQLProductRepo) Create(ctx context.Context, p domain.Product) (domain.Product, error) {
	res, err := r.db.ExecContext(ctx, `
INSERT INTO product (sku, name, price, stock)
VALUES (?, ?, ?, ?)`, p.SKU, p.Name, p.Price, p.Stock)
	if err != nil {
		return domain.Product{}, productWriteError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Product{}, err
	}
	p.ID = id
	return p, nil
}

func (r *SQLProductRepo) GetByID(ctx context.Context, id int64) (domain.Product, error) {
	return getProduct(ctx, r.db, id)
}

func (r *SQLProductRepo) List(ctx context.Context, limit, offset int) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, sku, name, price, stock
FROM product ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Product, 0, limit)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Price, &p.Stock); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Update writes only the columns present in patch. MySQL reports zero affected
// rows when the values did not change, so the result is re-read instead.
func (r *SQLProductRepo) Update(ctx context.Context, id int64, patch domain.ProductPatch) (domain.Product, error) {
	var (
		sets []string
		args []any
	)
	if patch.SKU != nil {
		sets, args = append(sets, "sku = ?"), append(args, *patch.SKU)
	}
	if patch.Name != nil {
		sets, args = append(sets, "name = ?"), append(args, *patch.Name)
	}
	if patch.Price != nil {
		sets, args = append(sets, "price = ?"), append(args, *patch.Price)
	}
	if patch.Stock != nil {
		sets, args = append(sets, "stock = ?"), append(args, *patch.Stock)
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}

	args = append(args, id)
	q := "UPDATE product SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return domain.Product{}, productWriteError(err)
	}
	return r.GetByID(ctx, id)
}

func (r *SQLProductRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM product WHERE id = ?`, id)
	if err != nil {
		if constraintOf(err) == constraintForeignKey {
			return fmt.Errorf("%w: product %d is referenced by orders", usecase.ErrIntegrity, id)
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return usecase.ErrProductNotFound
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// getProduct works on both *sql.DB and *sql.Tx.
func getProduct(ctx context.Context, q queryer, id int64) (domain.Product, error) {
	var p domain.Product
	err := q.QueryRowContext(ctx, `
SELECT id, sku, name, price, stock
FROM product WHERE id = ?`, id).Scan(&p.ID, &p.SKU, &p.Name, &p.Price, &p.Stock)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, usecase.ErrProductNotFound
	}
	if err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

func productWriteError(err error) error {
	switch constraintOf(err) {
	case constraintUnique:
		return usecase.ErrDuplicateSku
	case constraintCheck, constraintForeignKey:
		return fmt.Errorf("%w: %v", usecase.ErrIntegrity, err)
	}
	return err
}

var _ usecase.ProductRepo = (*SQLProductRepo)(nil)
