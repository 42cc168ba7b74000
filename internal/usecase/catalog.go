package usecase

import (
	"context"
	"errors"
	"strings"

	domain "github.com/aq2208/gorder-inventory/internal/entity"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

var (
	errLimitRange  = errors.New("limit must be between 1 and 500")
	errOffsetRange = errors.New("offset must be >= 0")
)

// Catalog owns product records.
type Catalog struct {
	repo ProductRepo
}

func NewCatalog(repo ProductRepo) *Catalog {
	return &Catalog{repo: repo}
}

func (uc *Catalog) Create(ctx context.Context, p domain.Product) (domain.Product, error) {
	p.ID = 0
	if err := p.Validate(); err != nil {
		return domain.Product{}, productFieldError(err)
	}
	created, err := uc.repo.Create(ctx, p)
	if err != nil {
		return domain.Product{}, err
	}
	return created, nil
}

func (uc *Catalog) Get(ctx context.Context, id int64) (domain.Product, error) {
	return uc.repo.GetByID(ctx, id)
}

func (uc *Catalog) List(ctx context.Context, limit, offset int) ([]domain.Product, error) {
	if limit < 1 || limit > MaxListLimit {
		return nil, &FieldError{Field: "limit", Err: errLimitRange}
	}
	if offset < 0 {
		return nil, &FieldError{Field: "offset", Err: errOffsetRange}
	}
	return uc.repo.List(ctx, limit, offset)
}

// Update applies only the supplied fields of patch.
func (uc *Catalog) Update(ctx context.Context, id int64, patch domain.ProductPatch) (domain.Product, error) {
	if patch.Empty() {
		return uc.repo.GetByID(ctx, id)
	}
	if err := validatePatch(patch); err != nil {
		return domain.Product{}, err
	}
	return uc.repo.Update(ctx, id, patch)
}

func (uc *Catalog) Delete(ctx context.Context, id int64) error {
	return uc.repo.Delete(ctx, id)
}

func validatePatch(p domain.ProductPatch) error {
	if p.SKU != nil && strings.TrimSpace(*p.SKU) == "" {
		return productFieldError(domain.ErrEmptySKU)
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return productFieldError(domain.ErrEmptyName)
	}
	if p.Price != nil && *p.Price <= 0 {
		return productFieldError(domain.ErrInvalidPrice)
	}
	if p.Stock != nil && *p.Stock < 0 {
		return productFieldError(domain.ErrNegativeStock)
	}
	return nil
}
