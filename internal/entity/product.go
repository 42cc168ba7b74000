package domain

import (
	"errors"
	"strings"
)

var (
	ErrEmptySKU      = errors.New("sku must not be empty")
	ErrEmptyName     = errors.New("name must not be empty")
	ErrInvalidPrice  = errors.New("price must be > 0")
	ErrNegativeStock = errors.New("stock must be >= 0")
)

type Product struct {
	ID    int64
	SKU   string
	Name  string
	Price float64
	Stock int
}

func (p Product) Validate() error {
	if strings.TrimSpace(p.SKU) == "" {
		return ErrEmptySKU
	}
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if p.Price <= 0 {
		return ErrInvalidPrice
	}
	if p.Stock < 0 {
		return ErrNegativeStock
	}
	return nil
}

// ProductPatch carries a partial update. A nil field was not supplied and
// must be left untouched.
type ProductPatch struct {
	SKU   *string
	Name  *string
	Price *float64
	Stock *int
}

func (p ProductPatch) Empty() bool {
	return p.SKU == nil && p.Name == nil && p.Price == nil && p.Stock == nil
}

// Apply returns to with the supplied fields overwritten.
func (p ProductPatch) Apply(to Product) Product {
	if p.SKU != nil {
		to.SKU = *p.SKU
	}
	if p.Name != nil {
		to.Name = *p.Name
	}
	if p.Price != nil {
		to.Price = *p.Price
	}
	if p.Stock != nil {
		to.Stock = *p.Stock
	}
	return to
}
