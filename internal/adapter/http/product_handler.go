package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	domain "github.com/aq2208/gorder-inventory/internal/entity"
	"github.com/aq2208/gorder-inventory/internal/usecase"
	"github.com/gin-gonic/gin"
)

type ProductHandler struct {
	catalog *usecase.Catalog
	timeout time.Duration
}

func NewProductHandler(catalog *usecase.Catalog, timeout time.Duration) *ProductHandler {
	return &ProductHandler{catalog: catalog, timeout: timeout}
}

type createProductReq struct {
	SKU   string   `json:"sku" binding:"required,min=1"`
	Name  string   `json:"name" binding:"required,min=1"`
	Price *float64 `json:"price" binding:"required,gt=0"`
	Stock *int     `json:"stock" binding:"required,gte=0"`
}

// updateProductReq distinguishes an absent field (nil) from an explicit zero.
type updateProductReq struct {
	SKU   *string  `json:"sku" binding:"omitempty,min=1"`
	Name  *string  `json:"name" binding:"omitempty,min=1"`
	Price *float64 `json:"price" binding:"omitempty,gt=0"`
	Stock *int     `json:"stock" binding:"omitempty,gte=0"`
}

type productResp struct {
	ID    int64   `json:"id"`
	SKU   string  `json:"sku"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
}

func toProductResp(p domain.Product) productResp {
	return productResp{ID: p.ID, SKU: p.SKU, Name: p.Name, Price: p.Price, Stock: p.Stock}
}

func (h *ProductHandler) Create(c *gin.Context) {
	var req createProductReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	p, err := h.catalog.Create(ctx, domain.Product{
		SKU:   req.SKU,
		Name:  req.Name,
		Price: *req.Price,
		Stock: *req.Stock,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toProductResp(p))
}

func (h *ProductHandler) List(c *gin.Context) {
	limit, ok := queryInt(c, "limit", usecase.DefaultListLimit)
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	products, err := h.catalog.List(ctx, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]productResp, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResp(p))
	}
	c.JSON(http.StatusOK, out)
}

func (h *ProductHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	p, err := h.catalog.Get(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProductResp(p))
}

func (h *ProductHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateProductReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	p, err := h.catalog.Update(ctx, id, domain.ProductPatch{
		SKU:   req.SKU,
		Name:  req.Name,
		Price: req.Price,
		Stock: req.Stock,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProductResp(p))
}

func (h *ProductHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	if err := h.catalog.Delete(ctx, id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		writeValidation(c, pathParamError("id"))
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw, present := c.GetQuery(name)
	if !present {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		writeValidation(c, ValidationItem{
			Loc:  []string{"query", name},
			Msg:  "Input should be a valid integer",
			Type: "int_parsing",
		})
		return 0, false
	}
	return v, true
}
