package http

import (
	"context"
	"net/http"
	"time"

	domain "github.com/aq2208/gorder-inventory/internal/entity"
	"github.com/aq2208/gorder-inventory/internal/usecase"
	"github.com/gin-gonic/gin"
)

const headerIdempotencyKey = "X-Idempotency-Key"

type OrderHandler struct {
	reserve   *usecase.ReserveOrder
	lifecycle *usecase.OrderLifecycle
	timeout   time.Duration
}

func NewOrderHandler(reserve *usecase.ReserveOrder, lifecycle *usecase.OrderLifecycle, timeout time.Duration) *OrderHandler {
	return &OrderHandler{reserve: reserve, lifecycle: lifecycle, timeout: timeout}
}

type createOrderReq struct {
	ProductID *int64 `json:"product_id" binding:"required"`
	Quantity  *int   `json:"quantity" binding:"required,gte=1"`
}

type updateOrderReq struct {
	Status *string `json:"status" binding:"omitempty,oneof=PENDING PAID SHIPPED CANCELED"`
}

type orderResp struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func toOrderResp(o domain.Order) orderResp {
	return orderResp{
		ID:        o.ID,
		ProductID: o.ProductID,
		Quantity:  o.Quantity,
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt,
	}
}

// Create reserves stock and opens a PENDING order. An optional
// X-Idempotency-Key header makes client retries safe.
func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	o, err := h.reserve.Execute(ctx, usecase.ReserveOrderInput{
		ProductID:      *req.ProductID,
		Quantity:       *req.Quantity,
		IdempotencyKey: c.GetHeader(headerIdempotencyKey),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toOrderResp(o))
}

func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	o, err := h.lifecycle.Get(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResp(o))
}

func (h *OrderHandler) Status(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	st, err := h.lifecycle.Status(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": st})
}

// Update changes the status only. A body without status returns the order as is.
func (h *OrderHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	var (
		o   domain.Order
		err error
	)
	if req.Status == nil {
		o, err = h.lifecycle.Get(ctx, id)
	} else {
		o, err = h.lifecycle.UpdateStatus(ctx, id, domain.Status(*req.Status))
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResp(o))
}

func (h *OrderHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	if err := h.lifecycle.Delete(ctx, id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
