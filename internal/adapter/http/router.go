package http

import (
	"net/http"

	"github.com/aq2208/gorder-inventory/internal/adapter/http/middleware"
	"github.com/aq2208/gorder-inventory/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Products *ProductHandler
	Orders   *OrderHandler
	Webhooks *WebhookHandler
}

// NewRouter wires every route. The signing helper is registered only when
// the webhook handler carries a signer.
func NewRouter(h Handlers) *gin.Engine {
	useJSONFieldNames()

	r := gin.New()
	r.Use(gin.CustomRecovery(func(c *gin.Context, rec any) {
		logging.From(c).Error("panic recovered", "panic", rec)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
	}), middleware.MetricsMiddleware())

	r.Use(middleware.Logging(logging.New("http")))

	health := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	r.GET("/health", health)
	r.GET("/healthz", health)
	// Prometheus endpoint (scraped by Prometheus)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
	})

	products := r.Group("/products")
	{
		products.POST("", h.Products.Create)
		products.GET("", h.Products.List)
		products.GET("/:id", h.Products.Get)
		products.PUT("/:id", h.Products.Update)
		products.DELETE("/:id", h.Products.Delete)
	}

	orders := r.Group("/orders")
	{
		orders.POST("", h.Orders.Create)
		orders.GET("/:id", h.Orders.Get)
		orders.GET("/:id/status", h.Orders.Status)
		orders.PUT("/:id", h.Orders.Update)
		orders.DELETE("/:id", h.Orders.Delete)
	}

	r.POST("/webhooks/payment", h.Webhooks.Payment)
	if h.Webhooks.signer != nil {
		r.POST("/_test/sign-webhook", h.Webhooks.SignForTest)
	}

	return r
}
