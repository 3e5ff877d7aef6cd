package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/transport/http/middleware"
)

// NewRouter собирает маршруты сервиса.
func NewRouter(
	orders *OrderHandler,
	webhook *WebhookHandler,
	auth *middleware.Auth,
	checker *health.Checker,
	logger *log.Entry,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Metrics(), middleware.Logging(logger))

	r.GET("/healthz", func(c *gin.Context) {
		status := checker.Check(c.Request.Context())
		code := 200
		if !status.Healthy {
			code = 503
		}
		c.JSON(code, status)
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/orders", orders.CreateGuest)
	r.POST("/orders/registered", auth.Require(), orders.CreateRegistered)
	r.GET("/orders", auth.Require(), orders.List)
	r.GET("/orders/:id", auth.Require(), orders.Get)
	r.POST("/orders/:id/associate", auth.Require(), orders.Associate)
	r.POST("/orders/:id/payment", orders.CreatePayment)
	r.PUT("/orders/:id/status", auth.RequireAdmin(), orders.UpdateStatus)

	r.POST("/payments/webhook", webhook.Handle)

	return r
}
