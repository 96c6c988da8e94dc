package router

import (
	"log/slog"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/polkiloo/servenow/internal/metrics"
	"github.com/polkiloo/servenow/internal/server/http/handlers"
	"github.com/polkiloo/servenow/internal/server/http/middleware"
)

// streamRoutes are never compressed; gzip buffering would hold events back.
var streamRoutes = []string{
	`^/api/orders/[^/]+/events$`,
	`^/payment/confirm/`,
}

// Params lists router dependencies.
type Params struct {
	fx.In

	Facade    handlers.ServeNowFacade
	Operators middleware.KeyVerifier
	Webhooks  handlers.SignatureVerifier
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Setup configures gin router with handlers and middleware.
func Setup(p Params) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger(p.Logger))
	engine.Use(middleware.Metrics(p.Metrics))
	engine.Use(middleware.DecompressRequest())
	engine.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPathsRegexs(streamRoutes)))

	orderHandler := handlers.NewOrderHandler(p.Facade, p.Logger)
	paymentHandler := handlers.NewPaymentHandler(p.Facade, p.Webhooks, p.Logger)
	confirmHandler := handlers.NewConfirmHandler(p.Facade, p.Logger)
	healthHandler := handlers.NewHealthHandler(p.Facade, p.Logger)

	engine.GET("/healthz", healthHandler.Healthz)
	engine.GET("/metrics", gin.WrapH(p.Metrics.Handler()))
	engine.GET("/payment/confirm/:id", confirmHandler.Confirm)

	api := engine.Group("/api")
	api.GET("/orders/:id", orderHandler.Get)
	api.PATCH("/orders/:id", orderHandler.UpdateStatus)
	api.GET("/orders/:id/events", orderHandler.Events)
	api.POST("/verify-payment", paymentHandler.Verify)
	api.POST("/webhooks/cashfree", paymentHandler.Webhook)

	operator := api.Group("/operator")
	operator.Use(middleware.OperatorRequired(p.Operators))
	operator.POST("/orders/:id/payment-status", paymentHandler.Override)

	return engine
}
