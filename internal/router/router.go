package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"paysync/internal/form"
	"paysync/internal/handler"
	"paysync/internal/handler/api"
	"paysync/internal/middleware"
	"paysync/internal/payment"
)

// Deps are the collaborators the routes are built from.
type Deps struct {
	Payments *payment.Service
	Renderer *form.Renderer
	Deduper  middleware.EventDeduper
	Logger   *zap.Logger
	APIKey   string
}

// Setup configures all routes for the Echo server.
func Setup(e *echo.Echo, deps Deps) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// Global middleware
	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(logger))
	e.Use(middleware.CORS())

	callbackHandler := handler.NewPaymentCallbackHandler(deps.Payments, deps.Renderer, logger)
	paymentHandler := api.NewPaymentHandler(deps.Payments, logger)

	// Customer-facing checkout and the gateway return endpoint
	paymentGroup := e.Group("/payment/:provider")
	paymentGroup.GET("/form/:cart", callbackHandler.Form)
	paymentGroup.POST("/callback", callbackHandler.Callback,
		middleware.WebhookEventDedup(deps.Deduper, callbackHandler.EventSource, logger))

	// Operator API
	apiGroup := e.Group("/api")
	apiGroup.Use(middleware.APIAuth(deps.APIKey))
	apiGroup.POST("/payments", paymentHandler.Handle)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}
