package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/shiromine/jewelshop/internal/handlers"
	"github.com/shiromine/jewelshop/internal/metrics"
)

type Deps struct {
	CartHandler    *handlers.CartHandler
	OrderHandler   *handlers.OrderHandler
	PaymentHandler *handlers.PaymentHandler
	Metrics        *metrics.Metrics
	JWTSecret      []byte
}

func Register(e *echo.Echo, d *Deps) {
	if d.Metrics != nil {
		e.Use(d.Metrics.Middleware())
	}

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/metrics", metrics.Handler())

	v1 := e.Group("/api/v1")

	cart := v1.Group("/cart")
	cart.GET("", d.CartHandler.GetCart)
	cart.DELETE("", d.CartHandler.ClearCart)
	cart.POST("/items", d.CartHandler.AddItem)
	cart.PUT("/items/:id", d.CartHandler.UpdateItem)
	cart.DELETE("/items/:id", d.CartHandler.DeleteItem)

	v1.POST("/orders", d.OrderHandler.CreateOrder)
	v1.GET("/orders", d.OrderHandler.ListOrders)
	v1.GET("/orders/:id", d.OrderHandler.GetOrder)
	v1.POST("/checkout", d.OrderHandler.BeginCheckout)

	v1.POST("/payments/intent", d.PaymentHandler.CreateIntent)
	v1.POST("/payments/confirm", d.PaymentHandler.Confirm)
	v1.POST("/webhooks/payment", d.PaymentHandler.Webhook)

	admin := v1.Group("/admin", handlers.RequireAdmin(d.JWTSecret))
	admin.PATCH("/orders/:id/status", d.OrderHandler.UpdateStatus)
}
