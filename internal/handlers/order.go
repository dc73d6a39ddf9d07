package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/shiromine/jewelshop/internal/checkout"
	"github.com/shiromine/jewelshop/internal/models"
	"github.com/shiromine/jewelshop/internal/order"
)

type OrderHandler struct {
	Svc       *order.Service
	Checkout  *checkout.Orchestrator
	JWTSecret []byte
}

type OrderResponse struct {
	OrderID string             `json:"order_id"`
	Total   int64              `json:"total"`
	Status  models.OrderStatus `json:"status"`
}

func (h *OrderHandler) CreateOrder(c echo.Context) error {
	userID, err := GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	var shipping order.ShippingInfo
	if err := c.Bind(&shipping); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	ord, err := h.Svc.CreateOrder(c.Request().Context(), userID, shipping)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, OrderResponse{
		OrderID: ord.ID,
		Total:   ord.TotalAmount,
		Status:  ord.Status,
	})
}

// BeginCheckout runs order creation and intent creation as one step,
// returning the intent handle for client-side confirmation.
func (h *OrderHandler) BeginCheckout(c echo.Context) error {
	userID, err := GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	var shipping order.ShippingInfo
	if err := c.Bind(&shipping); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	res, err := h.Checkout.BeginCheckout(c.Request().Context(), userID, shipping)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	userID, err := GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	ord, err := h.Svc.GetForUser(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ord)
}

func (h *OrderHandler) ListOrders(c echo.Context) error {
	userID, err := GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	limit, offset := intQuery(c, "limit", 20), intQuery(c, "offset", 0)
	orders, err := h.Svc.List(c.Request().Context(), userID, limit, offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, orders)
}

// UpdateStatus applies a fulfilment transition. Admin only.
func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	var req struct {
		Status models.OrderStatus `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	ord, err := h.Svc.SetStatus(c.Request().Context(), c.Param("id"), req.Status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ord)
}

func intQuery(c echo.Context, name string, def int) int {
	v := c.QueryParam(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
