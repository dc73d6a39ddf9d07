package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/shiromine/jewelshop/internal/checkout"
	"github.com/shiromine/jewelshop/internal/logging"
	"github.com/shiromine/jewelshop/internal/payment"
)

type PaymentHandler struct {
	Intents   *payment.Intents
	Checkout  *checkout.Orchestrator
	JWTSecret []byte
}

type IntentResponse struct {
	PaymentIntentID string `json:"payment_intent_id"`
	ClientSecret    string `json:"client_secret"`
	Amount          int64  `json:"amount"`
}

func (h *PaymentHandler) CreateIntent(c echo.Context) error {
	userID, err := GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	var req struct {
		OrderID string `json:"order_id"`
	}
	if err := c.Bind(&req); err != nil || req.OrderID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "order_id required")
	}

	ord, err := h.Checkout.Orders.GetForUser(c.Request().Context(), userID, req.OrderID)
	if err != nil {
		return httpError(err)
	}

	intent, err := h.Intents.CreateForOrder(c.Request().Context(), ord)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, IntentResponse{
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		Amount:          intent.Amount,
	})
}

// Confirm finalizes the order from the gateway's intent status. Idempotent:
// re-confirming a paid order returns it unchanged.
func (h *PaymentHandler) Confirm(c echo.Context) error {
	userID, err := GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	var req struct {
		OrderID         string `json:"order_id"`
		PaymentIntentID string `json:"payment_intent_id"`
	}
	if err := c.Bind(&req); err != nil || req.OrderID == "" || req.PaymentIntentID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "order_id and payment_intent_id required")
	}

	if _, err := h.Checkout.Orders.GetForUser(c.Request().Context(), userID, req.OrderID); err != nil {
		return httpError(err)
	}

	ord, err := h.Checkout.CompleteCheckout(c.Request().Context(), req.OrderID, req.PaymentIntentID)
	if err != nil {
		if errors.Is(err, payment.ErrStillProcessing) {
			return c.JSON(http.StatusAccepted, map[string]any{"status": "processing"})
		}
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ord)
}

// Webhook consumes asynchronous gateway callbacks. It funnels into the same
// idempotent confirmation path as the client confirm call, so a duplicate or
// racing delivery is harmless. Unknown intents are acknowledged so the
// gateway stops redelivering.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	var event struct {
		Type string `json:"type"`
		Data struct {
			Object struct {
				ID string `json:"id"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := c.Bind(&event); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
	default:
		return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
	}

	ctx := c.Request().Context()
	rec, err := h.Intents.GetByIntentID(ctx, event.Data.Object.ID)
	if err != nil {
		logging.FromContext(ctx).Warn("webhook for unknown intent", "intent_id", event.Data.Object.ID)
		return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
	}

	if _, err := h.Checkout.CompleteCheckout(ctx, rec.OrderID, rec.ID); err != nil {
		if errors.Is(err, payment.ErrStillProcessing) {
			return c.JSON(http.StatusOK, map[string]string{"status": "processing"})
		}
		logging.FromContext(ctx).Error("webhook reconciliation failed", "order_id", rec.OrderID, "error", err)
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
