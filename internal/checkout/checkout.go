// Package checkout sequences the user-facing checkout workflow:
// cart -> order (stock reserved) -> payment intent -> reconciliation.
package checkout

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shiromine/jewelshop/internal/logging"
	"github.com/shiromine/jewelshop/internal/models"
	"github.com/shiromine/jewelshop/internal/order"
	"github.com/shiromine/jewelshop/internal/payment"
)

type Orchestrator struct {
	Orders        *order.Service
	Intents       *payment.Intents
	Reconciler    *payment.Reconciler
	OrdersCreated prometheus.Counter
}

type BeginResult struct {
	Order  *models.Order         `json:"order"`
	Intent *models.PaymentIntent `json:"intent"`
}

// BeginCheckout creates the order (reserving stock) and obtains a payment
// intent scoped to its total. If the intent cannot be obtained the order is
// cancelled immediately so the reservation is not stranded until the sweep.
func (o *Orchestrator) BeginCheckout(ctx context.Context, userID uint, shipping order.ShippingInfo) (*BeginResult, error) {
	ord, err := o.Orders.CreateOrder(ctx, userID, shipping)
	if err != nil {
		return nil, err
	}
	if o.OrdersCreated != nil {
		o.OrdersCreated.Inc()
	}

	intent, err := o.Intents.CreateForOrder(ctx, ord)
	if err != nil {
		if cerr := o.Orders.CancelPending(ctx, ord.ID); cerr != nil {
			logging.FromContext(ctx).Error("cancel after intent failure", "order_id", ord.ID, "error", cerr)
		}
		return nil, err
	}
	return &BeginResult{Order: ord, Intent: intent}, nil
}

// CompleteCheckout applies the idempotent payment confirmation.
func (o *Orchestrator) CompleteCheckout(ctx context.Context, orderID, intentID string) (*models.Order, error) {
	return o.Reconciler.ConfirmPayment(ctx, orderID, intentID)
}
