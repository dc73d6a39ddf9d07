package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/shiromine/jewelshop/internal/models"
	"github.com/shiromine/jewelshop/internal/order"
)

// Reconciler is the single authoritative transition point from
// PENDING_PAYMENT to a terminal payment state. ConfirmPayment is idempotent:
// both the client confirm call and the gateway callback funnel through it,
// and the loser of a race observes the short-circuit or a stale-state error,
// never a conflicting write.
type Reconciler struct {
	DB            *gorm.DB
	Gateway       Gateway
	Orders        *order.Service
	Confirmations *prometheus.CounterVec
}

func (r *Reconciler) ConfirmPayment(ctx context.Context, orderID, intentID string) (*models.Order, error) {
	o, err := r.Orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status == models.OrderStatusPaid {
		// idempotent short-circuit: re-confirming a paid order is a no-op
		return o, nil
	}
	if o.Status != models.OrderStatusPendingPayment {
		return nil, fmt.Errorf("%w: order %s is %s", order.ErrInvalidState, orderID, o.Status)
	}

	intents := &Intents{DB: r.DB, Gateway: r.Gateway}
	rec, err := intents.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if rec.ID != intentID {
		return nil, fmt.Errorf("%w: order %s expects intent %s", ErrIntentMismatch, orderID, rec.ID)
	}

	status, err := r.Gateway.GetStatus(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if err := r.DB.WithContext(ctx).Model(&models.PaymentIntent{}).
		Where("id = ?", intentID).
		Update("status", status).Error; err != nil {
		return nil, err
	}

	switch status {
	case models.IntentStatusSucceeded:
		paid, err := r.Orders.MarkPaid(ctx, orderID)
		if errors.Is(err, order.ErrInvalidState) {
			// a racing confirmation won; report its result
			return r.afterRace(ctx, orderID, err)
		}
		if err != nil {
			return nil, err
		}
		r.count("paid")
		return paid, nil

	case models.IntentStatusFailed:
		failed, err := r.Orders.FailPayment(ctx, orderID)
		if errors.Is(err, order.ErrInvalidState) {
			return r.afterRace(ctx, orderID, err)
		}
		if err != nil {
			return nil, err
		}
		r.count("failed")
		return failed, nil

	default:
		r.count("processing")
		return nil, fmt.Errorf("%w: intent %s is %s", ErrStillProcessing, intentID, status)
	}
}

// afterRace re-reads an order whose transition was beaten by a concurrent
// confirmation. A terminal result is returned as-is; anything else surfaces
// the original stale-state error.
func (r *Reconciler) afterRace(ctx context.Context, orderID string, orig error) (*models.Order, error) {
	cur, err := r.Orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if cur.Status == models.OrderStatusPaid || cur.Status == models.OrderStatusPaymentFailed {
		return cur, nil
	}
	return nil, orig
}

func (r *Reconciler) count(outcome string) {
	if r.Confirmations != nil {
		r.Confirmations.WithLabelValues(outcome).Inc()
	}
}
