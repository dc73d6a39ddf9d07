package payment

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shiromine/jewelshop/internal/models"
	"github.com/shiromine/jewelshop/internal/order"
)

// Intents persists the 1:1 order/intent link. At most one non-terminal
// intent exists per order, enforced by the unique index on order_id.
type Intents struct {
	DB      *gorm.DB
	Gateway Gateway
}

// CreateForOrder returns the order's intent, asking the gateway for a new
// one when none exists. The order id doubles as the gateway idempotency key,
// so a retry after an unknown-outcome timeout lands on the same intent.
func (s *Intents) CreateForOrder(ctx context.Context, o *models.Order) (*models.PaymentIntent, error) {
	if o.Status != models.OrderStatusPendingPayment {
		return nil, fmt.Errorf("%w: order %s is %s", order.ErrInvalidState, o.ID, o.Status)
	}

	var existing models.PaymentIntent
	err := s.DB.WithContext(ctx).First(&existing, "order_id = ?", o.ID).Error
	if err == nil {
		if existing.Status.Terminal() {
			return nil, fmt.Errorf("%w: intent for order %s already %s", order.ErrInvalidState, o.ID, existing.Status)
		}
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	gi, err := s.Gateway.CreateIntent(ctx, o.TotalAmount, o.ID)
	if err != nil {
		return nil, err
	}

	rec := models.PaymentIntent{
		ID:           gi.ID,
		OrderID:      o.ID,
		Amount:       o.TotalAmount,
		Status:       gi.Status,
		ClientSecret: gi.ClientSecret,
	}
	// A racing request may have inserted the same intent already; the
	// gateway idempotency key guarantees both saw the same intent id.
	if err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error; err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).First(&rec, "order_id = ?", o.ID).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Intents) Get(ctx context.Context, orderID string) (*models.PaymentIntent, error) {
	var rec models.PaymentIntent
	if err := s.DB.WithContext(ctx).First(&rec, "order_id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no intent for order %s", ErrIntentMismatch, orderID)
		}
		return nil, err
	}
	return &rec, nil
}

func (s *Intents) GetByIntentID(ctx context.Context, intentID string) (*models.PaymentIntent, error) {
	var rec models.PaymentIntent
	if err := s.DB.WithContext(ctx).First(&rec, "id = ?", intentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: unknown intent %s", ErrIntentMismatch, intentID)
		}
		return nil, err
	}
	return &rec, nil
}
