// Package order owns order creation and the order state machine. All status
// transitions are optimistic: the write only lands if the row is still in the
// expected prior state, so racing confirmations cannot corrupt an order.
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shiromine/jewelshop/internal/logging"
	"github.com/shiromine/jewelshop/internal/models"
	"github.com/shiromine/jewelshop/internal/stock"
)

var (
	ErrValidation   = errors.New("validation")
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid order state")
)

const EventsTopic = "order_events"

type EventPublisher interface {
	PublishEvent(ctx context.Context, topic, key string, event interface{}) error
}

type Service struct {
	DB       *gorm.DB
	Producer EventPublisher

	TaxRatePercent int
	ShippingFee    int64
}

type ShippingInfo struct {
	RecipientName string `json:"recipient_name"`
	PostalCode    string `json:"postal_code"`
	Address       string `json:"address"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
}

func (s ShippingInfo) validate() error {
	var missing []string
	if strings.TrimSpace(s.RecipientName) == "" {
		missing = append(missing, "recipient_name")
	}
	if strings.TrimSpace(s.PostalCode) == "" {
		missing = append(missing, "postal_code")
	}
	if strings.TrimSpace(s.Address) == "" {
		missing = append(missing, "address")
	}
	if strings.TrimSpace(s.Phone) == "" && strings.TrimSpace(s.Email) == "" {
		missing = append(missing, "phone or email")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing fields: %s", ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

// CreateOrder materializes the user's cart into an immutable order snapshot
// with status PENDING_PAYMENT, reserving stock for every line in the same
// transaction. Any reservation or persistence failure rolls the whole
// transaction back, so no partially reserved state is ever visible.
// Transient persistence failures are retried once before surfacing.
func (s *Service) CreateOrder(ctx context.Context, userID uint, shipping ShippingInfo) (*models.Order, error) {
	if err := shipping.validate(); err != nil {
		return nil, err
	}

	order, err := s.createOrderTx(ctx, userID, shipping)
	if err != nil && !isDomainError(err) {
		logging.FromContext(ctx).Warn("order create retry", "error", err)
		order, err = s.createOrderTx(ctx, userID, shipping)
	}
	if err != nil {
		return nil, err
	}

	s.publish(ctx, order.ID, map[string]any{
		"type":     "order_created",
		"order_id": order.ID,
		"user_id":  userID,
		"total":    order.TotalAmount,
	})
	return order, nil
}

func (s *Service) createOrderTx(ctx context.Context, userID uint, shipping ShippingInfo) (*models.Order, error) {
	var order models.Order

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cartItems []models.CartItem
		if err := tx.Where("user_id = ?", userID).Order("id").Find(&cartItems).Error; err != nil {
			return err
		}
		if len(cartItems) == 0 {
			return fmt.Errorf("%w: cart is empty", ErrValidation)
		}

		var (
			items    []models.OrderItem
			subtotal int64
			tax      int64
		)
		for _, ci := range cartItems {
			var p models.Product
			if err := tx.First(&p, ci.ProductID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: product %d no longer exists", ErrValidation, ci.ProductID)
				}
				return err
			}
			if !p.Active {
				return fmt.Errorf("%w: product %q is no longer sold", ErrValidation, p.Name)
			}

			reserved, err := stock.Reserve(tx, &p, ci.Quantity)
			if err != nil {
				return err
			}

			lineSubtotal := p.Price * int64(ci.Quantity)
			subtotal += lineSubtotal
			if !p.PriceIncludesTax {
				tax += lineSubtotal * int64(s.TaxRatePercent) / 100
			}

			items = append(items, models.OrderItem{
				ProductID:     p.ID,
				ProductName:   p.Name,
				UnitPrice:     p.Price,
				TaxIncluded:   p.PriceIncludesTax,
				Quantity:      ci.Quantity,
				Subtotal:      lineSubtotal,
				StockReserved: reserved,
			})
		}

		order = models.Order{
			ID:            uuid.NewString(),
			UserID:        userID,
			Status:        models.OrderStatusPendingPayment,
			TotalAmount:   subtotal + tax + s.ShippingFee,
			TaxAmount:     tax,
			ShippingFee:   s.ShippingFee,
			RecipientName: shipping.RecipientName,
			PostalCode:    shipping.PostalCode,
			Address:       shipping.Address,
			Phone:         shipping.Phone,
			Email:         shipping.Email,
			Items:         items,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		return tx.Where("user_id = ?", userID).Delete(&models.CartItem{}).Error
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) Get(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	if err := s.DB.WithContext(ctx).Preload("Items").First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
		}
		return nil, err
	}
	return &order, nil
}

func (s *Service) GetForUser(ctx context.Context, userID uint, orderID string) (*models.Order, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	return order, nil
}

func (s *Service) List(ctx context.Context, userID uint, limit, offset int) ([]models.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var orders []models.Order
	err := s.DB.WithContext(ctx).Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").Limit(limit).Offset(offset).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// MarkPaid transitions PENDING_PAYMENT -> PAID and stamps paid_at. The
// update is guarded by the prior status, so of two racing confirmations only
// one lands; the loser gets ErrInvalidState.
func (s *Service) MarkPaid(ctx context.Context, orderID string) (*models.Order, error) {
	now := time.Now().UTC()
	err := s.applyTransition(ctx, orderID, models.OrderStatusPendingPayment, models.OrderStatusPaid,
		map[string]interface{}{"paid_at": &now}, false)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, orderID, map[string]any{"type": "order_paid", "order_id": orderID})
	return s.Get(ctx, orderID)
}

// FailPayment transitions PENDING_PAYMENT -> PAYMENT_FAILED and releases the
// order's stock reservation.
func (s *Service) FailPayment(ctx context.Context, orderID string) (*models.Order, error) {
	err := s.applyTransition(ctx, orderID, models.OrderStatusPendingPayment, models.OrderStatusPaymentFailed, nil, true)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, orderID, map[string]any{"type": "order_payment_failed", "order_id": orderID})
	return s.Get(ctx, orderID)
}

// CancelPending cancels an abandoned PENDING_PAYMENT order and releases its
// stock reservation. Any other state is ErrInvalidState.
func (s *Service) CancelPending(ctx context.Context, orderID string) error {
	err := s.applyTransition(ctx, orderID, models.OrderStatusPendingPayment, models.OrderStatusCancelled, nil, true)
	if err != nil {
		return err
	}
	s.publish(ctx, orderID, map[string]any{"type": "order_cancelled", "order_id": orderID})
	return nil
}

// SetStatus applies a fulfilment transition (PAID -> SHIPPED -> DELIVERED).
// Used by admin tooling; payment transitions go through the reconciler.
func (s *Service) SetStatus(ctx context.Context, orderID string, to models.OrderStatus) (*models.Order, error) {
	if to != models.OrderStatusShipped && to != models.OrderStatusDelivered {
		return nil, fmt.Errorf("%w: status %s is not settable", ErrValidation, to)
	}
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.applyTransition(ctx, orderID, order.Status, to, nil, false); err != nil {
		return nil, err
	}
	return s.Get(ctx, orderID)
}

// applyTransition writes a status change with an optimistic precondition on
// the prior status and optionally releases the order's reserved stock in the
// same transaction.
func (s *Service) applyTransition(ctx context.Context, orderID string, from, to models.OrderStatus, extra map[string]interface{}, releaseStock bool) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidState, from, to)
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"status": to}
		for k, v := range extra {
			updates[k] = v
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", orderID, from).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var exists int64
			if err := tx.Model(&models.Order{}).Where("id = ?", orderID).Count(&exists).Error; err != nil {
				return err
			}
			if exists == 0 {
				return fmt.Errorf("%w: order %s", ErrNotFound, orderID)
			}
			return fmt.Errorf("%w: order %s is no longer %s", ErrInvalidState, orderID, from)
		}

		if releaseStock {
			var items []models.OrderItem
			if err := tx.Where("order_id = ?", orderID).Find(&items).Error; err != nil {
				return err
			}
			return stock.ReleaseItems(tx, items)
		}
		return nil
	})
}

func (s *Service) publish(ctx context.Context, key string, event map[string]any) {
	if s.Producer == nil {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.Producer.PublishEvent(pctx, EventsTopic, key, event); err != nil {
		logging.FromContext(ctx).Error("kafka publish error", "error", err)
	}
}

func isDomainError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, stock.ErrInsufficientStock)
}
