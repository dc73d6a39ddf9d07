// Package cart implements the cart store: a user's pending selections prior
// to checkout. Stock checks here are advisory only; the authoritative check
// is the atomic reservation at order creation.
package cart

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/shiromine/jewelshop/internal/models"
)

var (
	ErrValidation = errors.New("validation")
	ErrNotFound   = errors.New("not found")
	ErrOutOfStock = errors.New("out of stock")
)

type Service struct {
	DB *gorm.DB
}

type Line struct {
	Item     models.CartItem `json:"item"`
	Product  models.Product  `json:"product"`
	Subtotal int64           `json:"subtotal"`
}

type View struct {
	Items []Line `json:"items"`
	Total int64  `json:"total"`
}

func (s *Service) AddItem(ctx context.Context, userID, productID uint, qty int) (*models.CartItem, error) {
	if qty < 1 {
		return nil, fmt.Errorf("%w: quantity must be >= 1", ErrValidation)
	}

	var item models.CartItem
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Product
		if err := tx.First(&p, productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: product %d", ErrNotFound, productID)
			}
			return err
		}
		if !p.Active {
			return fmt.Errorf("%w: product %q is not available", ErrValidation, p.Name)
		}

		res := tx.First(&item, "user_id = ? AND product_id = ?", userID, productID)
		if res.Error != nil && !errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return res.Error
		}

		newQty := qty
		if res.Error == nil {
			newQty = item.Quantity + qty
		}
		if p.StockTracked && newQty > p.Stock {
			return fmt.Errorf("%w: only %d left of %q", ErrOutOfStock, p.Stock, p.Name)
		}

		if res.Error == nil {
			item.Quantity = newQty
			return tx.Save(&item).Error
		}
		item = models.CartItem{UserID: userID, ProductID: productID, Quantity: qty}
		return tx.Create(&item).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Service) UpdateQuantity(ctx context.Context, userID, itemID uint, qty int) (*models.CartItem, error) {
	if qty < 1 {
		return nil, fmt.Errorf("%w: quantity must be >= 1", ErrValidation)
	}

	var item models.CartItem
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&item, "id = ? AND user_id = ?", itemID, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: cart item %d", ErrNotFound, itemID)
			}
			return err
		}

		var p models.Product
		if err := tx.First(&p, item.ProductID).Error; err != nil {
			return err
		}
		if p.StockTracked && qty > p.Stock {
			return fmt.Errorf("%w: only %d left of %q", ErrOutOfStock, p.Stock, p.Name)
		}

		item.Quantity = qty
		return tx.Save(&item).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Service) RemoveItem(ctx context.Context, userID, itemID uint) error {
	res := s.DB.WithContext(ctx).
		Where("id = ? AND user_id = ?", itemID, userID).
		Delete(&models.CartItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: cart item %d", ErrNotFound, itemID)
	}
	return nil
}

// Clear drops every line in the user's cart. Clearing an already empty
// cart is a no-op, not an error.
func (s *Service) Clear(ctx context.Context, userID uint) error {
	return s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.CartItem{}).Error
}

// GetCart returns the user's lines joined with live product data and an
// advisory total. Tax and shipping are computed at order creation, not here.
func (s *Service) GetCart(ctx context.Context, userID uint) (*View, error) {
	var items []models.CartItem
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&items).Error; err != nil {
		return nil, err
	}

	view := &View{Items: make([]Line, 0, len(items))}
	for _, it := range items {
		var p models.Product
		if err := s.DB.WithContext(ctx).First(&p, it.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		line := Line{Item: it, Product: p}
		if p.Active {
			line.Subtotal = p.Price * int64(it.Quantity)
			view.Total += line.Subtotal
		}
		view.Items = append(view.Items, line)
	}
	return view, nil
}
