// Package stock implements the stock ledger: conditional decrements and
// compensating increments on the product rows. All functions operate on the
// *gorm.DB they are given so callers can compose them into their own
// transactions.
package stock

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/shiromine/jewelshop/internal/models"
)

var ErrInsufficientStock = errors.New("insufficient stock")

type InsufficientStockError struct {
	ProductID uint
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d", e.ProductID)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// Reserve decrements the product's stock by qty if enough is available.
// The decrement is a single conditional UPDATE, so two concurrent orders for
// the last unit resolve to exactly one winner. Products without stock
// tracking are never decremented; reserved reports whether a decrement
// actually happened.
func Reserve(tx *gorm.DB, product *models.Product, qty int) (reserved bool, err error) {
	if !product.StockTracked {
		return false, nil
	}

	res := tx.Model(&models.Product{}).
		Where("id = ? AND stock >= ?", product.ID, qty).
		Update("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, &InsufficientStockError{ProductID: product.ID}
	}
	return true, nil
}

// Release returns qty units to the product's stock.
func Release(tx *gorm.DB, productID uint, qty int) error {
	return tx.Model(&models.Product{}).
		Where("id = ?", productID).
		Update("stock", gorm.Expr("stock + ?", qty)).Error
}

// ReleaseItems reverses the reservations recorded on an order's line items.
// Lines from untracked products are skipped.
func ReleaseItems(tx *gorm.DB, items []models.OrderItem) error {
	for _, it := range items {
		if !it.StockReserved {
			continue
		}
		if err := Release(tx, it.ProductID, it.Quantity); err != nil {
			return err
		}
	}
	return nil
}
