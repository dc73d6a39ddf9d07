package models

import (
	"time"
)

type Product struct {
	ID               uint   `gorm:"primaryKey;autoIncrement"  json:"id"`
	Name             string `gorm:"not null"                  json:"name"`
	Description      string `json:"description"`
	ImageURL         string `json:"image_url"`
	Price            int64  `gorm:"not null"                  json:"price"`
	PriceIncludesTax bool   `gorm:"not null"                  json:"price_includes_tax"`
	Stock            int    `gorm:"not null;default:0"        json:"stock"`
	StockTracked     bool   `gorm:"not null"                  json:"stock_tracked"`
	Active           bool   `gorm:"not null"                  json:"active"`
}

type CartItem struct {
	ID        uint `gorm:"primaryKey"                               json:"id"`
	UserID    uint `gorm:"index;uniqueIndex:idx_cart_user_product"  json:"user_id"`
	ProductID uint `gorm:"uniqueIndex:idx_cart_user_product"        json:"product_id"`
	Quantity  int  `gorm:"default:1;check:quantity>0"               json:"quantity"`
}

type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "PENDING_PAYMENT"
	OrderStatusPaid           OrderStatus = "PAID"
	OrderStatusPaymentFailed  OrderStatus = "PAYMENT_FAILED"
	OrderStatusCancelled      OrderStatus = "CANCELLED"
	OrderStatusShipped        OrderStatus = "SHIPPED"
	OrderStatusDelivered      OrderStatus = "DELIVERED"
)

type Order struct {
	ID            string      `gorm:"primaryKey;size:64"  json:"id"`
	UserID        uint        `gorm:"index;not null"      json:"user_id"`
	Status        OrderStatus `gorm:"index;not null"      json:"status"`
	TotalAmount   int64       `gorm:"not null"            json:"total_amount"`
	TaxAmount     int64       `gorm:"not null"            json:"tax_amount"`
	ShippingFee   int64       `gorm:"not null"            json:"shipping_fee"`
	RecipientName string      `gorm:"not null"            json:"recipient_name"`
	PostalCode    string      `json:"postal_code"`
	Address       string      `gorm:"not null"            json:"address"`
	Phone         string      `json:"phone"`
	Email         string      `json:"email"`
	PaidAt        *time.Time  `json:"paid_at"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	Items         []OrderItem `gorm:"foreignKey:OrderID"  json:"items"`
}

type OrderItem struct {
	ID          uint   `gorm:"primaryKey"          json:"id"`
	OrderID     string `gorm:"index;size:64"       json:"order_id"`
	ProductID   uint   `gorm:"not null"            json:"product_id"`
	ProductName string `gorm:"not null"            json:"product_name"`
	UnitPrice   int64  `gorm:"not null"            json:"unit_price"`
	TaxIncluded bool   `json:"tax_included"`
	Quantity    int    `gorm:"check:quantity>0"    json:"quantity"`
	Subtotal    int64  `gorm:"not null"            json:"subtotal"`
	// lines with StockReserved=false came from untracked products and are
	// skipped on release
	StockReserved bool `json:"-"`
}

type PaymentIntentStatus string

const (
	IntentStatusRequiresConfirmation PaymentIntentStatus = "requires_confirmation"
	IntentStatusProcessing           PaymentIntentStatus = "processing"
	IntentStatusSucceeded            PaymentIntentStatus = "succeeded"
	IntentStatusFailed               PaymentIntentStatus = "failed"
)

func (s PaymentIntentStatus) Terminal() bool {
	return s == IntentStatusSucceeded || s == IntentStatusFailed
}

type PaymentIntent struct {
	ID           string              `gorm:"primaryKey;size:128"  json:"id"`
	OrderID      string              `gorm:"uniqueIndex;size:64"  json:"order_id"`
	Amount       int64               `gorm:"not null"             json:"amount"`
	Status       PaymentIntentStatus `gorm:"not null"             json:"status"`
	ClientSecret string              `json:"client_secret"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}
