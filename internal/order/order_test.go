package order_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/shiromine/jewelshop/internal/models"
	"github.com/shiromine/jewelshop/internal/order"
	"github.com/shiromine/jewelshop/internal/stock"
	"github.com/shiromine/jewelshop/internal/testutil"
)

func newService(t *testing.T) *order.Service {
	return &order.Service{
		DB:             testutil.NewDB(t),
		TaxRatePercent: 10,
		ShippingFee:    1100,
	}
}

func shipping() order.ShippingInfo {
	return order.ShippingInfo{
		RecipientName: "Hanako Tanaka",
		PostalCode:    "150-0001",
		Address:       "Tokyo, Shibuya 1-2-3",
		Email:         "hanako@example.com",
	}
}

func seedCart(t *testing.T, db *gorm.DB, userID uint, p models.Product, qty int) models.Product {
	t.Helper()
	require.NoError(t, db.Create(&p).Error)
	require.NoError(t, db.Create(&models.CartItem{UserID: userID, ProductID: p.ID, Quantity: qty}).Error)
	return p
}

func TestCreateOrderTotals(t *testing.T) {
	svc := newService(t)
	seedCart(t, svc.DB, 1, models.Product{
		Name: "ring", Price: 3000, PriceIncludesTax: false, Stock: 5, StockTracked: true, Active: true,
	}, 2)

	ord, err := svc.CreateOrder(context.Background(), 1, shipping())
	require.NoError(t, err)

	// 2x3000 + floor(6000*0.10) + 1100
	require.EqualValues(t, 7700, ord.TotalAmount)
	require.EqualValues(t, 600, ord.TaxAmount)
	require.EqualValues(t, 1100, ord.ShippingFee)
	require.Equal(t, models.OrderStatusPendingPayment, ord.Status)
	require.Len(t, ord.Items, 1)
	require.EqualValues(t, 3000, ord.Items[0].UnitPrice)
	require.True(t, ord.Items[0].StockReserved)

	// stock reserved, cart cleared
	var p models.Product
	require.NoError(t, svc.DB.First(&p, ord.Items[0].ProductID).Error)
	require.Equal(t, 3, p.Stock)

	var remaining int64
	require.NoError(t, svc.DB.Model(&models.CartItem{}).Where("user_id = ?", 1).Count(&remaining).Error)
	require.EqualValues(t, 0, remaining)
}

func TestCreateOrderTaxInclusiveLine(t *testing.T) {
	svc := newService(t)
	seedCart(t, svc.DB, 1, models.Product{
		Name: "pendant", Price: 5500, PriceIncludesTax: true, Active: true,
	}, 1)

	ord, err := svc.CreateOrder(context.Background(), 1, shipping())
	require.NoError(t, err)
	require.EqualValues(t, 5500+1100, ord.TotalAmount)
	require.EqualValues(t, 0, ord.TaxAmount)
	require.False(t, ord.Items[0].StockReserved)
}

func TestCreateOrderShippingValidation(t *testing.T) {
	svc := newService(t)

	_, err := svc.CreateOrder(context.Background(), 1, order.ShippingInfo{})
	require.ErrorIs(t, err, order.ErrValidation)
	require.Contains(t, err.Error(), "recipient_name")
	require.Contains(t, err.Error(), "postal_code")
	require.Contains(t, err.Error(), "address")
	require.Contains(t, err.Error(), "phone or email")

	// phone alone satisfies the contact requirement
	info := shipping()
	info.Email = ""
	info.Phone = "090-0000-0000"
	seedCart(t, svc.DB, 1, models.Product{Name: "ring", Price: 3000, PriceIncludesTax: true, Active: true}, 1)
	_, err = svc.CreateOrder(context.Background(), 1, info)
	require.NoError(t, err)
}

func TestCreateOrderEmptyCart(t *testing.T) {
	svc := newService(t)
	_, err := svc.CreateOrder(context.Background(), 1, shipping())
	require.ErrorIs(t, err, order.ErrValidation)
}

func TestCreateOrderRollbackOnPartialFailure(t *testing.T) {
	svc := newService(t)
	first := seedCart(t, svc.DB, 1, models.Product{
		Name: "ring", Price: 3000, PriceIncludesTax: true, Stock: 10, StockTracked: true, Active: true,
	}, 2)
	second := seedCart(t, svc.DB, 1, models.Product{
		Name: "brooch", Price: 8000, PriceIncludesTax: true, Stock: 1, StockTracked: true, Active: true,
	}, 2)

	_, err := svc.CreateOrder(context.Background(), 1, shipping())
	require.ErrorIs(t, err, stock.ErrInsufficientStock)

	var insuf *stock.InsufficientStockError
	require.ErrorAs(t, err, &insuf)
	require.Equal(t, second.ID, insuf.ProductID)

	// first line's decrement reverted, nothing persisted, cart intact
	var p models.Product
	require.NoError(t, svc.DB.First(&p, first.ID).Error)
	require.Equal(t, 10, p.Stock)

	var orders, items, cartItems int64
	require.NoError(t, svc.DB.Model(&models.Order{}).Count(&orders).Error)
	require.NoError(t, svc.DB.Model(&models.OrderItem{}).Count(&items).Error)
	require.NoError(t, svc.DB.Model(&models.CartItem{}).Count(&cartItems).Error)
	require.EqualValues(t, 0, orders)
	require.EqualValues(t, 0, items)
	require.EqualValues(t, 2, cartItems)
}

func TestOrderTotalImmutableAfterPriceChange(t *testing.T) {
	svc := newService(t)
	p := seedCart(t, svc.DB, 1, models.Product{
		Name: "ring", Price: 3000, PriceIncludesTax: true, Active: true,
	}, 1)

	ord, err := svc.CreateOrder(context.Background(), 1, shipping())
	require.NoError(t, err)

	require.NoError(t, svc.DB.Model(&models.Product{}).Where("id = ?", p.ID).Update("price", 99999).Error)

	got, err := svc.Get(context.Background(), ord.ID)
	require.NoError(t, err)
	require.Equal(t, ord.TotalAmount, got.TotalAmount)
	require.EqualValues(t, 3000, got.Items[0].UnitPrice)
}

func TestLastUnitRace(t *testing.T) {
	svc := newService(t)
	p := models.Product{Name: "ring", Price: 3000, PriceIncludesTax: true, Stock: 1, StockTracked: true, Active: true}
	require.NoError(t, svc.DB.Create(&p).Error)
	require.NoError(t, svc.DB.Create(&models.CartItem{UserID: 1, ProductID: p.ID, Quantity: 1}).Error)
	require.NoError(t, svc.DB.Create(&models.CartItem{UserID: 2, ProductID: p.ID, Quantity: 1}).Error)

	_, err1 := svc.CreateOrder(context.Background(), 1, shipping())
	_, err2 := svc.CreateOrder(context.Background(), 2, shipping())

	require.True(t, (err1 == nil) != (err2 == nil), "exactly one checkout must win")
	if err1 != nil {
		require.ErrorIs(t, err1, stock.ErrInsufficientStock)
	} else {
		require.ErrorIs(t, err2, stock.ErrInsufficientStock)
	}

	var got models.Product
	require.NoError(t, svc.DB.First(&got, p.ID).Error)
	require.Equal(t, 0, got.Stock)
}

func TestMarkPaid(t *testing.T) {
	svc := newService(t)
	seedCart(t, svc.DB, 1, models.Product{Name: "ring", Price: 3000, PriceIncludesTax: true, Active: true}, 1)
	ord, err := svc.CreateOrder(context.Background(), 1, shipping())
	require.NoError(t, err)

	paid, err := svc.MarkPaid(context.Background(), ord.ID)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)

	// second transition loses the optimistic check
	_, err = svc.MarkPaid(context.Background(), ord.ID)
	require.ErrorIs(t, err, order.ErrInvalidState)
}

func TestFailPaymentReleasesStock(t *testing.T) {
	svc := newService(t)
	p := seedCart(t, svc.DB, 1, models.Product{
		Name: "ring", Price: 3000, PriceIncludesTax: true, Stock: 3, StockTracked: true, Active: true,
	}, 2)

	ord, err := svc.CreateOrder(context.Background(), 1, shipping())
	require.NoError(t, err)

	failed, err := svc.FailPayment(context.Background(), ord.ID)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusPaymentFailed, failed.Status)

	var got models.Product
	require.NoError(t, svc.DB.First(&got, p.ID).Error)
	require.Equal(t, 3, got.Stock)
}

func TestCancelPending(t *testing.T) {
	svc := newService(t)
	p := seedCart(t, svc.DB, 1, models.Product{
		Name: "ring", Price: 3000, PriceIncludesTax: true, Stock: 2, StockTracked: true, Active: true,
	}, 2)

	ord, err := svc.CreateOrder(context.Background(), 1, shipping())
	require.NoError(t, err)

	require.NoError(t, svc.CancelPending(context.Background(), ord.ID))

	got, err := svc.Get(context.Background(), ord.ID)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusCancelled, got.Status)

	var prod models.Product
	require.NoError(t, svc.DB.First(&prod, p.ID).Error)
	require.Equal(t, 2, prod.Stock)

	// terminal: cannot cancel or pay afterwards
	require.ErrorIs(t, svc.CancelPending(context.Background(), ord.ID), order.ErrInvalidState)
	_, err = svc.MarkPaid(context.Background(), ord.ID)
	require.ErrorIs(t, err, order.ErrInvalidState)
}

func TestFulfilmentTransitions(t *testing.T) {
	svc := newService(t)
	seedCart(t, svc.DB, 1, models.Product{Name: "ring", Price: 3000, PriceIncludesTax: true, Active: true}, 1)
	ord, err := svc.CreateOrder(context.Background(), 1, shipping())
	require.NoError(t, err)

	// shipping a pending order is not allowed
	_, err = svc.SetStatus(context.Background(), ord.ID, models.OrderStatusShipped)
	require.ErrorIs(t, err, order.ErrInvalidState)

	_, err = svc.MarkPaid(context.Background(), ord.ID)
	require.NoError(t, err)

	shipped, err := svc.SetStatus(context.Background(), ord.ID, models.OrderStatusShipped)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusShipped, shipped.Status)

	delivered, err := svc.SetStatus(context.Background(), ord.ID, models.OrderStatusDelivered)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusDelivered, delivered.Status)

	// DELIVERED is terminal
	_, err = svc.SetStatus(context.Background(), ord.ID, models.OrderStatusShipped)
	require.ErrorIs(t, err, order.ErrInvalidState)

	// only fulfilment statuses are settable directly
	_, err = svc.SetStatus(context.Background(), ord.ID, models.OrderStatusPaid)
	require.ErrorIs(t, err, order.ErrValidation)
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to models.OrderStatus
		ok       bool
	}{
		{models.OrderStatusPendingPayment, models.OrderStatusPaid, true},
		{models.OrderStatusPendingPayment, models.OrderStatusPaymentFailed, true},
		{models.OrderStatusPendingPayment, models.OrderStatusCancelled, true},
		{models.OrderStatusPendingPayment, models.OrderStatusShipped, false},
		{models.OrderStatusPaid, models.OrderStatusShipped, true},
		{models.OrderStatusShipped, models.OrderStatusDelivered, true},
		{models.OrderStatusDelivered, models.OrderStatusShipped, false},
		{models.OrderStatusPaymentFailed, models.OrderStatusPaid, false},
		{models.OrderStatusCancelled, models.OrderStatusPendingPayment, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.ok, order.CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestListOrders(t *testing.T) {
	svc := newService(t)
	for i := 0; i < 3; i++ {
		seedCart(t, svc.DB, 1, models.Product{Name: "ring", Price: 3000, PriceIncludesTax: true, Active: true}, 1)
		_, err := svc.CreateOrder(context.Background(), 1, shipping())
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}

	orders, err := svc.List(context.Background(), 1, 2, 0)
	require.NoError(t, err)
	require.Len(t, orders, 2)

	orders, err = svc.List(context.Background(), 2, 10, 0)
	require.NoError(t, err)
	require.Empty(t, orders)
}
