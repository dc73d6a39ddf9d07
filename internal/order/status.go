package order

import "github.com/shiromine/jewelshop/internal/models"

// validNext is the order state machine. PAYMENT_FAILED, CANCELLED and
// DELIVERED are terminal.
var validNext = map[models.OrderStatus]map[models.OrderStatus]bool{
	models.OrderStatusPendingPayment: {
		models.OrderStatusPaid:          true,
		models.OrderStatusPaymentFailed: true,
		models.OrderStatusCancelled:     true,
	},
	models.OrderStatusPaid: {
		models.OrderStatusShipped: true,
	},
	models.OrderStatusShipped: {
		models.OrderStatusDelivered: true,
	},
	models.OrderStatusPaymentFailed: {},
	models.OrderStatusCancelled:     {},
	models.OrderStatusDelivered:     {},
}

func CanTransition(from, to models.OrderStatus) bool {
	return validNext[from][to]
}
