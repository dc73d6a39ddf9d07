// Package payment holds the gateway client and the reconciliation handler
// that moves orders to their terminal payment state.
package payment

import (
	"context"
	"errors"

	"github.com/shiromine/jewelshop/internal/models"
)

var (
	// ErrGatewayUnavailable is transient: the processor could not be
	// reached after bounded retries. Safe for the caller to retry.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrGatewayRejected is fatal for this attempt.
	ErrGatewayRejected = errors.New("payment gateway rejected request")
	// ErrStillProcessing means the gateway has not reached a terminal
	// status yet; the caller should poll or wait for the callback.
	ErrStillProcessing = errors.New("payment still processing")
	// ErrIntentMismatch guards confirm calls referencing an intent that
	// does not belong to the order.
	ErrIntentMismatch = errors.New("intent does not match order")
)

type Intent struct {
	ID           string                     `json:"id"`
	Amount       int64                      `json:"amount"`
	Status       models.PaymentIntentStatus `json:"status"`
	ClientSecret string                     `json:"client_secret"`
}

// Gateway is the narrow contract to the external payment processor.
type Gateway interface {
	// CreateIntent requests an intent for the amount. idempotencyKey (the
	// order id) makes a retried call return the original intent instead of
	// creating a duplicate.
	CreateIntent(ctx context.Context, amount int64, idempotencyKey string) (*Intent, error)
	// GetStatus is a read-only poll, used as the reconciliation fallback
	// when no callback arrives.
	GetStatus(ctx context.Context, intentID string) (models.PaymentIntentStatus, error)
}
