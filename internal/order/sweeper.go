package order

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shiromine/jewelshop/internal/logging"
	"github.com/shiromine/jewelshop/internal/models"
)

// Sweeper cancels orders stuck in PENDING_PAYMENT past the TTL, releasing
// their stock reservations. This is the backstop for abandoned checkouts:
// there is no reliable client-side cancel signal on disconnect.
type Sweeper struct {
	Service  *Service
	TTL      time.Duration
	Interval time.Duration
	Swept    prometheus.Counter
}

func (sw *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(sw.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sw.SweepOnce(ctx)
			if err != nil {
				logging.FromContext(ctx).Error("sweep failed", "error", err)
			}
			if n > 0 {
				logging.FromContext(ctx).Info("swept abandoned orders", "count", n)
			}
		}
	}
}

// SweepOnce cancels every PENDING_PAYMENT order created before now-TTL and
// reports how many were cancelled. A concurrent confirmation winning the
// race on an individual order is not an error; that order is skipped.
func (sw *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-sw.TTL)

	var stale []models.Order
	err := sw.Service.DB.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.OrderStatusPendingPayment, cutoff).
		Find(&stale).Error
	if err != nil {
		return 0, err
	}

	var swept int
	for _, o := range stale {
		if err := sw.Service.CancelPending(ctx, o.ID); err != nil {
			if errors.Is(err, ErrInvalidState) || errors.Is(err, ErrNotFound) {
				continue
			}
			return swept, err
		}
		swept++
		if sw.Swept != nil {
			sw.Swept.Inc()
		}
	}
	return swept, nil
}
