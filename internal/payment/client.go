package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/shiromine/jewelshop/internal/models"
)

// Client talks HTTP to the payment processor. Transient faults (network
// errors, 5xx) are retried a bounded number of times with backoff before
// surfacing ErrGatewayUnavailable; 4xx responses are ErrGatewayRejected.
type Client struct {
	http *resty.Client
}

func NewClient(baseURL, apiKey string) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(apiKey).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		})
	return &Client{http: c}
}

func (c *Client) CreateIntent(ctx context.Context, amount int64, idempotencyKey string) (*Intent, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrGatewayRejected)
	}

	var out Intent
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", idempotencyKey).
		SetBody(map[string]any{"amount": amount, "metadata": map[string]string{"order_id": idempotencyKey}}).
		SetResult(&out).
		Post("/v1/payment_intents")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if err := gatewayError(resp); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, fmt.Errorf("%w: empty intent id", ErrGatewayRejected)
	}
	if out.Status == "" {
		out.Status = models.IntentStatusRequiresConfirmation
	}
	return &out, nil
}

func (c *Client) GetStatus(ctx context.Context, intentID string) (models.PaymentIntentStatus, error) {
	var out Intent
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/v1/payment_intents/" + intentID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if err := gatewayError(resp); err != nil {
		return "", err
	}
	return out.Status, nil
}

func gatewayError(resp *resty.Response) error {
	switch {
	case resp.StatusCode() >= 500:
		return fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode())
	case resp.StatusCode() >= 400:
		return fmt.Errorf("%w: status %d: %s", ErrGatewayRejected, resp.StatusCode(), resp.String())
	}
	return nil
}
