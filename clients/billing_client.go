package clients

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"pos-service/models"
)

// BillingClient submits fulfillment requests to the billing service.
type BillingClient struct {
	baseURL string
	client  *http.Client
}

func NewBillingClient(baseURL string, timeout time.Duration) *BillingClient {
	return &BillingClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Fulfill submits the order exactly once per idempotency key. The key is
// generated by the caller once per submission attempt so a duplicate click
// or client retry cannot create two orders.
func (c *BillingClient) Fulfill(ctx context.Context, payload models.OrderPayload, idempotencyKey string) (*models.Receipt, error) {
	headers := http.Header{"Idempotency-Key": {idempotencyKey}}

	var out models.Receipt
	if err := doJSON(ctx, c.client, http.MethodPost, c.baseURL+"/billing/fulfill", nil, headers, payload, &out); err != nil {
		return nil, fmt.Errorf("fulfill: %w", err)
	}
	return &out, nil
}
