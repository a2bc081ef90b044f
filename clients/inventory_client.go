package clients

import (
	"context"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "pos-service/common/errors"
	"pos-service/models"
)

const (
	defaultReserveTimeout = 8 * time.Second
	defaultReserveRetries = 2
	backoffBase           = 150 * time.Millisecond
	backoffJitterMax      = 60 * time.Millisecond
)

// InventoryConfig configures the reservation client. Zero values fall back
// to the protocol defaults (8s timeout, 2 retries, 150ms backoff base).
type InventoryConfig struct {
	BaseURL     string
	Timeout     time.Duration
	MaxRetries  int
	BackoffBase time.Duration
}

// InventoryClient speaks the reserve/extend/release protocol of the
// inventory service. Reserve and update retry with exponential backoff and
// jitter; the idempotency key for a logical operation is generated once,
// before the first attempt, and reused unchanged on every retry so the
// server can collapse a retried request into the original effect.
type InventoryClient struct {
	baseURL     string
	client      *http.Client
	log         *zap.Logger
	timeout     time.Duration
	maxRetries  int
	backoffBase time.Duration
}

func NewInventoryClient(cfg InventoryConfig, log *zap.Logger) *InventoryClient {
	c := &InventoryClient{
		baseURL:     cfg.BaseURL,
		client:      &http.Client{},
		log:         log,
		timeout:     cfg.Timeout,
		maxRetries:  cfg.MaxRetries,
		backoffBase: cfg.BackoffBase,
	}
	if c.timeout <= 0 {
		c.timeout = defaultReserveTimeout
	}
	if c.maxRetries <= 0 {
		c.maxRetries = defaultReserveRetries
	}
	if c.backoffBase <= 0 {
		c.backoffBase = backoffBase
	}
	return c
}

type reserveRequest struct {
	ProductID          string `json:"product_id"`
	BatchID            string `json:"batch_id,omitempty"`
	Quantity           int    `json:"quantity"`
	CompanyID          string `json:"company_id"`
	LocationID         string `json:"location_id"`
	PatientID          string `json:"patient_id,omitempty"`
	PrescriptionLineID string `json:"prescription_line_id,omitempty"`
}

type reserveResponse struct {
	ReservationID string    `json:"reservation_id"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Reserve places a hold on stock. Fails fast with ConfigurationError when
// the mandatory org scope is missing, before any network call.
func (c *InventoryClient) Reserve(ctx context.Context, rctx models.ReservationContext, productID, batchID string, qty int) (*models.Reservation, error) {
	if missing := rctx.MissingFields(); len(missing) > 0 {
		return nil, &apperrors.ConfigurationError{Missing: missing}
	}

	body := reserveRequest{
		ProductID:          productID,
		BatchID:            batchID,
		Quantity:           qty,
		CompanyID:          rctx.CompanyID,
		LocationID:         rctx.LocationID,
		PatientID:          rctx.PatientID,
		PrescriptionLineID: rctx.PrescriptionLineID,
	}

	resp, err := c.withRetries(ctx, http.MethodPost, c.baseURL+"/reserve", body)
	if err != nil {
		return nil, &apperrors.ReservationFailed{ProductID: productID, Cause: err}
	}

	return &models.Reservation{
		ReservationID: resp.ReservationID,
		ProductID:     productID,
		BatchID:       batchID,
		Quantity:      qty,
		ExpiresAt:     resp.ExpiresAt,
	}, nil
}

// UpdateReservation changes the quantity of an existing hold in place.
func (c *InventoryClient) UpdateReservation(ctx context.Context, reservationID string, qty int) (*models.Reservation, error) {
	body := struct {
		Quantity int `json:"quantity"`
	}{Quantity: qty}

	resp, err := c.withRetries(ctx, http.MethodPatch, c.baseURL+"/reserve/"+url.PathEscape(reservationID), body)
	if err != nil {
		return nil, &apperrors.ReservationFailed{Cause: err}
	}

	return &models.Reservation{
		ReservationID: resp.ReservationID,
		Quantity:      qty,
		ExpiresAt:     resp.ExpiresAt,
	}, nil
}

// Release drops a hold. Best-effort: releasing is cleanup, so failures are
// logged and swallowed, never surfaced, and nothing is retried.
func (c *InventoryClient) Release(ctx context.Context, reservationID string) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := doJSON(ctx, c.client, http.MethodPost, c.baseURL+"/reserve/"+url.PathEscape(reservationID)+"/release", nil, nil, nil, nil)
	if err != nil {
		c.log.Warn("reservation release failed",
			zap.String("reservation_id", reservationID),
			zap.Error(err))
	}
}

// ReleaseAll fires a release for every id without waiting for responses.
// Used on teardown; ordering between releases is not guaranteed.
func (c *InventoryClient) ReleaseAll(reservationIDs []string) {
	for _, id := range reservationIDs {
		go c.Release(context.Background(), id)
	}
}

// withRetries runs a reserve/update call through the retry budget. The
// Idempotency-Key is fixed for the whole loop.
func (c *InventoryClient) withRetries(ctx context.Context, method, u string, body interface{}) (*reserveResponse, error) {
	// Once issued, a reservation call runs to completion or retry
	// exhaustion; the caller going away must not cancel it mid-flight.
	ctx = context.WithoutCancel(ctx)

	idemKey := uuid.NewString()
	headers := http.Header{"Idempotency-Key": {idemKey}}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(c.backoff(attempt))
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		var out reserveResponse
		err := doJSON(attemptCtx, c.client, method, u, nil, headers, body, &out)
		cancel()
		if err == nil {
			return &out, nil
		}

		lastErr = err
		c.log.Warn("reservation call failed",
			zap.String("method", method),
			zap.Int("attempt", attempt+1),
			zap.String("idempotency_key", idemKey),
			zap.Error(err))
	}
	return nil, lastErr
}

// backoff doubles from the base per retry, with +/- 0-60ms of jitter.
func (c *InventoryClient) backoff(attempt int) time.Duration {
	d := c.backoffBase << (attempt - 1)
	jitter := time.Duration(rand.Int63n(int64(backoffJitterMax)))
	if rand.Intn(2) == 0 {
		d -= jitter
	} else {
		d += jitter
	}
	if d < 0 {
		d = 0
	}
	return d
}
