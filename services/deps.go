package services

import (
	"context"
	"time"

	"pos-service/models"
)

// Catalog is the slice of the ERP backend the POS engine reads from.
type Catalog interface {
	SearchProducts(ctx context.Context, q string) ([]models.Product, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	GetBatches(ctx context.Context, productID string) ([]models.Batch, error)
	NormalizeMedication(ctx context.Context, q string) ([]string, error)
	GetStock(ctx context.Context, productID, batchID string) (int, error)
}

// Inventory is the reserve/extend/release protocol.
type Inventory interface {
	Reserve(ctx context.Context, rctx models.ReservationContext, productID, batchID string, qty int) (*models.Reservation, error)
	UpdateReservation(ctx context.Context, reservationID string, qty int) (*models.Reservation, error)
	Release(ctx context.Context, reservationID string)
}

// Billing submits fulfillment requests.
type Billing interface {
	Fulfill(ctx context.Context, payload models.OrderPayload, idempotencyKey string) (*models.Receipt, error)
}

// SubmissionStore records checkout idempotency keys and their receipts.
type SubmissionStore interface {
	GetSubmission(ctx context.Context, key string) (*models.Receipt, error)
	PutSubmission(ctx context.Context, key string, receipt *models.Receipt, ttl time.Duration) error
}

// EventPublisher emits domain events after state changes have committed.
type EventPublisher interface {
	PublishOrderFulfilled(event models.OrderFulfilledEvent) error
}
