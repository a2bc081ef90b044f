package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"pos-service/models"
)

// CartRepository persists per-register cart snapshots and checkout
// idempotency records in redis. Persistence is best-effort: callers log
// save failures rather than surfacing them to the mutation path.
type CartRepository struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

func NewCartRepository(client *redis.Client, ttl time.Duration, log *zap.Logger) *CartRepository {
	return &CartRepository{client: client, ttl: ttl, log: log}
}

func (r *CartRepository) cartKey(registerID string) string {
	return fmt.Sprintf("pos:cart:%s", registerID)
}

func (r *CartRepository) idemKey(key string) string {
	return "pos:idem:checkout:" + key
}

// persistedLine mirrors models.CartLine with pointer fields for the
// attributes a loadable record must carry. Records written by older or
// newer builds may miss fields; those records are dropped on load instead
// of failing the whole snapshot.
type persistedLine struct {
	ID                   *string    `json:"id"`
	ProductID            *string    `json:"product_id"`
	BatchID              string     `json:"batch_id,omitempty"`
	DisplayName          string     `json:"display_name"`
	SKU                  string     `json:"sku,omitempty"`
	UnitPrice            *float64   `json:"unit_price"`
	Quantity             *int       `json:"quantity"`
	DiscountAmount       float64    `json:"discount_amount"`
	TaxRatePercent       float64    `json:"tax_rate_percent"`
	ReservationID        string     `json:"reservation_id,omitempty"`
	ReservationExpiresAt *time.Time `json:"reservation_expires_at,omitempty"`
	PrescriptionLineID   string     `json:"prescription_line_id,omitempty"`
}

func (p persistedLine) valid() bool {
	return p.ID != nil && *p.ID != "" &&
		p.ProductID != nil && *p.ProductID != "" &&
		p.UnitPrice != nil && *p.UnitPrice >= 0 &&
		p.Quantity != nil && *p.Quantity >= 1
}

func (p persistedLine) toLine() models.CartLine {
	return models.CartLine{
		ID:                   *p.ID,
		ProductID:            *p.ProductID,
		BatchID:              p.BatchID,
		DisplayName:          p.DisplayName,
		SKU:                  p.SKU,
		UnitPrice:            *p.UnitPrice,
		Quantity:             *p.Quantity,
		DiscountAmount:       p.DiscountAmount,
		TaxRatePercent:       p.TaxRatePercent,
		ReservationID:        p.ReservationID,
		ReservationExpiresAt: p.ReservationExpiresAt,
		PrescriptionLineID:   p.PrescriptionLineID,
	}
}

// FilterValid decodes a persisted snapshot, keeping only well-formed
// records. Split out of LoadSnapshot so the validation rules are testable
// without a redis server.
func FilterValid(data []byte) ([]models.CartLine, error) {
	var records []persistedLine
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	lines := make([]models.CartLine, 0, len(records))
	for _, rec := range records {
		if rec.valid() {
			lines = append(lines, rec.toLine())
		}
	}
	return lines, nil
}

// LoadSnapshot returns the persisted cart for a register. Missing key,
// corrupt payload and malformed records all degrade to fewer (or zero)
// lines rather than an error on the session path.
func (r *CartRepository) LoadSnapshot(ctx context.Context, registerID string) []models.CartLine {
	data, err := r.client.Get(ctx, r.cartKey(registerID)).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		r.log.Warn("cart snapshot load failed", zap.String("register_id", registerID), zap.Error(err))
		return nil
	}

	lines, err := FilterValid(data)
	if err != nil {
		r.log.Warn("cart snapshot corrupt, discarding", zap.String("register_id", registerID), zap.Error(err))
		return nil
	}
	return lines
}

// SaveSnapshot writes the cart for a register. Errors are returned for the
// caller to log; they must not reach the clerk.
func (r *CartRepository) SaveSnapshot(ctx context.Context, registerID string, lines []models.CartLine) error {
	data, err := json.Marshal(lines)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.cartKey(registerID), data, r.ttl).Err()
}

// DeleteSnapshot drops the persisted cart for a register.
func (r *CartRepository) DeleteSnapshot(ctx context.Context, registerID string) error {
	return r.client.Del(ctx, r.cartKey(registerID)).Err()
}

// GetSubmission returns the receipt recorded for a checkout idempotency
// key, or nil when the key has not been seen.
func (r *CartRepository) GetSubmission(ctx context.Context, key string) (*models.Receipt, error) {
	data, err := r.client.Get(ctx, r.idemKey(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var receipt models.Receipt
	if err := json.Unmarshal(data, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// PutSubmission records the receipt produced for a checkout idempotency
// key so a duplicate submit replays it instead of creating a second order.
func (r *CartRepository) PutSubmission(ctx context.Context, key string, receipt *models.Receipt, ttl time.Duration) error {
	data, err := json.Marshal(receipt)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.idemKey(key), data, ttl).Err()
}
