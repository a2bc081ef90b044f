package models

import "time"

// Product is a catalog entity. Read-only from the POS side.
type Product struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	SKU                string  `json:"sku"`
	Price              float64 `json:"price"`
	TaxRatePercent     float64 `json:"tax_rate_percent"`
	HasMultipleBatches bool    `json:"has_multiple_batches"`
	DefaultBatchID     string  `json:"default_batch_id,omitempty"`
}

// Batch is one lot of stock for a product. Read-only from the POS side.
type Batch struct {
	ID           string     `json:"id"`
	BatchNumber  string     `json:"batch_number"`
	Expiry       *time.Time `json:"expiry,omitempty"`
	AvailableQty int        `json:"available_qty"`
}

// Expired reports whether the batch's expiry date has passed. Batches with
// no expiry never expire.
func (b Batch) Expired(now time.Time) bool {
	return b.Expiry != nil && b.Expiry.Before(now)
}
