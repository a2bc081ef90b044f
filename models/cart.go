package models

import (
	"strings"
	"time"
)

// UnmappedIDPrefix marks cart lines whose prescription text could not be
// resolved to any catalog product. Real catalog ids never carry this prefix.
const UnmappedIDPrefix = "unmapped:"

// IsUnmappedID reports whether a product id is a placeholder for an
// unresolved prescription line.
func IsUnmappedID(productID string) bool {
	return strings.HasPrefix(productID, UnmappedIDPrefix)
}

// CartLine is one sellable unit of the order being built at a register.
type CartLine struct {
	ID                   string     `json:"id"`
	ProductID            string     `json:"product_id"`
	BatchID              string     `json:"batch_id,omitempty"`
	DisplayName          string     `json:"display_name"`
	SKU                  string     `json:"sku,omitempty"`
	UnitPrice            float64    `json:"unit_price"`
	Quantity             int        `json:"quantity"`
	DiscountAmount       float64    `json:"discount_amount"`
	TaxRatePercent       float64    `json:"tax_rate_percent"`
	ReservationID        string     `json:"reservation_id,omitempty"`
	ReservationExpiresAt *time.Time `json:"reservation_expires_at,omitempty"`
	PrescriptionLineID   string     `json:"prescription_line_id,omitempty"`
}

// MergeKey identifies the at-most-one-line-per-triple invariant: adding a
// line whose key already exists merges quantities instead of appending.
type MergeKey struct {
	ProductID          string
	BatchID            string
	PrescriptionLineID string
}

// Key returns the merge key for the line. Empty optional fields compare
// equal to each other.
func (l CartLine) Key() MergeKey {
	return MergeKey{
		ProductID:          l.ProductID,
		BatchID:            l.BatchID,
		PrescriptionLineID: l.PrescriptionLineID,
	}
}

// Net is the line's taxable amount: unit price times quantity minus discount.
func (l CartLine) Net() float64 {
	return l.UnitPrice*float64(l.Quantity) - l.DiscountAmount
}

// Tax is the tax owed on the line's net amount.
func (l CartLine) Tax() float64 {
	return (l.TaxRatePercent / 100) * l.Net()
}

// Reserved reports whether the line is backed by a reservation that has not
// visibly expired. Expiry is authoritative only on the server; an
// expired-looking line needs re-reservation, not an error.
func (l CartLine) Reserved(now time.Time) bool {
	if l.ReservationID == "" {
		return false
	}
	if l.ReservationExpiresAt != nil && now.After(*l.ReservationExpiresAt) {
		return false
	}
	return true
}

// Totals is the derived read model of a cart snapshot.
type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

// ComputeTotals derives cart totals from a list of lines.
func ComputeTotals(lines []CartLine) Totals {
	var t Totals
	for _, l := range lines {
		t.Subtotal += l.Net()
		t.Tax += l.Tax()
	}
	t.Total = t.Subtotal + t.Tax
	return t
}
