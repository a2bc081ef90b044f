package models

import "time"

// Reservation is a read-through proxy of a time-boxed stock hold owned by
// the inventory service.
type Reservation struct {
	ReservationID string    `json:"reservation_id"`
	ProductID     string    `json:"product_id"`
	BatchID       string    `json:"batch_id,omitempty"`
	Quantity      int       `json:"quantity"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// ReservationContext carries the organizational scope for reservation calls.
// CompanyID and LocationID are mandatory; their absence fails fast before
// any network call is made.
type ReservationContext struct {
	CompanyID          string `json:"company_id"`
	LocationID         string `json:"location_id"`
	PatientID          string `json:"patient_id,omitempty"`
	PrescriptionLineID string `json:"prescription_line_id,omitempty"`
}

// MissingFields lists the mandatory context fields that are absent.
func (c ReservationContext) MissingFields() []string {
	var missing []string
	if c.CompanyID == "" {
		missing = append(missing, "company_id")
	}
	if c.LocationID == "" {
		missing = append(missing, "location_id")
	}
	return missing
}
