package models

import "time"

// OrgContext identifies who is operating which register of which location.
// It arrives on every request via gateway headers; authentication itself
// happens upstream.
type OrgContext struct {
	TenantID   string `json:"tenant_id"`
	CompanyID  string `json:"company_id"`
	LocationID string `json:"location_id"`
	RegisterID string `json:"register_id"`
	ClerkID    string `json:"clerk_id"`
}

// MissingFields lists the org fields checkout cannot proceed without.
func (o OrgContext) MissingFields() []string {
	var missing []string
	if o.TenantID == "" {
		missing = append(missing, "tenant_id")
	}
	if o.CompanyID == "" {
		missing = append(missing, "company_id")
	}
	if o.LocationID == "" {
		missing = append(missing, "location_id")
	}
	if o.ClerkID == "" {
		missing = append(missing, "clerk_id")
	}
	return missing
}

// Payment is the payment block attached to a fulfillment request.
type Payment struct {
	Method         string  `json:"method"`
	AmountTendered float64 `json:"amount_tendered"`
	Reference      string  `json:"reference,omitempty"`
}

// OrderLine is one line of the fulfillment payload.
type OrderLine struct {
	ProductID          string  `json:"product_id"`
	BatchID            string  `json:"batch_id,omitempty"`
	DisplayName        string  `json:"display_name"`
	Quantity           int     `json:"quantity"`
	UnitPrice          float64 `json:"unit_price"`
	DiscountAmount     float64 `json:"discount_amount"`
	TaxRatePercent     float64 `json:"tax_rate_percent"`
	ReservationID      string  `json:"reservation_id,omitempty"`
	PrescriptionLineID string  `json:"prescription_line_id,omitempty"`
}

// OrderPayload is the single fulfillment request submitted at checkout.
type OrderPayload struct {
	TenantID   string      `json:"tenant_id"`
	CompanyID  string      `json:"company_id"`
	LocationID string      `json:"location_id"`
	PatientID  string      `json:"patient_id"`
	CreatedBy  string      `json:"created_by"`
	Lines      []OrderLine `json:"lines"`
	Payment    Payment     `json:"payment"`
	Subtotal   float64     `json:"subtotal"`
	Tax        float64     `json:"tax"`
	Total      float64     `json:"total"`
}

// Receipt is the billing service's response to a fulfillment request.
type Receipt struct {
	OrderID   string    `json:"order_id"`
	Status    string    `json:"status"`
	Total     float64   `json:"total"`
	CreatedAt time.Time `json:"created_at"`
}

// OrderFulfilledEvent is published after a successful checkout.
type OrderFulfilledEvent struct {
	Event      string    `json:"event"`
	OrderID    string    `json:"order_id"`
	RegisterID string    `json:"register_id"`
	PatientID  string    `json:"patient_id"`
	Total      float64   `json:"total"`
	LineCount  int       `json:"line_count"`
	Timestamp  time.Time `json:"timestamp"`
}
