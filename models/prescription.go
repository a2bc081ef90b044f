package models

// PrescriptionLine is one unresolved entry of a prescription import: free
// text plus whatever hints the prescribing system attached.
type PrescriptionLine struct {
	ID                  string   `json:"id,omitempty"`
	ProductName         string   `json:"product_name"`
	Qty                 int      `json:"qty,omitempty"`
	Note                string   `json:"note,omitempty"`
	SuggestedProductIDs []string `json:"suggested_product_ids,omitempty"`
}
