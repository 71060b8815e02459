package entity

import "time"

// Quotation is a vendor quote attached to a requisition. At most one
// quotation per requisition may be selected; selection is what the
// execution precondition checks on quotation-requiring categories.
type Quotation struct {
	ID            int64      `json:"id"`
	RequisitionID int64      `json:"requisition_id"`
	VendorName    string     `json:"vendor_name"`
	VendorContact string     `json:"vendor_contact,omitempty"`
	Amount        float64    `json:"amount"`
	Currency      string     `json:"currency"`
	QuotationDate time.Time  `json:"quotation_date"`
	ValidityDate  *time.Time `json:"validity_date,omitempty"`
	FilePath      string     `json:"file_path,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	IsSelected    bool       `json:"is_selected"`
	CreatedBy     string     `json:"created_by"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
