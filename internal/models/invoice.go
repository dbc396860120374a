package models

import "time"

// InvoiceKind distinguishes the billable line items per school year.
type InvoiceKind string

const (
	InvoiceKindAnchoring  InvoiceKind = "ANCHORING"
	InvoiceKindExtraSeats InvoiceKind = "EXTRA_SEATS"
)

// InvoiceStatus tracks an invoice through its paper lifecycle.
type InvoiceStatus string

const (
	InvoiceStatusPlanned InvoiceStatus = "PLANNED"
	InvoiceStatusSent    InvoiceStatus = "SENT"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
)

// Invoice is a billing record for a school, keyed by school year and kind.
type Invoice struct {
	ID            string        `db:"id" json:"id"`
	SchoolID      string        `db:"school_id" json:"school_id"`
	SchoolYear    string        `db:"school_year" json:"school_year"`
	Kind          InvoiceKind   `db:"kind" json:"kind"`
	InvoiceNumber string        `db:"invoice_number" json:"invoice_number"`
	AmountCents   int64         `db:"amount_cents" json:"amount_cents"`
	Status        InvoiceStatus `db:"status" json:"status"`
	IssuedOn      time.Time     `db:"issued_on" json:"issued_on"`
	Comment       string        `db:"comment" json:"comment,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
}

// InvoiceKey identifies an existing invoice obligation within a school year.
type InvoiceKey struct {
	SchoolID string      `db:"school_id"`
	Kind     InvoiceKind `db:"kind"`
}

// InvoiceGap is one missing invoice detected for a school and year. A school
// may carry both gap kinds for the same year; they are independent line items.
type InvoiceGap struct {
	SchoolID   string      `json:"school_id"`
	SchoolName string      `json:"school_name"`
	SchoolYear string      `json:"school_year"`
	Kind       InvoiceKind `json:"kind"`
	// ExtraSeats is populated for EXTRA_SEATS gaps: the seat count to bill.
	ExtraSeats int `json:"extra_seats,omitempty"`
}
