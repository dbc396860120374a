package models

import "time"

// ReportKind identifies the report family a job produces.
type ReportKind string

// ReportKindMissingInvoices exports the missing-invoice scan.
const ReportKindMissingInvoices ReportKind = "MISSING_INVOICES"

// ReportFormat is the requested output encoding.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "CSV"
	ReportFormatPDF ReportFormat = "PDF"
)

// ReportStatus tracks the asynchronous generation lifecycle.
type ReportStatus string

const (
	ReportStatusQueued    ReportStatus = "QUEUED"
	ReportStatusRunning   ReportStatus = "RUNNING"
	ReportStatusCompleted ReportStatus = "COMPLETED"
	ReportStatusFailed    ReportStatus = "FAILED"
)

// ReportJob is one queued export request and its outcome.
type ReportJob struct {
	ID          string       `db:"id" json:"id"`
	Kind        ReportKind   `db:"kind" json:"kind"`
	Format      ReportFormat `db:"format" json:"format"`
	SchoolYear  string       `db:"school_year" json:"school_year"`
	Status      ReportStatus `db:"status" json:"status"`
	FilePath    string       `db:"file_path" json:"-"`
	ErrorText   string       `db:"error_text" json:"error,omitempty"`
	RequestedBy string       `db:"requested_by" json:"requested_by"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	CompletedAt *time.Time   `db:"completed_at" json:"completed_at,omitempty"`
}
