package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/basal-program/admin-api/internal/models"
)

// InvoiceRepository manages persistence for invoices.
type InvoiceRepository struct {
	db *sqlx.DB
}

// NewInvoiceRepository constructs an InvoiceRepository.
func NewInvoiceRepository(db *sqlx.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// ListBySchool returns a school's invoices, newest school year first.
func (r *InvoiceRepository) ListBySchool(ctx context.Context, schoolID string) ([]models.Invoice, error) {
	const query = `SELECT id, school_id, school_year, kind, invoice_number, amount_cents, status, issued_on, comment, created_at
        FROM invoices WHERE school_id = $1 ORDER BY school_year DESC, kind ASC`
	var invoices []models.Invoice
	if err := r.db.SelectContext(ctx, &invoices, query, schoolID); err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return invoices, nil
}

// ExistingKeys returns the (school, kind) pairs already invoiced for a school
// year. The gap scan subtracts these from the obligations it derives.
func (r *InvoiceRepository) ExistingKeys(ctx context.Context, schoolYear string) ([]models.InvoiceKey, error) {
	const query = `SELECT school_id, kind FROM invoices WHERE school_year = $1`
	var keys []models.InvoiceKey
	if err := r.db.SelectContext(ctx, &keys, query, schoolYear); err != nil {
		return nil, fmt.Errorf("list invoice keys: %w", err)
	}
	return keys, nil
}

// Exists reports whether an invoice is registered for the given key.
func (r *InvoiceRepository) Exists(ctx context.Context, schoolID, schoolYear string, kind models.InvoiceKind) (bool, error) {
	const query = `SELECT 1 FROM invoices WHERE school_id = $1 AND school_year = $2 AND kind = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, schoolID, schoolYear, kind); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check invoice: %w", err)
	}
	return true, nil
}

// FindByID returns a single invoice.
func (r *InvoiceRepository) FindByID(ctx context.Context, id string) (*models.Invoice, error) {
	const query = `SELECT id, school_id, school_year, kind, invoice_number, amount_cents, status, issued_on, comment, created_at
        FROM invoices WHERE id = $1`
	var invoice models.Invoice
	if err := r.db.GetContext(ctx, &invoice, query, id); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// UpdateStatus moves an invoice through its lifecycle.
func (r *InvoiceRepository) UpdateStatus(ctx context.Context, id string, status models.InvoiceStatus) error {
	const query = `UPDATE invoices SET status = $2 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("update invoice status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update invoice status: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Create inserts a new invoice row.
func (r *InvoiceRepository) Create(ctx context.Context, invoice *models.Invoice) error {
	const query = `INSERT INTO invoices (id, school_id, school_year, kind, invoice_number, amount_cents, status, issued_on, comment, created_at)
        VALUES (:id, :school_id, :school_year, :kind, :invoice_number, :amount_cents, :status, :issued_on, :comment, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, invoice); err != nil {
		return fmt.Errorf("create invoice: %w", err)
	}
	return nil
}
