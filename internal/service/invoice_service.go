package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/basal-program/admin-api/internal/models"
	"github.com/basal-program/admin-api/internal/schoolyear"
	appErrors "github.com/basal-program/admin-api/pkg/errors"
)

type invoiceRepository interface {
	ListBySchool(ctx context.Context, schoolID string) ([]models.Invoice, error)
	FindByID(ctx context.Context, id string) (*models.Invoice, error)
	Create(ctx context.Context, invoice *models.Invoice) error
	UpdateStatus(ctx context.Context, id string, status models.InvoiceStatus) error
	Exists(ctx context.Context, schoolID, schoolYear string, kind models.InvoiceKind) (bool, error)
}

type invoiceSchoolReader interface {
	FindByID(ctx context.Context, id string) (*models.School, error)
}

// CreateInvoiceRequest registers an invoice that was sent to a school.
// Registering it removes the matching gap from the missing-invoice scan.
type CreateInvoiceRequest struct {
	SchoolYear    string             `json:"school_year" validate:"required"`
	Kind          models.InvoiceKind `json:"kind" validate:"required,oneof=ANCHORING EXTRA_SEATS"`
	InvoiceNumber string             `json:"invoice_number" validate:"required,max=50"`
	AmountCents   int64              `json:"amount_cents" validate:"min=0"`
	IssuedOn      time.Time          `json:"issued_on" validate:"required"`
	Comment       string             `json:"comment" validate:"max=500"`
}

// UpdateInvoiceStatusRequest moves an invoice between PLANNED, SENT and PAID.
type UpdateInvoiceStatusRequest struct {
	Status models.InvoiceStatus `json:"status" validate:"required,oneof=PLANNED SENT PAID"`
}

// InvoiceService manages the invoice register behind the gap detector.
type InvoiceService struct {
	repo      invoiceRepository
	schools   invoiceSchoolReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewInvoiceService constructs an InvoiceService.
func NewInvoiceService(repo invoiceRepository, schools invoiceSchoolReader, validate *validator.Validate, logger *zap.Logger) *InvoiceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceService{repo: repo, schools: schools, validator: validate, logger: logger}
}

// ListBySchool returns a school's invoices, newest school year first.
func (s *InvoiceService) ListBySchool(ctx context.Context, schoolID string) ([]models.Invoice, error) {
	if _, err := s.findSchool(ctx, schoolID); err != nil {
		return nil, err
	}
	invoices, err := s.repo.ListBySchool(ctx, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list invoices")
	}
	return invoices, nil
}

// Create registers an invoice for a school. One invoice per (school, year,
// kind); a duplicate is a conflict, not an update.
func (s *InvoiceService) Create(ctx context.Context, schoolID string, req CreateInvoiceRequest) (*models.Invoice, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid invoice payload")
	}
	year, err := schoolyear.Parse(req.SchoolYear)
	if err != nil {
		return nil, err
	}
	if _, err := s.findSchool(ctx, schoolID); err != nil {
		return nil, err
	}

	exists, err := s.repo.Exists(ctx, schoolID, year.String(), req.Kind)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing invoices")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "invoice already registered for this school year and kind")
	}

	invoice := &models.Invoice{
		ID:            uuid.NewString(),
		SchoolID:      schoolID,
		SchoolYear:    year.String(),
		Kind:          req.Kind,
		InvoiceNumber: req.InvoiceNumber,
		AmountCents:   req.AmountCents,
		Status:        models.InvoiceStatusSent,
		IssuedOn:      req.IssuedOn,
		Comment:       req.Comment,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, invoice); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create invoice")
	}
	return invoice, nil
}

// UpdateStatus changes the lifecycle status of an invoice belonging to the
// given school.
func (s *InvoiceService) UpdateStatus(ctx context.Context, schoolID, invoiceID string, req UpdateInvoiceStatusRequest) (*models.Invoice, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	invoice, err := s.repo.FindByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invoice")
	}
	if invoice.SchoolID != schoolID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
	}
	if err := s.repo.UpdateStatus(ctx, invoiceID, req.Status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update invoice status")
	}
	invoice.Status = req.Status
	return invoice, nil
}

func (s *InvoiceService) findSchool(ctx context.Context, id string) (*models.School, error) {
	school, err := s.schools.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}
	return school, nil
}
