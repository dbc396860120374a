package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/basal-program/admin-api/internal/models"
	"github.com/basal-program/admin-api/internal/schoolyear"
	appErrors "github.com/basal-program/admin-api/pkg/errors"
	"github.com/basal-program/admin-api/pkg/export"
	"github.com/basal-program/admin-api/pkg/jobs"
	"github.com/basal-program/admin-api/pkg/storage"
)

type reportJobRepository interface {
	Create(ctx context.Context, job *models.ReportJob) error
	FindByID(ctx context.Context, id string) (*models.ReportJob, error)
	MarkRunning(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id, filePath string, completedAt time.Time) error
	MarkFailed(ctx context.Context, id, errorText string, completedAt time.Time) error
}

type gapScanner interface {
	MissingForYear(ctx context.Context, year schoolyear.Year) ([]models.InvoiceGap, error)
}

// CreateReportRequest asks for an export of the missing-invoice scan.
type CreateReportRequest struct {
	SchoolYear string              `json:"school_year" validate:"required"`
	Format     models.ReportFormat `json:"format" validate:"required,oneof=CSV PDF"`
}

// ReportDownload carries everything a handler needs to stream a finished file.
type ReportDownload struct {
	Job         *models.ReportJob
	File        *os.File
	ContentType string
	Filename    string
}

// ReportService generates missing-invoice exports in the background. Jobs
// are queued, rendered to CSV or PDF, stored on disk and fetched back with
// short-lived signed tokens so download links can be pasted into mails.
type ReportService struct {
	repo   reportJobRepository
	gaps   gapScanner
	queue  *jobs.Queue
	store  *storage.LocalStorage
	signer *storage.ReportTokenSigner
	logger *zap.Logger
	now    func() time.Time
}

// NewReportService constructs the service. Call BindQueue before Start.
func NewReportService(repo reportJobRepository, gaps gapScanner, store *storage.LocalStorage, signer *storage.ReportTokenSigner, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		repo:   repo,
		gaps:   gaps,
		store:  store,
		signer: signer,
		logger: logger,
		now:    time.Now,
	}
}

// BindQueue attaches the worker queue whose handler must be s.Process.
func (s *ReportService) BindQueue(queue *jobs.Queue) {
	s.queue = queue
}

// Create validates the request, persists a QUEUED job and enqueues it.
func (s *ReportService) Create(ctx context.Context, req CreateReportRequest, requestedBy string) (*models.ReportJob, error) {
	year, err := schoolyear.Parse(req.SchoolYear)
	if err != nil {
		return nil, err
	}
	if req.Format != models.ReportFormatCSV && req.Format != models.ReportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be CSV or PDF")
	}

	job := &models.ReportJob{
		ID:          uuid.NewString(),
		Kind:        models.ReportKindMissingInvoices,
		Format:      req.Format,
		SchoolYear:  year.String(),
		Status:      models.ReportStatusQueued,
		RequestedBy: requestedBy,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report job")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Kind), Payload: job.ID}); err != nil {
		now := s.now().UTC()
		if markErr := s.repo.MarkFailed(ctx, job.ID, "queue unavailable", now); markErr != nil {
			s.logger.Warn("failed to mark report job failed", zap.Error(markErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue report job")
	}
	return job, nil
}

// Get returns a job by id.
func (s *ReportService) Get(ctx context.Context, id string) (*models.ReportJob, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	return job, nil
}

// DownloadURL issues a signed token for a completed job's file.
func (s *ReportService) DownloadURL(ctx context.Context, id string) (string, time.Time, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return "", time.Time{}, err
	}
	if job.Status != models.ReportStatusCompleted || job.FilePath == "" {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrValidation, "report is not ready for download")
	}
	token, expiresAt, err := s.signer.Issue(job.ID, job.FilePath)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download token")
	}
	return token, expiresAt, nil
}

// Download validates a signed token and opens the stored file.
func (s *ReportService) Download(ctx context.Context, token string) (*ReportDownload, error) {
	claim, err := s.signer.Verify(token)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}
	job, err := s.Get(ctx, claim.JobID)
	if err != nil {
		return nil, err
	}
	if job.FilePath != claim.FilePath {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "download token does not match report")
	}
	file, err := s.store.Open(claim.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "report file missing")
	}

	contentType := "text/csv"
	ext := "csv"
	if job.Format == models.ReportFormatPDF {
		contentType = "application/pdf"
		ext = "pdf"
	}
	filename := fmt.Sprintf("missing-invoices-%s.%s", job.SchoolYear[:4]+"-"+job.SchoolYear[5:], ext)
	return &ReportDownload{Job: job, File: file, ContentType: contentType, Filename: filename}, nil
}

// Process is the queue handler: it runs the gap scan and renders the file.
func (s *ReportService) Process(ctx context.Context, queued jobs.Job) error {
	jobID, _ := queued.Payload.(string)
	if jobID == "" {
		jobID = queued.ID
	}

	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load report job %s: %w", jobID, err)
	}
	if err := s.repo.MarkRunning(ctx, job.ID); err != nil {
		return fmt.Errorf("mark report job running: %w", err)
	}

	filePath, err := s.generate(ctx, job)
	now := s.now().UTC()
	if err != nil {
		s.logger.Error("report generation failed", zap.String("job_id", job.ID), zap.Error(err))
		if markErr := s.repo.MarkFailed(ctx, job.ID, err.Error(), now); markErr != nil {
			s.logger.Warn("failed to mark report job failed", zap.Error(markErr))
		}
		return err
	}
	if err := s.repo.MarkCompleted(ctx, job.ID, filePath, now); err != nil {
		return fmt.Errorf("mark report job completed: %w", err)
	}
	s.logger.Info("report generated",
		zap.String("job_id", job.ID),
		zap.String("school_year", job.SchoolYear),
		zap.String("format", string(job.Format)))
	return nil
}

func (s *ReportService) generate(ctx context.Context, job *models.ReportJob) (string, error) {
	year, err := schoolyear.Parse(job.SchoolYear)
	if err != nil {
		return "", err
	}
	gaps, err := s.gaps.MissingForYear(ctx, year)
	if err != nil {
		return "", err
	}

	table := missingInvoiceTable(job.SchoolYear, gaps)

	var rendered []byte
	ext := "csv"
	switch job.Format {
	case models.ReportFormatPDF:
		rendered, err = export.RenderPDF(table)
		ext = "pdf"
	default:
		rendered, err = export.RenderCSV(table)
	}
	if err != nil {
		return "", err
	}

	filename := fmt.Sprintf("reports/%s/%s.%s", s.now().UTC().Format("2006-01"), job.ID, ext)
	return s.store.Save(filename, rendered)
}

func missingInvoiceTable(schoolYear string, gaps []models.InvoiceGap) export.Table {
	rows := make([][]string, 0, len(gaps))
	for _, gap := range gaps {
		kind := "Forankring"
		extra := ""
		if gap.Kind == models.InvoiceKindExtraSeats {
			kind = "Ekstra pladser"
			extra = strconv.Itoa(gap.ExtraSeats)
		}
		rows = append(rows, []string{gap.SchoolName, gap.SchoolYear, kind, extra})
	}
	return export.Table{
		Title:   fmt.Sprintf("Manglende fakturaer %s", schoolYear),
		Columns: []string{"Skole", "Skoleår", "Type", "Ekstra pladser"},
		Rows:    rows,
	}
}
