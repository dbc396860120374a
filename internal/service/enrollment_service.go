package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/basal-program/admin-api/internal/models"
	"github.com/basal-program/admin-api/internal/schoolyear"
	appErrors "github.com/basal-program/admin-api/pkg/errors"
)

// EnrollmentPolicy is the seat and cutoff policy injected into every
// computation. It is passed explicitly so status and entitlement derivation
// stay pure functions of record + date + policy.
type EnrollmentPolicy struct {
	FirstYearSeats    int
	AnchoringSeats    int
	SignupCutoffMonth time.Month
	SignupCutoffDay   int
}

// DefaultEnrollmentPolicy mirrors the program terms: three free seats in the
// first enrolled school year, one renewable forankring seat afterwards, and a
// February 1 signup cutoff.
var DefaultEnrollmentPolicy = EnrollmentPolicy{
	FirstYearSeats:    3,
	AnchoringSeats:    1,
	SignupCutoffMonth: time.February,
	SignupCutoffDay:   1,
}

func (p EnrollmentPolicy) normalized() EnrollmentPolicy {
	if p.FirstYearSeats <= 0 {
		p.FirstYearSeats = DefaultEnrollmentPolicy.FirstYearSeats
	}
	if p.AnchoringSeats <= 0 {
		p.AnchoringSeats = DefaultEnrollmentPolicy.AnchoringSeats
	}
	if p.SignupCutoffMonth < time.January || p.SignupCutoffMonth > time.December {
		p.SignupCutoffMonth = DefaultEnrollmentPolicy.SignupCutoffMonth
	}
	if p.SignupCutoffDay < 1 || p.SignupCutoffDay > 31 {
		p.SignupCutoffDay = DefaultEnrollmentPolicy.SignupCutoffDay
	}
	return p
}

// SignupDeadline returns the last date within the given school year on which
// a school can still join a course that year. Cutoff months from August fall
// in the year's first calendar year, earlier months in its second.
func (p EnrollmentPolicy) SignupDeadline(year schoolyear.Year) time.Time {
	p = p.normalized()
	calendarYear := year.StartYear() + 1
	if p.SignupCutoffMonth >= schoolyear.StartMonth {
		calendarYear = year.StartYear()
	}
	return time.Date(calendarYear, p.SignupCutoffMonth, p.SignupCutoffDay, 0, 0, 0, 0, time.UTC)
}

// StatusAt derives the enrollment status of a record for a given date. The
// cases are evaluated top to bottom and the first match wins, so a withdrawal
// overrides an otherwise anchoring-aged enrollment and exactly one status
// holds for any record/date combination.
func StatusAt(record *models.EnrollmentRecord, today time.Time) models.EnrollmentStatus {
	today = schoolyear.DateOnly(today)

	switch {
	case record == nil || record.EnrolledAt == nil || record.ActiveFrom == nil:
		return models.StatusNotEnrolled
	case record.OptedOutAt != nil && !record.OptedOutAt.After(today):
		return models.StatusOptedOut
	case record.ActiveFrom.After(today):
		return models.StatusPendingNextYear
	case schoolyear.ForDate(*record.ActiveFrom) == schoolyear.ForDate(today):
		return models.StatusEnrolledFirstYear
	default:
		return models.StatusEnrolledAnchoring
	}
}

// EntitlementFor computes the seat entitlement of a record for one school
// year. The record's status is taken at the year's last day, so a school that
// withdraws during the year holds no entitlement for it. First-year seats are
// scoped to the single year containing the active-from date and never carry
// forward; the anchoring seat renews every later year the school stays
// enrolled. Usage is supplied by the caller — this function is pure with
// respect to enrollment state.
func (p EnrollmentPolicy) EntitlementFor(record *models.EnrollmentRecord, year schoolyear.Year, usedSeats int) models.SeatEntitlement {
	p = p.normalized()
	entitlement := models.SeatEntitlement{
		SchoolYear: year.String(),
		Category:   models.SeatCategoryNone,
		UsedSeats:  usedSeats,
	}

	switch StatusAt(record, year.End()) {
	case models.StatusEnrolledFirstYear:
		entitlement.Category = models.SeatCategoryFirstYear
		entitlement.FreeSeats = p.FirstYearSeats
	case models.StatusEnrolledAnchoring:
		entitlement.Category = models.SeatCategoryAnchoring
		entitlement.FreeSeats = p.AnchoringSeats
	case models.StatusNotEnrolled, models.StatusOptedOut, models.StatusPendingNextYear:
		// no free seats outside an active year
	}

	if usedSeats > entitlement.FreeSeats {
		entitlement.ExtraSeats = usedSeats - entitlement.FreeSeats
	}
	return entitlement
}

type enrollmentSchoolRepository interface {
	FindByID(ctx context.Context, id string) (*models.School, error)
	LoadRecord(ctx context.Context, schoolID string) (*models.EnrollmentRecord, error)
	SaveRecord(ctx context.Context, record *models.EnrollmentRecord, events []models.EnrollmentEvent) error
}

type seatUsageReader interface {
	UsedSeats(ctx context.Context, schoolID string, year schoolyear.Year) (int, error)
}

type enrollmentAuditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// EnrollRequest describes an enrollment mutation payload.
type EnrollRequest struct {
	SchoolID string    `json:"-" validate:"required"`
	Date     time.Time `json:"date" validate:"required"`
	Actor    string    `json:"-" validate:"required"`
}

// WithdrawRequest describes a withdrawal payload.
type WithdrawRequest struct {
	SchoolID string    `json:"-" validate:"required"`
	Date     time.Time `json:"date" validate:"required"`
	Actor    string    `json:"-" validate:"required"`
}

// EnrollmentOverview is the read model served on school detail pages.
type EnrollmentOverview struct {
	SchoolID    string                   `json:"school_id"`
	Status      models.EnrollmentStatus  `json:"status"`
	StatusLabel string                   `json:"status_label"`
	Record      *models.EnrollmentRecord `json:"record"`
	Entitlement models.SeatEntitlement   `json:"entitlement"`
}

// EnrollmentService is the enrollment engine: it derives statuses and seat
// entitlements and performs the enroll/withdraw/reset transitions that keep a
// school's record and history consistent.
type EnrollmentService struct {
	schools   enrollmentSchoolRepository
	usage     seatUsageReader
	audit     enrollmentAuditWriter
	cache     *CacheService
	policy    EnrollmentPolicy
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewEnrollmentService constructs the enrollment engine.
func NewEnrollmentService(schools enrollmentSchoolRepository, usage seatUsageReader, audit enrollmentAuditWriter, cache *CacheService, policy EnrollmentPolicy, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		schools:   schools,
		usage:     usage,
		audit:     audit,
		cache:     cache,
		policy:    policy.normalized(),
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Policy exposes the active entitlement policy.
func (s *EnrollmentService) Policy() EnrollmentPolicy {
	return s.policy
}

// Overview returns status, record (with history) and the current-year
// entitlement for a school. It is recomputed on every call; callers needing
// performance cache at their own layer.
func (s *EnrollmentService) Overview(ctx context.Context, schoolID string, today time.Time) (*EnrollmentOverview, error) {
	record, err := s.loadRecord(ctx, schoolID)
	if err != nil {
		return nil, err
	}

	year := schoolyear.Current(today)
	used, err := s.usage.UsedSeats(ctx, schoolID, year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count seat usage")
	}

	status := StatusAt(record, today)
	return &EnrollmentOverview{
		SchoolID:    schoolID,
		Status:      status,
		StatusLabel: status.Label(),
		Record:      record,
		Entitlement: s.policy.EntitlementFor(record, year, used),
	}, nil
}

// Entitlement computes the seat entitlement of a school for a specific year.
func (s *EnrollmentService) Entitlement(ctx context.Context, schoolID string, year schoolyear.Year) (*models.SeatEntitlement, error) {
	record, err := s.loadRecord(ctx, schoolID)
	if err != nil {
		return nil, err
	}
	used, err := s.usage.UsedSeats(ctx, schoolID, year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count seat usage")
	}
	entitlement := s.policy.EntitlementFor(record, year, used)
	return &entitlement, nil
}

// Enroll registers the school's intent to participate. The request date
// becomes the active-from date when it is on or before the running year's
// signup cutoff; later requests defer activation to August 1 of the next
// school year, so a school joining near year end is not credited a first year
// it cannot use. Calling it again with the same date is a no-op.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*models.EnrollmentRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	record, err := s.loadRecord(ctx, req.SchoolID)
	if err != nil {
		return nil, err
	}

	requestDate := schoolyear.DateOnly(req.Date)
	deadline := s.policy.SignupDeadline(schoolyear.ForDate(requestDate))
	events := applyEnroll(record, requestDate, deadline, req.Actor)
	if len(events) == 0 {
		return record, nil
	}

	if err := s.saveRecord(ctx, record, events); err != nil {
		return nil, err
	}
	s.writeAudit(ctx, models.AuditActionEnroll, req.SchoolID, req.Actor, requestDate)
	s.invalidateStats(ctx)
	return record, nil
}

// Withdraw marks the school as opted out from the given date. The enrollment
// dates are preserved so "first enrolled in year X" stays queryable after a
// later re-enrollment.
func (s *EnrollmentService) Withdraw(ctx context.Context, req WithdrawRequest) (*models.EnrollmentRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid withdrawal payload")
	}

	record, err := s.loadRecord(ctx, req.SchoolID)
	if err != nil {
		return nil, err
	}

	withdrawalDate := schoolyear.DateOnly(req.Date)
	if record.EnrolledAt == nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "school has no enrollment to withdraw")
	}
	if withdrawalDate.Before(*record.EnrolledAt) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "withdrawal date precedes enrollment date")
	}

	record.OptedOutAt = &withdrawalDate
	events := []models.EnrollmentEvent{newEvent(req.SchoolID, models.EventOptedOut, withdrawalDate, req.Actor)}
	record.History = append(record.History, events...)

	if err := s.saveRecord(ctx, record, events); err != nil {
		return nil, err
	}
	s.writeAudit(ctx, models.AuditActionWithdraw, req.SchoolID, req.Actor, withdrawalDate)
	s.invalidateStats(ctx)
	return record, nil
}

// Reset clears all enrollment dates, returning the record to NOT_ENROLLED.
// It is the only way back to that state once a school has ever enrolled and
// exists for enrollments created in error. The history survives.
func (s *EnrollmentService) Reset(ctx context.Context, schoolID, actor string) (*models.EnrollmentRecord, error) {
	record, err := s.loadRecord(ctx, schoolID)
	if err != nil {
		return nil, err
	}

	record.EnrolledAt = nil
	record.ActiveFrom = nil
	record.OptedOutAt = nil
	resetDate := schoolyear.DateOnly(s.now())
	events := []models.EnrollmentEvent{newEvent(schoolID, models.EventReset, resetDate, actor)}
	record.History = append(record.History, events...)

	if err := s.saveRecord(ctx, record, events); err != nil {
		return nil, err
	}
	s.writeAudit(ctx, models.AuditActionReset, schoolID, actor, resetDate)
	s.invalidateStats(ctx)
	return record, nil
}

// applyEnroll mutates the record for an enrollment request and returns the
// history events the transition produced. Every genuine change to the record
// yields at least one event, so callers can treat an empty slice as "nothing
// to persist". A repeated identical request produces no events, which keeps
// the operation idempotent.
func applyEnroll(record *models.EnrollmentRecord, requestDate, deadline time.Time, actor string) []models.EnrollmentEvent {
	activeFrom := requestDate
	if requestDate.After(deadline) {
		activeFrom = schoolyear.ForDate(requestDate).Next().Start()
	}

	firstEnrollment := record.EnrolledAt == nil
	reEnrollment := record.OptedOutAt != nil
	activeChanged := record.ActiveFrom == nil || !record.ActiveFrom.Equal(activeFrom)

	if firstEnrollment {
		enrolledAt := requestDate
		record.EnrolledAt = &enrolledAt
	}
	record.ActiveFrom = &activeFrom
	record.OptedOutAt = nil

	var events []models.EnrollmentEvent
	if firstEnrollment || reEnrollment {
		events = append(events, newEvent(record.SchoolID, models.EventEnrolled, requestDate, actor))
	}
	// An ENROLLED event on the request date already conveys an immediate
	// activation; anything else that moves active_from gets its own event,
	// including an operator correcting the date on a live enrollment.
	if activeChanged && (len(events) == 0 || !activeFrom.Equal(requestDate)) {
		events = append(events, newEvent(record.SchoolID, models.EventActivated, activeFrom, actor))
	}
	record.History = append(record.History, events...)
	return events
}

func newEvent(schoolID string, eventType models.EnrollmentEventType, date time.Time, actor string) models.EnrollmentEvent {
	return models.EnrollmentEvent{
		ID:        uuid.NewString(),
		SchoolID:  schoolID,
		Type:      eventType,
		Date:      date,
		Actor:     actor,
		CreatedAt: time.Now().UTC(),
	}
}

func (s *EnrollmentService) loadRecord(ctx context.Context, schoolID string) (*models.EnrollmentRecord, error) {
	record, err := s.schools.LoadRecord(ctx, schoolID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment record")
	}
	return record, nil
}

func (s *EnrollmentService) saveRecord(ctx context.Context, record *models.EnrollmentRecord, events []models.EnrollmentEvent) error {
	if err := s.schools.SaveRecord(ctx, record, events); err != nil {
		if errors.Is(err, appErrors.ErrConflict) {
			return appErrors.Clone(appErrors.ErrConflict, "enrollment record was modified concurrently")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save enrollment record")
	}
	return nil
}

func (s *EnrollmentService) writeAudit(ctx context.Context, action models.AuditAction, schoolID, actor string, date time.Time) {
	if s.audit == nil {
		return
	}
	details, _ := json.Marshal(map[string]string{"date": date.Format("2006-01-02")})
	log := &models.AuditLog{
		Action:     action,
		Resource:   "school_enrollment",
		ResourceID: &schoolID,
		Details:    details,
	}
	if actor != "" {
		log.UserID = &actor
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to write enrollment audit log", zap.String("school_id", schoolID), zap.Error(err))
	}
}

func (s *EnrollmentService) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "dashboard:*"); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}
