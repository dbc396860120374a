package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/basal-program/admin-api/internal/models"
	"github.com/basal-program/admin-api/internal/schoolyear"
	appErrors "github.com/basal-program/admin-api/pkg/errors"
)

type stubSchoolRecords struct {
	records map[string]*models.EnrollmentRecord
	saves   int
	saveErr error
}

func (s *stubSchoolRecords) FindByID(ctx context.Context, id string) (*models.School, error) {
	if _, ok := s.records[id]; !ok {
		return nil, sql.ErrNoRows
	}
	return &models.School{ID: id}, nil
}

// LoadRecord returns a fresh copy per call, the way a real store would, so
// tests catch mutations that were never saved back.
func (s *stubSchoolRecords) LoadRecord(ctx context.Context, schoolID string) (*models.EnrollmentRecord, error) {
	record, ok := s.records[schoolID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *record
	copied.History = append([]models.EnrollmentEvent(nil), record.History...)
	return &copied, nil
}

func (s *stubSchoolRecords) SaveRecord(ctx context.Context, record *models.EnrollmentRecord, events []models.EnrollmentEvent) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.records[record.SchoolID] = record
	return nil
}

type stubUsage struct {
	counts map[string]int
}

func (s *stubUsage) UsedSeats(ctx context.Context, schoolID string, year schoolyear.Year) (int, error) {
	return s.counts[schoolID], nil
}

type stubAudit struct {
	logs []*models.AuditLog
}

func (s *stubAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.logs = append(s.logs, log)
	return nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

func newEnrollmentSvc(records map[string]*models.EnrollmentRecord, usage map[string]int) (*EnrollmentService, *stubSchoolRecords, *stubAudit) {
	repo := &stubSchoolRecords{records: records}
	audit := &stubAudit{}
	svc := NewEnrollmentService(repo, &stubUsage{counts: usage}, audit, nil, DefaultEnrollmentPolicy, validator.New(), zap.NewNop())
	return svc, repo, audit
}

func TestStatusDerivation(t *testing.T) {
	today := date(2024, 10, 1)

	cases := []struct {
		name   string
		record *models.EnrollmentRecord
		want   models.EnrollmentStatus
	}{
		{"nil record", nil, models.StatusNotEnrolled},
		{"empty record", &models.EnrollmentRecord{}, models.StatusNotEnrolled},
		{
			"opted out in the past",
			&models.EnrollmentRecord{EnrolledAt: datePtr(2022, 9, 1), ActiveFrom: datePtr(2022, 9, 1), OptedOutAt: datePtr(2024, 6, 1)},
			models.StatusOptedOut,
		},
		{
			"opted out today",
			&models.EnrollmentRecord{EnrolledAt: datePtr(2022, 9, 1), ActiveFrom: datePtr(2022, 9, 1), OptedOutAt: datePtr(2024, 10, 1)},
			models.StatusOptedOut,
		},
		{
			"opt-out in the future still counts as enrolled",
			&models.EnrollmentRecord{EnrolledAt: datePtr(2022, 9, 1), ActiveFrom: datePtr(2022, 9, 1), OptedOutAt: datePtr(2025, 1, 1)},
			models.StatusEnrolledAnchoring,
		},
		{
			"activation pending",
			&models.EnrollmentRecord{EnrolledAt: datePtr(2024, 9, 1), ActiveFrom: datePtr(2025, 8, 1)},
			models.StatusPendingNextYear,
		},
		{
			"active since this school year",
			&models.EnrollmentRecord{EnrolledAt: datePtr(2024, 9, 1), ActiveFrom: datePtr(2024, 9, 1)},
			models.StatusEnrolledFirstYear,
		},
		{
			"active from exactly today",
			&models.EnrollmentRecord{EnrolledAt: datePtr(2024, 10, 1), ActiveFrom: datePtr(2024, 10, 1)},
			models.StatusEnrolledFirstYear,
		},
		{
			"active since an earlier school year",
			&models.EnrollmentRecord{EnrolledAt: datePtr(2023, 9, 1), ActiveFrom: datePtr(2023, 9, 1)},
			models.StatusEnrolledAnchoring,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StatusAt(tc.record, today))
		})
	}
}

func TestStatusFirstYearFollowsSchoolYearBoundary(t *testing.T) {
	record := &models.EnrollmentRecord{EnrolledAt: datePtr(2024, 9, 1), ActiveFrom: datePtr(2024, 9, 1)}

	assert.Equal(t, models.StatusEnrolledFirstYear, StatusAt(record, date(2025, 7, 31)))
	assert.Equal(t, models.StatusEnrolledAnchoring, StatusAt(record, date(2025, 8, 1)))
}

func TestSignupDeadline(t *testing.T) {
	year, err := schoolyear.Parse("2024/25")
	require.NoError(t, err)

	assert.Equal(t, date(2025, 2, 1), DefaultEnrollmentPolicy.SignupDeadline(year))

	autumnCutoff := EnrollmentPolicy{FirstYearSeats: 3, AnchoringSeats: 1, SignupCutoffMonth: time.November, SignupCutoffDay: 15}
	assert.Equal(t, date(2024, 11, 15), autumnCutoff.SignupDeadline(year))
}

func TestEnrollBeforeCutoffActivatesImmediately(t *testing.T) {
	svc, repo, audit := newEnrollmentSvc(map[string]*models.EnrollmentRecord{"sch-1": {SchoolID: "sch-1"}}, nil)

	record, err := svc.Enroll(context.Background(), EnrollRequest{SchoolID: "sch-1", Date: date(2024, 10, 1), Actor: "admin"})
	require.NoError(t, err)

	assert.Equal(t, date(2024, 10, 1), *record.EnrolledAt)
	assert.Equal(t, date(2024, 10, 1), *record.ActiveFrom)
	assert.Nil(t, record.OptedOutAt)
	require.Len(t, record.History, 1)
	assert.Equal(t, models.EventEnrolled, record.History[0].Type)
	assert.Equal(t, 1, repo.saves)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionEnroll, audit.logs[0].Action)
}

func TestEnrollAfterCutoffDefersActivation(t *testing.T) {
	svc, _, _ := newEnrollmentSvc(map[string]*models.EnrollmentRecord{"sch-1": {SchoolID: "sch-1"}}, nil)

	record, err := svc.Enroll(context.Background(), EnrollRequest{SchoolID: "sch-1", Date: date(2025, 3, 1), Actor: "admin"})
	require.NoError(t, err)

	assert.Equal(t, date(2025, 3, 1), *record.EnrolledAt)
	assert.Equal(t, date(2025, 8, 1), *record.ActiveFrom)
	require.Len(t, record.History, 2)
	assert.Equal(t, models.EventEnrolled, record.History[0].Type)
	assert.Equal(t, models.EventActivated, record.History[1].Type)
	assert.Equal(t, date(2025, 8, 1), record.History[1].Date)
}

func TestEnrollOnCutoffDayActivatesImmediately(t *testing.T) {
	svc, _, _ := newEnrollmentSvc(map[string]*models.EnrollmentRecord{"sch-1": {SchoolID: "sch-1"}}, nil)

	record, err := svc.Enroll(context.Background(), EnrollRequest{SchoolID: "sch-1", Date: date(2025, 2, 1), Actor: "admin"})
	require.NoError(t, err)
	assert.Equal(t, date(2025, 2, 1), *record.ActiveFrom)
}

func TestEnrollIsIdempotent(t *testing.T) {
	svc, repo, _ := newEnrollmentSvc(map[string]*models.EnrollmentRecord{"sch-1": {SchoolID: "sch-1"}}, nil)
	req := EnrollRequest{SchoolID: "sch-1", Date: date(2024, 10, 1), Actor: "admin"}

	first, err := svc.Enroll(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.Enroll(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, repo.saves)
	assert.Equal(t, first.EnrolledAt, second.EnrolledAt)
	assert.Len(t, second.History, 1)
}

func TestEnrollDateCorrectionPersists(t *testing.T) {
	svc, repo, _ := newEnrollmentSvc(map[string]*models.EnrollmentRecord{"sch-1": {SchoolID: "sch-1"}}, nil)

	_, err := svc.Enroll(context.Background(), EnrollRequest{SchoolID: "sch-1", Date: date(2024, 9, 1), Actor: "admin"})
	require.NoError(t, err)

	record, err := svc.Enroll(context.Background(), EnrollRequest{SchoolID: "sch-1", Date: date(2024, 10, 1), Actor: "admin"})
	require.NoError(t, err)

	// the original enrollment date is immutable; only activation moves
	assert.Equal(t, date(2024, 9, 1), *record.EnrolledAt)
	assert.Equal(t, date(2024, 10, 1), *record.ActiveFrom)
	assert.Equal(t, 2, repo.saves)

	persisted := repo.records["sch-1"]
	require.NotNil(t, persisted.ActiveFrom)
	assert.Equal(t, date(2024, 10, 1), *persisted.ActiveFrom)
	require.Len(t, persisted.History, 2)
	assert.Equal(t, models.EventActivated, persisted.History[1].Type)
	assert.Equal(t, date(2024, 10, 1), persisted.History[1].Date)
}

func TestEnrollAfterOptOutReenrolls(t *testing.T) {
	records := map[string]*models.EnrollmentRecord{"sch-1": {
		SchoolID:   "sch-1",
		EnrolledAt: datePtr(2022, 9, 1),
		ActiveFrom: datePtr(2022, 9, 1),
		OptedOutAt: datePtr(2023, 6, 1),
	}}
	svc, _, _ := newEnrollmentSvc(records, nil)

	record, err := svc.Enroll(context.Background(), EnrollRequest{SchoolID: "sch-1", Date: date(2024, 9, 1), Actor: "admin"})
	require.NoError(t, err)

	// the original enrollment date survives re-enrollment
	assert.Equal(t, date(2022, 9, 1), *record.EnrolledAt)
	assert.Equal(t, date(2024, 9, 1), *record.ActiveFrom)
	assert.Nil(t, record.OptedOutAt)
	require.NotEmpty(t, record.History)
	assert.Equal(t, models.EventEnrolled, record.History[0].Type)
}

func TestEnrollUnknownSchool(t *testing.T) {
	svc, _, _ := newEnrollmentSvc(map[string]*models.EnrollmentRecord{}, nil)

	_, err := svc.Enroll(context.Background(), EnrollRequest{SchoolID: "missing", Date: date(2024, 10, 1), Actor: "admin"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestWithdraw(t *testing.T) {
	records := map[string]*models.EnrollmentRecord{"sch-1": {
		SchoolID:   "sch-1",
		EnrolledAt: datePtr(2023, 9, 1),
		ActiveFrom: datePtr(2023, 9, 1),
	}}
	svc, _, audit := newEnrollmentSvc(records, nil)

	record, err := svc.Withdraw(context.Background(), WithdrawRequest{SchoolID: "sch-1", Date: date(2024, 6, 1), Actor: "admin"})
	require.NoError(t, err)

	assert.Equal(t, date(2024, 6, 1), *record.OptedOutAt)
	assert.NotNil(t, record.EnrolledAt)
	require.Len(t, record.History, 1)
	assert.Equal(t, models.EventOptedOut, record.History[0].Type)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionWithdraw, audit.logs[0].Action)
}

func TestWithdrawWithoutEnrollment(t *testing.T) {
	svc, _, _ := newEnrollmentSvc(map[string]*models.EnrollmentRecord{"sch-1": {SchoolID: "sch-1"}}, nil)

	_, err := svc.Withdraw(context.Background(), WithdrawRequest{SchoolID: "sch-1", Date: date(2024, 6, 1), Actor: "admin"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
}

func TestWithdrawBeforeEnrollmentDate(t *testing.T) {
	records := map[string]*models.EnrollmentRecord{"sch-1": {
		SchoolID:   "sch-1",
		EnrolledAt: datePtr(2023, 9, 1),
		ActiveFrom: datePtr(2023, 9, 1),
	}}
	svc, _, _ := newEnrollmentSvc(records, nil)

	_, err := svc.Withdraw(context.Background(), WithdrawRequest{SchoolID: "sch-1", Date: date(2023, 8, 1), Actor: "admin"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
}

func TestResetClearsRecord(t *testing.T) {
	records := map[string]*models.EnrollmentRecord{"sch-1": {
		SchoolID:   "sch-1",
		EnrolledAt: datePtr(2023, 9, 1),
		ActiveFrom: datePtr(2023, 9, 1),
		OptedOutAt: datePtr(2024, 6, 1),
	}}
	svc, _, _ := newEnrollmentSvc(records, nil)

	record, err := svc.Reset(context.Background(), "sch-1", "admin")
	require.NoError(t, err)

	assert.Nil(t, record.EnrolledAt)
	assert.Nil(t, record.ActiveFrom)
	assert.Nil(t, record.OptedOutAt)
	require.Len(t, record.History, 1)
	assert.Equal(t, models.EventReset, record.History[0].Type)
	assert.Equal(t, models.StatusNotEnrolled, StatusAt(record, date(2024, 10, 1)))
}

func TestSaveConflictSurfaces(t *testing.T) {
	repo := &stubSchoolRecords{
		records: map[string]*models.EnrollmentRecord{"sch-1": {SchoolID: "sch-1"}},
		saveErr: appErrors.ErrConflict,
	}
	svc := NewEnrollmentService(repo, &stubUsage{}, &stubAudit{}, nil, DefaultEnrollmentPolicy, validator.New(), zap.NewNop())

	_, err := svc.Enroll(context.Background(), EnrollRequest{SchoolID: "sch-1", Date: date(2024, 10, 1), Actor: "admin"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestEntitlement(t *testing.T) {
	year, err := schoolyear.Parse("2024/25")
	require.NoError(t, err)

	firstYear := &models.EnrollmentRecord{EnrolledAt: datePtr(2024, 9, 1), ActiveFrom: datePtr(2024, 9, 1)}
	anchoring := &models.EnrollmentRecord{EnrolledAt: datePtr(2022, 9, 1), ActiveFrom: datePtr(2022, 9, 1)}
	optedOut := &models.EnrollmentRecord{EnrolledAt: datePtr(2022, 9, 1), ActiveFrom: datePtr(2022, 9, 1), OptedOutAt: datePtr(2025, 1, 15)}
	pending := &models.EnrollmentRecord{EnrolledAt: datePtr(2025, 3, 1), ActiveFrom: datePtr(2025, 8, 1)}

	cases := []struct {
		name       string
		record     *models.EnrollmentRecord
		used       int
		category   models.SeatCategory
		free       int
		extra      int
	}{
		{"first year within allocation", firstYear, 2, models.SeatCategoryFirstYear, 3, 0},
		{"first year over allocation", firstYear, 5, models.SeatCategoryFirstYear, 3, 2},
		{"anchoring single seat", anchoring, 1, models.SeatCategoryAnchoring, 1, 0},
		{"anchoring over allocation", anchoring, 3, models.SeatCategoryAnchoring, 1, 2},
		{"withdrawn during the year", optedOut, 2, models.SeatCategoryNone, 0, 2},
		{"activation next year", pending, 0, models.SeatCategoryNone, 0, 0},
		{"never enrolled with usage", nil, 1, models.SeatCategoryNone, 0, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entitlement := DefaultEnrollmentPolicy.EntitlementFor(tc.record, year, tc.used)
			assert.Equal(t, tc.category, entitlement.Category)
			assert.Equal(t, tc.free, entitlement.FreeSeats)
			assert.Equal(t, tc.used, entitlement.UsedSeats)
			assert.Equal(t, tc.extra, entitlement.ExtraSeats)
			assert.Equal(t, "2024/25", entitlement.SchoolYear)
		})
	}
}

func TestOverview(t *testing.T) {
	records := map[string]*models.EnrollmentRecord{"sch-1": {
		SchoolID:   "sch-1",
		EnrolledAt: datePtr(2024, 9, 1),
		ActiveFrom: datePtr(2024, 9, 1),
	}}
	svc, _, _ := newEnrollmentSvc(records, map[string]int{"sch-1": 4})

	overview, err := svc.Overview(context.Background(), "sch-1", date(2024, 11, 1))
	require.NoError(t, err)

	assert.Equal(t, models.StatusEnrolledFirstYear, overview.Status)
	assert.Equal(t, "Tilmeldt (ny)", overview.StatusLabel)
	assert.Equal(t, models.SeatCategoryFirstYear, overview.Entitlement.Category)
	assert.Equal(t, 4, overview.Entitlement.UsedSeats)
	assert.Equal(t, 1, overview.Entitlement.ExtraSeats)
}
