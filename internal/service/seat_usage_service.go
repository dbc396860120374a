package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/basal-program/admin-api/internal/models"
	"github.com/basal-program/admin-api/internal/schoolyear"
	appErrors "github.com/basal-program/admin-api/pkg/errors"
)

type signupCountRepository interface {
	CountForSchool(ctx context.Context, schoolID string, from, to time.Time) (int, error)
	CountBySchool(ctx context.Context, from, to time.Time) ([]models.SeatUsage, error)
	ListForSchool(ctx context.Context, schoolID string, from, to time.Time) ([]models.SchoolSignup, error)
	ListCourses(ctx context.Context, from, to time.Time) ([]models.Course, error)
}

// SeatUsageService counts how many course seats a school has consumed within
// a school year. A signup counts from the moment the seat is reserved; a later
// no-show does not free it.
type SeatUsageService struct {
	signups signupCountRepository
	logger  *zap.Logger
}

// NewSeatUsageService constructs the aggregator.
func NewSeatUsageService(signups signupCountRepository, logger *zap.Logger) *SeatUsageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeatUsageService{signups: signups, logger: logger}
}

// UsedSeats returns the signup count for one school within the year's bounds.
func (s *SeatUsageService) UsedSeats(ctx context.Context, schoolID string, year schoolyear.Year) (int, error) {
	start, end := year.Bounds()
	count, err := s.signups.CountForSchool(ctx, schoolID, start, end)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count course signups")
	}
	return count, nil
}

// Signups lists the signups behind a school's seat usage for one year,
// joined with course details, earliest course first.
func (s *SeatUsageService) Signups(ctx context.Context, schoolID string, year schoolyear.Year) ([]models.SchoolSignup, error) {
	start, end := year.Bounds()
	signups, err := s.signups.ListForSchool(ctx, schoolID, start, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list course signups")
	}
	return signups, nil
}

// Courses lists the courses held within one school year.
func (s *SeatUsageService) Courses(ctx context.Context, year schoolyear.Year) ([]models.Course, error) {
	start, end := year.Bounds()
	courses, err := s.signups.ListCourses(ctx, start, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, nil
}

// UsedSeatsBySchool returns signup counts for all schools within the year,
// keyed by school id. Schools without signups are absent from the map.
func (s *SeatUsageService) UsedSeatsBySchool(ctx context.Context, year schoolyear.Year) (map[string]int, error) {
	start, end := year.Bounds()
	rows, err := s.signups.CountBySchool(ctx, start, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate course signups")
	}
	usage := make(map[string]int, len(rows))
	for _, row := range rows {
		usage[row.SchoolID] = row.Count
	}
	return usage, nil
}
