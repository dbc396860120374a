package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/basal-program/admin-api/internal/models"
	"github.com/basal-program/admin-api/internal/schoolyear"
	appErrors "github.com/basal-program/admin-api/pkg/errors"
)

type dashboardSchoolRepository interface {
	ListActive(ctx context.Context) ([]models.School, error)
}

// DashboardService aggregates enrollment counts for the admin landing page.
// This is the one place derived statuses are cached: the aggregate is a UI
// convenience, invalidated whenever the enrollment engine mutates a record.
type DashboardService struct {
	schools  dashboardSchoolRepository
	cache    *CacheService
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(schools dashboardSchoolRepository, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{schools: schools, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// Stats returns per-status school counts for the school year containing today.
func (s *DashboardService) Stats(ctx context.Context, today time.Time) (*models.SchoolStats, error) {
	today = schoolyear.DateOnly(today)
	year := schoolyear.Current(today)
	cacheKey := fmt.Sprintf("dashboard:stats:%d", year.StartYear())

	var cached models.SchoolStats
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	schools, err := s.schools.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schools")
	}

	stats := models.SchoolStats{
		SchoolYear:   year.String(),
		TotalSchools: len(schools),
		GeneratedAt:  time.Now().UTC(),
	}
	for _, school := range schools {
		switch StatusAt(school.Record(), today) {
		case models.StatusNotEnrolled:
			stats.NeverEnrolled++
		case models.StatusOptedOut:
			stats.OptedOut++
		case models.StatusPendingNextYear:
			stats.PendingNext++
		case models.StatusEnrolledFirstYear:
			stats.FirstYear++
			stats.Enrolled++
		case models.StatusEnrolledAnchoring:
			stats.Anchoring++
			stats.Enrolled++
		}
	}

	if err := s.cache.Set(ctx, cacheKey, stats, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache dashboard stats", zap.Error(err))
	}
	return &stats, nil
}
