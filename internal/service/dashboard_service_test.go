package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/basal-program/admin-api/internal/models"
	appErrors "github.com/basal-program/admin-api/pkg/errors"
)

type memoryCacheRepo struct {
	values map[string][]byte
	sets   int
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.values == nil {
		m.values = make(map[string][]byte)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = raw
	m.sets++
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.values = nil
	return nil
}

func TestDashboardStatsBuckets(t *testing.T) {
	never := models.School{ID: "sch-1", Name: "A"}
	first := anchoringSchool("sch-2", "B", 2024)
	anchor := anchoringSchool("sch-3", "C", 2022)
	pending := models.School{ID: "sch-4", Name: "D", EnrolledAt: datePtr(2025, 3, 1), ActiveFrom: datePtr(2025, 8, 1)}
	out := anchoringSchool("sch-5", "E", 2020)
	outAt := date(2024, 9, 1)
	out.OptedOutAt = &outAt

	repo := &stubSchoolLister{schools: []models.School{never, first, anchor, pending, out}}
	svc := NewDashboardService(repo, nil, time.Minute, zap.NewNop())

	stats, err := svc.Stats(context.Background(), date(2025, 4, 1))
	require.NoError(t, err)

	assert.Equal(t, "2024/25", stats.SchoolYear)
	assert.Equal(t, 5, stats.TotalSchools)
	assert.Equal(t, 1, stats.NeverEnrolled)
	assert.Equal(t, 1, stats.FirstYear)
	assert.Equal(t, 1, stats.Anchoring)
	assert.Equal(t, 2, stats.Enrolled)
	assert.Equal(t, 1, stats.PendingNext)
	assert.Equal(t, 1, stats.OptedOut)
}

func TestDashboardStatsCaches(t *testing.T) {
	repo := &stubSchoolLister{schools: []models.School{anchoringSchool("sch-1", "A", 2022)}}
	cacheRepo := &memoryCacheRepo{}
	cache := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	svc := NewDashboardService(repo, cache, time.Minute, zap.NewNop())

	first, err := svc.Stats(context.Background(), date(2024, 10, 1))
	require.NoError(t, err)
	second, err := svc.Stats(context.Background(), date(2024, 10, 1))
	require.NoError(t, err)

	assert.Equal(t, 1, cacheRepo.sets)
	assert.Equal(t, first.TotalSchools, second.TotalSchools)
	assert.Contains(t, cacheRepo.values, "dashboard:stats:2024")
}
