package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/basal-program/admin-api/internal/models"
	"github.com/basal-program/admin-api/internal/schoolyear"
)

type stubSchoolLister struct {
	schools []models.School
}

func (s *stubSchoolLister) ListActive(ctx context.Context) ([]models.School, error) {
	return s.schools, nil
}

type stubUsageBySchool struct {
	usage map[string]map[string]int
}

func (s *stubUsageBySchool) UsedSeatsBySchool(ctx context.Context, year schoolyear.Year) (map[string]int, error) {
	return s.usage[year.String()], nil
}

type stubInvoiceKeys struct {
	keys map[string][]models.InvoiceKey
}

func (s *stubInvoiceKeys) ExistingKeys(ctx context.Context, schoolYear string) ([]models.InvoiceKey, error) {
	return s.keys[schoolYear], nil
}

func anchoringSchool(id, name string, startYear int) models.School {
	enrolled := date(startYear, 9, 1)
	return models.School{ID: id, Name: name, EnrolledAt: &enrolled, ActiveFrom: &enrolled, Active: true}
}

func TestRelevantYears(t *testing.T) {
	svc := NewInvoiceGapService(&stubSchoolLister{}, &stubUsageBySchool{}, &stubInvoiceKeys{}, nil, DefaultEnrollmentPolicy, 1, zap.NewNop())

	years := svc.RelevantYears(date(2024, 10, 1))
	require.Len(t, years, 2)
	assert.Equal(t, "2024/25", years[0].String())
	assert.Equal(t, "2023/24", years[1].String())
}

func TestMissingForYearAnchoring(t *testing.T) {
	schools := &stubSchoolLister{schools: []models.School{
		anchoringSchool("sch-1", "Astrup Skole", 2022),
		anchoringSchool("sch-2", "Bakkeskolen", 2022),
	}}
	invoices := &stubInvoiceKeys{keys: map[string][]models.InvoiceKey{
		"2024/25": {{SchoolID: "sch-2", Kind: models.InvoiceKindAnchoring}},
	}}
	svc := NewInvoiceGapService(schools, &stubUsageBySchool{}, invoices, nil, DefaultEnrollmentPolicy, 1, zap.NewNop())

	year, err := schoolyear.Parse("2024/25")
	require.NoError(t, err)
	gaps, err := svc.MissingForYear(context.Background(), year)
	require.NoError(t, err)

	require.Len(t, gaps, 1)
	assert.Equal(t, "sch-1", gaps[0].SchoolID)
	assert.Equal(t, models.InvoiceKindAnchoring, gaps[0].Kind)
	assert.Equal(t, "2024/25", gaps[0].SchoolYear)
}

func TestMissingForYearExtraSeats(t *testing.T) {
	schools := &stubSchoolLister{schools: []models.School{anchoringSchool("sch-1", "Astrup Skole", 2022)}}
	usage := &stubUsageBySchool{usage: map[string]map[string]int{"2024/25": {"sch-1": 3}}}
	invoices := &stubInvoiceKeys{keys: map[string][]models.InvoiceKey{
		"2024/25": {{SchoolID: "sch-1", Kind: models.InvoiceKindAnchoring}},
	}}
	svc := NewInvoiceGapService(schools, usage, invoices, nil, DefaultEnrollmentPolicy, 1, zap.NewNop())

	year, err := schoolyear.Parse("2024/25")
	require.NoError(t, err)
	gaps, err := svc.MissingForYear(context.Background(), year)
	require.NoError(t, err)

	require.Len(t, gaps, 1)
	assert.Equal(t, models.InvoiceKindExtraSeats, gaps[0].Kind)
	assert.Equal(t, 2, gaps[0].ExtraSeats)
}

func TestMissingForYearBothKindsSameSchool(t *testing.T) {
	schools := &stubSchoolLister{schools: []models.School{anchoringSchool("sch-1", "Astrup Skole", 2022)}}
	usage := &stubUsageBySchool{usage: map[string]map[string]int{"2024/25": {"sch-1": 4}}}
	svc := NewInvoiceGapService(schools, usage, &stubInvoiceKeys{}, nil, DefaultEnrollmentPolicy, 1, zap.NewNop())

	year, err := schoolyear.Parse("2024/25")
	require.NoError(t, err)
	gaps, err := svc.MissingForYear(context.Background(), year)
	require.NoError(t, err)

	require.Len(t, gaps, 2)
	assert.Equal(t, models.InvoiceKindAnchoring, gaps[0].Kind)
	assert.Equal(t, models.InvoiceKindExtraSeats, gaps[1].Kind)
	assert.Equal(t, 3, gaps[1].ExtraSeats)
}

func TestMissingSkipsFirstYearAndOptedOutSchools(t *testing.T) {
	firstYear := anchoringSchool("sch-1", "Astrup Skole", 2024)
	optedOut := anchoringSchool("sch-2", "Bakkeskolen", 2020)
	out := date(2024, 12, 1)
	optedOut.OptedOutAt = &out

	schools := &stubSchoolLister{schools: []models.School{firstYear, optedOut}}
	svc := NewInvoiceGapService(schools, &stubUsageBySchool{}, &stubInvoiceKeys{}, nil, DefaultEnrollmentPolicy, 0, zap.NewNop())

	year, err := schoolyear.Parse("2024/25")
	require.NoError(t, err)
	gaps, err := svc.MissingForYear(context.Background(), year)
	require.NoError(t, err)
	assert.Empty(t, gaps)
}

func TestMissingScansLookbackYears(t *testing.T) {
	schools := &stubSchoolLister{schools: []models.School{anchoringSchool("sch-1", "Astrup Skole", 2021)}}
	svc := NewInvoiceGapService(schools, &stubUsageBySchool{}, &stubInvoiceKeys{}, nil, DefaultEnrollmentPolicy, 1, zap.NewNop())

	gaps, err := svc.Missing(context.Background(), date(2024, 10, 1))
	require.NoError(t, err)

	require.Len(t, gaps, 2)
	assert.Equal(t, "2024/25", gaps[0].SchoolYear)
	assert.Equal(t, "2023/24", gaps[1].SchoolYear)
	for _, gap := range gaps {
		assert.Equal(t, models.InvoiceKindAnchoring, gap.Kind)
	}
}

func TestMissingOrdersByNameAcrossYears(t *testing.T) {
	schools := &stubSchoolLister{schools: []models.School{
		anchoringSchool("sch-2", "Bakkeskolen", 2021),
		anchoringSchool("sch-1", "Astrup Skole", 2021),
	}}
	svc := NewInvoiceGapService(schools, &stubUsageBySchool{}, &stubInvoiceKeys{}, nil, DefaultEnrollmentPolicy, 1, zap.NewNop())

	gaps, err := svc.Missing(context.Background(), date(2024, 10, 1))
	require.NoError(t, err)

	require.Len(t, gaps, 4)
	// all of one school's gaps come before the next school, newest year first
	assert.Equal(t, "Astrup Skole", gaps[0].SchoolName)
	assert.Equal(t, "2024/25", gaps[0].SchoolYear)
	assert.Equal(t, "Astrup Skole", gaps[1].SchoolName)
	assert.Equal(t, "2023/24", gaps[1].SchoolYear)
	assert.Equal(t, "Bakkeskolen", gaps[2].SchoolName)
	assert.Equal(t, "Bakkeskolen", gaps[3].SchoolName)
}

func TestMissingRecordsMetrics(t *testing.T) {
	schools := &stubSchoolLister{schools: []models.School{anchoringSchool("sch-1", "Astrup Skole", 2021)}}
	metrics := NewMetricsService()
	svc := NewInvoiceGapService(schools, &stubUsageBySchool{}, &stubInvoiceKeys{}, metrics, DefaultEnrollmentPolicy, 0, zap.NewNop())

	_, err := svc.Missing(context.Background(), date(2024, 10, 1))
	require.NoError(t, err)
}
