package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/basal-program/admin-api/internal/models"
	"github.com/basal-program/admin-api/internal/schoolyear"
	appErrors "github.com/basal-program/admin-api/pkg/errors"
)

type gapSchoolRepository interface {
	ListActive(ctx context.Context) ([]models.School, error)
}

type gapUsageReader interface {
	UsedSeatsBySchool(ctx context.Context, year schoolyear.Year) (map[string]int, error)
}

type invoiceKeyReader interface {
	ExistingKeys(ctx context.Context, schoolYear string) ([]models.InvoiceKey, error)
}

// InvoiceGapService finds schools that owe an invoice: a forankring invoice
// for each anchoring year, and an extra-seats invoice whenever usage exceeds
// the free allocation. Both kinds are keyed (school, year, kind) and a school
// can carry both for the same year.
type InvoiceGapService struct {
	schools  gapSchoolRepository
	usage    gapUsageReader
	invoices invoiceKeyReader
	metrics  *MetricsService
	policy   EnrollmentPolicy
	// lookbackYears is how many years before the current one are scanned.
	// Older gaps are stale obligations and stay buried.
	lookbackYears int
	logger        *zap.Logger
}

// NewInvoiceGapService constructs the detector.
func NewInvoiceGapService(schools gapSchoolRepository, usage gapUsageReader, invoices invoiceKeyReader, metrics *MetricsService, policy EnrollmentPolicy, lookbackYears int, logger *zap.Logger) *InvoiceGapService {
	if lookbackYears < 0 {
		lookbackYears = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceGapService{
		schools:       schools,
		usage:         usage,
		invoices:      invoices,
		metrics:       metrics,
		policy:        policy.normalized(),
		lookbackYears: lookbackYears,
		logger:        logger,
	}
}

// RelevantYears lists the years the scan covers, newest first.
func (s *InvoiceGapService) RelevantYears(today time.Time) []schoolyear.Year {
	years := make([]schoolyear.Year, 0, s.lookbackYears+1)
	year := schoolyear.Current(today)
	for i := 0; i <= s.lookbackYears; i++ {
		years = append(years, year)
		year = year.Prev()
	}
	return years
}

// Missing scans all relevant years for missing invoices. Results are ordered
// by school name first, so an operator sees all of one school's open
// obligations together, then newest year and anchoring before extra seats.
func (s *InvoiceGapService) Missing(ctx context.Context, today time.Time) ([]models.InvoiceGap, error) {
	start := time.Now()
	var gaps []models.InvoiceGap
	for _, year := range s.RelevantYears(today) {
		yearGaps, err := s.MissingForYear(ctx, year)
		if err != nil {
			return nil, err
		}
		gaps = append(gaps, yearGaps...)
	}

	sort.SliceStable(gaps, func(i, j int) bool {
		if gaps[i].SchoolName != gaps[j].SchoolName {
			return gaps[i].SchoolName < gaps[j].SchoolName
		}
		if gaps[i].SchoolYear != gaps[j].SchoolYear {
			return gaps[i].SchoolYear > gaps[j].SchoolYear
		}
		return gaps[i].Kind < gaps[j].Kind
	})

	var anchoring, extraSeats int
	for _, gap := range gaps {
		switch gap.Kind {
		case models.InvoiceKindAnchoring:
			anchoring++
		case models.InvoiceKindExtraSeats:
			extraSeats++
		}
	}
	s.metrics.ObserveGapScan(time.Since(start), anchoring, extraSeats)
	return gaps, nil
}

// MissingForYear detects missing invoices for a single school year, schools
// ordered by name ascending.
func (s *InvoiceGapService) MissingForYear(ctx context.Context, year schoolyear.Year) ([]models.InvoiceGap, error) {
	schools, err := s.schools.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schools")
	}

	usage, err := s.usage.UsedSeatsBySchool(ctx, year)
	if err != nil {
		return nil, err
	}

	keys, err := s.invoices.ExistingKeys(ctx, year.String())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing invoices")
	}
	existing := make(map[models.InvoiceKey]struct{}, len(keys))
	for _, key := range keys {
		existing[key] = struct{}{}
	}

	var gaps []models.InvoiceGap
	for _, school := range schools {
		entitlement := s.policy.EntitlementFor(school.Record(), year, usage[school.ID])

		if entitlement.Category == models.SeatCategoryAnchoring {
			key := models.InvoiceKey{SchoolID: school.ID, Kind: models.InvoiceKindAnchoring}
			if _, ok := existing[key]; !ok {
				gaps = append(gaps, models.InvoiceGap{
					SchoolID:   school.ID,
					SchoolName: school.Name,
					SchoolYear: year.String(),
					Kind:       models.InvoiceKindAnchoring,
				})
			}
		}

		if entitlement.ExtraSeats > 0 {
			key := models.InvoiceKey{SchoolID: school.ID, Kind: models.InvoiceKindExtraSeats}
			if _, ok := existing[key]; !ok {
				gaps = append(gaps, models.InvoiceGap{
					SchoolID:   school.ID,
					SchoolName: school.Name,
					SchoolYear: year.String(),
					Kind:       models.InvoiceKindExtraSeats,
					ExtraSeats: entitlement.ExtraSeats,
				})
			}
		}
	}
	return gaps, nil
}
