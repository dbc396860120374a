package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"math/big"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/basal-program/admin-api/internal/models"
	"github.com/basal-program/admin-api/internal/schoolyear"
	appErrors "github.com/basal-program/admin-api/pkg/errors"
)

type schoolRepository interface {
	List(ctx context.Context, filter models.SchoolFilter, yearStart, today time.Time) ([]models.School, int, error)
	FindByID(ctx context.Context, id string) (*models.School, error)
	Create(ctx context.Context, school *models.School) error
	Update(ctx context.Context, school *models.School) error
	Deactivate(ctx context.Context, id string) error
	UpdateCredentials(ctx context.Context, id, signupCode, signupToken string) error
}

// CreateSchoolRequest describes school creation payload.
type CreateSchoolRequest struct {
	Name         string `json:"name" validate:"required,max=255"`
	Address      string `json:"address" validate:"max=255"`
	Municipality string `json:"municipality" validate:"required,max=100"`
}

// UpdateSchoolRequest describes school update payload.
type UpdateSchoolRequest struct {
	Name         string `json:"name" validate:"required,max=255"`
	Address      string `json:"address" validate:"max=255"`
	Municipality string `json:"municipality" validate:"required,max=100"`
}

// SchoolListItem pairs a school with its derived status for list views.
type SchoolListItem struct {
	models.School
	Status      models.EnrollmentStatus `json:"status"`
	StatusLabel string                  `json:"status_label"`
}

// SchoolService manages the school register. Statuses shown on list and
// detail pages are derived on the fly by the enrollment engine.
type SchoolService struct {
	repo      schoolRepository
	policy    EnrollmentPolicy
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSchoolService constructs a SchoolService.
func NewSchoolService(repo schoolRepository, policy EnrollmentPolicy, validate *validator.Validate, logger *zap.Logger) *SchoolService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchoolService{repo: repo, policy: policy.normalized(), validator: validate, logger: logger}
}

// List returns schools with pagination metadata and per-row derived status.
func (s *SchoolService) List(ctx context.Context, filter models.SchoolFilter, today time.Time) ([]SchoolListItem, *models.Pagination, error) {
	today = schoolyear.DateOnly(today)
	yearStart := schoolyear.Current(today).Start()

	schools, total, err := s.repo.List(ctx, filter, yearStart, today)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schools")
	}

	items := make([]SchoolListItem, len(schools))
	for i, school := range schools {
		status := StatusAt(school.Record(), today)
		items[i] = SchoolListItem{School: school, Status: status, StatusLabel: status.Label()}
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return items, pagination, nil
}

// Get returns one school with derived status.
func (s *SchoolService) Get(ctx context.Context, id string, today time.Time) (*SchoolListItem, error) {
	school, err := s.findSchool(ctx, id)
	if err != nil {
		return nil, err
	}
	status := StatusAt(school.Record(), schoolyear.DateOnly(today))
	return &SchoolListItem{School: *school, Status: status, StatusLabel: status.Label()}, nil
}

// Create registers a new school and issues its signup credentials. The
// enrollment record starts empty; enrollment is a separate action.
func (s *SchoolService) Create(ctx context.Context, req CreateSchoolRequest) (*models.School, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid school payload")
	}

	now := time.Now().UTC()
	school := &models.School{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Address:      req.Address,
		Municipality: req.Municipality,
		Active:       true,
		SignupCode:   generateSignupCode(),
		SignupToken:  generateSignupToken(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, school); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create school")
	}
	return school, nil
}

// Update changes the school's master data. Enrollment dates are untouched;
// they change only through the enrollment engine.
func (s *SchoolService) Update(ctx context.Context, id string, req UpdateSchoolRequest) (*models.School, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid school payload")
	}

	school, err := s.findSchool(ctx, id)
	if err != nil {
		return nil, err
	}

	school.Name = req.Name
	school.Address = req.Address
	school.Municipality = req.Municipality
	school.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, school); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update school")
	}
	return school, nil
}

// Deactivate soft-deletes a school. The record and its history stay.
func (s *SchoolService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.findSchool(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate school")
	}
	return nil
}

// RegenerateCredentials issues a fresh signup code and token for the public
// course-signup page.
func (s *SchoolService) RegenerateCredentials(ctx context.Context, id string) (*models.School, error) {
	school, err := s.findSchool(ctx, id)
	if err != nil {
		return nil, err
	}

	school.SignupCode = generateSignupCode()
	school.SignupToken = generateSignupToken()
	if err := s.repo.UpdateCredentials(ctx, id, school.SignupCode, school.SignupToken); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update signup credentials")
	}
	return school, nil
}

func (s *SchoolService) findSchool(ctx context.Context, id string) (*models.School, error) {
	school, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}
	return school, nil
}

// generateSignupCode produces a pronounceable code (alternating consonants
// and vowels) that school staff can read out over the phone.
func generateSignupCode() string {
	const consonants = "bdfgklmnprstv"
	const vowels = "aeiou"
	code := make([]byte, 8)
	for i := range code {
		alphabet := consonants
		if i%2 == 1 {
			alphabet = vowels
		}
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			idx = big.NewInt(int64(i % len(alphabet)))
		}
		code[i] = alphabet[idx.Int64()]
	}
	return string(code)
}

func generateSignupToken() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return uuid.NewString()
	}
	return hex.EncodeToString(buf)
}
