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
	appErrors "github.com/basal-program/admin-api/pkg/errors"
)

type mockSchoolRepo struct {
	schools     map[string]models.School
	created     *models.School
	updated     *models.School
	deactivated []string
	credentials map[string][2]string
	listedToday time.Time
}

func (m *mockSchoolRepo) List(ctx context.Context, filter models.SchoolFilter, yearStart, today time.Time) ([]models.School, int, error) {
	m.listedToday = today
	var list []models.School
	for _, s := range m.schools {
		list = append(list, s)
	}
	return list, len(list), nil
}

func (m *mockSchoolRepo) FindByID(ctx context.Context, id string) (*models.School, error) {
	if s, ok := m.schools[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSchoolRepo) Create(ctx context.Context, school *models.School) error {
	if m.schools == nil {
		m.schools = make(map[string]models.School)
	}
	m.schools[school.ID] = *school
	m.created = school
	return nil
}

func (m *mockSchoolRepo) Update(ctx context.Context, school *models.School) error {
	m.schools[school.ID] = *school
	m.updated = school
	return nil
}

func (m *mockSchoolRepo) Deactivate(ctx context.Context, id string) error {
	m.deactivated = append(m.deactivated, id)
	return nil
}

func (m *mockSchoolRepo) UpdateCredentials(ctx context.Context, id, signupCode, signupToken string) error {
	if m.credentials == nil {
		m.credentials = make(map[string][2]string)
	}
	m.credentials[id] = [2]string{signupCode, signupToken}
	return nil
}

func TestSchoolServiceCreateIssuesCredentials(t *testing.T) {
	repo := &mockSchoolRepo{}
	svc := NewSchoolService(repo, DefaultEnrollmentPolicy, validator.New(), zap.NewNop())

	school, err := svc.Create(context.Background(), CreateSchoolRequest{Name: "Astrup Skole", Municipality: "Aarhus"})
	require.NoError(t, err)

	assert.NotEmpty(t, school.ID)
	assert.Len(t, school.SignupCode, 8)
	assert.Len(t, school.SignupToken, 32)
	assert.True(t, school.Active)
	assert.Nil(t, school.EnrolledAt)
	require.NotNil(t, repo.created)
}

func TestSchoolServiceCreateValidation(t *testing.T) {
	svc := NewSchoolService(&mockSchoolRepo{}, DefaultEnrollmentPolicy, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), CreateSchoolRequest{Address: "Skolevej 1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestSchoolServiceListDerivesStatus(t *testing.T) {
	enrolled := date(2024, 9, 1)
	repo := &mockSchoolRepo{schools: map[string]models.School{
		"sch-1": {ID: "sch-1", Name: "Astrup Skole", EnrolledAt: &enrolled, ActiveFrom: &enrolled},
	}}
	svc := NewSchoolService(repo, DefaultEnrollmentPolicy, validator.New(), zap.NewNop())

	items, pagination, err := svc.List(context.Background(), models.SchoolFilter{}, date(2024, 10, 1))
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, models.StatusEnrolledFirstYear, items[0].Status)
	assert.Equal(t, "Tilmeldt (ny)", items[0].StatusLabel)
	assert.Equal(t, 1, pagination.TotalCount)
}

func TestSchoolServiceUpdatePreservesEnrollment(t *testing.T) {
	enrolled := date(2023, 9, 1)
	repo := &mockSchoolRepo{schools: map[string]models.School{
		"sch-1": {ID: "sch-1", Name: "Astrup Skole", Municipality: "Aarhus", EnrolledAt: &enrolled, ActiveFrom: &enrolled},
	}}
	svc := NewSchoolService(repo, DefaultEnrollmentPolicy, validator.New(), zap.NewNop())

	school, err := svc.Update(context.Background(), "sch-1", UpdateSchoolRequest{Name: "Astrup Fællesskole", Municipality: "Aarhus"})
	require.NoError(t, err)

	assert.Equal(t, "Astrup Fællesskole", school.Name)
	require.NotNil(t, school.EnrolledAt)
	assert.Equal(t, enrolled, *school.EnrolledAt)
}

func TestSchoolServiceGetUnknown(t *testing.T) {
	svc := NewSchoolService(&mockSchoolRepo{}, DefaultEnrollmentPolicy, validator.New(), zap.NewNop())

	_, err := svc.Get(context.Background(), "missing", date(2024, 10, 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestSchoolServiceRegenerateCredentials(t *testing.T) {
	repo := &mockSchoolRepo{schools: map[string]models.School{
		"sch-1": {ID: "sch-1", Name: "Astrup Skole", SignupCode: "old", SignupToken: "old"},
	}}
	svc := NewSchoolService(repo, DefaultEnrollmentPolicy, validator.New(), zap.NewNop())

	school, err := svc.RegenerateCredentials(context.Background(), "sch-1")
	require.NoError(t, err)

	assert.NotEqual(t, "old", school.SignupCode)
	assert.NotEqual(t, "old", school.SignupToken)
	stored, ok := repo.credentials["sch-1"]
	require.True(t, ok)
	assert.Equal(t, school.SignupCode, stored[0])
}

func TestGenerateSignupCodeAlternates(t *testing.T) {
	const consonants = "bdfgklmnprstv"
	const vowels = "aeiou"

	code := generateSignupCode()
	require.Len(t, code, 8)
	for i, ch := range code {
		if i%2 == 0 {
			assert.Contains(t, consonants, string(ch))
		} else {
			assert.Contains(t, vowels, string(ch))
		}
	}
}
