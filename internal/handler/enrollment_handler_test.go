package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/basal-program/admin-api/internal/middleware"
	"github.com/basal-program/admin-api/internal/models"
	"github.com/basal-program/admin-api/internal/schoolyear"
	"github.com/basal-program/admin-api/internal/service"
)

type fakeRecordStore struct {
	records map[string]*models.EnrollmentRecord
}

func (f *fakeRecordStore) FindByID(ctx context.Context, id string) (*models.School, error) {
	if _, ok := f.records[id]; !ok {
		return nil, sql.ErrNoRows
	}
	return &models.School{ID: id}, nil
}

func (f *fakeRecordStore) LoadRecord(ctx context.Context, schoolID string) (*models.EnrollmentRecord, error) {
	record, ok := f.records[schoolID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return record, nil
}

func (f *fakeRecordStore) SaveRecord(ctx context.Context, record *models.EnrollmentRecord, events []models.EnrollmentEvent) error {
	f.records[record.SchoolID] = record
	return nil
}

type fakeUsage struct{}

func (fakeUsage) UsedSeats(ctx context.Context, schoolID string, year schoolyear.Year) (int, error) {
	return 0, nil
}

type fakeAudit struct{}

func (fakeAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error { return nil }

func newEnrollmentHandler(records map[string]*models.EnrollmentRecord) *EnrollmentHandler {
	svc := service.NewEnrollmentService(
		&fakeRecordStore{records: records}, fakeUsage{}, fakeAudit{}, nil,
		service.DefaultEnrollmentPolicy, validator.New(), zap.NewNop())
	return NewEnrollmentHandler(svc)
}

func TestEnrollmentHandlerEnroll(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newEnrollmentHandler(map[string]*models.EnrollmentRecord{"sch-1": {SchoolID: "sch-1"}})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/schools/sch-1/enroll", strings.NewReader(`{"date":"2024-10-01"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "sch-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleAdmin})

	handler.Enroll(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2024-10-01T00:00:00Z", body.Data["active_from"])
}

func TestEnrollmentHandlerEnrollInvalidDate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newEnrollmentHandler(map[string]*models.EnrollmentRecord{"sch-1": {SchoolID: "sch-1"}})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/schools/sch-1/enroll", strings.NewReader(`{"date":"01-10-2024"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "sch-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1"})

	handler.Enroll(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnrollmentHandlerWithdrawWithoutEnrollment(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newEnrollmentHandler(map[string]*models.EnrollmentRecord{"sch-1": {SchoolID: "sch-1"}})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/schools/sch-1/withdraw", strings.NewReader(`{"date":"2024-10-01"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "sch-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1"})

	handler.Withdraw(c)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INVALID_TRANSITION", body.Error["code"])
}

func TestEnrollmentHandlerOverviewUnknownSchool(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newEnrollmentHandler(map[string]*models.EnrollmentRecord{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/schools/missing/enrollment", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.Overview(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
