package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/basal-program/admin-api/internal/schoolyear"
	"github.com/basal-program/admin-api/internal/service"
	appErrors "github.com/basal-program/admin-api/pkg/errors"
	"github.com/basal-program/admin-api/pkg/response"
)

// EnrollmentHandler exposes the enrollment engine over HTTP.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

type enrollmentDatePayload struct {
	Date string `json:"date"`
}

func (p enrollmentDatePayload) parse() (time.Time, error) {
	if p.Date == "" {
		return schoolyear.DateOnly(time.Now()), nil
	}
	return time.Parse("2006-01-02", p.Date)
}

// Overview godoc
// @Summary Enrollment status, record and entitlement for a school
// @Tags Enrollment
// @Produce json
// @Param id path string true "School ID"
// @Param date query string false "Evaluate as of this date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /schools/{id}/enrollment [get]
func (h *EnrollmentHandler) Overview(c *gin.Context) {
	today, err := asOfDate(c)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid date, expected YYYY-MM-DD"))
		return
	}
	overview, err := h.enrollments.Overview(c.Request.Context(), c.Param("id"), today)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overview, nil)
}

// Entitlement godoc
// @Summary Seat entitlement for a school year
// @Tags Enrollment
// @Produce json
// @Param id path string true "School ID"
// @Param year query string false "School year label, e.g. 2024/25 (defaults to the current year)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /schools/{id}/entitlement [get]
func (h *EnrollmentHandler) Entitlement(c *gin.Context) {
	year, err := yearFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	entitlement, err := h.enrollments.Entitlement(c.Request.Context(), c.Param("id"), year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entitlement, nil)
}

// Enroll godoc
// @Summary Enroll a school
// @Tags Enrollment
// @Accept json
// @Produce json
// @Param id path string true "School ID"
// @Param payload body enrollmentDatePayload true "Enrollment date (defaults to today)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /schools/{id}/enroll [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	var payload enrollmentDatePayload
	if err := c.ShouldBindJSON(&payload); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	date, err := payload.parse()
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid date, expected YYYY-MM-DD"))
		return
	}

	record, err := h.enrollments.Enroll(c.Request.Context(), service.EnrollRequest{
		SchoolID: c.Param("id"),
		Date:     date,
		Actor:    actorFromContext(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Withdraw godoc
// @Summary Withdraw a school
// @Tags Enrollment
// @Accept json
// @Produce json
// @Param id path string true "School ID"
// @Param payload body enrollmentDatePayload true "Withdrawal date (defaults to today)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /schools/{id}/withdraw [post]
func (h *EnrollmentHandler) Withdraw(c *gin.Context) {
	var payload enrollmentDatePayload
	if err := c.ShouldBindJSON(&payload); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	date, err := payload.parse()
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid date, expected YYYY-MM-DD"))
		return
	}

	record, err := h.enrollments.Withdraw(c.Request.Context(), service.WithdrawRequest{
		SchoolID: c.Param("id"),
		Date:     date,
		Actor:    actorFromContext(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Reset godoc
// @Summary Clear a school's enrollment record
// @Tags Enrollment
// @Produce json
// @Param id path string true "School ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /schools/{id}/enrollment/reset [post]
func (h *EnrollmentHandler) Reset(c *gin.Context) {
	record, err := h.enrollments.Reset(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}
