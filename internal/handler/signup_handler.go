package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/basal-program/admin-api/internal/service"
	"github.com/basal-program/admin-api/pkg/response"
)

// SignupHandler lists courses and the signups that consume a school's seats.
type SignupHandler struct {
	usage *service.SeatUsageService
}

// NewSignupHandler constructs SignupHandler.
func NewSignupHandler(usage *service.SeatUsageService) *SignupHandler {
	return &SignupHandler{usage: usage}
}

// ListForSchool godoc
// @Summary Course signups consuming a school's seats
// @Tags Signups
// @Produce json
// @Param id path string true "School ID"
// @Param year query string false "School year label, e.g. 2024/25 (defaults to the current year)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /schools/{id}/signups [get]
func (h *SignupHandler) ListForSchool(c *gin.Context) {
	year, err := yearFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	signups, err := h.usage.Signups(c.Request.Context(), c.Param("id"), year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, signups, nil)
}

// Courses godoc
// @Summary Courses held within a school year
// @Tags Signups
// @Produce json
// @Param year query string false "School year label, e.g. 2024/25 (defaults to the current year)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /courses [get]
func (h *SignupHandler) Courses(c *gin.Context) {
	year, err := yearFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	courses, err := h.usage.Courses(c.Request.Context(), year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil)
}
