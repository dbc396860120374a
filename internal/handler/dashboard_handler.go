package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/basal-program/admin-api/internal/service"
	appErrors "github.com/basal-program/admin-api/pkg/errors"
	"github.com/basal-program/admin-api/pkg/response"
)

// DashboardHandler serves the admin landing-page aggregate.
type DashboardHandler struct {
	dashboard *service.DashboardService
}

// NewDashboardHandler constructs DashboardHandler.
func NewDashboardHandler(dashboard *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// Stats godoc
// @Summary Enrollment counts per status for the current school year
// @Tags Dashboard
// @Produce json
// @Param date query string false "Evaluate as of this date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /dashboard/stats [get]
func (h *DashboardHandler) Stats(c *gin.Context) {
	today, err := asOfDate(c)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid date, expected YYYY-MM-DD"))
		return
	}
	stats, err := h.dashboard.Stats(c.Request.Context(), today)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
