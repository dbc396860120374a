package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/basal-program/admin-api/internal/schoolyear"
	appErrors "github.com/basal-program/admin-api/pkg/errors"
	"github.com/basal-program/admin-api/pkg/response"
)

// SchoolYearHandler exposes the academic calendar.
type SchoolYearHandler struct{}

// NewSchoolYearHandler constructs SchoolYearHandler.
func NewSchoolYearHandler() *SchoolYearHandler {
	return &SchoolYearHandler{}
}

type schoolYearView struct {
	Label string `json:"label"`
	Start string `json:"start"`
	End   string `json:"end"`
}

func yearView(year schoolyear.Year) schoolYearView {
	start, end := year.Bounds()
	return schoolYearView{
		Label: year.String(),
		Start: start.Format("2006-01-02"),
		End:   end.Format("2006-01-02"),
	}
}

// Current godoc
// @Summary The school year containing a date
// @Tags SchoolYears
// @Produce json
// @Param date query string false "Date to resolve (YYYY-MM-DD, defaults to today)"
// @Success 200 {object} response.Envelope
// @Router /school-years/current [get]
func (h *SchoolYearHandler) Current(c *gin.Context) {
	today := schoolyear.DateOnly(time.Now())
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid date, expected YYYY-MM-DD"))
			return
		}
		today = parsed
	}
	response.JSON(c, http.StatusOK, yearView(schoolyear.Current(today)), nil)
}

// Resolve godoc
// @Summary Parse a school year label and return its bounds
// @Tags SchoolYears
// @Produce json
// @Param label path string true "School year label, e.g. 2024-25"
// @Success 200 {object} response.Envelope
// @Router /school-years/{label} [get]
func (h *SchoolYearHandler) Resolve(c *gin.Context) {
	year, err := schoolyear.Parse(c.Param("label"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, yearView(year), nil)
}
