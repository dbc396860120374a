package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/basal-program/admin-api/internal/middleware"
	"github.com/basal-program/admin-api/internal/models"
	"github.com/basal-program/admin-api/internal/schoolyear"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func actorFromContext(c *gin.Context) string {
	if claims := claimsFromContext(c); claims != nil {
		return claims.UserID
	}
	return ""
}

// yearFromQuery reads an optional ?year= school-year label, defaulting to the
// year containing today.
func yearFromQuery(c *gin.Context) (schoolyear.Year, error) {
	if label := c.Query("year"); label != "" {
		return schoolyear.Parse(label)
	}
	return schoolyear.Current(time.Now()), nil
}

// asOfDate reads an optional ?date=YYYY-MM-DD override, defaulting to today.
// The override lets operators preview statuses around a year boundary.
func asOfDate(c *gin.Context) (time.Time, error) {
	raw := c.Query("date")
	if raw == "" {
		return schoolyear.DateOnly(time.Now()), nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	return parsed, nil
}
