package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/basal-program/admin-api/internal/service"
)

// Metrics records one duration observation per request, labelled with the
// route template so /schools/:id stays a single series regardless of which
// school is hit. Scrapes of /metrics itself are not recorded.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil || c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			// Requests that matched no route would explode label
			// cardinality if keyed by raw path.
			route = "unmatched"
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
