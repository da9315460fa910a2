package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradeflow-api/internal/service"
)

// unmatchedRoute labels requests that hit no registered route so arbitrary
// paths never become label values.
const unmatchedRoute = "unmatched"

// Metrics records request counts and latency per route template. Paths listed
// in skip, such as the scrape endpoint, are not recorded.
func Metrics(metricsSvc *service.MetricsService, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		route := c.FullPath()
		if _, ok := skipped[route]; ok {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		if route == "" {
			route = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
