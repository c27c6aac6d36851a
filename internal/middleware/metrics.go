package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/livetv/internal/metrics"
)

const unmatchedRoute = "unmatched"

// Metrics counts requests by method, route template and status
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		metrics.HTTPRequests.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Inc()
	}
}
