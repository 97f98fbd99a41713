package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vikarapp/vikar-api/internal/service"
)

// Metrics records request duration and count per route. The route template is
// used instead of the raw path so identifiers do not explode label
// cardinality.
func Metrics(metrics *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
