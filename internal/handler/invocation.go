package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/vikarapp/vikar-api/internal/middleware"
	"github.com/vikarapp/vikar-api/internal/models"
	"github.com/vikarapp/vikar-api/pkg/middleware/requestid"
)

// invocationFrom builds the invocation context describing the incoming
// request for the lifecycle engine and the audit sink.
func invocationFrom(c *gin.Context) models.Invocation {
	endpoint := c.FullPath()
	if endpoint == "" {
		endpoint = c.Request.URL.Path
	}
	return models.NewHTTPInvocation(
		requestid.Value(c),
		c.Request.Method,
		endpoint,
		c.Request.URL.String(),
		c.GetHeader("Origin"),
		middleware.RequestorFrom(c),
	)
}
