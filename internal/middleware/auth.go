package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vikarapp/vikar-api/internal/models"
	"github.com/vikarapp/vikar-api/internal/service"
	appErrors "github.com/vikarapp/vikar-api/pkg/errors"
	"github.com/vikarapp/vikar-api/pkg/response"
)

// ContextRequestorKey is the gin context key holding the authenticated
// requestor.
const ContextRequestorKey = "requestor"

// Auth validates the bearer token and resolves the acting principal into the
// request context. Requests without a valid token are rejected with 401.
func Auth(auth *service.AuthService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing bearer token"))
			c.Abort()
			return
		}

		claims, err := auth.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		requestor, err := auth.Requestor(c.Request.Context(), claims)
		if err != nil {
			logger.Warn("failed to resolve requestor", zap.String("upn", claims.UPN), zap.Error(err))
			response.Error(c, err)
			c.Abort()
			return
		}
		requestor.IP = c.ClientIP()

		c.Set(ContextRequestorKey, requestor)
		c.Next()
	}
}

// RequireRole gates a route group behind an application role. It assumes Auth
// ran earlier in the chain.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestor := RequestorFrom(c)
		if requestor == nil {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing bearer token"))
			c.Abort()
			return
		}
		if !requestor.HasRole(role) {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "this operation requires the "+role+" role"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequestorFrom returns the authenticated requestor, or nil when the request
// is unauthenticated.
func RequestorFrom(c *gin.Context) *models.Requestor {
	value, ok := c.Get(ContextRequestorKey)
	if !ok {
		return nil
	}
	requestor, ok := value.(*models.Requestor)
	if !ok {
		return nil
	}
	return requestor
}
